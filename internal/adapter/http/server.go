package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/sightings-map/internal/domain"
	"github.com/couchcryptid/sightings-map/internal/session"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MapService is the collaborator surface the map shell calls. It is
// implemented by *session.Controller.
type MapService interface {
	sharedobs.ReadinessChecker

	Regions() ([]domain.RegionStat, error)
	GetRegionStat(region string) (domain.RegionStat, bool, error)
	Classify(region, layer string) (string, error)
	Choropleth(layer string) (session.Choropleth, error)
	GetLegendEntries(layer string) ([]domain.LegendEntry, error)
	ActiveLegend() (domain.Legend, bool, error)
	Markers() ([]domain.Marker, error)
	Summary() (domain.Summary, error)
	Notes() []domain.Note
	Sources() []session.SourceState
	Record(id string) (domain.Record, bool, error)
	Nearby(ctx context.Context, query string, radiusKM float64) (session.NearbyResult, error)
	Locate(lat, lon float64) (string, bool, error)

	Filter() domain.FilterState
	OnFilterChange(ctx context.Context, f domain.FilterState) (domain.FilterState, error)
	Layers() domain.LayerState
	OnLayerVisibilityChange(visible []string) (domain.LayerState, error)
	AddLayer(name string) (domain.LayerState, error)
	RemoveLayer(name string) (domain.LayerState, error)
	Emphasize(layer, region string) (domain.Emphasis, error)
	ResetEmphasis() domain.Emphasis
}

// Server exposes the map API alongside health, readiness, and metrics.
type Server struct {
	httpServer *http.Server
	svc        MapService
	logger     *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	allowedOrigins []string
}

// WithAllowedOrigins enables CORS for a browser map front-end served from
// another origin. No origins leaves CORS disabled.
func WithAllowedOrigins(origins ...string) ServerOption {
	return func(c *serverConfig) { c.allowedOrigins = origins }
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /api routes.
func NewServer(addr string, svc MapService, logger *slog.Logger, opts ...ServerOption) *Server {
	var cfg serverConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		svc:    svc,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(svc))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/regions", s.handleRegions)
	mux.HandleFunc("GET /api/regions/{key}", s.handleRegion)
	mux.HandleFunc("GET /api/classify/{layer}/{key}", s.handleClassify)
	mux.HandleFunc("GET /api/choropleth/{layer}", s.handleChoropleth)
	mux.HandleFunc("GET /api/legend", s.handleActiveLegend)
	mux.HandleFunc("GET /api/legend/{layer}", s.handleLegend)
	mux.HandleFunc("GET /api/markers", s.handleMarkers)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/notes", s.handleNotes)
	mux.HandleFunc("GET /api/sources", s.handleSources)
	mux.HandleFunc("GET /api/reports/{id}", s.handleReport)
	mux.HandleFunc("GET /api/nearby", s.handleNearby)
	mux.HandleFunc("GET /api/locate", s.handleLocate)

	mux.HandleFunc("GET /api/filter", s.handleGetFilter)
	mux.HandleFunc("PUT /api/filter", s.handlePutFilter)
	mux.HandleFunc("GET /api/layers", s.handleGetLayers)
	mux.HandleFunc("PUT /api/layers", s.handlePutLayers)
	mux.HandleFunc("POST /api/layers/{name}", s.handleAddLayer)
	mux.HandleFunc("DELETE /api/layers/{name}", s.handleRemoveLayer)
	mux.HandleFunc("POST /api/emphasis", s.handleEmphasize)
	mux.HandleFunc("DELETE /api/emphasis", s.handleResetEmphasis)

	if len(cfg.allowedOrigins) > 0 {
		s.httpServer.Handler = cors.Handler(cors.Options{
			AllowedOrigins: cfg.allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			ExposedHeaders: []string{fingerprintHeader},
			MaxAge:         300,
		})(mux)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
