package http_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	httpadapter "github.com/couchcryptid/sightings-map/internal/adapter/http"
	"github.com/couchcryptid/sightings-map/internal/domain"
	"github.com/couchcryptid/sightings-map/internal/observability"
	"github.com/couchcryptid/sightings-map/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

type stubLoader struct {
	boundariesErr error
}

func (stubLoader) LoadRecords(context.Context) ([]domain.Record, []domain.Note, error) {
	lat, lon := 30.0, -100.0
	return []domain.Record{
		{ID: "1", Category: domain.ClassA, RegionKey: "Texas", Year: 2009, Month: 9, Latitude: &lat, Longitude: &lon},
		{ID: "2", Category: domain.ClassB, RegionKey: "Texas", Year: 2010, Month: 1},
		{ID: "3", Category: domain.ClassA, RegionKey: "Ohio", Year: 2009, Month: 10},
	}, nil, nil
}

func (stubLoader) LoadPopulation(context.Context) ([]domain.PopulationEntry, []domain.Note, error) {
	return []domain.PopulationEntry{{RegionKey: "Texas", Population: 30000000}}, nil, nil
}

func (l stubLoader) LoadBoundaries(context.Context) ([]domain.Boundary, []domain.Note, error) {
	if l.boundariesErr != nil {
		return nil, nil, l.boundariesErr
	}
	texas := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{{-106, 26}, {-94, 26}, {-94, 36}, {-106, 36}, {-106, 26}}})
	ohio := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{{-85, 38}, {-80, 38}, {-80, 42}, {-85, 42}, {-85, 38}}})
	return []domain.Boundary{{Name: "Texas", Geometry: texas}, {Name: "Ohio", Geometry: ohio}}, nil, nil
}

func newController(t *testing.T, loader session.Loader, load bool) *session.Controller {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := session.New(loader, domain.DefaultTables(), logger, observability.NewMetricsForTesting(), session.WithLayers("by_count"))
	require.NoError(t, err)
	if load {
		require.NoError(t, c.Load(context.Background()))
	}
	return c
}

func newTestServer(t *testing.T, load bool) *httpadapter.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httpadapter.NewServer(":0", newController(t, stubLoader{}, load), logger)
}

func do(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(method, path, r))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthzReturns200(t *testing.T) {
	rec := do(t, newTestServer(t, false), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, do(t, newTestServer(t, false), http.MethodGet, "/readyz", "").Code)
	assert.Equal(t, http.StatusOK, do(t, newTestServer(t, true), http.MethodGet, "/readyz", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(t, newTestServer(t, false), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestNotReadyReturns503(t *testing.T) {
	srv := newTestServer(t, false)
	for _, path := range []string{"/api/regions", "/api/markers", "/api/classify/by_count/Texas", "/api/summary"} {
		rec := do(t, srv, http.MethodGet, path, "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
		body := decode[map[string]string](t, rec)
		assert.Contains(t, body["error"], "not ready", path)
	}
}

func TestRegions(t *testing.T) {
	srv := newTestServer(t, true)

	rec := do(t, srv, http.MethodGet, "/api/regions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	regions := decode[[]domain.RegionStat](t, rec)
	require.Len(t, regions, 2)
	assert.Equal(t, "Ohio", regions[0].RegionKey)
	assert.Nil(t, regions[0].Density)
	assert.Equal(t, 2, regions[1].RawCount)

	rec = do(t, srv, http.MethodGet, "/api/regions/Texas", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[domain.RegionStat](t, rec).RawCount)

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/regions/Atlantis", "").Code)
}

func TestClassify(t *testing.T) {
	srv := newTestServer(t, true)

	tests := []struct {
		path       string
		wantStatus int
		wantColor  string
	}{
		{"/api/classify/by_count/Texas", http.StatusOK, "#ffeda0"},
		{"/api/classify/by_density/Ohio", http.StatusOK, domain.DefaultNoDataColor},
		{"/api/classify/heatmap/Texas", http.StatusBadRequest, ""},
		{"/api/classify/by_count/Atlantis", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(t, srv, http.MethodGet, tt.path, "")
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantColor != "" {
				assert.Equal(t, tt.wantColor, decode[map[string]string](t, rec)["color"])
			}
		})
	}
}

func TestChoropleth(t *testing.T) {
	srv := newTestServer(t, true)

	rec := do(t, srv, http.MethodGet, "/api/choropleth/by_count", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.DefaultFilter().Fingerprint(), rec.Header().Get("X-Filter-Fingerprint"))
	c := decode[session.Choropleth](t, rec)
	assert.Len(t, c.Regions, 2)

	rec = do(t, srv, http.MethodPost, "/api/emphasis", `{"layer":"by_count","region":"Texas"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	c = decode[session.Choropleth](t, do(t, srv, http.MethodGet, "/api/choropleth/by_count", ""))
	for _, r := range c.Regions {
		if r.RegionKey == "Texas" {
			assert.Equal(t, domain.HighlightStyle, r.Style)
		} else {
			assert.Equal(t, domain.DimmedStyle, r.Style)
		}
	}

	rec = do(t, srv, http.MethodDelete, "/api/emphasis", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodPost, "/api/emphasis", `{"layer":"by_count","region":"Atlantis"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/api/emphasis", `{"bogus":1}`).Code)
}

func TestFilterRoundTrip(t *testing.T) {
	srv := newTestServer(t, true)

	rec := do(t, srv, http.MethodPut, "/api/filter", `{"category":"a","timeframe":"custom","start":"2009-09","end":"2009-11"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	applied := decode[domain.FilterState](t, rec)
	assert.Equal(t, domain.ClassA, applied.Category)
	assert.Equal(t, domain.TimeframeCustom, applied.Timeframe)

	got := decode[domain.FilterState](t, do(t, srv, http.MethodGet, "/api/filter", ""))
	assert.Equal(t, applied, got)

	regions := decode[[]domain.RegionStat](t, do(t, srv, http.MethodGet, "/api/regions", ""))
	counts := map[string]int{}
	for _, r := range regions {
		counts[r.RegionKey] = r.RawCount
	}
	assert.Equal(t, map[string]int{"Ohio": 1, "Texas": 1}, counts)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPut, "/api/filter", `{"category":"D"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPut, "/api/filter", `not json`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPut, "/api/filter", `{"start":"2009-13"}`).Code)
}

func TestLayersAndLegend(t *testing.T) {
	srv := newTestServer(t, true)

	type legendResp struct {
		Visible bool           `json:"visible"`
		Legend  *domain.Legend `json:"legend"`
	}

	lr := decode[legendResp](t, do(t, srv, http.MethodGet, "/api/legend", ""))
	require.True(t, lr.Visible)
	assert.Equal(t, domain.LayerByCount, lr.Legend.Layer)
	assert.Equal(t, "Total Reports", lr.Legend.Title)

	rec := do(t, srv, http.MethodPost, "/api/layers/by_density", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.MultipleStatLayers, decode[domain.LayerState](t, rec).Mode)

	lr = decode[legendResp](t, do(t, srv, http.MethodGet, "/api/legend", ""))
	assert.False(t, lr.Visible)
	assert.Nil(t, lr.Legend)

	rec = do(t, srv, http.MethodDelete, "/api/layers/by_count", "")
	require.Equal(t, http.StatusOK, rec.Code)
	lr = decode[legendResp](t, do(t, srv, http.MethodGet, "/api/legend", ""))
	require.True(t, lr.Visible)
	assert.Equal(t, domain.LayerByDensity, lr.Legend.Layer)

	rec = do(t, srv, http.MethodPut, "/api/layers", `{"visible":["markers"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.NoStatLayer, decode[domain.LayerState](t, rec).Mode)
	assert.Equal(t, []string{"markers"}, decode[domain.LayerState](t, do(t, srv, http.MethodGet, "/api/layers", "")).Visible)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/api/layers/heatmap", "").Code)

	rec = do(t, srv, http.MethodGet, "/api/legend/by_count", "")
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]domain.LegendEntry](t, rec)
	require.Len(t, entries, 8)
	assert.Equal(t, "1,000+", entries[7].RangeLabel)
}

func TestMarkersAndReports(t *testing.T) {
	srv := newTestServer(t, true)

	markers := decode[[]domain.Marker](t, do(t, srv, http.MethodGet, "/api/markers", ""))
	require.Len(t, markers, 1)
	assert.Equal(t, "green", markers[0].Color)
	assert.Equal(t, "https://bfro.net/GDB/show_report.asp?id=1", markers[0].ReportURL)

	rec := do(t, srv, http.MethodGet, "/api/reports/3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ohio", decode[domain.Record](t, rec).RegionKey)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/reports/99", "").Code)

	summary := decode[domain.Summary](t, do(t, srv, http.MethodGet, "/api/summary", ""))
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, []int{2010, 2009}, summary.Years)

	sources := decode[[]session.SourceState](t, do(t, srv, http.MethodGet, "/api/sources", ""))
	require.Len(t, sources, 3)
	for _, s := range sources {
		assert.Equal(t, session.StatusReady, s.Status)
	}

	notes := decode[[]domain.Note](t, do(t, srv, http.MethodGet, "/api/notes", ""))
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NoteMissingPopulation, notes[0].Kind)
}

func TestLocateAndNearby(t *testing.T) {
	srv := newTestServer(t, true)

	rec := do(t, srv, http.MethodGet, "/api/locate?lat=30&lon=-100", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Texas", decode[map[string]any](t, rec)["region"])

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/locate?lat=0&lon=0", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/locate?lat=91&lon=0", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/locate?lat=abc&lon=0", "").Code)

	assert.Equal(t, http.StatusServiceUnavailable, do(t, srv, http.MethodGet, "/api/nearby?location=Austin", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/nearby?location=Austin&radius=-1", "").Code)
}

func TestBoundariesUnavailable(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	loader := stubLoader{boundariesErr: &domain.FetchError{Source: domain.SourceBoundaries, Err: io.ErrUnexpectedEOF}}
	srv := httpadapter.NewServer(":0", newController(t, loader, true), logger)

	assert.Equal(t, http.StatusServiceUnavailable, do(t, srv, http.MethodGet, "/api/choropleth/by_count", "").Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/markers", "").Code)
}

func TestServer_CORS(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := newController(t, stubLoader{}, true)

	t.Run("disabled by default", func(t *testing.T) {
		srv := httpadapter.NewServer(":0", c, logger)
		req := httptest.NewRequest(http.MethodGet, "/api/filter", nil)
		req.Header.Set("Origin", "https://map.example.com")
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("allowed origin", func(t *testing.T) {
		srv := httpadapter.NewServer(":0", c, logger, httpadapter.WithAllowedOrigins("https://map.example.com"))
		req := httptest.NewRequest(http.MethodGet, "/api/choropleth/by_count", nil)
		req.Header.Set("Origin", "https://map.example.com")
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://map.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "X-Filter-Fingerprint")
	})

	t.Run("preflight", func(t *testing.T) {
		srv := httpadapter.NewServer(":0", c, logger, httpadapter.WithAllowedOrigins("https://map.example.com"))
		req := httptest.NewRequest(http.MethodOptions, "/api/filter", nil)
		req.Header.Set("Origin", "https://map.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPut)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		assert.Equal(t, "https://map.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPut)
	})
}
