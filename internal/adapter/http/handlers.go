package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/couchcryptid/sightings-map/internal/domain"
	"github.com/couchcryptid/sightings-map/internal/session"
)

const (
	maxBodyBytes      = 1 << 20
	fingerprintHeader = "X-Filter-Fingerprint"
)

var errBadRequest = errors.New("bad request")

func (s *Server) handleRegions(w http.ResponseWriter, _ *http.Request) {
	regions, err := s.svc.Regions()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, regions)
}

func (s *Server) handleRegion(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	stat, ok, err := s.svc.GetRegionStat(key)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		s.writeError(w, fmt.Errorf("%w: %q", session.ErrUnknownRegion, key))
		return
	}
	writeJSON(w, http.StatusOK, stat)
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	key, layer := r.PathValue("key"), r.PathValue("layer")
	color, err := s.svc.Classify(key, layer)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"region": key, "layer": layer, "color": color})
}

func (s *Server) handleChoropleth(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.Choropleth(r.PathValue("layer"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set(fingerprintHeader, c.Fingerprint)
	writeJSON(w, http.StatusOK, c)
}

type activeLegendResponse struct {
	Visible bool           `json:"visible"`
	Legend  *domain.Legend `json:"legend,omitempty"`
}

func (s *Server) handleActiveLegend(w http.ResponseWriter, _ *http.Request) {
	legend, shown, err := s.svc.ActiveLegend()
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := activeLegendResponse{Visible: shown}
	if shown {
		resp.Legend = &legend
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLegend(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.GetLegendEntries(r.PathValue("layer"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleMarkers(w http.ResponseWriter, _ *http.Request) {
	markers, err := s.svc.Markers()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, markers)
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	summary, err := s.svc.Summary()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleNotes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Notes())
}

func (s *Server) handleSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Sources())
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, ok, err := s.svc.Record(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("report %q not found", id)})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var radius float64
	if raw := q.Get("radius"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			s.writeError(w, fmt.Errorf("%w: invalid radius %q", errBadRequest, raw))
			return
		}
		radius = v
	}
	res, err := s.svc.Nearby(r.Context(), q.Get("location"), radius)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	lat, err := coordParam(r, "lat", 90)
	if err != nil {
		s.writeError(w, err)
		return
	}
	lon, err := coordParam(r, "lon", 180)
	if err != nil {
		s.writeError(w, err)
		return
	}
	name, ok, err := s.svc.Locate(lat, lon)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no region contains the point"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"region": name, "latitude": lat, "longitude": lon})
}

func coordParam(r *http.Request, name string, limit float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < -limit || v > limit {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, raw)
	}
	return v, nil
}

func (s *Server) handleGetFilter(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Filter())
}

func (s *Server) handlePutFilter(w http.ResponseWriter, r *http.Request) {
	var f domain.FilterState
	if err := decodeBody(w, r, &f); err != nil {
		s.writeError(w, err)
		return
	}
	applied, err := s.svc.OnFilterChange(r.Context(), f)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, applied)
}

type layersRequest struct {
	Visible []string `json:"visible"`
}

func (s *Server) handleGetLayers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Layers())
}

func (s *Server) handlePutLayers(w http.ResponseWriter, r *http.Request) {
	var req layersRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeLayerState(w)(s.svc.OnLayerVisibilityChange(req.Visible))
}

func (s *Server) handleAddLayer(w http.ResponseWriter, r *http.Request) {
	s.writeLayerState(w)(s.svc.AddLayer(r.PathValue("name")))
}

func (s *Server) handleRemoveLayer(w http.ResponseWriter, r *http.Request) {
	s.writeLayerState(w)(s.svc.RemoveLayer(r.PathValue("name")))
}

func (s *Server) writeLayerState(w http.ResponseWriter) func(domain.LayerState, error) {
	return func(state domain.LayerState, err error) {
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func (s *Server) handleEmphasize(w http.ResponseWriter, r *http.Request) {
	var req domain.Emphasis
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	e, err := s.svc.Emphasize(string(req.Layer), req.Region)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleResetEmphasis(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.ResetEmphasis())
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %v", errBadRequest, err)
	}
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, domain.ErrInvalidFilter),
		errors.Is(err, domain.ErrUnknownLayer):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrUnknownRegion),
		errors.Is(err, domain.ErrPlaceNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNotReady),
		errors.Is(err, session.ErrGeocodingDisabled),
		errors.Is(err, domain.ErrDataUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrGeocodeFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
