package mapbox

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/sightings-map/internal/domain"
	"github.com/couchcryptid/sightings-map/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const (
	testToken         = "test-token"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func testClient(baseURL string, metrics *observability.Metrics) *Client {
	return &Client{
		token:      testToken,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		metrics:    metrics,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestClient_Geocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Portland, OR.json", r.URL.Path)
		assert.Equal(t, testToken, r.URL.Query().Get("access_token"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "us", r.URL.Query().Get("country"))

		w.Header().Set(headerContentType, contentTypeJSON)
		_ = json.NewEncoder(w).Encode(response{
			Features: []feature{{
				Center:    []float64{-122.6765, 45.5231},
				PlaceName: "Portland, Oregon, United States",
				Relevance: 0.98,
			}},
		})
	}))
	defer srv.Close()

	metrics := testMetrics()
	c := testClient(srv.URL, metrics)
	place, err := c.Geocode(context.Background(), "Portland, OR")
	require.NoError(t, err)

	assert.Equal(t, domain.Place{
		Name:      "Portland, Oregon, United States",
		Latitude:  45.5231,
		Longitude: -122.6765,
		Relevance: 0.98,
	}, place)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.GeocodeRequests.WithLabelValues("success")), 0)
}

func TestClient_Geocode_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"features":[]}`))
	}))
	defer srv.Close()

	metrics := testMetrics()
	place, err := testClient(srv.URL, metrics).Geocode(context.Background(), "Nowhere Special")
	require.NoError(t, err)
	assert.False(t, place.Found())
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.GeocodeRequests.WithLabelValues("empty")), 0)
}

func TestClient_Geocode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr string
	}{
		{
			name: "api error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"message":"Not Authorized - Invalid Token"}`))
			},
			wantErr: "status 401",
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{not json`))
			},
			wantErr: "decode response",
		},
		{
			name: "feature without center",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"features":[{"place_name":"Somewhere","center":[]}]}`))
			},
			wantErr: "has no center",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			metrics := testMetrics()
			_, err := testClient(srv.URL, metrics).Geocode(context.Background(), "Austin")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.GeocodeRequests.WithLabelValues("error")), 0)
		})
	}
}

func TestClient_Geocode_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"features":[]}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(srv.URL, testMetrics()).Geocode(ctx, "Austin")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_Geocode_RateLimited(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"features":[]}`))
	}))
	defer srv.Close()

	metrics := testMetrics()
	c := testClient(srv.URL, metrics)
	c.limiter = rate.NewLimiter(rate.Every(time.Hour), 1)

	_, err := c.Geocode(context.Background(), "Austin")
	require.NoError(t, err)

	// The single token is spent; the next call cannot be admitted before the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Geocode(ctx, "Dallas")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
	assert.Equal(t, int32(1), calls.Load())
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.GeocodeRequests.WithLabelValues("error")), 0)
}

func TestNewClient(t *testing.T) {
	c := NewClient(testToken, 3*time.Second, 5, testMetrics(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, defaultBaseURL, c.baseURL)
	assert.Equal(t, 3*time.Second, c.httpClient.Timeout)
	assert.InDelta(t, 5.0, float64(c.limiter.Limit()), 0)
	assert.Equal(t, 5, c.limiter.Burst())
}
