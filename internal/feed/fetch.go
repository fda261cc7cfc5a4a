package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/sightings-map/internal/domain"
	"github.com/couchcryptid/sightings-map/internal/observability"
)

// maxFeedBytes bounds a single feed body.
const maxFeedBytes = 256 << 20

// Fetcher reads raw feed bodies from http(s) URLs, file:// URLs or plain
// paths.
type Fetcher struct {
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewFetcher creates a fetcher whose HTTP requests time out after timeout.
func NewFetcher(timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
		logger:     logger,
	}
}

// Fetch returns the body at location. Failures are returned as
// *domain.FetchError for source.
func (f *Fetcher) Fetch(ctx context.Context, source domain.Source, location string) ([]byte, error) {
	start := time.Now()
	body, err := f.fetch(ctx, location)
	f.metrics.FeedFetchDuration.WithLabelValues(string(source)).Observe(time.Since(start).Seconds())
	if err != nil {
		f.metrics.FeedFetches.WithLabelValues(string(source), "error").Inc()
		return nil, &domain.FetchError{Source: source, Err: err}
	}
	f.metrics.FeedFetches.WithLabelValues(string(source), "success").Inc()
	f.logger.Debug("feed fetched", "source", source, "location", location, "bytes", len(body))
	return body, nil
}

func (f *Fetcher) fetch(ctx context.Context, location string) ([]byte, error) {
	switch {
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return f.get(ctx, location)
	case strings.HasPrefix(location, "file://"):
		u, err := url.Parse(location)
		if err != nil {
			return nil, fmt.Errorf("parse location: %w", err)
		}
		return readFile(u.Path)
	default:
		return readFile(location)
	}
}

func (f *Fetcher) get(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("feed server error: status %d: %s", resp.StatusCode, body)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func readFile(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.New("empty feed path")
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feed file: %w", err)
	}
	return body, nil
}
