// Package feed loads the records, population and boundary feeds and decodes
// them into domain values.
package feed

import (
	"context"
	"log/slog"
	"strings"

	"github.com/couchcryptid/sightings-map/internal/domain"
	"github.com/couchcryptid/sightings-map/internal/observability"
)

// Sources names where each feed is read from.
type Sources struct {
	RecordsURL      string
	PopulationURL   string
	PopulationTable string
	BoundariesURL   string
}

// Loader fetches and decodes the three feeds. Every error it returns is a
// *domain.FetchError, so errors.Is(err, domain.ErrDataUnavailable) holds.
type Loader struct {
	fetcher *Fetcher
	sources Sources
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewLoader creates a loader over the given sources.
func NewLoader(fetcher *Fetcher, sources Sources, metrics *observability.Metrics, logger *slog.Logger) *Loader {
	return &Loader{fetcher: fetcher, sources: sources, metrics: metrics, logger: logger}
}

// LoadRecords fetches and decodes the records feed.
func (l *Loader) LoadRecords(ctx context.Context) ([]domain.Record, []domain.Note, error) {
	body, err := l.fetcher.Fetch(ctx, domain.SourceRecords, l.sources.RecordsURL)
	if err != nil {
		return nil, nil, err
	}
	records, notes, err := DecodeRecords(body)
	if err != nil {
		return nil, nil, l.decodeFailed(domain.SourceRecords, err)
	}
	l.metrics.RecordsLoaded.Set(float64(len(records)))
	l.logger.Info("records loaded", "count", len(records), "notes", len(notes))
	return records, notes, nil
}

// LoadPopulation fetches the population feed, from JSON or SQLite.
func (l *Loader) LoadPopulation(ctx context.Context) ([]domain.PopulationEntry, []domain.Note, error) {
	if IsSQLite(l.sources.PopulationURL) {
		path := strings.TrimPrefix(l.sources.PopulationURL, SQLiteScheme)
		entries, notes, err := LoadSQLitePopulation(ctx, path, l.sources.PopulationTable)
		if err != nil {
			l.metrics.FeedFetches.WithLabelValues(string(domain.SourcePopulation), "error").Inc()
			return nil, nil, &domain.FetchError{Source: domain.SourcePopulation, Err: err}
		}
		l.metrics.FeedFetches.WithLabelValues(string(domain.SourcePopulation), "success").Inc()
		l.logger.Info("population loaded", "backend", "sqlite", "regions", len(entries))
		return entries, notes, nil
	}

	body, err := l.fetcher.Fetch(ctx, domain.SourcePopulation, l.sources.PopulationURL)
	if err != nil {
		return nil, nil, err
	}
	entries, notes, err := DecodePopulation(body)
	if err != nil {
		return nil, nil, l.decodeFailed(domain.SourcePopulation, err)
	}
	l.logger.Info("population loaded", "backend", "json", "regions", len(entries))
	return entries, notes, nil
}

// LoadBoundaries fetches and decodes the GeoJSON boundary feed.
func (l *Loader) LoadBoundaries(ctx context.Context) ([]domain.Boundary, []domain.Note, error) {
	body, err := l.fetcher.Fetch(ctx, domain.SourceBoundaries, l.sources.BoundariesURL)
	if err != nil {
		return nil, nil, err
	}
	boundaries, notes, err := DecodeBoundaries(body)
	if err != nil {
		return nil, nil, l.decodeFailed(domain.SourceBoundaries, err)
	}
	l.logger.Info("boundaries loaded", "features", len(boundaries))
	return boundaries, notes, nil
}

func (l *Loader) decodeFailed(source domain.Source, err error) error {
	l.metrics.FeedFetches.WithLabelValues(string(source), "decode_error").Inc()
	return &domain.FetchError{Source: source, Err: err}
}
