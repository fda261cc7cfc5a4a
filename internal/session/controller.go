// Package session owns the per-session map state: the loaded feeds, the
// current filter, layer visibility and hover emphasis. Every change rebuilds
// the derived view from scratch.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/couchcryptid/sightings-map/internal/domain"
	"github.com/couchcryptid/sightings-map/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNotReady is returned by view queries before the feeds have resolved.
	ErrNotReady = errors.New("session not ready")
	// ErrGeocodingDisabled is returned by Nearby when no geocoder is configured.
	ErrGeocodingDisabled = errors.New("geocoding disabled")
	// ErrUnknownRegion is returned for a region with no boundary feature.
	ErrUnknownRegion = errors.New("unknown region")
	// ErrGeocodeFailed wraps geocoder failures other than "no match".
	ErrGeocodeFailed = errors.New("geocoding failed")
)

// Loader fetches the three feeds. Failures must satisfy
// errors.Is(err, domain.ErrDataUnavailable).
type Loader interface {
	LoadRecords(ctx context.Context) ([]domain.Record, []domain.Note, error)
	LoadPopulation(ctx context.Context) ([]domain.PopulationEntry, []domain.Note, error)
	LoadBoundaries(ctx context.Context) ([]domain.Boundary, []domain.Note, error)
}

// SnapshotPublisher receives a snapshot after every recomputation.
type SnapshotPublisher interface {
	Publish(ctx context.Context, s Snapshot) error
}

// SourceStatus is the load state of one feed.
type SourceStatus string

const (
	StatusPending     SourceStatus = "pending"
	StatusReady       SourceStatus = "ready"
	StatusUnavailable SourceStatus = "unavailable"
)

// SourceState reports a feed's status and, when unavailable, why.
type SourceState struct {
	Source domain.Source `json:"source"`
	Status SourceStatus  `json:"status"`
	Error  string        `json:"error,omitempty"`
}

var sourceOrder = []domain.Source{domain.SourceRecords, domain.SourcePopulation, domain.SourceBoundaries}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock used for view timestamps. Defaults to the real clock.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithGeocoder enables nearby search.
func WithGeocoder(g domain.Geocoder) Option {
	return func(c *Controller) { c.geocoder = g }
}

// WithPublisher sends a snapshot to p after every recomputation.
func WithPublisher(p SnapshotPublisher) Option {
	return func(c *Controller) { c.publisher = p }
}

// WithLayers sets the layers visible at session start.
func WithLayers(names ...string) Option {
	return func(c *Controller) { c.initialLayers = names }
}

// WithReportURLTemplate sets the marker report link template.
func WithReportURLTemplate(template string) Option {
	return func(c *Controller) { c.reportURL = template }
}

// Controller is the session-scoped owner of all map state. It is safe for
// concurrent use; writers replace the whole derived view under the lock, so
// the last completed change wins.
type Controller struct {
	id            string
	loader        Loader
	tables        domain.Tables
	geocoder      domain.Geocoder
	publisher     SnapshotPublisher
	clock         clockwork.Clock
	reportURL     string
	initialLayers []string
	logger        *slog.Logger
	metrics       *observability.Metrics

	mu         sync.RWMutex
	loaded     bool
	sources    map[domain.Source]SourceState
	records    []domain.Record
	byID       map[string]int
	matched    []domain.Record
	boundaries *domain.BoundarySet
	population map[string]int64
	loadNotes  []domain.Note
	filter     domain.FilterState
	layers     *domain.LayerManager
	emphasis   domain.Emphasis
	view       *View
}

// New creates a controller for one session. Classification uses tables for
// both the map colours and the legend.
func New(loader Loader, tables domain.Tables, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) (*Controller, error) {
	c := &Controller{
		id:        uuid.NewString(),
		loader:    loader,
		tables:    tables,
		clock:     clockwork.NewRealClock(),
		reportURL: domain.DefaultReportURLTemplate,
		logger:    logger,
		metrics:   metrics,
		filter:    domain.DefaultFilter(),
		sources:   make(map[domain.Source]SourceState, len(sourceOrder)),
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, kind := range domain.StatLayers {
		if _, err := tables.Get(kind); err != nil {
			return nil, err
		}
	}
	layers, err := domain.NewLayerManager(c.initialLayers...)
	if err != nil {
		return nil, fmt.Errorf("initial layers: %w", err)
	}
	c.layers = layers
	for _, s := range sourceOrder {
		c.sources[s] = SourceState{Source: s, Status: StatusPending}
	}
	c.observeLayers(layers.State())
	c.logger = logger.With("session", c.id)
	return c, nil
}

// ID returns the session identifier.
func (c *Controller) ID() string {
	return c.id
}

// CheckReadiness returns nil once the feeds have resolved and the records
// feed is available.
func (c *Controller) CheckReadiness(_ context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded {
		return errors.New("feeds have not been loaded yet")
	}
	if st := c.sources[domain.SourceRecords]; st.Status != StatusReady {
		return fmt.Errorf("records feed %s: %s", st.Status, st.Error)
	}
	return nil
}

type loadResult struct {
	records    []domain.Record
	population []domain.PopulationEntry
	boundaries []domain.Boundary
	notes      [3][]domain.Note
	errs       [3]error
}

// Load fetches the three feeds concurrently and waits for all of them before
// classifying anything. A failed feed is marked unavailable; only a failed
// records feed makes Load return an error. Calling Load again replaces the
// session data.
func (c *Controller) Load(ctx context.Context) error {
	var res loadResult
	var g errgroup.Group
	g.Go(func() error {
		res.records, res.notes[0], res.errs[0] = c.loader.LoadRecords(ctx)
		return res.errs[0]
	})
	g.Go(func() error {
		res.population, res.notes[1], res.errs[1] = c.loader.LoadPopulation(ctx)
		return res.errs[1]
	})
	g.Go(func() error {
		res.boundaries, res.notes[2], res.errs[2] = c.loader.LoadBoundaries(ctx)
		return res.errs[2]
	})
	if err := g.Wait(); err != nil {
		c.logger.Error("feed load incomplete", "error", err)
	}

	c.mu.Lock()
	snap := c.applyLoad(res)
	c.mu.Unlock()

	c.publish(ctx, snap)

	if res.errs[0] != nil {
		return fmt.Errorf("load session: %w", res.errs[0])
	}
	return nil
}

// applyLoad installs the load results. Caller holds the write lock.
func (c *Controller) applyLoad(res loadResult) *Snapshot {
	var notes []domain.Note
	for i, s := range sourceOrder {
		st := SourceState{Source: s, Status: StatusReady}
		if err := res.errs[i]; err != nil {
			st = SourceState{Source: s, Status: StatusUnavailable, Error: err.Error()}
			c.logger.Error("feed unavailable", "source", s, "error", err)
		}
		c.sources[s] = st
		notes = append(notes, res.notes[i]...)
	}

	c.records = res.records
	c.byID = make(map[string]int, len(res.records))
	for i, r := range res.records {
		if _, dup := c.byID[r.ID]; !dup {
			c.byID[r.ID] = i
		}
	}

	var divergence []domain.Note
	c.population, divergence = domain.BuildPopulationIndex(res.population, res.records)
	notes = append(notes, divergence...)

	c.boundaries, c.matched = nil, nil
	if res.errs[2] == nil {
		c.boundaries = domain.NewBoundarySet(res.boundaries)
		var matchNotes []domain.Note
		c.matched, matchNotes = c.boundaries.Match(res.records)
		notes = append(notes, matchNotes...)
		if res.errs[1] == nil {
			notes = append(notes, domain.MissingPopulationNotes(domain.Aggregate(c.matched, c.population))...)
		}
	}

	c.loadNotes = notes
	for _, n := range notes {
		c.metrics.DataQualityNotes.WithLabelValues(string(n.Kind)).Inc()
		c.logger.Warn("data quality", "kind", n.Kind, "region", n.RegionKey, "record", n.RecordID, "detail", n.Detail)
	}

	c.loaded = true
	if c.sources[domain.SourceRecords].Status == StatusReady {
		c.metrics.SessionReady.Set(1)
	} else {
		c.metrics.SessionReady.Set(0)
	}
	c.logger.Info("session loaded",
		"records", len(c.records),
		"matched", len(c.matched),
		"regions_with_population", len(c.population),
		"notes", len(notes),
	)
	return c.recompute("load")
}

// recompute rebuilds the view from the loaded data and the current filter.
// Caller holds the write lock. It returns the snapshot to publish, or nil
// when the records feed is unavailable.
func (c *Controller) recompute(trigger string) *Snapshot {
	if c.sources[domain.SourceRecords].Status != StatusReady {
		c.view = nil
		return nil
	}
	start := c.clock.Now()

	v := &View{
		Filter:      c.filter,
		Fingerprint: c.filter.Fingerprint(),
		Records:     domain.ApplyFilters(c.records, c.filter),
	}
	if c.boundaries != nil {
		v.Stats = domain.Aggregate(domain.ApplyFilters(c.matched, c.filter), c.population)
	}
	v.ComputedAt = c.clock.Now()
	c.view = v

	c.metrics.Recomputes.WithLabelValues(trigger).Inc()
	c.metrics.RecomputeDuration.Observe(c.clock.Since(start).Seconds())
	c.logger.Debug("view recomputed", "trigger", trigger, "records", len(v.Records), "regions", len(v.Stats))

	if c.publisher == nil {
		return nil
	}
	return c.snapshot(trigger, v)
}

func (c *Controller) publish(ctx context.Context, s *Snapshot) {
	if s == nil || c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(ctx, *s); err != nil {
		c.metrics.SnapshotPublishErrors.Inc()
		c.logger.Warn("snapshot publish failed", "error", err, "fingerprint", s.Fingerprint)
		return
	}
	c.metrics.SnapshotsPublished.Inc()
}

// OnFilterChange replaces the filter and rebuilds the view. An invalid
// filter is rejected and the previous one stays in effect. A filter set
// before Load is applied once the feeds resolve.
func (c *Controller) OnFilterChange(ctx context.Context, f domain.FilterState) (domain.FilterState, error) {
	f = f.Normalize()
	if err := f.Validate(); err != nil {
		return c.Filter(), err
	}

	c.mu.Lock()
	c.filter = f
	var snap *Snapshot
	if c.loaded {
		snap = c.recompute("filter")
	}
	c.mu.Unlock()

	c.logger.Info("filter changed", "fingerprint", f.Fingerprint(), "category", f.Category, "timeframe", f.Timeframe, "region", f.Region)
	c.publish(ctx, snap)
	return f, nil
}

// Filter returns the filter in effect.
func (c *Controller) Filter() domain.FilterState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filter
}

// OnLayerVisibilityChange replaces the set of visible layers with the one
// reported by the map's layer control.
func (c *Controller) OnLayerVisibilityChange(visible []string) (domain.LayerState, error) {
	return c.changeLayers(func(m *domain.LayerManager) (domain.LayerState, error) {
		return m.SetVisible(visible)
	})
}

// AddLayer marks one layer visible.
func (c *Controller) AddLayer(name string) (domain.LayerState, error) {
	return c.changeLayers(func(m *domain.LayerManager) (domain.LayerState, error) {
		return m.Add(name)
	})
}

// RemoveLayer hides one layer.
func (c *Controller) RemoveLayer(name string) (domain.LayerState, error) {
	return c.changeLayers(func(m *domain.LayerManager) (domain.LayerState, error) {
		return m.Remove(name)
	})
}

func (c *Controller) changeLayers(change func(*domain.LayerManager) (domain.LayerState, error)) (domain.LayerState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := change(c.layers)
	if err != nil {
		return state, err
	}
	if c.emphasis.Active() && !layerVisible(state, c.emphasis.Layer) {
		c.emphasis = c.emphasis.Reset()
	}
	c.observeLayers(state)
	c.logger.Debug("layers changed", "mode", state.Mode, "visible", state.Visible)
	return state, nil
}

func (c *Controller) observeLayers(state domain.LayerState) {
	c.metrics.LayerTransitions.WithLabelValues(string(state.Mode)).Inc()
	if state.LegendVisible() {
		c.metrics.LegendVisible.Set(1)
	} else {
		c.metrics.LegendVisible.Set(0)
	}
}

func layerVisible(state domain.LayerState, kind domain.LayerKind) bool {
	for _, k := range state.StatLayers {
		if k == kind {
			return true
		}
	}
	return false
}

// Layers returns the current layer state.
func (c *Controller) Layers() domain.LayerState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.layers.State()
}

// Emphasize highlights region on layer and dims its siblings on that layer.
func (c *Controller) Emphasize(layer, region string) (domain.Emphasis, error) {
	kind, err := parseStatLayer(layer)
	if err != nil {
		return domain.Emphasis{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.regionViewLocked(); err != nil {
		return c.emphasis, err
	}
	if !c.boundaries.Has(region) {
		return c.emphasis, fmt.Errorf("%w: %q", ErrUnknownRegion, region)
	}
	c.emphasis = c.emphasis.Emphasize(kind, region)
	return c.emphasis, nil
}

// ResetEmphasis clears any hover emphasis.
func (c *Controller) ResetEmphasis() domain.Emphasis {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emphasis = c.emphasis.Reset()
	return c.emphasis
}

// Emphasis returns the current hover emphasis.
func (c *Controller) Emphasis() domain.Emphasis {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.emphasis
}

// StyleFor returns the outline style of region on layer.
func (c *Controller) StyleFor(layer domain.LayerKind, region string) domain.RegionStyle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.emphasis.StyleFor(layer, region)
}

func parseStatLayer(name string) (domain.LayerKind, error) {
	kind, ok := domain.ParseLayerKind(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownLayer, name)
	}
	return kind, nil
}
