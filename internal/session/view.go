package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/sightings-map/internal/domain"
)

// View is the derived state for one filter. It is built whole by each
// recomputation and never modified afterwards.
type View struct {
	Filter      domain.FilterState
	Fingerprint string
	ComputedAt  time.Time
	// Records is the filtered record list, used for markers and summaries.
	Records []domain.Record
	// Stats holds per-region statistics over filtered records whose region
	// has a boundary feature. Nil when the boundary feed is unavailable.
	Stats map[string]domain.RegionStat
}

// RegionColors is a region statistic with its colour on every statistical
// layer.
type RegionColors struct {
	domain.RegionStat
	Colors map[domain.LayerKind]string `json:"colors"`
}

// Snapshot is the published form of a recomputed view.
type Snapshot struct {
	SessionID   string             `json:"session_id"`
	Trigger     string             `json:"trigger"`
	Filter      domain.FilterState `json:"filter"`
	Fingerprint string             `json:"fingerprint"`
	ComputedAt  time.Time          `json:"computed_at"`
	Records     int                `json:"records"`
	Regions     []RegionColors     `json:"regions"`
}

// ChoroplethRegion is one boundary feature as painted on a statistical layer.
type ChoroplethRegion struct {
	domain.RegionStat
	Color string             `json:"color"`
	Style domain.RegionStyle `json:"style"`
}

// Choropleth is the full paint list for one layer.
type Choropleth struct {
	Layer       domain.LayerKind   `json:"layer"`
	Fingerprint string             `json:"fingerprint"`
	Regions     []ChoroplethRegion `json:"regions"`
}

// NearbyResult is the outcome of a nearby search.
type NearbyResult struct {
	Place    domain.Place    `json:"place"`
	RadiusKM float64         `json:"radius_km"`
	Reports  []domain.Nearby `json:"reports"`
}

func (c *Controller) snapshot(trigger string, v *View) *Snapshot {
	s := &Snapshot{
		SessionID:   c.id,
		Trigger:     trigger,
		Filter:      v.Filter,
		Fingerprint: v.Fingerprint,
		ComputedAt:  v.ComputedAt,
		Records:     len(v.Records),
		Regions:     make([]RegionColors, 0, len(v.Stats)),
	}
	for _, region := range domain.SortedRegions(v.Stats) {
		stat := v.Stats[region]
		rc := RegionColors{RegionStat: stat, Colors: make(map[domain.LayerKind]string, len(domain.StatLayers))}
		for _, kind := range domain.StatLayers {
			rc.Colors[kind] = domain.ClassifyStat(stat, c.tables[kind])
		}
		s.Regions = append(s.Regions, rc)
	}
	return s
}

// currentView returns the view or why there is none. Caller holds the lock.
func (c *Controller) currentView() (*View, error) {
	if !c.loaded {
		return nil, ErrNotReady
	}
	if c.view == nil {
		st := c.sources[domain.SourceRecords]
		return nil, &domain.FetchError{Source: domain.SourceRecords, Err: fmt.Errorf("source %s: %s", st.Status, st.Error)}
	}
	return c.view, nil
}

// regionViewLocked is currentView for queries that need boundary features.
func (c *Controller) regionViewLocked() (*View, error) {
	v, err := c.currentView()
	if err != nil {
		return nil, err
	}
	if c.boundaries == nil {
		st := c.sources[domain.SourceBoundaries]
		return nil, &domain.FetchError{Source: domain.SourceBoundaries, Err: fmt.Errorf("source %s: %s", st.Status, st.Error)}
	}
	return v, nil
}

// View returns the current derived view.
func (c *Controller) View() (*View, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentView()
}

// GetRegionStat returns the statistic of a region under the current filter.
// A region with a boundary feature but no reports has a zero count. The
// second result is false when the region has no boundary feature.
func (c *Controller) GetRegionStat(region string) (domain.RegionStat, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, err := c.regionViewLocked()
	if err != nil {
		return domain.RegionStat{}, false, err
	}
	if !c.boundaries.Has(region) {
		return domain.RegionStat{}, false, nil
	}
	return domain.StatFor(v.Stats, region, c.population), true, nil
}

// Regions returns the statistic of every boundary feature, by name.
func (c *Controller) Regions() ([]domain.RegionStat, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, err := c.regionViewLocked()
	if err != nil {
		return nil, err
	}
	names := c.boundaries.Names()
	out := make([]domain.RegionStat, 0, len(names))
	for _, name := range names {
		out = append(out, domain.StatFor(v.Stats, name, c.population))
	}
	return out, nil
}

// Classify returns the colour of region on a statistical layer.
func (c *Controller) Classify(region, layer string) (string, error) {
	kind, err := parseStatLayer(layer)
	if err != nil {
		return "", err
	}
	table, err := c.tables.Get(kind)
	if err != nil {
		return "", err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	v, err := c.regionViewLocked()
	if err != nil {
		return "", err
	}
	if !c.boundaries.Has(region) {
		return "", fmt.Errorf("%w: %q", ErrUnknownRegion, region)
	}
	return domain.ClassifyStat(domain.StatFor(v.Stats, region, c.population), table), nil
}

// Choropleth paints every boundary feature on a statistical layer, with the
// hover emphasis applied.
func (c *Controller) Choropleth(layer string) (Choropleth, error) {
	kind, err := parseStatLayer(layer)
	if err != nil {
		return Choropleth{}, err
	}
	table, err := c.tables.Get(kind)
	if err != nil {
		return Choropleth{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	v, err := c.regionViewLocked()
	if err != nil {
		return Choropleth{}, err
	}
	names := c.boundaries.Names()
	out := Choropleth{Layer: kind, Fingerprint: v.Fingerprint, Regions: make([]ChoroplethRegion, 0, len(names))}
	for _, name := range names {
		stat := domain.StatFor(v.Stats, name, c.population)
		out.Regions = append(out.Regions, ChoroplethRegion{
			RegionStat: stat,
			Color:      domain.ClassifyStat(stat, table),
			Style:      c.emphasis.StyleFor(kind, name),
		})
	}
	return out, nil
}

// GetLegendEntries returns the legend of a statistical layer, built from the
// same table used to classify it. It does not depend on the loaded data.
func (c *Controller) GetLegendEntries(layer string) ([]domain.LegendEntry, error) {
	kind, err := parseStatLayer(layer)
	if err != nil {
		return nil, err
	}
	table, err := c.tables.Get(kind)
	if err != nil {
		return nil, err
	}
	return domain.BuildLegend(table), nil
}

// ActiveLegend returns the legend for the sole visible statistical layer.
// The second result is false when the legend must be hidden.
func (c *Controller) ActiveLegend() (domain.Legend, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.LegendFor(c.layers.State(), c.tables)
}

// Markers returns point markers for the filtered records that have
// coordinates, including records whose region did not join.
func (c *Controller) Markers() ([]domain.Marker, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, err := c.currentView()
	if err != nil {
		return nil, err
	}
	return domain.BuildMarkers(v.Records, c.reportURL), nil
}

// Summary describes the filtered records. Density figures are included when
// region statistics are available.
func (c *Controller) Summary() (domain.Summary, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, err := c.currentView()
	if err != nil {
		return domain.Summary{}, err
	}
	s := domain.Summarize(v.Records)
	if v.Stats != nil {
		s.Density = domain.SummarizeDensity(v.Stats)
	}
	return s, nil
}

// Notes returns the data-quality notes raised while loading.
func (c *Controller) Notes() []domain.Note {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Note, len(c.loadNotes))
	copy(out, c.loadNotes)
	return out
}

// Sources returns the load status of every feed.
func (c *Controller) Sources() []SourceState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]SourceState, 0, len(sourceOrder))
	for _, s := range sourceOrder {
		out = append(out, c.sources[s])
	}
	return out
}

// Record looks up a report by ID regardless of the filter.
func (c *Controller) Record(id string) (domain.Record, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, err := c.currentView(); err != nil {
		return domain.Record{}, false, err
	}
	i, ok := c.byID[id]
	if !ok {
		return domain.Record{}, false, nil
	}
	return c.records[i], true, nil
}

// Nearby geocodes query and returns filtered reports within radiusKM of it,
// nearest first. A non-positive radius uses the default.
func (c *Controller) Nearby(ctx context.Context, query string, radiusKM float64) (NearbyResult, error) {
	if c.geocoder == nil {
		return NearbyResult{}, ErrGeocodingDisabled
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return NearbyResult{}, fmt.Errorf("%w: empty location", domain.ErrPlaceNotFound)
	}
	if radiusKM <= 0 {
		radiusKM = domain.DefaultNearbyRadiusKM
	}
	if err := c.ready(); err != nil {
		return NearbyResult{}, err
	}

	place, err := c.geocoder.Geocode(ctx, query)
	if err != nil {
		if errors.Is(err, domain.ErrPlaceNotFound) {
			return NearbyResult{}, err
		}
		return NearbyResult{}, fmt.Errorf("%w: %q: %w", ErrGeocodeFailed, query, err)
	}
	if !place.Found() {
		return NearbyResult{}, fmt.Errorf("%w: %q", domain.ErrPlaceNotFound, query)
	}

	c.mu.RLock()
	v, err := c.currentView()
	c.mu.RUnlock()
	if err != nil {
		return NearbyResult{}, err
	}
	return NearbyResult{
		Place:    place,
		RadiusKM: radiusKM,
		Reports:  domain.FindNearby(v.Records, place.Latitude, place.Longitude, radiusKM),
	}, nil
}

func (c *Controller) ready() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, err := c.currentView()
	return err
}

// Locate returns the boundary feature containing a point.
func (c *Controller) Locate(lat, lon float64) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, err := c.regionViewLocked(); err != nil {
		return "", false, err
	}
	name, ok := c.boundaries.Locate(lat, lon)
	return name, ok, nil
}
