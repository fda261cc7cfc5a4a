package domain

import (
	"fmt"
	"sort"
)

// PopulationEntry is one row of the population feed.
type PopulationEntry struct {
	RegionKey  string `json:"state"`
	Population int64  `json:"POPESTIMATE2023"`
}

// RegionStat holds the statistics for one region under the current filter.
// Density is nil when the population is unknown or zero.
type RegionStat struct {
	RegionKey  string   `json:"region"`
	RawCount   int      `json:"count"`
	Population *int64   `json:"population,omitempty"`
	Density    *float64 `json:"density,omitempty"`
}

// Value returns the statistic a layer classifies on. The second result is
// false when the statistic is undefined (no-data).
func (s RegionStat) Value(kind LayerKind) (float64, bool) {
	switch kind {
	case LayerByCount:
		return float64(s.RawCount), true
	case LayerByDensity:
		if s.Density == nil {
			return 0, false
		}
		return *s.Density, true
	default:
		return 0, false
	}
}

// BuildPopulationIndex merges population feed entries with figures carried
// on records. Population is a region attribute: each region keeps the first
// positive value seen (feed entries before records) and any different value
// produces a divergence note. Entries without a region or with a
// non-positive population are ignored.
func BuildPopulationIndex(entries []PopulationEntry, records []Record) (map[string]int64, []Note) {
	index := make(map[string]int64, len(entries))
	var notes []Note
	reported := make(map[string]bool)

	observe := func(region string, pop int64, recordID string) {
		if region == "" || pop <= 0 {
			return
		}
		existing, ok := index[region]
		if !ok {
			index[region] = pop
			return
		}
		if existing != pop && !reported[region] {
			reported[region] = true
			notes = append(notes, Note{
				Kind:      NotePopulationDivergence,
				RegionKey: region,
				RecordID:  recordID,
				Detail:    fmt.Sprintf("population %d differs from %d already recorded", pop, existing),
			})
		}
	}

	for _, e := range entries {
		observe(e.RegionKey, e.Population, "")
	}
	for _, r := range records {
		if r.Population != nil {
			observe(r.RegionKey, *r.Population, r.ID)
		}
	}
	return index, notes
}

// Aggregate counts records per region and derives densities. Records without
// a region are ignored. The result is always a freshly built map; calling it
// repeatedly with the same input yields equal output.
func Aggregate(records []Record, population map[string]int64) map[string]RegionStat {
	counts := make(map[string]int)
	for _, r := range records {
		if r.RegionKey == "" {
			continue
		}
		counts[r.RegionKey]++
	}

	stats := make(map[string]RegionStat, len(counts))
	for region, n := range counts {
		stats[region] = newRegionStat(region, n, population)
	}
	return stats
}

// StatFor returns the region's statistic, or a zero-count statistic for a
// region without reports (it still carries the population, if known).
func StatFor(stats map[string]RegionStat, region string, population map[string]int64) RegionStat {
	if s, ok := stats[region]; ok {
		return s
	}
	return newRegionStat(region, 0, population)
}

func newRegionStat(region string, count int, population map[string]int64) RegionStat {
	s := RegionStat{RegionKey: region, RawCount: count}
	if pop, ok := population[region]; ok {
		p := pop
		s.Population = &p
		if pop > 0 {
			d := float64(count) / float64(pop)
			s.Density = &d
		}
	}
	return s
}

// MissingPopulationNotes reports regions with reports but no usable population.
func MissingPopulationNotes(stats map[string]RegionStat) []Note {
	var notes []Note
	for _, region := range SortedRegions(stats) {
		s := stats[region]
		if s.Density == nil {
			notes = append(notes, Note{
				Kind:      NoteMissingPopulation,
				RegionKey: region,
				Detail:    fmt.Sprintf("%d reports but no population figure; density has no data", s.RawCount),
			})
		}
	}
	return notes
}

// SortedRegions returns the map's region keys in ascending order.
func SortedRegions(stats map[string]RegionStat) []string {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TotalCount sums RawCount over all regions.
func TotalCount(stats map[string]RegionStat) int {
	total := 0
	for _, s := range stats {
		total += s.RawCount
	}
	return total
}
