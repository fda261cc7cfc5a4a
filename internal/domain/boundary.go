package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// Boundary is one named region outline. Geometry is a *geom.Polygon or
// *geom.MultiPolygon in lon/lat order; other geometry types never contain a
// point.
type Boundary struct {
	Name     string
	Geometry geom.T
}

// BoundarySet indexes region outlines by name. Names are the join key for
// records and population entries and are matched exactly.
type BoundarySet struct {
	boundaries []Boundary
	byName     map[string]int
}

// NewBoundarySet builds a set. When two features share a name the first one
// wins.
func NewBoundarySet(boundaries []Boundary) *BoundarySet {
	s := &BoundarySet{byName: make(map[string]int, len(boundaries))}
	for _, b := range boundaries {
		if b.Name == "" {
			continue
		}
		if _, dup := s.byName[b.Name]; dup {
			continue
		}
		s.byName[b.Name] = len(s.boundaries)
		s.boundaries = append(s.boundaries, b)
	}
	return s
}

// Len returns the number of distinct regions.
func (s *BoundarySet) Len() int {
	return len(s.boundaries)
}

// Has reports whether a feature is named exactly name.
func (s *BoundarySet) Has(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// Names returns the region names in ascending order.
func (s *BoundarySet) Names() []string {
	names := make([]string, 0, len(s.boundaries))
	for _, b := range s.boundaries {
		names = append(names, b.Name)
	}
	sort.Strings(names)
	return names
}

// Locate returns the region containing (lat, lon). Points inside a hole are
// outside the region.
func (s *BoundarySet) Locate(lat, lon float64) (string, bool) {
	p := geom.Coord{lon, lat}
	for _, b := range s.boundaries {
		if containsPoint(b.Geometry, p) {
			return b.Name, true
		}
	}
	return "", false
}

func containsPoint(g geom.T, p geom.Coord) bool {
	switch g := g.(type) {
	case *geom.Polygon:
		return polygonContains(g, p)
	case *geom.MultiPolygon:
		for i := 0; i < g.NumPolygons(); i++ {
			if polygonContains(g.Polygon(i), p) {
				return true
			}
		}
	}
	return false
}

func polygonContains(poly *geom.Polygon, p geom.Coord) bool {
	if poly.NumLinearRings() == 0 || !poly.Bounds().OverlapsPoint(poly.Layout(), p) {
		return false
	}
	if !xy.IsPointInRing(poly.Layout(), p, poly.LinearRing(0).FlatCoords()) {
		return false
	}
	for i := 1; i < poly.NumLinearRings(); i++ {
		if xy.IsPointInRing(poly.Layout(), p, poly.LinearRing(i).FlatCoords()) {
			return false
		}
	}
	return true
}

// Suggest returns the closest region name to a key that failed to join, for
// data-quality notes. Comparison ignores case; distant names are not
// suggested.
func (s *BoundarySet) Suggest(key string) (string, bool) {
	want := strings.ToLower(strings.TrimSpace(key))
	if want == "" {
		return "", false
	}
	best, bestDist := "", -1
	for _, name := range s.Names() {
		d := levenshtein.ComputeDistance(want, strings.ToLower(name))
		if bestDist < 0 || d < bestDist {
			best, bestDist = name, d
		}
	}
	limit := len(want) / 3
	if limit < 2 {
		limit = 2
	}
	if bestDist < 0 || bestDist > limit {
		return "", false
	}
	return best, true
}

// Match keeps the records whose region has a boundary feature, in input
// order, and describes the rest. Excluded records are only dropped from
// region-level views; callers keep the full list for markers.
func (s *BoundarySet) Match(records []Record) ([]Record, []Note) {
	matched := make([]Record, 0, len(records))
	unmatched := make(map[string]int)
	var order []string
	missing := 0
	var notes []Note

	for _, r := range records {
		switch {
		case r.RegionKey == "":
			missing++
			continue
		case !s.Has(r.RegionKey):
			if unmatched[r.RegionKey] == 0 {
				order = append(order, r.RegionKey)
			}
			unmatched[r.RegionKey]++
			continue
		}
		matched = append(matched, r)

		if r.HasCoordinates() {
			if at, ok := s.Locate(*r.Latitude, *r.Longitude); ok && at != r.RegionKey {
				notes = append(notes, Note{
					Kind:      NoteLocationMismatch,
					RegionKey: r.RegionKey,
					RecordID:  r.ID,
					Detail:    fmt.Sprintf("coordinates fall inside %s", at),
				})
			}
		}
	}

	for _, key := range order {
		n := Note{
			Kind:      NoteJoinMismatch,
			RegionKey: key,
			Detail:    fmt.Sprintf("%d records name a region with no boundary feature", unmatched[key]),
		}
		if sug, ok := s.Suggest(key); ok {
			n.Suggestion = sug
		}
		notes = append(notes, n)
	}
	if missing > 0 {
		notes = append(notes, Note{
			Kind:   NoteMissingRegion,
			Detail: fmt.Sprintf("%d records have no region", missing),
		})
	}
	return matched, notes
}
