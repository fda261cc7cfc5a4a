package feed

import (
	"fmt"
	"strings"

	"github.com/couchcryptid/sightings-map/internal/domain"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// nameProperties are the feature properties tried, in order, for the region
// name.
var nameProperties = []string{"name", "NAME"}

// DecodeBoundaries parses a GeoJSON FeatureCollection into named region
// outlines. Features without a name are skipped with a note; features whose
// geometry is not areal are kept so their name still joins, but they never
// contain a point.
func DecodeBoundaries(data []byte) ([]domain.Boundary, []domain.Note, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, nil, fmt.Errorf("decode boundaries: %w", err)
	}

	boundaries := make([]domain.Boundary, 0, len(fc.Features))
	var notes []domain.Note
	for i, f := range fc.Features {
		if f == nil {
			continue
		}
		name := featureName(f)
		if name == "" {
			notes = append(notes, domain.Note{
				Kind:   domain.NoteInvalidField,
				Detail: fmt.Sprintf("boundary feature %d has no name property", i),
			})
			continue
		}
		switch f.Geometry.(type) {
		case *geom.Polygon, *geom.MultiPolygon:
		default:
			notes = append(notes, domain.Note{
				Kind:      domain.NoteInvalidField,
				RegionKey: name,
				Detail:    fmt.Sprintf("boundary geometry %T is not a polygon", f.Geometry),
			})
		}
		boundaries = append(boundaries, domain.Boundary{Name: name, Geometry: f.Geometry})
	}
	return boundaries, notes, nil
}

func featureName(f *geojson.Feature) string {
	for _, key := range nameProperties {
		if v, ok := f.Properties[key].(string); ok {
			if name := strings.TrimSpace(v); name != "" {
				return name
			}
		}
	}
	return ""
}
