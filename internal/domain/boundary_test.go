package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

// square returns a closed lon/lat ring.
func square(minLon, minLat, maxLon, maxLat float64) []geom.Coord {
	return []geom.Coord{
		{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat},
	}
}

func testBoundaries() *BoundarySet {
	// Colorado-ish box with a hole, and a two-part region.
	colorado := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		square(-109, 37, -102, 41),
		square(-106, 39, -105, 40),
	})
	islands := geom.NewMultiPolygon(geom.XY).MustSetCoords([][][]geom.Coord{
		{square(-160, 18, -154, 22)},
		{square(-150, 10, -149, 11)},
	})
	return NewBoundarySet([]Boundary{
		{Name: "Colorado", Geometry: colorado},
		{Name: "Hawaii", Geometry: islands},
		{Name: "Colorado", Geometry: islands},
		{Name: "", Geometry: colorado},
		{Name: "Point", Geometry: geom.NewPointFlat(geom.XY, []float64{0, 0})},
	})
}

func TestBoundarySet_Names(t *testing.T) {
	s := testBoundaries()
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []string{"Colorado", "Hawaii", "Point"}, s.Names())
	assert.True(t, s.Has("Colorado"))
	assert.False(t, s.Has("colorado"))
}

func TestBoundarySet_Locate(t *testing.T) {
	s := testBoundaries()

	tests := []struct {
		name     string
		lat, lon float64
		want     string
		wantOK   bool
	}{
		{"inside polygon", 38, -104, "Colorado", true},
		{"inside hole", 39.5, -105.5, "", false},
		{"first part of multipolygon", 20, -157, "Hawaii", true},
		{"second part of multipolygon", 10.5, -149.5, "Hawaii", true},
		{"outside everything", 45, -90, "", false},
		{"point geometry never contains", 0, 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.Locate(tt.lat, tt.lon)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBoundarySet_Suggest(t *testing.T) {
	s := NewBoundarySet([]Boundary{{Name: "Texas"}, {Name: "Washington"}, {Name: "Ohio"}})

	got, ok := s.Suggest("texas")
	require.True(t, ok)
	assert.Equal(t, "Texas", got)

	got, ok = s.Suggest("Washingon")
	require.True(t, ok)
	assert.Equal(t, "Washington", got)

	_, ok = s.Suggest("British Columbia")
	assert.False(t, ok)

	_, ok = s.Suggest("  ")
	assert.False(t, ok)
}

func TestBoundarySet_Match(t *testing.T) {
	s := testBoundaries()
	lat, lon := 20.0, -157.0

	records := []Record{
		{ID: "1", RegionKey: "Colorado"},
		{ID: "2", RegionKey: "Colorad"},
		{ID: "3"},
		{ID: "4", RegionKey: "Colorado", Latitude: &lat, Longitude: &lon},
		{ID: "5", RegionKey: "Colorad"},
		{ID: "6", RegionKey: "Hawaii", Latitude: &lat, Longitude: &lon},
	}

	matched, notes := s.Match(records)
	assert.Equal(t, []string{"1", "4", "6"}, ids(matched))

	byKind := map[NoteKind][]Note{}
	for _, n := range notes {
		byKind[n.Kind] = append(byKind[n.Kind], n)
	}

	require.Len(t, byKind[NoteJoinMismatch], 1)
	jm := byKind[NoteJoinMismatch][0]
	assert.Equal(t, "Colorad", jm.RegionKey)
	assert.Equal(t, "Colorado", jm.Suggestion)
	assert.Contains(t, jm.Detail, "2 records")

	require.Len(t, byKind[NoteMissingRegion], 1)
	assert.Contains(t, byKind[NoteMissingRegion][0].Detail, "1 records")

	require.Len(t, byKind[NoteLocationMismatch], 1)
	assert.Equal(t, "4", byKind[NoteLocationMismatch][0].RecordID)
	assert.Contains(t, byKind[NoteLocationMismatch][0].Detail, "Hawaii")

	assert.Len(t, records, 6, "input is not modified")
}
