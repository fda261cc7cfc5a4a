package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labels(entries []LegendEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.RangeLabel
	}
	return out
}

func TestBuildLegend_Count(t *testing.T) {
	table := DefaultTables()[LayerByCount]
	entries := BuildLegend(table)

	assert.Equal(t, []string{
		"0–5", "5–10", "10–20", "20–50", "50–100", "100–500", "500–1,000", "1,000+",
	}, labels(entries))

	for i, e := range entries {
		assert.Equal(t, table.Buckets[i].Color, e.Color)
		assert.Equal(t, table.Buckets[i].LowerBound, e.Lower)
	}
	require.NotNil(t, entries[0].Upper)
	assert.Equal(t, 5.0, *entries[0].Upper)
	assert.Nil(t, entries[len(entries)-1].Upper)
}

func TestBuildLegend_Density(t *testing.T) {
	entries := BuildLegend(DefaultTables()[LayerByDensity])

	assert.Equal(t, []string{
		"0–0.000015",
		"0.000015–0.00003",
		"0.00003–0.000045",
		"0.000045–0.00006",
		"0.00006–0.0000759003082",
		"0.0000759003082+",
	}, labels(entries))
}

func TestBuildLegend_FollowsTable(t *testing.T) {
	table, err := NewThresholdTable(LayerByCount, LabelCount, "", []Bucket{{0, "#111111"}, {2500, "#222222"}})
	require.NoError(t, err)

	first := BuildLegend(table)
	assert.Equal(t, first, BuildLegend(table))
	assert.Equal(t, []string{"0–2,500", "2,500+"}, labels(first))

	// The legend and the classifier read the same buckets.
	for _, e := range first {
		assert.Equal(t, e.Color, Classify(&e.Lower, table))
	}
}

func TestBuildLegend_SingleBucket(t *testing.T) {
	table, err := NewThresholdTable(LayerByDensity, LabelRatio, "", []Bucket{{0, "#111111"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"0+"}, labels(BuildLegend(table)))
}

func TestNoDataEntry(t *testing.T) {
	table := DefaultTables()[LayerByCount]
	e := NoDataEntry(table)
	assert.Equal(t, table.NoData, e.Color)
	assert.Equal(t, "No data", e.RangeLabel)
}
