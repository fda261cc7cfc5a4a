package domain

import (
	"strconv"

	"github.com/dustin/go-humanize"
)

// LegendEntry is one row of a rendered legend. Upper is nil for the
// open-ended top bucket.
type LegendEntry struct {
	RangeLabel string   `json:"range"`
	Color      string   `json:"color"`
	Lower      float64  `json:"lower"`
	Upper      *float64 `json:"upper,omitempty"`
}

// BuildLegend renders a table as ordered (range, colour) rows: "lower–upper"
// for interior buckets and "lower+" for the top one. It reads the table it is
// given and nothing else, so a legend always agrees with classification
// against the same table.
func BuildLegend(t *ThresholdTable) []LegendEntry {
	entries := make([]LegendEntry, 0, len(t.Buckets))
	for i, b := range t.Buckets {
		e := LegendEntry{Color: b.Color, Lower: b.LowerBound}
		lower := formatBound(b.LowerBound, t.Format)
		if i+1 < len(t.Buckets) {
			upper := t.Buckets[i+1].LowerBound
			e.Upper = &upper
			e.RangeLabel = lower + "–" + formatBound(upper, t.Format)
		} else {
			e.RangeLabel = lower + "+"
		}
		entries = append(entries, e)
	}
	return entries
}

// NoDataEntry is the legend row for regions without a statistic.
func NoDataEntry(t *ThresholdTable) LegendEntry {
	return LegendEntry{RangeLabel: "No data", Color: t.NoData}
}

func formatBound(v float64, format LabelFormat) string {
	if format == LabelCount {
		return humanize.Commaf(v)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
