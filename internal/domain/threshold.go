package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// ErrUnknownLayer is returned for a layer kind that has no threshold table.
var ErrUnknownLayer = errors.New("unknown layer")

// LayerKind identifies a statistical layer.
type LayerKind string

const (
	LayerByCount   LayerKind = "by_count"
	LayerByDensity LayerKind = "by_density"
)

// LayerMarkers is the point-marker overlay. It is toggled like the
// statistical layers but never owns a legend.
const LayerMarkers = "markers"

// StatLayers lists the statistical layers in display order.
var StatLayers = []LayerKind{LayerByCount, LayerByDensity}

// Title is the label shown in the layer control.
func (k LayerKind) Title() string {
	switch k {
	case LayerByCount:
		return "Total Reports"
	case LayerByDensity:
		return "Reports per Population"
	default:
		return string(k)
	}
}

// ParseLayerKind accepts either the identifier or the display title.
func ParseLayerKind(s string) (LayerKind, bool) {
	s = strings.TrimSpace(s)
	for _, k := range StatLayers {
		if s == string(k) || strings.EqualFold(s, k.Title()) {
			return k, true
		}
	}
	return "", false
}

// LabelFormat selects how legend bounds are printed.
type LabelFormat string

const (
	// LabelCount prints integers with thousands separators ("1,000").
	LabelCount LabelFormat = "count"
	// LabelRatio prints the shortest decimal form ("0.000015").
	LabelRatio LabelFormat = "ratio"
)

// DefaultNoDataColor fills regions whose statistic is undefined.
const DefaultNoDataColor = "#bdbdbd"

// Bucket is one colour class starting at LowerBound.
type Bucket struct {
	LowerBound float64 `json:"lower" yaml:"lower"`
	Color      string  `json:"color" yaml:"color"`
}

// ThresholdTable maps a statistic to a colour. Buckets are strictly
// ascending by LowerBound; the last bucket is open-ended.
type ThresholdTable struct {
	Kind    LayerKind
	Format  LabelFormat
	Buckets []Bucket
	NoData  string
}

// NewThresholdTable validates and normalizes a table. Colours are parsed as
// hex and stored in lowercase "#rrggbb" form; the no-data colour must differ
// from every bucket colour.
func NewThresholdTable(kind LayerKind, format LabelFormat, noData string, buckets []Bucket) (*ThresholdTable, error) {
	if len(buckets) == 0 {
		return nil, fmt.Errorf("threshold table %s: no buckets", kind)
	}
	switch format {
	case LabelCount, LabelRatio:
	case "":
		format = LabelRatio
	default:
		return nil, fmt.Errorf("threshold table %s: unknown label format %q", kind, format)
	}
	if noData == "" {
		noData = DefaultNoDataColor
	}
	nd, err := normalizeColor(noData)
	if err != nil {
		return nil, fmt.Errorf("threshold table %s: no-data colour: %w", kind, err)
	}

	out := make([]Bucket, len(buckets))
	for i, b := range buckets {
		if math.IsNaN(b.LowerBound) || math.IsInf(b.LowerBound, 0) {
			return nil, fmt.Errorf("threshold table %s: bucket %d: bound must be finite", kind, i)
		}
		if i > 0 && b.LowerBound <= buckets[i-1].LowerBound {
			return nil, fmt.Errorf("threshold table %s: bucket %d: bounds must be strictly increasing (%g after %g)",
				kind, i, b.LowerBound, buckets[i-1].LowerBound)
		}
		c, err := normalizeColor(b.Color)
		if err != nil {
			return nil, fmt.Errorf("threshold table %s: bucket %d: %w", kind, i, err)
		}
		if c == nd {
			return nil, fmt.Errorf("threshold table %s: bucket %d: colour %s is reserved for no-data", kind, i, c)
		}
		out[i] = Bucket{LowerBound: b.LowerBound, Color: c}
	}

	return &ThresholdTable{Kind: kind, Format: format, Buckets: out, NoData: nd}, nil
}

func normalizeColor(s string) (string, error) {
	c, err := colorful.Hex(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return c.Hex(), nil
}

// BucketIndex returns the rank of the bucket holding v: the greatest bucket
// whose lower bound is <= v, or 0 when v is below every bound.
func (t *ThresholdTable) BucketIndex(v float64) int {
	idx := 0
	for i, b := range t.Buckets {
		if b.LowerBound <= v {
			idx = i
		}
	}
	return idx
}

// Classify returns the colour for a value. A nil value is no-data and maps to
// the table's no-data colour, never to a bucket colour.
func Classify(value *float64, t *ThresholdTable) string {
	if value == nil || math.IsNaN(*value) {
		return t.NoData
	}
	return t.Buckets[t.BucketIndex(*value)].Color
}

// ClassifyStat classifies a region statistic on the table's layer.
func ClassifyStat(s RegionStat, t *ThresholdTable) string {
	v, ok := s.Value(t.Kind)
	if !ok {
		return Classify(nil, t)
	}
	return Classify(&v, t)
}

// Tables holds the threshold table for each statistical layer.
type Tables map[LayerKind]*ThresholdTable

// Get returns the table for kind or ErrUnknownLayer.
func (ts Tables) Get(kind LayerKind) (*ThresholdTable, error) {
	t, ok := ts[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLayer, kind)
	}
	return t, nil
}

// DefaultCountBuckets are the raw-count classes.
func DefaultCountBuckets() []Bucket {
	return []Bucket{
		{0, "#ffeda0"},
		{5, "#fed976"},
		{10, "#feb24c"},
		{20, "#fd8d3c"},
		{50, "#fc4e2a"},
		{100, "#e31a1c"},
		{500, "#bd0026"},
		{1000, "#800026"},
	}
}

// DefaultDensityBuckets are the reports-per-resident classes.
func DefaultDensityBuckets() []Bucket {
	return []Bucket{
		{0, "#ffeda0"},
		{1.5e-5, "#fd8d3c"},
		{3.0e-5, "#fc4e2a"},
		{4.5e-5, "#e31a1c"},
		{6.0e-5, "#bd0026"},
		{7.59003082e-5, "#800026"},
	}
}

// DefaultTables builds fresh instances of the two built-in tables.
func DefaultTables() Tables {
	count, err := NewThresholdTable(LayerByCount, LabelCount, DefaultNoDataColor, DefaultCountBuckets())
	if err != nil {
		panic(err)
	}
	density, err := NewThresholdTable(LayerByDensity, LabelRatio, DefaultNoDataColor, DefaultDensityBuckets())
	if err != nil {
		panic(err)
	}
	return Tables{LayerByCount: count, LayerByDensity: density}
}
