package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"
)

// ErrInvalidFilter is returned when a filter state names an unknown category
// or timeframe.
var ErrInvalidFilter = errors.New("invalid filter")

// Timeframe selects whether a custom date range applies.
type Timeframe string

const (
	TimeframeAll    Timeframe = "ALL"
	TimeframeCustom Timeframe = "CUSTOM"
)

// RegionAll is the region selector value meaning "every region".
const RegionAll = "ALL"

// FilterState is the full set of user-selected predicates. A zero value (or
// the result of DefaultFilter) selects every record.
type FilterState struct {
	Category  Category   `json:"category"`
	Year      int        `json:"year,omitempty"` // 0 means any year
	Timeframe Timeframe  `json:"timeframe"`
	Start     *YearMonth `json:"start,omitempty"`
	End       *YearMonth `json:"end,omitempty"`
	Region    string     `json:"region,omitempty"`
}

// DefaultFilter returns the filter applied at session start.
func DefaultFilter() FilterState {
	return FilterState{Category: CategoryAll, Timeframe: TimeframeAll, Region: RegionAll}
}

// Normalize fills empty selectors with their "all" values and upper-cases
// the enumerations. It does not validate.
func (f FilterState) Normalize() FilterState {
	f.Category = Category(strings.ToUpper(strings.TrimSpace(string(f.Category))))
	if f.Category == "" {
		f.Category = CategoryAll
	}
	f.Timeframe = Timeframe(strings.ToUpper(strings.TrimSpace(string(f.Timeframe))))
	if f.Timeframe == "" {
		f.Timeframe = TimeframeAll
	}
	f.Region = strings.TrimSpace(f.Region)
	if f.Region == "" || strings.EqualFold(f.Region, RegionAll) {
		f.Region = RegionAll
	}
	return f
}

// Validate checks the enumerations. A custom range with start after end is
// valid; it simply matches nothing.
func (f FilterState) Validate() error {
	switch f.Category {
	case CategoryAll, ClassA, ClassB, ClassC:
	default:
		return fmt.Errorf("%w: unknown category %q", ErrInvalidFilter, f.Category)
	}
	switch f.Timeframe {
	case TimeframeAll, TimeframeCustom:
	default:
		return fmt.Errorf("%w: unknown timeframe %q", ErrInvalidFilter, f.Timeframe)
	}
	if f.Year < 0 {
		return fmt.Errorf("%w: negative year %d", ErrInvalidFilter, f.Year)
	}
	return nil
}

// HasRange reports whether a custom date range restricts the records.
// A custom timeframe with either bound missing does not restrict.
func (f FilterState) HasRange() bool {
	return f.Timeframe == TimeframeCustom && f.Start != nil && f.End != nil
}

// Fingerprint is a stable hash of the normalized filter, usable as a cache
// key or ETag.
func (f FilterState) Fingerprint() string {
	f = f.Normalize()
	var b strings.Builder
	fmt.Fprintf(&b, "c=%s|y=%d|t=%s|r=%s", f.Category, f.Year, f.Timeframe, f.Region)
	if f.HasRange() {
		fmt.Fprintf(&b, "|s=%s|e=%s", f.Start, f.End)
	}
	return fmt.Sprintf("%016x", xxh3.HashString(b.String()))
}

// ApplyFilters returns the records that satisfy every active predicate, in
// input order. The input slice is never modified; the result is always a new
// slice.
func ApplyFilters(records []Record, f FilterState) []Record {
	f = f.Normalize()
	out := make([]Record, 0, len(records))

	if f.HasRange() && f.Start.Compare(*f.End) > 0 {
		return out
	}

	for _, r := range records {
		if matches(r, f) {
			out = append(out, r)
		}
	}
	return out
}

func matches(r Record, f FilterState) bool {
	if f.Category != CategoryAll && r.Category != f.Category {
		return false
	}
	if f.Year != 0 && r.Year != f.Year {
		return false
	}
	if f.Region != RegionAll && r.RegionKey != f.Region {
		return false
	}
	if f.HasRange() && !inRange(r, *f.Start, *f.End) {
		return false
	}
	return true
}

// inRange checks start <= (year, month) <= end. A record without a month can
// only be placed when its year lies strictly between the bounds' years.
func inRange(r Record, start, end YearMonth) bool {
	if r.Year == 0 {
		return false
	}
	if r.Month == 0 {
		return r.Year > start.Year && r.Year < end.Year
	}
	ym := r.YearMonth()
	return ym.Compare(start) >= 0 && ym.Compare(end) <= 0
}
