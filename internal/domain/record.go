package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Category is the report classification assigned by the investigators.
type Category string

const (
	CategoryAll Category = "ALL"
	ClassA      Category = "A"
	ClassB      Category = "B"
	ClassC      Category = "C"

	// Unclassified marks a record whose report_class is missing or unknown.
	Unclassified Category = ""
)

// Classes lists the concrete report classes in display order.
var Classes = []Category{ClassA, ClassB, ClassC}

// ParseCategory maps a report_class value ("A" or "Class A") to a Category.
// Unknown values return Unclassified and false.
func ParseCategory(s string) (Category, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimSpace(strings.TrimPrefix(s, "CLASS"))
	switch c := Category(s); c {
	case ClassA, ClassB, ClassC:
		return c, true
	default:
		return Unclassified, false
	}
}

// Record is a single sighting report. Records are never modified after load.
type Record struct {
	ID             string   `json:"id"`
	Category       Category `json:"category"`
	RegionKey      string   `json:"region"`
	County         string   `json:"county,omitempty"`
	Year           int      `json:"year,omitempty"`
	Month          int      `json:"month,omitempty"` // 1-12, 0 when unknown
	Season         string   `json:"season,omitempty"`
	LocationDetail string   `json:"location_detail,omitempty"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`

	// Population is the region population carried on the record by feeds
	// that pre-join it (POPESTIMATE2023). Nil when absent.
	Population *int64 `json:"-"`
}

// HasCoordinates reports whether the record can be placed as a point marker.
func (r Record) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// YearMonth returns the record's (year, month) position.
func (r Record) YearMonth() YearMonth {
	return YearMonth{Year: r.Year, Month: r.Month}
}

// YearMonth is a calendar month. Ordering compares year first, then month,
// both as integers.
type YearMonth struct {
	Year  int
	Month int
}

// ParseYearMonth parses "YYYY-MM" (or "YYYY-M"). Both parts are converted to
// integers so "2009-9" and "2009-09" are the same month.
func ParseYearMonth(s string) (YearMonth, error) {
	yearStr, monthStr, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return YearMonth{}, fmt.Errorf("parse year-month %q: expected YYYY-MM", s)
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return YearMonth{}, fmt.Errorf("parse year-month %q: %w", s, err)
	}
	month, err := strconv.Atoi(monthStr)
	if err != nil {
		return YearMonth{}, fmt.Errorf("parse year-month %q: %w", s, err)
	}
	if month < 1 || month > 12 {
		return YearMonth{}, fmt.Errorf("parse year-month %q: month out of range", s)
	}
	return YearMonth{Year: year, Month: month}, nil
}

// Compare returns -1, 0 or 1.
func (ym YearMonth) Compare(other YearMonth) int {
	switch {
	case ym.Year < other.Year:
		return -1
	case ym.Year > other.Year:
		return 1
	case ym.Month < other.Month:
		return -1
	case ym.Month > other.Month:
		return 1
	default:
		return 0
	}
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, ym.Month)
}

// MarshalText encodes the month as "YYYY-MM".
func (ym YearMonth) MarshalText() ([]byte, error) {
	return []byte(ym.String()), nil
}

// UnmarshalText accepts "YYYY-MM".
func (ym *YearMonth) UnmarshalText(b []byte) error {
	parsed, err := ParseYearMonth(string(b))
	if err != nil {
		return err
	}
	*ym = parsed
	return nil
}

var monthNames = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// ParseMonth normalizes a month given as "9", "09", "Sep" or "September".
// Returns 0 when the value cannot be interpreted.
func ParseMonth(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > 12 {
			return 0
		}
		return n
	}
	if len(s) < 3 {
		return 0
	}
	return monthNames[strings.ToLower(s[:3])]
}
