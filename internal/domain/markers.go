package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultReportURLTemplate links a marker to the full report by number.
const DefaultReportURLTemplate = "https://bfro.net/GDB/show_report.asp?id=%s"

// Marker is the point view of a record with coordinates.
type Marker struct {
	ID             string   `json:"id"`
	Category       Category `json:"category"`
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	Color          string   `json:"color"`
	RegionKey      string   `json:"region,omitempty"`
	County         string   `json:"county,omitempty"`
	Year           int      `json:"year,omitempty"`
	Season         string   `json:"season,omitempty"`
	LocationDetail string   `json:"location_detail,omitempty"`
	ReportURL      string   `json:"report_url,omitempty"`
}

// MarkerColor returns the marker colour for a class. Unclassified records
// use the class C colour.
func MarkerColor(c Category) string {
	switch c {
	case ClassA:
		return "green"
	case ClassB:
		return "orange"
	default:
		return "red"
	}
}

// ReportURL fills the template with the escaped record ID. An empty template
// or ID yields "".
func ReportURL(template, id string) string {
	if template == "" || id == "" {
		return ""
	}
	if !strings.Contains(template, "%s") {
		return template
	}
	return fmt.Sprintf(template, url.QueryEscape(id))
}

// BuildMarkers places every record that has coordinates, in input order.
// Records without a region or with an unmatched region still get a marker.
func BuildMarkers(records []Record, reportURLTemplate string) []Marker {
	markers := make([]Marker, 0, len(records))
	for _, r := range records {
		if !r.HasCoordinates() {
			continue
		}
		markers = append(markers, Marker{
			ID:             r.ID,
			Category:       r.Category,
			Latitude:       *r.Latitude,
			Longitude:      *r.Longitude,
			Color:          MarkerColor(r.Category),
			RegionKey:      r.RegionKey,
			County:         r.County,
			Year:           r.Year,
			Season:         r.Season,
			LocationDetail: r.LocationDetail,
			ReportURL:      ReportURL(reportURLTemplate, r.ID),
		})
	}
	return markers
}
