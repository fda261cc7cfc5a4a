package feed

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/couchcryptid/sightings-map/internal/domain"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// flexValue accepts a JSON string, number, boolean or null and keeps its
// text. Feeds exported from spreadsheets mix "2009", 2009 and 2009.0 freely.
type flexValue string

func (v *flexValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, bytes.Equal(b, []byte("null")):
		*v = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = flexValue(strings.TrimSpace(s))
	default:
		*v = flexValue(b)
	}
	return nil
}

func (v flexValue) String() string { return string(v) }

// rawRecord is one object of the records feed.
type rawRecord struct {
	State           flexValue `json:"state"`
	Region          flexValue `json:"region"`
	County          flexValue `json:"county"`
	ReportClass     flexValue `json:"report_class"`
	Year            flexValue `json:"year"`
	Month           flexValue `json:"month"`
	Season          flexValue `json:"season"`
	ReportNumber    flexValue `json:"report_number"`
	LocationDetails flexValue `json:"location_details"`
	Latitude        flexValue `json:"latitude"`
	Longitude       flexValue `json:"longitude"`
	Population      flexValue `json:"POPESTIMATE2023"`
}

// DecodeRecords parses the records feed. Fields that cannot be interpreted
// are dropped from the record and reported as notes; only a body that is not
// a JSON array of objects is an error.
func DecodeRecords(data []byte) ([]domain.Record, []domain.Note, error) {
	var raws []rawRecord
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, nil, fmt.Errorf("decode records: %w", err)
	}

	records := make([]domain.Record, 0, len(raws))
	var notes []domain.Note
	for i, raw := range raws {
		r, recordNotes := toRecord(i, raw)
		records = append(records, r)
		notes = append(notes, recordNotes...)
	}
	return records, notes, nil
}

func toRecord(i int, raw rawRecord) (domain.Record, []domain.Note) {
	r := domain.Record{
		ID:             raw.ReportNumber.String(),
		RegionKey:      raw.State.String(),
		County:         raw.County.String(),
		Season:         raw.Season.String(),
		LocationDetail: raw.LocationDetails.String(),
	}
	if r.ID == "" {
		r.ID = fmt.Sprintf("row-%d", i+1)
	}
	if r.RegionKey == "" {
		r.RegionKey = raw.Region.String()
	}

	var notes []domain.Note
	invalid := func(field string, value flexValue) {
		notes = append(notes, domain.Note{
			Kind:      domain.NoteInvalidField,
			RegionKey: r.RegionKey,
			RecordID:  r.ID,
			Detail:    fmt.Sprintf("%s %q ignored", field, value),
		})
	}

	if raw.ReportClass != "" {
		c, ok := domain.ParseCategory(raw.ReportClass.String())
		if !ok {
			invalid("report_class", raw.ReportClass)
		}
		r.Category = c
	}

	if raw.Year != "" {
		if y, ok := parseInt(raw.Year); ok && y > 0 {
			r.Year = int(y)
		} else {
			invalid("year", raw.Year)
		}
	}
	if raw.Month != "" {
		if m := domain.ParseMonth(trimDecimal(raw.Month)); m != 0 {
			r.Month = m
		} else {
			invalid("month", raw.Month)
		}
	}

	lat, latOK := parseCoord(raw.Latitude, 90)
	lon, lonOK := parseCoord(raw.Longitude, 180)
	switch {
	case latOK && lonOK:
		r.Latitude, r.Longitude = &lat, &lon
	case raw.Latitude != "" || raw.Longitude != "":
		invalid("coordinates", raw.Latitude+","+raw.Longitude)
	}

	if raw.Population != "" {
		if p, ok := parseInt(raw.Population); ok && p > 0 {
			r.Population = &p
		} else {
			invalid("POPESTIMATE2023", raw.Population)
		}
	}
	return r, notes
}

// rawPopulation is one object of the population feed.
type rawPopulation struct {
	State      flexValue `json:"state"`
	Population flexValue `json:"POPESTIMATE2023"`
}

// DecodePopulation parses the population feed. Entries without a region or
// a positive population are skipped with a note.
func DecodePopulation(data []byte) ([]domain.PopulationEntry, []domain.Note, error) {
	var raws []rawPopulation
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, nil, fmt.Errorf("decode population: %w", err)
	}

	entries := make([]domain.PopulationEntry, 0, len(raws))
	var notes []domain.Note
	for _, raw := range raws {
		pop, ok := parseInt(raw.Population)
		if raw.State == "" || !ok || pop <= 0 {
			notes = append(notes, domain.Note{
				Kind:      domain.NoteInvalidField,
				RegionKey: raw.State.String(),
				Detail:    fmt.Sprintf("population entry %q skipped", raw.Population),
			})
			continue
		}
		entries = append(entries, domain.PopulationEntry{RegionKey: raw.State.String(), Population: pop})
	}
	return entries, notes, nil
}

// parseInt accepts integers written as "123", 123 or 123.0.
func parseInt(v flexValue) (int64, bool) {
	s := v.String()
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

func trimDecimal(v flexValue) string {
	if n, ok := parseInt(v); ok {
		return strconv.FormatInt(n, 10)
	}
	return v.String()
}

func parseCoord(v flexValue, limit float64) (float64, bool) {
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.String(), 64)
	if err != nil || math.IsNaN(f) || math.Abs(f) > limit {
		return 0, false
	}
	return f, true
}
