package domain

import (
	"errors"
	"fmt"
)

// ErrDataUnavailable marks a feed that could not be fetched or parsed. The
// session treats it as terminal for that source.
var ErrDataUnavailable = errors.New("data unavailable")

// Source names one of the external feeds.
type Source string

const (
	SourceRecords    Source = "records"
	SourcePopulation Source = "population"
	SourceBoundaries Source = "boundaries"
)

// FetchError wraps a network or decode failure for a feed.
type FetchError struct {
	Source Source
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrDataUnavailable) match any fetch failure.
func (e *FetchError) Is(target error) bool {
	return target == ErrDataUnavailable
}

// NoteKind classifies a data-quality note.
type NoteKind string

const (
	// NoteJoinMismatch: the record's region has no boundary feature.
	NoteJoinMismatch NoteKind = "join_mismatch"
	// NoteMissingRegion: the record carries no region at all.
	NoteMissingRegion NoteKind = "missing_region"
	// NotePopulationDivergence: two different population figures were seen
	// for one region.
	NotePopulationDivergence NoteKind = "population_divergence"
	// NoteMissingPopulation: a region with reports has no population entry.
	NoteMissingPopulation NoteKind = "missing_population"
	// NoteLocationMismatch: the record's coordinates fall inside a different
	// region than the one it names.
	NoteLocationMismatch NoteKind = "location_mismatch"
	// NoteInvalidField: a feed field could not be interpreted.
	NoteInvalidField NoteKind = "invalid_field"
)

// Note is a non-fatal data-quality observation. Notes never abort a render.
type Note struct {
	Kind       NoteKind `json:"kind"`
	RegionKey  string   `json:"region,omitempty"`
	RecordID   string   `json:"record_id,omitempty"`
	Detail     string   `json:"detail"`
	Suggestion string   `json:"suggestion,omitempty"`
}
