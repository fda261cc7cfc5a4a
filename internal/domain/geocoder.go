package domain

import (
	"context"
	"errors"
)

// ErrPlaceNotFound is returned when a geocoder has no match for a query.
var ErrPlaceNotFound = errors.New("place not found")

// Place is a geocoded search location.
type Place struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Relevance float64 `json:"relevance"` // 0.0–1.0 provider confidence
}

// Found reports whether the provider returned a match.
func (p Place) Found() bool {
	return p.Name != ""
}

// Geocoder resolves a free-text location ("Portland, OR") for nearby search.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (Place, error)
}
