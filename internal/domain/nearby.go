package domain

import (
	"math"
	"sort"
)

// DefaultNearbyRadiusKM is the search radius used when none is given.
const DefaultNearbyRadiusKM = 50.0

const earthRadiusKM = 6371.0

// Nearby is a record within the search radius of a point.
type Nearby struct {
	Record     Record  `json:"record"`
	DistanceKM float64 `json:"distance_km"`
}

// HaversineKM returns the great-circle distance between two points.
func HaversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Asin(math.Min(1, math.Sqrt(a)))
}

// FindNearby returns records with coordinates within radiusKM of (lat, lon),
// nearest first. Ties keep input order. A non-positive radius uses the
// default.
func FindNearby(records []Record, lat, lon, radiusKM float64) []Nearby {
	if radiusKM <= 0 {
		radiusKM = DefaultNearbyRadiusKM
	}
	out := make([]Nearby, 0)
	for _, r := range records {
		if !r.HasCoordinates() {
			continue
		}
		d := HaversineKM(lat, lon, *r.Latitude, *r.Longitude)
		if d <= radiusKM {
			out = append(out, Nearby{Record: r, DistanceKM: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceKM < out[j].DistanceKM
	})
	return out
}
