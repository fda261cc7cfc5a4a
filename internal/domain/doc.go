// Package domain models sighting reports and the view-model derived from them
// for a region choropleth map.
//
// # Data Sources
//
// Three feeds are loaded once per session:
//
//	Records     flat JSON array, one object per sighting report
//	Population  flat JSON array of {state, POPESTIMATE2023}
//	Boundaries  GeoJSON FeatureCollection; properties.name is the region key
//
// The feeds are joined by exact region-name equality ("Texas" never matches
// "texas" or "TX"). A record whose region has no boundary feature is kept for
// point markers but left out of region statistics, and a [Note] of kind
// [NoteJoinMismatch] is emitted for it.
//
// # Report Conventions
//
// Report class:
//
//	"A"  first-hand observation with clear view
//	"B"  observation with obstructed view, or heard/tracks
//	"C"  second-hand report
//	anything else is kept as unclassified
//
// Year and month are normalized to integers before any comparison. Month may
// arrive as a number, a numeric string ("09") or a name ("September"); an
// unknown month is 0.
//
// # Statistics
//
// For every region the aggregation produces a raw report count and, when the
// region population is known and positive, a density (count / population).
// An unknown or zero population yields no density at all rather than 0 or
// +Inf, and classifies into the dedicated no-data colour.
//
// # Classification
//
// A [ThresholdTable] is an ascending list of lower bounds with a colour each.
// A value takes the colour of the greatest bound that is <= the value; values
// below the first bound fall into the first (baseline) bucket. Two layers
// ship by default:
//
//	by_count    0, 5, 10, 20, 50, 100, 500, 1000
//	by_density  0, 1.5e-5, 3.0e-5, 4.5e-5, 6.0e-5, 7.59003082e-5
//
// The legend for a layer is generated from the same table instance used to
// classify it.
//
// # Layers
//
// [LayerManager] derives the layer mode from the full visibility set on every
// change. The legend is shown only while exactly one statistical layer is
// visible.
package domain
