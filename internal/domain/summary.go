package domain

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summary is the dashboard view of a record set.
type Summary struct {
	Total        int             `json:"total"`
	ByCategory   map[string]int  `json:"by_category"`
	BySeason     map[string]int  `json:"by_season"`
	Years        []int           `json:"years"`
	Regions      []string        `json:"regions"`
	WithLocation int             `json:"with_location"`
	Density      *DensitySummary `json:"density,omitempty"`
}

// DensitySummary describes the densities of regions that have one.
type DensitySummary struct {
	Regions int     `json:"regions"`
	Mean    float64 `json:"mean"`
	Median  float64 `json:"median"`
	Max     float64 `json:"max"`
	MaxAt   string  `json:"max_region"`
}

// UnclassifiedLabel keys records without a report class in category counts.
const UnclassifiedLabel = "unclassified"

// UnknownSeason keys records without a season in season counts.
const UnknownSeason = "Unknown"

// Summarize counts records per class and season and lists the distinct years
// (newest first) and regions (ascending).
func Summarize(records []Record) Summary {
	s := Summary{
		Total:      len(records),
		ByCategory: make(map[string]int, len(Classes)+1),
		BySeason:   make(map[string]int),
	}
	for _, c := range Classes {
		s.ByCategory[string(c)] = 0
	}

	years := make(map[int]bool)
	regions := make(map[string]bool)
	for _, r := range records {
		if r.Category == Unclassified {
			s.ByCategory[UnclassifiedLabel]++
		} else {
			s.ByCategory[string(r.Category)]++
		}

		season := r.Season
		if season == "" {
			season = UnknownSeason
		}
		s.BySeason[season]++

		if r.Year != 0 {
			years[r.Year] = true
		}
		if r.RegionKey != "" {
			regions[r.RegionKey] = true
		}
		if r.HasCoordinates() {
			s.WithLocation++
		}
	}

	s.Years = make([]int, 0, len(years))
	for y := range years {
		s.Years = append(s.Years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(s.Years)))

	s.Regions = make([]string, 0, len(regions))
	for r := range regions {
		s.Regions = append(s.Regions, r)
	}
	sort.Strings(s.Regions)
	return s
}

// SummarizeDensity returns nil when no region has a density.
func SummarizeDensity(stats map[string]RegionStat) *DensitySummary {
	var values []float64
	out := &DensitySummary{}
	for _, region := range SortedRegions(stats) {
		d := stats[region].Density
		if d == nil {
			continue
		}
		values = append(values, *d)
		if len(values) == 1 || *d > out.Max {
			out.Max, out.MaxAt = *d, region
		}
	}
	if len(values) == 0 {
		return nil
	}

	sort.Float64s(values)
	out.Regions = len(values)
	out.Mean = stat.Mean(values, nil)
	out.Median = stat.Quantile(0.5, stat.Empirical, values, nil)
	return out
}
