// Command validate loads the records, population and boundary feeds once
// through the map engine and prints a data-quality report: feed availability,
// region join mismatches, population problems and records the map cannot
// place. It exits non-zero when a feed cannot be loaded, or with -strict when
// any data-quality note is raised.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -records data/sightings.json \
//	  -population data/population.json \
//	  -boundaries data/us-states.json
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/couchcryptid/sightings-map/internal/domain"
	"github.com/couchcryptid/sightings-map/internal/feed"
	"github.com/couchcryptid/sightings-map/internal/observability"
	"github.com/couchcryptid/sightings-map/internal/session"
	"github.com/dustin/go-humanize"
)

// phase tracks pass/fail for one section of the report.
type phase struct {
	name   string
	fatal  bool // a failing fatal phase fails the run even without -strict
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	records := flag.String("records", "data/sightings.json", "records feed location")
	population := flag.String("population", "data/population.json", "population feed location (json or sqlite://path)")
	populationTable := flag.String("population-table", "bigfoot_population", "table name for a sqlite population feed")
	boundaries := flag.String("boundaries", "data/us-states.json", "boundary GeoJSON location")
	timeout := flag.Duration("timeout", 30*time.Second, "per-feed fetch timeout")
	strict := flag.Bool("strict", false, "fail when any data-quality note is raised")
	flag.Parse()

	sources := feed.Sources{
		RecordsURL:      *records,
		PopulationURL:   *population,
		PopulationTable: *populationTable,
		BoundariesURL:   *boundaries,
	}
	if code := run(context.Background(), sources, *timeout, *strict, os.Stdout); code != 0 {
		os.Exit(code)
	}
}

func run(ctx context.Context, sources feed.Sources, timeout time.Duration, strict bool, out io.Writer) int {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()

	loader := feed.NewLoader(feed.NewFetcher(timeout, metrics, logger), sources, metrics, logger)
	c, err := session.New(loader, domain.DefaultTables(), logger, metrics)
	if err != nil {
		fmt.Fprintf(out, "FATAL: %v\n", err)
		return 1
	}

	fmt.Fprintln(out, "=== Sighting Map Data Validation ===")
	fmt.Fprintln(out)

	// Load errors are reported through the feed phase below.
	_ = c.Load(ctx)

	phases := buildPhases(c.Sources(), c.Notes())

	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d)\033[0m", len(p.errors))
		}
		fmt.Fprintf(out, "  %-32s %s\n", p.name, status)
	}

	if summary, err := c.Summary(); err == nil {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Records: %s total, %s with coordinates, %d regions, %d years\n",
			humanize.Comma(int64(summary.Total)), humanize.Comma(int64(summary.WithLocation)),
			len(summary.Regions), len(summary.Years))
		for _, class := range sortedKeys(summary.ByCategory) {
			fmt.Fprintf(out, "  %-14s %s\n", class, humanize.Comma(int64(summary.ByCategory[class])))
		}
		if d := summary.Density; d != nil {
			fmt.Fprintf(out, "Density: %d regions, mean %.3g, median %.3g, max %.3g (%s)\n",
				d.Regions, d.Mean, d.Median, d.Max, d.MaxAt)
		}
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if failed(phases, strict) {
		fmt.Fprintln(out, "\nValidation FAILED.")
		return 1
	}
	fmt.Fprintln(out, "\nAll validations passed.")
	return 0
}

// buildPhases groups the load outcome into report sections.
func buildPhases(sources []session.SourceState, notes []domain.Note) []*phase {
	feeds := &phase{name: "Feed availability", fatal: true}
	for _, s := range sources {
		if s.Status != session.StatusReady {
			feeds.errorf("%s: %s %s", s.Source, s.Status, s.Error)
		}
	}

	join := &phase{name: "Region join"}
	population := &phase{name: "Population"}
	location := &phase{name: "Record locations"}
	fields := &phase{name: "Field values"}

	for _, n := range notes {
		var p *phase
		switch n.Kind {
		case domain.NoteJoinMismatch, domain.NoteMissingRegion:
			p = join
		case domain.NotePopulationDivergence, domain.NoteMissingPopulation:
			p = population
		case domain.NoteLocationMismatch:
			p = location
		default:
			p = fields
		}
		p.errorf("%s", describe(n))
	}
	return []*phase{feeds, join, population, location, fields}
}

func describe(n domain.Note) string {
	s := string(n.Kind)
	if n.RecordID != "" {
		s += " record=" + n.RecordID
	}
	if n.RegionKey != "" {
		s += fmt.Sprintf(" region=%q", n.RegionKey)
	}
	s += ": " + n.Detail
	if n.Suggestion != "" {
		s += fmt.Sprintf(" (did you mean %q?)", n.Suggestion)
	}
	return s
}

func failed(phases []*phase, strict bool) bool {
	for _, p := range phases {
		if !p.passed() && (p.fatal || strict) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
