package feed

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/couchcryptid/sightings-map/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteScheme prefixes a population location served from a SQLite file.
const SQLiteScheme = "sqlite://"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// IsSQLite reports whether location names a SQLite population source.
func IsSQLite(location string) bool {
	return strings.HasPrefix(location, SQLiteScheme)
}

// LoadSQLitePopulation reads {state, POPESTIMATE2023} rows from table in the
// SQLite database at path. Rows without a state or a positive population
// are skipped with a note.
func LoadSQLitePopulation(ctx context.Context, path, table string) ([]domain.PopulationEntry, []domain.Note, error) {
	if !tableName.MatchString(table) {
		return nil, nil, fmt.Errorf("invalid population table name %q", table)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("open population db: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	query := fmt.Sprintf(`SELECT DISTINCT state, POPESTIMATE2023 FROM "%s"`, table)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("query population: %w", err)
	}
	defer rows.Close()

	var entries []domain.PopulationEntry
	var notes []domain.Note
	for rows.Next() {
		var state sql.NullString
		var pop sql.NullFloat64
		if err := rows.Scan(&state, &pop); err != nil {
			return nil, nil, fmt.Errorf("scan population row: %w", err)
		}
		region := strings.TrimSpace(state.String)
		if !state.Valid || region == "" || !pop.Valid || pop.Float64 <= 0 || pop.Float64 != math.Trunc(pop.Float64) {
			notes = append(notes, domain.Note{
				Kind:      domain.NoteInvalidField,
				RegionKey: region,
				Detail:    "population row skipped",
			})
			continue
		}
		entries = append(entries, domain.PopulationEntry{RegionKey: region, Population: int64(pop.Float64)})
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("read population rows: %w", err)
	}
	return entries, notes, nil
}
