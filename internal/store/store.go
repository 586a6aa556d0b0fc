// Package store defines the row-oriented workbook the sync pipeline reads and
// writes. A workbook is a set of titled tables, each with a header row, data
// rows addressed by position, and free-form cells addressed by A1 reference.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Table titles used by the sync pipeline
const (
	TableAthletes    = "Athletes"
	TableStats       = "Stats"
	TableSummary     = "Summary"
	TableConfig      = "Config"
	TableLeaderboard = "Leaderboard"
)

// Headers are the canonical header rows of the pipeline's tables, used when
// creating a fresh workbook. Column matching is case-insensitive.
var Headers = map[string][]string{
	TableAthletes:    {"athlete_id", "name", "refresh_token", "last_registered"},
	TableStats:       {"athlete_id", "name", "type", "distance_meters", "moving_time", "elevation_gain", "date"},
	TableSummary:     {"athlete_id", "name", "total_points", "total_distance_km", "last_activity", "last_activity_label"},
	TableConfig:      {"Key", "Value"},
	TableLeaderboard: {"rank", "name", "points", "distance", "last_sync", "next_sync", "window_start", "window_end"},
}

// Titles lists the pipeline's tables in creation order
var Titles = []string{TableAthletes, TableStats, TableSummary, TableConfig, TableLeaderboard}

// ErrTableNotFound is returned when a workbook has no table with the requested title
var ErrTableNotFound = errors.New("table not found")

// Record is a set of field values keyed by column name
type Record map[string]string

// Store is a workbook of tables
type Store interface {
	// LoadSchema fetches table titles and header rows. It must be called
	// before Table and again to observe tables created elsewhere.
	LoadSchema(ctx context.Context) error
	// Table returns the table with the given title (case-insensitive)
	Table(title string) (Table, error)
}

// Table is one worksheet
type Table interface {
	Title() string
	Header() []string
	Rows(ctx context.Context) ([]*Row, error)
	AddRows(ctx context.Context, records []Record) error
	SaveRow(ctx context.Context, row *Row) error
	// Clear removes every data row, keeping the header
	Clear(ctx context.Context) error
	// SetCells overwrites individual cells, keyed by A1 reference
	SetCells(ctx context.Context, cells map[string]string) error
}

// MissingColumnsError reports required columns absent from a table header
type MissingColumnsError struct {
	Table   string
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("table %s is missing required columns: %s", e.Table, strings.Join(e.Columns, ", "))
}

// Require checks that a table header has every named column
func Require(t Table, columns ...string) error {
	present := map[string]bool{}
	for _, h := range t.Header() {
		present[Normalise(h)] = true
	}

	var missing []string
	for _, c := range columns {
		if !present[Normalise(c)] {
			missing = append(missing, c)
		}
	}

	if len(missing) > 0 {
		return &MissingColumnsError{Table: t.Title(), Columns: missing}
	}
	return nil
}

// HasColumn reports whether a table header has the named column
func HasColumn(t Table, column string) bool {
	return Require(t, column) == nil
}

// Lookup returns the named table, validating its header
func Lookup(s Store, title string, columns ...string) (Table, error) {
	t, err := s.Table(title)
	if err != nil {
		return nil, err
	}
	if err := Require(t, columns...); err != nil {
		return nil, err
	}
	return t, nil
}

// AddRow appends a single record
func AddRow(ctx context.Context, t Table, record Record) error {
	return t.AddRows(ctx, []Record{record})
}

// FindRow returns the first row whose field equals value
func FindRow(rows []*Row, field, value string) *Row {
	for _, row := range rows {
		if row.Get(field) == value {
			return row
		}
	}
	return nil
}

// Upsert updates the row whose key field matches the record, or appends the
// record when there is none. It reports whether a row was appended.
func Upsert(ctx context.Context, t Table, key string, record Record) (bool, error) {
	rows, err := t.Rows(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", t.Title(), err)
	}

	if row := FindRow(rows, key, record[key]); row != nil {
		for field, value := range record {
			row.Set(field, value)
		}
		if err := t.SaveRow(ctx, row); err != nil {
			return false, fmt.Errorf("failed to save %s row %d: %w", t.Title(), row.Index, err)
		}
		return false, nil
	}

	if err := AddRow(ctx, t, record); err != nil {
		return false, fmt.Errorf("failed to append %s row: %w", t.Title(), err)
	}
	return true, nil
}

// UpsertAll applies Upsert to many records with a single read. Rows whose
// values are unchanged are not written back, and new records are appended in
// one call. It reports how many records were appended.
func UpsertAll(ctx context.Context, t Table, key string, records []Record) (int, error) {
	rows, err := t.Rows(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", t.Title(), err)
	}

	index := make(map[string]*Row, len(rows))
	for _, row := range rows {
		if _, seen := index[row.Get(key)]; !seen {
			index[row.Get(key)] = row
		}
	}

	var added []Record
	pending := map[string]int{}
	for _, record := range records {
		id := record[key]

		if row, ok := index[id]; ok {
			changed := false
			for field, value := range record {
				if row.Get(field) != value {
					row.Set(field, value)
					changed = true
				}
			}
			if !changed {
				continue
			}
			if err := t.SaveRow(ctx, row); err != nil {
				return 0, fmt.Errorf("failed to save %s row %d: %w", t.Title(), row.Index, err)
			}
			continue
		}

		if i, ok := pending[id]; ok {
			added[i] = record
			continue
		}
		pending[id] = len(added)
		added = append(added, record)
	}

	if len(added) == 0 {
		return 0, nil
	}
	if err := t.AddRows(ctx, added); err != nil {
		return 0, fmt.Errorf("failed to append %s rows: %w", t.Title(), err)
	}
	return len(added), nil
}

// Replace clears a table and inserts records in order
func Replace(ctx context.Context, t Table, records []Record) error {
	if err := t.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear %s: %w", t.Title(), err)
	}
	if len(records) == 0 {
		return nil
	}
	if err := t.AddRows(ctx, records); err != nil {
		return fmt.Errorf("failed to insert %s rows: %w", t.Title(), err)
	}
	return nil
}

// Normalise maps a column name to its comparison form: lower case, no spaces
func Normalise(column string) string {
	return strings.ToLower(strings.Join(strings.Fields(column), ""))
}
