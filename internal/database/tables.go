package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"strava-club-sync/internal/metrics"
	"strava-club-sync/internal/store"
)

// table is one sheet in the SQLite workbook
type table struct {
	db     *DB
	title  string
	header []string
}

var _ store.Table = (*table)(nil)

// CreateTable adds a table with the given header. It fails if the title exists.
func (db *DB) CreateTable(ctx context.Context, title string, header []string) error {
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO sheets (name, header_json, created_at) VALUES (?, ?, ?)
	`, title, string(headerJSON), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", title, err)
	}

	db.mu.Lock()
	db.tables[store.Normalise(title)] = &table{db: db, title: title, header: header}
	db.mu.Unlock()

	return nil
}

// DropTable removes a table with its rows and cells
func (db *DB) DropTable(ctx context.Context, title string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sheets WHERE name = ?`, title); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", title, err)
	}

	db.mu.Lock()
	delete(db.tables, store.Normalise(title))
	db.mu.Unlock()

	return nil
}

// LoadSchema reads every table title and header
func (db *DB) LoadSchema(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveStore(Backend, metrics.StoreOpLoadSchema, start, err) }()

	rows, err := db.conn.QueryContext(ctx, `SELECT name, header_json FROM sheets`)
	if err != nil {
		return fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	tables := map[string]*table{}
	for rows.Next() {
		var title, headerJSON string
		if err := rows.Scan(&title, &headerJSON); err != nil {
			return fmt.Errorf("failed to scan table: %w", err)
		}

		var header []string
		if err := json.Unmarshal([]byte(headerJSON), &header); err != nil {
			return fmt.Errorf("failed to decode header of %s: %w", title, err)
		}

		tables[store.Normalise(title)] = &table{db: db, title: title, header: header}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read tables: %w", err)
	}

	db.mu.Lock()
	db.tables = tables
	db.mu.Unlock()

	return nil
}

// Table returns a loaded table by title (case-insensitive)
func (db *DB) Table(title string) (store.Table, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	t, ok := db.tables[store.Normalise(title)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrTableNotFound, title)
	}
	return t, nil
}

// TableTitles lists the loaded table titles alphabetically
func (db *DB) TableTitles() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()

	titles := make([]string, 0, len(db.tables))
	for _, t := range db.tables {
		titles = append(titles, t.title)
	}
	sort.Strings(titles)
	return titles
}

func (t *table) Title() string    { return t.title }
func (t *table) Header() []string { return t.header }

// Rows returns every data row in insertion order
func (t *table) Rows(ctx context.Context) (result []*store.Row, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStore(Backend, metrics.StoreOpRows, start, err) }()

	rows, err := t.db.conn.QueryContext(ctx, `
		SELECT values_json FROM sheet_rows WHERE sheet = ? ORDER BY id
	`, t.title)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows of %s: %w", t.title, err)
	}
	defer rows.Close()

	for index := 0; rows.Next(); index++ {
		var valuesJSON string
		if err := rows.Scan(&valuesJSON); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		var cells []string
		if err := json.Unmarshal([]byte(valuesJSON), &cells); err != nil {
			return nil, fmt.Errorf("failed to decode row %d of %s: %w", index, t.title, err)
		}

		result = append(result, store.NewRow(index, t.header, cells))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows of %s: %w", t.title, err)
	}

	return result, nil
}

// AddRows appends records in one transaction
func (t *table) AddRows(ctx context.Context, records []store.Record) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveStore(Backend, metrics.StoreOpAddRows, start, err) }()

	tx, err := t.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sheet_rows (sheet, values_json, updated_at) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, record := range records {
		valuesJSON, err := json.Marshal(store.Cells(t.header, record))
		if err != nil {
			return fmt.Errorf("failed to marshal row: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, t.title, string(valuesJSON), now); err != nil {
			return fmt.Errorf("failed to insert row into %s: %w", t.title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rows: %w", err)
	}
	return nil
}

// SaveRow overwrites the row at row.Index
func (t *table) SaveRow(ctx context.Context, row *store.Row) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveStore(Backend, metrics.StoreOpSaveRow, start, err) }()

	var id int64
	err = t.db.conn.QueryRowContext(ctx, `
		SELECT id FROM sheet_rows WHERE sheet = ? ORDER BY id LIMIT 1 OFFSET ?
	`, t.title, row.Index).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("row %d of %s does not exist", row.Index, t.title)
	}
	if err != nil {
		return fmt.Errorf("failed to locate row %d of %s: %w", row.Index, t.title, err)
	}

	valuesJSON, err := json.Marshal(row.Cells())
	if err != nil {
		return fmt.Errorf("failed to marshal row: %w", err)
	}

	_, err = t.db.conn.ExecContext(ctx, `
		UPDATE sheet_rows SET values_json = ?, updated_at = ? WHERE id = ?
	`, string(valuesJSON), time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update row %d of %s: %w", row.Index, t.title, err)
	}
	return nil
}

// Clear deletes every data row. Cells are kept.
func (t *table) Clear(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveStore(Backend, metrics.StoreOpClear, start, err) }()

	if _, err = t.db.conn.ExecContext(ctx, `DELETE FROM sheet_rows WHERE sheet = ?`, t.title); err != nil {
		return fmt.Errorf("failed to clear %s: %w", t.title, err)
	}
	return nil
}

// SetCells upserts the given cells in one transaction
func (t *table) SetCells(ctx context.Context, cells map[string]string) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveStore(Backend, metrics.StoreOpSetCells, start, err) }()

	tx, err := t.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for ref, value := range cells {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sheet_cells (sheet, ref, value, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT (sheet, ref) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, t.title, ref, value, now)
		if err != nil {
			return fmt.Errorf("failed to set %s!%s: %w", t.title, ref, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cells: %w", err)
	}
	return nil
}

// Cells returns every free-form cell of a table keyed by A1 reference
func (db *DB) Cells(ctx context.Context, title string) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT ref, value FROM sheet_cells WHERE sheet = ?
	`, title)
	if err != nil {
		return nil, fmt.Errorf("failed to query cells of %s: %w", title, err)
	}
	defer rows.Close()

	cells := map[string]string{}
	for rows.Next() {
		var ref, value string
		if err := rows.Scan(&ref, &value); err != nil {
			return nil, fmt.Errorf("failed to scan cell: %w", err)
		}
		cells[ref] = value
	}
	return cells, rows.Err()
}

// CreateDefaultTables creates any of the pipeline's tables that are missing
func (db *DB) CreateDefaultTables(ctx context.Context) ([]string, error) {
	if err := db.LoadSchema(ctx); err != nil {
		return nil, err
	}

	var created []string
	for _, title := range store.Titles {
		if _, err := db.Table(title); err == nil {
			continue
		}
		if err := db.CreateTable(ctx, title, store.Headers[title]); err != nil {
			return created, err
		}
		created = append(created, title)
	}
	return created, nil
}
