// Package sheets is the Google Sheets workbook. Each worksheet is a table whose
// first row is the header; data rows start at row 2.
package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"strava-club-sync/internal/metrics"
	"strava-club-sync/internal/store"
)

// Backend is the metrics label for this store
const Backend = "sheets"

const valueInputOption = "USER_ENTERED"

// Store is a spreadsheet opened through the Sheets API
type Store struct {
	service       *sheets.Service
	spreadsheetID string
	logger        *slog.Logger

	mu     sync.RWMutex
	tables map[string]*table
}

var _ store.Store = (*Store)(nil)

// New connects to a spreadsheet. Pass Credentials.ClientOption for production.
func New(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*Store, error) {
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Store{
		service:       service,
		spreadsheetID: spreadsheetID,
		logger:        slog.Default(),
		tables:        map[string]*table{},
	}, nil
}

// LoadSchema fetches worksheet titles and their header rows
func (s *Store) LoadSchema(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveStore(Backend, metrics.StoreOpLoadSchema, start, err) }()

	spreadsheet, err := s.service.Spreadsheets.Get(s.spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to fetch spreadsheet: %w", err)
	}

	var titles, ranges []string
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties == nil {
			continue
		}
		titles = append(titles, sheet.Properties.Title)
		ranges = append(ranges, quote(sheet.Properties.Title)+"!1:1")
	}

	tables := map[string]*table{}
	if len(ranges) > 0 {
		response, err := s.service.Spreadsheets.Values.BatchGet(s.spreadsheetID).
			Ranges(ranges...).
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("failed to fetch header rows: %w", err)
		}

		for i, title := range titles {
			var header []string
			if i < len(response.ValueRanges) && len(response.ValueRanges[i].Values) > 0 {
				header = trimTrailing(toStrings(response.ValueRanges[i].Values[0]))
			}
			tables[store.Normalise(title)] = &table{store: s, title: title, header: header}
		}
	}

	s.mu.Lock()
	s.tables = tables
	s.mu.Unlock()

	s.logger.Debug("sheets schema loaded", "spreadsheet_id", s.spreadsheetID, "tables", len(tables))
	return nil
}

// Table returns a loaded worksheet by title (case-insensitive)
func (s *Store) Table(title string) (store.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[store.Normalise(title)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrTableNotFound, title)
	}
	return t, nil
}

type table struct {
	store  *Store
	title  string
	header []string
}

var _ store.Table = (*table)(nil)

func (t *table) Title() string    { return t.title }
func (t *table) Header() []string { return t.header }

func (t *table) lastColumn() string {
	n := len(t.header)
	if n == 0 {
		n = 1
	}
	return store.ColumnName(n)
}

// dataRange covers every data row below the header
func (t *table) dataRange() string {
	return fmt.Sprintf("%s!A2:%s", quote(t.title), t.lastColumn())
}

func (t *table) Rows(ctx context.Context) (rows []*store.Row, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStore(Backend, metrics.StoreOpRows, start, err) }()

	response, err := t.store.service.Spreadsheets.Values.Get(t.store.spreadsheetID, t.dataRange()).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", t.title, err)
	}

	for i, values := range response.Values {
		rows = append(rows, store.NewRow(i, t.header, toStrings(values)))
	}
	return rows, nil
}

func (t *table) AddRows(ctx context.Context, records []store.Record) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveStore(Backend, metrics.StoreOpAddRows, start, err) }()

	values := make([][]interface{}, len(records))
	for i, record := range records {
		values[i] = toInterfaces(store.Cells(t.header, record))
	}

	_, err = t.store.service.Spreadsheets.Values.Append(t.store.spreadsheetID, quote(t.title)+"!A1", &sheets.ValueRange{Values: values}).
		ValueInputOption(valueInputOption).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append to %s: %w", t.title, err)
	}
	return nil
}

func (t *table) SaveRow(ctx context.Context, row *store.Row) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveStore(Backend, metrics.StoreOpSaveRow, start, err) }()

	n := row.Index + 2
	area := fmt.Sprintf("%s!A%d:%s%d", quote(t.title), n, t.lastColumn(), n)

	vr := sheets.ValueRange{
		Range:  area,
		Values: [][]interface{}{toInterfaces(row.Cells())},
	}

	_, err = t.store.service.Spreadsheets.Values.Update(t.store.spreadsheetID, area, &vr).
		ValueInputOption(valueInputOption).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", area, err)
	}
	return nil
}

func (t *table) Clear(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveStore(Backend, metrics.StoreOpClear, start, err) }()

	_, err = t.store.service.Spreadsheets.Values.Clear(t.store.spreadsheetID, t.dataRange(), &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to clear %s: %w", t.title, err)
	}
	return nil
}

// SetCells writes every cell in one batch update
func (t *table) SetCells(ctx context.Context, cells map[string]string) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveStore(Backend, metrics.StoreOpSetCells, start, err) }()

	refs := make([]string, 0, len(cells))
	for ref := range cells {
		refs = append(refs, ref)
	}
	sort.Strings(refs)

	rq := sheets.BatchUpdateValuesRequest{
		ValueInputOption: valueInputOption,
	}
	for _, ref := range refs {
		rq.Data = append(rq.Data, &sheets.ValueRange{
			Range:  quote(t.title) + "!" + ref,
			Values: [][]interface{}{{cells[ref]}},
		})
	}

	if _, err = t.store.service.Spreadsheets.Values.BatchUpdate(t.store.spreadsheetID, &rq).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to update %s cells: %w", t.title, err)
	}
	return nil
}

// quote wraps a sheet title for use in A1 notation
func quote(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func toStrings(values []interface{}) []string {
	cells := make([]string, len(values))
	for i, v := range values {
		cells[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return cells
}

func toInterfaces(cells []string) []interface{} {
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	return values
}

func trimTrailing(cells []string) []string {
	for len(cells) > 0 && cells[len(cells)-1] == "" {
		cells = cells[:len(cells)-1]
	}
	return cells
}
