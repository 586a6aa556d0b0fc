package store

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memTable is a minimal in-memory Table
type memTable struct {
	title  string
	header []string
	rows   [][]string
	cells  map[string]string
	saves  int
	reads  int
	adds   int
}

func (m *memTable) Title() string    { return m.title }
func (m *memTable) Header() []string { return m.header }

func (m *memTable) Rows(ctx context.Context) ([]*Row, error) {
	m.reads++
	rows := make([]*Row, len(m.rows))
	for i, cells := range m.rows {
		rows[i] = NewRow(i, m.header, cells)
	}
	return rows, nil
}

func (m *memTable) AddRows(ctx context.Context, records []Record) error {
	m.adds++
	for _, r := range records {
		m.rows = append(m.rows, Cells(m.header, r))
	}
	return nil
}

func (m *memTable) SaveRow(ctx context.Context, row *Row) error {
	if row.Index >= len(m.rows) {
		return errors.New("no such row")
	}
	m.rows[row.Index] = row.Cells()
	m.saves++
	return nil
}

func (m *memTable) Clear(ctx context.Context) error {
	m.rows = nil
	return nil
}

func (m *memTable) SetCells(ctx context.Context, cells map[string]string) error {
	if m.cells == nil {
		m.cells = map[string]string{}
	}
	for k, v := range cells {
		m.cells[k] = v
	}
	return nil
}

type memStore map[string]*memTable

func (s memStore) LoadSchema(ctx context.Context) error { return nil }

func (s memStore) Table(title string) (Table, error) {
	if t, ok := s[Normalise(title)]; ok {
		return t, nil
	}
	return nil, ErrTableNotFound
}

func TestRowAccessIsCaseInsensitive(t *testing.T) {
	row := NewRow(0, []string{"Athlete ID", "Name"}, []string{"42", "Jane Doe"})

	assert.Equal(t, "42", row.Get("AthleteID"))
	assert.Equal(t, "42", row.Get("athlete id"))
	assert.Equal(t, "Jane Doe", row.Get("NAME"))
	assert.Equal(t, "", row.Get("missing"))

	row.Set("name", "Jane D.")
	row.Set("extra", "dropped")
	assert.Equal(t, []string{"42", "Jane D."}, row.Cells())
	assert.Equal(t, Record{"Athlete ID": "42", "Name": "Jane D."}, row.Record())
}

func TestNewRowShortCells(t *testing.T) {
	row := NewRow(3, []string{"a", "b", "c"}, []string{"1"})
	assert.Equal(t, []string{"1", "", ""}, row.Cells())
	assert.Equal(t, 3, row.Index)
}

func TestCells(t *testing.T) {
	cells := Cells([]string{"athlete_id", "Name", "type"}, Record{"name": "Jane", "athlete_id": "1", "other": "x"})
	assert.Equal(t, []string{"1", "Jane", ""}, cells)
}

func TestColumnName(t *testing.T) {
	tests := map[int]string{1: "A", 7: "G", 26: "Z", 27: "AA", 52: "AZ", 53: "BA", 702: "ZZ", 703: "AAA"}
	for n, expected := range tests {
		assert.Equal(t, expected, ColumnName(n), "ColumnName(%d)", n)
	}
}

func TestRequire(t *testing.T) {
	table := &memTable{title: "Stats", header: []string{"athlete_id", "Name"}}

	assert.NoError(t, Require(table, "athlete_id", "name"))

	err := Require(table, "athlete_id", "type", "date")
	var missing *MissingColumnsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "Stats", missing.Table)
	assert.Equal(t, []string{"type", "date"}, missing.Columns)
	assert.Equal(t, "table Stats is missing required columns: type, date", err.Error())

	assert.True(t, HasColumn(table, "NAME"))
	assert.False(t, HasColumn(table, "type"))
}

func TestLookup(t *testing.T) {
	s := memStore{"stats": {title: "Stats", header: []string{"athlete_id"}}}

	_, err := Lookup(s, "Athletes")
	assert.ErrorIs(t, err, ErrTableNotFound)

	_, err = Lookup(s, "Stats", "athlete_id", "date")
	assert.Error(t, err)

	table, err := Lookup(s, "stats", "athlete_id")
	require.NoError(t, err)
	assert.Equal(t, "Stats", table.Title())
}

func TestUpsertFindOrAppend(t *testing.T) {
	ctx := context.Background()
	table := &memTable{
		title:  "Summary",
		header: []string{"athlete_id", "name", "total_points"},
		rows: [][]string{
			{"1", "Jane Doe", "3"},
			{"2", "John Roe", "7"},
		},
	}

	appended, err := Upsert(ctx, table, "athlete_id", Record{"athlete_id": "2", "total_points": "9"})
	require.NoError(t, err)
	assert.False(t, appended)
	assert.Equal(t, []string{"2", "John Roe", "9"}, table.rows[1])
	assert.Equal(t, 1, table.saves)

	appended, err = Upsert(ctx, table, "athlete_id", Record{"athlete_id": "3", "name": "Ann Poe", "total_points": "1"})
	require.NoError(t, err)
	assert.True(t, appended)
	require.Len(t, table.rows, 3)
	assert.Equal(t, []string{"3", "Ann Poe", "1"}, table.rows[2])
}

func TestUpsertAllReadsOnce(t *testing.T) {
	ctx := context.Background()
	table := &memTable{
		title:  "Summary",
		header: []string{"athlete_id", "name", "total_points"},
		rows: [][]string{
			{"1", "Jane Doe", "3"},
			{"2", "John Roe", "7"},
		},
	}

	records := []Record{
		{"athlete_id": "1", "name": "Jane Doe", "total_points": "3"},
		{"athlete_id": "2", "name": "John Roe", "total_points": "9"},
	}
	for i := 3; i < 63; i++ {
		id := strconv.Itoa(i)
		records = append(records, Record{"athlete_id": id, "name": "Member " + id, "total_points": "1"})
	}
	records = append(records, Record{"athlete_id": "3", "name": "Member 3", "total_points": "4"})

	added, err := UpsertAll(ctx, table, "athlete_id", records)
	require.NoError(t, err)

	assert.Equal(t, 60, added)
	assert.Equal(t, 1, table.reads)
	assert.Equal(t, 1, table.adds)
	assert.Equal(t, 1, table.saves, "unchanged rows are not written")
	require.Len(t, table.rows, 62)
	assert.Equal(t, []string{"2", "John Roe", "9"}, table.rows[1])
	assert.Equal(t, []string{"3", "Member 3", "4"}, table.rows[2], "later record for a new key wins")

	added, err = UpsertAll(ctx, table, "athlete_id", records[:2])
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Equal(t, 2, table.reads)
	assert.Equal(t, 1, table.adds)
	assert.Equal(t, 1, table.saves)
}

func TestReplaceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	table := &memTable{title: "Stats", header: []string{"athlete_id", "type"}}

	records := []Record{
		{"athlete_id": "1", "type": "Run"},
		{"athlete_id": "2", "type": "Ride"},
	}

	require.NoError(t, Replace(ctx, table, records))
	require.NoError(t, Replace(ctx, table, records))

	assert.Equal(t, [][]string{{"1", "Run"}, {"2", "Ride"}}, table.rows)

	require.NoError(t, Replace(ctx, table, nil))
	assert.Empty(t, table.rows)
}

func TestNormalise(t *testing.T) {
	assert.Equal(t, "athleteid", Normalise(" Athlete  ID "))
	assert.Equal(t, "start_date", Normalise("START_DATE"))
}
