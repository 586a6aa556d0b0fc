package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strava-club-sync/internal/database"
	"strava-club-sync/internal/store"
)

func configStore(t *testing.T, header []string, records ...store.Record) *database.DB {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(filepath.Join(t.TempDir(), "window.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	if header != nil {
		require.NoError(t, db.CreateTable(ctx, store.TableConfig, header))
		tbl, err := db.Table(store.TableConfig)
		require.NoError(t, err)
		if len(records) > 0 {
			require.NoError(t, tbl.AddRows(ctx, records))
		}
	}
	return db
}

func TestReadWindow(t *testing.T) {
	defaults := testWindow(t)
	march1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	june30End := time.Date(2026, 6, 30, 23, 59, 59, int(999*time.Millisecond), time.UTC)

	tests := []struct {
		name      string
		header    []string
		records   []store.Record
		wantStart time.Time
		wantEnd   time.Time
		notes     int
	}{
		{
			name:      "no config table",
			wantStart: defaults.Start(),
			wantEnd:   defaults.End(),
			notes:     1,
		},
		{
			name:      "empty config table",
			header:    []string{"Key", "Value"},
			wantStart: defaults.Start(),
			wantEnd:   defaults.End(),
		},
		{
			name:      "vertical start only",
			header:    []string{"Key", "Value"},
			records:   []store.Record{{"Key": "START_DATE", "Value": "2026-03-01"}},
			wantStart: march1,
			wantEnd:   defaults.End(),
		},
		{
			name:   "vertical keys are case-insensitive and first wins",
			header: []string{"Key", "Value"},
			records: []store.Record{
				{"Key": "end_date", "Value": "2026-06-30"},
				{"Key": "END_DATE", "Value": "2026-07-31"},
				{"Key": "OTHER", "Value": "x"},
			},
			wantStart: defaults.Start(),
			wantEnd:   june30End,
		},
		{
			name:      "horizontal layout",
			header:    []string{"START_DATE", "END_DATE"},
			records:   []store.Record{{"START_DATE": "2026-03-01", "END_DATE": "2026-06-30"}},
			wantStart: march1,
			wantEnd:   june30End,
		},
		{
			name:      "horizontal with timestamp",
			header:    []string{"START_DATE"},
			records:   []store.Record{{"START_DATE": "2026-03-01T00:00:00Z"}},
			wantStart: march1,
			wantEnd:   defaults.End(),
		},
		{
			name:      "unparsable value falls back per key",
			header:    []string{"Key", "Value"},
			records:   []store.Record{{"Key": "START_DATE", "Value": "next tuesday"}, {"Key": "END_DATE", "Value": "2026-06-30"}},
			wantStart: defaults.Start(),
			wantEnd:   june30End,
			notes:     1,
		},
		{
			name:      "inverted window rejected",
			header:    []string{"Key", "Value"},
			records:   []store.Record{{"Key": "START_DATE", "Value": "2026-09-01"}, {"Key": "END_DATE", "Value": "2026-06-30"}},
			wantStart: defaults.Start(),
			wantEnd:   defaults.End(),
			notes:     1,
		},
		{
			name:      "unrelated columns",
			header:    []string{"Setting"},
			records:   []store.Record{{"Setting": "2026-03-01"}},
			wantStart: defaults.Start(),
			wantEnd:   defaults.End(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := configStore(t, tt.header, tt.records...)

			window, notes := ReadWindow(context.Background(), db, defaults, time.UTC)

			assert.Equal(t, tt.wantStart, window.Start())
			assert.Equal(t, tt.wantEnd, window.End())
			assert.Len(t, notes, tt.notes, "notes: %v", notes)
		})
	}
}

func TestReadWindowUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	db := configStore(t, []string{"Key", "Value"}, store.Record{"Key": "START_DATE", "Value": "2026-03-01"})

	window, notes := ReadWindow(context.Background(), db, testWindow(t), loc)
	require.Empty(t, notes)
	assert.Equal(t, time.Date(2026, 2, 28, 22, 0, 0, 0, time.UTC), window.Start().UTC())
}
