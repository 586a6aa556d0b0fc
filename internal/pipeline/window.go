package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"strava-club-sync/internal/config"
	"strava-club-sync/internal/store"
)

// Config table keys
const (
	KeyStartDate = "START_DATE"
	KeyEndDate   = "END_DATE"
)

// ReadWindow resolves the reconciliation window from the Config table.
//
// Two layouts are accepted. Vertical: "Key" and "Value" columns with one row
// per setting. Horizontal: START_DATE and END_DATE columns, read from the
// first data row. Vertical wins when it yields at least one recognised,
// non-empty setting. Anything missing or unparsable falls back to defaults
// per key; the returned notes describe each fallback.
func ReadWindow(ctx context.Context, s store.Store, defaults config.Window, loc *time.Location) (config.Window, []string) {
	var notes []string

	t, err := s.Table(store.TableConfig)
	if err != nil {
		return defaults, append(notes, "Config table not found, using default window")
	}

	rows, err := t.Rows(ctx)
	if err != nil {
		return defaults, append(notes, fmt.Sprintf("Config table unreadable, using default window: %v", err))
	}

	values := readVertical(t, rows)
	if len(values) == 0 {
		values = readHorizontal(t, rows)
	}
	if len(values) == 0 {
		return defaults, notes
	}

	start := defaults.Start()
	if v, ok := values[KeyStartDate]; ok {
		parsed, err := config.ParseDate(v, loc, false)
		if err != nil {
			notes = append(notes, fmt.Sprintf("%s %q unparsable, using default", KeyStartDate, v))
		} else {
			start = parsed
		}
	}

	end := defaults.End()
	if v, ok := values[KeyEndDate]; ok {
		parsed, err := config.ParseDate(v, loc, true)
		if err != nil {
			notes = append(notes, fmt.Sprintf("%s %q unparsable, using default", KeyEndDate, v))
		} else {
			end = parsed
		}
	}

	window, err := config.NewWindow(start, end)
	if err != nil {
		return defaults, append(notes, fmt.Sprintf("configured window rejected, using default: %v", err))
	}
	return window, notes
}

func readVertical(t store.Table, rows []*store.Row) map[string]string {
	if !store.HasColumn(t, "key") || !store.HasColumn(t, "value") {
		return nil
	}

	values := map[string]string{}
	for _, row := range rows {
		key := strings.ToUpper(strings.TrimSpace(row.Get("key")))
		value := strings.TrimSpace(row.Get("value"))
		if value == "" || (key != KeyStartDate && key != KeyEndDate) {
			continue
		}
		if _, seen := values[key]; !seen {
			values[key] = value
		}
	}
	return values
}

func readHorizontal(t store.Table, rows []*store.Row) map[string]string {
	if len(rows) == 0 || (!store.HasColumn(t, KeyStartDate) && !store.HasColumn(t, KeyEndDate)) {
		return nil
	}

	values := map[string]string{}
	for _, key := range []string{KeyStartDate, KeyEndDate} {
		if v := strings.TrimSpace(rows[0].Get(key)); v != "" {
			values[key] = v
		}
	}
	return values
}
