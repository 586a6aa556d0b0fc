package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"strava-club-sync/internal/config"
	"strava-club-sync/internal/model"
	"strava-club-sync/internal/store"
)

var (
	statsColumns   = []string{"athlete_id", "name", "type", "distance_meters", "moving_time", "elevation_gain", "date"}
	summaryColumns = []string{"athlete_id", "name", "total_points", "total_distance_km", "last_activity", "last_activity_label"}
)

// Leaderboard metadata cells
const (
	CellLastSync    = "E2"
	CellNextSync    = "F2"
	CellWindowStart = "G2"
	CellWindowEnd   = "H2"
)

// StatsRecord renders an activity as a Stats row. Untimed club records are
// dated at the window start.
func StatsRecord(a model.Activity, window config.Window) store.Record {
	date := window.Start()
	if a.HasTimestamp() {
		date = a.OccurredAt
	}

	return store.Record{
		"athlete_id":      a.AthleteID,
		"name":            a.Name,
		"type":            a.Type,
		"distance_meters": strconv.FormatFloat(a.DistanceMeters, 'f', -1, 64),
		"moving_time":     strconv.Itoa(a.MovingTimeSeconds),
		"elevation_gain":  strconv.FormatFloat(a.ElevationGainMeters, 'f', -1, 64),
		"date":            date.Format(time.RFC3339),
	}
}

// SummaryRecord renders an athlete's totals as a Summary row
func SummaryRecord(s model.ScoreSummary) store.Record {
	last := ""
	if s.LastActivityAt != nil {
		last = s.LastActivityAt.Format(time.RFC3339)
	}

	return store.Record{
		"athlete_id":          s.AthleteID,
		"name":                s.Name,
		"total_points":        strconv.Itoa(s.TotalPoints),
		"total_distance_km":   strconv.FormatFloat(s.TotalDistanceKm, 'f', 2, 64),
		"last_activity":       last,
		"last_activity_label": s.LastActivityLabel,
	}
}

// writeStats fully replaces Stats with the reconciled set, newest first
func writeStats(ctx context.Context, t store.Table, activities []model.Activity, window config.Window) error {
	records := make([]store.Record, len(activities))
	for i, a := range activities {
		records[i] = StatsRecord(a, window)
	}
	return store.Replace(ctx, t, records)
}

// writeSummary finds or appends one Summary row per athlete, reading the
// table once. The table is optional; it reports whether the table was present.
func writeSummary(ctx context.Context, s store.Store, summaries []model.ScoreSummary) (bool, error) {
	t, err := store.Lookup(s, store.TableSummary, summaryColumns...)
	if errors.Is(err, store.ErrTableNotFound) {
		return false, nil
	}
	if err != nil {
		return true, err
	}

	records := make([]store.Record, len(summaries))
	for i, summary := range summaries {
		records[i] = SummaryRecord(summary)
	}
	if _, err := store.UpsertAll(ctx, t, "athlete_id", records); err != nil {
		return true, fmt.Errorf("failed to upsert summaries: %w", err)
	}
	return true, nil
}

// writeMetadata overwrites the Leaderboard sync cells. The table is optional;
// it reports whether the table was present.
func writeMetadata(ctx context.Context, s store.Store, lastSync, nextSync time.Time, window config.Window) (bool, error) {
	t, err := s.Table(store.TableLeaderboard)
	if errors.Is(err, store.ErrTableNotFound) {
		return false, nil
	}
	if err != nil {
		return true, err
	}

	cells := map[string]string{
		CellLastSync:    lastSync.Format(time.RFC3339),
		CellNextSync:    nextSync.Format(time.RFC3339),
		CellWindowStart: window.Start().Format(time.RFC3339),
		CellWindowEnd:   window.End().Format(time.RFC3339),
	}
	if err := t.SetCells(ctx, cells); err != nil {
		return true, fmt.Errorf("failed to write leaderboard metadata: %w", err)
	}
	return true, nil
}

// ActivityFromStats reads back a Stats row written by StatsRecord. Unparsable
// numbers read as zero.
func ActivityFromStats(row *store.Row) model.Activity {
	a := model.Activity{
		AthleteID: row.Get("athlete_id"),
		Name:      row.Get("name"),
		Type:      row.Get("type"),
	}
	a.DistanceMeters, _ = strconv.ParseFloat(row.Get("distance_meters"), 64)
	a.MovingTimeSeconds, _ = strconv.Atoi(row.Get("moving_time"))
	a.ElevationGainMeters, _ = strconv.ParseFloat(row.Get("elevation_gain"), 64)
	if t, err := time.Parse(time.RFC3339, row.Get("date")); err == nil {
		a.OccurredAt = t
	}
	return a
}
