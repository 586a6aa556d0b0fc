package pipeline

import (
	"context"
	"log/slog"
	"time"

	"strava-club-sync/internal/config"
)

// Athlete outcomes
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// AthleteResult is the outcome of one athlete's verified sync
type AthleteResult struct {
	AthleteID  string
	Name       string
	Status     string
	Reason     string
	Rotated    bool
	Activities int
}

// Report summarises one run
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Window     config.Window

	Athletes []AthleteResult

	VerifiedActivities int
	ClubActivities     int
	ClubKept           int
	Suppressed         int
	ClubPages          int
	ClubError          string
	ClubTokenRotated   bool

	StatsRows    int
	StatsSkipped bool
	Leaderboard  int
	Published    bool

	Warnings []string
}

func (r *Report) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

func (r *Report) addAthlete(result AthleteResult) {
	r.Athletes = append(r.Athletes, result)
}

// Count returns the number of athletes with the given status
func (r *Report) Count(status string) int {
	n := 0
	for _, a := range r.Athletes {
		if a.Status == status {
			n++
		}
	}
	return n
}

// Degraded reports whether the run completed with missing data
func (r *Report) Degraded() bool {
	return r.ClubError != "" || r.Count(StatusFailed) > 0 || r.StatsSkipped
}

// Log writes one sync_report line plus a line per failed or skipped athlete
func (r *Report) Log(logger *slog.Logger) {
	for _, a := range r.Athletes {
		if a.Status == StatusOK {
			continue
		}
		logger.Warn("athlete_sync",
			"run_id", r.RunID,
			"athlete_id", a.AthleteID,
			"name", a.Name,
			"status", a.Status,
			"reason", a.Reason,
		)
	}

	level := slog.LevelInfo
	if r.Degraded() {
		level = slog.LevelWarn
	}

	logger.Log(context.Background(), level, "sync_report",
		"run_id", r.RunID,
		"window", r.Window.String(),
		"athletes_ok", r.Count(StatusOK),
		"athletes_failed", r.Count(StatusFailed),
		"athletes_skipped", r.Count(StatusSkipped),
		"verified_activities", r.VerifiedActivities,
		"club_activities", r.ClubActivities,
		"club_kept", r.ClubKept,
		"duplicates_suppressed", r.Suppressed,
		"club_pages", r.ClubPages,
		"club_error", r.ClubError,
		"stats_rows", r.StatsRows,
		"stats_skipped", r.StatsSkipped,
		"leaderboard_athletes", r.Leaderboard,
		"published", r.Published,
		"warnings", r.Warnings,
		"duration_ms", r.FinishedAt.Sub(r.StartedAt).Milliseconds(),
	)
}
