// Package pipeline runs one leaderboard sync: read the window, refresh
// credentials, fetch both feeds, reconcile, score, then write the row store
// and the scoreboard artifact.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"strava-club-sync/internal/config"
	"strava-club-sync/internal/metrics"
	"strava-club-sync/internal/model"
	"strava-club-sync/internal/publish"
	"strava-club-sync/internal/reconcile"
	"strava-club-sync/internal/scoring"
	"strava-club-sync/internal/store"
	"strava-club-sync/internal/strava"
)

// AthleteAPI is the per-athlete Strava application
type AthleteAPI interface {
	RefreshToken(ctx context.Context, refreshToken string) (*strava.Token, error)
	ListAthleteActivities(ctx context.Context, accessToken string, after, before time.Time) ([]strava.SummaryActivity, error)
}

// ClubAPI is the club admin's Strava application
type ClubAPI interface {
	RefreshToken(ctx context.Context, refreshToken string) (*strava.Token, error)
	ListClubActivities(ctx context.Context, accessToken, clubID string, page, perPage int, after time.Time) ([]strava.SummaryActivity, error)
}

// Options configures a Runner
type Options struct {
	ClubID           string
	ClubRefreshToken string
	DefaultWindow    config.Window
	Location         *time.Location
	Policy           scoring.Policy
	ScoreboardPath   string

	// NextSync estimates the next run from the current one, for the
	// Leaderboard metadata cell
	NextSync func(now time.Time) time.Time
	// Now defaults to time.Now
	Now func() time.Time
}

// Runner executes sync runs. Runs are sequential; a Runner must not be
// invoked concurrently.
type Runner struct {
	store      store.Store
	athleteAPI AthleteAPI
	clubAPI    ClubAPI
	opts       Options
	logger     *slog.Logger
}

// NewRunner creates a runner over a row store and two Strava applications
func NewRunner(s store.Store, athleteAPI AthleteAPI, clubAPI ClubAPI, opts Options) *Runner {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NextSync == nil {
		opts.NextSync = func(now time.Time) time.Time { return now.Add(2 * time.Hour) }
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	return &Runner{
		store:      s,
		athleteAPI: athleteAPI,
		clubAPI:    clubAPI,
		opts:       opts,
		logger:     slog.Default(),
	}
}

// Run performs one sync. A non-nil error means the run was aborted; the
// report is still returned with whatever was gathered.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: r.opts.Now(),
		Window:    r.opts.DefaultWindow,
	}
	logger := r.logger.With("run_id", report.RunID)
	logger.Info("sync started")

	err := r.run(ctx, report, logger)

	report.FinishedAt = r.opts.Now()
	r.record(report, err)
	report.Log(logger)

	if err != nil {
		logger.Error("sync aborted", "error", err)
		return report, err
	}
	return report, nil
}

func (r *Runner) run(ctx context.Context, report *Report, logger *slog.Logger) error {
	if err := r.store.LoadSchema(ctx); err != nil {
		return fmt.Errorf("failed to load row store: %w", err)
	}

	stats, err := store.Lookup(r.store, store.TableStats, statsColumns...)
	if err != nil {
		return fmt.Errorf("stats table unusable: %w", err)
	}

	window, notes := ReadWindow(ctx, r.store, r.opts.DefaultWindow, r.opts.Location)
	report.Window = window
	for _, note := range notes {
		report.warn(note)
	}
	logger.Info("window resolved", "start", window.Start(), "end", window.End())

	clubToken, rotated, err := r.refreshClub(ctx)
	if err != nil {
		return err
	}
	if rotated {
		report.ClubTokenRotated = true
		report.warn("club refresh token was rotated; update STRAVA_CLUB_REFRESH_TOKEN")
	}

	verified, verifiedNames, err := r.syncAthletes(ctx, report, window)
	if err != nil {
		return err
	}

	feed, err := r.fetchClub(ctx, clubToken, window)
	if err != nil {
		return err
	}
	report.ClubPages = feed.Pages
	report.ClubActivities = len(feed.Activities)
	if feed.PageErr != nil {
		report.ClubError = feed.PageErr.Error()
		logger.Warn("club feed incomplete", "pages", feed.Pages, "error", feed.PageErr)
	}

	merged := reconcile.Merge(verified, feed.Activities, verifiedNames, window)
	report.VerifiedActivities = merged.Verified
	report.ClubKept = merged.ClubKept
	report.Suppressed = merged.Suppressed

	now := r.opts.Now()

	if len(merged.Activities) == 0 {
		// Keep the previous dataset rather than blanking it on an upstream outage
		report.StatsSkipped = true
		report.warn("no activities fetched; Stats, Summary and scoreboard left unchanged")
	} else {
		if err := writeStats(ctx, stats, merged.Activities, window); err != nil {
			return fmt.Errorf("failed to write stats: %w", err)
		}
		report.StatsRows = len(merged.Activities)

		summaries := scoring.Score(merged.Activities, r.opts.Policy)
		report.Leaderboard = len(summaries)

		present, err := writeSummary(ctx, r.store, summaries)
		switch {
		case err != nil:
			report.warn(fmt.Sprintf("summary not written: %v", err))
		case !present:
			report.warn("Summary table not found, skipped")
		}

		if err := publish.WriteScoreboard(r.opts.ScoreboardPath, now, summaries); err != nil {
			return fmt.Errorf("failed to publish scoreboard: %w", err)
		}
		report.Published = true
	}

	present, err := writeMetadata(ctx, r.store, now, r.opts.NextSync(now), window)
	switch {
	case err != nil:
		report.warn(fmt.Sprintf("leaderboard metadata not written: %v", err))
	case !present:
		report.warn("Leaderboard table not found, metadata skipped")
	}

	return nil
}

// syncAthletes refreshes and fetches each registered athlete in row order.
// Failures are recorded per athlete and never abort the run.
func (r *Runner) syncAthletes(ctx context.Context, report *Report, window config.Window) ([]model.Activity, []string, error) {
	table, athletes, err := loadAthletes(ctx, r.store)
	if err != nil {
		return nil, nil, fmt.Errorf("athletes table unusable: %w", err)
	}
	if table == nil {
		report.warn("Athletes table not found, verified feed skipped")
		return nil, nil, nil
	}

	var activities []model.Activity
	var names []string

	for _, a := range athletes {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		result := AthleteResult{AthleteID: a.AthleteID, Name: a.Name}

		switch {
		case a.AthleteID == "":
			result.Status, result.Reason = StatusSkipped, "missing athlete_id"
		case a.RefreshToken == "":
			result.Status, result.Reason = StatusSkipped, "missing refresh_token"
		default:
			fetched, rotated, err := r.syncAthlete(ctx, table, a, window)
			result.Rotated = rotated
			if err != nil {
				result.Status, result.Reason = StatusFailed, err.Error()
				break
			}
			result.Status = StatusOK
			result.Activities = len(fetched)
			activities = append(activities, fetched...)
			names = append(names, a.Name)
		}

		report.addAthlete(result)
	}

	return activities, names, nil
}

func (r *Runner) syncAthlete(ctx context.Context, table store.Table, a athleteRow, window config.Window) ([]model.Activity, bool, error) {
	accessToken, rotated, err := r.refreshAthlete(ctx, table, a)
	if err != nil {
		return nil, false, err
	}

	activities, err := r.fetchVerified(ctx, accessToken, a.Athlete, window)
	if err != nil {
		return nil, rotated, fmt.Errorf("activity fetch failed: %w", err)
	}
	return activities, rotated, nil
}

// record updates the run metrics from a finished report
func (r *Runner) record(report *Report, err error) {
	result := metrics.ResultSuccess
	switch {
	case err != nil:
		result = metrics.ResultFailure
	case report.Degraded():
		result = metrics.ResultDegraded
	}
	metrics.SyncRunsTotal.WithLabelValues(result).Inc()
	metrics.SyncRunDuration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())

	for _, a := range report.Athletes {
		switch a.Status {
		case StatusOK:
			metrics.AthleteSyncsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
		case StatusFailed:
			metrics.AthleteSyncsTotal.WithLabelValues(metrics.ResultFailure).Inc()
		case StatusSkipped:
			metrics.AthleteSyncsTotal.WithLabelValues(metrics.ResultSkipped).Inc()
		}
		if a.Rotated {
			metrics.TokenRotationsTotal.Inc()
		}
	}

	metrics.ActivitiesFetchedTotal.WithLabelValues(metrics.SourceVerified).Add(float64(report.VerifiedActivities))
	metrics.ActivitiesFetchedTotal.WithLabelValues(metrics.SourceClub).Add(float64(report.ClubActivities))
	metrics.DuplicatesSuppressedTotal.Add(float64(report.Suppressed))
	metrics.ClubPagesFetched.Observe(float64(report.ClubPages))

	if err == nil {
		metrics.SyncLastSuccess.Set(float64(report.FinishedAt.Unix()))
		if report.Published {
			metrics.LeaderboardAthletes.Set(float64(report.Leaderboard))
		}
	}
}

// IsFatal reports whether err aborted a run for a reason the operator must fix
func IsFatal(err error) bool {
	var missing *store.MissingColumnsError
	return errors.Is(err, ErrClubAuth) || errors.Is(err, store.ErrTableNotFound) || errors.As(err, &missing)
}
