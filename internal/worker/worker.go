// Package worker runs the sync pipeline on a cron schedule in serve mode.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"strava-club-sync/internal/metrics"
	"strava-club-sync/internal/pipeline"
)

// Syncer performs one sync run
type Syncer interface {
	Run(ctx context.Context) (*pipeline.Report, error)
}

// Worker triggers sync runs on a schedule. Overlapping triggers are skipped,
// so at most one run is in flight.
type Worker struct {
	syncer     Syncer
	schedule   cron.Schedule
	location   *time.Location
	runTimeout time.Duration
	logger     *slog.Logger
}

// ParseSchedule parses a standard five-field cron spec or a descriptor such
// as "@hourly"
func ParseSchedule(spec string) (cron.Schedule, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid sync schedule %q: %w", spec, err)
	}
	return schedule, nil
}

// NewWorker creates a scheduled sync worker
func NewWorker(syncer Syncer, schedule cron.Schedule, loc *time.Location) *Worker {
	if loc == nil {
		loc = time.UTC
	}
	return &Worker{
		syncer:     syncer,
		schedule:   schedule,
		location:   loc,
		runTimeout: 10 * time.Minute,
		logger:     slog.Default(),
	}
}

// Next returns the first scheduled run after now
func (w *Worker) Next(now time.Time) time.Time {
	return w.schedule.Next(now.In(w.location))
}

// Start runs the schedule until ctx is cancelled, then waits for an
// in-flight run to finish. With runOnStart a run is triggered immediately.
func (w *Worker) Start(ctx context.Context, runOnStart bool) error {
	w.logger.Info("Starting sync worker", "next_run", w.Next(time.Now()))
	metrics.WorkerActive.Set(1)
	defer metrics.WorkerActive.Set(0)

	cronLogger := slogAdapter{logger: w.logger}
	job := cron.NewChain(
		cron.Recover(cronLogger),
		cron.SkipIfStillRunning(cronLogger),
	).Then(cron.FuncJob(func() { w.runOnce(ctx) }))

	c := cron.New(cron.WithLocation(w.location), cron.WithLogger(cronLogger))
	c.Schedule(w.schedule, job)
	c.Start()

	var wg sync.WaitGroup
	if runOnStart {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job.Run()
		}()
	}

	<-ctx.Done()
	w.logger.Info("Stopping sync worker")

	<-c.Stop().Done()
	wg.Wait()

	return ctx.Err()
}

func (w *Worker) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, w.runTimeout)
	defer cancel()

	report, err := w.syncer.Run(runCtx)
	next := w.Next(time.Now())
	metrics.SyncNextScheduled.Set(float64(next.Unix()))

	if err != nil {
		if pipeline.IsFatal(err) {
			w.logger.Error("Scheduled sync needs operator attention", "error", err, "next_run", next)
			return
		}
		w.logger.Error("Scheduled sync failed", "error", err, "next_run", next)
		return
	}

	w.logger.Info("Scheduled sync finished", "run_id", report.RunID, "next_run", next)
}

// slogAdapter routes cron's logging through slog. Cron's info lines are
// scheduling chatter and are logged at debug.
type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Debug("cron: "+msg, keysAndValues...)
}

func (a slogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	a.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
