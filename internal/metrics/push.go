package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus/push"
)

// PushJob is the Pushgateway job name for one-shot runs
const PushJob = "strava_club_sync"

// ObserveStore records the latency and outcome of one row store operation
func ObserveStore(backend, operation string, start time.Time, err error) {
	StoreOperationDuration.WithLabelValues(backend, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		StoreOperationErrorsTotal.WithLabelValues(backend, operation).Inc()
	}
}

// Push sends the run collectors to a Pushgateway, replacing the job's
// previous group. A one-shot process exits before it can be scraped.
func Push(ctx context.Context, url, instance string) error {
	pusher := push.New(url, PushJob)
	if instance != "" {
		pusher = pusher.Grouping("instance", instance)
	}
	for _, c := range RunCollectors() {
		pusher = pusher.Collector(c)
	}

	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}

	slog.Default().Debug("metrics pushed", "url", url, "job", PushJob)
	return nil
}
