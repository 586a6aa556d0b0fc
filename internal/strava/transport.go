package strava

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"strava-club-sync/internal/metrics"
)

type operationKey struct{}

func withOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, operationKey{}, operation)
}

func operationFrom(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey{}).(string); ok {
		return op
	}
	return metrics.OpUnknown
}

// instrumentedTransport records metrics, rate limit headers and a log line
// for every Strava request. It never retries.
type instrumentedTransport struct {
	base        http.RoundTripper
	rateLimiter *RateLimiter
	logger      *slog.Logger
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	operation := operationFrom(req.Context())

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		metrics.StravaAPIRequestsTotal.WithLabelValues(operation, "error").Inc()
		t.logger.Error("strava_api_request failed",
			"operation", operation,
			"method", req.Method,
			"path", req.URL.Path,
			"error", err,
			"duration_ms", duration.Milliseconds(),
		)
		return nil, err
	}

	status := strconv.Itoa(resp.StatusCode)
	metrics.StravaAPIRequestsTotal.WithLabelValues(operation, status).Inc()
	metrics.StravaAPIRequestDuration.WithLabelValues(operation, status).Observe(duration.Seconds())

	t.rateLimiter.UpdateFromHeaders(resp.Header)

	t.logger.Info("strava_api_request",
		"operation", operation,
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration_ms", duration.Milliseconds(),
	)

	return resp, nil
}
