package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label value constants to prevent typos
const (
	// Run and athlete outcomes
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultDegraded = "degraded"
	ResultSkipped  = "skipped"

	// Activity sources
	SourceVerified = "verified"
	SourceClub     = "club"

	// HTTP endpoints
	EndpointOAuthStart    = "oauth_start"
	EndpointOAuthCallback = "oauth_callback"
	EndpointHealth        = "health"

	// Strava API operations
	OpExchangeCode          = "exchange_code"
	OpRefreshToken          = "refresh_token"
	OpListAthleteActivities = "list_athlete_activities"
	OpListClubActivities    = "list_club_activities"
	OpUnknown               = "unknown"

	// Rate limit types
	RateLimitOverall15Min = "overall_15min"
	RateLimitOverallDaily = "overall_daily"

	// Rate limit buckets
	BucketLimit = "limit"
	BucketUsage = "usage"

	// Row store operations
	StoreOpLoadSchema = "load_schema"
	StoreOpRows       = "rows"
	StoreOpAddRows    = "add_rows"
	StoreOpSaveRow    = "save_row"
	StoreOpClear      = "clear"
	StoreOpSetCells   = "set_cells"
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint", "status_code"},
	)
)

// Sync run Metrics
var (
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Total number of sync runs by result",
		},
		[]string{"result"},
	)

	SyncRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_run_duration_seconds",
			Help:    "Wall time of a complete sync run",
			Buckets: []float64{1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_last_success_timestamp_seconds",
			Help: "Unix time of the last successful sync run",
		},
	)

	AthleteSyncsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "athlete_syncs_total",
			Help: "Total number of per-athlete syncs by result",
		},
		[]string{"result"},
	)

	TokenRotationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "token_rotations_total",
			Help: "Total number of rotated refresh tokens written back",
		},
	)

	ActivitiesFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activities_fetched_total",
			Help: "Total number of activities fetched by source",
		},
		[]string{"source"},
	)

	DuplicatesSuppressedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "duplicates_suppressed_total",
			Help: "Total number of club feed activities dropped as duplicates of verified ones",
		},
	)

	ClubPagesFetched = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "club_pages_fetched",
			Help:    "Number of club feed pages fetched per run",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		},
	)

	LeaderboardAthletes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leaderboard_athletes",
			Help: "Number of athletes on the last published leaderboard",
		},
	)

	WorkerActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_worker_active",
			Help: "Whether the scheduled sync worker is running (1 = active, 0 = stopped)",
		},
	)

	SyncNextScheduled = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_next_scheduled_timestamp_seconds",
			Help: "Unix timestamp of the next scheduled sync run",
		},
	)
)

// Strava API Metrics
var (
	StravaAPIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strava_api_requests_total",
			Help: "Total number of Strava API requests",
		},
		[]string{"operation", "status_code"},
	)

	StravaAPIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "strava_api_request_duration_seconds",
			Help:    "Strava API request latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"operation", "status_code"},
	)

	StravaRateLimitUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "strava_rate_limit_usage",
			Help: "Strava API rate limit usage",
		},
		[]string{"limit_type", "bucket"},
	)
)

// Row store Metrics
var (
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Row store operation latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"backend", "operation"},
	)

	StoreOperationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operation_errors_total",
			Help: "Total number of row store operation errors",
		},
		[]string{"backend", "operation"},
	)
)

// RunCollectors lists the collectors pushed to a Pushgateway after a one-shot run
func RunCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		SyncRunsTotal,
		SyncRunDuration,
		SyncLastSuccess,
		AthleteSyncsTotal,
		TokenRotationsTotal,
		ActivitiesFetchedTotal,
		DuplicatesSuppressedTotal,
		ClubPagesFetched,
		LeaderboardAthletes,
		StravaAPIRequestsTotal,
		StravaAPIRequestDuration,
		StravaRateLimitUsage,
	}
}
