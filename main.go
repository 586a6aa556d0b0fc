package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"strava-club-sync/internal/config"
	"strava-club-sync/internal/database"
	"strava-club-sync/internal/handlers"
	"strava-club-sync/internal/metrics"
	"strava-club-sync/internal/middleware"
	"strava-club-sync/internal/oauth"
	"strava-club-sync/internal/pipeline"
	"strava-club-sync/internal/scoring"
	"strava-club-sync/internal/sheets"
	"strava-club-sync/internal/store"
	"strava-club-sync/internal/strava"
	"strava-club-sync/internal/worker"
)

func main() {
	serve := flag.Bool("serve", false, "Run the registration server and sync on SYNC_SCHEDULE")
	runOnStart := flag.Bool("run-on-start", false, "With -serve, sync once immediately")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rowStore, health, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open row store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}

	if *serve {
		err = runServer(ctx, cfg, rowStore, health, *runOnStart)
	} else {
		err = runOnce(ctx, cfg, rowStore)
	}

	closeStore()

	if err != nil {
		os.Exit(1)
	}
}

func setupLogger(level string) *slog.Logger {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// openStore opens the configured row store. The returned health check may be nil.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(context.Context) error, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		db, err := database.Open(cfg.DatabasePath)
		if err != nil {
			return nil, nil, nil, err
		}
		return db, db.Health, func() { db.Close() }, nil

	default:
		creds := sheets.Credentials{
			Email:           cfg.GoogleServiceAccountEmail,
			PrivateKey:      cfg.GooglePrivateKey,
			CredentialsFile: cfg.GoogleCredentialsFile,
		}
		auth, err := creds.ClientOption(ctx)
		if err != nil {
			return nil, nil, nil, err
		}
		s, err := sheets.New(ctx, cfg.SheetID, auth)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, nil, func() {}, nil
	}
}

func newRunner(cfg *config.Config, s store.Store, nextSync func(time.Time) time.Time) *pipeline.Runner {
	athleteClient := strava.NewClient(cfg.StravaClientID, cfg.StravaClientSecret)
	clubClient := strava.NewClient(cfg.StravaClubClientID, cfg.StravaClubClientSecret)

	return pipeline.NewRunner(s, athleteClient, clubClient, pipeline.Options{
		ClubID:           cfg.StravaClubID,
		ClubRefreshToken: cfg.StravaClubRefreshToken,
		DefaultWindow:    cfg.DefaultWindow,
		Location:         cfg.Location,
		Policy:           scoring.Policy{Weights: cfg.ScoringWeights, Default: cfg.ScoringDefault},
		ScoreboardPath:   cfg.ScoreboardPath,
		NextSync:         nextSync,
	})
}

// runOnce performs a single sync, as run by an external scheduler
func runOnce(ctx context.Context, cfg *config.Config, s store.Store) error {
	logger := slog.Default()
	logger.Info("Starting strava-club-sync run",
		"store", cfg.StoreBackend,
		"club_id", cfg.StravaClubID,
		"window", cfg.DefaultWindow.String())

	runner := newRunner(cfg, s, func(now time.Time) time.Time { return now.Add(cfg.SyncInterval) })
	report, err := runner.Run(ctx)

	if cfg.PushgatewayURL != "" {
		if pushErr := metrics.Push(ctx, cfg.PushgatewayURL, "club-"+cfg.StravaClubID); pushErr != nil {
			logger.Warn("Failed to push metrics", "error", pushErr)
		}
	}

	if err != nil {
		if pipeline.IsFatal(err) {
			logger.Error("Sync aborted; check configuration and credentials", "error", err)
		}
		return err
	}

	logger.Info("Sync complete", "run_id", report.RunID, "degraded", report.Degraded())
	return nil
}

// runServer serves athlete registration and runs syncs on the configured
// schedule until ctx is cancelled
func runServer(ctx context.Context, cfg *config.Config, s store.Store, health func(context.Context) error, runOnStart bool) error {
	logger := slog.Default()

	schedule, err := worker.ParseSchedule(cfg.SyncSchedule)
	if err != nil {
		logger.Error("Failed to parse schedule", "error", err)
		return err
	}
	nextSync := func(now time.Time) time.Time { return schedule.Next(now.In(cfg.Location)) }

	runner := newRunner(cfg, s, nextSync)
	syncWorker := worker.NewWorker(runner, schedule, cfg.Location)

	logger.Info("Starting strava-club-sync server",
		"host", cfg.Host,
		"port", cfg.Port,
		"store", cfg.StoreBackend,
		"schedule", cfg.SyncSchedule,
		"log_level", cfg.LogLevel)

	// Registration uses the athlete app
	athleteClient := strava.NewClient(cfg.StravaClientID, cfg.StravaClientSecret)
	oauthManager := oauth.NewManager(athleteClient, s, cfg.Location)
	oauthHandler := handlers.NewOAuthHandler(oauthManager, cfg.RegistrationURL)
	healthHandler := handlers.NewHealthHandler(health)

	mux := http.NewServeMux()
	mux.Handle("/oauth-start", middleware.WrapHandler(metrics.EndpointOAuthStart, oauthHandler.HandleAuthStart))
	mux.Handle("/oauth-callback", middleware.WrapHandler(metrics.EndpointOAuthCallback, oauthHandler.HandleCallback))
	mux.Handle("/health", middleware.WrapHandler(metrics.EndpointHealth, healthHandler.HandleHealth))

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	var metricsServer *http.Server
	if cfg.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())

		metricsAddr := fmt.Sprintf("%s:%d", cfg.MetricsHost, cfg.MetricsPort)
		metricsServer = &http.Server{
			Addr:    metricsAddr,
			Handler: metricsMux,
		}

		go func() {
			logger.Info("Metrics server listening", "addr", metricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := syncWorker.Start(workerCtx, runOnStart); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Sync worker failed", "error", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serverErr:
		logger.Error("HTTP server failed", "error", runErr)
	}

	logger.Info("Shutting down gracefully...")

	workerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server shutdown failed", "error", err)
		}
	}

	<-workerDone

	logger.Info("Server stopped")
	return runErr
}
