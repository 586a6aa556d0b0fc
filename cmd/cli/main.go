package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"strava-club-sync/internal/config"
	"strava-club-sync/internal/database"
	"strava-club-sync/internal/model"
	"strava-club-sync/internal/pipeline"
	"strava-club-sync/internal/scoring"
	"strava-club-sync/internal/sheets"
	"strava-club-sync/internal/store"
)

func main() {
	// Only show errors from the libraries underneath
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	})))

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	if command == "help" {
		printUsage()
		return
	}

	cfg, err := config.LoadStore()
	if err != nil {
		fail("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	s, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		fail("Failed to open %s store: %v", cfg.StoreBackend, err)
	}
	defer closeStore()

	if err := s.LoadSchema(ctx); err != nil {
		fail("Failed to load tables: %v", err)
	}

	switch command {
	case "init":
		handleInit(ctx, s)
	case "tables":
		handleTables(s)
	case "dump":
		handleDump(ctx, s)
	case "add-athlete":
		handleAddAthlete(ctx, s, cfg)
	case "window":
		handleWindow(ctx, s, cfg)
	case "leaderboard":
		handleLeaderboard(ctx, s, cfg)
	default:
		fmt.Fprintf(os.Stderr, "Error: Unknown command '%s'\n\n", command)
		printUsage()
		closeStore()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`strava-club-sync CLI - Workbook Management

Usage:
  cli <command> [arguments]

Commands:
  init                                      Create missing tables (sqlite backend only)
  tables                                    List tables and their columns
  dump <table>                              Print every row of a table
  add-athlete <id> <name> <refresh_token>   Register or update an athlete by hand
  window                                    Show the reconciliation window in effect
  leaderboard                               Recompute standings from the Stats table
  help                                      Show this help message

Examples:
  cli init
  cli dump Athletes
  cli add-athlete 12345 "Jane Doe" 0a1b2c3d
  cli leaderboard

Environment Variables:
  STORE_BACKEND          - sheets or sqlite (default: sheets)
  SHEET_ID               - Google spreadsheet ID (sheets backend)
  DATABASE_PATH          - SQLite workbook path (sqlite backend, default: ./data.db)
  TIMEZONE               - Zone for Config dates (default: UTC)`)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	if cfg.StoreBackend == config.BackendSQLite {
		db, err := database.Open(cfg.DatabasePath)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { db.Close() }, nil
	}

	creds := sheets.Credentials{
		Email:           cfg.GoogleServiceAccountEmail,
		PrivateKey:      cfg.GooglePrivateKey,
		CredentialsFile: cfg.GoogleCredentialsFile,
	}
	auth, err := creds.ClientOption(ctx)
	if err != nil {
		return nil, nil, err
	}
	s, err := sheets.New(ctx, cfg.SheetID, auth)
	if err != nil {
		return nil, nil, err
	}
	return s, func() {}, nil
}

func handleInit(ctx context.Context, s store.Store) {
	db, ok := s.(*database.DB)
	if !ok {
		fail("init only creates tables in the sqlite backend; add missing tabs to the spreadsheet by hand")
	}

	created, err := db.CreateDefaultTables(ctx)
	if err != nil {
		fail("Failed to create tables: %v", err)
	}

	if len(created) == 0 {
		fmt.Println("All tables already exist.")
		return
	}
	for _, title := range created {
		fmt.Printf("✓ Created %s\n", title)
	}
}

func handleTables(s store.Store) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tSTATUS\tCOLUMNS")

	for _, title := range store.Titles {
		t, err := s.Table(title)
		if err != nil {
			fmt.Fprintf(w, "%s\tmissing\t\n", title)
			continue
		}

		status := "ok"
		if err := store.Require(t, store.Headers[title]...); err != nil {
			status = err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", t.Title(), status, strings.Join(t.Header(), ", "))
	}
	w.Flush()
}

func handleDump(ctx context.Context, s store.Store) {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Error: Table name required")
		fmt.Fprintln(os.Stderr, "Usage: cli dump <table>")
		os.Exit(1)
	}

	t, err := s.Table(os.Args[2])
	if err != nil {
		fail("%v", err)
	}

	rows, err := t.Rows(ctx)
	if err != nil {
		fail("Failed to read %s: %v", t.Title(), err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\t"+strings.Join(t.Header(), "\t"))
	for _, row := range rows {
		fmt.Fprintf(w, "%d\t%s\n", row.Index+1, strings.Join(row.Cells(), "\t"))
	}
	w.Flush()

	fmt.Printf("\n%d row(s)\n", len(rows))
}

func handleAddAthlete(ctx context.Context, s store.Store, cfg *config.Config) {
	if len(os.Args) < 5 {
		fmt.Fprintln(os.Stderr, "Error: Athlete ID, name and refresh token required")
		fmt.Fprintln(os.Stderr, "Usage: cli add-athlete <id> <name> <refresh_token>")
		os.Exit(1)
	}

	t, err := store.Lookup(s, store.TableAthletes, "athlete_id", "name", "refresh_token")
	if err != nil {
		fail("%v", err)
	}

	record := store.Record{
		"athlete_id":      strings.TrimSpace(os.Args[2]),
		"name":            strings.TrimSpace(os.Args[3]),
		"refresh_token":   strings.TrimSpace(os.Args[4]),
		"last_registered": time.Now().In(cfg.Location).Format(time.DateTime),
	}

	created, err := store.Upsert(ctx, t, "athlete_id", record)
	if err != nil {
		fail("Failed to save athlete: %v", err)
	}

	if created {
		fmt.Printf("✓ Added athlete %s (%s)\n", record["athlete_id"], record["name"])
	} else {
		fmt.Printf("✓ Updated athlete %s (%s)\n", record["athlete_id"], record["name"])
	}
}

func handleWindow(ctx context.Context, s store.Store, cfg *config.Config) {
	window, notes := pipeline.ReadWindow(ctx, s, cfg.DefaultWindow, cfg.Location)

	fmt.Printf("Start: %s\n", window.Start().Format(time.RFC3339))
	fmt.Printf("End:   %s\n", window.End().Format(time.RFC3339))
	for _, note := range notes {
		fmt.Printf("  note: %s\n", note)
	}
}

func handleLeaderboard(ctx context.Context, s store.Store, cfg *config.Config) {
	t, err := s.Table(store.TableStats)
	if err != nil {
		fail("%v", err)
	}

	rows, err := t.Rows(ctx)
	if err != nil {
		fail("Failed to read %s: %v", t.Title(), err)
	}

	activities := make([]model.Activity, len(rows))
	for i, row := range rows {
		activities[i] = pipeline.ActivityFromStats(row)
	}

	policy := scoring.Policy{Weights: cfg.ScoringWeights, Default: cfg.ScoringDefault}
	summaries := scoring.Score(activities, policy)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tNAME\tPOINTS\tKM\tLAST ACTIVITY")
	for i, sum := range summaries {
		fmt.Fprintf(w, "%d\t%s\t%d\t%.2f\t%s\n", i+1, sum.Name, sum.TotalPoints, sum.TotalDistanceKm, sum.LastActivityLabel)
	}
	w.Flush()

	fmt.Printf("\n%d athlete(s) from %d activities\n", len(summaries), len(activities))
}
