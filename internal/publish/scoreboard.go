// Package publish writes the static leaderboard artifact read by the frontend.
package publish

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"strava-club-sync/internal/model"
)

// Scoreboard is the JSON document written to disk
type Scoreboard struct {
	LastSynced string  `json:"last_synced"`
	Data       []Entry `json:"data"`
}

// Entry is one leaderboard line
type Entry struct {
	Name         string  `json:"name"`
	Points       int     `json:"points"`
	Distance     float64 `json:"distance"`
	LastActivity string  `json:"last_activity,omitempty"`
}

// NewScoreboard builds the document from ranked summaries, preserving order
func NewScoreboard(lastSynced time.Time, summaries []model.ScoreSummary) Scoreboard {
	board := Scoreboard{
		LastSynced: lastSynced.UTC().Format(time.RFC3339),
		Data:       make([]Entry, 0, len(summaries)),
	}
	for _, s := range summaries {
		board.Data = append(board.Data, Entry{
			Name:         s.Name,
			Points:       s.TotalPoints,
			Distance:     s.TotalDistanceKm,
			LastActivity: s.LastActivityLabel,
		})
	}
	return board
}

// WriteScoreboard writes the scoreboard to path via a temporary file and
// rename, so readers never observe a partial document
func WriteScoreboard(path string, lastSynced time.Time, summaries []model.ScoreSummary) error {
	data, err := json.MarshalIndent(NewScoreboard(lastSynced, summaries), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scoreboard: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".scoreboard-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write scoreboard: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set scoreboard permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close scoreboard: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// ReadScoreboard loads a previously written scoreboard
func ReadScoreboard(path string) (*Scoreboard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scoreboard: %w", err)
	}

	var board Scoreboard
	if err := json.Unmarshal(data, &board); err != nil {
		return nil, fmt.Errorf("failed to decode scoreboard: %w", err)
	}
	return &board, nil
}
