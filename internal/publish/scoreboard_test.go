package publish

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strava-club-sync/internal/model"
)

func TestWriteScoreboard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "public", "scoreboard.json")
	synced := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	summaries := []model.ScoreSummary{
		{Name: "Jane Doe", TotalPoints: 15, TotalDistanceKm: 15.12, LastActivityLabel: "9 March, 18:45"},
		{Name: "John D.", TotalPoints: 12, TotalDistanceKm: 40},
	}

	require.NoError(t, WriteScoreboard(path, synced, summaries))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	expected := `{
  "last_synced": "2026-03-10T12:00:00Z",
  "data": [
    {
      "name": "Jane Doe",
      "points": 15,
      "distance": 15.12,
      "last_activity": "9 March, 18:45"
    },
    {
      "name": "John D.",
      "points": 12,
      "distance": 40
    }
  ]
}
`
	assert.Equal(t, expected, string(raw))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary file is removed")
}

func TestWriteScoreboardOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scoreboard.json")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	require.NoError(t, WriteScoreboard(path, time.Now(), nil))

	board, err := ReadScoreboard(path)
	require.NoError(t, err)
	assert.NotNil(t, board.Data)
	assert.Empty(t, board.Data)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), `"data": []`))
}

func TestNewScoreboardKeepsOrder(t *testing.T) {
	board := NewScoreboard(time.Date(2026, 1, 1, 0, 0, 0, 0, time.FixedZone("X", 3600)), []model.ScoreSummary{
		{Name: "b", TotalPoints: 30},
		{Name: "a", TotalPoints: 20},
	})

	assert.Equal(t, "2025-12-31T23:00:00Z", board.LastSynced)
	require.Len(t, board.Data, 2)
	assert.Equal(t, "b", board.Data[0].Name)
	assert.Equal(t, "a", board.Data[1].Name)
}

func TestReadScoreboardMissing(t *testing.T) {
	_, err := ReadScoreboard(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
