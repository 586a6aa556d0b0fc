package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strava-club-sync/internal/model"
)

func act(athlete, activityType string, meters float64) model.Activity {
	return model.Activity{AthleteID: athlete, Name: athlete, Type: activityType, DistanceMeters: meters}
}

func TestPointsFloorPerActivity(t *testing.T) {
	policy := DefaultPolicy()

	tests := []struct {
		name       string
		activities []model.Activity
		expected   int
	}{
		{"run and ride", []model.Activity{act("a", "Run", 5000), act("a", "Ride", 10000)}, 8},
		{"fractional mix", []model.Activity{act("a", "Run", 1500), act("a", "Ride", 1500)}, 1},
		{"short runs floor to zero", []model.Activity{act("a", "Run", 900), act("a", "Run", 900)}, 0},
		{"other types", []model.Activity{act("a", "Swim", 4000), act("a", "Walk", 3000)}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summaries := Score(tt.activities, policy)
			require.Len(t, summaries, 1)
			assert.Equal(t, tt.expected, summaries[0].TotalPoints)
		})
	}
}

func TestWeightFallsBackToDefault(t *testing.T) {
	policy := Policy{Weights: map[string]float64{"Run": 2}, Default: 0}

	assert.Equal(t, 2.0, policy.Weight("Run"))
	assert.Equal(t, 0.0, policy.Weight("Ride"))
	assert.Equal(t, 10, policy.Points(act("a", "Run", 5000)))
	assert.Equal(t, 0, policy.Points(act("a", "Ride", 50000)))
}

func TestScoreAggregates(t *testing.T) {
	early := time.Date(2026, 3, 1, 6, 5, 0, 0, time.UTC)
	late := time.Date(2026, 3, 9, 18, 45, 0, 0, time.UTC)

	activities := []model.Activity{
		{AthleteID: "1", Name: "Jane Doe", Type: "Run", DistanceMeters: 5123, OccurredAt: early},
		{AthleteID: "2", Name: "John D.", Type: "Ride", DistanceMeters: 40000},
		{AthleteID: "1", Name: "Jane Doe", Type: "Run", DistanceMeters: 10001, OccurredAt: late},
	}

	summaries := Score(activities, DefaultPolicy())
	require.Len(t, summaries, 2)

	jane := summaries[0]
	assert.Equal(t, "1", jane.AthleteID)
	assert.Equal(t, 15, jane.TotalPoints)
	assert.Equal(t, 15.12, jane.TotalDistanceKm)
	require.NotNil(t, jane.LastActivityAt)
	assert.Equal(t, late, *jane.LastActivityAt)
	assert.Equal(t, "9 March, 18:45", jane.LastActivityLabel)

	john := summaries[1]
	assert.Equal(t, 12, john.TotalPoints)
	assert.Equal(t, 40.0, john.TotalDistanceKm)
	assert.Nil(t, john.LastActivityAt)
	assert.Empty(t, john.LastActivityLabel)
}

func TestRankIsStableDescending(t *testing.T) {
	summaries := []model.ScoreSummary{
		{Name: "ten", TotalPoints: 10},
		{Name: "thirty", TotalPoints: 30},
		{Name: "twenty", TotalPoints: 20},
		{Name: "twenty-b", TotalPoints: 20},
		{Name: "ten-b", TotalPoints: 10},
	}

	Rank(summaries)

	var names []string
	for _, s := range summaries {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"thirty", "twenty", "twenty-b", "ten", "ten-b"}, names)
}

func TestRoundKm(t *testing.T) {
	assert.Equal(t, 5.0, RoundKm(5000))
	assert.Equal(t, 1.23, RoundKm(1234))
	assert.Equal(t, 1.24, RoundKm(1235))
	assert.Equal(t, 0.0, RoundKm(0))
}
