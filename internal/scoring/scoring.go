// Package scoring turns reconciled activities into leaderboard standings.
//
// Points are floored per activity and then summed: two 900 m runs score 0,
// not 1. Totals are recomputed from scratch every run.
package scoring

import (
	"math"
	"sort"
	"time"

	"strava-club-sync/internal/model"
)

// LabelLayout renders the last-activity label, e.g. "2 March, 07:30"
const LabelLayout = "2 January, 15:04"

// tolerance absorbs binary float artefacts such as 10 km × 0.3 landing just below 3
const tolerance = 1e-9

// Policy is a per-activity-type points-per-km table
type Policy struct {
	Weights map[string]float64
	Default float64
}

// DefaultPolicy weights runs fully, rides at 0.3 and everything else at 0.5
func DefaultPolicy() Policy {
	return Policy{
		Weights: map[string]float64{"Run": 1.0, "Ride": 0.3},
		Default: 0.5,
	}
}

// Weight returns the points-per-km for an activity type
func (p Policy) Weight(activityType string) float64 {
	if w, ok := p.Weights[activityType]; ok {
		return w
	}
	return p.Default
}

// Points scores a single activity
func (p Policy) Points(a model.Activity) int {
	km := a.DistanceMeters / 1000
	return int(math.Floor(km*p.Weight(a.Type) + tolerance))
}

// Score aggregates activities per athlete and returns them ranked
func Score(activities []model.Activity, policy Policy) []model.ScoreSummary {
	index := map[string]int{}
	summaries := []model.ScoreSummary{}
	meters := []float64{}

	for _, a := range activities {
		i, ok := index[a.AthleteID]
		if !ok {
			i = len(summaries)
			index[a.AthleteID] = i
			summaries = append(summaries, model.ScoreSummary{
				AthleteID: a.AthleteID,
				Name:      a.Name,
			})
			meters = append(meters, 0)
		}

		s := &summaries[i]
		s.TotalPoints += policy.Points(a)
		meters[i] += a.DistanceMeters

		if a.HasTimestamp() && (s.LastActivityAt == nil || a.OccurredAt.After(*s.LastActivityAt)) {
			t := a.OccurredAt
			s.LastActivityAt = &t
			s.LastActivityLabel = Label(t)
		}
	}

	for i := range summaries {
		summaries[i].TotalDistanceKm = RoundKm(meters[i])
	}

	Rank(summaries)

	return summaries
}

// Rank sorts by points, highest first. Ties keep their input order.
func Rank(summaries []model.ScoreSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].TotalPoints > summaries[j].TotalPoints
	})
}

// RoundKm converts meters to kilometres rounded to two decimals
func RoundKm(meters float64) float64 {
	return math.Round(meters/10) / 100
}

// Label renders a timestamp in the leaderboard's "day month, HH:MM" form
func Label(t time.Time) string {
	return t.Format(LabelLayout)
}
