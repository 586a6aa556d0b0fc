// Package model holds the records that flow through a sync run.
package model

import "time"

// Source identifies which feed an activity came from
type Source int

const (
	// SourceVerified is the per-athlete OAuth feed: reliable identity and timestamp
	SourceVerified Source = iota
	// SourceClubFeed is the club-wide feed: display-name identity, timestamp often absent
	SourceClubFeed
)

func (s Source) String() string {
	switch s {
	case SourceVerified:
		return "verified"
	case SourceClubFeed:
		return "club"
	default:
		return "unknown"
	}
}

// Athlete is a registered athlete row
type Athlete struct {
	AthleteID    string
	Name         string
	RefreshToken string
}

// Activity is one activity from either feed.
// OccurredAt is zero when the feed did not provide a timestamp.
type Activity struct {
	AthleteID           string
	Name                string
	Type                string
	DistanceMeters      float64
	MovingTimeSeconds   int
	ElevationGainMeters float64
	OccurredAt          time.Time
	Source              Source
}

// HasTimestamp reports whether the feed supplied a start time
func (a Activity) HasTimestamp() bool {
	return !a.OccurredAt.IsZero()
}

// ScoreSummary is the per-athlete aggregate for one run
type ScoreSummary struct {
	AthleteID         string
	Name              string
	TotalPoints       int
	TotalDistanceKm   float64
	LastActivityAt    *time.Time
	LastActivityLabel string
}
