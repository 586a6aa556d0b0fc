package strava

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"strava-club-sync/internal/metrics"
)

const (
	// AthletePageSize is the per_page used for the per-athlete feed
	AthletePageSize = 100
	// ClubPageSize is the Strava maximum per_page for the club feed
	ClubPageSize = 200
)

// SummaryActivity is an activity as returned by the list endpoints. The club
// feed omits id, start dates and the athlete id; those fields stay zero.
type SummaryActivity struct {
	ID                 int64           `json:"id"`
	Name               string          `json:"name"`
	Type               string          `json:"type"`
	SportType          string          `json:"sport_type"`
	Distance           float64         `json:"distance"`
	MovingTime         int             `json:"moving_time"`
	TotalElevationGain float64         `json:"total_elevation_gain"`
	StartDate          string          `json:"start_date"`
	StartDateLocal     string          `json:"start_date_local"`
	Athlete            ActivityAthlete `json:"athlete"`
}

// ActivityAthlete is the athlete reference embedded in an activity
type ActivityAthlete struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
}

// ActivityType returns type, falling back to sport_type
func (a SummaryActivity) ActivityType() string {
	if a.Type != "" {
		return a.Type
	}
	return a.SportType
}

// DisplayName is the athlete name as shown in the club feed, e.g. "Jane D."
func (a SummaryActivity) DisplayName() string {
	return strings.TrimSpace(a.Athlete.FirstName + " " + a.Athlete.LastName)
}

// StartTime parses start_date_local. The second result is false when the
// field is absent or unparsable.
func (a SummaryActivity) StartTime() (time.Time, bool) {
	if a.StartDateLocal == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, a.StartDateLocal)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// AthleteID returns the embedded athlete id as a string, or "" when absent
func (a SummaryActivity) AthleteID() string {
	if a.Athlete.ID == 0 {
		return ""
	}
	return strconv.FormatInt(a.Athlete.ID, 10)
}

// ListAthleteActivities fetches the authenticated athlete's activities that
// started strictly between after and before. Only the first page is read.
func (c *Client) ListAthleteActivities(ctx context.Context, accessToken string, after, before time.Time) ([]SummaryActivity, error) {
	params := url.Values{
		"after":    {strconv.FormatInt(after.Unix(), 10)},
		"before":   {strconv.FormatInt(before.Unix(), 10)},
		"per_page": {strconv.Itoa(AthletePageSize)},
	}

	var activities []SummaryActivity
	if err := c.get(ctx, metrics.OpListAthleteActivities, "/athlete/activities", params, accessToken, &activities); err != nil {
		return nil, fmt.Errorf("failed to list athlete activities: %w", err)
	}

	return activities, nil
}

// ListClubActivities fetches one page of a club's activity feed. A zero
// after is not sent.
func (c *Client) ListClubActivities(ctx context.Context, accessToken, clubID string, page, perPage int, after time.Time) ([]SummaryActivity, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > ClubPageSize {
		perPage = ClubPageSize
	}

	params := url.Values{
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(perPage)},
	}
	if !after.IsZero() {
		params.Set("after", strconv.FormatInt(after.Unix(), 10))
	}

	path := "/clubs/" + url.PathEscape(clubID) + "/activities"

	var activities []SummaryActivity
	if err := c.get(ctx, metrics.OpListClubActivities, path, params, accessToken, &activities); err != nil {
		return nil, fmt.Errorf("failed to list club activities (page %d): %w", page, err)
	}

	return activities, nil
}
