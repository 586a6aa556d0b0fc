package pipeline

import (
	"context"
	"fmt"

	"strava-club-sync/internal/config"
	"strava-club-sync/internal/model"
	"strava-club-sync/internal/reconcile"
	"strava-club-sync/internal/strava"
)

// MaxClubPages caps the club feed at MaxClubPages × strava.ClubPageSize activities per run
const MaxClubPages = 10

// fetchVerified reads one athlete's activities inside the window. Identity
// comes from the Athletes row, not the feed.
func (r *Runner) fetchVerified(ctx context.Context, accessToken string, athlete model.Athlete, window config.Window) ([]model.Activity, error) {
	summaries, err := r.athleteAPI.ListAthleteActivities(ctx, accessToken, window.Start(), window.End())
	if err != nil {
		return nil, err
	}

	activities := make([]model.Activity, 0, len(summaries))
	for _, s := range summaries {
		a := fromSummary(s, model.SourceVerified)
		a.AthleteID = athlete.AthleteID
		a.Name = athlete.Name
		activities = append(activities, a)
	}
	return activities, nil
}

// clubFeed is what one run read from the club feed. PageErr is set when a
// page failed and paging stopped early.
type clubFeed struct {
	Activities []model.Activity
	Pages      int
	PageErr    error
}

// fetchClub pages through the club feed with the window start as the
// request-level after bound. Paging stops on an empty page, a short page or
// after MaxClubPages. A failed page ends paging and keeps what was fetched;
// an authorisation failure is fatal.
func (r *Runner) fetchClub(ctx context.Context, accessToken string, window config.Window) (*clubFeed, error) {
	feed := &clubFeed{}

	for page := 1; page <= MaxClubPages; page++ {
		summaries, err := r.clubAPI.ListClubActivities(ctx, accessToken, r.opts.ClubID, page, strava.ClubPageSize, window.Start())
		if err != nil {
			if strava.IsUnauthorized(err) || strava.IsForbidden(err) {
				return nil, fmt.Errorf("%w: %w", ErrClubAuth, err)
			}
			feed.PageErr = err
			return feed, nil
		}
		feed.Pages++

		for _, s := range summaries {
			feed.Activities = append(feed.Activities, clubActivity(s))
		}

		if len(summaries) < strava.ClubPageSize {
			break
		}
	}
	return feed, nil
}

func clubActivity(s strava.SummaryActivity) model.Activity {
	a := fromSummary(s, model.SourceClubFeed)
	a.Name = s.DisplayName()
	a.AthleteID = s.AthleteID()
	if a.AthleteID == "" {
		a.AthleteID = reconcile.SyntheticID(a.Name)
	}
	return a
}

func fromSummary(s strava.SummaryActivity, source model.Source) model.Activity {
	a := model.Activity{
		Type:                s.ActivityType(),
		DistanceMeters:      s.Distance,
		MovingTimeSeconds:   s.MovingTime,
		ElevationGainMeters: s.TotalElevationGain,
		Source:              source,
	}
	if t, ok := s.StartTime(); ok {
		a.OccurredAt = t
	}
	return a
}
