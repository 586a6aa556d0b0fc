package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"strava-club-sync/internal/model"
	"strava-club-sync/internal/store"
)

// ErrClubAuth aborts a run: without the club feed the leaderboard would
// silently lose every unregistered athlete
var ErrClubAuth = errors.New("club authentication failed")

var athleteColumns = []string{"athlete_id", "name", "refresh_token"}

// athleteRow pairs a registered athlete with the row it was read from, so a
// rotated refresh token can be written back in place
type athleteRow struct {
	model.Athlete
	row *store.Row
}

// loadAthletes reads the Athletes table. A missing table yields no athletes.
func loadAthletes(ctx context.Context, s store.Store) (store.Table, []athleteRow, error) {
	t, err := store.Lookup(s, store.TableAthletes, athleteColumns...)
	if errors.Is(err, store.ErrTableNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	rows, err := t.Rows(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read athletes: %w", err)
	}

	athletes := make([]athleteRow, 0, len(rows))
	for _, row := range rows {
		athletes = append(athletes, athleteRow{
			Athlete: model.Athlete{
				AthleteID:    strings.TrimSpace(row.Get("athlete_id")),
				Name:         strings.TrimSpace(row.Get("name")),
				RefreshToken: strings.TrimSpace(row.Get("refresh_token")),
			},
			row: row,
		})
	}
	return t, athletes, nil
}

// refreshAthlete exchanges the athlete's refresh token for an access token.
// A rotated refresh token is saved to the Athletes row before the access
// token is returned; if that write fails the athlete must be skipped, since
// the old token is no longer valid and the new one would be lost.
func (r *Runner) refreshAthlete(ctx context.Context, t store.Table, a athleteRow) (accessToken string, rotated bool, err error) {
	tok, err := r.athleteAPI.RefreshToken(ctx, a.RefreshToken)
	if err != nil {
		return "", false, fmt.Errorf("token refresh failed: %w", err)
	}

	if tok.RefreshToken != "" && tok.RefreshToken != a.RefreshToken {
		a.row.Set("refresh_token", tok.RefreshToken)
		if err := t.SaveRow(ctx, a.row); err != nil {
			return "", false, fmt.Errorf("failed to persist rotated refresh token: %w", err)
		}
		rotated = true
	}

	return tok.AccessToken, rotated, nil
}

// refreshClub obtains the club admin's access token. The club refresh token
// lives in the environment, so a rotation can only be reported.
func (r *Runner) refreshClub(ctx context.Context) (accessToken string, rotated bool, err error) {
	tok, err := r.clubAPI.RefreshToken(ctx, r.opts.ClubRefreshToken)
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrClubAuth, err)
	}

	rotated = tok.RefreshToken != "" && tok.RefreshToken != r.opts.ClubRefreshToken
	return tok.AccessToken, rotated, nil
}
