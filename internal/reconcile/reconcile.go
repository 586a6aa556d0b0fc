// Package reconcile merges the verified per-athlete feed with the club feed.
//
// The join is by name, not by ID: the club feed only exposes a truncated
// "First L." display name. Two different athletes whose names truncate to the
// same display form cannot be told apart, so a verified "Jane Doe" will also
// suppress an unrelated club member "Jane Dunn". This is a known limitation.
package reconcile

import (
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"strava-club-sync/internal/config"
	"strava-club-sync/internal/model"
)

var whitespace = regexp.MustCompile(`\s+`)

// Result is the merged activity set plus bookkeeping for the run report
type Result struct {
	Activities []model.Activity
	Verified   int
	ClubKept   int
	Suppressed int
}

// ClubName converts a full name to the club feed's "First L." form.
// Single-token names are returned unchanged.
func ClubName(fullName string) string {
	parts := strings.Fields(fullName)
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}

	last := parts[len(parts)-1]
	r, _ := utf8.DecodeRuneInString(last)
	return parts[0] + " " + string(r) + "."
}

// SyntheticID derives a stable identifier for a club-feed athlete with no ID
func SyntheticID(displayName string) string {
	return strings.ToLower(whitespace.ReplaceAllString(strings.TrimSpace(displayName), "_"))
}

// IdentitySet holds the names of athletes covered by the verified feed
type IdentitySet map[string]struct{}

// NewIdentitySet indexes each full name and its club display form
func NewIdentitySet(names []string) IdentitySet {
	set := IdentitySet{}
	for _, name := range names {
		name = normalise(name)
		if name == "" {
			continue
		}
		set[name] = struct{}{}
		set[normalise(ClubName(name))] = struct{}{}
	}
	return set
}

// Contains reports whether a club display name belongs to a verified athlete
func (s IdentitySet) Contains(displayName string) bool {
	_, ok := s[normalise(displayName)]
	return ok
}

// Merge combines both feeds. verifiedNames are the full names of athletes
// whose verified fetch succeeded; any club record whose display name matches
// one of them is dropped. The result is ordered newest first, with club
// records lacking a timestamp sorted as if they occurred at window start.
func Merge(verified, club []model.Activity, verifiedNames []string, window config.Window) Result {
	identities := NewIdentitySet(verifiedNames)

	result := Result{
		Activities: make([]model.Activity, 0, len(verified)+len(club)),
		Verified:   len(verified),
	}
	result.Activities = append(result.Activities, verified...)

	for _, a := range club {
		if identities.Contains(a.Name) {
			result.Suppressed++
			continue
		}
		result.Activities = append(result.Activities, a)
		result.ClubKept++
	}

	Sort(result.Activities, window)

	return result
}

// Sort orders activities newest first. Records without a timestamp use the
// window start as a stand-in. The sort is stable.
func Sort(activities []model.Activity, window config.Window) {
	sort.SliceStable(activities, func(i, j int) bool {
		return sortKey(activities[i], window).After(sortKey(activities[j], window))
	})
}

func sortKey(a model.Activity, window config.Window) time.Time {
	if a.HasTimestamp() {
		return a.OccurredAt
	}
	return window.Start()
}

// normalise collapses runs of whitespace
func normalise(name string) string {
	return strings.Join(strings.Fields(name), " ")
}
