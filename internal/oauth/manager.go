// Package oauth registers athletes: it drives the Strava authorization flow
// and records each athlete's refresh token in the Athletes table.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"strava-club-sync/internal/store"
	"strava-club-sync/internal/strava"
)

// stateTTL bounds how long a user may sit on the Strava consent page
const stateTTL = 10 * time.Minute

// ErrInvalidState is returned for an unknown, reused or expired state
var ErrInvalidState = errors.New("invalid or expired state")

// Authorizer is the athlete-facing Strava application
type Authorizer interface {
	AuthCodeURL(state, redirectURL string) string
	ExchangeCode(ctx context.Context, code string) (*strava.Token, error)
}

// Registration is the outcome of a completed authorization
type Registration struct {
	AthleteID string
	Name      string
	Created   bool
}

// Manager handles the OAuth flow with Strava
type Manager struct {
	authorizer Authorizer
	store      store.Store
	location   *time.Location
	now        func() time.Time
	logger     *slog.Logger
	states     *stateStore // CSRF protection
}

// stateStore tracks valid OAuth states for CSRF protection
type stateStore struct {
	mu     sync.Mutex
	states map[string]time.Time
}

// NewManager creates a new OAuth manager. Registration timestamps are
// rendered in loc.
func NewManager(authorizer Authorizer, s store.Store, loc *time.Location) *Manager {
	if loc == nil {
		loc = time.UTC
	}
	return &Manager{
		authorizer: authorizer,
		store:      s,
		location:   loc,
		now:        time.Now,
		logger:     slog.Default(),
		states:     &stateStore{states: make(map[string]time.Time)},
	}
}

// GenerateAuthURL generates a Strava authorization URL with a one-time state
func (m *Manager) GenerateAuthURL(redirectURI string) (string, string, error) {
	state, err := generateRandomState()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate state: %w", err)
	}

	now := m.now()
	m.states.mu.Lock()
	for s, expiry := range m.states.states {
		if now.After(expiry) {
			delete(m.states.states, s)
		}
	}
	m.states.states[state] = now.Add(stateTTL)
	m.states.mu.Unlock()

	return m.authorizer.AuthCodeURL(state, redirectURI), state, nil
}

// HandleCallback validates the state, exchanges the code and records the
// athlete. An existing row keeps its name; only the token and registration
// time change.
func (m *Manager) HandleCallback(ctx context.Context, code, state string) (*Registration, error) {
	if !m.validateState(state) {
		return nil, ErrInvalidState
	}

	tok, err := m.authorizer.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	if tok.Athlete == nil || tok.Athlete.ID == 0 {
		return nil, errors.New("token response has no athlete")
	}
	if tok.RefreshToken == "" {
		return nil, errors.New("token response has no refresh token")
	}

	reg := &Registration{
		AthleteID: strconv.FormatInt(tok.Athlete.ID, 10),
		Name:      tok.Athlete.FullName(),
	}

	created, err := m.saveAthlete(ctx, reg, tok.RefreshToken)
	if err != nil {
		return nil, err
	}
	reg.Created = created

	m.logger.Info("Athlete registered", "athlete_id", reg.AthleteID, "created", created)

	return reg, nil
}

func (m *Manager) saveAthlete(ctx context.Context, reg *Registration, refreshToken string) (bool, error) {
	if err := m.store.LoadSchema(ctx); err != nil {
		return false, fmt.Errorf("failed to load row store: %w", err)
	}

	t, err := store.Lookup(m.store, store.TableAthletes, "athlete_id", "name", "refresh_token")
	if err != nil {
		return false, fmt.Errorf("athletes table unusable: %w", err)
	}

	rows, err := t.Rows(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read athletes: %w", err)
	}

	registered := m.now().In(m.location).Format(time.DateTime)

	if row := store.FindRow(rows, "athlete_id", reg.AthleteID); row != nil {
		row.Set("refresh_token", refreshToken)
		row.Set("last_registered", registered)
		if err := t.SaveRow(ctx, row); err != nil {
			return false, fmt.Errorf("failed to update athlete %s: %w", reg.AthleteID, err)
		}
		return false, nil
	}

	err = store.AddRow(ctx, t, store.Record{
		"athlete_id":      reg.AthleteID,
		"name":            reg.Name,
		"refresh_token":   refreshToken,
		"last_registered": registered,
	})
	if err != nil {
		return false, fmt.Errorf("failed to add athlete %s: %w", reg.AthleteID, err)
	}
	return true, nil
}

// validateState checks a state and removes it (one-time use)
func (m *Manager) validateState(state string) bool {
	m.states.mu.Lock()
	defer m.states.mu.Unlock()

	expiry, exists := m.states.states[state]
	if !exists {
		return false
	}
	delete(m.states.states, state)

	return !m.now().After(expiry)
}

func generateRandomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
