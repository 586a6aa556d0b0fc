package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"strava-club-sync/internal/metrics"
)

const (
	defaultBaseURL  = "https://www.strava.com/api/v3"
	defaultAuthURL  = "https://www.strava.com/oauth/authorize"
	defaultTokenURL = "https://www.strava.com/oauth/token"

	// Scope requested during registration
	Scope = "read,activity:read_all"
)

// Client is a Strava API client for one registered application
type Client struct {
	httpClient   *http.Client
	clientID     string
	clientSecret string
	baseURL      string
	authURL      string
	tokenURL     string
	logger       *slog.Logger
	rateLimiter  *RateLimiter
}

// Token is the result of a code exchange or refresh
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Athlete      *TokenAthlete
}

// TokenAthlete is the athlete summary returned with a code exchange
type TokenAthlete struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
}

// FullName joins the athlete's first and last names
func (a *TokenAthlete) FullName() string {
	if a.LastName == "" {
		return a.FirstName
	}
	if a.FirstName == "" {
		return a.LastName
	}
	return a.FirstName + " " + a.LastName
}

// NewClient creates a new Strava API client
func NewClient(clientID, clientSecret string) *Client {
	rateLimiter := NewRateLimiter()
	logger := slog.Default()

	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &instrumentedTransport{
				base:        http.DefaultTransport,
				rateLimiter: rateLimiter,
				logger:      logger,
			},
		},
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      defaultBaseURL,
		authURL:      defaultAuthURL,
		tokenURL:     defaultTokenURL,
		logger:       logger,
		rateLimiter:  rateLimiter,
	}
}

// SetBaseURL points API calls at another host (for testing)
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

// SetTokenURL points token calls at another host (for testing)
func (c *Client) SetTokenURL(u string) {
	c.tokenURL = u
}

// SetAuthURL overrides the authorization page URL (for testing)
func (c *Client) SetAuthURL(u string) {
	c.authURL = u
}

// ClientID returns the application's client ID
func (c *Client) ClientID() string {
	return c.clientID
}

func (c *Client) oauthConfig(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{Scope},
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.authURL,
			TokenURL:  c.tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// tokenContext routes oauth2 token calls through the instrumented client
func (c *Client) tokenContext(ctx context.Context, operation string) context.Context {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return withOperation(ctx, operation)
}

// AuthCodeURL builds the Strava authorization page URL
func (c *Client) AuthCodeURL(state, redirectURL string) string {
	return c.oauthConfig(redirectURL).AuthCodeURL(state,
		oauth2.SetAuthURLParam("approval_prompt", "auto"),
	)
}

// ExchangeCode exchanges an authorization code for tokens and the athlete profile
func (c *Client) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	tok, err := c.oauthConfig("").Exchange(c.tokenContext(ctx, metrics.OpExchangeCode), code)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", tokenError(err))
	}

	result := fromOAuth(tok)

	if raw := tok.Extra("athlete"); raw != nil {
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to read athlete from token response: %w", err)
		}
		var athlete TokenAthlete
		if err := json.Unmarshal(b, &athlete); err != nil {
			return nil, fmt.Errorf("failed to decode athlete from token response: %w", err)
		}
		result.Athlete = &athlete
	}

	return result, nil
}

// RefreshToken exchanges a refresh token for a new access token. Strava may
// rotate the refresh token; callers must persist Token.RefreshToken when it
// differs from the one they sent.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	ctx = c.tokenContext(ctx, metrics.OpRefreshToken)
	source := c.oauthConfig("").TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	tok, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", tokenError(err))
	}

	return fromOAuth(tok), nil
}

func fromOAuth(tok *oauth2.Token) *Token {
	return &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
}

// tokenError maps an oauth2 retrieve error onto HTTPError
func tokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		return &HTTPError{
			StatusCode: retrieveErr.Response.StatusCode,
			Body:       string(retrieveErr.Body),
		}
	}
	return err
}

// get performs an authenticated GET and decodes the JSON response into v
func (c *Client) get(ctx context.Context, operation, path string, params url.Values, accessToken string, v any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(withOperation(ctx, operation), http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// GetRateLimitStatus returns the most recently observed rate limit status
func (c *Client) GetRateLimitStatus() RateLimitStatus {
	return c.rateLimiter.Status()
}
