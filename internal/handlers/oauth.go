package handlers

import (
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"

	"strava-club-sync/internal/oauth"
)

// OAuthHandler handles the athlete registration endpoints
type OAuthHandler struct {
	oauthManager *oauth.Manager
	redirectURL  string
	logger       *slog.Logger
}

// NewOAuthHandler creates a new OAuth handler. After a successful
// registration the athlete is sent to redirectURL, or shown a plain page when
// it is empty.
func NewOAuthHandler(oauthManager *oauth.Manager, redirectURL string) *OAuthHandler {
	return &OAuthHandler{
		oauthManager: oauthManager,
		redirectURL:  redirectURL,
		logger:       slog.Default(),
	}
}

// HandleAuthStart initiates the OAuth flow by redirecting to Strava
func (h *OAuthHandler) HandleAuthStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Callback on the same host the athlete reached us on
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	redirectURI := fmt.Sprintf("%s://%s/oauth-callback", scheme, r.Host)

	authURL, state, err := h.oauthManager.GenerateAuthURL(redirectURI)
	if err != nil {
		h.logger.Error("Failed to generate auth URL", "error", err)
		http.Error(w, "Failed to start OAuth flow", http.StatusInternalServerError)
		return
	}

	h.logger.Info("Starting OAuth flow", "redirect_uri", redirectURI)
	h.logger.Debug("OAuth state issued", "state", state)

	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// HandleCallback processes the OAuth callback from Strava
func (h *OAuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	code := query.Get("code")
	state := query.Get("state")

	if errorParam := query.Get("error"); errorParam != "" {
		h.logger.Warn("OAuth authorization denied", "error", errorParam)
		http.Error(w, fmt.Sprintf("Authorization failed: %s", errorParam), http.StatusBadRequest)
		return
	}

	if code == "" {
		h.logger.Warn("Missing OAuth code", "has_state", state != "")
		http.Error(w, "No code provided by Strava.", http.StatusBadRequest)
		return
	}

	reg, err := h.oauthManager.HandleCallback(r.Context(), code, state)
	if errors.Is(err, oauth.ErrInvalidState) {
		h.logger.Warn("Rejected OAuth callback", "error", err)
		http.Error(w, "Invalid or expired authorization request. Please try again.", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.logger.Error("Registration failed", "error", err)
		http.Error(w, fmt.Sprintf("Authentication failed: %s", err.Error()), http.StatusInternalServerError)
		return
	}

	h.logger.Info("OAuth flow completed successfully", "athlete_id", reg.AthleteID, "created", reg.Created)

	if h.redirectURL != "" {
		http.Redirect(w, r, withStatus(h.redirectURL), http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<title>Registration Successful</title>
	<style>
		body {
			font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Helvetica, Arial, sans-serif;
			max-width: 600px;
			margin: 100px auto;
			padding: 20px;
			text-align: center;
		}
		h1 { color: #FC4C02; }
		p { color: #666; line-height: 1.6; }
	</style>
</head>
<body>
	<h1>✓ You're on the leaderboard</h1>
	<p>Thanks %s, your Strava activities will be included from the next sync.</p>
	<p>You can close this window.</p>
</body>
</html>`, html.EscapeString(reg.Name))
}

// withStatus appends status=success to the registration redirect
func withStatus(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set("status", "success")
	u.RawQuery = q.Encode()
	return u.String()
}
