package sheets

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Credentials identifies a Google service account. Either CredentialsFile or
// both Email and PrivateKey must be set.
type Credentials struct {
	Email           string
	PrivateKey      string
	CredentialsFile string
}

// ClientOption builds the authenticated client option for a service account
func (c Credentials) ClientOption(ctx context.Context) (option.ClientOption, error) {
	if c.CredentialsFile != "" {
		b, err := os.ReadFile(c.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}

		conf, err := google.JWTConfigFromJSON(b, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("failed to parse credentials file: %w", err)
		}
		return option.WithTokenSource(conf.TokenSource(ctx)), nil
	}

	if c.Email == "" || c.PrivateKey == "" {
		return nil, fmt.Errorf("service account email and private key are required")
	}

	return option.WithTokenSource(c.jwtConfig().TokenSource(ctx)), nil
}

func (c Credentials) jwtConfig() *jwt.Config {
	return &jwt.Config{
		Email:      c.Email,
		PrivateKey: []byte(UnescapeKey(c.PrivateKey)),
		Scopes:     []string{sheets.SpreadsheetsScope},
		TokenURL:   google.JWTTokenURL,
	}
}

// UnescapeKey restores newlines in a PEM key stored as a single-line env var
func UnescapeKey(key string) string {
	return strings.ReplaceAll(key, `\n`, "\n")
}
