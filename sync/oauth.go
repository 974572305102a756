// ABOUTME: OAuth configuration and token management for Google APIs
// ABOUTME: Builds the contacts-readonly OAuth client and stores tokens in the data directory
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/people/v1"

	"github.com/harperreed/cardsync/config"
)

// NewOAuthConfig creates the OAuth2 config for reading Google Contacts.
func NewOAuthConfig(cfg config.GoogleConfig) (*oauth2.Config, error) {
	if !cfg.OAuthComplete() {
		return nil, fmt.Errorf("google OAuth credentials not configured. Set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET environment variables")
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{people.ContactsReadonlyScope},
		Endpoint:     google.Endpoint,
	}, nil
}

// SaveToken writes the token with owner-only permissions.
func SaveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	return nil
}

// LoadToken reads a token written by SaveToken.
func LoadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open token file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var token oauth2.Token
	if err := json.NewDecoder(f).Decode(&token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return &token, nil
}

// savingSource persists refreshed tokens so the next run starts from them.
type savingSource struct {
	base oauth2.TokenSource
	path string
	last string
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	if token.AccessToken != s.last {
		s.last = token.AccessToken
		if err := SaveToken(s.path, token); err != nil {
			return nil, err
		}
	}
	return token, nil
}

// TokenSource refreshes token as needed and writes each new one to path.
func TokenSource(ctx context.Context, oauthCfg *oauth2.Config, token *oauth2.Token, path string) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(token, &savingSource{
		base: oauthCfg.TokenSource(ctx, token),
		path: path,
		last: token.AccessToken,
	})
}
