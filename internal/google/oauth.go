package google

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const oobRedirectURL = "urn:ietf:wg:oauth:2.0:oob"

// NewWebConfig returns the OAuth2 configuration for the browser sign-in flow.
// The redirect URL must match one registered on the Google OAuth client.
func NewWebConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       LoginScopes,
	}
}

// NewOOBConfig returns the OAuth2 configuration for the CLI token flow, where
// the user pastes the authorization code into the terminal.
func NewOOBConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  oobRedirectURL,
		Scopes:       LoginScopes,
	}
}

// AuthCodeURL builds the Google consent URL. Offline access plus a forced
// consent prompt guarantees a refresh token on every login.
func AuthCodeURL(conf *oauth2.Config, state string) string {
	return conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// GrantedScopes extracts the space-separated scope list Google returns
// alongside the access token. Empty when the token response carried none.
func GrantedScopes(tok *oauth2.Token) string {
	if s, ok := tok.Extra("scope").(string); ok {
		return s
	}
	return ""
}

// HasToken checks if a cached OAuth token exists
func HasToken() bool {
	_, err := os.ReadFile(tokenFilePath())
	return err == nil
}

// SaveToken exchanges an authorization code for tokens and saves them
func SaveToken(ctx context.Context, conf *oauth2.Config, authCode string) error {
	t, err := conf.Exchange(ctx, authCode)
	if err != nil {
		return fmt.Errorf("failed to exchange auth code: %w", err)
	}

	tokenFile := tokenFilePath()

	if err := os.MkdirAll(filepath.Dir(tokenFile), 0700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tokenData := t.AccessToken + " " + t.RefreshToken
	if err := os.WriteFile(tokenFile, []byte(tokenData), 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return nil
}

// RemoveToken deletes the cached token. Removing a token that does not exist
// is not an error.
func RemoveToken() error {
	err := os.Remove(tokenFilePath())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

// GetTokenSource returns an OAuth2 token source for the cached token.
// Returns an error if no valid token exists.
func GetTokenSource(ctx context.Context, conf *oauth2.Config) (oauth2.TokenSource, error) {
	slurp, err := os.ReadFile(tokenFilePath())
	if err != nil {
		return nil, fmt.Errorf("no valid Google OAuth token found")
	}

	tok, err := parseTokenData(string(slurp))
	if err != nil {
		return nil, err
	}

	ts := conf.TokenSource(ctx, tok)

	// Validate the token
	if _, err := ts.Token(); err != nil {
		slog.Warn("cached google token invalid", "error", err.Error())
		return nil, fmt.Errorf("cached token is invalid: %w", err)
	}

	return ts, nil
}

// parseTokenData parses the "<access> <refresh>" token file format. The
// expiry is set in the past so the first use refreshes the access token.
func parseTokenData(data string) (*oauth2.Token, error) {
	f := strings.Fields(strings.TrimSpace(data))
	if len(f) != 2 {
		return nil, fmt.Errorf("invalid token format")
	}

	return &oauth2.Token{
		AccessToken:  f[0],
		TokenType:    "Bearer",
		RefreshToken: f[1],
		Expiry:       time.Unix(1, 0),
	}, nil
}

// GetHTTPClient returns an HTTP client authorized with the cached token.
func GetHTTPClient(ctx context.Context, conf *oauth2.Config) (*http.Client, error) {
	ts, err := GetTokenSource(ctx, conf)
	if err != nil {
		return nil, err
	}
	return newClientFromSource(ctx, ts), nil
}

// NewAuthorizedClient returns an HTTP client authorized with the given token,
// refreshing it through conf when it expires. Used by the server, where each
// session carries its own token.
func NewAuthorizedClient(ctx context.Context, conf *oauth2.Config, tok *oauth2.Token) *http.Client {
	return newClientFromSource(ctx, conf.TokenSource(ctx, tok))
}

// newClientFromSource builds the authorized client. The transport is pinned
// to HTTP/1.1 to avoid HTTP/2 protocol errors against googleapis.com.
func newClientFromSource(ctx context.Context, ts oauth2.TokenSource) *http.Client {
	client := oauth2.NewClient(ctx, ts)

	if transport, ok := client.Transport.(*oauth2.Transport); ok {
		transport.Base = &http.Transport{
			ForceAttemptHTTP2: false,
		}
	}

	return client
}

func tokenFilePath() string {
	return filepath.Join(userCacheDir(), "inboxgist", "google.token")
}

func userCacheDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Caches")
	case "windows":
		for _, ev := range []string{"TEMP", "TMP"} {
			if v := os.Getenv(ev); v != "" {
				return v
			}
		}
		panic("No Windows TEMP or TMP environment variables found")
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return xdg
	}
	return filepath.Join(homeDir(), ".cache")
}

func homeDir() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
	}
	return os.Getenv("HOME")
}
