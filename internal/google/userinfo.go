package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Userinfo is the subset of the OpenID Connect userinfo response the server
// cares about.
type Userinfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Locale        string `json:"locale"`
	Picture       string `json:"picture"`
}

// FetchUserinfo resolves the signed-in user's identity using an authorized
// HTTP client.
func FetchUserinfo(ctx context.Context, client *http.Client) (*Userinfo, error) {
	return FetchUserinfoFrom(ctx, client, UserinfoEndpoint)
}

// FetchUserinfoFrom is FetchUserinfo against a custom endpoint.
func FetchUserinfoFrom(ctx context.Context, client *http.Client, endpoint string) (*Userinfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build userinfo request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo request returned status %d", resp.StatusCode)
	}

	var info Userinfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo response: %w", err)
	}

	return &info, nil
}
