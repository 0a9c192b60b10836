package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultGoogleUserinfoURL is Google's OAuth2 v2 userinfo endpoint.
const DefaultGoogleUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

var (
	// ErrInvalidAccessToken means Google refused the bearer token.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrNoEmail means the token is valid but Google returned no email.
	ErrNoEmail = errors.New("email not provided by google")
)

// GoogleProfile is the subset of the userinfo response we use.
type GoogleProfile struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
}

// GoogleClient fetches profiles from the userinfo endpoint.
type GoogleClient struct {
	userinfoURL string
	http        *http.Client
}

// NewGoogleClient returns a client for userinfoURL (overridable for tests).
func NewGoogleClient(userinfoURL string) *GoogleClient {
	if userinfoURL == "" {
		userinfoURL = DefaultGoogleUserinfoURL
	}
	return &GoogleClient{
		userinfoURL: userinfoURL,
		http:        &http.Client{Timeout: 10 * time.Second},
	}
}

// FetchProfile exchanges an access token for the user's profile.
func (g *GoogleClient) FetchProfile(ctx context.Context, accessToken string) (GoogleProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userinfoURL, nil)
	if err != nil {
		return GoogleProfile{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.http.Do(req)
	if err != nil {
		return GoogleProfile{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return GoogleProfile{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return GoogleProfile{}, fmt.Errorf("%w: google returned status %d", ErrInvalidAccessToken, resp.StatusCode)
	}

	var p GoogleProfile
	if err := json.Unmarshal(body, &p); err != nil {
		return GoogleProfile{}, fmt.Errorf("unmarshal response: %w", err)
	}
	if p.Email == "" {
		return GoogleProfile{}, ErrNoEmail
	}
	return p, nil
}
