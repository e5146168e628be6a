package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ignite/notify-dispatch/internal/domain"
	"github.com/ignite/notify-dispatch/internal/pkg/httpretry"
)

// HTTPDirectory fetches users from a REST identity service at
// GET {baseURL}/users/{id}.
type HTTPDirectory struct {
	baseURL string
	apiKey  string
	client  httpretry.HTTPDoer
}

// HTTPConfig configures an HTTPDirectory.
type HTTPConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// NewHTTPDirectory creates a directory client with retries on transient
// failures.
func NewHTTPDirectory(cfg HTTPConfig) *HTTPDirectory {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &HTTPDirectory{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  httpretry.NewRetryClient(&http.Client{Timeout: cfg.Timeout}, cfg.MaxRetries),
	}
}

// WithClient swaps the HTTP client. Used by tests.
func (d *HTTPDirectory) WithClient(c httpretry.HTTPDoer) *HTTPDirectory {
	d.client = c
	return d
}

type userResponse struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	Username       string `json:"username"`
	EmailAddresses []struct {
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
}

// GetUser implements Directory.
func (d *HTTPDirectory) GetUser(ctx context.Context, userID string) (domain.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/users/"+url.PathEscape(userID), nil)
	if err != nil {
		return domain.User{}, fmt.Errorf("build identity request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.User{}, ErrNotFound
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return domain.User{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.User{}, fmt.Errorf("identity lookup failed: status %d: %s", resp.StatusCode, body)
	}

	var ur userResponse
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return domain.User{}, fmt.Errorf("decode identity response: %w", err)
	}
	u := domain.User{ID: ur.ID, Email: ur.Email, FirstName: ur.FirstName, Username: ur.Username}
	if u.ID == "" {
		u.ID = userID
	}
	if u.Email == "" && len(ur.EmailAddresses) > 0 {
		u.Email = ur.EmailAddresses[0].EmailAddress
	}
	if u.Email == "" {
		return domain.User{}, ErrNotFound
	}
	return u, nil
}
