// Package recovery fetches sleep, readiness and activity scores from the
// recovery-device provider.
package recovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/claude/trainctx/internal/models"
)

// Client calls the provider's REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a Client targeting baseURL. token, when set, is sent as
// a bearer token.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Scores returns the user's latest and average scores. A user without a
// connected device yields (nil, nil).
func (c *Client) Scores(ctx context.Context, userID string) (*models.RecoveryScores, error) {
	path := "/v1/users/" + url.PathEscape(userID) + "/scores"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("recovery: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recovery: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("recovery: read body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("recovery: %s returned %d: %s", path, resp.StatusCode, body)
	}

	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	var scores models.RecoveryScores
	if err := json.Unmarshal(body, &scores); err != nil {
		return nil, fmt.Errorf("recovery: decode scores: %w", err)
	}
	return &scores, nil
}
