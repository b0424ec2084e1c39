package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/claude/trainctx/internal/contextsvc"
	"github.com/claude/trainctx/internal/ratelimit"
	"github.com/claude/trainctx/internal/training"
)

// HTTPClient implements DataSource by calling the trainctx REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// the service runs elsewhere (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) do(ctx context.Context, method, userID, path string, out any) error {
	u := c.baseURL + "/api/v1/users/" + url.PathEscape(userID) + path

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

// TrainingContext returns the remote context. A degraded context is
// returned with contextsvc.ErrAssembly, as the local service does.
func (c *HTTPClient) TrainingContext(ctx context.Context, userID string) (*training.TrainingContext, error) {
	var tc training.TrainingContext
	if err := c.do(ctx, http.MethodGet, userID, "/training-context", &tc); err != nil {
		return nil, err
	}
	if tc.Degraded {
		return &tc, contextsvc.ErrAssembly
	}
	return &tc, nil
}

func (c *HTTPClient) Summary(ctx context.Context, userID string) (*contextsvc.Summary, error) {
	var s contextsvc.Summary
	if err := c.do(ctx, http.MethodGet, userID, "/summary", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *HTTPClient) RateGate(ctx context.Context, userID string) (ratelimit.Snapshot, error) {
	var s ratelimit.Snapshot
	err := c.do(ctx, http.MethodGet, userID, "/rate-gate", &s)
	return s, err
}

func (c *HTTPClient) IncrementRateGate(ctx context.Context, userID string) (ratelimit.Snapshot, error) {
	var s ratelimit.Snapshot
	err := c.do(ctx, http.MethodPost, userID, "/rate-gate/increment", &s)
	return s, err
}
