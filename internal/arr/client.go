package arr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"fetcharr/internal/config"
	"fetcharr/internal/logging"
	"fetcharr/internal/services"
)

// HTTPDoer describes the HTTP client used for instance requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client issues authenticated JSON requests against one instance's v3 API.
type Client struct {
	name    string
	baseURL string
	apiKey  string
	http    HTTPDoer
	limiter *rate.Limiter
	logger  *slog.Logger
	now     func() time.Time
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithClock overrides the time source used for client-side date filters.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient builds a client for a configured instance. Requests are paced by
// the workflow rate limit and time out per the workflow request timeout.
func NewClient(inst config.Instance, workflow config.Workflow, logger *slog.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	rps := workflow.RateLimitPerSecond
	if rps < 1 {
		rps = 1
	}
	c := &Client{
		name:    inst.Name,
		baseURL: strings.TrimRight(strings.TrimSpace(inst.URL), "/"),
		apiKey:  strings.TrimSpace(inst.APIKey),
		http: &http.Client{
			Timeout: time.Duration(workflow.RequestTimeout) * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		logger:  logger.With(logging.String(logging.FieldInstance, inst.Name)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientWithDoer builds a client around an injected HTTP doer. Tests use
// this with httptest servers.
func NewClientWithDoer(name, baseURL, apiKey string, doer HTTPDoer, logger *slog.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Client{
		name:    name,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		http:    doer,
		limiter: rate.NewLimiter(rate.Inf, 1),
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the configured instance name.
func (c *Client) Name() string {
	return c.name
}

// Now returns the client's current time in UTC.
func (c *Client) Now() time.Time {
	return c.now().UTC()
}

// GetJSON performs a GET against an API path and decodes the JSON response.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, query, nil, out)
}

// PostJSON performs a POST with a JSON body and decodes the JSON response.
func (c *Client) PostJSON(ctx context.Context, path string, body any, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c.baseURL == "" || c.apiKey == "" {
		return services.Wrap(services.ErrConfiguration, c.name, "missing url or api key", nil)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return services.Wrap(services.ErrTransient, c.name, "rate limit wait", err)
	}

	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return services.Wrap(services.ErrTransient, c.name, "encode request", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, c.name, "build request", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger := logging.WithContext(ctx, c.logger)

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warn("request failed",
			logging.String("method", method),
			logging.String("path", path),
			logging.Error(err))
		return services.Wrap(services.ErrUnavailable, c.name, fmt.Sprintf("%s %s", method, path), err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(c.name, method, path, resp.StatusCode); err != nil {
		logger.Warn("request rejected",
			logging.String("method", method),
			logging.String("path", path),
			logging.Int("status", resp.StatusCode))
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return err
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrTransient, c.name, "decode response", err)
	}
	return nil
}

func classifyStatus(name, method, path string, status int) error {
	detail := fmt.Sprintf("%s %s returned %d", method, path, status)
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, name, detail, nil)
	case status == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, name, detail, nil)
	case status >= 500:
		return services.Wrap(services.ErrUnavailable, name, detail, nil)
	default:
		return services.Wrap(services.ErrTransient, name, detail, nil)
	}
}
