// Package api provides the HTTP client for the tierdash backend. It owns
// the process-wide bearer token, splits network failures from response
// failures, and applies the configured resilience policy.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/kavia-common/tierdash-client/internal/apierr"
)

// maxResponseBody bounds how much of a response body is captured.
const maxResponseBody = 1 << 20

// Client is the tierdash backend HTTP client. The bearer token is
// process-wide mutable state with a single writer (the session store);
// requests carry an Authorization header if and only if a token is set.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
	limiter    *rate.Limiter
	metrics    *Metrics

	retry   RetryConfig
	breaker *CircuitBreaker

	mu    sync.RWMutex
	token string
}

// Config holds client configuration.
type Config struct {
	// BaseURL is the backend origin, e.g. http://localhost:8000.
	BaseURL string
	// Timeout bounds each request attempt. Defaults to 30s.
	Timeout time.Duration
	// HTTPClient overrides the underlying client, mainly for tests.
	HTTPClient *http.Client
	// Logger defaults to a no-op logger.
	Logger *zerolog.Logger
	// RequestsPerSecond enables client-side rate limiting when positive.
	RequestsPerSecond float64
	// Retry configures retries; the zero value disables them.
	Retry RetryConfig
	// CircuitBreaker, when non-nil, gates requests through a breaker.
	CircuitBreaker *CircuitBreakerConfig
	// Metrics, when non-nil, records request counters.
	Metrics *Metrics
}

// New creates a new backend client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	var breaker *CircuitBreaker
	if cfg.CircuitBreaker != nil {
		breaker = NewCircuitBreaker(*cfg.CircuitBreaker)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
		limiter:    limiter,
		metrics:    cfg.Metrics,
		retry:      cfg.Retry,
		breaker:    breaker,
	}, nil
}

// SetToken installs the bearer token attached to subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// ClearToken removes the bearer token; subsequent requests go out
// unauthenticated.
func (c *Client) ClearToken() {
	c.SetToken("")
}

// Token returns the currently installed bearer token, "" when unset.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Request performs a call against the configured base URL and returns the
// raw response body on 2xx. A nil body sends no payload; url.Values are
// form-encoded; anything else is JSON-marshaled. All failures are
// *apierr.TransportError: a network failure when no response was
// received, a response failure carrying status and body otherwise.
func (c *Client) Request(ctx context.Context, method, path string, body any, headers map[string]string) ([]byte, error) {
	payload, contentType, err := encodeBody(body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, apierr.NewNetworkFailure(err)
		}
	}
	if c.breaker != nil {
		if err := c.breaker.Allow(); err != nil {
			return nil, apierr.NewNetworkFailure(err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			c.metrics.retried()
			select {
			case <-ctx.Done():
				return nil, apierr.NewNetworkFailure(ctx.Err())
			case <-time.After(c.retry.backoff(attempt)):
			}
		}

		respBody, retryable, err := c.do(ctx, method, path, payload, contentType, headers)
		if err == nil {
			if c.breaker != nil {
				c.breaker.RecordSuccess()
			}
			return respBody, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}

	if c.breaker != nil {
		c.breaker.RecordFailure(lastErr)
	}
	return nil, lastErr
}

// do performs one attempt. The second return reports whether the failure
// is worth retrying.
func (c *Client) do(ctx context.Context, method, path string, payload []byte, contentType string, headers map[string]string) ([]byte, bool, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, false, apierr.NewNetworkFailure(err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.metrics.requested(method)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.failed("network")
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("request failed on the network path")
		return nil, isRetryableNetworkError(err), apierr.NewNetworkFailure(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		c.metrics.failed("network")
		return nil, true, apierr.NewNetworkFailure(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.failed("response")
		c.logger.Debug().Int("status", resp.StatusCode).Str("method", method).Str("path", path).Msg("request failed with an error response")
		return nil, c.retry.retryableStatus(resp.StatusCode), apierr.NewResponseFailure(resp.StatusCode, respBody)
	}

	return respBody, false, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	return c.Request(ctx, http.MethodGet, path, nil, nil)
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, path string, body any) ([]byte, error) {
	return c.Request(ctx, http.MethodPost, path, body, nil)
}

// Put performs a PUT request.
func (c *Client) Put(ctx context.Context, path string, body any) ([]byte, error) {
	return c.Request(ctx, http.MethodPut, path, body, nil)
}

func encodeBody(body any) ([]byte, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case url.Values:
		return []byte(b.Encode()), "application/x-www-form-urlencoded", nil
	case []byte:
		return b, "application/json", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", err
		}
		return data, "application/json", nil
	}
}

func isRetryableNetworkError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
