package papersources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/helixir/arxiv-collector/internal/domain"
)

// DefaultMaxBodySize bounds how much of a response body Get reads.
const DefaultMaxBodySize = 32 << 20

// HTTPClientConfig configures the HTTP client.
type HTTPClientConfig struct {
	// Source names the remote service in errors.
	Source string

	// Timeout is the per-attempt request timeout.
	Timeout time.Duration

	// MinInterval is the minimum spacing between requests. When zero,
	// RateLimit and BurstSize are used instead.
	MinInterval time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// RetryDelay is the delay between retries when the server sends no Retry-After.
	RetryDelay time.Duration

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// MaxBodySize bounds response bodies read by Get.
	MaxBodySize int64
}

// HTTPClient wraps http.Client with rate limiting and retries.
// It is safe for concurrent use.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	config      HTTPClientConfig
}

// NewHTTPClient creates a new HTTP client with rate limiting.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	return NewHTTPClientWith(cfg, nil)
}

// NewHTTPClientWith is NewHTTPClient with a caller-supplied http.Client.
// A nil client gets one with cfg.Timeout.
func NewHTTPClientWith(cfg HTTPClientConfig, hc *http.Client) *HTTPClient {
	if cfg.Source == "" {
		cfg.Source = "remote"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 1
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 3 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "arxiv-collector/1.0"
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	limiter := NewRateLimiter(cfg.RateLimit, cfg.BurstSize)
	if cfg.MinInterval > 0 {
		limiter = NewIntervalLimiter(cfg.MinInterval)
	}

	return &HTTPClient{
		client:      hc,
		rateLimiter: limiter,
		config:      cfg,
	}
}

// Do executes an HTTP request with rate limiting and retries.
// It waits for the rate limiter before each attempt and retries on 429
// (honoring Retry-After) and on 5xx responses. A 429 that survives every
// retry is reported as a domain.RateLimitError.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err := c.rateLimiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if req.Context().Err() != nil {
					return nil, err
				}
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt < c.config.MaxRetries {
				if err := c.waitForRetry(req.Context(), c.config.RetryDelay); err != nil {
					return nil, err
				}
				continue
			}
			return nil, lastErr
		}

		if !c.shouldRetry(resp.StatusCode) {
			return resp, nil
		}

		retryDelay := c.getRetryDelay(resp)
		drain(resp)

		if attempt < c.config.MaxRetries {
			lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
			if err := c.waitForRetry(req.Context(), retryDelay); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, domain.NewRateLimitError(c.config.Source, retryDelay)
		}
		return nil, domain.NewExternalAPIError(c.config.Source, resp.StatusCode,
			fmt.Sprintf("max retries exhausted after %d attempts", c.config.MaxRetries+1), nil)
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("unexpected error: no response received")
}

// Get issues a GET and returns the body of a 200 response. Transport
// failures, non-200 statuses and bodies larger than MaxBodySize are returned
// as domain.ExternalAPIError.
func (c *HTTPClient) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, domain.ErrTransientFetch) {
			return nil, err
		}
		return nil, domain.NewExternalAPIError(c.config.Source, 0, err.Error(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, domain.NewExternalAPIError(c.config.Source, resp.StatusCode, string(snippet), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBodySize+1))
	if err != nil {
		return nil, domain.NewExternalAPIError(c.config.Source, resp.StatusCode, "read body", err)
	}
	if int64(len(body)) > c.config.MaxBodySize {
		return nil, domain.NewExternalAPIError(c.config.Source, resp.StatusCode,
			fmt.Sprintf("response body exceeds %d bytes", c.config.MaxBodySize), nil)
	}
	return body, nil
}

// shouldRetry returns true if the status code indicates we should retry.
func (c *HTTPClient) shouldRetry(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500 && statusCode < 600
}

// getRetryDelay honors Retry-After (seconds or HTTP date) and falls back to
// the configured retry delay.
func (c *HTTPClient) getRetryDelay(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return c.config.RetryDelay
	}

	if seconds, err := strconv.ParseInt(retryAfter, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return c.config.RetryDelay
	}

	if t, err := http.ParseTime(retryAfter); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}

	return c.config.RetryDelay
}

func (c *HTTPClient) waitForRetry(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func drain(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
