// Package arxiv fetches category listings from the arXiv export API and
// turns Atom pages into normalized articles.
package arxiv

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/arxiv-collector/internal/domain"
	"github.com/helixir/arxiv-collector/internal/papersources"
)

const (
	// DefaultBaseURL is the default arXiv API base URL.
	DefaultBaseURL = "https://export.arxiv.org/api"

	// DefaultMinInterval is the spacing arXiv asks clients to keep between requests.
	DefaultMinInterval = 3 * time.Second

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxResults is the page size used when a query leaves it unset.
	DefaultMaxResults = 1000

	// MaxPageSize is the largest page the export API serves in one response.
	MaxPageSize = 2000

	// sourceName is the human-readable name for this source.
	sourceName = "arXiv"
)

// Config holds configuration for the arXiv client.
type Config struct {
	// BaseURL is the arXiv API base URL.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// MinInterval is the minimum spacing between two requests.
	MinInterval time.Duration

	// MaxRetries is the number of retries on 429 and 5xx.
	MaxRetries int

	// RetryDelay is the delay between retries when no Retry-After is sent.
	RetryDelay time.Duration

	// UserAgent is sent with every request.
	UserAgent string
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MinInterval == 0 {
		c.MinInterval = DefaultMinInterval
	}
}

// Client implements papersources.PageFetcher for arXiv.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

var _ papersources.PageFetcher = (*Client)(nil)

// New creates a new arXiv client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:      sourceName,
		Timeout:     cfg.Timeout,
		MinInterval: cfg.MinInterval,
		MaxRetries:  cfg.MaxRetries,
		RetryDelay:  cfg.RetryDelay,
		UserAgent:   cfg.UserAgent,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new arXiv client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Name returns the source identifier.
func (c *Client) Name() string {
	return sourceName
}

// FetchPage issues one listing request for q.Category, newest submissions
// first, and returns the raw Atom payload.
func (c *Client) FetchPage(ctx context.Context, q papersources.PageQuery) ([]byte, error) {
	pageURL, err := c.buildQueryURL(q)
	if err != nil {
		return nil, err
	}

	payload, err := c.httpClient.Get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s page at %d: %w", q.Category, q.Start, err)
	}
	return payload, nil
}

// buildQueryURL constructs the export API query for one category page.
func (c *Client) buildQueryURL(q papersources.PageQuery) (string, error) {
	category := strings.TrimSpace(q.Category)
	if category == "" {
		return "", domain.NewValidationError("category", "must not be empty")
	}
	if q.Start < 0 {
		return "", domain.NewValidationError("start", "must not be negative")
	}

	maxResults := q.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if maxResults > MaxPageSize {
		maxResults = MaxPageSize
	}

	base, err := url.Parse(strings.TrimRight(c.config.BaseURL, "/") + "/query")
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}

	values := url.Values{}
	values.Set("search_query", "cat:"+category)
	values.Set("start", strconv.Itoa(q.Start))
	values.Set("max_results", strconv.Itoa(maxResults))
	values.Set("sortBy", "submittedDate")
	values.Set("sortOrder", "descending")
	base.RawQuery = values.Encode()

	return base.String(), nil
}
