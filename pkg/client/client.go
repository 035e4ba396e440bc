// Package client provides the Marvel gateway HTTP client with quota
// tracking, conditional caching, retries and error classification.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/marvel-comics-source/pkg/cache"
	"github.com/Sternrassler/marvel-comics-source/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the Marvel API gateway.
const DefaultBaseURL = "https://gateway.marvel.com"

var (
	marvelRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marvel_requests_total",
		Help: "Total Marvel API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	marvelRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marvel_request_duration_seconds",
		Help:    "Marvel API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	marvelErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marvel_errors_total",
		Help: "Total Marvel API errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of HTTP errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors (bad hash, bad params).
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 daily quota errors.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// Client talks to the Marvel gateway.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	quota      *ratelimit.Tracker
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the gateway; DefaultBaseURL unless testing.
	BaseURL string

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout per HTTP attempt.
	Timeout time.Duration

	// Retry policy for server and network errors.
	Retry RetryConfig

	// Redis enables the shared daily quota tracker and, with EnableCache,
	// the response cache. Nil disables both.
	Redis *redis.Client

	// Account identifies the quota bucket, normally the public key.
	Account string

	// DailyCallLimit is the daily quota (0 = ratelimit.DefaultDailyLimit).
	DailyCallLimit int

	// EnableCache stores 200 responses and revalidates them with If-None-Match.
	EnableCache bool

	// CacheMaxTTL caps how long a response is kept (0 = cache.DefaultTTL).
	CacheMaxTTL time.Duration

	// Authorize, when set, rewrites the query of every attempt right before
	// it is sent. Retries therefore carry a fresh ts and hash.
	Authorize func(url.Values)
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		UserAgent:      "marvel-comics-source/0.1.0",
		Timeout:        30 * time.Second,
		Retry:          DefaultRetryConfig(),
		DailyCallLimit: ratelimit.DefaultDailyLimit,
	}
}

// New creates a new gateway client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.DailyCallLimit < 0 {
		return nil, fmt.Errorf("daily_call_limit must be >= 0 (got %d)", cfg.DailyCallLimit)
	}

	if cfg.EnableCache && cfg.Redis == nil {
		return nil, fmt.Errorf("redis client is required when caching is enabled")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	logger := log.With().Str("component", "marvel-client").Logger()

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: base,
		config:  cfg,
		logger:  logger,
	}

	if cfg.Redis != nil {
		c.quota = ratelimit.NewTracker(cfg.Redis, logger, cfg.Account, cfg.DailyCallLimit)
		if cfg.EnableCache {
			c.cache = cache.NewManager(cfg.Redis).WithMaxTTL(cfg.CacheMaxTTL)
		}
	}

	return c, nil
}

// Do performs an HTTP request with quota gating, caching and retries.
// Non-retriable 4xx responses are returned to the caller unchanged; use
// DecodeError to turn them into an *APIError.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.do(req, c.config.Retry, c.cache != nil)
}

func (c *Client) do(req *http.Request, retry RetryConfig, useCache bool) (*http.Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path

	startTime := time.Now()
	defer func() {
		marvelRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Check daily quota
	if err := c.allow(ctx, endpoint); err != nil {
		return nil, err
	}

	// Step 2: Check cache
	cacheKey := cache.Key{
		Endpoint:    endpoint,
		QueryParams: req.URL.Query(),
	}

	var cachedEntry *cache.Entry
	if useCache {
		entry, err := c.cache.Get(ctx, cacheKey)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}

		if entry.CanRevalidate() {
			cachedEntry = entry
			cache.SetIfNoneMatch(req, cachedEntry)
			cache.ConditionalRequests.Inc()
			c.logger.Debug().
				Str("endpoint", endpoint).
				Str("etag", cachedEntry.ETag).
				Msg("Making conditional request")
		}
	}

	// Step 3: Headers
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing Marvel request")

	// Step 4: Execute with retry
	var resp *http.Response
	var errClass ErrorClass

	retryErr := retryWithBackoff(ctx, retry, func() error {
		if c.config.Authorize != nil {
			q := req.URL.Query()
			c.config.Authorize(q)
			req.URL.RawQuery = q.Encode()
		}

		var reqErr error
		resp, reqErr = c.httpClient.Do(req)

		c.recordCall(ctx)

		if reqErr != nil {
			c.logger.Error().Err(reqErr).Str("endpoint", endpoint).Msg("HTTP request failed")
			errClass = c.classifyError(nil, reqErr)
			marvelErrorsTotal.WithLabelValues(string(errClass)).Inc()
			marvelRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			return reqErr
		}

		if resp.StatusCode == http.StatusNotModified {
			return nil
		}

		if resp.StatusCode >= 400 {
			errClass = c.classifyError(resp, nil)
			marvelErrorsTotal.WithLabelValues(string(errClass)).Inc()
			marvelRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", resp.StatusCode).
				Str("error_class", string(errClass)).
				Msg("Marvel request error")

			if errClass == ErrorClassRateLimit {
				c.markExhausted(ctx)
			}

			if shouldRetry(errClass) {
				apiErr := &APIError{
					StatusCode: resp.StatusCode,
					ErrorClass: errClass,
					Message:    resp.Status,
				}
				resp.Body.Close()
				return apiErr
			}

			// Hand the response to the caller.
			return nil
		}

		marvelRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
		return nil
	}, func(error) ErrorClass {
		return errClass
	})

	if retryErr != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, retryErr
	}

	// Step 5: 304 Not Modified
	if resp.StatusCode == http.StatusNotModified {
		resp.Body.Close()
		if cachedEntry == nil {
			return nil, &APIError{
				StatusCode: resp.StatusCode,
				ErrorClass: ErrorClassClient,
				Message:    "304 Not Modified without a cached entry",
			}
		}

		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified - using cache")
		marvelRequestsTotal.WithLabelValues(endpoint, "304").Inc()
		cache.NotModifiedResponses.Inc()

		if err := c.cache.Refresh(ctx, cacheKey, cache.ExpiresFrom(resp.Header)); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to refresh cache entry")
		}

		return cachedEntry.Response(), nil
	}

	// Step 6: Update cache on success
	if useCache && resp.StatusCode == http.StatusOK {
		entry, err := cache.FromResponse(resp)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		} else if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		} else {
			c.logger.Debug().
				Str("endpoint", endpoint).
				Dur("ttl", entry.TTL()).
				Msg("Cached response")
		}
	}

	return resp, nil
}

func (c *Client) allow(ctx context.Context, endpoint string) error {
	if c.quota == nil {
		return nil
	}

	allowed, err := c.quota.ShouldAllowRequest(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Quota check failed")
		return fmt.Errorf("quota check: %w", err)
	}
	if !allowed {
		c.logger.Warn().
			Str("endpoint", endpoint).
			Msg("Request blocked by daily quota")
		marvelRequestsTotal.WithLabelValues(endpoint, "quota_blocked").Inc()
		return ErrQuotaExhausted
	}
	return nil
}

func (c *Client) recordCall(ctx context.Context) {
	if c.quota == nil {
		return
	}
	if _, err := c.quota.RecordCall(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to record call against quota")
	}
}

func (c *Client) markExhausted(ctx context.Context) {
	if c.quota == nil {
		return
	}
	if err := c.quota.MarkExhausted(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to mark quota exhausted")
	}
}

// classifyError categorizes an error for observability and handling.
func (c *Client) classifyError(resp *http.Response, err error) ErrorClass {
	if err != nil {
		c.logger.Debug().Str("class", string(ErrorClassNetwork)).Msg("Error classified")
		return ErrorClassNetwork
	}

	class := classifyStatus(resp.StatusCode)
	if class != "" {
		c.logger.Debug().Str("class", string(class)).Msg("Error classified")
	}
	return class
}

func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// URL resolves path and query against the base URL.
func (c *Client) URL(path string, params url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = params.Encode()
	return u.String()
}

// Get performs a GET request against the gateway with retries.
func (c *Client) Get(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(path, params), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	return c.Do(req)
}

// Probe performs a single uncached GET; transport errors are returned as-is.
func (c *Client) Probe(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(path, params), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	return c.do(req, NoRetry(), false)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// GetCache returns the cache manager (for testing).
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}

// Quota returns the daily quota tracker, or nil without Redis.
func (c *Client) Quota() *ratelimit.Tracker {
	return c.quota
}
