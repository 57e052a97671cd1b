package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/ppiankov/gdeltwatch/internal/cache"
	"github.com/ppiankov/gdeltwatch/internal/logging"
	"github.com/ppiankov/gdeltwatch/internal/metrics"
	"github.com/ppiankov/gdeltwatch/internal/model"
	"github.com/ppiankov/gdeltwatch/internal/util"
	"github.com/ppiankov/gdeltwatch/internal/worker"
)

// breakerName labels the upstream circuit breaker in logs and metrics
const breakerName = "gdelt-upstream"

// fetchSleepFunc is the backoff sleep; tests replace it
var fetchSleepFunc = sleepContext

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// fetchBaseBackoff is the first retry delay; it doubles per attempt
const fetchBaseBackoff = 500 * time.Millisecond

// ErrRobotsDisallowed is returned when robots.txt forbids a URL
var ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

// Fetcher performs upstream GETs with retry, rate limiting, an optional
// circuit breaker and an optional payload cache
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	maxRetries int
	robots     *util.RobotsChecker
	limiter    *worker.Limiter
	breaker    *gobreaker.CircuitBreaker[*FetchResult]
	cache      cache.Cache
	cacheTTL   time.Duration
}

// FetcherOption configures optional Fetcher behavior
type FetcherOption func(*Fetcher)

// WithMaxRetries sets the total number of attempts per fetch
func WithMaxRetries(n int) FetcherOption {
	return func(f *Fetcher) {
		if n < 1 {
			n = 1
		}
		f.maxRetries = n
	}
}

// WithLimiter throttles requests per upstream host
func WithLimiter(l *worker.Limiter) FetcherOption {
	return func(f *Fetcher) { f.limiter = l }
}

// WithCache stores successful FetchCached payloads
func WithCache(c cache.Cache, ttl time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.cache = c
		f.cacheTTL = ttl
	}
}

// WithBreaker guards upstream calls with a circuit breaker that opens
// after cfg.FailureThreshold consecutive retryable failures
func WithBreaker(cfg model.BreakerConfig) FetcherOption {
	return func(f *Fetcher) {
		f.breaker = newBreaker(cfg)
	}
}

// NewFetcher creates a new Fetcher with the given configuration
func NewFetcher(timeout time.Duration, userAgent string, maxBytes int64, respectRobots bool, httpProxy, httpsProxy, noProxy string, opts ...FetcherOption) *Fetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = util.NewProxyFunc(httpProxy, httpsProxy, noProxy)
	transport.MaxIdleConnsPerHost = 4
	transport.IdleConnTimeout = 90 * time.Second

	client := &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("stopped after 3 redirects")
			}
			return nil
		},
	}

	f := &Fetcher{
		httpClient: client,
		userAgent:  userAgent,
		maxBytes:   maxBytes,
		maxRetries: 3,
	}
	if respectRobots {
		f.robots = util.NewRobotsChecker(userAgent, client)
	}
	for _, opt := range opts {
		opt(f)
	}

	return f
}

// NewFetcherFromConfig builds a Fetcher from the http, rate limit, breaker and cache settings
func NewFetcherFromConfig(cfg *model.Config) *Fetcher {
	opts := []FetcherOption{
		WithMaxRetries(cfg.HTTP.MaxRetries),
		WithLimiter(worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.Burst)),
		WithBreaker(cfg.Breaker),
	}
	if cfg.Cache.Enabled {
		opts = append(opts, WithCache(cache.NewMemoryCache(cfg.Cache.TTL, cfg.Cache.TTL), cfg.Cache.TTL))
	}

	h := cfg.HTTP
	return NewFetcher(h.Timeout, h.UserAgent, h.MaxBodyBytes, h.RespectRobots, h.HTTPProxy, h.HTTPSProxy, h.NoProxy, opts...)
}

// FetchResult contains a fetched body and response metadata
type FetchResult struct {
	Body        []byte
	StatusCode  int
	ContentType string
	FinalURL    string
	FromCache   bool
}

// Fetch performs a single GET attempt
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	if f.robots != nil {
		allowed, err := f.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return nil, fmt.Errorf("robots check: %w", err)
		}
		if !allowed {
			return nil, ErrRobotsDisallowed
		}
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		metrics.RecordUpstreamRequest("error", time.Since(start))
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.RecordUpstreamRequest(strconv.Itoa(resp.StatusCode), time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	// Read one byte past the limit so truncation is detected, not silently accepted
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("read body: exceeds %d bytes", f.maxBytes)
	}

	return &FetchResult{
		Body:        body,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
	}, nil
}

// FetchWithRetry retries transient failures (5xx, 429, connection errors,
// timeouts) with exponential backoff. Other errors return immediately.
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	var lastErr error
	for attempt := 0; attempt < f.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := fetchBaseBackoff << (attempt - 1)
			logging.Ctx(ctx).Debug().Str("url", rawURL).Int("attempt", attempt+1).Dur("backoff", backoff).Err(lastErr).Msg("retrying upstream fetch")
			if err := fetchSleepFunc(ctx, backoff); err != nil {
				return nil, fmt.Errorf("fetch: %w", err)
			}
		}

		result, err := f.execute(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryableFetchError(err) {
			return nil, err
		}
	}

	return nil, lastErr
}

// FetchCached serves rawURL from the cache when possible and stores
// successful fetches. Without a cache it is FetchWithRetry.
func (f *Fetcher) FetchCached(ctx context.Context, rawURL string) (*FetchResult, error) {
	if f.cache == nil {
		return f.FetchWithRetry(ctx, rawURL)
	}

	if body, ok := f.cache.Get(rawURL); ok {
		metrics.RecordCacheLookup(true)
		return &FetchResult{Body: body, StatusCode: http.StatusOK, FinalURL: rawURL, FromCache: true}, nil
	}
	metrics.RecordCacheLookup(false)

	result, err := f.FetchWithRetry(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	f.cache.Set(rawURL, result.Body, f.cacheTTL)
	return result, nil
}

// Evict drops a cached payload, e.g. one that failed to decode
func (f *Fetcher) Evict(rawURL string) {
	if f.cache != nil {
		f.cache.Evict(rawURL)
	}
}

// BreakerState returns the circuit breaker state, or "disabled"
func (f *Fetcher) BreakerState() string {
	if f.breaker == nil {
		return "disabled"
	}
	return stateToString(f.breaker.State())
}

// CachedArchives returns the number of cached payloads
func (f *Fetcher) CachedArchives() int {
	if f.cache == nil {
		return 0
	}
	return f.cache.Len()
}

func (f *Fetcher) execute(ctx context.Context, rawURL string) (*FetchResult, error) {
	if f.breaker == nil {
		return f.Fetch(ctx, rawURL)
	}
	return f.breaker.Execute(func() (*FetchResult, error) {
		return f.Fetch(ctx, rawURL)
	})
}

func newBreaker(cfg model.BreakerConfig) *gobreaker.CircuitBreaker[*FetchResult] {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	return gobreaker.NewCircuitBreaker[*FetchResult](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// Permanent errors (404, robots, oversized body) say nothing about upstream health
		IsSuccessful: func(err error) bool {
			return err == nil || !isRetryableFetchError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", stateToString(from)).Str("to", stateToString(to)).Msg("circuit breaker state change")
			metrics.RecordBreakerTransition(name, stateToString(from), stateToString(to), stateToFloat(to))
		},
	})
}

// isRetryableFetchError reports whether err is transient
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 500 || statusErr.Code == http.StatusTooManyRequests
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "unexpected status: 5"),
		strings.Contains(msg, "unexpected status: 429"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(strings.ToLower(msg), "timeout"):
		return true
	}
	return false
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
