// Package binance is a typed client for the Binance USD-M futures REST API.
// Every call flows through a per-host rate limiter and a circuit breaker,
// and the client tracks request statistics for the health endpoint.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/pumpwatch/pumpwatch/internal/net/ratelimit"
)

const (
	endpointExchangeInfo = "/fapi/v1/exchangeInfo"
	endpointTicker24h    = "/fapi/v1/ticker/24hr"
	endpointKlines       = "/fapi/v1/klines"
)

// Config controls client construction. Zero values fall back to the
// exchange's public base URL and conservative rate limits.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	RPS     float64
	Burst   int

	// OnRequest, when set, observes every completed request. Used to feed
	// the metrics registry without importing it here.
	OnRequest func(endpoint string, success bool, elapsed time.Duration)
}

type Client struct {
	cfg     Config
	host    string
	http    *http.Client
	limiter *ratelimit.Limiter
	breaker *gobreaker.CircuitBreaker

	mu                  sync.RWMutex
	totalRequests       int64
	successfulRequests  int64
	consecutiveFailures int
	avgResponseTime     time.Duration
	lastRequest         time.Time
}

// APIError is returned for non-200 responses so callers can inspect the
// status the exchange sent back.
type APIError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance %s returned status %d: %s", e.Endpoint, e.Status, e.Body)
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://fapi.binance.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	host := cfg.BaseURL
	if u, err := url.Parse(cfg.BaseURL); err == nil && u.Host != "" {
		host = u.Host
	}

	settings := gobreaker.Settings{Name: "binance"}
	settings.Interval = 60 * time.Second
	settings.Timeout = 60 * time.Second
	settings.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
	}

	return &Client{
		cfg:     cfg,
		host:    host,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: ratelimit.NewLimiter(cfg.RPS, cfg.Burst),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// ExchangeInfo fetches instrument metadata for all listed pairs.
func (c *Client) ExchangeInfo(ctx context.Context) (*ExchangeInfo, error) {
	var info ExchangeInfo
	if err := c.get(ctx, endpointExchangeInfo, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Ticker24h fetches the bulk 24-hour ticker snapshot covering every pair.
func (c *Client) Ticker24h(ctx context.Context) ([]Ticker, error) {
	var tickers []Ticker
	if err := c.get(ctx, endpointTicker24h, nil, &tickers); err != nil {
		return nil, err
	}
	return tickers, nil
}

// Klines fetches up to limit candles for one symbol at the given interval.
func (c *Client) Klines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))

	var raw [][]any
	if err := c.get(ctx, endpointKlines, q, &raw); err != nil {
		return nil, err
	}
	return parseKlines(raw), nil
}

// parseKlines converts the positional candle arrays into typed Klines.
// Rows with an unparsable or non-finite close are dropped rather than
// failing the batch.
func parseKlines(raw [][]any) []Kline {
	klines := make([]Kline, 0, len(raw))
	for _, row := range raw {
		if len(row) < 6 {
			continue
		}
		closePrice, ok := asFloat(row[4])
		if !ok {
			continue
		}
		k := Kline{Close: closePrice}
		if ms, ok := asFloat(row[0]); ok {
			k.OpenTime = time.UnixMilli(int64(ms))
		}
		k.Open, _ = asFloat(row[1])
		k.High, _ = asFloat(row[2])
		k.Low, _ = asFloat(row[3])
		k.Volume, _ = asFloat(row[5])
		klines = append(klines, k)
	}
	return klines
}

// asFloat accepts only finite values; ParseFloat parses "NaN" and "Inf"
// spellings, and a NaN close would corrupt every indicator downstream.
func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	case float64:
		return x, !math.IsNaN(x) && !math.IsInf(x, 0)
	}
	return 0, false
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx, c.host); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	start := time.Now()
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.do(ctx, endpoint, query, out)
	})
	c.record(endpoint, err == nil, time.Since(start))
	return err
}

func (c *Client) do(ctx context.Context, endpoint string, query url.Values, out any) error {
	u := c.cfg.BaseURL + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", endpoint, err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read body: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{Endpoint: endpoint, Status: resp.StatusCode, Body: truncate(body, 200)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode: %w", endpoint, err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

func (c *Client) record(endpoint string, success bool, elapsed time.Duration) {
	c.mu.Lock()
	c.totalRequests++
	c.lastRequest = time.Now()
	if success {
		c.successfulRequests++
		c.consecutiveFailures = 0
	} else {
		c.consecutiveFailures++
	}
	if c.totalRequests == 1 {
		c.avgResponseTime = elapsed
	} else {
		// Exponentially weighted so recent latency dominates.
		const weight = 0.1
		c.avgResponseTime = time.Duration(float64(c.avgResponseTime)*(1-weight) + float64(elapsed)*weight)
	}
	c.mu.Unlock()

	if c.cfg.OnRequest != nil {
		c.cfg.OnRequest(endpoint, success, elapsed)
	}
}

// Health reports client-side request statistics.
type Health struct {
	Healthy             bool      `json:"healthy"`
	TotalRequests       int64     `json:"total_requests"`
	SuccessRate         float64   `json:"success_rate"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	AvgResponseTimeMs   float64   `json:"avg_response_time_ms"`
	BreakerState        string    `json:"breaker_state"`
	RateLimitTokens     float64   `json:"rate_limit_tokens"`
	LastRequest         time.Time `json:"last_request"`
}

func (c *Client) Health() Health {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := 1.0
	if c.totalRequests > 0 {
		successRate = float64(c.successfulRequests) / float64(c.totalRequests)
	}
	healthy := c.consecutiveFailures < 5 &&
		successRate >= 0.8 &&
		c.breaker.State() != gobreaker.StateOpen

	return Health{
		Healthy:             healthy,
		TotalRequests:       c.totalRequests,
		SuccessRate:         successRate,
		ConsecutiveFailures: c.consecutiveFailures,
		AvgResponseTimeMs:   float64(c.avgResponseTime.Milliseconds()),
		BreakerState:        c.breaker.State().String(),
		RateLimitTokens:     c.limiter.Tokens(c.host),
		LastRequest:         c.lastRequest,
	}
}
