// Package provider is the HTTP client for the external forecast service: a
// Dark-Sky-shaped API returning a 5-day daily forecast for a coordinate
// pair. Calls are rate limited, retried with exponential backoff and
// jitter, and optionally guarded by a circuit breaker.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/taehoonk/forecast-push-service/internal/circuitbreaker"
	"github.com/taehoonk/forecast-push-service/internal/models"
	"github.com/taehoonk/forecast-push-service/internal/observability"
)

// ForecastClient fetches a 5-day daily forecast for a coordinate pair.
type ForecastClient interface {
	GetForecast(ctx context.Context, lat, lng float64) (Forecast, error)
}

var (
	ErrInvalidAPIKey   = errors.New("invalid API key")
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrRateLimited     = errors.New("rate limited")
)

// Daily is one day of the provider's daily block.
type Daily struct {
	UVIndexTime int64   `json:"uvIndexTime"`
	UVIndex     float64 `json:"uvIndex"`
	Summary     string  `json:"summary"`
	CloudCover  float64 `json:"cloudCover"`
	Icon        string  `json:"icon"`
	TempHigh    float64 `json:"temperatureHigh"`
	TempLow     float64 `json:"temperatureLow"`
}

// Forecast is the slice of a provider response the pipeline consumes.
type Forecast struct {
	Timezone    string
	Offset      float64
	CurrentTime int64
	Daily       []Daily
}

// Usable reports whether the response is eligible to overwrite a location
// record: five daily entries with a non-negative UV index and a present
// icon for today. Anything else is silently skipped upstream, not an error.
// UV index zero is a legitimate winter value and must pass.
func (f Forecast) Usable() bool {
	return len(f.Daily) >= models.ForecastDays &&
		f.Daily[0].UVIndex > -1 &&
		f.Daily[0].Icon != ""
}

// Refresh converts a usable forecast into the record update the sync job
// persists. The rounded offset becomes the partition key on the record.
func (f Forecast) Refresh() models.ForecastRefresh {
	r := models.ForecastRefresh{
		TZ:            f.Timezone,
		TZOffset:      f.Offset,
		TZOffsetRound: int(math.Round(f.Offset)),
		CurrentTime:   f.CurrentTime,
	}
	for _, d := range f.Daily[:models.ForecastDays] {
		r.UVITime = append(r.UVITime, d.UVIndexTime)
		r.UVIMax = append(r.UVIMax, d.UVIndex)
		r.ForecastSummary = append(r.ForecastSummary, d.Summary)
		r.Cloudiness = append(r.Cloudiness, d.CloudCover)
		r.Icon = append(r.Icon, d.Icon)
		r.TempMax = append(r.TempMax, d.TempHigh)
		r.TempMin = append(r.TempMin, d.TempLow)
	}
	return r
}

// Client talks to the forecast provider over HTTP.
type Client struct {
	apiKey         string
	apiURL         string
	timeout        time.Duration
	client         *http.Client
	limiter        *rate.Limiter
	breaker        *circuitbreaker.CircuitBreaker
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
}

// NewClient creates a Client. limiter bounds the call rate across all
// concurrent page workers and may be nil to disable limiting.
func NewClient(apiKey, apiURL string, timeout time.Duration, limiter *rate.Limiter, retryAttempts int, retryBaseDelay, retryMaxDelay time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}

	return &Client{
		apiKey:         apiKey,
		apiURL:         apiURL,
		timeout:        timeout,
		limiter:        limiter,
		retryAttempts:  retryAttempts,
		retryBaseDelay: retryBaseDelay,
		retryMaxDelay:  retryMaxDelay,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// SetCircuitBreaker installs a breaker around every provider call.
func (c *Client) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.breaker = cb
}

type providerResponse struct {
	Timezone  string  `json:"timezone"`
	Offset    float64 `json:"offset"`
	Currently struct {
		Time int64 `json:"time"`
	} `json:"currently"`
	Daily struct {
		Data []Daily `json:"data"`
	} `json:"daily"`
}

// GetForecast fetches the forecast for a coordinate pair, retrying
// transient failures with exponential backoff and jitter.
func (c *Client) GetForecast(ctx context.Context, lat, lng float64) (Forecast, error) {
	var lastErr error

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.ProviderRetriesTotal.Inc()
			delay := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return Forecast{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := c.callAPI(ctx, lat, lng)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !c.isRetryable(err) {
			return Forecast{}, err
		}
	}

	return Forecast{}, fmt.Errorf("exhausted retries: %w", lastErr)
}

func (c *Client) callAPI(ctx context.Context, lat, lng float64) (Forecast, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Forecast{}, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	var result Forecast
	call := func() error {
		var err error
		result, err = c.doRequest(ctx, lat, lng)
		return err
	}

	if c.breaker != nil {
		if err := c.breaker.Call(ctx, call); err != nil {
			return Forecast{}, err
		}
		return result, nil
	}
	if err := call(); err != nil {
		return Forecast{}, err
	}
	return result, nil
}

func (c *Client) doRequest(ctx context.Context, lat, lng float64) (Forecast, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, lat, lng)
	if err != nil {
		observability.ProviderCallsTotal.WithLabelValues("error").Inc()
		return Forecast{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.ProviderCallsTotal.WithLabelValues("error").Inc()
		observability.ProviderDuration.WithLabelValues("error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return Forecast{}, fmt.Errorf("request timeout: %w", err)
		}
		return Forecast{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.ProviderCallsTotal.WithLabelValues(status).Inc()
	observability.ProviderDuration.WithLabelValues(status).Observe(duration)

	if err := c.handleErrorResponse(resp); err != nil {
		return Forecast{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Forecast{}, fmt.Errorf("read response body: %w", err)
	}

	var apiResp providerResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return Forecast{}, fmt.Errorf("parse response: %w", err)
	}

	return Forecast{
		Timezone:    apiResp.Timezone,
		Offset:      apiResp.Offset,
		CurrentTime: apiResp.Currently.Time,
		Daily:       apiResp.Daily.Data,
	}, nil
}

func (c *Client) isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrRateLimited) {
		return true
	}
	if errors.Is(err, ErrUpstreamFailure) {
		return true
	}

	errStr := err.Error()
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "context deadline exceeded") || strings.Contains(errStr, "context canceled") {
		return true
	}

	return false
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func (c *Client) buildRequest(ctx context.Context, lat, lng float64) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	baseURL.Path, err = url.JoinPath(baseURL.Path, c.apiKey, fmt.Sprintf("%f,%f", lat, lng))
	if err != nil {
		return nil, fmt.Errorf("build request path: %w", err)
	}

	params := url.Values{}
	params.Set("exclude", "minutely,hourly,alerts")
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", ErrInvalidAPIKey, resp.StatusCode)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	return nil
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
