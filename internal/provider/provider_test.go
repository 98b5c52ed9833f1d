package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/taehoonk/forecast-push-service/internal/models"
)

const testForecastBody = `{
  "timezone": "America/Toronto",
  "offset": -4,
  "currently": {"time": 1527854400},
  "daily": {"data": [
    {"uvIndexTime": 1527861600, "uvIndex": 7, "summary": "Clear all day.", "cloudCover": 0.1, "icon": "clear-day", "temperatureHigh": 78.2, "temperatureLow": 60.1},
    {"uvIndexTime": 1527948000, "uvIndex": 6, "summary": "Partly cloudy.", "cloudCover": 0.3, "icon": "partly-cloudy-day", "temperatureHigh": 75.0, "temperatureLow": 58.0},
    {"uvIndexTime": 1528034400, "uvIndex": 5, "summary": "Rain.", "cloudCover": 0.8, "icon": "rain", "temperatureHigh": 70.0, "temperatureLow": 55.0},
    {"uvIndexTime": 1528120800, "uvIndex": 4, "summary": "Cloudy.", "cloudCover": 0.9, "icon": "cloudy", "temperatureHigh": 68.0, "temperatureLow": 54.0},
    {"uvIndexTime": 1528207200, "uvIndex": 8, "summary": "Clear.", "cloudCover": 0.0, "icon": "clear-day", "temperatureHigh": 80.0, "temperatureLow": 62.0}
  ]}
}`

func newTestClient(t *testing.T, apiURL string) *Client {
	t.Helper()
	c, err := NewClient("test-api-key-12345", apiURL, 2*time.Second, nil, 3, 10*time.Millisecond, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name    string
		apiKey  string
		wantErr error
	}{
		{"empty key", "", ErrInvalidAPIKey},
		{"short key", "abc", ErrInvalidAPIKey},
		{"valid key", "test-api-key-12345", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.apiKey, "http://example.com", time.Second, nil, 3, time.Millisecond, time.Millisecond)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetForecastSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wantPath := "/test-api-key-12345/43.653000,-79.383000"
		if r.URL.Path != wantPath {
			t.Errorf("path = %q, want %q", r.URL.Path, wantPath)
		}
		if got := r.URL.Query().Get("exclude"); got != "minutely,hourly,alerts" {
			t.Errorf("exclude = %q", got)
		}
		fmt.Fprint(w, testForecastBody)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	fc, err := c.GetForecast(context.Background(), 43.653, -79.383)
	if err != nil {
		t.Fatalf("GetForecast: %v", err)
	}

	if fc.Timezone != "America/Toronto" {
		t.Errorf("timezone = %q", fc.Timezone)
	}
	if fc.Offset != -4 {
		t.Errorf("offset = %v", fc.Offset)
	}
	if fc.CurrentTime != 1527854400 {
		t.Errorf("currentTime = %d", fc.CurrentTime)
	}
	if len(fc.Daily) != 5 {
		t.Fatalf("daily len = %d", len(fc.Daily))
	}
	if fc.Daily[0].UVIndex != 7 || fc.Daily[0].Icon != "clear-day" {
		t.Errorf("day 0 = %+v", fc.Daily[0])
	}
}

func TestGetForecastRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, testForecastBody)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	fc, err := c.GetForecast(context.Background(), 43.653, -79.383)
	if err != nil {
		t.Fatalf("GetForecast: %v", err)
	}
	if !fc.Usable() {
		t.Error("expected usable forecast after retries")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestGetForecastExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.GetForecast(context.Background(), 1, 2)
	if !errors.Is(err, ErrUpstreamFailure) {
		t.Fatalf("got %v, want ErrUpstreamFailure", err)
	}
}

func TestGetForecastAuthFailureNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.GetForecast(context.Background(), 1, 2)
	if !errors.Is(err, ErrInvalidAPIKey) {
		t.Fatalf("got %v, want ErrInvalidAPIKey", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1 (no retry on auth failure)", got)
	}
}

func TestGetForecastHonoursRateLimiter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testForecastBody)
	}))
	defer server.Close()

	limiter := rate.NewLimiter(rate.Limit(100), 1)
	c, err := NewClient("test-api-key-12345", server.URL, 2*time.Second, limiter, 1, time.Millisecond, time.Millisecond)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := c.GetForecast(context.Background(), 1, 2); err != nil {
			t.Fatalf("GetForecast: %v", err)
		}
	}
	// burst 1 at 100/s: calls 2 and 3 each wait ~10ms
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("elapsed = %v, expected limiter to pace calls", elapsed)
	}
}

func TestForecastUsable(t *testing.T) {
	base := func() Forecast {
		daily := make([]Daily, models.ForecastDays)
		for i := range daily {
			daily[i] = Daily{UVIndex: 3, Icon: "clear-day"}
		}
		return Forecast{Timezone: "America/Toronto", Offset: -4, Daily: daily}
	}

	tests := []struct {
		name   string
		mutate func(*Forecast)
		want   bool
	}{
		{"complete", func(f *Forecast) {}, true},
		{"uv index zero is valid", func(f *Forecast) { f.Daily[0].UVIndex = 0 }, true},
		{"uv index sentinel", func(f *Forecast) { f.Daily[0].UVIndex = -1 }, false},
		{"missing icon", func(f *Forecast) { f.Daily[0].Icon = "" }, false},
		{"short daily block", func(f *Forecast) { f.Daily = f.Daily[:2] }, false},
		{"no daily block", func(f *Forecast) { f.Daily = nil }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := base()
			tt.mutate(&f)
			if got := f.Usable(); got != tt.want {
				t.Errorf("Usable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestForecastRefresh(t *testing.T) {
	daily := make([]Daily, models.ForecastDays)
	for i := range daily {
		daily[i] = Daily{
			UVIndexTime: int64(1000 + i),
			UVIndex:     float64(i),
			Summary:     "Clear.",
			CloudCover:  0.5,
			Icon:        "clear-day",
			TempHigh:    float64(70 + i),
			TempLow:     float64(50 + i),
		}
	}
	f := Forecast{Timezone: "America/St_Johns", Offset: -3.5, CurrentTime: 42, Daily: daily}

	r := f.Refresh()
	if r.TZ != "America/St_Johns" || r.TZOffset != -3.5 || r.CurrentTime != 42 {
		t.Errorf("refresh header = %+v", r)
	}
	if r.TZOffsetRound != -3 {
		t.Errorf("TZOffsetRound = %d, want -3 (round half away handled by math.Round)", r.TZOffsetRound)
	}
	if len(r.UVIMax) != models.ForecastDays || r.UVIMax[2] != 2 {
		t.Errorf("UVIMax = %v", r.UVIMax)
	}
	if r.Icon[0] != "clear-day" || r.TempMax[4] != 74 {
		t.Errorf("forecast slices = %+v", r)
	}
}
