// Package weather implements the forecast client for the irricast engine.
//
// This file contains the upstream HTTP layer. All outbound calls to the
// forecast source are routed through Upstream, which enforces consistent
// resilience patterns: circuit breaking, bounded retries with jittered
// backoff on 429/5xx, and error mapping to types.AppError. The response
// shape follows the Open-Meteo daily forecast API.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"irricast/internal/types"
)

// dailyVariables is the fixed set of daily aggregates requested upstream.
const dailyVariables = "temperature_2m_mean,temperature_2m_min,temperature_2m_max," +
	"precipitation_sum,precipitation_probability_mean,relative_humidity_2m_mean," +
	"wind_speed_10m_max"

// RetryPolicy configures the retry behavior for the Upstream client.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy returns sensible defaults for the forecast source.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		MinWait:    250 * time.Millisecond,
		MaxWait:    5 * time.Second,
	}
}

// Upstream performs the outbound forecast request. A circuit breaker guards
// the forecast source; once it opens, calls fail fast until the cool-down
// elapses, letting the cache layer serve stale data instead of hammering a
// down host.
type Upstream struct {
	baseURL     string
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	retryPolicy RetryPolicy
	sleepFn     func(time.Duration) // overridable for tests
}

// UpstreamOption is a functional option for configuring an Upstream.
type UpstreamOption func(*Upstream)

// WithSleepFunc overrides the sleep function used between retries.
// This is intended for testing to avoid real delays.
func WithSleepFunc(fn func(time.Duration)) UpstreamOption {
	return func(u *Upstream) {
		u.sleepFn = fn
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) UpstreamOption {
	return func(u *Upstream) {
		u.retryPolicy = p
	}
}

// NewUpstream creates an Upstream for the given forecast source base URL.
func NewUpstream(baseURL string, httpClient *http.Client, opts ...UpstreamOption) *Upstream {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "forecast-source",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	u := &Upstream{
		baseURL:     baseURL,
		client:      httpClient,
		breaker:     cb,
		retryPolicy: DefaultRetryPolicy(),
		sleepFn:     time.Sleep,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// FetchDaily requests up to days daily forecast entries for the location.
// The returned slice is date-ordered with duplicate dates collapsed.
func (u *Upstream) FetchDaily(ctx context.Context, loc types.Location, days int) ([]types.ForecastDay, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(loc.Lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(loc.Lon, 'f', 4, 64))
	q.Set("daily", dailyVariables)
	q.Set("forecast_days", strconv.Itoa(days))
	q.Set("timezone", "UTC")

	reqURL := u.baseURL + "/v1/forecast?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "building forecast request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := u.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, types.NewAppError(
			types.ErrCodeUpstreamForecast,
			fmt.Sprintf("forecast source returned %d: %s", resp.StatusCode, string(body)),
			nil,
		)
	}

	var payload dailyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamForecast, "decoding forecast response", err)
	}

	return payload.toForecastDays()
}

// do executes the request through the circuit breaker, retrying on 429/5xx
// with exponential backoff and full jitter. Non-retryable statuses are
// returned as-is; the caller maps them.
func (u *Upstream) do(req *http.Request) (*http.Response, error) {
	var lastResp *http.Response
	var lastErr error

	maxAttempts := 1 + u.retryPolicy.MaxRetries
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := u.breaker.Execute(func() (*http.Response, error) {
			r, doErr := u.client.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			// 5xx and 429 count as failures for the breaker.
			if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
				return r, fmt.Errorf("forecast source returned %d", r.StatusCode)
			}
			return r, nil
		})

		if err == nil {
			return resp, nil
		}

		lastErr = err
		if resp != nil {
			if attempt < maxAttempts-1 {
				resp.Body.Close()
			} else {
				lastResp = resp
			}
		}

		// An open breaker will not recover within this request.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}
		// Context cancellation/timeout is terminal.
		if req.Context().Err() != nil {
			break
		}

		if attempt < maxAttempts-1 {
			u.sleepFn(u.backoff(attempt))
		}
	}

	if lastResp != nil {
		lastResp.Body.Close()
	}

	return nil, u.mapError(req.Context(), lastResp, lastErr)
}

// backoff computes the jittered exponential wait before the next attempt.
func (u *Upstream) backoff(attempt int) time.Duration {
	base := float64(u.retryPolicy.MinWait) * math.Pow(2, float64(attempt))
	maxWait := float64(u.retryPolicy.MaxWait)
	if base > maxWait {
		base = maxWait
	}
	minWait := float64(u.retryPolicy.MinWait)
	if base <= minWait {
		return u.retryPolicy.MinWait
	}
	// Full jitter in [MinWait, base].
	return time.Duration(minWait + rand.Float64()*(base-minWait))
}

// mapError translates transport-level failures into domain-level AppErrors.
func (u *Upstream) mapError(ctx context.Context, resp *http.Response, err error) *types.AppError {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return types.NewAppError(
			types.ErrCodeUpstreamRateLimited,
			"circuit breaker is open; forecast source unavailable",
			err,
		)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return types.NewAppError(types.ErrCodeUpstreamTimeout, "forecast request timed out", err)
	}

	if resp != nil {
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return types.NewAppError(types.ErrCodeUpstreamRateLimited, "forecast source rate limit exceeded", err)
		case resp.StatusCode >= 500:
			return types.NewAppError(
				types.ErrCodeUpstreamForecast,
				fmt.Sprintf("forecast source returned %d after retries", resp.StatusCode),
				err,
			)
		}
	}

	return types.NewAppError(types.ErrCodeUpstreamForecast, "forecast source unreachable", err)
}

// dailyResponse mirrors the Open-Meteo daily forecast payload. All series are
// parallel arrays indexed by date.
type dailyResponse struct {
	Daily struct {
		Time              []string  `json:"time"`
		TempMean          []float64 `json:"temperature_2m_mean"`
		TempMin           []float64 `json:"temperature_2m_min"`
		TempMax           []float64 `json:"temperature_2m_max"`
		PrecipitationSum  []float64 `json:"precipitation_sum"`
		PrecipitationProb []float64 `json:"precipitation_probability_mean"`
		Humidity          []float64 `json:"relative_humidity_2m_mean"`
		WindSpeedMax      []float64 `json:"wind_speed_10m_max"`
	} `json:"daily"`
}

// toForecastDays converts the parallel arrays into date-ordered ForecastDay
// values. Rows missing from any series are dropped rather than zero-filled,
// and duplicate dates are collapsed (first occurrence wins).
func (r dailyResponse) toForecastDays() ([]types.ForecastDay, error) {
	d := r.Daily
	n := len(d.Time)
	for _, series := range [][]float64{d.TempMean, d.TempMin, d.TempMax, d.PrecipitationSum, d.PrecipitationProb, d.Humidity, d.WindSpeedMax} {
		if len(series) < n {
			n = len(series)
		}
	}
	if n == 0 {
		return nil, types.NewAppError(types.ErrCodeUpstreamForecast, "forecast response contained no daily data", nil)
	}

	seen := make(map[string]struct{}, n)
	out := make([]types.ForecastDay, 0, n)
	for i := 0; i < n; i++ {
		date, err := time.ParseInLocation("2006-01-02", d.Time[i], time.UTC)
		if err != nil {
			return nil, types.NewAppError(
				types.ErrCodeUpstreamForecast,
				fmt.Sprintf("unparseable forecast date %q", d.Time[i]),
				err,
			)
		}
		if _, dup := seen[d.Time[i]]; dup {
			continue
		}
		seen[d.Time[i]] = struct{}{}

		out = append(out, types.ForecastDay{
			Date:              date,
			TempMeanC:         d.TempMean[i],
			TempMinC:          d.TempMin[i],
			TempMaxC:          d.TempMax[i],
			PrecipitationMM:   d.PrecipitationSum[i],
			PrecipitationProb: d.PrecipitationProb[i],
			Humidity:          d.Humidity[i],
			WindSpeedKmh:      d.WindSpeedMax[i],
		})
	}

	// The upstream contract is date-ascending; enforce it anyway so the
	// decision loop never sees out-of-order days.
	for i := 1; i < len(out); i++ {
		if !out[i].Date.After(out[i-1].Date) {
			return nil, types.NewAppError(types.ErrCodeUpstreamForecast, "forecast dates out of order", nil)
		}
	}

	return out, nil
}
