// Package registry holds the HTTP clients for the external eligibility, episode and
// person registries. All calls go through BaseClient for circuit breaking and retries.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"
)

const PersonIdentHeader = "Nav-Personident"

// RetryPolicy configures the retry behavior for the BaseClient.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		MinWait:    500 * time.Millisecond,
		MaxWait:    5 * time.Second,
	}
}

// StatusError is returned for a response outside 2xx after retries.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("registry %s returned %d", e.URL, e.Code)
}

// BaseClient wraps an *http.Client and a circuit breaker. Retries 429 and 5xx.
type BaseClient struct {
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	retryPolicy RetryPolicy
	sleepFn     func(ctx context.Context, d time.Duration) error
}

type BaseClientOption func(*BaseClient)

// WithSleepFunc overrides the sleep between retries. Tests use it to avoid delays.
func WithSleepFunc(fn func(ctx context.Context, d time.Duration) error) BaseClientOption {
	return func(c *BaseClient) { c.sleepFn = fn }
}

func NewBaseClient(httpClient *http.Client, breakerName string, retryPolicy RetryPolicy, opts ...BaseClientOption) *BaseClient {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	bc := &BaseClient{
		client:      httpClient,
		breaker:     cb,
		retryPolicy: retryPolicy,
		sleepFn:     sleepCtx,
	}
	for _, opt := range opts {
		opt(bc)
	}
	return bc
}

// GetJSON fetches url for the person and decodes a 2xx body into out. It returns
// the final status code; 204 and 404 leave out untouched and are not errors.
func (c *BaseClient) GetJSON(ctx context.Context, url, fnr string, out any) (int, error) {
	maxAttempts := 1 + c.retryPolicy.MaxRetries
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return 0, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set(PersonIdentHeader, fnr)
		req.Header.Set("Accept", "application/json")

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			r, doErr := c.client.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
				return r, &StatusError{URL: url, Code: r.StatusCode}
			}
			return r, nil
		})
		if err == nil {
			return c.decode(resp, url, out)
		}

		lastErr = err
		var retryAfter string
		if resp != nil {
			retryAfter = resp.Header.Get("Retry-After")
			resp.Body.Close()
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}
		if attempt < maxAttempts-1 {
			if serr := c.sleepFn(ctx, c.backoff(attempt, retryAfter)); serr != nil {
				return 0, serr
			}
		}
	}
	return 0, fmt.Errorf("registry request failed: %w", lastErr)
}

func (c *BaseClient) decode(resp *http.Response, url string, out any) (int, error) {
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return resp.StatusCode, &StatusError{URL: url, Code: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response from %s: %w", url, err)
	}
	return resp.StatusCode, nil
}

func (c *BaseClient) backoff(attempt int, retryAfter string) time.Duration {
	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return min(time.Duration(seconds)*time.Second, c.retryPolicy.MaxWait)
	}
	wait := time.Duration(float64(c.retryPolicy.MinWait) * math.Pow(2, float64(attempt)))
	return min(wait, c.retryPolicy.MaxWait)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
