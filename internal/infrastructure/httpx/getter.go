// Package httpx provides the shared upstream HTTP getter guarded by a circuit breaker.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/Urkchar/mtg-spoilers-bot/internal/metrics"
)

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	URL    string
	Status string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %s", e.URL, e.Status)
}

// Getter performs GET requests through a per-upstream breaker.
type Getter struct {
	client    *http.Client
	userAgent string
	name      string
	cb        *gobreaker.CircuitBreaker[*http.Response]
}

// NewGetter wires a breaker named after the upstream. A nil client gets a 30s default.
func NewGetter(name, userAgent string, client *http.Client) *Getter {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    10 * time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, _, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	return &Getter{client: client, userAgent: userAgent, name: name, cb: cb}
}

// Get returns the response body for a 2xx answer. The caller closes it.
func (g *Getter) Get(ctx context.Context, url string, accept string) (io.ReadCloser, error) {
	resp, err := g.cb.Execute(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("User-Agent", g.userAgent)
		if accept != "" {
			req.Header.Set("Accept", accept)
		}

		resp, err := g.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request %s: %w", url, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			_ = resp.Body.Close()
			return nil, &StatusError{URL: url, Status: resp.Status, Code: resp.StatusCode}
		}
		return resp, nil
	})
	if err != nil {
		result := "failure"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			result = "rejected"
		}
		metrics.UpstreamRequests.WithLabelValues(g.name, result).Inc()
		return nil, err
	}

	metrics.UpstreamRequests.WithLabelValues(g.name, "success").Inc()
	return resp.Body, nil
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
