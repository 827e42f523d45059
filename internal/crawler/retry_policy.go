package crawler

import (
	"context"
	"errors"
	"math"
	"time"
)

// DefaultRetryStatuses are the server errors retried by default.
var DefaultRetryStatuses = []int{500, 502, 503, 504}

// ExponentialRetryPolicy implements RetryPolicy with factor*2^(n-1) backoff.
type ExponentialRetryPolicy struct {
	maxRetries int
	factor     time.Duration
	maxDelay   time.Duration
	statuses   map[int]struct{}
}

// RetryConfig tunes an ExponentialRetryPolicy.
type RetryConfig struct {
	MaxRetries    int
	BackoffFactor time.Duration
	BackoffMax    time.Duration
	Statuses      []int
}

// NewExponentialRetryPolicy builds a policy, filling zero values with defaults.
func NewExponentialRetryPolicy(cfg RetryConfig) *ExponentialRetryPolicy {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 2 * time.Minute
	}
	if len(cfg.Statuses) == 0 {
		cfg.Statuses = DefaultRetryStatuses
	}
	statuses := make(map[int]struct{}, len(cfg.Statuses))
	for _, code := range cfg.Statuses {
		statuses[code] = struct{}{}
	}
	return &ExponentialRetryPolicy{
		maxRetries: cfg.MaxRetries,
		factor:     cfg.BackoffFactor,
		maxDelay:   cfg.BackoffMax,
		statuses:   statuses,
	}
}

// Retryable treats transport errors and configured statuses as transient.
func (p *ExponentialRetryPolicy) Retryable(statusCode int, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	_, ok := p.statuses[statusCode]
	return ok
}

// ShouldRetry decides whether another attempt is allowed.
func (p *ExponentialRetryPolicy) ShouldRetry(statusCode int, err error, attempt int) bool {
	if attempt > p.maxRetries {
		return false
	}
	return p.Retryable(statusCode, err)
}

// Backoff returns the wait duration before the next attempt.
func (p *ExponentialRetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.factor) * math.Pow(2, float64(attempt-1))
	if delay > float64(p.maxDelay) {
		return p.maxDelay
	}
	return time.Duration(delay)
}
