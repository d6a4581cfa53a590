package llm

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sigfix/internal/logx"
)

// RetryPolicy is bounded exponential backoff for 429 and 5xx responses.
// Zero fields take DefaultRetryPolicy values; MaxRetries < 0 disables retries.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// Sleep waits between attempts; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	switch {
	case p.MaxRetries < 0:
		p.MaxRetries = 0
	case p.MaxRetries == 0:
		p.MaxRetries = def.MaxRetries
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.Sleep == nil {
		p.Sleep = sleepContext
	}
	return p
}

// Delay is the wait before retry number attempt (0-based). A server hint
// replaces the computed backoff; both are capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int, hint time.Duration) time.Duration {
	d := hint
	if d <= 0 {
		d = time.Duration(float64(p.BaseDelay) * math.Pow(2, float64(attempt)))
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type retryingProvider struct {
	Provider
	policy RetryPolicy
}

// WithRetry wraps p so retryable errors are retried per policy.
func WithRetry(p Provider, policy RetryPolicy) Provider {
	return &retryingProvider{Provider: p, policy: policy.withDefaults()}
}

func (r *retryingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := r.Provider.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		var llmErr *Error
		if !errors.As(err, &llmErr) || !llmErr.Retryable() || attempt >= r.policy.MaxRetries {
			return nil, err
		}
		delay := r.policy.Delay(attempt, llmErr.RetryAfter)
		logx.Warningf("%s request failed (%d), retrying in %s (%d/%d)",
			r.Name(), llmErr.StatusCode, delay, attempt+1, r.policy.MaxRetries)
		if err := r.policy.Sleep(ctx, delay); err != nil {
			return nil, &Error{Type: ErrTimeout, Message: err.Error()}
		}
	}
}

// parseRetryAfter reads a Retry-After header in seconds or HTTP-date form.
func parseRetryAfter(h http.Header, now time.Time) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
		return time.Duration(secs * float64(time.Second))
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}
