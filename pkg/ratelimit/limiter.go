package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MultiLimiter manages multiple rate limiters for different services
type MultiLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
}

// NewMultiLimiter creates a new multi-limiter
func NewMultiLimiter() *MultiLimiter {
	return &MultiLimiter{
		limiters: make(map[string]*rate.Limiter),
	}
}

// AddLimiter adds a new rate limiter for a service
// requestsPerSecond: the rate limit (e.g., 10 means 10 requests per second)
// burst: maximum burst size
func (m *MultiLimiter) AddLimiter(name string, requestsPerSecond float64, burst int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[name] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// Wait blocks until the limiter allows an event
func (m *MultiLimiter) Wait(ctx context.Context, name string) error {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("limiter %s not found", name)
	}

	return limiter.Wait(ctx)
}

// SetInterval replaces a limiter with one that admits a single event every interval.
// A zero interval removes the spacing entirely.
func (m *MultiLimiter) SetInterval(name string, interval time.Duration) {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[name] = rate.NewLimiter(limit, 1)
}

// Limiter names
const (
	LimiterOpenAI    = "openai"
	LimiterAnthropic = "anthropic"
	LimiterWebhook   = "webhook"
	LimiterBatch     = "batch"
)

// Limits holds per-service request budgets
type Limits struct {
	LLMRequestsPerMinute     int
	WebhookRequestsPerMinute int
	BatchDelay               time.Duration
}

// DefaultLimits mirrors the configuration defaults
func DefaultLimits() Limits {
	return Limits{
		LLMRequestsPerMinute:     60,
		WebhookRequestsPerMinute: 30,
		BatchDelay:               time.Second,
	}
}

// NewDefaultLimiter creates a limiter with default rate limits
func NewDefaultLimiter() *MultiLimiter {
	return NewLimiter(DefaultLimits())
}

// NewLimiter creates a limiter from explicit limits
func NewLimiter(l Limits) *MultiLimiter {
	m := NewMultiLimiter()

	// LLM providers: per-minute budget, burst 2
	llm := perMinute(l.LLMRequestsPerMinute)
	m.AddLimiter(LimiterOpenAI, llm, 2)
	m.AddLimiter(LimiterAnthropic, llm, 2)

	// Webhook: per-minute budget, burst 5
	m.AddLimiter(LimiterWebhook, perMinute(l.WebhookRequestsPerMinute), 5)

	// Batch: fixed spacing between generation calls
	m.SetInterval(LimiterBatch, l.BatchDelay)

	return m
}

func perMinute(n int) float64 {
	if n <= 0 {
		return float64(rate.Inf)
	}
	return float64(n) / 60
}
