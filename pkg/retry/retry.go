package retry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// Config configures a retry policy
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultConfig returns the settings used for outbound API calls
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   20 * time.Second,
	}
}

func normalize(cfg Config) Config {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	return cfg
}

// NewPolicy builds an exponential-backoff policy that retries while shouldRetry
// returns true. Once retries are exhausted the last result and error are returned.
func NewPolicy[T any](cfg Config, shouldRetry func(T, error) bool) retrypolicy.RetryPolicy[T] {
	cfg = normalize(cfg)
	builder := retrypolicy.NewBuilder[T]().
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxRetries).
		WithJitterFactor(0.1).
		ReturnLastFailure()

	if shouldRetry != nil {
		builder = builder.HandleIf(func(result T, err error) bool {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return false
			}
			return shouldRetry(result, err)
		})
	}
	return builder.Build()
}

// Do runs fn under policy, honouring ctx
func Do[T any](ctx context.Context, policy retrypolicy.RetryPolicy[T], fn func() (T, error)) (T, error) {
	return failsafe.With[T](policy).WithContext(ctx).Get(fn)
}

// ShouldRetryHTTP retries transport errors, 5xx and 429
func ShouldRetryHTTP(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return true
	}
	switch resp.StatusCode {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}
