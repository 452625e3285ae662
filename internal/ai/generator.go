package ai

import (
	"context"
	"fmt"

	"github.com/event-content-agent/internal/config"
	"github.com/event-content-agent/pkg/logger"
	"github.com/event-content-agent/pkg/ratelimit"
	"github.com/event-content-agent/pkg/retry"
)

// Generator is a text-generation backend
type Generator interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Model() string
	Provider() string
}

// NewGenerator builds the provider selected in cfg
func NewGenerator(cfg config.LLMConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger) (Generator, error) {
	rc := retry.DefaultConfig()
	rc.MaxRetries = cfg.MaxRetries

	switch cfg.Provider {
	case "", "openai":
		return NewOpenAIClient(cfg.OpenAI, rc, limiter, log), nil
	case "anthropic":
		return NewAnthropicClient(cfg.Anthropic, rc, limiter, log), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// shouldRetryCompletion retries failures whose text classifies as transient
func shouldRetryCompletion(_ string, err error) bool {
	if err == nil {
		return false
	}
	return retryableKind(ClassifyError(err, "").Kind) || transientStatus(err)
}
