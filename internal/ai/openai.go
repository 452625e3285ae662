package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/sashabaranov/go-openai"

	"github.com/event-content-agent/internal/config"
	"github.com/event-content-agent/pkg/logger"
	"github.com/event-content-agent/pkg/ratelimit"
	"github.com/event-content-agent/pkg/retry"
)

// OpenAIClient generates text with the OpenAI chat completions API
type OpenAIClient struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	rateLimiter *ratelimit.MultiLimiter
	policy      retrypolicy.RetryPolicy[string]
	log         *logger.Logger
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(cfg config.OpenAIConfig, rc retry.Config, limiter *ratelimit.MultiLimiter, log *logger.Logger) *OpenAIClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
		rateLimiter: limiter,
		policy:      retry.NewPolicy(rc, shouldRetryCompletion),
		log:         log.WithComponent("ai"),
	}
}

func (c *OpenAIClient) Model() string    { return c.model }
func (c *OpenAIClient) Provider() string { return "openai" }

// Complete sends one system + user exchange and returns the trimmed reply
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return retry.Do(ctx, c.policy, func() (string, error) {
		if err := c.rateLimiter.Wait(ctx, ratelimit.LimiterOpenAI); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}

		c.log.Debug().
			Str("model", c.model).
			Int("max_tokens", c.maxTokens).
			Msg("Sending request to OpenAI")

		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.model,
			MaxTokens:   c.maxTokens,
			Temperature: c.temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
		})
		if err != nil {
			c.log.Warn().Err(err).Msg("OpenAI API error")
			return "", describeOpenAIError(err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("openai returned no choices")
		}

		c.log.Debug().
			Int("prompt_tokens", resp.Usage.PromptTokens).
			Int("completion_tokens", resp.Usage.CompletionTokens).
			Msg("Received OpenAI response")

		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	})
}

// describeOpenAIError keeps the provider's error type and code in the text,
// which is what ClassifyError matches on
func describeOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("openai api error (status %d, type %s, code %v): %w",
			apiErr.HTTPStatusCode, apiErr.Type, apiErr.Code, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("openai request error (status %d): %w", reqErr.HTTPStatusCode, err)
	}
	return fmt.Errorf("openai request failed: %w", err)
}
