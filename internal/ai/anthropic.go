package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/sashabaranov/go-openai"

	"github.com/event-content-agent/internal/config"
	"github.com/event-content-agent/pkg/logger"
	"github.com/event-content-agent/pkg/ratelimit"
	"github.com/event-content-agent/pkg/retry"
)

// AnthropicClient wraps the Anthropic SDK client
type AnthropicClient struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	temperature float64
	rateLimiter *ratelimit.MultiLimiter
	policy      retrypolicy.RetryPolicy[string]
	log         *logger.Logger
}

// NewAnthropicClient creates a new Anthropic client. SDK retries are disabled;
// retries go through the shared policy instead.
func NewAnthropicClient(cfg config.AnthropicConfig, rc retry.Config, limiter *ratelimit.MultiLimiter, log *logger.Logger) *AnthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicClient{
		client:      anthropic.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		rateLimiter: limiter,
		policy:      retry.NewPolicy(rc, shouldRetryCompletion),
		log:         log.WithComponent("ai"),
	}
}

func (c *AnthropicClient) Model() string    { return c.model }
func (c *AnthropicClient) Provider() string { return "anthropic" }

// Complete sends a message to Claude and returns the response
func (c *AnthropicClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return retry.Do(ctx, c.policy, func() (string, error) {
		if err := c.rateLimiter.Wait(ctx, ratelimit.LimiterAnthropic); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}

		c.log.Debug().
			Str("model", c.model).
			Int("max_tokens", c.maxTokens).
			Msg("Sending request to Claude")

		message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:       anthropic.Model(c.model),
			MaxTokens:   int64(c.maxTokens),
			Temperature: anthropic.Float(c.temperature),
			System: []anthropic.TextBlockParam{
				{
					Type: "text",
					Text: systemPrompt,
				},
			},
			Messages: []anthropic.MessageParam{
				{
					Role: anthropic.MessageParamRoleUser,
					Content: []anthropic.ContentBlockParamUnion{
						anthropic.NewTextBlock(userPrompt),
					},
				},
			},
		})
		if err != nil {
			c.log.Warn().Err(err).Msg("Claude API error")
			return "", fmt.Errorf("claude API error: %w", err)
		}

		var response strings.Builder
		for _, block := range message.Content {
			if text := block.AsText().Text; text != "" {
				response.WriteString(text)
			}
		}

		c.log.Debug().
			Int("input_tokens", int(message.Usage.InputTokens)).
			Int("output_tokens", int(message.Usage.OutputTokens)).
			Msg("Received Claude response")

		return strings.TrimSpace(response.String()), nil
	})
}

// transientStatus reports a 429 or 5xx from either provider
func transientStatus(err error) bool {
	status := 0
	var anthropicErr *anthropic.Error
	var openaiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &anthropicErr):
		status = anthropicErr.StatusCode
	case errors.As(err, &openaiErr):
		status = openaiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	return status == http.StatusTooManyRequests || status >= 500
}
