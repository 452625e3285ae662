package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/event-content-agent/internal/metrics"
	"github.com/event-content-agent/internal/models"
	"github.com/event-content-agent/pkg/logger"
)

// DebugInfo carries what an operator needs to diagnose a failed generation
type DebugInfo struct {
	OriginalError string `json:"original_error"`
	Model         string `json:"model_used"`
	Platform      string `json:"platform"`
	ContentAngle  string `json:"content_angle"`
	EventArtist   string `json:"event_artist"`
	LikelyCause   string `json:"likely_cause"`
}

// GeneratedContent is the result of one generation. Failures are reported
// in-band with IsError set and the message in both texts.
type GeneratedContent struct {
	VisualText string          `json:"visual_text"`
	Caption    string          `json:"caption"`
	Platform   models.Platform `json:"platform"`
	IsError    bool            `json:"error,omitempty"`
	ErrorKind  string          `json:"error_kind,omitempty"`
	Debug      *DebugInfo      `json:"debug_info,omitempty"`
}

// ContentGenerator turns an event and angle into platform-ready copy
type ContentGenerator struct {
	gen     Generator
	log     *logger.Logger
	metrics *metrics.Metrics
}

// ContentGeneratorOption configures a ContentGenerator
type ContentGeneratorOption func(*ContentGenerator)

// WithGeneratorMetrics records LLM latency into m
func WithGeneratorMetrics(m *metrics.Metrics) ContentGeneratorOption {
	return func(g *ContentGenerator) { g.metrics = m }
}

// NewContentGenerator wraps a text-generation backend
func NewContentGenerator(gen Generator, log *logger.Logger, opts ...ContentGeneratorOption) *ContentGenerator {
	g := &ContentGenerator{
		gen: gen,
		log: log.WithComponent("ai"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Model returns the backend model name
func (g *ContentGenerator) Model() string {
	return g.gen.Model()
}

// Provider returns the backend provider name
func (g *ContentGenerator) Provider() string {
	return g.gen.Provider()
}

// BuildPrompts returns the system and user prompts for one generation.
// A custom user template is rendered as written, without angle word swaps.
func (g *ContentGenerator) BuildPrompts(e *models.EnrichedEvent, angle models.Angle, platform models.Platform, overrides *PromptOverrides) (string, string, error) {
	platform = overrides.PlatformOr(platform)

	system := SystemPrompt(platform)
	if overrides != nil && overrides.SystemPrompt != "" {
		system = overrides.SystemPrompt
	}

	if overrides != nil && overrides.UserTemplate != "" {
		user, err := Render(overrides.UserTemplate, TemplateValues(e, platform))
		if err != nil {
			return "", "", err
		}
		return system, user, nil
	}

	user, err := BuildUserPrompt(e, angle, platform)
	if err != nil {
		return "", "", err
	}
	return system, user, nil
}

// CreateSocialPost generates visual text and a caption for e. It never fails:
// errors come back as an error-flagged GeneratedContent.
func (g *ContentGenerator) CreateSocialPost(ctx context.Context, e *models.EnrichedEvent, angle models.Angle, platform models.Platform, overrides *PromptOverrides) GeneratedContent {
	platform = overrides.PlatformOr(platform)
	log := g.log.WithContent(e.EventID, string(angle))

	system, user, err := g.BuildPrompts(e, angle, platform, overrides)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to render prompt")
		return g.failed(e, angle, platform, Classification{
			Kind:        KindTemplate,
			Message:     fmt.Sprintf("Prompt template error: %v", err),
			LikelyCause: "Custom prompt references an unknown placeholder",
		}, err)
	}

	start := time.Now()
	text, err := g.gen.Complete(ctx, system, user)
	g.metrics.ObserveLLMRequest(g.gen.Provider(), time.Since(start))
	if err != nil {
		c := ClassifyError(err, g.gen.Model())
		log.Warn().
			Err(err).
			Str("kind", c.Kind).
			Msg("Content generation failed")
		return g.failed(e, angle, platform, c, err)
	}

	parsed := ParseDualContent(text)
	log.Debug().
		Int("visual_len", len(parsed.VisualText)).
		Int("caption_len", len(parsed.Caption)).
		Msg("Generated content")

	return GeneratedContent{
		VisualText: parsed.VisualText,
		Caption:    parsed.Caption,
		Platform:   platform,
	}
}

func (g *ContentGenerator) failed(e *models.EnrichedEvent, angle models.Angle, platform models.Platform, c Classification, err error) GeneratedContent {
	msg := "❌ " + c.Message
	return GeneratedContent{
		VisualText: msg,
		Caption:    msg,
		Platform:   platform,
		IsError:    true,
		ErrorKind:  c.Kind,
		Debug: &DebugInfo{
			OriginalError: err.Error(),
			Model:         g.gen.Model(),
			Platform:      string(platform),
			ContentAngle:  string(angle),
			EventArtist:   e.DisplayName(),
			LikelyCause:   c.LikelyCause,
		},
	}
}

// Ping issues a minimal completion to confirm the provider is reachable
func (g *ContentGenerator) Ping(ctx context.Context) (string, error) {
	reply, err := g.gen.Complete(ctx, "You are a helpful assistant.", "Say 'API test successful' if you can read this.")
	if err != nil {
		c := ClassifyError(err, g.gen.Model())
		return "", fmt.Errorf("%s: %w", c.Message, err)
	}
	return reply, nil
}
