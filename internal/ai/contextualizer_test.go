package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/event-content-agent/internal/models"
	"github.com/event-content-agent/pkg/logger"
)

type fakeGenerator struct {
	reply  string
	err    error
	system string
	user   string
}

func (f *fakeGenerator) Complete(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	f.system, f.user = systemPrompt, userPrompt
	return f.reply, f.err
}

func (f *fakeGenerator) Model() string    { return "fake-model" }
func (f *fakeGenerator) Provider() string { return "fake" }

func TestCreateSocialPost(t *testing.T) {
	fake := &fakeGenerator{reply: "VISUAL TEXT:\nLONDON GOES OFF\nCAPTION:\nThe Band in London #livemusic"}
	g := NewContentGenerator(fake, logger.Nop())

	got := g.CreateSocialPost(context.Background(), sampleEvent(), models.AngleMajorSpike, models.PlatformTikTok, nil)

	assert.False(t, got.IsError)
	assert.Nil(t, got.Debug)
	assert.Equal(t, "LONDON GOES OFF", got.VisualText)
	assert.Equal(t, "The Band in London #livemusic", got.Caption)
	assert.Equal(t, models.PlatformTikTok, got.Platform)
	assert.Contains(t, fake.system, "For TikTok:")
	assert.Contains(t, fake.user, "6.2x above career average")
}

func TestCreateSocialPost_ProviderFailure(t *testing.T) {
	fake := &fakeGenerator{err: errors.New("openai api error (status 429, type requests, code rate_limit_exceeded)")}
	g := NewContentGenerator(fake, logger.Nop())

	got := g.CreateSocialPost(context.Background(), sampleEvent(), models.AngleGenreLeader, models.PlatformInstagram, nil)

	require.True(t, got.IsError)
	assert.Equal(t, KindRateLimit, got.ErrorKind)
	assert.Equal(t, "❌ Rate limit exceeded. Please wait a moment and try again.", got.VisualText)
	assert.Equal(t, got.VisualText, got.Caption)
	require.NotNil(t, got.Debug)
	assert.Equal(t, "fake-model", got.Debug.Model)
	assert.Equal(t, "genre_leader", got.Debug.ContentAngle)
	assert.Equal(t, "The Band", got.Debug.EventArtist)
	assert.Contains(t, got.Debug.OriginalError, "rate_limit_exceeded")
}

func TestCreateSocialPost_CustomTemplate(t *testing.T) {
	fake := &fakeGenerator{reply: "hook\ncaption text"}
	g := NewContentGenerator(fake, logger.Nop())
	overrides := &PromptOverrides{
		UserTemplate: "MASSIVE news: {artist} in {venue_city}",
		SystemPrompt: "Custom system",
		Platform:     "twitter",
	}

	got := g.CreateSocialPost(context.Background(), sampleEvent(), models.AngleSignificantSpike, models.PlatformTikTok, overrides)

	assert.False(t, got.IsError)
	assert.Equal(t, models.PlatformTwitter, got.Platform)
	assert.Equal(t, "Custom system", fake.system)
	// custom templates are used verbatim, without angle word swaps
	assert.Equal(t, "MASSIVE news: The Band in London", fake.user)
}

func TestCreateSocialPost_BadCustomTemplate(t *testing.T) {
	fake := &fakeGenerator{reply: "unused"}
	g := NewContentGenerator(fake, logger.Nop())

	got := g.CreateSocialPost(context.Background(), sampleEvent(), models.AngleMajorSpike, models.PlatformTikTok,
		&PromptOverrides{UserTemplate: "{ticket_price}"})

	require.True(t, got.IsError)
	assert.Equal(t, KindTemplate, got.ErrorKind)
	assert.Contains(t, got.VisualText, "ticket_price")
	assert.Empty(t, fake.user, "no request is sent for an unrenderable prompt")
}

func TestPing(t *testing.T) {
	g := NewContentGenerator(&fakeGenerator{reply: "API test successful"}, logger.Nop())
	reply, err := g.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "API test successful", reply)

	g = NewContentGenerator(&fakeGenerator{err: errors.New("401 Unauthorized")}, logger.Nop())
	_, err = g.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API key")
}
