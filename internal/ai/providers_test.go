package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/event-content-agent/internal/config"
	"github.com/event-content-agent/pkg/logger"
	"github.com/event-content-agent/pkg/ratelimit"
	"github.com/event-content-agent/pkg/retry"
)

func fastRetry() retry.Config {
	return retry.Config{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func unlimited() *ratelimit.MultiLimiter {
	return ratelimit.NewLimiter(ratelimit.Limits{})
}

func openAIServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, call int32)) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		handler(w, r, atomic.AddInt32(&calls, 1))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestOpenAI(url string) *OpenAIClient {
	return NewOpenAIClient(config.OpenAIConfig{
		APIKey:      "test-key",
		Model:       "gpt-4o",
		MaxTokens:   600,
		Temperature: 0.7,
		BaseURL:     url + "/v1",
	}, fastRetry(), unlimited(), logger.Nop())
}

const openAIOK = `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o",
"choices":[{"index":0,"message":{"role":"assistant","content":"  VISUAL TEXT:\nHUGE\nCAPTION:\nThe Band  "},"finish_reason":"stop"}],
"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`

func TestOpenAIClient_Complete(t *testing.T) {
	var got map[string]any
	srv, calls := openAIServer(t, func(w http.ResponseWriter, r *http.Request, _ int32) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(openAIOK))
	})

	c := newTestOpenAI(srv.URL)
	text, err := c.Complete(context.Background(), "system", "user")
	require.NoError(t, err)

	assert.Equal(t, "VISUAL TEXT:\nHUGE\nCAPTION:\nThe Band", text)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.Equal(t, "gpt-4o", got["model"])
	assert.EqualValues(t, 600, got["max_tokens"])
	assert.Len(t, got["messages"], 2)
	assert.Equal(t, "openai", c.Provider())
}

func TestOpenAIClient_RetriesRateLimit(t *testing.T) {
	srv, calls := openAIServer(t, func(w http.ResponseWriter, _ *http.Request, call int32) {
		if call < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`))
			return
		}
		_, _ = w.Write([]byte(openAIOK))
	})

	text, err := newTestOpenAI(srv.URL).Complete(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.Contains(t, text, "HUGE")
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestOpenAIClient_AuthErrorNotRetried(t *testing.T) {
	srv, calls := openAIServer(t, func(w http.ResponseWriter, _ *http.Request, _ int32) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`))
	})

	_, err := newTestOpenAI(srv.URL).Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.Equal(t, KindAuth, ClassifyError(err, "gpt-4o").Kind)
}

func TestOpenAIClient_ServerErrorRetried(t *testing.T) {
	srv, calls := openAIServer(t, func(w http.ResponseWriter, _ *http.Request, _ int32) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream","type":"server_error"}}`))
	})

	_, err := newTestOpenAI(srv.URL).Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls), "initial attempt plus two retries")
}

func anthropicServer(t *testing.T, handler func(w http.ResponseWriter, call int32)) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		handler(w, atomic.AddInt32(&calls, 1))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestAnthropic(url string) *AnthropicClient {
	return NewAnthropicClient(config.AnthropicConfig{
		APIKey:      "test-key",
		Model:       "claude-sonnet-4-20250514",
		MaxTokens:   600,
		Temperature: 0.7,
		BaseURL:     url,
	}, fastRetry(), unlimited(), logger.Nop())
}

const anthropicOK = `{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-20250514",
"content":[{"type":"text","text":"Visual text: BIG NIGHT\nCaption: London is ready"}],
"stop_reason":"end_turn","usage":{"input_tokens":12,"output_tokens":8}}`

func TestAnthropicClient_Complete(t *testing.T) {
	srv, calls := anthropicServer(t, func(w http.ResponseWriter, _ int32) {
		_, _ = w.Write([]byte(anthropicOK))
	})

	c := newTestAnthropic(srv.URL)
	text, err := c.Complete(context.Background(), "system", "user")
	require.NoError(t, err)

	assert.Equal(t, "Visual text: BIG NIGHT\nCaption: London is ready", text)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.Equal(t, "anthropic", c.Provider())
	assert.Equal(t, "claude-sonnet-4-20250514", c.Model())
}

func TestAnthropicClient_RetriesRateLimit(t *testing.T) {
	srv, calls := anthropicServer(t, func(w http.ResponseWriter, call int32) {
		if call == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
			return
		}
		_, _ = w.Write([]byte(anthropicOK))
	})

	text, err := newTestAnthropic(srv.URL).Complete(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.Contains(t, text, "BIG NIGHT")
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestNewGenerator(t *testing.T) {
	gen, err := NewGenerator(config.LLMConfig{Provider: "anthropic"}, unlimited(), logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, "anthropic", gen.Provider())

	gen, err = NewGenerator(config.LLMConfig{}, unlimited(), logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, "openai", gen.Provider())

	_, err = NewGenerator(config.LLMConfig{Provider: "mistral"}, unlimited(), logger.Nop())
	assert.Error(t, err)
}
