package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProviderGenerate(t *testing.T) {
	var got openAIChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"model":"gpt-4o-2024","choices":[{"message":{"role":"assistant","content":"fixed"}}],"usage":{"prompt_tokens":12,"completion_tokens":3}}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", "", srv.URL, time.Second)
	resp, err := p.Generate(context.Background(), Request{SystemPrompt: "sys", UserPrompt: "user"})
	require.NoError(t, err)

	assert.Equal(t, "fixed", resp.Content)
	assert.Equal(t, "gpt-4o-2024", resp.Model)
	assert.Equal(t, Usage{InputTokens: 12, OutputTokens: 3}, resp.Usage)
	assert.Equal(t, DefaultOpenAIModel, got.Model)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Content)
}

func TestOpenAIEndpointNormalization(t *testing.T) {
	assert.Equal(t, defaultOpenAIEndpoint, NewOpenAIProvider("k", "", "", 0).endpoint)
	assert.Equal(t, "http://h/v1/chat/completions", NewOpenAIProvider("k", "", "http://h/v1/", 0).endpoint)
	assert.Equal(t, "http://h/v1/chat/completions", NewOpenAIProvider("k", "", "http://h/v1/chat/completions", 0).endpoint)
}

func TestAnthropicProviderGenerate(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"a"},{"type":"tool_use"},{"type":"text","text":"b"}],"usage":{"input_tokens":5,"output_tokens":7}}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider("key", "", srv.URL, time.Second)
	resp, err := p.Generate(context.Background(), Request{SystemPrompt: "sys", UserPrompt: "user", MaxTokens: 100})
	require.NoError(t, err)

	assert.Equal(t, "ab", resp.Content)
	assert.Equal(t, DefaultAnthropicModel, resp.Model)
	assert.Equal(t, 12, resp.Usage.Total())
	assert.Equal(t, "sys", got.System)
	assert.Equal(t, 100, got.MaxTokens)
}

func TestProviderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer srv.Close()

	_, err := NewAnthropicProvider("key", "", srv.URL, time.Second).Generate(context.Background(), Request{})
	var llmErr *Error
	require.True(t, errors.As(err, &llmErr))
	assert.Equal(t, ErrAPI, llmErr.Type)
	assert.Equal(t, 429, llmErr.StatusCode)
	assert.Equal(t, 7*time.Second, llmErr.RetryAfter)
	assert.True(t, llmErr.Retryable())

	_, err = NewOpenAIProvider("", "", "", 0).Generate(context.Background(), Request{})
	require.True(t, errors.As(err, &llmErr))
	assert.Equal(t, ErrConfiguration, llmErr.Type)
}

func TestProviderTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewOpenAIProvider("k", "", srv.URL, 50*time.Millisecond).Generate(context.Background(), Request{})
	var llmErr *Error
	require.True(t, errors.As(err, &llmErr))
	assert.Equal(t, ErrTimeout, llmErr.Type)
}

type scriptedProvider struct {
	errs  []error
	calls int
}

func (s *scriptedProvider) Generate(context.Context, Request) (*Response, error) {
	s.calls++
	if s.calls <= len(s.errs) {
		return nil, s.errs[s.calls-1]
	}
	return &Response{Content: "ok"}, nil
}
func (s *scriptedProvider) IsConfigured() bool { return true }
func (s *scriptedProvider) Name() string       { return "scripted" }
func (s *scriptedProvider) Model() string      { return "m" }

func TestRetryPolicy(t *testing.T) {
	var slept []time.Duration
	policy := RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   5 * time.Second,
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}

	t.Run("retries 5xx and 429 with backoff and hint", func(t *testing.T) {
		slept = nil
		inner := &scriptedProvider{errs: []error{
			&Error{Type: ErrAPI, StatusCode: 503},
			&Error{Type: ErrAPI, StatusCode: 429, RetryAfter: 3 * time.Second},
			&Error{Type: ErrAPI, StatusCode: 500},
		}}
		resp, err := WithRetry(inner, policy).Generate(context.Background(), Request{})
		require.NoError(t, err)
		assert.Equal(t, "ok", resp.Content)
		assert.Equal(t, 4, inner.calls)
		assert.Equal(t, []time.Duration{time.Second, 3 * time.Second, 4 * time.Second}, slept)
	})

	t.Run("does not retry 4xx", func(t *testing.T) {
		inner := &scriptedProvider{errs: []error{&Error{Type: ErrAPI, StatusCode: 400}}}
		_, err := WithRetry(inner, policy).Generate(context.Background(), Request{})
		require.Error(t, err)
		assert.Equal(t, 1, inner.calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		errs := make([]error, 10)
		for i := range errs {
			errs[i] = &Error{Type: ErrAPI, StatusCode: 502}
		}
		inner := &scriptedProvider{errs: errs}
		_, err := WithRetry(inner, policy).Generate(context.Background(), Request{})
		require.Error(t, err)
		assert.Equal(t, 4, inner.calls)
	})

	t.Run("caps delay", func(t *testing.T) {
		assert.Equal(t, 5*time.Second, policy.Delay(6, 0))
		assert.Equal(t, 5*time.Second, policy.Delay(0, time.Minute))
	})
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	h := http.Header{}
	assert.Zero(t, parseRetryAfter(h, now))
	h.Set("Retry-After", "2")
	assert.Equal(t, 2*time.Second, parseRetryAfter(h, now))
	h.Set("Retry-After", now.Add(10*time.Second).Format(http.TimeFormat))
	assert.Equal(t, 10*time.Second, parseRetryAfter(h, now))
	h.Set("Retry-After", "soon")
	assert.Zero(t, parseRetryAfter(h, now))
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(context.Background(), Options{Provider: "Claude", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())
	assert.True(t, p.IsConfigured())

	p, err = NewProvider(context.Background(), Options{Provider: "gemini"})
	require.NoError(t, err)
	assert.False(t, p.IsConfigured())
	_, err = p.Generate(context.Background(), Request{})
	var llmErr *Error
	require.True(t, errors.As(err, &llmErr))
	assert.Equal(t, ErrConfiguration, llmErr.Type)

	_, err = NewProvider(context.Background(), Options{Provider: "llama"})
	assert.Error(t, err)
}
