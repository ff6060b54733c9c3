package openai

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelmux/modelmux/pkg/errors"
	"github.com/modelmux/modelmux/pkg/types"
	"github.com/modelmux/modelmux/pkg/utils"
)

func testProvider(models ...string) *Provider {
	return New(types.OpenAIProviderConfig{
		Name:   "primary",
		APIKey: "sk-test",
		Models: models,
	}, utils.NewTestLogger())
}

func TestSupports(t *testing.T) {
	restricted := testProvider("gpt-4o", "gpt-4o-mini")
	assert.True(t, restricted.supports("gpt-4o"))
	assert.False(t, restricted.supports("claude-3"))

	// An empty list accepts anything, for self-hosted endpoints.
	open := testProvider()
	assert.True(t, open.supports("whatever"))
}

func TestChat_UnsupportedModelIsUnavailable(t *testing.T) {
	p := testProvider("gpt-4o")

	_, err := p.Chat(context.Background(), "other-model", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsModelNotAvailable(err))
}

func TestChatRequest_MapsOptions(t *testing.T) {
	p := testProvider()
	temp := 0.3
	topP := 0.9
	maxTokens := 256
	presence := 0.5

	req := p.chatRequest("gpt-4o", []types.Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
	}, &types.GenerationOptions{
		Temperature:     &temp,
		TopP:            &topP,
		MaxTokens:       &maxTokens,
		Stop:            []string{"END"},
		PresencePenalty: &presence,
	}, true)

	assert.Equal(t, "gpt-4o", req.Model)
	assert.True(t, req.Stream)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, float32(0.3), req.Temperature)
	assert.Equal(t, float32(0.9), req.TopP)
	assert.Equal(t, 256, req.MaxTokens)
	assert.Equal(t, []string{"END"}, req.Stop)
	assert.Equal(t, float32(0.5), req.PresencePenalty)
}

func TestNew_TimeoutConfigured(t *testing.T) {
	p := New(types.OpenAIProviderConfig{
		Name:    "primary",
		APIKey:  "sk-test",
		Timeout: 5 * time.Second,
	}, utils.NewTestLogger())
	assert.Equal(t, "primary", p.Name())
}

func TestChatRequest_ExplicitZeroTemperatureSerialized(t *testing.T) {
	p := testProvider()
	zero := 0.0

	req := p.chatRequest("gpt-4o", []types.Message{{Role: "user", Content: "hi"}},
		&types.GenerationOptions{Temperature: &zero}, false)

	// The SDK field carries omitempty; a literal 0 would drop the key
	// and let the backend default apply.
	payload, err := json.Marshal(req)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"temperature"`)
	assert.Greater(t, req.Temperature, float32(0))
	assert.Less(t, req.Temperature, float32(1e-6))

	// Non-zero values pass through unchanged.
	assert.Equal(t, float32(0.3), requestTemperature(0.3))
}

func TestChatRequest_NilOptions(t *testing.T) {
	p := testProvider()
	req := p.chatRequest("gpt-4o", nil, nil, false)
	assert.Zero(t, req.Temperature)
	assert.Zero(t, req.MaxTokens)
	assert.False(t, req.Stream)
}

func TestChatStream_AbandonedConsumerReleasesProducer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		_, _ = w.Write([]byte("data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"hi\"}}]}\n\n"))
		flusher.Flush()
		// Hold the stream open until the client gives up.
		<-r.Context().Done()
	}))
	defer srv.Close()

	p := New(types.OpenAIProviderConfig{
		Name:    "primary",
		APIKey:  "sk-test",
		BaseURL: srv.URL + "/v1",
	}, utils.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := p.ChatStream(ctx, "gpt-4o", []types.Message{{Role: "user", Content: "hi"}}, nil)
	require.NoError(t, err)

	chunk := <-ch
	assert.Equal(t, "hi", chunk.Content)

	// Abandon the stream: cancel with nobody receiving. The producer
	// must not block on a terminal send.
	cancel()
	time.Sleep(100 * time.Millisecond)

	_, open := <-ch
	assert.False(t, open, "expected channel closed after cancellation, got a chunk")
}

func TestWrapErr_APIErrorClassifiedByStatus(t *testing.T) {
	p := testProvider()

	err := p.wrapErr("chat", &openai.APIError{
		HTTPStatusCode: http.StatusTooManyRequests,
		Message:        "slow down",
	})

	var pe *errors.ProviderError
	require.True(t, stderrors.As(err, &pe))
	assert.Equal(t, errors.CategoryRateLimit, pe.Category)
	assert.Equal(t, http.StatusTooManyRequests, pe.StatusCode)
	assert.True(t, pe.Transient())
}

func TestWrapErr_APIErrorCodeRefinesCategory(t *testing.T) {
	p := testProvider()

	err := p.wrapErr("chat", &openai.APIError{
		HTTPStatusCode: http.StatusBadRequest,
		Code:           "context_length_exceeded",
		Message:        "too long",
	})

	var pe *errors.ProviderError
	require.True(t, stderrors.As(err, &pe))
	assert.Equal(t, errors.CategoryContextLength, pe.Category)
	assert.False(t, pe.Transient())
}

func TestWrapErr_OpaqueErrorsFallBackToLexical(t *testing.T) {
	p := testProvider()

	err := p.wrapErr("embed", stderrors.New("connection refused"))
	var pe *errors.ProviderError
	require.True(t, stderrors.As(err, &pe))
	assert.Equal(t, errors.CategoryNetwork, pe.Category)
	assert.Equal(t, "primary", pe.Provider)
}

func TestEmptyResponse(t *testing.T) {
	p := testProvider()
	err := p.emptyResponse("chat")

	var pe *errors.ProviderError
	require.True(t, stderrors.As(err, &pe))
	assert.Equal(t, errors.CategoryEmptyResponse, pe.Category)
	assert.True(t, pe.Transient())
}
