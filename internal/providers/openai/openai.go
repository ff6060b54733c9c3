// Package openai implements the remote provider over OpenAI-compatible
// chat, completion and embedding endpoints.
package openai

import (
	"context"
	stderrors "errors"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/modelmux/modelmux/internal/providers"
	"github.com/modelmux/modelmux/pkg/errors"
	"github.com/modelmux/modelmux/pkg/retry"
	"github.com/modelmux/modelmux/pkg/types"
	"github.com/modelmux/modelmux/pkg/utils"
)

// Provider serves every capability from one OpenAI-compatible endpoint:
// chat, generate and embed natively, nli/classify/stance by prompting
// the chat endpoint with a strict JSON answer format.
type Provider struct {
	name   string
	client *openai.Client
	models map[string]bool // empty means accept any model id
	logger *utils.Logger
}

var (
	_ providers.ChatProvider      = (*Provider)(nil)
	_ providers.GenerateProvider  = (*Provider)(nil)
	_ providers.EmbeddingProvider = (*Provider)(nil)
	_ providers.NLIProvider       = (*Provider)(nil)
	_ providers.ClassifyProvider  = (*Provider)(nil)
	_ providers.StanceProvider    = (*Provider)(nil)
)

// New creates a provider from configuration.
func New(cfg types.OpenAIProviderConfig, logger *utils.Logger) *Provider {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	models := make(map[string]bool, len(cfg.Models))
	for _, m := range cfg.Models {
		models[m] = true
	}

	return &Provider{
		name:   cfg.Name,
		client: openai.NewClientWithConfig(clientConfig),
		models: models,
		logger: logger,
	}
}

// Name implements providers.Provider.
func (p *Provider) Name() string { return p.name }

// supports rejects models outside the configured list. An empty list
// accepts any identifier, which suits self-hosted compatible endpoints.
func (p *Provider) supports(model string) bool {
	return len(p.models) == 0 || p.models[model]
}

// Chat performs a one-shot chat completion.
func (p *Provider) Chat(ctx context.Context, model string, messages []types.Message, opts *types.GenerationOptions) (*types.ChatResponse, error) {
	if !p.supports(model) {
		return nil, errors.ModelNotAvailable(p.name, model)
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, p.chatRequest(model, messages, opts, false))
	if err != nil {
		return nil, p.wrapErr("chat", err)
	}
	if len(resp.Choices) == 0 {
		return nil, p.emptyResponse("chat")
	}

	choice := resp.Choices[0]
	return &types.ChatResponse{
		ID:           orNewID(resp.ID),
		Model:        model,
		Provider:     p.name,
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: types.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		LatencyMs: time.Since(start).Milliseconds(),
		Created:   time.Now(),
	}, nil
}

// ChatStream establishes a streaming chat completion. The returned
// channel carries deltas in arrival order and is closed after the final
// chunk; abnormal termination is delivered in-band on the last chunk.
func (p *Provider) ChatStream(ctx context.Context, model string, messages []types.Message, opts *types.GenerationOptions) (<-chan types.StreamChunk, error) {
	if !p.supports(model) {
		return nil, errors.ModelNotAvailable(p.name, model)
	}

	sdkStream, err := p.client.CreateChatCompletionStream(ctx, p.chatRequest(model, messages, opts, true))
	if err != nil {
		return nil, p.wrapErr("chat_stream", err)
	}

	out := make(chan types.StreamChunk)
	go func() {
		defer close(out)
		defer sdkStream.Close()

		for {
			chunk, err := sdkStream.Recv()
			if err != nil {
				terminal := types.StreamChunk{Done: true}
				if !stderrors.Is(err, io.EOF) {
					terminal = types.StreamChunk{Err: p.wrapErr("chat_stream", err)}
				}
				// An abandoned consumer cancels the context and stops
				// receiving; the terminal chunk must not block forever.
				select {
				case out <- terminal:
				case <-ctx.Done():
				}
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]
			select {
			case out <- types.StreamChunk{Content: choice.Delta.Content, FinishReason: string(choice.FinishReason)}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Generate performs single-prompt text generation through the chat
// endpoint, which every compatible backend still serves.
func (p *Provider) Generate(ctx context.Context, model, prompt string, opts *types.GenerationOptions) (*types.TextResult, error) {
	resp, err := p.Chat(ctx, model, []types.Message{{Role: "user", Content: prompt}}, opts)
	if err != nil {
		return nil, err
	}
	return &types.TextResult{
		Model:     model,
		Provider:  p.name,
		Text:      resp.Content,
		Usage:     resp.Usage,
		LatencyMs: resp.LatencyMs,
	}, nil
}

// GenerateStream establishes a streaming generation.
func (p *Provider) GenerateStream(ctx context.Context, model, prompt string, opts *types.GenerationOptions) (<-chan types.StreamChunk, error) {
	return p.ChatStream(ctx, model, []types.Message{{Role: "user", Content: prompt}}, opts)
}

// Embed computes one embedding.
func (p *Provider) Embed(ctx context.Context, model, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, model, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch uses the endpoint's native batch path.
func (p *Provider) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if !p.supports(model) {
		return nil, errors.ModelNotAvailable(p.name, model)
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(model),
		Input: texts,
	})
	if err != nil {
		return nil, p.wrapErr("embed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, p.emptyResponse("embed")
	}

	out := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(out) {
			return nil, p.emptyResponse("embed")
		}
		out[item.Index] = item.Embedding
	}
	return out, nil
}

// Models queries the endpoint's model list for the catalog's live layer.
func (p *Provider) Models(ctx context.Context) ([]types.ModelInfo, error) {
	list, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, p.wrapErr("list_models", err)
	}

	out := make([]types.ModelInfo, 0, len(list.Models))
	for _, m := range list.Models {
		if !p.supports(m.ID) {
			continue
		}
		out = append(out, types.ModelInfo{ID: m.ID, Provider: p.name})
	}
	return out, nil
}

func (p *Provider) chatRequest(model string, messages []types.Message, opts *types.GenerationOptions, streaming bool) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:  model,
		Stream: streaming,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	if opts == nil {
		return req
	}
	if opts.Temperature != nil {
		req.Temperature = requestTemperature(*opts.Temperature)
	}
	if opts.TopP != nil {
		req.TopP = float32(*opts.TopP)
	}
	if opts.MaxTokens != nil {
		req.MaxTokens = *opts.MaxTokens
	}
	if len(opts.Stop) > 0 {
		req.Stop = opts.Stop
	}
	if opts.PresencePenalty != nil {
		req.PresencePenalty = float32(*opts.PresencePenalty)
	}
	if opts.FrequencyPenalty != nil {
		req.FrequencyPenalty = float32(*opts.FrequencyPenalty)
	}
	// PromptCache rides along implicitly: OpenAI-compatible endpoints
	// cache prompts server-side without a request flag.
	return req
}

// requestTemperature converts a caller temperature for the wire. The
// SDK request field carries omitempty, so an explicit 0 would vanish
// from the payload and the backend default would apply instead; the
// smallest positive float stands in for it.
func requestTemperature(t float64) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

// wrapErr maps SDK failures onto the error taxonomy. Structured API
// errors classify by status code; everything else goes through the
// lexical heuristics.
func (p *Provider) wrapErr(operation string, err error) error {
	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) {
		category := retry.ClassifyStatus(apiErr.HTTPStatusCode)
		switch apiErr.Code {
		case "context_length_exceeded":
			category = errors.CategoryContextLength
		case "content_filter":
			category = errors.CategoryContentFiltered
		case "model_not_found":
			category = errors.CategoryModelNotFound
		}
		return &errors.ProviderError{
			Provider:   p.name,
			Operation:  operation,
			Category:   category,
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Err:        err,
		}
	}

	var reqErr *openai.RequestError
	if stderrors.As(err, &reqErr) {
		return &errors.ProviderError{
			Provider:   p.name,
			Operation:  operation,
			Category:   retry.ClassifyStatus(reqErr.HTTPStatusCode),
			StatusCode: reqErr.HTTPStatusCode,
			Message:    reqErr.Error(),
			Err:        err,
		}
	}

	return retry.Classify(err, p.name, operation)
}

func (p *Provider) emptyResponse(operation string) error {
	return &errors.ProviderError{
		Provider:  p.name,
		Operation: operation,
		Category:  errors.CategoryEmptyResponse,
		Message:   "provider returned an empty response",
	}
}

func orNewID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
