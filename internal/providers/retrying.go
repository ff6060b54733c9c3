package providers

import (
	"context"

	"github.com/modelmux/modelmux/pkg/retry"
	"github.com/modelmux/modelmux/pkg/types"
)

// The retry decorators wrap a concrete provider behind the identical
// capability interface. All of them funnel through execute, which runs
// retry.Manager's single algorithm: permanent errors and the
// model-not-available sentinel return immediately, transient errors are
// retried up to the policy limit, and the last transient error is
// returned so the registry can continue its fallback chain.
//
// Streaming methods retry only stream establishment; once the channel
// is handed out, in-band errors are never replayed.

func execute[R any](ctx context.Context, m *retry.Manager, provider, operation string, fn func(context.Context) (R, error)) (R, error) {
	var result R
	err := m.Execute(ctx, provider, operation, func(ctx context.Context) error {
		var callErr error
		result, callErr = fn(ctx)
		return callErr
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return result, nil
}

type retryChat struct {
	inner ChatProvider
	m     *retry.Manager
}

// RetryChat wraps a chat provider with the retry policy.
func RetryChat(p ChatProvider, m *retry.Manager) ChatProvider {
	return &retryChat{inner: p, m: m}
}

func (r *retryChat) Name() string { return r.inner.Name() }

func (r *retryChat) Chat(ctx context.Context, model string, messages []types.Message, opts *types.GenerationOptions) (*types.ChatResponse, error) {
	return execute(ctx, r.m, r.inner.Name(), "chat", func(ctx context.Context) (*types.ChatResponse, error) {
		return r.inner.Chat(ctx, model, messages, opts)
	})
}

func (r *retryChat) ChatStream(ctx context.Context, model string, messages []types.Message, opts *types.GenerationOptions) (<-chan types.StreamChunk, error) {
	return execute(ctx, r.m, r.inner.Name(), "chat_stream", func(ctx context.Context) (<-chan types.StreamChunk, error) {
		return r.inner.ChatStream(ctx, model, messages, opts)
	})
}

type retryGenerate struct {
	inner GenerateProvider
	m     *retry.Manager
}

// RetryGenerate wraps a text-generation provider with the retry policy.
func RetryGenerate(p GenerateProvider, m *retry.Manager) GenerateProvider {
	return &retryGenerate{inner: p, m: m}
}

func (r *retryGenerate) Name() string { return r.inner.Name() }

func (r *retryGenerate) Generate(ctx context.Context, model, prompt string, opts *types.GenerationOptions) (*types.TextResult, error) {
	return execute(ctx, r.m, r.inner.Name(), "generate", func(ctx context.Context) (*types.TextResult, error) {
		return r.inner.Generate(ctx, model, prompt, opts)
	})
}

func (r *retryGenerate) GenerateStream(ctx context.Context, model, prompt string, opts *types.GenerationOptions) (<-chan types.StreamChunk, error) {
	return execute(ctx, r.m, r.inner.Name(), "generate_stream", func(ctx context.Context) (<-chan types.StreamChunk, error) {
		return r.inner.GenerateStream(ctx, model, prompt, opts)
	})
}

type retryEmbedding struct {
	inner EmbeddingProvider
	m     *retry.Manager
}

// RetryEmbedding wraps an embedding provider with the retry policy.
func RetryEmbedding(p EmbeddingProvider, m *retry.Manager) EmbeddingProvider {
	return &retryEmbedding{inner: p, m: m}
}

func (r *retryEmbedding) Name() string { return r.inner.Name() }

func (r *retryEmbedding) Embed(ctx context.Context, model, text string) ([]float32, error) {
	return execute(ctx, r.m, r.inner.Name(), "embed", func(ctx context.Context) ([]float32, error) {
		return r.inner.Embed(ctx, model, text)
	})
}

func (r *retryEmbedding) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	return execute(ctx, r.m, r.inner.Name(), "embed_batch", func(ctx context.Context) ([][]float32, error) {
		return r.inner.EmbedBatch(ctx, model, texts)
	})
}

type retryNLI struct {
	inner NLIProvider
	m     *retry.Manager
}

// RetryNLI wraps an NLI provider with the retry policy.
func RetryNLI(p NLIProvider, m *retry.Manager) NLIProvider {
	return &retryNLI{inner: p, m: m}
}

func (r *retryNLI) Name() string { return r.inner.Name() }

func (r *retryNLI) NLI(ctx context.Context, model, premise, hypothesis string) (*types.NLIResult, error) {
	return execute(ctx, r.m, r.inner.Name(), "nli", func(ctx context.Context) (*types.NLIResult, error) {
		return r.inner.NLI(ctx, model, premise, hypothesis)
	})
}

type retryClassify struct {
	inner ClassifyProvider
	m     *retry.Manager
}

// RetryClassify wraps a classification provider with the retry policy.
func RetryClassify(p ClassifyProvider, m *retry.Manager) ClassifyProvider {
	return &retryClassify{inner: p, m: m}
}

func (r *retryClassify) Name() string { return r.inner.Name() }

func (r *retryClassify) Classify(ctx context.Context, model, text string, labels []string) (*types.ClassificationResult, error) {
	return execute(ctx, r.m, r.inner.Name(), "classify", func(ctx context.Context) (*types.ClassificationResult, error) {
		return r.inner.Classify(ctx, model, text, labels)
	})
}

type retryStance struct {
	inner StanceProvider
	m     *retry.Manager
}

// RetryStance wraps a stance-detection provider with the retry policy.
func RetryStance(p StanceProvider, m *retry.Manager) StanceProvider {
	return &retryStance{inner: p, m: m}
}

func (r *retryStance) Name() string { return r.inner.Name() }

func (r *retryStance) Stance(ctx context.Context, model, text, target string) (*types.StanceResult, error) {
	return execute(ctx, r.m, r.inner.Name(), "stance", func(ctx context.Context) (*types.StanceResult, error) {
		return r.inner.Stance(ctx, model, text, target)
	})
}
