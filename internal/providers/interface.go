// Package providers defines the capability interfaces and the
// priority-ordered fallback registry that dispatches over them.
package providers

import (
	"context"

	"github.com/modelmux/modelmux/pkg/types"
)

// Provider is the base contract every capability provider satisfies.
// A provider that cannot serve a requested model identifier returns the
// errors.ErrModelNotAvailable sentinel from the capability call; the
// registry uses that signal to continue its fallback chain. All other
// errors propagate unchanged.
type Provider interface {
	Name() string
}

// ChatProvider serves multi-turn chat completion.
type ChatProvider interface {
	Provider
	Chat(ctx context.Context, model string, messages []types.Message, opts *types.GenerationOptions) (*types.ChatResponse, error)
	// ChatStream establishes a streaming completion. Errors after the
	// stream has begun emitting are delivered in-band on the channel.
	ChatStream(ctx context.Context, model string, messages []types.Message, opts *types.GenerationOptions) (<-chan types.StreamChunk, error)
}

// GenerateProvider serves single-prompt text generation.
type GenerateProvider interface {
	Provider
	Generate(ctx context.Context, model, prompt string, opts *types.GenerationOptions) (*types.TextResult, error)
	GenerateStream(ctx context.Context, model, prompt string, opts *types.GenerationOptions) (<-chan types.StreamChunk, error)
}

// EmbeddingProvider computes dense text embeddings.
type EmbeddingProvider interface {
	Provider
	Embed(ctx context.Context, model, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error)
}

// NLIProvider judges entailment between a premise and a hypothesis.
type NLIProvider interface {
	Provider
	NLI(ctx context.Context, model, premise, hypothesis string) (*types.NLIResult, error)
}

// ClassifyProvider performs zero-shot classification over caller-supplied labels.
type ClassifyProvider interface {
	Provider
	Classify(ctx context.Context, model, text string, labels []string) (*types.ClassificationResult, error)
}

// StanceProvider detects the stance of a text toward a target.
type StanceProvider interface {
	Provider
	Stance(ctx context.Context, model, text, target string) (*types.StanceResult, error)
}
