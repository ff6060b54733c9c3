package providers

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/modelmux/modelmux/pkg/errors"
	"github.com/modelmux/modelmux/pkg/types"
	"github.com/modelmux/modelmux/pkg/utils"
)

// Observer receives dispatch outcomes for instrumentation. Outcome is
// one of "success", "unavailable", "transient", "permanent", "skipped".
type Observer interface {
	ObserveDispatch(capability types.Capability, provider, outcome string)
}

type entry[T Provider] struct {
	name     string
	provider T
	breaker  *CircuitBreaker
}

// Registry holds, per capability, an ordered list of provider entries.
// Registration order defines fallback priority: index 0 is tried first.
// The lists are built during construction and read-only afterwards, so
// dispatch takes no lock.
type Registry struct {
	chat     []entry[ChatProvider]
	generate []entry[GenerateProvider]
	embed    []entry[EmbeddingProvider]
	nli      []entry[NLIProvider]
	classify []entry[ClassifyProvider]
	stance   []entry[StanceProvider]

	breakerFor func(name string) *CircuitBreaker
	observer   Observer
	logger     *utils.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithObserver attaches a dispatch observer.
func WithObserver(o Observer) Option {
	return func(r *Registry) { r.observer = o }
}

// WithBreakers enables a per-entry circuit breaker with the given
// threshold and cooldown. Entries of the same provider name share one
// breaker across capabilities.
func WithBreakers(threshold int, cooldown time.Duration) Option {
	return func(r *Registry) {
		shared := make(map[string]*CircuitBreaker)
		r.breakerFor = func(name string) *CircuitBreaker {
			if cb, ok := shared[name]; ok {
				return cb
			}
			cb := NewCircuitBreaker(threshold, cooldown)
			shared[name] = cb
			return cb
		}
	}
}

// NewRegistry creates an empty registry. Register all providers before
// the first dispatch; the lists are not guarded by a lock.
func NewRegistry(logger *utils.Logger, opts ...Option) *Registry {
	r := &Registry{
		logger:     logger,
		breakerFor: func(string) *CircuitBreaker { return nil },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterChat appends a chat provider to the fallback chain.
func (r *Registry) RegisterChat(p ChatProvider) {
	r.chat = append(r.chat, entry[ChatProvider]{p.Name(), p, r.breakerFor(p.Name())})
	r.logRegistered(types.CapabilityChat, p.Name(), len(r.chat)-1)
}

// RegisterGenerate appends a text-generation provider to the fallback chain.
func (r *Registry) RegisterGenerate(p GenerateProvider) {
	r.generate = append(r.generate, entry[GenerateProvider]{p.Name(), p, r.breakerFor(p.Name())})
	r.logRegistered(types.CapabilityGenerate, p.Name(), len(r.generate)-1)
}

// RegisterEmbedding appends an embedding provider to the fallback chain.
func (r *Registry) RegisterEmbedding(p EmbeddingProvider) {
	r.embed = append(r.embed, entry[EmbeddingProvider]{p.Name(), p, r.breakerFor(p.Name())})
	r.logRegistered(types.CapabilityEmbed, p.Name(), len(r.embed)-1)
}

// RegisterNLI appends an NLI provider to the fallback chain.
func (r *Registry) RegisterNLI(p NLIProvider) {
	r.nli = append(r.nli, entry[NLIProvider]{p.Name(), p, r.breakerFor(p.Name())})
	r.logRegistered(types.CapabilityNLI, p.Name(), len(r.nli)-1)
}

// RegisterClassify appends a classification provider to the fallback chain.
func (r *Registry) RegisterClassify(p ClassifyProvider) {
	r.classify = append(r.classify, entry[ClassifyProvider]{p.Name(), p, r.breakerFor(p.Name())})
	r.logRegistered(types.CapabilityClassify, p.Name(), len(r.classify)-1)
}

// RegisterStance appends a stance-detection provider to the fallback chain.
func (r *Registry) RegisterStance(p StanceProvider) {
	r.stance = append(r.stance, entry[StanceProvider]{p.Name(), p, r.breakerFor(p.Name())})
	r.logRegistered(types.CapabilityStance, p.Name(), len(r.stance)-1)
}

func (r *Registry) logRegistered(c types.Capability, name string, priority int) {
	r.logger.WithFields(logrus.Fields{
		"capability": string(c),
		"provider":   name,
		"priority":   priority,
	}).Info("Provider registered")
}

// Chat dispatches a chat completion along the fallback chain.
func (r *Registry) Chat(ctx context.Context, model string, messages []types.Message, opts *types.GenerationOptions) (*types.ChatResponse, error) {
	return dispatch(ctx, r, types.CapabilityChat, model, r.chat,
		func(ctx context.Context, p ChatProvider) (*types.ChatResponse, error) {
			return p.Chat(ctx, model, messages, opts)
		})
}

// ChatStream dispatches stream establishment along the fallback chain.
// Once a provider's stream has begun, errors flow in-band and no further
// fallback happens.
func (r *Registry) ChatStream(ctx context.Context, model string, messages []types.Message, opts *types.GenerationOptions) (<-chan types.StreamChunk, error) {
	return dispatch(ctx, r, types.CapabilityChat, model, r.chat,
		func(ctx context.Context, p ChatProvider) (<-chan types.StreamChunk, error) {
			return p.ChatStream(ctx, model, messages, opts)
		})
}

// Generate dispatches a text generation along the fallback chain.
func (r *Registry) Generate(ctx context.Context, model, prompt string, opts *types.GenerationOptions) (*types.TextResult, error) {
	return dispatch(ctx, r, types.CapabilityGenerate, model, r.generate,
		func(ctx context.Context, p GenerateProvider) (*types.TextResult, error) {
			return p.Generate(ctx, model, prompt, opts)
		})
}

// GenerateStream dispatches generation stream establishment.
func (r *Registry) GenerateStream(ctx context.Context, model, prompt string, opts *types.GenerationOptions) (<-chan types.StreamChunk, error) {
	return dispatch(ctx, r, types.CapabilityGenerate, model, r.generate,
		func(ctx context.Context, p GenerateProvider) (<-chan types.StreamChunk, error) {
			return p.GenerateStream(ctx, model, prompt, opts)
		})
}

// Embed dispatches an embedding computation along the fallback chain.
func (r *Registry) Embed(ctx context.Context, model, text string) ([]float32, error) {
	return dispatch(ctx, r, types.CapabilityEmbed, model, r.embed,
		func(ctx context.Context, p EmbeddingProvider) ([]float32, error) {
			return p.Embed(ctx, model, text)
		})
}

// EmbedBatch dispatches a batch embedding computation.
func (r *Registry) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	return dispatch(ctx, r, types.CapabilityEmbed, model, r.embed,
		func(ctx context.Context, p EmbeddingProvider) ([][]float32, error) {
			return p.EmbedBatch(ctx, model, texts)
		})
}

// NLI dispatches an entailment judgement along the fallback chain.
func (r *Registry) NLI(ctx context.Context, model, premise, hypothesis string) (*types.NLIResult, error) {
	return dispatch(ctx, r, types.CapabilityNLI, model, r.nli,
		func(ctx context.Context, p NLIProvider) (*types.NLIResult, error) {
			return p.NLI(ctx, model, premise, hypothesis)
		})
}

// Classify dispatches a zero-shot classification.
func (r *Registry) Classify(ctx context.Context, model, text string, labels []string) (*types.ClassificationResult, error) {
	return dispatch(ctx, r, types.CapabilityClassify, model, r.classify,
		func(ctx context.Context, p ClassifyProvider) (*types.ClassificationResult, error) {
			return p.Classify(ctx, model, text, labels)
		})
}

// Stance dispatches a stance detection.
func (r *Registry) Stance(ctx context.Context, model, text, target string) (*types.StanceResult, error) {
	return dispatch(ctx, r, types.CapabilityStance, model, r.stance,
		func(ctx context.Context, p StanceProvider) (*types.StanceResult, error) {
			return p.Stance(ctx, model, text, target)
		})
}

// dispatch walks the ordered entries: success returns immediately, the
// model-not-available sentinel and transient errors continue the chain,
// any other error stops it. Exhaustion surfaces as NoProviderError
// carrying the last observed error.
func dispatch[T Provider, R any](ctx context.Context, r *Registry, capability types.Capability, model string, entries []entry[T], call func(context.Context, T) (R, error)) (R, error) {
	var zero R
	var last error

	for _, e := range entries {
		if !e.breaker.Allow() {
			r.observe(capability, e.name, "skipped")
			r.logger.WithFields(logrus.Fields{
				"capability": string(capability),
				"provider":   e.name,
			}).Debug("Circuit open, skipping provider")
			continue
		}

		result, err := call(ctx, e.provider)
		if err == nil {
			e.breaker.RecordSuccess()
			r.observe(capability, e.name, "success")
			return result, nil
		}

		if errors.IsModelNotAvailable(err) {
			r.observe(capability, e.name, "unavailable")
			r.logger.WithFields(logrus.Fields{
				"capability": string(capability),
				"provider":   e.name,
				"model":      model,
			}).Debug("Model not available, trying next provider")
			last = err
			continue
		}

		if errors.IsTransient(err) {
			// Retries already ran inside the decorator; a provider that
			// stays transient does not imply failure at the next one.
			e.breaker.RecordFailure()
			r.observe(capability, e.name, "transient")
			r.logger.WithFields(logrus.Fields{
				"capability": string(capability),
				"provider":   e.name,
				"model":      model,
			}).WithError(err).
				Warn("Provider exhausted retries, trying next provider")
			last = err
			continue
		}

		r.observe(capability, e.name, "permanent")
		return zero, err
	}

	return zero, &errors.NoProviderError{Capability: capability, Model: model, Last: last}
}

func (r *Registry) observe(capability types.Capability, provider, outcome string) {
	if r.observer != nil {
		r.observer.ObserveDispatch(capability, provider, outcome)
	}
}

// ProviderNames returns the ordered provider names for a capability.
func (r *Registry) ProviderNames(capability types.Capability) []string {
	switch capability {
	case types.CapabilityChat:
		return names(r.chat)
	case types.CapabilityGenerate:
		return names(r.generate)
	case types.CapabilityEmbed:
		return names(r.embed)
	case types.CapabilityNLI:
		return names(r.nli)
	case types.CapabilityClassify:
		return names(r.classify)
	case types.CapabilityStance:
		return names(r.stance)
	}
	return nil
}

// Has reports whether at least one provider serves the capability.
func (r *Registry) Has(capability types.Capability) bool {
	return len(r.ProviderNames(capability)) > 0
}

// Capabilities returns the ordered provider names for every capability
// with at least one provider.
func (r *Registry) Capabilities() map[types.Capability][]string {
	out := make(map[types.Capability][]string)
	for _, c := range types.Capabilities() {
		if providerNames := r.ProviderNames(c); len(providerNames) > 0 {
			out[c] = providerNames
		}
	}
	return out
}

func names[T Provider](entries []entry[T]) []string {
	if len(entries) == 0 {
		return nil
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.name
	}
	return out
}
