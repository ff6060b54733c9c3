package gateway

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/modelmux/modelmux/internal/cache"
	"github.com/modelmux/modelmux/internal/catalog"
	"github.com/modelmux/modelmux/internal/metrics"
	"github.com/modelmux/modelmux/internal/stream"
	"github.com/modelmux/modelmux/pkg/types"
)

// resolve expands a model reference and merges preset defaults under
// any caller-supplied options.
func (g *Gateway) resolve(ref string, opts *types.GenerationOptions) (string, *types.GenerationOptions, error) {
	model, preset, err := g.catalog.Resolve(ref)
	if err != nil {
		return "", nil, err
	}
	if preset != nil {
		opts = catalog.ApplyDefaults(opts, preset.Defaults)
	}
	return model, opts, nil
}

// Chat dispatches a chat completion across the fallback chain.
func (g *Gateway) Chat(ctx context.Context, ref string, messages []types.Message, opts *types.GenerationOptions) (*types.ChatResponse, error) {
	model, opts, err := g.resolve(ref, opts)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := g.registry.Chat(ctx, model, messages, opts)
	if err != nil {
		return nil, err
	}
	g.recordCall(types.CapabilityChat, resp.Provider, model, resp.Usage, start)
	return resp, nil
}

// ChatStream dispatches a streaming chat completion. The returned
// stream buffers a bounded number of chunks; closing it releases the
// producing provider.
func (g *Gateway) ChatStream(ctx context.Context, ref string, messages []types.Message, opts *types.GenerationOptions) (*stream.Stream, error) {
	model, opts, err := g.resolve(ref, opts)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	src, err := g.registry.ChatStream(streamCtx, model, messages, opts)
	if err != nil {
		cancel()
		return nil, err
	}
	return stream.Pipe(src, g.streamBuffer(), cancel), nil
}

// Generate dispatches single-prompt text generation.
func (g *Gateway) Generate(ctx context.Context, ref, prompt string, opts *types.GenerationOptions) (*types.TextResult, error) {
	model, opts, err := g.resolve(ref, opts)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := g.registry.Generate(ctx, model, prompt, opts)
	if err != nil {
		return nil, err
	}
	g.recordCall(types.CapabilityGenerate, result.Provider, model, result.Usage, start)
	return result, nil
}

// GenerateStream dispatches streaming text generation.
func (g *Gateway) GenerateStream(ctx context.Context, ref, prompt string, opts *types.GenerationOptions) (*stream.Stream, error) {
	model, opts, err := g.resolve(ref, opts)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	src, err := g.registry.GenerateStream(streamCtx, model, prompt, opts)
	if err != nil {
		cancel()
		return nil, err
	}
	return stream.Pipe(src, g.streamBuffer(), cancel), nil
}

// Embed computes one embedding, consulting the response cache first.
func (g *Gateway) Embed(ctx context.Context, ref, text string) ([]float32, error) {
	model, _, err := g.resolve(ref, nil)
	if err != nil {
		return nil, err
	}

	key := ""
	if g.cache != nil {
		key = cache.Key("embed", model, text)
		var cached []float32
		hit, err := g.cache.Get(ctx, key, &cached)
		if err != nil {
			g.logger.WithError(err).Debug("Cache lookup failed, dispatching")
		}
		g.recordCacheLookup("embed", hit)
		if hit {
			return cached, nil
		}
	}

	start := time.Now()
	vec, err := g.registry.Embed(ctx, model, text)
	if err != nil {
		return nil, err
	}
	g.recordLatency(types.CapabilityEmbed, start)

	if g.cache != nil {
		if err := g.cache.Set(ctx, key, vec); err != nil {
			g.logger.WithError(err).Debug("Cache store failed")
		}
	}
	return vec, nil
}

// EmbedBatch embeds a batch of texts. Cached entries are served from
// the cache and only the misses are dispatched, as one batch call.
func (g *Gateway) EmbedBatch(ctx context.Context, ref string, texts []string) ([][]float32, error) {
	model, _, err := g.resolve(ref, nil)
	if err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, nil
	}
	if g.cache == nil {
		start := time.Now()
		vecs, err := g.registry.EmbedBatch(ctx, model, texts)
		if err == nil {
			g.recordLatency(types.CapabilityEmbed, start)
		}
		return vecs, err
	}

	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missTexts []string
	var missIndex []int
	for i, text := range texts {
		keys[i] = cache.Key("embed", model, text)
		var cached []float32
		hit, err := g.cache.Get(ctx, keys[i], &cached)
		if err != nil {
			g.logger.WithError(err).Debug("Cache lookup failed, dispatching")
		}
		g.recordCacheLookup("embed", hit)
		if hit {
			out[i] = cached
			continue
		}
		missTexts = append(missTexts, text)
		missIndex = append(missIndex, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	start := time.Now()
	vecs, err := g.registry.EmbedBatch(ctx, model, missTexts)
	if err != nil {
		return nil, err
	}
	g.recordLatency(types.CapabilityEmbed, start)

	for j, vec := range vecs {
		i := missIndex[j]
		out[i] = vec
		if err := g.cache.Set(ctx, keys[i], vec); err != nil {
			g.logger.WithError(err).Debug("Cache store failed")
		}
	}
	return out, nil
}

// NLI scores a premise/hypothesis pair, consulting the cache first.
func (g *Gateway) NLI(ctx context.Context, ref, premise, hypothesis string) (*types.NLIResult, error) {
	model, _, err := g.resolve(ref, nil)
	if err != nil {
		return nil, err
	}

	key := ""
	if g.cache != nil {
		key = cache.Key("nli", model, premise, hypothesis)
		var cached types.NLIResult
		hit, err := g.cache.Get(ctx, key, &cached)
		if err != nil {
			g.logger.WithError(err).Debug("Cache lookup failed, dispatching")
		}
		g.recordCacheLookup("nli", hit)
		if hit {
			return &cached, nil
		}
	}

	start := time.Now()
	result, err := g.registry.NLI(ctx, model, premise, hypothesis)
	if err != nil {
		return nil, err
	}
	g.recordLatency(types.CapabilityNLI, start)

	if g.cache != nil {
		if err := g.cache.Set(ctx, key, result); err != nil {
			g.logger.WithError(err).Debug("Cache store failed")
		}
	}
	return result, nil
}

// Classify runs zero-shot classification. Results are not cached: the
// label set is caller-chosen and rarely repeats verbatim.
func (g *Gateway) Classify(ctx context.Context, ref, text string, labels []string) (*types.ClassificationResult, error) {
	model, _, err := g.resolve(ref, nil)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := g.registry.Classify(ctx, model, text, labels)
	if err != nil {
		return nil, err
	}
	g.recordLatency(types.CapabilityClassify, start)
	return result, nil
}

// Stance detects the position of a text toward a target.
func (g *Gateway) Stance(ctx context.Context, ref, text, target string) (*types.StanceResult, error) {
	model, _, err := g.resolve(ref, nil)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := g.registry.Stance(ctx, model, text, target)
	if err != nil {
		return nil, err
	}
	g.recordLatency(types.CapabilityStance, start)
	return result, nil
}

func (g *Gateway) recordCall(capability types.Capability, provider, model string, usage types.Usage, start time.Time) {
	elapsed := time.Since(start)
	g.logger.WithDuration(elapsed).WithFields(logrus.Fields{
		"capability": string(capability),
		"provider":   provider,
		"model":      model,
	}).Debug("Dispatch completed")

	if !g.config.Metrics.Enabled {
		return
	}
	metrics.RecordDispatchLatency(capability, elapsed)
	var pricing *types.ModelPricing
	if info, ok := g.catalog.Model(model); ok {
		pricing = info.Pricing
	}
	metrics.RecordUsage(provider, model, usage, pricing)
}

func (g *Gateway) recordLatency(capability types.Capability, start time.Time) {
	elapsed := time.Since(start)
	g.logger.WithDuration(elapsed).
		WithField("capability", string(capability)).
		Debug("Dispatch completed")
	if g.config.Metrics.Enabled {
		metrics.RecordDispatchLatency(capability, elapsed)
	}
}

func (g *Gateway) recordCacheLookup(operation string, hit bool) {
	if g.config.Metrics.Enabled {
		metrics.RecordCacheLookup(operation, hit)
	}
}
