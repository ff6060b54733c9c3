package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelmux/modelmux/internal/cache"
	"github.com/modelmux/modelmux/internal/catalog"
	"github.com/modelmux/modelmux/internal/providers"
	"github.com/modelmux/modelmux/pkg/errors"
	"github.com/modelmux/modelmux/pkg/retry"
	"github.com/modelmux/modelmux/pkg/types"
	"github.com/modelmux/modelmux/pkg/utils"
)

// fakeProvider serves every capability with canned responses and counts
// calls, so tests can observe dispatch and caching behavior.
type fakeProvider struct {
	name       string
	chatCalls  int
	embedCalls int
	nliCalls   int
	clsCalls   int
	lastModel  string
	lastOpts   *types.GenerationOptions
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Chat(ctx context.Context, model string, messages []types.Message, opts *types.GenerationOptions) (*types.ChatResponse, error) {
	f.chatCalls++
	f.lastModel = model
	f.lastOpts = opts
	return &types.ChatResponse{Provider: f.name, Model: model, Content: "ok"}, nil
}

func (f *fakeProvider) ChatStream(ctx context.Context, model string, messages []types.Message, opts *types.GenerationOptions) (<-chan types.StreamChunk, error) {
	f.lastModel = model
	ch := make(chan types.StreamChunk, 3)
	ch <- types.StreamChunk{Content: "hel"}
	ch <- types.StreamChunk{Content: "lo"}
	ch <- types.StreamChunk{Done: true}
	close(ch)
	return ch, nil
}

func (f *fakeProvider) Embed(ctx context.Context, model, text string) ([]float32, error) {
	f.embedCalls++
	return []float32{float32(len(text)), 1}, nil
}

func (f *fakeProvider) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, _ := f.Embed(ctx, model, text)
		out[i] = vec
	}
	return out, nil
}

func (f *fakeProvider) NLI(ctx context.Context, model, premise, hypothesis string) (*types.NLIResult, error) {
	f.nliCalls++
	return &types.NLIResult{Model: model, Provider: f.name, Entailment: 0.8, Neutral: 0.15, Contradiction: 0.05, Label: "entailment"}, nil
}

func (f *fakeProvider) Classify(ctx context.Context, model, text string, labels []string) (*types.ClassificationResult, error) {
	f.clsCalls++
	return &types.ClassificationResult{Model: model, Provider: f.name, Labels: labels, Top: labels[0]}, nil
}

func (f *fakeProvider) Stance(ctx context.Context, model, text, target string) (*types.StanceResult, error) {
	return &types.StanceResult{Model: model, Provider: f.name, Stance: "neutral"}, nil
}

func testGateway(t *testing.T, withCache bool) (*Gateway, *fakeProvider) {
	t.Helper()
	logger := utils.NewTestLogger()

	fake := &fakeProvider{name: "fake"}
	registry := providers.NewRegistry(logger)
	registry.RegisterChat(fake)
	registry.RegisterGenerate(fakeGenerate{fake})
	registry.RegisterEmbedding(fake)
	registry.RegisterNLI(fake)
	registry.RegisterClassify(fake)
	registry.RegisterStance(fake)

	cfg := &types.Config{
		Retry: types.DefaultRetryPolicy(),
	}
	g := &Gateway{
		config:   cfg,
		logger:   logger,
		catalog:  catalog.New(logger),
		registry: registry,
		retries:  retry.NewManager(cfg.Retry, logger),
	}
	if withCache {
		g.cache = cache.NewMemory(64, time.Minute)
	}
	return g, fake
}

// fakeGenerate adapts fakeProvider to the generate interface without
// colliding with its chat methods.
type fakeGenerate struct{ f *fakeProvider }

func (g fakeGenerate) Name() string { return g.f.name }

func (g fakeGenerate) Generate(ctx context.Context, model, prompt string, opts *types.GenerationOptions) (*types.TextResult, error) {
	g.f.lastModel = model
	g.f.lastOpts = opts
	return &types.TextResult{Model: model, Provider: g.f.name, Text: "generated"}, nil
}

func (g fakeGenerate) GenerateStream(ctx context.Context, model, prompt string, opts *types.GenerationOptions) (<-chan types.StreamChunk, error) {
	return g.f.ChatStream(ctx, model, nil, opts)
}

func TestChat_PresetResolutionAppliesDefaults(t *testing.T) {
	g, fake := testGateway(t, false)

	resp, err := g.Chat(context.Background(), "preset:free/chat", []types.Message{{Role: "user", Content: "hi"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, "gpt-4o-mini", fake.lastModel)

	require.NotNil(t, fake.lastOpts)
	assert.Equal(t, 0.7, *fake.lastOpts.Temperature)
	assert.Equal(t, 1024, *fake.lastOpts.MaxTokens)
}

func TestChat_CallerOptionsBeatPresetDefaults(t *testing.T) {
	g, fake := testGateway(t, false)

	temp := 0.1
	_, err := g.Chat(context.Background(), "preset:free/chat", nil, &types.GenerationOptions{Temperature: &temp})
	require.NoError(t, err)

	assert.Equal(t, 0.1, *fake.lastOpts.Temperature)
	// Unset fields still come from the preset.
	assert.Equal(t, 1024, *fake.lastOpts.MaxTokens)
}

func TestChat_MalformedReferenceFailsBeforeDispatch(t *testing.T) {
	g, fake := testGateway(t, false)

	_, err := g.Chat(context.Background(), "preset:free", nil, nil)
	var malformed *errors.MalformedReferenceError
	require.ErrorAs(t, err, &malformed)
	assert.Zero(t, fake.chatCalls)
}

func TestChat_UnknownPresetFailsBeforeDispatch(t *testing.T) {
	g, fake := testGateway(t, false)

	_, err := g.Chat(context.Background(), "preset:bogus/chat", nil, nil)
	var notFound *errors.PresetNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Zero(t, fake.chatCalls)
}

func TestGenerate_PlainModelReference(t *testing.T) {
	g, _ := testGateway(t, false)

	result, err := g.Generate(context.Background(), "gpt-4o", "write a haiku", nil)
	require.NoError(t, err)
	assert.Equal(t, "generated", result.Text)
}

func TestEmbed_CacheHitSkipsDispatch(t *testing.T) {
	g, fake := testGateway(t, true)
	ctx := context.Background()

	first, err := g.Embed(ctx, "all-minilm-l6-v2", "same text")
	require.NoError(t, err)
	second, err := g.Embed(ctx, "all-minilm-l6-v2", "same text")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, fake.embedCalls)
}

func TestEmbed_DifferentInputsMiss(t *testing.T) {
	g, fake := testGateway(t, true)
	ctx := context.Background()

	_, err := g.Embed(ctx, "m", "text one")
	require.NoError(t, err)
	_, err = g.Embed(ctx, "m", "text two")
	require.NoError(t, err)

	assert.Equal(t, 2, fake.embedCalls)
}

func TestEmbed_NoCacheAlwaysDispatches(t *testing.T) {
	g, fake := testGateway(t, false)
	ctx := context.Background()

	_, err := g.Embed(ctx, "m", "same text")
	require.NoError(t, err)
	_, err = g.Embed(ctx, "m", "same text")
	require.NoError(t, err)

	assert.Equal(t, 2, fake.embedCalls)
}

func TestEmbedBatch_DispatchesOnlyMisses(t *testing.T) {
	g, fake := testGateway(t, true)
	ctx := context.Background()

	_, err := g.Embed(ctx, "m", "cached")
	require.NoError(t, err)
	require.Equal(t, 1, fake.embedCalls)

	vecs, err := g.EmbedBatch(ctx, "m", []string{"cached", "fresh"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.NotNil(t, vecs[0])
	assert.NotNil(t, vecs[1])

	// Only "fresh" reached the provider.
	assert.Equal(t, 2, fake.embedCalls)
}

func TestNLI_CachedByPairOrder(t *testing.T) {
	g, fake := testGateway(t, true)
	ctx := context.Background()

	_, err := g.NLI(ctx, "m", "p", "h")
	require.NoError(t, err)
	_, err = g.NLI(ctx, "m", "p", "h")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.nliCalls)

	// Swapped premise/hypothesis is a different judgement.
	_, err = g.NLI(ctx, "m", "h", "p")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.nliCalls)
}

func TestClassify_NeverCached(t *testing.T) {
	g, fake := testGateway(t, true)
	ctx := context.Background()

	_, err := g.Classify(ctx, "m", "text", []string{"a", "b"})
	require.NoError(t, err)
	_, err = g.Classify(ctx, "m", "text", []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, 2, fake.clsCalls)
}

func TestChatStream_DeliversChunksInOrder(t *testing.T) {
	g, _ := testGateway(t, false)

	s, err := g.ChatStream(context.Background(), "gpt-4o", []types.Message{{Role: "user", Content: "hi"}}, nil)
	require.NoError(t, err)
	defer s.Close()

	var content string
	for chunk := range s.Chunks() {
		if chunk.Done {
			break
		}
		content += chunk.Content
	}
	assert.Equal(t, "hello", content)
}

func TestIntrospection(t *testing.T) {
	g, _ := testGateway(t, false)

	assert.True(t, g.HasCapability(types.CapabilityChat))
	assert.Equal(t, []string{"fake"}, g.ProviderNames(types.CapabilityEmbed))

	model, err := g.ResolveRef("preset:standard/embed")
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", model)

	_, ok := g.Model("gpt-4o")
	assert.True(t, ok)

	// No manager configured: residency is empty, not an error.
	assert.Nil(t, g.LoadedModels())
	used, budget := g.ResourceUsage()
	assert.Zero(t, used)
	assert.Zero(t, budget)
	assert.NoError(t, g.UnloadModel("anything"))
}

func TestEstimateCost_ThroughPreset(t *testing.T) {
	g, _ := testGateway(t, false)

	est, err := g.EstimateCost("preset:free/chat", 1000, 1000)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", est.Model)
	assert.InDelta(t, 0.00015+0.0006, est.TotalCost, 1e-9)
}
