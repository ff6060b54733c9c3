package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelmux/modelmux/pkg/errors"
	"github.com/modelmux/modelmux/pkg/types"
	"github.com/modelmux/modelmux/pkg/utils"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	return New(utils.NewTestLogger())
}

func TestNew_SeedsBaseline(t *testing.T) {
	c := newTestCatalog(t)

	info, ok := c.Model("gpt-4o-mini")
	require.True(t, ok)
	assert.Equal(t, "openai", info.Provider)
	assert.True(t, info.HasCapability(types.CapabilityChat))

	_, ok = c.Preset("free", types.CapabilityChat)
	assert.True(t, ok)
}

func TestMergeModel_InsertsUnknown(t *testing.T) {
	c := newTestCatalog(t)

	c.MergeModel(types.ModelInfo{
		ID:           "brand-new",
		Provider:     "elsewhere",
		Capabilities: []types.Capability{types.CapabilityChat},
	})

	info, ok := c.Model("brand-new")
	require.True(t, ok)
	assert.Equal(t, "elsewhere", info.Provider)
}

func TestMergeModel_FieldwiseMostRecentWins(t *testing.T) {
	c := newTestCatalog(t)

	before, _ := c.Model("gpt-4o")
	c.MergeModel(types.ModelInfo{
		ID:            "gpt-4o",
		ContextWindow: 200000,
	})

	after, _ := c.Model("gpt-4o")
	assert.Equal(t, 200000, after.ContextWindow)
	// Absent fields keep their stored values.
	assert.Equal(t, before.Provider, after.Provider)
	assert.Equal(t, before.MaxOutputTokens, after.MaxOutputTokens)
	assert.Equal(t, before.Pricing, after.Pricing)
}

func TestMergeModel_ParamsReplacedPerName(t *testing.T) {
	c := newTestCatalog(t)

	c.MergeModel(types.ModelInfo{
		ID: "gpt-4o",
		Parameters: map[string]types.ParamSpec{
			"temperature": {Availability: types.ParamFixed},
		},
	})

	info, _ := c.Model("gpt-4o")
	assert.Equal(t, types.ParamFixed, info.Parameters["temperature"].Availability)
	// Sibling parameters are untouched.
	assert.Equal(t, types.ParamMutable, info.Parameters["top_p"].Availability)
}

func TestMergeModel_CapabilitiesUnionNeverShrinks(t *testing.T) {
	c := newTestCatalog(t)

	c.MergeModel(types.ModelInfo{
		ID:           "gpt-4o",
		Capabilities: []types.Capability{types.CapabilityEmbed},
	})

	info, _ := c.Model("gpt-4o")
	assert.True(t, info.HasCapability(types.CapabilityChat))
	assert.True(t, info.HasCapability(types.CapabilityEmbed))
}

func TestMergeModel_Idempotent(t *testing.T) {
	c := newTestCatalog(t)
	layer := types.ModelInfo{
		ID:            "gpt-4o",
		ContextWindow: 123456,
		Capabilities:  []types.Capability{types.CapabilityChat},
	}

	c.MergeModel(layer)
	first, _ := c.Model("gpt-4o")
	c.MergeModel(layer)
	second, _ := c.Model("gpt-4o")

	assert.Equal(t, first, second)
}

func TestModel_ReturnsCopies(t *testing.T) {
	c := newTestCatalog(t)

	info, _ := c.Model("gpt-4o")
	info.Parameters["temperature"] = types.ParamSpec{Availability: types.ParamUnsupported}
	info.Capabilities[0] = types.CapabilityStance
	info.Pricing.InputPrice = 999

	fresh, _ := c.Model("gpt-4o")
	assert.Equal(t, types.ParamMutable, fresh.Parameters["temperature"].Availability)
	assert.Equal(t, types.CapabilityChat, fresh.Capabilities[0])
	assert.NotEqual(t, 999.0, fresh.Pricing.InputPrice)
}

func TestResolve_PlainIdentifierPassesThrough(t *testing.T) {
	c := newTestCatalog(t)

	model, preset, err := c.Resolve("gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", model)
	assert.Nil(t, preset)
}

func TestResolve_UnknownPlainIdentifierStillPassesThrough(t *testing.T) {
	// Resolution does not gate on catalog membership; providers decide
	// availability at dispatch time.
	c := newTestCatalog(t)

	model, _, err := c.Resolve("some-self-hosted-model")
	require.NoError(t, err)
	assert.Equal(t, "some-self-hosted-model", model)
}

func TestResolve_PresetReference(t *testing.T) {
	c := newTestCatalog(t)

	model, preset, err := c.Resolve("preset:free/chat")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", model)
	require.NotNil(t, preset)
	require.NotNil(t, preset.Defaults)
	assert.Equal(t, 0.7, *preset.Defaults.Temperature)
	assert.Equal(t, 1024, *preset.Defaults.MaxTokens)
}

func TestResolve_MissingCapabilityPartIsMalformed(t *testing.T) {
	c := newTestCatalog(t)

	_, _, err := c.Resolve("preset:free")
	var malformed *errors.MalformedReferenceError
	require.ErrorAs(t, err, &malformed)
}

func TestResolve_EmptyPartsAreMalformed(t *testing.T) {
	c := newTestCatalog(t)

	for _, ref := range []string{"preset:/chat", "preset:free/"} {
		_, _, err := c.Resolve(ref)
		var malformed *errors.MalformedReferenceError
		require.ErrorAs(t, err, &malformed, "ref %q", ref)
	}
}

func TestResolve_UnknownPresetIsNotFound(t *testing.T) {
	c := newTestCatalog(t)

	_, _, err := c.Resolve("preset:bogus-tier/chat")
	var notFound *errors.PresetNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "bogus-tier", notFound.Tier)
}

func TestResolve_AliasChain(t *testing.T) {
	c := newTestCatalog(t)

	c.SetAliases(map[string]string{
		"fast":    "mini",
		"mini":    "gpt-4o-mini",
		"default": "fast",
	})

	model, _, err := c.Resolve("default")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", model)
}

func TestResolve_AliasCycleFailsClosed(t *testing.T) {
	c := newTestCatalog(t)

	c.SetAliases(map[string]string{
		"a": "b",
		"b": "c",
		"c": "a",
	})

	_, _, err := c.Resolve("a")
	var configErr *errors.ConfigError
	require.ErrorAs(t, err, &configErr)
}

func TestResolve_PresetModelGoesThroughAliases(t *testing.T) {
	c := newTestCatalog(t)
	c.SetPreset("custom", types.CapabilityChat, types.Preset{Model: "fast"})
	c.SetAliases(map[string]string{"fast": "gpt-4o-mini"})

	model, _, err := c.Resolve("preset:custom/chat")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", model)
}

func TestApplyDefaults_FillsOnlyUnsetFields(t *testing.T) {
	callerTemp := 0.2
	opts := &types.GenerationOptions{Temperature: &callerTemp}
	defaultTemp := 0.9
	maxTokens := 2048
	defaults := &types.GenerationOptions{Temperature: &defaultTemp, MaxTokens: &maxTokens}

	merged := ApplyDefaults(opts, defaults)

	assert.Equal(t, 0.2, *merged.Temperature)
	assert.Equal(t, 2048, *merged.MaxTokens)
	// Caller's struct stays untouched.
	assert.Nil(t, opts.MaxTokens)
}

func TestApplyDefaults_NilCallerOptions(t *testing.T) {
	temp := 0.5
	merged := ApplyDefaults(nil, &types.GenerationOptions{Temperature: &temp})
	require.NotNil(t, merged)
	assert.Equal(t, 0.5, *merged.Temperature)
}

func TestApplyDefaults_NilDefaults(t *testing.T) {
	opts := &types.GenerationOptions{}
	assert.Same(t, opts, ApplyDefaults(opts, nil))
}
