package catalog

import (
	"time"

	"github.com/modelmux/modelmux/pkg/types"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

// baselineModels is the compiled-in metadata layer. Live provider
// queries and the overlay file are merged on top of it at runtime.
func baselineModels() []types.ModelInfo {
	return []types.ModelInfo{
		{
			ID:            "all-minilm-l6-v2",
			Provider:      "local",
			Capabilities:  []types.Capability{types.CapabilityEmbed},
			ContextWindow: 512,
			EmbeddingDims: 384,
			Parameters: map[string]types.ParamSpec{
				"temperature": {Availability: types.ParamUnsupported},
			},
		},
		{
			ID:            "nli-deberta-v3-small",
			Provider:      "local",
			Capabilities:  []types.Capability{types.CapabilityNLI, types.CapabilityClassify, types.CapabilityStance},
			ContextWindow: 512,
			Parameters: map[string]types.ParamSpec{
				"temperature": {Availability: types.ParamUnsupported},
			},
		},
		{
			ID:              "gpt-4o",
			Provider:        "openai",
			Capabilities:    []types.Capability{types.CapabilityChat, types.CapabilityGenerate, types.CapabilityNLI, types.CapabilityClassify, types.CapabilityStance},
			ContextWindow:   128000,
			MaxOutputTokens: 16384,
			Parameters: map[string]types.ParamSpec{
				"temperature": {Availability: types.ParamMutable, Min: floatPtr(0), Max: floatPtr(2)},
				"top_p":       {Availability: types.ParamMutable, Min: floatPtr(0), Max: floatPtr(1)},
				"max_tokens":  {Availability: types.ParamMutable},
			},
			Pricing: &types.ModelPricing{InputPrice: 0.0025, OutputPrice: 0.01, Currency: "USD", LastUpdated: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
		},
		{
			ID:              "gpt-4o-mini",
			Provider:        "openai",
			Capabilities:    []types.Capability{types.CapabilityChat, types.CapabilityGenerate, types.CapabilityNLI, types.CapabilityClassify, types.CapabilityStance},
			ContextWindow:   128000,
			MaxOutputTokens: 16384,
			Parameters: map[string]types.ParamSpec{
				"temperature": {Availability: types.ParamMutable, Min: floatPtr(0), Max: floatPtr(2)},
				"top_p":       {Availability: types.ParamMutable, Min: floatPtr(0), Max: floatPtr(1)},
				"max_tokens":  {Availability: types.ParamMutable},
			},
			Pricing: &types.ModelPricing{InputPrice: 0.00015, OutputPrice: 0.0006, Currency: "USD", LastUpdated: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
		},
		{
			ID:            "text-embedding-3-small",
			Provider:      "openai",
			Capabilities:  []types.Capability{types.CapabilityEmbed},
			ContextWindow: 8191,
			EmbeddingDims: 1536,
			Pricing:       &types.ModelPricing{InputPrice: 0.00002, Currency: "USD", LastUpdated: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
		},
	}
}

// baselinePresets seeds the (tier, capability) table. Overlay files may
// replace individual slots.
func baselinePresets() map[string]map[types.Capability]types.Preset {
	return map[string]map[types.Capability]types.Preset{
		"free": {
			types.CapabilityChat: {
				Model: "gpt-4o-mini",
				Defaults: &types.GenerationOptions{
					Temperature: floatPtr(0.7),
					MaxTokens:   intPtr(1024),
				},
			},
			types.CapabilityGenerate: {
				Model: "gpt-4o-mini",
				Defaults: &types.GenerationOptions{
					Temperature: floatPtr(0.7),
					MaxTokens:   intPtr(1024),
				},
			},
			types.CapabilityEmbed:    {Model: "all-minilm-l6-v2"},
			types.CapabilityNLI:      {Model: "nli-deberta-v3-small"},
			types.CapabilityClassify: {Model: "nli-deberta-v3-small"},
			types.CapabilityStance:   {Model: "nli-deberta-v3-small"},
		},
		"standard": {
			types.CapabilityChat: {
				Model: "gpt-4o",
				Defaults: &types.GenerationOptions{
					Temperature: floatPtr(0.7),
					MaxTokens:   intPtr(4096),
				},
			},
			types.CapabilityGenerate: {
				Model: "gpt-4o",
				Defaults: &types.GenerationOptions{
					Temperature: floatPtr(0.7),
					MaxTokens:   intPtr(4096),
				},
			},
			types.CapabilityEmbed:    {Model: "text-embedding-3-small"},
			types.CapabilityNLI:      {Model: "nli-deberta-v3-small"},
			types.CapabilityClassify: {Model: "nli-deberta-v3-small"},
			types.CapabilityStance:   {Model: "nli-deberta-v3-small"},
		},
		"premium": {
			types.CapabilityChat: {
				Model: "gpt-4o",
				Defaults: &types.GenerationOptions{
					Temperature: floatPtr(1.0),
					MaxTokens:   intPtr(16384),
				},
			},
			types.CapabilityGenerate: {
				Model: "gpt-4o",
				Defaults: &types.GenerationOptions{
					Temperature: floatPtr(1.0),
					MaxTokens:   intPtr(16384),
				},
			},
			types.CapabilityEmbed:    {Model: "text-embedding-3-small"},
			types.CapabilityNLI:      {Model: "gpt-4o"},
			types.CapabilityClassify: {Model: "gpt-4o"},
			types.CapabilityStance:   {Model: "gpt-4o"},
		},
	}
}
