// Package catalog implements the model/preset registry: a keyed store
// of model metadata built by layering a compiled-in baseline, live
// provider queries and optional overlay updates, plus resolution of
// symbolic preset references to concrete model identifiers.
package catalog

import (
	"sync"

	"github.com/modelmux/modelmux/pkg/types"
	"github.com/modelmux/modelmux/pkg/utils"
)

type presetKey struct {
	tier       string
	capability types.Capability
}

// Catalog owns the canonical metadata entries; lookups return copies.
// Merges are idempotent and order-independent for non-overlapping keys;
// for overlapping keys the most recently merged layer wins per field.
type Catalog struct {
	mu      sync.RWMutex
	models  map[string]*types.ModelInfo
	presets map[presetKey]types.Preset
	aliases map[string]string
	logger  *utils.Logger
}

// New creates a catalog seeded with the compiled-in baseline.
func New(logger *utils.Logger) *Catalog {
	c := &Catalog{
		models:  make(map[string]*types.ModelInfo),
		presets: make(map[presetKey]types.Preset),
		aliases: make(map[string]string),
		logger:  logger,
	}
	c.MergeModels(baselineModels())
	for tier, byCapability := range baselinePresets() {
		for capability, preset := range byCapability {
			c.SetPreset(tier, capability, preset)
		}
	}
	return c
}

// MergeModel layers one metadata entry on top of the current state.
// Unknown models are inserted. For known models, present fields replace
// the stored ones, parameter entries are replaced per name rather than
// wholesale, and capability sets are unioned, never shrunk.
func (c *Catalog) MergeModel(info types.ModelInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mergeLocked(info)
}

// MergeModels layers a batch of metadata entries.
func (c *Catalog) MergeModels(infos []types.ModelInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, info := range infos {
		c.mergeLocked(info)
	}
}

func (c *Catalog) mergeLocked(info types.ModelInfo) {
	existing, ok := c.models[info.ID]
	if !ok {
		stored := copyModel(&info)
		c.models[info.ID] = &stored
		return
	}

	if info.Provider != "" {
		existing.Provider = info.Provider
	}
	if info.ContextWindow != 0 {
		existing.ContextWindow = info.ContextWindow
	}
	if info.EmbeddingDims != 0 {
		existing.EmbeddingDims = info.EmbeddingDims
	}
	if info.MaxOutputTokens != 0 {
		existing.MaxOutputTokens = info.MaxOutputTokens
	}
	if info.Pricing != nil {
		pricing := *info.Pricing
		existing.Pricing = &pricing
	}

	for _, capability := range info.Capabilities {
		if !existing.HasCapability(capability) {
			existing.Capabilities = append(existing.Capabilities, capability)
		}
	}

	if len(info.Parameters) > 0 {
		if existing.Parameters == nil {
			existing.Parameters = make(map[string]types.ParamSpec, len(info.Parameters))
		}
		for name, spec := range info.Parameters {
			existing.Parameters[name] = spec
		}
	}
}

// Model returns a copy of the metadata for a model id.
func (c *Catalog) Model(id string) (types.ModelInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, ok := c.models[id]
	if !ok {
		return types.ModelInfo{}, false
	}
	return copyModel(info), true
}

// Models returns copies of every entry.
func (c *Catalog) Models() []types.ModelInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]types.ModelInfo, 0, len(c.models))
	for _, info := range c.models {
		out = append(out, copyModel(info))
	}
	return out
}

// SetPreset stores the preset for a (tier, capability) slot.
func (c *Catalog) SetPreset(tier string, capability types.Capability, preset types.Preset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.presets[presetKey{tier, capability}] = preset
}

// Preset looks up the preset for a (tier, capability) slot.
func (c *Catalog) Preset(tier string, capability types.Capability) (types.Preset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	preset, ok := c.presets[presetKey{tier, capability}]
	return preset, ok
}

// SetAliases installs model id aliases, layered like metadata.
func (c *Catalog) SetAliases(aliases map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for from, to := range aliases {
		c.aliases[from] = to
	}
}

func copyModel(info *types.ModelInfo) types.ModelInfo {
	out := *info
	if info.Capabilities != nil {
		out.Capabilities = append([]types.Capability(nil), info.Capabilities...)
	}
	if info.Parameters != nil {
		out.Parameters = make(map[string]types.ParamSpec, len(info.Parameters))
		for name, spec := range info.Parameters {
			out.Parameters[name] = spec
		}
	}
	if info.Pricing != nil {
		pricing := *info.Pricing
		out.Pricing = &pricing
	}
	return out
}
