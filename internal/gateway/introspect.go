package gateway

import (
	"github.com/modelmux/modelmux/internal/catalog"
	"github.com/modelmux/modelmux/internal/metrics"
	"github.com/modelmux/modelmux/pkg/types"
)

// ProviderNames lists the fallback chain for a capability in priority
// order.
func (g *Gateway) ProviderNames(capability types.Capability) []string {
	return g.registry.ProviderNames(capability)
}

// HasCapability reports whether any provider serves the capability.
func (g *Gateway) HasCapability(capability types.Capability) bool {
	return g.registry.Has(capability)
}

// Capabilities maps every served capability to its provider chain.
func (g *Gateway) Capabilities() map[types.Capability][]string {
	return g.registry.Capabilities()
}

// Model returns the catalog entry for a model identifier.
func (g *Gateway) Model(id string) (types.ModelInfo, bool) {
	return g.catalog.Model(id)
}

// Models lists every known catalog entry.
func (g *Gateway) Models() []types.ModelInfo {
	return g.catalog.Models()
}

// ResolveRef expands a model reference without dispatching, returning
// the concrete model identifier it would use.
func (g *Gateway) ResolveRef(ref string) (string, error) {
	model, _, err := g.catalog.Resolve(ref)
	return model, err
}

// EstimateCost estimates the spend for a call against a model.
func (g *Gateway) EstimateCost(ref string, inputTokens, outputTokens int) (*catalog.CostEstimate, error) {
	model, _, err := g.catalog.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return g.catalog.EstimateCost(model, inputTokens, outputTokens)
}

// LoadedModels lists on-device models currently resident in memory.
func (g *Gateway) LoadedModels() []string {
	if g.manager == nil {
		return nil
	}
	return g.manager.LoadedModels()
}

// ResourceUsage reports the manager's RAM accounting in MB. Budget 0
// means unbounded.
func (g *Gateway) ResourceUsage() (usedMB, budgetMB int) {
	if g.manager == nil {
		return 0, 0
	}
	return g.manager.Usage()
}

// UnloadModel evicts one resident on-device model and frees its budget.
func (g *Gateway) UnloadModel(id string) error {
	if g.manager == nil {
		return nil
	}
	return g.manager.Unload(id)
}

// SyncResidency pushes the manager's residency accounting into the
// prometheus gauges. Callers run it on a ticker.
func (g *Gateway) SyncResidency() {
	if g.manager == nil || !g.config.Metrics.Enabled {
		return
	}
	used, _ := g.manager.Usage()
	metrics.SetResidency(len(g.manager.LoadedModels()), used)
}
