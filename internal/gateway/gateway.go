// Package gateway wires the catalog, cache, model manager and provider
// registry into one dispatch facade.
package gateway

import (
	"context"
	"fmt"

	"github.com/modelmux/modelmux/internal/cache"
	"github.com/modelmux/modelmux/internal/catalog"
	"github.com/modelmux/modelmux/internal/local"
	"github.com/modelmux/modelmux/internal/manager"
	"github.com/modelmux/modelmux/internal/metrics"
	"github.com/modelmux/modelmux/internal/providers"
	"github.com/modelmux/modelmux/internal/providers/openai"
	"github.com/modelmux/modelmux/pkg/retry"
	"github.com/modelmux/modelmux/pkg/types"
	"github.com/modelmux/modelmux/pkg/utils"
)

const defaultStreamBuffer = 16

// Gateway is the capability dispatch facade. All operations accept
// either a concrete model identifier, an alias, or a symbolic
// "preset:<tier>/<capability>" reference.
type Gateway struct {
	config   *types.Config
	logger   *utils.Logger
	catalog  *catalog.Catalog
	overlay  *catalog.Overlay
	registry *providers.Registry
	manager  *manager.Manager
	cache    cache.Cache
	retries  *retry.Manager
	remotes  []*openai.Provider
}

// New builds a gateway from configuration. Construction is eager: the
// catalog overlay is read, the cache backend connected and every
// configured provider registered before New returns.
func New(cfg *types.Config, logger *utils.Logger) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &Gateway{
		config:  cfg,
		logger:  logger,
		catalog: catalog.New(logger),
		retries: retry.NewManager(cfg.Retry, logger),
	}
	g.catalog.SetAliases(cfg.Catalog.Aliases)

	if cfg.Metrics.Enabled {
		metrics.Init()
		g.retries.OnRetry(metrics.RecordRetry)
	}

	if cfg.Catalog.OverlayPath != "" {
		overlay, err := catalog.NewOverlay(g.catalog, cfg.Catalog.OverlayPath)
		if err != nil {
			return nil, err
		}
		if err := overlay.Watch(); err != nil {
			return nil, err
		}
		g.overlay = overlay
	}

	if err := g.buildCache(); err != nil {
		return nil, err
	}
	if err := g.buildProviders(); err != nil {
		g.Close()
		return nil, err
	}
	return g, nil
}

func (g *Gateway) buildCache() error {
	if !g.config.Cache.Enabled() {
		return nil
	}
	switch g.config.Cache.Backend {
	case "redis":
		redisCache, err := cache.NewRedis(&g.config.Cache.Redis, g.config.Cache.TTL, g.logger)
		if err != nil {
			return err
		}
		g.cache = redisCache
	default:
		g.cache = cache.NewMemory(g.config.Cache.Capacity, g.config.Cache.TTL)
	}
	return nil
}

// buildProviders constructs the local and remote providers and registers
// them per the configured fallback order. Remote calls go through the
// retry layer; local inference failures are never transient, so the
// local provider registers bare.
func (g *Gateway) buildProviders() error {
	opts := []providers.Option{}
	if g.config.Metrics.Enabled {
		opts = append(opts, providers.WithObserver(metrics.Observer{}))
	}
	if g.config.Providers.BreakerThreshold > 0 {
		opts = append(opts, providers.WithBreakers(
			g.config.Providers.BreakerThreshold,
			g.config.Providers.BreakerCooldown,
		))
	}
	g.registry = providers.NewRegistry(g.logger, opts...)

	byName := make(map[string]capabilitySet)

	if len(g.config.Manager.Models) > 0 {
		store, err := local.NewStore(g.config.Manager.ModelDir, g.config.Manager.Models)
		if err != nil {
			return err
		}
		g.manager = manager.New(g.config.Manager.BudgetMB, store.Loader(), store.Footprint, g.logger)
		localProvider := local.NewProvider("local", store, g.manager)
		byName[localProvider.Name()] = capabilitySet{
			embedding: localProvider,
			nli:       localProvider,
			classify:  localProvider,
			stance:    localProvider,
		}
		g.mergeLocalModels()
	}

	for _, remoteCfg := range g.config.Providers.OpenAI {
		if remoteCfg.Name == "" {
			return fmt.Errorf("gateway: remote provider with empty name")
		}
		if _, dup := byName[remoteCfg.Name]; dup {
			return fmt.Errorf("gateway: duplicate provider name %q", remoteCfg.Name)
		}
		remote := openai.New(remoteCfg, g.logger)
		g.remotes = append(g.remotes, remote)
		byName[remote.Name()] = capabilitySet{
			chat:      providers.RetryChat(remote, g.retries),
			generate:  providers.RetryGenerate(remote, g.retries),
			embedding: providers.RetryEmbedding(remote, g.retries),
			nli:       providers.RetryNLI(remote, g.retries),
			classify:  providers.RetryClassify(remote, g.retries),
			stance:    providers.RetryStance(remote, g.retries),
		}
	}

	for _, capability := range types.Capabilities() {
		for _, name := range g.providerOrder(capability, byName) {
			set, ok := byName[name]
			if !ok {
				g.logger.WithCapability(capability).
					WithField("provider", name).
					Warn("Ordered provider is not configured, skipping")
				continue
			}
			set.register(g.registry, capability)
		}
	}
	return nil
}

// providerOrder returns the fallback order for a capability. Explicit
// configuration wins; otherwise local inference runs before any remote,
// and remotes keep their configuration order.
func (g *Gateway) providerOrder(capability types.Capability, byName map[string]capabilitySet) []string {
	if order, ok := g.config.Providers.Order[string(capability)]; ok {
		return order
	}

	var order []string
	if set, ok := byName["local"]; ok && set.has(capability) {
		order = append(order, "local")
	}
	for _, remote := range g.remotes {
		order = append(order, remote.Name())
	}
	return order
}

// mergeLocalModels publishes the configured on-device models into the
// catalog so resolution and introspection see them.
func (g *Gateway) mergeLocalModels() {
	for _, m := range g.config.Manager.Models {
		info := types.ModelInfo{
			ID:            m.ID,
			Provider:      "local",
			EmbeddingDims: m.Dims,
		}
		switch local.Family(m.Family) {
		case local.FamilyEmbedding:
			info.Capabilities = []types.Capability{types.CapabilityEmbed}
		case local.FamilyNLI:
			info.Capabilities = []types.Capability{
				types.CapabilityNLI, types.CapabilityClassify, types.CapabilityStance,
			}
		}
		g.catalog.MergeModel(info)
	}
}

// RefreshRemoteModels queries every remote endpoint's model list and
// merges the results into the catalog's live layer. Failures are
// logged and skipped so one unreachable endpoint cannot block startup.
func (g *Gateway) RefreshRemoteModels(ctx context.Context) {
	for _, remote := range g.remotes {
		infos, err := remote.Models(ctx)
		if err != nil {
			g.logger.WithProvider(remote.Name()).WithError(err).
				Warn("Remote model listing failed")
			continue
		}
		g.catalog.MergeModels(infos)
		g.logger.WithProvider(remote.Name()).
			WithField("models", len(infos)).
			Debug("Merged remote model list")
	}
}

func (g *Gateway) streamBuffer() int {
	if g.config.StreamBuffer > 0 {
		return g.config.StreamBuffer
	}
	return defaultStreamBuffer
}

// Close stops the overlay watcher, releases the cache backend and
// unloads resident models.
func (g *Gateway) Close() error {
	var firstErr error
	if g.overlay != nil {
		if err := g.overlay.Close(); err != nil {
			firstErr = err
		}
	}
	if g.manager != nil {
		if err := g.manager.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if g.cache != nil {
		if err := g.cache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// capabilitySet holds one provider's capability views so registration
// can pick the right interface per configured capability.
type capabilitySet struct {
	chat      providers.ChatProvider
	generate  providers.GenerateProvider
	embedding providers.EmbeddingProvider
	nli       providers.NLIProvider
	classify  providers.ClassifyProvider
	stance    providers.StanceProvider
}

func (s capabilitySet) has(c types.Capability) bool {
	switch c {
	case types.CapabilityChat:
		return s.chat != nil
	case types.CapabilityGenerate:
		return s.generate != nil
	case types.CapabilityEmbed:
		return s.embedding != nil
	case types.CapabilityNLI:
		return s.nli != nil
	case types.CapabilityClassify:
		return s.classify != nil
	case types.CapabilityStance:
		return s.stance != nil
	}
	return false
}

func (s capabilitySet) register(r *providers.Registry, c types.Capability) {
	switch c {
	case types.CapabilityChat:
		if s.chat != nil {
			r.RegisterChat(s.chat)
		}
	case types.CapabilityGenerate:
		if s.generate != nil {
			r.RegisterGenerate(s.generate)
		}
	case types.CapabilityEmbed:
		if s.embedding != nil {
			r.RegisterEmbedding(s.embedding)
		}
	case types.CapabilityNLI:
		if s.nli != nil {
			r.RegisterNLI(s.nli)
		}
	case types.CapabilityClassify:
		if s.classify != nil {
			r.RegisterClassify(s.classify)
		}
	case types.CapabilityStance:
		if s.stance != nil {
			r.RegisterStance(s.stance)
		}
	}
}
