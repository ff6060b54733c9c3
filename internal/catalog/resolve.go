package catalog

import (
	"strings"

	"github.com/modelmux/modelmux/pkg/errors"
	"github.com/modelmux/modelmux/pkg/types"
)

// Scheme prefixes symbolic preset references: preset:<tier>/<capability>.
const Scheme = "preset"

// Resolve turns a model reference into a concrete model identifier.
// Plain identifiers pass through (after alias resolution); symbolic
// references are looked up in the preset table and return default
// parameters when the preset carries them. Both the tier and the
// capability part of a symbolic reference are mandatory.
func (c *Catalog) Resolve(ref string) (string, *types.Preset, error) {
	if !strings.HasPrefix(ref, Scheme+":") {
		model, err := c.resolveAlias(ref)
		if err != nil {
			return "", nil, err
		}
		return model, nil, nil
	}

	rest := strings.TrimPrefix(ref, Scheme+":")
	tier, capabilityName, found := strings.Cut(rest, "/")
	if !found {
		return "", nil, &errors.MalformedReferenceError{Ref: ref, Reason: "missing capability part"}
	}
	if tier == "" {
		return "", nil, &errors.MalformedReferenceError{Ref: ref, Reason: "empty tier"}
	}
	if capabilityName == "" {
		return "", nil, &errors.MalformedReferenceError{Ref: ref, Reason: "empty capability"}
	}

	preset, ok := c.Preset(tier, types.Capability(capabilityName))
	if !ok {
		return "", nil, &errors.PresetNotFoundError{Tier: tier, Capability: capabilityName}
	}

	model, err := c.resolveAlias(preset.Model)
	if err != nil {
		return "", nil, err
	}
	return model, &preset, nil
}

// resolveAlias follows the alias chain with a visited set, failing
// closed on cycles instead of recursing unbounded.
func (c *Catalog) resolveAlias(id string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	visited := map[string]bool{id: true}
	current := id
	for {
		next, ok := c.aliases[current]
		if !ok {
			return current, nil
		}
		if visited[next] {
			return "", &errors.ConfigError{Message: "alias cycle detected at " + next}
		}
		visited[next] = true
		current = next
	}
}

// ApplyDefaults merges preset defaults into the caller's options,
// filling only fields the caller left unset. Explicit caller values are
// never overwritten. The caller's struct is not mutated.
func ApplyDefaults(opts, defaults *types.GenerationOptions) *types.GenerationOptions {
	if defaults == nil {
		return opts
	}
	merged := opts.Clone()

	if merged.Temperature == nil {
		merged.Temperature = defaults.Temperature
	}
	if merged.TopP == nil {
		merged.TopP = defaults.TopP
	}
	if merged.MaxTokens == nil {
		merged.MaxTokens = defaults.MaxTokens
	}
	if merged.Stop == nil {
		merged.Stop = defaults.Stop
	}
	if merged.PresencePenalty == nil {
		merged.PresencePenalty = defaults.PresencePenalty
	}
	if merged.FrequencyPenalty == nil {
		merged.FrequencyPenalty = defaults.FrequencyPenalty
	}
	if merged.PromptCache == nil {
		merged.PromptCache = defaults.PromptCache
	}
	return merged
}
