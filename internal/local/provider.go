package local

import (
	"context"
	"fmt"

	"github.com/modelmux/modelmux/internal/manager"
	"github.com/modelmux/modelmux/internal/providers"
	"github.com/modelmux/modelmux/pkg/errors"
	"github.com/modelmux/modelmux/pkg/types"
)

// Provider serves embed, nli, classify and stance from on-device
// models. Models load lazily through the RAM-budgeted manager; an
// unknown model id or a budget-refused load surfaces as the
// model-not-available sentinel so the registry falls back to a remote
// provider.
type Provider struct {
	name    string
	store   *Store
	manager *manager.Manager
}

var (
	_ providers.EmbeddingProvider = (*Provider)(nil)
	_ providers.NLIProvider       = (*Provider)(nil)
	_ providers.ClassifyProvider  = (*Provider)(nil)
	_ providers.StanceProvider    = (*Provider)(nil)
)

// NewProvider creates the local provider over a model store and manager.
func NewProvider(name string, store *Store, mgr *manager.Manager) *Provider {
	return &Provider{name: name, store: store, manager: mgr}
}

// Name implements providers.Provider.
func (p *Provider) Name() string { return p.name }

func (p *Provider) model(ctx context.Context, modelID string, family Family) (*Model, error) {
	spec, ok := p.store.Spec(modelID)
	if !ok || spec.Family != family {
		return nil, errors.ModelNotAvailable(p.name, modelID)
	}

	handle, err := p.manager.GetOrLoad(ctx, spec.ID)
	if err != nil {
		return nil, err
	}
	model, ok := handle.(*Model)
	if !ok {
		return nil, fmt.Errorf("local: unexpected handle type %T for model %q", handle, modelID)
	}
	return model, nil
}

// Embed computes one embedding on-device.
func (p *Provider) Embed(ctx context.Context, modelID, text string) ([]float32, error) {
	model, err := p.model(ctx, modelID, FamilyEmbedding)
	if err != nil {
		return nil, err
	}
	return model.Embed(text)
}

// EmbedBatch embeds each input sequentially; the model is loaded once.
func (p *Provider) EmbedBatch(ctx context.Context, modelID string, texts []string) ([][]float32, error) {
	model, err := p.model(ctx, modelID, FamilyEmbedding)
	if err != nil {
		return nil, err
	}

	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := model.Embed(text)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

// NLI judges one premise/hypothesis pair on-device.
func (p *Provider) NLI(ctx context.Context, modelID, premise, hypothesis string) (*types.NLIResult, error) {
	model, err := p.model(ctx, modelID, FamilyNLI)
	if err != nil {
		return nil, err
	}

	entailment, contradiction, neutral, err := model.NLI(premise, hypothesis)
	if err != nil {
		return nil, err
	}

	result := &types.NLIResult{
		Model:         modelID,
		Provider:      p.name,
		Entailment:    entailment,
		Contradiction: contradiction,
		Neutral:       neutral,
	}
	result.Label = nliLabel(entailment, contradiction, neutral)
	return result, nil
}

// Classify performs zero-shot classification: each candidate label
// becomes an entailment hypothesis and the entailment probabilities are
// renormalized over the label set.
func (p *Provider) Classify(ctx context.Context, modelID, text string, labels []string) (*types.ClassificationResult, error) {
	if len(labels) == 0 {
		return nil, &errors.ProviderError{
			Provider:  p.name,
			Operation: "classify",
			Category:  errors.CategoryInvalidInput,
			Message:   "no candidate labels given",
		}
	}

	model, err := p.model(ctx, modelID, FamilyNLI)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(labels))
	var sum float64
	for i, label := range labels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entailment, _, _, err := model.NLI(text, "This example is about "+label+".")
		if err != nil {
			return nil, err
		}
		scores[i] = entailment
		sum += entailment
	}
	if sum > 0 {
		for i := range scores {
			scores[i] /= sum
		}
	}

	top := 0
	for i := range scores {
		if scores[i] > scores[top] {
			top = i
		}
	}

	return &types.ClassificationResult{
		Model:    modelID,
		Provider: p.name,
		Labels:   labels,
		Scores:   scores,
		Top:      labels[top],
	}, nil
}

// Stance detects the stance of a text toward a target by probing three
// entailment hypotheses.
func (p *Provider) Stance(ctx context.Context, modelID, text, target string) (*types.StanceResult, error) {
	model, err := p.model(ctx, modelID, FamilyNLI)
	if err != nil {
		return nil, err
	}

	hypotheses := map[string]string{
		"favor":   "The text supports " + target + ".",
		"against": "The text opposes " + target + ".",
		"neutral": "The text is neutral about " + target + ".",
	}

	scores := make(map[string]float64, len(hypotheses))
	for stance, hypothesis := range hypotheses {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entailment, _, _, err := model.NLI(text, hypothesis)
		if err != nil {
			return nil, err
		}
		scores[stance] = entailment
	}

	best := "neutral"
	for stance, score := range scores {
		if score > scores[best] {
			best = stance
		}
	}

	return &types.StanceResult{
		Model:    modelID,
		Provider: p.name,
		Stance:   best,
		Scores:   scores,
	}, nil
}

func nliLabel(entailment, contradiction, neutral float64) string {
	switch {
	case entailment >= contradiction && entailment >= neutral:
		return "entailment"
	case contradiction >= neutral:
		return "contradiction"
	default:
		return "neutral"
	}
}
