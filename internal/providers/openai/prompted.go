package openai

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/modelmux/modelmux/pkg/errors"
	"github.com/modelmux/modelmux/pkg/types"
)

// The analysis capabilities have no native endpoint on OpenAI-compatible
// backends, so they run through chat with a strict JSON answer contract.
// A reply that does not parse counts as an empty response, which lets the
// retry layer take another attempt.

const nliSystemPrompt = `You are a natural language inference engine.
Given a premise and a hypothesis, reply with one JSON object and nothing else:
{"entailment": <0..1>, "contradiction": <0..1>, "neutral": <0..1>}
The three probabilities must sum to 1.`

const classifySystemPrompt = `You are a zero-shot text classifier.
Given a text and candidate labels, reply with one JSON object and nothing else:
{"scores": {"<label>": <0..1>, ...}}
Include every candidate label exactly once; scores must sum to 1.`

const stanceSystemPrompt = `You are a stance detector.
Given a text and a target, decide whether the text is in favor of, against,
or neutral toward the target. Reply with one JSON object and nothing else:
{"favor": <0..1>, "against": <0..1>, "neutral": <0..1>}
The three probabilities must sum to 1.`

// NLI scores a premise/hypothesis pair by prompting the chat endpoint.
func (p *Provider) NLI(ctx context.Context, model, premise, hypothesis string) (*types.NLIResult, error) {
	user := fmt.Sprintf("Premise: %s\nHypothesis: %s", premise, hypothesis)
	var parsed struct {
		Entailment    float64 `json:"entailment"`
		Contradiction float64 `json:"contradiction"`
		Neutral       float64 `json:"neutral"`
	}
	if err := p.promptJSON(ctx, model, "nli", nliSystemPrompt, user, &parsed); err != nil {
		return nil, err
	}

	result := &types.NLIResult{
		Model:         model,
		Provider:      p.name,
		Entailment:    parsed.Entailment,
		Contradiction: parsed.Contradiction,
		Neutral:       parsed.Neutral,
		Label:         "neutral",
	}
	if parsed.Entailment >= parsed.Contradiction && parsed.Entailment >= parsed.Neutral {
		result.Label = "entailment"
	} else if parsed.Contradiction >= parsed.Neutral {
		result.Label = "contradiction"
	}
	return result, nil
}

// Classify scores a text against caller-supplied labels.
func (p *Provider) Classify(ctx context.Context, model, text string, labels []string) (*types.ClassificationResult, error) {
	if len(labels) == 0 {
		return nil, &errors.ProviderError{
			Provider:  p.name,
			Operation: "classify",
			Category:  errors.CategoryInvalidInput,
			Message:   "classification requires at least one candidate label",
		}
	}

	user := fmt.Sprintf("Text: %s\nCandidate labels: %s", text, strings.Join(labels, ", "))
	var parsed struct {
		Scores map[string]float64 `json:"scores"`
	}
	if err := p.promptJSON(ctx, model, "classify", classifySystemPrompt, user, &parsed); err != nil {
		return nil, err
	}

	scores := make([]float64, len(labels))
	top, best := labels[0], -1.0
	for i, label := range labels {
		scores[i] = parsed.Scores[label]
		if scores[i] > best {
			top, best = label, scores[i]
		}
	}
	return &types.ClassificationResult{
		Model:    model,
		Provider: p.name,
		Labels:   labels,
		Scores:   scores,
		Top:      top,
	}, nil
}

// Stance detects the position of a text toward a target.
func (p *Provider) Stance(ctx context.Context, model, text, target string) (*types.StanceResult, error) {
	user := fmt.Sprintf("Text: %s\nTarget: %s", text, target)
	var parsed struct {
		Favor   float64 `json:"favor"`
		Against float64 `json:"against"`
		Neutral float64 `json:"neutral"`
	}
	if err := p.promptJSON(ctx, model, "stance", stanceSystemPrompt, user, &parsed); err != nil {
		return nil, err
	}

	scores := map[string]float64{
		"favor":   parsed.Favor,
		"against": parsed.Against,
		"neutral": parsed.Neutral,
	}
	stance := "neutral"
	if parsed.Favor >= parsed.Against && parsed.Favor >= parsed.Neutral {
		stance = "favor"
	} else if parsed.Against >= parsed.Neutral {
		stance = "against"
	}
	return &types.StanceResult{
		Model:    model,
		Provider: p.name,
		Stance:   stance,
		Scores:   scores,
	}, nil
}

// promptJSON runs one deterministic chat turn and decodes the reply into
// dest. Some backends wrap JSON in a code fence, so fences are stripped
// before decoding.
func (p *Provider) promptJSON(ctx context.Context, model, operation, system, user string, dest any) error {
	temperature := 0.0
	resp, err := p.Chat(ctx, model, []types.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, &types.GenerationOptions{Temperature: &temperature})
	if err != nil {
		var pe *errors.ProviderError
		if stderrors.As(err, &pe) {
			pe.Operation = operation
		}
		return err
	}

	raw := strings.TrimSpace(resp.Content)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), dest); err != nil {
		return &errors.ProviderError{
			Provider:  p.name,
			Operation: operation,
			Category:  errors.CategoryEmptyResponse,
			Message:   fmt.Sprintf("unparseable %s reply: %v", operation, err),
			Err:       err,
		}
	}
	return nil
}
