package catalog

import (
	"fmt"
	"unicode/utf8"

	"github.com/modelmux/modelmux/pkg/types"
)

// CostEstimate is the estimated price of one request against a model's
// catalog pricing.
type CostEstimate struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	InputCost    float64 `json:"input_cost"`
	OutputCost   float64 `json:"output_cost"`
	TotalCost    float64 `json:"total_cost"`
	Currency     string  `json:"currency"`
	Model        string  `json:"model"`
}

// charsPerToken is the coarse estimation constant: roughly four
// characters per token for English text.
const charsPerToken = 4.0

// messageOverheadTokens accounts for role framing per chat message.
const messageOverheadTokens = 4

// EstimateTokens approximates the token count of a text by rune count.
func EstimateTokens(text string) int {
	runes := utf8.RuneCountInString(text)
	tokens := int(float64(runes) / charsPerToken)
	if tokens < 1 && runes > 0 {
		tokens = 1
	}
	return tokens
}

// EstimateMessagesTokens approximates the prompt token count of a chat
// conversation.
func EstimateMessagesTokens(messages []types.Message) int {
	total := 0
	for _, m := range messages {
		total += EstimateTokens(m.Content) + messageOverheadTokens
	}
	return total
}

// EstimateCost prices a request against the model's catalog pricing.
// Models without pricing metadata return an error rather than a zero
// estimate, so free local models are not mistaken for priced ones.
func (c *Catalog) EstimateCost(modelID string, inputTokens, outputTokens int) (*CostEstimate, error) {
	info, ok := c.Model(modelID)
	if !ok {
		return nil, fmt.Errorf("catalog: unknown model %q", modelID)
	}
	if info.Pricing == nil {
		return nil, fmt.Errorf("catalog: no pricing for model %q", modelID)
	}

	inputCost := float64(inputTokens) / 1000 * info.Pricing.InputPrice
	outputCost := float64(outputTokens) / 1000 * info.Pricing.OutputPrice

	return &CostEstimate{
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		InputCost:    inputCost,
		OutputCost:   outputCost,
		TotalCost:    inputCost + outputCost,
		Currency:     info.Pricing.Currency,
		Model:        modelID,
	}, nil
}
