package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelmux/modelmux/pkg/types"
)

func TestEstimateTokens(t *testing.T) {
	assert.Zero(t, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("hi"))
	assert.Equal(t, 10, EstimateTokens("0123456789012345678901234567890123456789"))
}

func TestEstimateMessagesTokens_IncludesOverhead(t *testing.T) {
	messages := []types.Message{
		{Role: "system", Content: "You are terse."}, // 14 runes -> 3 tokens
		{Role: "user", Content: "Hello"},            // 5 runes -> 1 token
	}
	assert.Equal(t, 3+4+1+4, EstimateMessagesTokens(messages))
}

func TestEstimateCost(t *testing.T) {
	c := newTestCatalog(t)

	est, err := c.EstimateCost("gpt-4o", 1000, 500)
	require.NoError(t, err)
	assert.InDelta(t, 0.0025, est.InputCost, 1e-9)
	assert.InDelta(t, 0.005, est.OutputCost, 1e-9)
	assert.InDelta(t, 0.0075, est.TotalCost, 1e-9)
	assert.Equal(t, "USD", est.Currency)
}

func TestEstimateCost_UnpricedModelErrors(t *testing.T) {
	c := newTestCatalog(t)

	_, err := c.EstimateCost("all-minilm-l6-v2", 100, 0)
	assert.Error(t, err)

	_, err = c.EstimateCost("no-such-model", 100, 0)
	assert.Error(t, err)
}
