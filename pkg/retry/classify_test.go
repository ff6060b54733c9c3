package retry

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelmux/modelmux/pkg/errors"
)

func TestClassify_PassesThroughClassifiedErrors(t *testing.T) {
	original := &errors.ProviderError{
		Provider: "openai",
		Category: errors.CategoryRateLimit,
		Message:  "slow down",
	}
	wrapped := fmt.Errorf("call failed: %w", original)

	got := Classify(wrapped, "other", "chat")
	assert.Same(t, original, got)
}

func TestClassify_LexicalCategories(t *testing.T) {
	cases := []struct {
		message  string
		category errors.Category
	}{
		{"invalid api key provided", errors.CategoryAuth},
		{"rate limit exceeded, retry after 5 seconds", errors.CategoryRateLimit},
		{"this model's maximum context length is 8192 tokens", errors.CategoryContextLength},
		{"your request was flagged by our content management policy", errors.CategoryContentFiltered},
		{"model not found: gpt-9", errors.CategoryModelNotFound},
		{"unsupported parameter: logit_bias", errors.CategoryUnsupportedParam},
		{"request timeout after 30s", errors.CategoryTimeout},
		{"connection refused", errors.CategoryNetwork},
		{"service unavailable", errors.CategoryServer},
		{"no choices returned", errors.CategoryEmptyResponse},
		{"something inexplicable happened", errors.CategoryInvalidInput},
	}

	for _, tc := range cases {
		t.Run(tc.message, func(t *testing.T) {
			got := Classify(stderrors.New(tc.message), "p", "op")
			assert.Equal(t, tc.category, got.Category)
		})
	}
}

func TestClassify_DeadlineExceededIsTimeout(t *testing.T) {
	err := fmt.Errorf("call: %w", context.DeadlineExceeded)
	got := Classify(err, "p", "op")
	assert.Equal(t, errors.CategoryTimeout, got.Category)
	assert.True(t, got.Transient())
}

func TestClassify_StatusCodeWinsOverMessage(t *testing.T) {
	// 401 in the status beats the misleading "timeout" keyword.
	err := stderrors.New("request failed, status code: 401, timeout settings ignored")
	got := Classify(err, "p", "op")
	assert.Equal(t, errors.CategoryAuth, got.Category)
	assert.Equal(t, 401, got.StatusCode)
	assert.False(t, got.Transient())
}

func TestClassify_ExtractsRetryAfter(t *testing.T) {
	err := stderrors.New("rate limit exceeded, retry after 7 seconds")
	got := Classify(err, "p", "op")
	require.Equal(t, errors.CategoryRateLimit, got.Category)
	assert.Equal(t, 7*time.Second, got.RetryAfter)
}

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status   int
		category errors.Category
	}{
		{401, errors.CategoryAuth},
		{403, errors.CategoryAuth},
		{404, errors.CategoryModelNotFound},
		{413, errors.CategoryContextLength},
		{429, errors.CategoryRateLimit},
		{400, errors.CategoryInvalidInput},
		{500, errors.CategoryServer},
		{503, errors.CategoryServer},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.category, ClassifyStatus(tc.status), "status %d", tc.status)
	}
}

func TestTransientSplit(t *testing.T) {
	transient := []errors.Category{
		errors.CategoryRateLimit, errors.CategoryNetwork, errors.CategoryServer,
		errors.CategoryTimeout, errors.CategoryEmptyResponse,
	}
	permanent := []errors.Category{
		errors.CategoryAuth, errors.CategoryInvalidInput, errors.CategoryModelNotFound,
		errors.CategoryConfig, errors.CategoryContentFiltered, errors.CategoryContextLength,
		errors.CategoryUnsupportedParam,
	}

	for _, c := range transient {
		assert.True(t, c.Transient(), "%s should be transient", c)
	}
	for _, c := range permanent {
		assert.False(t, c.Transient(), "%s should be permanent", c)
	}
}
