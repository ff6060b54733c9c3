// Package retry provides error classification and the shared retry
// algorithm used by every capability decorator.
package retry

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/modelmux/modelmux/pkg/errors"
)

// Classify maps an arbitrary provider failure onto the error taxonomy.
// Already-classified errors pass through unchanged. Opaque errors fall
// back to a lexical heuristic and default to permanent.
func Classify(err error, provider, operation string) *errors.ProviderError {
	if err == nil {
		return nil
	}

	var pe *errors.ProviderError
	if stderrors.As(err, &pe) {
		return pe
	}

	classified := &errors.ProviderError{
		Provider:  provider,
		Operation: operation,
		Message:   err.Error(),
		Err:       err,
	}

	classified.StatusCode = extractStatusCode(err)
	classified.Category = categorize(classified.StatusCode, err)
	classified.RetryAfter = extractRetryAfter(err)

	return classified
}

// ClassifyStatus maps an HTTP status code onto a category. Message-level
// heuristics are not consulted.
func ClassifyStatus(statusCode int) errors.Category {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return errors.CategoryAuth
	case statusCode == http.StatusTooManyRequests:
		return errors.CategoryRateLimit
	case statusCode == http.StatusRequestEntityTooLarge:
		return errors.CategoryContextLength
	case statusCode == http.StatusNotFound:
		return errors.CategoryModelNotFound
	case statusCode >= 500:
		return errors.CategoryServer
	case statusCode >= 400:
		return errors.CategoryInvalidInput
	}
	return errors.CategoryInvalidInput
}

func categorize(statusCode int, err error) errors.Category {
	if statusCode != 0 {
		return ClassifyStatus(statusCode)
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.CategoryTimeout
	}

	message := strings.ToLower(err.Error())

	switch {
	case containsAny(message, "unauthorized", "invalid api key", "authentication", "forbidden"):
		return errors.CategoryAuth

	case containsAny(message, "rate limit", "too many requests", "quota exceeded"):
		return errors.CategoryRateLimit

	case containsAny(message, "context length", "maximum context", "token limit", "too many tokens"):
		return errors.CategoryContextLength

	case containsAny(message, "content filter", "content management policy", "flagged"):
		return errors.CategoryContentFiltered

	case containsAny(message, "model not found", "no such model", "unknown model", "does not exist"):
		return errors.CategoryModelNotFound

	case containsAny(message, "unsupported parameter", "parameter not supported"):
		return errors.CategoryUnsupportedParam

	case containsAny(message, "timeout", "deadline exceeded"):
		return errors.CategoryTimeout

	case containsAny(message, "connection refused", "connection reset", "network", "dns", "unreachable", "broken pipe", "eof"):
		return errors.CategoryNetwork

	case containsAny(message, "internal server error", "service unavailable", "bad gateway", "gateway timeout", "overloaded"):
		return errors.CategoryServer

	case containsAny(message, "empty response", "no choices returned"):
		return errors.CategoryEmptyResponse

	default:
		// Unclassified errors are permanent; retrying blindly on unknown
		// failure modes hides real bugs.
		return errors.CategoryInvalidInput
	}
}

func containsAny(message string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(message, kw) {
			return true
		}
	}
	return false
}

// extractStatusCode pulls an HTTP status code out of an error message
// when a provider client did not surface it structurally.
func extractStatusCode(err error) int {
	message := err.Error()

	patterns := []string{
		"status code: ",
		"status code ",
		"status: ",
		"HTTP ",
	}

	for _, pattern := range patterns {
		if idx := strings.Index(message, pattern); idx != -1 {
			start := idx + len(pattern)
			if start < len(message) {
				var statusCode int
				if _, scanErr := fmt.Sscanf(message[start:], "%d", &statusCode); scanErr == nil && statusCode >= 100 && statusCode < 600 {
					return statusCode
				}
			}
		}
	}

	return 0
}

// extractRetryAfter pulls a provider-suggested retry delay out of an
// error message. Values are assumed to be seconds.
func extractRetryAfter(err error) time.Duration {
	message := strings.ToLower(err.Error())

	patterns := []string{
		"retry after ",
		"retry-after: ",
		"try again in ",
	}

	for _, pattern := range patterns {
		if idx := strings.Index(message, pattern); idx != -1 {
			start := idx + len(pattern)
			if start < len(message) {
				var seconds int
				if _, scanErr := fmt.Sscanf(message[start:], "%d", &seconds); scanErr == nil && seconds > 0 {
					return time.Duration(seconds) * time.Second
				}
			}
		}
	}

	return 0
}
