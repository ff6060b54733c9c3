// Package errors defines the error taxonomy for the capability gateway.
package errors

import (
	"errors"
	"fmt"
	"time"

	"github.com/modelmux/modelmux/pkg/types"
)

// Category labels an error with its place in the taxonomy. Every
// category is either transient (worth retrying) or permanent.
type Category string

const (
	// Transient categories
	CategoryRateLimit     Category = "rate_limit"
	CategoryNetwork       Category = "network"
	CategoryServer        Category = "server"
	CategoryTimeout       Category = "timeout"
	CategoryEmptyResponse Category = "empty_response"

	// Permanent categories
	CategoryAuth             Category = "auth"
	CategoryInvalidInput     Category = "invalid_input"
	CategoryModelNotFound    Category = "model_not_found"
	CategoryConfig           Category = "config"
	CategoryContentFiltered  Category = "content_filtered"
	CategoryContextLength    Category = "context_length"
	CategoryUnsupportedParam Category = "unsupported_param"
)

// Transient reports whether errors in this category are worth retrying.
func (c Category) Transient() bool {
	switch c {
	case CategoryRateLimit, CategoryNetwork, CategoryServer, CategoryTimeout, CategoryEmptyResponse:
		return true
	}
	return false
}

// ErrModelNotAvailable is the sentinel a provider returns when it cannot
// serve the requested model (wrong model, insufficient resources). The
// registry treats it as "continue the fallback chain", never as a
// terminal failure.
var ErrModelNotAvailable = errors.New("model not available")

// ModelNotAvailable wraps the sentinel with context while keeping it
// matchable via errors.Is.
func ModelNotAvailable(provider, model string) error {
	return fmt.Errorf("%s: model %q: %w", provider, model, ErrModelNotAvailable)
}

// IsModelNotAvailable reports whether err carries the availability sentinel.
func IsModelNotAvailable(err error) bool {
	return errors.Is(err, ErrModelNotAvailable)
}

// ProviderError is a classified failure from one provider call.
type ProviderError struct {
	Provider   string        `json:"provider"`
	Operation  string        `json:"operation"`
	Category   Category      `json:"category"`
	StatusCode int           `json:"status_code,omitempty"`
	Message    string        `json:"message"`
	RetryAfter time.Duration `json:"retry_after,omitempty"` // provider-suggested delay, 0 if absent
	Err        error         `json:"-"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s failed: %s (category: %s)", e.Provider, e.Operation, e.Message, e.Category)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Transient reports whether the wrapped failure is worth retrying.
func (e *ProviderError) Transient() bool {
	return e.Category.Transient()
}

// IsTransient reports whether err is classified transient. Errors that
// never passed through classification count as permanent.
func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient()
	}
	return false
}

// NoProviderError is returned when every entry of a fallback chain has
// been exhausted for a capability call.
type NoProviderError struct {
	Capability types.Capability
	Model      string
	Last       error // last observed transient or availability error
}

func (e *NoProviderError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("no provider available for %s (model %q): %v", e.Capability, e.Model, e.Last)
	}
	return fmt.Sprintf("no provider available for %s (model %q)", e.Capability, e.Model)
}

func (e *NoProviderError) Unwrap() error {
	return e.Last
}

// PresetNotFoundError is returned when a well-formed symbolic reference
// names an unknown tier or capability.
type PresetNotFoundError struct {
	Tier       string
	Capability string
}

func (e *PresetNotFoundError) Error() string {
	return fmt.Sprintf("preset not found: tier %q, capability %q", e.Tier, e.Capability)
}

// MalformedReferenceError is returned for symbolic references missing a
// mandatory part. This is a caller error, distinct from a lookup failure.
type MalformedReferenceError struct {
	Ref    string
	Reason string
}

func (e *MalformedReferenceError) Error() string {
	return fmt.Sprintf("malformed model reference %q: %s", e.Ref, e.Reason)
}

// ConfigError reports a configuration problem, such as an alias cycle.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Message
}
