package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelmux/modelmux/pkg/types"
)

func TestModelNotAvailable_MatchableThroughWrapping(t *testing.T) {
	err := ModelNotAvailable("local", "minilm")
	assert.True(t, IsModelNotAvailable(err))

	wrapped := fmt.Errorf("dispatch: %w", err)
	assert.True(t, IsModelNotAvailable(wrapped))
	assert.True(t, stderrors.Is(wrapped, ErrModelNotAvailable))

	assert.Contains(t, err.Error(), "local")
	assert.Contains(t, err.Error(), "minilm")
}

func TestIsTransient(t *testing.T) {
	transient := &ProviderError{Provider: "p", Category: CategoryNetwork}
	assert.True(t, IsTransient(transient))
	assert.True(t, IsTransient(fmt.Errorf("wrapped: %w", transient)))

	permanent := &ProviderError{Provider: "p", Category: CategoryAuth}
	assert.False(t, IsTransient(permanent))

	// Unclassified errors count as permanent.
	assert.False(t, IsTransient(stderrors.New("mystery")))
	assert.False(t, IsTransient(nil))
}

func TestProviderError_UnwrapChain(t *testing.T) {
	cause := stderrors.New("connection reset")
	pe := &ProviderError{
		Provider:  "openai",
		Operation: "chat",
		Category:  CategoryNetwork,
		Message:   "connection reset",
		Err:       cause,
	}

	assert.True(t, stderrors.Is(pe, cause))
	assert.Contains(t, pe.Error(), "openai")
	assert.Contains(t, pe.Error(), "chat")
	assert.Contains(t, pe.Error(), "network")
}

func TestNoProviderError_CarriesLastError(t *testing.T) {
	last := ModelNotAvailable("local", "m")
	npe := &NoProviderError{Capability: types.CapabilityEmbed, Model: "m", Last: last}

	assert.True(t, IsModelNotAvailable(npe))
	assert.Contains(t, npe.Error(), "embed")

	empty := &NoProviderError{Capability: types.CapabilityChat, Model: "m"}
	assert.NotContains(t, empty.Error(), "%!v")
}

func TestReferenceErrors_Distinguishable(t *testing.T) {
	var asMalformed *MalformedReferenceError
	var asNotFound *PresetNotFoundError

	malformed := error(&MalformedReferenceError{Ref: "preset:free", Reason: "missing capability part"})
	require.True(t, stderrors.As(malformed, &asMalformed))
	assert.False(t, stderrors.As(malformed, &asNotFound))

	notFound := error(&PresetNotFoundError{Tier: "bogus", Capability: "chat"})
	require.True(t, stderrors.As(notFound, &asNotFound))
	assert.False(t, stderrors.As(notFound, &asMalformed))
}
