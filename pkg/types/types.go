// Package types defines core types shared across the capability gateway.
package types

import (
	"time"
)

// Capability is a category of inference operation a provider can serve.
type Capability string

const (
	CapabilityChat     Capability = "chat"
	CapabilityGenerate Capability = "generate"
	CapabilityEmbed    Capability = "embed"
	CapabilityNLI      Capability = "nli"
	CapabilityClassify Capability = "classify"
	CapabilityStance   Capability = "stance"
)

// Capabilities lists every capability the gateway dispatches.
func Capabilities() []Capability {
	return []Capability{
		CapabilityChat,
		CapabilityGenerate,
		CapabilityEmbed,
		CapabilityNLI,
		CapabilityClassify,
		CapabilityStance,
	}
}

// Message represents a single message in a conversation.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// GenerationOptions holds sampling parameters for chat and text generation.
// Nil pointer fields mean "caller left this unset"; preset defaults only
// ever fill nil fields.
type GenerationOptions struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	Stop             []string `json:"stop,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	// PromptCache asks the provider to use its own prompt caching where
	// supported. It is passed through verbatim; the gateway never caches
	// chat or generation output itself.
	PromptCache *bool `json:"prompt_cache,omitempty"`
}

// Clone returns a shallow copy so preset defaults never mutate the
// caller's options.
func (o *GenerationOptions) Clone() *GenerationOptions {
	if o == nil {
		return &GenerationOptions{}
	}
	dup := *o
	return &dup
}

// Usage represents token usage reported by a provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse represents a completed chat turn.
type ChatResponse struct {
	ID           string    `json:"id"`
	Model        string    `json:"model"`
	Provider     string    `json:"provider"`
	Content      string    `json:"content"`
	FinishReason string    `json:"finish_reason,omitempty"`
	Usage        Usage     `json:"usage"`
	LatencyMs    int64     `json:"latency_ms"`
	Created      time.Time `json:"created"`
}

// TextResult represents a completed text-generation call.
type TextResult struct {
	Model     string `json:"model"`
	Provider  string `json:"provider"`
	Text      string `json:"text"`
	Usage     Usage  `json:"usage"`
	LatencyMs int64  `json:"latency_ms"`
}

// StreamChunk is one incremental piece of a streaming response. The
// producer sets Err on the final chunk when the stream terminated
// abnormally; Done marks normal completion.
type StreamChunk struct {
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason,omitempty"`
	Done         bool   `json:"done"`
	Err          error  `json:"-"`
}

// NLIResult holds the three-way judgement for a premise/hypothesis pair.
type NLIResult struct {
	Model         string  `json:"model"`
	Provider      string  `json:"provider"`
	Entailment    float64 `json:"entailment"`
	Contradiction float64 `json:"contradiction"`
	Neutral       float64 `json:"neutral"`
	Label         string  `json:"label"` // entailment, contradiction or neutral
}

// ClassificationResult holds zero-shot classification scores. Scores is
// index-aligned with Labels; Top names the highest-scoring label.
type ClassificationResult struct {
	Model    string    `json:"model"`
	Provider string    `json:"provider"`
	Labels   []string  `json:"labels"`
	Scores   []float64 `json:"scores"`
	Top      string    `json:"top"`
}

// StanceResult holds stance-detection output for a text against a target.
type StanceResult struct {
	Model    string             `json:"model"`
	Provider string             `json:"provider"`
	Stance   string             `json:"stance"` // favor, against or neutral
	Scores   map[string]float64 `json:"scores"`
}

// ParamAvailability describes how a model exposes one generation parameter.
type ParamAvailability string

const (
	ParamMutable     ParamAvailability = "mutable"     // adjustable, possibly within a range
	ParamFixed       ParamAvailability = "fixed"       // present but pinned to one value
	ParamPresent     ParamAvailability = "present"     // exists, no known constraints
	ParamUnsupported ParamAvailability = "unsupported" // rejected by the model
)

// ParamSpec describes a single parameter's availability and constraints.
type ParamSpec struct {
	Availability ParamAvailability `json:"availability"`
	Min          *float64          `json:"min,omitempty"`
	Max          *float64          `json:"max,omitempty"`
	Fixed        *float64          `json:"fixed,omitempty"`
}

// ModelPricing represents per-token pricing for a model, per 1K tokens.
type ModelPricing struct {
	InputPrice  float64   `json:"input_price"`
	OutputPrice float64   `json:"output_price"`
	Currency    string    `json:"currency"`
	LastUpdated time.Time `json:"last_updated"`
}

// ModelInfo is the catalog's view of one model. Callers always receive
// copies; the catalog owns the canonical entry.
type ModelInfo struct {
	ID              string               `json:"id"`
	Provider        string               `json:"provider"`
	Capabilities    []Capability         `json:"capabilities"`
	ContextWindow   int                  `json:"context_window,omitempty"`
	EmbeddingDims   int                  `json:"embedding_dims,omitempty"`
	MaxOutputTokens int                  `json:"max_output_tokens,omitempty"`
	Parameters      map[string]ParamSpec `json:"parameters,omitempty"`
	Pricing         *ModelPricing        `json:"pricing,omitempty"`
}

// HasCapability reports whether the model declares the capability.
func (m *ModelInfo) HasCapability(c Capability) bool {
	for _, got := range m.Capabilities {
		if got == c {
			return true
		}
	}
	return false
}

// Preset maps a symbolic (tier, capability) slot to a concrete model and
// optional default generation parameters.
type Preset struct {
	Model    string             `json:"model"`
	Defaults *GenerationOptions `json:"defaults,omitempty"`
}
