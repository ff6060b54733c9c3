// Package types defines configuration structures for the gateway.
package types

import (
	"fmt"
	"time"
)

// Config is the full gateway configuration tree.
type Config struct {
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
	Retry     RetryPolicy     `json:"retry" mapstructure:"retry"`
	Manager   ManagerConfig   `json:"manager" mapstructure:"manager"`
	Cache     CacheConfig     `json:"cache" mapstructure:"cache"`
	Catalog   CatalogConfig   `json:"catalog" mapstructure:"catalog"`
	Providers ProvidersConfig `json:"providers" mapstructure:"providers"`
	Metrics   MetricsConfig   `json:"metrics" mapstructure:"metrics"`

	// StreamBuffer bounds the per-stream chunk buffer between the
	// producing provider and the consumer. 0 selects the default.
	StreamBuffer int `json:"stream_buffer" mapstructure:"stream_buffer"`
}

// LoggingConfig controls log level and output format.
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"` // json or text
	Output string `json:"output" mapstructure:"output"` // stdout, stderr or a file path
}

// RetryPolicy defines retry behavior for provider calls.
// MaxAttempts of 1 means no retry. The delay before attempt n (0-indexed
// retry) is min(BaseDelay * 2^n, MaxDelay); a provider-supplied retry-after
// duration overrides the computed delay.
type RetryPolicy struct {
	MaxAttempts int           `json:"max_attempts" mapstructure:"max_attempts"`
	BaseDelay   time.Duration `json:"base_delay" mapstructure:"base_delay"`
	MaxDelay    time.Duration `json:"max_delay" mapstructure:"max_delay"`
	Jitter      bool          `json:"jitter" mapstructure:"jitter"`
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Jitter:      true,
	}
}

// ManagerConfig controls the on-device model manager.
// BudgetMB of 0 means unbounded.
type ManagerConfig struct {
	BudgetMB  int                `json:"budget_mb" mapstructure:"budget_mb"`
	ModelDir  string             `json:"model_dir" mapstructure:"model_dir"`
	Models    []LocalModelConfig `json:"models" mapstructure:"models"`
}

// LocalModelConfig describes one on-device model file.
type LocalModelConfig struct {
	ID          string   `json:"id" mapstructure:"id"`
	Path        string   `json:"path" mapstructure:"path"`
	VocabPath   string   `json:"vocab_path" mapstructure:"vocab_path"`
	Family      string   `json:"family" mapstructure:"family"` // embedding or nli
	Dims        int      `json:"dims" mapstructure:"dims"`
	FootprintMB int      `json:"footprint_mb" mapstructure:"footprint_mb"`
	Aliases     []string `json:"aliases" mapstructure:"aliases"`
}

// CacheConfig controls the opt-in response cache. A zero Capacity
// disables the cache entirely: no map is allocated and no key computed.
type CacheConfig struct {
	Capacity int           `json:"capacity" mapstructure:"capacity"`
	TTL      time.Duration `json:"ttl" mapstructure:"ttl"`
	Backend  string        `json:"backend" mapstructure:"backend"` // memory or redis
	Redis    RedisConfig   `json:"redis" mapstructure:"redis"`
}

// Enabled reports whether a cache should be constructed at all.
func (c CacheConfig) Enabled() bool {
	return c.Capacity > 0 && c.TTL > 0
}

// RedisConfig holds connection settings for the redis cache backend.
type RedisConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port"`
	Password string `json:"password" mapstructure:"password"`
	Database int    `json:"database" mapstructure:"database"`
}

// CatalogConfig controls the model/preset catalog layers.
type CatalogConfig struct {
	// OverlayPath points at an optional YAML file merged on top of the
	// embedded baseline; changes to it are picked up live.
	OverlayPath string            `json:"overlay_path" mapstructure:"overlay_path"`
	Aliases     map[string]string `json:"aliases" mapstructure:"aliases"`
}

// ProvidersConfig holds remote provider settings and the registration
// order per capability. Order values reference provider names; index 0
// is the highest fallback priority.
type ProvidersConfig struct {
	Order  map[string][]string    `json:"order" mapstructure:"order"`
	OpenAI []OpenAIProviderConfig `json:"openai" mapstructure:"openai"`

	// BreakerThreshold is the number of consecutive transient failures
	// that opens a provider's circuit breaker; 0 disables breakers.
	BreakerThreshold int           `json:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `json:"breaker_cooldown" mapstructure:"breaker_cooldown"`
}

// OpenAIProviderConfig configures one OpenAI-compatible remote endpoint.
type OpenAIProviderConfig struct {
	Name    string        `json:"name" mapstructure:"name"`
	APIKey  string        `json:"api_key" mapstructure:"api_key"`
	BaseURL string        `json:"base_url" mapstructure:"base_url"`
	Models  []string      `json:"models" mapstructure:"models"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// MetricsConfig controls the prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" mapstructure:"path"`
	Port    int    `json:"port" mapstructure:"port"`
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be >= 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		return fmt.Errorf("retry delays must not be negative")
	}
	if c.Manager.BudgetMB < 0 {
		return fmt.Errorf("manager.budget_mb must not be negative, got %d", c.Manager.BudgetMB)
	}
	if c.Cache.Capacity < 0 {
		return fmt.Errorf("cache.capacity must not be negative, got %d", c.Cache.Capacity)
	}
	if c.Cache.Enabled() && c.Cache.Backend != "" && c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		return fmt.Errorf("cache.backend must be memory or redis, got %q", c.Cache.Backend)
	}
	if c.StreamBuffer < 0 {
		return fmt.Errorf("stream_buffer must not be negative, got %d", c.StreamBuffer)
	}
	for capability := range c.Providers.Order {
		if !validCapability(capability) {
			return fmt.Errorf("providers.order: unknown capability %q", capability)
		}
	}
	return nil
}

func validCapability(name string) bool {
	for _, c := range Capabilities() {
		if string(c) == name {
			return true
		}
	}
	return false
}
