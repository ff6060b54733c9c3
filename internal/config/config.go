// Package config provides configuration loading for modelmux.
package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/modelmux/modelmux/pkg/types"
)

// Manager handles configuration loading and live reload.
type Manager struct {
	config *types.Config
	viper  *viper.Viper
}

// NewManager creates a new configuration manager.
func NewManager() *Manager {
	return &Manager{
		viper: viper.New(),
	}
}

// Load reads configuration from file, environment and defaults, in
// rising precedence. A missing config file is not an error.
func (m *Manager) Load() error {
	m.setDefaults()

	m.viper.SetConfigName("config")
	m.viper.SetConfigType("yaml")
	m.viper.AddConfigPath("./configs")
	m.viper.AddConfigPath(".")

	m.viper.AutomaticEnv()
	m.viper.SetEnvPrefix("MODELMUX")
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := m.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config := &types.Config{}
	if err := m.viper.Unmarshal(config); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	m.config = config
	return nil
}

// LoadFile reads a specific configuration file instead of searching
// the default paths.
func (m *Manager) LoadFile(path string) error {
	m.setDefaults()

	m.viper.SetConfigFile(path)
	m.viper.AutomaticEnv()
	m.viper.SetEnvPrefix("MODELMUX")
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := m.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	config := &types.Config{}
	if err := m.viper.Unmarshal(config); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	m.config = config
	return nil
}

func (m *Manager) setDefaults() {
	// Retry defaults
	m.viper.SetDefault("retry.max_attempts", 3)
	m.viper.SetDefault("retry.base_delay", "500ms")
	m.viper.SetDefault("retry.max_delay", "30s")
	m.viper.SetDefault("retry.jitter", true)

	// Manager defaults
	m.viper.SetDefault("manager.budget_mb", 0)
	m.viper.SetDefault("manager.model_dir", "./models")

	// Cache defaults: disabled until a capacity is configured
	m.viper.SetDefault("cache.capacity", 0)
	m.viper.SetDefault("cache.ttl", "1h")
	m.viper.SetDefault("cache.backend", "memory")
	m.viper.SetDefault("cache.redis.host", "localhost")
	m.viper.SetDefault("cache.redis.port", 6379)
	m.viper.SetDefault("cache.redis.password", "")
	m.viper.SetDefault("cache.redis.database", 0)

	// Provider defaults
	m.viper.SetDefault("providers.breaker_threshold", 0)
	m.viper.SetDefault("providers.breaker_cooldown", "30s")

	// Stream defaults
	m.viper.SetDefault("stream_buffer", 16)

	// Logging defaults
	m.viper.SetDefault("logging.level", "info")
	m.viper.SetDefault("logging.format", "json")
	m.viper.SetDefault("logging.output", "stdout")

	// Metrics defaults
	m.viper.SetDefault("metrics.enabled", true)
	m.viper.SetDefault("metrics.path", "/metrics")
	m.viper.SetDefault("metrics.port", 9090)
}

// Get returns the current configuration.
func (m *Manager) Get() *types.Config {
	return m.config
}

// Watch starts watching the config file for changes.
func (m *Manager) Watch(callback func(*types.Config)) error {
	m.viper.WatchConfig()
	m.viper.OnConfigChange(func(e fsnotify.Event) {
		config := &types.Config{}
		if err := m.viper.Unmarshal(config); err != nil {
			return
		}
		if err := config.Validate(); err != nil {
			return
		}
		m.config = config
		if callback != nil {
			callback(config)
		}
	})
	return nil
}

// Validate validates the loaded configuration.
func (m *Manager) Validate() error {
	if m.config == nil {
		return fmt.Errorf("configuration not loaded")
	}
	return m.config.Validate()
}
