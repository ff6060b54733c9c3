package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: debug\n")

	m := NewManager()
	require.NoError(t, m.LoadFile(path))
	require.NoError(t, m.Validate())

	cfg := m.Get()
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.BaseDelay)
	assert.True(t, cfg.Retry.Jitter)
	assert.Equal(t, 16, cfg.StreamBuffer)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.False(t, cfg.Cache.Enabled())
}

func TestLoadFile_ParsesFullTree(t *testing.T) {
	path := writeConfig(t, `
retry:
  max_attempts: 5
  base_delay: 250ms
  max_delay: 10s
  jitter: false
manager:
  budget_mb: 2048
  model_dir: /opt/models
  models:
    - id: all-minilm-l6-v2
      path: minilm.onnx
      vocab_path: vocab.txt
      family: embedding
      dims: 384
cache:
  capacity: 512
  ttl: 30m
providers:
  breaker_threshold: 4
  order:
    embed: [local, primary]
  openai:
    - name: primary
      api_key: sk-test
      models: [gpt-4o]
`)

	m := NewManager()
	require.NoError(t, m.LoadFile(path))
	require.NoError(t, m.Validate())

	cfg := m.Get()
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.False(t, cfg.Retry.Jitter)
	assert.Equal(t, 2048, cfg.Manager.BudgetMB)
	require.Len(t, cfg.Manager.Models, 1)
	assert.Equal(t, "embedding", cfg.Manager.Models[0].Family)
	assert.True(t, cfg.Cache.Enabled())
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, []string{"local", "primary"}, cfg.Providers.Order["embed"])
	require.Len(t, cfg.Providers.OpenAI, 1)
	assert.Equal(t, "primary", cfg.Providers.OpenAI[0].Name)
	assert.Equal(t, 4, cfg.Providers.BreakerThreshold)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"zero attempts", "retry:\n  max_attempts: 0\n"},
		{"negative budget", "manager:\n  budget_mb: -1\n"},
		{"bad cache backend", "cache:\n  capacity: 10\n  backend: memcached\n"},
		{"unknown capability", "providers:\n  order:\n    telepathy: [local]\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewManager()
			require.NoError(t, m.LoadFile(writeConfig(t, tc.content)))
			assert.Error(t, m.Validate())
		})
	}
}

func TestValidate_RequiresLoad(t *testing.T) {
	assert.Error(t, NewManager().Validate())
}
