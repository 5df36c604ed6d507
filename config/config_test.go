package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
default_model: qwen-coder

ollama:
  base_url: http://localhost:11434
  timeout: 90

models:
  qwen-coder:
    display_name: Qwen Coder
    provider: ollama
    ollama_model: qwen2.5-coder:7b
    context_length: 32768
    temperature: 0.2
    use_for: [code, refactor]
  deepseek-chat:
    display_name: DeepSeek Chat
    provider: deepseek
    api_model: deepseek-chat

context:
  max_recent_turns: 7

api:
  deepseek:
    api_key: cfg-key-123
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "qwen-coder", cfg.DefaultModel)
	assert.Equal(t, "http://localhost:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, 90, cfg.Ollama.Timeout)
	assert.Equal(t, 7, cfg.Context.MaxRecentTurns)
	assert.Equal(t, 10, cfg.Context.MaxRelatedFiles)

	m, ok := cfg.Model("qwen-coder")
	require.True(t, ok)
	assert.Equal(t, "Qwen Coder", m.DisplayName)
	assert.Equal(t, "qwen2.5-coder:7b", m.OllamaModel)
	assert.Equal(t, 32768, m.ContextLength)
	assert.InDelta(t, 0.2, m.Temperature, 1e-9)
}

func TestLoadAppliesModelDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "models:\n  bare: {}\n"))
	require.NoError(t, err)

	m, ok := cfg.Model("bare")
	require.True(t, ok)
	assert.Equal(t, "bare", m.Name)
	assert.Equal(t, "bare", m.DisplayName)
	assert.Equal(t, "ollama", m.Provider)
	assert.Equal(t, 4096, m.ContextLength)
	assert.InDelta(t, 0.3, m.Temperature, 1e-9)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "qwen-coder", cfg.DefaultModel)
	assert.Equal(t, "http://127.0.0.1:11434", cfg.Ollama.BaseURL)
	assert.Empty(t, cfg.Models)
}

func TestLoadMalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "models: [not: a: map\n"))
	assert.Error(t, err)
}

func TestAPIKeyPrefersConfigOverEnv(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	t.Setenv("DEEPSEEK_API_KEY", "env-key")
	assert.Equal(t, "cfg-key-123", cfg.APIKey("deepseek"))

	t.Setenv("ANTHROPIC_API_KEY", "env-anthropic")
	assert.Equal(t, "env-anthropic", cfg.APIKey("anthropic"))

	assert.Empty(t, cfg.APIKey("unknown-provider"))
}

func TestModelKeysSorted(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"deepseek-chat", "qwen-coder"}, cfg.ModelKeys())
}
