// Package config loads the models.yaml configuration: the model table,
// provider credentials, and context-pack bounds.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// ModelConfig describes one selectable model.
type ModelConfig struct {
	Name          string   `mapstructure:"name"`
	DisplayName   string   `mapstructure:"display_name"`
	Provider      string   `mapstructure:"provider"`
	ContextLength int      `mapstructure:"context_length"`
	Temperature   float64  `mapstructure:"temperature"`
	UseFor        []string `mapstructure:"use_for"`
	OllamaModel   string   `mapstructure:"ollama_model"`
	APIModel      string   `mapstructure:"api_model"`
}

// OllamaConfig holds local-inference settings.
type OllamaConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"`
}

// ContextConfig bounds the context pack.
type ContextConfig struct {
	MaxRecentTurns  int `mapstructure:"max_recent_turns"`
	MaxRelatedFiles int `mapstructure:"max_related_files"`
}

// ProviderAPIConfig holds per-provider credentials.
type ProviderAPIConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// Config is the full models.yaml contents with defaults applied.
type Config struct {
	DefaultModel string                       `mapstructure:"default_model"`
	Ollama       OllamaConfig                 `mapstructure:"ollama"`
	Models       map[string]ModelConfig       `mapstructure:"models"`
	Context      ContextConfig                `mapstructure:"context"`
	API          map[string]ProviderAPIConfig `mapstructure:"api"`
}

// envKeyByProvider maps provider names to the environment variable consulted
// when models.yaml carries no key.
var envKeyByProvider = map[string]string{
	"deepseek":  "DEEPSEEK_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("default_model", "qwen-coder")
	v.SetDefault("ollama.base_url", "http://127.0.0.1:11434")
	v.SetDefault("ollama.timeout", 120)
	v.SetDefault("context.max_recent_turns", 5)
	v.SetDefault("context.max_related_files", 10)
}

// Load reads the configuration at path. A missing file yields the defaults;
// a malformed file is an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, statErr := os.Stat(path); statErr == nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
			// File absent: run on defaults.
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Fill per-model fallbacks the way the YAML omits them.
	for key, m := range cfg.Models {
		if m.Name == "" {
			m.Name = key
		}
		if m.DisplayName == "" {
			m.DisplayName = key
		}
		if m.Provider == "" {
			m.Provider = "ollama"
		}
		if m.ContextLength == 0 {
			m.ContextLength = 4096
		}
		if m.Temperature == 0 {
			m.Temperature = 0.3
		}
		cfg.Models[key] = m
	}

	return &cfg, nil
}

// Default returns the built-in configuration without reading any file.
func Default() *Config {
	cfg, _ := Load("")
	return cfg
}

// Model resolves a model key.
func (c *Config) Model(key string) (ModelConfig, bool) {
	m, ok := c.Models[key]
	return m, ok
}

// ModelKeys returns the configured model keys sorted case-insensitively.
func (c *Config) ModelKeys() []string {
	keys := make([]string, 0, len(c.Models))
	for k := range c.Models {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return strings.ToLower(keys[i]) < strings.ToLower(keys[j])
	})
	return keys
}

// APIKey returns the credential for a provider: the configured key first,
// then the provider's conventional environment variable.
func (c *Config) APIKey(provider string) string {
	if p, ok := c.API[provider]; ok && p.APIKey != "" {
		return p.APIKey
	}
	if env, ok := envKeyByProvider[provider]; ok {
		return os.Getenv(env)
	}
	return ""
}
