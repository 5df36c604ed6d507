package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/teilomillet/gollm"
	"go.uber.org/zap"

	"github.com/madorolabs/madoro/config"
	"github.com/madorolabs/madoro/tools"
)

// GollmClient implements Client on top of gollm. One client serves one
// configured model; switching models builds a new client.
type GollmClient struct {
	modelKey string
	provider string
	model    string
	llm      gollm.LLM
	policy   RetryPolicy
	log      *zap.Logger
}

// GollmOption configures a GollmClient.
type GollmOption func(*GollmClient)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(policy RetryPolicy) GollmOption {
	return func(c *GollmClient) { c.policy = policy }
}

// WithLogger attaches a logger. The default is a nop logger.
func WithLogger(log *zap.Logger) GollmOption {
	return func(c *GollmClient) { c.log = log }
}

// NewGollmClient builds a client for the model key out of the loaded
// configuration. An empty key selects the configured default model.
func NewGollmClient(cfg *config.Config, modelKey string, opts ...GollmOption) (*GollmClient, error) {
	if modelKey == "" {
		modelKey = cfg.DefaultModel
	}
	mc, ok := cfg.Model(modelKey)
	if !ok {
		return nil, &ConfigurationError{ClientError: ClientError{
			Message: fmt.Sprintf("unknown model %q", modelKey),
		}}
	}

	// The provider-facing model name differs from the config key: local
	// models carry an ollama tag, hosted ones an API identifier.
	model := mc.APIModel
	if mc.Provider == "ollama" {
		model = mc.OllamaModel
	}
	if model == "" {
		model = mc.Name
	}

	gollmOpts := []gollm.ConfigOption{
		gollm.SetProvider(mc.Provider),
		gollm.SetModel(model),
		gollm.SetTemperature(mc.Temperature),
		gollm.SetMaxRetries(0), // retries are handled here, not in gollm
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if key := cfg.APIKey(mc.Provider); key != "" {
		gollmOpts = append(gollmOpts, gollm.SetAPIKey(key))
	}

	inner, err := gollm.NewLLM(gollmOpts...)
	if err != nil {
		return nil, &ConfigurationError{ClientError: ClientError{
			Message: fmt.Sprintf("create %s client for model %q", mc.Provider, modelKey),
			Cause:   err,
		}}
	}

	c := &GollmClient{
		modelKey: modelKey,
		provider: mc.Provider,
		model:    model,
		llm:      inner,
		policy:   DefaultRetryPolicy(),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ModelKey returns the configured model key this client serves.
func (c *GollmClient) ModelKey() string {
	return c.modelKey
}

// Generate sends a plain prompt with an optional system prompt.
func (c *GollmClient) Generate(ctx context.Context, prompt, system string) (*Response, error) {
	var promptOpts []gollm.PromptOption
	if system != "" {
		promptOpts = append(promptOpts, gollm.WithSystemPrompt(strings.TrimSpace(system), gollm.CacheTypeEphemeral))
	}
	p := gollm.NewPrompt(prompt, promptOpts...)

	return Retry(ctx, c.policy, func(ctx context.Context) (*Response, error) {
		c.log.Debug("model call",
			zap.String("model", c.modelKey),
			zap.Int("prompt_chars", len(prompt)))

		text, err := c.llm.Generate(ctx, p)
		if err != nil {
			return nil, c.translateError(err)
		}

		return &Response{
			Content: text,
			Model:   c.modelKey,
			// gollm exposes no usage numbers; approximate at 4 chars
			// per token.
			TokensUsed: (len(prompt) + len(system) + len(text)) / 4,
		}, nil
	})
}

// GenerateWithTools folds the tool catalog into the system prompt before
// generating.
func (c *GollmClient) GenerateWithTools(ctx context.Context, prompt string, catalog []tools.Definition, system string) (*Response, error) {
	toolPrompt := RenderToolPrompt(catalog)
	combined := toolPrompt
	if system != "" {
		combined = system + "\n\n" + toolPrompt
	}
	return c.Generate(ctx, prompt, combined)
}

// translateError classifies a gollm error into the client taxonomy by
// message content; gollm surfaces provider failures as flat errors.
func (c *GollmClient) translateError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	msgLower := strings.ToLower(msg)

	pe := ProviderError{
		ClientError: ClientError{Message: msg, Cause: err},
		Provider:    c.provider,
	}

	switch {
	case strings.Contains(msgLower, "401") || strings.Contains(msgLower, "unauthorized") || strings.Contains(msgLower, "invalid api key") || strings.Contains(msgLower, "invalid key"):
		pe.StatusCode = 401
		return &AuthenticationError{ProviderError: pe}
	case strings.Contains(msgLower, "403") || strings.Contains(msgLower, "forbidden"):
		pe.StatusCode = 403
		return &AccessDeniedError{ProviderError: pe}
	case strings.Contains(msgLower, "404") || strings.Contains(msgLower, "not found"):
		pe.StatusCode = 404
		return &NotFoundError{ProviderError: pe}
	case strings.Contains(msgLower, "429") || strings.Contains(msgLower, "rate limit"):
		pe.StatusCode = 429
		pe.Retryable = true
		return &RateLimitError{ProviderError: pe}
	case strings.Contains(msgLower, "context length") || strings.Contains(msgLower, "too many tokens"):
		pe.StatusCode = 413
		return &ContextLengthError{ProviderError: pe}
	case strings.Contains(msgLower, "500") || strings.Contains(msgLower, "internal server"):
		pe.StatusCode = 500
		pe.Retryable = true
		return &ServerError{ProviderError: pe}
	case strings.Contains(msgLower, "timeout") || strings.Contains(msgLower, "deadline exceeded"):
		return &RequestTimeoutError{ClientError: ClientError{Message: msg, Cause: err}}
	case strings.Contains(msgLower, "content filter") || strings.Contains(msgLower, "safety"):
		return &ContentFilterError{ProviderError: pe}
	default:
		pe.Retryable = true
		return &pe
	}
}
