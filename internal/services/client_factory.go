package services

import (
	"errors"
	"fmt"

	"gemchat/internal/config"
	"gemchat/internal/logger"
	"gemchat/pkg/chattypes"
)

// ErrUnknownProvider is returned for providers gemchat has no client for.
var ErrUnknownProvider = errors.New("unknown provider")

// NewModelClient builds the client for the configured provider.
// A missing credential is reported as ErrMissingAPIKey.
func NewModelClient(cfg *config.Config) (chattypes.ModelClient, error) {
	apiKey, err := cfg.RequireAPIKey()
	if err != nil {
		return nil, err
	}

	var client chattypes.ModelClient
	switch cfg.Provider {
	case "gemini":
		client, err = NewGeminiClient(apiKey, cfg.Model)
	case "openai":
		client, err = NewOpenAIClient(apiKey, cfg.Model)
	case "anthropic":
		client, err = NewAnthropicClient(apiKey, cfg.Model)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("Model client created", "provider", client.GetProviderName(), "model", client.GetModelName())
	return client, nil
}
