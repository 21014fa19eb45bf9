// Package factory provides a centralized factory for creating LLM Provider
// instances by name. It imports the provider sub-packages and maps string
// names to their constructors, breaking the import cycle that would occur
// if this logic lived in the llm package directly.
package factory

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/wikiagent/llm"
	"github.com/BaSui01/wikiagent/llm/providers"
	"github.com/BaSui01/wikiagent/llm/providers/gemini"
)

// ProviderConfig is the generic configuration accepted by the factory function.
// Zero sampling values fall back to the provider defaults.
type ProviderConfig struct {
	APIKey      string        `json:"api_key" yaml:"api_key"`
	BaseURL     string        `json:"base_url" yaml:"base_url"`
	Model       string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Temperature float32       `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TopP        float32       `json:"top_p,omitempty" yaml:"top_p,omitempty"`
	TopK        int           `json:"top_k,omitempty" yaml:"top_k,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// NewProviderFromConfig creates a Provider instance based on the provider name
// and a generic ProviderConfig.
//
// Supported names: gemini, google.
func NewProviderFromConfig(name string, cfg ProviderConfig, logger *zap.Logger) (llm.Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gemini", "google", "":
		gc := providers.DefaultGeminiConfig()
		gc.APIKey = cfg.APIKey
		if cfg.BaseURL != "" {
			gc.BaseURL = cfg.BaseURL
		}
		if cfg.Model != "" {
			gc.Model = cfg.Model
		}
		if cfg.Timeout > 0 {
			gc.Timeout = cfg.Timeout
		}
		if cfg.Temperature > 0 {
			gc.Temperature = cfg.Temperature
		}
		if cfg.TopP > 0 {
			gc.TopP = cfg.TopP
		}
		if cfg.TopK > 0 {
			gc.TopK = cfg.TopK
		}
		if cfg.MaxTokens > 0 {
			gc.MaxOutputTokens = cfg.MaxTokens
		}
		return gemini.NewGeminiProvider(gc, logger), nil

	default:
		return nil, fmt.Errorf("unknown provider %q: supported providers are %s",
			name, strings.Join(SupportedProviders(), ", "))
	}
}

// SupportedProviders returns the list of built-in provider names.
func SupportedProviders() []string {
	return []string{"gemini", "google"}
}
