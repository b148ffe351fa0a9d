package llm

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DefaultOllamaBaseURL is Ollama's OpenAI-compatible endpoint.
const DefaultOllamaBaseURL = "http://localhost:11434/v1"

// ProviderConfig selects and configures a narrative backend.
type ProviderConfig struct {
	Provider string // "openai" or "ollama"
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// NewTextGenerator creates the TextGenerator for cfg.Provider. Both
// providers speak the chat completions protocol.
func NewTextGenerator(cfg ProviderConfig, logger *slog.Logger) (TextGenerator, error) {
	oc := OpenAIConfig{
		APIKey:       cfg.APIKey,
		Model:        cfg.Model,
		BaseURL:      cfg.BaseURL,
		SystemPrompt: NarrativeSystemPrompt,
		Temperature:  0.3,
		Timeout:      cfg.Timeout,
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm: openai provider requires an API key")
		}
		oc.Breaker.Name = "narrative-openai"
	case "ollama":
		if oc.BaseURL == "" {
			oc.BaseURL = DefaultOllamaBaseURL
		}
		if oc.Model == "" {
			oc.Model = "qwen2.5:7b"
		}
		if oc.APIKey == "" {
			oc.APIKey = "ollama"
		}
		oc.Breaker.Name = "narrative-ollama"
	default:
		return nil, fmt.Errorf("llm: unsupported provider %q", cfg.Provider)
	}
	return NewOpenAIClient(oc, logger), nil
}
