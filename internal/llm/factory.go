package llm

import (
	"fmt"
	"strings"

	"chat-assist/internal/config"
)

// NewClient builds the completion client selected by configuration.
func NewClient(cfg *config.Config) (Client, error) {
	switch strings.ToLower(string(cfg.LLMProvider)) {
	case string(config.ProviderOpenAI):
		return NewOpenAI(
			cfg.OpenAIAPIKey,
			cfg.OpenAIBaseURL,
			cfg.OpenAIModel,
			cfg.Temperature,
			cfg.MaxTokens,
			cfg.OpenRouterReferrer,
			cfg.OpenRouterTitle,
		), nil
	case string(config.ProviderYandex):
		return NewYandex(cfg.YandexOAuthToken, cfg.YandexFolderID)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.LLMProvider)
	}
}
