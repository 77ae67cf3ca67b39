package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
)

type Config struct {
	Port int `env:"PORT" envDefault:"3002"`

	// LLM settings
	LLMProvider      LLMProvider   `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey     string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string        `env:"OPENAI_BASE_URL"`
	OpenAIModel      string        `env:"OPENAI_MODEL" envDefault:"gpt-3.5-turbo-0125"`
	Temperature      float64       `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	MaxTokens        int           `env:"LLM_MAX_TOKENS" envDefault:"150"`
	GatewayTimeout   time.Duration `env:"LLM_TIMEOUT" envDefault:"30s"`
	YandexOAuthToken string        `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string        `env:"YANDEX_FOLDER_ID"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	// Storage
	ChatIDsFilePath       string `env:"CHAT_IDS_FILE_PATH" envDefault:"data/chatIds.json"`
	UserDataFilePath      string `env:"USER_DATA_FILE_PATH" envDefault:"data/userData.json"`
	ChatHistoriesFilePath string `env:"CHAT_HISTORIES_FILE_PATH" envDefault:"data/allChatHistories.json"`
	KnowledgeFilePath     string `env:"KNOWLEDGE_FILE_PATH" envDefault:"data/knowledgeBase.json"`

	// Periodic history snapshot, on top of the synchronous per-append flush.
	HistoryFlushInterval time.Duration `env:"HISTORY_FLUSH_INTERVAL" envDefault:"5m"`
}

func New() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}
