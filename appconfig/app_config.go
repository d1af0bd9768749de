package appconfig

import (
	"fmt"
	"time"

	"github.com/SaiNageswarS/go-api-boot/config"
)

const (
	ProviderOllama    = "ollama"
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	BackendMongo   = "mongo"
	BackendQdrant  = "qdrant"
	BackendChromem = "chromem"

	StoreMongo  = "mongo"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

type AppConfig struct {
	config.BootConfig `ini:",extends"`

	HTTPPort string `env:"HTTP-PORT" ini:"http_port"`

	// Model
	LLMProvider     string `env:"LLM-PROVIDER" ini:"llm_provider"`
	LLMModel        string `env:"LLM-MODEL" ini:"llm_model"`
	OllamaHost      string `env:"OLLAMA_HOST" ini:"ollama_host"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY" ini:"anthropic_api_key"`
	GroqAPIKey      string `env:"GROQ_API_KEY" ini:"groq_api_key"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY" ini:"openai_api_key"`
	OpenAIBaseURL   string `env:"OPENAI-BASE-URL" ini:"openai_base_url"`

	// Web search
	BraveAPIKey string `env:"BRAVE_API_KEY" ini:"brave_api_key"`

	// Knowledge base
	KBBackend       string  `env:"KB-BACKEND" ini:"kb_backend"`
	MongoURI        string  `env:"MONGO-URI" ini:"mongo_uri"`
	MongoDatabase   string  `env:"MONGO-DATABASE" ini:"mongo_database"`
	QdrantHost      string  `env:"QDRANT-HOST" ini:"qdrant_host"`
	QdrantPort      int     `env:"QDRANT-PORT" ini:"qdrant_port"`
	QdrantAPIKey    string  `env:"QDRANT_API_KEY" ini:"qdrant_api_key"`
	QdrantUseTLS    bool    `env:"QDRANT-USE-TLS" ini:"qdrant_use_tls"`
	KBCollection    string  `env:"KB-COLLECTION" ini:"kb_collection"`
	ChromemPath     string  `env:"CHROMEM-PATH" ini:"chromem_path"`
	EmbeddingModel  string  `env:"EMBEDDING-MODEL" ini:"embedding_model"`
	DefaultLimit    int     `ini:"default_result_limit"`
	RelevanceCutoff float64 `ini:"relevance_threshold"`

	// Sessions
	SessionStore    string `env:"SESSION-STORE" ini:"session_store"`
	SQLitePath      string `env:"SQLITE-PATH" ini:"sqlite_path"`
	MaxHistoryTurns int    `ini:"max_history_turns"`

	// Agent loop
	MaxAgentTurns   int `ini:"max_agent_turns"`
	ModelTimeoutSec int `ini:"model_timeout_sec"`
	ToolTimeoutSec  int `ini:"tool_timeout_sec"`
	StoreTimeoutSec int `ini:"store_timeout_sec"`
}

// ApplyDefaults fills every unset field with its default.
func (c *AppConfig) ApplyDefaults() {
	setDefault(&c.HTTPPort, ":8081")
	setDefault(&c.LLMProvider, ProviderOllama)
	setDefault(&c.OllamaHost, "http://localhost:11434")
	setDefault(&c.KBBackend, BackendChromem)
	setDefault(&c.MongoDatabase, "kb-agent")
	setDefault(&c.QdrantHost, "localhost")
	setDefault(&c.QdrantPort, 6334)
	setDefault(&c.KBCollection, "knowledge_base")
	setDefault(&c.EmbeddingModel, "nomic-embed-text")
	setDefault(&c.DefaultLimit, 3)
	setDefault(&c.RelevanceCutoff, 0.5)
	setDefault(&c.SessionStore, StoreMemory)
	setDefault(&c.SQLitePath, "data/sessions.db")
	setDefault(&c.MaxHistoryTurns, 10)
	setDefault(&c.MaxAgentTurns, 6)
	setDefault(&c.ModelTimeoutSec, 60)
	setDefault(&c.ToolTimeoutSec, 15)
	setDefault(&c.StoreTimeoutSec, 5)
	setDefault(&c.LLMModel, defaultModels[c.LLMProvider])
}

var defaultModels = map[string]string{
	ProviderOllama:    "llama3.1",
	ProviderGroq:      "llama-3.3-70b-versatile",
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderAnthropic: "claude-3-5-sonnet-20241022",
}

// Validate rejects backend names nothing can be built for.
func (c *AppConfig) Validate() error {
	if _, ok := defaultModels[c.LLMProvider]; !ok {
		return fmt.Errorf("unknown llm_provider %q", c.LLMProvider)
	}
	switch c.KBBackend {
	case BackendMongo, BackendQdrant, BackendChromem:
	default:
		return fmt.Errorf("unknown kb_backend %q", c.KBBackend)
	}
	switch c.SessionStore {
	case StoreMongo, StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("unknown session_store %q", c.SessionStore)
	}
	return nil
}

func (c *AppConfig) ModelTimeout() time.Duration {
	return time.Duration(c.ModelTimeoutSec) * time.Second
}

func (c *AppConfig) ToolTimeout() time.Duration {
	return time.Duration(c.ToolTimeoutSec) * time.Second
}

func (c *AppConfig) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutSec) * time.Second
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}
