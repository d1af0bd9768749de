// Package app builds the configured agent stack.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/SaiNageswarS/go-api-boot/odm"
	"github.com/SaiNageswarS/kb-agent/agentboot"
	"github.com/SaiNageswarS/kb-agent/appconfig"
	"github.com/SaiNageswarS/kb-agent/kb"
	"github.com/SaiNageswarS/kb-agent/llm"
	"github.com/SaiNageswarS/kb-agent/memory"
	"github.com/SaiNageswarS/kb-agent/services"
	"github.com/SaiNageswarS/kb-agent/tools"
	"github.com/SaiNageswarS/kb-agent/websearch"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

type App struct {
	Model   llm.LLMClient
	Agent   *agentboot.Agent
	Service *services.AgentService

	deps *dependencies
}

// Build connects every backend named in cfg. Call Close when done.
func Build(cfg *appconfig.AppConfig) (*App, error) {
	deps := &dependencies{cfg: cfg}

	model, err := deps.model()
	if err != nil {
		deps.close()
		return nil, fmt.Errorf("create LLM client: %w", err)
	}

	searcher, err := deps.searcher()
	if err != nil {
		deps.close()
		return nil, fmt.Errorf("create knowledge base searcher: %w", err)
	}

	store, err := deps.store()
	if err != nil {
		deps.close()
		return nil, fmt.Errorf("create session store: %w", err)
	}

	brave := websearch.NewBraveClient(cfg.BraveAPIKey)
	if !brave.Configured() {
		logger.Info("BRAVE_API_KEY not set; web search will report itself unavailable")
	}

	agent := agentboot.NewAgentBuilder().
		WithModel(model).
		WithMaxTurns(cfg.MaxAgentTurns).
		WithModelTimeout(cfg.ModelTimeout()).
		WithToolTimeout(cfg.ToolTimeout()).
		AddTool(tools.NewKnowledgeBaseTool(searcher, tools.KnowledgeBaseOptions{
			DefaultLimit:       cfg.DefaultLimit,
			RelevanceThreshold: cfg.RelevanceCutoff,
		})).
		AddTool(tools.NewWebSearchTool(brave)).
		Build()

	service := services.ProvideAgentService(agent,
		memory.NewConversationManager(store, cfg.MaxHistoryTurns),
		cfg.StoreTimeout())

	return &App{Model: model, Agent: agent, Service: service, deps: deps}, nil
}

func (a *App) Close() {
	a.deps.close()
}

// dependencies builds the configured backends and owns their connections.
type dependencies struct {
	cfg     *appconfig.AppConfig
	mongo   *mongo.Client
	closers []func()
}

func (d *dependencies) model() (llm.LLMClient, error) {
	cfg := d.cfg
	switch cfg.LLMProvider {
	case appconfig.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, errors.New("ANTHROPIC_API_KEY is required for the anthropic provider")
		}
		return llm.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.LLMModel), nil
	case appconfig.ProviderGroq:
		if cfg.GroqAPIKey == "" {
			return nil, errors.New("GROQ_API_KEY is required for the groq provider")
		}
		return llm.NewGroqClient(cfg.GroqAPIKey, cfg.LLMModel), nil
	case appconfig.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, errors.New("OPENAI_API_KEY is required for the openai provider")
		}
		return llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.LLMModel), nil
	default:
		return llm.NewOllamaClient(cfg.OllamaHost, cfg.LLMModel)
	}
}

func (d *dependencies) searcher() (kb.Searcher, error) {
	cfg := d.cfg
	embedder, err := kb.NewOllamaEmbedder(cfg.OllamaHost, cfg.EmbeddingModel)
	if err != nil {
		return nil, err
	}

	switch cfg.KBBackend {
	case appconfig.BackendMongo:
		client, err := d.mongoClient()
		if err != nil {
			return nil, err
		}
		return kb.NewMongoSearcher(
			odm.CollectionOf[kb.ChunkAnnModel](client, cfg.MongoDatabase),
			odm.CollectionOf[kb.ChunkModel](client, cfg.MongoDatabase),
			embedder), nil
	case appconfig.BackendQdrant:
		searcher, err := kb.NewQdrantSearcher(kb.QdrantConfig{
			Host:       cfg.QdrantHost,
			Port:       cfg.QdrantPort,
			APIKey:     cfg.QdrantAPIKey,
			UseTLS:     cfg.QdrantUseTLS,
			Collection: cfg.KBCollection,
		}, embedder)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, func() { searcher.Close() })
		return searcher, nil
	default:
		searcher, err := kb.NewChromemSearcher(cfg.ChromemPath, cfg.KBCollection, embedder)
		if err != nil {
			return nil, err
		}
		if searcher.Count() == 0 {
			logger.Info("Knowledge base collection is empty", zap.String("collection", cfg.KBCollection))
		}
		return searcher, nil
	}
}

func (d *dependencies) store() (memory.Store, error) {
	cfg := d.cfg
	switch cfg.SessionStore {
	case appconfig.StoreMongo:
		client, err := d.mongoClient()
		if err != nil {
			return nil, err
		}
		return memory.NewMongoStore(client, cfg.MongoDatabase), nil
	case appconfig.StoreSQLite:
		store, err := memory.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, func() { store.Close() })
		return store, nil
	default:
		return memory.NewInMemoryStore(), nil
	}
}

func (d *dependencies) mongoClient() (*mongo.Client, error) {
	if d.mongo != nil {
		return d.mongo, nil
	}
	if d.cfg.MongoURI == "" {
		return nil, errors.New("MONGO-URI is required for mongo backends")
	}

	client, err := mongo.Connect(options.Client().ApplyURI(d.cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	d.mongo = client
	d.closers = append(d.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			logger.Error("Failed to disconnect MongoDB", zap.Error(err))
		}
	})
	return client, nil
}

func (d *dependencies) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}
