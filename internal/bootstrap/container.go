package bootstrap

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"rag-assistant-be/internal/config"
	"rag-assistant-be/internal/controller"
	"rag-assistant-be/internal/model"
	"rag-assistant-be/internal/pkg/logger"
	"rag-assistant-be/internal/repository/implementation"
	"rag-assistant-be/internal/service"
	"rag-assistant-be/pkg/corpus"
	"rag-assistant-be/pkg/corpus/pgvectoridx"
	"rag-assistant-be/pkg/corpus/qdrantidx"
	"rag-assistant-be/pkg/embedding"
	"rag-assistant-be/pkg/embedding/jina"
	"rag-assistant-be/pkg/history"
	"rag-assistant-be/pkg/llm/factory"
	"rag-assistant-be/pkg/llm/openaicompat"
	"rag-assistant-be/pkg/prompts"
	"rag-assistant-be/pkg/rag/agent"
	"rag-assistant-be/pkg/rag/condenser"
	"rag-assistant-be/pkg/rag/retrieval"
	"rag-assistant-be/pkg/rag/structured"
	"rag-assistant-be/pkg/rerank"

	pktNats "rag-assistant-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController     controller.IChatController
	DocumentController controller.IDocumentController
	FeedbackController controller.IFeedbackController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	Logger logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Model Providers
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.OllamaEmbedModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaEmbedModel)
	} else {
		embeddingProvider = jina.NewJinaProvider(cfg.Keys.Jina)
		log.Printf("[INFO] Using Embedding Provider: JINA AI")
	}

	condenserProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.CondenserModel,
		condenserBaseURL(cfg),
		cfg.Keys.LLM,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize condenser LLM provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (loop=%s, condenser=%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel, cfg.Ai.CondenserModel)

	// The generation loop needs tool calling, which only the
	// OpenAI-compatible surface provides.
	loopClient := openaicompat.New(cfg.Keys.LLM, cfg.Ai.LLMBaseURL, cfg.Ai.LLMModel).Client()

	reranker := rerank.NewJinaReranker(cfg.Keys.Jina, cfg.Ai.RerankModel)

	// 4. Infrastructure
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	corpusIndex := newCorpusIndex(db, cfg)

	// 5. Prompt Resolution
	var resolver prompts.Resolver
	if cfg.Prompts.BaseURL != "" {
		resolver = prompts.NewCMSResolver(cfg.Prompts.BaseURL, time.Duration(cfg.Prompts.CacheTTLSec)*time.Second)
	} else {
		resolver = prompts.NewStaticResolver()
	}

	// 6. Conversation Core
	histStore := history.NewStore(rdb)
	cond := condenser.New(condenserProvider, resolver, cfg.Ai.CondenserModel, sysLogger)

	if err := db.AutoMigrate(&model.Feedback{}); err != nil {
		log.Printf("[WARN] Feedback table migration failed: %v", err)
	}
	feedbackRepo := implementation.NewFeedbackRepository(db)
	retrievalTool := retrieval.NewTool(embeddingProvider, corpusIndex, reranker, cfg.Corpus.HybridAlpha, 0.0, sysLogger)
	structuredTool := structured.NewTool(feedbackRepo, resolver, sysLogger)

	executor := agent.NewExecutor(loopClient, cfg.Ai.LLMModel, []agent.Tool{
		retrievalAgentTool(retrievalTool),
		structuredAgentTool(structuredTool),
	}, sysLogger)
	loop := agent.NewLoop(executor, resolver, histStore, sysLogger)

	// 7. Application Services
	chatService := service.NewChatService(cond, loop, histStore, natsPub, sysLogger)
	feedbackService := service.NewFeedbackService(feedbackRepo, sysLogger)
	documentService := service.NewDocumentService(pubSub, cfg.Keys.ChunkTopic, corpusIndex, rdb, sysLogger)

	// The ingestion worker logs per-chunk; keep it out of main logs.
	ingestLogger := logger.NewIsolatedLogger("logs/ingest.log")
	consumerService := service.NewConsumerService(pubSub, cfg.Keys.ChunkTopic, corpusIndex, embeddingProvider, rdb, natsPub, ingestLogger)

	return &Container{
		ChatController:     controller.NewChatController(chatService, sysLogger),
		DocumentController: controller.NewDocumentController(documentService),
		FeedbackController: controller.NewFeedbackController(feedbackService),
		ConsumerService:    consumerService,
		Logger:             sysLogger,
	}
}

// newCorpusIndex selects the passage index backend.
func newCorpusIndex(db *gorm.DB, cfg *config.Config) corpus.Index {
	if cfg.Corpus.Backend == "qdrant" {
		idx, err := qdrantidx.New(cfg.Corpus.QdrantHost, cfg.Corpus.QdrantPort, cfg.Corpus.CollectionName)
		if err != nil {
			log.Fatalf("[FATAL] Failed to connect to Qdrant: %v", err)
		}
		log.Printf("[INFO] Using Corpus Backend: QDRANT (%s)", cfg.Corpus.CollectionName)
		return idx
	}

	idx := pgvectoridx.New(db)
	if err := idx.AutoMigrate(); err != nil {
		log.Printf("[WARN] Corpus table migration failed: %v", err)
	}
	log.Printf("[INFO] Using Corpus Backend: PGVECTOR")
	return idx
}

func condenserBaseURL(cfg *config.Config) string {
	if cfg.Ai.LLMProvider == "ollama" {
		return cfg.Ai.OllamaBaseURL
	}
	return cfg.Ai.LLMBaseURL
}

func retrievalAgentTool(t *retrieval.Tool) agent.Tool {
	return agent.Tool{
		Name:        retrieval.ToolName,
		Description: "Search the company knowledge base for policies, procedures and internal documents. Input is a natural language question.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "The question to search for"}
			},
			"required": ["query"]
		}`),
		Run: func(ctx context.Context, arguments string) string {
			var args struct {
				Query string `json:"query"`
			}
			if err := json.Unmarshal([]byte(arguments), &args); err != nil || args.Query == "" {
				return retrieval.FailureMessage
			}
			return t.Retrieve(ctx, args.Query)
		},
	}
}

func structuredAgentTool(t *structured.Tool) agent.Tool {
	return agent.Tool{
		Name:        structured.ToolName,
		Description: "Run a read-only SQL query against the feedback database. Input is a single SELECT statement.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "The SQL statement to run"}
			},
			"required": ["query"]
		}`),
		Run: func(ctx context.Context, arguments string) string {
			var args struct {
				Query string `json:"query"`
			}
			if err := json.Unmarshal([]byte(arguments), &args); err != nil || args.Query == "" {
				return structured.FailureMessage
			}
			return t.Query(ctx, args.Query)
		},
	}
}
