package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Corpus   CorpusConfig
	Ai       AIConfig
	Prompts  PromptConfig
	Keys     APIKeys
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

// CorpusConfig selects and configures the passage index backend.
type CorpusConfig struct {
	Backend        string // "pgvector" or "qdrant"
	QdrantHost     string
	QdrantPort     int
	CollectionName string
	HybridAlpha    float64
}

type AIConfig struct {
	EmbeddingProvider string // "jina" or "ollama"
	OllamaBaseURL     string
	OllamaEmbedModel  string
	LLMProvider       string // "openai" (any OpenAI-compatible endpoint) or "ollama"
	LLMBaseURL        string
	LLMModel          string
	CondenserModel    string // fast model for query rewriting
	RerankModel       string
}

// PromptConfig points at the prompt CMS. When BaseURL is empty every
// resolution falls through to the local defaults.
type PromptConfig struct {
	BaseURL     string
	CacheTTLSec int
}

type APIKeys struct {
	Jina       string
	LLM        string
	ChunkTopic string // chunk ingestion topic name
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Corpus: CorpusConfig{
			Backend:        getEnv("CORPUS_BACKEND", "pgvector"),
			QdrantHost:     getEnv("QDRANT_HOST", "localhost"),
			QdrantPort:     getEnvAsInt("QDRANT_GRPC_PORT", 6334),
			CollectionName: getEnv("CORPUS_COLLECTION", "knowledge_base_hybrid_v1"),
			HybridAlpha:    getEnvAsFloat("HYBRID_ALPHA", 0.5),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "jina"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaEmbedModel:  getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:       getEnv("LLM_PROVIDER", "openai"),
			LLMBaseURL:        getEnv("LLM_BASE_URL", "https://dashscope.aliyuncs.com/compatible-mode/v1"),
			LLMModel:          getEnv("LLM_MODEL", "qwen-max"),
			CondenserModel:    getEnv("CONDENSER_MODEL", "qwen-turbo"),
			RerankModel:       getEnv("RERANK_MODEL", "jina-reranker-v2-base-multilingual"),
		},
		Prompts: PromptConfig{
			BaseURL:     getEnv("PROMPT_CMS_URL", ""),
			CacheTTLSec: getEnvAsInt("PROMPT_CACHE_TTL", 600),
		},
		Keys: APIKeys{
			Jina:       getEnv("JINA_API_KEY", ""),
			LLM:        getEnv("LLM_API_KEY", ""),
			ChunkTopic: getEnv("EMBED_CHUNK_TOPIC_NAME", "EMBED_DOCUMENT_CHUNK"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}
