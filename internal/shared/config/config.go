package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL       string
	OpenAIKey         string
	EmbeddingModel    string
	SummaryModel      string
	Port              string
	Env               string
	GatewayAPIURL     string
	GatewayAPIKey     string
	VectorBackend     string // "memory" or "qdrant"
	QdrantHost        string
	QdrantPort        int
	MaxChunkTokens    int
	RetrievalTopK     int
	ProviderTimeoutMs int
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ .env file not found, using system environment variables")
	}

	cfg := &Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		EmbeddingModel:    os.Getenv("EMBEDDING_MODEL"),
		SummaryModel:      os.Getenv("SUMMARY_MODEL"),
		Port:              os.Getenv("PORT"),
		Env:               os.Getenv("ENV"),
		GatewayAPIURL:     os.Getenv("GATEWAY_API_URL"),
		GatewayAPIKey:     os.Getenv("GATEWAY_API_KEY"),
		VectorBackend:     os.Getenv("VECTOR_BACKEND"),
		QdrantHost:        os.Getenv("QDRANT_HOST"),
		QdrantPort:        getEnvInt("QDRANT_PORT", 6334),
		MaxChunkTokens:    getEnvInt("MAX_CHUNK_TOKENS", 300),
		RetrievalTopK:     getEnvInt("RETRIEVAL_TOP_K", 5),
		ProviderTimeoutMs: getEnvInt("PROVIDER_TIMEOUT_MS", 15000),
	}

	// Default values
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.VectorBackend == "" {
		cfg.VectorBackend = "memory"
	}
	if cfg.QdrantHost == "" {
		cfg.QdrantHost = "localhost"
	}

	return cfg
}

func getEnvInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("⚠️ Invalid value for %s: %q, using default %d", key, raw, fallback)
		return fallback
	}
	return n
}
