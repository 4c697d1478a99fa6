package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// VectorProvider selects which VectorIndex collaborator backs dense/hybrid search.
type VectorProvider string

const (
	VectorProviderRelational VectorProvider = "relational-with-vector-ext"
	VectorProviderExternal   VectorProvider = "external-hybrid"
)

type Config struct {
	MongoURI string
	DBName   string
	Port     string
	GinMode  string

	CORSOrigins []string

	APIKey string

	UploadDir    string
	MaxFileSize  int64
	AllowedTypes []string

	MaxConcurrentJobs int
	JobTimeoutMs      int
	RetryMaxAttempts  int
	RetryBaseDelayMs  int

	RRFK int

	QualityMinChars    int
	QualityNoiseWarn   float64
	QualityNoiseReject float64

	MaxChunkSize int
	ChunkOverlap int

	RateLimitReqs   int
	RateLimitWindow int

	// Redis / queue transport
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Embeddings
	EmbeddingsProvider    string // "google" (default), "openai"
	GoogleEmbeddingsModel string
	GeminiAPIKey          string
	OpenAIAPIKey          string
	OpenAIEmbeddingsModel string
	EmbeddingDimension    int
	EmbeddingsHybrid      bool
	SparseVectorDimension int

	// Vector search
	VectorProvider   VectorProvider
	QdrantURL        string
	QdrantCollection string

	// Remote folder sync
	RemoteSyncIntervalCron string
	GoogleOAuthToken       string

	// Observability
	OTelEnabled       bool
	OTelServiceName   string
	OTelCollectorAddr string

	ConverterCallbackURL string
}

func LoadConfig() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/ingestcore"),
		DBName:   getEnv("DB_NAME", "ingestcore"),
		Port:     getEnv("PORT", "8080"),
		GinMode:  getEnv("GIN_MODE", "debug"),

		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),

		APIKey: getEnv("API_KEY", ""),

		UploadDir:    getEnv("UPLOAD_DIR", "./storage"),
		MaxFileSize:  getEnvInt64("MAX_FILE_SIZE", 104857600),
		AllowedTypes: strings.Split(getEnv("ALLOWED_FILE_TYPES", "application/pdf,application/json,text/plain,text/markdown"), ","),

		MaxConcurrentJobs: getEnvInt("MAX_CONCURRENT_JOBS", 5),
		JobTimeoutMs:      getEnvInt("JOB_TIMEOUT_MS", 300000),
		RetryMaxAttempts:  getEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryBaseDelayMs:  getEnvInt("RETRY_BASE_DELAY_MS", 5000),

		RRFK: getEnvInt("RRF_K", 60),

		QualityMinChars:    getEnvInt("QUALITY_MIN_CHARS", 50),
		QualityNoiseWarn:   getEnvFloat64("QUALITY_NOISE_WARN", 0.5),
		QualityNoiseReject: getEnvFloat64("QUALITY_NOISE_REJECT", 0.8),

		MaxChunkSize: getEnvInt("MAX_CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 150),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		EmbeddingsProvider:    getEnv("EMBEDDINGS_PROVIDER", "google"),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIEmbeddingsModel: getEnv("OPENAI_EMBEDDINGS_MODEL", "text-embedding-3-small"),
		EmbeddingDimension:    getEnvInt("EMBEDDING_DIMENSION", 768),
		EmbeddingsHybrid:      getEnvBool("EMBEDDINGS_HYBRID", false),
		SparseVectorDimension: getEnvInt("SPARSE_VECTOR_DIMENSION", 10000),

		VectorProvider:   VectorProvider(getEnv("VECTOR_PROVIDER", string(VectorProviderRelational))),
		QdrantURL:        getEnv("QDRANT_URL", "localhost:6334"),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "chunks"),

		RemoteSyncIntervalCron: getEnv("REMOTE_SYNC_CRON", "*/15 * * * *"),
		GoogleOAuthToken:       getEnv("GOOGLE_OAUTH_TOKEN", ""),

		OTelEnabled:       getEnvBool("OTEL_ENABLED", false),
		OTelServiceName:   getEnv("OTEL_SERVICE_NAME", "ingestcore"),
		OTelCollectorAddr: getEnv("OTEL_COLLECTOR_ADDR", "localhost:4317"),

		ConverterCallbackURL: getEnv("CONVERTER_CALLBACK_URL", ""),
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API_KEY is required - set it in .env file")
	}

	if cfg.VectorProvider != VectorProviderRelational && cfg.VectorProvider != VectorProviderExternal {
		return nil, fmt.Errorf("VECTOR_PROVIDER must be %q or %q, got %q", VectorProviderRelational, VectorProviderExternal, cfg.VectorProvider)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
