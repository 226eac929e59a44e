package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// Server
	Host        string `mapstructure:"HOST"`
	Port        string `mapstructure:"PORT"`
	Environment string `mapstructure:"ENVIRONMENT"`
	GinMode     string `mapstructure:"GIN_MODE"`

	// Database
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// Embedding service (OpenAI compatible)
	EmbeddingAPIKey     string        `mapstructure:"EMBEDDING_API_KEY"`
	EmbeddingBaseURL    string        `mapstructure:"EMBEDDING_BASE_URL"`
	EmbeddingModel      string        `mapstructure:"EMBEDDING_MODEL"`
	EmbeddingDimensions int           `mapstructure:"EMBEDDING_DIMENSIONS"`
	EmbeddingTimeout    time.Duration `mapstructure:"EMBEDDING_TIMEOUT"`

	// Vector index
	VectorBackend  string `mapstructure:"VECTOR_BACKEND"` // "pgvector" or "memory"
	CollectionName string `mapstructure:"COLLECTION_NAME"`

	// Chunking
	ChunkSize    int `mapstructure:"CHUNK_SIZE"`
	ChunkOverlap int `mapstructure:"CHUNK_OVERLAP"`

	// Blob storage
	StorageBackend string `mapstructure:"STORAGE_BACKEND"` // "local" or "minio"
	StoragePath    string `mapstructure:"STORAGE_PATH"`
	MinIOEndpoint  string `mapstructure:"MINIO_ENDPOINT"`
	MinIOAccessKey string `mapstructure:"MINIO_ACCESS_KEY"`
	MinIOSecretKey string `mapstructure:"MINIO_SECRET_KEY"`
	MinIOBucket    string `mapstructure:"MINIO_BUCKET"`
	MinIOUseSSL    bool   `mapstructure:"MINIO_USE_SSL"`

	// Upload limits
	MaxUploadSize int64 `mapstructure:"MAX_UPLOAD_SIZE"`

	// Background processing
	WorkerCount int `mapstructure:"WORKER_COUNT"`
	QueueSize   int `mapstructure:"QUEUE_SIZE"`
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	viper.SetDefault("HOST", "0.0.0.0")
	viper.SetDefault("PORT", "8088")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("GIN_MODE", "debug")

	viper.SetDefault("DATABASE_URL", "postgres://localhost:5432/suitcase?sslmode=disable")

	viper.SetDefault("EMBEDDING_BASE_URL", "https://api.openai.com/v1")
	viper.SetDefault("EMBEDDING_MODEL", "text-embedding-3-small")
	viper.SetDefault("EMBEDDING_DIMENSIONS", 1536)
	viper.SetDefault("EMBEDDING_TIMEOUT", "60s")

	viper.SetDefault("VECTOR_BACKEND", "pgvector")
	viper.SetDefault("COLLECTION_NAME", "documents")

	viper.SetDefault("CHUNK_SIZE", 1000)
	viper.SetDefault("CHUNK_OVERLAP", 200)

	viper.SetDefault("STORAGE_BACKEND", "local")
	viper.SetDefault("STORAGE_PATH", "./storage")
	viper.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	viper.SetDefault("MINIO_BUCKET", "documents")
	viper.SetDefault("MINIO_USE_SSL", false)

	viper.SetDefault("MAX_UPLOAD_SIZE", 50*1024*1024)

	viper.SetDefault("WORKER_COUNT", 4)
	viper.SetDefault("QUEUE_SIZE", 128)

	// Missing .env is fine, environment variables still apply.
	_ = viper.ReadInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
