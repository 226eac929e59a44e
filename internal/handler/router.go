package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Neerajsainii/suitcase/internal/blob"
	"github.com/Neerajsainii/suitcase/internal/chunker"
	"github.com/Neerajsainii/suitcase/internal/config"
	"github.com/Neerajsainii/suitcase/internal/embedding"
	"github.com/Neerajsainii/suitcase/internal/extract"
	"github.com/Neerajsainii/suitcase/internal/pipeline"
	"github.com/Neerajsainii/suitcase/internal/repository"
	"github.com/Neerajsainii/suitcase/internal/vectorstore"
)

// SetupRouter wires repositories, ports and the pipeline once at startup and
// exposes them over HTTP. The returned queue must be stopped on shutdown.
func SetupRouter(cfg *config.Config, db *gorm.DB) (*gin.Engine, *pipeline.Queue, error) {
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// Health check endpoints
	r.GET("/health", healthCheck)
	r.GET("/ready", readinessCheck)
	r.GET("/live", livenessCheck)

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":      "Suitcase Document Search",
			"version":      "1.0.0",
			"status":       "running",
			"health_check": "/health",
		})
	})

	// Repositories
	documentRepo := repository.NewDocumentRepository(db)
	chunkRepo := repository.NewChunkRepository(db)
	queryLogRepo := repository.NewQueryLogRepository(db)

	// Ports
	embedder := embedding.NewOpenAIEmbedder(
		cfg.EmbeddingAPIKey,
		cfg.EmbeddingBaseURL,
		cfg.EmbeddingModel,
		cfg.EmbeddingDimensions,
		cfg.EmbeddingTimeout,
	)

	index, err := buildIndex(cfg, db)
	if err != nil {
		return nil, nil, err
	}

	blobs, err := buildBlobStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	// Pipeline, constructed once and injected by reference
	p := pipeline.New(cfg, pipeline.Deps{
		Documents: documentRepo,
		Chunks:    chunkRepo,
		Queries:   queryLogRepo,
		Blobs:     blobs,
		Extractor: extract.NewTextExtractor(),
		Chunker:   chunker.New(cfg.ChunkSize, cfg.ChunkOverlap),
		Embedder:  embedder,
		Index:     index,
	})
	queue := pipeline.NewQueue(p, cfg.WorkerCount, cfg.QueueSize)

	// Handlers
	documentHandler := NewDocumentHandler(p, queue, documentRepo, chunkRepo, cfg)
	queryHandler := NewQueryHandler(p, queryLogRepo)
	systemHandler := NewSystemHandler(p)

	// API v1
	v1 := r.Group("/v1")
	{
		documents := v1.Group("/documents")
		{
			documents.GET("", documentHandler.List)
			documents.POST("", documentHandler.Upload)
			documents.GET("/:id", documentHandler.Get)
			documents.DELETE("/:id", documentHandler.Delete)
			documents.POST("/:id/process", documentHandler.Process)
			documents.POST("/:id/reprocess", documentHandler.Reprocess)
			documents.GET("/:id/chunks", documentHandler.ListChunks)
		}

		v1.POST("/query", queryHandler.Query)
		v1.GET("/queries", queryHandler.ListLogs)

		v1.GET("/system/info", systemHandler.Info)
	}

	return r, queue, nil
}

func buildIndex(cfg *config.Config, db *gorm.DB) (vectorstore.Index, error) {
	switch cfg.VectorBackend {
	case "memory":
		return vectorstore.NewMemoryIndex(cfg.CollectionName), nil
	case "pgvector", "":
		return vectorstore.NewPGVectorIndex(db, cfg.CollectionName)
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}

func buildBlobStore(cfg *config.Config) (blob.Store, error) {
	switch cfg.StorageBackend {
	case "minio":
		return blob.NewMinIOStore(
			cfg.MinIOEndpoint,
			cfg.MinIOAccessKey,
			cfg.MinIOSecretKey,
			cfg.MinIOBucket,
			cfg.MinIOUseSSL,
		)
	case "local", "":
		return blob.NewLocalStore(cfg.StoragePath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "suitcase",
	})
}

func readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}

func livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
