package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/Neerajsainii/suitcase/internal/model"
)

// Record-store contracts consumed by the pipeline. The gorm repositories in
// internal/repository satisfy them; tests substitute in-memory fakes.

type DocumentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Document, error)
	Update(ctx context.Context, doc *model.Document) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type ChunkStore interface {
	CreateBatch(ctx context.Context, chunks []model.Chunk) error
	VectorRefsByDocumentID(ctx context.Context, documentID uuid.UUID) ([]string, error)
	DeleteByDocumentID(ctx context.Context, documentID uuid.UUID) error
}

type QueryLogStore interface {
	Create(ctx context.Context, log *model.QueryLog) error
}
