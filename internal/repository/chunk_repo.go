package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Neerajsainii/suitcase/internal/model"
)

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func (r *ChunkRepository) CreateBatch(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&chunks).Error
}

func (r *ChunkRepository) FindByDocumentID(ctx context.Context, documentID uuid.UUID, limit, offset int) ([]model.Chunk, int64, error) {
	var chunks []model.Chunk
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Chunk{}).
		Where("document_id = ? AND deleted_at IS NULL", documentID)

	query.Count(&total)
	err := query.Order("chunk_index ASC").Limit(limit).Offset(offset).Find(&chunks).Error
	return chunks, total, err
}

func (r *ChunkRepository) FindByVectorRef(ctx context.Context, vectorRef string) (*model.Chunk, error) {
	var chunk model.Chunk
	err := r.db.WithContext(ctx).Where("vector_ref = ? AND deleted_at IS NULL", vectorRef).First(&chunk).Error
	if err != nil {
		return nil, err
	}
	return &chunk, nil
}

// VectorRefsByDocumentID returns the index ids of all indexed chunks of a
// document. Used for index cleanup before chunk records go away.
func (r *ChunkRepository) VectorRefsByDocumentID(ctx context.Context, documentID uuid.UUID) ([]string, error) {
	var refs []string
	err := r.db.WithContext(ctx).Model(&model.Chunk{}).
		Where("document_id = ? AND vector_ref <> '' AND deleted_at IS NULL", documentID).
		Pluck("vector_ref", &refs).Error
	return refs, err
}

func (r *ChunkRepository) CountByDocumentID(ctx context.Context, documentID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Chunk{}).
		Where("document_id = ? AND deleted_at IS NULL", documentID).
		Count(&count).Error
	return count, err
}

func (r *ChunkRepository) DeleteByDocumentID(ctx context.Context, documentID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("document_id = ?", documentID).Delete(&model.Chunk{}).Error
}
