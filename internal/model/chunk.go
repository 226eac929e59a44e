package model

import (
	"github.com/google/uuid"
)

// Chunk is one retrievable passage of a document. VectorRef points at the
// entry in the vector index and is non-empty exactly when the chunk was
// successfully indexed.
type Chunk struct {
	BaseModel
	DocumentID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_document_chunk" json:"document_id"`
	Text       string    `gorm:"type:text;not null" json:"text"`
	ChunkIndex int       `gorm:"not null;uniqueIndex:idx_document_chunk" json:"chunk_index"`

	PageNumber *int    `json:"page_number,omitempty"`
	StartChar  *int    `json:"start_char,omitempty"`
	EndChar    *int    `json:"end_char,omitempty"`
	Metadata   JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`

	VectorRef    string `gorm:"size:100;index" json:"vector_ref"`
	EmbeddingDim int    `gorm:"default:0" json:"embedding_dim"`

	// Relations
	Document *Document `gorm:"foreignKey:DocumentID" json:"document,omitempty"`
}

func (Chunk) TableName() string {
	return "document_chunks"
}
