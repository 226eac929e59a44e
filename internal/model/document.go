package model

import (
	"time"
)

type DocumentStatus string

const (
	DocumentStatusUploaded   DocumentStatus = "uploaded"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusProcessed  DocumentStatus = "processed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Document is one ingested file. Status moves uploaded -> processing ->
// processed/failed; a failed or processed document may be sent back to
// processing by an explicit reprocess. TotalChunks is authoritative only
// once Status is processed.
type Document struct {
	BaseModel
	Title      string `gorm:"size:255;not null" json:"title"`
	FileName   string `gorm:"size:500;not null" json:"file_name"`
	ObjectName string `gorm:"size:500;uniqueIndex" json:"object_name"`
	FileSize   int64  `gorm:"not null" json:"file_size"`
	FileType   string `gorm:"size:100" json:"file_type"`

	Status              DocumentStatus `gorm:"size:20;default:'uploaded';index" json:"status"`
	ErrorMessage        string         `gorm:"type:text" json:"error_message,omitempty"`
	ProcessingStarted   *time.Time     `json:"processing_started,omitempty"`
	ProcessingCompleted *time.Time     `json:"processing_completed,omitempty"`

	NumPages    int     `gorm:"default:0" json:"num_pages"`
	TotalChunks int     `gorm:"default:0" json:"total_chunks"`
	Metadata    JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`

	UploadedBy string `gorm:"size:100;index" json:"uploaded_by"`

	// Relations
	Chunks []Chunk `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"chunks,omitempty"`
}

func (Document) TableName() string {
	return "documents"
}
