package model

// QueryLog records one retrieval query for observability. Retrieval
// correctness does not depend on it; writes are best effort.
type QueryLog struct {
	BaseModel
	QueryText  string      `gorm:"type:text;not null" json:"query_text"`
	UserID     string      `gorm:"size:100;index" json:"user_id"`
	NumResults int         `gorm:"default:0" json:"num_results"`
	SearchTime float64     `json:"search_time"`
	TotalTime  float64     `json:"total_time"`
	ChunkRefs  StringArray `gorm:"type:jsonb" json:"chunk_refs,omitempty"`
}

func (QueryLog) TableName() string {
	return "query_logs"
}
