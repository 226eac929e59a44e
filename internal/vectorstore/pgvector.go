package vectorstore

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type attributeMap map[string]string

func (a attributeMap) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

func (a *attributeMap) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, a)
}

type vectorEntry struct {
	ID         string          `gorm:"size:100;primaryKey"`
	Collection string          `gorm:"size:100;not null;index"`
	Content    string          `gorm:"type:text"`
	Embedding  pgvector.Vector `gorm:"type:vector(1536)"` // column dimension is fixed at migration time
	Attributes attributeMap    `gorm:"type:jsonb"`
	CreatedAt  time.Time       `gorm:"autoCreateTime"`
}

func (vectorEntry) TableName() string {
	return "vector_entries"
}

// vectorDims matches the vector(1536) column. Postgres rejects other widths
// at insert time; checking here surfaces the mismatch before the round trip.
const vectorDims = 1536

// PGVectorIndex stores vectors in postgres and searches with the pgvector
// cosine distance operator.
type PGVectorIndex struct {
	db         *gorm.DB
	collection string
}

func NewPGVectorIndex(db *gorm.DB, collection string) (*PGVectorIndex, error) {
	if err := db.AutoMigrate(&vectorEntry{}); err != nil {
		return nil, wrapError("migrate", err)
	}
	return &PGVectorIndex{db: db, collection: collection}, nil
}

func (p *PGVectorIndex) Upsert(ctx context.Context, entries []Entry) ([]string, error) {
	if len(entries) == 0 {
		return []string{}, nil
	}

	rows := make([]vectorEntry, len(entries))
	ids := make([]string, len(entries))
	for i, entry := range entries {
		if len(entry.Vector) != vectorDims {
			return nil, wrapError("upsert", ErrDimensionMismatch)
		}
		id := entry.ID
		if id == "" {
			id = uuid.New().String()
		}
		ids[i] = id
		rows[i] = vectorEntry{
			ID:         id,
			Collection: p.collection,
			Content:    entry.Text,
			Embedding:  pgvector.NewVector(entry.Vector),
			Attributes: attributeMap(entry.Attributes),
		}
	}

	err := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&rows).Error
	if err != nil {
		return nil, wrapError("upsert", err)
	}
	return ids, nil
}

func (p *PGVectorIndex) Search(ctx context.Context, vector []float32, k int, filter map[string]string) ([]Result, error) {
	if k <= 0 {
		k = 5
	}
	if len(vector) != vectorDims {
		return nil, wrapError("search", ErrDimensionMismatch)
	}

	var rows []struct {
		vectorEntry
		Distance float64 `gorm:"column:distance"`
	}

	query := p.db.WithContext(ctx).
		Table("vector_entries").
		Select("*, embedding <=> ? as distance", pgvector.NewVector(vector)).
		Where("collection = ?", p.collection).
		Order("distance ASC").
		Limit(k)

	for key, value := range filter {
		query = query.Where("attributes->>? = ?", key, value)
	}

	if err := query.Find(&rows).Error; err != nil {
		return nil, wrapError("search", err)
	}

	results := make([]Result, len(rows))
	for i, row := range rows {
		results[i] = Result{
			ID:         row.ID,
			Text:       row.Content,
			Attributes: map[string]string(row.Attributes),
			Distance:   row.Distance,
		}
	}
	return results, nil
}

func (p *PGVectorIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := p.db.WithContext(ctx).
		Where("collection = ? AND id IN ?", p.collection, ids).
		Delete(&vectorEntry{}).Error
	return wrapError("delete", err)
}

func (p *PGVectorIndex) Stats(ctx context.Context) (Stats, error) {
	var count int64
	err := p.db.WithContext(ctx).Model(&vectorEntry{}).
		Where("collection = ?", p.collection).
		Count(&count).Error
	if err != nil {
		return Stats{}, wrapError("stats", err)
	}
	return Stats{
		Collection: p.collection,
		Count:      count,
		Metadata:   map[string]string{"backend": "pgvector", "metric": "cosine"},
	}, nil
}
