package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Neerajsainii/suitcase/internal/model"
)

type QueryLogRepository struct {
	db *gorm.DB
}

func NewQueryLogRepository(db *gorm.DB) *QueryLogRepository {
	return &QueryLogRepository{db: db}
}

func (r *QueryLogRepository) Create(ctx context.Context, log *model.QueryLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *QueryLogRepository) List(ctx context.Context, userID string, limit, offset int) ([]model.QueryLog, int64, error) {
	var logs []model.QueryLog
	var total int64

	query := r.db.WithContext(ctx).Model(&model.QueryLog{}).
		Where("deleted_at IS NULL")

	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}

	query.Count(&total)
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&logs).Error
	return logs, total, err
}
