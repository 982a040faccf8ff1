package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/medquiz-pro/session-service/internal/models"
	"github.com/medquiz-pro/session-service/internal/repositories"
)

type ResultPostgreSQL struct {
	db *gorm.DB
}

func NewResultPostgreSQL(db *gorm.DB) repositories.ResultRepository {
	return &ResultPostgreSQL{db: db}
}

// Create is idempotent on session_id; a result is computed once per session
// and re-delivery from the background sync must not duplicate rows.
func (r *ResultPostgreSQL) Create(ctx context.Context, record *models.ResultRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoNothing: true,
		}).
		Create(record).Error
}

func (r *ResultPostgreSQL) GetBySessionID(ctx context.Context, sessionID string) (*models.ResultRecord, error) {
	var record models.ResultRecord
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *ResultPostgreSQL) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.ResultRecord, int64, error) {
	var records []*models.ResultRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&models.ResultRecord{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Order("completed_at DESC").Find(&records).Error; err != nil {
		return nil, 0, err
	}

	return records, total, nil
}
