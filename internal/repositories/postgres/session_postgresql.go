package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/medquiz-pro/session-service/internal/models"
	"github.com/medquiz-pro/session-service/internal/repositories"
)

type SessionPostgreSQL struct {
	db *gorm.DB
}

func NewSessionPostgreSQL(db *gorm.DB) repositories.SessionRepository {
	return &SessionPostgreSQL{db: db}
}

func (s *SessionPostgreSQL) Create(ctx context.Context, record *models.SessionRecord) error {
	return s.db.WithContext(ctx).Create(record).Error
}

// Update upserts by session_id so out-of-order background syncs cannot fail
// on a missing row.
func (s *SessionPostgreSQL) Update(ctx context.Context, record *models.SessionRecord) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"answers", "score", "time_spent", "status", "abandon_reason", "completed_at", "updated_at",
			}),
		}).
		Create(record).Error
}

func (s *SessionPostgreSQL) GetBySessionID(ctx context.Context, sessionID string) (*models.SessionRecord, error) {
	var record models.SessionRecord
	if err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *SessionPostgreSQL) List(ctx context.Context, filters repositories.SessionFilters) ([]*models.SessionRecord, int64, error) {
	var records []*models.SessionRecord
	var total int64

	query := s.db.WithContext(ctx).Model(&models.SessionRecord{})
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, 0, err
	}

	return records, total, nil
}
