package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/medquiz-pro/session-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type QuestionFilters struct {
	Category   *string                 `json:"category"`
	Difficulty *models.DifficultyLevel `json:"difficulty"`
	ExcludeIDs []string                `json:"exclude_ids"`
}

type SessionFilters struct {
	Status *models.SessionStatus `json:"status"`
	UserID *string               `json:"user_id"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

// ===== REPOSITORY INTERFACES =====

// QuestionSource supplies the ordered question set for a new session. The
// engine treats it as a black box and does not retry or cache on its behalf.
type QuestionSource interface {
	Fetch(ctx context.Context, count int, filters QuestionFilters) ([]models.Question, error)
}

// SessionRepository is the remote mirror of the in-memory session store.
// Writes here are background side effects; the engine never blocks on them.
type SessionRepository interface {
	Create(ctx context.Context, record *models.SessionRecord) error
	Update(ctx context.Context, record *models.SessionRecord) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.SessionRecord, error)
	List(ctx context.Context, filters SessionFilters) ([]*models.SessionRecord, int64, error)
}

// ResultRepository persists completed results.
type ResultRepository interface {
	Create(ctx context.Context, record *models.ResultRecord) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.ResultRecord, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.ResultRecord, int64, error)
}

// Repository aggregates all repository access.
type Repository interface {
	Session() SessionRepository
	Result() ResultRepository
	Question() QuestionSource
}

// IsNotFoundError reports whether err is a missing-row failure.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
