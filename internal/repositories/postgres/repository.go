package postgres

import (
	"gorm.io/gorm"

	"github.com/medquiz-pro/session-service/internal/repositories"
)

type repository struct {
	session  repositories.SessionRepository
	result   repositories.ResultRepository
	question repositories.QuestionSource
}

// NewRepository bundles the PostgreSQL implementations behind the aggregate
// Repository interface.
func NewRepository(db *gorm.DB) repositories.Repository {
	return &repository{
		session:  NewSessionPostgreSQL(db),
		result:   NewResultPostgreSQL(db),
		question: NewQuestionPostgreSQL(db),
	}
}

func (r *repository) Session() repositories.SessionRepository {
	return r.session
}

func (r *repository) Result() repositories.ResultRepository {
	return r.result
}

func (r *repository) Question() repositories.QuestionSource {
	return r.question
}
