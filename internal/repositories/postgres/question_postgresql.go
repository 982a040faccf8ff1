package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/medquiz-pro/session-service/internal/models"
	"github.com/medquiz-pro/session-service/internal/repositories"
)

// QuestionPostgreSQL is a question source backed by the local question bank
// table. Production deployments may swap in a remote content service; the
// engine only sees the QuestionSource interface.
type QuestionPostgreSQL struct {
	db *gorm.DB
}

func NewQuestionPostgreSQL(db *gorm.DB) repositories.QuestionSource {
	return &QuestionPostgreSQL{db: db}
}

func (q *QuestionPostgreSQL) Fetch(ctx context.Context, count int, filters repositories.QuestionFilters) ([]models.Question, error) {
	var records []models.QuestionRecord

	query := q.db.WithContext(ctx).Model(&models.QuestionRecord{})
	if filters.Category != nil {
		query = query.Where("category = ?", *filters.Category)
	}
	if filters.Difficulty != nil {
		query = query.Where("difficulty = ?", *filters.Difficulty)
	}
	if len(filters.ExcludeIDs) > 0 {
		query = query.Where("question_id NOT IN ?", filters.ExcludeIDs)
	}

	if err := query.Order("RANDOM()").Limit(count).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch questions: %w", err)
	}

	questions := make([]models.Question, 0, len(records))
	for _, record := range records {
		question, err := toQuestion(record)
		if err != nil {
			return nil, err
		}
		questions = append(questions, question)
	}

	return questions, nil
}

func toQuestion(record models.QuestionRecord) (models.Question, error) {
	var options []string
	if len(record.Options) > 0 {
		if err := json.Unmarshal(record.Options, &options); err != nil {
			return models.Question{}, fmt.Errorf("failed to decode options for question %s: %w", record.QuestionID, err)
		}
	}

	var references []string
	if len(record.References) > 0 {
		if err := json.Unmarshal(record.References, &references); err != nil {
			return models.Question{}, fmt.Errorf("failed to decode references for question %s: %w", record.QuestionID, err)
		}
	}

	return models.Question{
		ID:            record.QuestionID,
		Text:          record.Text,
		Options:       options,
		CorrectAnswer: record.CorrectAnswer,
		Category:      record.Category,
		Difficulty:    record.Difficulty,
		Explanation:   record.Explanation,
		References:    references,
	}, nil
}
