package models

import (
	"time"

	"gorm.io/datatypes"
)

type DifficultyLevel string

const (
	DifficultyEasy   DifficultyLevel = "easy"
	DifficultyMedium DifficultyLevel = "medium"
	DifficultyHard   DifficultyLevel = "hard"
)

// Question is a single exam item as delivered by the question source.
// CorrectAnswer is the index into Options.
type Question struct {
	ID            string          `json:"id"`
	Text          string          `json:"text" validate:"required"`
	Options       []string        `json:"options" validate:"required,min=2"`
	CorrectAnswer int             `json:"correct_answer" validate:"min=0"`
	Category      string          `json:"category"`
	Difficulty    DifficultyLevel `json:"difficulty" validate:"omitempty,difficulty_level"`
	Explanation   string          `json:"explanation"`
	References    []string        `json:"references"`
}

// IsCorrect reports whether the given option index matches the answer key.
func (q *Question) IsCorrect(optionIndex int) bool {
	return optionIndex == q.CorrectAnswer
}

// QuestionRecord is the stored form of a question bank item.
type QuestionRecord struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	QuestionID    string          `json:"question_id" gorm:"uniqueIndex;size:36;not null"`
	Text          string          `json:"text" gorm:"type:text;not null"`
	Options       datatypes.JSON  `json:"options" gorm:"type:jsonb"` // []string
	CorrectAnswer int             `json:"correct_answer" gorm:"not null"`
	Category      string          `json:"category" gorm:"size:100;index"`
	Difficulty    DifficultyLevel `json:"difficulty" gorm:"size:16;index"`
	Explanation   string          `json:"explanation" gorm:"type:text"`
	References    datatypes.JSON  `json:"references" gorm:"type:jsonb"` // []string

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (QuestionRecord) TableName() string {
	return "questions"
}
