package models

import (
	"time"

	"gorm.io/datatypes"
)

// CategoryStats aggregates correctness for a single category or difficulty
// bucket. Total counts attempted questions only; unanswered questions are
// excluded from breakdown denominators.
type CategoryStats struct {
	Name     string  `json:"name"`
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"` // percentage
}

// QuestionResult is the per-question line of the full breakdown.
type QuestionResult struct {
	QuestionID    string          `json:"question_id"`
	Category      string          `json:"category"`
	Difficulty    DifficultyLevel `json:"difficulty"`
	SelectedIndex *int            `json:"selected_index"` // nil = unanswered
	CorrectIndex  int             `json:"correct_index"`
	IsCorrect     bool            `json:"is_correct"`
}

// QuizResult is computed exactly once when a session completes and is
// read-only afterward.
type QuizResult struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`

	Score            int `json:"score"` // percentage, rounded
	CorrectAnswers   int `json:"correct_answers"`
	IncorrectAnswers int `json:"incorrect_answers"`
	TotalQuestions   int `json:"total_questions"`

	// Accuracy is attempted-only; Score counts unanswered as incorrect.
	Accuracy       float64 `json:"accuracy"`
	CompletionRate int     `json:"completion_rate"`
	Consistency    float64 `json:"consistency"`

	CategoryBreakdown   []CategoryStats `json:"category_breakdown"`
	DifficultyBreakdown []CategoryStats `json:"difficulty_breakdown"`

	// Categories with attempted-only accuracy >= 75 / < 50 respectively.
	StrengthAreas    []string `json:"strength_areas"`
	ImprovementAreas []string `json:"improvement_areas"`

	QuestionBreakdown []QuestionResult `json:"question_breakdown"`

	TimeSpent   int       `json:"time_spent"`
	CompletedAt time.Time `json:"completed_at"`
}

// ResultRecord is the persisted mirror of a QuizResult.
type ResultRecord struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	SessionID string `json:"session_id" gorm:"uniqueIndex;size:36;not null"`
	UserID    string `json:"user_id" gorm:"index;size:64;not null"`

	Score            int     `json:"score"`
	CorrectAnswers   int     `json:"correct_answers"`
	IncorrectAnswers int     `json:"incorrect_answers"`
	TotalQuestions   int     `json:"total_questions"`
	Accuracy         float64 `json:"accuracy"`
	CompletionRate   int     `json:"completion_rate"`
	Consistency      float64 `json:"consistency"`

	CategoryBreakdown   datatypes.JSON `json:"category_breakdown" gorm:"type:jsonb"`
	DifficultyBreakdown datatypes.JSON `json:"difficulty_breakdown" gorm:"type:jsonb"`
	StrengthAreas       datatypes.JSON `json:"strength_areas" gorm:"type:jsonb"`
	ImprovementAreas    datatypes.JSON `json:"improvement_areas" gorm:"type:jsonb"`
	QuestionBreakdown   datatypes.JSON `json:"question_breakdown" gorm:"type:jsonb"`

	TimeSpent   int       `json:"time_spent"`
	CompletedAt time.Time `json:"completed_at"`
	CreatedAt   time.Time `json:"created_at"`
}

func (ResultRecord) TableName() string {
	return "quiz_results"
}
