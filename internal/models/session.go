package models

import (
	"time"

	"gorm.io/datatypes"
)

type QuizMode string

const (
	ModeQuick  QuizMode = "quick"
	ModeTimed  QuizMode = "timed"
	ModeCustom QuizMode = "custom"
)

type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusAbandoned SessionStatus = "abandoned"
)

// AutoAdvanceConfig controls automatic progression after an answer is
// recorded. Immutable per mode for the lifetime of a session.
type AutoAdvanceConfig struct {
	Enabled    bool `json:"enabled"`
	SkipToNext bool `json:"skip_to_next"`
	DelayMs    int  `json:"delay_ms" validate:"min=0,max=30000"`
}

// QuizSession is one in-progress or finished quiz attempt. The engine's
// session store is the single owner of the mutable fields; everything handed
// out to callers is a copy.
type QuizSession struct {
	SessionID string   `json:"session_id"`
	UserID    string   `json:"user_id"`
	Mode      QuizMode `json:"mode"`

	// Questions is immutable after creation; Answers always has the same
	// length, with nil marking an unanswered slot.
	Questions []string `json:"questions"`
	Answers   []*int   `json:"answers"`

	Score     int           `json:"score"`
	TimeSpent int           `json:"time_spent"` // seconds
	Status    SessionStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	AutoAdvance AutoAdvanceConfig `json:"auto_advance"`
}

func (s *QuizSession) IsActive() bool {
	return s.Status == SessionStatusActive
}

// QuestionCount returns N, the fixed length of the question sequence.
func (s *QuizSession) QuestionCount() int {
	return len(s.Questions)
}

// AttemptedCount returns the number of non-nil answer slots.
func (s *QuizSession) AttemptedCount() int {
	count := 0
	for _, a := range s.Answers {
		if a != nil {
			count++
		}
	}
	return count
}

// SessionMetadata is derived bookkeeping maintained by the session store.
type SessionMetadata struct {
	QuestionsAttempted     int     `json:"questions_attempted"`
	AverageTimePerQuestion float64 `json:"average_time_per_question"`
	AutoAdvanceCount       int     `json:"auto_advance_count"`
}

// SessionRecord is the persisted mirror of a QuizSession. The in-memory
// store is authoritative; rows here are written by the background sync and
// never read back into a live session.
type SessionRecord struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	SessionID string         `json:"session_id" gorm:"uniqueIndex;size:36;not null"`
	UserID    string         `json:"user_id" gorm:"index;size:64;not null"`
	Mode      QuizMode       `json:"mode" gorm:"size:16;not null"`
	Questions datatypes.JSON `json:"questions" gorm:"type:jsonb"` // []string
	Answers   datatypes.JSON `json:"answers" gorm:"type:jsonb"`   // []*int
	Score     int            `json:"score"`
	TimeSpent int            `json:"time_spent"`
	Status    SessionStatus  `json:"status" gorm:"size:16;index"`

	AbandonReason *string `json:"abandon_reason,omitempty" gorm:"size:64"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

func (SessionRecord) TableName() string {
	return "quiz_sessions"
}
