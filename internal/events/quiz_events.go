package events

import (
	"time"

	"github.com/medquiz-pro/session-service/internal/models"
)

// EventType represents the analytics events emitted by the session engine.
type EventType string

const (
	// Session lifecycle events
	EventSessionStarted   EventType = "session.started"
	EventSessionCompleted EventType = "session.completed"
	EventSessionAbandoned EventType = "session.abandoned"

	// In-session events
	EventAnswerSubmitted EventType = "session.answer_submitted"
	EventAutoAdvanced    EventType = "session.auto_advanced"
	EventTimeExpired     EventType = "session.time_expired"

	// Recovery events
	EventRecoveryRetry    EventType = "recovery.retry"
	EventRecoveryTerminal EventType = "recovery.terminal"
)

// QuizEvent is the envelope for every analytics event. Delivery is
// fire-and-forget; the engine never awaits or fails on it.
type QuizEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Event payloads

type SessionStartedEvent struct {
	SessionID     string          `json:"session_id"`
	UserID        string          `json:"user_id"`
	Mode          models.QuizMode `json:"mode"`
	QuestionCount int             `json:"question_count"`
	TimeLimit     *int            `json:"time_limit,omitempty"` // seconds
	StartedAt     time.Time       `json:"started_at"`
}

type AnswerSubmittedEvent struct {
	SessionID      string `json:"session_id"`
	UserID         string `json:"user_id"`
	QuestionIndex  int    `json:"question_index"`
	QuestionID     string `json:"question_id"`
	SelectedOption int    `json:"selected_option"`
	ElapsedSeconds int    `json:"elapsed_seconds"`
	Attempted      int    `json:"attempted"`
}

type SessionCompletedEvent struct {
	SessionID      string    `json:"session_id"`
	UserID         string    `json:"user_id"`
	Score          int       `json:"score"`
	CorrectAnswers int       `json:"correct_answers"`
	CompletionRate int       `json:"completion_rate"`
	TimeSpent      int       `json:"time_spent"`
	TimedOut       bool      `json:"timed_out"`
	CompletedAt    time.Time `json:"completed_at"`
}

type SessionAbandonedEvent struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Reason    string `json:"reason"`
	Attempted int    `json:"attempted"`
}

type AutoAdvancedEvent struct {
	SessionID string `json:"session_id"`
	FromIndex int    `json:"from_index"`
	ToIndex   int    `json:"to_index"`
}

type RecoveryEvent struct {
	SessionID string `json:"session_id"`
	Class     string `json:"class"`
	Severity  string `json:"severity"`
	Attempts  int    `json:"attempts"`
	Message   string `json:"message"`
}
