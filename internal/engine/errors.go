package engine

import (
	"errors"
	"fmt"
)

// ===== ENGINE ERRORS =====

var (
	// Session lifecycle errors
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionNotActive = errors.New("session is not active")
	ErrNoQuestions      = errors.New("session requires at least one question")

	// Answer submission errors
	ErrQuestionOutOfRange = errors.New("question index out of range")
	ErrAlreadyAnswered    = errors.New("question already answered")
	ErrInvalidOption      = errors.New("invalid option index")

	// Result errors
	ErrResultNotAvailable = errors.New("result is only available for completed sessions")

	// Timer errors
	ErrTimerNotRunning     = errors.New("no countdown running for session")
	ErrTimerAlreadyRunning = errors.New("countdown already running for session")
)

// CorruptionError marks session state that failed an invariant check. It is
// never retried; the session cannot be silently resumed.
type CorruptionError struct {
	SessionID string `json:"session_id"`
	Code      string `json:"code"`
	Detail    string `json:"detail"`
}

func (ce *CorruptionError) Error() string {
	return fmt.Sprintf("session %s corrupted (%s): %s", ce.SessionID, ce.Code, ce.Detail)
}

func NewCorruptionError(sessionID, code, detail string) *CorruptionError {
	return &CorruptionError{
		SessionID: sessionID,
		Code:      code,
		Detail:    detail,
	}
}

// IsCorruption reports whether err is a state corruption failure.
func IsCorruption(err error) bool {
	var ce *CorruptionError
	return errors.As(err, &ce)
}
