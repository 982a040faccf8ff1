package services

import (
	"errors"
	"fmt"

	apperrors "github.com/medquiz-pro/session-service/internal/errors"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInternalError    = errors.New("internal server error")

	// Session specific errors
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionNotActive    = errors.New("session is not active")
	ErrSessionNoQuestions  = errors.New("no questions available for the requested filters")
	ErrSessionInvalidMode  = errors.New("invalid quiz mode")
	ErrSessionMissingLimit = errors.New("custom timed session requires a time limit")

	// Result specific errors
	ErrResultNotAvailable = errors.New("result is only available for completed sessions")
	ErrResultNotFound     = errors.New("result not found")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// SyncError marks a background persistence failure. The local session state
// stays authoritative; this only reports what the mirror is missing.
type SyncError struct {
	SessionID string `json:"session_id"`
	Operation string `json:"operation"`
	Cause     error  `json:"-"`
}

func (se *SyncError) Error() string {
	return fmt.Sprintf("background sync failed for session %s (%s): %v", se.SessionID, se.Operation, se.Cause)
}

func (se *SyncError) Unwrap() error {
	return se.Cause
}

// ===== ERROR HELPERS =====

// NewValidationError creates a new validation error using the shared type
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

func NewSyncError(sessionID, operation string, cause error) *SyncError {
	return &SyncError{
		SessionID: sessionID,
		Operation: operation,
		Cause:     cause,
	}
}
