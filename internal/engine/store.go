package engine

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/medquiz-pro/session-service/internal/models"
)

// Scorer computes the final result for a completed session. Implemented by
// the scoring service; the store only calls it once, at completion.
type Scorer interface {
	Score(session *models.QuizSession, questions []models.Question) *models.QuizResult
}

// sessionState is everything the store owns for one session. All access goes
// through the store mutex; nothing here escapes without being copied.
type sessionState struct {
	session          models.QuizSession
	questions        []models.Question
	currentIndex     int
	autoAdvanceCount int
	result           *models.QuizResult
}

// Store holds every active session and is the single serialization point for
// all session mutations. Concurrent submissions for the same index are
// rejected idempotently rather than queued.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*sessionState

	scorer Scorer
	clock  Clock
	logger *slog.Logger
}

func NewStore(scorer Scorer, clock Clock, logger *slog.Logger) *Store {
	return &Store{
		sessions: make(map[string]*sessionState),
		scorer:   scorer,
		clock:    clock,
		logger:   logger,
	}
}

// Create starts a new session over the given questions. Fails if the
// question list is empty.
func (s *Store) Create(userID string, mode models.QuizMode, questions []models.Question, autoAdvance models.AutoAdvanceConfig) (models.QuizSession, error) {
	if len(questions) == 0 {
		return models.QuizSession{}, ErrNoQuestions
	}

	questionIDs := make([]string, len(questions))
	for i, q := range questions {
		questionIDs[i] = q.ID
	}

	session := models.QuizSession{
		SessionID:   uuid.NewString(),
		UserID:      userID,
		Mode:        mode,
		Questions:   questionIDs,
		Answers:     make([]*int, len(questions)),
		Status:      models.SessionStatusActive,
		CreatedAt:   s.clock.Now(),
		AutoAdvance: autoAdvance,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.SessionID] = &sessionState{
		session:   session,
		questions: append([]models.Question(nil), questions...),
	}

	s.logger.Info("Session created",
		"session_id", session.SessionID,
		"user_id", userID,
		"mode", mode,
		"question_count", len(questions))

	return copySession(&session), nil
}

// SubmitAnswer records the answer for one question index. This is the
// exactly-once guarantee: a second submission for the same index is rejected
// with ErrAlreadyAnswered and changes nothing.
func (s *Store) SubmitAnswer(sessionID string, questionIndex, optionIndex, elapsedSeconds int) (models.QuizSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.activeState(sessionID)
	if err != nil {
		return models.QuizSession{}, err
	}

	if questionIndex < 0 || questionIndex >= len(st.session.Questions) {
		return models.QuizSession{}, fmt.Errorf("index %d: %w", questionIndex, ErrQuestionOutOfRange)
	}
	if optionIndex < 0 || optionIndex >= len(st.questions[questionIndex].Options) {
		return models.QuizSession{}, fmt.Errorf("option %d: %w", optionIndex, ErrInvalidOption)
	}
	if st.session.Answers[questionIndex] != nil {
		return models.QuizSession{}, ErrAlreadyAnswered
	}

	answer := optionIndex
	st.session.Answers[questionIndex] = &answer
	if elapsedSeconds > 0 {
		st.session.TimeSpent += elapsedSeconds
	}

	s.logger.Info("Answer submitted",
		"session_id", sessionID,
		"question_index", questionIndex,
		"attempted", st.session.AttemptedCount())

	return copySession(&st.session), nil
}

// Complete finishes an active session, computing its score and result. A
// second call finds the session no longer active and is rejected, which makes
// timer-driven completion idempotent.
func (s *Store) Complete(sessionID string, finalTimeSpent int) (models.QuizSession, *models.QuizResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.activeState(sessionID)
	if err != nil {
		return models.QuizSession{}, nil, err
	}

	if finalTimeSpent > st.session.TimeSpent {
		st.session.TimeSpent = finalTimeSpent
	}

	result := s.scorer.Score(&st.session, st.questions)

	now := s.clock.Now()
	st.session.Status = models.SessionStatusCompleted
	st.session.CompletedAt = &now
	st.session.Score = result.Score
	result.CompletedAt = now
	result.TimeSpent = st.session.TimeSpent
	st.result = result

	s.logger.Info("Session completed",
		"session_id", sessionID,
		"score", result.Score,
		"correct", result.CorrectAnswers,
		"attempted", st.session.AttemptedCount())

	resultCopy := *result
	return copySession(&st.session), &resultCopy, nil
}

// Abandon terminates an active session without scoring it.
func (s *Store) Abandon(sessionID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.activeState(sessionID)
	if err != nil {
		return err
	}

	st.session.Status = models.SessionStatusAbandoned

	s.logger.Info("Session abandoned",
		"session_id", sessionID,
		"reason", reason,
		"attempted", st.session.AttemptedCount())

	return nil
}

// Snapshot returns a read-only copy of the session.
func (s *Store) Snapshot(sessionID string) (models.QuizSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[sessionID]
	if !ok {
		return models.QuizSession{}, ErrSessionNotFound
	}
	if err := s.checkInvariants(st); err != nil {
		return models.QuizSession{}, err
	}

	return copySession(&st.session), nil
}

// Questions returns a copy of the session's question set.
func (s *Store) Questions(sessionID string) ([]models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	return append([]models.Question(nil), st.questions...), nil
}

// Metadata derives the auxiliary counters for a session.
func (s *Store) Metadata(sessionID string) (models.SessionMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[sessionID]
	if !ok {
		return models.SessionMetadata{}, ErrSessionNotFound
	}

	attempted := st.session.AttemptedCount()
	meta := models.SessionMetadata{
		QuestionsAttempted: attempted,
		AutoAdvanceCount:   st.autoAdvanceCount,
	}
	if attempted > 0 {
		avg := float64(st.session.TimeSpent) / float64(attempted)
		meta.AverageTimePerQuestion = math.Round(avg*100) / 100
	}

	return meta, nil
}

// Result returns the computed result of a completed session.
func (s *Store) Result(sessionID string) (*models.QuizResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if st.result == nil {
		return nil, ErrResultNotAvailable
	}

	resultCopy := *st.result
	return &resultCopy, nil
}

// CurrentIndex returns the session's current question position.
func (s *Store) CurrentIndex(sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[sessionID]
	if !ok {
		return 0, ErrSessionNotFound
	}

	return st.currentIndex, nil
}

// setIndex is used by the navigator; bounds are validated there under the
// same store lock via withState.
func (s *Store) withState(sessionID string, fn func(st *sessionState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if err := s.checkInvariants(st); err != nil {
		return err
	}

	return fn(st)
}

// RecordAutoAdvance bumps the automatic-transition counter for metadata.
func (s *Store) RecordAutoAdvance(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.sessions[sessionID]; ok {
		st.autoAdvanceCount++
	}
}

func (s *Store) activeState(sessionID string) (*sessionState, error) {
	st, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if err := s.checkInvariants(st); err != nil {
		return nil, err
	}
	if !st.session.IsActive() {
		return nil, ErrSessionNotActive
	}
	return st, nil
}

// checkInvariants guards every access against corrupted state; a violation
// is terminal and never retried.
func (s *Store) checkInvariants(st *sessionState) error {
	if len(st.session.Answers) != len(st.session.Questions) {
		return NewCorruptionError(st.session.SessionID, "ANSWER_LENGTH_MISMATCH",
			fmt.Sprintf("answers=%d questions=%d", len(st.session.Answers), len(st.session.Questions)))
	}
	if len(st.questions) != len(st.session.Questions) {
		return NewCorruptionError(st.session.SessionID, "QUESTION_SET_MISMATCH",
			fmt.Sprintf("loaded=%d declared=%d", len(st.questions), len(st.session.Questions)))
	}
	if st.currentIndex < 0 || st.currentIndex >= len(st.session.Questions) {
		return NewCorruptionError(st.session.SessionID, "INDEX_OUT_OF_RANGE",
			fmt.Sprintf("current_index=%d n=%d", st.currentIndex, len(st.session.Questions)))
	}
	return nil
}

func copySession(session *models.QuizSession) models.QuizSession {
	clone := *session
	clone.Questions = append([]string(nil), session.Questions...)
	clone.Answers = make([]*int, len(session.Answers))
	for i, a := range session.Answers {
		if a != nil {
			v := *a
			clone.Answers[i] = &v
		}
	}
	return clone
}
