package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/medquiz-pro/session-service/internal/cache"
	"github.com/medquiz-pro/session-service/internal/config"
	"github.com/medquiz-pro/session-service/internal/engine"
	"github.com/medquiz-pro/session-service/internal/events"
	"github.com/medquiz-pro/session-service/internal/models"
	"github.com/medquiz-pro/session-service/internal/repositories"
	"github.com/medquiz-pro/session-service/internal/validator"
)

// ===== REQUEST / RESPONSE TYPES =====

type StartSessionRequest struct {
	UserID           string                  `json:"user_id" validate:"required,max=64"`
	Mode             models.QuizMode         `json:"mode" validate:"required,quiz_mode"`
	QuestionCount    int                     `json:"question_count" validate:"omitempty,min=1,max=100"`
	Category         *string                 `json:"category" validate:"omitempty,max=100"`
	Difficulty       *models.DifficultyLevel `json:"difficulty" validate:"omitempty,difficulty_level"`
	TimeLimitSeconds int                     `json:"time_limit_seconds" validate:"omitempty,min=30,max=7200"`
}

type SubmitAnswerRequest struct {
	QuestionIndex  int `json:"question_index" validate:"min=0"`
	OptionIndex    int `json:"option_index" validate:"min=0"`
	ElapsedSeconds int `json:"elapsed_seconds" validate:"min=0"`
}

// SessionResponse is the read-only view handed to the UI layer.
type SessionResponse struct {
	Session       models.QuizSession     `json:"session"`
	Metadata      models.SessionMetadata `json:"metadata"`
	CurrentIndex  int                    `json:"current_index"`
	CanGoNext     bool                   `json:"can_go_next"`
	CanGoPrevious bool                   `json:"can_go_previous"`
}

// CountdownResponse carries both countdown values for direct display.
type CountdownResponse struct {
	TimeRemaining        *int                `json:"time_remaining,omitempty"`
	AutoAdvanceRemaining *int                `json:"auto_advance_remaining,omitempty"`
	AutoAdvancePhase     engine.AdvancePhase `json:"auto_advance_phase"`
}

// RecoveryStatusResponse exposes the boundary state plus a human-readable
// classification of the last fault.
type RecoveryStatusResponse struct {
	State       engine.HealthState `json:"state"`
	LastFault   *engine.Fault      `json:"last_fault,omitempty"`
	Description string             `json:"description,omitempty"`
}

// ===== SERVICE INTERFACE =====

type SessionService interface {
	Start(ctx context.Context, req *StartSessionRequest) (*SessionResponse, error)
	SubmitAnswer(ctx context.Context, sessionID string, req *SubmitAnswerRequest) (*SessionResponse, error)
	Complete(ctx context.Context, sessionID string, finalTimeSpent int) (*models.QuizResult, error)
	Abandon(ctx context.Context, sessionID, reason string) error

	Snapshot(ctx context.Context, sessionID string) (*SessionResponse, error)
	Result(ctx context.Context, sessionID string) (*models.QuizResult, error)
	Questions(ctx context.Context, sessionID string) ([]models.Question, error)

	GoToNext(ctx context.Context, sessionID string) (*SessionResponse, error)
	GoToPrevious(ctx context.Context, sessionID string) (*SessionResponse, error)
	GoToQuestion(ctx context.Context, sessionID string, index int) (*SessionResponse, error)

	Countdowns(sessionID string) *CountdownResponse
	RecoveryStatus() *RecoveryStatusResponse
	ResetRecovery()
}

type sessionService struct {
	cfg         *config.Config
	store       *engine.Store
	nav         *engine.Navigator
	timer       *engine.Timer
	autoAdvance *engine.AutoAdvance
	recovery    *engine.Recovery

	repo      repositories.Repository
	cache     cache.CacheService
	publisher events.EventPublisher
	clock     engine.Clock
	logger    *slog.Logger
	validator *validator.Validator
}

func NewSessionService(
	cfg *config.Config,
	repo repositories.Repository,
	cacheService cache.CacheService,
	publisher events.EventPublisher,
	clock engine.Clock,
	logger *slog.Logger,
	v *validator.Validator,
) SessionService {
	s := &sessionService{
		cfg:       cfg,
		repo:      repo,
		cache:     cacheService,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
		validator: v,
	}

	s.store = engine.NewStore(NewScoringService(), clock, logger)
	s.nav = engine.NewNavigator(s.store, logger)
	s.timer = engine.NewTimer(s.store, clock, logger)
	s.autoAdvance = engine.NewAutoAdvance(s.store, s.nav, clock, logger, s.autoComplete)
	s.recovery = engine.NewRecovery(engine.RecoveryPolicy{
		MaxAttempts: cfg.RecoveryMaxAttempts,
		BackoffStep: time.Duration(cfg.RecoveryBackoffMs) * time.Millisecond,
	}, clock, cacheService, logger)

	return s
}

// ===== CORE SESSION OPERATIONS =====

func (s *sessionService) Start(ctx context.Context, req *StartSessionRequest) (*SessionResponse, error) {
	s.logger.Info("Starting quiz session",
		"user_id", req.UserID,
		"mode", req.Mode)

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	defaults, err := s.modeDefaults(req.Mode)
	if err != nil {
		return nil, err
	}

	count := defaults.QuestionCount
	if req.Mode == models.ModeCustom && req.QuestionCount > 0 {
		count = req.QuestionCount
	}

	questions, err := s.repo.Question().Fetch(ctx, count, repositories.QuestionFilters{
		Category:   req.Category,
		Difficulty: req.Difficulty,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrSessionNoQuestions
	}

	autoCfg := models.AutoAdvanceConfig{
		Enabled:    defaults.AutoAdvanceEnabled,
		SkipToNext: defaults.AutoAdvanceSkip,
		DelayMs:    defaults.AutoAdvanceDelayMs,
	}

	session, err := s.store.Create(req.UserID, req.Mode, questions, autoCfg)
	if err != nil {
		return nil, err
	}

	timeLimit := defaults.TimeLimitSeconds
	if req.Mode == models.ModeCustom {
		timeLimit = req.TimeLimitSeconds
	}
	if timeLimit > 0 {
		if err := s.timer.Start(context.Background(), session.SessionID, timeLimit, s.handleExpiry); err != nil {
			s.logger.Error("Failed to start session countdown",
				"session_id", session.SessionID,
				"error", err)
		}
	}

	s.syncSession(session.SessionID, nil)
	var limitPtr *int
	if timeLimit > 0 {
		limitPtr = &timeLimit
	}
	s.publish(events.EventSessionStarted, events.SessionStartedEvent{
		SessionID:     session.SessionID,
		UserID:        session.UserID,
		Mode:          session.Mode,
		QuestionCount: session.QuestionCount(),
		TimeLimit:     limitPtr,
		StartedAt:     session.CreatedAt,
	})

	s.logger.Info("Quiz session started",
		"session_id", session.SessionID,
		"user_id", req.UserID,
		"question_count", session.QuestionCount(),
		"time_limit", timeLimit)

	return s.buildResponse(session.SessionID)
}

func (s *sessionService) SubmitAnswer(ctx context.Context, sessionID string, req *SubmitAnswerRequest) (*SessionResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	session, err := s.store.SubmitAnswer(sessionID, req.QuestionIndex, req.OptionIndex, req.ElapsedSeconds)
	if err != nil {
		return nil, err
	}

	s.autoAdvance.OnAnswerAccepted(context.Background(), sessionID, req.QuestionIndex)

	s.syncSession(sessionID, nil)
	s.publish(events.EventAnswerSubmitted, events.AnswerSubmittedEvent{
		SessionID:      sessionID,
		UserID:         session.UserID,
		QuestionIndex:  req.QuestionIndex,
		QuestionID:     session.Questions[req.QuestionIndex],
		SelectedOption: req.OptionIndex,
		ElapsedSeconds: req.ElapsedSeconds,
		Attempted:      session.AttemptedCount(),
	})

	return s.buildResponse(sessionID)
}

func (s *sessionService) Complete(ctx context.Context, sessionID string, finalTimeSpent int) (*models.QuizResult, error) {
	return s.completeSession(sessionID, finalTimeSpent, false)
}

func (s *sessionService) Abandon(ctx context.Context, sessionID, reason string) error {
	if err := s.store.Abandon(sessionID, reason); err != nil {
		return err
	}

	// Abandoning halts every countdown synchronously; no further mutations
	// are possible once the status guard sees the session inactive.
	s.timer.Stop(sessionID)
	s.autoAdvance.Cancel(sessionID)

	session, err := s.store.Snapshot(sessionID)
	if err != nil {
		return err
	}

	s.syncSession(sessionID, &reason)
	s.publish(events.EventSessionAbandoned, events.SessionAbandonedEvent{
		SessionID: sessionID,
		UserID:    session.UserID,
		Reason:    reason,
		Attempted: session.AttemptedCount(),
	})

	return nil
}

// ===== READ OPERATIONS =====

func (s *sessionService) Snapshot(ctx context.Context, sessionID string) (*SessionResponse, error) {
	return s.buildResponse(sessionID)
}

func (s *sessionService) Result(ctx context.Context, sessionID string) (*models.QuizResult, error) {
	return s.store.Result(sessionID)
}

func (s *sessionService) Questions(ctx context.Context, sessionID string) ([]models.Question, error) {
	return s.store.Questions(sessionID)
}

// ===== NAVIGATION =====

func (s *sessionService) GoToNext(ctx context.Context, sessionID string) (*SessionResponse, error) {
	if _, err := s.nav.GoToNext(sessionID); err != nil {
		return nil, err
	}
	return s.buildResponse(sessionID)
}

func (s *sessionService) GoToPrevious(ctx context.Context, sessionID string) (*SessionResponse, error) {
	if _, err := s.nav.GoToPrevious(sessionID); err != nil {
		return nil, err
	}
	return s.buildResponse(sessionID)
}

func (s *sessionService) GoToQuestion(ctx context.Context, sessionID string, index int) (*SessionResponse, error) {
	if _, err := s.nav.GoToQuestion(sessionID, index); err != nil {
		return nil, err
	}
	return s.buildResponse(sessionID)
}

// ===== COUNTDOWNS / RECOVERY =====

func (s *sessionService) Countdowns(sessionID string) *CountdownResponse {
	response := &CountdownResponse{
		AutoAdvancePhase: s.autoAdvance.Phase(sessionID),
	}

	if remaining, err := s.timer.Remaining(sessionID); err == nil {
		response.TimeRemaining = &remaining
	}
	if remaining, counting := s.autoAdvance.Countdown(sessionID); counting {
		response.AutoAdvanceRemaining = &remaining
	}

	return response
}

func (s *sessionService) RecoveryStatus() *RecoveryStatusResponse {
	state, fault := s.recovery.Status()
	response := &RecoveryStatusResponse{State: state, LastFault: fault}
	if fault != nil {
		response.Description = fault.Describe()
	}
	return response
}

// ResetRecovery returns the error boundary to healthy. Terminal faults stay
// until the user explicitly asks for this.
func (s *sessionService) ResetRecovery() {
	s.recovery.Reset()
}

// ===== COMPLETION PATHS =====

// handleExpiry is invoked by the timer subsystem exactly once at zero.
func (s *sessionService) handleExpiry(sessionID string) {
	s.publish(events.EventTimeExpired, map[string]interface{}{
		"session_id": sessionID,
	})
	if _, err := s.completeSession(sessionID, 0, true); err != nil {
		s.logger.Error("Timer-driven completion failed",
			"session_id", sessionID,
			"error", err)
	}
}

// autoComplete finishes the session when auto-advance runs past the last
// question.
func (s *sessionService) autoComplete(sessionID string) {
	if _, err := s.completeSession(sessionID, 0, false); err != nil {
		s.logger.Error("Auto-advance completion failed",
			"session_id", sessionID,
			"error", err)
	}
}

func (s *sessionService) completeSession(sessionID string, finalTimeSpent int, timedOut bool) (*models.QuizResult, error) {
	session, result, err := s.store.Complete(sessionID, finalTimeSpent)
	if err != nil {
		return nil, err
	}

	s.timer.Stop(sessionID)
	s.autoAdvance.Cancel(sessionID)

	s.syncSession(sessionID, nil)
	s.syncResult(session.UserID, result)
	s.publish(events.EventSessionCompleted, events.SessionCompletedEvent{
		SessionID:      sessionID,
		UserID:         session.UserID,
		Score:          result.Score,
		CorrectAnswers: result.CorrectAnswers,
		CompletionRate: result.CompletionRate,
		TimeSpent:      result.TimeSpent,
		TimedOut:       timedOut,
		CompletedAt:    result.CompletedAt,
	})

	return result, nil
}

// ===== BACKGROUND SYNC =====

// syncSession mirrors the local session state to the persistence service.
// The local state transition is authoritative and already happened; this
// runs in the background under the recovery boundary and never blocks the
// caller.
func (s *sessionService) syncSession(sessionID string, abandonReason *string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		session, err := s.store.Snapshot(sessionID)
		if err != nil {
			s.logger.Error("Cannot snapshot session for sync",
				"session_id", sessionID,
				"error", err)
			return
		}

		record, err := toSessionRecord(&session, abandonReason)
		if err != nil {
			s.logger.Error("Cannot encode session record",
				"session_id", sessionID,
				"error", err)
			return
		}

		err = s.recovery.Execute(ctx, sessionID, session.AttemptedCount(), session.QuestionCount(), func() error {
			return s.repo.Session().Update(ctx, record)
		})
		if err != nil {
			s.logger.Error("Session sync failed",
				"session_id", sessionID,
				"error", NewSyncError(sessionID, "session_update", err))
			return
		}

		ttl := time.Duration(s.cfg.SnapshotCacheTTLHours) * time.Hour
		if cacheErr := s.cache.Set(ctx, cache.SessionKey(sessionID), session, ttl); cacheErr != nil {
			s.logger.Warn("Failed to cache session snapshot",
				"session_id", sessionID,
				"error", cacheErr)
		}
	}()
}

func (s *sessionService) syncResult(userID string, result *models.QuizResult) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		record, err := toResultRecord(result)
		if err != nil {
			s.logger.Error("Cannot encode result record",
				"session_id", result.SessionID,
				"error", err)
			return
		}

		err = s.recovery.Execute(ctx, result.SessionID, result.TotalQuestions, result.TotalQuestions, func() error {
			return s.repo.Result().Create(ctx, record)
		})
		if err != nil {
			s.logger.Error("Result sync failed",
				"session_id", result.SessionID,
				"error", NewSyncError(result.SessionID, "result_create", err))
		}
	}()
}

// publish delivers an analytics event fire-and-forget; the engine never
// awaits the sink and never fails on its absence.
func (s *sessionService) publish(eventType events.EventType, data interface{}) {
	if s.publisher == nil {
		return
	}

	event := &events.QuizEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: s.clock.Now(),
		Source:    "session-service",
		Version:   "1.0",
		Data:      data,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.publisher.PublishQuizEvent(ctx, event); err != nil {
			s.logger.Warn("Failed to publish analytics event",
				"event_type", eventType,
				"error", err)
		}
	}()
}

// ===== HELPER FUNCTIONS =====

func (s *sessionService) modeDefaults(mode models.QuizMode) (config.ModeDefaults, error) {
	switch mode {
	case models.ModeQuick:
		return s.cfg.Quick, nil
	case models.ModeTimed:
		return s.cfg.Timed, nil
	case models.ModeCustom:
		return s.cfg.Custom, nil
	default:
		return config.ModeDefaults{}, ErrSessionInvalidMode
	}
}

func (s *sessionService) buildResponse(sessionID string) (*SessionResponse, error) {
	session, err := s.store.Snapshot(sessionID)
	if err != nil {
		return nil, err
	}
	meta, err := s.store.Metadata(sessionID)
	if err != nil {
		return nil, err
	}
	current, err := s.store.CurrentIndex(sessionID)
	if err != nil {
		return nil, err
	}

	return &SessionResponse{
		Session:       session,
		Metadata:      meta,
		CurrentIndex:  current,
		CanGoNext:     session.IsActive() && current < session.QuestionCount()-1,
		CanGoPrevious: session.IsActive() && current > 0,
	}, nil
}

func toSessionRecord(session *models.QuizSession, abandonReason *string) (*models.SessionRecord, error) {
	questions, err := json.Marshal(session.Questions)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal questions: %w", err)
	}
	answers, err := json.Marshal(session.Answers)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal answers: %w", err)
	}

	return &models.SessionRecord{
		SessionID:     session.SessionID,
		UserID:        session.UserID,
		Mode:          session.Mode,
		Questions:     datatypes.JSON(questions),
		Answers:       datatypes.JSON(answers),
		Score:         session.Score,
		TimeSpent:     session.TimeSpent,
		Status:        session.Status,
		AbandonReason: abandonReason,
		CreatedAt:     session.CreatedAt,
		CompletedAt:   session.CompletedAt,
	}, nil
}

func toResultRecord(result *models.QuizResult) (*models.ResultRecord, error) {
	categories, err := json.Marshal(result.CategoryBreakdown)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal category breakdown: %w", err)
	}
	difficulties, err := json.Marshal(result.DifficultyBreakdown)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal difficulty breakdown: %w", err)
	}
	strengths, err := json.Marshal(result.StrengthAreas)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal strength areas: %w", err)
	}
	improvements, err := json.Marshal(result.ImprovementAreas)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal improvement areas: %w", err)
	}
	breakdown, err := json.Marshal(result.QuestionBreakdown)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal question breakdown: %w", err)
	}

	return &models.ResultRecord{
		SessionID:           result.SessionID,
		UserID:              result.UserID,
		Score:               result.Score,
		CorrectAnswers:      result.CorrectAnswers,
		IncorrectAnswers:    result.IncorrectAnswers,
		TotalQuestions:      result.TotalQuestions,
		Accuracy:            result.Accuracy,
		CompletionRate:      result.CompletionRate,
		Consistency:         result.Consistency,
		CategoryBreakdown:   datatypes.JSON(categories),
		DifficultyBreakdown: datatypes.JSON(difficulties),
		StrengthAreas:       datatypes.JSON(strengths),
		ImprovementAreas:    datatypes.JSON(improvements),
		QuestionBreakdown:   datatypes.JSON(breakdown),
		TimeSpent:           result.TimeSpent,
		CompletedAt:         result.CompletedAt,
	}, nil
}
