package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/medquiz-pro/session-service/internal/config"
	"github.com/medquiz-pro/session-service/internal/engine"
	"github.com/medquiz-pro/session-service/internal/events"
	"github.com/medquiz-pro/session-service/internal/models"
	"github.com/medquiz-pro/session-service/internal/repositories"
	"github.com/medquiz-pro/session-service/internal/utils"
	"github.com/medquiz-pro/session-service/internal/validator"
)

// ===== MOCKS =====

type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, record *models.SessionRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockSessionRepository) Update(ctx context.Context, record *models.SessionRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockSessionRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.SessionRecord, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(*models.SessionRecord), args.Error(1)
}

func (m *MockSessionRepository) List(ctx context.Context, filters repositories.SessionFilters) ([]*models.SessionRecord, int64, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]*models.SessionRecord), args.Get(1).(int64), args.Error(2)
}

type MockResultRepository struct {
	mock.Mock
}

func (m *MockResultRepository) Create(ctx context.Context, record *models.ResultRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockResultRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.ResultRecord, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(*models.ResultRecord), args.Error(1)
}

func (m *MockResultRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.ResultRecord, int64, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]*models.ResultRecord), args.Get(1).(int64), args.Error(2)
}

type MockQuestionSource struct {
	mock.Mock
}

func (m *MockQuestionSource) Fetch(ctx context.Context, count int, filters repositories.QuestionFilters) ([]models.Question, error) {
	args := m.Called(ctx, count, filters)
	return args.Get(0).([]models.Question), args.Error(1)
}

type mockRepository struct {
	sessions  *MockSessionRepository
	results   *MockResultRepository
	questions *MockQuestionSource
}

func (r *mockRepository) Session() repositories.SessionRepository { return r.sessions }
func (r *mockRepository) Result() repositories.ResultRepository   { return r.results }
func (r *mockRepository) Question() repositories.QuestionSource   { return r.questions }

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *mockCache) Get(ctx context.Context, key string, dest interface{}) error {
	args := m.Called(ctx, key, dest)
	return args.Error(0)
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *mockCache) DeletePattern(ctx context.Context, pattern string) error {
	args := m.Called(ctx, pattern)
	return args.Error(0)
}

func (m *mockCache) ClearSession(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

// ===== FIXTURE =====

func testConfig() *config.Config {
	return &config.Config{
		Quick: config.ModeDefaults{
			QuestionCount:      3,
			AutoAdvanceEnabled: true,
			AutoAdvanceSkip:    true,
			AutoAdvanceDelayMs: 1500,
		},
		Timed: config.ModeDefaults{
			QuestionCount:      3,
			TimeLimitSeconds:   1200,
			AutoAdvanceEnabled: true,
			AutoAdvanceSkip:    true,
			AutoAdvanceDelayMs: 1000,
		},
		Custom: config.ModeDefaults{
			QuestionCount: 3,
		},
		RecoveryMaxAttempts:   3,
		RecoveryBackoffMs:     1,
		SnapshotCacheTTLHours: 24,
	}
}

func testQuestions(n int) []models.Question {
	questions := make([]models.Question, n)
	for i := range questions {
		questions[i] = models.Question{
			ID:            "q",
			Text:          "Question",
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: 1,
			Category:      "Cardiology",
			Difficulty:    models.DifficultyMedium,
		}
	}
	return questions
}

type serviceFixture struct {
	service   SessionService
	repo      *mockRepository
	cache     *mockCache
	publisher *events.MockEventPublisher
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	logger := utils.NewDefaultSlogLogger()
	repo := &mockRepository{
		sessions:  &MockSessionRepository{},
		results:   &MockResultRepository{},
		questions: &MockQuestionSource{},
	}
	cacheService := &mockCache{}
	publisher := events.NewMockEventPublisher(logger)

	// Background sync calls arrive after the operation returns.
	repo.sessions.On("Update", mock.Anything, mock.Anything).Return(nil).Maybe()
	repo.results.On("Create", mock.Anything, mock.Anything).Return(nil).Maybe()
	cacheService.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	cacheService.On("ClearSession", mock.Anything, mock.Anything).Return(nil).Maybe()

	service := NewSessionService(
		testConfig(), repo, cacheService, publisher,
		engine.SystemClock(), logger, validator.New())

	return &serviceFixture{
		service:   service,
		repo:      repo,
		cache:     cacheService,
		publisher: publisher,
	}
}

func (f *serviceFixture) start(t *testing.T, mode models.QuizMode) *SessionResponse {
	t.Helper()

	f.repo.questions.On("Fetch", mock.Anything, 3, mock.Anything).
		Return(testQuestions(3), nil).Once()

	response, err := f.service.Start(context.Background(), &StartSessionRequest{
		UserID: "user-1",
		Mode:   mode,
	})
	require.NoError(t, err)
	return response
}

func eventTypes(published []events.QuizEvent) []events.EventType {
	types := make([]events.EventType, 0, len(published))
	for _, e := range published {
		types = append(types, e.Type)
	}
	return types
}

// ===== TESTS =====

func TestSessionService_Start(t *testing.T) {
	f := newServiceFixture(t)
	response := f.start(t, models.ModeQuick)

	assert.Equal(t, models.SessionStatusActive, response.Session.Status)
	assert.Equal(t, "user-1", response.Session.UserID)
	assert.Equal(t, 3, response.Session.QuestionCount())
	assert.Equal(t, 0, response.CurrentIndex)
	assert.True(t, response.CanGoNext)
	assert.False(t, response.CanGoPrevious)
	assert.True(t, response.Session.AutoAdvance.Enabled)

	assert.Eventually(t, func() bool {
		types := eventTypes(f.publisher.GetPublishedEvents())
		for _, et := range types {
			if et == events.EventSessionStarted {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSessionService_Start_InvalidMode(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Start(context.Background(), &StartSessionRequest{
		UserID: "user-1",
		Mode:   "marathon",
	})
	require.Error(t, err)
}

func TestSessionService_Start_NoQuestions(t *testing.T) {
	f := newServiceFixture(t)

	f.repo.questions.On("Fetch", mock.Anything, 3, mock.Anything).
		Return([]models.Question{}, nil).Once()

	_, err := f.service.Start(context.Background(), &StartSessionRequest{
		UserID: "user-1",
		Mode:   models.ModeQuick,
	})
	assert.ErrorIs(t, err, ErrSessionNoQuestions)
}

func TestSessionService_Start_TimedModeHasCountdown(t *testing.T) {
	f := newServiceFixture(t)
	response := f.start(t, models.ModeTimed)

	countdowns := f.service.Countdowns(response.Session.SessionID)
	require.NotNil(t, countdowns.TimeRemaining)
	assert.Equal(t, 1200, *countdowns.TimeRemaining)
}

func TestSessionService_SubmitAnswer(t *testing.T) {
	f := newServiceFixture(t)
	response := f.start(t, models.ModeQuick)
	sessionID := response.Session.SessionID

	updated, err := f.service.SubmitAnswer(context.Background(), sessionID, &SubmitAnswerRequest{
		QuestionIndex:  0,
		OptionIndex:    1,
		ElapsedSeconds: 8,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Metadata.QuestionsAttempted)
	assert.Equal(t, 8, updated.Session.TimeSpent)

	// The same index cannot be answered twice.
	_, err = f.service.SubmitAnswer(context.Background(), sessionID, &SubmitAnswerRequest{
		QuestionIndex: 0,
		OptionIndex:   2,
	})
	assert.ErrorIs(t, err, engine.ErrAlreadyAnswered)
}

func TestSessionService_Navigation(t *testing.T) {
	f := newServiceFixture(t)
	response := f.start(t, models.ModeQuick)
	sessionID := response.Session.SessionID

	moved, err := f.service.GoToNext(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, moved.CurrentIndex)
	assert.True(t, moved.CanGoPrevious)

	moved, err = f.service.GoToQuestion(context.Background(), sessionID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, moved.CurrentIndex)
	assert.False(t, moved.CanGoNext)

	moved, err = f.service.GoToPrevious(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, moved.CurrentIndex)

	_, err = f.service.GoToQuestion(context.Background(), sessionID, 7)
	assert.ErrorIs(t, err, engine.ErrQuestionOutOfRange)
}

func TestSessionService_Complete(t *testing.T) {
	f := newServiceFixture(t)
	response := f.start(t, models.ModeQuick)
	sessionID := response.Session.SessionID

	_, err := f.service.SubmitAnswer(context.Background(), sessionID, &SubmitAnswerRequest{
		QuestionIndex: 0,
		OptionIndex:   1,
	})
	require.NoError(t, err)

	result, err := f.service.Complete(context.Background(), sessionID, 90)
	require.NoError(t, err)
	assert.Equal(t, 33, result.Score)
	assert.Equal(t, 90, result.TimeSpent)

	// Completion is idempotent at the engine boundary.
	_, err = f.service.Complete(context.Background(), sessionID, 0)
	assert.ErrorIs(t, err, engine.ErrSessionNotActive)

	stored, err := f.service.Result(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, 33, stored.Score)

	assert.Eventually(t, func() bool {
		for _, e := range f.publisher.GetPublishedEvents() {
			if e.Type == events.EventSessionCompleted {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSessionService_Abandon(t *testing.T) {
	f := newServiceFixture(t)
	response := f.start(t, models.ModeQuick)
	sessionID := response.Session.SessionID

	require.NoError(t, f.service.Abandon(context.Background(), sessionID, "user_exit"))

	snapshot, err := f.service.Snapshot(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusAbandoned, snapshot.Session.Status)
	assert.False(t, snapshot.CanGoNext)

	_, err = f.service.SubmitAnswer(context.Background(), sessionID, &SubmitAnswerRequest{
		QuestionIndex: 0,
		OptionIndex:   1,
	})
	assert.ErrorIs(t, err, engine.ErrSessionNotActive)

	_, err = f.service.Result(context.Background(), sessionID)
	assert.ErrorIs(t, err, engine.ErrResultNotAvailable)
}

func TestSessionService_RecoveryStatus(t *testing.T) {
	f := newServiceFixture(t)

	status := f.service.RecoveryStatus()
	assert.Equal(t, engine.HealthHealthy, status.State)
	assert.Nil(t, status.LastFault)

	f.service.ResetRecovery()
	status = f.service.RecoveryStatus()
	assert.Equal(t, engine.HealthHealthy, status.State)
}

func TestSessionService_UnknownSession(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Snapshot(context.Background(), "missing")
	assert.ErrorIs(t, err, engine.ErrSessionNotFound)

	_, err = f.service.GoToNext(context.Background(), "missing")
	assert.ErrorIs(t, err, engine.ErrSessionNotFound)
}
