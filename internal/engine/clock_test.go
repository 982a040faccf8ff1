package engine

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/medquiz-pro/session-service/internal/models"
)

// fakeClock drives every countdown from the test body. Ticks are delivered by
// calling tick; After channels fire immediately when autoAfter is set.
type fakeClock struct {
	mu        sync.Mutex
	now       time.Time
	tickers   []*fakeTicker
	autoAfter bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now: time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC),
	}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTicker{ch: make(chan time.Time, 64)}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if c.autoAfter {
		ch <- c.now
	}
	return ch
}

// tick advances the clock by n seconds and delivers one tick per second to
// every ticker created so far.
func (c *fakeClock) tick(n int) {
	for i := 0; i < n; i++ {
		c.mu.Lock()
		c.now = c.now.Add(1 * time.Second)
		for _, t := range c.tickers {
			select {
			case t.ch <- c.now:
			default:
			}
		}
		c.mu.Unlock()
	}
}

type fakeTicker struct {
	ch chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time {
	return t.ch
}

func (t *fakeTicker) Stop() {}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubScorer satisfies Scorer without pulling the scoring service into engine
// tests.
type stubScorer struct{}

func (stubScorer) Score(session *models.QuizSession, questions []models.Question) *models.QuizResult {
	correct := 0
	for i, q := range questions {
		if session.Answers[i] != nil && q.IsCorrect(*session.Answers[i]) {
			correct++
		}
	}
	score := 0
	if len(questions) > 0 {
		score = correct * 100 / len(questions)
	}
	return &models.QuizResult{
		SessionID:      session.SessionID,
		UserID:         session.UserID,
		Score:          score,
		CorrectAnswers: correct,
		TotalQuestions: len(questions),
	}
}

func makeQuestions(n int) []models.Question {
	questions := make([]models.Question, n)
	for i := range questions {
		questions[i] = models.Question{
			ID:            fmt.Sprintf("q-%d", i+1),
			Text:          fmt.Sprintf("Question %d", i+1),
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: 1,
			Category:      "Cardiology",
			Difficulty:    models.DifficultyMedium,
		}
	}
	return questions
}

func newTestStore() (*Store, *fakeClock) {
	clock := newFakeClock()
	return NewStore(stubScorer{}, clock, testLogger()), clock
}
