package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// AdvancePhase is the per-question state of the auto-advance machine.
type AdvancePhase string

const (
	PhaseIdle      AdvancePhase = "idle"
	PhaseCounting  AdvancePhase = "counting"
	PhaseAdvancing AdvancePhase = "advancing"
)

// CompleteFunc finishes the session when auto-advance runs past the last
// question.
type CompleteFunc func(sessionID string)

type advanceCountdown struct {
	questionIndex int
	cancel        context.CancelFunc
	mu            sync.Mutex
	remaining     int
	phase         AdvancePhase
}

// AutoAdvance drives automatic progression after an accepted answer: wait the
// configured delay (with a visible per-second countdown), then go to the next
// question, or complete the session on the last one. Any index change cancels
// an outstanding countdown so it can never fire against the wrong question.
type AutoAdvance struct {
	store    *Store
	nav      *Navigator
	clock    Clock
	logger   *slog.Logger
	complete CompleteFunc

	mu         sync.Mutex
	countdowns map[string]*advanceCountdown
}

func NewAutoAdvance(store *Store, nav *Navigator, clock Clock, logger *slog.Logger, complete CompleteFunc) *AutoAdvance {
	aa := &AutoAdvance{
		store:      store,
		nav:        nav,
		clock:      clock,
		logger:     logger,
		complete:   complete,
		countdowns: make(map[string]*advanceCountdown),
	}

	// Mandatory cancellation rule: every index change, manual or automatic,
	// kills any countdown that was started for a different question.
	nav.OnIndexChange(func(sessionID string, newIndex int) {
		aa.cancelStale(sessionID, newIndex)
	})

	return aa
}

// OnAnswerAccepted reacts to a successful answer submission for the question
// at questionIndex. No-op unless the session's mode enables auto-advance.
func (aa *AutoAdvance) OnAnswerAccepted(ctx context.Context, sessionID string, questionIndex int) {
	session, err := aa.store.Snapshot(sessionID)
	if err != nil || !session.IsActive() {
		return
	}
	cfg := session.AutoAdvance
	if !cfg.Enabled || !cfg.SkipToNext {
		return
	}

	if cfg.DelayMs <= 0 {
		aa.advance(sessionID, questionIndex)
		return
	}

	// Round the delay up to whole display seconds.
	seconds := (cfg.DelayMs + 999) / 1000

	aa.mu.Lock()
	if prev, exists := aa.countdowns[sessionID]; exists {
		prev.cancel()
	}
	countCtx, cancel := context.WithCancel(ctx)
	cd := &advanceCountdown{
		questionIndex: questionIndex,
		cancel:        cancel,
		remaining:     seconds,
		phase:         PhaseCounting,
	}
	aa.countdowns[sessionID] = cd
	aa.mu.Unlock()

	aa.logger.Info("Auto-advance countdown started",
		"session_id", sessionID,
		"question_index", questionIndex,
		"seconds", seconds)

	// The ticker is created before the goroutine starts so the countdown is
	// armed by the time OnAnswerAccepted returns.
	ticker := aa.clock.NewTicker(1 * time.Second)
	go aa.runCountdown(countCtx, sessionID, cd, ticker)
}

// Cancel drops any outstanding countdown for the session. Called on
// completion and abandonment.
func (aa *AutoAdvance) Cancel(sessionID string) {
	aa.mu.Lock()
	cd, ok := aa.countdowns[sessionID]
	if ok {
		delete(aa.countdowns, sessionID)
	}
	aa.mu.Unlock()

	if ok {
		cd.cancel()
		aa.logger.Info("Auto-advance countdown cancelled", "session_id", sessionID)
	}
}

// Countdown returns the visible seconds left before the automatic move, and
// whether a countdown is running at all.
func (aa *AutoAdvance) Countdown(sessionID string) (int, bool) {
	aa.mu.Lock()
	cd, ok := aa.countdowns[sessionID]
	aa.mu.Unlock()

	if !ok {
		return 0, false
	}

	cd.mu.Lock()
	defer cd.mu.Unlock()
	return cd.remaining, cd.phase == PhaseCounting
}

// Phase reports the state machine position for the session's current
// question.
func (aa *AutoAdvance) Phase(sessionID string) AdvancePhase {
	aa.mu.Lock()
	cd, ok := aa.countdowns[sessionID]
	aa.mu.Unlock()

	if !ok {
		return PhaseIdle
	}

	cd.mu.Lock()
	defer cd.mu.Unlock()
	return cd.phase
}

func (aa *AutoAdvance) runCountdown(ctx context.Context, sessionID string, cd *advanceCountdown, ticker Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			cd.mu.Lock()
			if cd.remaining > 0 {
				cd.remaining--
			}
			done := cd.remaining == 0
			if done {
				cd.phase = PhaseAdvancing
			}
			cd.mu.Unlock()

			if done {
				aa.advance(sessionID, cd.questionIndex)
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// advance performs the transition once the delay has elapsed (or immediately
// for zero-delay configs). The countdown entry is removed first so the index
// change it triggers does not cancel a countdown that already fired.
func (aa *AutoAdvance) advance(sessionID string, questionIndex int) {
	aa.mu.Lock()
	if cd, ok := aa.countdowns[sessionID]; ok && cd.questionIndex == questionIndex {
		delete(aa.countdowns, sessionID)
		cd.cancel()
	}
	aa.mu.Unlock()

	// Stale-fire guard: the user may have navigated since the answer was
	// accepted. Advancing is only valid from the question it was armed on.
	current, err := aa.store.CurrentIndex(sessionID)
	if err != nil || current != questionIndex {
		return
	}

	session, err := aa.store.Snapshot(sessionID)
	if err != nil || !session.IsActive() {
		return
	}

	if questionIndex < session.QuestionCount()-1 {
		if _, err := aa.nav.GoToNext(sessionID); err != nil {
			aa.logger.Error("Auto-advance navigation failed",
				"session_id", sessionID,
				"error", err)
			return
		}
		aa.store.RecordAutoAdvance(sessionID)
		aa.logger.Info("Auto-advanced to next question",
			"session_id", sessionID,
			"from_index", questionIndex)
		return
	}

	aa.logger.Info("Auto-advance completing session",
		"session_id", sessionID,
		"last_index", questionIndex)
	aa.store.RecordAutoAdvance(sessionID)
	aa.complete(sessionID)
}

// cancelStale kills a countdown when the session has moved to a different
// question than the one it was started for.
func (aa *AutoAdvance) cancelStale(sessionID string, newIndex int) {
	aa.mu.Lock()
	cd, ok := aa.countdowns[sessionID]
	stale := ok && cd.questionIndex != newIndex
	if stale {
		delete(aa.countdowns, sessionID)
	}
	aa.mu.Unlock()

	if stale {
		cd.cancel()
		aa.logger.Info("Auto-advance countdown cancelled by navigation",
			"session_id", sessionID,
			"armed_for", cd.questionIndex,
			"new_index", newIndex)
	}
}
