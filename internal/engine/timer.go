package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ExpireFunc is invoked exactly once when a session's time limit runs out.
// The standard wiring forces session completion.
type ExpireFunc func(sessionID string)

type sessionCountdown struct {
	cancel    context.CancelFunc
	mu        sync.Mutex
	remaining int
	expired   bool
}

// Timer runs one countdown clock per time-boxed session. Pausing is not
// supported; the clock keeps ticking while the session stays active and only
// completion or abandonment stops it.
type Timer struct {
	store  *Store
	clock  Clock
	logger *slog.Logger

	mu         sync.Mutex
	countdowns map[string]*sessionCountdown
}

func NewTimer(store *Store, clock Clock, logger *slog.Logger) *Timer {
	return &Timer{
		store:      store,
		clock:      clock,
		logger:     logger,
		countdowns: make(map[string]*sessionCountdown),
	}
}

// Start begins the countdown for a session with the given limit in seconds.
// onExpire fires exactly once when the countdown reaches zero, even if ticks
// keep arriving after expiry.
func (t *Timer) Start(ctx context.Context, sessionID string, limitSeconds int, onExpire ExpireFunc) error {
	if _, err := t.store.Snapshot(sessionID); err != nil {
		return err
	}

	t.mu.Lock()
	if _, exists := t.countdowns[sessionID]; exists {
		t.mu.Unlock()
		return ErrTimerAlreadyRunning
	}

	tickCtx, cancel := context.WithCancel(ctx)
	cd := &sessionCountdown{
		cancel:    cancel,
		remaining: limitSeconds,
	}
	t.countdowns[sessionID] = cd
	t.mu.Unlock()

	t.logger.Info("Session countdown started",
		"session_id", sessionID,
		"limit_seconds", limitSeconds)

	// The ticker is created before the goroutine starts so the countdown is
	// armed by the time Start returns.
	ticker := t.clock.NewTicker(1 * time.Second)
	go t.run(tickCtx, sessionID, cd, ticker, onExpire)
	return nil
}

// Stop cancels the countdown for a session. Called on completion and
// abandonment; stopping an absent countdown is a no-op.
func (t *Timer) Stop(sessionID string) {
	t.mu.Lock()
	cd, ok := t.countdowns[sessionID]
	if ok {
		delete(t.countdowns, sessionID)
	}
	t.mu.Unlock()

	if ok {
		cd.cancel()
		t.logger.Info("Session countdown stopped", "session_id", sessionID)
	}
}

// Remaining returns the seconds left on the session clock, suitable for
// direct display.
func (t *Timer) Remaining(sessionID string) (int, error) {
	t.mu.Lock()
	cd, ok := t.countdowns[sessionID]
	t.mu.Unlock()

	if !ok {
		return 0, ErrTimerNotRunning
	}

	cd.mu.Lock()
	defer cd.mu.Unlock()
	return cd.remaining, nil
}

func (t *Timer) run(ctx context.Context, sessionID string, cd *sessionCountdown, ticker Ticker, onExpire ExpireFunc) {
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			session, err := t.store.Snapshot(sessionID)
			if err != nil || !session.IsActive() {
				t.Stop(sessionID)
				return
			}

			cd.mu.Lock()
			if cd.remaining > 0 {
				cd.remaining--
			}
			expiredNow := cd.remaining == 0 && !cd.expired
			if expiredNow {
				cd.expired = true
			}
			cd.mu.Unlock()

			if expiredNow {
				t.logger.Info("Session time limit reached", "session_id", sessionID)
				onExpire(sessionID)
				t.Stop(sessionID)
				return
			}

		case <-ctx.Done():
			return
		}
	}
}
