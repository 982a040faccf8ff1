package engine

import (
	"fmt"
	"log/slog"
	"sync"
)

// IndexListener is notified after the current question position of a session
// changes. The auto-advance controller registers one to cancel outstanding
// countdowns; a countdown must never fire against a question it was not
// started for.
type IndexListener func(sessionID string, newIndex int)

// Navigator computes and changes the current question position for a
// session. All index state lives in the store; the navigator only validates
// moves and fans out change notifications.
type Navigator struct {
	store  *Store
	logger *slog.Logger

	mu        sync.Mutex
	listeners []IndexListener
}

func NewNavigator(store *Store, logger *slog.Logger) *Navigator {
	return &Navigator{
		store:  store,
		logger: logger,
	}
}

// OnIndexChange registers a listener invoked after every successful move.
func (n *Navigator) OnIndexChange(listener IndexListener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, listener)
}

// GoToNext advances by one question. Valid iff currentIndex < N-1.
func (n *Navigator) GoToNext(sessionID string) (int, error) {
	return n.move(sessionID, func(current, total int) (int, error) {
		if current >= total-1 {
			return 0, fmt.Errorf("already at last question: %w", ErrQuestionOutOfRange)
		}
		return current + 1, nil
	})
}

// GoToPrevious steps back by one question. Valid iff currentIndex > 0.
func (n *Navigator) GoToPrevious(sessionID string) (int, error) {
	return n.move(sessionID, func(current, total int) (int, error) {
		if current <= 0 {
			return 0, fmt.Errorf("already at first question: %w", ErrQuestionOutOfRange)
		}
		return current - 1, nil
	})
}

// GoToQuestion jumps directly to index i, as used by the question map.
func (n *Navigator) GoToQuestion(sessionID string, i int) (int, error) {
	return n.move(sessionID, func(current, total int) (int, error) {
		if i < 0 || i >= total {
			return 0, fmt.Errorf("index %d: %w", i, ErrQuestionOutOfRange)
		}
		return i, nil
	})
}

// CanGoNext reports whether forward navigation is currently valid.
func (n *Navigator) CanGoNext(sessionID string) (bool, error) {
	session, err := n.store.Snapshot(sessionID)
	if err != nil {
		return false, err
	}
	current, err := n.store.CurrentIndex(sessionID)
	if err != nil {
		return false, err
	}
	return session.IsActive() && current < session.QuestionCount()-1, nil
}

// CanGoPrevious reports whether backward navigation is currently valid.
func (n *Navigator) CanGoPrevious(sessionID string) (bool, error) {
	session, err := n.store.Snapshot(sessionID)
	if err != nil {
		return false, err
	}
	current, err := n.store.CurrentIndex(sessionID)
	if err != nil {
		return false, err
	}
	return session.IsActive() && current > 0, nil
}

func (n *Navigator) move(sessionID string, target func(current, total int) (int, error)) (int, error) {
	var newIndex int
	err := n.store.withState(sessionID, func(st *sessionState) error {
		if !st.session.IsActive() {
			return ErrSessionNotActive
		}
		next, err := target(st.currentIndex, len(st.session.Questions))
		if err != nil {
			return err
		}
		st.currentIndex = next
		newIndex = next
		return nil
	})
	if err != nil {
		return 0, err
	}

	n.notify(sessionID, newIndex)
	return newIndex, nil
}

func (n *Navigator) notify(sessionID string, newIndex int) {
	n.mu.Lock()
	listeners := append([]IndexListener(nil), n.listeners...)
	n.mu.Unlock()

	for _, listener := range listeners {
		listener(sessionID, newIndex)
	}
}
