package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medquiz-pro/session-service/internal/models"
)

const (
	waitFor = 2 * time.Second
	pollGap = 5 * time.Millisecond
)

func TestTimer_CountsDownAndExpiresOnce(t *testing.T) {
	store, clock := newTestStore()
	timer := NewTimer(store, clock, testLogger())

	session, err := store.Create("user-1", models.ModeTimed, makeQuestions(2), models.AutoAdvanceConfig{})
	require.NoError(t, err)

	var fired int32
	onExpire := func(sessionID string) {
		atomic.AddInt32(&fired, 1)
		_, _, _ = store.Complete(sessionID, 0)
	}

	require.NoError(t, timer.Start(context.Background(), session.SessionID, 3, onExpire))

	remaining, err := timer.Remaining(session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)

	clock.tick(1)
	assert.Eventually(t, func() bool {
		r, err := timer.Remaining(session.SessionID)
		return err == nil && r == 2
	}, waitFor, pollGap)

	clock.tick(2)
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&fired) == 1
	}, waitFor, pollGap)

	// The countdown is gone and later ticks cannot refire expiry.
	assert.Eventually(t, func() bool {
		_, err := timer.Remaining(session.SessionID)
		return errors.Is(err, ErrTimerNotRunning)
	}, waitFor, pollGap)

	clock.tick(3)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))

	snapshot, err := store.Snapshot(session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, snapshot.Status)
}

func TestTimer_ManualCompletionJustBeforeExpiry(t *testing.T) {
	store, clock := newTestStore()
	timer := NewTimer(store, clock, testLogger())

	session, err := store.Create("user-1", models.ModeTimed, makeQuestions(2), models.AutoAdvanceConfig{})
	require.NoError(t, err)

	var fired int32
	require.NoError(t, timer.Start(context.Background(), session.SessionID, 5, func(string) {
		atomic.AddInt32(&fired, 1)
	}))

	clock.tick(4)
	assert.Eventually(t, func() bool {
		r, err := timer.Remaining(session.SessionID)
		return err == nil && r == 1
	}, waitFor, pollGap)

	// The user finishes with one second on the clock. The next tick finds
	// the session inactive and must not fire expiry.
	_, _, err = store.Complete(session.SessionID, 0)
	require.NoError(t, err)

	clock.tick(2)
	assert.Eventually(t, func() bool {
		_, err := timer.Remaining(session.SessionID)
		return errors.Is(err, ErrTimerNotRunning)
	}, waitFor, pollGap)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
}

func TestTimer_StopCancelsCountdown(t *testing.T) {
	store, clock := newTestStore()
	timer := NewTimer(store, clock, testLogger())

	session, err := store.Create("user-1", models.ModeTimed, makeQuestions(2), models.AutoAdvanceConfig{})
	require.NoError(t, err)

	var fired int32
	require.NoError(t, timer.Start(context.Background(), session.SessionID, 2, func(string) {
		atomic.AddInt32(&fired, 1)
	}))

	timer.Stop(session.SessionID)
	_, err = timer.Remaining(session.SessionID)
	assert.ErrorIs(t, err, ErrTimerNotRunning)

	clock.tick(3)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))

	// Stopping again is a no-op.
	timer.Stop(session.SessionID)
}

func TestTimer_StartTwiceFails(t *testing.T) {
	store, clock := newTestStore()
	timer := NewTimer(store, clock, testLogger())
	_ = clock

	session, err := store.Create("user-1", models.ModeTimed, makeQuestions(2), models.AutoAdvanceConfig{})
	require.NoError(t, err)

	require.NoError(t, timer.Start(context.Background(), session.SessionID, 10, func(string) {}))
	err = timer.Start(context.Background(), session.SessionID, 10, func(string) {})
	assert.ErrorIs(t, err, ErrTimerAlreadyRunning)
}

func TestTimer_UnknownSession(t *testing.T) {
	store, clock := newTestStore()
	timer := NewTimer(store, clock, testLogger())
	_ = clock

	err := timer.Start(context.Background(), "missing", 10, func(string) {})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
