package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ===== FAULT TAXONOMY =====

type FaultClass string

const (
	FaultNetwork    FaultClass = "network"
	FaultTimeout    FaultClass = "timeout"
	FaultStorage    FaultClass = "storage"
	FaultCorruption FaultClass = "corruption"
	FaultUnknown    FaultClass = "unknown"
)

// Recoverable reports whether the class is eligible for bounded retry.
// Corruption and unknown causes fail safe.
func (fc FaultClass) Recoverable() bool {
	switch fc {
	case FaultNetwork, FaultTimeout, FaultStorage:
		return true
	default:
		return false
	}
}

type FaultSeverity string

const (
	SeverityLow      FaultSeverity = "low"
	SeverityMedium   FaultSeverity = "medium"
	SeverityHigh     FaultSeverity = "high"
	SeverityCritical FaultSeverity = "critical"
)

type HealthState string

const (
	HealthHealthy    HealthState = "healthy"
	HealthRecovering HealthState = "recovering"
	HealthError      HealthState = "error"
)

// Fault describes the last classified failure, including how far the user
// had progressed when it happened. Progress counts survive terminal errors
// so a restart cannot misrepresent them.
type Fault struct {
	Class              FaultClass    `json:"class"`
	Severity           FaultSeverity `json:"severity"`
	Message            string        `json:"message"`
	Attempts           int           `json:"attempts"`
	QuestionsAttempted int           `json:"questions_attempted"`
	TotalQuestions     int           `json:"total_questions"`
	OccurredAt         time.Time     `json:"occurred_at"`
}

// Describe renders the human-readable classification surfaced to consumers.
func (f *Fault) Describe() string {
	return fmt.Sprintf("%s fault (%s severity) after %d attempt(s): %s",
		f.Class, f.Severity, f.Attempts, f.Message)
}

// TerminalError is returned when the retry budget is exhausted or the cause
// is non-recoverable. It requires explicit user action.
type TerminalError struct {
	Fault Fault
}

func (te *TerminalError) Error() string {
	return "unrecoverable fault: " + te.Fault.Describe()
}

// TransientCache is the slice of the cache layer the boundary is allowed to
// clear before retrying.
type TransientCache interface {
	ClearSession(ctx context.Context, sessionID string) error
}

// RecoveryPolicy fixes the retry budget and backoff shape. Delay grows
// linearly: attempt n waits n * BackoffStep.
type RecoveryPolicy struct {
	MaxAttempts int
	BackoffStep time.Duration
}

func DefaultRecoveryPolicy() RecoveryPolicy {
	return RecoveryPolicy{
		MaxAttempts: 3,
		BackoffStep: 500 * time.Millisecond,
	}
}

// Recovery supervises engine operations as an explicit state machine:
// healthy -> recovering -> healthy | error. Recoverable faults get cache
// clearing plus bounded retries; everything else surfaces immediately.
type Recovery struct {
	policy RecoveryPolicy
	clock  Clock
	cache  TransientCache
	logger *slog.Logger

	mu        sync.Mutex
	state     HealthState
	lastFault *Fault
}

func NewRecovery(policy RecoveryPolicy, clock Clock, cache TransientCache, logger *slog.Logger) *Recovery {
	if policy.MaxAttempts <= 0 {
		policy = DefaultRecoveryPolicy()
	}
	return &Recovery{
		policy: policy,
		clock:  clock,
		cache:  cache,
		logger: logger,
		state:  HealthHealthy,
	}
}

// Status returns the boundary state and the last classified fault, if any.
func (r *Recovery) Status() (HealthState, *Fault) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lastFault == nil {
		return r.state, nil
	}
	faultCopy := *r.lastFault
	return r.state, &faultCopy
}

// Reset returns the boundary to healthy after explicit user action.
func (r *Recovery) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = HealthHealthy
	r.lastFault = nil
}

// Execute runs op under the boundary. attempted/total describe session
// progress at the time of the call and drive severity classification.
func (r *Recovery) Execute(ctx context.Context, sessionID string, attempted, total int, op func() error) error {
	err := op()
	if err == nil {
		r.markHealthy()
		return nil
	}

	class := Classify(err)
	fault := Fault{
		Class:              class,
		Severity:           severityForProgress(attempted, total),
		Message:            err.Error(),
		Attempts:           1,
		QuestionsAttempted: attempted,
		TotalQuestions:     total,
		OccurredAt:         r.clock.Now(),
	}

	if !class.Recoverable() {
		r.markError(fault)
		r.logger.Error("Non-recoverable fault",
			"session_id", sessionID,
			"class", class,
			"severity", fault.Severity,
			"error", err)
		return &TerminalError{Fault: fault}
	}

	r.markRecovering(fault)
	r.logger.Warn("Recoverable fault, entering recovery",
		"session_id", sessionID,
		"class", class,
		"severity", fault.Severity,
		"error", err)

	for attempt := 1; attempt < r.policy.MaxAttempts; attempt++ {
		if cacheErr := r.cache.ClearSession(ctx, sessionID); cacheErr != nil {
			r.logger.Warn("Failed to clear transient caches",
				"session_id", sessionID,
				"error", cacheErr)
		}

		select {
		case <-r.clock.After(time.Duration(attempt) * r.policy.BackoffStep):
		case <-ctx.Done():
			fault.Message = ctx.Err().Error()
			r.markError(fault)
			return &TerminalError{Fault: fault}
		}

		err = op()
		fault.Attempts++
		if err == nil {
			r.markHealthy()
			r.logger.Info("Recovered after retry",
				"session_id", sessionID,
				"attempts", fault.Attempts)
			return nil
		}

		fault.Message = err.Error()
		fault.Class = Classify(err)
		if !fault.Class.Recoverable() {
			break
		}
	}

	r.markError(fault)
	r.logger.Error("Retry budget exhausted",
		"session_id", sessionID,
		"class", fault.Class,
		"attempts", fault.Attempts,
		"error", err)
	return &TerminalError{Fault: fault}
}

func (r *Recovery) markHealthy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = HealthHealthy
}

func (r *Recovery) markRecovering(fault Fault) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = HealthRecovering
	r.lastFault = &fault
}

func (r *Recovery) markError(fault Fault) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = HealthError
	r.lastFault = &fault
}

// Classify buckets a failure by inspecting its message, with corruption
// detected structurally first.
func Classify(err error) FaultClass {
	if err == nil {
		return FaultUnknown
	}
	if IsCorruption(err) {
		return FaultCorruption
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") || strings.Contains(msg, "deadline exceeded"):
		return FaultTimeout
	case strings.Contains(msg, "network") || strings.Contains(msg, "connection") || strings.Contains(msg, "unreachable") || strings.Contains(msg, "fetch"):
		return FaultNetwork
	case strings.Contains(msg, "storage") || strings.Contains(msg, "quota") || strings.Contains(msg, "disk"):
		return FaultStorage
	case strings.Contains(msg, "corrupt") || strings.Contains(msg, "invariant"):
		return FaultCorruption
	default:
		return FaultUnknown
	}
}

// severityForProgress maps how far into the session the user was onto a
// severity bucket: >75% critical, >50% high, >20% medium, else low.
func severityForProgress(attempted, total int) FaultSeverity {
	if total <= 0 {
		return SeverityLow
	}
	fraction := float64(attempted) / float64(total)
	switch {
	case fraction > 0.75:
		return SeverityCritical
	case fraction > 0.5:
		return SeverityHigh
	case fraction > 0.2:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
