package event

import (
	"time"

	"github.com/rally-hq/rally/internal/scaling"
	"github.com/rally-hq/rally/internal/timing"
)

// Event types.
const (
	TypeWorkerStarted   = "worker.started"
	TypeWorkerStopped   = "worker.stopped"
	TypeVoteCompleted   = "vote.completed"
	TypeAttemptFailed   = "vote.failed"
	TypeScalingDecision = "scaling.decision"
	TypeBackoffChanged  = "backoff.changed"
	TypeConfigReloaded  = "config.reloaded"
)

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "worker.started", "vote.completed")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{eventType: eventType, timestamp: time.Now()}
}

// -----------------------------------------------------------------------------
// Worker Lifecycle Events
// -----------------------------------------------------------------------------

// WorkerStartedEvent is emitted when a worker loop begins. Slot is 0 for the
// primary worker.
type WorkerStartedEvent struct {
	baseEvent
	WorkerID string
	Slot     int
}

// NewWorkerStartedEvent creates a WorkerStartedEvent.
func NewWorkerStartedEvent(workerID string, slot int) WorkerStartedEvent {
	return WorkerStartedEvent{
		baseEvent: newBaseEvent(TypeWorkerStarted),
		WorkerID:  workerID,
		Slot:      slot,
	}
}

// WorkerStoppedEvent is emitted when a worker loop has exited.
type WorkerStoppedEvent struct {
	baseEvent
	WorkerID string
	Slot     int
	Reason   string // "scaled down", "shutdown"
}

// NewWorkerStoppedEvent creates a WorkerStoppedEvent.
func NewWorkerStoppedEvent(workerID string, slot int, reason string) WorkerStoppedEvent {
	return WorkerStoppedEvent{
		baseEvent: newBaseEvent(TypeWorkerStopped),
		WorkerID:  workerID,
		Slot:      slot,
		Reason:    reason,
	}
}

// -----------------------------------------------------------------------------
// Vote Events
// -----------------------------------------------------------------------------

// VoteCompletedEvent is emitted after an attempt that produced a result,
// whether or not the vote was accepted.
type VoteCompletedEvent struct {
	baseEvent
	WorkerID       string
	Sequence       int64
	Success        bool
	Found          bool
	Rank           int
	Percent        float64
	IsAhead        bool
	Lead           float64
	HasLead        bool
	Behind         int
	Tier           timing.Tier
	Multiplier     float64
	BackoffApplied bool
	Delay          time.Duration // sleep before this worker's next attempt
	Active         int
}

// NewVoteCompletedEvent creates a VoteCompletedEvent. Callers fill in the
// remaining fields.
func NewVoteCompletedEvent(workerID string, sequence int64, success bool) VoteCompletedEvent {
	return VoteCompletedEvent{
		baseEvent: newBaseEvent(TypeVoteCompleted),
		WorkerID:  workerID,
		Sequence:  sequence,
		Success:   success,
	}
}

// AttemptFailedEvent is emitted when an attempt produced no result.
type AttemptFailedEvent struct {
	baseEvent
	WorkerID string
	Sequence int64
	Err      error
	Delay    time.Duration
}

// NewAttemptFailedEvent creates an AttemptFailedEvent.
func NewAttemptFailedEvent(workerID string, sequence int64, err error, delay time.Duration) AttemptFailedEvent {
	return AttemptFailedEvent{
		baseEvent: newBaseEvent(TypeAttemptFailed),
		WorkerID:  workerID,
		Sequence:  sequence,
		Err:       err,
		Delay:     delay,
	}
}

// -----------------------------------------------------------------------------
// Scheduling Events
// -----------------------------------------------------------------------------

// ScalingDecisionEvent is emitted for every scale up or scale down the pool
// acts on.
type ScalingDecisionEvent struct {
	baseEvent
	Decision scaling.Decision
	Active   int
}

// NewScalingDecisionEvent creates a ScalingDecisionEvent.
func NewScalingDecisionEvent(d scaling.Decision, active int) ScalingDecisionEvent {
	return ScalingDecisionEvent{
		baseEvent: newBaseEvent(TypeScalingDecision),
		Decision:  d,
		Active:    active,
	}
}

// BackoffChangedEvent is emitted when the backoff multiplier changes.
type BackoffChangedEvent struct {
	baseEvent
	Previous float64
	Current  float64
	Lead     float64
	HasLead  bool
}

// NewBackoffChangedEvent creates a BackoffChangedEvent.
func NewBackoffChangedEvent(previous, current, lead float64, hasLead bool) BackoffChangedEvent {
	return BackoffChangedEvent{
		baseEvent: newBaseEvent(TypeBackoffChanged),
		Previous:  previous,
		Current:   current,
		Lead:      lead,
		HasLead:   hasLead,
	}
}

// Engaged reports whether the change turned backoff on.
func (e BackoffChangedEvent) Engaged() bool {
	return e.Previous <= 1.0 && e.Current > 1.0
}

// ConfigReloadedEvent is emitted after the config file changed and the
// reloadable settings were applied.
type ConfigReloadedEvent struct {
	baseEvent
	LeadThreshold float64
	LogLevel      string
}

// NewConfigReloadedEvent creates a ConfigReloadedEvent.
func NewConfigReloadedEvent(leadThreshold float64, logLevel string) ConfigReloadedEvent {
	return ConfigReloadedEvent{
		baseEvent:     newBaseEvent(TypeConfigReloaded),
		LeadThreshold: leadThreshold,
		LogLevel:      logLevel,
	}
}
