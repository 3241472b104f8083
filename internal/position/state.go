package position

import (
	"sync"

	"github.com/rally-hq/rally/internal/scaling"
	"github.com/rally-hq/rally/internal/timing"
)

// Update is the result of applying one observation. All fields reflect the
// state immediately after the observation, read in the same critical section.
type Update struct {
	Behind             int
	Lead               float64
	HasLead            bool
	Multiplier         float64
	// PreviousMultiplier is the multiplier before this observation.
	PreviousMultiplier float64
	BackoffApplied     bool
	Active             int
	// Decisions are the slot changes already committed to the state. The
	// caller must carry them out.
	Decisions          []scaling.Decision
}

// Snapshot is a consistent copy of the shared state.
type Snapshot struct {
	Behind        int
	Lead          float64
	HasLead       bool
	Multiplier    float64
	LeadThreshold float64
	Active        int
	MaxThreads    int
	ForceParallel bool
	Slots         []scaling.SlotState
}

// State is the single piece of state shared by every worker. One mutex
// guards all fields; every read-threshold-and-mutate operation happens
// under it so scaling decisions always see the behind count they were made
// for.
type State struct {
	mu sync.Mutex

	policy        *scaling.Policy
	behind        int
	lead          float64
	hasLead       bool
	multiplier    float64
	leadThreshold float64
	slots         []scaling.SlotState
}

// NewState creates the shared state. The behind count is pre-seeded so that
// startThreads workers are justified from the start.
func NewState(policy *scaling.Policy, startThreads int, leadThreshold float64) *State {
	return &State{
		policy:        policy,
		behind:        scaling.SeedBehind(startThreads),
		multiplier:    1.0,
		leadThreshold: leadThreshold,
		slots:         make([]scaling.SlotState, policy.Slots()),
	}
}

// Reconcile evaluates the current behind count without an observation. It
// is called once at pool start so seeded workers are launched immediately.
func (s *State) Reconcile() []scaling.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evaluateLocked()
}

// Apply folds one successful observation into the state: the behind count
// resets or grows, the lead is replaced, the backoff multiplier moves and
// the scaling rules are evaluated against the new count.
func (s *State) Apply(obs Observation) Update {
	s.mu.Lock()
	defer s.mu.Unlock()

	if obs.IsAhead {
		s.behind = 0
	} else {
		s.behind++
	}
	s.lead, s.hasLead = obs.Lead, obs.HasLead
	prev := s.multiplier
	s.multiplier = timing.NextMultiplier(s.multiplier, s.lead, s.hasLead, s.leadThreshold)

	return Update{
		Behind:             s.behind,
		Lead:               s.lead,
		HasLead:            s.hasLead,
		Multiplier:         s.multiplier,
		PreviousMultiplier: prev,
		BackoffApplied:     timing.BackoffApplied(s.multiplier),
		Decisions:          s.evaluateLocked(),
		Active:             s.activeLocked(),
	}
}

// evaluateLocked runs the scaling policy and commits its decisions to the
// slot states. The caller must hold the mutex.
func (s *State) evaluateLocked() []scaling.Decision {
	decisions := s.policy.Evaluate(s.behind, s.slots)
	for _, d := range decisions {
		switch d.Action {
		case scaling.ActionScaleUp:
			s.slots[d.Slot-1] = scaling.SlotStarting
		case scaling.ActionScaleDown:
			s.slots[d.Slot-1] = scaling.SlotStoppingRequested
		}
	}
	return decisions
}

func (s *State) activeLocked() int {
	n := 1
	for _, st := range s.slots {
		if st.Active() {
			n++
		}
	}
	return n
}

// MarkRunning moves slot k from Starting to Running. It returns false when
// the slot was asked to stop before its worker began, in which case the
// worker should exit without voting.
func (s *State) MarkRunning(k int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.slots[k-1] != scaling.SlotStarting {
		return false
	}
	s.slots[k-1] = scaling.SlotRunning
	return true
}

// StopRequested reports whether the worker in slot k should exit.
func (s *State) StopRequested(k int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slots[k-1] == scaling.SlotStoppingRequested
}

// MarkStopped records that the worker in slot k has exited and re-evaluates
// the rules, since the count may have climbed back while it was finishing.
func (s *State) MarkStopped(k int) []scaling.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.slots[k-1] = scaling.SlotStopped
	return s.evaluateLocked()
}

// Multiplier returns the current backoff multiplier.
func (s *State) Multiplier() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.multiplier
}

// SetLeadThreshold replaces the backoff threshold for future observations.
func (s *State) SetLeadThreshold(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leadThreshold = v
}

// Snapshot returns a consistent copy of the state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots := make([]scaling.SlotState, len(s.slots))
	copy(slots, s.slots)
	return Snapshot{
		Behind:        s.behind,
		Lead:          s.lead,
		HasLead:       s.hasLead,
		Multiplier:    s.multiplier,
		LeadThreshold: s.leadThreshold,
		Active:        s.activeLocked(),
		MaxThreads:    s.policy.MaxThreads(),
		ForceParallel: s.policy.ForceParallel(),
		Slots:         slots,
	}
}
