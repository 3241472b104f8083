package scaling

import "fmt"

// Default policy values.
const (
	defaultMaxThreads    = 8
	defaultBaseThreshold = 20
	defaultStep          = 10
)

// Option configures a Policy.
type Option func(*Policy)

// WithMaxThreads sets the total number of workers allowed, primary included.
func WithMaxThreads(n int) Option {
	return func(p *Policy) { p.maxThreads = n }
}

// WithForceParallel keeps started workers running until shutdown instead of
// stopping them when the target recovers.
func WithForceParallel(force bool) Option {
	return func(p *Policy) { p.forceParallel = force }
}

// Policy holds the threshold rules for starting and stopping parallel
// workers. Parallel worker k (1-based) is justified while the target has
// been behind for at least Threshold(k) consecutive votes.
//
// Policy is immutable after construction and safe for concurrent use. It
// keeps no state of its own; slot states are owned by the caller so that
// evaluation can happen inside the caller's critical section.
type Policy struct {
	maxThreads    int
	forceParallel bool
}

// NewPolicy creates a Policy with the given options.
// Unset options use defaults.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{maxThreads: defaultMaxThreads}
	for _, opt := range opts {
		opt(p)
	}
	if p.maxThreads < 1 {
		p.maxThreads = 1
	}
	return p
}

// MaxThreads returns the worker limit, primary included.
func (p *Policy) MaxThreads() int { return p.maxThreads }

// Slots returns the number of parallel worker slots.
func (p *Policy) Slots() int { return p.maxThreads - 1 }

// ForceParallel reports whether scale-down is suppressed.
func (p *Policy) ForceParallel() bool { return p.forceParallel }

// Threshold returns the consecutive-behind count at which parallel worker k
// is started: 20 for the first, then 10 more for each further worker.
func Threshold(k int) int {
	return defaultBaseThreshold + defaultStep*(k-1)
}

// SeedBehind returns the behind count that justifies exactly startThreads
// workers from the outset.
func SeedBehind(startThreads int) int {
	if startThreads <= 1 {
		return 0
	}
	return Threshold(startThreads - 1)
}

// Evaluate compares the behind count against each slot's threshold and
// returns one decision per slot that should change. slots[k-1] is the state
// of parallel worker k.
func (p *Policy) Evaluate(behind int, slots []SlotState) []Decision {
	var decisions []Decision
	for i, state := range slots {
		k := i + 1
		threshold := Threshold(k)

		switch {
		case behind >= threshold && state.CanStart():
			decisions = append(decisions, Decision{
				Action: ActionScaleUp,
				Slot:   k,
				Behind: behind,
				Reason: fmt.Sprintf("behind %d >= threshold %d", behind, threshold),
			})
		case behind < threshold && !p.forceParallel && (state == SlotStarting || state == SlotRunning):
			decisions = append(decisions, Decision{
				Action: ActionScaleDown,
				Slot:   k,
				Behind: behind,
				Reason: fmt.Sprintf("behind %d < threshold %d", behind, threshold),
			})
		}
	}
	return decisions
}
