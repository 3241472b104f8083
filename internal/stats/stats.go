// Package stats aggregates vote outcomes across all workers.
//
// Every counter is a sync/atomic integer, so workers record outcomes without
// taking a lock and no update is ever lost.
package stats

import (
	"sync/atomic"

	"github.com/rally-hq/rally/internal/timing"
)

// Summary keys, as persisted in the activity log.
const (
	KeyStandard           = "standard"
	KeyInitialAccelerated = "initialAccelerated"
	KeyAccelerated        = "accelerated"
	KeySuperAccelerated   = "superAccelerated"
	KeyBackoffVotes       = "backoffVotes"
	KeyTotalVotes         = "totalVotes"
)

// Keys lists the summary keys in display order.
var Keys = []string{
	KeyStandard,
	KeyInitialAccelerated,
	KeyAccelerated,
	KeySuperAccelerated,
	KeyBackoffVotes,
	KeyTotalVotes,
}

// TierKey returns the summary key counting votes cast at tier.
func TierKey(tier timing.Tier) string {
	switch tier {
	case timing.InitialAccelerated:
		return KeyInitialAccelerated
	case timing.Accelerated:
		return KeyAccelerated
	case timing.SuperAccelerated:
		return KeySuperAccelerated
	default:
		return KeyStandard
	}
}

// Aggregator counts successful votes by tier for the current session.
type Aggregator struct {
	tiers    [4]atomic.Int64
	backoff  atomic.Int64
	total    atomic.Int64
	failures atomic.Int64
	attempts atomic.Int64
}

// New returns an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{}
}

// RecordSuccess counts one successful vote: exactly one tier counter and the
// total, plus the backoff counter when backoff lengthened the delay.
func (a *Aggregator) RecordSuccess(tier timing.Tier, backoffApplied bool) {
	a.tiers[tier].Add(1)
	a.total.Add(1)
	if backoffApplied {
		a.backoff.Add(1)
	}
}

// RecordFailure counts one failed attempt. Failures never touch the
// persisted counters.
func (a *Aggregator) RecordFailure() {
	a.failures.Add(1)
}

// NextSequence returns a process-wide, strictly increasing attempt number
// starting at 1.
func (a *Aggregator) NextSequence() int64 {
	return a.attempts.Add(1)
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Standard           int64 `json:"standard" yaml:"standard"`
	InitialAccelerated int64 `json:"initialAccelerated" yaml:"initialAccelerated"`
	Accelerated        int64 `json:"accelerated" yaml:"accelerated"`
	SuperAccelerated   int64 `json:"superAccelerated" yaml:"superAccelerated"`
	BackoffVotes       int64 `json:"backoffVotes" yaml:"backoffVotes"`
	TotalVotes         int64 `json:"totalVotes" yaml:"totalVotes"`
	FailedAttempts     int64 `json:"failedAttempts" yaml:"failedAttempts"`
	Attempts           int64 `json:"attempts" yaml:"attempts"`
}

// Snapshot returns the current counters. Individual fields are read
// atomically; the set is not a single atomic cut.
func (a *Aggregator) Snapshot() Snapshot {
	return Snapshot{
		Standard:           a.tiers[timing.Standard].Load(),
		InitialAccelerated: a.tiers[timing.InitialAccelerated].Load(),
		Accelerated:        a.tiers[timing.Accelerated].Load(),
		SuperAccelerated:   a.tiers[timing.SuperAccelerated].Load(),
		BackoffVotes:       a.backoff.Load(),
		TotalVotes:         a.total.Load(),
		FailedAttempts:     a.failures.Load(),
		Attempts:           a.attempts.Load(),
	}
}

// Counters returns the persisted counters keyed by summary key.
func (s Snapshot) Counters() map[string]int64 {
	return map[string]int64{
		KeyStandard:           s.Standard,
		KeyInitialAccelerated: s.InitialAccelerated,
		KeyAccelerated:        s.Accelerated,
		KeySuperAccelerated:   s.SuperAccelerated,
		KeyBackoffVotes:       s.BackoffVotes,
		KeyTotalVotes:         s.TotalVotes,
	}
}

// Summary maps counter names to totals. Keys other than the standard ones
// are kept as-is so hand-edited logs survive a rewrite.
type Summary map[string]int64

// Add returns a new Summary with every key of other added to s.
func (s Summary) Add(other map[string]int64) Summary {
	out := make(Summary, len(s)+len(other))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range other {
		out[k] += v
	}
	return out
}

// Get returns the value for key, 0 when absent.
func (s Summary) Get(key string) int64 {
	return s[key]
}
