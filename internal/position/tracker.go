package position

import (
	"github.com/rally-hq/rally/internal/errors"
	"github.com/rally-hq/rally/internal/logging"
	"github.com/rally-hq/rally/internal/vote"
)

// Observation is the target's standing in one snapshot.
type Observation struct {
	// Found is false when the target is missing from the snapshot.
	Found bool
	// Rank is the target's 1-based position, 0 when not found.
	Rank int
	// Percent is the target's share, 0 when not found.
	Percent float64
	// IsAhead is true when the target holds rank 1.
	IsAhead bool
	// Lead is the target's margin over second place. Only meaningful when
	// HasLead is set, which requires the target to be ahead of at least
	// one other entry.
	Lead    float64
	HasLead bool
}

// Tracker derives the target's standing from a snapshot.
type Tracker struct {
	target string
	logger *logging.Logger
}

// NewTracker returns a Tracker for target. A nil logger discards output.
func NewTracker(target string, logger *logging.Logger) *Tracker {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Tracker{target: target, logger: logger}
}

// Target returns the tracked entry name.
func (t *Tracker) Target() string { return t.target }

// Observe locates the target in snap. A missing target is reported as not
// ahead with no lead; it is logged but is not an error.
func (t *Tracker) Observe(snap vote.Snapshot) Observation {
	rank, entry, ok := snap.Find(t.target)
	if !ok {
		t.logger.Warn("target missing from snapshot",
			"target", t.target,
			"entries", len(snap),
			"error", errors.ErrTargetNotFound,
		)
		return Observation{}
	}

	obs := Observation{
		Found:   true,
		Rank:    rank,
		Percent: entry.Percent,
		IsAhead: rank == 1,
	}
	if obs.IsAhead && len(snap) >= 2 {
		obs.Lead = entry.Percent - snap[1].Percent
		obs.HasLead = true
	}
	return obs
}
