package voter

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rally-hq/rally/internal/errors"
	"github.com/rally-hq/rally/internal/timing"
	"github.com/rally-hq/rally/internal/vote"
)

// Simulator is an in-process poll. Every attempt adds one vote for the
// target and a random number of votes for each competitor, then reports the
// resulting percentages. All state is guarded by one mutex, so a single
// Simulator can serve every worker of a pool.
type Simulator struct {
	mu       sync.Mutex
	rng      *rand.Rand
	clock    timing.Clock
	names    []string
	votes    []float64
	pressure float64

	latency     time.Duration
	failureRate float64
	rejectRate  float64
}

// SimulatorOption configures a Simulator.
type SimulatorOption func(*Simulator)

// WithLatency makes each attempt take d on the simulator clock.
func WithLatency(d time.Duration) SimulatorOption {
	return func(s *Simulator) { s.latency = d }
}

// WithClock sets the clock used for latency.
func WithClock(c timing.Clock) SimulatorOption {
	return func(s *Simulator) { s.clock = c }
}

// WithFailureRate makes a fraction of attempts fail with a transient error.
func WithFailureRate(p float64) SimulatorOption {
	return func(s *Simulator) { s.failureRate = p }
}

// WithRejectRate makes a fraction of attempts complete with success=false.
func WithRejectRate(p float64) SimulatorOption {
	return func(s *Simulator) { s.rejectRate = p }
}

// WithPressure sets the mean number of competitor votes arriving per
// attempt, spread across all competitors. The default is 1.2, which keeps a
// single worker slightly behind.
func WithPressure(votesPerAttempt float64) SimulatorOption {
	return func(s *Simulator) { s.pressure = votesPerAttempt }
}

// NewSimulator creates a poll between target and competitors. A zero seed
// picks a random one. Every candidate starts with the same vote count.
func NewSimulator(target string, competitors []string, seed uint64, opts ...SimulatorOption) *Simulator {
	if seed == 0 {
		seed = rand.Uint64()
	}
	if len(competitors) == 0 {
		competitors = []string{"Competitor A", "Competitor B"}
	}

	names := append([]string{target}, competitors...)
	votes := make([]float64, len(names))
	for i := range votes {
		votes[i] = 100
	}

	s := &Simulator{
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		clock:    timing.RealClock{},
		names:    names,
		votes:    votes,
		pressure: 1.2,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attempt casts one vote for the target and returns the new standings.
func (s *Simulator) Attempt(ctx context.Context) (vote.Result, error) {
	if s.latency > 0 {
		select {
		case <-ctx.Done():
			return vote.Result{}, errors.NewVoteError("simulated attempt interrupted", ctx.Err())
		case <-s.clock.After(s.latency):
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	roll := s.rng.Float64()
	if roll < s.failureRate {
		return vote.Result{}, errors.NewVoteError("simulated page load failure", nil)
	}

	s.votes[0]++
	perCompetitor := s.pressure / float64(len(s.votes)-1)
	for i := 1; i < len(s.votes); i++ {
		s.votes[i] += s.poisson(perCompetitor)
	}

	if roll < s.failureRate+s.rejectRate {
		return vote.Result{Success: false, Snapshot: s.snapshotLocked()}, nil
	}
	return vote.Result{Success: true, Snapshot: s.snapshotLocked()}, nil
}

// Votes returns the current raw vote count for name, 0 if unknown.
func (s *Simulator) Votes(name string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.names {
		if vote.SameName(n, name) {
			return s.votes[i]
		}
	}
	return 0
}

func (s *Simulator) snapshotLocked() vote.Snapshot {
	var total float64
	for _, v := range s.votes {
		total += v
	}
	snap := make(vote.Snapshot, len(s.names))
	for i, n := range s.names {
		snap[i] = vote.Entry{Name: n, Percent: math.Round(s.votes[i]/total*10000) / 100}
	}
	return Normalize(snap)
}

// poisson draws from a Poisson distribution with the given mean using
// Knuth's method, which is fine for the small means used here.
func (s *Simulator) poisson(mean float64) float64 {
	if mean <= 0 {
		return 0
	}
	l := math.Exp(-mean)
	k := 0
	p := 1.0
	for {
		p *= s.rng.Float64()
		if p <= l {
			return float64(k)
		}
		k++
	}
}
