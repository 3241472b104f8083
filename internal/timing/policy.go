package timing

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// Tier is the rate class a worker votes at. Tiers are ordered from slowest
// to fastest.
type Tier int

const (
	// Standard is used while the target is ahead.
	Standard Tier = iota
	// InitialAccelerated is used for the first few votes behind.
	InitialAccelerated
	// Accelerated is used once the target has been behind for a while.
	Accelerated
	// SuperAccelerated is the fastest tier. Parallel workers always use it.
	SuperAccelerated
)

// Tiers lists every tier from slowest to fastest.
var Tiers = []Tier{Standard, InitialAccelerated, Accelerated, SuperAccelerated}

// tierRanges holds the inclusive delay bounds of each tier, in seconds.
var tierRanges = [...][2]int{
	Standard:           {53, 67},
	InitialAccelerated: {14, 37},
	Accelerated:        {7, 16},
	SuperAccelerated:   {3, 10},
}

// String returns the name used in vote records and the summary.
func (t Tier) String() string {
	switch t {
	case Standard:
		return "Standard"
	case InitialAccelerated:
		return "InitialAccelerated"
	case Accelerated:
		return "Accelerated"
	case SuperAccelerated:
		return "SuperAccelerated"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) {
	if t < Standard || t > SuperAccelerated {
		return nil, fmt.Errorf("invalid tier %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(text []byte) error {
	for _, tier := range Tiers {
		if tier.String() == string(text) {
			*t = tier
			return nil
		}
	}
	return fmt.Errorf("unknown tier %q", text)
}

// TierFor maps a consecutive-behind count to a tier.
func TierFor(behind int) Tier {
	switch {
	case behind <= 0:
		return Standard
	case behind <= 4:
		return InitialAccelerated
	case behind <= 9:
		return Accelerated
	default:
		return SuperAccelerated
	}
}

// Role distinguishes the primary worker from dynamically started ones.
type Role int

const (
	// RolePrimary is the single worker that runs for the whole session.
	RolePrimary Role = iota
	// RoleParallel is any worker started by the scaling rules.
	RoleParallel
)

// Policy picks the tier and a randomized delay for the next vote. It is safe
// for concurrent use; the random source is guarded by a mutex.
type Policy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewPolicy returns a Policy drawing from a PCG source seeded with seed.
// A zero seed picks a random one.
func NewPolicy(seed uint64) *Policy {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return NewPolicyWithRand(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// NewPolicyWithRand returns a Policy using r as its random source.
func NewPolicyWithRand(r *rand.Rand) *Policy {
	return &Policy{rng: r}
}

// Tier returns the tier a worker with the given role votes at.
func (p *Policy) Tier(behind int, role Role) Tier {
	if role == RoleParallel {
		return SuperAccelerated
	}
	return TierFor(behind)
}

// Delay returns the tier and a whole-second delay drawn uniformly from the
// tier's inclusive range.
func (p *Policy) Delay(behind int, role Role) (Tier, time.Duration) {
	tier := p.Tier(behind, role)
	r := tierRanges[tier]

	p.mu.Lock()
	secs := r[0] + p.rng.IntN(r[1]-r[0]+1)
	p.mu.Unlock()

	return tier, time.Duration(secs) * time.Second
}
