// Package bench measures throughput at fixed worker counts against the
// poll simulator, with scheduling delays compressed by a scaled clock.
package bench

import (
	"context"
	"sync"
	"time"

	"github.com/rally-hq/rally/internal/errors"
	"github.com/rally-hq/rally/internal/event"
	"github.com/rally-hq/rally/internal/logging"
	"github.com/rally-hq/rally/internal/pool"
	"github.com/rally-hq/rally/internal/position"
	"github.com/rally-hq/rally/internal/report"
	"github.com/rally-hq/rally/internal/scaling"
	"github.com/rally-hq/rally/internal/stats"
	"github.com/rally-hq/rally/internal/timing"
	"github.com/rally-hq/rally/internal/voter"
)

// Options configures a benchmark. Duration and Latency are simulated time.
type Options struct {
	Target      string
	Competitors []string
	Duration    time.Duration
	Scale       float64
	Seed        uint64
	Latency     time.Duration
	FailureRate float64
	RejectRate  float64
	Logger      *logging.Logger
}

// Run benchmarks each worker count in turn and returns one result per count.
func Run(ctx context.Context, threads []int, opts Options) ([]report.BenchResult, error) {
	if len(threads) == 0 {
		return nil, errors.NewConfigurationError("no worker counts to benchmark", errors.ErrInvalidInput)
	}
	if opts.Duration <= 0 {
		return nil, errors.NewConfigurationError("benchmark duration must be positive", errors.ErrInvalidInput).
			WithField("duration")
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}

	results := make([]report.BenchResult, 0, len(threads))
	for _, n := range threads {
		if n < 1 {
			return nil, errors.NewConfigurationError("worker count must be at least 1", errors.ErrInvalidInput).
				WithField("threads")
		}
		res, err := runOne(ctx, n, opts)
		if err != nil {
			return results, err
		}
		results = append(results, res)
		if ctx.Err() != nil {
			break
		}
	}
	return results, nil
}

func runOne(ctx context.Context, threads int, opts Options) (report.BenchResult, error) {
	logger := opts.Logger.With("threads", threads)
	clock := timing.NewScaledClock(opts.Scale)

	sim := voter.NewSimulator(opts.Target, opts.Competitors, opts.Seed,
		voter.WithClock(clock),
		voter.WithLatency(opts.Latency),
		voter.WithFailureRate(opts.FailureRate),
		voter.WithRejectRate(opts.RejectRate))

	// Every worker runs for the whole benchmark.
	policy := scaling.NewPolicy(scaling.WithMaxThreads(threads), scaling.WithForceParallel(true))
	state := position.NewState(policy, threads, timing.DefaultLeadThreshold)
	bus := event.NewBus(logger)
	counts := stats.New()

	var mu sync.Mutex
	perWorker := make(map[string]int64)
	bus.Subscribe(event.TypeVoteCompleted, func(e event.Event) {
		if ev, ok := e.(event.VoteCompletedEvent); ok && ev.Success {
			mu.Lock()
			perWorker[ev.WorkerID]++
			mu.Unlock()
		}
	})

	p, err := pool.New(pool.Config{
		Voter:   sim,
		Tracker: position.NewTracker(opts.Target, logger),
		State:   state,
		Timing:  timing.NewPolicy(opts.Seed),
		Stats:   counts,
		Bus:     bus,
		Clock:   clock,
		Logger:  logger,
	})
	if err != nil {
		return report.BenchResult{}, err
	}

	logger.Info("benchmark starting", "duration", opts.Duration.String(), "scale", clock.Scale())
	start := clock.Now()
	rctx, cancel := context.WithTimeout(ctx, clock.ToReal(opts.Duration))
	defer cancel()
	if err := p.Run(rctx); err != nil {
		return report.BenchResult{}, err
	}
	elapsed := clock.Now().Sub(start)

	snap := counts.Snapshot()
	mu.Lock()
	defer mu.Unlock()
	res := report.BenchResult{
		Threads:   threads,
		Duration:  elapsed,
		Attempts:  snap.Attempts,
		Votes:     snap.TotalVotes,
		Failures:  snap.FailedAttempts,
		PerWorker: perWorker,
	}
	logger.Info("benchmark finished", "votes", res.Votes, "votes_per_minute", res.VotesPerMinute())
	return res, nil
}
