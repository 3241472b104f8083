package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel/trace"

	"github.com/rally-hq/rally/internal/activitylog"
	"github.com/rally-hq/rally/internal/errors"
	"github.com/rally-hq/rally/internal/event"
	"github.com/rally-hq/rally/internal/logging"
	"github.com/rally-hq/rally/internal/position"
	"github.com/rally-hq/rally/internal/scaling"
	"github.com/rally-hq/rally/internal/stats"
	"github.com/rally-hq/rally/internal/timing"
	"github.com/rally-hq/rally/internal/tracing"
	"github.com/rally-hq/rally/internal/vote"
)

// DefaultFailureDelay is the pause after an attempt that did not produce a
// counted vote.
const DefaultFailureDelay = 5 * time.Second

// Recorder persists completed attempts. *activitylog.Log implements it.
type Recorder interface {
	Append(rec activitylog.Record) error
}

// Config wires a Pool to its collaborators. Voter, Tracker, State and
// Timing are required; everything else has a usable default.
type Config struct {
	Voter   vote.Voter
	Tracker *position.Tracker
	State   *position.State
	Timing  *timing.Policy

	Stats    *stats.Aggregator
	Recorder Recorder
	Bus      *event.Bus
	Clock    timing.Clock
	Logger   *logging.Logger
	Tracer   trace.Tracer

	SessionID       string
	FailureDelay    time.Duration
	SaveTopResults  bool
	TopResultsCount int
}

// Pool runs the primary worker for the whole session and starts or stops
// parallel workers as the shared position state decides.
type Pool struct {
	cfg    Config
	logger *logging.Logger

	wg conc.WaitGroup

	mu      sync.Mutex
	ctx     context.Context
	runs    map[int]*slotRun
	running bool
}

// slotRun is one spawn of a parallel worker. A slot can be reused once its
// worker has stopped, so each spawn gets its own cancel.
type slotRun struct {
	cancel context.CancelFunc
}

// New validates cfg and returns a Pool ready to Run.
func New(cfg Config) (*Pool, error) {
	switch {
	case cfg.Voter == nil:
		return nil, errors.NewConfigurationError("pool requires a voter", nil)
	case cfg.Tracker == nil:
		return nil, errors.NewConfigurationError("pool requires a position tracker", nil)
	case cfg.State == nil:
		return nil, errors.NewConfigurationError("pool requires a position state", nil)
	case cfg.Timing == nil:
		return nil, errors.NewConfigurationError("pool requires a timing policy", nil)
	}

	if cfg.Stats == nil {
		cfg.Stats = stats.New()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = discardRecorder{}
	}
	if cfg.Bus == nil {
		cfg.Bus = event.NewBus(cfg.Logger)
	}
	if cfg.Clock == nil {
		cfg.Clock = timing.RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NopLogger()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = tracing.Tracer("github.com/rally-hq/rally/internal/pool")
	}
	if cfg.FailureDelay <= 0 {
		cfg.FailureDelay = DefaultFailureDelay
	}
	if cfg.TopResultsCount <= 0 {
		cfg.TopResultsCount = 5
	}

	return &Pool{
		cfg:     cfg,
		logger:  cfg.Logger.WithComponent("pool"),
		runs:    make(map[int]*slotRun),
	}, nil
}

// WorkerID names the worker in slot k. Slot 0 is the primary worker.
func WorkerID(slot int) string {
	if slot == 0 {
		return "Main"
	}
	return fmt.Sprintf("Parallel-%d", slot)
}

// Stats returns the aggregator the pool records into.
func (p *Pool) Stats() *stats.Aggregator { return p.cfg.Stats }

// Bus returns the event bus the pool publishes to.
func (p *Pool) Bus() *event.Bus { return p.cfg.Bus }

// Run starts the primary worker and any workers the seeded state calls for,
// then blocks until ctx is cancelled and every worker has exited. In-flight
// attempts are allowed to finish; sleeps are cut short.
func (p *Pool) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("pool is already running")
	}
	p.running = true
	p.ctx = ctx
	p.mu.Unlock()

	snap := p.cfg.State.Snapshot()
	p.logger.Info("worker pool starting",
		"max_threads", snap.MaxThreads,
		"force_parallel", snap.ForceParallel,
		"seed_behind", snap.Behind)

	p.spawn(0)
	p.apply(p.cfg.State.Reconcile())

	<-ctx.Done()
	p.logger.Info("shutdown requested, waiting for workers")
	p.wg.Wait()
	p.logger.Info("all workers stopped")
	return nil
}

// spawn starts the worker loop for slot. It is a no-op once the pool is
// shutting down.
func (p *Pool) spawn(slot int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx == nil || p.ctx.Err() != nil {
		return
	}
	wctx, cancel := context.WithCancel(p.ctx)
	run := &slotRun{cancel: cancel}
	if slot > 0 {
		p.runs[slot] = run
	}
	p.wg.Go(func() {
		defer p.release(slot, run)
		p.runWorker(wctx, slot)
	})
}

// release cancels run and forgets it unless the slot has been respawned.
func (p *Pool) release(slot int, run *slotRun) {
	run.cancel()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.runs[slot] == run {
		delete(p.runs, slot)
	}
}

// stop interrupts the sleep of the worker in slot. Its in-flight attempt
// runs to completion. A decision applied after the slot was already
// restarted finds it no longer stopping and leaves the new worker alone.
func (p *Pool) stop(slot int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.cfg.State.StopRequested(slot) {
		return
	}
	if run := p.runs[slot]; run != nil {
		run.cancel()
	}
}

// apply carries out decisions already committed to the position state.
func (p *Pool) apply(decisions []scaling.Decision) {
	if len(decisions) == 0 || p.shuttingDown() {
		return
	}
	active := p.cfg.State.Snapshot().Active
	for _, d := range decisions {
		p.logger.Info("scaling decision",
			"action", d.Action.String(),
			"worker_id", WorkerID(d.Slot),
			"behind", d.Behind,
			"reason", d.Reason,
			"active", active)
		p.cfg.Bus.Publish(event.NewScalingDecisionEvent(d, active))

		switch d.Action {
		case scaling.ActionScaleUp:
			p.spawn(d.Slot)
		case scaling.ActionScaleDown:
			p.stop(d.Slot)
		}
	}
}

func (p *Pool) shuttingDown() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ctx == nil || p.ctx.Err() != nil
}

type discardRecorder struct{}

func (discardRecorder) Append(activitylog.Record) error { return nil }
