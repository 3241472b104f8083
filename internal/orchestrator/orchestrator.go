// Package orchestrator wires a voting session together and owns its
// lifecycle: validate, open the activity log, run the worker pool and its
// companions, shut down on a signal and print the final statistics once.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/rally-hq/rally/internal/activitylog"
	"github.com/rally-hq/rally/internal/config"
	"github.com/rally-hq/rally/internal/errors"
	"github.com/rally-hq/rally/internal/event"
	"github.com/rally-hq/rally/internal/logging"
	"github.com/rally-hq/rally/internal/metrics"
	"github.com/rally-hq/rally/internal/pool"
	"github.com/rally-hq/rally/internal/position"
	"github.com/rally-hq/rally/internal/report"
	"github.com/rally-hq/rally/internal/scaling"
	"github.com/rally-hq/rally/internal/stats"
	"github.com/rally-hq/rally/internal/timing"
	"github.com/rally-hq/rally/internal/tracing"
	"github.com/rally-hq/rally/internal/tui"
	"github.com/rally-hq/rally/internal/vote"
	"github.com/rally-hq/rally/internal/voter"
)

// tracingShutdownTimeout bounds the final span export.
const tracingShutdownTimeout = 5 * time.Second

// Options configures an Orchestrator. Config is required.
type Options struct {
	Config *config.Config
	// Verbose forces debug logging regardless of logging.level.
	Verbose bool
	// LiveView draws the per-worker status view. The caller decides this
	// from the terminal; logs then go to a file.
	LiveView bool
	// HandleSignals stops the session on SIGINT and SIGTERM.
	HandleSignals bool

	// Out receives the final statistics (default os.Stdout).
	Out io.Writer
	// Err receives warnings and, when no log file is used, the logs
	// (default os.Stderr).
	Err io.Writer

	// Voter replaces the configured voter. It is still wrapped in the
	// attempt timeout guard.
	Voter vote.Voter
	// Clock defaults to the wall clock.
	Clock timing.Clock
	// Registry receives the metrics (default: a fresh registry).
	Registry *prometheus.Registry
	// NumCPU defaults to runtime.NumCPU.
	NumCPU int
}

// Orchestrator runs one voting session.
type Orchestrator struct {
	opts      Options
	cfg       *config.Config
	sessionID string

	rootLogger *logging.Logger
	logger     *logging.Logger

	log       *activitylog.Log
	stats     *stats.Aggregator
	state     *position.State
	bus       *event.Bus
	pool      *pool.Pool
	registry  *prometheus.Registry
	collector *metrics.Collector

	shutdownTracing tracing.Shutdown
	started         time.Time

	closeOnce sync.Once
	closeErr  error
}

// New validates the configuration and builds every component. Nothing
// runs until Run. Configuration and activity log problems are returned
// before any worker starts.
func New(ctx context.Context, opts Options) (*Orchestrator, error) {
	if opts.Config == nil {
		return nil, errors.NewConfigurationError("no configuration", errors.ErrInvalidInput)
	}
	if errs := opts.Config.Validate(); len(errs) > 0 {
		return nil, errors.NewConfigurationError("invalid configuration", config.ValidationErrors(errs))
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	if opts.Clock == nil {
		opts.Clock = timing.RealClock{}
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.NumCPU <= 0 {
		opts.NumCPU = runtime.NumCPU()
	}

	cfg := opts.Config
	o := &Orchestrator{
		opts:      opts,
		cfg:       cfg,
		sessionID: NewSessionID(opts.Clock.Now()),
		stats:     stats.New(),
		registry:  opts.Registry,
	}

	if err := o.initLogger(); err != nil {
		return nil, err
	}
	o.warnOversubscribed()

	log, err := activitylog.Open(cfg.ActivityLog.Path, func() map[string]int64 {
		return o.stats.Snapshot().Counters()
	})
	if err != nil {
		o.logger.Error("failed to open activity log", "path", cfg.ActivityLog.Path, "error", err)
		_ = o.rootLogger.Close()
		return nil, err
	}
	o.log = log
	o.logger.Info("activity log opened",
		"path", log.Path(),
		"records", log.Len(),
		"total_votes", log.Baseline().Get(stats.KeyTotalVotes))

	shutdown, err := tracing.Init(ctx, cfg.Tracing.Endpoint, cfg.Tracing.Insecure, o.sessionID)
	if err != nil {
		_ = log.Close()
		_ = o.rootLogger.Close()
		return nil, errors.Wrap(err, "failed to initialize tracing")
	}
	o.shutdownTracing = shutdown

	seed := cfg.Voting.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	policy := scaling.NewPolicy(
		scaling.WithMaxThreads(cfg.Voting.MaxThreads),
		scaling.WithForceParallel(cfg.Voting.ForceParallel))
	o.state = position.NewState(policy, cfg.Voting.StartThreads, cfg.Voting.LeadThreshold)
	o.bus = event.NewBus(o.logger)
	o.collector = metrics.New(o.registry)
	o.collector.Subscribe(o.bus)

	p, err := pool.New(pool.Config{
		Voter:           o.buildVoter(seed),
		Tracker:         position.NewTracker(cfg.Voting.Target, o.logger),
		State:           o.state,
		Timing:          timing.NewPolicy(seed),
		Stats:           o.stats,
		Recorder:        log,
		Bus:             o.bus,
		Clock:           opts.Clock,
		Logger:          o.logger,
		SessionID:       o.sessionID,
		FailureDelay:    cfg.Voting.FailureDelay(),
		SaveTopResults:  cfg.Voting.SaveTopResults,
		TopResultsCount: cfg.Voting.TopResultsCount,
	})
	if err != nil {
		_ = log.Close()
		_ = o.rootLogger.Close()
		return nil, err
	}
	o.pool = p
	return o, nil
}

func (o *Orchestrator) initLogger() error {
	level := o.cfg.Logging.Level
	if o.opts.Verbose {
		level = logging.LevelDebug
	}

	root := logging.NewWriterLogger(o.opts.Err, level)
	if dir := o.cfg.Logging.ResolveLogDir(o.opts.LiveView); dir != "" {
		l, err := logging.NewLoggerWithRotation(dir, level, logging.RotationConfig{
			MaxSizeMB:  o.cfg.Logging.MaxSizeMB,
			MaxBackups: o.cfg.Logging.MaxBackups,
			Compress:   o.cfg.Logging.Compress,
		})
		if err != nil {
			return errors.NewConfigurationError("cannot open log directory", err).WithField("logging.dir")
		}
		root = l
	}
	o.rootLogger = root
	o.logger = root.WithSession(o.sessionID)
	return nil
}

// warnOversubscribed warns when more workers may run than the machine can
// drive comfortably.
func (o *Orchestrator) warnOversubscribed() {
	rec := report.RecommendThreads(o.opts.NumCPU)
	if !rec.Oversubscribed(o.cfg.Voting.MaxThreads) {
		return
	}
	o.logger.Warn("max threads exceeds twice the logical CPU count",
		"max_threads", o.cfg.Voting.MaxThreads,
		"logical_cpus", rec.Logical,
		"recommended", rec.Conservative)
	fmt.Fprintf(o.opts.Err, "warning: --max-threads %d is more than twice the %d logical CPUs; consider %d\n",
		o.cfg.Voting.MaxThreads, rec.Logical, rec.Conservative)
}

func (o *Orchestrator) buildVoter(seed uint64) vote.Voter {
	cfg := o.cfg
	next := o.opts.Voter
	switch {
	case next != nil:
	case cfg.Voter.Simulate:
		o.logger.Info("using simulated poll", "competitors", cfg.Voter.SimulateCompetitors)
		next = voter.NewSimulator(cfg.Voting.Target, cfg.Voter.SimulateCompetitors, seed,
			voter.WithClock(o.opts.Clock))
	default:
		next = voter.NewCommand(cfg.Voter.Command, cfg.Voter.Args, o.logger).
			WithEnv("RALLY_TARGET="+cfg.Voting.Target, "RALLY_SESSION_ID="+o.sessionID)
	}
	return voter.NewGuard(next, cfg.Voting.AttemptTimeout(), o.logger)
}

// SessionID returns the ID stamped on every record of this session.
func (o *Orchestrator) SessionID() string { return o.sessionID }

// Bus returns the session's event bus.
func (o *Orchestrator) Bus() *event.Bus { return o.bus }

// Stats returns the session counters.
func (o *Orchestrator) Stats() *stats.Aggregator { return o.stats }

// Logger returns the session logger.
func (o *Orchestrator) Logger() *logging.Logger { return o.logger }

// Run votes until ctx is cancelled, a signal arrives or the user quits the
// status view. It then waits for in-flight attempts, closes the activity
// log and prints the final statistics.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.started = o.opts.Clock.Now()
	o.logger.Info("session starting",
		"target", o.cfg.Voting.Target,
		"start_threads", o.cfg.Voting.StartThreads,
		"max_threads", o.cfg.Voting.MaxThreads,
		"lead_threshold", o.cfg.Voting.LeadThreshold,
		"force_parallel", o.cfg.Voting.ForceParallel)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	if o.opts.HandleSignals {
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
	}

	g, gCtx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return o.pool.Run(gCtx)
	})

	g.Go(func() error {
		return metrics.Serve(gCtx, o.cfg.Metrics.Addr, o.registry, o.logger)
	})

	if o.opts.LiveView {
		g.Go(func() error {
			app := tui.New(o.bus, tui.Options{
				Target:     o.cfg.Voting.Target,
				SessionID:  o.sessionID,
				MaxThreads: o.cfg.Voting.MaxThreads,
				Cancel:     cancel,
			}, o.logger)
			if err := app.Run(gCtx); err != nil {
				// Voting carries on without the view.
				o.logger.Warn("status view exited", "error", err)
			}
			return nil
		})
	}

	// Signal handler
	g.Go(func() error {
		select {
		case sig := <-sigCh:
			o.logger.Info("received signal, shutting down", "signal", sig.String())
			cancel()
		case <-gCtx.Done():
		}
		return nil
	})

	runErr := g.Wait()
	if runErr != nil && errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	if runErr != nil {
		o.logger.Error("session exited with error", "error", runErr)
	}
	if err := o.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// ApplyConfig applies the settings that may change while running: the
// lead threshold and the log level. Everything else needs a restart.
func (o *Orchestrator) ApplyConfig(cfg *config.Config) {
	o.state.SetLeadThreshold(cfg.Voting.LeadThreshold)
	level := cfg.Logging.Level
	if !o.opts.Verbose {
		o.logger.SetLevel(level)
	}
	o.logger.Info("configuration reloaded",
		"lead_threshold", cfg.Voting.LeadThreshold,
		"log_level", o.logger.Level())
	o.bus.Publish(event.NewConfigReloadedEvent(cfg.Voting.LeadThreshold, level))
}

// Close flushes the activity log, prints the final statistics and releases
// every resource. Only the first call does anything; Run calls it itself.
func (o *Orchestrator) Close() error {
	o.closeOnce.Do(func() {
		var errs []error
		if err := o.log.Close(); err != nil {
			o.logger.Error("failed to close activity log", "error", err)
			errs = append(errs, err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), tracingShutdownTimeout)
		if err := o.shutdownTracing(ctx); err != nil {
			o.logger.Warn("tracing shutdown error", "error", err)
		}
		cancel()

		counts := o.stats.Snapshot()
		ended := o.opts.Clock.Now()
		started := o.started
		if started.IsZero() {
			started = ended
		}
		o.logger.Info("session finished",
			"total_votes", counts.TotalVotes,
			"failed_attempts", counts.FailedAttempts,
			"duration", ended.Sub(started).String())

		fmt.Fprint(o.opts.Out, report.RenderSession(report.Session{
			SessionID: o.sessionID,
			Target:    o.cfg.Voting.Target,
			Started:   started,
			Ended:     ended,
			Counts:    counts,
			Overall:   o.log.Summary(),
			LogPath:   o.log.Path(),
		}))

		if err := o.rootLogger.Close(); err != nil {
			errs = append(errs, err)
		}
		o.closeErr = errors.Join(errs...)
	})
	return o.closeErr
}
