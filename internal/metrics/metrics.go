// Package metrics exposes the scheduler's behavior as Prometheus metrics.
// A Collector subscribes to the event bus and updates its series from the
// events workers publish; nothing in the pool depends on it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rally-hq/rally/internal/event"
)

const namespace = "rally"

// Collector holds every rally series.
type Collector struct {
	VotesTotal         *prometheus.CounterVec
	BackoffVotesTotal  prometheus.Counter
	RejectedVotesTotal prometheus.Counter
	FailedAttempts     prometheus.Counter
	ScalingDecisions   *prometheus.CounterVec

	ActiveWorkers     prometheus.Gauge
	RunningWorkers    prometheus.Gauge
	BehindCount       prometheus.Gauge
	BackoffMultiplier prometheus.Gauge
	LeadPercent       prometheus.Gauge
	TargetPercent     prometheus.Gauge
	TargetRank        prometheus.Gauge

	NextDelay *prometheus.HistogramVec
}

// New registers the rally series with reg. Use prometheus.DefaultRegisterer
// to serve them from the default /metrics handler.
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		VotesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "votes",
			Name:      "total",
			Help:      "Successful votes by timing tier",
		}, []string{"tier", "worker"}),
		BackoffVotesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "votes",
			Name:      "backoff_total",
			Help:      "Successful votes whose delay was lengthened by backoff",
		}),
		RejectedVotesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "votes",
			Name:      "rejected_total",
			Help:      "Attempts that completed but whose vote did not register",
		}),
		FailedAttempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attempts",
			Name:      "failed_total",
			Help:      "Attempts that produced no result",
		}),
		ScalingDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "scaling_decisions_total",
			Help:      "Worker scale up and scale down decisions",
		}, []string{"action"}),
		ActiveWorkers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "active_workers",
			Help:      "Workers running or finishing their last attempt",
		}),
		RunningWorkers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "running_workers",
			Help:      "Worker loops currently executing",
		}),
		BehindCount: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "consecutive_behind",
			Help:      "Consecutive observations with the target not in first place",
		}),
		BackoffMultiplier: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "backoff_multiplier",
			Help:      "Current delay multiplier",
		}),
		LeadPercent: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "lead_percent",
			Help:      "Lead over second place, 0 when not ahead",
		}),
		TargetPercent: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "target_percent",
			Help:      "Last observed share of the target",
		}),
		TargetRank: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "target_rank",
			Help:      "Last observed rank of the target, 0 when not found",
		}),
		NextDelay: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "timing",
			Name:      "next_delay_seconds",
			Help:      "Scheduled sleep before a worker's next attempt",
			Buckets:   []float64{3, 5, 10, 16, 37, 67, 100, 150, 200, 300},
		}, []string{"tier"}),
	}
}

// Subscribe wires the collector to bus and returns the subscription IDs.
func (c *Collector) Subscribe(bus *event.Bus) []string {
	return []string{
		bus.Subscribe(event.TypeVoteCompleted, c.onVote),
		bus.Subscribe(event.TypeAttemptFailed, func(event.Event) { c.FailedAttempts.Inc() }),
		bus.Subscribe(event.TypeScalingDecision, c.onScaling),
		bus.Subscribe(event.TypeWorkerStarted, func(event.Event) { c.RunningWorkers.Inc() }),
		bus.Subscribe(event.TypeWorkerStopped, func(event.Event) { c.RunningWorkers.Dec() }),
	}
}

func (c *Collector) onVote(e event.Event) {
	v, ok := e.(event.VoteCompletedEvent)
	if !ok {
		return
	}
	c.ActiveWorkers.Set(float64(v.Active))
	if !v.Success {
		c.RejectedVotesTotal.Inc()
		return
	}

	c.VotesTotal.WithLabelValues(v.Tier.String(), v.WorkerID).Inc()
	if v.BackoffApplied {
		c.BackoffVotesTotal.Inc()
	}
	c.BehindCount.Set(float64(v.Behind))
	c.BackoffMultiplier.Set(v.Multiplier)
	c.TargetRank.Set(float64(v.Rank))
	c.TargetPercent.Set(v.Percent)
	if v.HasLead {
		c.LeadPercent.Set(v.Lead)
	} else {
		c.LeadPercent.Set(0)
	}
	c.NextDelay.WithLabelValues(v.Tier.String()).Observe(v.Delay.Seconds())
}

func (c *Collector) onScaling(e event.Event) {
	d, ok := e.(event.ScalingDecisionEvent)
	if !ok {
		return
	}
	c.ScalingDecisions.WithLabelValues(d.Decision.Action.String()).Inc()
	c.ActiveWorkers.Set(float64(d.Active))
}
