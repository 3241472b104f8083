// Package internal contains integration tests that run the worker pool
// against a scripted election with every bus subscriber attached.
package internal

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rally-hq/rally/internal/activitylog"
	"github.com/rally-hq/rally/internal/event"
	"github.com/rally-hq/rally/internal/metrics"
	"github.com/rally-hq/rally/internal/pool"
	"github.com/rally-hq/rally/internal/position"
	"github.com/rally-hq/rally/internal/scaling"
	"github.com/rally-hq/rally/internal/stats"
	"github.com/rally-hq/rally/internal/testutil"
	"github.com/rally-hq/rally/internal/timing"
	"github.com/rally-hq/rally/internal/vote"
)

// election reports the target in second place for the first behindFor
// attempts and comfortably ahead afterwards. It cancels the session once
// limit attempts have been made.
func election(behindFor, limit int64, cancel context.CancelFunc) vote.Voter {
	var n atomic.Int64
	return vote.VoterFunc(func(context.Context) (vote.Result, error) {
		i := n.Add(1)
		if i == limit {
			cancel()
		}
		if i <= behindFor {
			return vote.Result{Success: true, Snapshot: vote.Snapshot{
				{Name: "Other", Percent: 60},
				{Name: "Target", Percent: 40},
			}}, nil
		}
		return vote.Result{Success: true, Snapshot: vote.Snapshot{
			{Name: "Target", Percent: 70},
			{Name: "Other", Percent: 30},
		}}, nil
	})
}

func TestPoolScalesAndEverySubscriberAgrees(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := event.NewBus(nil)
	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)
	collector.Subscribe(bus)

	var mu sync.Mutex
	var decisions []scaling.Decision
	bus.Subscribe(event.TypeScalingDecision, func(e event.Event) {
		mu.Lock()
		defer mu.Unlock()
		decisions = append(decisions, e.(event.ScalingDecisionEvent).Decision)
	})

	agg := stats.New()
	logPath := filepath.Join(t.TempDir(), "voting_activity.json")
	log, err := activitylog.Open(logPath, func() map[string]int64 { return agg.Snapshot().Counters() })
	require.NoError(t, err)

	policy := scaling.NewPolicy(scaling.WithMaxThreads(3))
	state := position.NewState(policy, 1, timing.DefaultLeadThreshold)

	p, err := pool.New(pool.Config{
		Voter:     election(25, 80, cancel),
		Tracker:   position.NewTracker("Target", nil),
		State:     state,
		Timing:    timing.NewPolicy(7),
		Stats:     agg,
		Recorder:  log,
		Bus:       bus,
		Clock:     testutil.NewInstantClock(time.Now()),
		SessionID: "20260301-120000_abcd1234",
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("pool did not stop after the scripted session")
	}
	require.NoError(t, log.Close())

	counts := agg.Snapshot()
	require.GreaterOrEqual(t, counts.TotalVotes, int64(80))

	mu.Lock()
	var ups, downs int
	for _, d := range decisions {
		switch d.Action {
		case scaling.ActionScaleUp:
			ups++
			assert.Equal(t, 1, d.Slot)
		case scaling.ActionScaleDown:
			downs++
		}
	}
	mu.Unlock()
	assert.GreaterOrEqual(t, ups, 1, "behind streak should start a parallel worker")
	assert.GreaterOrEqual(t, downs, 1, "taking the lead should stop it again")
	assert.Equal(t, 0, state.Snapshot().Behind)

	assert.Equal(t, float64(ups), promtest.ToFloat64(collector.ScalingDecisions.WithLabelValues("scale_up")))
	assert.Equal(t, float64(counts.TotalVotes), sumCounter(t, reg, "rally_votes_total"))
	assert.Zero(t, promtest.ToFloat64(collector.FailedAttempts))

	doc, err := activitylog.Read(logPath)
	require.NoError(t, err)
	assert.Len(t, doc.Records, int(counts.TotalVotes))
	assert.Equal(t, counts.TotalVotes, doc.Summary.Get(stats.KeyTotalVotes))

	records := doc.DecodeRecords()
	require.NotEmpty(t, records)
	assert.Equal(t, pool.WorkerID(0), records[0].WorkerID)
}

func sumCounter(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
