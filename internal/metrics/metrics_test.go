package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rally-hq/rally/internal/event"
	"github.com/rally-hq/rally/internal/scaling"
	"github.com/rally-hq/rally/internal/timing"
)

func newCollector(t *testing.T) (*Collector, *prometheus.Registry, *event.Bus) {
	t.Helper()
	reg := prometheus.NewRegistry()
	c := New(reg)
	bus := event.NewBus(nil)
	require.Len(t, c.Subscribe(bus), 5)
	return c, reg, bus
}

func TestCollector_VoteEvents(t *testing.T) {
	c, _, bus := newCollector(t)

	ok := event.NewVoteCompletedEvent("Main", 1, true)
	ok.Tier = timing.Accelerated
	ok.Behind = 6
	ok.Rank = 2
	ok.Percent = 31.5
	ok.Multiplier = 1
	ok.Delay = 9 * time.Second
	ok.Active = 1
	bus.Publish(ok)

	ahead := event.NewVoteCompletedEvent("Main", 2, true)
	ahead.Tier = timing.Standard
	ahead.Rank = 1
	ahead.IsAhead = true
	ahead.HasLead = true
	ahead.Lead = 22
	ahead.Multiplier = 1.5
	ahead.BackoffApplied = true
	ahead.Delay = 90 * time.Second
	ahead.Active = 1
	bus.Publish(ahead)

	bus.Publish(event.NewVoteCompletedEvent("Parallel-1", 3, false))
	bus.Publish(event.NewAttemptFailedEvent("Main", 4, nil, 5*time.Second))

	assert.Equal(t, 1.0, promtest.ToFloat64(c.VotesTotal.WithLabelValues("Accelerated", "Main")))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.VotesTotal.WithLabelValues("Standard", "Main")))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.BackoffVotesTotal))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.RejectedVotesTotal))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.FailedAttempts))
	assert.Equal(t, 0.0, promtest.ToFloat64(c.BehindCount))
	assert.Equal(t, 22.0, promtest.ToFloat64(c.LeadPercent))
	assert.Equal(t, 1.5, promtest.ToFloat64(c.BackoffMultiplier))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.TargetRank))
}

func TestCollector_WorkerEvents(t *testing.T) {
	c, _, bus := newCollector(t)

	bus.Publish(event.NewWorkerStartedEvent("Main", 0))
	bus.Publish(event.NewWorkerStartedEvent("Parallel-1", 1))
	bus.Publish(event.NewScalingDecisionEvent(scaling.Decision{Action: scaling.ActionScaleUp, Slot: 1}, 2))
	bus.Publish(event.NewScalingDecisionEvent(scaling.Decision{Action: scaling.ActionScaleDown, Slot: 1}, 2))
	bus.Publish(event.NewWorkerStoppedEvent("Parallel-1", 1, "scaled down"))

	assert.Equal(t, 1.0, promtest.ToFloat64(c.RunningWorkers))
	assert.Equal(t, 2.0, promtest.ToFloat64(c.ActiveWorkers))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.ScalingDecisions.WithLabelValues("scale_up")))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.ScalingDecisions.WithLabelValues("scale_down")))
}

func TestHandler(t *testing.T) {
	c, reg, _ := newCollector(t)
	c.FailedAttempts.Inc()

	srv := httptest.NewServer(Handler(reg, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "rally_attempts_failed_total 1")

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", strings.TrimSpace(string(body)))
}

func TestServe_DisabledWithoutAddr(t *testing.T) {
	assert.NoError(t, Serve(context.Background(), "", prometheus.NewRegistry(), nil))
}

func TestServe_StopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, addr, prometheus.NewRegistry(), nil) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
