package event

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rally-hq/rally/internal/logging"
	"github.com/rally-hq/rally/internal/scaling"
)

func TestBus_Subscribe(t *testing.T) {
	bus := NewBus(nil)

	called := false
	id := bus.Subscribe(TypeVoteCompleted, func(e Event) {
		called = true
	})

	if id == "" {
		t.Error("Subscribe should return a non-empty ID")
	}
	if bus.SubscriptionCount() != 1 {
		t.Errorf("Expected 1 subscription, got %d", bus.SubscriptionCount())
	}
	if called {
		t.Error("Handler should not be called until an event is published")
	}
}

func TestBus_Publish(t *testing.T) {
	bus := NewBus(nil)

	var received Event
	bus.Subscribe(TypeWorkerStarted, func(e Event) {
		received = e
	})

	bus.Publish(NewWorkerStartedEvent("Parallel-2", 2))

	if received == nil {
		t.Fatal("Handler should have received the event")
	}
	started, ok := received.(WorkerStartedEvent)
	if !ok {
		t.Fatalf("Expected WorkerStartedEvent, got %T", received)
	}
	if started.WorkerID != "Parallel-2" || started.Slot != 2 {
		t.Errorf("Unexpected payload: %+v", started)
	}
}

func TestBus_PublishNoMatchingHandlers(t *testing.T) {
	bus := NewBus(nil)

	bus.Subscribe(TypeWorkerStopped, func(e Event) {
		t.Error("Handler should not be called for non-matching event type")
	})

	bus.Publish(NewWorkerStartedEvent("Main", 0))
}

func TestBus_SpecificBeforeWildcard(t *testing.T) {
	bus := NewBus(nil)

	var order []string
	bus.SubscribeAll(func(e Event) {
		order = append(order, "wildcard:"+e.EventType())
	})
	bus.Subscribe(TypeBackoffChanged, func(e Event) {
		order = append(order, "specific:"+e.EventType())
	})

	bus.Publish(NewBackoffChangedEvent(1.0, 1.5, 20, true))

	want := []string{"specific:backoff.changed", "wildcard:backoff.changed"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("Expected %v, got %v", want, order)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(nil)

	calls := 0
	keep := bus.Subscribe(TypeVoteCompleted, func(e Event) { calls++ })
	drop := bus.Subscribe(TypeVoteCompleted, func(e Event) { calls += 100 })

	if !bus.Unsubscribe(drop) {
		t.Fatal("Unsubscribe should find the subscription")
	}
	if bus.Unsubscribe(drop) {
		t.Error("Second Unsubscribe of the same ID should return false")
	}
	if bus.Unsubscribe("sub-does-not-exist") {
		t.Error("Unsubscribe of an unknown ID should return false")
	}

	bus.Publish(NewVoteCompletedEvent("Main", 1, true))
	if calls != 1 {
		t.Errorf("Expected only the kept handler to run, got calls=%d", calls)
	}
	_ = keep
}

func TestBus_Clear(t *testing.T) {
	bus := NewBus(nil)
	bus.Subscribe(TypeVoteCompleted, func(e Event) {})
	bus.SubscribeAll(func(e Event) {})

	bus.Clear()

	if bus.SubscriptionCount() != 0 {
		t.Errorf("Expected 0 subscriptions after clear, got %d", bus.SubscriptionCount())
	}
}

func TestBus_HandlerPanicRecovery(t *testing.T) {
	var buf bytes.Buffer
	bus := NewBus(logging.NewWriterLogger(&buf, logging.LevelDebug))

	calls := 0
	bus.Subscribe(TypeAttemptFailed, func(e Event) {
		calls++
		panic("handler panic")
	})
	bus.Subscribe(TypeAttemptFailed, func(e Event) {
		calls++
	})

	bus.Publish(NewAttemptFailedEvent("Main", 3, errors.New("timeout"), 5*time.Second))

	if calls != 2 {
		t.Errorf("Expected both handlers to be called despite panic, got %d calls", calls)
	}
	if !strings.Contains(buf.String(), "event handler panicked") {
		t.Errorf("Expected the panic to be logged, got %q", buf.String())
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus(nil)

	var mu sync.Mutex
	calls := 0
	bus.Subscribe(TypeVoteCompleted, func(e Event) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Go(func() {
			bus.Publish(NewVoteCompletedEvent("Main", int64(i), true))
		})
	}
	wg.Wait()

	if calls != 100 {
		t.Errorf("Expected 100 calls, got %d", calls)
	}
}

func TestBus_ConcurrentSubscribeUnsubscribe(t *testing.T) {
	bus := NewBus(nil)

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			id := bus.Subscribe(TypeVoteCompleted, func(e Event) {})
			bus.Publish(NewVoteCompletedEvent("Main", 1, true))
			bus.Unsubscribe(id)
		})
	}
	wg.Wait()

	if bus.SubscriptionCount() != 0 {
		t.Errorf("Expected 0 subscriptions after concurrent add/remove, got %d", bus.SubscriptionCount())
	}
}

func TestBus_UniqueIDs(t *testing.T) {
	bus := NewBus(nil)

	ids := make(map[string]bool)
	for range 100 {
		id := bus.Subscribe(TypeVoteCompleted, func(e Event) {})
		if ids[id] {
			t.Errorf("Duplicate subscription ID: %s", id)
		}
		ids[id] = true
	}
}

func TestEventTypes(t *testing.T) {
	tests := []struct {
		event Event
		want  string
	}{
		{NewWorkerStartedEvent("Main", 0), TypeWorkerStarted},
		{NewWorkerStoppedEvent("Parallel-1", 1, "scaled down"), TypeWorkerStopped},
		{NewVoteCompletedEvent("Main", 1, true), TypeVoteCompleted},
		{NewAttemptFailedEvent("Main", 1, nil, time.Second), TypeAttemptFailed},
		{NewScalingDecisionEvent(scaling.Decision{Action: scaling.ActionScaleUp, Slot: 1}, 2), TypeScalingDecision},
		{NewBackoffChangedEvent(1.5, 1.0, 0, false), TypeBackoffChanged},
		{NewConfigReloadedEvent(20, "debug"), TypeConfigReloaded},
	}

	for _, tt := range tests {
		if tt.event.EventType() != tt.want {
			t.Errorf("EventType() = %q, want %q", tt.event.EventType(), tt.want)
		}
		if tt.event.Timestamp().IsZero() {
			t.Errorf("%s: timestamp should be set", tt.want)
		}
	}
}

func TestBackoffChangedEvent_Engaged(t *testing.T) {
	tests := []struct {
		prev, cur float64
		want      bool
	}{
		{1.0, 1.5, true},
		{1.5, 2.25, false},
		{2.25, 1.0, false},
	}
	for _, tt := range tests {
		if got := NewBackoffChangedEvent(tt.prev, tt.cur, 0, false).Engaged(); got != tt.want {
			t.Errorf("Engaged(%v -> %v) = %v, want %v", tt.prev, tt.cur, got, tt.want)
		}
	}
}
