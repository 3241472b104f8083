package tui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rally-hq/rally/internal/event"
	"github.com/rally-hq/rally/internal/scaling"
	"github.com/rally-hq/rally/internal/timing"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func newTestModel() Model {
	return NewModel(Options{Target: "Target", SessionID: "20260301-120000_abcd1234", MaxThreads: 4, Now: fixedNow})
}

func send(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestModel_TracksWorkers(t *testing.T) {
	vote := event.NewVoteCompletedEvent("Main", 1, true)
	vote.Found = true
	vote.Rank = 2
	vote.Percent = 31.5
	vote.Behind = 3
	vote.Tier = timing.Standard
	vote.Delay = 90 * time.Second
	vote.Active = 1

	m := send(t, newTestModel(),
		eventMsg{event.NewWorkerStartedEvent("Main", 0)},
		eventMsg{vote},
		eventMsg{event.NewWorkerStartedEvent("Parallel-1", 1)},
	)

	rows := m.rows()
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].id != "Main" || rows[1].id != "Parallel-1" {
		t.Errorf("rows not ordered by slot: %s, %s", rows[0].id, rows[1].id)
	}
	if rows[0].votes != 1 || rows[0].status != statusSleeping {
		t.Errorf("Main = %+v, want one vote and sleeping", rows[0])
	}
	if m.behind != 3 || m.votes != 1 {
		t.Errorf("behind = %d votes = %d, want 3 and 1", m.behind, m.votes)
	}
}

func TestModel_RejectedVoteNotCounted(t *testing.T) {
	ev := event.NewVoteCompletedEvent("Main", 4, false)
	m := send(t, newTestModel(), eventMsg{ev})

	if m.votes != 0 {
		t.Errorf("votes = %d, want 0", m.votes)
	}
	if len(m.recent) != 1 || !strings.Contains(m.recent[0], "not accepted") {
		t.Errorf("recent = %v, want a not-accepted line", m.recent)
	}
}

func TestModel_FailuresAndScaling(t *testing.T) {
	failed := event.NewAttemptFailedEvent("Parallel-2", 7, errors.New("timeout"), 5*time.Second)
	down := event.NewScalingDecisionEvent(scaling.Decision{Action: scaling.ActionScaleDown, Slot: 2, Behind: 0}, 2)

	m := send(t, newTestModel(),
		eventMsg{event.NewWorkerStartedEvent("Parallel-2", 2)},
		eventMsg{failed},
		eventMsg{down},
	)

	r := m.workers["Parallel-2"]
	if r.failures != 1 || m.failures != 1 {
		t.Errorf("failures = %d/%d, want 1/1", r.failures, m.failures)
	}
	if r.status != statusStopping {
		t.Errorf("status = %q, want %q", r.status, statusStopping)
	}
	if m.active != 2 {
		t.Errorf("active = %d, want 2", m.active)
	}

	send(t, m, eventMsg{event.NewWorkerStoppedEvent("Parallel-2", 2, "scaled down")})
	if r.status != statusStopped {
		t.Errorf("status = %q, want %q", r.status, statusStopped)
	}
}

func TestModel_RecentIsBounded(t *testing.T) {
	m := newTestModel()
	for i := range maxRecent + 5 {
		m = send(t, m, eventMsg{event.NewAttemptFailedEvent("Main", int64(i), errors.New("x"), time.Second)})
	}
	if len(m.recent) != maxRecent {
		t.Errorf("recent = %d lines, want %d", len(m.recent), maxRecent)
	}
}

func TestModel_BackoffNotes(t *testing.T) {
	m := send(t, newTestModel(),
		eventMsg{event.NewBackoffChangedEvent(1, 1.5, 16.2, true)},
		eventMsg{event.NewBackoffChangedEvent(1.5, 1, 3, true)},
	)
	if m.multiplier != 1 {
		t.Errorf("multiplier = %v, want 1", m.multiplier)
	}
	if !strings.Contains(m.recent[0], "x1.50") || !strings.Contains(m.recent[1], "reset") {
		t.Errorf("recent = %v", m.recent)
	}
}

func TestModel_Countdown(t *testing.T) {
	m := newTestModel()
	r := &workerRow{status: statusSleeping, nextAt: fixedNow().Add(75 * time.Second)}
	if got := m.countdown(r); got != "1m15s" {
		t.Errorf("countdown = %q, want 1m15s", got)
	}

	m = send(t, m, tickMsg(fixedNow().Add(2*time.Minute)))
	if got := m.countdown(r); got != "now" {
		t.Errorf("countdown after deadline = %q, want now", got)
	}
	if got := m.displayStatus(r); got != statusVoting {
		t.Errorf("displayStatus = %q, want %q", got, statusVoting)
	}
}

func TestModel_QuitCancelsOnce(t *testing.T) {
	calls := 0
	m := NewModel(Options{Cancel: func() { calls++ }, Now: fixedNow})

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	next, _ = next.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if calls != 1 {
		t.Errorf("cancel called %d times, want 1", calls)
	}
	if next.View() != "" {
		t.Error("view should be empty after quitting")
	}
}

func TestModel_View(t *testing.T) {
	vote := event.NewVoteCompletedEvent("Main", 1, true)
	vote.Found = true
	vote.Rank = 1
	vote.Percent = 40
	vote.HasLead = true
	vote.Lead = 12.5
	vote.Tier = timing.Standard

	m := send(t, newTestModel(),
		tea.WindowSizeMsg{Width: 120, Height: 40},
		eventMsg{event.NewWorkerStartedEvent("Main", 0)},
		eventMsg{vote},
	)
	view := m.View()
	for _, want := range []string{"Target", "Main", "#1 40.00%", "+12.50", "Standard", "Recent activity"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestApp_QuitsWhenContextDone(t *testing.T) {
	bus := event.NewBus(nil)
	var out bytes.Buffer
	app := New(bus, Options{Target: "T", MaxThreads: 2}, nil,
		tea.WithInput(nil), tea.WithOutput(&out), tea.WithoutRenderer())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	bus.Publish(event.NewWorkerStartedEvent("Main", 0))
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if bus.SubscriptionCount() != 0 {
		t.Errorf("subscriptions = %d, want 0 after Run", bus.SubscriptionCount())
	}
}
