package tui

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rally-hq/rally/internal/event"
	"github.com/rally-hq/rally/internal/pool"
	"github.com/rally-hq/rally/internal/scaling"
	"github.com/rally-hq/rally/internal/timing"
	"github.com/rally-hq/rally/internal/util"
)

// maxRecent is how many lines the recent-activity panel keeps.
const maxRecent = 8

// Worker status labels.
const (
	statusVoting   = "voting"
	statusSleeping = "sleeping"
	statusRetrying = "retrying"
	statusStopping = "stopping"
	statusStopped  = "stopped"
)

// eventMsg carries a bus event into the program.
type eventMsg struct {
	event event.Event
}

// tickMsg refreshes the countdowns.
type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// workerRow is the display state of one worker.
type workerRow struct {
	id       string
	slot     int
	status   string
	votes    int64
	failures int64
	found    bool
	rank     int
	percent  float64
	tier     timing.Tier
	nextAt   time.Time
}

// Options configures the model.
type Options struct {
	Target     string
	SessionID  string
	MaxThreads int
	// Cancel is called when the user quits. It should stop the pool.
	Cancel context.CancelFunc
	// Now defaults to time.Now.
	Now func() time.Time
}

// Model is the bubbletea model of the live status view. It is a pure
// function of the events it has received.
type Model struct {
	opts    Options
	spinner spinner.Model
	width   int
	height  int
	started time.Time
	now     time.Time

	workers map[string]*workerRow
	recent  []string

	behind     int
	multiplier float64
	active     int
	lead       float64
	hasLead    bool
	votes      int64
	failures   int64

	quitting bool
}

// NewModel creates the status model.
func NewModel(opts Options) Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	now := opts.Now()
	return Model{
		opts:       opts,
		spinner:    s,
		width:      80,
		started:    now,
		now:        now,
		workers:    make(map[string]*workerRow),
		multiplier: 1,
		active:     1,
	}
}

// Init starts the spinner and the countdown ticker.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

// Update handles input, resize, tick and bus messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m.quit()
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m.now = m.opts.Now()
		m.handleEvent(msg.event)
		return m, nil
	}
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if !m.quitting {
		m.quitting = true
		if m.opts.Cancel != nil {
			m.opts.Cancel()
		}
	}
	return m, tea.Quit
}

func (m *Model) row(id string, slot int) *workerRow {
	r, ok := m.workers[id]
	if !ok {
		r = &workerRow{id: id, slot: slot, status: statusVoting}
		m.workers[id] = r
	}
	return r
}

func (m *Model) handleEvent(e event.Event) {
	switch ev := e.(type) {
	case event.WorkerStartedEvent:
		r := m.row(ev.WorkerID, ev.Slot)
		r.status = statusVoting
		r.nextAt = time.Time{}
		m.note("%s started", ev.WorkerID)

	case event.WorkerStoppedEvent:
		r := m.row(ev.WorkerID, ev.Slot)
		r.status = statusStopped
		r.nextAt = time.Time{}
		m.note("%s stopped (%s)", ev.WorkerID, ev.Reason)

	case event.VoteCompletedEvent:
		r := m.row(ev.WorkerID, slotOf(ev.WorkerID))
		if r.status != statusStopping {
			r.status = statusSleeping
		}
		r.found = ev.Found
		r.rank = ev.Rank
		r.percent = ev.Percent
		r.tier = ev.Tier
		r.nextAt = ev.Timestamp().Add(ev.Delay)
		m.behind = ev.Behind
		m.multiplier = ev.Multiplier
		m.active = ev.Active
		m.lead = ev.Lead
		m.hasLead = ev.HasLead
		if ev.Success {
			r.votes++
			m.votes++
		} else {
			m.note("%s vote #%d not accepted", ev.WorkerID, ev.Sequence)
		}

	case event.AttemptFailedEvent:
		r := m.row(ev.WorkerID, slotOf(ev.WorkerID))
		if r.status != statusStopping {
			r.status = statusRetrying
		}
		r.failures++
		r.nextAt = ev.Timestamp().Add(ev.Delay)
		m.failures++
		m.note("%s attempt #%d failed: %v", ev.WorkerID, ev.Sequence, ev.Err)

	case event.ScalingDecisionEvent:
		m.active = ev.Active
		id := pool.WorkerID(ev.Decision.Slot)
		if ev.Decision.Action == scaling.ActionScaleDown {
			if r, ok := m.workers[id]; ok && r.status != statusStopped {
				r.status = statusStopping
			}
		}
		m.note("%s %s at %d behind", ev.Decision.Action, id, ev.Decision.Behind)

	case event.BackoffChangedEvent:
		m.multiplier = ev.Current
		if ev.Engaged() {
			m.note("backoff x%.2f (lead %.1f)", ev.Current, ev.Lead)
		} else {
			m.note("backoff reset")
		}

	case event.ConfigReloadedEvent:
		m.note("config reloaded (lead threshold %.1f)", ev.LeadThreshold)
	}
}

func (m *Model) note(format string, args ...any) {
	line := m.now.Format("15:04:05") + " " + fmt.Sprintf(format, args...)
	m.recent = append(m.recent, line)
	if len(m.recent) > maxRecent {
		m.recent = m.recent[len(m.recent)-maxRecent:]
	}
}

// rows returns the workers ordered by slot.
func (m Model) rows() []*workerRow {
	out := make([]*workerRow, 0, len(m.workers))
	for _, r := range m.workers {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].slot < out[j].slot })
	return out
}

func (m Model) countdown(r *workerRow) string {
	if r.nextAt.IsZero() || r.status == statusStopped || r.status == statusVoting {
		return "-"
	}
	left := r.nextAt.Sub(m.now)
	if left <= 0 {
		return "now"
	}
	return util.FormatDuration(left)
}

func slotOf(id string) int {
	var k int
	if _, err := fmt.Sscanf(id, "Parallel-%d", &k); err != nil {
		return 0
	}
	return k
}
