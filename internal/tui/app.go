// Package tui draws the live per-worker status view while a session runs.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rally-hq/rally/internal/event"
	"github.com/rally-hq/rally/internal/logging"
)

// eventBuffer bounds how far the view may lag behind the workers before
// events are dropped. Workers never wait on the terminal.
const eventBuffer = 256

// App wraps the Bubbletea program
type App struct {
	model   Model
	bus     *event.Bus
	logger  *logging.Logger
	options []tea.ProgramOption
}

// New creates the status view for the events on bus.
func New(bus *event.Bus, opts Options, logger *logging.Logger, programOpts ...tea.ProgramOption) *App {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if len(programOpts) == 0 {
		programOpts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	return &App{
		model:   NewModel(opts),
		bus:     bus,
		logger:  logger.WithComponent("tui"),
		options: programOpts,
	}
}

// Run draws until the user quits or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	program := tea.NewProgram(a.model, a.options...)

	events := make(chan event.Event, eventBuffer)
	subID := a.bus.SubscribeAll(func(e event.Event) {
		select {
		case events <- e:
		default:
			a.logger.Debug("status view lagging, event dropped", "event_type", e.EventType())
		}
	})
	defer a.bus.Unsubscribe(subID)

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				program.Quit()
				return
			case e := <-events:
				program.Send(eventMsg{event: e})
			}
		}
	}()

	_, err := program.Run()
	return err
}
