package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"pipegen/internal/engine"
	"pipegen/internal/ui"
)

// warmWithUI warms names while a progress view follows the engine events.
// events must be the channel the engine's sink writes to.
func warmWithUI(ctx context.Context, title string, e *engine.Engine, names []string, events chan engine.Event) error {
	outcomeCh := make(chan error, 1)

	go func() {
		err := e.Warm(ctx, names...)
		outcomeCh <- err
		close(events)
	}()

	model := ui.NewProgressModel(title, names, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	err := <-outcomeCh
	if uiErr != nil {
		return uiErr
	}
	return err
}
