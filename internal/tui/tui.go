// Package tui is an interactive scene viewer and editor built on Bubble Tea.
package tui

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/1broseidon/layerctl/internal/control"
	"github.com/1broseidon/layerctl/internal/ipc"
)

// Run shows the TUI until the user quits or ctx is done. c must be ready.
func Run(ctx context.Context, c *control.Context) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("tui requires an interactive terminal (stdin/stdout must be TTYs)")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newModel(ctx, c), tea.WithAltScreen(), tea.WithContext(ctx))

	// Every scene event triggers a refresh; bursts coalesce in the program's
	// message queue.
	c.SetEventListener(func(*ipc.Event) { p.Send(changedMsg{}) })
	defer c.SetEventListener(nil)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case perr := <-c.Errors():
				p.Send(protocolErrMsg{err: perr})
			}
		}
	}()

	_, err := p.Run()
	return err
}
