package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/1broseidon/layerctl/internal/control"
	"github.com/1broseidon/layerctl/internal/ipc"
)

var (
	createdStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	destroyedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	changedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	inputStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	timeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func eventStyle(t ipc.EventType) lipgloss.Style {
	name := string(t)
	switch {
	case strings.HasSuffix(name, "_CREATED"):
		return createdStyle
	case strings.HasSuffix(name, "_DESTROYED"), t == ipc.EventError:
		return destroyedStyle
	case strings.HasPrefix(name, "INPUT_"), strings.HasPrefix(name, "SEAT_"):
		return inputStyle
	default:
		return changedStyle
	}
}

// formatEvent renders one notification line. DONE replies are not shown.
func formatEvent(ev *ipc.Event, now time.Time, color bool) (string, bool) {
	if ev.Type == ipc.EventDone {
		return "", false
	}
	stamp := now.Format("15:04:05.000")
	kind := fmt.Sprintf("%-20s", ev.Type)
	payload := string(ev.Payload)
	if color {
		stamp = timeStyle.Render(stamp)
		kind = eventStyle(ev.Type).Render(kind)
	}
	return stamp + " " + kind + " " + payload, true
}

func runWatch(args []string) int {
	fs := newFlagSet("watch", "layerctl watch [--socket PATH] [--no-color]", "Print scene notifications until interrupted.")
	socket := fs.String("socket", "", "Control socket path")
	noColor := fs.Bool("no-color", false, "Disable colour output")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	color := !*noColor && term.IsTerminal(int(os.Stdout.Fd()))

	return withClient(*socket, func(ctx context.Context, c *control.Context) error {
		c.SetEventListener(func(ev *ipc.Event) {
			if line, ok := formatEvent(ev, time.Now(), color); ok {
				fmt.Println(line)
			}
		})
		<-ctx.Done()
		return nil
	})
}
