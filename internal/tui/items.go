package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/layerctl/internal/control"
	"github.com/1broseidon/layerctl/internal/layout"
)

// objectItem is a list entry for one screen, layer or surface.
type objectItem struct {
	kind    layout.Kind
	id      uint32
	visible bool
	desc    string
}

func (i objectItem) Title() string {
	mark := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("·")
	if i.visible {
		mark = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("●")
	}
	return fmt.Sprintf("%s %s %d", mark, i.kind, i.id)
}

func (i objectItem) Description() string { return i.desc }

func (i objectItem) FilterValue() string { return fmt.Sprint(i.id) }

func buildItems(scene control.SceneState, tab Tab) []list.Item {
	var items []list.Item
	switch tab {
	case TabScreens:
		for _, s := range scene.Screens {
			items = append(items, objectItem{
				kind:    layout.KindScreen,
				id:      s.ID,
				visible: true,
				desc:    fmt.Sprintf("%s %dx%d", s.ConnectorName, s.Width, s.Height),
			})
		}
	case TabLayers:
		for _, l := range scene.Layers {
			where := "off screen"
			if l.Screen != layout.InvalidID {
				where = fmt.Sprintf("screen %d", l.Screen)
			}
			items = append(items, objectItem{
				kind:    layout.KindLayer,
				id:      l.ID,
				visible: l.Visibility,
				desc:    fmt.Sprintf("%s, %d surfaces", where, len(l.Surfaces)),
			})
		}
	case TabSurfaces:
		for _, s := range scene.Surfaces {
			where := "no layer"
			if s.Layer != layout.InvalidID {
				where = fmt.Sprintf("layer %d", s.Layer)
			}
			items = append(items, objectItem{
				kind:    layout.KindSurface,
				id:      s.ID,
				visible: s.Visibility,
				desc:    fmt.Sprintf("%s, pid %d", where, s.CreatorPID),
			})
		}
	}
	return items
}

func newObjectList(tab Tab) list.Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.Color("15")).
		BorderForeground(lipgloss.Color("62"))
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(lipgloss.Color("250")).
		BorderForeground(lipgloss.Color("62"))

	l := list.New(nil, delegate, 0, 0)
	l.Title = tab.String()
	l.Styles.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("62")).
		Padding(0, 1)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.KeyMap.Quit.SetEnabled(false)
	return l
}

// renderDetail describes the selected object.
func renderDetail(scene control.SceneState, item objectItem) string {
	var b strings.Builder
	row := func(label string, value any) {
		fmt.Fprintf(&b, "%s %v\n", dimStyle.Render(fmt.Sprintf("%-18s", label)), value)
	}
	ids := func(v []uint32) string {
		if len(v) == 0 {
			return "-"
		}
		parts := make([]string, len(v))
		for i, id := range v {
			parts[i] = fmt.Sprint(id)
		}
		return strings.Join(parts, " ")
	}

	switch item.kind {
	case layout.KindScreen:
		for _, s := range scene.Screens {
			if s.ID != item.id {
				continue
			}
			row("connector", s.ConnectorName)
			row("resolution", fmt.Sprintf("%dx%d", s.Width, s.Height))
			row("layers (bottom up)", ids(s.Layers))
		}
	case layout.KindLayer:
		for _, l := range scene.Layers {
			if l.ID != item.id {
				continue
			}
			row("visible", l.Visibility)
			row("opacity", fmt.Sprintf("%.2f", l.Opacity))
			row("source", l.SourceRect)
			row("dest", l.DestRect)
			row("original size", fmt.Sprintf("%dx%d", l.OrigSourceWidth, l.OrigSourceHeight))
			row("surfaces", ids(l.Surfaces))
		}
	case layout.KindSurface:
		for _, s := range scene.Surfaces {
			if s.ID != item.id {
				continue
			}
			row("visible", s.Visibility)
			row("opacity", fmt.Sprintf("%.2f", s.Opacity))
			row("source", s.SourceRect)
			row("dest", s.DestRect)
			row("original size", fmt.Sprintf("%dx%d", s.OrigSourceWidth, s.OrigSourceHeight))
			row("content", s.ContentAvailable)
			row("frames", s.FrameCounter)
			row("creator pid", s.CreatorPID)
			row("type", s.Type)
			row("focus", s.Focus)
			row("accepted seats", strings.Join(s.Accepted, " "))
		}
	}
	return b.String()
}
