package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/layerctl/internal/control"
	"github.com/1broseidon/layerctl/internal/layout"
)

type sceneMsg struct {
	scene control.SceneState
	err   error
}

// changedMsg is sent when the daemon reports any scene event.
type changedMsg struct{}

type protocolErrMsg struct{ err control.ProtocolError }

type doneMsg struct {
	notice string
	err    error
}

// model is the root bubbletea model for the TUI.
type model struct {
	ctx    context.Context
	client Client

	scene     control.SceneState
	connected bool
	notice    string
	lastErr   string

	activeTab Tab
	lists     [tabCount]list.Model

	// Command line
	commanding bool
	cmdLine    textinput.Model

	// Create-layer form
	form   *huh.Form
	fLayer *layerForm

	width  int
	height int
}

func newModel(ctx context.Context, client Client) model {
	m := model{
		ctx:       ctx,
		client:    client,
		activeTab: TabLayers,
	}
	for i := Tab(0); i < tabCount; i++ {
		m.lists[i] = newObjectList(i)
	}
	ti := textinput.New()
	ti.Prompt = ":"
	ti.Placeholder = "visible on | opacity 0.5 | dest X Y W H | order ID... | remove"
	ti.CharLimit = 128
	m.cmdLine = ti
	return m
}

func (m model) refresh() tea.Cmd {
	return func() tea.Msg {
		scene, err := m.client.Scene(m.ctx)
		return sceneMsg{scene: scene, err: err}
	}
}

// run performs act, commits and reports notice.
func (m model) run(act action, notice string) tea.Cmd {
	return func() tea.Msg {
		err := act(m.client)
		if err == nil {
			err = m.client.Commit()
		}
		return doneMsg{notice: notice, err: err}
	}
}

func (m model) selected() (objectItem, bool) {
	item, ok := m.lists[m.activeTab].SelectedItem().(objectItem)
	return item, ok
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return m.refresh()
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case sceneMsg:
		if msg.err != nil {
			m.connected = false
			m.lastErr = msg.err.Error()
			return m, nil
		}
		m.connected = true
		m.scene = msg.scene
		var cmds []tea.Cmd
		for i := Tab(0); i < tabCount; i++ {
			cmds = append(cmds, m.lists[i].SetItems(buildItems(m.scene, i)))
		}
		return m, tea.Batch(cmds...)

	case changedMsg:
		return m, m.refresh()

	case protocolErrMsg:
		m.lastErr = msg.err.Error()
		m.notice = ""
		return m, nil

	case doneMsg:
		if msg.err != nil {
			m.lastErr = msg.err.Error()
			m.notice = ""
		} else {
			m.lastErr = ""
			m.notice = msg.notice
		}
		return m, m.refresh()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		h := m.contentHeight()
		for i := range m.lists {
			m.lists[i].SetSize(m.listWidth(), h)
		}
		return m, nil
	}

	if m.form != nil {
		return m.updateForm(msg)
	}
	if m.commanding {
		return m.updateCommand(msg)
	}

	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			m.activeTab = (m.activeTab + 1) % tabCount
			return m, nil
		case "shift+tab":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
			return m, nil
		case "1", "2", "3":
			m.activeTab = Tab(km.String()[0] - '1')
			return m, nil
		case "r":
			return m, m.refresh()
		case "c":
			return m, m.run(func(Client) error { return nil }, "committed")
		case ":":
			m.commanding = true
			m.cmdLine.Reset()
			return m, m.cmdLine.Focus()
		case "n":
			if m.activeTab != TabLayers {
				return m, nil
			}
			m.fLayer = &layerForm{}
			m.form = newLayerForm(m.fLayer, m.scene.Screens, m.width)
			return m, m.form.Init()
		case "v":
			return m, m.toggleVisibility()
		case "+", "=":
			return m, m.nudgeOpacity(0.1)
		case "-":
			return m, m.nudgeOpacity(-0.1)
		case "x":
			if item, ok := m.selected(); ok && item.kind == layout.KindLayer {
				return m, m.run(func(c Client) error { return c.LayerRemove(item.id) }, fmt.Sprintf("layer %d removed", item.id))
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.lists[m.activeTab], cmd = m.lists[m.activeTab].Update(msg)
	return m, cmd
}

func (m model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			m.form = nil
			return m, nil
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}
	switch m.form.State {
	case huh.StateCompleted:
		act := m.fLayer.action(m.ctx)
		m.form = nil
		return m, m.run(act, "layer created")
	case huh.StateAborted:
		m.form = nil
		return m, nil
	}
	return m, cmd
}

func (m model) updateCommand(msg tea.Msg) (tea.Model, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			m.commanding = false
			m.cmdLine.Blur()
			return m, nil
		case "enter":
			m.commanding = false
			m.cmdLine.Blur()
			line := m.cmdLine.Value()
			item, ok := m.selected()
			if !ok {
				m.lastErr = "nothing selected"
				return m, nil
			}
			act, err := parseCommand(item.kind, item.id, line)
			if err != nil {
				m.lastErr = err.Error()
				return m, nil
			}
			return m, m.run(act, fmt.Sprintf("%s %d: %s", item.kind, item.id, line))
		}
	}
	var cmd tea.Cmd
	m.cmdLine, cmd = m.cmdLine.Update(msg)
	return m, cmd
}

func (m model) toggleVisibility() tea.Cmd {
	item, ok := m.selected()
	if !ok || item.kind == layout.KindScreen {
		return nil
	}
	state := "on"
	if item.visible {
		state = "off"
	}
	act, err := parseCommand(item.kind, item.id, "visible "+state)
	if err != nil {
		return nil
	}
	return m.run(act, fmt.Sprintf("%s %d visible %s", item.kind, item.id, state))
}

func (m model) nudgeOpacity(delta float64) tea.Cmd {
	item, ok := m.selected()
	if !ok {
		return nil
	}
	var current float64
	switch item.kind {
	case layout.KindLayer:
		for _, l := range m.scene.Layers {
			if l.ID == item.id {
				current = l.Opacity
			}
		}
	case layout.KindSurface:
		for _, s := range m.scene.Surfaces {
			if s.ID == item.id {
				current = s.Opacity
			}
		}
	default:
		return nil
	}
	next := min(max(current+delta, 0), 1)
	act, err := parseCommand(item.kind, item.id, fmt.Sprintf("opacity %.2f", next))
	if err != nil {
		return nil
	}
	return m.run(act, fmt.Sprintf("%s %d opacity %.2f", item.kind, item.id, next))
}

func (m model) contentHeight() int {
	// status bar (1) + tab bar (2 with margin) + message line (1) + help bar (1)
	h := m.height - 5
	if h < 1 {
		h = 1
	}
	return h
}

func (m model) listWidth() int {
	w := m.width * 2 / 5
	if w < 24 {
		w = 24
	}
	return w
}

// View implements tea.Model.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	statusBar := renderStatusBar(m.connected, len(m.scene.Screens), len(m.scene.Layers), len(m.scene.Surfaces), len(m.scene.Seats), m.width)
	tabBar := renderTabBar(m.activeTab, m.width)
	helpBar := renderHelpBar(m.activeTab, m.width)

	height := m.contentHeight()
	var content string
	if m.form != nil {
		content = lipgloss.NewStyle().Width(m.width).Height(height).Render(m.form.View())
	} else {
		left := lipgloss.NewStyle().
			Width(m.listWidth()).
			Height(height).
			Render(m.lists[m.activeTab].View())

		rightWidth := m.width - m.listWidth()
		if rightWidth < 10 {
			rightWidth = 10
		}
		var detail string
		if item, ok := m.selected(); ok {
			detail = renderDetail(m.scene, item)
		} else {
			detail = dimStyle.Render("Nothing here yet")
		}
		right := lipgloss.NewStyle().
			Width(rightWidth).
			Height(height).
			Padding(1, 2).
			Render(detail)
		content = lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	}

	var message string
	switch {
	case m.commanding:
		message = m.cmdLine.View()
	case m.lastErr != "":
		message = errorStyle.Render(m.lastErr)
	case m.notice != "":
		message = noticeStyle.Render(m.notice)
	}
	message = lipgloss.NewStyle().Width(m.width).Padding(0, 1).Render(message)

	return lipgloss.JoinVertical(lipgloss.Left,
		statusBar,
		tabBar,
		content,
		message,
		helpBar,
	)
}
