package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles messages
func (m *FormModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case TickMsg:
		m.status = m.ctl.Status()
		return m, tick()

	case startResultMsg:
		m.busy = false
		m.actionErr = ""
		if msg.err != nil {
			m.actionErr = msg.err.Error()
		}
		m.status = m.ctl.Status()
		return m, nil

	case stopResultMsg:
		m.actionErr = ""
		if msg.err != nil {
			m.actionErr = msg.err.Error()
		}
		m.status = m.ctl.Status()
		return m, nil
	}

	return m.updateFocusedInput(msg)
}

// handleKeyPress dispatches key events. Text inputs swallow printable keys,
// so the single-letter shortcuts only apply while the button is focused.
func (m *FormModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys

	switch {
	case key.Matches(msg, k.ForceQuit):
		return m, tea.Quit
	case key.Matches(msg, k.NextField):
		return m, m.setFocus((m.focus + 1) % fieldCount)
	case key.Matches(msg, k.PrevField):
		return m, m.setFocus((m.focus + fieldCount - 1) % fieldCount)
	case key.Matches(msg, k.Escape):
		return m, m.setFocus(FieldConnect)
	case key.Matches(msg, k.Connect):
		if m.focus != FieldConnect {
			return m, m.setFocus(m.focus + 1)
		}
		return m, m.connect()
	}

	if m.focus == FieldConnect {
		switch {
		case key.Matches(msg, k.Quit):
			return m, tea.Quit
		case key.Matches(msg, k.Stop):
			return m, m.stop()
		}
		return m, nil
	}

	m.inputErr = ""
	return m.updateFocusedInput(msg)
}

func (m *FormModel) updateFocusedInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.focus == FieldConnect {
		return m, nil
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

// connect validates the form and starts a pipeline off the event loop.
func (m *FormModel) connect() tea.Cmd {
	if m.busy {
		return nil
	}
	port, ok := parsePort(m.inputs[FieldUDPPort].Value())
	if !ok {
		m.inputErr = "UDP port must be a number between 1 and 65535"
		return nil
	}
	m.inputErr = ""

	cfg := m.ctl.Config()
	cfg.RedisURL = m.inputs[FieldRedisURL].Value()
	cfg.UDPPort = port

	m.busy = true
	ctl := m.ctl
	return func() tea.Msg {
		return startResultMsg{err: ctl.Start(context.Background(), cfg)}
	}
}

func (m *FormModel) stop() tea.Cmd {
	ctl := m.ctl
	return func() tea.Msg {
		return stopResultMsg{err: ctl.Stop()}
	}
}
