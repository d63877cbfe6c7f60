package tui

import (
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/udp2redis/internal/control"
)

// Field identifies the focused form element.
type Field int

const (
	FieldRedisURL Field = iota // redis url input
	FieldUDPPort               // udp port input
	FieldConnect               // connect button
	fieldCount
)

const statusInterval = 500 * time.Millisecond

// TickMsg drives the periodic status refresh.
type TickMsg time.Time

type startResultMsg struct{ err error }

type stopResultMsg struct{ err error }

// FormModel is the connection form: two inputs and a connect button over a
// control.Controller.
type FormModel struct {
	ctl    control.Controller
	keys   KeyMap
	inputs [2]textinput.Model
	focus  Field

	status    control.Status
	inputErr  string // port validation, never reaches the pipeline
	actionErr string // last start/stop failure
	busy      bool   // a start is in flight
	width     int
}

// NewFormModel creates the form pre-filled from the controller's base config.
func NewFormModel(ctl control.Controller) *FormModel {
	cfg := ctl.Config()

	redisURL := textinput.New()
	redisURL.Prompt = ""
	redisURL.Placeholder = "redis://localhost:6379"
	redisURL.CharLimit = 256
	redisURL.Width = 40
	redisURL.SetValue(cfg.RedisURL)

	port := textinput.New()
	port.Prompt = ""
	port.Placeholder = "8888"
	port.CharLimit = 5
	port.Width = 8
	port.SetValue(strconv.Itoa(cfg.UDPPort))

	m := &FormModel{
		ctl:    ctl,
		keys:   DefaultKeyMap(),
		inputs: [2]textinput.Model{redisURL, port},
		status: ctl.Status(),
	}
	m.setFocus(FieldRedisURL)
	return m
}

// Init starts cursor blinking and the status refresh loop.
func (m *FormModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tick())
}

func tick() tea.Cmd {
	return tea.Tick(statusInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Focus reports the focused form element.
func (m *FormModel) Focus() Field {
	return m.focus
}

func (m *FormModel) setFocus(f Field) tea.Cmd {
	m.focus = f
	var cmd tea.Cmd
	for i := range m.inputs {
		if Field(i) == f {
			cmd = m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
	return cmd
}

// parsePort validates the port field.
func parsePort(s string) (int, bool) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, false
	}
	return port, true
}
