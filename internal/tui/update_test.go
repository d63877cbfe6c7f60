package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/udp2redis/internal/control"
	"github.com/tinytelemetry/udp2redis/internal/pipeline"
)

type fakeController struct {
	base      pipeline.Config
	started   []pipeline.Config
	stopCalls int
	startErr  error
	stopErr   error
	status    control.Status
}

func (f *fakeController) Start(_ context.Context, cfg pipeline.Config) error {
	f.started = append(f.started, cfg)
	if f.startErr == nil {
		f.status = control.Status{State: "running", UDPAddr: "0.0.0.0:9000"}
	}
	return f.startErr
}

func (f *fakeController) Stop() error {
	f.stopCalls++
	return f.stopErr
}

func (f *fakeController) Status() control.Status  { return f.status }
func (f *fakeController) Config() pipeline.Config { return f.base }

func newTestForm() (*FormModel, *fakeController) {
	ctl := &fakeController{base: pipeline.DefaultConfig(), status: control.Status{State: "idle"}}
	return NewFormModel(ctl), ctl
}

func press(m *FormModel, msg tea.KeyMsg) tea.Cmd {
	_, cmd := m.Update(msg)
	return cmd
}

func typeText(m *FormModel, s string) {
	press(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func clearField(m *FormModel) {
	m.inputs[m.focus].SetValue("")
}

func TestNewFormModel_Prefilled(t *testing.T) {
	m, _ := newTestForm()

	if got := m.inputs[FieldRedisURL].Value(); got != "redis://localhost:6379" {
		t.Errorf("redis url = %q", got)
	}
	if got := m.inputs[FieldUDPPort].Value(); got != "8888" {
		t.Errorf("udp port = %q", got)
	}
	if m.Focus() != FieldRedisURL {
		t.Errorf("focus = %v, want redis url", m.Focus())
	}
}

func TestFocusCycles(t *testing.T) {
	m, _ := newTestForm()

	press(m, tea.KeyMsg{Type: tea.KeyTab})
	if m.Focus() != FieldUDPPort {
		t.Fatalf("focus = %v, want udp port", m.Focus())
	}
	press(m, tea.KeyMsg{Type: tea.KeyTab})
	if m.Focus() != FieldConnect {
		t.Fatalf("focus = %v, want connect", m.Focus())
	}
	press(m, tea.KeyMsg{Type: tea.KeyTab})
	if m.Focus() != FieldRedisURL {
		t.Fatalf("focus = %v, want wrap to redis url", m.Focus())
	}
	press(m, tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.Focus() != FieldConnect {
		t.Fatalf("focus = %v, want connect", m.Focus())
	}
}

func TestShortcutsTypeIntoInputs(t *testing.T) {
	m, ctl := newTestForm()
	clearField(m)

	typeText(m, "qs")
	if got := m.inputs[FieldRedisURL].Value(); got != "qs" {
		t.Fatalf("redis url = %q, want typed text", got)
	}
	if ctl.stopCalls != 0 {
		t.Fatal("typing s into a field must not stop the pipeline")
	}
}

func TestConnect_InvalidPortStaysInForm(t *testing.T) {
	m, ctl := newTestForm()
	press(m, tea.KeyMsg{Type: tea.KeyTab})
	clearField(m)
	typeText(m, "99999")
	press(m, tea.KeyMsg{Type: tea.KeyTab})

	if cmd := press(m, tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
		t.Fatal("invalid port must not produce a start command")
	}
	if len(ctl.started) != 0 {
		t.Fatal("invalid port must not reach the controller")
	}
	if !strings.Contains(m.View(), "UDP port must be") {
		t.Errorf("view should report the invalid port:\n%s", m.View())
	}
}

func TestConnect_StartsWithFormValues(t *testing.T) {
	m, ctl := newTestForm()
	clearField(m)
	typeText(m, "redis://cache:6380")
	press(m, tea.KeyMsg{Type: tea.KeyEnter}) // advances to port
	clearField(m)
	typeText(m, "9000")
	press(m, tea.KeyMsg{Type: tea.KeyEnter}) // advances to button

	cmd := press(m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("connect should return a start command")
	}
	if !strings.Contains(m.View(), "Connecting") {
		t.Error("view should show the start in flight")
	}
	if again := press(m, tea.KeyMsg{Type: tea.KeyEnter}); again != nil {
		t.Error("second connect while busy should be ignored")
	}

	m.Update(cmd())
	if len(ctl.started) != 1 {
		t.Fatalf("started %d pipelines, want 1", len(ctl.started))
	}
	got := ctl.started[0]
	if got.RedisURL != "redis://cache:6380" || got.UDPPort != 9000 {
		t.Errorf("started config = %+v", got)
	}
	if got.Keys != ctl.base.Keys {
		t.Error("key policy should come from the base config")
	}
	if !strings.Contains(m.View(), "running") {
		t.Errorf("view should show the running state:\n%s", m.View())
	}
}

func TestConnect_FailureShown(t *testing.T) {
	m, ctl := newTestForm()
	ctl.startErr = errors.New("pipeline: start publisher: connection refused")
	m.setFocus(FieldConnect)

	cmd := press(m, tea.KeyMsg{Type: tea.KeyEnter})
	m.Update(cmd())

	if !strings.Contains(m.View(), "connection refused") {
		t.Errorf("view should show the start failure:\n%s", m.View())
	}
	if m.busy {
		t.Error("form should accept another connect after a failure")
	}
}

func TestStopAndQuitOnButton(t *testing.T) {
	m, ctl := newTestForm()
	ctl.stopErr = control.ErrNotRunning
	m.setFocus(FieldConnect)

	cmd := press(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	if cmd == nil {
		t.Fatal("s should return a stop command")
	}
	m.Update(cmd())
	if ctl.stopCalls != 1 {
		t.Fatalf("stop calls = %d, want 1", ctl.stopCalls)
	}
	if !strings.Contains(m.View(), "no pipeline is running") {
		t.Errorf("view should show the stop error:\n%s", m.View())
	}

	cmd = press(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("q should produce a quit message")
	}
}

func TestForceQuitFromInput(t *testing.T) {
	m, _ := newTestForm()

	cmd := press(m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("ctrl+c should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("ctrl+c should produce a quit message")
	}
}

func TestTickRefreshesStatus(t *testing.T) {
	m, ctl := newTestForm()
	ctl.status = control.Status{State: "aborted", LastError: "auth failed"}

	_, cmd := m.Update(TickMsg{})
	if cmd == nil {
		t.Fatal("tick should schedule the next tick")
	}
	if !strings.Contains(m.View(), "auth failed") {
		t.Errorf("view should show the refreshed status:\n%s", m.View())
	}
}

func TestStatusLineShowsHeldPort(t *testing.T) {
	m, ctl := newTestForm()
	ctl.status = control.Status{State: "aborted", UDPAddr: "127.0.0.1:8888", Draining: true}

	m.Update(TickMsg{})
	if !strings.Contains(m.View(), "port held until the next datagram") {
		t.Errorf("view should say the port is still held:\n%s", m.View())
	}
}
