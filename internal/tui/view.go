package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	ColorBlue   = lipgloss.Color("12")
	ColorGreen  = lipgloss.Color("10")
	ColorYellow = lipgloss.Color("214")
	ColorRed    = lipgloss.Color("9")
	ColorGray   = lipgloss.Color("245")
	ColorWhite  = lipgloss.Color("15")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorBlue)
	labelStyle = lipgloss.NewStyle().Width(12).Foreground(ColorWhite)
	helpStyle  = lipgloss.NewStyle().Foreground(ColorGray)
	errorStyle = lipgloss.NewStyle().Foreground(ColorRed)
)

var buttonStyle = lipgloss.NewStyle().
	Padding(0, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorGray)

var focusedButtonStyle = buttonStyle.
	BorderForeground(ColorBlue).
	Foreground(ColorBlue).
	Bold(true)

func stateColor(state string) lipgloss.Color {
	switch state {
	case "running":
		return ColorGreen
	case "starting":
		return ColorYellow
	case "aborted":
		return ColorRed
	}
	return ColorGray
}

// View renders the form.
func (m *FormModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("udp2redis"))
	b.WriteString("\n\n")
	b.WriteString(labelStyle.Render("Redis URL") + m.inputs[FieldRedisURL].View() + "\n")
	b.WriteString(labelStyle.Render("UDP port") + m.inputs[FieldUDPPort].View() + "\n\n")

	label := "Connect"
	if m.busy {
		label = "Connecting…"
	}
	button := buttonStyle
	if m.focus == FieldConnect {
		button = focusedButtonStyle
	}
	b.WriteString(button.Render(label))
	b.WriteString("\n\n")

	b.WriteString(m.statusLine())
	b.WriteString("\n")
	if m.inputErr != "" {
		b.WriteString(errorStyle.Render(m.inputErr) + "\n")
	}
	if m.actionErr != "" {
		b.WriteString(errorStyle.Render(m.actionErr) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(m.helpLine())
	return b.String()
}

func (m *FormModel) statusLine() string {
	st := m.status
	state := lipgloss.NewStyle().Foreground(stateColor(st.State)).Render("● " + st.State)
	parts := []string{state}
	if st.UDPAddr != "" {
		parts = append(parts, "udp "+st.UDPAddr)
	}
	if st.RedisURL != "" {
		parts = append(parts, "redis "+st.RedisURL)
	}
	if st.KeyMode != "" {
		parts = append(parts, "keys "+st.KeyMode)
	}
	if st.Draining {
		parts = append(parts, helpStyle.Render("port held until the next datagram"))
	}
	line := strings.Join(parts, "  ")
	if st.LastError != "" && m.actionErr == "" {
		line += "\n" + errorStyle.Render(st.LastError)
	}
	return line
}

func (m *FormModel) helpLine() string {
	var parts []string
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return helpStyle.Render(strings.Join(parts, " • "))
}
