package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/udp2redis/internal/control"
)

// Run shows the connection form until the user quits.
func Run(ctl control.Controller) error {
	p := tea.NewProgram(NewFormModel(ctl), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
			return fmt.Errorf("interactive mode requires a real terminal")
		}
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
