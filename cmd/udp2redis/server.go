package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/udp2redis/internal/control"
	"github.com/tinytelemetry/udp2redis/internal/httpserver"
	"github.com/tinytelemetry/udp2redis/internal/pipeline"
	"github.com/tinytelemetry/udp2redis/internal/publish"
	"github.com/tinytelemetry/udp2redis/internal/tui"
)

// Workers only observe a stop between blocking reads, so an idle bridge
// would never finish on its own. After this grace the process exits and the
// OS reclaims the socket and connection.
const shutdownGrace = 2 * time.Second

func newManager(cfg appConfig, logger *slog.Logger) (*control.Manager, pipeline.Config, error) {
	pc, err := cfg.pipelineConfig()
	if err != nil {
		return nil, pc, err
	}
	return control.NewManager(pc, pipeline.Deps{Logger: logger}), pc, nil
}

func startAPI(cfg appConfig, ctl control.Controller) (*httpserver.Server, error) {
	if !cfg.APIEnabled {
		return nil, nil
	}
	api := httpserver.NewServer(cfg.APIAddr, ctl)
	if err := api.Start(); err != nil {
		return nil, fmt.Errorf("failed to start API server: %w", err)
	}
	return api, nil
}

// runServer starts a headless pipeline with the HTTP API.
func runServer(cfg appConfig, logger *slog.Logger) error {
	manager, pc, err := newManager(cfg, logger)
	if err != nil {
		return err
	}

	api, err := startAPI(cfg, manager)
	if err != nil {
		return err
	}
	if api != nil {
		defer api.Stop()
	}

	if err := manager.Start(context.Background(), pc); err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}
	printStartupBanner(cfg, manager.Status())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// The API may stop and replace the pipeline, so Done is re-read on
	// every pass.
	for {
		select {
		case <-sigCh:
			fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
			return shutdown(manager, sigCh)
		case <-manager.Done():
			if !cfg.APIEnabled {
				st := manager.Status()
				logger.Warn("pipeline finished", "state", st.State)
				return nil
			}
			// Wait for the API to start a new pipeline or for a signal.
			select {
			case <-sigCh:
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

func shutdown(manager *control.Manager, sigCh <-chan os.Signal) error {
	if err := manager.Stop(); err != nil && !errors.Is(err, control.ErrNotRunning) {
		return err
	}

	deadline := time.NewTimer(shutdownGrace)
	defer deadline.Stop()

	select {
	case <-manager.Done():
	case <-sigCh:
		fmt.Println("\nForce shutdown.")
	case <-deadline.C:
		fmt.Println("Workers still blocked on idle reads, exiting.")
	}
	return nil
}

// runInteractive shows the connection form; the pipeline only starts when
// the user connects.
func runInteractive(cfg appConfig, logger *slog.Logger) error {
	manager, _, err := newManager(cfg, logger)
	if err != nil {
		return err
	}

	api, err := startAPI(cfg, manager)
	if err != nil {
		return err
	}
	if api != nil {
		defer api.Stop()
	}

	if err := tui.Run(manager); err != nil {
		return err
	}
	if err := manager.Stop(); err != nil && !errors.Is(err, control.ErrNotRunning) {
		logger.Warn("failed to stop pipeline", "error", err)
	}
	return nil
}

func printStartupBanner(cfg appConfig, st control.Status) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╦ ╦╔╦╗╔═╗  ┌─┐  ╦═╗╔═╗╔╦╗╦╔═╗
    ║ ║ ║║╠═╝  ┌─┘  ╠╦╝║╣  ║║║╚═╗
    ╚═╝═╩╝╩    └─┘  ╩╚═╚═╝═╩╝╩╚═╝`)

	var lines []string
	lines = append(lines, "", logo, "    "+dim.Render("v"+version), "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator, "")

	lines = append(lines, bold.Render("    Pipeline"), "")
	lines = append(lines, fmt.Sprintf("    %s  UDP Ingest     %s", check, cyan.Render(st.UDPAddr)))
	lines = append(lines, fmt.Sprintf("    %s  Redis          %s", check, cyan.Render(st.RedisURL)))
	lines = append(lines, fmt.Sprintf("    %s  Key Policy     %s", check, dim.Render(keySummary(cfg))))
	if cfg.PersistLatest {
		lines = append(lines, fmt.Sprintf("    %s  Latest Value   %s", check, dim.Render("SET + PUBLISH")))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Latest Value   %s", dot, dim.Render("PUBLISH only")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Gateway"), "")
	if cfg.APIEnabled {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render(cfg.APIAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Config"), "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}

	lines = append(lines, "", separator, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"), "")

	fmt.Println(strings.Join(lines, "\n"))
}

func keySummary(cfg appConfig) string {
	if cfg.KeyPolicy == string(publish.KeysShared) {
		return "shared " + cfg.SharedKey
	}
	return cfg.InertialKey + " / " + cfg.RangingKey
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
