// Package control owns "the current pipeline" on behalf of the external
// control surfaces (headless entrypoint, HTTP API, terminal form).
package control

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tinytelemetry/udp2redis/internal/pipeline"
)

var (
	ErrAlreadyRunning = errors.New("control: a pipeline is already running")
	ErrNotRunning     = errors.New("control: no pipeline is running")

	// ErrDraining is returned by Start while a pipeline that failed or was
	// stopped still has a worker holding its UDP socket. The worker lets go
	// after it reads its next datagram.
	ErrDraining = errors.New("control: previous ingestion worker still holds the udp port")
)

// Controller is the contract shared by every control surface.
type Controller interface {
	Start(ctx context.Context, cfg pipeline.Config) error
	Stop() error
	Status() Status
	Config() pipeline.Config
}

// Status is a point-in-time view of the managed pipeline. Draining is set
// while a finished pipeline's workers have not all returned yet.
type Status struct {
	State     string     `json:"state"`
	UDPAddr   string     `json:"udp_addr,omitempty"`
	RedisURL  string     `json:"redis_url,omitempty"`
	KeyMode   string     `json:"key_mode,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	Draining  bool       `json:"draining,omitempty"`
}

// Manager starts at most one pipeline at a time. A finished pipeline is
// never restarted; Start always builds a new one from the given Config.
type Manager struct {
	mu        sync.Mutex
	deps      pipeline.Deps
	base      pipeline.Config
	current   *pipeline.Handle
	starting  bool
	cfg       pipeline.Config
	startedAt time.Time
	lastErr   error
}

// NewManager creates a Manager. base is the Config surfaces start from when
// the user supplies no overrides.
func NewManager(base pipeline.Config, deps pipeline.Deps) *Manager {
	return &Manager{deps: deps, base: base}
}

// Config returns the base configuration.
func (m *Manager) Config() pipeline.Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.base
}

// Start launches a new pipeline from cfg. The lock is not held while the
// pipeline dials its backend, so Status stays responsive.
func (m *Manager) Start(ctx context.Context, cfg pipeline.Config) error {
	m.mu.Lock()
	switch {
	case m.starting || (m.current != nil && m.current.State() == pipeline.StateRunning):
		m.mu.Unlock()
		return ErrAlreadyRunning
	case m.current != nil && !finished(m.current):
		m.mu.Unlock()
		return ErrDraining
	}
	m.starting = true
	m.mu.Unlock()

	h, err := pipeline.Start(ctx, cfg, m.deps)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.starting = false
	m.current = h
	m.cfg = cfg
	m.startedAt = time.Now()
	m.lastErr = err
	if err != nil {
		return err
	}
	m.base = cfg
	return nil
}

// Stop asks the running pipeline to stop. The workers exit at their next
// poll boundary.
func (m *Manager) Stop() error {
	m.mu.Lock()
	h := m.current
	m.mu.Unlock()

	if h == nil || h.State() != pipeline.StateRunning {
		return ErrNotRunning
	}
	h.Stop()
	return nil
}

// Done returns a channel closed when the current pipeline's workers have all
// returned, or nil when nothing was started.
func (m *Manager) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	return m.current.Done()
}

// Status reports the current pipeline state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.starting {
		return Status{State: pipeline.StateStarting.String()}
	}
	if m.current == nil {
		return Status{State: pipeline.StateIdle.String()}
	}
	startedAt := m.startedAt
	st := Status{
		State:     m.current.State().String(),
		UDPAddr:   m.current.Addr(),
		RedisURL:  m.cfg.RedactedRedisURL(),
		KeyMode:   string(m.cfg.Keys.Mode),
		StartedAt: &startedAt,
		Draining:  m.current.State() != pipeline.StateRunning && !finished(m.current),
	}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	return st
}

func finished(h *pipeline.Handle) bool {
	select {
	case <-h.Done():
		return true
	default:
		return false
	}
}
