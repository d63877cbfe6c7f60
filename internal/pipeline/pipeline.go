// Package pipeline wires the ingestion and publishing workers together and
// owns their startup order and partial-failure teardown.
//
// Startup runs Idle → Starting → Running. A bind failure aborts before any
// goroutine exists. A backend failure stops the already running ingestion
// worker and aborts without ever spawning the publishing worker. Once
// Running, the pipeline reaches Stopped when both workers have returned.
// There is no restart; a new run needs a new Start.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/udp2redis/internal/killswitch"
	"github.com/tinytelemetry/udp2redis/internal/metrics"
	"github.com/tinytelemetry/udp2redis/internal/publish"
	"github.com/tinytelemetry/udp2redis/internal/queue"
	"github.com/tinytelemetry/udp2redis/internal/redisbackend"
	"github.com/tinytelemetry/udp2redis/internal/udpserver"
)

// State is the orchestrator's lifecycle position.
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopped
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateAborted:
		return "aborted"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Dialer opens the publishing worker's backend connection.
type Dialer func(ctx context.Context, opts redisbackend.Options) (publish.Backend, error)

// DialRedis is the production Dialer.
func DialRedis(ctx context.Context, opts redisbackend.Options) (publish.Backend, error) {
	conn, err := redisbackend.Dial(ctx, opts)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Deps are the replaceable collaborators of a pipeline. Zero values select
// the production defaults.
type Deps struct {
	Dial   Dialer
	Clock  func() time.Time
	Logger *slog.Logger
}

// Handle is the mutable side of one pipeline run: its kill switches and the
// join over its workers.
type Handle struct {
	state       atomic.Int32
	udpAddr     string
	ingestKill  *killswitch.Switch
	publishKill *killswitch.Switch
	group       errgroup.Group
	done        chan struct{}
	startErr    error
	logger      *slog.Logger
}

// Start builds and launches a pipeline from cfg.
//
// The returned Handle is never nil. On error it is already Aborted; Wait
// still joins the ingestion worker if one was spawned.
func Start(ctx context.Context, cfg Config, deps Deps) (*Handle, error) {
	if deps.Dial == nil {
		deps.Dial = DialRedis
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	logger := deps.Logger.With("component", "pipeline")

	h := &Handle{done: make(chan struct{}), logger: logger}
	h.state.Store(int32(StateStarting))

	if err := cfg.Validate(); err != nil {
		return h.abortNow("config", err)
	}

	tx, rx := queue.New(cfg.QueueSize)
	ingestSwitch, ingestKill := killswitch.New()
	publishSwitch, publishKill := killswitch.New()

	socket, err := udpserver.Bind(cfg.UDPHost, cfg.UDPPort)
	if err != nil {
		logger.Warn("failed to bind udp port", "port", cfg.UDPPort, "error", err)
		return h.abortNow("bind", err)
	}
	h.udpAddr = socket.Addr()
	h.ingestKill = ingestSwitch
	logger.Info("bound udp port", "addr", h.udpAddr)

	ingest := udpserver.NewWorker(socket, udpserver.WorkerConfig{
		Logger: deps.Logger,
		Clock:  deps.Clock,
	})
	h.group.Go(func() error {
		ingest.Run(tx, ingestKill)
		return nil
	})
	logger.Info("spawned udp worker")

	backend, err := deps.Dial(ctx, redisbackend.Options{
		URL:      cfg.RedisURL,
		Identity: cfg.AuthIdentity,
		Secret:   cfg.AuthSecret,
		Logger:   deps.Logger,
	})
	if err != nil {
		logger.Warn("failed to start redis worker", "url", cfg.RedactedRedisURL(), "error", err)
		logger.Warn("killing udp worker")
		ingestSwitch.Kill(logger)
		rx.Close()
		publishSwitch.Close()

		reason := "connect"
		if errors.Is(err, redisbackend.ErrAuth) {
			reason = "auth"
		}
		h.finishAbort(reason, err)
		go h.join()
		return h, fmt.Errorf("pipeline: start publisher: %w", err)
	}

	h.publishKill = publishSwitch
	pub := publish.NewWorker(backend, publish.WorkerConfig{
		Keys:          cfg.Keys,
		PersistLatest: cfg.PersistLatest,
		Logger:        deps.Logger,
	})
	h.group.Go(func() error {
		pub.Run(rx, publishKill)
		return nil
	})
	logger.Info("spawned redis worker")

	h.state.Store(int32(StateRunning))
	metrics.PipelineStarted()
	go h.join()
	return h, nil
}

func (h *Handle) abortNow(reason string, err error) (*Handle, error) {
	h.finishAbort(reason, err)
	close(h.done)
	return h, fmt.Errorf("pipeline: %w", err)
}

func (h *Handle) finishAbort(reason string, err error) {
	h.startErr = err
	h.state.Store(int32(StateAborted))
	metrics.PipelineAborted(reason)
}

func (h *Handle) join() {
	_ = h.group.Wait()
	if h.state.CompareAndSwap(int32(StateRunning), int32(StateStopped)) {
		h.logger.Info("pipeline stopped")
	}
	close(h.done)
}

// State reports the current lifecycle state.
func (h *Handle) State() State {
	return State(h.state.Load())
}

// Addr returns the bound UDP address, or "" if binding never succeeded.
func (h *Handle) Addr() string {
	return h.udpAddr
}

// Err returns the startup error of an aborted pipeline.
func (h *Handle) Err() error {
	return h.startErr
}

// Stop asks both workers to stop. Each observes the request at its next
// poll boundary, so a worker blocked on an idle socket or queue keeps
// waiting until traffic arrives. Failures to deliver are only logged.
func (h *Handle) Stop() {
	h.ingestKill.Kill(h.logger)
	h.publishKill.Kill(h.logger)
}

// Done is closed once every spawned worker has returned.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until every spawned worker has returned and reports the final
// state.
func (h *Handle) Wait() State {
	<-h.done
	return h.State()
}
