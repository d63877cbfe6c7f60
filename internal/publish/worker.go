package publish

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tinytelemetry/udp2redis/internal/killswitch"
	"github.com/tinytelemetry/udp2redis/internal/metrics"
	"github.com/tinytelemetry/udp2redis/internal/model"
	"github.com/tinytelemetry/udp2redis/internal/queue"
)

// Backend is the narrow contract the publishing worker needs from the
// messaging system.
type Backend interface {
	Set(ctx context.Context, key string, payload []byte) error
	Publish(ctx context.Context, channel string, payload []byte) error
	Close() error
}

// WorkerConfig holds tunable behavior for the publishing worker.
type WorkerConfig struct {
	Keys KeyPolicy
	// PersistLatest issues a SET of the payload before every PUBLISH.
	PersistLatest bool
	Logger        *slog.Logger
}

// Worker drains envelopes from the queue and relays each one to the backend.
type Worker struct {
	backend Backend
	keys    KeyPolicy
	persist bool
	logger  *slog.Logger
	ctx     context.Context
}

// NewWorker creates a publishing worker that takes ownership of backend.
func NewWorker(backend Backend, conf WorkerConfig) *Worker {
	logger := conf.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		backend: backend,
		keys:    conf.Keys,
		persist: conf.PersistLatest,
		logger:  logger.With("component", "redis"),
		ctx:     context.Background(),
	}
}

// Run is the worker loop. It returns when a stop is observed at the top of
// an iteration, when the owner's switch is dropped, or when the producer is
// gone and the queue is drained. On return the backend is closed and both
// in and kill are released.
func (w *Worker) Run(in *queue.Receiver, kill *killswitch.Receiver) {
	defer kill.Release()
	defer in.Close()
	defer func() {
		if err := w.backend.Close(); err != nil {
			w.logger.Warn("failed to close backend", "error", err)
		}
	}()

	for {
		if status := kill.Poll(); status.Terminal() {
			w.logger.Info("killing redis worker", "signal", status.String())
			return
		}

		env, err := in.Recv()
		if err != nil {
			if errors.Is(err, queue.ErrSenderGone) {
				w.logger.Info("ingestion side gone, stopping redis worker")
				return
			}
			w.logger.Warn("failed to receive envelope", "error", err)
			continue
		}
		metrics.QueueDepth(in.Len())

		w.relay(env)
	}
}

func (w *Worker) relay(env model.Envelope) {
	key, err := w.keys.KeyFor(env.Kind)
	if err != nil {
		w.logger.Warn("dropping envelope", "error", err)
		metrics.DatagramDropped(metrics.DropNoKey)
		return
	}

	payload, err := env.MarshalJSON()
	if err != nil {
		w.logger.Warn("failed to serialize envelope", "kind", env.Kind.String(), "error", err)
		metrics.DatagramDropped(metrics.DropSerialize)
		return
	}

	if w.persist {
		if err := w.backend.Set(w.ctx, key, payload); err != nil {
			w.logger.Warn("failed to persist to redis", "key", key, "error", err)
			metrics.BackendError(metrics.OpSet)
		}
	}

	if err := w.backend.Publish(w.ctx, key, payload); err != nil {
		w.logger.Warn("failed to publish to redis", "channel", key, "error", err)
		metrics.BackendError(metrics.OpPublish)
		return
	}
	metrics.EnvelopePublished(env.Kind.String())
	ts, _ := env.Timestamp()
	w.logger.Debug("published envelope", "channel", key, "source", env.Source(), "timestamp", ts, "payload", string(payload))
}
