package udpserver

import (
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/tinytelemetry/udp2redis/internal/killswitch"
	"github.com/tinytelemetry/udp2redis/internal/metrics"
	"github.com/tinytelemetry/udp2redis/internal/model"
	"github.com/tinytelemetry/udp2redis/internal/queue"
)

// WorkerConfig holds optional collaborators for the ingestion worker.
type WorkerConfig struct {
	Logger *slog.Logger
	Clock  func() time.Time
}

// Worker reads sensor datagrams from its socket, decodes and timestamps
// them, and forwards envelopes on the outbound queue.
type Worker struct {
	socket *Socket
	logger *slog.Logger
	now    func() time.Time
}

// NewWorker creates an ingestion worker that takes ownership of socket.
func NewWorker(socket *Socket, conf ...WorkerConfig) *Worker {
	w := &Worker{
		socket: socket,
		logger: slog.Default(),
		now:    time.Now,
	}
	if len(conf) > 0 {
		if conf[0].Logger != nil {
			w.logger = conf[0].Logger
		}
		if conf[0].Clock != nil {
			w.now = conf[0].Clock
		}
	}
	w.logger = w.logger.With("component", "udp", "addr", socket.Addr())
	return w
}

// Run is the worker loop. It returns when a stop is observed at the top of
// an iteration, when the owner's switch is dropped, or when the consumer
// side of out is gone. On return the socket is closed and both out and kill
// are released.
func (w *Worker) Run(out *queue.Sender, kill *killswitch.Receiver) {
	defer kill.Release()
	defer out.Close()
	defer w.socket.Close()

	buf := make([]byte, model.MaxDatagramSize)
	for {
		if status := kill.Poll(); status.Terminal() {
			w.logger.Info("killing udp worker", "signal", status.String())
			return
		}

		n, from, err := w.socket.read(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				w.logger.Warn("udp socket closed, stopping worker")
				return
			}
			w.logger.Warn("failed to receive udp message", "error", err)
			metrics.DatagramDropped(metrics.DropReadError)
			continue
		}
		metrics.DatagramReceived()

		env, ok := w.decode(buf[:n], from)
		if !ok {
			continue
		}

		if err := out.Send(env); err != nil {
			w.logger.Warn("failed to pass envelope to publisher, stopping worker", "error", err)
			return
		}
		metrics.EnvelopeForwarded(env.Kind.String())
	}
}

func (w *Worker) decode(b []byte, from net.Addr) (model.Envelope, bool) {
	text, err := model.DatagramText(b)
	if err != nil {
		reason := metrics.DropEmpty
		if errors.Is(err, model.ErrInvalidUTF8) {
			reason = metrics.DropInvalidUTF8
		}
		w.logger.Warn("dropping datagram", "from", from, "error", err)
		metrics.DatagramDropped(reason)
		return model.Envelope{}, false
	}
	w.logger.Debug("received datagram", "from", from, "text", text)

	env, err := model.Decode(text)
	if err != nil {
		w.logger.Warn("failed to parse datagram", "from", from, "error", err)
		metrics.DatagramDropped(dropReason(err))
		return model.Envelope{}, false
	}

	if err := env.Stamp(w.now()); err != nil {
		w.logger.Warn("failed to get time, keeping previous timestamp", "error", err)
	}
	w.logger.Debug("decoded envelope", "kind", env.Kind.String(), "source", env.Source())
	return env, true
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, model.ErrAmbiguous):
		return metrics.DropAmbiguous
	case errors.Is(err, model.ErrUnknownShape):
		return metrics.DropUnknown
	default:
		return metrics.DropMalformed
	}
}
