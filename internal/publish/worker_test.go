package publish

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tinytelemetry/udp2redis/internal/killswitch"
	"github.com/tinytelemetry/udp2redis/internal/model"
	"github.com/tinytelemetry/udp2redis/internal/queue"
)

type op struct {
	cmd     string
	key     string
	payload string
}

type fakeBackend struct {
	mu         sync.Mutex
	ops        []op
	setErr     error
	publishErr error
	closed     bool
}

func (b *fakeBackend) Set(_ context.Context, key string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, op{"SET", key, string(payload)})
	return b.setErr
}

func (b *fakeBackend) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, op{"PUBLISH", channel, string(payload)})
	return b.publishErr
}

func (b *fakeBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *fakeBackend) snapshot() ([]op, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]op(nil), b.ops...), b.closed
}

func stamped(env model.Envelope) model.Envelope {
	_ = env.Stamp(time.Unix(1_700_000_000, 0))
	return env
}

// runToCompletion feeds envs through a worker and waits for it to drain.
func runToCompletion(t *testing.T, backend *fakeBackend, conf WorkerConfig, envs ...model.Envelope) {
	t.Helper()

	if conf.Logger == nil {
		conf.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	tx, rx := queue.New(len(envs) + 1)
	for _, env := range envs {
		if err := tx.Send(env); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	tx.Close()

	_, kill := killswitch.New()
	done := make(chan struct{})
	go func() {
		defer close(done)
		NewWorker(backend, conf).Run(rx, kill)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for worker to drain")
	}
}

func TestWorker_SetThenPublishPerKind(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{}
	runToCompletion(t, backend, WorkerConfig{Keys: DefaultKeyPolicy(), PersistLatest: true},
		stamped(model.NewRanging(model.RangingReading{Source: "s1", Range: 12.5})),
		stamped(model.NewInertial(model.InertialReading{Source: "imu", Frequency: 1, AccX: 0.5})),
	)

	ops, closed := backend.snapshot()
	rangingPayload := `{"source":"s1","range":12.5,"timestamp":1700000000}`
	inertialPayload := `{"source":"imu","frequency":1,"acc_x":0.5,"acc_y":0,"acc_z":0,"rot_x":0,"rot_y":0,"rot_z":0,"timestamp":1700000000}`
	want := []op{
		{"SET", DefaultRangingKey, rangingPayload},
		{"PUBLISH", DefaultRangingKey, rangingPayload},
		{"SET", DefaultInertialKey, inertialPayload},
		{"PUBLISH", DefaultInertialKey, inertialPayload},
	}
	if len(ops) != len(want) {
		t.Fatalf("ops = %+v, want %+v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("op[%d] = %+v, want %+v", i, ops[i], want[i])
		}
	}
	if !closed {
		t.Fatal("expected backend to be closed on exit")
	}
}

func TestWorker_SharedKeyWithoutPersist(t *testing.T) {
	t.Parallel()

	keys := DefaultKeyPolicy()
	keys.Mode = KeysShared

	backend := &fakeBackend{}
	runToCompletion(t, backend, WorkerConfig{Keys: keys},
		stamped(model.NewRanging(model.RangingReading{Source: "a", Range: 1})),
		stamped(model.NewInertial(model.InertialReading{Source: "b"})),
	)

	ops, _ := backend.snapshot()
	if len(ops) != 2 {
		t.Fatalf("ops = %+v, want two publishes", ops)
	}
	for _, o := range ops {
		if o.cmd != "PUBLISH" || o.key != DefaultSharedKey {
			t.Fatalf("unexpected op %+v", o)
		}
	}
}

func TestWorker_PreservesArrivalOrder(t *testing.T) {
	t.Parallel()

	sources := []string{"a", "b", "c", "d", "e", "f"}
	envs := make([]model.Envelope, 0, len(sources))
	for _, s := range sources {
		envs = append(envs, stamped(model.NewRanging(model.RangingReading{Source: s, Range: 1})))
	}

	backend := &fakeBackend{}
	runToCompletion(t, backend, WorkerConfig{Keys: DefaultKeyPolicy()}, envs...)

	ops, _ := backend.snapshot()
	if len(ops) != len(sources) {
		t.Fatalf("ops = %d, want %d", len(ops), len(sources))
	}
	for i, s := range sources {
		want := `{"source":"` + s + `","range":1,"timestamp":1700000000}`
		if ops[i].payload != want {
			t.Fatalf("op[%d] payload = %s, want %s", i, ops[i].payload, want)
		}
	}
}

func TestWorker_BackendErrorsAreNotFatal(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{setErr: errors.New("set boom"), publishErr: errors.New("publish boom")}
	runToCompletion(t, backend, WorkerConfig{Keys: DefaultKeyPolicy(), PersistLatest: true},
		stamped(model.NewRanging(model.RangingReading{Source: "a", Range: 1})),
		stamped(model.NewRanging(model.RangingReading{Source: "b", Range: 2})),
	)

	ops, _ := backend.snapshot()
	if len(ops) != 4 {
		t.Fatalf("ops = %+v, want SET+PUBLISH attempted for both envelopes", ops)
	}
}

func TestWorker_DropsUnserializableEnvelope(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{}
	runToCompletion(t, backend, WorkerConfig{Keys: DefaultKeyPolicy(), PersistLatest: true},
		model.Envelope{Kind: model.KindRanging},
		stamped(model.NewRanging(model.RangingReading{Source: "ok", Range: 1})),
	)

	ops, _ := backend.snapshot()
	if len(ops) != 2 || ops[0].cmd != "SET" || ops[1].cmd != "PUBLISH" {
		t.Fatalf("ops = %+v, want only the valid envelope relayed", ops)
	}
}

func TestWorker_StopObservedBeforeNextReceive(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{}
	tx, rx := queue.New(4)
	sw, kill := killswitch.New()

	w := NewWorker(backend, WorkerConfig{
		Keys:   DefaultKeyPolicy(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(rx, kill)
	}()

	if err := sw.Send(killswitch.Stop); err != nil {
		t.Fatalf("Send: %v", err)
	}
	// Release a receive that may already be blocked. If the worker polled
	// first it is already gone and the send fails, which is fine.
	_ = tx.Send(stamped(model.NewRanging(model.RangingReading{Source: "wake", Range: 1})))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for worker to stop")
	}

	ops, closed := backend.snapshot()
	if len(ops) > 1 {
		t.Fatalf("ops after stop = %+v, want at most one publish", ops)
	}
	if !closed {
		t.Fatal("expected backend to be closed")
	}
	if err := tx.Send(stamped(model.NewRanging(model.RangingReading{Source: "late", Range: 1}))); !errors.Is(err, queue.ErrReceiverGone) {
		t.Fatalf("queue Send after stop error = %v, want ErrReceiverGone", err)
	}
}

func TestWorker_DebugLogNamesSource(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	backend := &fakeBackend{}
	runToCompletion(t, backend, WorkerConfig{
		Keys:   DefaultKeyPolicy(),
		Logger: slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}, stamped(model.NewRanging(model.RangingReading{Source: "anchor-7", Range: 3})))

	out := logs.String()
	if !strings.Contains(out, "source=anchor-7") || !strings.Contains(out, "timestamp=1700000000") {
		t.Errorf("publish debug log should carry source and timestamp:\n%s", out)
	}
}
