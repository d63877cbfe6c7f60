package queue

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tinytelemetry/udp2redis/internal/model"
)

func ranging(source string) model.Envelope {
	return model.NewRanging(model.RangingReading{Source: source, Range: 1})
}

func TestQueue_PreservesOrder(t *testing.T) {
	t.Parallel()

	tx, rx := New(128)
	for i := 0; i < 100; i++ {
		if err := tx.Send(ranging(fmt.Sprintf("s%d", i))); err != nil {
			t.Fatalf("Send #%d: %v", i, err)
		}
	}
	tx.Close()

	for i := 0; i < 100; i++ {
		env, err := rx.Recv()
		if err != nil {
			t.Fatalf("Recv #%d: %v", i, err)
		}
		if want := fmt.Sprintf("s%d", i); env.Source() != want {
			t.Fatalf("Recv #%d source = %q, want %q", i, env.Source(), want)
		}
	}
	if _, err := rx.Recv(); !errors.Is(err, ErrSenderGone) {
		t.Fatalf("Recv after drain error = %v, want ErrSenderGone", err)
	}
}

func TestQueue_DefaultSize(t *testing.T) {
	t.Parallel()

	tx, _ := New(0)
	if got := cap(tx.l.items); got != DefaultSize {
		t.Fatalf("cap = %d, want %d", got, DefaultSize)
	}
}

func TestQueue_SendAfterReceiverClose(t *testing.T) {
	t.Parallel()

	tx, rx := New(4)
	rx.Close()
	rx.Close()

	if err := tx.Send(ranging("s")); !errors.Is(err, ErrReceiverGone) {
		t.Fatalf("Send error = %v, want ErrReceiverGone", err)
	}
}

func TestQueue_BlockedSendUnblocksOnReceiverClose(t *testing.T) {
	t.Parallel()

	tx, rx := New(1)
	if err := tx.Send(ranging("first")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- tx.Send(ranging("second")) }()

	select {
	case err := <-errCh:
		t.Fatalf("Send returned early with %v, want it to block on a full queue", err)
	case <-time.After(50 * time.Millisecond):
	}

	rx.Close()
	select {
	case err := <-errCh:
		if !errors.Is(err, ErrReceiverGone) {
			t.Fatalf("Send error = %v, want ErrReceiverGone", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for blocked Send to return")
	}
}

func TestQueue_Len(t *testing.T) {
	t.Parallel()

	tx, rx := New(4)
	_ = tx.Send(ranging("a"))
	_ = tx.Send(ranging("b"))
	if got := rx.Len(); got != 2 {
		t.Fatalf("Len = %d, want 2", got)
	}
}
