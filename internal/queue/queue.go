// Package queue is the single-producer, single-consumer FIFO that links the
// ingestion worker to the publishing worker.
//
// Unlike a bare channel, each side can tell when the other has gone away:
// the producer gets ErrReceiverGone from Send, the consumer gets ErrSenderGone
// from Recv once everything already queued has been drained.
package queue

import (
	"errors"
	"sync"

	"github.com/tinytelemetry/udp2redis/internal/model"
)

// DefaultSize is the default number of envelopes buffered between workers.
// It bounds memory; once it is reached the ingestion worker blocks in Send
// and stops reading the socket until the publisher catches up.
const DefaultSize = 10_000

var (
	ErrReceiverGone = errors.New("queue: receiver gone")
	ErrSenderGone   = errors.New("queue: sender gone")
)

type link struct {
	items    chan model.Envelope
	recvGone chan struct{}
	sendOnce sync.Once
	recvOnce sync.Once
}

// Sender is the producer end. It must be used from one goroutine.
type Sender struct{ l *link }

// Receiver is the consumer end. It must be used from one goroutine.
type Receiver struct{ l *link }

// New creates a linked Sender and Receiver buffering up to size envelopes.
func New(size int) (*Sender, *Receiver) {
	if size <= 0 {
		size = DefaultSize
	}
	l := &link{
		items:    make(chan model.Envelope, size),
		recvGone: make(chan struct{}),
	}
	return &Sender{l: l}, &Receiver{l: l}
}

// Send enqueues env, blocking only while the buffer is full. It fails with
// ErrReceiverGone once the consumer has closed its end. Send must not be
// called after Close.
func (s *Sender) Send(env model.Envelope) error {
	select {
	case <-s.l.recvGone:
		return ErrReceiverGone
	default:
	}
	select {
	case s.l.items <- env:
		return nil
	case <-s.l.recvGone:
		return ErrReceiverGone
	}
}

// Close drops the producer end. Queued envelopes stay readable.
func (s *Sender) Close() {
	s.l.sendOnce.Do(func() { close(s.l.items) })
}

// Recv blocks until an envelope is available. It returns ErrSenderGone when
// the producer has closed and the queue is empty.
func (r *Receiver) Recv() (model.Envelope, error) {
	env, ok := <-r.l.items
	if !ok {
		return model.Envelope{}, ErrSenderGone
	}
	return env, nil
}

// Close drops the consumer end. Pending and future sends fail.
func (r *Receiver) Close() {
	r.l.recvOnce.Do(func() { close(r.l.recvGone) })
}

// Len reports how many envelopes are waiting.
func (r *Receiver) Len() int {
	return len(r.l.items)
}
