// Package killswitch implements the one-shot stop request handed from a
// pipeline owner to each of its workers.
//
// A worker polls its Receiver without blocking at the top of every loop
// iteration. A blocking read already in progress is never interrupted, so a
// Stop sent while a worker waits on its socket or queue only takes effect
// once that wait returns.
package killswitch

import (
	"errors"
	"log/slog"
	"sync"
)

// Signal is the value carried by a kill switch.
type Signal uint8

const (
	Noop Signal = iota
	Stop
)

func (s Signal) String() string {
	if s == Stop {
		return "stop"
	}
	return "noop"
}

// Status is the result of a non-blocking poll.
type Status uint8

const (
	StatusEmpty Status = iota
	StatusNoop
	StatusStop
	// StatusDisconnected means the owner dropped its Switch. Workers treat it
	// exactly like StatusStop.
	StatusDisconnected
)

// Terminal reports whether a worker observing s must leave its loop.
func (s Status) Terminal() bool {
	return s == StatusStop || s == StatusDisconnected
}

func (s Status) String() string {
	switch s {
	case StatusNoop:
		return "noop"
	case StatusStop:
		return "stop"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "empty"
	}
}

var (
	// ErrReceiverGone is returned when the worker already exited.
	ErrReceiverGone = errors.New("killswitch: worker already exited")

	// ErrClosed is returned when sending on a Switch after Close.
	ErrClosed = errors.New("killswitch: switch closed")
)

// Switch is the owner's sending capability.
type Switch struct {
	mu     sync.Mutex
	ch     chan Signal
	gone   <-chan struct{}
	closed bool
}

// Receiver is the worker's end. Only the owning worker may poll it.
type Receiver struct {
	ch   <-chan Signal
	gone chan struct{}
	once sync.Once
}

// New returns a connected Switch and Receiver pair.
func New() (*Switch, *Receiver) {
	ch := make(chan Signal, 1)
	gone := make(chan struct{})
	return &Switch{ch: ch, gone: gone}, &Receiver{ch: ch, gone: gone}
}

// Send delivers sig without blocking. At most one signal is pending at a
// time; a pending Stop is never replaced by Noop.
func (s *Switch) Send(sig Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	select {
	case <-s.gone:
		return ErrReceiverGone
	default:
	}

	select {
	case s.ch <- sig:
		return nil
	default:
	}
	if sig != Stop {
		return nil
	}
	// Replace whatever is pending. The receiver may drain concurrently, either
	// way the buffer has room afterwards since this is the only sender.
	select {
	case <-s.ch:
	default:
	}
	s.ch <- sig
	return nil
}

// Kill sends Stop and logs instead of returning a failure.
func (s *Switch) Kill(logger *slog.Logger) {
	if s == nil {
		return
	}
	if err := s.Send(Stop); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("kill switch: failed to deliver stop", "error", err)
	}
}

// Close drops the owner's capability. A signal already pending is still
// observed first, after which the worker sees StatusDisconnected.
func (s *Switch) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Poll checks for a pending signal without blocking.
func (r *Receiver) Poll() Status {
	select {
	case sig, ok := <-r.ch:
		if !ok {
			return StatusDisconnected
		}
		if sig == Stop {
			return StatusStop
		}
		return StatusNoop
	default:
		return StatusEmpty
	}
}

// Release marks the worker as exited. Later sends fail with ErrReceiverGone.
func (r *Receiver) Release() {
	r.once.Do(func() { close(r.gone) })
}
