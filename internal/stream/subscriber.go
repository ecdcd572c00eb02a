package stream

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
)

var (
	ErrSubscriberClosed = errors.New("subscriber closed")
	ErrBufferFull       = errors.New("subscriber buffer full")
)

// Reason records why a subscriber was torn down.
type Reason string

const (
	ReasonCompleted   Reason = "completed"
	ReasonTimeout     Reason = "timeout"
	ReasonError       Reason = "error"
	ReasonWriteFailed Reason = "write_failed"
	ReasonShutdown    Reason = "shutdown"
)

const DefaultBufferSize = 64

// Subscriber is one live stream connection. Producers enqueue with Send from
// any goroutine; a single transport goroutine drains the queue with Pump.
// Teardown runs once no matter how many paths race to it.
type Subscriber struct {
	id    string
	queue chan Message
	done  chan struct{}

	closed atomic.Bool
	once   sync.Once
	reason Reason
	err    error

	onClose func(*Subscriber, Reason, error)
}

func newSubscriber(id string, buffer int, onClose func(*Subscriber, Reason, error)) *Subscriber {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	return &Subscriber{
		id:      id,
		queue:   make(chan Message, buffer),
		done:    make(chan struct{}),
		onClose: onClose,
	}
}

func (s *Subscriber) ID() string { return s.id }

// Done is closed when teardown begins.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

// Reason is valid once Done is closed.
func (s *Subscriber) Reason() Reason {
	select {
	case <-s.done:
		return s.reason
	default:
		return ""
	}
}

// Err is the transport error behind ReasonError or ReasonWriteFailed.
func (s *Subscriber) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func (s *Subscriber) Closed() bool { return s.closed.Load() }

// Send enqueues msg without blocking. A full queue is reported as a failed write.
func (s *Subscriber) Send(msg Message) error {
	if s.closed.Load() {
		return ErrSubscriberClosed
	}
	select {
	case s.queue <- msg:
		return nil
	default:
		return ErrBufferFull
	}
}

// Complete ends the stream normally (client went away or request finished).
func (s *Subscriber) Complete() { s.terminate(ReasonCompleted, nil) }

// Timeout ends the stream after a transport deadline.
func (s *Subscriber) Timeout() { s.terminate(ReasonTimeout, nil) }

// Fail ends the stream after a transport error.
func (s *Subscriber) Fail(err error) { s.terminate(ReasonError, err) }

func (s *Subscriber) terminate(reason Reason, err error) {
	s.once.Do(func() {
		s.closed.Store(true)
		s.reason = reason
		s.err = err
		close(s.done)
		if s.onClose != nil {
			s.onClose(s, reason, err)
		}
	})
}

// Pump writes queued messages until ctx ends, the subscriber is torn down,
// or write fails. The caller's goroutine is the only writer for the connection.
func (s *Subscriber) Pump(ctx context.Context, write func(Message) error) {
	for {
		select {
		case <-ctx.Done():
			s.Complete()
			return
		case <-s.done:
			return
		case msg := <-s.queue:
			if s.closed.Load() {
				return
			}
			if err := write(msg); err != nil {
				if errors.Is(err, os.ErrDeadlineExceeded) {
					s.Timeout()
				} else {
					s.Fail(err)
				}
				return
			}
		}
	}
}
