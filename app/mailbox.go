package app

import (
	"context"
	"errors"
	"strconv"
	"sync"
)

// ErrChannelClosed is returned once the control channel has been closed and
// drained. The supervisor treats it as fatal.
var ErrChannelClosed = errors.New("control channel closed")

// ControlMessage is an instruction for the listener supervisor.
type ControlMessage int

const (
	// Start builds a route table and spawns a listener for it.
	Start ControlMessage = iota + 1
	// Restart cancels every live listener and then enqueues Start.
	Restart
)

func (m ControlMessage) String() string {
	switch m {
	case Start:
		return "START"
	case Restart:
		return "RESTART"
	default:
		return "UNKNOWN(" + strconv.Itoa(int(m)) + ")"
	}
}

// Mailbox is an unbounded multi-producer, single-consumer FIFO of control
// messages. Send never blocks.
type Mailbox struct {
	mu     sync.Mutex
	queue  []ControlMessage
	closed bool

	notify chan struct{}
	done   chan struct{}
}

// NewMailbox creates an empty, open mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Send appends msg to the queue. It fails with ErrChannelClosed after Close.
func (m *Mailbox) Send(msg ControlMessage) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrChannelClosed
	}
	m.queue = append(m.queue, msg)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return nil
}

// Receive returns the oldest queued message, waiting until one is available.
// Messages sent before Close are still delivered; after that Receive returns
// ErrChannelClosed. Only one goroutine may call Receive.
func (m *Mailbox) Receive(ctx context.Context) (ControlMessage, error) {
	for {
		m.mu.Lock()
		if len(m.queue) > 0 {
			msg := m.queue[0]
			m.queue = m.queue[1:]
			if len(m.queue) == 0 {
				m.queue = nil
			}
			m.mu.Unlock()
			return msg, nil
		}
		if m.closed {
			m.mu.Unlock()
			return 0, ErrChannelClosed
		}
		m.mu.Unlock()

		select {
		case <-m.notify:
		case <-m.done:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// Close stops accepting messages. It is safe to call more than once.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.done)
}

// Len returns the number of queued messages.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}
