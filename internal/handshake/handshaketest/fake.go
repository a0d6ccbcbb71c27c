// Package handshaketest provides an in-memory domain.Transport double so
// the handshake driver can be exercised deterministically, one simulated
// readiness event at a time, without real sockets. Grounded on
// die-net-conduit's internal/testutil echo-server helpers, adapted from a
// real-listener fixture to a pure in-memory fake because the driver under
// test is itself non-blocking and EAGAIN-driven rather than blocking.
package handshaketest

import (
	"proxyhandshake/internal/domain"
)

// FakeTransport simulates a non-blocking byte stream. QueueFromServer (or
// PushReadable) queues bytes a test wants the driver to read; Written accumulates everything the
// driver wrote, for assertion.
type FakeTransport struct {
	inbox   []byte // bytes queued by the test, not yet consumed by Read
	Written []byte

	handler domain.ReadinessHandler
	closed  bool

	// WriteBlockAfter, when >= 0, makes the NEXT Write accept at most that
	// many bytes (reporting ErrWouldBlock if that is 0), then resets to -1;
	// later calls accept everything. Used to exercise partial-write /
	// backpressure paths.
	WriteBlockAfter int
}

// New returns a FakeTransport with nothing queued.
func New() *FakeTransport {
	return &FakeTransport{WriteBlockAfter: -1}
}

// QueueFromServer appends bytes the driver's next Read/Peek calls will see.
func (f *FakeTransport) QueueFromServer(b []byte) {
	f.inbox = append(f.inbox, b...)
}

// PushReadable delivers the bytes and immediately invokes OnReadable on the
// registered handler, simulating one edge-triggered readiness notification.
func (f *FakeTransport) PushReadable(b []byte) {
	f.QueueFromServer(b)
	if f.handler != nil {
		f.handler.OnReadable()
	}
}

// CloseFromServer marks the simulated peer as having closed the
// connection: the next Read/Peek after the inbox drains returns (0, nil).
func (f *FakeTransport) CloseFromServer() {
	f.closed = true
	if f.handler != nil {
		f.handler.OnReadable()
	}
}

func (f *FakeTransport) Read(buf []byte) (int, error) {
	if len(f.inbox) == 0 {
		if f.closed {
			return 0, nil
		}
		return -1, domain.ErrWouldBlock
	}
	n := copy(buf, f.inbox)
	f.inbox = f.inbox[n:]
	return n, nil
}

func (f *FakeTransport) Peek(buf []byte) (int, error) {
	if len(f.inbox) == 0 {
		if f.closed {
			return 0, nil
		}
		return -1, domain.ErrWouldBlock
	}
	n := copy(buf, f.inbox)
	return n, nil
}

func (f *FakeTransport) Write(buf []byte) (int, error) {
	n := len(buf)
	if f.WriteBlockAfter >= 0 {
		if f.WriteBlockAfter < n {
			n = f.WriteBlockAfter
		}
		f.WriteBlockAfter = -1
		if n == 0 {
			return -1, domain.ErrWouldBlock
		}
	}
	f.Written = append(f.Written, buf[:n]...)
	return n, nil
}

func (f *FakeTransport) SetEventHandler(h domain.ReadinessHandler) {
	f.handler = h
}

// Unread returns the bytes still queued but not yet consumed by Read,
// i.e. what invariant 4 (consume through the terminator, no further byte)
// leaves behind for the caller to hand to the tunneled stream.
func (f *FakeTransport) Unread() []byte {
	return f.inbox
}

func (f *FakeTransport) Close() error {
	f.closed = true
	return nil
}
