// Package transport adapts a non-blocking TCP file descriptor to the
// domain.Transport contract the handshake driver consumes, and provides an
// epoll-based domain.EventLoop to run it on. Grounded on
// billy-rubin-Socks-proxy's internal/infrastructure/network/socket_factory.go
// (non-blocking socket creation) and internal/infrastructure/epoll/eventloop.go
// (edge-triggered epoll dispatch), generalized from "listen+accept" to
// "connect", and extended with a true MSG_PEEK peek the teacher never needed.
package transport

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"proxyhandshake/internal/domain"
)

// Conn is a non-blocking TCP connection to a proxy server, already
// connected (or connecting) by the time it is handed to a handshake
// driver (spec.md §1 scopes connection establishment to an external
// collaborator; Conn is that collaborator's concrete implementation).
type Conn struct {
	fd      int
	handler domain.ReadinessHandler
}

// Dial creates a non-blocking socket and begins connecting to addr
// ("host:port", IPv4 only — matching the teacher's IPv4-only socket
// factory). The connect is asynchronous; register the returned Conn's Fd
// for EventTypeWrite and call Connected once it fires to learn whether the
// connection succeeded (grounded on the teacher's
// startTCPConnect/finalizeConnect pair in application/proxy_service.go).
func Dial(addr string) (*Conn, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp4", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %q: %w", addr, err)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("transport: socket: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("transport: set nonblock: %w", err)
	}

	sa := &unix.SockaddrInet4{Port: tcpAddr.Port}
	copy(sa.Addr[:], tcpAddr.IP.To4())

	if err := unix.Connect(fd, sa); err != nil && err != unix.EINPROGRESS {
		unix.Close(fd)
		return nil, fmt.Errorf("transport: connect %q: %w", addr, err)
	}

	return &Conn{fd: fd}, nil
}

// Fd returns the underlying file descriptor, for EventLoop registration.
func (c *Conn) Fd() int { return c.fd }

// Connected probes SO_ERROR to learn whether an asynchronous connect
// succeeded (grounded on the teacher's finalizeConnect).
func (c *Conn) Connected() error {
	val, err := unix.GetsockoptInt(c.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if val != 0 {
		return unix.Errno(val)
	}
	return nil
}

// WaitConnected blocks (via a plain poll(2), not the handshake engine's own
// event loop) until the asynchronous connect from Dial completes or
// timeout elapses. Connection establishment to the proxy endpoint is an
// external collaborator per spec.md §1; callers that already run their own
// event loop should instead register Fd() for EventTypeWrite and call
// Connected() directly.
func (c *Conn) WaitConnected(timeout time.Duration) error {
	pfd := []unix.PollFd{{Fd: int32(c.fd), Events: unix.POLLOUT}}
	n, err := unix.Poll(pfd, int(timeout/time.Millisecond))
	if err != nil {
		return fmt.Errorf("transport: poll: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transport: connect to proxy timed out")
	}
	return c.Connected()
}

// Read implements domain.Transport.
func (c *Conn) Read(buf []byte) (int, error) {
	n, err := unix.Read(c.fd, buf)
	if err != nil {
		if err == unix.EAGAIN {
			return -1, domain.ErrWouldBlock
		}
		return -1, err
	}
	return n, nil
}

// Peek implements domain.Transport via MSG_PEEK, which the teacher's
// server-only socket factory never required (spec.md §4.2 needs a true
// non-consuming peek ahead of the header-terminator scan).
func (c *Conn) Peek(buf []byte) (int, error) {
	n, _, err := unix.Recvfrom(c.fd, buf, unix.MSG_PEEK)
	if err != nil {
		if err == unix.EAGAIN {
			return -1, domain.ErrWouldBlock
		}
		return -1, err
	}
	return n, nil
}

// Write implements domain.Transport.
func (c *Conn) Write(buf []byte) (int, error) {
	n, err := unix.Write(c.fd, buf)
	if err != nil {
		if err == unix.EAGAIN {
			return -1, domain.ErrWouldBlock
		}
		return -1, err
	}
	return n, nil
}

// SetEventHandler implements domain.Transport.
func (c *Conn) SetEventHandler(h domain.ReadinessHandler) {
	c.handler = h
}

// Close implements domain.Transport.
func (c *Conn) Close() error {
	return unix.Close(c.fd)
}

// HandleEvent implements domain.EventHandler so Conn can be registered
// directly with an EventLoop; it forwards into the ReadinessHandler set via
// SetEventHandler (grounded on the teacher's HandleEvent state-switch in
// application/proxy_service.go, narrowed to a single session).
func (c *Conn) HandleEvent(fd int, event domain.EventType) error {
	if c.handler == nil {
		return nil
	}
	if event&domain.EventTypeRead != 0 {
		c.handler.OnReadable()
	}
	if event&domain.EventTypeWrite != 0 {
		c.handler.OnWritable()
	}
	return nil
}
