package transport

import (
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"

	"proxyhandshake/internal/domain"
)

// EpollLoop is an edge-triggered epoll wait loop for the single proxy
// connection a handshake-demo run owns. billy-rubin-Socks-proxy's
// internal/infrastructure/epoll/eventloop.go drives a listener's whole
// live-connection table through Register/Modify/Unregister against an
// arbitrary number of fds; this module only ever has one fd in flight
// (the proxy socket, registered once for both read and write interest and
// never re-armed), so the dispatch table and the re-arm/deregister calls
// that only make sense against it are gone.
type EpollLoop struct {
	epollFD int
	log     *slog.Logger
}

// NewEpollLoop creates an EpollLoop.
func NewEpollLoop(log *slog.Logger) (*EpollLoop, error) {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	return &EpollLoop{epollFD: fd, log: log}, nil
}

// Register arms epoll for fd with the given interest mask. Each call adds
// fd to the epoll set (EPOLL_CTL_ADD); there is no call to re-arm or remove
// a descriptor, and Run hands every event to the same handler.
func (l *EpollLoop) Register(fd int, events domain.EventType) error {
	evt := &unix.EpollEvent{
		Events: uint32(events) | unix.EPOLLET,
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(l.epollFD, unix.EPOLL_CTL_ADD, fd, evt); err != nil {
		return fmt.Errorf("transport: epoll register fd %d: %w", fd, err)
	}
	return nil
}

// Run blocks waiting for the registered fd to become readable or writable
// and dispatches to handler, until EpollWait fails with an error other than
// EINTR (as it does once Stop closes the epoll fd). Errors returned by
// handler are logged and do not stop the loop.
func (l *EpollLoop) Run(handler domain.EventHandler) error {
	var event [1]unix.EpollEvent
	for {
		n, err := unix.EpollWait(l.epollFD, event[:], -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}
		if n == 0 {
			continue
		}

		var ev domain.EventType
		if event[0].Events&unix.EPOLLIN != 0 {
			ev |= domain.EventTypeRead
		}
		if event[0].Events&unix.EPOLLOUT != 0 {
			ev |= domain.EventTypeWrite
		}

		if err := handler.HandleEvent(int(event[0].Fd), ev); err != nil && l.log != nil {
			l.log.Error("error handling fd event", "fd", event[0].Fd, "error", err)
		}
	}
}

// Stop closes the epoll fd, unblocking a concurrent Run with EBADF.
func (l *EpollLoop) Stop() {
	unix.Close(l.epollFD)
}
