package handshake

import (
	"syscall"

	"proxyhandshake/internal/codec"
	"proxyhandshake/internal/domain"
)

// OnReadable is invoked by the transport adapter when the socket becomes
// readable. Idempotent: a call with no actual data available clears the
// readiness flag on EAGAIN and returns (spec.md §4.1).
func (d *Driver) OnReadable() {
	d.sess.CanRead = true
	if d.sess.ProxyState != domain.StateHandshaking {
		// Once Connected, the core no longer consumes the stream itself;
		// it forwards the readiness notification transparently (spec.md
		// §6) and otherwise ignores late events (spec.md §3).
		if d.sess.ProxyState == domain.StateConnected && d.sink != nil {
			d.sink.OnSocketEvent(domain.SocketEvent{Kind: domain.EventRead})
		}
		return
	}
	d.doRead()
}

// OnWritable is invoked by the transport adapter when the socket becomes
// writable.
func (d *Driver) OnWritable() {
	d.sess.CanWrite = true
	if d.sess.ProxyState != domain.StateHandshaking {
		if d.sess.ProxyState == domain.StateConnected && d.sink != nil {
			d.sink.OnSocketEvent(domain.SocketEvent{Kind: domain.EventWrite})
		}
		return
	}
	if err := d.flushSend(); err != nil {
		d.fail(err)
		return
	}
	// On full drain with can_read, re-enter the read path: protocol
	// responses may already be buffered (spec.md §4.5).
	if d.sess.Send.Len() == 0 && d.sess.CanRead {
		d.doRead()
	}
}

func (d *Driver) doRead() {
	if d.sess.HandshakeState == domain.HTTPWait {
		d.doReadHTTP()
		return
	}
	d.doReadFixed()
}

// doReadFixed drives the SOCKS4/SOCKS5 fixed-frame read path of
// spec.md §4.5.
func (d *Driver) doReadFixed() {
	for d.sess.ProxyState == domain.StateHandshaking && d.sess.CanRead {
		if d.sess.Send.Len() > 0 {
			// Current state requires sending before reading (spec.md
			// §4.5 step 2); wait for OnWritable to drain it.
			return
		}
		if d.sess.RecvNeed <= 0 {
			return
		}

		dst := d.sess.Recv.Reserve(d.sess.RecvNeed)
		n, err := d.transport.Read(dst[:d.sess.RecvNeed])
		if err != nil {
			if err == domain.ErrWouldBlock {
				d.sess.CanRead = false
				return
			}
			d.fail(transportError(err))
			return
		}
		if n == 0 {
			d.fail(domain.ErrPeerClosed("proxy closed connection during handshake"))
			return
		}
		d.sess.Recv.Advance(n)
		d.sess.RecvNeed -= n
		if d.sess.RecvNeed > 0 {
			continue
		}

		frame := append([]byte(nil), d.sess.Recv.Data()...)
		d.sess.Recv.Reset()
		d.dispatchFrame(frame)
		if d.sess.ProxyState != domain.StateHandshaking {
			return
		}
		if d.sess.Send.Len() > 0 {
			if err := d.flushSend(); err != nil {
				d.fail(err)
				return
			}
			if d.sess.Send.Len() > 0 {
				return // still pending, wait for OnWritable
			}
		}
	}
}

// doReadHTTP drives the peek-then-read reply parse of spec.md §4.2.
func (d *Driver) doReadHTTP() {
	for d.sess.ProxyState == domain.StateHandshaking && d.sess.CanRead {
		maxPeek := len(d.httpScratch) - 1 - d.httpPos
		if maxPeek <= 0 {
			d.fail(domain.ErrHeaderTooLarge())
			return
		}

		peekN, err := d.transport.Peek(d.httpScratch[d.httpPos : d.httpPos+maxPeek])
		if err != nil {
			if err == domain.ErrWouldBlock {
				d.sess.CanRead = false
				return
			}
			d.fail(transportError(err))
			return
		}
		if peekN == 0 {
			d.fail(domain.ErrPeerClosed("proxy closed connection during HTTP CONNECT handshake"))
			return
		}

		// Any bytes at all while the request is still queued means the
		// server spoke before we finished sending (spec.md §4.2).
		if d.sess.Send.Len() > 0 {
			d.fail(domain.NewError(syscall.ECONNABORTED, "data before request fully sent"))
			return
		}

		window := d.httpScratch[:d.httpPos+peekN]
		end, found := codec.ScanHeaders(window)
		if !found {
			if d.httpPos+peekN >= len(d.httpScratch)-1 {
				d.fail(domain.ErrHeaderTooLarge())
				return
			}
			n, err := d.transport.Read(d.httpScratch[d.httpPos : d.httpPos+peekN])
			if err != nil {
				if err == domain.ErrWouldBlock {
					d.sess.CanRead = false
					return
				}
				d.fail(transportError(err))
				return
			}
			if n == 0 {
				d.fail(domain.ErrPeerClosed("proxy closed connection during HTTP CONNECT handshake"))
				return
			}
			d.httpPos += n
			continue
		}

		readLen := (end + 4) - d.httpPos
		n, err := d.transport.Read(d.httpScratch[d.httpPos : d.httpPos+readLen])
		if err != nil {
			if err == domain.ErrWouldBlock {
				d.sess.CanRead = false
				return
			}
			d.fail(transportError(err))
			return
		}
		if n == 0 {
			d.fail(domain.ErrPeerClosed("proxy closed connection during HTTP CONNECT handshake"))
			return
		}
		d.httpPos += n
		if d.httpPos < end+4 {
			continue
		}

		if httpErr := codec.CheckStatusLine(d.httpScratch[:end]); httpErr != nil {
			d.fail(httpErr)
			return
		}
		d.succeed()
		return
	}
}

// flushSend writes as much of send_buffer as the transport currently
// accepts (spec.md §4.5 write path).
func (d *Driver) flushSend() *domain.Error {
	for d.sess.Send.Len() > 0 {
		n, err := d.transport.Write(d.sess.Send.Data())
		if err != nil {
			if err == domain.ErrWouldBlock {
				d.sess.CanWrite = false
				return nil
			}
			return transportError(err)
		}
		d.sess.Send.Consume(n)
	}
	return nil
}

// transportError maps a transport-layer error other than EAGAIN onto the
// taxonomy of spec.md §7 ("Transport error: transport's own code").
func transportError(err error) *domain.Error {
	if errno, ok := err.(syscall.Errno); ok {
		return domain.NewError(errno, "transport error")
	}
	return domain.NewError(syscall.ECONNABORTED, "transport error: %v", err)
}
