package handshake

import (
	"proxyhandshake/internal/codec"
	"proxyhandshake/internal/domain"
)

// dispatchFrame hands a just-completed fixed-size frame to the codec for
// the handshake_state it was read under, per spec.md §4.3/§4.4. The codec
// may change state, set a new recv_need, and/or append to send_buffer.
func (d *Driver) dispatchFrame(frame []byte) {
	switch d.sess.HandshakeState {
	case domain.Socks4Wait:
		d.dispatchSocks4Reply(frame)
	case domain.Socks5Method:
		d.dispatchSocks5MethodReply(frame)
	case domain.Socks5Auth:
		d.dispatchSocks5AuthReply(frame)
	case domain.Socks5Request:
		d.dispatchSocks5RequestReply(frame)
	case domain.Socks5RequestAddrType:
		d.dispatchSocks5AddrTypeReply(frame)
	case domain.Socks5RequestAddress:
		d.dispatchSocks5AddressReply(frame)
	}
}

func (d *Driver) dispatchSocks4Reply(frame []byte) {
	ok, err := codec.Socks4HandleReply(frame)
	if err != nil {
		d.fail(err)
		return
	}
	if ok {
		d.succeed()
	}
}

func (d *Driver) dispatchSocks5MethodReply(frame []byte) {
	needAuth, err := codec.Socks5HandleMethodReply(frame)
	if err != nil {
		d.fail(err)
		return
	}
	if needAuth {
		d.sess.HandshakeState = domain.Socks5Auth
		d.sess.Send.Append(codec.Socks5AuthRequest(d.sess.User, d.sess.Pass))
		d.sess.RecvNeed = codec.AuthReplyLen
		return
	}
	d.queueSocks5ConnectRequest()
}

func (d *Driver) dispatchSocks5AuthReply(frame []byte) {
	if err := codec.Socks5HandleAuthReply(frame); err != nil {
		d.fail(err)
		return
	}
	d.queueSocks5ConnectRequest()
}

func (d *Driver) queueSocks5ConnectRequest() {
	req, err := codec.Socks5ConnectRequest(d.sess.TargetHost, d.sess.TargetPort)
	if err != nil {
		d.fail(domain.ErrInvalidArgument(err.Error()))
		return
	}
	d.sess.HandshakeState = domain.Socks5Request
	d.sess.Send.Append(req)
	d.sess.RecvNeed = codec.RequestReplyLen
}

func (d *Driver) dispatchSocks5RequestReply(frame []byte) {
	if err := codec.Socks5HandleRequestReply(frame); err != nil {
		d.fail(err)
		return
	}
	d.sess.HandshakeState = domain.Socks5RequestAddrType
	d.sess.RecvNeed = codec.AddrTypeReplyLen
}

func (d *Driver) dispatchSocks5AddrTypeReply(frame []byte) {
	d.sess.Socks5AddrType = frame[0]
	remaining, err := codec.Socks5AddrTypeRemaining(frame)
	if err != nil {
		d.fail(err)
		return
	}
	d.sess.HandshakeState = domain.Socks5RequestAddress
	d.sess.RecvNeed = remaining
}

func (d *Driver) dispatchSocks5AddressReply(frame []byte) {
	// The bound address reported by the server is widely spoofed and not
	// used (spec.md §4.4 rationale); the frame is drained and discarded.
	d.succeed()
}
