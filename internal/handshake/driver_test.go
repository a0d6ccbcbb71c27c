package handshake

import (
	"bytes"
	"log/slog"
	"syscall"
	"testing"

	"proxyhandshake/internal/domain"
	"proxyhandshake/internal/handshake/handshaketest"
)

func testLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

// eventRecorder collects every SocketEvent a Driver emits, for asserting
// the "terminal event at most once" ordering guarantee (spec.md §5, §8
// invariant 6).
type eventRecorder struct {
	events []domain.SocketEvent
}

func (r *eventRecorder) sink() domain.EventSinkFunc {
	return func(ev domain.SocketEvent) { r.events = append(r.events, ev) }
}

func newDriver() (*Driver, *handshaketest.FakeTransport, *eventRecorder, *bytes.Buffer) {
	ft := handshaketest.New()
	rec := &eventRecorder{}
	log, buf := testLogger()
	d := New(ft, rec.sink(), log, nil)
	return d, ft, rec, buf
}

// --- S1: HTTP success -------------------------------------------------

func TestS1_HTTPSuccess(t *testing.T) {
	d, ft, rec, _ := newDriver()

	if err := d.BeginHandshake(domain.Params{Type: domain.ProxyHTTP, Host: "example.com", Port: 443}); err != nil {
		t.Fatalf("BeginHandshake: %v", err)
	}
	if d.Session().ProxyState != domain.StateHandshaking {
		t.Fatalf("ProxyState = %v, want Handshaking", d.Session().ProxyState)
	}
	d.OnWritable()

	if !bytes.HasPrefix(ft.Written, []byte("CONNECT example.com:443 HTTP/1.1\r\n")) {
		t.Fatalf("request line wrong: %q", ft.Written)
	}

	ft.PushReadable([]byte("HTTP/1.1 200 Connection established\r\nX: y\r\n\r\nEXTRA"))

	if len(rec.events) != 1 || rec.events[0].Kind != domain.EventConnection {
		t.Fatalf("events = %+v, want single Connection(Ok)", rec.events)
	}
	if d.Session().ProxyState != domain.StateConnected {
		t.Fatalf("ProxyState = %v, want Connected", d.Session().ProxyState)
	}
	if string(ft.Unread()) != "EXTRA" {
		t.Fatalf("unread bytes = %q, want %q", ft.Unread(), "EXTRA")
	}
}

// --- S2: HTTP auth ------------------------------------------------------

func TestS2_HTTPAuthHeader(t *testing.T) {
	d, ft, _, _ := newDriver()
	if err := d.BeginHandshake(domain.Params{Type: domain.ProxyHTTP, Host: "h", Port: 80, User: "u", Pass: "p"}); err != nil {
		t.Fatalf("BeginHandshake: %v", err)
	}
	d.OnWritable()
	if !bytes.Contains(ft.Written, []byte("Proxy-Authorization: Basic dTpw\r\n")) {
		t.Fatalf("missing auth header: %q", ft.Written)
	}
}

// --- S3: HTTP rejection --------------------------------------------------

func TestS3_HTTPRejection(t *testing.T) {
	d, ft, rec, _ := newDriver()
	if err := d.BeginHandshake(domain.Params{Type: domain.ProxyHTTP, Host: "h", Port: 80}); err != nil {
		t.Fatalf("BeginHandshake: %v", err)
	}
	d.OnWritable()
	ft.PushReadable([]byte("HTTP/1.1 407 Proxy Authentication Required\r\n\r\n"))

	if len(rec.events) != 1 || rec.events[0].Kind != domain.EventClose {
		t.Fatalf("events = %+v, want single Close", rec.events)
	}
	herr, ok := rec.events[0].Err.(*domain.Error)
	if !ok || herr.Code != syscall.ECONNRESET {
		t.Fatalf("err = %v, want ECONNRESET", rec.events[0].Err)
	}
	if d.Session().ProxyState != domain.StateNoConn {
		t.Fatalf("ProxyState = %v, want NoConn", d.Session().ProxyState)
	}
}

// --- S4: SOCKS4 success ---------------------------------------------------

func TestS4_SOCKS4Success(t *testing.T) {
	d, ft, rec, _ := newDriver()
	if err := d.BeginHandshake(domain.Params{Type: domain.ProxySOCKS4, Host: "1.2.3.4", Port: 80}); err != nil {
		t.Fatalf("BeginHandshake: %v", err)
	}
	d.OnWritable()

	want := []byte{0x04, 0x01, 0x00, 0x50, 0x01, 0x02, 0x03, 0x04, 0x00}
	if !bytes.Equal(ft.Written, want) {
		t.Fatalf("request = % x, want % x", ft.Written, want)
	}

	ft.PushReadable([]byte{0x00, 0x5A, 0, 0, 0, 0, 0, 0})
	if len(rec.events) != 1 || rec.events[0].Kind != domain.EventConnection {
		t.Fatalf("events = %+v, want single Connection(Ok)", rec.events)
	}
}

// --- S5: SOCKS4 rejected ---------------------------------------------------

func TestS5_SOCKS4Rejected(t *testing.T) {
	d, ft, rec, logBuf := newDriver()
	if err := d.BeginHandshake(domain.Params{Type: domain.ProxySOCKS4, Host: "1.2.3.4", Port: 80}); err != nil {
		t.Fatalf("BeginHandshake: %v", err)
	}
	d.OnWritable()
	ft.PushReadable([]byte{0x00, 0x5B, 0, 0, 0, 0, 0, 0})

	if len(rec.events) != 1 || rec.events[0].Kind != domain.EventClose {
		t.Fatalf("events = %+v, want single Close", rec.events)
	}
	herr, ok := rec.events[0].Err.(*domain.Error)
	if !ok || herr.Code != syscall.ECONNABORTED {
		t.Fatalf("err = %v, want ECONNABORTED", rec.events[0].Err)
	}
	if !bytes.Contains(logBuf.Bytes(), []byte("Request rejected or failed")) {
		t.Fatalf("log output missing diagnostic: %s", logBuf.String())
	}
}

// --- S6: SOCKS5 user/pass to an IPv6 target -------------------------------

func TestS6_SOCKS5UserPassIPv6(t *testing.T) {
	d, ft, rec, _ := newDriver()
	if err := d.BeginHandshake(domain.Params{Type: domain.ProxySOCKS5, Host: "::1", Port: 22, User: "u", Pass: "p"}); err != nil {
		t.Fatalf("BeginHandshake: %v", err)
	}
	d.OnWritable()
	if !bytes.Equal(ft.Written, []byte{0x05, 0x02, 0x00, 0x02}) {
		t.Fatalf("method request = % x", ft.Written)
	}
	ft.Written = nil

	ft.PushReadable([]byte{0x05, 0x02})
	if !bytes.Equal(ft.Written, []byte{0x01, 0x01, 'u', 0x01, 'p'}) {
		t.Fatalf("auth request = % x", ft.Written)
	}
	ft.Written = nil

	ft.PushReadable([]byte{0x01, 0x00})

	wantConnect := append([]byte{0x05, 0x01, 0x00, 0x04}, make([]byte, 16)...)
	wantConnect[len(wantConnect)-1] = 1 // ::1
	wantConnect = append(wantConnect, 0x00, 0x16)
	if !bytes.Equal(ft.Written, wantConnect) {
		t.Fatalf("connect request = % x, want % x", ft.Written, wantConnect)
	}
	ft.Written = nil

	reply := append([]byte{0x05, 0x00, 0x00}, 0x04)
	ft.PushReadable(reply)
	addrAndPort := append(make([]byte, 16), 0x00, 0x16)
	addrAndPort[15] = 1
	ft.PushReadable(addrAndPort)

	if len(rec.events) != 1 || rec.events[0].Kind != domain.EventConnection {
		t.Fatalf("events = %+v, want single Connection(Ok)", rec.events)
	}
}

// --- Invariant 1: begin_handshake precondition failures -------------------

func TestInvariant1_BeginHandshakePreconditions(t *testing.T) {
	cases := []struct {
		name   string
		params domain.Params
		want   syscall.Errno
	}{
		{"empty host", domain.Params{Type: domain.ProxyHTTP, Host: "", Port: 80}, syscall.EINVAL},
		{"port zero", domain.Params{Type: domain.ProxyHTTP, Host: "h", Port: 0}, syscall.EINVAL},
		{"port too large", domain.Params{Type: domain.ProxyHTTP, Host: "h", Port: 65536}, syscall.EINVAL},
		{"unsupported type", domain.Params{Type: domain.ProxyType(99), Host: "h", Port: 80}, syscall.EPROTONOSUPPORT},
		{"socks5 user too long", domain.Params{Type: domain.ProxySOCKS5, Host: "h", Port: 80, User: string(make([]byte, 256))}, syscall.EINVAL},
	}
	for _, c := range cases {
		d, _, _, _ := newDriver()
		err := d.BeginHandshake(c.params)
		if err == nil {
			t.Errorf("%s: want error, got nil", c.name)
			continue
		}
		if err.Code != c.want {
			t.Errorf("%s: Code = %v, want %v", c.name, err.Code, c.want)
		}
		if d.Session().ProxyState != domain.StateNoConn {
			t.Errorf("%s: ProxyState = %v, want NoConn", c.name, d.Session().ProxyState)
		}
	}
}

func TestInvariant1_AlreadyInProgress(t *testing.T) {
	d, _, _, _ := newDriver()
	if err := d.BeginHandshake(domain.Params{Type: domain.ProxyHTTP, Host: "h", Port: 80}); err != nil {
		t.Fatalf("first BeginHandshake: %v", err)
	}
	err := d.BeginHandshake(domain.Params{Type: domain.ProxyHTTP, Host: "h", Port: 80})
	if err == nil || err.Code != syscall.EALREADY {
		t.Fatalf("second BeginHandshake = %v, want EALREADY", err)
	}
}

// --- Invariant 2: begin_handshake leaves send_buffer non-empty -----------

func TestInvariant2_SendBufferNonEmptyAfterBegin(t *testing.T) {
	types := []domain.ProxyType{domain.ProxyHTTP, domain.ProxySOCKS4, domain.ProxySOCKS5}
	for _, pt := range types {
		d, _, _, _ := newDriver()
		if err := d.BeginHandshake(domain.Params{Type: pt, Host: "1.2.3.4", Port: 80}); err != nil {
			t.Fatalf("%v: BeginHandshake: %v", pt, err)
		}
		if d.Session().Send.Len() == 0 {
			t.Errorf("%v: send_buffer empty immediately after BeginHandshake", pt)
		}
		if d.Session().ProxyState != domain.StateHandshaking {
			t.Errorf("%v: ProxyState = %v, want Handshaking", pt, d.Session().ProxyState)
		}
	}
}

// --- Invariant 3: incremental-parse equivalence ---------------------------

func TestInvariant3_IncrementalDelivery(t *testing.T) {
	reply := []byte{0x00, 0x5A, 0, 0, 0, 0, 0, 0}

	d, ft, rec, _ := newDriver()
	if err := d.BeginHandshake(domain.Params{Type: domain.ProxySOCKS4, Host: "1.2.3.4", Port: 80}); err != nil {
		t.Fatalf("BeginHandshake: %v", err)
	}
	d.OnWritable()

	for _, b := range reply {
		ft.PushReadable([]byte{b})
	}

	if len(rec.events) != 1 || rec.events[0].Kind != domain.EventConnection {
		t.Fatalf("byte-at-a-time delivery: events = %+v, want single Connection(Ok)", rec.events)
	}
}

// --- Invariant 4: HTTP consumes exactly through the terminator -----------

func TestInvariant4_HTTPConsumesExactlyThroughTerminator(t *testing.T) {
	d, ft, rec, _ := newDriver()
	if err := d.BeginHandshake(domain.Params{Type: domain.ProxyHTTP, Host: "h", Port: 80}); err != nil {
		t.Fatalf("BeginHandshake: %v", err)
	}
	d.OnWritable()

	body := "some body bytes that must not be consumed"
	ft.PushReadable([]byte("HTTP/1.1 200 OK\r\n\r\n" + body))

	if len(rec.events) != 1 || rec.events[0].Kind != domain.EventConnection {
		t.Fatalf("events = %+v, want single Connection(Ok)", rec.events)
	}
	if string(ft.Unread()) != body {
		t.Fatalf("unread = %q, want %q", ft.Unread(), body)
	}
}

// --- Invariant 6: mid-handshake transport error --------------------------

func TestInvariant6_TransportErrorClosesOnce(t *testing.T) {
	d, ft, rec, _ := newDriver()
	if err := d.BeginHandshake(domain.Params{Type: domain.ProxySOCKS4, Host: "1.2.3.4", Port: 80}); err != nil {
		t.Fatalf("BeginHandshake: %v", err)
	}
	d.OnWritable()

	ft.CloseFromServer() // Read returns (0, nil): peer closed mid-handshake

	if len(rec.events) != 1 || rec.events[0].Kind != domain.EventClose {
		t.Fatalf("events = %+v, want single Close", rec.events)
	}
	if d.Session().ProxyState != domain.StateNoConn {
		t.Fatalf("ProxyState = %v, want NoConn", d.Session().ProxyState)
	}

	// A second readiness notification after the terminal event must be a
	// no-op (this also exercises invariant 7).
	d.OnReadable()
	if len(rec.events) != 1 {
		t.Fatalf("events after post-terminal OnReadable = %+v, want still 1", rec.events)
	}
}

// --- Invariant 7: idempotence post-terminal -------------------------------

func TestInvariant7_PostTerminalCallsAreNoops(t *testing.T) {
	// After a failure terminal event (ProxyState == NoConn), the core has
	// nothing left to forward — further readiness calls must be pure
	// no-ops, not just "no new Close".
	d, ft, rec, _ := newDriver()
	if err := d.BeginHandshake(domain.Params{Type: domain.ProxySOCKS4, Host: "1.2.3.4", Port: 80}); err != nil {
		t.Fatalf("BeginHandshake: %v", err)
	}
	d.OnWritable()
	ft.PushReadable([]byte{0x00, 0x5B, 0, 0, 0, 0, 0, 0}) // rejected -> Close
	if len(rec.events) != 1 || rec.events[0].Kind != domain.EventClose {
		t.Fatalf("events = %+v, want single Close", rec.events)
	}

	d.OnReadable()
	d.OnWritable()
	if len(rec.events) != 1 {
		t.Fatalf("events after post-terminal calls = %+v, want still 1", rec.events)
	}
}

// TestConnectedStateForwardsReadWrite exercises spec.md §6's pass-through
// clause: once Connected, the core stops consuming the stream itself and
// instead forwards Read/Write readiness straight to the sink.
func TestConnectedStateForwardsReadWrite(t *testing.T) {
	d, ft, rec, _ := newDriver()
	if err := d.BeginHandshake(domain.Params{Type: domain.ProxyHTTP, Host: "h", Port: 80}); err != nil {
		t.Fatalf("BeginHandshake: %v", err)
	}
	d.OnWritable()
	ft.PushReadable([]byte("HTTP/1.1 200 OK\r\n\r\n"))
	if len(rec.events) != 1 || rec.events[0].Kind != domain.EventConnection {
		t.Fatalf("events = %+v, want single Connection(Ok)", rec.events)
	}

	d.OnReadable()
	d.OnWritable()
	if len(rec.events) != 3 {
		t.Fatalf("events = %+v, want 3 (Connection, Read, Write)", rec.events)
	}
	if rec.events[1].Kind != domain.EventRead {
		t.Errorf("events[1].Kind = %v, want EventRead", rec.events[1].Kind)
	}
	if rec.events[2].Kind != domain.EventWrite {
		t.Errorf("events[2].Kind = %v, want EventWrite", rec.events[2].Kind)
	}
}

// --- begin_handshake SOCKS4 with a domain name, via a stub resolver ------

type stubResolver struct {
	ip  [4]byte
	err error
}

func (s stubResolver) ResolveIPv4(host string) ([4]byte, error) { return s.ip, s.err }

func TestSOCKS4DomainNameUsesResolver(t *testing.T) {
	ft := handshaketest.New()
	rec := &eventRecorder{}
	log, _ := testLogger()
	d := New(ft, rec.sink(), log, stubResolver{ip: [4]byte{9, 9, 9, 9}})

	if err := d.BeginHandshake(domain.Params{Type: domain.ProxySOCKS4, Host: "example.com", Port: 80}); err != nil {
		t.Fatalf("BeginHandshake: %v", err)
	}
	d.OnWritable()
	want := []byte{0x04, 0x01, 0x00, 0x50, 9, 9, 9, 9, 0x00}
	if !bytes.Equal(ft.Written, want) {
		t.Fatalf("request = % x, want % x", ft.Written, want)
	}
}

func TestSOCKS4IPv6Rejected(t *testing.T) {
	d, _, _, _ := newDriver()
	err := d.BeginHandshake(domain.Params{Type: domain.ProxySOCKS4, Host: "::1", Port: 80})
	if err == nil || err.Code != syscall.EINVAL {
		t.Fatalf("SOCKS4 to an IPv6 target = %v, want EINVAL", err)
	}
}

// --- detach severs transport event routing --------------------------------

func TestDetachStopsDelivery(t *testing.T) {
	d, ft, rec, _ := newDriver()
	if err := d.BeginHandshake(domain.Params{Type: domain.ProxyHTTP, Host: "h", Port: 80}); err != nil {
		t.Fatalf("BeginHandshake: %v", err)
	}
	d.OnWritable()
	d.Detach()

	ft.PushReadable([]byte("HTTP/1.1 200 OK\r\n\r\n"))
	if len(rec.events) != 0 {
		t.Fatalf("events after Detach = %+v, want none", rec.events)
	}
}
