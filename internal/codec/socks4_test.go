package codec

import (
	"bytes"
	"testing"
)

func TestSocks4Request(t *testing.T) {
	got := Socks4Request([4]byte{1, 2, 3, 4}, 80)
	want := []byte{0x04, 0x01, 0x00, 0x50, 0x01, 0x02, 0x03, 0x04, 0x00}
	if !bytes.Equal(got, want) {
		t.Fatalf("Socks4Request = % x, want % x", got, want)
	}
}

func TestSocks4HandleReplySuccess(t *testing.T) {
	ok, err := Socks4HandleReply([]byte{0x00, 0x5A, 0, 0, 0, 0, 0, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true on status 0x5A")
	}
}

func TestSocks4HandleReplyRejected(t *testing.T) {
	ok, err := Socks4HandleReply([]byte{0x00, 0x5B, 0, 0, 0, 0, 0, 0})
	if ok {
		t.Fatal("expected ok=false on rejection")
	}
	if err == nil {
		t.Fatal("expected an error on rejection")
	}
}
