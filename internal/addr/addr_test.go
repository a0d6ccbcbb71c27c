package addr

import (
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		host string
		want Kind
	}{
		{"1.2.3.4", KindIPv4},
		{"::1", KindIPv6},
		{"2001:db8::1", KindIPv6},
		{"example.com", KindDomain},
		{"", KindDomain},
	}
	for _, c := range cases {
		if got := Classify(c.host); got != c.want {
			t.Errorf("Classify(%q) = %v, want %v", c.host, got, c.want)
		}
	}
}

func TestEncodeIPv4(t *testing.T) {
	got, err := EncodeIPv4("1.2.3.4")
	if err != nil {
		t.Fatal(err)
	}
	want := [4]byte{1, 2, 3, 4}
	if got != want {
		t.Errorf("EncodeIPv4 = %v, want %v", got, want)
	}

	if _, err := EncodeIPv4("::1"); err == nil {
		t.Error("EncodeIPv4(\"::1\") should fail")
	}
	if _, err := EncodeIPv4("not-an-ip"); err == nil {
		t.Error("EncodeIPv4 on domain name should fail")
	}
}

func TestEncodeIPv6(t *testing.T) {
	got, err := EncodeIPv6("::1")
	if err != nil {
		t.Fatal(err)
	}
	want := [16]byte{}
	want[15] = 1
	if got != want {
		t.Errorf("EncodeIPv6(::1) = %v, want %v", got, want)
	}

	if _, err := EncodeIPv6("1.2.3.4"); err == nil {
		t.Error("EncodeIPv6 on an IPv4 literal should fail")
	}
}

func TestTruncatedDomain(t *testing.T) {
	short := "example.com"
	if got := TruncatedDomain(short); got != short {
		t.Errorf("TruncatedDomain(short) = %q", got)
	}

	long := strings.Repeat("a", 300)
	got := TruncatedDomain(long)
	if len(got) != 255 {
		t.Errorf("len(TruncatedDomain(long)) = %d, want 255", len(got))
	}
	if got != long[:255] {
		t.Error("TruncatedDomain did not truncate to the prefix")
	}
}
