package handshake

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/shadowsocks/go-shadowsocks2/socks"
)

func TestFresh(t *testing.T) {
	tests := []struct {
		ts   int64
		want bool
	}{
		{90, true},
		{89, false},
		{100, true},
		{110, true},
		{111, false},
		{115, false},
		{85, false},
	}
	for _, tt := range tests {
		if got := Fresh(tt.ts, 100, 5); got != tt.want {
			t.Errorf("Fresh(%d, 100, 5) = %v, want %v", tt.ts, got, tt.want)
		}
	}
	if Fresh(100, 100, 0) {
		t.Errorf("zero interval must never be fresh")
	}
}

func TestTimestampAligned(t *testing.T) {
	now := time.Unix(1_700_000_017, 0)
	ts := Timestamp(now, 30)
	if ts%30 != 0 || ts > now.Unix() || now.Unix()-ts >= 30 {
		t.Fatalf("timestamp %d not aligned below %d", ts, now.Unix())
	}
	if !Fresh(ts, now.Unix(), 30) {
		t.Fatalf("own timestamp should be fresh")
	}
}

func TestParseIPv4(t *testing.T) {
	b := []byte{1, 93, 184, 216, 34, 0x01, 0xBB}
	if _, _, err := ParseAddr(b[:6]); !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("6 bytes: expected ErrShortBuffer, got %v", err)
	}
	addr, n, err := ParseAddr(b)
	if err != nil {
		t.Fatalf("ParseAddr: %v", err)
	}
	if addr.Host != "93.184.216.34" || addr.Port != 443 || n != 7 {
		t.Fatalf("got %v (%d bytes)", addr, n)
	}
}

func TestParseHostname(t *testing.T) {
	b := append([]byte{3, 9}, "example.co"[:9]...)
	b = append(b, 0x00, 0x50)
	for i := 0; i < 13; i++ {
		if _, _, err := ParseAddr(b[:i]); !errors.Is(err, ErrShortBuffer) {
			t.Fatalf("%d bytes: expected ErrShortBuffer, got %v", i, err)
		}
	}
	trailing := append(append([]byte(nil), b...), "GET /"...)
	addr, n, err := ParseAddr(trailing)
	if err != nil {
		t.Fatalf("ParseAddr: %v", err)
	}
	if addr.Host != "example.c" || addr.Port != 80 || n != 13 {
		t.Fatalf("got %v (%d bytes)", addr, n)
	}
	if addr.String() != "example.c:80" {
		t.Fatalf("String() = %v", addr.String())
	}
}

func TestParseUnsupportedType(t *testing.T) {
	for _, atyp := range []byte{0, 2, socks.AtypIPv6, 0xff} {
		if _, _, err := ParseAddr([]byte{atyp, 1, 2, 3, 4, 5, 6, 7, 8}); !errors.Is(err, ErrAddrType) {
			t.Fatalf("atyp %d: expected ErrAddrType, got %v", atyp, err)
		}
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tests := []struct {
		target string
		host   string
		port   int
	}{
		{"93.184.216.34:443", "93.184.216.34", 443},
		{"example.com:80", "example.com", 80},
		{"[2001:db8::1]:8080", "2001:db8::1", 8080},
	}
	for _, tt := range tests {
		h, err := Header(now, 30, socks.ParseAddr(tt.target))
		if err != nil {
			t.Fatalf("Header(%v): %v", tt.target, err)
		}
		if ts := ParseTimestamp(h); ts != Timestamp(now, 30) {
			t.Fatalf("timestamp %d, want %d", ts, Timestamp(now, 30))
		}
		addr, n, err := ParseAddr(h[HeaderSize:])
		if err != nil {
			t.Fatalf("ParseAddr(%v): %v", tt.target, err)
		}
		if addr.Host != tt.host || addr.Port != tt.port || n != len(h)-HeaderSize {
			t.Fatalf("%v: got %v (%d bytes)", tt.target, addr, n)
		}
	}
}

func TestAppendAddrLongHost(t *testing.T) {
	host := string(bytes.Repeat([]byte("a"), 256))
	if _, err := AppendAddr(nil, host, 80); !errors.Is(err, ErrHostTooLong) {
		t.Fatalf("expected ErrHostTooLong, got %v", err)
	}
}
