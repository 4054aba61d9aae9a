// Package handshake encodes and decodes the header that opens the decrypted
// stream of every tunnel connection:
//
//	+-----------+------+----------+----------+
//	| TIMESTAMP | ATYP | DST.ADDR | DST.PORT |
//	+-----------+------+----------+----------+
//	|     8     |  1   | Variable |    2     |
//	+-----------+------+----------+----------+
//
// TIMESTAMP is a big-endian unix time in seconds, truncated to a multiple of
// the configured interval. ATYP is 1 (IPv4, 4 bytes) or 3 (hostname, one length
// byte then the name).
package handshake

import (
	"encoding/binary"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/shadowsocks/go-shadowsocks2/socks"
)

// HeaderSize is the length of the timestamp that precedes the address.
const HeaderSize = 8

var (
	// ErrShortBuffer means the address is not complete yet. It is not fatal.
	ErrShortBuffer    = errors.New("handshake: need more data")
	ErrAddrType       = errors.New("handshake: unsupported address type")
	ErrStaleTimestamp = errors.New("handshake: stale or misaligned timestamp")
	ErrHostTooLong    = errors.New("handshake: hostname longer than 255 bytes")
)

// Addr is the target of a tunnel connection.
type Addr struct {
	Host string
	Port int
}

func (a Addr) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// Timestamp returns now in unix seconds rounded down to a multiple of interval.
func Timestamp(now time.Time, interval int64) int64 {
	t := now.Unix()
	return t - t%interval
}

func ParseTimestamp(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b[:HeaderSize]))
}

// Fresh reports whether t is aligned to interval and no more than two
// intervals away from now, in either direction.
func Fresh(t, now, interval int64) bool {
	if interval <= 0 || t%interval != 0 {
		return false
	}
	d := now - t
	if d < 0 {
		d = -d
	}
	return d <= 2*interval
}

// ParseAddr decodes the address at the head of b and reports how many bytes
// it occupies. ErrShortBuffer is returned while b is too short for the
// declared type.
func ParseAddr(b []byte) (Addr, int, error) {
	if len(b) < 1 {
		return Addr{}, 0, ErrShortBuffer
	}

	var (
		addr Addr
		cur  int
	)
	switch b[0] {
	case socks.AtypIPv4:
		// atyp(1) + ipv4(4) + port(2)
		if len(b) < 1+net.IPv4len+2 {
			return Addr{}, 0, ErrShortBuffer
		}
		addr.Host = net.IP(b[1 : 1+net.IPv4len]).String()
		cur = 1 + net.IPv4len
	case socks.AtypDomainName:
		if len(b) < 2 {
			return Addr{}, 0, ErrShortBuffer
		}
		// atyp(1) + len(1) + host + port(2)
		l := int(b[1])
		if len(b) < l+4 {
			return Addr{}, 0, ErrShortBuffer
		}
		addr.Host = string(b[2 : 2+l])
		cur = 2 + l
	default:
		return Addr{}, 0, ErrAddrType
	}
	addr.Port = int(binary.BigEndian.Uint16(b[cur : cur+2]))
	return addr, cur + 2, nil
}

// AppendAddr appends the wire form of host:port to b. IPv4 literals use type
// 1; anything else, IPv6 literals included, travels as a type 3 hostname.
func AppendAddr(b []byte, host string, port int) ([]byte, error) {
	if ip := net.ParseIP(host); ip != nil && ip.To4() != nil {
		b = append(b, socks.AtypIPv4)
		b = append(b, ip.To4()...)
	} else {
		if len(host) > 255 {
			return nil, ErrHostTooLong
		}
		b = append(b, socks.AtypDomainName, byte(len(host)))
		b = append(b, host...)
	}
	return binary.BigEndian.AppendUint16(b, uint16(port)), nil
}

// Header builds the plaintext a client sends before any application byte.
func Header(now time.Time, interval int64, target socks.Addr) ([]byte, error) {
	host, portStr, err := net.SplitHostPort(target.String())
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}

	b := make([]byte, HeaderSize, HeaderSize+1+1+len(host)+2)
	binary.BigEndian.PutUint64(b, uint64(Timestamp(now, interval)))
	return AppendAddr(b, host, port)
}
