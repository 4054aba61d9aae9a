package egress

import (
	"net"

	"github.com/shadowsocks/go-shadowsocks2/socks"
)

const (
	_ int32 = iota
	Ready
	Running
	Closed
)

// Egress is the node that local connections flow out of
type Egress interface {
	Type() EgressType
	Name() string
	// ProcessStream relays c to target and returns once both are closed.
	ProcessStream(c net.Conn, target socks.Addr)
	Close() <-chan struct{}
}

type EgressType string

const (
	TypeTunnel EgressType = "TUNNEL"
	TypeDirect EgressType = "DIRECT"
	TypeReject EgressType = "REJECT"
)
