package rule

import "net"

// Metadata describes the target of an outbound connection.
type Metadata struct {
	// Host is set when the target is a hostname.
	Host string
	// IP is set when the target is an address literal or once Host has been
	// resolved.
	IP   net.IP
	Port int
}

// Rule maps targets to egress names.
type Rule interface {
	Name() string
	Match(m *Metadata) (string, bool)
	Insert(pattern, egress string) error
	Empty() bool
}
