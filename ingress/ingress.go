package ingress

import (
	"context"
	"net"
)

const (
	_ int32 = iota
	Ready
	Running
	Closed
)

// Ingress accepts connections and hands each one to a session or an egress.
type Ingress interface {
	Name() string
	Type() IngressType

	// Run listens and serves until Close is called or the listener fails.
	Run(ctx context.Context) error
	// Addr is the listening address, nil before Run has started listening.
	Addr() net.Addr
	Close() <-chan struct{}
}

type IngressType string

const (
	// TypeServer terminates tunnels from local instances.
	TypeServer IngressType = "SERVER"
	// TypeLocal accepts SOCKS5 clients and routes them to egresses.
	TypeLocal IngressType = "LOCAL"
)
