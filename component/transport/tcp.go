package transport

import (
	"context"
	"net"
)

type TransTCP struct {
	net.TCPAddr
	ReuseAddr bool
}

type tcpOptionFunc func(t *TransTCP)

func NewTransTCP(network, addr string, opts ...tcpOptionFunc) (*TransTCP, error) {
	tcpAddr, err := net.ResolveTCPAddr(network, addr)
	if err != nil {
		return nil, err
	}

	t := &TransTCP{
		TCPAddr:   *tcpAddr,
		ReuseAddr: true,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func WithReuseAddr(opt bool) tcpOptionFunc {
	return func(t *TransTCP) {
		t.ReuseAddr = opt
	}
}

func (t *TransTCP) Address() net.Addr {
	return &t.TCPAddr
}

func (t *TransTCP) ListenStream(ctx context.Context) (net.Listener, error) {
	lc := net.ListenConfig{}
	if t.ReuseAddr {
		lc.Control = reuseAddr
	}
	return lc.Listen(ctx, "tcp", t.TCPAddr.String())
}
