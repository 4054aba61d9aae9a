package local

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/intxff/sstunnel/component/transport"
	"github.com/intxff/sstunnel/egress"
	"github.com/intxff/sstunnel/ingress"
	"github.com/intxff/sstunnel/log"
	"github.com/intxff/sstunnel/router"
	"github.com/shadowsocks/go-shadowsocks2/socks"
	"go.uber.org/zap"
)

var _ ingress.Ingress = (*Local)(nil)

const defaultHandshakeTimeout = 10 * time.Second

type localOptionFunc func(l *Local)

// WithHandshakeTimeout bounds the SOCKS5 negotiation of each client.
func WithHandshakeTimeout(d time.Duration) localOptionFunc {
	return func(l *Local) {
		if d > 0 {
			l.handshakeTimeout = d
		}
	}
}

// Local accepts SOCKS5 clients and hands each connection to the egress the
// router picks for its target.
type Local struct {
	name             string
	trans            *transport.TransTCP
	router           router.Router
	egresses         map[string]egress.Egress
	handshakeTimeout time.Duration
	status           atomic.Int32
	conns            sync.Map

	mu       sync.Mutex
	listener net.Listener
}

func NewLocal(name string, t *transport.TransTCP, r router.Router, e map[string]egress.Egress, opts ...localOptionFunc) *Local {
	l := &Local{
		name:             name,
		trans:            t,
		router:           r,
		egresses:         e,
		handshakeTimeout: defaultHandshakeTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.status.Store(ingress.Ready)
	return l
}

func (l *Local) logString(s string) string {
	return fmt.Sprintf("[Ingress] %v: %v", l.name, s)
}

func (l *Local) Type() ingress.IngressType {
	return ingress.TypeLocal
}

func (l *Local) Name() string {
	return l.name
}

func (l *Local) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listener == nil {
		return nil
	}
	return l.listener.Addr()
}

func (l *Local) Close() <-chan struct{} {
	defer func() {
		log.Info(l.logString("closed"))
	}()
	l.status.Store(ingress.Closed)

	l.mu.Lock()
	if l.listener != nil {
		l.listener.Close()
	}
	l.mu.Unlock()

	// connections still negotiating; the rest belong to egresses
	l.conns.Range(func(_, value any) bool {
		value.(net.Conn).Close()
		return true
	})

	ch := make(chan struct{}, 1)
	ch <- struct{}{}
	return ch
}

func (l *Local) Run(ctx context.Context) error {
	ln, err := l.trans.ListenStream(ctx)
	if err != nil {
		return fmt.Errorf("listen %v: %w", l.trans.Address(), err)
	}

	l.mu.Lock()
	if l.status.Load() == ingress.Closed {
		l.mu.Unlock()
		ln.Close()
		return nil
	}
	l.listener = ln
	l.mu.Unlock()
	l.status.Store(ingress.Running)
	log.Info(l.logString("socks5 listening"),
		zap.String("addr", ln.Addr().String()))

	for {
		c, err := ln.Accept()
		if err != nil {
			if l.status.Load() == ingress.Closed {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go l.handle(ctx, c)
	}
}

func (l *Local) handle(ctx context.Context, c net.Conn) {
	key := c.RemoteAddr().String()
	l.conns.Store(key, c)

	c.SetDeadline(time.Now().Add(l.handshakeTimeout))
	target, err := socks.Handshake(c)
	c.SetDeadline(time.Time{})
	l.conns.Delete(key)
	if err != nil {
		if err == socks.InfoUDPAssociate {
			log.Debug(l.logString("udp associate not supported"), zap.String("remote", key))
		} else {
			log.Debug(l.logString("socks handshake failed"),
				zap.String("remote", key),
				zap.Error(err))
		}
		c.Close()
		return
	}

	host, portStr, err := net.SplitHostPort(target.String())
	if err != nil {
		c.Close()
		return
	}
	port, _ := strconv.Atoi(portStr)

	name := l.router.Dispatch(ctx, host, port)
	out, exist := l.egresses[name]
	if !exist {
		log.Error(l.logString("no such egress"),
			zap.String("egress", name),
			zap.String("target", target.String()))
		c.Close()
		return
	}
	log.Info(l.logString("connection dispatched"),
		zap.String("target", target.String()),
		zap.String("egress", out.Name()))
	out.ProcessStream(c, target)
}
