package tunnel

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/intxff/sstunnel/component/crypto"
	"github.com/intxff/sstunnel/component/socket"
	"github.com/intxff/sstunnel/component/transport"
	"github.com/intxff/sstunnel/config"
	"github.com/intxff/sstunnel/egress"
	"github.com/intxff/sstunnel/log"
	"github.com/intxff/sstunnel/session"
	"github.com/shadowsocks/go-shadowsocks2/socks"
	"go.uber.org/zap"
)

var _ egress.Egress = (*Tunnel)(nil)

// Tunnel sends connections through the tunnel server of cfg.
type Tunnel struct {
	cfg      *config.ConnectionConfig
	cipher   *crypto.Cipher
	dialer   *transport.Dialer
	sockOpts []socket.Option
	conns    sync.Map
	status   atomic.Int32
}

func NewTunnel(cfg *config.ConnectionConfig, d *transport.Dialer, opts ...socket.Option) (*Tunnel, error) {
	c, err := crypto.Pick(cfg.Method, cfg.Password, cfg.IVLen)
	if err != nil {
		return nil, err
	}
	t := &Tunnel{
		cfg:      cfg,
		cipher:   c,
		dialer:   d,
		sockOpts: opts,
	}
	t.status.Store(egress.Ready)
	return t, nil
}

func (t *Tunnel) Type() egress.EgressType {
	return egress.TypeTunnel
}

func (t *Tunnel) Name() string {
	return string(egress.TypeTunnel)
}

func (t *Tunnel) logString(s string) string {
	return fmt.Sprintf("[Egress] %v: %v", t.Name(), s)
}

func (t *Tunnel) Close() <-chan struct{} {
	defer func() {
		log.Info(t.logString("closed"))
	}()
	t.status.Store(egress.Closed)
	t.conns.Range(func(_, value any) bool {
		value.(*session.Client).Close()
		return true
	})

	ch := make(chan struct{}, 1)
	ch <- struct{}{}
	return ch
}

func (t *Tunnel) ProcessStream(c net.Conn, target socks.Addr) {
	if t.status.Load() == egress.Closed {
		c.Close()
		return
	}
	t.status.Store(egress.Running)

	ctx, cancel := context.WithTimeout(context.Background(), t.cfg.ConnectTimeout())
	rc, err := t.dialer.DialStream(ctx, t.cfg.Server, t.cfg.ServerPort)
	cancel()
	if err != nil {
		log.Error(t.logString("failed to dial server"),
			zap.String("server", t.cfg.ServerAddr()),
			zap.Error(err))
		c.Close()
		return
	}

	local := socket.New(c, t.sockOpts...)
	remote := socket.New(rc, t.sockOpts...)
	cl, err := session.NewClient(local, remote, target, t.cipher, session.WithInterval(t.cfg.Interval))
	if err != nil {
		log.Error(t.logString("failed to start session"),
			zap.String("target", target.String()),
			zap.Error(err))
		local.Close()
		remote.Close()
		return
	}

	key := rc.LocalAddr().String()
	t.conns.Store(key, cl)
	log.Info(t.logString("connected to server"),
		zap.String("local", key),
		zap.String("target", target.String()))

	cl.Start()
	<-cl.Done()
	<-local.Done()
	<-remote.Done()
	t.conns.Delete(key)
	log.Debug(t.logString("connection closed"),
		zap.String("local", key),
		zap.String("target", target.String()))
}
