package direct

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/intxff/sstunnel/component/relay"
	"github.com/intxff/sstunnel/component/socket"
	"github.com/intxff/sstunnel/component/transport"
	"github.com/intxff/sstunnel/egress"
	"github.com/intxff/sstunnel/log"
	"github.com/shadowsocks/go-shadowsocks2/socks"
	"go.uber.org/zap"
)

var _ egress.Egress = (*Direct)(nil)

// Direct relays connections to their targets without a tunnel.
type Direct struct {
	dialer   *transport.Dialer
	sockOpts []socket.Option
	conns    sync.Map
}

func NewDirect(d *transport.Dialer, opts ...socket.Option) *Direct {
	return &Direct{
		dialer:   d,
		sockOpts: opts,
	}
}

func (d *Direct) Type() egress.EgressType {
	return egress.TypeDirect
}

func (d *Direct) Name() string {
	return string(egress.TypeDirect)
}

func (d *Direct) Close() <-chan struct{} {
	d.conns.Range(func(_, value any) bool {
		value.(*socket.Conn).Close()
		return true
	})
	ch := make(chan struct{}, 1)
	ch <- struct{}{}
	return ch
}

func (d *Direct) logString(s string) string {
	return fmt.Sprintf("[Direct]: %v", s)
}

func (d *Direct) ProcessStream(c net.Conn, target socks.Addr) {
	host, portStr, err := net.SplitHostPort(target.String())
	if err != nil {
		c.Close()
		return
	}
	port, _ := strconv.Atoi(portStr)

	rc, err := d.dialer.DialStream(context.Background(), host, port)
	if err != nil {
		log.Error(d.logString("failed to dial remote"),
			zap.String("target", target.String()),
			zap.Error(err))
		c.Close()
		return
	}

	a := socket.New(c, d.sockOpts...)
	b := socket.New(rc, d.sockOpts...)
	key := rc.LocalAddr().String()
	d.conns.Store(key, b)
	defer d.conns.Delete(key)

	log.Debug(d.logString("connected"), zap.String("target", target.String()))
	<-Bridge(a, b)
	<-a.Done()
	<-b.Done()
	log.Debug(d.logString("connection closed"), zap.String("target", target.String()))
}

// Bridge relays a and b into each other unchanged and closes both as soon as
// either ends. The returned channel is closed after teardown.
func Bridge(a, b socket.Socket) <-chan struct{} {
	done := make(chan struct{})
	var once sync.Once
	teardown := func(error) {
		once.Do(func() {
			a.Close()
			b.Close()
			close(done)
		})
	}

	relay.Pipe(a, b, relay.Identity, teardown)
	relay.Pipe(b, a, relay.Identity, teardown)
	relay.Finish(a, teardown)
	relay.Finish(b, teardown)
	a.Start()
	b.Start()
	return done
}
