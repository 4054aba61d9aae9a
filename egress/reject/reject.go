package reject

import (
	"net"

	"github.com/intxff/sstunnel/egress"
	"github.com/intxff/sstunnel/log"
	"github.com/shadowsocks/go-shadowsocks2/socks"
	"go.uber.org/zap"
)

var _ egress.Egress = (*Reject)(nil)

type Reject struct{}

func NewReject() *Reject {
	return &Reject{}
}

func (r *Reject) Type() egress.EgressType {
	return egress.TypeReject
}

func (r *Reject) Name() string {
	return string(egress.TypeReject)
}

func (r *Reject) Close() <-chan struct{} {
	ch := make(chan struct{}, 1)
	ch <- struct{}{}
	return ch
}

func (r *Reject) ProcessStream(c net.Conn, target socks.Addr) {
	log.Info("[Reject] connection rejected", zap.String("target", target.String()))
	c.Close()
}
