// Provide listening and dialing of the tcp connections tunnels run over
package transport

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/intxff/sstunnel/component/iface"
	"github.com/intxff/sstunnel/dns"
)

// Dialer opens outbound streams. Hostnames go through Resolver when it is
// set; Interface, when set, pins the source address to that interface.
type Dialer struct {
	Resolver  *dns.Resolver
	Timeout   time.Duration
	Interface string
}

func (d *Dialer) DialStream(ctx context.Context, host string, port int) (net.Conn, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	if d.Resolver != nil && net.ParseIP(host) == nil {
		ip, err := d.Resolver.LookupIP(ctx, host)
		if err != nil {
			return nil, err
		}
		host = ip.String()
	}

	nd := &net.Dialer{}
	if d.Interface != "" {
		lAddr, err := d.localAddr(host)
		if err != nil {
			return nil, err
		}
		nd.LocalAddr = lAddr
	}
	return nd.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
}

func (d *Dialer) localAddr(host string) (net.Addr, error) {
	ip := net.ParseIP(host)
	if ip != nil && ip.To4() == nil {
		lIP, err := iface.GetIPv6ByName(d.Interface)
		if err != nil {
			return nil, err
		}
		return &net.TCPAddr{IP: lIP}, nil
	}
	lIP, err := iface.GetIPv4ByName(d.Interface)
	if err != nil {
		return nil, err
	}
	return &net.TCPAddr{IP: lIP}, nil
}
