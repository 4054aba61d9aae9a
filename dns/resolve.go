package dns

import (
	"context"
	"net"
	"time"

	"github.com/miekg/dns"
)

// Resolver answers A and AAAA queries from its upstreams, or from the system
// resolver when it has none.
type Resolver struct {
	Upstream []string
	Timeout  time.Duration
}

func NewResolver(d *DNS) *Resolver {
	r := &Resolver{
		Upstream: append([]string(nil), d.Upstream...),
		Timeout:  time.Duration(d.Timeout) * time.Millisecond,
	}
	if r.Timeout <= 0 {
		r.Timeout = defaultTimeout
	}
	return r
}

func (r *Resolver) LookupIPv4(ctx context.Context, domain string) ([]net.IP, error) {
	return r.lookup(ctx, domain, dns.TypeA)
}

func (r *Resolver) LookupIPv6(ctx context.Context, domain string) ([]net.IP, error) {
	return r.lookup(ctx, domain, dns.TypeAAAA)
}

// LookupIP returns one address of host, preferring IPv4. Literal addresses
// are returned as they are.
func (r *Resolver) LookupIP(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}
	ips, err := r.LookupIPv4(ctx, host)
	if err == nil && len(ips) > 0 {
		return ips[0], nil
	}
	ips, err6 := r.LookupIPv6(ctx, host)
	if err6 == nil && len(ips) > 0 {
		return ips[0], nil
	}
	if err == nil {
		err = err6
	}
	if err == nil {
		err = ErrNoAnswer
	}
	return nil, err
}

func (r *Resolver) lookup(ctx context.Context, domain string, qtype uint16) ([]net.IP, error) {
	out := make([]net.IP, 0)
	if len(r.Upstream) == 0 {
		network := "ip4"
		if qtype == dns.TypeAAAA {
			network = "ip6"
		}
		ips, err := net.DefaultResolver.LookupIP(ctx, network, domain)
		if err != nil {
			return nil, err
		}
		return append(out, ips...), nil
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), qtype)
	rs, err := asyncQuery(ctx, msg, r.Upstream, r.Timeout)
	if err != nil {
		return nil, err
	}
	for _, v := range rs.Answer {
		switch a := v.(type) {
		case *dns.A:
			out = append(out, a.A)
		case *dns.AAAA:
			out = append(out, a.AAAA)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoAnswer
	}
	return out, nil
}
