package dns

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
)

func startServer(t *testing.T, answers map[string]string) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}

	mux := dns.NewServeMux()
	mux.HandleFunc(".", func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		q := r.Question[0]
		if ip, ok := answers[q.Name]; ok && q.Qtype == dns.TypeA {
			m.Answer = append(m.Answer, &dns.A{
				Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
				A:   net.ParseIP(ip).To4(),
			})
		} else if !ok {
			m.Rcode = dns.RcodeNameError
		}
		w.WriteMsg(m)
	})

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: mux, NotifyStartedFunc: func() { close(started) }}
	go srv.ActivateAndServe()
	t.Cleanup(func() { srv.Shutdown() })
	<-started
	return pc.LocalAddr().String()
}

func TestLookupIPv4Upstream(t *testing.T) {
	addr := startServer(t, map[string]string{"example.test.": "10.1.2.3"})
	r := NewResolver(&DNS{Upstream: []string{addr}, Timeout: 1000})

	ips, err := r.LookupIPv4(context.Background(), "example.test")
	if err != nil {
		t.Fatalf("LookupIPv4: %v", err)
	}
	if len(ips) != 1 || !ips[0].Equal(net.ParseIP("10.1.2.3")) {
		t.Fatalf("unexpected answer %v", ips)
	}

	ip, err := r.LookupIP(context.Background(), "example.test")
	if err != nil || !ip.Equal(net.ParseIP("10.1.2.3")) {
		t.Fatalf("LookupIP = %v, %v", ip, err)
	}
}

func TestLookupMissing(t *testing.T) {
	addr := startServer(t, nil)
	r := NewResolver(&DNS{Upstream: []string{addr}, Timeout: 1000})

	if _, err := r.LookupIPv4(context.Background(), "nothing.test"); err == nil {
		t.Fatalf("expected an error for NXDOMAIN")
	}
}

func TestLookupLiteral(t *testing.T) {
	r := &Resolver{Timeout: time.Second}
	ip, err := r.LookupIP(context.Background(), "192.0.2.1")
	if err != nil || !ip.Equal(net.ParseIP("192.0.2.1")) {
		t.Fatalf("LookupIP = %v, %v", ip, err)
	}
}
