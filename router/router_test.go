package router

import (
	"context"
	"testing"
)

func TestDispatch(t *testing.T) {
	r := NewDefaultRouter(nil)
	r.Prior = []string{"DOMAIN", "IP-CIDR", "DST-PORT", "GEOIP"}

	for _, v := range [][3]string{
		{"DOMAIN", "+.google.com", "TUNNEL"},
		{"DOMAIN", "intranet.corp", "DIRECT"},
		{"IP-CIDR", "10.0.0.0/8", "DIRECT"},
		{"DST-PORT", "25", "REJECT"},
		{"DEFAULT", "", "DIRECT"},
	} {
		if err := r.Insert(v[0], v[1], v[2]); err != nil {
			t.Fatalf("Insert %v: %v", v, err)
		}
	}

	cases := []struct {
		host string
		port int
		want string
	}{
		{"www.google.com", 443, "TUNNEL"},
		{"intranet.corp", 80, "DIRECT"},
		{"10.1.2.3", 22, "DIRECT"},
		{"mail.example.com", 25, "REJECT"},
		{"example.com", 443, "DIRECT"},
		{"8.8.8.8", 53, "DIRECT"},
	}
	for _, c := range cases {
		if got := r.Dispatch(context.Background(), c.host, c.port); got != c.want {
			t.Fatalf("Dispatch(%v:%v) = %v, want %v", c.host, c.port, got, c.want)
		}
	}
}

func TestDefaultIsTunnel(t *testing.T) {
	r := NewDefaultRouter(nil)
	if got := r.Dispatch(context.Background(), "example.com", 80); got != "TUNNEL" {
		t.Fatalf("got %v", got)
	}
}

func TestInsertRejects(t *testing.T) {
	r := NewDefaultRouter(nil)
	if err := r.Insert("GEOIP", "CN", "DIRECT"); err == nil {
		t.Fatalf("GEOIP without database accepted")
	}
	if err := r.Insert("PROCESS", "curl", "DIRECT"); err == nil {
		t.Fatalf("unknown rule accepted")
	}
	if err := r.Insert("IP-CIDR", "10.0.0.0", "DIRECT"); err == nil {
		t.Fatalf("bad cidr accepted")
	}
}
