package dns

import (
	"context"
	"errors"
	"time"

	"github.com/miekg/dns"
)

const defaultTimeout = 2 * time.Second

var ErrNoAnswer = errors.New("dns: no usable answer")

type DNS struct {
	// Upstream servers as host:port. The system resolver is used when empty.
	Upstream []string `yaml:"upstream"`
	// Timeout of one upstream exchange in milliseconds.
	Timeout int `yaml:"timeout"`
}

// asyncQuery sends m to every upstream at once and returns the first
// successful response.
func asyncQuery(ctx context.Context, m *dns.Msg, upstream []string, timeout time.Duration) (*dns.Msg, error) {
	type response struct {
		m *dns.Msg
		e error
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res := make(chan response, len(upstream))
	for _, u := range upstream {
		go func(addr string) {
			c := &dns.Client{Net: "udp", Timeout: timeout}
			r, _, err := c.ExchangeContext(ctx, m, addr)
			if err == nil && r.Rcode != dns.RcodeSuccess {
				err = errors.New("dns: " + dns.RcodeToString[r.Rcode])
			}
			res <- response{r, err}
		}(u)
	}

	var rs response
	for range upstream {
		rs = <-res
		if rs.e == nil {
			return rs.m, nil
		}
	}
	if rs.e == nil {
		rs.e = ErrNoAnswer
	}
	return nil, rs.e
}
