package rule

import (
	"net"
)

var _ Rule = (*IPCIDR)(nil)

type cidrEntry struct {
	net    *net.IPNet
	egress string
}

// IPCIDR matches target addresses against networks in insertion order.
type IPCIDR []cidrEntry

func NewRuleIPCIDR() *IPCIDR {
	return &IPCIDR{}
}

func (r *IPCIDR) Name() string {
	return "IP-CIDR"
}

func (r *IPCIDR) Match(m *Metadata) (string, bool) {
	if m.IP == nil {
		return "", false
	}
	for _, e := range *r {
		if e.net.Contains(m.IP) {
			return e.egress, true
		}
	}
	return "", false
}

func (r *IPCIDR) Insert(pattern, egress string) error {
	_, n, err := net.ParseCIDR(pattern)
	if err != nil {
		return err
	}
	*r = append(*r, cidrEntry{net: n, egress: egress})
	return nil
}

func (r *IPCIDR) Empty() bool {
	return len(*r) == 0
}
