package rule

import (
	"fmt"
	"strconv"
)

var _ Rule = (*DstPort)(nil)

type DstPort map[int]string

func NewRuleDstPort() *DstPort {
	r := make(DstPort)
	return &r
}

func (r *DstPort) Name() string {
	return "DST-PORT"
}

func (r *DstPort) Match(m *Metadata) (string, bool) {
	egress, exist := (*r)[m.Port]
	return egress, exist
}

func (r *DstPort) Insert(pattern, egress string) error {
	port, err := strconv.Atoi(pattern)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port %v", pattern)
	}
	(*r)[port] = egress
	return nil
}

func (r *DstPort) Empty() bool {
	return len(*r) == 0
}
