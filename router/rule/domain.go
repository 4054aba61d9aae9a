package rule

import (
	"github.com/intxff/sstunnel/util/trie"
)

var _ Rule = (*Domain)(nil)

type Domain struct {
	*trie.Trie[string]
}

func NewRuleDomain() *Domain {
	return &Domain{Trie: trie.New[string]()}
}

func (d *Domain) Name() string {
	return "DOMAIN"
}

func (d *Domain) Match(m *Metadata) (string, bool) {
	if m.Host == "" {
		return "", false
	}
	return d.Search(m.Host)
}

func (d *Domain) Insert(domain, egress string) error {
	return d.Trie.Insert(domain, egress)
}
