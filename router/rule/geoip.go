package rule

import (
	"strings"

	"github.com/intxff/sstunnel/component/mmdb"
	"github.com/intxff/sstunnel/log"
	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"
)

var _ Rule = (*GEOIP)(nil)

type GEOIP struct {
	Egress map[string]string
	Mmdb   *geoip2.Reader
}

func NewRuleGEOIP(db *geoip2.Reader) *GEOIP {
	return &GEOIP{
		Egress: make(map[string]string),
		Mmdb:   db,
	}
}

func (g *GEOIP) Name() string {
	return "GEOIP"
}

func (g *GEOIP) Match(m *Metadata) (string, bool) {
	if m.IP == nil || g.Mmdb == nil {
		return "", false
	}
	country, err := mmdb.Country(g.Mmdb, m.IP)
	if err != nil {
		log.Debug("[Router] geoip lookup failed",
			zap.String("ip", m.IP.String()),
			zap.Error(err))
		return "", false
	}
	egress, exist := g.Egress[country]
	return egress, exist
}

func (g *GEOIP) Insert(country, egress string) error {
	g.Egress[strings.ToUpper(country)] = egress
	return nil
}

func (g *GEOIP) Empty() bool {
	return len(g.Egress) == 0
}
