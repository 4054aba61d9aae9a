package router

import (
	"context"
	"fmt"
	"net"

	"github.com/intxff/sstunnel/dns"
	"github.com/intxff/sstunnel/log"
	"github.com/intxff/sstunnel/router/rule"
	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"
)

// Router picks the egress a target is sent through.
type Router interface {
	Dispatch(ctx context.Context, host string, port int) string
}

var _ Router = (*DefaultRouter)(nil)

const defaultEgress = "TUNNEL"

// rule types whose match needs the target address rather than its name
var ipRules = map[string]bool{
	"IP-CIDR": true,
	"GEOIP":   true,
}

func IsRuleType(s string) bool {
	switch s {
	case "DOMAIN", "IP-CIDR", "GEOIP", "DST-PORT", "DEFAULT":
		return true
	}
	return false
}

type DefaultRouter struct {
	Prior []string
	Rules map[string]rule.Rule
	// Resolver, when set, resolves hostname targets before IP based rules.
	Resolver *dns.Resolver
}

func NewDefaultRouter(resolver *dns.Resolver) *DefaultRouter {
	return &DefaultRouter{
		Prior:    make([]string, 0, 4),
		Rules:    map[string]rule.Rule{"DEFAULT": rule.NewRuleDefault(defaultEgress)},
		Resolver: resolver,
	}
}

func (d *DefaultRouter) Dispatch(ctx context.Context, host string, port int) string {
	m := &rule.Metadata{Port: port}
	if ip := net.ParseIP(host); ip != nil {
		m.IP = ip
	} else {
		m.Host = host
	}

	resolved := m.IP != nil
	for _, name := range d.Prior {
		entry, exist := d.Rules[name]
		if !exist || entry.Empty() {
			continue
		}
		if ipRules[name] && !resolved {
			resolved = true
			d.resolve(ctx, m)
		}
		if egress, ok := entry.Match(m); ok {
			log.Debug("[Router] rule matched",
				zap.String("target", host),
				zap.String("rule", name),
				zap.String("egress", egress))
			return egress
		}
	}

	egress, _ := d.Rules["DEFAULT"].Match(m)
	return egress
}

func (d *DefaultRouter) resolve(ctx context.Context, m *rule.Metadata) {
	if d.Resolver == nil {
		return
	}
	ip, err := d.Resolver.LookupIP(ctx, m.Host)
	if err != nil {
		log.Debug("[Router] resolve failed", zap.String("host", m.Host), zap.Error(err))
		return
	}
	m.IP = ip
}

// Insert adds pattern → out to the rule of ruleType. GEOIP takes the country
// database as the extra argument.
func (d *DefaultRouter) Insert(ruleType, pattern, out string, others ...any) error {
	r, exist := d.Rules[ruleType]
	if !exist {
		switch ruleType {
		case "DOMAIN":
			r = rule.NewRuleDomain()
		case "IP-CIDR":
			r = rule.NewRuleIPCIDR()
		case "DST-PORT":
			r = rule.NewRuleDstPort()
		case "GEOIP":
			var db *geoip2.Reader
			if len(others) > 0 {
				db, _ = others[0].(*geoip2.Reader)
			}
			if db == nil {
				return fmt.Errorf("GEOIP rule needs a country database")
			}
			r = rule.NewRuleGEOIP(db)
		default:
			return fmt.Errorf("invalid rule %v", ruleType)
		}
		d.Rules[ruleType] = r
	}
	return r.Insert(pattern, out)
}
