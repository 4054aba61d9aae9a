package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/intxff/sstunnel/component/crypto"
	"github.com/intxff/sstunnel/component/mmdb"
	"github.com/intxff/sstunnel/dns"
	"github.com/intxff/sstunnel/egress"
	"github.com/intxff/sstunnel/log"
	"github.com/intxff/sstunnel/router"
	"github.com/intxff/sstunnel/util"
	"github.com/oschwald/geoip2-golang"
	"gopkg.in/yaml.v3"
)

const defaultMMDB = "Country.mmdb"

type ErrRule struct {
	Rule   string
	Reason string
}

func (e ErrRule) Error() string {
	return fmt.Sprintf("config: invalid rule '%v': %v", e.Rule, e.Reason)
}

func (e ErrRule) Is(err error) bool {
	t, ok := err.(ErrRule)
	if !ok {
		return false
	}
	return t.Rule == e.Rule
}

// parse raw config to get binary marshaled structure
func ParseRawConfig(path string) (*Config, error) {
	config := Config{}
	path, err := util.GetAbsPath(path)
	if err != nil {
		return nil, err
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err = yaml.Unmarshal(buf, &config); err != nil {
		return nil, err
	}
	config.Path = path
	config.Dir = filepath.Dir(path)

	if config.Log.Path != "" {
		if config.Log.Path, err = util.GetAbsPath(config.Log.Path); err != nil {
			return nil, err
		}
	}
	if config.MMDB == "" {
		config.MMDB = filepath.Join(config.Dir, defaultMMDB)
	} else if config.MMDB, err = util.GetAbsPath(config.MMDB); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects a configuration the process must not start with.
func (c *Config) Validate() error {
	if c.Mode != ModeServer && c.Mode != ModeLocal {
		return util.ErrInvalid{Attr: "mode"}
	}
	if _, err := crypto.Pick(c.Method, c.Password, c.IVLen); err != nil {
		return err
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return util.ErrInvalid{Attr: "server_port"}
	}
	if c.LocalPort <= 0 || c.LocalPort > 65535 {
		return util.ErrInvalid{Attr: "local_port"}
	}
	if c.Timeout <= 0 {
		return util.ErrInvalid{Attr: "timeout"}
	}
	if c.Interval <= 0 {
		return util.ErrInvalid{Attr: "interval"}
	}
	if c.IdleTimeout < 0 {
		return util.ErrInvalid{Attr: "idle_timeout"}
	}
	if c.HandshakeTimeout < 0 {
		return util.ErrInvalid{Attr: "handshake_timeout"}
	}
	if c.Server == "" {
		return util.ErrLost{Attr: "server"}
	}
	if c.Mode == ModeLocal {
		for _, line := range c.Rule {
			if _, _, _, err := parseRule(line); err != nil {
				return err
			}
		}
	}
	return nil
}

// parseRule splits "TYPE,PATTERN,EGRESS", "DEFAULT,EGRESS" and
// "PRIOR,TYPE,..." lines. For PRIOR the pattern holds the comma joined types.
func parseRule(line string) (ruleType, pattern, out string, err error) {
	entry := strings.Split(line, ",")
	for i := range entry {
		entry[i] = strings.TrimSpace(entry[i])
	}
	if len(entry) < 2 {
		return "", "", "", ErrRule{Rule: line, Reason: "too few fields"}
	}

	ruleType = strings.ToUpper(entry[0])
	switch ruleType {
	case "PRIOR":
		for _, p := range entry[1:] {
			if !router.IsRuleType(strings.ToUpper(p)) {
				return "", "", "", ErrRule{Rule: line, Reason: "unknown rule type " + p}
			}
		}
		return ruleType, strings.ToUpper(strings.Join(entry[1:], ",")), "", nil
	case "DEFAULT":
		if len(entry) != 2 {
			return "", "", "", ErrRule{Rule: line, Reason: "want DEFAULT,EGRESS"}
		}
		out = strings.ToUpper(entry[1])
	default:
		if !router.IsRuleType(ruleType) {
			return "", "", "", ErrRule{Rule: line, Reason: "unknown rule type"}
		}
		if len(entry) != 3 {
			return "", "", "", ErrRule{Rule: line, Reason: "want TYPE,PATTERN,EGRESS"}
		}
		pattern, out = entry[1], strings.ToUpper(entry[2])
	}

	switch egress.EgressType(out) {
	case egress.TypeTunnel, egress.TypeDirect, egress.TypeReject:
	default:
		return "", "", "", ErrRule{Rule: line, Reason: "unknown egress " + out}
	}
	return ruleType, pattern, out, nil
}

// parse router
func (c *Config) ParseRouter(resolver *dns.Resolver) (*router.DefaultRouter, error) {
	r := router.NewDefaultRouter(resolver)

	var db *geoip2.Reader
	for _, line := range c.Rule {
		ruleType, pattern, out, err := parseRule(line)
		if err != nil {
			return nil, err
		}

		switch ruleType {
		case "PRIOR":
			r.Prior = append(r.Prior, strings.Split(pattern, ",")...)
		case "GEOIP":
			if db == nil {
				if db, err = mmdb.Load(c.MMDB); err != nil {
					return nil, err
				}
			}
			err = r.Insert(ruleType, pattern, out, db)
		default:
			err = r.Insert(ruleType, pattern, out)
		}
		if err != nil {
			return nil, err
		}
	}

	// check prior,if not set, set to default sort
	if len(r.Prior) == 0 {
		log.Info("PRIOR not set, use default: DOMAIN IP-CIDR GEOIP")
		r.Prior = append(r.Prior, "DOMAIN", "IP-CIDR", "GEOIP")
	}

	return r, nil
}

// parse log
func (c *Config) ParseLog() *log.Log {
	return &c.Log
}
