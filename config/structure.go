package config

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/intxff/sstunnel/dns"
	"github.com/intxff/sstunnel/log"
	"github.com/intxff/sstunnel/util"
	"gopkg.in/yaml.v3"
)

type Mode string

const (
	ModeServer Mode = "SERVER"
	ModeLocal  Mode = "LOCAL"
)

// ConnectionConfig is what both ends of a tunnel need to agree on, plus the
// ports they serve on. It is not modified after validation.
type ConnectionConfig struct {
	Password   string
	Method     string
	Server     string
	ServerPort int
	LocalPort  int
	// Timeout bounds the client's connect to the server, in milliseconds.
	Timeout int
	IVLen   int
	// Interval is the handshake timestamp quantum in seconds.
	Interval int64
}

func (c *ConnectionConfig) ServerAddr() string {
	return net.JoinHostPort(c.Server, strconv.Itoa(c.ServerPort))
}

func (c *ConnectionConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// config structure to unmarshal yaml
type Config struct {
	Mode         Mode   `yaml:"mode"`
	Server       string `yaml:"server"`
	ServerPort   int    `yaml:"server_port"`
	LocalAddress string `yaml:"local_address"`
	LocalPort    int    `yaml:"local_port"`
	Password     string `yaml:"password"`
	Method       string `yaml:"method"`
	Timeout      int    `yaml:"timeout"`
	IVLen        int    `yaml:"iv_len"`
	Interval     int64  `yaml:"interval"`
	IdleTimeout  int    `yaml:"idle_timeout"`
	// HandshakeTimeout bounds the SOCKS5 negotiation in local mode, in
	// milliseconds.
	HandshakeTimeout int      `yaml:"handshake_timeout"`
	Interface        string   `yaml:"interface"`
	DNS              dns.DNS  `yaml:"dns"`
	MMDB             string   `yaml:"mmdb"`
	Rule             []string `yaml:"rule"`
	Log              log.Log  `yaml:"log"`
	Debug            string   `yaml:"debug"`
	Path             string   `yaml:"-"`
	Dir              string   `yaml:"-"`
}

func Default() Config {
	return Config{
		Server:           "127.0.0.1",
		ServerPort:       8388,
		LocalAddress:     "127.0.0.1",
		LocalPort:        1080,
		Method:           "rc4-md5",
		Timeout:          5000,
		IVLen:            32,
		Interval:         30,
		HandshakeTimeout: 10000,
		Log:              log.Log{Level: "info"},
	}
}

func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	temp := make(map[string]interface{})
	if err := value.Decode(&temp); err != nil {
		return err
	}

	var (
		mode     string
		password string
		attrMust = map[string]any{
			"mode":     &mode,
			"password": &password,
		}
	)
	if err := util.MustHave(temp, attrMust); err != nil {
		return err
	}

	// plain has no UnmarshalYAML, so Decode fills it field by field over
	// the defaults
	type plain Config
	p := plain(Default())
	if err := value.Decode(&p); err != nil {
		return err
	}
	*c = Config(p)
	c.Mode = Mode(strings.ToUpper(mode))
	return nil
}

func (c *Config) ListenAddr() string {
	if c.Mode == ModeServer {
		return net.JoinHostPort(c.Server, strconv.Itoa(c.ServerPort))
	}
	return net.JoinHostPort(c.LocalAddress, strconv.Itoa(c.LocalPort))
}

func (c *Config) Connection() *ConnectionConfig {
	return &ConnectionConfig{
		Password:   c.Password,
		Method:     c.Method,
		Server:     c.Server,
		ServerPort: c.ServerPort,
		LocalPort:  c.LocalPort,
		Timeout:    c.Timeout,
		IVLen:      c.IVLen,
		Interval:   c.Interval,
	}
}
