package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os/signal"
	"syscall"
	"time"

	"github.com/intxff/sstunnel/component/ivcache"
	"github.com/intxff/sstunnel/component/socket"
	"github.com/intxff/sstunnel/component/transport"
	"github.com/intxff/sstunnel/config"
	"github.com/intxff/sstunnel/dns"
	"github.com/intxff/sstunnel/egress"
	"github.com/intxff/sstunnel/egress/direct"
	"github.com/intxff/sstunnel/egress/reject"
	"github.com/intxff/sstunnel/egress/tunnel"
	"github.com/intxff/sstunnel/ingress"
	"github.com/intxff/sstunnel/ingress/local"
	"github.com/intxff/sstunnel/ingress/server"
	"github.com/intxff/sstunnel/log"
	"github.com/intxff/sstunnel/session"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	_version = 0.1
)

var (
	path    string
	version bool
	test    bool
)

func init() {
	flag.StringVar(&path, "c", "./config.yaml", "path of yaml configuration file")
	flag.BoolVar(&version, "v", false, "version")
	flag.BoolVar(&test, "t", false, "test config file")
	flag.Parse()
}

func main() {
	if version {
		fmt.Printf("sstunnel: %v\n", _version)
		return
	}

	// parse config
	cfg, err := config.ParseRawConfig(path)
	if err != nil {
		log.Fatal("[Config] failed to unmarshal config", zap.Error(err))
	}
	if err = cfg.Validate(); err != nil {
		log.Fatal("[Config] invalid config", zap.Error(err))
	}
	if err = log.UpdateLogger(cfg.ParseLog()); err != nil {
		log.Fatal("[Log] failed to update logger", zap.Error(err))
	}
	defer log.CloseLogger()

	in, egresses, err := build(cfg)
	if err != nil {
		log.Fatal("[Init] failed to build", zap.Error(err))
	}
	if test {
		log.Info("[Config] config ok", zap.String("path", cfg.Path))
		return
	}

	Run(cfg, in, egresses)
}

func build(cfg *config.Config) (ingress.Ingress, []egress.Egress, error) {
	resolver := dns.NewResolver(&cfg.DNS)
	conn := cfg.Connection()
	dialer := &transport.Dialer{
		Resolver:  resolver,
		Timeout:   conn.ConnectTimeout(),
		Interface: cfg.Interface,
	}

	var sockOpts []socket.Option
	if cfg.IdleTimeout > 0 {
		sockOpts = append(sockOpts, socket.WithIdleTimeout(time.Duration(cfg.IdleTimeout)*time.Second))
	}

	trans, err := transport.NewTransTCP("tcp", cfg.ListenAddr(), transport.WithReuseAddr(true))
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Mode {
	case config.ModeServer:
		connector := session.ConnectorFunc(func(ctx context.Context, host string, port int) (socket.Socket, error) {
			c, err := dialer.DialStream(ctx, host, port)
			if err != nil {
				return nil, err
			}
			return socket.New(c, sockOpts...), nil
		})
		acceptor, err := session.NewAcceptor(conn, ivcache.New(ivcache.DefaultCapacity), connector)
		if err != nil {
			return nil, nil, err
		}
		return server.NewServer("server", trans, acceptor, sockOpts...), nil, nil

	case config.ModeLocal:
		r, err := cfg.ParseRouter(resolver)
		if err != nil {
			return nil, nil, err
		}
		tun, err := tunnel.NewTunnel(conn, dialer, sockOpts...)
		if err != nil {
			return nil, nil, err
		}
		list := []egress.Egress{tun, direct.NewDirect(dialer, sockOpts...), reject.NewReject()}
		egresses := make(map[string]egress.Egress, len(list))
		for _, e := range list {
			egresses[e.Name()] = e
		}
		return local.NewLocal("local", trans, r, egresses,
			local.WithHandshakeTimeout(time.Duration(cfg.HandshakeTimeout)*time.Millisecond)), list, nil
	}
	return nil, nil, fmt.Errorf("unknown mode %v", cfg.Mode)
}

func Run(cfg *config.Config, in ingress.Ingress, egresses []egress.Egress) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return in.Run(ctx)
	})

	var debug *http.Server
	if cfg.Debug != "" {
		debug = &http.Server{Addr: cfg.Debug}
		g.Go(func() error {
			log.Info("[Debug] pprof listening", zap.String("addr", cfg.Debug))
			if err := debug.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	<-ctx.Done()
	log.Info("[EXIT] Closing")
	//close all
	closeall := func() <-chan struct{} {
		ch := make(chan struct{}, 1)
		go func() {
			<-in.Close()
			for _, e := range egresses {
				<-e.Close()
			}
			if debug != nil {
				debug.Close()
			}
			ch <- struct{}{}
		}()
		return ch
	}

	select {
	case <-time.After(time.Second * 5):
		log.Error("[EXIT] timeout, force closing")
		return
	case <-closeall():
	}
	if err := g.Wait(); err != nil {
		log.Error("[EXIT] stopped with error", zap.Error(err))
	}
	log.Info("[EXIT] Bye")
}
