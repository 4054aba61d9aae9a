package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/intxff/sstunnel/component/crypto"
	"github.com/intxff/sstunnel/component/handshake"
	"github.com/intxff/sstunnel/component/ivcache"
	"github.com/intxff/sstunnel/component/relay"
	"github.com/intxff/sstunnel/component/socket"
	"github.com/intxff/sstunnel/config"
	"github.com/intxff/sstunnel/log"
	"go.uber.org/zap"
)

const defaultInterval = 30

// Acceptor turns accepted client sockets into server sessions. All sessions
// of one Acceptor share its cipher and IV cache.
type Acceptor struct {
	cipher    *crypto.Cipher
	cache     *ivcache.Cache
	connector Connector
	opts      *options
}

// NewAcceptor validates the cipher settings of cfg. A nil cache gets a fresh
// one of the default capacity.
func NewAcceptor(cfg *config.ConnectionConfig, cache *ivcache.Cache, connector Connector, opts ...optionFunc) (*Acceptor, error) {
	c, err := crypto.Pick(cfg.Method, cfg.Password, cfg.IVLen)
	if err != nil {
		return nil, err
	}
	if cache == nil {
		cache = ivcache.New(ivcache.DefaultCapacity)
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Acceptor{
		cipher:    c,
		cache:     cache,
		connector: connector,
		opts:      newOptions(interval, opts),
	}, nil
}

func (a *Acceptor) Cache() *ivcache.Cache {
	return a.cache
}

// Accept sets up a session behind sock and returns the handler for sock's
// inbound chunks.
func (a *Acceptor) Accept(sock socket.Socket) func(b []byte) {
	return a.NewServer(sock).Handle
}

// NewServer sets up a session behind client. The caller feeds client's
// chunks to Handle and starts client.
func (a *Acceptor) NewServer(client socket.Socket) *Server {
	s := &Server{
		acceptor: a,
		crypto:   a.cipher.NewContext(a.opts.contextOptions()...),
		client:   client,
		stage:    StageAddress,
		done:     make(chan struct{}),
	}
	s.decrypt = decrypter(s.crypto, a.cipher.IVLen())
	relay.Finish(client, s.destroy)
	return s
}

// Server is the server side of one tunnel connection.
type Server struct {
	acceptor *Acceptor
	crypto   *crypto.Context
	decrypt  relay.Transform
	client   socket.Socket

	mu      sync.Mutex
	stage   Stage
	checked bool
	buf     []byte
	backlog [][]byte
	addr    handshake.Addr
	target  socket.Socket
	cancel  context.CancelFunc
	err     error

	done chan struct{}
}

func (s *Server) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// Target is the address from the handshake, zero until it has been parsed.
func (s *Server) Target() handshake.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Err is the reason the session was destroyed. It is nil while the session
// runs and when a peer simply closed.
func (s *Server) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Server) Done() <-chan struct{} {
	return s.done
}

func (s *Server) Close() {
	s.destroy(nil)
}

// Handle consumes one chunk read from the client.
func (s *Server) Handle(b []byte) {
	if err := s.handle(b); err != nil {
		s.destroy(err)
	}
}

func (s *Server) handle(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage == StageDestroyed {
		return nil
	}

	p, err := s.decrypt(b)
	if err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}

	if s.stage == StageAddress {
		s.buf = append(s.buf, p...)
		return s.handleAddress()
	}
	if s.target == nil {
		s.backlog = append(s.backlog, p)
		return nil
	}
	return relay.Forward(s.target, s.client, p)
}

func (s *Server) handleAddress() error {
	a := s.acceptor
	if !s.checked {
		if len(s.buf) < handshake.HeaderSize {
			return nil
		}
		ts := handshake.ParseTimestamp(s.buf)
		if !handshake.Fresh(ts, a.opts.now().Unix(), a.opts.interval) {
			return fmt.Errorf("%w: %v", handshake.ErrStaleTimestamp, ts)
		}
		if !a.cache.Add(s.crypto.IV(crypto.DirDecrypt)) {
			return ErrReplayedIV
		}
		s.checked = true
		s.buf = s.buf[handshake.HeaderSize:]
	}

	addr, n, err := handshake.ParseAddr(s.buf)
	if errors.Is(err, handshake.ErrShortBuffer) {
		return nil
	}
	if err != nil {
		return err
	}
	if rest := s.buf[n:]; len(rest) > 0 {
		s.backlog = append(s.backlog, rest)
	}
	s.buf = nil
	s.addr = addr
	s.stage = StageData

	// nothing more is read from the client until the target is writable
	s.client.Pause()
	ctx, cancel := context.WithTimeout(context.Background(), a.opts.connectTimeout)
	s.cancel = cancel
	go s.connect(ctx, cancel, addr)
	return nil
}

func (s *Server) connect(ctx context.Context, cancel context.CancelFunc, addr handshake.Addr) {
	target, err := s.acceptor.connector.Connect(ctx, addr.Host, addr.Port)
	cancel()
	if err != nil {
		s.destroy(fmt.Errorf("connect %v: %w", addr, err))
		return
	}

	s.mu.Lock()
	if s.stage == StageDestroyed {
		s.mu.Unlock()
		target.Close()
		return
	}
	s.target = target
	backlog := s.backlog
	s.backlog = nil
	for _, b := range backlog {
		if err = target.Write(b); err != nil {
			break
		}
	}
	s.mu.Unlock()
	if err != nil {
		s.destroy(err)
		return
	}

	log.Debug("[Session] target connected",
		zap.String("client", addrString(s.client.RemoteAddr())),
		zap.String("target", addr.String()))

	relay.Pipe(target, s.client, s.crypto.Encrypt, s.destroy)
	relay.Finish(target, s.destroy)
	target.Start()
	if !relay.FlowControl(target, s.client) {
		s.client.Resume()
	}
}

// destroy tears the session down once; later calls do nothing.
func (s *Server) destroy(err error) {
	s.mu.Lock()
	if s.stage == StageDestroyed {
		s.mu.Unlock()
		return
	}
	s.stage = StageDestroyed
	s.err = err
	target, cancel, addr := s.target, s.cancel, s.addr
	s.buf, s.backlog = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.client.Close()
	if target != nil {
		target.Close()
	}

	fields := []zap.Field{
		zap.String("client", addrString(s.client.RemoteAddr())),
		zap.String("target", addr.String()),
	}
	switch {
	case err == nil:
		log.Debug("[Session] closed", fields...)
	case errors.Is(err, handshake.ErrStaleTimestamp),
		errors.Is(err, handshake.ErrAddrType),
		errors.Is(err, ErrReplayedIV):
		log.Warn("[Session] handshake rejected", append(fields, zap.Error(err))...)
	default:
		log.Info("[Session] closed with error", append(fields, zap.Error(err))...)
	}
	close(s.done)
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
