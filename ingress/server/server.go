package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/intxff/sstunnel/component/socket"
	"github.com/intxff/sstunnel/component/transport"
	"github.com/intxff/sstunnel/ingress"
	"github.com/intxff/sstunnel/log"
	"github.com/intxff/sstunnel/session"
	"go.uber.org/zap"
)

var _ ingress.Ingress = (*Server)(nil)

// Server accepts tunnel connections and runs a server session for each.
type Server struct {
	name     string
	trans    *transport.TransTCP
	acceptor *session.Acceptor
	sockOpts []socket.Option
	status   atomic.Int32
	conns    sync.Map

	mu       sync.Mutex
	listener net.Listener
}

func NewServer(name string, t *transport.TransTCP, a *session.Acceptor, opts ...socket.Option) *Server {
	s := &Server{
		name:     name,
		trans:    t,
		acceptor: a,
		sockOpts: opts,
	}
	s.status.Store(ingress.Ready)
	return s
}

func (s *Server) logString(str string) string {
	return fmt.Sprintf("[Ingress] %v: %v", s.name, str)
}

func (s *Server) Type() ingress.IngressType {
	return ingress.TypeServer
}

func (s *Server) Name() string {
	return s.name
}

func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Close() <-chan struct{} {
	defer func() {
		log.Info(s.logString("closed"))
	}()
	s.status.Store(ingress.Closed)

	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Unlock()

	s.conns.Range(func(_, value any) bool {
		value.(*session.Server).Close()
		return true
	})

	ch := make(chan struct{}, 1)
	ch <- struct{}{}
	return ch
}

func (s *Server) Run(ctx context.Context) error {
	l, err := s.trans.ListenStream(ctx)
	if err != nil {
		return fmt.Errorf("listen %v: %w", s.trans.Address(), err)
	}

	s.mu.Lock()
	if s.status.Load() == ingress.Closed {
		s.mu.Unlock()
		l.Close()
		return nil
	}
	s.listener = l
	s.mu.Unlock()
	s.status.Store(ingress.Running)
	log.Info(s.logString("tcp listening"),
		zap.String("addr", l.Addr().String()))

	for {
		c, err := l.Accept()
		if err != nil {
			if s.status.Load() == ingress.Closed {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		log.Debug(s.logString("connection accepted"),
			zap.String("remote", c.RemoteAddr().String()))
		s.serve(c)
	}
}

func (s *Server) serve(c net.Conn) {
	sock := socket.New(c, s.sockOpts...)
	sess := s.acceptor.NewServer(sock)

	key := c.RemoteAddr().String()
	s.conns.Store(key, sess)
	go func() {
		<-sess.Done()
		s.conns.Delete(key)
	}()

	sock.OnData(sess.Handle)
	sock.Start()
}
