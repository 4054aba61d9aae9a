// Package session runs the two ends of a tunnel connection.
//
// A Server session sits behind an accepted client socket. It decrypts the
// inbound stream, checks the handshake header, connects to the target named in
// it and then relays both ways. A Client session sits behind a local
// application socket: it writes the handshake to the server and relays.
package session

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/intxff/sstunnel/component/crypto"
	"github.com/intxff/sstunnel/component/relay"
	"github.com/intxff/sstunnel/component/socket"
)

const defaultConnectTimeout = 5 * time.Second

var ErrReplayedIV = errors.New("session: iv replayed")

type Stage int32

const (
	StageAddress   Stage = 1
	StageData      Stage = 2
	StageDestroyed Stage = 100
)

func (s Stage) String() string {
	switch s {
	case StageAddress:
		return "address"
	case StageData:
		return "data"
	case StageDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Connector opens the socket to a target named in a handshake.
type Connector interface {
	Connect(ctx context.Context, host string, port int) (socket.Socket, error)
}

type ConnectorFunc func(ctx context.Context, host string, port int) (socket.Socket, error)

func (f ConnectorFunc) Connect(ctx context.Context, host string, port int) (socket.Socket, error) {
	return f(ctx, host, port)
}

type options struct {
	interval       int64
	connectTimeout time.Duration
	now            func() time.Time
	rand           io.Reader
}

type optionFunc func(o *options)

// WithInterval overrides the handshake timestamp quantum, in seconds.
func WithInterval(sec int64) optionFunc {
	return func(o *options) {
		if sec > 0 {
			o.interval = sec
		}
	}
}

// WithConnectTimeout bounds the server's connect to a target.
func WithConnectTimeout(d time.Duration) optionFunc {
	return func(o *options) {
		if d > 0 {
			o.connectTimeout = d
		}
	}
}

func WithClock(now func() time.Time) optionFunc {
	return func(o *options) {
		o.now = now
	}
}

// WithRand replaces the source of the IVs a session sends.
func WithRand(r io.Reader) optionFunc {
	return func(o *options) {
		o.rand = r
	}
}

func newOptions(interval int64, opts []optionFunc) *options {
	o := &options{
		interval:       interval,
		connectTimeout: defaultConnectTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) contextOptions() []crypto.ContextOption {
	if o.rand == nil {
		return nil
	}
	return []crypto.ContextOption{crypto.WithRand(o.rand)}
}

// decrypter holds ciphertext back until the peer's IV is complete, so a
// stream whose IV arrives split over several reads still decrypts.
func decrypter(c *crypto.Context, ivLen int) relay.Transform {
	var pending []byte
	return func(b []byte) ([]byte, error) {
		if c.IV(crypto.DirDecrypt) == nil {
			pending = append(pending, b...)
			if len(pending) < ivLen {
				return nil, nil
			}
			b, pending = pending, nil
		}
		return c.Decrypt(b)
	}
}
