package session

import (
	"sync"

	"github.com/intxff/sstunnel/component/crypto"
	"github.com/intxff/sstunnel/component/handshake"
	"github.com/intxff/sstunnel/component/relay"
	"github.com/intxff/sstunnel/component/socket"
	"github.com/intxff/sstunnel/log"
	"github.com/shadowsocks/go-shadowsocks2/socks"
	"go.uber.org/zap"
)

// Client is the local side of one tunnel connection. Replay defense lives on
// the server only, so a Client keeps no IV cache.
type Client struct {
	local  socket.Socket
	remote socket.Socket
	target socks.Addr
	crypto *crypto.Context
	ivLen  int

	mu    sync.Mutex
	stage Stage
	err   error
	done  chan struct{}
}

// NewClient queues the encrypted handshake for target on remote. Nothing is
// relayed until Start.
func NewClient(local, remote socket.Socket, target socks.Addr, c *crypto.Cipher, opts ...optionFunc) (*Client, error) {
	o := newOptions(defaultInterval, opts)
	cl := &Client{
		local:  local,
		remote: remote,
		target: target,
		crypto: c.NewContext(o.contextOptions()...),
		ivLen:  c.IVLen(),
		stage:  StageAddress,
		done:   make(chan struct{}),
	}

	header, err := handshake.Header(o.now(), o.interval, target)
	if err != nil {
		return nil, err
	}
	out, err := cl.crypto.Encrypt(header)
	if err != nil {
		return nil, err
	}
	if err = remote.Write(out); err != nil {
		return nil, err
	}
	cl.stage = StageData
	return cl, nil
}

func (c *Client) Start() {
	relay.Pipe(c.local, c.remote, c.crypto.Encrypt, c.destroy)
	relay.Pipe(c.remote, c.local, decrypter(c.crypto, c.ivLen), c.destroy)
	relay.Finish(c.local, c.destroy)
	relay.Finish(c.remote, c.destroy)
	c.remote.Start()
	c.local.Start()
}

func (c *Client) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) Close() {
	c.destroy(nil)
}

func (c *Client) destroy(err error) {
	c.mu.Lock()
	if c.stage == StageDestroyed {
		c.mu.Unlock()
		return
	}
	c.stage = StageDestroyed
	c.err = err
	c.mu.Unlock()

	c.local.Close()
	c.remote.Close()
	if err != nil {
		log.Info("[Session] client closed with error",
			zap.String("target", c.target.String()),
			zap.Error(err))
	} else {
		log.Debug("[Session] client closed", zap.String("target", c.target.String()))
	}
	close(c.done)
}
