package socket

import (
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultReadSize     = 32 * 1024
	defaultHighWater    = 64 * 1024
	defaultFlushTimeout = 5 * time.Second
)

var _ Socket = (*Conn)(nil)

type Option func(c *Conn)

func WithReadSize(n int) Option {
	return func(c *Conn) {
		if n > 0 {
			c.readSize = n
		}
	}
}

// WithHighWaterMark sets the queued byte count at which WriteQueueFull
// reports true. The queue counts as drained again at half of it.
func WithHighWaterMark(n int) Option {
	return func(c *Conn) {
		if n > 0 {
			c.highWater = n
		}
	}
}

// WithIdleTimeout ends the socket with an error when nothing is read from or
// written to it for d. A relayed leg writes everything its peer leg reads, so
// traffic in either direction of a session keeps both legs alive.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Conn) {
		c.idleTimeout = d
	}
}

// WithFlushTimeout bounds how long Close waits for queued bytes.
func WithFlushTimeout(d time.Duration) Option {
	return func(c *Conn) {
		if d > 0 {
			c.flushTimeout = d
		}
	}
}

// Conn is a Socket over a net.Conn. It owns a read goroutine, started by
// Start, and a write goroutine, started by New.
type Conn struct {
	conn         net.Conn
	readSize     int
	highWater    int
	lowWater     int
	idleTimeout  time.Duration
	flushTimeout time.Duration

	// unix nanoseconds of the last successful read or write
	lastActive atomic.Int64

	mu        sync.Mutex
	readable  *sync.Cond
	writable  *sync.Cond
	started   bool
	paused    bool
	closing   bool
	reported  bool
	queue     [][]byte
	queued    int
	needDrain bool

	onData  func([]byte)
	onEnd   func()
	onError func(error)
	onClose func()
	onDrain func()

	done chan struct{}
}

func New(c net.Conn, opts ...Option) *Conn {
	s := &Conn{
		conn:         c,
		readSize:     defaultReadSize,
		highWater:    defaultHighWater,
		flushTimeout: defaultFlushTimeout,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lowWater = s.highWater / 2
	s.touch()
	s.readable = sync.NewCond(&s.mu)
	s.writable = sync.NewCond(&s.mu)

	go s.writeLoop()
	return s
}

func (c *Conn) OnData(h func(b []byte)) {
	c.mu.Lock()
	c.onData = h
	c.mu.Unlock()
}

func (c *Conn) OnEnd(h func()) {
	c.mu.Lock()
	c.onEnd = h
	c.mu.Unlock()
}

func (c *Conn) OnError(h func(err error)) {
	c.mu.Lock()
	c.onError = h
	c.mu.Unlock()
}

func (c *Conn) OnClose(h func()) {
	c.mu.Lock()
	c.onClose = h
	c.mu.Unlock()
}

func (c *Conn) OnDrain(h func()) {
	c.mu.Lock()
	c.onDrain = h
	drained := !c.needDrain
	c.mu.Unlock()
	if drained && h != nil {
		h()
	}
}

func (c *Conn) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.closing {
		return
	}
	c.started = true
	go c.readLoop()
}

func (c *Conn) Write(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing {
		return ErrClosed
	}
	c.queue = append(c.queue, b)
	c.queued += len(b)
	c.writable.Signal()
	return nil
}

func (c *Conn) WriteQueueFull() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	full := c.queued >= c.highWater
	if full {
		c.needDrain = true
	}
	return full
}

func (c *Conn) Pause() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
}

func (c *Conn) Resume() {
	c.mu.Lock()
	c.paused = false
	c.touch()
	c.readable.Broadcast()
	c.mu.Unlock()
}

func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	c.readable.Broadcast()
	c.writable.Broadcast()
	c.mu.Unlock()

	// unblock the reader now, give the writer a bounded time to flush
	c.conn.SetReadDeadline(time.Now())
	c.conn.SetWriteDeadline(time.Now().Add(c.flushTimeout))
	return nil
}

// Done is closed after the connection is closed and OnClose has been called.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Conn) touch() {
	c.lastActive.Store(time.Now().UnixNano())
}

func (c *Conn) idleDeadline() time.Time {
	return time.Unix(0, c.lastActive.Load()).Add(c.idleTimeout)
}

// waitReadable blocks while paused. The idle read deadline is set under the
// lock so that it can never override the one set by Close.
func (c *Conn) waitReadable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.paused && !c.closing {
		c.readable.Wait()
	}
	if c.closing {
		return false
	}
	if c.idleTimeout > 0 {
		c.conn.SetReadDeadline(c.idleDeadline())
	}
	return true
}

// idleExtended reports whether err is a read deadline that fired while
// writes kept the socket busy, in which case the read is retried.
func (c *Conn) idleExtended(err error) bool {
	if c.idleTimeout <= 0 || !errors.Is(err, os.ErrDeadlineExceeded) {
		return false
	}
	c.mu.Lock()
	closing := c.closing
	c.mu.Unlock()
	return !closing && time.Now().Before(c.idleDeadline())
}

func (c *Conn) readLoop() {
	buf := make([]byte, c.readSize)
	for {
		if !c.waitReadable() {
			return
		}
		n, err := c.conn.Read(buf)
		if n > 0 {
			c.touch()
			c.mu.Lock()
			h, closing := c.onData, c.closing
			c.mu.Unlock()
			if !closing && h != nil {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				h(chunk)
			}
		}
		if err != nil {
			if c.idleExtended(err) {
				continue
			}
			if errors.Is(err, io.EOF) {
				c.report(nil)
			} else {
				c.report(err)
			}
			c.Close()
			return
		}
	}
}

func (c *Conn) writeLoop() {
	defer c.finish()
	for {
		c.mu.Lock()
		for len(c.queue) == 0 && !c.closing {
			c.writable.Wait()
		}
		if len(c.queue) == 0 {
			c.mu.Unlock()
			return
		}
		bufs := net.Buffers(c.queue)
		c.queue = nil
		c.mu.Unlock()

		n, err := bufs.WriteTo(c.conn)
		if n > 0 {
			c.touch()
		}

		c.mu.Lock()
		c.queued -= int(n)
		var drain func()
		if c.needDrain && c.queued <= c.lowWater {
			c.needDrain = false
			drain = c.onDrain
		}
		c.mu.Unlock()

		if err != nil {
			c.report(err)
			return
		}
		if drain != nil {
			drain()
		}
	}
}

// report delivers the first end (err == nil) or error of the socket. Nothing
// is reported once Close has been called.
func (c *Conn) report(err error) {
	c.mu.Lock()
	if c.reported || c.closing {
		c.mu.Unlock()
		return
	}
	c.reported = true
	end, fail := c.onEnd, c.onError
	c.mu.Unlock()

	if err == nil {
		if end != nil {
			end()
		}
		return
	}
	if fail != nil {
		fail(err)
	}
}

func (c *Conn) finish() {
	c.conn.Close()

	c.mu.Lock()
	c.closing = true
	c.queue = nil
	c.readable.Broadcast()
	h := c.onClose
	c.mu.Unlock()

	if h != nil {
		h()
	}
	close(c.done)
}
