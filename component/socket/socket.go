// Package socket adapts a net.Conn to the callback driven model the tunnel
// sessions are written against: chunks are pushed to a handler, writes are
// queued, and the reader can be paused while a peer's queue drains.
package socket

import (
	"errors"
	"net"
)

var ErrClosed = errors.New("socket: closed")

// Socket is one leg of a session.
//
// Handlers may be replaced at any time. OnData handlers run on the socket's
// read goroutine, one chunk at a time, in arrival order. OnEnd, OnError and
// OnClose each fire at most once.
type Socket interface {
	OnData(h func(b []byte))
	// OnEnd fires when the peer finishes sending.
	OnEnd(h func())
	// OnError fires on a read or write failure that was not caused by Close.
	OnError(h func(err error))
	// OnClose fires once the underlying connection is closed.
	OnClose(h func())
	// OnDrain fires when a queue that was reported full has drained. If the
	// queue is already drained h runs immediately.
	OnDrain(h func())

	// Start begins delivering inbound chunks.
	Start()
	// Write queues b for sending and takes ownership of it.
	Write(b []byte) error
	WriteQueueFull() bool
	Pause()
	Resume()
	// Close flushes queued bytes and closes the connection. It is idempotent.
	Close() error

	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}
