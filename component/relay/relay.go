// Package relay moves chunks between two sockets and couples the reader of
// one side to the write queue of the other.
package relay

import (
	"github.com/intxff/sstunnel/component/socket"
)

// Transform maps a chunk read from one socket to the bytes written to the
// other, e.g. a crypto context's Encrypt or Decrypt.
type Transform func(b []byte) ([]byte, error)

func Identity(b []byte) ([]byte, error) {
	return b, nil
}

// FlowControl pauses src while dst has a full write queue and resumes it once
// dst drains. It reports whether src was paused.
func FlowControl(dst, src socket.Socket) bool {
	if !dst.WriteQueueFull() {
		return false
	}
	src.Pause()
	dst.OnDrain(src.Resume)
	return true
}

// Forward writes b to dst and applies flow control against src.
func Forward(dst, src socket.Socket, b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if err := dst.Write(b); err != nil {
		return err
	}
	FlowControl(dst, src)
	return nil
}

// Pipe forwards every chunk of src through t into dst. fail is called when
// t or the write to dst fails.
func Pipe(src, dst socket.Socket, t Transform, fail func(err error)) {
	src.OnData(func(b []byte) {
		out, err := t(b)
		if err != nil {
			fail(err)
			return
		}
		if err = Forward(dst, src, out); err != nil {
			fail(err)
		}
	})
}

// Finish routes the end, error and close events of sock to h. h receives nil
// for end and close.
func Finish(sock socket.Socket, h func(err error)) {
	sock.OnEnd(func() { h(nil) })
	sock.OnError(h)
	sock.OnClose(func() { h(nil) })
}
