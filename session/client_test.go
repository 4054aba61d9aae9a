package session

import (
	"context"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/intxff/sstunnel/component/crypto"
	"github.com/intxff/sstunnel/component/handshake"
	"github.com/intxff/sstunnel/component/ivcache"
	"github.com/intxff/sstunnel/component/socket"
	"github.com/intxff/sstunnel/component/transport"
	"github.com/shadowsocks/go-shadowsocks2/socks"
)

func TestClientWritesHandshakeFirst(t *testing.T) {
	c, err := crypto.Pick(testMethod, testPassword, testIVLen)
	if err != nil {
		t.Fatalf("Pick: %v", err)
	}
	local, remote := &fakeSocket{}, &fakeSocket{}

	cl, err := NewClient(local, remote, socks.ParseAddr("example.com:443"), c,
		WithInterval(testInterval), WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	server := c.NewContext()
	header, err := server.Decrypt(remote.bytes())
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if ts := handshake.ParseTimestamp(header); ts != alignedNow() {
		t.Fatalf("timestamp %v, want %v", ts, alignedNow())
	}
	addr, n, err := handshake.ParseAddr(header[handshake.HeaderSize:])
	if err != nil {
		t.Fatalf("ParseAddr: %v", err)
	}
	if addr.Host != "example.com" || addr.Port != 443 || handshake.HeaderSize+n != len(header) {
		t.Fatalf("unexpected header target %v", addr)
	}

	cl.Start()
	if _, started, _ := remote.state(); !started {
		t.Fatalf("remote not started")
	}

	sent := len(remote.bytes())
	local.data()([]byte("hello"))
	p, err := server.Decrypt(remote.bytes()[sent:])
	if err != nil || string(p) != "hello" {
		t.Fatalf("server read %q, %v", p, err)
	}

	reply, _ := server.Encrypt([]byte("world"))
	// the reply iv arrives split
	remote.data()(reply[:7])
	remote.data()(reply[7:])
	if got := string(local.bytes()); got != "world" {
		t.Fatalf("local got %q", got)
	}

	remote.onEnd()
	if cl.Stage() != StageDestroyed {
		t.Fatalf("client not destroyed on remote end")
	}
	if _, _, closes := local.state(); closes != 1 {
		t.Fatalf("local closed %d times", closes)
	}
}

func listen(t *testing.T) net.Listener {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestEndToEndEcho(t *testing.T) {
	echo := listen(t)
	go func() {
		for {
			c, err := echo.Accept()
			if err != nil {
				return
			}
			go func() {
				io.Copy(c, c)
				c.Close()
			}()
		}
	}()

	dialer := &transport.Dialer{Timeout: time.Second}
	connector := ConnectorFunc(func(ctx context.Context, host string, port int) (socket.Socket, error) {
		c, err := dialer.DialStream(ctx, host, port)
		if err != nil {
			return nil, err
		}
		return socket.New(c), nil
	})
	a, err := NewAcceptor(testConfig(), ivcache.New(0), connector)
	if err != nil {
		t.Fatalf("NewAcceptor: %v", err)
	}

	server := listen(t)
	go func() {
		for {
			c, err := server.Accept()
			if err != nil {
				return
			}
			sock := socket.New(c)
			sock.OnData(a.Accept(sock))
			sock.Start()
		}
	}()

	host, portStr, _ := net.SplitHostPort(server.Addr().String())
	port, _ := strconv.Atoi(portStr)
	rc, err := dialer.DialStream(context.Background(), host, port)
	if err != nil {
		t.Fatalf("DialStream: %v", err)
	}

	app, localEnd := net.Pipe()
	defer app.Close()
	c, _ := crypto.Pick(testMethod, testPassword, testIVLen)
	cl, err := NewClient(socket.New(localEnd), socket.New(rc), socks.ParseAddr(echo.Addr().String()), c,
		WithInterval(testInterval))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	cl.Start()

	for _, msg := range []string{"ping", "a longer second message", "3"} {
		if _, err := app.Write([]byte(msg)); err != nil {
			t.Fatalf("Write: %v", err)
		}
		buf := make([]byte, len(msg))
		app.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, err := io.ReadFull(app, buf); err != nil {
			t.Fatalf("ReadFull: %v", err)
		}
		if string(buf) != msg {
			t.Fatalf("echo %q, want %q", buf, msg)
		}
	}

	app.Close()
	select {
	case <-cl.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("client session not torn down after the app closed")
	}
	if a.Cache().Len() != 1 {
		t.Fatalf("cache holds %d ivs, want 1", a.Cache().Len())
	}
}
