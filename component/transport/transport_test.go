package transport

import (
	"context"
	"io"
	"net"
	"strconv"
	"testing"
)

func TestListenAndDial(t *testing.T) {
	tr, err := NewTransTCP("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewTransTCP: %v", err)
	}
	l, err := tr.ListenStream(context.Background())
	if err != nil {
		t.Fatalf("ListenStream: %v", err)
	}
	defer l.Close()

	go func() {
		c, err := l.Accept()
		if err != nil {
			return
		}
		c.Write([]byte("hi"))
		c.Close()
	}()

	host, portStr, _ := net.SplitHostPort(l.Addr().String())
	port, _ := strconv.Atoi(portStr)
	d := &Dialer{}
	c, err := d.DialStream(context.Background(), host, port)
	if err != nil {
		t.Fatalf("DialStream: %v", err)
	}
	defer c.Close()

	got, err := io.ReadAll(c)
	if err != nil || string(got) != "hi" {
		t.Fatalf("read %q, %v", got, err)
	}
}

func TestDialUnknownInterface(t *testing.T) {
	d := &Dialer{Interface: "no-such-interface0"}
	if _, err := d.DialStream(context.Background(), "127.0.0.1", 9); err == nil {
		t.Fatalf("dial through a missing interface succeeded")
	}
}
