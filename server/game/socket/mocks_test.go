package socket

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/jacobpatterson1549/selene-ludo/game/message"
)

var errNormalClose = errors.New("normal close")

// mockConn reads messages from the in channel and writes them to the written channel.
type mockConn struct {
	in          chan message.Message
	written     chan message.Message
	closeReason chan string
	closed      chan struct{}
	once        sync.Once
}

func newMockConn() *mockConn {
	c := mockConn{
		in:          make(chan message.Message),
		written:     make(chan message.Message, 16),
		closeReason: make(chan string, 1),
		closed:      make(chan struct{}),
	}
	return &c
}

func (c *mockConn) ReadMessage(m *message.Message) error {
	select {
	case m2, ok := <-c.in:
		if !ok {
			return errNormalClose
		}
		*m = m2
		return nil
	case <-c.closed:
		return errNormalClose
	}
}

func (c *mockConn) WriteMessage(m message.Message) error {
	c.written <- m
	return nil
}

func (c *mockConn) WritePing() error {
	return nil
}

func (c *mockConn) WriteClose(reason string) error {
	select {
	case c.closeReason <- reason:
	default:
	}
	return nil
}

func (c *mockConn) IsNormalClose(err error) bool {
	return err == errNormalClose
}

func (c *mockConn) SetReadDeadline(t time.Time) error {
	return nil
}

func (c *mockConn) SetWriteDeadline(t time.Time) error {
	return nil
}

func (c *mockConn) SetPongHandler(h func(appData string) error) {}

func (c *mockConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 8000}
}

func (c *mockConn) Close() error {
	c.once.Do(func() {
		close(c.closed)
	})
	return nil
}

// mockHandler records the messages it handles.
type mockHandler struct {
	HandleMessageFunc func(ctx context.Context, s *Socket, m message.Message)
	closed            chan *Socket
}

func newMockHandler(f func(ctx context.Context, s *Socket, m message.Message)) *mockHandler {
	h := mockHandler{
		HandleMessageFunc: f,
		closed:            make(chan *Socket, 1),
	}
	return &h
}

func (h *mockHandler) HandleMessage(ctx context.Context, s *Socket, m message.Message) {
	h.HandleMessageFunc(ctx, s, m)
}

func (h *mockHandler) SocketClosed(s *Socket) {
	h.closed <- s
}
