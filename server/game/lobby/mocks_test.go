package lobby

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/jacobpatterson1549/selene-ludo/game"
	"github.com/jacobpatterson1549/selene-ludo/game/message"
	"github.com/jacobpatterson1549/selene-ludo/game/player"
	gameController "github.com/jacobpatterson1549/selene-ludo/server/game"
)

type mockRunner struct {
	mu        sync.Mutex
	calls     []string
	left      chan game.ID
	EnterFunc func(ctx context.Context, id game.ID, playerID player.ID, sub gameController.Subscriber) error
	RollFunc  func(ctx context.Context, id game.ID, playerID player.ID) (*game.State, error)
	MoveFunc  func(ctx context.Context, id game.ID, playerID player.ID, m game.Move) (*game.State, error)
}

func newMockRunner() *mockRunner {
	r := mockRunner{
		left: make(chan game.ID, 8),
		EnterFunc: func(ctx context.Context, id game.ID, playerID player.ID, sub gameController.Subscriber) error {
			return nil
		},
		RollFunc: func(ctx context.Context, id game.ID, playerID player.ID) (*game.State, error) {
			return new(game.State), nil
		},
		MoveFunc: func(ctx context.Context, id game.ID, playerID player.ID, m game.Move) (*game.State, error) {
			return new(game.State), nil
		},
	}
	return &r
}

func (r *mockRunner) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *mockRunner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.calls...)
}

func (r *mockRunner) Enter(ctx context.Context, id game.ID, playerID player.ID, sub gameController.Subscriber) error {
	r.record("enter " + string(id) + " " + string(playerID))
	return r.EnterFunc(ctx, id, playerID, sub)
}

func (r *mockRunner) Leave(ctx context.Context, id game.ID, sub gameController.Subscriber) {
	r.record("leave " + string(id))
	r.left <- id
}

func (r *mockRunner) Roll(ctx context.Context, id game.ID, playerID player.ID) (*game.State, error) {
	r.record("roll " + string(id) + " " + string(playerID))
	return r.RollFunc(ctx, id, playerID)
}

func (r *mockRunner) Move(ctx context.Context, id game.ID, playerID player.ID, m game.Move) (*game.State, error) {
	r.record("move " + string(id) + " " + string(playerID))
	return r.MoveFunc(ctx, id, playerID, m)
}

var errNormalClose = errors.New("normal close")

// mockConn reads messages from the in channel and writes them to the written channel.
type mockConn struct {
	in      chan message.Message
	written chan message.Message
	closed  chan struct{}
	once    sync.Once
}

func newMockConn() *mockConn {
	c := mockConn{
		in:      make(chan message.Message),
		written: make(chan message.Message, 16),
		closed:  make(chan struct{}),
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
