package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jacobpatterson1549/selene-ludo/db"
	"github.com/jacobpatterson1549/selene-ludo/db/memory"
	"github.com/jacobpatterson1549/selene-ludo/game/message"
	"github.com/jacobpatterson1549/selene-ludo/server/log/logtest"
)

// mockSubscriber collects the messages it is sent.
type mockSubscriber struct {
	messages chan message.Message
}

func newMockSubscriber() *mockSubscriber {
	s := mockSubscriber{
		messages: make(chan message.Message, 64),
	}
	return &s
}

func (s *mockSubscriber) Send(m message.Message) bool {
	select {
	case s.messages <- m:
		return true
	default:
		return false
	}
}

// next waits for the next message.
func (s *mockSubscriber) next(t *testing.T) message.Message {
	t.Helper()
	select {
	case m := <-s.messages:
		return m
	case <-time.After(time.Second):
		t.Fatalf("no message received")
	}
	return message.Message{}
}

// nextTypes waits for the next messages and returns their types.
func (s *mockSubscriber) nextTypes(t *testing.T, n int) []message.Type {
	t.Helper()
	types := make([]message.Type, n)
	for i := range types {
		types[i] = s.next(t).Type
	}
	return types
}

// empty determines if no messages are waiting.
func (s *mockSubscriber) empty() bool {
	return len(s.messages) == 0
}

// mockGateway is a memory gateway with commits that can be made to fail.
type mockGateway struct {
	*memory.Gateway
	// conflicts is the number of commits to reject as concurrent changes.
	conflicts atomic.Int32
	// fail causes commits to fail.
	fail    atomic.Bool
	commits atomic.Int32
	// rejected is the number of commits the memory gateway refused because of a stale version.
	rejected atomic.Int32
}

func newMockGateway() *mockGateway {
	g := mockGateway{
		Gateway: memory.NewGateway(),
	}
	return &g
}

func (g *mockGateway) Commit(ctx context.Context, c db.Change) error {
	g.commits.Add(1)
	switch {
	case g.fail.Load():
		return fmt.Errorf("database unavailable")
	case g.conflicts.Add(-1) >= 0:
		return fmt.Errorf("mock: %w", db.ErrConflict)
	}
	err := g.Gateway.Commit(ctx, c)
	if errors.Is(err, db.ErrConflict) {
		g.rejected.Add(1)
	}
	return err
}

// mockClock is a time func that only changes when advanced.
type mockClock struct {
	now atomic.Int64
}

func (c *mockClock) Now() int64 {
	return c.now.Load()
}

func (c *mockClock) Advance(d time.Duration) {
	c.now.Add(d.Milliseconds())
}

// mockDice rolls the values in order, repeating the last value.  Other random values are zero.
type mockDice struct {
	mu     sync.Mutex
	values []int
}

func (d *mockDice) IntN(n int) int {
	if n != 6 {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	v := d.values[0]
	if len(d.values) > 1 {
		d.values = d.values[1:]
	}
	return v - 1
}

// testGameConfig creates a game config with a stopped clock, dice that roll the values, and no automatic turns.
func testGameConfig(clock *mockClock, dice ...int) Config {
	var lastID atomic.Int64
	if len(dice) == 0 {
		dice = []int{6}
	}
	d := mockDice{values: dice}
	cfg := Config{
		Log:         logtest.DiscardLogger,
		TimeFunc:    clock.Now,
		RandIntFunc: d.IntN,
		IDFunc: func() string {
			return fmt.Sprintf("id%d", lastID.Add(1))
		},
		QueueSize:  8,
		TickPeriod: 5 * time.Millisecond,
	}
	return cfg
}
