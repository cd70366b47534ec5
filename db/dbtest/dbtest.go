// Package dbtest contains tests that every db.Gateway must pass.
package dbtest

import (
	"context"
	"testing"

	"github.com/jacobpatterson1549/selene-ludo/db"
	"github.com/jacobpatterson1549/selene-ludo/game"
	"github.com/jacobpatterson1549/selene-ludo/game/player"
	"github.com/jacobpatterson1549/selene-ludo/game/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewGatewayFunc creates an empty gateway for a test.
type NewGatewayFunc func(t *testing.T) db.Gateway

// NewRecords creates a waiting room with the creator and the initial state for it.
func NewRecords(t *testing.T, id game.ID, tier room.Tier, creator player.ID) (room.Room, game.State) {
	t.Helper()
	r, err := room.New(id, "CODE"+string(id), tier, creator, 100)
	require.NoError(t, err)
	s := game.NewState(id, 100)
	return *r, s
}

// RunGatewayTests runs the tests every gateway must pass.
func RunGatewayTests(t *testing.T, newGateway NewGatewayFunc) {
	t.Run("create and get", func(t *testing.T) {
		testCreateAndGet(t, newGateway(t))
	})
	t.Run("not found", func(t *testing.T) {
		testNotFound(t, newGateway(t))
	})
	t.Run("create duplicate", func(t *testing.T) {
		testCreateDuplicate(t, newGateway(t))
	})
	t.Run("commit", func(t *testing.T) {
		testCommit(t, newGateway(t))
	})
	t.Run("commit conflict", func(t *testing.T) {
		testCommitConflict(t, newGateway(t))
	})
	t.Run("commit is atomic", func(t *testing.T) {
		testCommitAtomic(t, newGateway(t))
	})
	t.Run("find waiting rooms", func(t *testing.T) {
		testFindWaitingRooms(t, newGateway(t))
	})
}

func testCreateAndGet(t *testing.T, g db.Gateway) {
	ctx := context.Background()
	r, s := NewRecords(t, "r1", room.Amateur, "alice")
	require.NoError(t, g.CreateRoom(ctx, r, s))
	gotRoom, err := g.GetRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, r, *gotRoom)
	gotState, err := g.GetState(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, s, *gotState)
}

func testNotFound(t *testing.T, g db.Gateway) {
	ctx := context.Background()
	_, err := g.GetRoom(ctx, "missing")
	assert.ErrorIs(t, err, db.ErrNotFound)
	_, err = g.GetState(ctx, "missing")
	assert.ErrorIs(t, err, db.ErrNotFound)
	r, s := NewRecords(t, "missing", room.Pro, "alice")
	r.Version++
	s.Version++
	err = g.Commit(ctx, db.Change{Room: &r, State: &s})
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func testCreateDuplicate(t *testing.T, g db.Gateway) {
	ctx := context.Background()
	r, s := NewRecords(t, "r1", room.Amateur, "alice")
	require.NoError(t, g.CreateRoom(ctx, r, s))
	err := g.CreateRoom(ctx, r, s)
	assert.ErrorIs(t, err, db.ErrConflict)
}

func testCommit(t *testing.T, g db.Gateway) {
	ctx := context.Background()
	r, s := NewRecords(t, "r1", room.Micro, "alice")
	require.NoError(t, g.CreateRoom(ctx, r, s))
	r2 := r.Clone()
	require.NoError(t, r2.Join("bob", false, 200))
	r2.Version++
	require.NoError(t, g.Commit(ctx, db.Change{Room: &r2}))
	s2 := s.Clone()
	s2.DiceValue = 6
	s2.History = append(s2.History, game.NewRollEvent(1, 6, 300))
	s2.Version++
	r3 := r2.Clone()
	r3.UpdatedAt = 300
	r3.Version++
	require.NoError(t, g.Commit(ctx, db.Change{Room: &r3, State: &s2}))
	gotRoom, err := g.GetRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, r3, *gotRoom)
	gotState, err := g.GetState(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, s2, *gotState)
}

func testCommitConflict(t *testing.T, g db.Gateway) {
	ctx := context.Background()
	r, s := NewRecords(t, "r1", room.Micro, "alice")
	require.NoError(t, g.CreateRoom(ctx, r, s))
	stale := r.Clone()
	stale.Version = 3
	err := g.Commit(ctx, db.Change{Room: &stale})
	assert.ErrorIs(t, err, db.ErrConflict)
	same := r.Clone()
	err = g.Commit(ctx, db.Change{Room: &same})
	assert.ErrorIs(t, err, db.ErrConflict)
	staleState := s.Clone()
	staleState.Version = 5
	err = g.Commit(ctx, db.Change{State: &staleState})
	assert.ErrorIs(t, err, db.ErrConflict)
}

func testCommitAtomic(t *testing.T, g db.Gateway) {
	ctx := context.Background()
	r, s := NewRecords(t, "r1", room.Micro, "alice")
	require.NoError(t, g.CreateRoom(ctx, r, s))
	r2 := r.Clone()
	r2.UpdatedAt = 999
	r2.Version++
	staleState := s.Clone()
	staleState.Version = 7
	err := g.Commit(ctx, db.Change{Room: &r2, State: &staleState})
	assert.ErrorIs(t, err, db.ErrConflict)
	gotRoom, err := g.GetRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, r, *gotRoom, "room changed by failed commit")
}

func testFindWaitingRooms(t *testing.T, g db.Gateway) {
	ctx := context.Background()
	open, s1 := NewRecords(t, "open", room.Amateur, "a")
	full, s2 := NewRecords(t, "full", room.Amateur, "b")
	for _, id := range []player.ID{"c", "d", "e"} {
		require.NoError(t, full.Join(id, false, 100))
	}
	other, s3 := NewRecords(t, "other", room.Pro, "f")
	cancelled, s4 := NewRecords(t, "cancelled", room.Amateur, "g")
	require.NoError(t, cancelled.Cancel("g", 100))
	require.NoError(t, g.CreateRoom(ctx, open, s1))
	require.NoError(t, g.CreateRoom(ctx, full, s2))
	require.NoError(t, g.CreateRoom(ctx, other, s3))
	require.NoError(t, g.CreateRoom(ctx, cancelled, s4))
	fee, err := room.Amateur.EntryFee()
	require.NoError(t, err)
	got, err := g.FindWaitingRooms(ctx, fee)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, game.ID("open"), got[0].ID)
	got, err = g.FindWaitingRooms(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}
