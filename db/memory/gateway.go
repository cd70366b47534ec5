// Package memory implements a db.Gateway that keeps records in memory.
// Records are lost when the server stops.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/jacobpatterson1549/selene-ludo/db"
	"github.com/jacobpatterson1549/selene-ludo/game"
	"github.com/jacobpatterson1549/selene-ludo/game/room"
)

// Gateway stores records in maps.
type Gateway struct {
	mu     sync.RWMutex
	order  []game.ID
	rooms  map[game.ID]room.Room
	states map[game.ID]game.State
}

var _ db.Gateway = (*Gateway)(nil)

// NewGateway creates an empty gateway.
func NewGateway() *Gateway {
	g := Gateway{
		rooms:  make(map[game.ID]room.Room),
		states: make(map[game.ID]game.State),
	}
	return &g
}

// CreateRoom stores the room and state.
func (g *Gateway) CreateRoom(ctx context.Context, r room.Room, s game.State) error {
	if r.ID != s.RoomID {
		return fmt.Errorf("creating room: room %q and state %q do not match", r.ID, s.RoomID)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.rooms[r.ID]; ok {
		return fmt.Errorf("creating room %q: %w", r.ID, db.ErrConflict)
	}
	g.order = append(g.order, r.ID)
	g.rooms[r.ID] = r.Clone()
	g.states[r.ID] = s.Clone()
	return nil
}

// GetRoom reads a copy of the room.
func (g *Gateway) GetRoom(ctx context.Context, id game.ID) (*room.Room, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[id]
	if !ok {
		return nil, fmt.Errorf("getting room %q: %w", id, db.ErrNotFound)
	}
	r = r.Clone()
	return &r, nil
}

// GetState reads a copy of the state.
func (g *Gateway) GetState(ctx context.Context, id game.ID) (*game.State, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.states[id]
	if !ok {
		return nil, fmt.Errorf("getting state %q: %w", id, db.ErrNotFound)
	}
	s = s.Clone()
	return &s, nil
}

// FindWaitingRooms lists the open rooms in the order they were created.
func (g *Gateway) FindWaitingRooms(ctx context.Context, entryFee room.Amount) ([]room.Room, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rooms := make([]room.Room, 0)
	for _, id := range g.order {
		r := g.rooms[id]
		if r.EntryFee == entryFee && db.HasFreeSeat(r) {
			rooms = append(rooms, r.Clone())
		}
	}
	return rooms, nil
}

// Commit replaces the records if their versions follow the stored versions.
func (g *Gateway) Commit(ctx context.Context, c db.Change) error {
	id, err := c.ID()
	if err != nil {
		return fmt.Errorf("committing change: %w", err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if c.Room != nil {
		r, ok := g.rooms[id]
		if err := checkVersion(ok, r.Version, c.Room.Version); err != nil {
			return fmt.Errorf("committing room %q: %w", id, err)
		}
	}
	if c.State != nil {
		s, ok := g.states[id]
		if err := checkVersion(ok, s.Version, c.State.Version); err != nil {
			return fmt.Errorf("committing state %q: %w", id, err)
		}
	}
	if c.Room != nil {
		g.rooms[id] = c.Room.Clone()
	}
	if c.State != nil {
		g.states[id] = c.State.Clone()
	}
	return nil
}

func checkVersion(found bool, stored, next int64) error {
	switch {
	case !found:
		return db.ErrNotFound
	case next != stored+1:
		return db.ErrConflict
	}
	return nil
}
