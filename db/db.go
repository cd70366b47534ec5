// Package db stores rooms and their game states so they survive server restarts and can be shared between servers.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jacobpatterson1549/selene-ludo/game"
	"github.com/jacobpatterson1549/selene-ludo/game/room"
)

type (
	// Gateway stores the room and game state records.
	// Records are versioned: each change must advance the stored version by exactly one.
	Gateway interface {
		// CreateRoom stores a new room and its initial game state together.
		CreateRoom(ctx context.Context, r room.Room, s game.State) error
		// GetRoom reads the room with the id.
		GetRoom(ctx context.Context, id game.ID) (*room.Room, error)
		// GetState reads the game state of the room with the id.
		GetState(ctx context.Context, id game.ID) (*game.State, error)
		// FindWaitingRooms lists the waiting rooms with the entry fee that have free seats, in the natural order of the store.
		FindWaitingRooms(ctx context.Context, entryFee room.Amount) ([]room.Room, error)
		// Commit replaces the records in the change atomically.
		Commit(ctx context.Context, c Change) error
	}

	// Change contains the new versions of the records of a room.  Nil records are not changed.
	Change struct {
		Room  *room.Room
		State *game.State
	}

	// Config contains fields common to all gateways.
	Config struct {
		// QueryPeriod is the amount of time that any database action can take before it should timeout.
		QueryPeriod time.Duration
	}
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a record was changed by another writer, or already exists.
	ErrConflict = errors.New("record changed concurrently")
)

// Validate checks the config.
func (cfg Config) Validate() error {
	if cfg.QueryPeriod <= 0 {
		return fmt.Errorf("positive query period required")
	}
	return nil
}

// ID is the id of the room the records in the change belong to.
func (c Change) ID() (game.ID, error) {
	switch {
	case c.Room == nil && c.State == nil:
		return "", fmt.Errorf("empty change")
	case c.Room != nil && c.State != nil && c.Room.ID != c.State.RoomID:
		return "", fmt.Errorf("room %q and state %q do not match", c.Room.ID, c.State.RoomID)
	case c.Room != nil:
		return c.Room.ID, nil
	}
	return c.State.RoomID, nil
}

// HasFreeSeat determines if the room is waiting for more players.
func HasFreeSeat(r room.Room) bool {
	return r.Status == room.Waiting && !r.Full()
}
