package sql

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"

	"github.com/jacobpatterson1549/selene-ludo/db"
	"github.com/jacobpatterson1549/selene-ludo/game"
	"github.com/jacobpatterson1549/selene-ludo/game/room"
)

// Gateway stores rooms and states as json documents next to the columns used to find and version them.
type Gateway struct {
	Database Database
}

var _ db.Gateway = (*Gateway)(nil)

//go:embed schema/*.sql
var schemaFS embed.FS

// SchemaFiles are the setup queries that create the tables, in order.
func SchemaFiles() ([]io.Reader, error) {
	names, err := fs.Glob(schemaFS, "schema/*.sql")
	if err != nil {
		return nil, fmt.Errorf("listing schema files: %w", err)
	}
	sort.Strings(names)
	files := make([]io.Reader, len(names))
	for i, n := range names {
		f, err := schemaFS.Open(n)
		if err != nil {
			return nil, fmt.Errorf("opening schema file %v: %w", n, err)
		}
		files[i] = f
	}
	return files, nil
}

// NewGateway creates a gateway for the database after creating the tables.
func NewGateway(ctx context.Context, d Database) (*Gateway, error) {
	if err := d.Config.Validate(); err != nil {
		return nil, fmt.Errorf("creating sql gateway: validation: %w", err)
	}
	files, err := SchemaFiles()
	if err != nil {
		return nil, err
	}
	if err := d.Setup(ctx, files); err != nil {
		return nil, fmt.Errorf("setting up sql gateway: %w", err)
	}
	g := Gateway{
		Database: d,
	}
	return &g, nil
}

// CreateRoom inserts the room and state.
func (g Gateway) CreateRoom(ctx context.Context, r room.Room, s game.State) error {
	if r.ID != s.RoomID {
		return fmt.Errorf("creating room: room %q and state %q do not match", r.ID, s.RoomID)
	}
	insertRoom, err := createRoomQuery(r)
	if err != nil {
		return err
	}
	insertState, err := createStateQuery(s)
	if err != nil {
		return err
	}
	if err := g.Database.Exec(ctx, insertRoom, insertState); err != nil {
		if errors.Is(err, errRowsAffected) {
			return fmt.Errorf("creating room %q: %w", r.ID, db.ErrConflict)
		}
		return fmt.Errorf("creating room %q: %w", r.ID, err)
	}
	return nil
}

// GetRoom reads the room.
func (g Gateway) GetRoom(ctx context.Context, id game.ID) (*room.Room, error) {
	q := NewSelect("SELECT doc FROM rooms WHERE id = $1", string(id))
	var r room.Room
	if err := g.get(ctx, q, &r); err != nil {
		return nil, fmt.Errorf("getting room %q: %w", id, err)
	}
	return &r, nil
}

// GetState reads the state.
func (g Gateway) GetState(ctx context.Context, id game.ID) (*game.State, error) {
	q := NewSelect("SELECT doc FROM game_states WHERE room_id = $1", string(id))
	var s game.State
	if err := g.get(ctx, q, &s); err != nil {
		return nil, fmt.Errorf("getting state %q: %w", id, err)
	}
	return &s, nil
}

// FindWaitingRooms lists the open rooms, oldest first.
func (g Gateway) FindWaitingRooms(ctx context.Context, entryFee room.Amount) ([]room.Room, error) {
	q := NewSelect(`SELECT doc FROM rooms
WHERE status = $1 AND entry_fee = $2 AND free_seats > 0
ORDER BY created_at, id`, string(room.Waiting), int64(entryFee))
	rooms := make([]room.Room, 0)
	scan := func(s Scanner) error {
		var doc string
		if err := s.Scan(&doc); err != nil {
			return err
		}
		var r room.Room
		if err := json.Unmarshal([]byte(doc), &r); err != nil {
			return fmt.Errorf("decoding room: %w", err)
		}
		rooms = append(rooms, r)
		return nil
	}
	if err := g.Database.QueryRows(ctx, q, scan); err != nil {
		return nil, fmt.Errorf("finding waiting rooms: %w", err)
	}
	return rooms, nil
}

// Commit updates the records in a transaction, each only if its stored version is one less than the new version.
func (g Gateway) Commit(ctx context.Context, c db.Change) error {
	id, err := c.ID()
	if err != nil {
		return fmt.Errorf("committing change: %w", err)
	}
	var queries []Query
	if c.Room != nil {
		q, err := updateRoomQuery(*c.Room)
		if err != nil {
			return err
		}
		queries = append(queries, q)
	}
	if c.State != nil {
		q, err := updateStateQuery(*c.State)
		if err != nil {
			return err
		}
		queries = append(queries, q)
	}
	if err := g.Database.Exec(ctx, queries...); err != nil {
		if errors.Is(err, errRowsAffected) {
			if _, err2 := g.GetRoom(ctx, id); errors.Is(err2, db.ErrNotFound) {
				return fmt.Errorf("committing change to %q: %w", id, db.ErrNotFound)
			}
			return fmt.Errorf("committing change to %q: %w", id, db.ErrConflict)
		}
		return fmt.Errorf("committing change to %q: %w", id, err)
	}
	return nil
}

func (g Gateway) get(ctx context.Context, q Query, dest interface{}) error {
	var doc string
	if err := g.Database.Query(ctx, q, &doc); err != nil {
		if errors.Is(err, ErrNoRows) {
			return db.ErrNotFound
		}
		return err
	}
	if err := json.Unmarshal([]byte(doc), dest); err != nil {
		return fmt.Errorf("decoding document: %w", err)
	}
	return nil
}

func createRoomQuery(r room.Room) (Update, error) {
	args, err := roomArgs(r)
	if err != nil {
		return Update{}, err
	}
	args = append(args, r.CreatedAt)
	cmd := `INSERT INTO rooms (id, version, status, entry_fee, free_seats, doc, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING`
	return NewUpdate("room_create", cmd, args...), nil
}

func updateRoomQuery(r room.Room) (Update, error) {
	args, err := roomArgs(r)
	if err != nil {
		return Update{}, err
	}
	args = append(args, r.Version-1)
	cmd := `UPDATE rooms
SET version = $2, status = $3, entry_fee = $4, free_seats = $5, doc = $6
WHERE id = $1 AND version = $7`
	return NewUpdate("room_update", cmd, args...), nil
}

func createStateQuery(s game.State) (Update, error) {
	args, err := stateArgs(s)
	if err != nil {
		return Update{}, err
	}
	cmd := `INSERT INTO game_states (room_id, version, doc)
VALUES ($1, $2, $3)
ON CONFLICT (room_id) DO NOTHING`
	return NewUpdate("game_state_create", cmd, args...), nil
}

func updateStateQuery(s game.State) (Update, error) {
	args, err := stateArgs(s)
	if err != nil {
		return Update{}, err
	}
	args = append(args, s.Version-1)
	cmd := `UPDATE game_states
SET version = $2, doc = $3
WHERE room_id = $1 AND version = $4`
	return NewUpdate("game_state_update", cmd, args...), nil
}

// roomArgs are the id, version, status, entry fee, free seats, and document of the room.
func roomArgs(r room.Room) ([]interface{}, error) {
	doc, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encoding room: %w", err)
	}
	freeSeats := 0
	if db.HasFreeSeat(r) {
		freeSeats = r.MaxPlayers - r.CurrentPlayers
	}
	args := []interface{}{string(r.ID), r.Version, string(r.Status), int64(r.EntryFee), freeSeats, string(doc)}
	return args, nil
}

// stateArgs are the room id, version, and document of the state.
func stateArgs(s game.State) ([]interface{}, error) {
	doc, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding state: %w", err)
	}
	args := []interface{}{string(s.RoomID), s.Version, string(doc)}
	return args, nil
}
