// Package firestore use a google cloud firestore database.
package firestore

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/jacobpatterson1549/selene-ludo/db"
	"github.com/jacobpatterson1549/selene-ludo/game"
	"github.com/jacobpatterson1549/selene-ludo/game/room"
	"google.golang.org/api/iterator"
)

const (
	versionField   = "version"
	statusField    = "status"
	entryFeeField  = "entryFee"
	freeSeatsField = "freeSeats"
	createdAtField = "createdAt"
	docField       = "doc"
)

// Gateway stores rooms and states as json strings in documents of two collections.
// The fields used to find waiting rooms are copied next to the json.
// Finding waiting rooms needs a composite index on status, entryFee, freeSeats, and createdAt.
type Gateway struct {
	client *firestore.Client
	db.Config
}

var _ db.Gateway = (*Gateway)(nil)

// NewGateway creates a gateway for the project.
func NewGateway(ctx context.Context, cfg db.Config, projectID string) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("creating firestore gateway: validation: %w", err)
	}
	client, err := firestore.NewClient(ctx, projectID) // do not timeout context - the client is used by the gateway
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	g := Gateway{
		client: client,
		Config: cfg,
	}
	return &g, nil
}

// Close closes the client.
func (g *Gateway) Close() error {
	return g.client.Close()
}

func (g *Gateway) service() *firestore.DocumentRef {
	return g.client.Collection("services").Doc("selene-ludo")
}

func (g *Gateway) rooms() *firestore.CollectionRef {
	return g.service().Collection("rooms")
}

func (g *Gateway) states() *firestore.CollectionRef {
	return g.service().Collection("game_states")
}

// withTimeoutContext configures the context to timeout when running the function.
func (g *Gateway) withTimeoutContext(ctx context.Context, f func(ctx context.Context) error) error {
	ctx, cancelFunc := context.WithTimeout(ctx, g.QueryPeriod)
	defer cancelFunc()
	return f(ctx)
}

// CreateRoom creates the room and state documents in a transaction.
func (g *Gateway) CreateRoom(ctx context.Context, r room.Room, s game.State) error {
	if r.ID != s.RoomID {
		return fmt.Errorf("creating room: room %q and state %q do not match", r.ID, s.RoomID)
	}
	roomData, err := roomFields(r)
	if err != nil {
		return err
	}
	stateData, err := stateFields(s)
	if err != nil {
		return err
	}
	if err := g.withTimeoutContext(ctx, func(ctx context.Context) error {
		roomRef := g.rooms().Doc(string(r.ID))
		stateRef := g.states().Doc(string(s.RoomID))
		return g.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			snapshot, err := tx.Get(roomRef)
			switch {
			case err == nil:
				return db.ErrConflict
			case snapshot == nil, snapshot.Exists():
				return err
			}
			if err := tx.Create(roomRef, roomData); err != nil {
				return err
			}
			return tx.Create(stateRef, stateData)
		})
	}); err != nil {
		return fmt.Errorf("creating room %q: %w", r.ID, err)
	}
	return nil
}

// GetRoom reads the room.
func (g *Gateway) GetRoom(ctx context.Context, id game.ID) (*room.Room, error) {
	var r room.Room
	if err := g.get(ctx, g.rooms().Doc(string(id)), &r); err != nil {
		return nil, fmt.Errorf("getting room %q: %w", id, err)
	}
	return &r, nil
}

// GetState reads the state.
func (g *Gateway) GetState(ctx context.Context, id game.ID) (*game.State, error) {
	var s game.State
	if err := g.get(ctx, g.states().Doc(string(id)), &s); err != nil {
		return nil, fmt.Errorf("getting state %q: %w", id, err)
	}
	return &s, nil
}

// FindWaitingRooms lists the open rooms, oldest first.
func (g *Gateway) FindWaitingRooms(ctx context.Context, entryFee room.Amount) ([]room.Room, error) {
	rooms := make([]room.Room, 0)
	if err := g.withTimeoutContext(ctx, func(ctx context.Context) error {
		q := g.rooms().
			Where(statusField, "==", string(room.Waiting)).
			Where(entryFeeField, "==", int64(entryFee)).
			Where(freeSeatsField, ">", 0).
			OrderBy(freeSeatsField, firestore.Asc).
			OrderBy(createdAtField, firestore.Asc)
		iter := q.Documents(ctx)
		defer iter.Stop()
		for {
			snapshot, err := iter.Next()
			if err == iterator.Done {
				return nil
			}
			if err != nil {
				return err
			}
			var r room.Room
			if err := decode(snapshot, &r); err != nil {
				return err
			}
			rooms = append(rooms, r)
		}
	}); err != nil {
		return nil, fmt.Errorf("finding waiting rooms: %w", err)
	}
	return rooms, nil
}

// Commit replaces the documents in a transaction, each only if its stored version is one less than the new version.
func (g *Gateway) Commit(ctx context.Context, c db.Change) error {
	id, err := c.ID()
	if err != nil {
		return fmt.Errorf("committing change: %w", err)
	}
	type write struct {
		ref     *firestore.DocumentRef
		version int64
		data    map[string]interface{}
	}
	var writes []write
	if c.Room != nil {
		data, err := roomFields(*c.Room)
		if err != nil {
			return err
		}
		writes = append(writes, write{g.rooms().Doc(string(id)), c.Room.Version, data})
	}
	if c.State != nil {
		data, err := stateFields(*c.State)
		if err != nil {
			return err
		}
		writes = append(writes, write{g.states().Doc(string(id)), c.State.Version, data})
	}
	if err := g.withTimeoutContext(ctx, func(ctx context.Context) error {
		return g.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			for _, w := range writes {
				snapshot, err := tx.Get(w.ref)
				if err != nil {
					if snapshot != nil && !snapshot.Exists() {
						return db.ErrNotFound
					}
					return err
				}
				stored, err := snapshot.DataAt(versionField)
				if err != nil {
					return err
				}
				if v, ok := stored.(int64); !ok || v != w.version-1 {
					return db.ErrConflict
				}
			}
			for _, w := range writes {
				if err := tx.Set(w.ref, w.data); err != nil {
					return err
				}
			}
			return nil
		})
	}); err != nil {
		return fmt.Errorf("committing change to %q: %w", id, err)
	}
	return nil
}

func (g *Gateway) get(ctx context.Context, ref *firestore.DocumentRef, dest interface{}) error {
	return g.withTimeoutContext(ctx, func(ctx context.Context) error {
		snapshot, err := ref.Get(ctx)
		if err != nil {
			if snapshot != nil && !snapshot.Exists() {
				return db.ErrNotFound
			}
			return err
		}
		return decode(snapshot, dest)
	})
}

func decode(snapshot *firestore.DocumentSnapshot, dest interface{}) error {
	doc, err := snapshot.DataAt(docField)
	if err != nil {
		return err
	}
	text, ok := doc.(string)
	if !ok {
		return fmt.Errorf("wanted %v field to be a string, got %T", docField, doc)
	}
	if err := json.Unmarshal([]byte(text), dest); err != nil {
		return fmt.Errorf("decoding document: %w", err)
	}
	return nil
}

func roomFields(r room.Room) (map[string]interface{}, error) {
	doc, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encoding room: %w", err)
	}
	freeSeats := 0
	if db.HasFreeSeat(r) {
		freeSeats = r.MaxPlayers - r.CurrentPlayers
	}
	m := map[string]interface{}{
		versionField:   r.Version,
		statusField:    string(r.Status),
		entryFeeField:  int64(r.EntryFee),
		freeSeatsField: freeSeats,
		createdAtField: r.CreatedAt,
		docField:       string(doc),
	}
	return m, nil
}

func stateFields(s game.State) (map[string]interface{}, error) {
	doc, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding state: %w", err)
	}
	m := map[string]interface{}{
		versionField: s.Version,
		docField:     string(doc),
	}
	return m, nil
}
