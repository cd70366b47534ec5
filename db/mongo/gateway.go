// Package mongo implements a db.Gateway for mongodb.
// Commits use multi-document transactions, so the server must be a replica set.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jacobpatterson1549/selene-ludo/db"
	"github.com/jacobpatterson1549/selene-ludo/game"
	"github.com/jacobpatterson1549/selene-ludo/game/room"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	databaseName     = "selene-ludo-db"
	roomsCollection  = "rooms"
	statesCollection = "game_states"
	idField          = "_id"
	versionField     = "version"
	statusField      = "status"
	entryFeeField    = "entryFee"
	freeSeatsField   = "freeSeats"
	createdAtField   = "createdAt"
)

type (
	// Gateway stores rooms and states in two collections.
	Gateway struct {
		client *mongo.Client
		Rooms  *mongo.Collection
		States *mongo.Collection
		db.Config
	}

	roomDocument struct {
		ID        string    `bson:"_id"`
		Version   int64     `bson:"version"`
		Status    string    `bson:"status"`
		EntryFee  int64     `bson:"entryFee"`
		FreeSeats int       `bson:"freeSeats"`
		CreatedAt int64     `bson:"createdAt"`
		Room      room.Room `bson:"room"`
	}

	stateDocument struct {
		ID      string     `bson:"_id"`
		Version int64      `bson:"version"`
		State   game.State `bson:"state"`
	}
)

var _ db.Gateway = (*Gateway)(nil)

// NewGateway connects to the database and creates the index used to find waiting rooms.
func NewGateway(ctx context.Context, cfg db.Config, databaseURL string) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("creating mongo gateway: validation: %w", err)
	}
	clientOptions := options.Client()
	clientOptions.ApplyURI(databaseURL)
	connectCtx, cancelFunc := context.WithTimeout(ctx, cfg.QueryPeriod)
	defer cancelFunc()
	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	database := client.Database(databaseName)
	g := Gateway{
		client: client,
		Rooms:  database.Collection(roomsCollection),
		States: database.Collection(statesCollection),
		Config: cfg,
	}
	if err := g.setup(ctx); err != nil {
		return nil, err
	}
	return &g, nil
}

func (g *Gateway) setup(ctx context.Context) error {
	model := mongo.IndexModel{
		Keys: d(
			e(statusField, 1),
			e(entryFeeField, 1),
			e(createdAtField, 1),
		),
	}
	ctx, cancelFunc := context.WithTimeout(ctx, g.QueryPeriod)
	defer cancelFunc()
	if _, err := g.Rooms.Indexes().CreateOne(ctx, model); err != nil {
		return fmt.Errorf("creating waiting rooms index: %w", err)
	}
	return nil
}

// Close disconnects from the database.
func (g *Gateway) Close(ctx context.Context) error {
	return g.client.Disconnect(ctx)
}

// CreateRoom inserts the room and state in a transaction.
func (g *Gateway) CreateRoom(ctx context.Context, r room.Room, s game.State) error {
	if r.ID != s.RoomID {
		return fmt.Errorf("creating room: room %q and state %q do not match", r.ID, s.RoomID)
	}
	err := g.transaction(ctx, func(sc mongo.SessionContext) error {
		if _, err := g.Rooms.InsertOne(sc, newRoomDocument(r)); err != nil {
			return err
		}
		if _, err := g.States.InsertOne(sc, newStateDocument(s)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("creating room %q: %w", r.ID, db.ErrConflict)
		}
		return fmt.Errorf("creating room %q: %w", r.ID, err)
	}
	return nil
}

// GetRoom reads the room.
func (g *Gateway) GetRoom(ctx context.Context, id game.ID) (*room.Room, error) {
	var doc roomDocument
	if err := g.findOne(ctx, g.Rooms, id, &doc); err != nil {
		return nil, fmt.Errorf("getting room %q: %w", id, err)
	}
	return &doc.Room, nil
}

// GetState reads the state.
func (g *Gateway) GetState(ctx context.Context, id game.ID) (*game.State, error) {
	var doc stateDocument
	if err := g.findOne(ctx, g.States, id, &doc); err != nil {
		return nil, fmt.Errorf("getting state %q: %w", id, err)
	}
	return &doc.State, nil
}

// FindWaitingRooms lists the open rooms, oldest first.
func (g *Gateway) FindWaitingRooms(ctx context.Context, entryFee room.Amount) ([]room.Room, error) {
	filter := d(
		e(statusField, string(room.Waiting)),
		e(entryFeeField, int64(entryFee)),
		e(freeSeatsField, d(e("$gt", 0))),
	)
	findOptions := options.Find()
	findOptions.SetSort(d(e(createdAtField, 1), e(idField, 1)))
	ctx, cancelFunc := context.WithTimeout(ctx, g.QueryPeriod)
	defer cancelFunc()
	cursor, err := g.Rooms.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("finding waiting rooms: %w", err)
	}
	var docs []roomDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("reading waiting rooms: %w", err)
	}
	rooms := make([]room.Room, len(docs))
	for i, doc := range docs {
		rooms[i] = doc.Room
	}
	return rooms, nil
}

// Commit replaces the records in a transaction, each only if its stored version is one less than the new version.
func (g *Gateway) Commit(ctx context.Context, c db.Change) error {
	id, err := c.ID()
	if err != nil {
		return fmt.Errorf("committing change: %w", err)
	}
	err = g.transaction(ctx, func(sc mongo.SessionContext) error {
		if c.Room != nil {
			if err := replace(sc, g.Rooms, id, c.Room.Version, newRoomDocument(*c.Room)); err != nil {
				return err
			}
		}
		if c.State != nil {
			if err := replace(sc, g.States, id, c.State.Version, newStateDocument(*c.State)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("committing change to %q: %w", id, err)
	}
	return nil
}

// replace swaps the document if the stored version precedes the new version.
func replace(ctx context.Context, c *mongo.Collection, id game.ID, version int64, doc interface{}) error {
	filter := d(
		e(idField, string(id)),
		e(versionField, version-1),
	)
	result, err := c.ReplaceOne(ctx, filter, doc)
	if err != nil {
		return err
	}
	if result.MatchedCount == 1 {
		return nil
	}
	n, err := c.CountDocuments(ctx, d(e(idField, string(id))))
	switch {
	case err != nil:
		return err
	case n == 0:
		return db.ErrNotFound
	}
	return db.ErrConflict
}

func (g *Gateway) findOne(ctx context.Context, c *mongo.Collection, id game.ID, dest interface{}) error {
	filter := d(e(idField, string(id)))
	ctx, cancelFunc := context.WithTimeout(ctx, g.QueryPeriod)
	defer cancelFunc()
	if err := c.FindOne(ctx, filter).Decode(dest); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return db.ErrNotFound
		}
		return err
	}
	return nil
}

// transaction runs the function in a multi-document transaction that is aborted if it returns an error.
func (g *Gateway) transaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	ctx, cancelFunc := context.WithTimeout(ctx, g.QueryPeriod)
	defer cancelFunc()
	session, err := g.client.StartSession()
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	defer session.EndSession(ctx)
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func newRoomDocument(r room.Room) roomDocument {
	freeSeats := 0
	if db.HasFreeSeat(r) {
		freeSeats = r.MaxPlayers - r.CurrentPlayers
	}
	doc := roomDocument{
		ID:        string(r.ID),
		Version:   r.Version,
		Status:    string(r.Status),
		EntryFee:  int64(r.EntryFee),
		FreeSeats: freeSeats,
		CreatedAt: r.CreatedAt,
		Room:      r,
	}
	return doc
}

func newStateDocument(s game.State) stateDocument {
	doc := stateDocument{
		ID:      string(s.RoomID),
		Version: s.Version,
		State:   s,
	}
	return doc
}

// d is a helper function to create bson.D elements.
func d(e ...bson.E) bson.D {
	return bson.D(e)
}

// e is a helper function to create bson.E elements.
func e(key string, value interface{}) bson.E {
	return bson.E{Key: key, Value: value}
}
