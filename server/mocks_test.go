package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jacobpatterson1549/selene-ludo/game"
	"github.com/jacobpatterson1549/selene-ludo/game/player"
	"github.com/jacobpatterson1549/selene-ludo/game/room"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type (
	// mockTokenizer accepts tokens of the form "token-<playerID>".
	mockTokenizer struct{}

	mockRooms struct {
		CreateRoomFunc func(ctx context.Context, tier room.Tier, creator player.ID) (*room.Room, error)
		MatchmakeFunc  func(ctx context.Context, tier room.Tier, playerID player.ID) (*room.Room, error)
		CancelRoomFunc func(ctx context.Context, id game.ID, playerID player.ID) (*room.Room, error)
		SnapshotFunc   func(ctx context.Context, id game.ID) (*room.Room, *game.State, error)
		NumGamesFunc   func() int
	}

	mockLobby struct {
		RunFunc        func(ctx context.Context)
		AddUserFunc    func(playerID player.ID, w http.ResponseWriter, r *http.Request) error
		NumSocketsFunc func() int
	}
)

func (mockTokenizer) ReadPlayerID(tokenString string) (player.ID, error) {
	const prefix = "token-"
	if len(tokenString) <= len(prefix) || tokenString[:len(prefix)] != prefix {
		return "", errors.New("mock invalid token")
	}
	return player.ID(tokenString[len(prefix):]), nil
}

func (m mockRooms) CreateRoom(ctx context.Context, tier room.Tier, creator player.ID) (*room.Room, error) {
	return m.CreateRoomFunc(ctx, tier, creator)
}

func (m mockRooms) Matchmake(ctx context.Context, tier room.Tier, playerID player.ID) (*room.Room, error) {
	return m.MatchmakeFunc(ctx, tier, playerID)
}

func (m mockRooms) CancelRoom(ctx context.Context, id game.ID, playerID player.ID) (*room.Room, error) {
	return m.CancelRoomFunc(ctx, id, playerID)
}

func (m mockRooms) Snapshot(ctx context.Context, id game.ID) (*room.Room, *game.State, error) {
	return m.SnapshotFunc(ctx, id)
}

func (m mockRooms) NumGames() int {
	return m.NumGamesFunc()
}

func (m mockLobby) Run(ctx context.Context) {
	m.RunFunc(ctx)
}

func (m mockLobby) AddUser(playerID player.ID, w http.ResponseWriter, r *http.Request) error {
	return m.AddUserFunc(playerID, w, r)
}

func (m mockLobby) NumSockets() int {
	return m.NumSocketsFunc()
}
