// Package message contains structures to pass between the clients and the server.
package message

import (
	"fmt"

	"github.com/jacobpatterson1549/selene-ludo/game"
	"github.com/jacobpatterson1549/selene-ludo/game/player"
	"github.com/jacobpatterson1549/selene-ludo/game/room"
)

type (
	// Type represents the purpose of a message.
	Type string

	// Message contains information to or from a socket for a room.
	Message struct {
		// Type is the purpose of the message.
		Type   Type    `json:"type"`
		RoomID game.ID `json:"roomId,omitempty"`
		// PlayerID is the player the client claims to be when rolling.
		PlayerID player.ID `json:"playerId,omitempty"`
		// Move is the token move requested by a client.
		Move *game.Move `json:"move,omitempty"`
		// GameState is the authoritative state of the board.
		GameState *game.State `json:"gameState,omitempty"`
		// Room is the authoritative state of the seats.
		Room *room.Room `json:"room,omitempty"`
		// Winner is the player who won the game.
		Winner player.ID `json:"winner,omitempty"`
		// Info is a message to show to the player.
		Info string `json:"message,omitempty"`
		// Addr is the socket remote address text the message is from.
		Addr Addr `json:"-"`
	}

	// Addr identifies the source of a message.
	Addr string
)

const (
	// JoinRoom is sent by clients to take a seat in a room or to resume watching it.
	JoinRoom Type = "joinRoom"
	// RollDice is sent by clients to roll the dice on their turn.
	RollDice Type = "rollDice"
	// MoveToken is sent by clients to move a token by the value they rolled.
	MoveToken Type = "moveToken"
	// UpdateGameState is broadcast by the server to every subscriber of a room after each change.
	UpdateGameState Type = "updateGameState"
	// RoomFull is broadcast by the server when the last seat of a room is taken and the game starts.
	RoomFull Type = "roomFull"
	// GameOver is broadcast by the server when a player wins.
	GameOver Type = "gameOver"
	// Error is sent privately by the server when a request is rejected.
	Error Type = "error"
)

// NewState creates a message to broadcast the room and state.
func NewState(r room.Room, s game.State) Message {
	m := Message{
		Type:      UpdateGameState,
		RoomID:    r.ID,
		GameState: &s,
		Room:      &r,
	}
	return m
}

// NewRoomFull creates a message to broadcast that the room is full.
func NewRoomFull(id game.ID) Message {
	m := Message{
		Type:   RoomFull,
		RoomID: id,
	}
	return m
}

// NewGameOver creates a message to broadcast the winner of the room.
func NewGameOver(id game.ID, winner player.ID) Message {
	m := Message{
		Type:   GameOver,
		RoomID: id,
		Winner: winner,
	}
	return m
}

// NewError creates a private message for a rejected request.
func NewError(id game.ID, err error) Message {
	m := Message{
		Type:   Error,
		RoomID: id,
		Info:   err.Error(),
	}
	return m
}

// String returns a short description of the message for logging.
func (m Message) String() string {
	return fmt.Sprintf("{%v room:%q addr:%q}", m.Type, m.RoomID, m.Addr)
}
