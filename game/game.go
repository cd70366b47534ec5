// Package game contains the state of a board shared by the room authority, the bot, and the clients.
package game

import (
	"github.com/jacobpatterson1549/selene-ludo/game/board"
	"github.com/jacobpatterson1549/selene-ludo/game/player"
)

type (
	// ID is the id of a game.  Each room has exactly one game, so it is also the id of the room.
	ID string

	// Move is a request to move a token of a seat to a new position.
	Move struct {
		TokenIndex  int `json:"tokenIndex"`
		NewPosition int `json:"newPosition"`
	}

	// Phase is the step of the turn the game is waiting for.
	Phase string

	// State is the authoritative state of the board of a room.
	State struct {
		RoomID ID `json:"roomId"`
		// CurrentSeat is the seat that may roll next.
		CurrentSeat player.Seat `json:"currentPlayer"`
		// DiceValue is the last value rolled, zero before the first roll.
		DiceValue int   `json:"diceValue"`
		Phase     Phase `json:"phase"`
		// MoveSeat is the seat that rolled and must move a token by the dice value when the phase is AwaitingMove.
		MoveSeat   player.Seat           `json:"moveSeat,omitempty"`
		MoveCounts [player.NumSeats]int `json:"moveCounts"`
		Board      board.Board           `json:"board"`
		History    []Event               `json:"history"`
		Winner     player.Seat           `json:"winner,omitempty"`
		StartedAt  int64                 `json:"startedAt,omitempty"`
		UpdatedAt  int64                 `json:"updatedAt"`
		// Version is incremented each time the state is saved.
		Version int64 `json:"version"`
	}
)

const (
	// AwaitingRoll is the phase where the current seat must roll the dice.
	AwaitingRoll Phase = "awaitingRoll"
	// AwaitingMove is the phase where the seat that rolled must move a token.
	AwaitingMove Phase = "awaitingMove"
	// GameOver is the terminal phase.
	GameOver Phase = "gameOver"
)

// NewState creates the state for a new room with all tokens at home, waiting for the first seat to roll.
func NewState(roomID ID, now int64) State {
	s := State{
		RoomID:      roomID,
		CurrentSeat: 1,
		Phase:       AwaitingRoll,
		Board:       board.New(),
		History:     []Event{},
		UpdatedAt:   now,
		Version:     1,
	}
	return s
}

// Clone creates a deep copy of the state that can be changed without changing the original.
func (s State) Clone() State {
	s2 := s
	s2.History = make([]Event, len(s.History))
	copy(s2.History, s.History)
	return s2
}

// MoveCount is the number of moves the seat has made.
func (s State) MoveCount(seat player.Seat) int {
	if !seat.Valid() {
		return 0
	}
	return s.MoveCounts[seat.Index()]
}
