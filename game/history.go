package game

import "github.com/jacobpatterson1549/selene-ludo/game/player"

type (
	// EventType tags the variant of a history event.
	EventType string

	// Event is an entry in the append-only history of a game.
	// The fields that are used depend on the type.
	Event struct {
		Type EventType   `json:"type"`
		Seat player.Seat `json:"player"`
		// Value is the dice value of a roll.
		Value      int `json:"value,omitempty"`
		TokenIndex int `json:"tokenIndex"`
		From       int `json:"from,omitempty"`
		To         int `json:"to,omitempty"`
		// CapturedSeat is the seat whose token was sent home by a capture.
		CapturedSeat player.Seat `json:"capturedPlayer,omitempty"`
		// Reason describes why a turn was skipped.
		Reason    string `json:"reason,omitempty"`
		Timestamp int64  `json:"timestamp"`
	}
)

const (
	// RollEvent records a dice roll.
	RollEvent EventType = "roll"
	// MoveEvent records a token moving.
	MoveEvent EventType = "move"
	// CaptureEvent records a token being sent home.
	CaptureEvent EventType = "capture"
	// SkipEvent records a turn that passed without a move.
	SkipEvent EventType = "skip"
)

// NewRollEvent creates a roll event.
func NewRollEvent(seat player.Seat, value int, at int64) Event {
	return Event{Type: RollEvent, Seat: seat, Value: value, Timestamp: at}
}

// NewMoveEvent creates a move event.
func NewMoveEvent(seat player.Seat, tokenIndex, from, to int, at int64) Event {
	return Event{Type: MoveEvent, Seat: seat, TokenIndex: tokenIndex, From: from, To: to, Timestamp: at}
}

// NewCaptureEvent creates a capture event.
func NewCaptureEvent(capturing, captured player.Seat, tokenIndex int, at int64) Event {
	return Event{Type: CaptureEvent, Seat: capturing, CapturedSeat: captured, TokenIndex: tokenIndex, Timestamp: at}
}

// NewSkipEvent creates a skip event.
func NewSkipEvent(seat player.Seat, reason string, at int64) Event {
	return Event{Type: SkipEvent, Seat: seat, Reason: reason, Timestamp: at}
}
