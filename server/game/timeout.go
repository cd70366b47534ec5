package game

import (
	"github.com/jacobpatterson1549/selene-ludo/game"
	"github.com/jacobpatterson1549/selene-ludo/game/bot"
	"github.com/jacobpatterson1549/selene-ludo/game/room"
)

type (
	// TimeoutPolicy decides what happens to a seat played by a person that does not act within the turn timeout.
	TimeoutPolicy interface {
		// TurnTimedOut is the action to apply for the seat that owns the turn.  False is returned to keep waiting.
		TurnTimedOut(r room.Room, s game.State) (*Action, bool)
	}

	// Action is something a seat can do on its turn.
	Action struct {
		Type ActionType
		// Move is the token to move for move actions.
		Move game.Move
		// Reason is why the turn is skipped for skip actions.
		Reason string
	}

	// ActionType is the kind of an action.
	ActionType int

	// AutoPlayPolicy plays the move the bot would choose for the idle seat.
	AutoPlayPolicy struct{}

	// SkipPolicy passes the turn of the idle seat.
	SkipPolicy struct{}
)

const (
	// RollAction rolls the dice.
	RollAction ActionType = iota + 1
	// MoveAction moves a token.
	MoveAction
	// SkipAction passes the turn.
	SkipAction
)

// TurnTimedOut rolls or moves for the seat.
func (AutoPlayPolicy) TurnTimedOut(r room.Room, s game.State) (*Action, bool) {
	return BotAction(s), true
}

// TurnTimedOut skips the turn of the seat.
func (SkipPolicy) TurnTimedOut(r room.Room, s game.State) (*Action, bool) {
	a := Action{
		Type:   SkipAction,
		Reason: SkipTimeout,
	}
	return &a, true
}

// BotAction is what a bot does with the turn it owns: roll when waiting to roll, otherwise move the best token.
func BotAction(s game.State) *Action {
	if s.Phase != game.AwaitingMove {
		return &Action{Type: RollAction}
	}
	m, ok := bot.SelectMove(s, s.MoveSeat)
	if !ok {
		return &Action{Type: SkipAction, Reason: SkipNoLegalMove}
	}
	a := Action{
		Type: MoveAction,
		Move: *m,
	}
	return &a
}
