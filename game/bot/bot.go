// Package bot picks moves for seats that are not played by people.
package bot

import (
	"github.com/jacobpatterson1549/selene-ludo/game"
	"github.com/jacobpatterson1549/selene-ludo/game/board"
	"github.com/jacobpatterson1549/selene-ludo/game/player"
)

// Scores of move features.  The move with the highest total is chosen.
const (
	CaptureScore    = 100
	SafeSquareScore = 50
	NearFinishScore = 25
	HomeExitScore   = 10

	nearFinishPosition = 50
)

// SelectMove picks the best move for the seat with the dice value of the state.
// Ties go to the lowest token index.  False is returned if the seat has no legal move.
func SelectMove(s game.State, seat player.Seat) (*game.Move, bool) {
	if !seat.Valid() {
		return nil, false
	}
	var best *game.Move
	bestScore := -1
	for i, t := range s.Board[seat.Index()] {
		if !board.IsLegalMove(t, s.DiceValue) {
			continue
		}
		target := board.Target(t, s.DiceValue)
		if score := Score(s.Board, seat, t, s.DiceValue); score > bestScore {
			best = &game.Move{
				TokenIndex:  i,
				NewPosition: target,
			}
			bestScore = score
		}
	}
	return best, best != nil
}

// Score rates moving the token of the seat by the dice value.
func Score(b board.Board, seat player.Seat, t board.Token, dice int) int {
	target := board.Target(t, dice)
	score := 0
	if _, ok := board.DetectCapture(target, b, seat); ok {
		score += CaptureScore
	}
	if board.IsSafeSquare(target) {
		score += SafeSquareScore
	}
	if target > nearFinishPosition {
		score += NearFinishScore
	}
	if t.Position == board.HomePosition && dice == board.ExitRoll {
		score += HomeExitScore
	}
	return score
}
