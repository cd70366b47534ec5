package board

import (
	"math/rand/v2"

	"github.com/jacobpatterson1549/selene-ludo/game/player"
)

// safeSquares are the start and star squares where tokens cannot be captured.
var safeSquares = map[int]struct{}{
	0:  {},
	1:  {},
	9:  {},
	14: {},
	22: {},
	27: {},
	35: {},
	40: {},
	48: {},
}

// RollDice returns a uniformly distributed value from 1 to 6.
// The intN function must return a value in [0,n), math/rand/v2.IntN is used if it is nil.
func RollDice(intN func(n int) int) int {
	if intN == nil {
		intN = rand.IntN
	}
	return intN(6) + 1
}

// IsSafeSquare determines if tokens on the position cannot be captured.
func IsSafeSquare(position int) bool {
	_, ok := safeSquares[position]
	return ok
}

// Target is the position the token would move to with the dice value.
func Target(t Token, dice int) int {
	return t.Position + dice
}

// IsLegalMove determines if the token can move by the dice value.
// A token at home can only leave with an exit roll.  No token can move past the finish.
func IsLegalMove(t Token, dice int) bool {
	if dice < 1 || dice > 6 {
		return false
	}
	if t.Position == HomePosition && dice != ExitRoll {
		return false
	}
	target := Target(t, dice)
	return HomePosition <= target && target <= FinishPosition
}

// HasWon determines if all of the tokens are at the finish.
func HasWon(ts Tokens) bool {
	for _, t := range ts {
		if t.Position != FinishPosition {
			return false
		}
	}
	return true
}

// DetectCapture finds the opposing token sent home when the moving seat lands on the position.
// Safe squares are looked up from the position, never from a token's stored flag.
// The home stretch is private to each seat, so only the shared track captures.
// A seat with more than one token on the square forms a block and cannot be captured.
// Seats are checked in ascending order, so at most one token is captured.
func DetectCapture(position int, b Board, moving player.Seat) (*Capture, bool) {
	if position <= HomePosition || position > TrackEnd || IsSafeSquare(position) {
		return nil, false
	}
	for _, s := range player.Seats() {
		if s == moving {
			continue
		}
		count, tokenIndex := 0, 0
		for i, t := range b[s.Index()] {
			if t.Position == position {
				if count == 0 {
					tokenIndex = i
				}
				count++
			}
		}
		if count == 1 {
			c := Capture{
				Seat:       s,
				TokenIndex: tokenIndex,
			}
			return &c, true
		}
	}
	return nil, false
}
