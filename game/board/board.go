// Package board stores the tokens of each seat and the pure rules for moving them.
package board

import (
	"fmt"

	"github.com/jacobpatterson1549/selene-ludo/game/player"
)

type (
	// Token is one of the four pieces a seat races around the track.
	Token struct {
		Color    player.Color `json:"color"`
		Position int          `json:"position"`
		Home     bool         `json:"isHome"`
		Safe     bool         `json:"isSafe"`
	}

	// Tokens are the pieces of a single seat, indexed by token number.
	Tokens [TokensPerSeat]Token

	// Board holds the tokens of every seat, indexed by seat.Index().
	Board [player.NumSeats]Tokens

	// Capture identifies a token that is sent back home.
	Capture struct {
		Seat       player.Seat `json:"seat"`
		TokenIndex int         `json:"tokenIndex"`
	}
)

const (
	// TokensPerSeat is the number of tokens each seat owns.
	TokensPerSeat = 4
	// HomePosition is where tokens wait before entering the track.
	HomePosition = 0
	// TrackEnd is the last square of the shared track.  Higher positions are the private home stretch.
	TrackEnd = 51
	// FinishPosition is the last square of the home stretch.
	FinishPosition = 56
	// ExitRoll is the only dice value that moves a token out of home.
	ExitRoll = 6
)

// New creates a board with every token at home.
func New() Board {
	var b Board
	for _, s := range player.Seats() {
		for i := range b[s.Index()] {
			b[s.Index()][i] = Token{
				Color:    s.Color(),
				Position: HomePosition,
				Home:     true,
			}
		}
	}
	return b
}

// Tokens returns the tokens of the seat.
func (b *Board) Tokens(s player.Seat) (*Tokens, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%v is not on the board", s)
	}
	return &b[s.Index()], nil
}

// MoveTo returns a copy of the token at the position with its flags derived from the position.
func (t Token) MoveTo(position int) Token {
	t.Position = position
	t.Home = position == HomePosition
	t.Safe = !t.Home && IsSafeSquare(position)
	return t
}

// Progress is the sum of the positions of the tokens.
func (ts Tokens) Progress() int {
	sum := 0
	for _, t := range ts {
		sum += t.Position
	}
	return sum
}
