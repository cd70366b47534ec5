package game

import (
	"fmt"

	"github.com/jacobpatterson1549/selene-ludo/game"
	"github.com/jacobpatterson1549/selene-ludo/game/board"
	"github.com/jacobpatterson1549/selene-ludo/game/player"
	"github.com/jacobpatterson1549/selene-ludo/game/room"
)

// Reasons for skipped turns.
const (
	SkipNoLegalMove = "no legal move"
	SkipMoveLimit   = "move limit reached"
	SkipTimeout     = "turn timed out"

	// defaultMoveLimit is used for rooms that were saved without a move limit.
	defaultMoveLimit = 10
)

// ApplyRoll records the dice value rolled by the seat.
// The turn passes to the next seat after every roll.  The rolling seat must then move a token,
// unless it has no legal move or has spent its move limit, in which case the roll is skipped.
// The room and state are not changed.  Changed copies are returned.
func ApplyRoll(r room.Room, s game.State, seat player.Seat, dice int, now int64) (*room.Room, *game.State, error) {
	if err := checkTurn(r, s, seat, game.AwaitingRoll); err != nil {
		return nil, nil, err
	}
	if dice < 1 || dice > 6 {
		return nil, nil, fmt.Errorf("dice value %v not in [1,6]", dice)
	}
	r2, s2 := r.Clone(), s.Clone()
	s2.DiceValue = dice
	s2.CurrentSeat = seat.Next()
	s2.UpdatedAt = now
	s2.History = append(s2.History, game.NewRollEvent(seat, dice, now))
	switch {
	case moveLimitReached(r, s, seat):
		s2.History = append(s2.History, game.NewSkipEvent(seat, SkipMoveLimit, now))
	case !hasLegalMove(s2, seat):
		s2.History = append(s2.History, game.NewSkipEvent(seat, SkipNoLegalMove, now))
	default:
		s2.Phase = game.AwaitingMove
		s2.MoveSeat = seat
		return &r2, &s2, nil
	}
	if err := endIfMovesSpent(&r2, &s2, now); err != nil {
		return nil, nil, err
	}
	return &r2, &s2, nil
}

// ApplyMove moves the token of the seat that rolled by the dice value, sending home any token it captures.
// The game ends when the seat has all of its tokens at the finish.
// The room and state are not changed.  Changed copies are returned.
func ApplyMove(r room.Room, s game.State, seat player.Seat, m game.Move, now int64) (*room.Room, *game.State, error) {
	if err := checkTurn(r, s, seat, game.AwaitingMove); err != nil {
		return nil, nil, err
	}
	if moveLimitReached(r, s, seat) {
		return nil, nil, game.ErrMoveLimitExceeded
	}
	if m.TokenIndex < 0 || m.TokenIndex >= board.TokensPerSeat {
		return nil, nil, game.ErrInvalidMove
	}
	t := s.Board[seat.Index()][m.TokenIndex]
	if !board.IsLegalMove(t, s.DiceValue) || m.NewPosition != board.Target(t, s.DiceValue) {
		return nil, nil, game.ErrInvalidMove
	}
	r2, s2 := r.Clone(), s.Clone()
	tokens := &s2.Board[seat.Index()]
	tokens[m.TokenIndex] = t.MoveTo(m.NewPosition)
	s2.History = append(s2.History, game.NewMoveEvent(seat, m.TokenIndex, t.Position, m.NewPosition, now))
	if c, ok := board.DetectCapture(m.NewPosition, s.Board, seat); ok {
		captured := &s2.Board[c.Seat.Index()][c.TokenIndex]
		*captured = captured.MoveTo(board.HomePosition)
		s2.History = append(s2.History, game.NewCaptureEvent(seat, c.Seat, c.TokenIndex, now))
	}
	s2.MoveCounts[seat.Index()]++
	s2.Phase = game.AwaitingRoll
	s2.MoveSeat = 0
	s2.UpdatedAt = now
	if board.HasWon(*tokens) {
		if err := finish(&r2, &s2, seat, now); err != nil {
			return nil, nil, err
		}
		return &r2, &s2, nil
	}
	if err := endIfMovesSpent(&r2, &s2, now); err != nil {
		return nil, nil, err
	}
	return &r2, &s2, nil
}

// ApplySkip passes the turn of the seat without a move.
func ApplySkip(r room.Room, s game.State, seat player.Seat, reason string, now int64) (*room.Room, *game.State, error) {
	if err := checkTurn(r, s, seat, s.Phase); err != nil {
		return nil, nil, err
	}
	r2, s2 := r.Clone(), s.Clone()
	if s.Phase == game.AwaitingRoll {
		s2.CurrentSeat = seat.Next()
	}
	s2.Phase = game.AwaitingRoll
	s2.MoveSeat = 0
	s2.UpdatedAt = now
	s2.History = append(s2.History, game.NewSkipEvent(seat, reason, now))
	return &r2, &s2, nil
}

// TurnOwner is the seat that may act next.
func TurnOwner(s game.State) player.Seat {
	if s.Phase == game.AwaitingMove {
		return s.MoveSeat
	}
	return s.CurrentSeat
}

// MoveLimit is the number of moves each seat of the room can make.
func MoveLimit(r room.Room) int {
	if r.Settings.MoveLimit <= 0 {
		return defaultMoveLimit
	}
	return r.Settings.MoveLimit
}

// checkTurn ensures the seat may act in the phase.
func checkTurn(r room.Room, s game.State, seat player.Seat, phase game.Phase) error {
	switch {
	case r.Status != room.Playing, s.Phase == game.GameOver:
		return game.ErrInvalidState
	case !seat.Valid(), seat != TurnOwner(s):
		return game.ErrNotYourTurn
	case s.Phase != phase:
		return game.ErrWrongState
	}
	return nil
}

func moveLimitReached(r room.Room, s game.State, seat player.Seat) bool {
	return s.MoveCount(seat) >= MoveLimit(r)
}

func hasLegalMove(s game.State, seat player.Seat) bool {
	for _, t := range s.Board[seat.Index()] {
		if board.IsLegalMove(t, s.DiceValue) {
			return true
		}
	}
	return false
}

// endIfMovesSpent finishes the game when no seat can move again, awarding it to the seat that progressed the most.
func endIfMovesSpent(r *room.Room, s *game.State, now int64) error {
	for _, seat := range player.Seats() {
		if !moveLimitReached(*r, *s, seat) {
			return nil
		}
	}
	return finish(r, s, leader(*s, 0), now)
}

// finish ends the game, completing the room with the winner and the runner-up.
func finish(r *room.Room, s *game.State, winner player.Seat, now int64) error {
	w, ok := r.Seat(winner)
	if !ok {
		return fmt.Errorf("no player in winning seat %v", winner)
	}
	var runnerUpID player.ID
	if ru, ok := r.Seat(leader(*s, winner)); ok {
		runnerUpID = ru.PlayerID
	}
	if err := r.Complete(w.PlayerID, runnerUpID, now); err != nil {
		return fmt.Errorf("completing room: %w", err)
	}
	s.Phase = game.GameOver
	s.MoveSeat = 0
	s.Winner = winner
	s.UpdatedAt = now
	return nil
}

// leader is the seat with the most progress, other than the excluded seat.  Ties go to the lower seat.
func leader(s game.State, excluded player.Seat) player.Seat {
	var best player.Seat
	bestProgress := -1
	for _, seat := range player.Seats() {
		if seat == excluded {
			continue
		}
		if p := s.Board[seat.Index()].Progress(); p > bestProgress {
			best, bestProgress = seat, p
		}
	}
	return best
}
