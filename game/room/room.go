// Package room describes the people seated in a game and the money at stake.
package room

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/jacobpatterson1549/selene-ludo/game"
	"github.com/jacobpatterson1549/selene-ludo/game/player"
)

type (
	// Status is the stage of the lifecycle of a room.
	Status string

	// Seat binds a player to a seat number for the duration of a game.
	Seat struct {
		PlayerID player.ID   `json:"playerId"`
		Number   player.Seat `json:"playerNumber"`
		JoinedAt int64       `json:"joinedAt"`
		Ready    bool        `json:"isReady"`
		Bot      bool        `json:"isBot"`
	}

	// Settings are the rules of a room chosen at creation.
	Settings struct {
		// TimeLimit is the number of seconds the game is expected to last.
		TimeLimit   int  `json:"timeLimit"`
		MoveLimit   int  `json:"moveLimit"`
		BotsEnabled bool `json:"botsEnabled"`
		AutoPlay    bool `json:"autoPlay"`
	}

	// Room is the lobby record of a game.
	Room struct {
		ID             game.ID   `json:"id"`
		Code           string    `json:"roomCode"`
		Tier           Tier      `json:"tier"`
		EntryFee       Amount    `json:"entryFee"`
		MaxPlayers     int       `json:"maxPlayers"`
		CurrentPlayers int       `json:"currentPlayers"`
		GameType       string    `json:"gameType"`
		Status         Status    `json:"status"`
		PrizePool      Amount    `json:"prizePool"`
		Commission     Amount    `json:"commission"`
		Winner         player.ID `json:"winner,omitempty"`
		RunnerUp       player.ID `json:"runnerUp,omitempty"`
		WinnerPrize    Amount    `json:"winnerPrize,omitempty"`
		RunnerUpPrize  Amount    `json:"runnerUpPrize,omitempty"`
		Seats          []Seat    `json:"players"`
		Settings       Settings  `json:"gameSettings"`
		CreatedBy      player.ID `json:"createdBy"`
		CreatedAt      int64     `json:"createdAt"`
		UpdatedAt      int64     `json:"updatedAt"`
		// Version is incremented each time the room is saved.
		Version int64 `json:"version"`
	}
)

const (
	// Waiting is the status of a room that is seating players.
	Waiting Status = "waiting"
	// Playing is the status of a full room whose game has started.
	Playing Status = "playing"
	// Completed is the status of a room whose game has a winner.
	Completed Status = "completed"
	// Cancelled is the status of a room that was abandoned before it filled.
	Cancelled Status = "cancelled"

	// MaxPlayers is the capacity of every room.
	MaxPlayers = player.NumSeats
	// ClassicGameType is the only supported board variant.
	ClassicGameType = "classic"
	// DefaultTimeLimit is the number of seconds a game is expected to last.
	DefaultTimeLimit = 600

	codeLength = 6
)

// New creates a waiting room with the creator in the first seat.
func New(id game.ID, code string, tier Tier, creator player.ID, now int64) (*Room, error) {
	fee, err := tier.EntryFee()
	if err != nil {
		return nil, fmt.Errorf("creating room: %w", err)
	}
	prizes := NewPrizes(fee, MaxPlayers)
	r := Room{
		ID:         id,
		Code:       code,
		Tier:       tier,
		EntryFee:   fee,
		MaxPlayers: MaxPlayers,
		GameType:   ClassicGameType,
		Status:     Waiting,
		PrizePool:  prizes.Pool,
		Commission: prizes.Commission,
		Seats:      []Seat{},
		Settings: Settings{
			TimeLimit:   DefaultTimeLimit,
			MoveLimit:   tier.MoveLimit(),
			BotsEnabled: true,
		},
		CreatedBy: creator,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
	if err := r.Join(creator, false, now); err != nil {
		return nil, fmt.Errorf("seating creator: %w", err)
	}
	return &r, nil
}

// NewCode creates a short, uppercase join code.
// The intN function must return a value in [0,n), math/rand/v2.IntN is used if it is nil.
func NewCode(intN func(n int) int) string {
	if intN == nil {
		intN = rand.IntN
	}
	var sb strings.Builder
	for i := 0; i < codeLength; i++ {
		sb.WriteString(strconv.FormatInt(int64(intN(36)), 36))
	}
	return strings.ToUpper(sb.String())
}

// Clone creates a copy of the room that can be changed without changing the original.
func (r Room) Clone() Room {
	r2 := r
	r2.Seats = make([]Seat, len(r.Seats))
	copy(r2.Seats, r.Seats)
	return r2
}

// Full determines if every seat is taken.
func (r Room) Full() bool {
	return r.CurrentPlayers >= r.MaxPlayers
}

// Terminal determines if the room has reached the end of its lifecycle.
func (r Room) Terminal() bool {
	return r.Status == Completed || r.Status == Cancelled
}

// PlayerSeat finds the seat of the player.
func (r Room) PlayerSeat(id player.ID) (*Seat, bool) {
	for i := range r.Seats {
		if r.Seats[i].PlayerID == id {
			return &r.Seats[i], true
		}
	}
	return nil, false
}

// Seat finds the seat with the number.
func (r Room) Seat(number player.Seat) (*Seat, bool) {
	for i := range r.Seats {
		if r.Seats[i].Number == number {
			return &r.Seats[i], true
		}
	}
	return nil, false
}

// Join seats the player in the next free seat.
func (r *Room) Join(id player.ID, bot bool, now int64) error {
	switch {
	case len(id) == 0:
		return fmt.Errorf("player id required")
	case r.hasPlayer(id):
		return game.ErrAlreadyJoined
	case r.Full():
		return game.ErrRoomFull
	case r.Status != Waiting:
		return game.ErrInvalidState
	}
	s := Seat{
		PlayerID: id,
		Number:   player.Seat(len(r.Seats) + 1),
		JoinedAt: now,
		Ready:    bot,
		Bot:      bot,
	}
	r.Seats = append(r.Seats, s)
	r.CurrentPlayers = len(r.Seats)
	r.UpdatedAt = now
	return nil
}

// Start moves a full, waiting room to playing.
func (r *Room) Start(now int64) error {
	if r.Status != Waiting || !r.Full() {
		return game.ErrInvalidState
	}
	r.Status = Playing
	r.UpdatedAt = now
	return nil
}

// Cancel abandons a waiting room.  Only the creator can cancel a room.
func (r *Room) Cancel(by player.ID, now int64) error {
	switch {
	case by != r.CreatedBy:
		return game.ErrNotCreator
	case r.Status != Waiting:
		return game.ErrInvalidState
	}
	r.Status = Cancelled
	r.UpdatedAt = now
	return nil
}

// Complete records the winner and runner-up of a playing room and splits the prize pool between them.
func (r *Room) Complete(winner, runnerUp player.ID, now int64) error {
	if r.Status != Playing {
		return game.ErrInvalidState
	}
	winnerPrize := r.PrizePool * WinnerPercent / 100
	r.Status = Completed
	r.Winner = winner
	r.RunnerUp = runnerUp
	r.WinnerPrize = winnerPrize
	if len(runnerUp) != 0 {
		r.RunnerUpPrize = r.PrizePool - winnerPrize
	}
	r.UpdatedAt = now
	return nil
}

func (r Room) hasPlayer(id player.ID) bool {
	_, ok := r.PlayerSeat(id)
	return ok
}
