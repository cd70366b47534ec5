// Package player identifies the people and bots sitting at a board.
package player

import "strconv"

type (
	// ID uniquely identifies a player.  It is the subject of the player's authentication token.
	ID string

	// Seat is a fixed slot at a board, numbered from 1 to NumSeats in join order.
	Seat int

	// Color is the token color of a seat.
	Color string
)

const (
	// NumSeats is the number of seats at every board.
	NumSeats = 4

	// Red is the color of the first seat.
	Red Color = "red"
	// Green is the color of the second seat.
	Green Color = "green"
	// Yellow is the color of the third seat.
	Yellow Color = "yellow"
	// Blue is the color of the fourth seat.
	Blue Color = "blue"
)

var colors = [NumSeats]Color{Red, Green, Yellow, Blue}

// Valid determines if the seat number is on the board.
func (s Seat) Valid() bool {
	return 1 <= s && s <= NumSeats
}

// Next is the seat that plays after this one.
// Turn order is a fixed round-robin, regardless of who sits in each seat.
func (s Seat) Next() Seat {
	return (s % NumSeats) + 1
}

// Index is the zero-based array index of the seat.
func (s Seat) Index() int {
	return int(s) - 1
}

// Color is the token color of the seat, or an empty string if the seat is invalid.
func (s Seat) Color() Color {
	if !s.Valid() {
		return ""
	}
	return colors[s.Index()]
}

// String returns the display value of the seat.
func (s Seat) String() string {
	return "seat " + strconv.Itoa(int(s))
}

// Seats returns every seat in turn order.
func Seats() []Seat {
	seats := make([]Seat, NumSeats)
	for i := range seats {
		seats[i] = Seat(i + 1)
	}
	return seats
}
