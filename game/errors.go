package game

// Warning is an error caused by a player request that leaves the game unchanged.
// Warnings are sent only to the player who made the request.
type Warning string

const (
	// ErrRoomFull is returned when joining a room that has no free seats.
	ErrRoomFull Warning = "room is full"
	// ErrAlreadyJoined is returned when a player tries to take a second seat in a room.
	ErrAlreadyJoined Warning = "player already joined the room"
	// ErrInvalidState is returned when the room does not have the status the request needs.
	ErrInvalidState Warning = "room is not in a valid state for the request"
	// ErrNotYourTurn is returned when a seat acts out of turn.
	ErrNotYourTurn Warning = "not your turn"
	// ErrWrongState is returned when rolling while a move is expected, or moving while a roll is expected.
	ErrWrongState Warning = "wrong turn phase"
	// ErrInvalidMove is returned when the move breaks the distance, bounds, or home exit rules.
	ErrInvalidMove Warning = "invalid move"
	// ErrMoveLimitExceeded is returned when the seat has made all of the moves its stake allows.
	ErrMoveLimitExceeded Warning = "move limit exceeded"
	// ErrNotCreator is returned when someone other than the creator of a room tries to cancel it.
	ErrNotCreator Warning = "only the creator can cancel the room"
)

// Error returns the string of the warning.
func (w Warning) Error() string {
	return string(w)
}
