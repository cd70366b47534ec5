// Package lobby connects the sockets of players to the rooms they play in.
package lobby

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/jacobpatterson1549/selene-ludo/game"
	"github.com/jacobpatterson1549/selene-ludo/game/message"
	"github.com/jacobpatterson1549/selene-ludo/game/player"
	gameController "github.com/jacobpatterson1549/selene-ludo/server/game"
	"github.com/jacobpatterson1549/selene-ludo/server/game/socket"
	"github.com/jacobpatterson1549/selene-ludo/server/log"
)

type (
	// Lobby is the place players connect to the rooms they play in.
	// It handles the messages read by the sockets of players, sending rejected requests back as private errors.
	Lobby struct {
		mu  sync.Mutex
		ctx context.Context
		// sockets maps the connected sockets to the rooms they have entered.
		sockets map[*socket.Socket]map[game.ID]struct{}
		runner  Runner
		Config
	}

	// Config contiains the properties to create a lobby
	Config struct {
		// Debug is a flag that causes the lobby to log the types messages that are read
		Debug bool
		// Log is used to log errors and other information
		Log log.Logger
		// MaxSockets is the maximum number of sockets the lobby supports
		MaxSockets int
		// Upgrade creates the connection of a socket from a http request.
		Upgrade UpgradeFunc
		// SocketCfg is used to create new sockets
		SocketCfg socket.Config
	}

	// Runner routes the requests of players to the rooms.
	Runner interface {
		// Enter subscribes to the room, seating the player if there is a free seat.
		Enter(ctx context.Context, id game.ID, playerID player.ID, sub gameController.Subscriber) error
		// Leave unsubscribes from the room.
		Leave(ctx context.Context, id game.ID, sub gameController.Subscriber)
		// Roll rolls the dice for the player.
		Roll(ctx context.Context, id game.ID, playerID player.ID) (*game.State, error)
		// Move moves a token of the player.
		Move(ctx context.Context, id game.ID, playerID player.ID, m game.Move) (*game.State, error)
	}

	// UpgradeFunc upgrades the http request to a websocket connection.
	// The function writes the http error response when the upgrade fails.
	UpgradeFunc func(w http.ResponseWriter, r *http.Request) (socket.Conn, error)
)

var errNotRunning = errors.New("lobby not running")

// NewLobby creates a new lobby for the rooms of the runner.
func (cfg Config) NewLobby(r Runner) (*Lobby, error) {
	if err := cfg.validate(r); err != nil {
		return nil, fmt.Errorf("creating lobby: validation: %w", err)
	}
	l := Lobby{
		sockets: make(map[*socket.Socket]map[game.ID]struct{}, cfg.MaxSockets),
		runner:  r,
		Config:  cfg,
	}
	return &l, nil
}

// validate ensures the configuration has no errors.
func (cfg Config) validate(r Runner) error {
	switch {
	case cfg.Log == nil:
		return fmt.Errorf("log required")
	case r == nil:
		return fmt.Errorf("runner required")
	case cfg.MaxSockets <= 0:
		return fmt.Errorf("must allow at least one socket")
	case cfg.Upgrade == nil:
		return fmt.Errorf("upgrade func required")
	}
	return nil
}

// Run lets the lobby accept sockets until the context is done.
func (l *Lobby) Run(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ctx = ctx
}

// AddUser opens a new websocket for the player.
func (l *Lobby) AddUser(playerID player.ID, w http.ResponseWriter, r *http.Request) error {
	l.mu.Lock()
	ctx := l.ctx
	l.mu.Unlock()
	if ctx == nil {
		return errNotRunning
	}
	conn, err := l.Upgrade(w, r)
	if err != nil {
		return fmt.Errorf("upgrading to websocket connection: %w", err)
	}
	s, err := l.SocketCfg.NewSocket(conn, playerID)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating socket: %w", err)
	}
	if err := l.addSocket(s); err != nil {
		conn.WriteClose(err.Error())
		conn.Close()
		return err
	}
	s.Run(ctx, l)
	return nil
}

// addSocket tracks the socket if the lobby is not full.
func (l *Lobby) addSocket(s *socket.Socket) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.sockets) >= l.MaxSockets {
		return fmt.Errorf("lobby full")
	}
	l.sockets[s] = make(map[game.ID]struct{})
	return nil
}

// HandleMessage routes the message from the socket to the room.
func (l *Lobby) HandleMessage(ctx context.Context, s *socket.Socket, m message.Message) {
	if l.Debug {
		l.Log.Printf("lobby handling message from %v: %v", s, m)
	}
	var err error
	switch m.Type {
	case message.JoinRoom:
		err = l.enter(ctx, s, m.RoomID)
	case message.RollDice:
		if m.PlayerID != s.PlayerID {
			err = fmt.Errorf("cannot roll for player %q", m.PlayerID)
			break
		}
		_, err = l.runner.Roll(ctx, m.RoomID, s.PlayerID)
	case message.MoveToken:
		if m.Move == nil {
			err = fmt.Errorf("move required")
			break
		}
		_, err = l.runner.Move(ctx, m.RoomID, s.PlayerID, *m.Move)
	default:
		err = fmt.Errorf("unknown message type %q", m.Type)
	}
	if err != nil {
		if l.Debug {
			l.Log.Printf("rejected message from %v: %v", s, err)
		}
		s.Send(message.NewError(m.RoomID, err))
	}
}

// enter subscribes the socket to the room.
func (l *Lobby) enter(ctx context.Context, s *socket.Socket, id game.ID) error {
	if len(id) == 0 {
		return fmt.Errorf("room id required")
	}
	if err := l.runner.Enter(ctx, id, s.PlayerID, s); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if rooms, ok := l.sockets[s]; ok {
		rooms[id] = struct{}{}
	}
	return nil
}

// SocketClosed unsubscribes the socket from the rooms it entered.
// Requests the socket already made are not cancelled.
func (l *Lobby) SocketClosed(s *socket.Socket) {
	l.mu.Lock()
	rooms := l.sockets[s]
	delete(l.sockets, s)
	l.mu.Unlock()
	for id := range rooms {
		l.runner.Leave(context.Background(), id, s)
	}
	if l.Debug {
		l.Log.Printf("socket %v closed", s)
	}
}

// NumSockets is the number of connected sockets.
func (l *Lobby) NumSockets() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sockets)
}
