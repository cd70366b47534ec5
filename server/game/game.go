// Package game controls the logic to run the rooms of the server.
package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jacobpatterson1549/selene-ludo/db"
	"github.com/jacobpatterson1549/selene-ludo/game"
	"github.com/jacobpatterson1549/selene-ludo/game/board"
	"github.com/jacobpatterson1549/selene-ludo/game/message"
	"github.com/jacobpatterson1549/selene-ludo/game/player"
	"github.com/jacobpatterson1549/selene-ludo/game/room"
	"github.com/jacobpatterson1549/selene-ludo/server/log"
)

type (
	// Game is the authority of a room.  It owns the room and its state, applying commands one at a time.
	// Every change is saved before it is broadcast to the subscribers of the room.
	Game struct {
		id          game.ID
		room        room.Room
		state       game.State
		commands    chan command
		done        chan struct{}
		subscribers *broadcaster
		handlers    map[commandType]commandHandler
		gateway     db.Gateway
		Config
	}

	// Config contiains the properties to create similar games.
	Config struct {
		// Debug is a flag that causes the game to log the commands it handles.
		Debug bool
		// Log is used to log errors and other information.
		Log log.Logger
		// TimeFunc is a function which should supply the current time since the unix epoch in milliseconds.
		TimeFunc func() int64
		// RandIntFunc returns a random value in [0,n).  It is used to roll dice and to create room codes.
		// If nil, math/rand/v2.IntN is used.
		RandIntFunc func(n int) int
		// IDFunc creates unique ids for rooms and bots.
		IDFunc func() string
		// QueueSize is the number of commands that can wait to be handled by a game.
		QueueSize int
		// TickPeriod is how often the game checks for bots to seat and turns to play.
		TickPeriod time.Duration
		// BotFillDelay is how long a waiting room can wait before its free seats are given to bots.  Zero disables bot seating.
		BotFillDelay time.Duration
		// BotDelay is how long bots wait before taking their turns.
		BotDelay time.Duration
		// TurnTimeout is how long a seat played by a person can own the turn before the TimeoutPolicy acts for it.  Zero disables timeouts.
		TurnTimeout time.Duration
		// TimeoutPolicy decides what to do with idle seats.  AutoPlayPolicy is used if nil.
		TimeoutPolicy TimeoutPolicy
	}

	// command is a request to a game.  The result is sent on the result channel after the command is handled.
	command struct {
		Type       commandType
		PlayerID   player.ID
		Move       game.Move
		Subscriber Subscriber
		result     chan<- result
	}

	// commandType is the kind of a command.
	commandType int

	// result is the room and state after a command.
	result struct {
		Room  room.Room
		State game.State
		err   error
	}

	// commandHandler is a function which handles a command on the goroutine of the game.
	commandHandler func(ctx context.Context, c command) error

	// transition computes changed copies of the room and state.
	transition func(r room.Room, s game.State) (*room.Room, *game.State, error)
)

// errRoomClosed is returned for rooms that are not running, such as completed and cancelled rooms.
var errRoomClosed = fmt.Errorf("room closed: %w", game.ErrInvalidState)

const (
	joinCommand commandType = iota + 1
	enterCommand
	leaveCommand
	rollCommand
	moveCommand
	cancelCommand
	snapshotCommand
)

// NewGame creates the authority of the room.  The room and state must be saved in the gateway.
func (cfg Config) NewGame(r room.Room, s game.State, gw db.Gateway) (*Game, error) {
	if err := cfg.validate(r, s, gw); err != nil {
		return nil, fmt.Errorf("creating game: validation: %w", err)
	}
	if cfg.TimeoutPolicy == nil {
		cfg.TimeoutPolicy = AutoPlayPolicy{}
	}
	g := Game{
		id:          r.ID,
		room:        r.Clone(),
		state:       s.Clone(),
		commands:    make(chan command, cfg.QueueSize),
		done:        make(chan struct{}),
		subscribers: newBroadcaster(),
		gateway:     gw,
		Config:      cfg,
	}
	g.handlers = map[commandType]commandHandler{
		joinCommand:     g.handleJoin,
		enterCommand:    g.handleEnter,
		leaveCommand:    g.handleLeave,
		rollCommand:     g.handleRoll,
		moveCommand:     g.handleMove,
		cancelCommand:   g.handleCancel,
		snapshotCommand: g.handleSnapshot,
	}
	return &g, nil
}

// validate ensures the configuration has no errors.
func (cfg Config) validate(r room.Room, s game.State, gw db.Gateway) error {
	switch {
	case cfg.Log == nil:
		return fmt.Errorf("log required")
	case cfg.TimeFunc == nil:
		return fmt.Errorf("time func required")
	case cfg.IDFunc == nil:
		return fmt.Errorf("id func required")
	case gw == nil:
		return fmt.Errorf("gateway required")
	case len(r.ID) == 0:
		return fmt.Errorf("room id required")
	case r.ID != s.RoomID:
		return fmt.Errorf("state of room %q is for room %q", r.ID, s.RoomID)
	case cfg.QueueSize <= 0:
		return fmt.Errorf("positive queue size required")
	case cfg.TickPeriod <= 0:
		return fmt.Errorf("positive tick period required")
	case cfg.BotFillDelay < 0, cfg.BotDelay < 0, cfg.TurnTimeout < 0:
		return fmt.Errorf("delays and timeouts cannot be negative")
	}
	return nil
}

// Run handles commands and checks for idle turns on a new goroutine until the room is completed or cancelled, or the context is done.
// The stop function is called before the game stops accepting commands.
func (g *Game) Run(ctx context.Context, wg *sync.WaitGroup, stop func(g *Game)) {
	wg.Add(1)
	go func() {
		ticker := time.NewTicker(g.TickPeriod)
		defer wg.Done()
		defer close(g.done)
		defer stop(g)
		defer ticker.Stop()
		for { // BLOCKING
			select {
			case <-ctx.Done():
				return
			case c := <-g.commands:
				g.handleCommand(ctx, c)
			case <-ticker.C:
				g.tick(ctx)
			}
			if g.room.Terminal() {
				if g.Debug {
					g.Log.Printf("room %v is %v", g.room.ID, g.room.Status)
				}
				return
			}
		}
	}()
}

// ID is the id of the room of the game.
func (g *Game) ID() game.ID {
	return g.id
}

// submit sends the command to the game and waits for the result.
// Commands that are accepted are completed even if the context is done first.
func (g *Game) submit(ctx context.Context, c command) (*result, error) {
	results := make(chan result, 1)
	c.result = results
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-g.done:
		return nil, errRoomClosed
	case g.commands <- c:
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		return &res, res.err
	case <-g.done:
		select {
		case res := <-results:
			return &res, res.err
		default:
			return nil, errRoomClosed
		}
	}
}

// handleCommand runs the handler of the command and replies with the resulting room and state.
func (g *Game) handleCommand(ctx context.Context, c command) {
	if g.Debug {
		g.Log.Printf("room %v handling command %v from %v", g.room.ID, c.Type, c.PlayerID)
	}
	var err error
	if h, ok := g.handlers[c.Type]; ok {
		err = h(ctx, c)
	} else {
		err = fmt.Errorf("unknown command type %v", c.Type)
	}
	var w game.Warning
	if err != nil && !errors.As(err, &w) {
		g.Log.Printf("room %v: player %v: %v", g.room.ID, c.PlayerID, err)
	}
	res := result{
		Room:  g.room.Clone(),
		State: g.state.Clone(),
		err:   err,
	}
	c.result <- res
}

func (g *Game) handleJoin(ctx context.Context, c command) error {
	now := g.TimeFunc()
	return g.apply(ctx, func(r room.Room, s game.State) (*room.Room, *game.State, error) {
		return seatPlayers(r, s, now, false, c.PlayerID)
	})
}

// handleEnter subscribes to the room, seating the player if needed.
// Seated players are marked as ready.  Unchanged rooms are only sent to the new subscriber.
func (g *Game) handleEnter(ctx context.Context, c command) error {
	if c.Subscriber == nil {
		return fmt.Errorf("subscriber required")
	}
	g.subscribers.add(c.Subscriber)
	seat, seated := g.room.PlayerSeat(c.PlayerID)
	var err error
	switch {
	case !seated:
		err = g.handleJoin(ctx, c)
	case !seat.Ready:
		now := g.TimeFunc()
		err = g.apply(ctx, func(r room.Room, s game.State) (*room.Room, *game.State, error) {
			return markReady(r, s, c.PlayerID, now)
		})
	default:
		c.Subscriber.Send(message.NewState(g.room.Clone(), g.state.Clone()))
	}
	if err != nil {
		g.subscribers.remove(c.Subscriber)
	}
	return err
}

func (g *Game) handleLeave(ctx context.Context, c command) error {
	g.subscribers.remove(c.Subscriber)
	return nil
}

func (g *Game) handleRoll(ctx context.Context, c command) error {
	seat, err := g.playerSeat(c.PlayerID)
	if err != nil {
		return err
	}
	return g.act(ctx, seat, Action{Type: RollAction})
}

func (g *Game) handleMove(ctx context.Context, c command) error {
	seat, err := g.playerSeat(c.PlayerID)
	if err != nil {
		return err
	}
	return g.act(ctx, seat, Action{Type: MoveAction, Move: c.Move})
}

func (g *Game) handleCancel(ctx context.Context, c command) error {
	now := g.TimeFunc()
	return g.apply(ctx, func(r room.Room, s game.State) (*room.Room, *game.State, error) {
		r2 := r.Clone()
		if err := r2.Cancel(c.PlayerID, now); err != nil {
			return nil, nil, err
		}
		return &r2, &s, nil
	})
}

func (g *Game) handleSnapshot(ctx context.Context, c command) error {
	return nil
}

// tick seats bots in rooms that have waited too long and plays the turns of bots and idle players.
func (g *Game) tick(ctx context.Context) {
	now := g.TimeFunc()
	var err error
	switch g.room.Status {
	case room.Waiting:
		err = g.fillBots(ctx, now)
	case room.Playing:
		err = g.playIdleTurn(ctx, now)
	}
	if err != nil {
		g.Log.Printf("room %v: %v", g.room.ID, err)
	}
}

// fillBots gives the free seats to bots, which starts the game.
func (g *Game) fillBots(ctx context.Context, now int64) error {
	waited := time.Duration(now-g.room.CreatedAt) * time.Millisecond
	if !g.room.Settings.BotsEnabled || g.BotFillDelay <= 0 || waited < g.BotFillDelay {
		return nil
	}
	bots := make([]player.ID, g.room.MaxPlayers-g.room.CurrentPlayers)
	for i := range bots {
		bots[i] = player.ID("bot-" + g.IDFunc())
	}
	if err := g.apply(ctx, func(r room.Room, s game.State) (*room.Room, *game.State, error) {
		return seatPlayers(r, s, now, true, bots...)
	}); err != nil {
		return fmt.Errorf("seating bots: %w", err)
	}
	return nil
}

// playIdleTurn acts for the seat that owns the turn if it is a bot that has waited the bot delay, or a player that has timed out.
func (g *Game) playIdleTurn(ctx context.Context, now int64) error {
	owner := TurnOwner(g.state)
	seat, ok := g.room.Seat(owner)
	if !ok {
		return fmt.Errorf("no player in seat %v", owner)
	}
	idle := time.Duration(now-g.state.UpdatedAt) * time.Millisecond
	var a *Action
	switch {
	case seat.Bot:
		if idle < g.BotDelay {
			return nil
		}
		a = BotAction(g.state)
	case g.TurnTimeout > 0 && idle >= g.TurnTimeout:
		if a, ok = g.TimeoutPolicy.TurnTimedOut(g.room.Clone(), g.state.Clone()); !ok {
			return nil
		}
	default:
		return nil
	}
	if err := g.act(ctx, owner, *a); err != nil {
		return fmt.Errorf("playing turn of seat %v: %w", owner, err)
	}
	return nil
}

// act applies the action of the seat.
func (g *Game) act(ctx context.Context, seat player.Seat, a Action) error {
	now := g.TimeFunc()
	var t transition
	switch a.Type {
	case RollAction:
		dice := board.RollDice(g.RandIntFunc)
		t = func(r room.Room, s game.State) (*room.Room, *game.State, error) {
			return ApplyRoll(r, s, seat, dice, now)
		}
	case MoveAction:
		t = func(r room.Room, s game.State) (*room.Room, *game.State, error) {
			return ApplyMove(r, s, seat, a.Move, now)
		}
	case SkipAction:
		t = func(r room.Room, s game.State) (*room.Room, *game.State, error) {
			return ApplySkip(r, s, seat, a.Reason, now)
		}
	default:
		return fmt.Errorf("unknown action type %v", a.Type)
	}
	return g.apply(ctx, t)
}

// apply saves the transition of the room and state and then broadcasts it.
// If the records were changed by another writer, they are reloaded and the transition is tried once more.
// Nothing is changed or broadcast if the transition cannot be saved.
func (g *Game) apply(ctx context.Context, t transition) error {
	r, s, err := t(g.room, g.state)
	if err != nil {
		return err
	}
	err = g.commit(ctx, r, s)
	if errors.Is(err, db.ErrConflict) {
		if err := g.reload(ctx); err != nil {
			return err
		}
		if r, s, err = t(g.room, g.state); err != nil {
			return err
		}
		err = g.commit(ctx, r, s)
	}
	if err != nil {
		return fmt.Errorf("saving room %v: %w", g.room.ID, err)
	}
	prev := g.room.Status
	g.room, g.state = *r, *s
	g.publish(prev)
	return nil
}

// commit sets the next versions of the room and state and saves them together.
func (g *Game) commit(ctx context.Context, r *room.Room, s *game.State) error {
	r.Version = g.room.Version + 1
	s.Version = g.state.Version + 1
	c := db.Change{
		Room:  r,
		State: s,
	}
	if err := g.gateway.Commit(ctx, c); err != nil {
		return err
	}
	return nil
}

// reload replaces the room and state with the saved versions.
func (g *Game) reload(ctx context.Context) error {
	r, err := g.gateway.GetRoom(ctx, g.room.ID)
	if err != nil {
		return fmt.Errorf("reloading room: %w", err)
	}
	s, err := g.gateway.GetState(ctx, g.room.ID)
	if err != nil {
		return fmt.Errorf("reloading game state: %w", err)
	}
	g.room, g.state = *r, *s
	return nil
}

// publish broadcasts the room and state, then announces when the room has filled or the game has finished.
func (g *Game) publish(prev room.Status) {
	messages := []message.Message{
		message.NewState(g.room.Clone(), g.state.Clone()),
	}
	if prev == room.Waiting && g.room.Status == room.Playing {
		messages = append(messages, message.NewRoomFull(g.room.ID))
	}
	if prev != room.Completed && g.room.Status == room.Completed {
		messages = append(messages, message.NewGameOver(g.room.ID, g.room.Winner))
	}
	g.subscribers.publish(messages...)
}

// playerSeat is the seat number of the player.
func (g *Game) playerSeat(id player.ID) (player.Seat, error) {
	seat, ok := g.room.PlayerSeat(id)
	if !ok {
		return 0, game.ErrNotYourTurn
	}
	return seat.Number, nil
}

// seatPlayers seats the players in order, starting the game if the room fills.
func seatPlayers(r room.Room, s game.State, now int64, bot bool, ids ...player.ID) (*room.Room, *game.State, error) {
	r2, s2 := r.Clone(), s.Clone()
	for _, id := range ids {
		if err := r2.Join(id, bot, now); err != nil {
			return nil, nil, err
		}
	}
	if r2.Full() {
		if err := r2.Start(now); err != nil {
			return nil, nil, err
		}
		s2.StartedAt = now
		s2.UpdatedAt = now
	}
	return &r2, &s2, nil
}

// markReady flags the seat of the player as connected.
func markReady(r room.Room, s game.State, id player.ID, now int64) (*room.Room, *game.State, error) {
	r2 := r.Clone()
	seat, ok := r2.PlayerSeat(id)
	if !ok {
		return nil, nil, fmt.Errorf("player %v not seated", id)
	}
	seat.Ready = true
	r2.UpdatedAt = now
	return &r2, &s, nil
}

// String describes the command type for logging.
func (t commandType) String() string {
	switch t {
	case joinCommand:
		return "join"
	case enterCommand:
		return "enter"
	case leaveCommand:
		return "leave"
	case rollCommand:
		return "roll"
	case moveCommand:
		return "move"
	case cancelCommand:
		return "cancel"
	case snapshotCommand:
		return "snapshot"
	}
	return fmt.Sprintf("command(%d)", int(t))
}
