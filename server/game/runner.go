package game

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jacobpatterson1549/selene-ludo/db"
	"github.com/jacobpatterson1549/selene-ludo/game"
	"github.com/jacobpatterson1549/selene-ludo/game/message"
	"github.com/jacobpatterson1549/selene-ludo/game/player"
	"github.com/jacobpatterson1549/selene-ludo/game/room"
	"github.com/jacobpatterson1549/selene-ludo/server/log"
)

type (
	// Runner is the registry of rooms.  It creates rooms, matches players to them, and routes commands to the game of each room.
	// Only one game runs for each live room, so requests for a room are handled in the order they arrive.
	Runner struct {
		mu sync.Mutex
		// games maps room ids to the games that own them.  Completed and cancelled rooms are removed.
		games   map[game.ID]*Game
		ctx     context.Context
		wg      *sync.WaitGroup
		gateway db.Gateway
		RunnerConfig
	}

	// RunnerConfig is used to create a game Runner.
	RunnerConfig struct {
		// Log is used to log errors and other information
		Log log.Logger
		// MatchAttempts is the number of open rooms matchmaking tries to join before creating a room.
		MatchAttempts int
		// GameConfig is used to create the games of rooms.
		GameConfig Config
	}
)

var errNotRunning = errors.New("runner not running")

// NewRunner creates a new game runner from the config.
func (cfg RunnerConfig) NewRunner(gw db.Gateway) (*Runner, error) {
	if err := cfg.validate(gw); err != nil {
		return nil, fmt.Errorf("creating game runner: validation: %w", err)
	}
	r := Runner{
		games:        make(map[game.ID]*Game),
		gateway:      gw,
		RunnerConfig: cfg,
	}
	return &r, nil
}

// validate ensures the configuration has no errors.
func (cfg RunnerConfig) validate(gw db.Gateway) error {
	switch {
	case cfg.Log == nil:
		return fmt.Errorf("log required")
	case gw == nil:
		return fmt.Errorf("gateway required")
	case cfg.MatchAttempts <= 0:
		return fmt.Errorf("positive match attempts required")
	case cfg.GameConfig.IDFunc == nil:
		return fmt.Errorf("id func required")
	case cfg.GameConfig.TimeFunc == nil:
		return fmt.Errorf("time func required")
	}
	return nil
}

// Run lets the runner start games until the context is done.
// The wait group is done when all of the games have stopped.
func (r *Runner) Run(ctx context.Context, wg *sync.WaitGroup) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctx = ctx
	r.wg = wg
}

// CreateRoom creates a waiting room at the tier with the creator in the first seat.
func (r *Runner) CreateRoom(ctx context.Context, tier room.Tier, creator player.ID) (*room.Room, error) {
	now := r.GameConfig.TimeFunc()
	id := game.ID(r.GameConfig.IDFunc())
	code := room.NewCode(r.GameConfig.RandIntFunc)
	rm, err := room.New(id, code, tier, creator, now)
	if err != nil {
		return nil, err
	}
	s := game.NewState(id, now)
	if err := r.gateway.CreateRoom(ctx, *rm, s); err != nil {
		return nil, fmt.Errorf("creating room: %w", err)
	}
	if _, err := r.start(*rm, s); err != nil {
		return nil, fmt.Errorf("starting room: %w", err)
	}
	return rm, nil
}

// JoinRoom seats the player in the room.  The game starts when the last seat is taken.
func (r *Runner) JoinRoom(ctx context.Context, id game.ID, playerID player.ID) (*room.Room, error) {
	res, err := r.submit(ctx, id, command{Type: joinCommand, PlayerID: playerID})
	if err != nil {
		return nil, fmt.Errorf("joining room: %w", err)
	}
	return &res.Room, nil
}

// FindOpenRoom finds the first waiting room at the tier with a free seat.  Nil is returned if no room is open.
func (r *Runner) FindOpenRoom(ctx context.Context, tier room.Tier) (*room.Room, error) {
	fee, err := tier.EntryFee()
	if err != nil {
		return nil, err
	}
	rooms, err := r.gateway.FindWaitingRooms(ctx, fee)
	if err != nil {
		return nil, fmt.Errorf("finding open room: %w", err)
	}
	for _, rm := range rooms {
		if rm.Tier == tier && db.HasFreeSeat(rm) {
			return &rm, nil
		}
	}
	return nil, nil
}

// Matchmake seats the player in an open room at the tier, creating a room if none are open.
// If another player takes the last seat of the open room first, the next open room is tried.
func (r *Runner) Matchmake(ctx context.Context, tier room.Tier, playerID player.ID) (*room.Room, error) {
	for i := 0; i < r.MatchAttempts; i++ {
		open, err := r.FindOpenRoom(ctx, tier)
		switch {
		case err != nil:
			return nil, fmt.Errorf("matchmaking: %w", err)
		case open == nil:
			return r.CreateRoom(ctx, tier, playerID)
		}
		joined, err := r.JoinRoom(ctx, open.ID, playerID)
		switch {
		case err == nil:
			return joined, nil
		case errors.Is(err, game.ErrAlreadyJoined):
			return open, nil
		case errors.Is(err, game.ErrRoomFull), errors.Is(err, game.ErrInvalidState), errors.Is(err, db.ErrConflict):
			r.Log.Printf("matchmaking attempt %v for %v: %v", i+1, playerID, err)
		default:
			return nil, fmt.Errorf("matchmaking: %w", err)
		}
	}
	return r.CreateRoom(ctx, tier, playerID)
}

// CancelRoom cancels the waiting room.  Only the creator of the room can cancel it.
func (r *Runner) CancelRoom(ctx context.Context, id game.ID, playerID player.ID) (*room.Room, error) {
	res, err := r.submit(ctx, id, command{Type: cancelCommand, PlayerID: playerID})
	if err != nil {
		return nil, fmt.Errorf("cancelling room: %w", err)
	}
	return &res.Room, nil
}

// Enter subscribes to the messages of the room, seating the player if there is a free seat.
// Completed and cancelled rooms only send their final state.
func (r *Runner) Enter(ctx context.Context, id game.ID, playerID player.ID, sub Subscriber) error {
	c := command{
		Type:       enterCommand,
		PlayerID:   playerID,
		Subscriber: sub,
	}
	_, err := r.submit(ctx, id, c)
	if errors.Is(err, errRoomClosed) {
		rm, s, err := r.Snapshot(ctx, id)
		if err != nil {
			return err
		}
		sub.Send(message.NewState(*rm, *s))
		return nil
	}
	if err != nil {
		return fmt.Errorf("entering room: %w", err)
	}
	return nil
}

// Leave unsubscribes from the messages of the room.
func (r *Runner) Leave(ctx context.Context, id game.ID, sub Subscriber) {
	r.mu.Lock()
	g, ok := r.games[id]
	r.mu.Unlock()
	if !ok {
		return
	}
	g.submit(ctx, command{Type: leaveCommand, Subscriber: sub})
}

// Roll rolls the dice for the seat of the player.
func (r *Runner) Roll(ctx context.Context, id game.ID, playerID player.ID) (*game.State, error) {
	res, err := r.submit(ctx, id, command{Type: rollCommand, PlayerID: playerID})
	if err != nil {
		return nil, fmt.Errorf("rolling dice: %w", err)
	}
	return &res.State, nil
}

// Move moves a token of the seat of the player.
func (r *Runner) Move(ctx context.Context, id game.ID, playerID player.ID, m game.Move) (*game.State, error) {
	c := command{
		Type:     moveCommand,
		PlayerID: playerID,
		Move:     m,
	}
	res, err := r.submit(ctx, id, c)
	if err != nil {
		return nil, fmt.Errorf("moving token: %w", err)
	}
	return &res.State, nil
}

// Snapshot gets the room and its state.
func (r *Runner) Snapshot(ctx context.Context, id game.ID) (*room.Room, *game.State, error) {
	res, err := r.submit(ctx, id, command{Type: snapshotCommand})
	switch {
	case err == nil:
		return &res.Room, &res.State, nil
	case !errors.Is(err, errRoomClosed):
		return nil, nil, err
	}
	rm, err := r.gateway.GetRoom(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("getting room: %w", err)
	}
	s, err := r.gateway.GetState(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("getting game state: %w", err)
	}
	return rm, s, nil
}

// submit sends the command to the game of the room, loading the room if it is not running.
func (r *Runner) submit(ctx context.Context, id game.ID, c command) (*result, error) {
	g, err := r.game(ctx, id)
	if err != nil {
		return nil, err
	}
	return g.submit(ctx, c)
}

// game gets the running game of the room, loading the room from the gateway if needed.
func (r *Runner) game(ctx context.Context, id game.ID) (*Game, error) {
	r.mu.Lock()
	g, ok := r.games[id]
	r.mu.Unlock()
	if ok {
		return g, nil
	}
	rm, err := r.gateway.GetRoom(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading room %v: %w", id, err)
	}
	if rm.Terminal() {
		return nil, errRoomClosed
	}
	s, err := r.gateway.GetState(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading game state of room %v: %w", id, err)
	}
	return r.start(*rm, *s)
}

// start runs a game for the room unless one is already running.
func (r *Runner) start(rm room.Room, s game.State) (*Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.games[rm.ID]; ok {
		return g, nil
	}
	if r.ctx == nil {
		return nil, errNotRunning
	}
	g, err := r.GameConfig.NewGame(rm, s, r.gateway)
	if err != nil {
		return nil, err
	}
	r.games[rm.ID] = g
	g.Run(r.ctx, r.wg, r.removeGame)
	return g, nil
}

// removeGame forgets the game when it stops.
func (r *Runner) removeGame(g *Game) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.games[g.ID()] == g {
		delete(r.games, g.ID())
	}
}

// NumGames is the number of running games.
func (r *Runner) NumGames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.games)
}
