package game

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jacobpatterson1549/selene-ludo/db"
	"github.com/jacobpatterson1549/selene-ludo/db/memory"
	"github.com/jacobpatterson1549/selene-ludo/game"
	"github.com/jacobpatterson1549/selene-ludo/game/message"
	"github.com/jacobpatterson1549/selene-ludo/game/player"
	"github.com/jacobpatterson1549/selene-ludo/game/room"
	"github.com/jacobpatterson1549/selene-ludo/server/log/logtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGame(t *testing.T) {
	r, s := newPlayingRecords(t)
	newGameTests := []struct {
		cfg    func(cfg *Config)
		s      game.State
		gw     db.Gateway
		wantOk bool
	}{
		{
			cfg: func(cfg *Config) { cfg.Log = nil },
			s:   s,
			gw:  memory.NewGateway(),
		},
		{
			cfg: func(cfg *Config) { cfg.TimeFunc = nil },
			s:   s,
			gw:  memory.NewGateway(),
		},
		{
			cfg: func(cfg *Config) { cfg.IDFunc = nil },
			s:   s,
			gw:  memory.NewGateway(),
		},
		{
			cfg: func(cfg *Config) {},
			s:   s,
		},
		{
			cfg: func(cfg *Config) {},
			s:   game.NewState("other", 1),
			gw:  memory.NewGateway(),
		},
		{
			cfg: func(cfg *Config) { cfg.QueueSize = 0 },
			s:   s,
			gw:  memory.NewGateway(),
		},
		{
			cfg: func(cfg *Config) { cfg.TickPeriod = 0 },
			s:   s,
			gw:  memory.NewGateway(),
		},
		{
			cfg: func(cfg *Config) { cfg.TurnTimeout = -time.Second },
			s:   s,
			gw:  memory.NewGateway(),
		},
		{
			cfg:    func(cfg *Config) {},
			s:      s,
			gw:     memory.NewGateway(),
			wantOk: true,
		},
	}
	for i, test := range newGameTests {
		cfg := testGameConfig(new(mockClock))
		test.cfg(&cfg)
		g, err := cfg.NewGame(r, test.s, test.gw)
		switch {
		case !test.wantOk:
			if err == nil {
				t.Errorf("Test %v: wanted error", i)
			}
		case err != nil:
			t.Errorf("Test %v: unwanted error: %v", i, err)
		case g.TimeoutPolicy == nil:
			t.Errorf("Test %v: wanted default timeout policy", i)
		case g.ID() != r.ID:
			t.Errorf("Test %v: wanted id %v, got %v", i, r.ID, g.ID())
		}
	}
}

// newSavedGame saves the playing records and returns a runner with a subscriber that has entered as the first player.
func newSavedGame(t *testing.T, gw db.Gateway, cfg Config, r room.Room, s game.State) (*Runner, *mockSubscriber) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, gw.CreateRoom(ctx, r, s))
	runner := newTestRunner(t, gw, cfg)
	sub := newMockSubscriber()
	require.NoError(t, runner.Enter(ctx, r.ID, "p1", sub))
	require.Equal(t, message.UpdateGameState, sub.next(t).Type)
	return runner, sub
}

func TestGameWin(t *testing.T) {
	r, s := newPlayingRecords(t)
	for i, position := range []int{56, 56, 56, 53} {
		placeToken(&s, 1, i, position)
	}
	placeToken(&s, 4, 0, 17)
	gw := memory.NewGateway()
	runner, sub := newSavedGame(t, gw, testGameConfig(new(mockClock), 3), r, s)
	ctx := context.Background()

	_, err := runner.Roll(ctx, r.ID, "p1")
	require.NoError(t, err)
	got, err := runner.Move(ctx, r.ID, "p1", game.Move{TokenIndex: 3, NewPosition: 56})
	require.NoError(t, err)
	assert.Equal(t, game.GameOver, got.Phase)
	assert.Equal(t, player.Seat(1), got.Winner)

	assert.Equal(t, message.UpdateGameState, sub.next(t).Type)
	m := sub.next(t)
	assert.Equal(t, message.UpdateGameState, m.Type)
	assert.Equal(t, room.Completed, m.Room.Status)
	m = sub.next(t)
	assert.Equal(t, message.GameOver, m.Type)
	assert.Equal(t, player.ID("p1"), m.Winner)

	saved, err := gw.GetRoom(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, room.Completed, saved.Status)
	assert.Equal(t, player.ID("p1"), saved.Winner)
	assert.Equal(t, player.ID("p4"), saved.RunnerUp)
	require.Eventually(t, func() bool { return runner.NumGames() == 0 }, time.Second, time.Millisecond)

	_, err = runner.Roll(ctx, r.ID, "p2")
	assert.ErrorIs(t, err, game.ErrInvalidState)
	_, err = runner.Move(ctx, r.ID, "p1", game.Move{TokenIndex: 0, NewPosition: 57})
	assert.ErrorIs(t, err, game.ErrInvalidState)
}

func TestGameSaveFailure(t *testing.T) {
	gw := newMockGateway()
	r := newTestRunner(t, gw, testGameConfig(new(mockClock)))
	ctx := context.Background()
	rm, err := r.CreateRoom(ctx, room.Legend, "p1")
	require.NoError(t, err)
	sub := newMockSubscriber()
	require.NoError(t, r.Enter(ctx, rm.ID, "p1", sub))
	sub.next(t)

	gw.fail.Store(true)
	_, err = r.JoinRoom(ctx, rm.ID, "p2")
	assert.Error(t, err)
	got, _, err := r.Snapshot(ctx, rm.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentPlayers, "failed change should not be applied")
	assert.True(t, sub.empty(), "failed change should not be broadcast")

	gw.fail.Store(false)
	got, err = r.JoinRoom(ctx, rm.ID, "p2")
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentPlayers)
	assert.Equal(t, int64(3), got.Version)
	assert.Equal(t, message.UpdateGameState, sub.next(t).Type)
}

func TestGameVersions(t *testing.T) {
	gw := newMockGateway()
	r := newTestRunner(t, gw, testGameConfig(new(mockClock)))
	ctx := context.Background()
	rm, err := r.CreateRoom(ctx, room.Micro, "p1")
	require.NoError(t, err)
	for i, id := range []player.ID{"p2", "p3", "p4"} {
		got, err := r.JoinRoom(ctx, rm.ID, id)
		require.NoError(t, err)
		if want := int64(i + 2); want != got.Version {
			t.Errorf("Test %v: wanted room version %v after join, got %v", i, want, got.Version)
		}
	}
	s, err := r.Roll(ctx, rm.ID, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), s.Version)
	assert.Equal(t, int32(4), gw.commits.Load())
	assert.Equal(t, int32(0), gw.rejected.Load(), "commits should not use stale versions")

	savedRoom, err := gw.GetRoom(ctx, rm.ID)
	require.NoError(t, err)
	savedState, err := gw.GetState(ctx, rm.ID)
	require.NoError(t, err)
	gotRoom, gotState, err := r.Snapshot(ctx, rm.ID)
	require.NoError(t, err)
	assert.Equal(t, savedRoom.Version, gotRoom.Version)
	assert.Equal(t, savedState.Version, gotState.Version)
}

func TestGameErrorLogging(t *testing.T) {
	gw := newMockGateway()
	clock := new(mockClock)
	cfg := testGameConfig(clock)
	cfg.BotFillDelay = time.Minute
	log := logtest.NewLogger()
	cfg.Log = log
	r := newTestRunner(t, gw, cfg)
	ctx := context.Background()
	rm, err := r.CreateRoom(ctx, room.Micro, "p1")
	require.NoError(t, err)

	_, err = r.JoinRoom(ctx, rm.ID, "p1")
	assert.ErrorIs(t, err, game.ErrAlreadyJoined)
	assert.True(t, log.Empty(), "warnings should not be logged")

	gw.fail.Store(true)
	_, err = r.JoinRoom(ctx, rm.ID, "p2")
	assert.Error(t, err)
	assert.Contains(t, log.String(), "database unavailable")
	assert.Contains(t, log.String(), "p2")

	log.Reset()
	clock.Advance(2 * time.Minute)
	require.Eventually(t, func() bool {
		return strings.Contains(log.String(), "database unavailable")
	}, time.Second, time.Millisecond, "failed bot fill should be logged")
	got, _, err := r.Snapshot(ctx, rm.ID)
	require.NoError(t, err)
	assert.Equal(t, room.Waiting, got.Status)
}

func TestGameConflictRetry(t *testing.T) {
	gw := newMockGateway()
	r := newTestRunner(t, gw, testGameConfig(new(mockClock)))
	ctx := context.Background()
	rm, err := r.CreateRoom(ctx, room.Champion, "p1")
	require.NoError(t, err)

	gw.conflicts.Store(1)
	got, err := r.JoinRoom(ctx, rm.ID, "p2")
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentPlayers)
	assert.Equal(t, int32(2), gw.commits.Load())

	gw.conflicts.Store(2)
	_, err = r.JoinRoom(ctx, rm.ID, "p3")
	assert.ErrorIs(t, err, db.ErrConflict)
	got, _, err = r.Snapshot(ctx, rm.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentPlayers)
}

func TestGameBotFill(t *testing.T) {
	clock := new(mockClock)
	cfg := testGameConfig(clock)
	cfg.BotFillDelay = time.Minute
	cfg.BotDelay = time.Hour
	r := newTestRunner(t, memory.NewGateway(), cfg)
	ctx := context.Background()
	rm, err := r.CreateRoom(ctx, room.Micro, "p1")
	require.NoError(t, err)
	sub := newMockSubscriber()
	require.NoError(t, r.Enter(ctx, rm.ID, "p1", sub))
	sub.next(t)

	clock.Advance(time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.True(t, sub.empty(), "bots should not be seated before the delay")

	clock.Advance(time.Minute)
	assert.Equal(t, []message.Type{message.UpdateGameState, message.RoomFull}, sub.nextTypes(t, 2))
	got, s, err := r.Snapshot(ctx, rm.ID)
	require.NoError(t, err)
	assert.Equal(t, room.Playing, got.Status)
	assert.Equal(t, 16, got.Settings.MoveLimit)
	for i, seat := range got.Seats {
		wantBot := i != 0
		assert.Equal(t, wantBot, seat.Bot, "seat %v", seat.Number)
		assert.Equal(t, wantBot, strings.HasPrefix(string(seat.PlayerID), "bot-"), "seat %v", seat.Number)
		assert.True(t, seat.Ready, "seat %v", seat.Number)
	}
	assert.Equal(t, game.AwaitingRoll, s.Phase)
	assert.Equal(t, player.Seat(1), s.CurrentSeat)
}

func TestGameBotTurns(t *testing.T) {
	r, s := newPlayingRecords(t)
	for i := 1; i < len(r.Seats); i++ {
		r.Seats[i].Bot = true
	}
	cfg := testGameConfig(new(mockClock), 6)
	runner, _ := newSavedGame(t, memory.NewGateway(), cfg, r, s)
	ctx := context.Background()

	_, err := runner.Roll(ctx, r.ID, "p1")
	require.NoError(t, err)
	_, err = runner.Move(ctx, r.ID, "p1", game.Move{TokenIndex: 0, NewPosition: 6})
	require.NoError(t, err)
	var got *game.State
	require.Eventually(t, func() bool {
		_, got, err = runner.Snapshot(ctx, r.ID)
		return err == nil && got.MoveCount(4) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, player.Seat(1), got.CurrentSeat)
	assert.Equal(t, game.AwaitingRoll, got.Phase)
	for _, seat := range player.Seats() {
		assert.Equal(t, 1, got.MoveCount(seat), "seat %v", seat)
	}
}

func TestGameTurnTimeout(t *testing.T) {
	turnTimeoutTests := []struct {
		policy    TimeoutPolicy
		wantPhase game.Phase
		wantSeat  player.Seat
		wantEvent game.Event
	}{
		{
			policy:    SkipPolicy{},
			wantPhase: game.AwaitingRoll,
			wantSeat:  2,
			wantEvent: game.NewSkipEvent(1, SkipTimeout, 10_000),
		},
		{
			wantPhase: game.AwaitingMove,
			wantSeat:  1,
			wantEvent: game.NewRollEvent(1, 6, 10_000),
		},
	}
	for i, test := range turnTimeoutTests {
		r, s := newPlayingRecords(t)
		clock := new(mockClock)
		cfg := testGameConfig(clock, 6)
		cfg.TurnTimeout = 5 * time.Second
		cfg.TimeoutPolicy = test.policy
		runner, sub := newSavedGame(t, memory.NewGateway(), cfg, r, s)

		clock.Advance(time.Second)
		time.Sleep(20 * time.Millisecond)
		assert.True(t, sub.empty(), "Test %v: turn should not time out early", i)

		clock.Advance(9 * time.Second)
		m := sub.next(t)
		require.Equal(t, message.UpdateGameState, m.Type, "Test %v", i)
		got := m.GameState
		assert.Equal(t, test.wantPhase, got.Phase, "Test %v", i)
		assert.Equal(t, test.wantSeat, TurnOwner(*got), "Test %v", i)
		assert.Equal(t, test.wantEvent, got.History[len(got.History)-1], "Test %v", i)

		if test.wantPhase == game.AwaitingMove {
			clock.Advance(5 * time.Second)
			m = sub.next(t)
			got = m.GameState
			assert.Equal(t, 6, got.Board[0][0].Position, "Test %v: auto play should move the first token out", i)
			assert.Equal(t, player.Seat(2), got.CurrentSeat, "Test %v", i)
		}
		_, _, err := runner.Snapshot(context.Background(), r.ID)
		require.NoError(t, err)
	}
}

func TestGameSubmitStopped(t *testing.T) {
	r, s := newPlayingRecords(t)
	cfg := testGameConfig(new(mockClock))
	g, err := cfg.NewGame(r, s, memory.NewGateway())
	require.NoError(t, err)
	ctx, cancelFunc := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	stopped := make(chan game.ID, 1)
	g.Run(ctx, &wg, func(g *Game) {
		stopped <- g.ID()
	})
	cancelFunc()
	wg.Wait()
	assert.Equal(t, r.ID, <-stopped)
	_, err = g.submit(context.Background(), command{Type: snapshotCommand})
	assert.ErrorIs(t, err, errRoomClosed)
	assert.ErrorIs(t, err, game.ErrInvalidState)
}

func TestBroadcaster(t *testing.T) {
	b := newBroadcaster()
	s1 := newMockSubscriber()
	s2 := &mockSubscriber{messages: make(chan message.Message, 1)}
	b.add(s1)
	b.add(s2)
	b.publish(message.NewRoomFull("r1"), message.NewGameOver("r1", "p1"))
	assert.Equal(t, []message.Type{message.RoomFull, message.GameOver}, s1.nextTypes(t, 2))
	assert.Equal(t, 1, b.len(), "slow subscriber should be removed")
	b.remove(s1)
	assert.Equal(t, 0, b.len())
}

func TestBotAction(t *testing.T) {
	_, s := newPlayingRecords(t)
	assert.Equal(t, &Action{Type: RollAction}, BotAction(s))
	s.Phase = game.AwaitingMove
	s.MoveSeat = 2
	s.DiceValue = 6
	assert.Equal(t, &Action{Type: MoveAction, Move: game.Move{TokenIndex: 0, NewPosition: 6}}, BotAction(s))
	s.DiceValue = 2
	assert.Equal(t, &Action{Type: SkipAction, Reason: SkipNoLegalMove}, BotAction(s))
}
