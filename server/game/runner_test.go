package game

import (
	"context"
	"errors"
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

func newTestRunner(t *testing.T, gw db.Gateway, cfg Config) *Runner {
	t.Helper()
	rc := RunnerConfig{
		Log:           logtest.DiscardLogger,
		MatchAttempts: 3,
		GameConfig:    cfg,
	}
	r, err := rc.NewRunner(gw)
	require.NoError(t, err)
	ctx, cancelFunc := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	r.Run(ctx, &wg)
	t.Cleanup(func() {
		cancelFunc()
		wg.Wait()
	})
	return r
}

func TestNewRunner(t *testing.T) {
	clock := new(mockClock)
	newRunnerTests := []struct {
		cfg    func(cfg *RunnerConfig)
		gw     db.Gateway
		wantOk bool
	}{
		{
			cfg: func(cfg *RunnerConfig) {},
		},
		{
			cfg: func(cfg *RunnerConfig) { cfg.Log = nil },
			gw:  memory.NewGateway(),
		},
		{
			cfg: func(cfg *RunnerConfig) { cfg.MatchAttempts = 0 },
			gw:  memory.NewGateway(),
		},
		{
			cfg: func(cfg *RunnerConfig) { cfg.GameConfig.IDFunc = nil },
			gw:  memory.NewGateway(),
		},
		{
			cfg: func(cfg *RunnerConfig) { cfg.GameConfig.TimeFunc = nil },
			gw:  memory.NewGateway(),
		},
		{
			cfg:    func(cfg *RunnerConfig) {},
			gw:     memory.NewGateway(),
			wantOk: true,
		},
	}
	for i, test := range newRunnerTests {
		cfg := RunnerConfig{
			Log:           logtest.DiscardLogger,
			MatchAttempts: 1,
			GameConfig:    testGameConfig(clock),
		}
		test.cfg(&cfg)
		_, err := cfg.NewRunner(test.gw)
		switch {
		case !test.wantOk:
			if err == nil {
				t.Errorf("Test %v: wanted error", i)
			}
		case err != nil:
			t.Errorf("Test %v: unwanted error: %v", i, err)
		}
	}
}

func TestRunnerNotRunning(t *testing.T) {
	rc := RunnerConfig{
		Log:           logtest.DiscardLogger,
		MatchAttempts: 1,
		GameConfig:    testGameConfig(new(mockClock)),
	}
	r, err := rc.NewRunner(memory.NewGateway())
	require.NoError(t, err)
	_, err = r.CreateRoom(context.Background(), room.Amateur, "p1")
	assert.ErrorIs(t, err, errNotRunning)
}

func TestRunnerAmateurRoom(t *testing.T) {
	clock := new(mockClock)
	gw := memory.NewGateway()
	r := newTestRunner(t, gw, testGameConfig(clock, 6, 3))
	ctx := context.Background()

	rm, err := r.CreateRoom(ctx, room.Amateur, "p1")
	require.NoError(t, err)
	assert.Equal(t, room.Waiting, rm.Status)
	assert.Equal(t, room.Amount(1000), rm.EntryFee)
	assert.Equal(t, 10, rm.Settings.MoveLimit)
	assert.Len(t, rm.Code, 6)

	sub := newMockSubscriber()
	require.NoError(t, r.Enter(ctx, rm.ID, "p1", sub))
	m := sub.next(t)
	require.Equal(t, message.UpdateGameState, m.Type)
	assert.True(t, m.Room.Seats[0].Ready)

	for i, id := range []player.ID{"p2", "p3"} {
		got, err := r.JoinRoom(ctx, rm.ID, id)
		require.NoError(t, err)
		assert.Equal(t, i+2, got.CurrentPlayers)
		assert.Equal(t, got.CurrentPlayers, len(got.Seats))
		assert.Equal(t, player.Seat(i+2), got.Seats[i+1].Number)
	}
	assert.Equal(t, []message.Type{message.UpdateGameState, message.UpdateGameState}, sub.nextTypes(t, 2))

	_, err = r.JoinRoom(ctx, rm.ID, "p2")
	assert.ErrorIs(t, err, game.ErrAlreadyJoined)

	sub4 := newMockSubscriber()
	require.NoError(t, r.Enter(ctx, rm.ID, "p4", sub4))
	assert.Equal(t, []message.Type{message.UpdateGameState, message.RoomFull}, sub.nextTypes(t, 2))
	assert.Equal(t, []message.Type{message.UpdateGameState, message.RoomFull}, sub4.nextTypes(t, 2))

	got, s, err := r.Snapshot(ctx, rm.ID)
	require.NoError(t, err)
	assert.Equal(t, room.Playing, got.Status)
	assert.Equal(t, room.MaxPlayers, got.CurrentPlayers)
	assert.Equal(t, game.AwaitingRoll, s.Phase)
	assert.Equal(t, player.Seat(1), s.CurrentSeat)

	_, err = r.JoinRoom(ctx, rm.ID, "p5")
	assert.ErrorIs(t, err, game.ErrRoomFull)

	// six lets the first token leave home
	s, err = r.Roll(ctx, rm.ID, "p1")
	require.NoError(t, err)
	assert.Equal(t, 6, s.DiceValue)
	assert.Equal(t, game.AwaitingMove, s.Phase)
	assert.Equal(t, player.Seat(2), s.CurrentSeat)
	_, err = r.Roll(ctx, rm.ID, "p2")
	assert.ErrorIs(t, err, game.ErrNotYourTurn)
	_, err = r.Move(ctx, rm.ID, "p1", game.Move{TokenIndex: 0, NewPosition: 5})
	assert.ErrorIs(t, err, game.ErrInvalidMove)
	s, err = r.Move(ctx, rm.ID, "p1", game.Move{TokenIndex: 0, NewPosition: 6})
	require.NoError(t, err)
	assert.Equal(t, 6, s.Board[0][0].Position)
	assert.False(t, s.Board[0][0].Home)
	assert.Equal(t, 1, s.MoveCount(1))

	// three cannot move a token from home, so the turn is skipped
	s, err = r.Roll(ctx, rm.ID, "p2")
	require.NoError(t, err)
	assert.Equal(t, 3, s.DiceValue)
	assert.Equal(t, game.AwaitingRoll, s.Phase)
	assert.Equal(t, player.Seat(3), s.CurrentSeat)
	last := s.History[len(s.History)-1]
	assert.Equal(t, game.NewSkipEvent(2, SkipNoLegalMove, 0), last)
	_, err = r.Move(ctx, rm.ID, "p2", game.Move{TokenIndex: 0, NewPosition: 3})
	assert.ErrorIs(t, err, game.ErrNotYourTurn)

	for i := 0; i < 3; i++ { // roll, move, skipped roll
		m := sub.next(t)
		assert.Equal(t, message.UpdateGameState, m.Type, "message %v", i)
	}
	assert.True(t, sub.empty(), "rejected requests should not be broadcast")

	saved, err := gw.GetState(ctx, rm.ID)
	require.NoError(t, err)
	assert.Equal(t, *s, *saved)
}

func TestRunnerConcurrentJoin(t *testing.T) {
	r := newTestRunner(t, memory.NewGateway(), testGameConfig(new(mockClock)))
	ctx := context.Background()
	rm, err := r.CreateRoom(ctx, room.Pro, "p1")
	require.NoError(t, err)
	for _, id := range []player.ID{"p2", "p3"} {
		_, err := r.JoinRoom(ctx, rm.ID, id)
		require.NoError(t, err)
	}
	ids := []player.ID{"p4", "p5"}
	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = r.JoinRoom(ctx, rm.ID, id)
		}()
	}
	wg.Wait()
	var numJoined, numFull int
	for _, err := range errs {
		switch {
		case err == nil:
			numJoined++
		case errors.Is(err, game.ErrRoomFull):
			numFull++
		default:
			t.Errorf("unwanted error: %v", err)
		}
	}
	assert.Equal(t, 1, numJoined)
	assert.Equal(t, 1, numFull)
	got, _, err := r.Snapshot(ctx, rm.ID)
	require.NoError(t, err)
	assert.Equal(t, room.MaxPlayers, got.CurrentPlayers)
	assert.Len(t, got.Seats, room.MaxPlayers)
}

func TestRunnersSharingGateway(t *testing.T) {
	gw := memory.NewGateway()
	clock := new(mockClock)
	r1 := newTestRunner(t, gw, testGameConfig(clock))
	r2 := newTestRunner(t, gw, testGameConfig(clock))
	ctx := context.Background()
	rm, err := r1.CreateRoom(ctx, room.Pro, "p1")
	require.NoError(t, err)
	for _, id := range []player.ID{"p2", "p3"} {
		_, err := r1.JoinRoom(ctx, rm.ID, id)
		require.NoError(t, err)
	}
	_, _, err = r2.Snapshot(ctx, rm.ID) // loads the room into the second runner
	require.NoError(t, err)
	_, err = r1.JoinRoom(ctx, rm.ID, "p4")
	require.NoError(t, err)
	_, err = r2.JoinRoom(ctx, rm.ID, "p5")
	assert.ErrorIs(t, err, game.ErrRoomFull, "the stale room should be reloaded")
	got, err := gw.GetRoom(ctx, rm.ID)
	require.NoError(t, err)
	assert.Equal(t, player.ID("p4"), got.Seats[3].PlayerID)
}

func TestRunnerMatchmake(t *testing.T) {
	gw := memory.NewGateway()
	r := newTestRunner(t, gw, testGameConfig(new(mockClock)))
	ctx := context.Background()

	open, err := r.FindOpenRoom(ctx, room.Expert)
	require.NoError(t, err)
	assert.Nil(t, open)

	rm1, err := r.Matchmake(ctx, room.Expert, "p1")
	require.NoError(t, err)
	assert.Equal(t, player.ID("p1"), rm1.CreatedBy)
	rm2, err := r.Matchmake(ctx, room.Expert, "p2")
	require.NoError(t, err)
	assert.Equal(t, rm1.ID, rm2.ID)
	assert.Equal(t, 2, rm2.CurrentPlayers)
	rm3, err := r.Matchmake(ctx, room.Expert, "p2")
	require.NoError(t, err)
	assert.Equal(t, rm1.ID, rm3.ID, "player should stay in the room they joined")
	rm4, err := r.Matchmake(ctx, room.Micro, "p3")
	require.NoError(t, err)
	assert.NotEqual(t, rm1.ID, rm4.ID)
	assert.Equal(t, room.Micro, rm4.Tier)

	open, err = r.FindOpenRoom(ctx, room.Expert)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, rm1.ID, open.ID)

	_, err = r.FindOpenRoom(ctx, room.Tier("huge"))
	assert.Error(t, err)
}

func TestRunnerCancelRoom(t *testing.T) {
	gw := memory.NewGateway()
	r := newTestRunner(t, gw, testGameConfig(new(mockClock)))
	ctx := context.Background()
	rm, err := r.CreateRoom(ctx, room.Master, "p1")
	require.NoError(t, err)
	_, err = r.JoinRoom(ctx, rm.ID, "p2")
	require.NoError(t, err)

	_, err = r.CancelRoom(ctx, rm.ID, "p2")
	assert.ErrorIs(t, err, game.ErrNotCreator)
	got, err := r.CancelRoom(ctx, rm.ID, "p1")
	require.NoError(t, err)
	assert.Equal(t, room.Cancelled, got.Status)
	require.Eventually(t, func() bool { return r.NumGames() == 0 }, time.Second, time.Millisecond)

	_, err = r.JoinRoom(ctx, rm.ID, "p3")
	assert.ErrorIs(t, err, game.ErrInvalidState)
	got, _, err = r.Snapshot(ctx, rm.ID)
	require.NoError(t, err)
	assert.Equal(t, room.Cancelled, got.Status)
	sub := newMockSubscriber()
	require.NoError(t, r.Enter(ctx, rm.ID, "p1", sub))
	assert.Equal(t, room.Cancelled, sub.next(t).Room.Status)

	open, err := r.FindOpenRoom(ctx, room.Master)
	require.NoError(t, err)
	assert.Nil(t, open)
}

func TestRunnerNotFound(t *testing.T) {
	r := newTestRunner(t, memory.NewGateway(), testGameConfig(new(mockClock)))
	ctx := context.Background()
	_, err := r.JoinRoom(ctx, "missing", "p1")
	assert.ErrorIs(t, err, db.ErrNotFound)
	_, _, err = r.Snapshot(ctx, "missing")
	assert.ErrorIs(t, err, db.ErrNotFound)
	r.Leave(ctx, "missing", newMockSubscriber())
}

func TestRunnerLeave(t *testing.T) {
	r := newTestRunner(t, memory.NewGateway(), testGameConfig(new(mockClock)))
	ctx := context.Background()
	rm, err := r.CreateRoom(ctx, room.Pro, "p1")
	require.NoError(t, err)
	sub := newMockSubscriber()
	require.NoError(t, r.Enter(ctx, rm.ID, "p1", sub))
	sub.next(t)
	r.Leave(ctx, rm.ID, sub)
	_, err = r.JoinRoom(ctx, rm.ID, "p2")
	require.NoError(t, err)
	assert.True(t, sub.empty(), "left subscriber should not receive messages")
}
