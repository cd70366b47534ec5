package main

import (
	"context"
	crypto_rand "crypto/rand"
	database_sql "database/sql"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jacobpatterson1549/selene-ludo/db"
	"github.com/jacobpatterson1549/selene-ludo/db/firestore"
	"github.com/jacobpatterson1549/selene-ludo/db/memory"
	"github.com/jacobpatterson1549/selene-ludo/db/mongo"
	"github.com/jacobpatterson1549/selene-ludo/db/sql"
	"github.com/jacobpatterson1549/selene-ludo/db/sql/postgres"
	"github.com/jacobpatterson1549/selene-ludo/db/sql/sqlite"
	"github.com/jacobpatterson1549/selene-ludo/server"
	"github.com/jacobpatterson1549/selene-ludo/server/auth"
	"github.com/jacobpatterson1549/selene-ludo/server/game"
	"github.com/jacobpatterson1549/selene-ludo/server/game/lobby"
	"github.com/jacobpatterson1549/selene-ludo/server/game/socket"
	"github.com/jacobpatterson1549/selene-ludo/server/game/socket/gorilla"
	"github.com/jacobpatterson1549/selene-ludo/server/log"
)

const (
	autoPlayTimeoutPolicy = "auto"
	skipTimeoutPolicy     = "skip"
	queryPeriod           = 5 * time.Second
)

// closeFunc releases the resources of a database.
type closeFunc func(ctx context.Context) error

// newGateway opens the database named by the scheme of the url.
func (m mainFlags) newGateway(ctx context.Context) (db.Gateway, closeFunc, error) {
	u, err := url.Parse(m.databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing database url: %w", err)
	}
	cfg := db.Config{
		QueryPeriod: queryPeriod,
	}
	noClose := func(ctx context.Context) error {
		return nil
	}
	switch u.Scheme {
	case "memory":
		return memory.NewGateway(), noClose, nil
	case "postgres", "postgresql":
		d, err := postgres.Open(ctx, m.databaseURL)
		if err != nil {
			return nil, nil, err
		}
		return newSQLGateway(ctx, cfg, d)
	case "sqlite":
		path := strings.TrimPrefix(m.databaseURL, "sqlite://")
		d, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		return newSQLGateway(ctx, cfg, d)
	case "mongodb", "mongodb+srv":
		g, err := mongo.NewGateway(ctx, cfg, m.databaseURL)
		if err != nil {
			return nil, nil, err
		}
		return g, g.Close, nil
	case "firestore":
		g, err := firestore.NewGateway(ctx, cfg, u.Host)
		if err != nil {
			return nil, nil, err
		}
		closeDB := func(ctx context.Context) error {
			return g.Close()
		}
		return g, closeDB, nil
	}
	return nil, nil, fmt.Errorf("unknown database scheme: %q", u.Scheme)
}

// newSQLGateway creates the tables of the gateway.  The database is closed if they cannot be created.
func newSQLGateway(ctx context.Context, cfg db.Config, d *database_sql.DB) (db.Gateway, closeFunc, error) {
	database := sql.Database{
		DB:     d,
		Config: cfg,
	}
	g, err := sql.NewGateway(ctx, database)
	if err != nil {
		d.Close()
		return nil, nil, err
	}
	closeDB := func(ctx context.Context) error {
		return d.Close()
	}
	return g, closeDB, nil
}

// tokenizerConfig creates the configuration for authentication token reader/writer.
func (m mainFlags) tokenizerConfig(keyReader io.Reader) auth.TokenizerConfig {
	var tokenValidDurationSec int64 = int64((24 * time.Hour).Seconds()) // 1 day
	timeFunc := func() int64 {
		return time.Now().UTC().Unix()
	}
	cfg := auth.TokenizerConfig{
		Key:       []byte(m.jwtKey),
		KeyReader: keyReader,
		TimeFunc:  timeFunc,
		ValidSec:  tokenValidDurationSec,
	}
	return cfg
}

// newTimeoutPolicy creates the policy named by the timeout policy flag.
func (m mainFlags) newTimeoutPolicy() (game.TimeoutPolicy, error) {
	switch m.timeoutPolicy {
	case autoPlayTimeoutPolicy:
		return game.AutoPlayPolicy{}, nil
	case skipTimeoutPolicy:
		return game.SkipPolicy{}, nil
	}
	return nil, fmt.Errorf("unknown timeout policy: %q", m.timeoutPolicy)
}

// gameConfig creates the base configuration for all games.
func (m mainFlags) gameConfig(log log.Logger) (*game.Config, error) {
	p, err := m.newTimeoutPolicy()
	if err != nil {
		return nil, err
	}
	timeFunc := func() int64 {
		return time.Now().UTC().UnixMilli()
	}
	cfg := game.Config{
		Debug:         m.debug,
		Log:           log,
		TimeFunc:      timeFunc,
		IDFunc:        uuid.NewString,
		QueueSize:     32,
		TickPeriod:    250 * time.Millisecond,
		BotFillDelay:  m.botFillDelay,
		BotDelay:      m.botDelay,
		TurnTimeout:   m.turnTimeout,
		TimeoutPolicy: p,
	}
	return &cfg, nil
}

// runnerConfig creates the configuration for running and managing games.
func (m mainFlags) runnerConfig(log log.Logger) (*game.RunnerConfig, error) {
	gameCfg, err := m.gameConfig(log)
	if err != nil {
		return nil, fmt.Errorf("creating game config: %w", err)
	}
	cfg := game.RunnerConfig{
		Log:           log,
		MatchAttempts: 3,
		GameConfig:    *gameCfg,
	}
	return &cfg, nil
}

// lobbyConfig creates the configuration for the websockets of players.
func (m mainFlags) lobbyConfig(log log.Logger) lobby.Config {
	upgrader := gorilla.NewUpgrader(nil)
	socketCfg := socket.Config{
		Debug:      m.debug,
		Log:        log,
		ReadWait:   m.socketReadWait,
		WriteWait:  10 * time.Second,
		PingPeriod: m.socketReadWait * 9 / 10,
		IdlePeriod: m.socketIdlePeriod,
		OutboxSize: 32,
	}
	cfg := lobby.Config{
		Debug:      m.debug,
		Log:        log,
		MaxSockets: m.maxSockets,
		Upgrade:    upgradeFunc(upgrader),
		SocketCfg:  socketCfg,
	}
	return cfg
}

// upgradeFunc creates socket connections with the upgrader.
func upgradeFunc(u *gorilla.Upgrader) lobby.UpgradeFunc {
	return func(w http.ResponseWriter, r *http.Request) (socket.Conn, error) {
		c, err := u.Upgrade(w, r)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// serverConfig creates the server configuration.
func (m mainFlags) serverConfig() server.Config {
	var acmeHosts []string
	for _, h := range strings.Split(m.acmeHosts, ",") {
		if h = strings.TrimSpace(h); len(h) != 0 {
			acmeHosts = append(acmeHosts, h)
		}
	}
	cfg := server.Config{
		Debug:        m.debug,
		HTTPPort:     m.httpPort,
		HTTPSPort:    m.httpsPort,
		StopDur:      5 * time.Second,
		TLSCertFile:  m.tlsCertFile,
		TLSKeyFile:   m.tlsKeyFile,
		ACMEHosts:    acmeHosts,
		ACMECacheDir: m.acmeCacheDir,
	}
	return cfg
}

// newServer creates the server and the game runner it uses.
func (m mainFlags) newServer(log log.Logger, gw db.Gateway) (*server.Server, *game.Runner, error) {
	tokenizer, err := m.tokenizerConfig(crypto_rand.Reader).NewTokenizer()
	if err != nil {
		return nil, nil, fmt.Errorf("creating authentication tokenizer: %w", err)
	}
	runnerCfg, err := m.runnerConfig(log)
	if err != nil {
		return nil, nil, fmt.Errorf("creating game runner config: %w", err)
	}
	runner, err := runnerCfg.NewRunner(gw)
	if err != nil {
		return nil, nil, fmt.Errorf("creating game runner: %w", err)
	}
	lobbyCfg := m.lobbyConfig(log)
	lobby, err := lobbyCfg.NewLobby(runner)
	if err != nil {
		return nil, nil, fmt.Errorf("creating lobby: %w", err)
	}
	p := server.Parameters{
		Log:       log,
		Tokenizer: tokenizer,
		Rooms:     runner,
		Lobby:     lobby,
	}
	serverCfg := m.serverConfig()
	s, err := serverCfg.NewServer(p)
	if err != nil {
		return nil, nil, fmt.Errorf("creating server: %w", err)
	}
	return s, runner, nil
}
