// Package main starts the server after configuring it from supplied or standard arguments
package main

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/jacobpatterson1549/selene-ludo/server"
	"github.com/jacobpatterson1549/selene-ludo/server/game"
	"github.com/jacobpatterson1549/selene-ludo/server/log"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// main configures and runs the server.
func main() {
	ctx := context.Background()
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		stdlog.Fatalf("loading .env file: %v", err)
	}
	m, err := newMainFlags(os.Args, os.LookupEnv)
	if err != nil {
		stdlog.Fatalf("parsing flags: %v", err)
	}
	z, err := log.NewZap(m.debug)
	if err != nil {
		stdlog.Fatalf("creating logger: %v", err)
	}
	defer z.Sync()
	if !m.debug {
		gin.SetMode(gin.ReleaseMode)
	}
	log := log.NewZapLogger(z)
	if err := run(ctx, *m, log); err != nil {
		z.Fatal("running server", zap.Error(err))
	}
	log.Printf("server run stopped successfully")
}

// run creates the database and server and runs them until the server stops.
func run(ctx context.Context, m mainFlags, log log.Logger) error {
	gw, closeDB, err := m.newGateway(ctx)
	if err != nil {
		return fmt.Errorf("setting up database: %w", err)
	}
	defer func() {
		if err := closeDB(ctx); err != nil {
			log.Printf("closing database: %v", err)
		}
	}()
	s, runner, err := m.newServer(log, gw)
	if err != nil {
		return err
	}
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	var wg sync.WaitGroup
	runner.Run(ctx, &wg)
	err = runServer(ctx, s, runner, log)
	cancelFunc()
	wg.Wait()
	return err
}

// runServer runs the server until it is interrupted or terminated.
func runServer(ctx context.Context, s *server.Server, runner *game.Runner, log log.Logger) error {
	done := make(chan os.Signal, 2)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)
	errC := s.Run(ctx)
	select { // BLOCKING
	case err := <-errC:
		switch {
		case errors.Is(err, http.ErrServerClosed):
			log.Printf("server shutdown triggered")
		default:
			log.Printf("server stopped unexpectedly: %v", err)
		}
	case signal := <-done:
		log.Printf("handled signal: %v", signal)
	}
	log.Printf("stopping server with %v running rooms", runner.NumGames())
	if err := s.Stop(ctx); err != nil {
		return fmt.Errorf("stopping server: %v", err)
	}
	return nil
}
