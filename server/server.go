// Package server runs the http server which lets players create and join rooms and open websockets to play the game.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jacobpatterson1549/selene-ludo/game"
	"github.com/jacobpatterson1549/selene-ludo/game/player"
	"github.com/jacobpatterson1549/selene-ludo/game/room"
	"github.com/jacobpatterson1549/selene-ludo/server/log"
	"golang.org/x/crypto/acme/autocert"
)

type (
	// Server runs the site.
	Server struct {
		log         log.Logger
		lobby       Lobby
		engine      *gin.Engine
		certManager *autocert.Manager
		HTTPServer  *http.Server
		HTTPSServer *http.Server
		Config
	}

	// Config contains fields which describe the server.
	Config struct {
		// Debug causes every request to be logged.
		Debug bool
		// HTTPPort is the TCP port for server http requests.  When TLS is used, all traffic is redirected to the https port.
		HTTPPort int
		// HTTPSPort is the TCP port for server https requests.  The https server only runs when TLS is configured.
		HTTPSPort int
		// StopDur is the maximum duration the server should take to shutdown gracefully.
		StopDur time.Duration
		// TLSCertFile is the public HTTPS certificate file.
		TLSCertFile string
		// TLSKeyFile is the private HTTPS key file.
		TLSKeyFile string
		// ACMEHosts are the host names certificates are requested for with the ACME HTTP-01 challenge.
		// Certificates are only managed when TLS files are not provided.
		ACMEHosts []string
		// ACMECacheDir is the folder that managed certificates are saved in.
		ACMECacheDir string
	}

	// Parameters contains the interfaces needed to create a new server.
	Parameters struct {
		Log       log.Logger
		Tokenizer Tokenizer
		Rooms     Rooms
		Lobby     Lobby
	}

	// Tokenizer reads the player of authentication tokens.
	Tokenizer interface {
		ReadPlayerID(tokenString string) (player.ID, error)
	}

	// Rooms creates, finds and cancels rooms.
	Rooms interface {
		CreateRoom(ctx context.Context, tier room.Tier, creator player.ID) (*room.Room, error)
		Matchmake(ctx context.Context, tier room.Tier, playerID player.ID) (*room.Room, error)
		CancelRoom(ctx context.Context, id game.ID, playerID player.ID) (*room.Room, error)
		Snapshot(ctx context.Context, id game.ID) (*room.Room, *game.State, error)
		NumGames() int
	}

	// Lobby connects players to rooms with websockets.
	Lobby interface {
		Run(ctx context.Context)
		AddUser(playerID player.ID, w http.ResponseWriter, r *http.Request) error
		NumSockets() int
	}
)

// NewServer creates a Server from the Config.
func (cfg Config) NewServer(p Parameters) (*Server, error) {
	if err := cfg.validate(p); err != nil {
		return nil, fmt.Errorf("creating server: validation: %w", err)
	}
	s := Server{
		log:   p.Log,
		lobby: p.Lobby,
		HTTPServer: &http.Server{
			Addr:              ":" + strconv.Itoa(cfg.HTTPPort),
			ReadHeaderTimeout: 10 * time.Second,
		},
		Config: cfg,
	}
	s.engine = s.newEngine(p)
	switch {
	case cfg.hasTLS():
		s.certManager = cfg.newCertManager()
		s.HTTPSServer = &http.Server{
			Addr:              ":" + strconv.Itoa(cfg.HTTPSPort),
			Handler:           s.engine,
			ReadHeaderTimeout: 10 * time.Second,
		}
		var redirect http.Handler = httpsRedirectHandler(cfg.HTTPSPort)
		if s.certManager != nil {
			s.HTTPSServer.TLSConfig = s.certManager.TLSConfig()
			redirect = s.certManager.HTTPHandler(redirect)
		}
		s.HTTPServer.Handler = redirect
	default:
		s.HTTPServer.Handler = s.engine
	}
	return &s, nil
}

// validate ensures the configuration and parameters have no errors.
func (cfg Config) validate(p Parameters) error {
	switch {
	case p.Log == nil:
		return fmt.Errorf("log required")
	case p.Tokenizer == nil:
		return fmt.Errorf("tokenizer required")
	case p.Rooms == nil:
		return fmt.Errorf("rooms required")
	case p.Lobby == nil:
		return fmt.Errorf("lobby required")
	case cfg.StopDur <= 0:
		return fmt.Errorf("stop timeout duration required")
	case cfg.HTTPPort <= 0:
		return fmt.Errorf("positive http port required")
	case cfg.hasTLS() && cfg.HTTPSPort <= 0:
		return fmt.Errorf("positive https port required to use tls")
	case (len(cfg.TLSCertFile) == 0) != (len(cfg.TLSKeyFile) == 0):
		return fmt.Errorf("both tls cert and key files required")
	case len(cfg.ACMEHosts) != 0 && len(cfg.ACMECacheDir) == 0:
		return fmt.Errorf("acme cache dir required to manage certificates")
	}
	return nil
}

// hasTLS determines if the server should serve https requests.
func (cfg Config) hasTLS() bool {
	return len(cfg.TLSCertFile) != 0 || len(cfg.ACMEHosts) != 0
}

// newCertManager creates a manager to fetch certificates for the hosts, or nil if certificate files are provided.
func (cfg Config) newCertManager() *autocert.Manager {
	if len(cfg.TLSCertFile) != 0 {
		return nil
	}
	m := autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(cfg.ACMEHosts...),
		Cache:      autocert.DirCache(cfg.ACMECacheDir),
	}
	return &m
}

// Handler is the handler of the api endpoints.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run the server asynchronously until it receives a shutdown signal.
// When the HTTP/HTTPS servers stop, errors are logged to the error channel.
func (s *Server) Run(ctx context.Context) <-chan error {
	errC := make(chan error, 2)
	ctx, cancelFunc := context.WithCancel(ctx)
	s.HTTPServer.RegisterOnShutdown(cancelFunc)
	s.lobby.Run(ctx)
	s.log.Printf("starting http server at http://127.0.0.1%v", s.HTTPServer.Addr)
	go func() {
		errC <- s.HTTPServer.ListenAndServe()
	}()
	if s.HTTPSServer != nil {
		s.HTTPSServer.RegisterOnShutdown(cancelFunc)
		s.log.Printf("starting https server at https://127.0.0.1%v", s.HTTPSServer.Addr)
		go func() {
			errC <- s.HTTPSServer.ListenAndServeTLS(s.TLSCertFile, s.TLSKeyFile)
		}()
	}
	return errC
}

// Stop asks the server to shutdown and waits for the shutdown to complete.
// An error is returned if the context times out.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancelFunc := context.WithTimeout(ctx, s.StopDur)
	defer cancelFunc()
	var httpsShutdownErr error
	if s.HTTPSServer != nil {
		httpsShutdownErr = s.HTTPSServer.Shutdown(ctx)
	}
	httpShutdownErr := s.HTTPServer.Shutdown(ctx)
	return errors.Join(httpsShutdownErr, httpShutdownErr)
}

// httpsRedirectHandler redirects the request to https.
func httpsRedirectHandler(httpsPort int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		if httpsPort != 443 {
			host = net.JoinHostPort(host, strconv.Itoa(httpsPort))
		}
		httpsURI := "https://" + host + r.URL.RequestURI()
		http.Redirect(w, r, httpsURI, http.StatusTemporaryRedirect)
	}
}
