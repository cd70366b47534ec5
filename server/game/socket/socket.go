// Package socket handles communication with a player using a websocket connection.
package socket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jacobpatterson1549/selene-ludo/game/message"
	"github.com/jacobpatterson1549/selene-ludo/game/player"
	"github.com/jacobpatterson1549/selene-ludo/server/log"
)

type (
	// Socket reads and writes messages to the clients of a player.
	Socket struct {
		Conn
		PlayerID player.ID
		Addr     message.Addr
		out      chan message.Message
		closed   chan struct{}
		once     sync.Once
		reason   string
		active   atomic.Bool
		Config
	}

	// Config contains commonly shared Socket properties.
	Config struct {
		// Debug is a flag that causes the socket to log the types non-ping/pong messages that are read/written.
		Debug bool
		// Log is used to log errors and other information.
		Log log.Logger
		// ReadWait is the amount of time that can pass between receiving client messages before timing out.
		ReadWait time.Duration
		// WriteWait is the amount of time that the socket can take to write a message.
		WriteWait time.Duration
		// PingPeriod is how often ping messages should be sent.  Should be less than ReadWait.
		PingPeriod time.Duration
		// IdlePeriod is the amount of time that can pass between handling messages that are not pings before the connection is idle and will be disconnected.
		IdlePeriod time.Duration
		// OutboxSize is the number of messages that can wait to be written before the socket is closed for being too slow.
		OutboxSize int
	}

	// Conn is the connection than backs the socket.
	Conn interface {
		// ReadMessage reads the next message from the connection.
		ReadMessage(m *message.Message) error
		// WriteMessage writes the message to the connection.
		WriteMessage(m message.Message) error
		// WritePing writes a ping message on the connection.
		WritePing() error
		// WriteClose writes a close message on the connection.
		WriteClose(reason string) error
		// IsNormalClose determines if the error message is not an unexpected close error.
		IsNormalClose(err error) bool
		// SetReadDeadline sets the time the next read must finish by.
		SetReadDeadline(t time.Time) error
		// SetWriteDeadline sets the time the next write must finish by.
		SetWriteDeadline(t time.Time) error
		// SetPongHandler sets the function called when the client answers a ping.
		SetPongHandler(h func(appData string) error)
		// RemoteAddr gets the remote network address of the connection.
		RemoteAddr() net.Addr
		// Close closes the connection.
		Close() error
	}

	// Handler reacts to the messages read from sockets.
	Handler interface {
		// HandleMessage is called for each message the socket reads, in order.
		HandleMessage(ctx context.Context, s *Socket, m message.Message)
		// SocketClosed is called once after the socket stops.
		SocketClosed(s *Socket)
	}
)

var errSocketClosed = errors.New("socket closed")

// NewSocket creates a socket for the player.
func (cfg Config) NewSocket(conn Conn, playerID player.ID) (*Socket, error) {
	if err := cfg.validate(conn, playerID); err != nil {
		return nil, fmt.Errorf("creating socket: validation: %w", err)
	}
	s := Socket{
		Conn:     conn,
		PlayerID: playerID,
		out:      make(chan message.Message, cfg.OutboxSize),
		closed:   make(chan struct{}),
		Config:   cfg,
	}
	if addr := conn.RemoteAddr(); addr != nil {
		s.Addr = message.Addr(addr.String())
	}
	return &s, nil
}

// validate ensures the configuration has no errors.
func (cfg Config) validate(conn Conn, playerID player.ID) error {
	switch {
	case cfg.Log == nil:
		return fmt.Errorf("log required")
	case conn == nil:
		return fmt.Errorf("websocket connection required")
	case len(playerID) == 0:
		return fmt.Errorf("player id required")
	case cfg.ReadWait <= 0:
		return fmt.Errorf("positive read wait period required")
	case cfg.WriteWait <= 0:
		return fmt.Errorf("positive write wait period required")
	case cfg.PingPeriod <= 0:
		return fmt.Errorf("positive ping period required")
	case cfg.IdlePeriod <= 0:
		return fmt.Errorf("positive idle period required")
	case cfg.OutboxSize <= 0:
		return fmt.Errorf("positive outbox size required")
	case cfg.PingPeriod >= cfg.ReadWait:
		return fmt.Errorf("ping period should be less than read wait")
	}
	return nil
}

// Run reads messages from the connection for the handler and writes queued messages to it on separate goroutines.
// The Socket runs until the connection fails, it is closed, or the context is cancelled.
func (s *Socket) Run(ctx context.Context, h Handler) {
	var wg sync.WaitGroup
	wg.Add(2)
	go s.readMessages(ctx, h, &wg)
	go s.writeMessages(ctx, &wg)
	go func() {
		wg.Wait()
		s.Conn.Close()
		h.SocketClosed(s)
	}()
}

// Send queues the message to be written without blocking.
// If the queue is full, the socket is closed and false is returned.
func (s *Socket) Send(m message.Message) bool {
	select {
	case <-s.closed:
		return false
	default:
	}
	select {
	case s.out <- m:
		return true
	default:
		s.Close("socket cannot keep up with messages")
		return false
	}
}

// Close stops the socket.  Only the first reason is kept.
func (s *Socket) Close(reason string) {
	s.once.Do(func() {
		s.reason = reason
		close(s.closed)
	})
}

// Done is closed when the socket stops.
func (s *Socket) Done() <-chan struct{} {
	return s.closed
}

// String identifies the socket for logging.
func (s *Socket) String() string {
	return fmt.Sprintf("%v@%v", s.PlayerID, s.Addr)
}

// readMessages receives messages from the connected socket and passes them to the handler.
func (s *Socket) readMessages(ctx context.Context, h Handler, wg *sync.WaitGroup) {
	defer wg.Done()
	defer s.Close("")
	s.Conn.SetReadDeadline(time.Now().Add(s.ReadWait))
	s.Conn.SetPongHandler(func(appData string) error {
		return s.Conn.SetReadDeadline(time.Now().Add(s.ReadWait))
	})
	for { // BLOCKING
		m, err := s.readMessage()
		select {
		case <-ctx.Done():
			return
		case <-s.closed:
			return
		default:
		}
		if err != nil {
			if err != errSocketClosed {
				s.Close(fmt.Sprintf("reading socket messages stopped for player %v: %v", s, err))
			}
			return
		}
		s.active.Store(true)
		h.HandleMessage(ctx, s, *m)
	}
}

// writeMessages sends queued messages to the connected socket.
// The tickers are used to periodically write pings and check for read activity.
func (s *Socket) writeMessages(ctx context.Context, wg *sync.WaitGroup) {
	pingTicker := time.NewTicker(s.PingPeriod)
	idleTicker := time.NewTicker(s.IdlePeriod)
	var closeReason string
	defer func() {
		pingTicker.Stop()
		idleTicker.Stop()
		s.Close(closeReason)
		s.writeClose()
		s.Conn.Close() // stops the blocking read
		wg.Done()
	}()
	var err error
	for { // BLOCKING
		select {
		case <-ctx.Done():
			closeReason = "server shutting down"
			return
		case <-s.closed:
			return
		case m := <-s.out:
			err = s.writeMessage(m)
		case <-pingTicker.C:
			s.Conn.SetWriteDeadline(time.Now().Add(s.WriteWait))
			err = s.Conn.WritePing()
		case <-idleTicker.C:
			if !s.active.Swap(false) {
				closeReason = "closing socket due to inactivity"
				return
			}
		}
		if err != nil {
			closeReason = fmt.Sprintf("writing socket messages stopped for player %v: %v", s, err)
			return
		}
	}
}

// writeClose tells the client why the socket is closing.
func (s *Socket) writeClose() {
	if len(s.reason) != 0 {
		s.Log.Printf("%v", s.reason)
	}
	s.Conn.SetWriteDeadline(time.Now().Add(s.WriteWait))
	s.Conn.WriteClose(s.reason)
}

// readMessage reads the next message from the connection.
func (s *Socket) readMessage() (*message.Message, error) {
	var m message.Message
	if err := s.Conn.ReadMessage(&m); err != nil { // BLOCKING
		if s.Conn.IsNormalClose(err) {
			return nil, errSocketClosed
		}
		return nil, fmt.Errorf("unexpected socket closure: %v", err)
	}
	if s.Debug {
		s.Log.Printf("socket %v reading message with type %v", s, m.Type)
	}
	m.Addr = s.Addr
	return &m, nil
}

// writeMessage writes a message to the connection.
func (s *Socket) writeMessage(m message.Message) error {
	if s.Debug {
		s.Log.Printf("socket %v writing message with type %v", s, m.Type)
	}
	s.Conn.SetWriteDeadline(time.Now().Add(s.WriteWait))
	if err := s.Conn.WriteMessage(m); err != nil {
		return fmt.Errorf("writing socket message: %v", err)
	}
	return nil
}
