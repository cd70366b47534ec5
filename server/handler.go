package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jacobpatterson1549/selene-ludo/db"
	"github.com/jacobpatterson1549/selene-ludo/game"
	"github.com/jacobpatterson1549/selene-ludo/game/player"
	"github.com/jacobpatterson1549/selene-ludo/game/room"
	"github.com/jacobpatterson1549/selene-ludo/server/log"
)

type (
	// roomRequest is the body of requests to create or match rooms.
	roomRequest struct {
		Tier room.Tier `json:"tier"`
	}

	// snapshotResponse is a room and the state of its game.
	snapshotResponse struct {
		Room  *room.Room  `json:"room"`
		State *game.State `json:"state"`
	}
)

const (
	// HeaderAuthorization is the header that holds the bearer token of the player.
	HeaderAuthorization = "Authorization"
	// accessTokenParam is the query parameter that holds the token when headers cannot be set, as with websockets.
	accessTokenParam = "access_token"
	// playerIDKey is the gin context key of the authenticated player.
	playerIDKey = "playerID"
)

var (
	errUnauthorized = errors.New("valid bearer token required")
	errInvalidTier  = errors.New("invalid tier")
)

// newEngine creates the router of the api endpoints.
func (s *Server) newEngine(p Parameters) *gin.Engine {
	e := gin.New()
	e.Use(gin.Recovery())
	if s.Debug {
		e.Use(requestLogger(p.Log))
	}
	e.GET("/health", handleHealth)
	e.GET("/tiers", handleTiers)
	e.GET("/monitor", s.handleMonitor(p.Rooms, p.Lobby))
	e.GET("/rooms/:id", handleGetRoom(p.Rooms))
	a := e.Group("/", authenticate(p.Tokenizer, p.Log))
	a.POST("/rooms", handleCreateRoom(p.Rooms))
	a.POST("/rooms/match", handleMatchmake(p.Rooms))
	a.DELETE("/rooms/:id", handleCancelRoom(p.Rooms))
	a.GET("/ws", handleWebsocket(p.Lobby, p.Log))
	return e
}

// requestLogger logs the method, path, status, and duration of each request.
func requestLogger(log log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("%v %v: %v (%v)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// authenticate reads the player from the token of the request before running the other handlers.
func authenticate(tokenizer Tokenizer, log log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			writeError(c, errUnauthorized)
			return
		}
		playerID, err := tokenizer.ReadPlayerID(tokenString)
		if err != nil {
			log.Printf("reading token: %v", err)
			writeError(c, errUnauthorized)
			return
		}
		c.Set(playerIDKey, playerID)
		c.Next()
	}
}

// bearerToken gets the token from the authorization header, or the access token query parameter.
func bearerToken(c *gin.Context) (string, bool) {
	authorization := c.GetHeader(HeaderAuthorization)
	if t, ok := strings.CutPrefix(authorization, "Bearer "); ok && len(t) != 0 {
		return t, true
	}
	if t := c.Query(accessTokenParam); len(t) != 0 {
		return t, true
	}
	return "", false
}

// playerID is the authenticated player of the request.
func playerID(c *gin.Context) player.ID {
	return c.MustGet(playerIDKey).(player.ID)
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleTiers writes the entry fee, move limit, and prizes of each tier.
func handleTiers(c *gin.Context) {
	tiers := room.Tiers()
	infos := make([]room.TierInfo, 0, len(tiers))
	for _, t := range tiers {
		i, err := t.Info()
		if err != nil {
			writeError(c, err)
			return
		}
		infos = append(infos, *i)
	}
	c.JSON(http.StatusOK, infos)
}

func handleCreateRoom(rooms Rooms) gin.HandlerFunc {
	return func(c *gin.Context) {
		tier, ok := bindTier(c)
		if !ok {
			return
		}
		r, err := rooms.CreateRoom(c.Request.Context(), tier, playerID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, r)
	}
}

func handleMatchmake(rooms Rooms) gin.HandlerFunc {
	return func(c *gin.Context) {
		tier, ok := bindTier(c)
		if !ok {
			return
		}
		r, err := rooms.Matchmake(c.Request.Context(), tier, playerID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

func handleGetRoom(rooms Rooms) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := game.ID(c.Param("id"))
		r, s, err := rooms.Snapshot(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, snapshotResponse{Room: r, State: s})
	}
}

func handleCancelRoom(rooms Rooms) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := game.ID(c.Param("id"))
		r, err := rooms.CancelRoom(c.Request.Context(), id, playerID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

// handleWebsocket upgrades the request to a websocket that stays open until the player leaves.
func handleWebsocket(lobby Lobby, log log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := lobby.AddUser(playerID(c), c.Writer, c.Request); err != nil {
			log.Printf("websocket error: %v", err)
			if !c.Writer.Written() {
				writeError(c, err)
			}
		}
	}
}

// bindTier reads a known tier from the request body, writing a bad request response if it cannot.
func bindTier(c *gin.Context) (room.Tier, bool) {
	var req roomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "reading request: " + err.Error()})
		return "", false
	}
	if !req.Tier.Valid() {
		writeError(c, errInvalidTier)
		return "", false
	}
	return req.Tier, true
}

// writeError aborts the request with the status code of the error.
func writeError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusCode(err), gin.H{"error": err.Error()})
}

// statusCode maps errors to http status codes.  Unknown errors are internal server errors.
func statusCode(err error) int {
	switch {
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, game.ErrNotCreator):
		return http.StatusForbidden
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errInvalidTier),
		errors.Is(err, game.ErrInvalidMove),
		errors.Is(err, game.ErrMoveLimitExceeded):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrConflict),
		errors.Is(err, game.ErrRoomFull),
		errors.Is(err, game.ErrAlreadyJoined),
		errors.Is(err, game.ErrInvalidState),
		errors.Is(err, game.ErrNotYourTurn),
		errors.Is(err, game.ErrWrongState):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
