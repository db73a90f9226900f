package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bridge4er/examhall/internal/config"
	"github.com/bridge4er/examhall/internal/middleware"
	"github.com/bridge4er/examhall/internal/service"
	ws "github.com/bridge4er/examhall/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// LiveHandler streams leaderboard snapshots over WebSocket.
type LiveHandler struct {
	rdb            *redis.Client
	gradingService *service.GradingService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewLiveHandler creates a new LiveHandler.
func NewLiveHandler(rdb *redis.Client, gradingService *service.GradingService, log zerolog.Logger, allowedOrigins []string) *LiveHandler {
	return &LiveHandler{
		rdb:            rdb,
		gradingService: gradingService,
		log:            log.With().Str("component", "live_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// LeaderboardStream godoc
// WS /ws/v1/sets/:set_id/leaderboard
// Pushes the current leaderboard immediately, then again after every graded
// submission for the set.
func (h *LiveHandler) LeaderboardStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	setID, err := strconv.ParseInt(c.Param("set_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid set ID"})
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(raw)
	defer conn.Close()

	wsLog := h.log.With().
		Int64("user_id", claims.UserID).
		Int64("set_id", setID).
		Logger()
	wsLog.Info().Msg("Leaderboard subscriber connected")

	ctx := c.Request.Context()

	// Initial snapshot before any update arrives.
	if err := h.pushSnapshot(c, conn, setID); err != nil {
		wsLog.Warn().Err(err).Msg("Initial snapshot write failed")
		return
	}

	sub := h.rdb.Subscribe(ctx, config.CacheKey.SetLeaderboardChannel(setID))
	defer sub.Close()

	// Drain client messages so pings and close frames are processed.
	// The pong reply goes through the write-locked conn, never past it.
	go func() {
		for {
			var msg ws.PingRequest
			if err := conn.ReadJSON(&msg); err != nil {
				sub.Close()
				return
			}
			if msg.Action == "ping" {
				_ = conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-sub.Channel():
			if !ok {
				return
			}
			if err := h.pushSnapshot(c, conn, setID); err != nil {
				wsLog.Debug().Err(err).Msg("Snapshot write failed, closing")
				return
			}
		}
	}
}

func (h *LiveHandler) pushSnapshot(c *gin.Context, conn *ws.Conn, setID int64) error {
	entries, err := h.gradingService.Leaderboard(c.Request.Context(), setID)
	if err != nil {
		return conn.WriteError("leaderboard unavailable")
	}
	return conn.WriteTyped(ws.LeaderboardResponse{
		Event:   ws.EventLeaderboard,
		SetID:   setID,
		Entries: entries,
	})
}
