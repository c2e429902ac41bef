package events

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/WeDesignz/WebApp-sub000/internal/shared/server/middleware"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/server/respond"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/telemetry"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Handler streams a user's events over a websocket.
type Handler struct {
	Broadcaster Broadcaster
	upgrader    websocket.Upgrader
}

// NewHandler constructs a Handler. allowedOrigins mirrors the CORS list; "*" allows any.
func NewHandler(b Broadcaster, allowedOrigins []string) *Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return &Handler{
		Broadcaster: b,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if _, ok := allowed["*"]; ok {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

// RegisterRoutes attaches the event stream to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/mock-pdf/events", h.stream)
}

func (h *Handler) stream(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	events, cancel, err := h.Broadcaster.Subscribe(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, http.StatusServiceUnavailable, "events_unavailable", "event stream unavailable", nil)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		telemetry.Warn("events.upgrade_failed", map[string]any{"user_id": userID, "error": err.Error()})
		return
	}
	defer conn.Close()
	telemetry.Debug("events.connected", map[string]any{"user_id": userID})

	closed := make(chan struct{})
	go readPump(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				telemetry.Debug("events.write_failed", map[string]any{"user_id": userID, "error": err.Error()})
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames and closes closed once the peer goes away.
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				telemetry.Debug("events.read_error", map[string]any{"error": err.Error()})
			}
			return
		}
	}
}
