package handlers

import (
	"net/http"

	"github.com/anonto42/loopline/backend/internal/live"
	"github.com/anonto42/loopline/backend/pkg/observability"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Auth happens in the JWT middleware; browser origin checks are
	// handled by the gateway in front of this service.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler upgrades authenticated clients to a live notification stream.
type WSHandler struct {
	hub *live.Hub
	log *observability.Logger
}

// NewWSHandler creates a new WSHandler
func NewWSHandler(hub *live.Hub, log *observability.Logger) *WSHandler {
	return &WSHandler{hub: hub, log: log}
}

// RegisterWSRoutes registers the websocket route
func (h *WSHandler) RegisterWSRoutes(g *echo.Group) {
	g.GET("/ws/notifications", h.Subscribe)
}

// Subscribe upgrades the connection and pumps live events until the
// client disconnects.
func (h *WSHandler) Subscribe(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "WebSocket upgrade failed")
	}

	sub := h.hub.Subscribe(currentUserID)
	client := live.NewClient(conn, sub, h.log)
	go client.Run()

	return nil
}
