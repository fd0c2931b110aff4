package handler

import (
	"net/http"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	ws "lapakchat/internal/infrastructure/websocket"
	"lapakchat/pkg/errors"
	"lapakchat/pkg/logger"
)

type WebSocketHandler struct {
	session  *ws.Session
	upgrader gorillaws.Upgrader
}

// NewWebSocketHandler upgrades connections for the realtime chat session.
// There is no auth middleware on the route; the client authenticates with
// its first event after the upgrade.
func NewWebSocketHandler(session *ws.Session, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		session: session,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	allowAll := false
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			allowAll = true
		}
		set[origin] = true
	}

	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		return set[r.Header.Get("Origin")]
	}
}

func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return errors.Internal("Failed to upgrade connection", err)
	}

	client := ws.NewClient(conn)
	logger.Debug("WebSocket connection established from %s", c.RealIP())

	go h.session.WritePump(client)
	go h.session.ReadPump(client)

	return nil
}
