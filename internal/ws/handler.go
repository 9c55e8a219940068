package ws

import (
	"net/http"
	"net/url"
	"slices"
	"time"

	"realtime-chat/backend/internal/models"
	"realtime-chat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// helloFrame is the first frame every client receives
var helloFrame = []byte(`{"event":"connected"}`)

// Handler upgrades HTTP requests to websocket subscriptions on the hub
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewHandler creates a handler. An allowedOrigins entry of "*" accepts any origin.
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin:      originChecker(allowedOrigins),
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
	}
}

// ServeWs handles GET /ws. Reading the room needs no session; if the auth
// gate resolved one, its user id is recorded on the client for logging.
func (h *Handler) ServeWs(c *gin.Context) {
	log := logger.FromContext(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response
		log.Debug("Websocket upgrade failed", "error", err.Error())
		return
	}

	var userID uint
	if v, ok := c.Get("identity"); ok {
		if identity, ok := v.(*models.Identity); ok {
			userID = identity.ID
		}
	}

	client := NewClient(uuid.NewString(), userID, conn, h.hub)
	client.Send <- helloFrame

	if !h.hub.Register(client) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

func originChecker(allowed []string) func(r *http.Request) bool {
	allowAll := slices.Contains(allowed, "*")

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowAll {
			return true
		}
		if slices.Contains(allowed, origin) {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	}
}
