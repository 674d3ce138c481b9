package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"mingle-gateway/internal/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Browser clients authenticate with a bearer token, not cookies,
		// so cross-origin upgrades carry no ambient credentials.
		return true
	},
}

// WebSocketHandler upgrades authenticated HTTP requests into hub-owned
// connections. Identity verification happens before the upgrade; an
// unverifiable credential never becomes a socket.
type WebSocketHandler struct {
	hub      *Hub
	verifier *auth.Verifier
}

func NewWebSocketHandler(hub *Hub, verifier *auth.Verifier) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, verifier: verifier}
}

func (h *WebSocketHandler) Handle(c *gin.Context) {
	token := auth.ExtractToken(c.Query("token"), c.GetHeader("Authorization"))
	identity, err := h.verifier.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zap.L().Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(h.hub, conn, Session{
		Identity: identity,
		ClientID: uuid.New().String(),
	})
	h.hub.register <- client
}
