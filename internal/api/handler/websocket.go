package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/repodoc/docgen_server/internal/pkg/ws"
)

type WebSocketHandler struct {
	hub *ws.Hub
}

func NewWebSocketHandler(hub *ws.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// Subscribe handles GET /ws/jobs/:id, streaming progress updates for
// one job until the client disconnects.
func (h *WebSocketHandler) Subscribe(c *gin.Context) {
	h.hub.HandleConnection(c, c.Param("id"))
}
