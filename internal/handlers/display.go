package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/dencamenew/vsuet-attendance/internal/display"
)

// DisplayHandler upgrades live display connections to websockets.
type DisplayHandler struct {
	gateway *display.Gateway
}

// NewDisplayHandler constructs the handler backed by the display gateway.
func NewDisplayHandler(gateway *display.Gateway) *DisplayHandler {
	return &DisplayHandler{gateway: gateway}
}

// Connect hands the request to the gateway, which serves the websocket until
// the session closes or the display disconnects.
func (h *DisplayHandler) Connect(c *gin.Context) {
	h.gateway.Serve(c.Writer, c.Request, c.Param("id"))
}
