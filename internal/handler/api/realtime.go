package api

import (
	"github.com/labstack/echo/v4"

	"CoinPulse/internal/service/realtime"
	xhttp "CoinPulse/pkg/http"
	"CoinPulse/pkg/logger"
)

// RealtimeHandler upgrades clients to a websocket stream of their new notifications.
type RealtimeHandler struct {
	hub *realtime.Hub
	log *logger.Logger
}

func NewRealtimeHandler(hub *realtime.Hub, log *logger.Logger) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, log: log}
}

func (h *RealtimeHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/users/:user_id/notifications", h.Stream)
}

func (h *RealtimeHandler) Stream(c echo.Context) error {
	userID := c.Param("user_id")
	if userID == "" {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("user_id is required"))
	}
	if err := h.hub.ServeWS(c.Response(), c.Request(), userID); err != nil {
		// The upgrader has already written the HTTP error.
		h.log.Warn("websocket upgrade failed", logger.String("user_id", userID), logger.Error(err))
	}
	return nil
}
