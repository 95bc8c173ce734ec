package api

import (
	"github.com/labstack/echo/v4"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/usecase"
	xhttp "CoinPulse/pkg/http"
	"CoinPulse/pkg/logger"
)

type NotificationsHandler struct {
	sink *usecase.Sink
	log  *logger.Logger
}

func NewNotificationsHandler(sink *usecase.Sink, log *logger.Logger) *NotificationsHandler {
	return &NotificationsHandler{sink: sink, log: log}
}

func (h *NotificationsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/users/:user_id/notifications")
	g.GET("", h.List)
	g.POST("/read-all", h.MarkAllRead)
	g.POST("/:id/read", h.MarkRead)
	g.POST("/:id/archive", h.Archive)
}

// List returns one page together with the total and unread counts.
func (h *NotificationsHandler) List(c echo.Context) error {
	req := &models.NotificationsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	page, err := h.sink.List(c.Request().Context(), req.UserID, models.NotificationQuery{
		Limit:           req.Limit,
		Offset:          xhttp.Offset(req.Page, req.Limit),
		IncludeArchived: req.IncludeArchived,
	})
	if err != nil {
		h.log.Error("list notifications failed", logger.String("user_id", req.UserID), logger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	if page.Items == nil {
		page.Items = []models.Notification{}
	}
	return xhttp.SuccessResponse(c, page)
}

func (h *NotificationsHandler) MarkRead(c echo.Context) error {
	req := &models.NotificationActionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	n, err := h.sink.MarkRead(c.Request().Context(), req.UserID, req.ID)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, n)
}

func (h *NotificationsHandler) MarkAllRead(c echo.Context) error {
	req := &models.UserRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	updated, err := h.sink.MarkAllRead(c.Request().Context(), req.UserID)
	if err != nil {
		h.log.Error("mark all read failed", logger.String("user_id", req.UserID), logger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, map[string]int64{"updated": updated})
}

func (h *NotificationsHandler) Archive(c echo.Context) error {
	req := &models.NotificationActionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	n, err := h.sink.Archive(c.Request().Context(), req.UserID, req.ID)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, n)
}
