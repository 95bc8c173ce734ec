package api

import (
	"github.com/labstack/echo/v4"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/usecase"
	xhttp "CoinPulse/pkg/http"
	"CoinPulse/pkg/logger"
)

// UsersHandler serves per-user watchlists and delivery contacts.
type UsersHandler struct {
	watchlists *usecase.WatchlistService
	contacts   *usecase.ContactService
	log        *logger.Logger
}

func NewUsersHandler(watchlists *usecase.WatchlistService, contacts *usecase.ContactService, log *logger.Logger) *UsersHandler {
	return &UsersHandler{watchlists: watchlists, contacts: contacts, log: log}
}

func (h *UsersHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/users/:user_id")
	g.GET("/watchlist", h.Watchlist)
	g.POST("/watchlist", h.Watch)
	g.DELETE("/watchlist/:asset", h.Unwatch)
	g.GET("/contacts", h.Contact)
	g.PUT("/contacts", h.UpdateContact)
}

func (h *UsersHandler) Watchlist(c echo.Context) error {
	req := &models.UserRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	assets, err := h.watchlists.List(c.Request().Context(), req.UserID)
	if err != nil {
		h.log.Error("list watchlist failed", logger.String("user_id", req.UserID), logger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	if assets == nil {
		assets = []string{}
	}
	return xhttp.ListResponse(c, assets, int64(len(assets)))
}

func (h *UsersHandler) Watch(c echo.Context) error {
	req := &models.WatchlistAddRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.watchlists.Add(c.Request().Context(), req.UserID, req.Asset); err != nil {
		h.log.Error("watch asset failed", logger.String("user_id", req.UserID), logger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	assets, err := h.watchlists.List(c.Request().Context(), req.UserID)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.ListResponse(c, assets, int64(len(assets)))
}

func (h *UsersHandler) Unwatch(c echo.Context) error {
	req := &models.WatchlistRemoveRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.watchlists.Remove(c.Request().Context(), req.UserID, req.Asset); err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.NoContentResponse(c)
}

func (h *UsersHandler) Contact(c echo.Context) error {
	req := &models.UserRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	contact, err := h.contacts.Get(c.Request().Context(), req.UserID)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, contact)
}

func (h *UsersHandler) UpdateContact(c echo.Context) error {
	req := &models.ContactRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	contact, err := h.contacts.Put(c.Request().Context(), models.Contact{
		UserID:         req.UserID,
		Email:          req.Email,
		TelegramChatID: req.TelegramChatID,
	})
	if err != nil {
		h.log.Error("update contact failed", logger.String("user_id", req.UserID), logger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, contact)
}
