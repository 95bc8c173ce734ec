package api

import (
	"errors"

	"github.com/labstack/echo/v4"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/usecase"
	xhttp "CoinPulse/pkg/http"
	"CoinPulse/pkg/logger"
)

type RulesHandler struct {
	rules *usecase.RuleService
	log   *logger.Logger
}

func NewRulesHandler(rules *usecase.RuleService, log *logger.Logger) *RulesHandler {
	return &RulesHandler{rules: rules, log: log}
}

func (h *RulesHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/users/:user_id/rules")
	g.GET("", h.List)
	g.GET("/global", h.Global)
	g.PUT("/global", h.UpdateGlobal)
	g.POST("/global/reset", h.ResetGlobal)
	g.DELETE("/global", h.DeleteGlobal)
	g.GET("/:asset", h.Asset)
	g.PUT("/:asset", h.UpsertAsset)
	g.DELETE("/:asset", h.DeleteAsset)
	g.GET("/:asset/effective", h.Effective)
}

func (h *RulesHandler) List(c echo.Context) error {
	req := &models.UserRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rules, err := h.rules.List(c.Request().Context(), req.UserID)
	if err != nil {
		return h.fail(c, "list rules", err)
	}
	if rules == nil {
		rules = []models.AlertRule{}
	}
	return xhttp.ListResponse(c, rules, int64(len(rules)))
}

func (h *RulesHandler) Global(c echo.Context) error {
	req := &models.UserRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rule, err := h.rules.Global(c.Request().Context(), req.UserID)
	if err != nil {
		return h.fail(c, "get global rule", err)
	}
	return xhttp.SuccessResponse(c, rule)
}

func (h *RulesHandler) UpdateGlobal(c echo.Context) error {
	req := &models.RulePatchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rule, err := h.rules.UpdateGlobal(c.Request().Context(), req.UserID, req.RulePatch)
	if err != nil {
		return h.fail(c, "update global rule", err)
	}
	return xhttp.SuccessResponse(c, rule)
}

func (h *RulesHandler) ResetGlobal(c echo.Context) error {
	req := &models.UserRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rule, err := h.rules.ResetGlobal(c.Request().Context(), req.UserID)
	if err != nil {
		return h.fail(c, "reset global rule", err)
	}
	return xhttp.SuccessResponse(c, rule)
}

func (h *RulesHandler) DeleteGlobal(c echo.Context) error {
	req := &models.UserRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return h.fail(c, "delete global rule", h.rules.DeleteGlobal(c.Request().Context(), req.UserID))
}

func (h *RulesHandler) Asset(c echo.Context) error {
	req := &models.AssetRuleRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rule, err := h.rules.Asset(c.Request().Context(), req.UserID, req.Asset)
	if err != nil {
		return h.fail(c, "get asset rule", err)
	}
	return xhttp.SuccessResponse(c, rule)
}

func (h *RulesHandler) UpsertAsset(c echo.Context) error {
	req := &models.RulePatchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rule, err := h.rules.UpsertAsset(c.Request().Context(), req.UserID, req.Asset, req.RulePatch)
	if err != nil {
		return h.fail(c, "upsert asset rule", err)
	}
	return xhttp.SuccessResponse(c, rule)
}

func (h *RulesHandler) DeleteAsset(c echo.Context) error {
	req := &models.AssetRuleRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.rules.DeleteAsset(c.Request().Context(), req.UserID, req.Asset); err != nil {
		return h.fail(c, "delete asset rule", err)
	}
	return xhttp.NoContentResponse(c)
}

// Effective reports which rule the pipeline would apply and where it came from.
func (h *RulesHandler) Effective(c echo.Context) error {
	req := &models.AssetRuleRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.rules.Effective(c.Request().Context(), req.UserID, req.Asset))
}

func (h *RulesHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	var known *xhttp.AppError
	if !errors.As(appErr, &known) {
		h.log.Error(op+" failed", logger.String("user_id", c.Param("user_id")), logger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}
