package api

import (
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v4"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/service/ratelimit"
	"CoinPulse/internal/usecase"
	xhttp "CoinPulse/pkg/http"
	"CoinPulse/pkg/logger"
	"CoinPulse/pkg/util"
)

// SignalsHandler serves the signal feed and raw observation ingestion.
type SignalsHandler struct {
	pipeline *usecase.Pipeline
	ingest   usecase.Ingestor
	rl       *ratelimit.Limiter
	log      *logger.Logger
}

// NewSignalsHandler wires the read side to the pipeline and ingestion to
// ingest, which is normally the ingest gate in front of it. rl limits
// ingestion per client address and may be nil.
func NewSignalsHandler(pipeline *usecase.Pipeline, ingest usecase.Ingestor, rl *ratelimit.Limiter, log *logger.Logger) *SignalsHandler {
	return &SignalsHandler{pipeline: pipeline, ingest: ingest, rl: rl, log: log}
}

func (h *SignalsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/signals", h.List)
	g.POST("/observations/:kind", h.Ingest)
	g.POST("/observations/:kind/batch", h.IngestBatch)
}

func (h *SignalsHandler) List(c echo.Context) error {
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	q := models.SignalQuery{
		Assets: util.SplitSymbols(req.Assets),
		Limit:  req.Limit,
		Offset: xhttp.Offset(req.Page, req.Limit),
	}
	rows, total, err := h.pipeline.Signals(c.Request().Context(), q)
	if err != nil {
		h.log.Error("list signals failed", logger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	if rows == nil {
		rows = []models.Signal{}
	}
	return xhttp.PageResponse(c, rows, total, req.Page, req.Limit)
}

// Ingest normalizes one raw payload and runs it through the pipeline.
func (h *SignalsHandler) Ingest(c echo.Context) error {
	kind, err := h.admit(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(c.Request().Body).Decode(&raw); err != nil {
		return xhttp.AppErrorResponse(c, toAppError(&models.MalformedInputError{Reason: err.Error()}))
	}

	obs, err := usecase.Normalize(raw, kind)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	res, err := h.ingest.Process(c.Request().Context(), obs)
	if err != nil {
		if !models.IsMalformed(err) {
			h.log.Error("process observation failed",
				logger.String("asset", obs.AssetSymbol),
				logger.String("kind", kind.String()),
				logger.Error(err),
			)
		}
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	if res == nil {
		// Throttled by the gate; accepted but not scored.
		return xhttp.AcceptedResponse(c, nil)
	}
	return xhttp.CreatedResponse(c, res)
}

// IngestBatch processes every element of a JSON array independently.
func (h *SignalsHandler) IngestBatch(c echo.Context) error {
	kind, err := h.admit(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	var items []json.RawMessage
	if err := json.NewDecoder(c.Request().Body).Decode(&items); err != nil {
		return xhttp.AppErrorResponse(c, toAppError(&models.MalformedInputError{Reason: "expected a JSON array: " + err.Error()}))
	}

	report := usecase.IngestRaw(c.Request().Context(), h.ingest, kind, items)
	return xhttp.DataResponse(c, http.StatusOK, report)
}

func (h *SignalsHandler) admit(c echo.Context) (models.Kind, error) {
	if h.rl != nil && !h.rl.Allow(c.RealIP()) {
		return "", xhttp.TooManyRequestsError("too many observations")
	}
	kind, ok := models.ParseKind(c.Param("kind"))
	if !ok {
		return "", xhttp.BadRequestErrorf("unknown observation kind %q", c.Param("kind"))
	}
	return kind, nil
}
