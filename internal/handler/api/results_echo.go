package api

import (
	"errors"

	"QuantGate/internal/usecase"
	xhttp "QuantGate/pkg/http"
	xlogger "QuantGate/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ResultsEchoHandler exposes the read-only results API: run summaries,
// per-fold results, and the gate decision history. All writes happen
// through the experiment runner; this surface only reads evidence.
type ResultsEchoHandler struct {
	logger  *xlogger.Logger
	results *usecase.ResultsReader
}

func NewResultsEchoHandler(logger *xlogger.Logger, results *usecase.ResultsReader) *ResultsEchoHandler {
	return &ResultsEchoHandler{logger: logger, results: results}
}

func (h *ResultsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/runs")
	g.GET("/:id/summary", h.Summary)
	g.GET("/:id/folds", h.Folds)
	g.GET("/:id/decisions", h.Decisions)
}

func (h *ResultsEchoHandler) Summary(c echo.Context) error {
	runID := c.Param("id")
	if runID == "" {
		return xhttp.BadRequestResponse(c, xhttp.BadRequestError("run id is required"))
	}
	res, err := h.results.Summary(c.Request().Context(), runID)
	if err != nil {
		return h.readError(c, runID, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, res)
}

func (h *ResultsEchoHandler) Folds(c echo.Context) error {
	runID := c.Param("id")
	if runID == "" {
		return xhttp.BadRequestResponse(c, xhttp.BadRequestError("run id is required"))
	}
	res, err := h.results.Folds(c.Request().Context(), runID)
	if err != nil {
		return h.readError(c, runID, err)
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}

func (h *ResultsEchoHandler) Decisions(c echo.Context) error {
	runID := c.Param("id")
	if runID == "" {
		return xhttp.BadRequestResponse(c, xhttp.BadRequestError("run id is required"))
	}
	res, err := h.results.Decisions(c.Request().Context(), runID)
	if err != nil {
		return h.readError(c, runID, err)
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}

func (h *ResultsEchoHandler) readError(c echo.Context, runID string, err error) error {
	if errors.Is(err, usecase.ErrRunNotFound) {
		return xhttp.NotFoundResponse(c, xhttp.NotFoundErrorf("run %s has no recorded evidence", runID))
	}
	if h.logger != nil {
		h.logger.Error("results read error",
			xlogger.String("run_id", runID),
			xlogger.Error(err),
		)
	}
	return xhttp.AppErrorResponse(c, err)
}
