package api

import (
	"context"
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"stockcast/internal/domain/models"
	domrepo "stockcast/internal/domain/repository"
	"stockcast/internal/service/metrics"
	"stockcast/internal/service/ratelimit"
	"stockcast/internal/usecase"
	xhttp "stockcast/pkg/http"
	xlogger "stockcast/pkg/logger"
)

// HealthCheck is a named dependency probe run by the healthz endpoint.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// ForecastHandler serves the read API: latest predictions, recent movers
// and per-ticker history, plus a health probe.
type ForecastHandler struct {
	reads  *usecase.ForecastReadUseCase
	checks []HealthCheck
	rl     *ratelimit.Limiter
	logger *xlogger.Logger
}

func NewForecastHandler(logger *xlogger.Logger, reads *usecase.ForecastReadUseCase, checks []HealthCheck) *ForecastHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &ForecastHandler{reads: reads, checks: checks, rl: ratelimit.New(), logger: logger}
}

func (h *ForecastHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)
	g := e.Group("/api/v1")
	g.GET("/predictions", h.LatestPredictions)
	g.GET("/movers", h.Movers)
	g.GET("/history/:ticker", h.History)
}

func (h *ForecastHandler) LatestPredictions(c echo.Context) error {
	start := time.Now()
	endpoint := "predictions"
	defer func() { metrics.ReadLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	if !h.rl.Allow(c.RealIP()+":predictions", 5, 2) {
		h.logger.Warn("predictions rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_RATE_LIMITED", "", "rate limited", 429))
	}

	run, err := h.reads.LatestPredictions(c.Request().Context())
	if err != nil {
		if errors.Is(err, domrepo.ErrNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no prediction run available yet"))
		}
		metrics.ReadErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("predictions usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, run)
}

func (h *ForecastHandler) Movers(c echo.Context) error {
	start := time.Now()
	endpoint := "movers"
	defer func() { metrics.ReadLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.MoversRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":movers", 5, 2) {
		h.logger.Warn("movers rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_RATE_LIMITED", "", "rate limited", 429))
	}

	res, err := h.reads.RecentMovers(c.Request().Context(), usecase.MoversParams{Days: req.Days})
	if err != nil {
		metrics.ReadErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("movers usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastHandler) History(c echo.Context) error {
	start := time.Now()
	endpoint := "history"
	defer func() { metrics.ReadLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":history", 10, 5) {
		h.logger.Warn("history rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_RATE_LIMITED", "", "rate limited", 429))
	}

	res, err := h.reads.TickerHistory(c.Request().Context(), usecase.HistoryParams{Ticker: req.Ticker, Days: req.Days})
	if err != nil {
		metrics.ReadErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("history usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastHandler) Healthz(c echo.Context) error {
	ctx := c.Request().Context()
	status := "ok"
	checks := make(map[string]string, len(h.checks))
	for _, hc := range h.checks {
		if err := hc.Check(ctx); err != nil {
			status = "degraded"
			checks[hc.Name] = err.Error()
			continue
		}
		checks[hc.Name] = "ok"
	}

	body := map[string]interface{}{"status": status, "checks": checks}
	if status != "ok" {
		return xhttp.ServiceUnavailableResponse(c, body)
	}
	return xhttp.SuccessResponse(c, body)
}

var _ xhttp.Handler = (*ForecastHandler)(nil)
