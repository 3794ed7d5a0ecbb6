package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	models "QuantShield/internal/domain/models"
	icache "QuantShield/internal/service/cache"
	"QuantShield/internal/service/metrics"
	"QuantShield/internal/service/ratelimit"
	"QuantShield/internal/services/features"
	"QuantShield/internal/usecase"
	xhttp "QuantShield/pkg/http"
	xlogger "QuantShield/pkg/logger"
	"QuantShield/pkg/queue"
)

// HealthChecker reports component liveness for /healthz.
type HealthChecker interface {
	IsConnected() bool
}

// RiskEchoHandler implements the risk API over Echo.
type RiskEchoHandler struct {
	logger    *xlogger.Logger
	predictor *usecase.Predictor
	panels    *usecase.PanelService
	jobs      queue.QueueService
	collector HealthChecker
	cache     icache.BytesCache
	rl        *ratelimit.Limiter
	dbHealth  func(ctx context.Context) error
}

func NewRiskEchoHandler(
	logger *xlogger.Logger,
	predictor *usecase.Predictor,
	panels *usecase.PanelService,
	jobs queue.QueueService,
	collector HealthChecker,
) *RiskEchoHandler {
	metrics.Register()
	return &RiskEchoHandler{
		logger:    logger,
		predictor: predictor,
		panels:    panels,
		jobs:      jobs,
		collector: collector,
		rl:        ratelimit.New(),
	}
}

// SetCache injects a response cache for the panel endpoint.
func (h *RiskEchoHandler) SetCache(c icache.BytesCache) { h.cache = c }

// SetDBHealth injects a storage ping for /healthz.
func (h *RiskEchoHandler) SetDBHealth(fn func(ctx context.Context) error) { h.dbHealth = fn }

func (h *RiskEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.POST("/risk/predict", h.Predict)
	g.GET("/panel", h.Panel)
	g.GET("/panel/folds", h.Folds)
	g.POST("/panel/rebuild", h.Rebuild)
	e.GET("/healthz", h.Health)
}

func (h *RiskEchoHandler) Predict(c echo.Context) error {
	start := time.Now()
	endpoint := "predict"
	defer func() { metrics.RiskLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	if !h.rl.Allow(c.RealIP()+":predict", 5, 2) {
		h.logger.Warn("predict rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}

	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.predictor.Predict(c.Request().Context(), *req)
	if err != nil {
		metrics.RiskErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("predict usecase error",
			xlogger.String("portfolio", req.Name),
			xlogger.Error(err),
		)
		return domainErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *RiskEchoHandler) Panel(c echo.Context) error {
	start := time.Now()
	endpoint := "panel"
	defer func() { metrics.RiskLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.PanelRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	cacheKey := "panel:" + strconv.Itoa(req.Limit)
	if h.cache != nil {
		if b, ok, err := h.cache.GetBytes(cacheKey); err != nil {
			h.logger.Warn("panel cache_get_error", xlogger.Error(err))
		} else if ok {
			return c.JSONBlob(http.StatusOK, b)
		}
	}

	rows, err := h.panels.Latest(c.Request().Context(), req.Limit)
	if err != nil {
		metrics.RiskErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("panel usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	if h.cache != nil {
		if b, err := json.Marshal(xhttp.APIResponse{
			Status:  http.StatusOK,
			Message: http.StatusText(http.StatusOK),
			Data:    &xhttp.ListDataResponse{Rows: rows, Total: int64(len(rows))},
		}); err == nil {
			if err := h.cache.SetBytes(cacheKey, b, 30*time.Second); err != nil {
				h.logger.Warn("panel cache_set_error", xlogger.Error(err))
			}
		}
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *RiskEchoHandler) Folds(c echo.Context) error {
	req := &models.FoldsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rows, folds, err := h.panels.Split(c.Request().Context(), req.Limit, req.K)
	if err != nil {
		metrics.RiskErrors.WithLabelValues("folds").Inc()
		h.logger.Error("folds usecase error", xlogger.Error(err))
		return domainErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"rows":  len(rows),
		"folds": folds,
	})
}

func (h *RiskEchoHandler) Rebuild(c echo.Context) error {
	req := &models.PanelRebuildRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if h.jobs == nil {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, "rebuild queue not configured")
	}

	jobID := uuid.NewString()
	err := h.jobs.PublishMessage(c.Request().Context(), usecase.PanelRebuildType, usecase.PanelRebuildPayload{
		Reason:      req.Reason,
		RequestedBy: jobID,
	})
	if err != nil {
		metrics.RiskErrors.WithLabelValues("rebuild").Inc()
		h.logger.Error("rebuild enqueue error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("could not enqueue rebuild"))
	}
	return xhttp.DataResponse(c, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": "queued",
	})
}

func (h *RiskEchoHandler) Health(c echo.Context) error {
	status := "ok"
	if h.collector != nil && !h.collector.IsConnected() {
		status = "degraded"
	}
	if h.dbHealth != nil {
		if err := h.dbHealth(c.Request().Context()); err != nil {
			status = "degraded"
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": status})
}

// domainErrorResponse maps pipeline errors onto HTTP statuses: bad weights
// and empty input are the caller's fault, missing history is unprocessable.
func domainErrorResponse(c echo.Context, err error) error {
	var iw *features.InvalidWeightsError
	if errors.As(err, &iw) {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_INVALID_WEIGHTS", "holdings", iw.Error(), http.StatusBadRequest).WithError(err))
	}
	var ih *features.InsufficientHistoryError
	if errors.As(err, &ih) {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_INSUFFICIENT_HISTORY", "", ih.Error(), http.StatusUnprocessableEntity).
			WithParam("have", ih.Have).
			WithParam("need", ih.Need).
			WithError(err))
	}
	if errors.Is(err, features.ErrEmptyInput) {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_EMPTY_INPUT", "", err.Error(), http.StatusBadRequest).WithError(err))
	}
	if errors.Is(err, usecase.ErrEmptyPanel) {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_EMPTY_PANEL", "", err.Error(), http.StatusConflict).WithError(err))
	}
	return xhttp.AppErrorResponse(c, err)
}
