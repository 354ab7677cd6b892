package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	opterrors "github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/errors"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/monitoring"
)

// RunHandler exposes the run manager over HTTP
type RunHandler struct {
	Runs   *Manager
	Health *monitoring.HealthChecker
}

func (h *RunHandler) Register(r *gin.Engine) {
	r.GET("/healthz", gin.WrapH(h.Health))
	r.GET("/metrics", gin.WrapH(monitoring.NewMetricsHandler()))

	group := r.Group("/api/v1/runs")
	group.POST("", h.createRun)
	group.GET("", h.listRuns)
	group.GET("/:id", h.getRun)
	group.DELETE("/:id", h.cancelRun)
	group.GET("/:id/strategy", h.getStrategy)
	group.GET("/:id/report", h.getReport)
}

// NewRouter builds the gin engine of the optimizer service
func NewRouter(env string, h *RunHandler, logger *zap.Logger) *gin.Engine {
	if strings.EqualFold(env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger))
	h.Register(engine)
	return engine
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (h *RunHandler) createRun(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	view, err := h.Runs.Submit(req)
	if err != nil {
		switch {
		case errors.Is(err, ErrQueueFull), errors.Is(err, ErrPoolStopped):
			Error(c, http.StatusServiceUnavailable, err.Error(), nil)
		default:
			category, _ := opterrors.CategoryOf(err)
			Error(c, http.StatusBadRequest, err.Error(), map[string]any{"category": category})
		}
		return
	}
	c.JSON(http.StatusAccepted, apiResponse{Code: 0, Message: "queued", Data: view})
}

func (h *RunHandler) listRuns(c *gin.Context) {
	runs := h.Runs.List()
	Ok(c, runs, map[string]any{
		"count":         len(runs),
		"error_rates":   h.Runs.ErrorRates(),
		"recent_errors": h.Runs.RecentErrors(),
	})
}

func (h *RunHandler) getRun(c *gin.Context) {
	view, err := h.Runs.Get(strings.TrimSpace(c.Param("id")))
	if err != nil {
		Error(c, http.StatusNotFound, err.Error(), nil)
		return
	}
	Ok(c, view, nil)
}

func (h *RunHandler) cancelRun(c *gin.Context) {
	view, err := h.Runs.Cancel(strings.TrimSpace(c.Param("id")))
	switch {
	case errors.Is(err, ErrRunNotFound):
		Error(c, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, ErrRunFinished):
		Error(c, http.StatusConflict, err.Error(), map[string]any{"status": view.Status})
	default:
		Ok(c, view, nil)
	}
}

func (h *RunHandler) getStrategy(c *gin.Context) {
	s, err := h.Runs.Strategy(strings.TrimSpace(c.Param("id")))
	switch {
	case errors.Is(err, ErrRunNotFound):
		Error(c, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, ErrNoResult):
		Error(c, http.StatusConflict, err.Error(), nil)
	default:
		Ok(c, s, nil)
	}
}

func (h *RunHandler) getReport(c *gin.Context) {
	data, err := h.Runs.Trace(strings.TrimSpace(c.Param("id")))
	switch {
	case errors.Is(err, ErrRunNotFound):
		Error(c, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, ErrNoResult):
		Error(c, http.StatusConflict, err.Error(), nil)
	default:
		c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
	}
}
