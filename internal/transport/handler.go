// Package transport exposes the analyzer over HTTP with gin.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"go-media-analyzer/internal/config"
	apperrors "go-media-analyzer/internal/errors"
	"go-media-analyzer/internal/logger"
	"go-media-analyzer/internal/observer"
	"go-media-analyzer/internal/service"
	"go-media-analyzer/internal/store"
	"go-media-analyzer/pkg/models"
)

// Dependencies are the collaborators the HTTP surface calls into
type Dependencies struct {
	Analysis service.AnalysisService
	Settings *store.SettingsStore
	History  *store.HistoryStore
	// Events feeds the /api/events websocket; may be nil
	Events observer.Subject
	// Metrics serves /metrics; may be nil
	Metrics http.Handler
}

type handler struct {
	deps     Dependencies
	cfg      *config.Config
	upgrader websocket.Upgrader
}

func NewHandler(deps Dependencies, cfg *config.Config) http.Handler {
	h := &handler{
		deps: deps,
		cfg:  cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	r := gin.Default()

	// Add middleware
	r.Use(
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	api := r.Group("/api")
	{
		api.GET("/settings", h.getSettings)
		api.PUT("/settings", h.replaceSettings)
		api.PATCH("/settings", h.patchSettings)
		api.POST("/settings/save", h.saveSettings)
		api.POST("/settings/reset", h.resetSettings)

		api.GET("/history", h.listHistory)
		api.POST("/history", h.saveHistory)
		api.DELETE("/history", h.clearHistory)
		api.POST("/history/reload", h.reloadHistory)
		api.GET("/history/usage", h.historyUsage)
		api.DELETE("/history/selection", h.clearSelection)
		api.GET("/history/:id", h.getHistoryEntry)
		api.DELETE("/history/:id", h.deleteHistoryEntry)
		api.POST("/history/:id/select", h.selectHistoryEntry)

		api.GET("/state", h.getState)
		api.PUT("/state/mode", h.setActiveMode)
		api.DELETE("/state/results", h.clearResults)
		api.POST("/state/reset", h.resetState)

		api.POST("/media", h.loadMedia)
		api.POST("/media/frame", h.pushFrame)
		api.POST("/analyze/:mode", h.analyze)
		api.POST("/stream", h.startStream)
		api.DELETE("/stream", h.stopStream)

		if deps.Events != nil {
			api.GET("/events", h.events)
		}
	}

	return r
}

// requestContext bounds a request by the configured timeout
func (h *handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
}

func parseMode(c *gin.Context, raw string) (models.AnalysisMode, bool) {
	mode, err := models.ParseMode(raw)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid analysis mode", err)
		return "", false
	}
	return mode, true
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err.Err)
		}
	}
}

func determineStatusCode(err error) int {
	// Check if it's a custom app error first
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// respondAppError maps err to its status code and a user-facing message
func respondAppError(c *gin.Context, mode models.AnalysisMode, message string, err error) {
	code := determineStatusCode(err)
	var namer apperrors.ModeNamer
	if mode != "" {
		namer = mode
	}

	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Warn("Request failed")

	resp := models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: apperrors.UserMessage(namer, err),
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		resp.Detail = appErr.Message
	}
	c.AbortWithStatusJSON(code, resp)
}

func respondError(c *gin.Context, code int, message string, err error) {
	// Log the error with context
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
