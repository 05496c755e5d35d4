package transport

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	apperrors "go-media-analyzer/internal/errors"
	"go-media-analyzer/internal/logger"
	"go-media-analyzer/pkg/models"
)

func (h *handler) historyResponse(mode models.AnalysisMode) models.HistoryResponse {
	state := h.deps.History.State()
	entries := state.Entries
	if mode != "" {
		entries = h.deps.History.EntriesByType(mode)
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	return models.HistoryResponse{
		Entries:         entries,
		Count:           len(entries),
		SelectedEntryID: state.SelectedEntryID,
	}
}

func (h *handler) listHistory(c *gin.Context) {
	var mode models.AnalysisMode
	if raw := c.Query("type"); raw != "" {
		m, ok := parseMode(c, raw)
		if !ok {
			return
		}
		mode = m
	}
	c.JSON(http.StatusOK, h.historyResponse(mode))
}

func (h *handler) reloadHistory(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()
	h.deps.History.Reload(ctx)
	c.JSON(http.StatusOK, h.historyResponse(""))
}

// saveHistory stores the current result of a mode. With ?async=true the
// write is only queued and the response is 202.
func (h *handler) saveHistory(c *gin.Context) {
	var req models.SaveHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}
	mode, ok := parseMode(c, string(req.Mode))
	if !ok {
		return
	}

	if c.Query("async") == "true" {
		if err := h.deps.Analysis.SaveCurrentAccepted(mode); err != nil {
			respondAppError(c, mode, "history entry not accepted", err)
			return
		}
		c.Status(http.StatusAccepted)
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()
	entry, err := h.deps.Analysis.SaveCurrent(ctx, mode)
	if err != nil {
		respondAppError(c, mode, "history entry not saved", err)
		return
	}

	logger.WithFields(logrus.Fields{
		"id":   entry.ID,
		"mode": mode,
	}).Info("History entry created")
	c.JSON(http.StatusCreated, entry)
}

func (h *handler) getHistoryEntry(c *gin.Context) {
	entry, ok := h.deps.History.Entry(c.Param("id"))
	if !ok {
		respondAppError(c, "", "unknown history entry", apperrors.NewNotFoundError("history entry not found", nil))
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *handler) deleteHistoryEntry(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	if !h.deps.History.DeleteHistoryEntry(ctx, c.Param("id")) {
		respondAppError(c, "", "history entry not deleted", apperrors.NewNotFoundError("history entry not found", nil))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) clearHistory(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()
	h.deps.History.ClearHistory(ctx)
	c.Status(http.StatusNoContent)
}

func (h *handler) selectHistoryEntry(c *gin.Context) {
	if !h.deps.History.Select(c.Param("id")) {
		respondAppError(c, "", "unknown history entry", apperrors.NewNotFoundError("history entry not found", nil))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) clearSelection(c *gin.Context) {
	h.deps.History.Select("")
	c.Status(http.StatusNoContent)
}

func (h *handler) historyUsage(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	usage := h.deps.History.StorageUsage(ctx)
	if usage == nil {
		respondAppError(c, "", "storage usage unavailable",
			apperrors.NewStorageUnavailableError("history storage is unavailable", nil))
		return
	}
	c.JSON(http.StatusOK, usage)
}
