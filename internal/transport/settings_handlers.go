package transport

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "go-media-analyzer/internal/errors"
	"go-media-analyzer/pkg/models"
	"go-media-analyzer/pkg/validation"
)

func (h *handler) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Settings.Get())
}

// replaceSettings treats the body as a complete settings object; missing or
// invalid fields take their defaults
func (h *handler) replaceSettings(c *gin.Context) {
	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}
	c.JSON(http.StatusOK, h.deps.Settings.Set(validation.ValidateSettings(raw)))
}

// patchSettings merges the body into the current settings before validation
func (h *handler) patchSettings(c *gin.Context) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}
	current, err := settingsMap(h.deps.Settings.Get())
	if err != nil {
		respondAppError(c, "", "settings could not be merged", apperrors.NewInternalError("encode settings", err))
		return
	}
	c.JSON(http.StatusOK, h.deps.Settings.Set(validation.ValidateSettings(mergeMaps(current, patch))))
}

func settingsMap(s models.AppSettings) (map[string]any, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	err = json.Unmarshal(data, &out)
	return out, err
}

// mergeMaps overlays patch onto base, recursing into nested objects
func mergeMaps(base, patch map[string]any) map[string]any {
	for k, v := range patch {
		sub, ok := v.(map[string]any)
		if existing, isMap := base[k].(map[string]any); ok && isMap {
			base[k] = mergeMaps(existing, sub)
			continue
		}
		base[k] = v
	}
	return base
}

func (h *handler) saveSettings(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	if !h.deps.Settings.SaveNow(ctx) {
		respondAppError(c, "", "settings could not be saved",
			apperrors.NewStorageUnavailableError("settings could not be saved", nil))
		return
	}
	c.JSON(http.StatusOK, gin.H{"persisted": true, "settings": h.deps.Settings.Get()})
}

func (h *handler) resetSettings(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()
	c.JSON(http.StatusOK, h.deps.Settings.Reset(ctx))
}
