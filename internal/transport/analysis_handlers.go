package transport

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-media-analyzer/internal/orchestration"
	"go-media-analyzer/pkg/models"
)

// MediaInfo describes the loaded media element
type MediaInfo struct {
	Width  int  `json:"width"`
	Height int  `json:"height"`
	Live   bool `json:"live"`
}

// StreamInfo describes the running video stream
type StreamInfo struct {
	IsActive  bool `json:"isActive"`
	TargetFPS int  `json:"targetFps"`
}

// StateResponse is the JSON view of the orchestration aggregate
type StateResponse struct {
	ActiveMode       models.AnalysisMode                            `json:"activeMode"`
	ProcessingByMode map[models.AnalysisMode]models.ProcessingState `json:"processingByMode"`
	ResultByMode     map[models.AnalysisMode]models.AnalysisResult  `json:"resultByMode"`
	MediaElement     *MediaInfo                                     `json:"mediaElement,omitempty"`
	VideoStream      *StreamInfo                                    `json:"videoStream,omitempty"`
	AnyProcessing    bool                                           `json:"anyProcessing"`
	HasAnyResults    bool                                           `json:"hasAnyResults"`
}

func newStateResponse(snap orchestration.Snapshot) StateResponse {
	resp := StateResponse{
		ActiveMode:       snap.ActiveMode,
		ProcessingByMode: snap.Processing,
		ResultByMode:     snap.Results,
	}
	for _, ps := range snap.Processing {
		if ps.Status == models.StatusProcessing {
			resp.AnyProcessing = true
		}
	}
	resp.HasAnyResults = len(snap.Results) > 0
	if snap.Media != nil {
		dims := snap.Media.Dimensions()
		resp.MediaElement = &MediaInfo{Width: dims.Width, Height: dims.Height, Live: snap.Media.IsLive()}
	}
	if snap.VideoStream != nil {
		resp.VideoStream = &StreamInfo{IsActive: snap.VideoStream.IsActive, TargetFPS: snap.VideoStream.TargetFPS}
	}
	return resp
}

func (h *handler) getState(c *gin.Context) {
	c.JSON(http.StatusOK, newStateResponse(h.deps.Analysis.Snapshot()))
}

func (h *handler) setActiveMode(c *gin.Context) {
	var req models.ActiveModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}
	if err := h.deps.Analysis.SetActiveMode(req.Mode); err != nil {
		respondAppError(c, "", "invalid analysis mode", err)
		return
	}
	c.JSON(http.StatusOK, newStateResponse(h.deps.Analysis.Snapshot()))
}

func (h *handler) clearResults(c *gin.Context) {
	h.deps.Analysis.ClearResults()
	c.Status(http.StatusNoContent)
}

func (h *handler) resetState(c *gin.Context) {
	h.deps.Analysis.Reset()
	c.JSON(http.StatusOK, newStateResponse(h.deps.Analysis.Snapshot()))
}

func (h *handler) loadMedia(c *gin.Context) {
	var req models.LoadMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()
	dims, err := h.deps.Analysis.LoadMedia(ctx, req)
	if err != nil {
		respondAppError(c, "", "media could not be loaded", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imageDimensions": dims, "live": req.Live})
}

func (h *handler) pushFrame(c *gin.Context) {
	var req models.FrameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}
	if err := h.deps.Analysis.PushFrame(req.DataURL); err != nil {
		respondAppError(c, "", "frame rejected", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) analyze(c *gin.Context) {
	mode, ok := parseMode(c, c.Param("mode"))
	if !ok {
		return
	}
	// the body is optional
	var req models.RunAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()
	result, err := h.deps.Analysis.AnalyzeOnce(ctx, mode, req.ExpectedText)
	if err != nil {
		respondAppError(c, mode, "analysis failed", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) startStream(c *gin.Context) {
	var req models.StreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()
	if err := h.deps.Analysis.StartStream(ctx, req.Modes); err != nil {
		respondAppError(c, "", "stream could not start", err)
		return
	}
	c.JSON(http.StatusAccepted, newStateResponse(h.deps.Analysis.Snapshot()))
}

func (h *handler) stopStream(c *gin.Context) {
	h.deps.Analysis.StopStream()
	c.Status(http.StatusNoContent)
}
