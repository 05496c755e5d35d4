package models

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// LoadMediaRequest loads a new media element from a URL or a data URL
type LoadMediaRequest struct {
	URL     string `json:"url,omitempty"`
	DataURL string `json:"dataURL,omitempty"`
	Live    bool   `json:"live,omitempty"`
}

// RunAnalysisRequest runs a single analysis on the current media element
type RunAnalysisRequest struct {
	ExpectedText string `json:"expectedText,omitempty"`
}

// StreamRequest starts live analysis for one or more modes
type StreamRequest struct {
	Modes []AnalysisMode `json:"modes" binding:"required,min=1"`
}

// FrameRequest pushes a live video frame encoded as a data URL
type FrameRequest struct {
	DataURL string `json:"dataURL" binding:"required"`
}

// SaveHistoryRequest persists the current result for a mode
type SaveHistoryRequest struct {
	Mode AnalysisMode `json:"mode" binding:"required"`
}

// ActiveModeRequest switches the foregrounded mode
type ActiveModeRequest struct {
	Mode AnalysisMode `json:"mode" binding:"required"`
}

// HistoryResponse is the history listing payload
type HistoryResponse struct {
	Entries         []HistoryEntry `json:"entries"`
	Count           int            `json:"count"`
	SelectedEntryID string         `json:"selectedEntryId,omitempty"`
}
