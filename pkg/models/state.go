package models

// ProcessingStatus is the lifecycle status of one analysis mode
type ProcessingStatus string

const (
	StatusIdle       ProcessingStatus = "idle"
	StatusLoading    ProcessingStatus = "loading"
	StatusProcessing ProcessingStatus = "processing"
	StatusComplete   ProcessingStatus = "complete"
	StatusError      ProcessingStatus = "error"
)

// ProcessingState is the UI-observable status of one mode
type ProcessingState struct {
	Status   ProcessingStatus `json:"status"`
	Message  string           `json:"message,omitempty"`
	Progress *float64         `json:"progress,omitempty"`
}

// IdleState returns the initial processing state
func IdleState() ProcessingState {
	return ProcessingState{Status: StatusIdle}
}
