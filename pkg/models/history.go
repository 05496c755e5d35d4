package models

import (
	"encoding/json"
	"fmt"
)

// HistoryEntry is one persisted analysis. Geometry in Results is expressed in
// the coordinate space of the stored image, never the original.
type HistoryEntry struct {
	ID              string         `json:"id"`
	Timestamp       string         `json:"timestamp"`
	AnalysisType    AnalysisMode   `json:"analysisType"`
	ImageDataURL    string         `json:"imageDataURL"`
	Results         AnalysisResult `json:"results"`
	ImageDimensions Dimensions     `json:"imageDimensions"`
}

type historyEntryJSON struct {
	ID              string          `json:"id"`
	Timestamp       string          `json:"timestamp"`
	AnalysisType    AnalysisMode    `json:"analysisType"`
	ImageDataURL    string          `json:"imageDataURL"`
	Results         json.RawMessage `json:"results"`
	ImageDimensions Dimensions      `json:"imageDimensions"`
}

// UnmarshalJSON decodes Results into the variant named by analysisType
func (e *HistoryEntry) UnmarshalJSON(data []byte) error {
	var raw historyEntryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Results) == 0 {
		return fmt.Errorf("history entry %q has no results", raw.ID)
	}
	results, err := DecodeResult(raw.AnalysisType, raw.Results)
	if err != nil {
		return fmt.Errorf("history entry %q: %w", raw.ID, err)
	}
	*e = HistoryEntry{
		ID:              raw.ID,
		Timestamp:       raw.Timestamp,
		AnalysisType:    raw.AnalysisType,
		ImageDataURL:    raw.ImageDataURL,
		Results:         results,
		ImageDimensions: raw.ImageDimensions,
	}
	return nil
}

// HistoryInput is what callers hand to the history repository
type HistoryInput struct {
	AnalysisType    AnalysisMode   `json:"analysisType"`
	ImageDataURL    string         `json:"imageDataURL"`
	Results         AnalysisResult `json:"results"`
	ImageDimensions Dimensions     `json:"imageDimensions"`
}

// HistoryState is the in-memory projection of persisted history plus selection
type HistoryState struct {
	Entries         []HistoryEntry `json:"entries"`
	SelectedEntryID string         `json:"selectedEntryId,omitempty"`
}

// StorageUsage reports how much of the backend quota history occupies
type StorageUsage struct {
	UsedBytes      int64 `json:"usedBytes"`
	AvailableBytes int64 `json:"availableBytes"`
}
