package validation

import (
	"encoding/json"

	"go-media-analyzer/pkg/models"
)

// IsValidEntry reports whether a decoded JSON value is a well-formed history
// entry whose results match its analysisType.
func IsValidEntry(candidate any) bool {
	entry, ok := candidate.(map[string]any)
	if !ok {
		return false
	}

	if !isString(entry["id"]) || !isString(entry["timestamp"]) || !isString(entry["imageDataURL"]) {
		return false
	}

	tag, ok := entry["analysisType"].(string)
	if !ok || !models.AnalysisMode(tag).Valid() {
		return false
	}

	dims, ok := entry["imageDimensions"].(map[string]any)
	if !ok || !isNumber(dims["width"]) || !isNumber(dims["height"]) {
		return false
	}

	results, ok := entry["results"].(map[string]any)
	if !ok {
		return false
	}

	switch models.AnalysisMode(tag) {
	case models.ModeDetection:
		return isDetectionResult(results)
	case models.ModeClassification:
		return isClassificationResult(results)
	case models.ModeOCR:
		return isOCRResult(results)
	}
	return false
}

// FilterValid returns the well-formed entries of a decoded value in their
// original order. Non-arrays yield an empty list.
func FilterValid(candidates any) []models.HistoryEntry {
	list, ok := candidates.([]any)
	if !ok {
		return []models.HistoryEntry{}
	}

	entries := make([]models.HistoryEntry, 0, len(list))
	for _, candidate := range list {
		if !IsValidEntry(candidate) {
			continue
		}
		entry, err := decodeEntry(candidate)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

func decodeEntry(candidate any) (models.HistoryEntry, error) {
	var entry models.HistoryEntry
	data, err := json.Marshal(candidate)
	if err != nil {
		return entry, err
	}
	err = json.Unmarshal(data, &entry)
	return entry, err
}

func isDetectionResult(results map[string]any) bool {
	if hasAny(results, "predictions", "textRegions", "fullText") {
		return false
	}
	objects, ok := results["objects"].([]any)
	if !ok {
		return false
	}
	for _, o := range objects {
		obj, ok := o.(map[string]any)
		if !ok || !isString(obj["class"]) || !isNumber(obj["score"]) {
			return false
		}
		bbox, ok := obj["bbox"].([]any)
		if !ok || len(bbox) != 4 {
			return false
		}
		for _, v := range bbox {
			if !isNumber(v) {
				return false
			}
		}
	}
	return true
}

func isClassificationResult(results map[string]any) bool {
	if hasAny(results, "objects", "textRegions", "fullText") {
		return false
	}
	predictions, ok := results["predictions"].([]any)
	if !ok {
		return false
	}
	for _, p := range predictions {
		pred, ok := p.(map[string]any)
		if !ok || !isString(pred["label"]) || !isNumber(pred["confidence"]) {
			return false
		}
	}
	return true
}

func isOCRResult(results map[string]any) bool {
	if hasAny(results, "objects", "predictions") {
		return false
	}
	if !isString(results["fullText"]) {
		return false
	}
	_, ok := results["textRegions"].([]any)
	return ok
}

func hasAny(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func isNumber(v any) bool {
	_, ok := v.(float64)
	return ok
}
