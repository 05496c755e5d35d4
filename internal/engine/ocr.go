package engine

import (
	"time"

	"go-media-analyzer/pkg/models"
	"go-media-analyzer/pkg/validation"
)

// buildOCRResult assembles the result shared by every OCR backend
func buildOCRResult(regions []models.TextRegion, language string, dims models.Dimensions, started time.Time, expected string) models.OCRResult {
	if regions == nil {
		regions = []models.TextRegion{}
	}
	result := models.OCRResult{
		TextRegions:     regions,
		FullText:        AssembleText(regions),
		ProcessingTime:  elapsedMillis(started),
		Timestamp:       models.FormatTimestamp(started),
		ImageDimensions: dims,
		Language:        language,
	}
	if expected != "" {
		result.Accuracy = CompareText(result.FullText, expected)
	}
	return result
}

// ocrLanguage resolves the requested language, defaulting to English
func ocrLanguage(requested string) string {
	if requested == "" {
		return validation.DefaultLanguage
	}
	return validation.ValidateLanguage(requested)
}
