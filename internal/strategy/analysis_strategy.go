// Package strategy applies user settings to raw engine output, one strategy
// per analysis mode.
package strategy

import (
	"fmt"
	"sort"

	"go-media-analyzer/internal/engine"
	"go-media-analyzer/pkg/models"
	"go-media-analyzer/pkg/validation"
)

// AnalysisStrategy adapts one mode's engine calls and results to the settings
type AnalysisStrategy interface {
	Mode() models.AnalysisMode
	// EngineOptions derives the per-call engine options
	EngineOptions(settings models.AppSettings, expectedText string) engine.Options
	// Apply filters a raw result; it never mutates its input
	Apply(result models.AnalysisResult, settings models.AppSettings) (models.AnalysisResult, error)
	GetStrategyName() string
}

func checkMode(s AnalysisStrategy, result models.AnalysisResult) error {
	if result == nil {
		return fmt.Errorf("%s: nil result", s.GetStrategyName())
	}
	if result.Mode() != s.Mode() {
		return fmt.Errorf("%s: cannot apply to %s result", s.GetStrategyName(), result.Mode())
	}
	return nil
}

// DetectionStrategy drops objects under the confidence threshold and keeps
// the best MaxDetections of the rest
type DetectionStrategy struct{}

func NewDetectionStrategy() AnalysisStrategy { return &DetectionStrategy{} }

func (s *DetectionStrategy) Mode() models.AnalysisMode { return models.ModeDetection }

func (s *DetectionStrategy) GetStrategyName() string { return "detection_strategy" }

func (s *DetectionStrategy) EngineOptions(settings models.AppSettings, _ string) engine.Options {
	// ask for the widest allowed set; filtering happens in Apply
	r, _ := validation.RangeFor(validation.SettingMaxDetections)
	return engine.Options{MaxResults: int(r.Max)}
}

func (s *DetectionStrategy) Apply(result models.AnalysisResult, settings models.AppSettings) (models.AnalysisResult, error) {
	if err := checkMode(s, result); err != nil {
		return nil, err
	}
	det := result.(models.DetectionResult)
	threshold := settings.Detection.ConfidenceThreshold / 100

	kept := make([]models.DetectedObject, 0, len(det.Objects))
	for _, obj := range det.Objects {
		if obj.Score >= threshold {
			kept = append(kept, obj)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	if limit := settings.Detection.MaxDetections; limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}

	det.Objects = kept
	return det, nil
}

// ClassificationStrategy passes predictions through in descending order
type ClassificationStrategy struct{}

func NewClassificationStrategy() AnalysisStrategy { return &ClassificationStrategy{} }

func (s *ClassificationStrategy) Mode() models.AnalysisMode { return models.ModeClassification }

func (s *ClassificationStrategy) GetStrategyName() string { return "classification_strategy" }

func (s *ClassificationStrategy) EngineOptions(models.AppSettings, string) engine.Options {
	return engine.Options{MaxResults: engine.DefaultMaxPredictions}
}

func (s *ClassificationStrategy) Apply(result models.AnalysisResult, _ models.AppSettings) (models.AnalysisResult, error) {
	if err := checkMode(s, result); err != nil {
		return nil, err
	}
	cls := result.(models.ClassificationResult)
	predictions := append([]models.Prediction(nil), cls.Predictions...)
	sort.SliceStable(predictions, func(i, j int) bool {
		return predictions[i].Confidence > predictions[j].Confidence
	})
	cls.Predictions = predictions
	return cls, nil
}

// OCRStrategy drops regions under the minimum confidence and rebuilds the
// full text from what is left, in reading order
type OCRStrategy struct{}

func NewOCRStrategy() AnalysisStrategy { return &OCRStrategy{} }

func (s *OCRStrategy) Mode() models.AnalysisMode { return models.ModeOCR }

func (s *OCRStrategy) GetStrategyName() string { return "ocr_strategy" }

func (s *OCRStrategy) EngineOptions(settings models.AppSettings, expectedText string) engine.Options {
	return engine.Options{
		Language:     validation.ValidateLanguage(settings.OCR.Language),
		ExpectedText: expectedText,
	}
}

func (s *OCRStrategy) Apply(result models.AnalysisResult, settings models.AppSettings) (models.AnalysisResult, error) {
	if err := checkMode(s, result); err != nil {
		return nil, err
	}
	ocr := result.(models.OCRResult)

	kept := make([]models.TextRegion, 0, len(ocr.TextRegions))
	for _, r := range ocr.TextRegions {
		if r.Confidence >= settings.OCR.MinConfidence {
			kept = append(kept, r)
		}
	}
	ocr.TextRegions = kept
	ocr.FullText = engine.AssembleText(kept)
	if ocr.Accuracy != nil {
		ocr.Accuracy = engine.CompareText(ocr.FullText, ocr.Accuracy.ExpectedText)
	}
	return ocr, nil
}

// AnalysisContext holds the strategy for each mode
type AnalysisContext struct {
	strategies map[models.AnalysisMode]AnalysisStrategy
}

// NewAnalysisContext registers the default strategy for every mode
func NewAnalysisContext() *AnalysisContext {
	c := &AnalysisContext{strategies: make(map[models.AnalysisMode]AnalysisStrategy)}
	for _, s := range []AnalysisStrategy{NewDetectionStrategy(), NewClassificationStrategy(), NewOCRStrategy()} {
		c.SetStrategy(s)
	}
	return c
}

// SetStrategy replaces the strategy for its mode
func (c *AnalysisContext) SetStrategy(s AnalysisStrategy) {
	c.strategies[s.Mode()] = s
}

// For returns the mode's strategy
func (c *AnalysisContext) For(mode models.AnalysisMode) (AnalysisStrategy, error) {
	s, ok := c.strategies[mode]
	if !ok {
		return nil, fmt.Errorf("no strategy for mode %q", mode)
	}
	return s, nil
}

// ExecuteAnalysis applies the mode's strategy to result
func (c *AnalysisContext) ExecuteAnalysis(result models.AnalysisResult, settings models.AppSettings) (models.AnalysisResult, error) {
	if result == nil {
		return nil, fmt.Errorf("nil result")
	}
	s, err := c.For(result.Mode())
	if err != nil {
		return nil, err
	}
	return s.Apply(result, settings)
}
