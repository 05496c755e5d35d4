package models

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// AnalysisMode identifies one of the three analysis pipelines
type AnalysisMode string

const (
	ModeDetection      AnalysisMode = "detection"
	ModeClassification AnalysisMode = "classification"
	ModeOCR            AnalysisMode = "ocr"
)

// AllModes lists every analysis mode in display order
var AllModes = []AnalysisMode{ModeDetection, ModeClassification, ModeOCR}

// Valid reports whether m is one of the known modes
func (m AnalysisMode) Valid() bool {
	switch m {
	case ModeDetection, ModeClassification, ModeOCR:
		return true
	}
	return false
}

// DisplayName returns a human readable label for the mode
func (m AnalysisMode) DisplayName() string {
	switch m {
	case ModeDetection:
		return "Object detection"
	case ModeClassification:
		return "Image classification"
	case ModeOCR:
		return "Text recognition"
	default:
		return string(m)
	}
}

// ParseMode converts a raw string into an AnalysisMode
func ParseMode(raw string) (AnalysisMode, error) {
	m := AnalysisMode(raw)
	if !m.Valid() {
		return "", fmt.Errorf("unknown analysis mode %q", raw)
	}
	return m, nil
}

// TimestampFormat is the ISO-8601 layout used for every persisted timestamp
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t in UTC using TimestampFormat
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// Dimensions is a pixel width/height pair
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Scaled returns the dimensions multiplied by scale, rounded per component
func (d Dimensions) Scaled(scale float64) Dimensions {
	return Dimensions{
		Width:  roundInt(float64(d.Width) * scale),
		Height: roundInt(float64(d.Height) * scale),
	}
}

// BoundingBox is an axis-aligned box in source image pixels
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Scaled rescales every component independently and rounds it to a whole pixel
func (b BoundingBox) Scaled(scale float64) BoundingBox {
	return BoundingBox{
		X:      math.Round(b.X * scale),
		Y:      math.Round(b.Y * scale),
		Width:  math.Round(b.Width * scale),
		Height: math.Round(b.Height * scale),
	}
}

// AnalysisResult is the tagged union of per-mode results.
// Implementations are DetectionResult, ClassificationResult and OCRResult.
type AnalysisResult interface {
	Mode() AnalysisMode
	// Rescaled returns a copy with every geometric field multiplied by scale
	Rescaled(scale float64) AnalysisResult
}

// DetectedObject is one detection in [x, y, width, height] pixel form
type DetectedObject struct {
	BBox  [4]float64 `json:"bbox"`
	Class string     `json:"class"`
	Score float64    `json:"score"`
}

// DetectionResult holds the objects found in a frame
type DetectionResult struct {
	Objects       []DetectedObject `json:"objects"`
	InferenceTime float64          `json:"inferenceTime"`
}

func (r DetectionResult) Mode() AnalysisMode { return ModeDetection }

// MarshalJSON always writes objects as an array
func (r DetectionResult) MarshalJSON() ([]byte, error) {
	type plain DetectionResult
	if r.Objects == nil {
		r.Objects = []DetectedObject{}
	}
	return json.Marshal(plain(r))
}

func (r DetectionResult) Rescaled(scale float64) AnalysisResult {
	out := DetectionResult{InferenceTime: r.InferenceTime, Objects: make([]DetectedObject, len(r.Objects))}
	for i, obj := range r.Objects {
		out.Objects[i] = DetectedObject{Class: obj.Class, Score: obj.Score}
		for k, v := range obj.BBox {
			out.Objects[i].BBox[k] = math.Round(v * scale)
		}
	}
	return out
}

// Prediction is a single classification label with its confidence (0-1)
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// ClassificationResult holds predictions sorted by descending confidence
type ClassificationResult struct {
	Predictions     []Prediction `json:"predictions"`
	InferenceTime   float64      `json:"inferenceTime"`
	Timestamp       string       `json:"timestamp"`
	ImageDimensions Dimensions   `json:"imageDimensions"`
}

func (r ClassificationResult) Mode() AnalysisMode { return ModeClassification }

// MarshalJSON always writes predictions as an array
func (r ClassificationResult) MarshalJSON() ([]byte, error) {
	type plain ClassificationResult
	if r.Predictions == nil {
		r.Predictions = []Prediction{}
	}
	return json.Marshal(plain(r))
}

func (r ClassificationResult) Rescaled(scale float64) AnalysisResult {
	out := r
	out.Predictions = append([]Prediction(nil), r.Predictions...)
	out.ImageDimensions = r.ImageDimensions.Scaled(scale)
	return out
}

// TextRegion is one recognized piece of text. Confidence is 0-100.
type TextRegion struct {
	Text        string       `json:"text"`
	Confidence  float64      `json:"confidence"`
	BoundingBox *BoundingBox `json:"bbox,omitempty"`
	Language    string       `json:"language,omitempty"`
}

// TextAccuracy compares recognized text with an expected transcription
type TextAccuracy struct {
	ExpectedText       string  `json:"expectedText"`
	CharacterErrorRate float64 `json:"cer"`
	WordErrorRate      float64 `json:"wer"`
	MatchScore         float64 `json:"matchScore"`
}

// OCRResult holds recognized text regions and the assembled full text
type OCRResult struct {
	TextRegions     []TextRegion  `json:"textRegions"`
	FullText        string        `json:"fullText"`
	ProcessingTime  float64       `json:"processingTime"`
	Timestamp       string        `json:"timestamp"`
	ImageDimensions Dimensions    `json:"imageDimensions"`
	Language        string        `json:"language"`
	Accuracy        *TextAccuracy `json:"accuracy,omitempty"`
}

func (r OCRResult) Mode() AnalysisMode { return ModeOCR }

// MarshalJSON always writes textRegions as an array
func (r OCRResult) MarshalJSON() ([]byte, error) {
	type plain OCRResult
	if r.TextRegions == nil {
		r.TextRegions = []TextRegion{}
	}
	return json.Marshal(plain(r))
}

func (r OCRResult) Rescaled(scale float64) AnalysisResult {
	out := r
	out.TextRegions = make([]TextRegion, len(r.TextRegions))
	for i, region := range r.TextRegions {
		out.TextRegions[i] = region
		if region.BoundingBox != nil {
			box := region.BoundingBox.Scaled(scale)
			out.TextRegions[i].BoundingBox = &box
		}
	}
	out.ImageDimensions = r.ImageDimensions.Scaled(scale)
	return out
}

// DecodeResult decodes a JSON result payload for the given mode
func DecodeResult(mode AnalysisMode, data []byte) (AnalysisResult, error) {
	switch mode {
	case ModeDetection:
		var r DetectionResult
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, err
		}
		return r, nil
	case ModeClassification:
		var r ClassificationResult
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, err
		}
		return r, nil
	case ModeOCR:
		var r OCRResult
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown analysis mode %q", mode)
	}
}

func roundInt(v float64) int {
	return int(math.Round(v))
}
