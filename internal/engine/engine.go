// Package engine adapts inference backends to a narrow initialize, infer and
// dispose contract. Concrete engines are selected by the factory package.
package engine

import (
	"context"
	"image"
	"time"

	"go-media-analyzer/pkg/models"
)

// Options tune a single inference call
type Options struct {
	// MaxResults caps detections or predictions; zero means engine default
	MaxResults int
	// Language is the OCR language code
	Language string
	// ExpectedText enables OCR accuracy scoring when non-empty
	ExpectedText string
}

// Engine is one mode's inference backend.
//
// Initialize is idempotent: calls while initialized or initializing do not
// repeat the work. Infer returns *errors.AppError values of type inference,
// worker or language_pack. Dispose may be called any number of times.
type Engine interface {
	Mode() models.AnalysisMode
	Initialize(ctx context.Context) error
	Infer(ctx context.Context, frame image.Image, opts Options) (models.AnalysisResult, error)
	Ready() bool
	Dispose() error
}

func elapsedMillis(started time.Time) float64 {
	return float64(time.Since(started).Microseconds()) / 1000
}

func frameDimensions(frame image.Image) models.Dimensions {
	b := frame.Bounds()
	return models.Dimensions{Width: b.Dx(), Height: b.Dy()}
}
