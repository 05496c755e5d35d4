//go:build !tesseract

package engine

import (
	"context"
	"image"

	apperrors "go-media-analyzer/internal/errors"
	"go-media-analyzer/pkg/models"
)

// TesseractEngine is unavailable in builds without the tesseract tag
type TesseractEngine struct {
	life *Lifecycle
}

var _ Engine = (*TesseractEngine)(nil)

func NewTesseractEngine(dataPath string) *TesseractEngine {
	return &TesseractEngine{
		life: NewLifecycle("tesseract", func(context.Context) error {
			return apperrors.NewModelLoadError("OCR requires a build with -tags tesseract", nil)
		}, nil),
	}
}

func (t *TesseractEngine) Mode() models.AnalysisMode { return models.ModeOCR }

func (t *TesseractEngine) Initialize(ctx context.Context) error { return t.life.Initialize(ctx) }

func (t *TesseractEngine) Ready() bool { return t.life.Ready() }

func (t *TesseractEngine) Dispose() error { return t.life.Dispose() }

func (t *TesseractEngine) Infer(ctx context.Context, frame image.Image, opts Options) (models.AnalysisResult, error) {
	return nil, t.life.requireReady()
}
