//go:build !gocv

package engine

import (
	"context"
	"image"

	apperrors "go-media-analyzer/internal/errors"
	"go-media-analyzer/pkg/models"
)

// GoCVDetector is unavailable in builds without the gocv tag
type GoCVDetector struct {
	life *Lifecycle
}

var _ Engine = (*GoCVDetector)(nil)

func NewGoCVDetector() *GoCVDetector {
	return &GoCVDetector{
		life: NewLifecycle("opencv detector", func(context.Context) error {
			return apperrors.NewModelLoadError("OpenCV detection requires a build with -tags gocv", nil)
		}, nil),
	}
}

func (d *GoCVDetector) Mode() models.AnalysisMode { return models.ModeDetection }

func (d *GoCVDetector) Initialize(ctx context.Context) error { return d.life.Initialize(ctx) }

func (d *GoCVDetector) Ready() bool { return d.life.Ready() }

func (d *GoCVDetector) Dispose() error { return d.life.Dispose() }

func (d *GoCVDetector) Infer(ctx context.Context, frame image.Image, opts Options) (models.AnalysisResult, error) {
	return nil, d.life.requireReady()
}
