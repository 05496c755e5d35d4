//go:build gocv

package engine

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"math"
	"sort"
	"time"

	"gocv.io/x/gocv"

	apperrors "go-media-analyzer/internal/errors"
	"go-media-analyzer/pkg/models"
)

// GoCVDetector detects object outlines with OpenCV: blur, Canny edges and
// external contours filtered by area and aspect ratio.
type GoCVDetector struct {
	MaxSide        int
	MinAreaRatio   float64
	MinAspectRatio float64
	MaxAspectRatio float64

	life *Lifecycle
}

var _ Engine = (*GoCVDetector)(nil)

func NewGoCVDetector() *GoCVDetector {
	d := &GoCVDetector{
		MaxSide:        1024,
		MinAreaRatio:   0.001,
		MinAspectRatio: 0.1,
		MaxAspectRatio: 10,
	}
	d.life = NewLifecycle("opencv detector", func(context.Context) error { return nil }, nil)
	return d
}

func (d *GoCVDetector) Mode() models.AnalysisMode { return models.ModeDetection }

func (d *GoCVDetector) Initialize(ctx context.Context) error { return d.life.Initialize(ctx) }

func (d *GoCVDetector) Ready() bool { return d.life.Ready() }

func (d *GoCVDetector) Dispose() error { return d.life.Dispose() }

func (d *GoCVDetector) Infer(ctx context.Context, frame image.Image, opts Options) (models.AnalysisResult, error) {
	if err := d.life.requireReady(); err != nil {
		return nil, err
	}
	if frame == nil || frame.Bounds().Empty() {
		return nil, apperrors.NewInferenceError("empty frame", nil)
	}
	started := time.Now()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: 90}); err != nil {
		return nil, apperrors.NewInferenceError("failed to encode frame", err)
	}
	mat, err := gocv.IMDecode(buf.Bytes(), gocv.IMReadColor)
	if err != nil || mat.Empty() {
		if err == nil {
			mat.Close()
		}
		return nil, apperrors.NewInferenceError("failed to decode frame", err)
	}
	defer func() { mat.Close() }()

	scale := 1.0
	if mat.Cols() > d.MaxSide || mat.Rows() > d.MaxSide {
		scale = float64(d.MaxSide) / float64(max(mat.Cols(), mat.Rows()))
		resized := gocv.NewMat()
		gocv.Resize(mat, &resized, image.Pt(int(float64(mat.Cols())*scale), int(float64(mat.Rows())*scale)), 0, 0, gocv.InterpolationArea)
		mat.Close()
		mat = resized
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewInferenceError("detection cancelled", err)
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	blur := gocv.NewMat()
	defer blur.Close()
	gocv.GaussianBlur(gray, &blur, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blur, &edges, 50, 150)

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	total := float64(mat.Cols() * mat.Rows())
	objects := make([]models.DetectedObject, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		rect := gocv.BoundingRect(contours.At(i))
		area := float64(rect.Dx() * rect.Dy())
		if area < total*d.MinAreaRatio || rect.Dy() == 0 {
			continue
		}
		aspect := float64(rect.Dx()) / float64(rect.Dy())
		if aspect < d.MinAspectRatio || aspect > d.MaxAspectRatio {
			continue
		}
		objects = append(objects, models.DetectedObject{
			BBox: [4]float64{
				math.Round(float64(rect.Min.X) / scale),
				math.Round(float64(rect.Min.Y) / scale),
				math.Round(float64(rect.Dx()) / scale),
				math.Round(float64(rect.Dy()) / scale),
			},
			Class: "object",
			Score: round4(min(1, area/(total*0.05))),
		})
	}
	sort.SliceStable(objects, func(i, j int) bool { return objects[i].Score > objects[j].Score })

	limit := opts.MaxResults
	if limit <= 0 {
		limit = DefaultMaxDetections
	}
	if len(objects) > limit {
		objects = objects[:limit]
	}
	return models.DetectionResult{Objects: objects, InferenceTime: elapsedMillis(started)}, nil
}
