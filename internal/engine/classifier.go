package engine

import (
	"context"
	"image"
	"math"
	"sort"
	"time"

	apperrors "go-media-analyzer/internal/errors"
	"go-media-analyzer/pkg/models"
)

// DefaultMaxPredictions is how many labels a classification returns by default
const DefaultMaxPredictions = 5

// Classifier thresholds. Brightness is on the 0-255 scale.
const (
	blurVariance     = 100.0
	darkBrightness   = 80.0
	brightBrightness = 220.0
	vividSaturation  = 0.45
	documentEdges    = 0.04
	colourCastRatio  = 1.25
)

// QualityClassifier labels a frame from its image statistics. It needs no
// model files, so it is the classification engine of the builtin backend.
type QualityClassifier struct {
	life    *Lifecycle
	metrics *metricsCalculator
	qr      *finderPatterns
}

var _ Engine = (*QualityClassifier)(nil)

func NewQualityClassifier() *QualityClassifier {
	c := &QualityClassifier{}
	c.life = NewLifecycle("quality classifier", func(context.Context) error {
		c.metrics = newMetricsCalculator()
		c.qr = newFinderPatterns()
		return nil
	}, nil)
	return c
}

func (c *QualityClassifier) Mode() models.AnalysisMode { return models.ModeClassification }

func (c *QualityClassifier) Initialize(ctx context.Context) error { return c.life.Initialize(ctx) }

func (c *QualityClassifier) Ready() bool { return c.life.Ready() }

func (c *QualityClassifier) Dispose() error { return c.life.Dispose() }

func (c *QualityClassifier) Infer(ctx context.Context, frame image.Image, opts Options) (models.AnalysisResult, error) {
	if err := c.life.requireReady(); err != nil {
		return nil, err
	}
	if frame == nil || frame.Bounds().Empty() {
		return nil, apperrors.NewInferenceError("empty frame", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewInferenceError("classification cancelled", err)
	}

	started := time.Now()
	m := c.metrics.measure(frame)
	predictions := c.predict(m, c.qr.present(toGray(frame)))

	limit := opts.MaxResults
	if limit <= 0 {
		limit = DefaultMaxPredictions
	}
	if len(predictions) > limit {
		predictions = predictions[:limit]
	}

	return models.ClassificationResult{
		Predictions:     predictions,
		InferenceTime:   elapsedMillis(started),
		Timestamp:       models.FormatTimestamp(started),
		ImageDimensions: frameDimensions(frame),
	}, nil
}

// predict turns metrics into labels sorted by descending confidence
func (c *QualityClassifier) predict(m frameMetrics, hasQR bool) []models.Prediction {
	sharp := logistic(4 * (math.Log10(m.laplacian+1) - math.Log10(blurVariance)))
	dark := logistic((darkBrightness - m.brightness) / 15)
	bright := logistic((m.brightness - brightBrightness) / 15)
	vivid := logistic((m.saturation - vividSaturation) * 12)
	document := logistic((m.edgeRatio-documentEdges)*80) * (1 - m.saturation)

	predictions := []models.Prediction{
		{Label: "sharp", Confidence: sharp},
		{Label: "blurry", Confidence: 1 - sharp},
		{Label: "dark", Confidence: dark},
		{Label: "bright", Confidence: bright},
		{Label: "well exposed", Confidence: (1 - dark) * (1 - bright)},
		{Label: "vivid", Confidence: vivid},
		{Label: "muted", Confidence: 1 - vivid},
		{Label: "document", Confidence: document},
	}
	if hasQR {
		predictions = append(predictions, models.Prediction{Label: "qr code", Confidence: 0.9})
	}
	if m.avgB > 0 && m.avgR/m.avgB > colourCastRatio {
		predictions = append(predictions, models.Prediction{Label: "warm cast", Confidence: castConfidence(m.avgR / m.avgB)})
	}
	if m.avgR > 0 && m.avgB/m.avgR > colourCastRatio {
		predictions = append(predictions, models.Prediction{Label: "cool cast", Confidence: castConfidence(m.avgB / m.avgR)})
	}
	if m.skew != nil && math.Abs(*m.skew) > 5 && document > 0.5 {
		predictions = append(predictions, models.Prediction{Label: "skewed", Confidence: math.Min(1, math.Abs(*m.skew)/45)})
	}

	for i := range predictions {
		predictions[i].Confidence = round4(predictions[i].Confidence)
	}
	sort.SliceStable(predictions, func(i, j int) bool {
		return predictions[i].Confidence > predictions[j].Confidence
	})
	return predictions
}

func castConfidence(ratio float64) float64 {
	return math.Min(1, (ratio-1)*2)
}

func logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
