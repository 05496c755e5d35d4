package engine

import (
	"context"
	"image"
	"math"
	"sort"
	"time"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/stat"

	apperrors "go-media-analyzer/internal/errors"
	"go-media-analyzer/pkg/models"
)

// DefaultMaxDetections is the detection cap used when none is requested
const DefaultMaxDetections = 20

// RegionDetector finds high-contrast regions with connected-component
// labelling on a downscaled luminance map. It is the detection engine of the
// builtin backend.
type RegionDetector struct {
	MaxSide        int
	MinAreaRatio   float64
	MaxAreaRatio   float64
	MinAspectRatio float64
	MaxAspectRatio float64
	// MinContrast is the smallest luminance deviation that counts as foreground
	MinContrast float64

	life *Lifecycle
	qr   *finderPatterns
}

var _ Engine = (*RegionDetector)(nil)

func NewRegionDetector() *RegionDetector {
	d := &RegionDetector{
		MaxSide:        160,
		MinAreaRatio:   0.002,
		MaxAreaRatio:   0.9,
		MinAspectRatio: 0.1,
		MaxAspectRatio: 10,
		MinContrast:    16,
	}
	d.life = NewLifecycle("region detector", func(context.Context) error {
		d.qr = newFinderPatterns()
		return nil
	}, nil)
	return d
}

func (d *RegionDetector) Mode() models.AnalysisMode { return models.ModeDetection }

func (d *RegionDetector) Initialize(ctx context.Context) error { return d.life.Initialize(ctx) }

func (d *RegionDetector) Ready() bool { return d.life.Ready() }

func (d *RegionDetector) Dispose() error { return d.life.Dispose() }

func (d *RegionDetector) Infer(ctx context.Context, frame image.Image, opts Options) (models.AnalysisResult, error) {
	if err := d.life.requireReady(); err != nil {
		return nil, err
	}
	if frame == nil || frame.Bounds().Empty() {
		return nil, apperrors.NewInferenceError("empty frame", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewInferenceError("detection cancelled", err)
	}

	started := time.Now()
	full := toGray(frame)
	small, scale := d.downscale(full)

	objects := d.detect(full, small, scale)
	limit := opts.MaxResults
	if limit <= 0 {
		limit = DefaultMaxDetections
	}
	if len(objects) > limit {
		objects = objects[:limit]
	}

	return models.DetectionResult{
		Objects:       objects,
		InferenceTime: elapsedMillis(started),
	}, nil
}

// downscale shrinks gray so its longest side is at most MaxSide. The
// returned factor maps small coordinates back to full ones.
func (d *RegionDetector) downscale(gray *image.Gray) (*image.Gray, float64) {
	b := gray.Bounds()
	longest := max(b.Dx(), b.Dy())
	if longest <= d.MaxSide {
		return gray, 1
	}
	factor := float64(longest) / float64(d.MaxSide)
	w := max(1, int(math.Round(float64(b.Dx())/factor)))
	h := max(1, int(math.Round(float64(b.Dy())/factor)))
	small := image.NewGray(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), gray, b, draw.Src, nil)
	return small, float64(b.Dx()) / float64(w)
}

type component struct {
	minX, minY, maxX, maxY int
	area                   int
	deviation              float64
}

func (d *RegionDetector) detect(full, small *image.Gray, scale float64) []models.DetectedObject {
	w, h := small.Bounds().Dx(), small.Bounds().Dy()
	values := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			values[y*w+x] = float64(small.Pix[y*small.Stride+x])
		}
	}
	mean, std := stat.MeanStdDev(values, nil)
	threshold := math.Max(std, d.MinContrast)

	foreground := make([]bool, len(values))
	for i, v := range values {
		foreground[i] = math.Abs(v-mean) > threshold
	}

	total := float64(w * h)
	var objects []models.DetectedObject
	for _, c := range d.label(foreground, values, mean, w, h) {
		if float64(c.area) < d.MinAreaRatio*total {
			continue
		}
		bw, bh := c.maxX-c.minX+1, c.maxY-c.minY+1
		if float64(bw*bh) > d.MaxAreaRatio*total {
			continue
		}
		aspect := float64(bw) / float64(bh)
		if aspect < d.MinAspectRatio || aspect > d.MaxAspectRatio {
			continue
		}

		box := [4]float64{
			math.Round(float64(c.minX) * scale),
			math.Round(float64(c.minY) * scale),
			math.Round(float64(bw) * scale),
			math.Round(float64(bh) * scale),
		}
		objects = append(objects, models.DetectedObject{
			BBox:  box,
			Class: d.classify(full, box, mean),
			Score: round4(math.Min(1, c.deviation/128)),
		})
	}

	sort.SliceStable(objects, func(i, j int) bool { return objects[i].Score > objects[j].Score })
	return objects
}

// label groups 4-connected foreground pixels
func (d *RegionDetector) label(foreground []bool, values []float64, mean float64, w, h int) []component {
	seen := make([]bool, len(foreground))
	var components []component
	queue := make([]int, 0, 64)

	for start := range foreground {
		if !foreground[start] || seen[start] {
			continue
		}
		c := component{minX: w, minY: h, maxX: -1, maxY: -1}
		var deviation float64
		queue = append(queue[:0], start)
		seen[start] = true

		for len(queue) > 0 {
			i := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			x, y := i%w, i/w
			c.minX, c.maxX = min(c.minX, x), max(c.maxX, x)
			c.minY, c.maxY = min(c.minY, y), max(c.maxY, y)
			c.area++
			deviation += math.Abs(values[i] - mean)

			for _, n := range [4]int{i - w, i + w, i - 1, i + 1} {
				if n < 0 || n >= len(foreground) || seen[n] || !foreground[n] {
					continue
				}
				// no wrapping across row ends
				if (n == i-1 && x == 0) || (n == i+1 && x == w-1) {
					continue
				}
				seen[n] = true
				queue = append(queue, n)
			}
		}
		c.deviation = deviation / float64(c.area)
		components = append(components, c)
	}
	return components
}

func (d *RegionDetector) classify(full *image.Gray, box [4]float64, mean float64) string {
	b := full.Bounds()
	rect := image.Rect(int(box[0]), int(box[1]), int(box[0]+box[2]), int(box[1]+box[3])).Add(b.Min).Intersect(b)
	if d.qr != nil && !rect.Empty() {
		if crop, ok := full.SubImage(rect).(*image.Gray); ok && d.qr.present(crop) {
			return "qr code"
		}
	}
	if d.darker(full, rect, mean) {
		return "dark region"
	}
	return "bright region"
}

func (d *RegionDetector) darker(full *image.Gray, rect image.Rectangle, mean float64) bool {
	if rect.Empty() {
		return false
	}
	var sum float64
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			sum += float64(full.GrayAt(x, y).Y)
		}
	}
	return sum/float64(rect.Dx()*rect.Dy()) < mean
}
