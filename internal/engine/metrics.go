package engine

import (
	"image"
	"math"
	"runtime"
	"sync"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/stat"
)

// edgeMagnitude is the Sobel magnitude above which a pixel counts as an edge
const edgeMagnitude = 50

// frameMetrics are the measurements the built-in engines derive labels from.
// Colour values are normalised to 0-1, brightness is 0-255.
type frameMetrics struct {
	luminance  float64
	saturation float64
	avgR       float64
	avgG       float64
	avgB       float64
	brightness float64
	laplacian  float64
	edgeRatio  float64
	skew       *float64
}

// metricsCalculator computes frame metrics in parallel strips
type metricsCalculator struct {
	slicePool sync.Pool
}

func newMetricsCalculator() *metricsCalculator {
	return &metricsCalculator{
		slicePool: sync.Pool{
			New: func() interface{} {
				return make([]float64, 0, 1024)
			},
		},
	}
}

func (mc *metricsCalculator) measure(img image.Image) frameMetrics {
	gray := toGray(img)
	m := mc.colorMetrics(img)
	m.brightness = mc.brightness(gray)
	m.laplacian = mc.laplacianVariance(gray)
	m.edgeRatio, m.skew = mc.edges(gray)
	return m
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

func (mc *metricsCalculator) colorMetrics(img image.Image) frameMetrics {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return frameMetrics{}
	}

	numWorkers := runtime.NumCPU()
	if height < numWorkers {
		numWorkers = height
	}
	rowsPerWorker := (height + numWorkers - 1) / numWorkers

	type strip struct {
		lum, sat, r, g, b float64
		pixels            int
	}
	results := make(chan strip, numWorkers)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		startY := bounds.Min.Y + i*rowsPerWorker
		endY := min(startY+rowsPerWorker, bounds.Max.Y)
		if startY >= endY {
			continue
		}
		wg.Add(1)
		go func(startY, endY int) {
			defer wg.Done()
			var s strip
			for y := startY; y < endY; y++ {
				for x := bounds.Min.X; x < bounds.Max.X; x++ {
					rv, gv, bv, _ := img.At(x, y).RGBA()
					rf := float64(rv) / 65535.0
					gf := float64(gv) / 65535.0
					bf := float64(bv) / 65535.0

					sat, val := saturationValue(rf, gf, bf)
					s.sat += sat
					s.lum += val
					s.r += rf
					s.g += gf
					s.b += bf
					s.pixels++
				}
			}
			results <- s
		}(startY, endY)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var total strip
	for s := range results {
		total.lum += s.lum
		total.sat += s.sat
		total.r += s.r
		total.g += s.g
		total.b += s.b
		total.pixels += s.pixels
	}
	if total.pixels == 0 {
		return frameMetrics{}
	}

	n := float64(total.pixels)
	return frameMetrics{
		luminance:  total.lum / n,
		saturation: total.sat / n,
		avgR:       total.r / n,
		avgG:       total.g / n,
		avgB:       total.b / n,
	}
}

// saturationValue returns the HSV saturation and value of a normalised colour
func saturationValue(r, g, b float64) (s, v float64) {
	hi := math.Max(r, math.Max(g, b))
	lo := math.Min(r, math.Min(g, b))
	if hi == 0 {
		return 0, 0
	}
	return (hi - lo) / hi, hi
}

func (mc *metricsCalculator) brightness(gray *image.Gray) float64 {
	b := gray.Bounds()
	if b.Empty() {
		return 0
	}
	var sum float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := gray.Pix[(y-b.Min.Y)*gray.Stride:]
		for x := 0; x < b.Dx(); x++ {
			sum += float64(row[x])
		}
	}
	return sum / float64(b.Dx()*b.Dy())
}

// laplacianVariance is the variance of the 4-neighbour Laplacian; low values mean blur
func (mc *metricsCalculator) laplacianVariance(gray *image.Gray) float64 {
	b := gray.Bounds()
	width, height := b.Dx(), b.Dy()
	if width < 3 || height < 3 {
		return 0
	}

	data := mc.slicePool.Get().([]float64)[:0]
	defer func() { mc.slicePool.Put(data[:0]) }()

	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		for x := b.Min.X + 1; x < b.Max.X-1; x++ {
			center := float64(gray.GrayAt(x, y).Y)
			lap := -4*center +
				float64(gray.GrayAt(x, y-1).Y) +
				float64(gray.GrayAt(x, y+1).Y) +
				float64(gray.GrayAt(x-1, y).Y) +
				float64(gray.GrayAt(x+1, y).Y)
			data = append(data, lap)
		}
	}
	return stat.Variance(data, nil)
}

// edges returns the fraction of edge pixels and, when there are enough of
// them, the dominant line angle in degrees within [-45, 45]
func (mc *metricsCalculator) edges(gray *image.Gray) (float64, *float64) {
	b := gray.Bounds()
	width, height := b.Dx(), b.Dy()
	if width < 3 || height < 3 {
		return 0, nil
	}

	var xs, ys []float64
	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		for x := b.Min.X + 1; x < b.Max.X-1; x++ {
			gx, gy := sobel(gray, x, y)
			if math.Hypot(float64(gx), float64(gy)) > edgeMagnitude {
				xs = append(xs, float64(x))
				ys = append(ys, float64(y))
			}
		}
	}

	ratio := float64(len(xs)) / float64((width-2)*(height-2))
	if len(xs) < 10 || stat.Variance(xs, nil) < 1e-10 {
		return ratio, nil
	}

	_, slope := stat.LinearRegression(xs, ys, nil, false)
	angle := math.Atan(slope) * 180 / math.Pi
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return ratio, nil
	}
	for angle > 45 {
		angle -= 90
	}
	for angle < -45 {
		angle += 90
	}
	return ratio, &angle
}

func sobel(gray *image.Gray, x, y int) (gx, gy int) {
	p := func(dx, dy int) int { return int(gray.GrayAt(x+dx, y+dy).Y) }
	gx = -p(-1, -1) + p(1, -1) - 2*p(-1, 0) + 2*p(1, 0) - p(-1, 1) + p(1, 1)
	gy = -p(-1, -1) - 2*p(0, -1) - p(1, -1) + p(-1, 1) + 2*p(0, 1) + p(1, 1)
	return gx, gy
}
