// Package thumbnail shrinks images for storage in the history log.
package thumbnail

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"math"
	"strings"
	"time"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	ErrNotDataURL     = errors.New("thumbnail: not a base64 image data URL")
	ErrZeroDimensions = errors.New("thumbnail: image has zero width or height")
)

// Options control compression
type Options struct {
	MaxWidth int
	Quality  int
	Timeout  time.Duration
}

// DefaultOptions matches the stored history format
func DefaultOptions() Options {
	return Options{MaxWidth: 400, Quality: 70, Timeout: 10 * time.Second}
}

// Result is a compressed image and the factor applied to its geometry
type Result struct {
	DataURL    string
	Scale      float64
	Dimensions image.Point
}

// ScaleFor returns min(1, maxWidth/width)
func ScaleFor(width, maxWidth int) float64 {
	if width <= 0 || maxWidth <= 0 {
		return 1
	}
	return math.Min(1, float64(maxWidth)/float64(width))
}

// Compress decodes dataURL, downsizes it to at most opts.MaxWidth wide and
// re-encodes it as JPEG. It honours opts.Timeout and ctx.
func Compress(ctx context.Context, dataURL string, opts Options) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("thumbnail: compression aborted: %w", err)
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := compress(dataURL, opts)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		return Result{}, fmt.Errorf("thumbnail: compression aborted: %w", ctx.Err())
	}
}

func compress(dataURL string, opts Options) (Result, error) {
	src, err := DecodeDataURL(dataURL)
	if err != nil {
		return Result{}, err
	}

	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return Result{}, ErrZeroDimensions
	}

	scale := ScaleFor(b.Dx(), opts.MaxWidth)
	w := int(math.Round(float64(b.Dx()) * scale))
	h := int(math.Round(float64(b.Dy()) * scale))
	if w < 1 || h < 1 {
		return Result{}, ErrZeroDimensions
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)

	encoded, err := EncodeJPEGDataURL(dst, opts.Quality)
	if err != nil {
		return Result{}, err
	}
	return Result{DataURL: encoded, Scale: scale, Dimensions: image.Pt(w, h)}, nil
}

// DecodeDataURL decodes a base64 "data:image/..." URL
func DecodeDataURL(dataURL string) (image.Image, error) {
	payload, err := dataURLPayload(dataURL)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("thumbnail: decode image: %w", err)
	}
	return img, nil
}

// DecodeConfig reads only the header of a data URL image
func DecodeConfig(dataURL string) (image.Config, error) {
	payload, err := dataURLPayload(dataURL)
	if err != nil {
		return image.Config{}, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return image.Config{}, fmt.Errorf("thumbnail: decode config: %w", err)
	}
	return cfg, nil
}

func dataURLPayload(dataURL string) ([]byte, error) {
	header, data, ok := strings.Cut(dataURL, ",")
	if !ok || !strings.HasPrefix(header, "data:image/") || !strings.HasSuffix(header, ";base64") {
		return nil, ErrNotDataURL
	}
	payload, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDataURL, err)
	}
	return payload, nil
}

// EncodeJPEGDataURL encodes img as a JPEG data URL
func EncodeJPEGDataURL(img image.Image, quality int) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", fmt.Errorf("thumbnail: encode jpeg: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// EncodePNGDataURL encodes img losslessly as a PNG data URL
func EncodePNGDataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("thumbnail: encode png: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
