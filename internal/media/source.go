// Package media holds the media element the analyses run against.
package media

import (
	"errors"
	"image"
	"sync"
	"sync/atomic"

	"go-media-analyzer/pkg/models"
)

// ErrNoFrame is returned by a live source before its first frame arrives
var ErrNoFrame = errors.New("media: no frame available")

// Source is an opaque media handle: a still image or a live stream
type Source interface {
	// Dimensions reports the pixel size of the current frame
	Dimensions() models.Dimensions
	// CurrentFrame returns the frame to analyse; callers must not modify it
	CurrentFrame() (image.Image, error)
	// IsLive reports whether frames keep changing
	IsLive() bool
}

// StillImage is a Source over a single decoded image
type StillImage struct {
	img image.Image
}

var _ Source = (*StillImage)(nil)

func NewStillImage(img image.Image) *StillImage {
	return &StillImage{img: img}
}

func (s *StillImage) Dimensions() models.Dimensions {
	b := s.img.Bounds()
	return models.Dimensions{Width: b.Dx(), Height: b.Dy()}
}

func (s *StillImage) CurrentFrame() (image.Image, error) { return s.img, nil }
func (s *StillImage) IsLive() bool                       { return false }

// FrameBuffer is a live Source holding only the most recent frame. A new
// frame replaces the previous one whether or not it was read.
type FrameBuffer struct {
	mu       sync.RWMutex
	frame    image.Image
	consumed bool
	drops    atomic.Uint64
	frames   atomic.Uint64
}

var _ Source = (*FrameBuffer)(nil)

func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{}
}

// Publish replaces the current frame
func (f *FrameBuffer) Publish(img image.Image) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.frame != nil && !f.consumed {
		f.drops.Add(1)
	}
	f.frame = img
	f.consumed = false
	f.frames.Add(1)
}

func (f *FrameBuffer) CurrentFrame() (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.frame == nil {
		return nil, ErrNoFrame
	}
	f.consumed = true
	return f.frame, nil
}

func (f *FrameBuffer) Dimensions() models.Dimensions {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.frame == nil {
		return models.Dimensions{}
	}
	b := f.frame.Bounds()
	return models.Dimensions{Width: b.Dx(), Height: b.Dy()}
}

func (f *FrameBuffer) IsLive() bool { return true }

// Stats returns frames published and frames overwritten before being read
func (f *FrameBuffer) Stats() (published, dropped uint64) {
	return f.frames.Load(), f.drops.Load()
}
