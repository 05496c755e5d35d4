package media

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-media-analyzer/pkg/models"
)

func TestStillImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 64, 48))
	src := NewStillImage(img)

	assert.Equal(t, models.Dimensions{Width: 64, Height: 48}, src.Dimensions())
	assert.False(t, src.IsLive())
	frame, err := src.CurrentFrame()
	require.NoError(t, err)
	assert.Same(t, img, frame)
}

func TestFrameBuffer(t *testing.T) {
	fb := NewFrameBuffer()
	assert.True(t, fb.IsLive())
	assert.Equal(t, models.Dimensions{}, fb.Dimensions())

	_, err := fb.CurrentFrame()
	assert.ErrorIs(t, err, ErrNoFrame)

	first := image.NewGray(image.Rect(0, 0, 10, 10))
	second := image.NewGray(image.Rect(0, 0, 20, 5))
	fb.Publish(first)
	fb.Publish(second)

	frame, err := fb.CurrentFrame()
	require.NoError(t, err)
	assert.Same(t, second, frame)
	assert.Equal(t, models.Dimensions{Width: 20, Height: 5}, fb.Dimensions())

	fb.Publish(first)
	published, dropped := fb.Stats()
	assert.Equal(t, uint64(3), published)
	assert.Equal(t, uint64(1), dropped)
}
