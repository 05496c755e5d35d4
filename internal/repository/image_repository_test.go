package repository

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "go-media-analyzer/internal/errors"
	"go-media-analyzer/internal/thumbnail"
)

type stubFetcher struct {
	calls int
	img   image.Image
}

func (s *stubFetcher) FetchImage(ctx context.Context, url string) (image.Image, error) {
	s.calls++
	return s.img, nil
}

func TestHTTPMediaRepository_FetchValidatesFirst(t *testing.T) {
	fetcher := &stubFetcher{img: image.NewRGBA(image.Rect(0, 0, 4, 4))}
	repo := NewHTTPMediaRepository(fetcher, nil)

	_, err := repo.FetchImage(context.Background(), "ftp://example.com/a.png")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidMediaURL)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Equal(t, 0, fetcher.calls)

	img, err := repo.FetchImage(context.Background(), "https://example.com/a.png")
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 1, fetcher.calls)
}

func TestHTTPMediaRepository_NoFetcher(t *testing.T) {
	repo := NewHTTPMediaRepository(nil, nil)
	_, err := repo.FetchImage(context.Background(), "https://example.com/a.png")
	assert.ErrorIs(t, err, ErrRepositoryUnavailable)
}

func TestHTTPMediaRepository_DecodeDataURL(t *testing.T) {
	repo := NewHTTPMediaRepository(nil, nil)
	u, err := thumbnail.EncodePNGDataURL(image.NewRGBA(image.Rect(0, 0, 6, 3)))
	require.NoError(t, err)

	img, err := repo.DecodeDataURL(u)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 6, 3), img.Bounds())

	_, err = repo.DecodeDataURL("data:text/plain;base64,aGk=")
	assert.Error(t, err)
}
