package repository

import (
	"context"
	"fmt"
	"image"

	"go-media-analyzer/internal/storage"
	"go-media-analyzer/internal/thumbnail"
	"go-media-analyzer/pkg/validation"
)

// HTTPMediaRepository loads media over HTTP or from inline data URLs
type HTTPMediaRepository struct {
	fetcher   storage.MediaFetcher
	validator *validation.MediaURLValidator
}

// NewHTTPMediaRepository creates a media repository backed by fetcher
func NewHTTPMediaRepository(fetcher storage.MediaFetcher, validator *validation.MediaURLValidator) *HTTPMediaRepository {
	if validator == nil {
		validator = validation.NewMediaURLValidator()
	}
	return &HTTPMediaRepository{
		fetcher:   fetcher,
		validator: validator,
	}
}

var _ MediaRepository = (*HTTPMediaRepository)(nil)

// FetchImage validates mediaURL and downloads the image
func (r *HTTPMediaRepository) FetchImage(ctx context.Context, mediaURL string) (image.Image, error) {
	if err := r.validator.ValidateMediaURL(mediaURL); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMediaURL, err)
	}
	if r.fetcher == nil {
		return nil, ErrRepositoryUnavailable
	}
	return r.fetcher.FetchImage(ctx, mediaURL)
}

// DecodeDataURL validates and decodes an inline image
func (r *HTTPMediaRepository) DecodeDataURL(dataURL string) (image.Image, error) {
	if err := r.validator.ValidateDataURL(dataURL); err != nil {
		return nil, err
	}
	return thumbnail.DecodeDataURL(dataURL)
}
