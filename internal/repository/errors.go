package repository

import "errors"

var (
	// ErrInvalidMediaURL indicates a media URL that failed validation
	ErrInvalidMediaURL = errors.New("invalid media URL")

	// ErrRepositoryUnavailable indicates the repository has no working backend
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)
