package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "go-media-analyzer/internal/errors"
)

func TestValidateMediaURL_ValidURLs(t *testing.T) {
	validator := NewMediaURLValidator()

	validURLs := []string{
		"http://example.com/image.jpg",
		"https://example.com/image.png",
		"https://subdomain.example.com/path/to/frame.webp",
		"http://192.168.1.1/image.jpg",
	}

	for _, u := range validURLs {
		assert.NoError(t, validator.ValidateMediaURL(u), u)
	}
}

func TestValidateMediaURL_Rejections(t *testing.T) {
	validator := NewMediaURLValidator()

	tests := []struct {
		url     string
		message string
	}{
		{"", "URL cannot be empty"},
		{"   ", "URL cannot be empty"},
		{"ftp://example.com/image.jpg", "URL scheme not allowed"},
		{"file://local/path/image.jpg", "URL scheme not allowed"},
		{"http://", "URL must have a valid host"},
		{"https:///path", "URL must have a valid host"},
	}

	for _, tt := range tests {
		err := validator.ValidateMediaURL(tt.url)
		require.Error(t, err, tt.url)

		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, tt.message, appErr.Message, tt.url)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	}
}

func TestValidateMediaURL_RestrictedHosts(t *testing.T) {
	validator := NewMediaURLValidatorWithOptions([]string{"https"}, []string{"cdn.example.com"})

	assert.NoError(t, validator.ValidateMediaURL("https://cdn.example.com/a.png"))
	assert.Error(t, validator.ValidateMediaURL("https://evil.example.com/a.png"))
	assert.Error(t, validator.ValidateMediaURL("http://cdn.example.com/a.png"))
}

func TestValidateDataURL(t *testing.T) {
	validator := NewMediaURLValidator()

	assert.NoError(t, validator.ValidateDataURL("data:image/png;base64,iVBORw0KGgo="))
	assert.Error(t, validator.ValidateDataURL(""))
	assert.Error(t, validator.ValidateDataURL("data:text/plain;base64,aGk="))
	assert.Error(t, validator.ValidateDataURL("data:image/png,rawbytes"))
}
