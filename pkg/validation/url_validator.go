package validation

import (
	"net/url"
	"strings"

	apperrors "go-media-analyzer/internal/errors"
)

// MediaURLValidator checks where a media element may be loaded from
type MediaURLValidator struct {
	allowedSchemes []string
	allowedHosts   []string
}

// NewMediaURLValidator accepts http(s) URLs on any host
func NewMediaURLValidator() *MediaURLValidator {
	return &MediaURLValidator{
		allowedSchemes: []string{"http", "https"},
		allowedHosts:   []string{}, // empty means all hosts allowed
	}
}

// NewMediaURLValidatorWithOptions creates a validator with custom schemes and hosts
func NewMediaURLValidatorWithOptions(schemes []string, hosts []string) *MediaURLValidator {
	return &MediaURLValidator{
		allowedSchemes: schemes,
		allowedHosts:   hosts,
	}
}

// ValidateMediaURL validates a remote media URL
func (v *MediaURLValidator) ValidateMediaURL(mediaURL string) error {
	if strings.TrimSpace(mediaURL) == "" {
		return apperrors.NewValidationError("URL cannot be empty", nil)
	}

	parsedURL, err := url.Parse(mediaURL)
	if err != nil {
		return apperrors.NewValidationError("Invalid URL format", err)
	}

	if !v.isSchemeAllowed(parsedURL.Scheme) {
		return apperrors.NewValidationError("URL scheme not allowed", nil)
	}

	if parsedURL.Host == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}

	if len(v.allowedHosts) > 0 && !v.isHostAllowed(parsedURL.Host) {
		return apperrors.NewValidationError("URL host not allowed", nil)
	}

	return nil
}

// ValidateDataURL checks that raw is a base64 image data URL
func (v *MediaURLValidator) ValidateDataURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return apperrors.NewValidationError("data URL cannot be empty", nil)
	}
	if !strings.HasPrefix(raw, "data:image/") {
		return apperrors.NewValidationError("data URL must carry an image", nil)
	}
	if !strings.Contains(raw, ";base64,") {
		return apperrors.NewValidationError("data URL must be base64 encoded", nil)
	}
	return nil
}

func (v *MediaURLValidator) isSchemeAllowed(scheme string) bool {
	for _, allowed := range v.allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}

// isHostAllowed returns true if no host restrictions are set
func (v *MediaURLValidator) isHostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	for _, allowed := range v.allowedHosts {
		if host == allowed {
			return true
		}
	}
	return false
}
