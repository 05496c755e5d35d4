package errors

import (
	stderrors "errors"
	"fmt"
)

// ModeNamer is satisfied by analysis modes; it keeps this package free of model imports
type ModeNamer interface {
	DisplayName() string
}

// UserMessage renders err as a short message suitable for showing to the user.
// Technical detail stays in the logs.
func UserMessage(mode ModeNamer, err error) string {
	if err == nil {
		return ""
	}
	name := "Analysis"
	if mode != nil {
		name = mode.DisplayName()
	}

	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return fmt.Sprintf("%s failed unexpectedly. Please try again.", name)
	}

	switch appErr.Type {
	case ErrorTypeModelLoad:
		return fmt.Sprintf("%s model failed to load. Check your connection and retry.", name)
	case ErrorTypeInference:
		return fmt.Sprintf("%s could not process this image. Try another frame or image.", name)
	case ErrorTypeWorker:
		return "The text recognition worker stopped. It will be restarted on the next attempt."
	case ErrorTypeLanguagePack:
		return "The selected language could not be loaded. Falling back to English."
	case ErrorTypeStorageUnavailable:
		return "Storage is unavailable. Your changes will not be saved."
	case ErrorTypeQuotaExceeded:
		return "Storage is full. Older history entries were removed."
	case ErrorTypeValidation:
		return appErr.Message
	case ErrorTypeTimeout:
		return fmt.Sprintf("%s took too long. Please try again.", name)
	case ErrorTypeNotFound:
		return appErr.Message
	case ErrorTypeConflict:
		return fmt.Sprintf("%s is already running.", name)
	default:
		return fmt.Sprintf("%s failed unexpectedly. Please try again.", name)
	}
}
