package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

type testMode string

func (m testMode) DisplayName() string { return string(m) }

func TestConstructors(t *testing.T) {
	cause := stderrors.New("boom")
	tests := []struct {
		err    *AppError
		typ    ErrorType
		status int
	}{
		{NewModelLoadError("m", cause), ErrorTypeModelLoad, http.StatusServiceUnavailable},
		{NewInferenceError("m", cause), ErrorTypeInference, http.StatusUnprocessableEntity},
		{NewWorkerError("m", cause), ErrorTypeWorker, http.StatusServiceUnavailable},
		{NewLanguagePackError("m", cause), ErrorTypeLanguagePack, http.StatusUnprocessableEntity},
		{NewStorageUnavailableError("m", cause), ErrorTypeStorageUnavailable, http.StatusServiceUnavailable},
		{NewQuotaExceededError("m", cause), ErrorTypeQuotaExceeded, http.StatusInsufficientStorage},
		{NewValidationError("m", cause), ErrorTypeValidation, http.StatusBadRequest},
		{NewTimeoutError("m", cause), ErrorTypeTimeout, http.StatusGatewayTimeout},
		{NewNotFoundError("m", cause), ErrorTypeNotFound, http.StatusNotFound},
		{NewInternalError("m", cause), ErrorTypeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.err.Type)
			assert.Equal(t, tt.status, GetStatusCode(tt.err))
			assert.ErrorIs(t, tt.err, cause)
			assert.Contains(t, tt.err.Error(), "caused by: boom")
		})
	}
}

func TestIsTypeSeesWrappedErrors(t *testing.T) {
	err := fmt.Errorf("loading detector: %w", NewModelLoadError("weights missing", nil))

	assert.True(t, IsType(err, ErrorTypeModelLoad))
	assert.False(t, IsType(err, ErrorTypeInference))
	assert.False(t, IsType(stderrors.New("plain"), ErrorTypeModelLoad))
	assert.Equal(t, http.StatusServiceUnavailable, GetStatusCode(err))
	assert.Equal(t, http.StatusInternalServerError, GetStatusCode(stderrors.New("plain")))
}

func TestUserMessage(t *testing.T) {
	mode := testMode("Object detection")

	assert.Equal(t, "", UserMessage(mode, nil))
	assert.Equal(t,
		"Object detection model failed to load. Check your connection and retry.",
		UserMessage(mode, NewModelLoadError("tensor backend missing", nil)))
	assert.Equal(t,
		"Object detection failed unexpectedly. Please try again.",
		UserMessage(mode, stderrors.New("segfault in layer 3")))
	assert.Equal(t, "URL cannot be empty", UserMessage(mode, NewValidationError("URL cannot be empty", nil)))
	assert.Contains(t, UserMessage(nil, NewTimeoutError("slow", nil)), "Analysis took too long")
	assert.NotContains(t, UserMessage(mode, NewInferenceError("CUDA OOM at 0xdeadbeef", nil)), "CUDA")
}

func TestWithDetailsCopies(t *testing.T) {
	base := NewInternalError("x", nil)
	detailed := base.WithDetails("stack")

	assert.Empty(t, base.Details)
	assert.Equal(t, "stack", detailed.Details)
}
