package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcessingErrorWrapsCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewOCRFailedError("job-1", 2, 3, cause)

	assert.Equal(t, ErrorOCRFailed, err.Code)
	assert.Contains(t, err.Error(), "OCR_FAILED")
	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, errors.Is(err, cause))
}

func TestProcessingErrorToMap(t *testing.T) {
	err := NewBatchCancelledError("job-9", 4, nil)

	m := err.ToMap()
	assert.Equal(t, string(ErrorBatchCancelled), m["error_code"])
	assert.Contains(t, m["message"], "4 completed")
	assert.Equal(t, 4, m["completed_images"])
}

func TestOCREmptyError(t *testing.T) {
	err := NewOCREmptyError("volc", 3)
	assert.Equal(t, ErrorOCREmpty, err.Code)
	assert.Contains(t, err.Error(), "OCR_EMPTY")
	assert.Contains(t, err.Message, "image 3")
	assert.Equal(t, "volc", err.Details["provider"])
}

func TestInvalidPayloadError(t *testing.T) {
	err := NewInvalidPayloadError("job-1", "no images")
	assert.Equal(t, ErrorInvalidPayload, err.Code)
	assert.Contains(t, err.Message, "no images")
	assert.Nil(t, err.Unwrap())
}
