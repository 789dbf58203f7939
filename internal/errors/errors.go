package errors

import (
	"fmt"
	"time"
)

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Provider errors
	ErrorOCRFailed        ErrorCode = "OCR_FAILED"
	ErrorOCREmpty         ErrorCode = "OCR_EMPTY"
	ErrorImageFetchFailed ErrorCode = "IMAGE_FETCH_FAILED"

	// Batch errors
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"
	ErrorBatchCancelled    ErrorCode = "BATCH_CANCELLED"

	// Payload errors
	ErrorInvalidPayload ErrorCode = "INVALID_PAYLOAD"
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	JobID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// Factory functions for common errors

func NewOCRFailedError(jobID string, imageIndex int, attempts int, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorOCRFailed,
		Message:   fmt.Sprintf("OCR failed for image %d after %d attempts", imageIndex, attempts),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"image_index": imageIndex,
			"attempts":    attempts,
		},
		Cause: cause,
	}
}

func NewOCREmptyError(provider string, imageIndex int) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorOCREmpty,
		Message:   fmt.Sprintf("Provider %s returned no content for image %d", provider, imageIndex),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"provider":    provider,
			"image_index": imageIndex,
		},
	}
}

func NewImageFetchFailedError(jobID string, url string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorImageFetchFailed,
		Message:   "Failed to download image for processing",
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"url": url,
		},
		Cause: cause,
	}
}

func NewProcessingTimeoutError(jobID string, duration time.Duration, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Processing timed out after %v", duration),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewBatchCancelledError(jobID string, completedImages int, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorBatchCancelled,
		Message:   fmt.Sprintf("Batch cancelled after %d completed images", completedImages),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"completed_images": completedImages,
		},
		Cause: cause,
	}
}

func NewInvalidPayloadError(jobID string, reason string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorInvalidPayload,
		Message:   fmt.Sprintf("Invalid job payload: %s", reason),
		JobID:     jobID,
		Timestamp: time.Now(),
	}
}

// ToMap converts error to map for status reporting
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
