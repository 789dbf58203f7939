package ocr

import "context"

// Provider recognizes text lines in a single image. Implementations perform
// one attempt per call; retry policy belongs to the batch coordinator.
type Provider interface {
	// Recognize returns the recognized fragments for one image. The caller
	// sets ImageIndex on the returned fragments.
	Recognize(ctx context.Context, image []byte) (*ImageResult, error)

	// Name identifies the provider in logs and progress events.
	Name() string
}
