/**
 * Tesseract OCR Provider - Offline fallback
 *
 * Line-level recognition using a local Tesseract installation. Used when the
 * remote provider is not configured, and in development environments.
 */

package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractProvider performs local OCR via Tesseract
type TesseractProvider struct {
	languages []string
}

// NewTesseractProvider creates a provider using the given language codes
// ("eng+chi_sim" style string, as passed to tesseract itself).
func NewTesseractProvider(languages string) *TesseractProvider {
	langs := strings.Split(languages, "+")
	if len(langs) == 0 || (len(langs) == 1 && langs[0] == "") {
		langs = []string{"eng"}
	}
	return &TesseractProvider{languages: langs}
}

// Name identifies the provider in logs and progress events
func (t *TesseractProvider) Name() string { return "tesseract" }

// Recognize extracts line-level fragments from one image
func (t *TesseractProvider) Recognize(ctx context.Context, image []byte) (*ImageResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return nil, fmt.Errorf("failed to set tesseract languages: %w", err)
	}

	if err := client.SetImageFromBytes(image); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("tesseract OCR failed: %w", err)
	}

	fragments := make([]TextFragment, 0, len(boxes))
	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		if text == "" {
			continue
		}

		rect := box.Box
		fragments = append(fragments, TextFragment{
			Text:       text,
			X:          float64(rect.Min.X),
			Y:          float64(rect.Min.Y),
			Width:      float64(rect.Dx()),
			Height:     float64(rect.Dy()),
			Confidence: box.Confidence / 100.0, // tesseract reports 0-100
		})
	}

	return &ImageResult{
		Fragments:  fragments,
		Confidence: meanConfidence(fragments),
	}, nil
}
