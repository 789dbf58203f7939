/**
 * OCR Types - Shared data structures for OCR providers
 *
 * Common types used by both the remote Volcengine OCR client and the
 * Tesseract fallback. Fragments are immutable once received; the structuring
 * engine never mutates provider output.
 */

package ocr

// TextFragment is one recognized line of text with its bounding box in pixel
// space (top-left origin). ImageIndex is the 1-based position of the source
// image within the submitted batch.
type TextFragment struct {
	Text       string
	X          float64
	Y          float64
	Width      float64
	Height     float64
	Confidence float64
	ImageIndex int
}

// Right returns the x coordinate of the fragment's right edge
func (f TextFragment) Right() float64 { return f.X + f.Width }

// Bottom returns the y coordinate of the fragment's bottom edge
func (f TextFragment) Bottom() float64 { return f.Y + f.Height }

// CenterX returns the x coordinate of the fragment's center
func (f TextFragment) CenterX() float64 { return f.X + f.Width/2 }

// CenterY returns the y coordinate of the fragment's center
func (f TextFragment) CenterY() float64 { return f.Y + f.Height/2 }

// ImageBlock is a non-text region reported by the provider (sticker, embedded
// photo). The engine turns each one into an independent never-merged bubble.
type ImageBlock struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// ImageResult is the provider output for a single image.
type ImageResult struct {
	Fragments []TextFragment
	Blocks    []ImageBlock
	// Confidence is the provider's overall confidence for the image, 0 when
	// the provider reports none.
	Confidence float64
}
