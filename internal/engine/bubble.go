package engine

import (
	"strings"

	"github.com/chatlens/transcript-worker/internal/ocr"
)

// Bubble is one reconstructed logical chat message, possibly spanning several
// recognized lines. Bubbles are immutable; they are produced by finalizing a
// bubbleBuilder.
type Bubble struct {
	Text   string
	Side   Side
	Top    float64
	Bottom float64
	Left   float64
	Right  float64
	Blocks []ocr.TextFragment
	IsCode bool
}

// bubbleBuilder accumulates fragments for an in-progress bubble. The anchor
// edges are fixed at creation so alignment checks for later fragments do not
// drift as the bubble grows.
type bubbleBuilder struct {
	side  Side
	texts []string

	top    float64
	bottom float64
	left   float64
	right  float64

	anchorLeft  float64
	anchorRight float64
	anchorWidth float64

	codeHits int
	isCode   bool

	blocks []ocr.TextFragment
}

func newBubbleBuilder(first ocr.TextFragment, side Side) *bubbleBuilder {
	b := &bubbleBuilder{
		side:        side,
		texts:       []string{first.Text},
		top:         first.Y,
		bottom:      first.Bottom(),
		left:        first.X,
		right:       first.Right(),
		anchorLeft:  first.X,
		anchorRight: first.Right(),
		anchorWidth: first.Width,
		blocks:      []ocr.TextFragment{first},
	}
	b.noteCode(first.Text)
	return b
}

// add appends a fragment to the bubble, expanding its bounding box. The
// anchors stay untouched.
func (b *bubbleBuilder) add(frag ocr.TextFragment) {
	b.texts = append(b.texts, frag.Text)
	b.blocks = append(b.blocks, frag)

	if frag.Y < b.top {
		b.top = frag.Y
	}
	if frag.Bottom() > b.bottom {
		b.bottom = frag.Bottom()
	}
	if frag.X < b.left {
		b.left = frag.X
	}
	if frag.Right() > b.right {
		b.right = frag.Right()
	}

	b.noteCode(frag.Text)
}

// noteCode tracks code-likelihood. Two hits lock the bubble into code mode.
func (b *bubbleBuilder) noteCode(text string) {
	if looksLikeCode(text) {
		b.codeHits++
		if b.codeHits >= 2 {
			b.isCode = true
		}
	}
}

// inCodeMode reports whether the bubble has locked into code mode
func (b *bubbleBuilder) inCodeMode() bool {
	return b.isCode
}

// alignedWith checks the fragment against the anchor edge for the bubble's
// side. Left-side bubbles are left-justified against the avatar column,
// right-side bubbles are right-justified against the screen edge.
func (b *bubbleBuilder) alignedWith(frag ocr.TextFragment, tol float64) bool {
	if b.side == SideRight {
		return absDiff(frag.Right(), b.anchorRight) <= tol
	}
	return absDiff(frag.X, b.anchorLeft) <= tol
}

// widthSimilarity returns the ratio of the narrower width to the wider one,
// comparing the fragment against the anchor width.
func (b *bubbleBuilder) widthSimilarity(frag ocr.TextFragment) float64 {
	w1, w2 := b.anchorWidth, frag.Width
	if w1 <= 0 || w2 <= 0 {
		return 0
	}
	if w1 > w2 {
		w1, w2 = w2, w1
	}
	return w1 / w2
}

// horizontallyClose reports whether the fragment's horizontal span overlaps
// or nearly touches the bubble's current extent.
func (b *bubbleBuilder) horizontallyClose(frag ocr.TextFragment, tol float64) bool {
	return frag.X <= b.right+tol && frag.Right() >= b.left-tol
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

// lastBottom returns the bottom edge of the most recently added fragment,
// which is what vertical gaps are measured against.
func (b *bubbleBuilder) lastBottom() float64 {
	return b.blocks[len(b.blocks)-1].Bottom()
}

// finalize converts the builder into an immutable Bubble
func (b *bubbleBuilder) finalize() Bubble {
	return Bubble{
		Text:   strings.Join(b.texts, "\n"),
		Side:   b.side,
		Top:    b.top,
		Bottom: b.bottom,
		Left:   b.left,
		Right:  b.right,
		Blocks: b.blocks,
		IsCode: b.isCode,
	}
}
