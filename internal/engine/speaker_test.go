package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatlens/transcript-worker/internal/ocr"
)

const (
	testImageWidth  = 1000.0
	testImageHeight = 2000.0
)

func frag(text string, x, y, w, h float64) ocr.TextFragment {
	return ocr.TextFragment{Text: text, X: x, Y: y, Width: w, Height: h}
}

func TestClassifySpeakersEmpty(t *testing.T) {
	cls := ClassifySpeakers(nil, testImageWidth, testImageHeight)
	assert.Empty(t, cls.Left)
	assert.Empty(t, cls.Right)
	assert.False(t, cls.HasBothSides)
}

func TestClassifySpeakersSingleFragment(t *testing.T) {
	testCases := []struct {
		name string
		x, w float64
		side Side
	}{
		{"far left", 40, 260, SideLeft},     // center 0.17
		{"far right", 700, 260, SideRight},  // center 0.83
		{"center right", 450, 300, SideRight}, // center 0.60
		{"center left", 250, 300, SideLeft},   // center 0.40
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cls := ClassifySpeakers(
				[]ocr.TextFragment{frag("hi", tc.x, 100, tc.w, 30)},
				testImageWidth, testImageHeight)
			assert.False(t, cls.HasBothSides)
			if tc.side == SideLeft {
				assert.Len(t, cls.Left, 1)
				assert.Empty(t, cls.Right)
			} else {
				assert.Len(t, cls.Right, 1)
				assert.Empty(t, cls.Left)
			}
		})
	}
}

func TestClassifySpeakersSingleSpeakerLeftAligned(t *testing.T) {
	// Tight left-edge alignment with varying widths: one speaker
	fragments := []ocr.TextFragment{
		frag("早上好", 40, 100, 260, 30),
		frag("今天有空吗", 40, 160, 200, 30),
		frag("想约你吃饭", 40, 220, 240, 30),
	}

	cls := ClassifySpeakers(fragments, testImageWidth, testImageHeight)
	assert.False(t, cls.HasBothSides)
	assert.Len(t, cls.Left, 3)
	assert.Empty(t, cls.Right)
}

func TestClassifySpeakersSingleSpeakerNarrowRegion(t *testing.T) {
	// Neither edge is tightly aligned, but all text occupies less than half
	// of the frame, on the right
	fragments := []ocr.TextFragment{
		frag("ok", 500, 100, 450, 40),
		frag("see you", 780, 300, 100, 40),
		frag("tonight then", 620, 500, 80, 40),
	}

	cls := ClassifySpeakers(fragments, testImageWidth, testImageHeight)
	assert.False(t, cls.HasBothSides)
	assert.Len(t, cls.Right, 3)
	assert.Empty(t, cls.Left)
}

func TestClassifySpeakersTwoSides(t *testing.T) {
	fragments := []ocr.TextFragment{
		frag("你到哪了", 40, 100, 260, 30),
		frag("快到了", 700, 200, 260, 30),
		frag("地铁里", 40, 300, 200, 30),
		frag("好,我先点菜", 760, 500, 200, 30),
		frag("要不要等你", 40, 700, 240, 30),
		frag("不用等", 700, 900, 260, 30),
	}

	cls := ClassifySpeakers(fragments, testImageWidth, testImageHeight)
	require.True(t, cls.HasBothSides)
	assert.Len(t, cls.Left, 3)
	assert.Len(t, cls.Right, 3)

	for _, f := range cls.Left {
		assert.Less(t, f.CenterX(), testImageWidth/2)
	}
	for _, f := range cls.Right {
		assert.Greater(t, f.CenterX(), testImageWidth/2)
	}
}

func TestClassifySpeakersLongMessageStaysLeft(t *testing.T) {
	// A flush-left bubble wide enough to cross the midline must not be
	// pushed to the right side by its centroid
	long := frag("这段话很长很长一直延伸到了屏幕中线的另一边去了", 40, 200, 650, 30)
	fragments := []ocr.TextFragment{
		frag("在吗", 40, 100, 260, 30),
		long,
		frag("在的", 700, 300, 260, 30),
		frag("怎么了", 760, 500, 200, 30),
	}

	cls := ClassifySpeakers(fragments, testImageWidth, testImageHeight)
	require.True(t, cls.HasBothSides)

	foundLong := false
	for _, f := range cls.Left {
		if f.Text == long.Text {
			foundLong = true
		}
	}
	assert.True(t, foundLong, "wide left-anchored bubble should stay on the left")
}

func TestClassifySpeakersCenteredFragmentsCollapse(t *testing.T) {
	// Fragments all straddling the center never form a bilateral split
	fragments := []ocr.TextFragment{
		frag("line one", 200, 100, 600, 30),
		frag("line two", 250, 160, 500, 30),
		frag("line three", 180, 220, 620, 30),
		frag("line four", 260, 280, 480, 30),
	}

	cls := ClassifySpeakers(fragments, testImageWidth, testImageHeight)
	assert.False(t, cls.HasBothSides)
	assert.Equal(t, 4, len(cls.Left)+len(cls.Right))
}

func TestClassifySpeakersOffsetRegionNoDimensions(t *testing.T) {
	// Unknown image size with the text region far from x=0: the fallback
	// must normalize against the extent's own origin, not absolute pixels
	fragments := []ocr.TextFragment{
		frag("早上好", 2040, 100, 260, 30),
		frag("今天有空吗", 2040, 160, 200, 30),
		frag("想约你吃饭", 2040, 220, 240, 30),
	}

	cls := ClassifySpeakers(fragments, 0, 0)
	assert.False(t, cls.HasBothSides)
	assert.Len(t, cls.Left, 3, "left-aligned column in an offset region stays on the left")
	assert.Empty(t, cls.Right)

	// A clear two-band layout at the same offset still splits
	twoBand := []ocr.TextFragment{
		frag("你到哪了", 2040, 100, 260, 30),
		frag("快到了", 2700, 200, 260, 30),
		frag("地铁里", 2040, 300, 200, 30),
		frag("好,我先点菜", 2760, 500, 200, 30),
		frag("要不要等你", 2040, 700, 240, 30),
		frag("不用等", 2700, 900, 260, 30),
	}
	cls = ClassifySpeakers(twoBand, 0, 0)
	require.True(t, cls.HasBothSides)
	assert.Len(t, cls.Left, 3)
	assert.Len(t, cls.Right, 3)
}

func TestClassifySpeakersSingleFragmentNoDimensions(t *testing.T) {
	// One fragment with no size information carries no side signal; the
	// classification is deterministic rather than driven by absolute pixels
	cls := ClassifySpeakers([]ocr.TextFragment{frag("hi", 40, 100, 260, 30)}, 0, 0)
	assert.False(t, cls.HasBothSides)
	assert.Len(t, cls.Right, 1)
}

func TestClassifySpeakersNoImageDimensions(t *testing.T) {
	// Unknown image size falls back to the fragment extent; a clear
	// two-band layout still splits
	fragments := []ocr.TextFragment{
		frag("hello", 40, 100, 260, 30),
		frag("hey", 700, 200, 260, 30),
		frag("lunch?", 40, 300, 200, 30),
		frag("sure", 760, 500, 200, 30),
		frag("noon", 40, 700, 240, 30),
		frag("works", 700, 900, 260, 30),
	}

	cls := ClassifySpeakers(fragments, 0, 0)
	assert.True(t, cls.HasBothSides)
	assert.NotEmpty(t, cls.Left)
	assert.NotEmpty(t, cls.Right)
}
