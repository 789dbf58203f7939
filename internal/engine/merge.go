package engine

import (
	"sort"
	"strings"
	"unicode"

	"github.com/chatlens/transcript-worker/internal/ocr"
)

// MergeBubbles groups one side's vertically-sorted fragments into chat
// bubbles. Fragments must already be sorted by (Y, X) and belong to a single
// speaker side. singleSpeaker relaxes the alignment requirement because a
// lone speaker's bubbles only compete with timestamps and system chrome,
// not with an interleaved counterpart.
func MergeBubbles(fragments []ocr.TextFragment, side Side, singleSpeaker bool) []Bubble {
	if len(fragments) == 0 {
		return nil
	}

	charHeight := medianHeight(fragments)
	thresholds := ComputeThresholds(gapRatios(fragments, charHeight))
	alignTol := 0.6 * charHeight
	if alignTol < 8 {
		alignTol = 8
	}

	var bubbles []Bubble
	builder := newBubbleBuilder(fragments[0], side)

	for _, frag := range fragments[1:] {
		gap := frag.Y - builder.lastBottom()
		if gap < 0 {
			gap = 0
		}
		ratio := gap / charHeight

		if shouldMerge(builder, frag, ratio, thresholds, alignTol, singleSpeaker) {
			builder.add(frag)
		} else {
			bubbles = append(bubbles, builder.finalize())
			builder = newBubbleBuilder(frag, side)
		}
	}
	bubbles = append(bubbles, builder.finalize())

	return bubbles
}

// shouldMerge decides whether frag continues the bubble under construction.
// The hard rejection is evaluated first: once the vertical gap exceeds the
// message threshold nothing short of code mode can rescue the merge.
func shouldMerge(b *bubbleBuilder, frag ocr.TextFragment, ratio float64, t Thresholds, alignTol float64, singleSpeaker bool) bool {
	aligned := b.alignedWith(frag, alignTol)
	fragIsCode := looksLikeCode(frag.Text)
	codeMode := b.inCodeMode() || (b.codeHits == 1 && fragIsCode)

	if ratio > t.MessageGap && !codeMode {
		return false
	}

	if ratio <= t.SameBubble {
		return true
	}
	if ratio <= t.LineBreak && aligned {
		return true
	}
	if singleSpeaker && ratio <= t.LineBreak*1.25 && (aligned || b.widthSimilarity(frag) >= 0.6) {
		return true
	}
	// Emoji and sticker lines land with odd baselines; a horizontally close
	// pictographic fragment still belongs to the bubble above it.
	if isEmojiLike(frag.Text) && ratio <= t.MessageGap*0.85 && b.horizontallyClose(frag, alignTol*2) {
		return true
	}
	if codeMode && aligned {
		return true
	}

	return false
}

// gapRatios collects the vertical gap between each consecutive fragment
// pair, normalized by the characteristic line height.
func gapRatios(fragments []ocr.TextFragment, charHeight float64) []float64 {
	if len(fragments) < 2 || charHeight <= 0 {
		return nil
	}
	ratios := make([]float64, 0, len(fragments)-1)
	for i := 1; i < len(fragments); i++ {
		gap := fragments[i].Y - fragments[i-1].Bottom()
		if gap < 0 {
			gap = 0
		}
		ratios = append(ratios, gap/charHeight)
	}
	return ratios
}

func medianHeight(fragments []ocr.TextFragment) float64 {
	heights := make([]float64, 0, len(fragments))
	for _, f := range fragments {
		if f.Height > 0 {
			heights = append(heights, f.Height)
		}
	}
	if len(heights) == 0 {
		return 1
	}
	sort.Float64s(heights)
	return heights[len(heights)/2]
}

// codeKeywords are cheap markers of program text inside chat messages.
var codeKeywords = []string{
	"func ", "def ", "var ", "const ", "return ", "import ", "class ",
	"if (", "for (", "while (", "=>", "});", "!=", "==",
}

// looksLikeCode reports whether a fragment reads like program text rather
// than prose. Chat apps render pasted code with its original indentation,
// so indentation and symbol density carry most of the signal.
func looksLikeCode(text string) bool {
	if text == "" {
		return false
	}
	if strings.HasPrefix(text, "```") {
		return true
	}
	if strings.HasPrefix(text, "\t") || strings.HasPrefix(text, "  ") {
		return true
	}

	var symbols, total int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		switch r {
		case '{', '}', '(', ')', '[', ']', ';', '=', '<', '>', '/', '\\', '|', '&', '*', '#':
			symbols++
		}
	}
	if total > 0 && float64(symbols)/float64(total) > 0.15 {
		return true
	}

	lower := strings.ToLower(text)
	for _, kw := range codeKeywords {
		if strings.Contains(lower, kw) && strings.ContainsAny(text, "{}();=") {
			return true
		}
	}
	return false
}

// isEmojiLike reports whether the fragment is purely pictographic: emoji,
// symbols, or the bracketed sticker labels messaging apps emit, e.g. [捂脸].
func isEmojiLike(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") && len([]rune(trimmed)) <= 10 {
		return true
	}
	for _, r := range trimmed {
		if unicode.IsSpace(r) {
			continue
		}
		if !unicode.Is(unicode.So, r) && !unicode.Is(unicode.Sk, r) && r < 0x1F000 {
			return false
		}
	}
	return true
}
