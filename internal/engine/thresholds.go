package engine

import "sort"

// Thresholds are the per-image merge/split cutoffs, expressed as gap ratios
// (vertical gap divided by the image's characteristic text-block height).
// Absolute pixel gaps vary wildly with screenshot resolution, so every
// threshold is derived from the image's own gap distribution.
type Thresholds struct {
	// SameBubble: at or below this ratio two fragments are certainly the
	// same bubble, regardless of alignment.
	SameBubble float64
	// LineBreak: at or below this ratio an aligned fragment is a wrapped
	// line of the same bubble.
	LineBreak float64
	// MessageGap: above this ratio the fragments are separate messages no
	// matter what other signals say (code mode excepted).
	MessageGap float64
}

// Clamp bounds keep degenerate distributions (all tiny gaps, or a handful of
// samples) from producing useless thresholds.
const (
	sameBubbleMin = 0.30
	sameBubbleMax = 0.80
	lineBreakMin  = 0.60
	lineBreakMax  = 1.20
	messageGapMin = 1.40
	messageGapMax = 2.40
)

// ComputeThresholds derives merge thresholds from the observed gap-ratio
// distribution of one image. Pure function; thresholds for an empty
// distribution are the clamp minimums.
func ComputeThresholds(gapRatios []float64) Thresholds {
	if len(gapRatios) == 0 {
		return Thresholds{
			SameBubble: sameBubbleMin,
			LineBreak:  lineBreakMin,
			MessageGap: messageGapMin,
		}
	}

	sorted := make([]float64, len(gapRatios))
	copy(sorted, gapRatios)
	sort.Float64s(sorted)

	t := Thresholds{
		SameBubble: clamp(quantile(sorted, 0.25)*1.2, sameBubbleMin, sameBubbleMax),
		LineBreak:  clamp(quantile(sorted, 0.50)*1.5, lineBreakMin, lineBreakMax),
		MessageGap: clamp(quantile(sorted, 0.75)*1.2, messageGapMin, messageGapMax),
	}

	// Keep the cutoffs strictly ordered
	if t.LineBreak < t.SameBubble {
		t.LineBreak = t.SameBubble
	}
	if t.MessageGap < t.LineBreak*1.2 {
		t.MessageGap = t.LineBreak * 1.2
	}

	return t
}

// quantile interpolates linearly within a sorted sample
func quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	i := int(pos)
	if i >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(i)
	return sorted[i]*(1-frac) + sorted[i+1]*frac
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
