/**
 * Speaker Classifier - Splits an image's fragments into conversation sides
 *
 * Chat apps place one party's bubbles flush to one edge of the screen. A
 * fixed midline split mis-handles single-speaker screenshots and unusual
 * aspect ratios, so classification runs in priority order:
 *
 *   1. aspect-aware threshold tuning
 *   2. single-speaker fast path on edge-alignment statistics
 *   3. 2-means clustering fallback
 *   4. long-message correction pass
 *   5. post-hoc single-side re-validation
 *
 * Earlier stages short-circuit later ones.
 */

package engine

import (
	"math"

	"github.com/chatlens/transcript-worker/internal/ocr"
)

// Classification is the result of splitting one image's fragments
type Classification struct {
	Left         []ocr.TextFragment
	Right        []ocr.TextFragment
	HasBothSides bool
}

// classifierTuning holds the aspect-dependent thresholds
type classifierTuning struct {
	alignStd    float64 // max stddev of normalized edges for "tightly aligned"
	edgeSpread  float64 // max spread of aligned edges before two speakers are implied
	centerSplit float64 // min distance between cluster center means for a genuine split
	leftCut     float64 // left-bias cutoff for the correction pass
	rightCut    float64 // right-bias cutoff for the correction pass
}

func tuningForAspect(aspect float64) classifierTuning {
	switch {
	case aspect > 1.5: // wide capture, live text region may not span the frame
		return classifierTuning{alignStd: 0.12, edgeSpread: 0.40, centerSplit: 0.12, leftCut: 0.35, rightCut: 0.65}
	case aspect < 0.8: // tall capture
		return classifierTuning{alignStd: 0.08, edgeSpread: 0.32, centerSplit: 0.18, leftCut: 0.40, rightCut: 0.60}
	default:
		return classifierTuning{alignStd: 0.10, edgeSpread: 0.35, centerSplit: 0.15, leftCut: 0.40, rightCut: 0.60}
	}
}

// ClassifySpeakers partitions fragments into left/right conversation sides.
// imageWidth/imageHeight are the pixel dimensions of the source image; when
// unknown (<= 0) the fragments' own bounding extent is used instead.
func ClassifySpeakers(fragments []ocr.TextFragment, imageWidth, imageHeight float64) Classification {
	if len(fragments) == 0 {
		return Classification{}
	}

	minX, maxX, minY, maxY := extentOf(fragments)
	// With a known image size, fragment coordinates are screen coordinates.
	// The extent fallback must translate to the extent's own origin or an
	// offset text region would normalize past 1.
	originX := 0.0
	if imageWidth <= 0 {
		imageWidth = maxX - minX
		originX = minX
	}
	if imageHeight <= 0 {
		imageHeight = maxY - minY
	}
	if imageWidth <= 0 {
		// All fragments share one x position; a single column of text
		return singleSide(fragments, SideRight)
	}

	aspect := 1.0
	if imageHeight > 0 {
		aspect = imageWidth / imageHeight
	}
	tuning := tuningForAspect(aspect)

	// Edge case: one fragment, direct position check
	if len(fragments) == 1 {
		cx := (fragments[0].CenterX() - originX) / imageWidth
		switch {
		case cx < 0.25:
			return singleSide(fragments, SideLeft)
		case cx > 0.75:
			return singleSide(fragments, SideRight)
		case cx >= 0.5:
			return singleSide(fragments, SideRight)
		default:
			return singleSide(fragments, SideLeft)
		}
	}

	lefts := make([]float64, len(fragments))
	rights := make([]float64, len(fragments))
	centers := make([]float64, len(fragments))
	for i, f := range fragments {
		lefts[i] = (f.X - originX) / imageWidth
		rights[i] = (f.Right() - originX) / imageWidth
		centers[i] = (f.CenterX() - originX) / imageWidth
	}

	// Stage 2: single-speaker fast path
	if side, ok := detectSingleSpeaker(lefts, rights, centers, minX, maxX, imageWidth, tuning); ok {
		return singleSide(fragments, side)
	}

	// Stage 3: 2-means fallback over (distance-from-right, center position)
	points := make([]point2, len(fragments))
	for i := range fragments {
		points[i] = point2{a: 1 - rights[i], b: centers[i]}
	}
	assignments := kmeans2(points)

	// The cluster with the smaller mean center position is the left side
	mean0, n0 := clusterMean(centers, assignments, 0)
	mean1, n1 := clusterMean(centers, assignments, 1)
	leftCluster := 0
	if n0 == 0 || (n1 > 0 && mean1 < mean0) {
		leftCluster = 1
	}

	sides := make([]Side, len(fragments))
	for i, a := range assignments {
		if a == leftCluster {
			sides[i] = SideLeft
		} else {
			sides[i] = SideRight
		}
	}

	// Stage 4: long-message correction. A bubble can be flush left yet reach
	// past the midline; the centroid split puts it on the wrong side.
	for i := range fragments {
		if lefts[i] < tuning.leftCut && rights[i] > 0.5 {
			sides[i] = SideLeft
		} else if rights[i] > tuning.rightCut && lefts[i] < 0.5 {
			sides[i] = SideRight
		}
	}

	// Stage 5: re-validate that the split is genuinely bilateral
	if side, collapse := revalidateSplit(fragments, sides, centers, originX, imageWidth, tuning); collapse {
		return singleSide(fragments, side)
	}

	result := Classification{HasBothSides: true}
	for i, f := range fragments {
		if sides[i] == SideLeft {
			result.Left = append(result.Left, f)
		} else {
			result.Right = append(result.Right, f)
		}
	}

	if len(result.Left) == 0 {
		return singleSide(fragments, SideRight)
	}
	if len(result.Right) == 0 {
		return singleSide(fragments, SideLeft)
	}

	return result
}

// detectSingleSpeaker fires when one edge is tightly aligned and sits
// consistently on one side, or when the occupied text region is narrower
// than half the image.
func detectSingleSpeaker(lefts, rights, centers []float64, minX, maxX, imageWidth float64, tuning classifierTuning) (Side, bool) {
	stdLeft := stddev(lefts)
	stdRight := stddev(rights)

	if stdLeft < tuning.alignStd && spread(lefts) < tuning.edgeSpread {
		if mean(lefts) < 0.5 {
			return SideLeft, true
		}
		return SideRight, true
	}

	if stdRight < tuning.alignStd && spread(rights) < tuning.edgeSpread {
		if mean(rights) > 0.5 {
			return SideRight, true
		}
		return SideLeft, true
	}

	// Narrow occupied region: all text lives in less than half the frame
	if (maxX-minX)/imageWidth < 0.5 {
		if mean(centers) >= 0.5 {
			return SideRight, true
		}
		return SideLeft, true
	}

	return SideLeft, false
}

// revalidateSplit collapses a spurious two-way split back to a single side
// when the proposed clusters do not show genuine bilateral separation.
func revalidateSplit(fragments []ocr.TextFragment, sides []Side, centers []float64, originX, imageWidth float64, tuning classifierTuning) (Side, bool) {
	var leftSum, rightSum float64
	var leftN, rightN int
	leftMaxEdge, rightMinEdge := 0.0, 1.0

	for i, f := range fragments {
		if sides[i] == SideLeft {
			leftSum += centers[i]
			leftN++
			if edge := (f.Right() - originX) / imageWidth; edge > leftMaxEdge {
				leftMaxEdge = edge
			}
		} else {
			rightSum += centers[i]
			rightN++
			if edge := (f.X - originX) / imageWidth; edge < rightMinEdge {
				rightMinEdge = edge
			}
		}
	}

	if leftN == 0 {
		return SideRight, true
	}
	if rightN == 0 {
		return SideLeft, true
	}

	centerDistance := rightSum/float64(rightN) - leftSum/float64(leftN)
	overlap := leftMaxEdge - rightMinEdge // >0 when the side boxes overlap

	// Long bubbles legitimately reach past the midline, so mild box overlap
	// is tolerated; heavy interleaving is not.
	if centerDistance < tuning.centerSplit || overlap > 0.6 {
		// No real separation; fall back to the dominant side's placement
		all := (leftSum + rightSum) / float64(leftN+rightN)
		if all >= 0.5 {
			return SideRight, true
		}
		return SideLeft, true
	}

	return SideLeft, false
}

func singleSide(fragments []ocr.TextFragment, side Side) Classification {
	if side == SideRight {
		return Classification{Right: fragments}
	}
	return Classification{Left: fragments}
}

func extentOf(fragments []ocr.TextFragment) (minX, maxX, minY, maxY float64) {
	minX, maxX = fragments[0].X, fragments[0].Right()
	minY, maxY = fragments[0].Y, fragments[0].Bottom()
	for _, f := range fragments[1:] {
		minX = math.Min(minX, f.X)
		maxX = math.Max(maxX, f.Right())
		minY = math.Min(minY, f.Y)
		maxY = math.Max(maxY, f.Bottom())
	}
	return
}

func clusterMean(values []float64, assignments []int, cluster int) (float64, int) {
	sum, n := 0.0, 0
	for i, v := range values {
		if assignments[i] == cluster {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

func spread(values []float64) float64 {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return hi - lo
}
