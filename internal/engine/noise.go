/**
 * Noise Filter - Separates message text from system UI chrome
 *
 * Chat screenshots carry timestamps, date banners and weekday labels that are
 * not part of the conversation. A fragment counts as noise only when both its
 * content matches a time/date pattern AND its geometry looks like a system
 * banner (short, centered, or hugging the top/bottom of the image). A time
 * reference inside a normal message bubble is kept.
 */

package engine

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// PositionContext carries a fragment's center position plus the bounding
// extent of all fragments in the image.
type PositionContext struct {
	CenterX float64
	CenterY float64
	MinX    float64
	MaxX    float64
	MinY    float64
	MaxY    float64
}

const (
	// noiseMaxRunes is the longest text that can still be a system banner
	noiseMaxRunes = 20
	// centerBandRatio: a banner sits within this share of the horizontal
	// extent around the center
	centerBandRatio = 0.40
	// edgeBandRatio: or within this share of the vertical extent from the
	// top or bottom
	edgeBandRatio = 0.15
)

var timestampPatterns = []*regexp.Regexp{
	// Clock times, with optional seconds or am/pm markers
	regexp.MustCompile(`^\d{1,2}:\d{2}(:\d{2})?$`),
	regexp.MustCompile(`(?i)^\d{1,2}:\d{2}\s*(am|pm)$`),
	regexp.MustCompile(`^(上午|下午|凌晨|中午|晚上)\s*\d{1,2}:\d{2}(:\d{2})?$`),
	// Calendar dates
	regexp.MustCompile(`^\d{4}[-/.年]\d{1,2}[-/.月]\d{1,2}日?$`),
	regexp.MustCompile(`^\d{1,2}月\d{1,2}日$`),
	// Weekday banners
	regexp.MustCompile(`^(星期|周|週)[一二三四五六日天]$`),
	regexp.MustCompile(`(?i)^(monday|tuesday|wednesday|thursday|friday|saturday|sunday)$`),
	// Relative-day banners, optionally followed by a clock time
	regexp.MustCompile(`(?i)^(今天|昨天|前天|today|yesterday)(\s*\d{1,2}:\d{2}(:\d{2})?)?$`),
}

// IsNoise classifies a fragment as UI noise. Empty text is always noise;
// timestamp-shaped text is noise only when positioned like system chrome.
func IsNoise(text string, pos PositionContext) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}

	if !matchesTimestamp(trimmed) {
		return false
	}

	if utf8.RuneCountInString(trimmed) > noiseMaxRunes {
		return false
	}

	return positionedLikeChrome(pos)
}

func matchesTimestamp(text string) bool {
	for _, pattern := range timestampPatterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// positionedLikeChrome checks the banner geometry: horizontally near the
// image center, or vertically in the top / bottom edge band.
func positionedLikeChrome(pos PositionContext) bool {
	width := pos.MaxX - pos.MinX
	height := pos.MaxY - pos.MinY

	if width > 0 {
		mid := pos.MinX + width/2
		if abs(pos.CenterX-mid) <= width*centerBandRatio/2 {
			return true
		}
	} else {
		// Degenerate extent, everything is "centered"
		return true
	}

	if height > 0 {
		if pos.CenterY <= pos.MinY+height*edgeBandRatio {
			return true
		}
		if pos.CenterY >= pos.MaxY-height*edgeBandRatio {
			return true
		}
	}

	return false
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
