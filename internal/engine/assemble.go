package engine

import (
	"strings"
	"unicode"
)

// assembleBatch folds per-image outcomes into the final batch result.
// Outcomes arrive in image order; messages inside each outcome are already
// sorted by vertical position.
func assembleBatch(outcomes []imageOutcome, progress Progress) *BatchResult {
	var messages []Message
	var failed []int
	var confSum float64
	var confCount int

	for i, out := range outcomes {
		messages = append(messages, out.messages...)
		if out.failed {
			failed = append(failed, i+1)
			continue
		}
		if out.confidence > 0 {
			confSum += out.confidence
			confCount++
		}
	}

	for i := range messages {
		messages[i].BlockIndex = i + 1
	}

	var texts []string
	for _, m := range messages {
		if !m.IsPlaceholder {
			texts = append(texts, m.Text)
		}
	}
	fullText := strings.Join(texts, "\n\n")

	confidence := 0.9
	if confCount > 0 {
		confidence = confSum / float64(confCount)
	}

	return &BatchResult{
		Text:       fullText,
		Confidence: confidence,
		Language:   guessLanguage(fullText),
		Metadata: BatchMetadata{
			StructuredMessages: messages,
			Participants:       participantsOf(messages),
			WordCount:          countWords(fullText),
			FailedImages:       failed,
			Progress:           progress,
		},
	}
}

// participantsOf returns the distinct speaker names in first-seen order
func participantsOf(messages []Message) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range messages {
		if m.IsPlaceholder || seen[m.SpeakerName] {
			continue
		}
		seen[m.SpeakerName] = true
		names = append(names, m.SpeakerName)
	}
	return names
}

// guessLanguage tags the transcript by script: any CJK codepoint means a
// Chinese conversation, pure Latin means English, anything else is mixed.
func guessLanguage(text string) string {
	hasLatin := false
	hasOther := false
	for _, r := range text {
		switch {
		case isCJK(r):
			return "zh"
		case unicode.IsLetter(r):
			if r <= unicode.MaxLatin1 || unicode.Is(unicode.Latin, r) {
				hasLatin = true
			} else {
				hasOther = true
			}
		}
	}
	if hasLatin && !hasOther {
		return "en"
	}
	if !hasLatin && !hasOther {
		return "en"
	}
	return "mixed"
}

// countWords counts CJK runes individually and Latin-script runs as single
// words, which is how the owning product bills transcript length.
func countWords(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		if isCJK(r) {
			count++
			inWord = false
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if !inWord {
				count++
				inWord = true
			}
			continue
		}
		inWord = false
	}
	return count
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
