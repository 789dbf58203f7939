package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuessLanguage(t *testing.T) {
	testCases := []struct {
		text string
		lang string
	}{
		{"你好,明天见", "zh"},
		{"hello there", "en"},
		{"你好 hello", "zh"}, // CJK wins over mixed scripts
		{"こんにちは", "zh"},
		{"Привет", "mixed"},
		{"", "en"},
		{"123 456", "en"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.lang, guessLanguage(tc.text), "text: %q", tc.text)
	}
}

func TestCountWords(t *testing.T) {
	testCases := []struct {
		text  string
		count int
	}{
		{"", 0},
		{"你好", 2},
		{"hello world", 2},
		{"你好 world 123", 4},
		{"明天14:30见", 5}, // 3 CJK runes plus the two digit runs
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.count, countWords(tc.text), "text: %q", tc.text)
	}
}

func TestAssembleBatchOrderingAndIndexes(t *testing.T) {
	outcomes := []imageOutcome{
		{
			messages: []Message{
				{SpeakerName: SpeakerNameCounterpart, SpeakerSide: SideLeft, Text: "在吗", ImageIndex: 1},
				{SpeakerName: SpeakerNameOwner, SpeakerSide: SideRight, Text: "在的", ImageIndex: 1},
			},
			confidence: 0.9,
		},
		{
			messages: []Message{
				{SpeakerName: SpeakerNameCounterpart, SpeakerSide: SideLeft, Text: "晚点聊", ImageIndex: 2},
			},
			confidence: 0.8,
		},
	}

	result := assembleBatch(outcomes, Progress{TotalImages: 2})

	messages := result.Metadata.StructuredMessages
	require.Len(t, messages, 3)
	for i, m := range messages {
		assert.Equal(t, i+1, m.BlockIndex)
	}
	assert.Equal(t, "在吗\n\n在的\n\n晚点聊", result.Text)
	assert.Equal(t, []string{SpeakerNameCounterpart, SpeakerNameOwner}, result.Metadata.Participants)
	assert.InDelta(t, 0.85, result.Confidence, 1e-9)
	assert.Equal(t, "zh", result.Language)
	assert.Empty(t, result.Metadata.FailedImages)
	assert.Equal(t, 2, result.Metadata.Progress.TotalImages)
}

func TestAssembleBatchFailedImages(t *testing.T) {
	outcomes := []imageOutcome{
		{
			messages: []Message{
				{SpeakerName: SpeakerNameOwner, SpeakerSide: SideRight, Text: "hello", ImageIndex: 1},
			},
			confidence: 0.9,
		},
		{
			messages: []Message{placeholderMessage(2)},
			failed:   true,
		},
	}

	result := assembleBatch(outcomes, Progress{TotalImages: 2})

	assert.Equal(t, []int{2}, result.Metadata.FailedImages)
	assert.Equal(t, "hello", result.Text, "placeholders stay out of the transcript text")
	assert.Equal(t, []string{SpeakerNameOwner}, result.Metadata.Participants,
		"placeholders contribute no participants")

	// Placeholders still occupy a block index for stable ordering
	require.Len(t, result.Metadata.StructuredMessages, 2)
	assert.Equal(t, 2, result.Metadata.StructuredMessages[1].BlockIndex)
	assert.True(t, result.Metadata.StructuredMessages[1].IsPlaceholder)
}

func TestAssembleBatchDefaultConfidence(t *testing.T) {
	outcomes := []imageOutcome{
		{messages: []Message{
			{SpeakerName: SpeakerNameOwner, SpeakerSide: SideRight, Text: "hi", ImageIndex: 1},
		}},
	}
	result := assembleBatch(outcomes, Progress{TotalImages: 1})
	assert.InDelta(t, 0.9, result.Confidence, 1e-9)
}
