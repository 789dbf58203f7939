/**
 * Engine Types - Output structures of the screenshot structuring engine
 *
 * A batch of chat screenshots goes in, an ordered speaker-attributed
 * transcript comes out. These types mirror the JSON contract the owning
 * backend serves to its clients.
 */

package engine

// Side identifies which conversation participant a message belongs to.
// Left conventionally denotes the counterpart, right the device owner.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Speaker display names used by the conversation product this worker serves.
const (
	SpeakerNameOwner       = "我"
	SpeakerNameCounterpart = "对方"
)

// SpeakerName returns the display name for a side
func SpeakerName(side Side) string {
	if side == SideRight {
		return SpeakerNameOwner
	}
	return SpeakerNameCounterpart
}

// Message is one reconstructed chat message
type Message struct {
	SpeakerName   string `json:"speaker_name"`
	SpeakerSide   Side   `json:"speaker_side"`
	Text          string `json:"text"`
	ImageIndex    int    `json:"image_index"`
	BlockIndex    int    `json:"block_index"`
	IsPlaceholder bool   `json:"is_placeholder,omitempty"`

	// sortY is the vertical position of the message's first fragment,
	// used for ordering within an image. Not serialized.
	sortY float64
}

// ProgressEvent reports per-image pipeline progress for observability
type ProgressEvent struct {
	Stage      string `json:"stage"` // "start", "retry", "done", "fail"
	ImageIndex int    `json:"image_index"`
	Attempt    int    `json:"attempt,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// Progress aggregates the events emitted while a batch was processed
type Progress struct {
	TotalImages int             `json:"total_images"`
	Events      []ProgressEvent `json:"events"`
}

// BatchMetadata carries the structured view of the transcript
type BatchMetadata struct {
	StructuredMessages []Message `json:"structured_messages"`
	Participants       []string  `json:"participants"`
	WordCount          int       `json:"word_count"`
	FailedImages       []int     `json:"failed_images"`
	Progress           Progress  `json:"progress"`
}

// BatchResult is the externally visible result of one batch call
type BatchResult struct {
	Text       string        `json:"text"`
	Confidence float64       `json:"confidence"`
	Language   string        `json:"language"`
	Metadata   BatchMetadata `json:"metadata"`
}
