/**
 * Batch Coordinator - Drives the per-image OCR and structuring pipeline
 *
 * Images are processed strictly in order so message numbering is stable;
 * retries with backoff absorb transient provider failures, and a failed
 * image degrades to a placeholder message instead of sinking the batch.
 */

package engine

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math/rand"
	"sort"
	"time"

	"github.com/chatlens/transcript-worker/internal/errors"
	"github.com/chatlens/transcript-worker/internal/logging"
	"github.com/chatlens/transcript-worker/internal/ocr"
)

const (
	defaultMaxAttempts = 3
	// retryBackoffStep grows linearly with the attempt number
	retryBackoffStep = 600 * time.Millisecond
	retryJitterMax   = 200 * time.Millisecond
)

// PlaceholderText replaces the content of images that failed recognition
const PlaceholderText = "[图片识别失败]"

// ProgressFunc receives pipeline events as they happen. Callers use it to
// publish live progress; it must not block for long.
type ProgressFunc func(event ProgressEvent)

// Coordinator runs batches of screenshots through a Provider and the
// structuring engine.
type Coordinator struct {
	provider    ocr.Provider
	logger      *logging.Logger
	maxAttempts int
}

func NewCoordinator(provider ocr.Provider, logger *logging.Logger, maxAttempts int) *Coordinator {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Coordinator{
		provider:    provider,
		logger:      logger,
		maxAttempts: maxAttempts,
	}
}

// imageOutcome holds one image's structured messages, or records its failure
type imageOutcome struct {
	messages   []Message
	confidence float64
	failed     bool
}

// Process runs every image through recognition and structuring, sequentially
// and in input order. A cancelled context aborts the batch; any other
// per-image failure is absorbed as a placeholder message.
func (c *Coordinator) Process(ctx context.Context, jobID string, images [][]byte, onProgress ProgressFunc) (*BatchResult, error) {
	if len(images) == 0 {
		return nil, errors.NewInvalidPayloadError(jobID, "batch contains no images")
	}

	log := c.logger.WithJob(jobID)
	log.Info("Starting batch", "images", len(images), "provider", c.provider.Name())

	progress := &Progress{TotalImages: len(images)}
	emit := func(event ProgressEvent) {
		progress.Events = append(progress.Events, event)
		if onProgress != nil {
			onProgress(event)
		}
	}

	outcomes := make([]imageOutcome, 0, len(images))
	for idx, img := range images {
		imageNo := idx + 1 // image_index is 1-based in the output contract

		if err := ctx.Err(); err != nil {
			log.Warn("Batch cancelled", "completed", idx)
			return nil, errors.NewBatchCancelledError(jobID, idx, err)
		}

		emit(ProgressEvent{Stage: "start", ImageIndex: imageNo})

		result, err := c.recognizeWithRetry(ctx, log, imageNo, img, emit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.NewBatchCancelledError(jobID, idx, ctx.Err())
			}
			failure := errors.NewOCRFailedError(jobID, imageNo, c.maxAttempts, err)
			log.Error("Image failed after retries", "image", imageNo, "error", failure)
			emit(ProgressEvent{Stage: "fail", ImageIndex: imageNo, Detail: failure.Message})
			outcomes = append(outcomes, imageOutcome{
				messages: []Message{placeholderMessage(imageNo)},
				failed:   true,
			})
			continue
		}

		width, height := decodeDimensions(img)
		messages := c.structureImage(result, imageNo, width, height)
		if len(messages) == 0 {
			// Recognition succeeded but every fragment was filtered as
			// chrome. The image still occupies its slot in the batch.
			log.Warn("Image produced no usable fragments", "image", imageNo)
			emit(ProgressEvent{Stage: "fail", ImageIndex: imageNo, Detail: "no usable fragments"})
			outcomes = append(outcomes, imageOutcome{
				messages: []Message{placeholderMessage(imageNo)},
				failed:   true,
			})
			continue
		}
		log.Debug("Image structured", "image", imageNo, "messages", len(messages))
		emit(ProgressEvent{Stage: "done", ImageIndex: imageNo, Detail: fmt.Sprintf("%d messages", len(messages))})

		outcomes = append(outcomes, imageOutcome{
			messages:   messages,
			confidence: result.Confidence,
		})
	}

	batch := assembleBatch(outcomes, *progress)
	log.Info("Batch complete",
		"messages", len(batch.Metadata.StructuredMessages),
		"failed_images", len(batch.Metadata.FailedImages),
		"language", batch.Language)
	return batch, nil
}

// recognizeWithRetry performs up to maxAttempts recognition calls. An empty
// result counts as a transient failure; permanent provider errors and
// context cancellation cut the loop short.
func (c *Coordinator) recognizeWithRetry(ctx context.Context, log *logging.Logger, imageIndex int, img []byte, emit ProgressFunc) (*ocr.ImageResult, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := c.provider.Recognize(ctx, img)
		if err == nil && len(result.Fragments) == 0 && len(result.Blocks) == 0 {
			err = errors.NewOCREmptyError(c.provider.Name(), imageIndex)
		}
		if err == nil {
			return result, nil
		}
		if ocr.IsPermanent(err) {
			return nil, err
		}
		lastErr = err

		if attempt < c.maxAttempts {
			log.Warn("Recognition attempt failed, retrying",
				"image", imageIndex, "attempt", attempt, "error", err)
			emit(ProgressEvent{Stage: "retry", ImageIndex: imageIndex, Attempt: attempt, Detail: err.Error()})

			backoff := retryBackoffStep*time.Duration(attempt) +
				time.Duration(rand.Int63n(int64(retryJitterMax)))
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}

	return nil, lastErr
}

// structureImage turns one recognized image into ordered messages
func (c *Coordinator) structureImage(result *ocr.ImageResult, imageIndex int, width, height float64) []Message {
	fragments := make([]ocr.TextFragment, 0, len(result.Fragments))
	for _, f := range result.Fragments {
		if f.Width <= 0 || f.Height <= 0 {
			continue
		}
		f.ImageIndex = imageIndex
		fragments = append(fragments, f)
	}

	fragments = filterNoise(fragments)
	sort.SliceStable(fragments, func(i, j int) bool {
		if fragments[i].Y != fragments[j].Y {
			return fragments[i].Y < fragments[j].Y
		}
		return fragments[i].X < fragments[j].X
	})

	cls := ClassifySpeakers(fragments, width, height)

	var bubbles []Bubble
	bubbles = append(bubbles, MergeBubbles(cls.Left, SideLeft, !cls.HasBothSides)...)
	bubbles = append(bubbles, MergeBubbles(cls.Right, SideRight, !cls.HasBothSides)...)
	bubbles = append(bubbles, imageBlockBubbles(result.Blocks, cls, width)...)

	messages := make([]Message, 0, len(bubbles))
	for _, b := range bubbles {
		messages = append(messages, Message{
			SpeakerName: SpeakerName(b.Side),
			SpeakerSide: b.Side,
			Text:        b.Text,
			ImageIndex:  imageIndex,
			sortY:       b.Top,
		})
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].sortY < messages[j].sortY
	})
	return messages
}

// filterNoise drops timestamps, banners and other interface chrome
func filterNoise(fragments []ocr.TextFragment) []ocr.TextFragment {
	if len(fragments) == 0 {
		return fragments
	}
	minX, maxX, minY, maxY := extentOf(fragments)
	pos := PositionContext{MinX: minX, MaxX: maxX, MinY: minY, MaxY: maxY}

	kept := fragments[:0]
	for _, f := range fragments {
		pos.CenterX = f.CenterX()
		pos.CenterY = f.CenterY()
		if IsNoise(f.Text, pos) {
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

// imageBlockBubbles converts non-text regions into standalone picture
// bubbles. A block never merges with text; its side follows its horizontal
// center, defaulting to the single detected side when there is one.
func imageBlockBubbles(blocks []ocr.ImageBlock, cls Classification, width float64) []Bubble {
	if len(blocks) == 0 {
		return nil
	}

	onlySide, hasOnly := dominantSide(cls)
	bubbles := make([]Bubble, 0, len(blocks))
	for _, blk := range blocks {
		side := SideLeft
		if hasOnly {
			side = onlySide
		} else if width > 0 && blk.X+blk.Width/2 > width/2 {
			side = SideRight
		}
		bubbles = append(bubbles, Bubble{
			Text:   "[图片]",
			Side:   side,
			Top:    blk.Y,
			Bottom: blk.Y + blk.Height,
			Left:   blk.X,
			Right:  blk.X + blk.Width,
		})
	}
	return bubbles
}

func dominantSide(cls Classification) (Side, bool) {
	if cls.HasBothSides {
		return "", false
	}
	if len(cls.Right) > 0 {
		return SideRight, true
	}
	if len(cls.Left) > 0 {
		return SideLeft, true
	}
	return "", false
}

// placeholderMessage stands in for an image that failed recognition
func placeholderMessage(imageIndex int) Message {
	return Message{
		SpeakerName:   SpeakerName(SideLeft),
		SpeakerSide:   SideLeft,
		Text:          PlaceholderText,
		ImageIndex:    imageIndex,
		IsPlaceholder: true,
	}
}

// decodeDimensions reads the image header for its pixel size. Unknown
// formats yield zeros; the classifier then falls back to fragment extent.
func decodeDimensions(img []byte) (float64, float64) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return 0, 0
	}
	return float64(cfg.Width), float64(cfg.Height)
}
