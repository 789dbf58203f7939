/**
 * Asynq Queue Consumer for the Transcript Worker
 *
 * Consumes screenshot structuring tasks enqueued by the backend. Images
 * arrive inline as base64 or as URLs to fetch; the handler runs the batch
 * pipeline and reports results through the Redis store.
 */

package queue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/chatlens/transcript-worker/internal/config"
	"github.com/chatlens/transcript-worker/internal/engine"
	"github.com/chatlens/transcript-worker/internal/errors"
	"github.com/chatlens/transcript-worker/internal/logging"
	"github.com/chatlens/transcript-worker/internal/storage"
)

// TypeStructureScreenshots is the asynq task type this worker consumes
const TypeStructureScreenshots = "screenshot:structure"

const (
	downloadAttempts = 3
	downloadBackoff  = 500 * time.Millisecond
	downloadTimeout  = 30 * time.Second
)

// TaskPayload is the task body enqueued by the backend
type TaskPayload struct {
	JobID     string                 `json:"jobId"`
	UserID    string                 `json:"userId"`
	Images    []string               `json:"images,omitempty"`    // base64-encoded image bytes
	ImageURLs []string               `json:"imageUrls,omitempty"` // fetched by the worker
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Consumer wraps the asynq server and the task handler
type Consumer struct {
	server      *asynq.Server
	coordinator *engine.Coordinator
	store       *storage.Store
	cfg         *config.Config
	httpClient  *http.Client
	logger      *logging.Logger
}

// NewConsumer builds the asynq server from the worker configuration
func NewConsumer(cfg *config.Config, coordinator *engine.Coordinator, store *storage.Store) (*Consumer, error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		// Per-image retries live inside the pipeline; a task that still
		// fails is retried once more at the queue level before parking.
		RetryDelayFunc: func(n int, e error, t *asynq.Task) time.Duration {
			return 10 * time.Second
		},
	})

	return &Consumer{
		server:      server,
		coordinator: coordinator,
		store:       store,
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: downloadTimeout},
		logger:      logging.NewLogger("Consumer"),
	}, nil
}

// Run blocks serving tasks until Shutdown is called
func (c *Consumer) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeStructureScreenshots, c.handleStructureTask)

	c.logger.Info("Consumer starting",
		"task", TypeStructureScreenshots,
		"concurrency", c.cfg.WorkerConcurrency)
	return c.server.Run(mux)
}

// Shutdown stops the server, waiting for in-flight tasks
func (c *Consumer) Shutdown() {
	c.server.Shutdown()
}

func (c *Consumer) handleStructureTask(ctx context.Context, task *asynq.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		c.logger.Error("Malformed task payload", "error", err)
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	jobID := payload.JobID
	if jobID == "" {
		jobID = uuid.New().String()
	}
	log := c.logger.WithJob(jobID)

	images, err := c.collectImages(ctx, jobID, &payload)
	if err != nil {
		log.Error("Image collection failed", "error", err)
		c.store.MarkFailed(ctx, jobID, errorDetail(err))
		if procErr, ok := err.(*errors.ProcessingError); ok && procErr.Code == errors.ErrorInvalidPayload {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	c.store.MarkProcessing(ctx, jobID)

	timeout := time.Duration(c.cfg.ProcessingTimeout) * time.Millisecond
	procCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := c.coordinator.Process(procCtx, jobID, images, func(event engine.ProgressEvent) {
		c.store.PublishProgress(ctx, jobID, event)
	})
	if err != nil {
		if procCtx.Err() == context.DeadlineExceeded {
			err = errors.NewProcessingTimeoutError(jobID, timeout, err)
		}
		log.Error("Batch processing failed", "error", err)
		c.store.MarkFailed(ctx, jobID, errorDetail(err))
		return err
	}

	if err := c.store.MarkCompleted(ctx, jobID, result); err != nil {
		log.Error("Failed to store result", "error", err)
		return err
	}

	log.Info("Job completed",
		"messages", len(result.Metadata.StructuredMessages),
		"failed_images", len(result.Metadata.FailedImages))
	return nil
}

// collectImages decodes inline images and fetches any referenced by URL,
// preserving payload order: inline images first, then URLs.
func (c *Consumer) collectImages(ctx context.Context, jobID string, payload *TaskPayload) ([][]byte, error) {
	if len(payload.Images) == 0 && len(payload.ImageURLs) == 0 {
		return nil, errors.NewInvalidPayloadError(jobID, "task has neither images nor imageUrls")
	}

	images := make([][]byte, 0, len(payload.Images)+len(payload.ImageURLs))

	for i, encoded := range payload.Images {
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, errors.NewInvalidPayloadError(jobID,
				fmt.Sprintf("image %d is not valid base64: %v", i+1, err))
		}
		if int64(len(decoded)) > c.cfg.MaxImageSize {
			return nil, errors.NewInvalidPayloadError(jobID,
				fmt.Sprintf("image %d exceeds size limit of %d bytes", i+1, c.cfg.MaxImageSize))
		}
		images = append(images, decoded)
	}

	for _, url := range payload.ImageURLs {
		data, err := c.downloadImage(ctx, url)
		if err != nil {
			return nil, errors.NewImageFetchFailedError(jobID, url, err)
		}
		images = append(images, data)
	}

	return images, nil
}

// downloadImage fetches one image with bounded retries and a size cap
func (c *Consumer) downloadImage(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= downloadAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := c.fetchOnce(ctx, url)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if attempt < downloadAttempts {
			c.logger.Warn("Image download failed, retrying", "url", url, "attempt", attempt, "error", err)
			timer := time.NewTimer(downloadBackoff * time.Duration(attempt))
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

func (c *Consumer) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(data)) > c.cfg.MaxImageSize {
		return nil, fmt.Errorf("image exceeds size limit of %d bytes", c.cfg.MaxImageSize)
	}
	return data, nil
}

func errorDetail(err error) map[string]interface{} {
	if procErr, ok := err.(*errors.ProcessingError); ok {
		return procErr.ToMap()
	}
	return map[string]interface{}{"error": err.Error()}
}
