/**
 * Redis Result Store for the Transcript Worker
 *
 * Compatible with the backend's Redis job tracking: status membership sets,
 * a results hash, and a pub/sub events channel the backend streams to
 * WebSocket clients.
 */

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chatlens/transcript-worker/internal/engine"
	"github.com/chatlens/transcript-worker/internal/logging"
)

// Store wraps the Redis keys the worker shares with the owning backend.
// All keys are namespaced under the queue name.
type Store struct {
	client    *redis.Client
	queueName string
	logger    *logging.Logger
}

// NewStore connects to Redis and verifies the connection
func NewStore(redisURL, queueName string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{
		client:    client,
		queueName: queueName,
		logger:    logging.NewLogger("Store"),
	}, nil
}

// Close releases the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Client exposes the underlying connection for components that share it
func (s *Store) Client() *redis.Client {
	return s.client
}

func (s *Store) key(suffix string) string {
	return fmt.Sprintf("%s:%s", s.queueName, suffix)
}

// MarkProcessing records that a job has been picked up
func (s *Store) MarkProcessing(ctx context.Context, jobID string) {
	s.client.SAdd(ctx, s.key("processing"), jobID)
	s.publishEvent(ctx, jobID, "job:processing", nil)
}

// MarkCompleted stores the batch result and moves the job to completed
func (s *Store) MarkCompleted(ctx context.Context, jobID string, result *engine.BatchResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result for job %s: %w", jobID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.SRem(ctx, s.key("processing"), jobID)
	pipe.SAdd(ctx, s.key("completed"), jobID)
	pipe.HSet(ctx, s.key("results"), jobID, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store result for job %s: %w", jobID, err)
	}

	s.publishEvent(ctx, jobID, "job:completed", nil)
	return nil
}

// MarkFailed records a terminal job failure with its error detail
func (s *Store) MarkFailed(ctx context.Context, jobID string, jobErr map[string]interface{}) {
	pipe := s.client.TxPipeline()
	pipe.SRem(ctx, s.key("processing"), jobID)
	pipe.SAdd(ctx, s.key("failed"), jobID)
	if jobErr != nil {
		data, _ := json.Marshal(jobErr)
		pipe.HSet(ctx, s.key("errors"), jobID, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("Failed to record job failure", "jobId", jobID, "error", err)
	}

	s.publishEvent(ctx, jobID, "job:failed", jobErr)
}

// PublishProgress streams a per-image pipeline event to the backend
func (s *Store) PublishProgress(ctx context.Context, jobID string, event engine.ProgressEvent) {
	s.publishEvent(ctx, jobID, "job:progress", map[string]interface{}{
		"stage":       event.Stage,
		"image_index": event.ImageIndex,
		"attempt":     event.Attempt,
		"detail":      event.Detail,
	})
}

// publishEvent emits a job lifecycle event on the shared events channel.
// Publish failures are logged, never propagated; events are advisory.
func (s *Store) publishEvent(ctx context.Context, jobID, eventName string, detail map[string]interface{}) {
	event := map[string]interface{}{
		"event":     eventName,
		"jobId":     jobID,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if detail != nil {
		event["detail"] = detail
	}

	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.client.Publish(ctx, s.key("events"), data).Err(); err != nil {
		s.logger.Debug("Event publish failed", "jobId", jobID, "event", eventName, "error", err)
	}
}
