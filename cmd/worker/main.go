/**
 * Transcript Worker - Main Entry Point
 *
 * Go worker that turns batches of chat screenshots into structured,
 * speaker-attributed transcripts.
 *
 * Architecture:
 * - Asynq consumer for the Redis-backed job queue
 * - Pluggable OCR provider (Volc HTTP API or local Tesseract)
 * - Per-image pipeline: noise filter, speaker classifier, bubble merger
 * - Redis result store with live progress events over pub/sub
 */

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/chatlens/transcript-worker/internal/config"
	"github.com/chatlens/transcript-worker/internal/engine"
	"github.com/chatlens/transcript-worker/internal/logging"
	"github.com/chatlens/transcript-worker/internal/ocr"
	"github.com/chatlens/transcript-worker/internal/queue"
	"github.com/chatlens/transcript-worker/internal/storage"
)

const queueName = "transcript:jobs"

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env not found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Transcript Worker starting...")
	log.Printf("Configuration loaded: Redis=%s, Provider=%s, Workers=%d",
		cfg.RedisURL, cfg.OCRProvider, cfg.WorkerConcurrency)

	// Select the OCR provider
	var provider ocr.Provider
	switch cfg.OCRProvider {
	case "volc":
		provider = ocr.NewVolcClient(cfg.VolcOCRURL, cfg.VolcAPIKey)
	case "tesseract":
		provider = ocr.NewTesseractProvider(cfg.TesseractLangs)
	default:
		log.Fatalf("Unknown OCR provider: %s", cfg.OCRProvider)
	}
	log.Printf("OCR provider initialized: %s", provider.Name())

	// Connect the Redis result store
	log.Printf("Connecting to Redis...")
	store, err := storage.NewStore(cfg.RedisURL, queueName)
	if err != nil {
		log.Fatalf("Failed to initialize result store: %v", err)
	}
	defer store.Close()
	log.Printf("Result store initialized")

	// Build the batch coordinator
	coordinator := engine.NewCoordinator(provider, logging.NewLogger("Coordinator"), cfg.OCRMaxAttempts)

	// Initialize the queue consumer
	consumer, err := queue.NewConsumer(cfg, coordinator, store)
	if err != nil {
		log.Fatalf("Failed to initialize queue consumer: %v", err)
	}
	log.Printf("Queue consumer initialized with concurrency=%d", cfg.WorkerConcurrency)

	// Run the consumer; it blocks until shutdown
	errChan := make(chan error, 1)
	go func() {
		errChan <- consumer.Run()
	}()

	log.Printf("===========================================")
	log.Printf("Transcript Worker is READY")
	log.Printf("===========================================")
	log.Printf("Queue: %s", queueName)
	log.Printf("Task: %s", queue.TypeStructureScreenshots)
	log.Printf("Workers: %d", cfg.WorkerConcurrency)
	log.Printf("Provider: %s", provider.Name())
	log.Printf("===========================================")
	log.Printf("Waiting for jobs...")

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigChan:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
		consumer.Shutdown()
	case err := <-errChan:
		if err != nil {
			log.Fatalf("Queue consumer terminated: %v", err)
		}
	}

	log.Printf("Transcript Worker stopped")
}
