package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds worker configuration
type Config struct {
	// Redis configuration (queue + result store)
	RedisURL string

	// OCR provider configuration
	OCRProvider    string // "volc" or "tesseract"
	VolcOCRURL     string
	VolcAPIKey     string
	TesseractLangs string

	// Worker configuration
	WorkerConcurrency int
	ProcessingTimeout int   // milliseconds, per job
	MaxImageSize      int64 // bytes, per image
	OCRMaxAttempts    int   // attempts per image before it is marked failed
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:          getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		OCRProvider:       getEnvOrDefault("OCR_PROVIDER", "volc"),
		VolcOCRURL:        getEnvOrDefault("VOLC_OCR_URL", ""),
		VolcAPIKey:        getEnvOrDefault("VOLC_API_KEY", ""),
		TesseractLangs:    getEnvOrDefault("TESSERACT_LANGS", "eng+chi_sim"),
		WorkerConcurrency: getEnvAsIntOrDefault("WORKER_CONCURRENCY", 4),
		ProcessingTimeout: getEnvAsIntOrDefault("PROCESSING_TIMEOUT", 180000), // 3 minutes
		MaxImageSize:      getEnvAsInt64OrDefault("MAX_IMAGE_SIZE", 20971520), // 20MB
		OCRMaxAttempts:    getEnvAsIntOrDefault("OCR_MAX_ATTEMPTS", 3),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	switch c.OCRProvider {
	case "volc":
		if c.VolcOCRURL == "" {
			return fmt.Errorf("VOLC_OCR_URL is required when OCR_PROVIDER=volc")
		}
		if c.VolcAPIKey == "" {
			return fmt.Errorf("VOLC_API_KEY is required when OCR_PROVIDER=volc")
		}
	case "tesseract":
		// No remote credentials needed
	default:
		return fmt.Errorf("OCR_PROVIDER must be \"volc\" or \"tesseract\", got %q", c.OCRProvider)
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 64 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 64, got %d", c.WorkerConcurrency)
	}

	if c.ProcessingTimeout < 1000 {
		return fmt.Errorf("PROCESSING_TIMEOUT must be at least 1000ms, got %d", c.ProcessingTimeout)
	}

	if c.MaxImageSize < 1024 || c.MaxImageSize > 104857600 { // 1KB to 100MB
		return fmt.Errorf("MAX_IMAGE_SIZE must be between 1KB and 100MB, got %d", c.MaxImageSize)
	}

	if c.OCRMaxAttempts < 1 || c.OCRMaxAttempts > 10 {
		return fmt.Errorf("OCR_MAX_ATTEMPTS must be between 1 and 10, got %d", c.OCRMaxAttempts)
	}

	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}
