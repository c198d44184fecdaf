package config

import (
	"fmt"
	"os"
	"strconv"

	"docpipe/internal/logger"
)

type Config struct {
	// File intake limits
	MaxFileSizeMB int
	BatchLimit    int

	// Pipeline tuning
	RasterDPI        int
	BatchConcurrency int

	// OCR engine configuration
	OCRLanguage        string
	VisionLanguages    []string
	WordConfidenceMin  float64 // Tesseract per-word cutoff (0-100)
	SegmentConfidence  float64 // Vision per-word cutoff (0-1)
	HandwritingAvgMax  float64 // below this average, printed-text engine suspects handwriting
	HandwritingMeanMax float64 // below this mean, general engine suspects handwriting
	HandwritingVarMin  float64 // above this variance, general engine suspects handwriting

	// Cache Configuration
	RedisAddr       string
	RedisPassword   string
	CacheTTLSeconds int

	// Persistence Configuration
	MySQLDSN string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		MaxFileSizeMB:      getEnvInt("MAX_FILE_SIZE_MB", 50),
		BatchLimit:         getEnvInt("BATCH_LIMIT", 10),
		RasterDPI:          getEnvInt("RASTER_DPI", 300),
		BatchConcurrency:   getEnvInt("BATCH_CONCURRENCY", 3),
		OCRLanguage:        getEnv("OCR_LANGUAGE", "deu"),
		VisionLanguages:    []string{"de", "en"},
		WordConfidenceMin:  getEnvFloat("OCR_WORD_CONFIDENCE_MIN", 30),
		SegmentConfidence:  getEnvFloat("OCR_SEGMENT_CONFIDENCE_MIN", 0.3),
		HandwritingAvgMax:  getEnvFloat("HANDWRITING_AVG_CONFIDENCE_MAX", 70),
		HandwritingMeanMax: getEnvFloat("HANDWRITING_MEAN_CONFIDENCE_MAX", 60),
		HandwritingVarMin:  getEnvFloat("HANDWRITING_VARIANCE_MIN", 200),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		CacheTTLSeconds:    getEnvInt("CACHE_TTL_SECONDS", 21600),
		MySQLDSN:           getEnv("MYSQL_DSN", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:      getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:          getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.MaxFileSizeMB <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE_MB must be positive")
	}
	if c.BatchLimit <= 0 {
		return fmt.Errorf("BATCH_LIMIT must be positive")
	}
	if c.BatchConcurrency <= 0 {
		return fmt.Errorf("BATCH_CONCURRENCY must be positive")
	}
	if c.RasterDPI < 72 {
		return fmt.Errorf("RASTER_DPI must be at least 72")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
