package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Storage  StorageConfig
	Queue    QueueConfig
	OCR      OCRConfig
	AI       AIConfig
	Extract  ExtractConfig
}

// DatabaseConfig holds job-store configuration. Driver selects the backend:
// "postgres" (pgx pool) or "sqlite" (embedded, for local runs and tests).
type DatabaseConfig struct {
	Driver           string
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
}

// StorageConfig holds object-store configuration
type StorageConfig struct {
	RootDir string
}

// QueueConfig holds queue transport and worker-pool configuration
type QueueConfig struct {
	Workers        int
	BufferSize     int
	ProcessTimeout time.Duration
}

// OCRConfig holds the remote OCR fallback configuration. An empty APIKey
// disables the remote call and the extractor degrades to placeholder text.
type OCRConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// AIConfig holds the external AI extraction model configuration
type AIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// ExtractConfig holds local text-layer extraction configuration
type ExtractConfig struct {
	Pdftotext string
	MaxPages  int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "postgres"),
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Storage: StorageConfig{
			RootDir: getEnv("STORAGE_ROOT", "./data"),
		},
		Queue: QueueConfig{
			Workers:        getEnvAsInt("QUEUE_WORKERS", 4),
			BufferSize:     getEnvAsInt("QUEUE_BUFFER", 256),
			ProcessTimeout: getEnvAsDuration("QUEUE_PROCESS_TIMEOUT", 3*time.Minute),
		},
		OCR: OCRConfig{
			Endpoint: getEnv("OCR_ENDPOINT", ""),
			APIKey:   getEnv("OCR_API_KEY", ""),
			Timeout:  getEnvAsDuration("OCR_TIMEOUT", 60*time.Second),
		},
		AI: AIConfig{
			BaseURL:     getEnv("AI_BASE_URL", "https://api.openai.com/v1"),
			APIKey:      getEnv("AI_API_KEY", ""),
			Model:       getEnv("AI_MODEL", "gpt-4o-mini"),
			Temperature: getEnvAsFloat32("AI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("AI_TIMEOUT", 45*time.Second),
		},
		Extract: ExtractConfig{
			Pdftotext: getEnv("PDFTOTEXT_BIN", "pdftotext"),
			MaxPages:  getEnvAsInt("EXTRACT_MAX_PAGES", 0),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be 'postgres' or 'sqlite'", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.AI.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "AI_API_KEY is required", ErrInvalidInput)
	}
	return nil
}
