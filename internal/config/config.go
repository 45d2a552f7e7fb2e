package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Discussion thread configuration
	Thread ThreadConfig

	// File upload configuration
	Upload UploadConfig

	// Thread import configuration
	Import ImportConfig

	// Content API client configuration (threadctl)
	Client ClientConfig

	// Logging configuration
	Log LogConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	// ReservedWords are rejected as slugs and subdomains on top of the built-in lists
	ReservedWords []string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxOpenConns   int
	MaxIdleConns   int
	MaxLifetime    time.Duration
	MigrationsPath string
}

// ThreadConfig holds comment thread settings
type ThreadConfig struct {
	MaxDepth int
}

// UploadConfig holds upload settings
type UploadConfig struct {
	Dir            string
	PublicBaseURL  string
	MaxUploadSize  int64 // in bytes
	ContentTimeout time.Duration
	VideoTimeout   time.Duration
	ContentExts    []string
	VideoExts      []string
}

// ImportConfig holds thread import settings
type ImportConfig struct {
	BatchSize     int
	MaxFileSize   int64 // in bytes
	MaxLineLength int
}

// ClientConfig holds settings for talking to a running content API
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	UserID  string
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string
	Format string // "json" or "pretty"
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 11*time.Minute),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			RequestTimeout:  getDurationEnv("SERVER_REQUEST_TIMEOUT", 15*time.Second),
			ReservedWords:   getListEnv("RESERVED_WORDS", nil),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			Name:           getEnv("DB_NAME", "lms_discussions"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:   getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:   getIntEnv("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:    getDurationEnv("DB_MAX_LIFETIME", 5*time.Minute),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "./migrations"),
		},
		Thread: ThreadConfig{
			MaxDepth: getIntEnv("THREAD_MAX_DEPTH", 3),
		},
		Upload: UploadConfig{
			Dir:            getEnv("UPLOAD_DIR", "./data/uploads"),
			PublicBaseURL:  getEnv("UPLOAD_PUBLIC_URL", "/files"),
			MaxUploadSize:  getInt64Env("MAX_UPLOAD_SIZE", 2*1024*1024*1024), // 2GB
			ContentTimeout: getDurationEnv("UPLOAD_CONTENT_TIMEOUT", 3*time.Minute),
			VideoTimeout:   getDurationEnv("UPLOAD_VIDEO_TIMEOUT", 10*time.Minute),
			ContentExts:    getListEnv("UPLOAD_CONTENT_EXTENSIONS", []string{".pdf", ".docx", ".pptx", ".png", ".jpg", ".jpeg"}),
			VideoExts:      getListEnv("UPLOAD_VIDEO_EXTENSIONS", []string{".mp4", ".webm", ".mov"}),
		},
		Import: ImportConfig{
			BatchSize:     getIntEnv("IMPORT_BATCH_SIZE", 1000),
			MaxFileSize:   getInt64Env("IMPORT_MAX_FILE_SIZE", 100*1024*1024), // 100MB
			MaxLineLength: getIntEnv("IMPORT_MAX_LINE_LENGTH", 1024*1024),
		},
		Client: ClientConfig{
			BaseURL: getEnv("CONTENT_API_URL", "http://localhost:8080"),
			Timeout: getDurationEnv("CONTENT_API_TIMEOUT", 30*time.Second),
			UserID:  getEnv("CONTENT_API_USER_ID", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Thread.MaxDepth < 1 {
		return fmt.Errorf("THREAD_MAX_DEPTH must be at least 1, got %d", c.Thread.MaxDepth)
	}
	if c.Upload.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive")
	}
	if c.Import.BatchSize <= 0 {
		return fmt.Errorf("IMPORT_BATCH_SIZE must be positive")
	}
	if c.Upload.ContentTimeout <= 0 || c.Upload.VideoTimeout <= 0 {
		return fmt.Errorf("upload timeouts must be positive")
	}
	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getListEnv reads a comma separated list, dropping blanks
func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}
