package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/markchunk/internal/style"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// Generation. A zero ContainerWidth keeps the style sheet's width.
	ContainerWidth float64
	MaxTextLength  int
	Measurer       string // canvas or grid
	StyleSheet     string

	// Math rendering
	AdvancedMath      bool
	MathRenderTimeout time.Duration

	// Render caches
	MathCacheCount int
	MathCacheCost  int
	TextCacheCount int
	TextCacheCost  int

	// Memory pressure
	MemorySoftLimit     uint64
	MemoryCheckInterval time.Duration

	// Images
	ResolveImages       bool
	MaxConcurrentImages int

	// PDF
	PDFFallbackPdftotext bool

	LogLevel slog.Level
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("API_KEY"),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		ContainerWidth: envFloat("CONTAINER_WIDTH", 0),
		MaxTextLength:  envInt("MAX_TEXT_LENGTH", 2000),
		Measurer:       strings.ToLower(envOr("MEASURER", "canvas")),
		StyleSheet:     os.Getenv("STYLE_SHEET"),

		AdvancedMath:      envBool("ADVANCED_MATH", true),
		MathRenderTimeout: envDuration("MATH_RENDER_TIMEOUT", 5*time.Second),

		MathCacheCount: envInt("MATH_CACHE_COUNT", 30),
		MathCacheCost:  envInt("MATH_CACHE_COST", 50),
		TextCacheCount: envInt("TEXT_CACHE_COUNT", 50),
		TextCacheCost:  envInt("TEXT_CACHE_COST", 100),

		MemorySoftLimit:     uint64(envInt64("MEMORY_SOFT_LIMIT", 512<<20)),
		MemoryCheckInterval: envDuration("MEMORY_CHECK_INTERVAL", 10*time.Second),

		ResolveImages:       envBool("RESOLVE_IMAGES", true),
		MaxConcurrentImages: envInt("MAX_CONCURRENT_IMAGES", 4),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),

		LogLevel: envLevel("LOG_LEVEL", slog.LevelInfo),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = 2000
	}
	if cfg.MathRenderTimeout <= 0 {
		cfg.MathRenderTimeout = 5 * time.Second
	}
	if cfg.MemoryCheckInterval <= 0 {
		cfg.MemoryCheckInterval = 10 * time.Second
	}
	if cfg.MaxConcurrentImages <= 0 {
		cfg.MaxConcurrentImages = 4
	}

	return cfg
}

func (c Config) Validate() error {
	switch c.Measurer {
	case "canvas", "grid":
	default:
		return fmt.Errorf("MEASURER must be canvas or grid, got %q", c.Measurer)
	}
	if c.StyleSheet != "" {
		if _, err := os.Stat(c.StyleSheet); err != nil {
			return fmt.Errorf("STYLE_SHEET: %w", err)
		}
	}
	if c.MathCacheCount < 0 || c.MathCacheCost < 0 || c.TextCacheCount < 0 || c.TextCacheCost < 0 {
		return fmt.Errorf("cache limits must not be negative")
	}
	return nil
}

// Style loads the configured style sheet, or the default style, and applies
// the environment overrides on top.
func (c Config) Style() (*style.Style, error) {
	st := style.Default()
	if c.StyleSheet != "" {
		var err error
		if st, err = style.LoadFile(c.StyleSheet); err != nil {
			return nil, err
		}
	}
	if c.ContainerWidth > 0 {
		st.ContainerWidth = c.ContainerWidth
	}
	st.Math.Advanced = c.AdvancedMath
	if c.MathRenderTimeout > 0 {
		st.Math.Timeout = c.MathRenderTimeout
	}
	return st, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envLevel(key string, fallback slog.Level) slog.Level {
	if v := os.Getenv(key); v != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(v)); err == nil {
			return l
		}
	}
	return fallback
}
