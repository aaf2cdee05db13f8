package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort       string
	APIKey        string // API key for authenticating requests (empty = no auth, dev mode)
	CorsOrigins   string // Comma-separated allowed origins (empty = *, dev mode)
	PublicBaseURL string // Base URL for locally served renders, e.g. http://host:8080

	// Working storage
	WorkDir string

	// Redis (optional — enables the bounded worker-pool dispatch mode)
	RedisURL          string
	MaxConcurrentJobs int

	// Supabase blob store (optional — local filesystem store when unset)
	SupabaseURL    string
	SupabaseKey    string
	SupabaseBucket string

	// Render output
	RenderWidth  int
	RenderHeight int
	RenderFPS    int

	// Timing policy
	DefaultSlideSeconds float64 // used when narration is absent or unreadable
	MinSlideSeconds     float64 // floor applied to the default
	TransitionSeconds   float64 // fade between consecutive clips

	// Mixing policy. The music bed is attenuated relative to narration so
	// speech stays intelligible; both gains are overridable.
	MusicGain float64
	VoiceGain float64

	// Captions
	CaptionMaxWords int

	// Fetching
	FetchTimeout time.Duration
	FetchRetries int

	// Webhook delivery
	WebhookRetries     int
	InlineWebhookVideo bool // embed the rendered video as base64 in the success webhook

	// Lifecycle
	JobRetention      time.Duration // how long terminal jobs stay queryable
	CleanupGrace      time.Duration // workdir removal delay after success
	CleanupFailGrace  time.Duration // workdir removal delay after failure
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:       getEnv("API_PORT", "8080"),
		APIKey:        getEnv("API_KEY", ""),
		CorsOrigins:   getEnv("CORS_ALLOWED_ORIGINS", ""),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),

		WorkDir: getEnv("WORK_DIR", "/tmp/slidecast"),

		RedisURL:          getEnv("REDIS_URL", ""),
		MaxConcurrentJobs: getEnvInt("MAX_CONCURRENT_JOBS", 4),

		SupabaseURL:    getEnv("SUPABASE_URL", ""),
		SupabaseKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseBucket: getEnv("SUPABASE_STORAGE_BUCKET", "slidecast-videos"),

		RenderWidth:  getEnvInt("RENDER_WIDTH", 1280),
		RenderHeight: getEnvInt("RENDER_HEIGHT", 768),
		RenderFPS:    getEnvInt("RENDER_FPS", 30),

		DefaultSlideSeconds: getEnvFloat("DEFAULT_SLIDE_SECONDS", 4.0),
		MinSlideSeconds:     getEnvFloat("MIN_SLIDE_SECONDS", 2.0),
		TransitionSeconds:   getEnvFloat("TRANSITION_SECONDS", 0.5),

		MusicGain: getEnvFloat("MUSIC_GAIN", 0.2),
		VoiceGain: getEnvFloat("VOICE_GAIN", 1.0),

		CaptionMaxWords: getEnvInt("CAPTION_MAX_WORDS", 8),

		FetchTimeout: getEnvDuration("FETCH_TIMEOUT_SECONDS", 30*time.Second),
		FetchRetries: getEnvInt("FETCH_RETRIES", 3),

		WebhookRetries:     getEnvInt("WEBHOOK_RETRIES", 2),
		InlineWebhookVideo: getEnvBool("INLINE_WEBHOOK_VIDEO", false),

		JobRetention:     getEnvDuration("JOB_RETENTION_SECONDS", time.Hour),
		CleanupGrace:     getEnvDuration("CLEANUP_GRACE_SECONDS", 60*time.Second),
		CleanupFailGrace: getEnvDuration("CLEANUP_FAIL_GRACE_SECONDS", 10*time.Second),
	}

	if cfg.RenderWidth <= 0 || cfg.RenderHeight <= 0 || cfg.RenderFPS <= 0 {
		return nil, fmt.Errorf("render dimensions and fps must be positive")
	}

	if cfg.MinSlideSeconds <= 0 {
		return nil, fmt.Errorf("MIN_SLIDE_SECONDS must be positive")
	}

	// Supabase credentials come in pairs
	if (cfg.SupabaseURL == "") != (cfg.SupabaseKey == "") {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY must be set together")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		secs, err := strconv.Atoi(value)
		if err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
