package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all daemon configuration
type Config struct {
	Port             int
	RedisURL         string
	RedisPassword    string
	MaxSessions      int
	SessionTimeout   time.Duration
	GeminiAPIKey     string
	GeminiModel      string
	VoiceName        string
	AllowedOrigins   []string
	WhatsAppNumber   string
	MetricsNamespace string
	KeepAlivePeriod  time.Duration
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	config := &Config{
		Port:             8080,
		RedisURL:         "localhost:6379",
		RedisPassword:    "",
		MaxSessions:      1, // one microphone, one speaker
		SessionTimeout:   30 * time.Minute,
		AllowedOrigins:   []string{"*"},
		WhatsAppNumber:   "27215550100",
		MetricsNamespace: "voicedesk",
		KeepAlivePeriod:  30 * time.Second,
	}

	// Required: GEMINI_API_KEY
	config.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	if config.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	// Optional: PORT
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		config.Port = p
	}

	// Optional: REDIS_URL
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		config.RedisURL = redisURL
	}

	// Optional: REDIS_PASSWORD
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		config.RedisPassword = redisPassword
	}

	// Optional: MAX_SESSIONS
	if maxSessions := os.Getenv("MAX_SESSIONS"); maxSessions != "" {
		m, err := strconv.Atoi(maxSessions)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_SESSIONS: %w", err)
		}
		config.MaxSessions = m
	}

	// Optional: SESSION_TIMEOUT (in minutes)
	if timeout := os.Getenv("SESSION_TIMEOUT"); timeout != "" {
		t, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TIMEOUT: %w", err)
		}
		config.SessionTimeout = time.Duration(t) * time.Minute
	}

	// Optional: GEMINI_MODEL
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		config.GeminiModel = model
	}

	// Optional: VOICE_NAME
	if voice := os.Getenv("VOICE_NAME"); voice != "" {
		config.VoiceName = voice
	}

	// Optional: ALLOWED_ORIGINS (comma-separated)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = strings.Split(origins, ",")
	}

	// Optional: WHATSAPP_NUMBER (digits only, no leading +)
	if number := os.Getenv("WHATSAPP_NUMBER"); number != "" {
		config.WhatsAppNumber = number
	}

	// Optional: METRICS_NAMESPACE
	if ns := os.Getenv("METRICS_NAMESPACE"); ns != "" {
		config.MetricsNamespace = ns
	}

	// Optional: KEEPALIVE_PERIOD (in seconds)
	if keepalive := os.Getenv("KEEPALIVE_PERIOD"); keepalive != "" {
		k, err := strconv.Atoi(keepalive)
		if err != nil {
			return nil, fmt.Errorf("invalid KEEPALIVE_PERIOD: %w", err)
		}
		config.KeepAlivePeriod = time.Duration(k) * time.Second
	}

	return config, nil
}
