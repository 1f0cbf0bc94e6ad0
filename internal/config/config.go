package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port             string
	Env              string
	AllowedWSOrigins []string

	// Logging
	LogLevel  string
	LogFormat string

	// Database
	DatabaseURL string
	RedisURL    string

	// Security
	JWTSecret string

	// Twilio
	SMSEnabled             bool
	TwilioAccountSID       string
	TwilioAuthToken        string
	TwilioPhoneNumber      string
	SMSDefaultCountryCode  string
	EmergencyContactNumber string

	// Firebase
	FCMCredentialsPath string

	// Gemini zone generation
	GeminiAPIKey  string
	GeminiModel   string
	GeminiTimeout time.Duration
	GeminiRPS     float64
	ZoneCacheTTL  time.Duration

	// Outbound notification bounds
	SMSTimeout  time.Duration
	PushTimeout time.Duration

	// Location ingestion
	AnonymousLocationUserID *uuid.UUID
	LocationRateLimit       int // 0 disables the limit
	LocationRateWindow      time.Duration
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:                   getEnv("PORT", "8080"),
		Env:                    getEnv("ENV", "local"),
		AllowedWSOrigins:       getEnvList("WS_ALLOWED_ORIGINS"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogFormat:              getEnv("LOG_FORMAT", "json"),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		RedisURL:               getEnv("REDIS_URL", "redis://localhost:6379"),
		JWTSecret:              getEnv("JWT_SECRET", ""),
		SMSEnabled:             getEnvBool("SMS_ENABLED", false),
		TwilioAccountSID:       getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:        getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioPhoneNumber:      getEnv("TWILIO_PHONE_NUMBER", ""),
		SMSDefaultCountryCode:  getEnv("SMS_DEFAULT_COUNTRY_CODE", "+91"),
		EmergencyContactNumber: getEnv("EMERGENCY_CONTACT_NUMBER", ""),
		FCMCredentialsPath:     getEnv("FCM_CREDENTIALS_PATH", ""),
		GeminiAPIKey:           getEnv("GEMINI_API_KEY", ""),
		GeminiModel:            getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiTimeout:          getEnvDuration("GEMINI_TIMEOUT", 30*time.Second),
		GeminiRPS:              getEnvFloat("GEMINI_RPS", 1),
		ZoneCacheTTL:           getEnvDuration("ZONE_CACHE_TTL", time.Hour),
		SMSTimeout:             getEnvDuration("SMS_TIMEOUT", 10*time.Second),
		PushTimeout:            getEnvDuration("PUSH_TIMEOUT", 5*time.Second),
		LocationRateLimit:      getEnvInt("LOCATION_RATE_LIMIT", 10),
		LocationRateWindow:     getEnvDuration("LOCATION_RATE_WINDOW", 10*time.Second),
	}

	// Anonymous location updates are opt-in
	if raw := getEnv("LOCATION_ANONYMOUS_USER_ID", ""); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("LOCATION_ANONYMOUS_USER_ID must be a uuid: %w", err)
		}
		cfg.AnonymousLocationUserID = &id
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.SMSEnabled {
		if c.TwilioAccountSID == "" {
			return fmt.Errorf("TWILIO_ACCOUNT_SID is required when SMS_ENABLED=true")
		}
		if c.TwilioAuthToken == "" {
			return fmt.Errorf("TWILIO_AUTH_TOKEN is required when SMS_ENABLED=true")
		}
		if c.TwilioPhoneNumber == "" {
			return fmt.Errorf("TWILIO_PHONE_NUMBER is required when SMS_ENABLED=true")
		}
	}
	if c.SMSTimeout <= 0 || c.PushTimeout <= 0 {
		return fmt.Errorf("SMS_TIMEOUT and PUSH_TIMEOUT must be positive")
	}
	if c.LocationRateLimit < 0 {
		return fmt.Errorf("LOCATION_RATE_LIMIT must not be negative (0 disables it)")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
