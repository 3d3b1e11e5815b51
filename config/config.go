package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// minSecretLength is the minimum accepted length for the encryption and
// token secrets. Shorter secrets are a startup error, never a warning.
const minSecretLength = 32

type Application struct {
	GracefulShutdownTimeout time.Duration
}

type HTTPServer struct {
	Port int
}

type Database struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type Redis struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type Logger struct {
	Level string
	Mode  string // development or production
}

type Swagger struct {
	Enabled bool `json:"enabled"`
}

// Secrets holds the long-lived keys the service refuses to start without.
type Secrets struct {
	EncryptionSecret string
	TokenSecret      string
}

type SessionToken struct {
	ExpirationTime time.Duration
}

type OTP struct {
	Length         int
	ExpirationTime time.Duration
	MaxAttempts    int
}

type Registration struct {
	TTL        time.Duration
	MinimumAge int
}

type RateLimit struct {
	SendMaxRequests    int
	SendWindow         time.Duration
	ResendCooldown     time.Duration
	VerifyMaxRequests  int
	VerifyWindow       time.Duration
	RegisterMaxPerHour int
	AdminMaxPerHour    int
}

type Config struct {
	Application  Application
	HTTPServer   HTTPServer
	Database     Database
	Redis        Redis
	Logger       Logger
	Swagger      Swagger
	Secrets      Secrets
	SessionToken SessionToken
	OTP          OTP
	Registration Registration
	RateLimit    RateLimit
}

func Load() (*Config, error) {
	cfg := &Config{
		Application: Application{
			GracefulShutdownTimeout: parseDurationWithDefault("APPLICATION_GRACEFUL_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		HTTPServer: HTTPServer{
			Port: parseIntWithDefault("HTTP_SERVER_PORT", 8080),
		},
		Database: Database{
			Host:     getEnvWithDefault("DATABASE_HOST", "db"),
			Port:     parseIntWithDefault("DATABASE_PORT", 5432),
			User:     getEnvWithDefault("DATABASE_USER", "greengate"),
			Password: getEnvWithDefault("DATABASE_PASSWORD", "greengate"),
			Name:     getEnvWithDefault("DATABASE_NAME", "greengate"),
			SSLMode:  getEnvWithDefault("DATABASE_SSL_MODE", "disable"),
		},
		Redis: Redis{
			Host:     getEnvWithDefault("REDIS_HOST", "redis"),
			Port:     parseIntWithDefault("REDIS_PORT", 6379),
			Password: getEnvWithDefault("REDIS_PASSWORD", ""),
			DB:       parseIntWithDefault("REDIS_DB", 0),
		},
		Logger: Logger{
			Level: getEnvWithDefault("LOGGER_LEVEL", "info"),
			Mode:  getEnvWithDefault("LOGGER_MODE", "production"),
		},
		Swagger: Swagger{
			Enabled: getEnvBoolWithDefault("SWAGGER_ENABLED", true),
		},
		Secrets: Secrets{
			EncryptionSecret: os.Getenv("ENCRYPTION_SECRET"),
			TokenSecret:      os.Getenv("TOKEN_SECRET"),
		},
		SessionToken: SessionToken{
			ExpirationTime: parseDurationWithDefault("SESSION_TOKEN_EXPIRATION_TIME", 24*time.Hour),
		},
		OTP: OTP{
			Length:         parseIntWithDefault("OTP_LENGTH", 6),
			ExpirationTime: parseDurationWithDefault("OTP_EXPIRATION_TIME", 5*time.Minute),
			MaxAttempts:    parseIntWithDefault("OTP_MAX_ATTEMPTS", 3),
		},
		Registration: Registration{
			TTL:        parseDurationWithDefault("REGISTRATION_TTL", 30*time.Minute),
			MinimumAge: parseIntWithDefault("REGISTRATION_MINIMUM_AGE", 18),
		},
		RateLimit: RateLimit{
			SendMaxRequests:    parseIntWithDefault("RATE_LIMIT_SEND_MAX_REQUESTS", 5),
			SendWindow:         parseDurationWithDefault("RATE_LIMIT_SEND_WINDOW", time.Hour),
			ResendCooldown:     parseDurationWithDefault("RATE_LIMIT_RESEND_COOLDOWN", 60*time.Second),
			VerifyMaxRequests:  parseIntWithDefault("RATE_LIMIT_VERIFY_MAX_REQUESTS", 10),
			VerifyWindow:       parseDurationWithDefault("RATE_LIMIT_VERIFY_WINDOW", 10*time.Minute),
			RegisterMaxPerHour: parseIntWithDefault("RATE_LIMIT_REGISTER_MAX_PER_HOUR", 10),
			AdminMaxPerHour:    parseIntWithDefault("RATE_LIMIT_ADMIN_MAX_PER_HOUR", 30),
		},
	}

	if err := cfg.validateSecrets(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecrets rejects missing or weak key material at startup.
func (c *Config) validateSecrets() error {
	if len(c.Secrets.EncryptionSecret) < minSecretLength {
		return fmt.Errorf("ENCRYPTION_SECRET must be set and at least %d characters, got %d", minSecretLength, len(c.Secrets.EncryptionSecret))
	}
	if len(c.Secrets.TokenSecret) < minSecretLength {
		return fmt.Errorf("TOKEN_SECRET must be set and at least %d characters, got %d", minSecretLength, len(c.Secrets.TokenSecret))
	}
	return nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func parseDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
