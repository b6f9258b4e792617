package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Verification store backends.
const (
	VerificationBackendMemory = "memory"
	VerificationBackendRedis  = "redis"
	VerificationBackendDynamo = "dynamo"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort        string
	AppEnv         string
	AllowedOrigins []string // CORS allowed origins

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	JWTPrivateKeyPath      string
	JWTPublicKeyPath       string
	JWTExpiry              time.Duration
	RefreshTokenExpiryDays int

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string // must match the URI registered with Google exactly
	GoogleHTTPTimeout  time.Duration

	SMTPHost            string
	SMTPPort            string
	SMTPFrom            string
	SMTPFromName        string
	SMTPUsername        string
	SMTPPassword        string
	MailBreakerFailures uint32
	MailBreakerTimeout  time.Duration

	VerificationBackend       string
	VerificationSweepInterval time.Duration
	RedisAddr                 string
	RedisPassword             string
	RedisDB                   int

	SignupRateLimit float64 // requests/second per client IP on /signup routes
	SignupRateBurst int
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users         string
	Profiles      string
	Sessions      string
	Verifications string // only used when VerificationBackend is "dynamo"
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:         getEnv("DYNAMO_TABLE_USERS", "users"),
			Profiles:      getEnv("DYNAMO_TABLE_PROFILES", "profiles"),
			Sessions:      getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
			Verifications: getEnv("DYNAMO_TABLE_VERIFICATIONS", "signup_verifications"),
		},
		JWTPrivateKeyPath:         getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:          getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:                 getEnvDuration("JWT_EXPIRY", time.Hour),
		RefreshTokenExpiryDays:    getEnvInt("REFRESH_TOKEN_EXPIRY_DAYS", 30),
		GoogleClientID:            getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:        getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:         getEnv("GOOGLE_REDIRECT_URL", "http://localhost:3000/auth/callback"),
		GoogleHTTPTimeout:         getEnvDuration("GOOGLE_HTTP_TIMEOUT", 10*time.Second),
		SMTPHost:                  getEnv("SMTP_HOST", "localhost"),
		SMTPPort:                  getEnv("SMTP_PORT", "1025"),
		SMTPFrom:                  getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPFromName:              getEnv("SMTP_FROM_NAME", "EduRetrieve"),
		SMTPUsername:              getEnv("SMTP_USERNAME", ""),
		SMTPPassword:              getEnv("SMTP_PASSWORD", ""),
		MailBreakerFailures:       uint32(getEnvInt("MAIL_BREAKER_FAILURES", 5)),
		MailBreakerTimeout:        getEnvDuration("MAIL_BREAKER_TIMEOUT", 30*time.Second),
		VerificationBackend:       getEnv("VERIFICATION_BACKEND", VerificationBackendMemory),
		VerificationSweepInterval: getEnvDuration("VERIFICATION_SWEEP_INTERVAL", time.Minute),
		RedisAddr:                 getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:             getEnv("REDIS_PASSWORD", ""),
		RedisDB:                   getEnvInt("REDIS_DB", 0),
		SignupRateLimit:           getEnvFloat("SIGNUP_RATE_LIMIT", 5),
		SignupRateBurst:           getEnvInt("SIGNUP_RATE_BURST", 10),
	}
}

// RefreshTokenExpiry is the lifetime of a refresh token.
func (c *Config) RefreshTokenExpiry() time.Duration {
	return time.Duration(c.RefreshTokenExpiryDays) * 24 * time.Hour
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("90s", "10m").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
