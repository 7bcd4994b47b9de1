// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

const defaultJWTSecret = "dev_secret_change_me"

// Config holds all runtime configuration values.
type Config struct {
	Env            string
	Port           string
	StoreDriver    string // "mongo" or "memory"
	MongoURI       string
	MongoDB        string
	JWTSecret      string
	JWTExpiresIn   time.Duration
	BcryptCost     int
	RequestTimeout time.Duration
	EmailProvider  string // "postmark", "sendgrid" or empty
	EmailToken     string
	EmailSender    string
	RabbitMQURL    string
	RateLimit      RateLimitConfig
}

// Dev reports whether the service runs in development mode.
func (c Config) Dev() bool { return c.Env == "development" }

// Load reads a .env file if present and builds a Config from the
// environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Proceeding with environment variables.")
	}

	cfg := Config{
		Env:            envStr("APP_ENV", "development"),
		Port:           envStr("PORT", "8000"),
		StoreDriver:    strings.ToLower(envStr("STORE_DRIVER", "mongo")),
		MongoURI:       envStr("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:        envStr("MONGO_DB", "storefront"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTExpiresIn:   envDur("JWT_EXPIRES_IN", 7*24*time.Hour),
		BcryptCost:     envInt("BCRYPT_COST", bcrypt.DefaultCost),
		RequestTimeout: envDur("REQUEST_TIMEOUT", 5*time.Second),
		EmailProvider:  strings.ToLower(os.Getenv("EMAIL_PROVIDER")),
		EmailSender:    os.Getenv("EMAIL_SENDER"),
		RabbitMQURL:    os.Getenv("RABBITMQ_URL"),
		RateLimit:      LoadRateLimitConfig(),
	}
	switch cfg.EmailProvider {
	case "postmark":
		cfg.EmailToken = os.Getenv("POSTMARK_API_TOKEN")
	case "sendgrid":
		cfg.EmailToken = os.Getenv("SENDGRID_API_KEY")
	}

	if cfg.JWTSecret == "" {
		if !cfg.Dev() {
			return Config{}, fmt.Errorf("JWT_SECRET is required when APP_ENV=%s", cfg.Env)
		}
		log.Println("JWT_SECRET not set, using development secret")
		cfg.JWTSecret = defaultJWTSecret
	}
	if cfg.StoreDriver != "mongo" && cfg.StoreDriver != "memory" {
		return Config{}, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return Config{}, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return cfg, nil
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	switch strings.ToLower(v) {
	case "yes", "on":
		return true
	case "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
