// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database (optional, usage log falls back to in-memory)
	DatabaseURL string

	// Blockchain settings
	RPCURL     string
	ChainID    int64
	RPCTimeout time.Duration

	// Payment settings (x402 paywall; disabled when PayTo is empty)
	Price        string // price per analyze call in USDC
	PayTo        string // recipient address
	PaymentToken string // ERC-20 contract payments are made in

	// API behavior
	DefaultLang  string // locale used when the request omits lang
	RateLimitRPM int

	// Observability
	OTLPEndpoint string

	// Security
	AdminSecret string // guards the usage snapshot endpoint
}

// Base Mainnet defaults
const (
	DefaultRPCURL       = "https://mainnet.base.org"
	DefaultChainID      = 8453
	DefaultPaymentToken = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913" // Base USDC
	DefaultPort         = "8080"
	DefaultEnv          = "development"
	DefaultLogLevel     = "info"
	DefaultPrice        = "0.05"
	DefaultLang         = "ja"
	DefaultRateLimit    = 60
	DefaultRPCTimeout   = 5 * time.Second
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnv("PORT", DefaultPort),
		Env:          getEnv("ENV", DefaultEnv),
		LogLevel:     getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:  os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		RPCURL:       getEnv("RPC_URL", DefaultRPCURL),
		ChainID:      getEnvInt64("CHAIN_ID", DefaultChainID),
		RPCTimeout:   getEnvDuration("RPC_TIMEOUT", DefaultRPCTimeout),
		Price:        getEnv("X402_PRICE", DefaultPrice),
		PayTo:        os.Getenv("X402_PAYTO"), // Optional, paywall disabled if not set
		PaymentToken: getEnv("X402_TOKEN", DefaultPaymentToken),
		DefaultLang:  getEnv("DEFAULT_LANG", DefaultLang),
		RateLimitRPM: int(getEnvInt64("RATE_LIMIT_RPM", int64(DefaultRateLimit))),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		AdminSecret:  os.Getenv("ADMIN_SECRET"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("RPC_URL is required")
	}
	if c.DefaultLang != "ja" && c.DefaultLang != "en" {
		return fmt.Errorf("DEFAULT_LANG must be ja or en")
	}
	if c.PayTo != "" {
		if len(c.PayTo) != 42 || c.PayTo[:2] != "0x" {
			return fmt.Errorf("X402_PAYTO must be a 0x-prefixed address")
		}
	}
	return nil
}

// PaywallEnabled reports whether the x402 paywall should gate the API
func (c *Config) PaywallEnabled() bool {
	return c.PayTo != ""
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
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
