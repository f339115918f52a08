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

	// Chain (RPC, contract and signer) configuration
	Chain ChainConfig

	// Pinata pinning service configuration
	Pinata PinataConfig

	// Retry policy for the contract connection step
	Retry RetryConfig

	// Fan-out limits for article reads
	Fanout FanoutConfig

	// Orphaned pin cleanup
	Reconciler ReconcilerConfig

	// Browser session cookie
	Session SessionConfig

	// Logging configuration
	Log LogConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// WriteOpTimeout bounds a single publish/purchase/tip including confirmation
	WriteOpTimeout time.Duration
	MaxUploadSize  int64 // in bytes
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// ChainConfig holds the contract gateway settings
type ChainConfig struct {
	RPCURL            string
	ContractAddress   string
	PrivateKey        string // hex, without 0x
	KeystorePath      string
	KeystorePassword  string
	GasLimit          uint64
	SupportedChainIDs []int64
}

// PinataConfig holds pinning service credentials and endpoints
type PinataConfig struct {
	APIURL     string
	GatewayURL string
	APIKey     string
	APISecret  string
	JWT        string
	Timeout    time.Duration
}

// RetryConfig holds the bounded retry policy
type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
}

// FanoutConfig holds the limits for batch reads
type FanoutConfig struct {
	Concurrency int
	// MaxArticles caps how many of the newest article ids one scan reads
	MaxArticles uint64
}

// ReconcilerConfig holds the pin cleanup settings
type ReconcilerConfig struct {
	Interval    time.Duration
	GracePeriod time.Duration
	PendingTTL  time.Duration
	BatchSize   int
}

// SessionConfig holds cookie store settings
type SessionConfig struct {
	Name   string
	Secret string
	// MaxIdle drops wallet sessions not seen for this long
	MaxIdle time.Duration
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
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 300*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			WriteOpTimeout:  getDurationEnv("WRITE_OP_TIMEOUT", 3*time.Minute),
			MaxUploadSize:   getInt64Env("MAX_UPLOAD_SIZE", 25*1024*1024), // 25MB
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Name:         getEnv("DB_NAME", "ales"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getIntEnv("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getDurationEnv("DB_MAX_LIFETIME", 5*time.Minute),
		},
		Chain: ChainConfig{
			RPCURL:            getEnv("CHAIN_RPC_URL", ""),
			ContractAddress:   getEnv("CONTRACT_ADDRESS", "0x2C7061B0942F4D0859988Ffa631cc188131E1fC1"),
			PrivateKey:        strings.TrimPrefix(getEnv("WALLET_PRIVATE_KEY", ""), "0x"),
			KeystorePath:      getEnv("WALLET_KEYSTORE_PATH", ""),
			KeystorePassword:  getEnv("WALLET_KEYSTORE_PASSWORD", ""),
			GasLimit:          uint64(getInt64Env("TX_GAS_LIMIT", 500000)),
			SupportedChainIDs: getInt64ListEnv("SUPPORTED_CHAIN_IDS", []int64{137, 11155111}),
		},
		Pinata: PinataConfig{
			APIURL:     strings.TrimRight(getEnv("PINATA_API_URL", "https://api.pinata.cloud"), "/"),
			GatewayURL: strings.TrimRight(getEnv("PINATA_GATEWAY_URL", "https://gateway.pinata.cloud"), "/"),
			APIKey:     getEnv("PINATA_API_KEY", ""),
			APISecret:  getEnv("PINATA_SECRET_API_KEY", ""),
			JWT:        getEnv("PINATA_JWT", ""),
			Timeout:    getDurationEnv("PINATA_TIMEOUT", 60*time.Second),
		},
		Retry: RetryConfig{
			MaxAttempts: getIntEnv("CONNECT_MAX_ATTEMPTS", 3),
			Delay:       getDurationEnv("CONNECT_RETRY_DELAY", 2*time.Second),
		},
		Fanout: FanoutConfig{
			Concurrency: getIntEnv("FANOUT_CONCURRENCY", 8),
			MaxArticles: uint64(max(getInt64Env("MAX_ARTICLES", 10000), 0)),
		},
		Reconciler: ReconcilerConfig{
			Interval:    getDurationEnv("RECONCILE_INTERVAL", time.Minute),
			GracePeriod: getDurationEnv("ORPHAN_GRACE_PERIOD", 10*time.Minute),
			PendingTTL:  getDurationEnv("PENDING_PIN_TTL", 24*time.Hour),
			BatchSize:   getIntEnv("RECONCILE_BATCH_SIZE", 50),
		},
		Session: SessionConfig{
			Name:    getEnv("SESSION_NAME", "ales_session"),
			Secret:  getEnv("SESSION_SECRET", ""),
			MaxIdle: getDurationEnv("SESSION_MAX_IDLE", 24*time.Hour),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", defaultLogFormat()),
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
	if c.Chain.ContractAddress == "" {
		return fmt.Errorf("CONTRACT_ADDRESS is required")
	}
	if c.Session.Secret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("CONNECT_MAX_ATTEMPTS must be at least 1")
	}
	if c.Fanout.Concurrency < 1 {
		return fmt.Errorf("FANOUT_CONCURRENCY must be at least 1")
	}
	if c.Fanout.MaxArticles < 1 {
		return fmt.Errorf("MAX_ARTICLES must be at least 1")
	}
	if c.Reconciler.Interval <= 0 {
		return fmt.Errorf("RECONCILE_INTERVAL must be positive")
	}
	if c.Reconciler.BatchSize < 1 {
		return fmt.Errorf("RECONCILE_BATCH_SIZE must be at least 1")
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

// HasSigner reports whether a signing key source is configured.
// Without one the wallet provider counts as absent.
func (c *ChainConfig) HasSigner() bool {
	return c.PrivateKey != "" || c.KeystorePath != ""
}

// Helper functions for environment variable parsing

// defaultLogFormat is pretty in development and JSON elsewhere
func defaultLogFormat() string {
	if os.Getenv("ENV") == "development" {
		return "pretty"
	}
	return "json"
}

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

// getInt64ListEnv parses a comma separated list, falling back to the default
// if any element is malformed.
func getInt64ListEnv(key string, defaultValue []int64) []int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []int64
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return defaultValue
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
