package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Chain
	ChainRPCURL        string
	ChainID            int64
	SettlementContract string

	// Intent attestation
	SIWEDomain string
	SIWEURI    string

	// WebSocket
	WSPingInterval   time.Duration
	WSPongTimeout    time.Duration
	WSWriteTimeout   time.Duration
	WSMaxMessageSize int64
	WSSendBufferSize int

	// Per-connection rate limiting
	RateLimit float64
	RateBurst int

	// Auction lifecycle
	AuctionTTL       time.Duration
	AuctionRetention time.Duration
	SweepInterval    time.Duration
	AuctionMinLegs   int
	AllowUnsigned    bool

	// Nonce oracle
	NonceCacheTTL time.Duration

	// RPC breaker
	RPCBreakerThreshold int
	RPCBreakerCooldown  time.Duration

	// Storage
	StorageMode  string // "postgres" or "console"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		// Chain defaults
		ChainRPCURL:        os.Getenv("CHAIN_RPC_URL"),
		ChainID:            getInt64OrDefault("CHAIN_ID", 8453),
		SettlementContract: os.Getenv("SETTLEMENT_CONTRACT"),

		// Attestation defaults
		SIWEDomain: getEnvOrDefault("SIWE_DOMAIN", "relay.parlaymkt.io"),
		SIWEURI:    getEnvOrDefault("SIWE_URI", "https://relay.parlaymkt.io"),

		// WebSocket defaults
		WSPingInterval:   getDurationOrDefault("WS_PING_INTERVAL", 10*time.Second),
		WSPongTimeout:    getDurationOrDefault("WS_PONG_TIMEOUT", 15*time.Second),
		WSWriteTimeout:   getDurationOrDefault("WS_WRITE_TIMEOUT", 5*time.Second),
		WSMaxMessageSize: int64(getIntOrDefault("WS_MAX_MESSAGE_SIZE", 65536)),
		WSSendBufferSize: getIntOrDefault("WS_SEND_BUFFER_SIZE", 256),

		// Rate limit defaults
		RateLimit: getFloat64OrDefault("RATE_LIMIT_PER_SECOND", 20.0),
		RateBurst: getIntOrDefault("RATE_LIMIT_BURST", 40),

		// Auction defaults
		AuctionTTL:       getDurationOrDefault("AUCTION_TTL", 30*time.Second),
		AuctionRetention: getDurationOrDefault("AUCTION_RETENTION", 5*time.Minute),
		SweepInterval:    getDurationOrDefault("SWEEP_INTERVAL", 500*time.Millisecond),
		AuctionMinLegs:   getIntOrDefault("AUCTION_MIN_LEGS", 1),
		AllowUnsigned:    getBoolOrDefault("ALLOW_UNSIGNED", false),

		// Nonce oracle defaults
		NonceCacheTTL: getDurationOrDefault("NONCE_CACHE_TTL", 10*time.Second),

		// RPC breaker defaults
		RPCBreakerThreshold: getIntOrDefault("RPC_BREAKER_THRESHOLD", 5),
		RPCBreakerCooldown:  getDurationOrDefault("RPC_BREAKER_COOLDOWN", 30*time.Second),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "relayer"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "relayer123"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "auction_relayer"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.SettlementContract != "" && !common.IsHexAddress(c.SettlementContract) {
		return fmt.Errorf("SETTLEMENT_CONTRACT is not a hex address: %q", c.SettlementContract)
	}

	if c.ChainID <= 0 {
		return fmt.Errorf("CHAIN_ID must be positive, got %d", c.ChainID)
	}

	if c.AuctionTTL <= 0 {
		return fmt.Errorf("AUCTION_TTL must be positive, got %s", c.AuctionTTL)
	}

	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}

	if c.AuctionMinLegs < 1 {
		return fmt.Errorf("AUCTION_MIN_LEGS must be at least 1, got %d", c.AuctionMinLegs)
	}

	if c.StorageMode != "console" && c.StorageMode != "postgres" {
		return fmt.Errorf("STORAGE_MODE must be 'console' or 'postgres', got %q", c.StorageMode)
	}

	return nil
}

// ChainIDBig returns the chain id as the big integer the typed-data domain
// expects.
func (c *Config) ChainIDBig() *big.Int {
	return big.NewInt(c.ChainID)
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
