package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string

	// Price feed settings. The feed serves batched symbol->USD lookups; on
	// failure the oracle substitutes per-symbol fallback prices.
	PriceFeedURL     string
	PriceFeedTimeout time.Duration
	PriceCacheTTL    time.Duration

	// Quotes older than this window must be recomputed before execution.
	QuoteFreshness time.Duration

	// Chain registry file (viper). Read once at startup; chain parameters are
	// economic decisions and never mutate at runtime.
	ChainsConfigPath string

	// Settlement chain consolidating payment proofs from all source chains.
	SettlementChainID string
	CollectionAddress string
	BridgeEndpoint    string
	BridgeTimeout     time.Duration

	VerifyPollInterval time.Duration
	VerifyTimeout      time.Duration

	// Per-user payment submission limit. Enforced only when Redis is
	// configured; tokens refill at PaymentRatePerSec up to PaymentRateBurst.
	PaymentRatePerSec float64
	PaymentRateBurst  int

	// Platform wallet credentials per chain family. Empty keys leave the
	// family's adapter in read-only mode; sends then fail fast.
	EVMSignerKey    string
	SolanaSignerKey string
	CosmosSignerKey string
	CosmosFeeDenom  string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "solace"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "solace"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		PriceFeedURL:     getenv("PRICE_FEED_URL", "https://api.coingecko.com/api/v3"),
		PriceFeedTimeout: getenvDuration("PRICE_FEED_TIMEOUT", 10*time.Second),
		PriceCacheTTL:    getenvDuration("PRICE_CACHE_TTL", 5*time.Minute),

		QuoteFreshness: getenvDuration("QUOTE_FRESHNESS", 5*time.Minute),

		ChainsConfigPath: getenv("CHAINS_CONFIG_PATH", ""),

		SettlementChainID: getenv("SETTLEMENT_CHAIN_ID", "polygon"),
		CollectionAddress: getenv("COLLECTION_ADDRESS", ""),
		BridgeEndpoint:    getenv("BRIDGE_ENDPOINT", ""),
		BridgeTimeout:     getenvDuration("BRIDGE_TIMEOUT", 15*time.Second),

		VerifyPollInterval: getenvDuration("VERIFY_POLL_INTERVAL", 5*time.Second),
		VerifyTimeout:      getenvDuration("VERIFY_TIMEOUT", 10*time.Minute),

		PaymentRatePerSec: getenvFloat("PAYMENT_RATE_PER_SEC", 0.2),
		PaymentRateBurst:  getenvInt("PAYMENT_RATE_BURST", 3),

		EVMSignerKey:    getenv("EVM_SIGNER_KEY", ""),
		SolanaSignerKey: getenv("SOLANA_SIGNER_KEY", ""),
		CosmosSignerKey: getenv("COSMOS_SIGNER_KEY", ""),
		CosmosFeeDenom:  getenv("COSMOS_FEE_DENOM", "uatom"),
	}
}

var Module = fx.Module("config",
	fx.Provide(Load),
)

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
