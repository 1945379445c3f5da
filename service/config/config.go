package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultScoreProgramID is the Star Atlas SCORE (fleet staking) program on mainnet.
	DefaultScoreProgramID = "FLEET1qqzpexyaDpqb2DGsSzE2sDCizewCg9WjrA6DBW"

	// DefaultAtlasMintAddress is the ATLAS token mint on mainnet.
	DefaultAtlasMintAddress = "ATLASXmbPQxBUYbxPsV97usA3fPQYEqzQBUHgiFCUsXx"

	// DefaultPriceURL is the CoinGecko simple price endpoint for ATLAS.
	DefaultPriceURL = "https://api.coingecko.com/api/v3/simple/price?ids=star-atlas&vs_currencies=usd"

	// DefaultPriceQuery extracts the USD price from the CoinGecko response.
	DefaultPriceQuery = `.["star-atlas"].usd`

	// DefaultGalaxyURL lists Star Atlas NFTs with names and images.
	DefaultGalaxyURL = "https://galaxy.staratlas.com/nfts"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Solana configuration
	SolanaRPCURLs      []string
	SolanaRPCRateLimit int // requests per second, 0 disables limiting
	ScoreProgramID     string
	AtlasMintAddress   string

	// Wallet configuration. KeypairPath is only needed for signing;
	// OwnerAddress defaults to the keypair's public key when unset.
	KeypairPath  string
	OwnerAddress string

	// External feeds
	PriceURL   string
	PriceQuery string
	GalaxyURL  string

	// Optional persistence and fan-out; empty disables them.
	DatabaseURL string
	NATSURL     string

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string

	// Signature tracking
	SignaturePollInterval time.Duration
	SignaturePollTimeout  time.Duration

	// Scheduled harvesting
	HarvestInterval time.Duration
	MinClaimAmount  uint64 // raw ATLAS base units
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Solana configuration
	cfg.SolanaRPCURLs = parseList(getEnvOrDefault("SOLANA_RPC_URLS", "https://api.mainnet-beta.solana.com"))
	if len(cfg.SolanaRPCURLs) == 0 {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URLS must contain at least one URL"))
	}

	rateLimit, err := parseInt("SOLANA_RPC_RATE_LIMIT", 2)
	if err != nil {
		errs = append(errs, err)
	} else if rateLimit < 0 {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_RATE_LIMIT cannot be negative"))
	} else {
		cfg.SolanaRPCRateLimit = rateLimit
	}

	cfg.ScoreProgramID = getEnvOrDefault("SCORE_PROGRAM_ID", DefaultScoreProgramID)
	cfg.AtlasMintAddress = getEnvOrDefault("ATLAS_MINT_ADDRESS", DefaultAtlasMintAddress)

	// Wallet configuration
	cfg.KeypairPath = os.Getenv("KEYPAIR_PATH")
	cfg.OwnerAddress = os.Getenv("OWNER_ADDRESS")

	// External feeds
	cfg.PriceURL = getEnvOrDefault("PRICE_URL", DefaultPriceURL)
	cfg.PriceQuery = getEnvOrDefault("PRICE_QUERY", DefaultPriceQuery)
	cfg.GalaxyURL = getEnvOrDefault("GALAXY_URL", DefaultGalaxyURL)

	// Persistence and fan-out
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NATSURL = os.Getenv("NATS_URL")

	// Temporal configuration
	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "atlasclaim-harvest")

	// Signature tracking
	pollInterval, err := parseDuration("SIGNATURE_POLL_INTERVAL", "2s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SignaturePollInterval = pollInterval
	}

	pollTimeout, err := parseDuration("SIGNATURE_POLL_TIMEOUT", "2m")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SignaturePollTimeout = pollTimeout
	}

	if cfg.SignaturePollInterval > cfg.SignaturePollTimeout {
		errs = append(errs, fmt.Errorf("SIGNATURE_POLL_INTERVAL (%v) cannot be greater than SIGNATURE_POLL_TIMEOUT (%v)",
			cfg.SignaturePollInterval, cfg.SignaturePollTimeout))
	}

	// Scheduled harvesting
	harvestInterval, err := parseDuration("HARVEST_INTERVAL", "24h")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.HarvestInterval = harvestInterval
	}

	minClaim, err := parseUint("MIN_CLAIM_AMOUNT", 0)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.MinClaimAmount = minClaim
	}

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if len(c.SolanaRPCURLs) == 0 {
		errs = append(errs, fmt.Errorf("SolanaRPCURLs is required"))
	}

	if c.ScoreProgramID == "" {
		errs = append(errs, fmt.Errorf("ScoreProgramID is required"))
	}

	if c.AtlasMintAddress == "" {
		errs = append(errs, fmt.Errorf("AtlasMintAddress is required"))
	}

	if c.PriceURL == "" {
		errs = append(errs, fmt.Errorf("PriceURL is required"))
	}

	if c.TemporalHost == "" {
		errs = append(errs, fmt.Errorf("TemporalHost is required"))
	}

	if c.TemporalTaskQueue == "" {
		errs = append(errs, fmt.Errorf("TemporalTaskQueue is required"))
	}

	if c.SignaturePollInterval <= 0 {
		errs = append(errs, fmt.Errorf("SignaturePollInterval must be positive"))
	}

	if c.SignaturePollInterval > c.SignaturePollTimeout {
		errs = append(errs, fmt.Errorf("SignaturePollInterval cannot be greater than SignaturePollTimeout"))
	}

	if c.HarvestInterval < time.Minute {
		errs = append(errs, fmt.Errorf("HarvestInterval must be at least 1 minute"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// RequireOwner returns an error unless an owner can be determined,
// either directly or from the signing keypair.
func (c *Config) RequireOwner() error {
	if c.OwnerAddress == "" && c.KeypairPath == "" {
		return fmt.Errorf("OWNER_ADDRESS or KEYPAIR_PATH is required")
	}
	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

func parseUint(key string, defaultValue uint64) (uint64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid unsigned integer %q: %w", key, value, err)
	}
	return result, nil
}

// parseList splits a comma separated value, dropping blanks.
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
