// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/mbrant/tokensentinel/internal/chains"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Provider endpoints. Base URLs are overridable so deployments and
	// tests can point at mirrors or stubs.
	TokenSecurityURL string
	LiquidityURL     string
	ReputationURL    string

	// Per-chain explorer API keys and RPC URLs
	ExplorerKeys map[chains.ChainID]string
	RPCURLs      map[chains.ChainID]string

	// Per-call timeout for outbound provider requests
	ProviderTimeout time.Duration

	// Explanation generation
	ExplainAPIKey  string
	ExplainBaseURL string
	ExplainModel   string
	ExplainTimeout time.Duration

	// Cache
	CachePath       string // bbolt file; empty = in-memory
	FullAnalysisTTL time.Duration
	QuickCheckTTL   time.Duration
	WalletScanTTL   time.Duration

	// Tracing
	OTLPEndpoint string
}

// Defaults
const (
	DefaultPort             = "8080"
	DefaultEnv              = "development"
	DefaultLogLevel         = "info"
	DefaultTokenSecurityURL = "https://api.gopluslabs.io/api/v1"
	DefaultLiquidityURL     = "https://api.dexscreener.com/latest/dex"
	DefaultExplainBaseURL   = "https://api.openai.com/v1"
	DefaultExplainModel     = "gpt-4o-mini"
	DefaultProviderTimeout  = 8 * time.Second
	DefaultExplainTimeout   = 10 * time.Second
	DefaultFullAnalysisTTL  = time.Hour
	DefaultQuickCheckTTL    = 5 * time.Minute
	DefaultWalletScanTTL    = 10 * time.Minute
)

// explorerKeyEnv maps chain ids to their explorer API key variables.
var explorerKeyEnv = map[chains.ChainID]string{
	chains.Ethereum: "ETHERSCAN_API_KEY",
	chains.BSC:      "BSCSCAN_API_KEY",
	chains.Polygon:  "POLYGONSCAN_API_KEY",
	chains.Arbitrum: "ARBISCAN_API_KEY",
	chains.Base:     "BASESCAN_API_KEY",
}

// rpcURLEnv maps chain ids to their RPC endpoint variables.
var rpcURLEnv = map[chains.ChainID]string{
	chains.Ethereum: "ETH_RPC_URL",
	chains.BSC:      "BSC_RPC_URL",
	chains.Polygon:  "POLYGON_RPC_URL",
	chains.Arbitrum: "ARBITRUM_RPC_URL",
	chains.Base:     "BASE_RPC_URL",
}

// Load reads configuration from environment variables.
// It loads .env file if present (for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", DefaultPort),
		Env:              getEnv("ENV", DefaultEnv),
		LogLevel:         getEnv("LOG_LEVEL", DefaultLogLevel),
		TokenSecurityURL: getEnv("TOKEN_SECURITY_URL", DefaultTokenSecurityURL),
		LiquidityURL:     getEnv("LIQUIDITY_URL", DefaultLiquidityURL),
		ReputationURL:    getEnv("REPUTATION_URL", DefaultTokenSecurityURL),
		ExplorerKeys:     make(map[chains.ChainID]string),
		RPCURLs:          make(map[chains.ChainID]string),
		ProviderTimeout:  getEnvDuration("PROVIDER_TIMEOUT", DefaultProviderTimeout),
		ExplainAPIKey:    os.Getenv("EXPLAIN_API_KEY"),
		ExplainBaseURL:   getEnv("EXPLAIN_BASE_URL", DefaultExplainBaseURL),
		ExplainModel:     getEnv("EXPLAIN_MODEL", DefaultExplainModel),
		ExplainTimeout:   getEnvDuration("EXPLAIN_TIMEOUT", DefaultExplainTimeout),
		CachePath:        os.Getenv("CACHE_PATH"), // Optional, uses in-memory if not set
		FullAnalysisTTL:  getEnvDuration("FULL_ANALYSIS_TTL", DefaultFullAnalysisTTL),
		QuickCheckTTL:    getEnvDuration("QUICK_CHECK_TTL", DefaultQuickCheckTTL),
		WalletScanTTL:    getEnvDuration("WALLET_SCAN_TTL", DefaultWalletScanTTL),
		OTLPEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	for id, envName := range explorerKeyEnv {
		if v := os.Getenv(envName); v != "" {
			cfg.ExplorerKeys[id] = v
		}
	}
	for id, envName := range rpcURLEnv {
		if v := os.Getenv(envName); v != "" {
			cfg.RPCURLs[id] = v
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.TokenSecurityURL == "" {
		return fmt.Errorf("TOKEN_SECURITY_URL cannot be empty")
	}
	if c.LiquidityURL == "" {
		return fmt.Errorf("LIQUIDITY_URL cannot be empty")
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	}
	if c.FullAnalysisTTL <= 0 || c.QuickCheckTTL <= 0 || c.WalletScanTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	return nil
}

// Registry builds the chain registry from this configuration.
func (c *Config) Registry() *chains.Registry {
	return chains.NewRegistry(chains.Overrides{
		ExplorerKeys: c.ExplorerKeys,
		RPCURLs:      c.RPCURLs,
	})
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
