package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbrant/tokensentinel/internal/chains"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultTokenSecurityURL, cfg.TokenSecurityURL)
	assert.Equal(t, DefaultLiquidityURL, cfg.LiquidityURL)
	assert.Equal(t, DefaultProviderTimeout, cfg.ProviderTimeout)
	assert.Equal(t, DefaultFullAnalysisTTL, cfg.FullAnalysisTTL)
	assert.Equal(t, DefaultExplainModel, cfg.ExplainModel)
}

func TestLoad_Overrides(t *testing.T) {
	setEnv(t, "PORT", "9090")
	setEnv(t, "TOKEN_SECURITY_URL", "http://localhost:7001")
	setEnv(t, "PROVIDER_TIMEOUT", "3s")
	setEnv(t, "QUICK_CHECK_TTL", "120")
	setEnv(t, "ETHERSCAN_API_KEY", "testkey")
	setEnv(t, "ETH_RPC_URL", "http://localhost:8545")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "http://localhost:7001", cfg.TokenSecurityURL)
	assert.Equal(t, 3*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 120*time.Second, cfg.QuickCheckTTL)
	assert.Equal(t, "testkey", cfg.ExplorerKeys[chains.Ethereum])
	assert.Equal(t, "http://localhost:8545", cfg.RPCURLs[chains.Ethereum])
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		TokenSecurityURL: DefaultTokenSecurityURL,
		LiquidityURL:     DefaultLiquidityURL,
		ProviderTimeout:  DefaultProviderTimeout,
		FullAnalysisTTL:  DefaultFullAnalysisTTL,
		QuickCheckTTL:    DefaultQuickCheckTTL,
		WalletScanTTL:    DefaultWalletScanTTL,
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid config", func(c *Config) {}, ""},
		{"missing security url", func(c *Config) { c.TokenSecurityURL = "" }, "TOKEN_SECURITY_URL"},
		{"missing liquidity url", func(c *Config) { c.LiquidityURL = "" }, "LIQUIDITY_URL"},
		{"zero provider timeout", func(c *Config) { c.ProviderTimeout = 0 }, "PROVIDER_TIMEOUT"},
		{"zero ttl", func(c *Config) { c.QuickCheckTTL = 0 }, "TTLs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_Registry(t *testing.T) {
	cfg := Config{
		ExplorerKeys: map[chains.ChainID]string{chains.Ethereum: "abc"},
		RPCURLs:      map[chains.ChainID]string{chains.Base: "http://localhost:8545"},
	}
	reg := cfg.Registry()

	eth, ok := reg.Get(chains.Ethereum)
	require.True(t, ok)
	assert.Equal(t, "abc", eth.ExplorerKey)

	base, ok := reg.Get(chains.Base)
	require.True(t, ok)
	assert.Equal(t, "http://localhost:8545", base.RPCURL)
}

func TestConfig_IsDevelopment(t *testing.T) {
	cfg := &Config{Env: "development"}
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	cfg.Env = "production"
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.IsProduction())
}

func TestGetEnv(t *testing.T) {
	setEnv(t, "TEST_VAR", "custom_value")

	assert.Equal(t, "custom_value", getEnv("TEST_VAR", "default"))
	assert.Equal(t, "default", getEnv("NONEXISTENT_VAR", "default"))
}

func TestGetEnvDuration(t *testing.T) {
	setEnv(t, "TEST_DUR", "90s")
	setEnv(t, "TEST_SECS", "45")
	setEnv(t, "TEST_INVALID", "not_a_duration")

	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_DUR", time.Second))
	assert.Equal(t, 45*time.Second, getEnvDuration("TEST_SECS", time.Second))
	assert.Equal(t, time.Second, getEnvDuration("TEST_INVALID", time.Second)) // Falls back on parse error
	assert.Equal(t, time.Minute, getEnvDuration("NONEXISTENT", time.Minute))
}
