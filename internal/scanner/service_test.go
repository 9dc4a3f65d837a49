package scanner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbrant/tokensentinel/internal/cache"
	"github.com/mbrant/tokensentinel/internal/chains"
	"github.com/mbrant/tokensentinel/internal/explain"
	"github.com/mbrant/tokensentinel/internal/providers"
)

const testAddr = "0x1234567890123456789012345678901234567890"

func newTestService(t *testing.T, security, liquidity, explorer http.HandlerFunc) *Service {
	t.Helper()

	securitySrv := httptest.NewServer(security)
	liquiditySrv := httptest.NewServer(liquidity)
	explorerSrv := httptest.NewServer(explorer)
	t.Cleanup(func() {
		securitySrv.Close()
		liquiditySrv.Close()
		explorerSrv.Close()
	})

	registry := chains.NewRegistry(chains.Overrides{
		ExplorerURLs: map[chains.ChainID]string{chains.Ethereum: explorerSrv.URL},
	})
	gw := cache.NewGateway(cache.NewMemoryStore(), cache.DefaultTTLPolicy, nil)

	return NewService(
		registry,
		gw,
		providers.NewTokenSecurityClient(securitySrv.URL, time.Second, nil, nil),
		providers.NewLiquidityClient(liquiditySrv.URL, time.Second, nil, nil),
		providers.NewExplorerClient(time.Second, nil, nil),
		explain.NewGenerator(nil, time.Second, nil),
		WithSignalTimeout(time.Second),
	)
}

func serveJSON(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func serveStatus(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}
}

const cleanSecurityBody = `{"code": 1, "result": {"` + testAddr + `": {
	"token_name": "Test Token", "token_symbol": "TST", "holder_count": "1500",
	"is_honeypot": "0", "is_open_source": "1", "buy_tax": "0.02", "sell_tax": "0.02"
}}}`

const deepLiquidityBody = `{"pairs": [
	{"dexId": "uniswap", "baseToken": {"symbol": "TST"}, "quoteToken": {"symbol": "WETH"}, "liquidity": {"usd": 250000}}
]}`

func TestAnalyzeContract_CleanToken(t *testing.T) {
	svc := newTestService(t,
		serveJSON(cleanSecurityBody),
		serveJSON(deepLiquidityBody),
		serveJSON(`{"status": "1", "result": "[...]"}`),
	)

	result, err := svc.AnalyzeContract(context.Background(), testAddr, "ethereum")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, result.RiskScore, 80)
	assert.Equal(t, LevelSafe, result.RiskLevel)
	assert.True(t, result.IsVerified)
	assert.False(t, result.Cached)
	assert.Equal(t, chains.Ethereum, result.Chain)

	require.NotNil(t, result.TokenInfo)
	assert.Equal(t, "Test Token", result.TokenInfo.Name)
	assert.Equal(t, 1500, result.TokenInfo.HolderCount)

	assert.False(t, factorByID(t, result.RiskFactors, "taxes").Detected)
	assert.Equal(t, 2.0, result.Taxes.BuyTaxPct)
	assert.False(t, result.Taxes.IsHighTax)
	assert.Equal(t, 250000.0, result.Liquidity.TotalUSD)

	assert.Equal(t, explain.ContractFallback("safe"), result.AIExplanation)
}

func TestAnalyzeContract_HoneypotUnverified(t *testing.T) {
	body := `{"code": 1, "result": {"` + testAddr + `": {"is_honeypot": "1"}}}`
	svc := newTestService(t,
		serveJSON(body),
		serveJSON(`{"pairs": []}`),
		serveJSON(`{"status": "0", "result": "Contract source code not verified"}`),
	)

	result, err := svc.AnalyzeContract(context.Background(), testAddr, "ethereum")
	require.NoError(t, err)

	assert.Equal(t, 30, result.RiskScore)
	assert.Equal(t, LevelHigh, result.RiskLevel)
	assert.False(t, result.IsVerified)
	assert.True(t, factorByID(t, result.RiskFactors, "honeypot").Detected)
	assert.True(t, factorByID(t, result.RiskFactors, "liquidity").Detected)
	assert.Equal(t, explain.ContractFallback("high"), result.AIExplanation)
}

func TestAnalyzeContract_SecondCallIsCached(t *testing.T) {
	calls := 0
	svc := newTestService(t,
		func(w http.ResponseWriter, r *http.Request) {
			calls++
			serveJSON(cleanSecurityBody)(w, r)
		},
		serveJSON(deepLiquidityBody),
		serveJSON(`{"status": "1", "result": "[...]"}`),
	)

	first, err := svc.AnalyzeContract(context.Background(), testAddr, "ethereum")
	require.NoError(t, err)
	require.False(t, first.Cached)

	second, err := svc.AnalyzeContract(context.Background(), testAddr, "ethereum")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.RiskScore, second.RiskScore)
	assert.Equal(t, 1, calls, "providers must not be called on a cache hit")
}

func TestAnalyzeContract_AllProvidersDownStillAnswers(t *testing.T) {
	svc := newTestService(t, serveStatus(502), serveStatus(502), serveStatus(502))

	result, err := svc.AnalyzeContract(context.Background(), testAddr, "ethereum")
	require.NoError(t, err)

	// Nothing detectable: neutral score, no verification adjustment.
	assert.Equal(t, 100, result.RiskScore)
	assert.False(t, result.IsVerified)
	assert.Len(t, result.RiskFactors, 7)
}

func TestAnalyzeContract_InputErrors(t *testing.T) {
	svc := newTestService(t, serveStatus(200), serveStatus(200), serveStatus(200))

	_, err := svc.AnalyzeContract(context.Background(), "not-an-address", "ethereum")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = svc.AnalyzeContract(context.Background(), testAddr, "dogechain")
	assert.ErrorIs(t, err, ErrUnsupportedChain)
}

func TestQuickCheck_Scores(t *testing.T) {
	body := `{"code": 1, "result": {"` + testAddr + `": {"is_honeypot": "1", "hidden_owner": "1"}}}`
	svc := newTestService(t, serveJSON(body), serveStatus(502), serveStatus(502))

	result, err := svc.QuickCheck(context.Background(), testAddr, "ethereum")
	require.NoError(t, err)

	assert.Equal(t, 30, result.RiskScore)
	assert.Equal(t, LevelHigh, result.RiskLevel)
	assert.True(t, result.IsHoneypot)
}

func TestQuickCheck_NeutralDefaultWhenUnavailable(t *testing.T) {
	svc := newTestService(t, serveStatus(502), serveStatus(502), serveStatus(502))

	result, err := svc.QuickCheck(context.Background(), testAddr, "ethereum")
	require.NoError(t, err)

	assert.Equal(t, 50, result.RiskScore)
	assert.Equal(t, LevelMedium, result.RiskLevel)
	assert.False(t, result.IsHoneypot)
	assert.False(t, result.Cached)
}

func TestQuickCheck_NeutralDefaultIsNotCached(t *testing.T) {
	healthy := false
	svc := newTestService(t,
		func(w http.ResponseWriter, r *http.Request) {
			if !healthy {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			serveJSON(`{"code": 1, "result": {"` + testAddr + `": {"is_honeypot": "0"}}}`)(w, r)
		},
		serveStatus(502), serveStatus(502),
	)

	degraded, err := svc.QuickCheck(context.Background(), testAddr, "ethereum")
	require.NoError(t, err)
	require.Equal(t, 50, degraded.RiskScore)

	healthy = true
	recovered, err := svc.QuickCheck(context.Background(), testAddr, "ethereum")
	require.NoError(t, err)
	assert.Equal(t, 100, recovered.RiskScore, "degraded default must not shadow a real answer")
}
