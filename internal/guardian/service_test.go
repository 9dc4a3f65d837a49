package guardian

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbrant/tokensentinel/internal/cache"
	"github.com/mbrant/tokensentinel/internal/chains"
	"github.com/mbrant/tokensentinel/internal/explain"
	"github.com/mbrant/tokensentinel/internal/providers"
)

const (
	testWallet    = "0xbbbb567890123456789012345678901234567890"
	uniswapRouter = "0x7a250d5630b4cf539739df2c5dacb4c659f2488d"
	shadySpender  = "0xcccc567890123456789012345678901234567890"
	scamSpender   = "0xeeee567890123456789012345678901234567890"
)

func makeTransfers(addrs ...string) []providers.TokenTransfer {
	out := make([]providers.TokenTransfer, len(addrs))
	for i, a := range addrs {
		out[i] = providers.TokenTransfer{
			TokenAddress: strings.ToLower(common.HexToAddress(a).Hex()),
			TokenName:    "Token " + a,
			TokenSymbol:  "TK",
		}
	}
	return out
}

// fakeReader serves canned approval events per token.
type fakeReader struct {
	events map[common.Address][]ApprovalEvent
	err    error
}

func (f *fakeReader) ApprovalEvents(_ context.Context, token, _ common.Address) ([]ApprovalEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.events[token], nil
}

// explorerHandler serves tokentx history and getabi verification from
// one stub; only the addresses in verified answer as verified contracts.
func explorerHandler(transfers []providers.TokenTransfer, verified ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") == "getabi" {
			status := "0"
			for _, v := range verified {
				if strings.EqualFold(r.URL.Query().Get("address"), v) {
					status = "1"
				}
			}
			fmt.Fprintf(w, `{"status": %q, "result": "[]"}`, status)
			return
		}
		var b strings.Builder
		b.WriteString(`{"status": "1", "result": [`)
		for i, tr := range transfers {
			if i > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b,
				`{"contractAddress": %q, "tokenName": %q, "tokenSymbol": %q, "timeStamp": "1700000000"}`,
				tr.TokenAddress, tr.TokenName, tr.TokenSymbol)
		}
		b.WriteString(`]}`)
		w.Write([]byte(b.String()))
	}
}

func reputationHandler(scamAddrs ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flagged := "0"
		for _, a := range scamAddrs {
			if strings.Contains(r.URL.Path, strings.ToLower(a)) {
				flagged = "1"
			}
		}
		fmt.Fprintf(w, `{"code": 1, "result": {"phishing_activities": %q}}`, flagged)
	}
}

func newTestScanService(t *testing.T, explorer, reputation http.HandlerFunc, reader LogReader) *Service {
	t.Helper()

	explorerSrv := httptest.NewServer(explorer)
	reputationSrv := httptest.NewServer(reputation)
	t.Cleanup(func() {
		explorerSrv.Close()
		reputationSrv.Close()
	})

	registry := chains.NewRegistry(chains.Overrides{
		ExplorerURLs: map[chains.ChainID]string{chains.Ethereum: explorerSrv.URL},
	})
	gw := cache.NewGateway(cache.NewMemoryStore(), cache.DefaultTTLPolicy, nil)

	return NewService(
		registry,
		gw,
		providers.NewExplorerClient(time.Second, nil, nil),
		providers.NewReputationClient(reputationSrv.URL, time.Second, nil, nil),
		explain.NewGenerator(nil, time.Second, nil),
		WithReaderFactory(func(chains.Config) (LogReader, error) { return reader, nil }),
		WithSignalTimeout(time.Second),
	)
}

func approvalEvent(token common.Address, spender string, value *big.Int, age time.Duration, block uint64) ApprovalEvent {
	return ApprovalEvent{
		Type:        ApprovalERC20,
		Token:       token,
		Owner:       common.HexToAddress(testWallet),
		Spender:     common.HexToAddress(spender),
		Value:       value,
		Approved:    value.Sign() > 0,
		TxHash:      common.HexToHash("0x01"),
		BlockNumber: block,
		Timestamp:   time.Now().Add(-age).UTC(),
	}
}

func TestScanWallet(t *testing.T) {
	tokenA := common.HexToAddress("0xa001567890123456789012345678901234567890")
	tokenB := common.HexToAddress("0xa002567890123456789012345678901234567890")

	reader := &fakeReader{events: map[common.Address][]ApprovalEvent{
		// Unlimited, over a year old, unknown spender: 45, high.
		tokenA: {approvalEvent(tokenA, shadySpender, math.MaxBig256, 400*24*time.Hour, 10)},
		// Bounded, fresh, trusted router: 100, low.
		tokenB: {approvalEvent(tokenB, uniswapRouter, big.NewInt(5000), 24*time.Hour, 20)},
	}}

	svc := newTestScanService(t,
		explorerHandler(makeTransfers(tokenA.Hex(), tokenB.Hex()), uniswapRouter),
		reputationHandler(),
		reader,
	)

	result, err := svc.ScanWallet(context.Background(), testWallet, "ethereum")
	require.NoError(t, err)

	require.Len(t, result.Approvals, 2)
	require.Len(t, result.Risks, 2)
	assert.False(t, result.Cached)
	assert.NotEmpty(t, result.ScanID)
	assert.Equal(t, chains.Ethereum, result.Chain)

	// Each risk entry references its approval.
	approvalIDs := map[string]bool{}
	for _, ap := range result.Approvals {
		approvalIDs[ap.ID] = true
	}
	byspender := map[string]ApprovalRisk{}
	for _, risk := range result.Risks {
		assert.True(t, approvalIDs[risk.ApprovalID])
		byspender[risk.Spender] = risk
	}

	shady := byspender[shadySpender]
	assert.Equal(t, 45, shady.RiskScore)
	assert.Equal(t, LevelHigh, shady.RiskLevel)
	assert.Equal(t, ReputationSuspicious, shady.Reputation)
	assert.Equal(t, RecommendConsiderRevoke, shady.Recommendation)
	assert.True(t, shady.Unlimited)
	assert.False(t, shady.KnownScam)
	assert.False(t, shady.ContractVerified)
	assert.False(t, shady.RecentDrains)
	assert.GreaterOrEqual(t, shady.AgeDays, 399)

	trusted := byspender[uniswapRouter]
	assert.Equal(t, 100, trusted.RiskScore)
	assert.Equal(t, LevelLow, trusted.RiskLevel)
	assert.Equal(t, ReputationTrusted, trusted.Reputation)
	assert.Equal(t, RecommendSafe, trusted.Recommendation)
	assert.Equal(t, "Uniswap V2 Router", trusted.SpenderName)
	assert.True(t, trusted.ContractVerified)

	// 100 - 15 (one high) = 85 -> B
	assert.Equal(t, 85, result.Security.Score)
	assert.Equal(t, "B", result.Security.Grade)
	assert.Equal(t, 2, result.Security.Total)
	assert.Equal(t, explain.WalletFallback("B"), result.Summary)
}

func TestScanWallet_ScamSpender(t *testing.T) {
	token := common.HexToAddress("0xa001567890123456789012345678901234567890")
	reader := &fakeReader{events: map[common.Address][]ApprovalEvent{
		token: {approvalEvent(token, scamSpender, big.NewInt(100), time.Hour, 10)},
	}}

	svc := newTestScanService(t,
		explorerHandler(makeTransfers(token.Hex())),
		reputationHandler(scamSpender),
		reader,
	)

	result, err := svc.ScanWallet(context.Background(), testWallet, "ethereum")
	require.NoError(t, err)

	require.Len(t, result.Risks, 1)
	a := result.Risks[0]
	// 100 - 50 (scam) - 10 (unresolved) = 40, high.
	assert.Equal(t, 40, a.RiskScore)
	assert.Equal(t, LevelHigh, a.RiskLevel)
	assert.True(t, a.KnownScam)
	assert.Equal(t, ReputationMalicious, a.Reputation)
	assert.Equal(t, RecommendRevokeNow, a.Recommendation)
}

func TestScanWallet_EmptyHistory(t *testing.T) {
	svc := newTestScanService(t,
		explorerHandler(nil),
		reputationHandler(),
		&fakeReader{},
	)

	result, err := svc.ScanWallet(context.Background(), testWallet, "ethereum")
	require.NoError(t, err)

	assert.Empty(t, result.Approvals)
	assert.Empty(t, result.Risks)
	assert.Equal(t, 100, result.Security.Score)
	assert.Equal(t, "A", result.Security.Grade)
	assert.Equal(t, 0, result.Security.Total)
}

func TestScanWallet_SecondScanIsCached(t *testing.T) {
	calls := 0
	token := common.HexToAddress("0xa001567890123456789012345678901234567890")
	explorer := func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") == "tokentx" {
			calls++
		}
		explorerHandler(makeTransfers(token.Hex()))(w, r)
	}
	reader := &fakeReader{events: map[common.Address][]ApprovalEvent{
		token: {approvalEvent(token, shadySpender, big.NewInt(100), time.Hour, 10)},
	}}

	svc := newTestScanService(t, explorer, reputationHandler(), reader)

	first, err := svc.ScanWallet(context.Background(), testWallet, "ethereum")
	require.NoError(t, err)

	second, err := svc.ScanWallet(context.Background(), testWallet, "ethereum")
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.Equal(t, first.ScanID, second.ScanID)
	assert.Equal(t, 1, calls, "explorer must not be called on a cache hit")
}

func TestScanWallet_ExplorerDown(t *testing.T) {
	svc := newTestScanService(t,
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) },
		reputationHandler(),
		&fakeReader{},
	)

	_, err := svc.ScanWallet(context.Background(), testWallet, "ethereum")
	assert.ErrorIs(t, err, ErrScanUnavailable)
}

func TestScanWallet_ReputationDownIsNotScam(t *testing.T) {
	token := common.HexToAddress("0xa001567890123456789012345678901234567890")
	reader := &fakeReader{events: map[common.Address][]ApprovalEvent{
		token: {approvalEvent(token, shadySpender, big.NewInt(100), time.Hour, 10)},
	}}

	svc := newTestScanService(t,
		explorerHandler(makeTransfers(token.Hex())),
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) },
		reader,
	)

	result, err := svc.ScanWallet(context.Background(), testWallet, "ethereum")
	require.NoError(t, err)

	require.Len(t, result.Risks, 1)
	assert.Equal(t, ReputationUnknown, result.Risks[0].Reputation)
	assert.False(t, result.Risks[0].KnownScam)
	assert.NotEqual(t, RecommendRevokeNow, result.Risks[0].Recommendation)
}

func TestScanWallet_TokenLogFailureSkipsToken(t *testing.T) {
	tokenA := common.HexToAddress("0xa001567890123456789012345678901234567890")
	tokenB := common.HexToAddress("0xa002567890123456789012345678901234567890")

	// Only tokenB has events; reads for tokenA return nothing.
	reader := &fakeReader{events: map[common.Address][]ApprovalEvent{
		tokenB: {approvalEvent(tokenB, shadySpender, big.NewInt(100), time.Hour, 10)},
	}}

	svc := newTestScanService(t,
		explorerHandler(makeTransfers(tokenA.Hex(), tokenB.Hex())),
		reputationHandler(),
		reader,
	)

	result, err := svc.ScanWallet(context.Background(), testWallet, "ethereum")
	require.NoError(t, err)
	assert.Len(t, result.Approvals, 1)
	assert.Len(t, result.Risks, 1)
}

func TestScanWallet_InputErrors(t *testing.T) {
	svc := newTestScanService(t, explorerHandler(nil), reputationHandler(), &fakeReader{})

	_, err := svc.ScanWallet(context.Background(), "nope", "ethereum")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = svc.ScanWallet(context.Background(), testWallet, "dogechain")
	assert.ErrorIs(t, err, ErrUnsupportedChain)
}
