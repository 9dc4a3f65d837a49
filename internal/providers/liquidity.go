package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mbrant/tokensentinel/internal/circuitbreaker"
)

const liquidityProvider = "liquidity"

// TradingPair is one DEX pair for a token.
type TradingPair struct {
	DexID        string  `json:"dexId"`
	PairLabel    string  `json:"pair"`
	LiquidityUSD float64 `json:"liquidityUsd"`
}

// LiquiditySnapshot is the set of trading pairs found for a token. An
// empty pair list is a meaningful result: no liquidity exists.
type LiquiditySnapshot struct {
	Pairs []TradingPair `json:"pairs"`
}

// TotalUSD sums liquidity across all pairs.
func (s *LiquiditySnapshot) TotalUSD() float64 {
	var total float64
	for _, p := range s.Pairs {
		total += p.LiquidityUSD
	}
	return total
}

// LiquidityClient fetches DEX trading pairs from a DexScreener-compatible
// API.
type LiquidityClient struct {
	baseURL string
	client  *http.Client
	breaker *circuitbreaker.Breaker
	logger  *slog.Logger
}

// NewLiquidityClient creates the client. breaker may be nil.
func NewLiquidityClient(baseURL string, timeout time.Duration, breaker *circuitbreaker.Breaker, logger *slog.Logger) *LiquidityClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &LiquidityClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient(timeout),
		breaker: breaker,
		logger:  logger,
	}
}

type liquidityResponse struct {
	Pairs []struct {
		DexID     string `json:"dexId"`
		BaseToken struct {
			Symbol string `json:"symbol"`
		} `json:"baseToken"`
		QuoteToken struct {
			Symbol string `json:"symbol"`
		} `json:"quoteToken"`
		Liquidity struct {
			USD float64 `json:"usd"`
		} `json:"liquidity"`
	} `json:"pairs"`
}

// Fetch returns the liquidity snapshot for a token, or ErrUnavailable.
// A provider answer with zero pairs yields an empty (non-nil) snapshot.
func (c *LiquidityClient) Fetch(ctx context.Context, addr string) (*LiquiditySnapshot, error) {
	if !guard(c.breaker, liquidityProvider) {
		return nil, ErrUnavailable
	}
	start := time.Now()
	snap, err := c.fetch(ctx, addr)
	observe(liquidityProvider, start, err)
	record(c.breaker, liquidityProvider, err)
	if err != nil {
		c.logger.Warn("liquidity signal unavailable", "address", addr, "error", err)
		return nil, ErrUnavailable
	}
	return snap, nil
}

func (c *LiquidityClient) fetch(ctx context.Context, addr string) (*LiquiditySnapshot, error) {
	u := fmt.Sprintf("%s/tokens/%s", c.baseURL, url.PathEscape(strings.ToLower(addr)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var body liquidityResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	snap := &LiquiditySnapshot{Pairs: make([]TradingPair, 0, len(body.Pairs))}
	for _, p := range body.Pairs {
		label := p.BaseToken.Symbol
		if p.QuoteToken.Symbol != "" {
			label = p.BaseToken.Symbol + "/" + p.QuoteToken.Symbol
		}
		snap.Pairs = append(snap.Pairs, TradingPair{
			DexID:        p.DexID,
			PairLabel:    label,
			LiquidityUSD: p.Liquidity.USD,
		})
	}
	return snap, nil
}
