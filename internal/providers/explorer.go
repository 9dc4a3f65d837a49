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

	"github.com/mbrant/tokensentinel/internal/chains"
	"github.com/mbrant/tokensentinel/internal/circuitbreaker"
)

const explorerProvider = "explorer"

// TokenTransfer is one historical ERC-20 transfer involving a wallet.
type TokenTransfer struct {
	TokenAddress string    `json:"tokenAddress"`
	TokenName    string    `json:"tokenName"`
	TokenSymbol  string    `json:"tokenSymbol"`
	From         string    `json:"from"`
	To           string    `json:"to"`
	TxHash       string    `json:"txHash"`
	Timestamp    time.Time `json:"timestamp"`
}

// ExplorerClient talks to the Etherscan-family API for a chain: contract
// verification status and wallet token-transfer history.
type ExplorerClient struct {
	client  *http.Client
	breaker *circuitbreaker.Breaker
	logger  *slog.Logger
}

// NewExplorerClient creates the client. breaker may be nil.
func NewExplorerClient(timeout time.Duration, breaker *circuitbreaker.Breaker, logger *slog.Logger) *ExplorerClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExplorerClient{
		client:  httpClient(timeout),
		breaker: breaker,
		logger:  logger,
	}
}

// IsVerified reports whether the contract's source is published on the
// chain's explorer. The getabi endpoint answers status "1" only for
// verified contracts.
func (c *ExplorerClient) IsVerified(ctx context.Context, addr string, chain chains.Config) (bool, error) {
	if !guard(c.breaker, explorerProvider) {
		return false, ErrUnavailable
	}
	start := time.Now()
	verified, err := c.isVerified(ctx, addr, chain)
	observe(explorerProvider, start, err)
	record(c.breaker, explorerProvider, err)
	if err != nil {
		c.logger.Warn("verification signal unavailable",
			"address", addr, "chain", chain.ID, "error", err)
		return false, ErrUnavailable
	}
	return verified, nil
}

func (c *ExplorerClient) isVerified(ctx context.Context, addr string, chain chains.Config) (bool, error) {
	q := url.Values{}
	q.Set("module", "contract")
	q.Set("action", "getabi")
	q.Set("address", strings.ToLower(addr))
	if chain.ExplorerKey != "" {
		q.Set("apikey", chain.ExplorerKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, chain.ExplorerURL+"?"+q.Encode(), nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("status %d", resp.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return body.Status == "1", nil
}

// TokenTransfers returns a wallet's most recent ERC-20 transfers, newest
// first, capped at limit.
func (c *ExplorerClient) TokenTransfers(ctx context.Context, wallet string, chain chains.Config, limit int) ([]TokenTransfer, error) {
	if !guard(c.breaker, explorerProvider) {
		return nil, ErrUnavailable
	}
	start := time.Now()
	transfers, err := c.tokenTransfers(ctx, wallet, chain, limit)
	observe(explorerProvider, start, err)
	record(c.breaker, explorerProvider, err)
	if err != nil {
		c.logger.Warn("transfer history unavailable",
			"wallet", wallet, "chain", chain.ID, "error", err)
		return nil, ErrUnavailable
	}
	return transfers, nil
}

func (c *ExplorerClient) tokenTransfers(ctx context.Context, wallet string, chain chains.Config, limit int) ([]TokenTransfer, error) {
	if limit <= 0 {
		limit = 100
	}
	q := url.Values{}
	q.Set("module", "account")
	q.Set("action", "tokentx")
	q.Set("address", strings.ToLower(wallet))
	q.Set("sort", "desc")
	q.Set("page", "1")
	q.Set("offset", fmt.Sprintf("%d", limit))
	if chain.ExplorerKey != "" {
		q.Set("apikey", chain.ExplorerKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, chain.ExplorerURL+"?"+q.Encode(), nil)
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

	var body struct {
		Status string `json:"status"`
		Result []struct {
			ContractAddress string `json:"contractAddress"`
			TokenName       string `json:"tokenName"`
			TokenSymbol     string `json:"tokenSymbol"`
			From            string `json:"from"`
			To              string `json:"to"`
			Hash            string `json:"hash"`
			TimeStamp       string `json:"timeStamp"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// Explorers answer status "0" with an empty result for fresh wallets;
	// that is a valid empty history, not a failure.
	transfers := make([]TokenTransfer, 0, len(body.Result))
	for _, r := range body.Result {
		ts := time.Unix(int64(intOr(r.TimeStamp, 0)), 0).UTC()
		transfers = append(transfers, TokenTransfer{
			TokenAddress: strings.ToLower(r.ContractAddress),
			TokenName:    r.TokenName,
			TokenSymbol:  r.TokenSymbol,
			From:         strings.ToLower(r.From),
			To:           strings.ToLower(r.To),
			TxHash:       r.Hash,
			Timestamp:    ts,
		})
		if len(transfers) >= limit {
			break
		}
	}
	return transfers, nil
}
