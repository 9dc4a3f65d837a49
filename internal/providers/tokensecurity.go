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

const tokenSecurityProvider = "tokensecurity"

// TokenSecuritySignal carries the security flags for one token contract.
// Every field defaults to its safe zero value when the provider omits it.
type TokenSecuritySignal struct {
	TokenName   string `json:"tokenName"`
	TokenSymbol string `json:"tokenSymbol"`
	TotalSupply string `json:"totalSupply"`
	HolderCount int    `json:"holderCount"`

	// Hard risk flags
	IsHoneypot    bool `json:"isHoneypot"`
	CannotSellAll bool `json:"cannotSellAll"`
	IsAirdropScam bool `json:"isAirdropScam"`

	// Privileged-control flags
	OwnerChangeBalance   bool `json:"ownerChangeBalance"`
	HiddenOwner          bool `json:"hiddenOwner"`
	SelfDestruct         bool `json:"selfDestruct"`
	CanTakeBackOwnership bool `json:"canTakeBackOwnership"`
	IsMintable           bool `json:"isMintable"`
	TransferPausable     bool `json:"transferPausable"`
	ExternalCall         bool `json:"externalCall"`
	IsProxy              bool `json:"isProxy"`
	HasBlacklist         bool `json:"hasBlacklist"`
	HasWhitelist         bool `json:"hasWhitelist"`

	// Positive flags
	IsOpenSource  bool `json:"isOpenSource"`
	IsTrustListed bool `json:"isTrustListed"`

	// Taxes as percentages (2.0 = 2%)
	BuyTaxPct  float64 `json:"buyTaxPct"`
	SellTaxPct float64 `json:"sellTaxPct"`

	// Liquidity-provider holders with lock state
	LPHolders []LPHolder `json:"lpHolders,omitempty"`

	Note string `json:"note,omitempty"`
}

// LPHolder is one liquidity-pool token holder.
type LPHolder struct {
	Address    string  `json:"address"`
	IsLocked   bool    `json:"isLocked"`
	Percent    float64 `json:"percent"`
	IsContract bool    `json:"isContract"`
}

// CombinedTaxPct returns buy + sell tax.
func (s *TokenSecuritySignal) CombinedTaxPct() float64 {
	return s.BuyTaxPct + s.SellTaxPct
}

// LockedLPPercent sums the share held by locked LP holders.
func (s *TokenSecuritySignal) LockedLPPercent() float64 {
	var total float64
	for _, h := range s.LPHolders {
		if h.IsLocked {
			total += h.Percent
		}
	}
	return total
}

// TokenSecurityClient fetches token security flags from a
// GoPlus-compatible API.
type TokenSecurityClient struct {
	baseURL string
	client  *http.Client
	breaker *circuitbreaker.Breaker
	logger  *slog.Logger
}

// NewTokenSecurityClient creates the client. breaker may be nil.
func NewTokenSecurityClient(baseURL string, timeout time.Duration, breaker *circuitbreaker.Breaker, logger *slog.Logger) *TokenSecurityClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenSecurityClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient(timeout),
		breaker: breaker,
		logger:  logger,
	}
}

// tokenSecurityResponse mirrors the provider wire format. All flags are
// string-coded ("0"/"1") and any of them may be absent.
type tokenSecurityResponse struct {
	Code   int                              `json:"code"`
	Result map[string]tokenSecurityRawEntry `json:"result"`
}

type tokenSecurityRawEntry struct {
	TokenName            string `json:"token_name"`
	TokenSymbol          string `json:"token_symbol"`
	TotalSupply          string `json:"total_supply"`
	HolderCount          string `json:"holder_count"`
	IsHoneypot           string `json:"is_honeypot"`
	CannotSellAll        string `json:"cannot_sell_all"`
	IsAirdropScam        string `json:"is_airdrop_scam"`
	OwnerChangeBalance   string `json:"owner_change_balance"`
	HiddenOwner          string `json:"hidden_owner"`
	SelfDestruct         string `json:"selfdestruct"`
	CanTakeBackOwnership string `json:"can_take_back_ownership"`
	IsMintable           string `json:"is_mintable"`
	TransferPausable     string `json:"transfer_pausable"`
	ExternalCall         string `json:"external_call"`
	IsProxy              string `json:"is_proxy"`
	IsBlacklisted        string `json:"is_blacklisted"`
	IsWhitelisted        string `json:"is_whitelisted"`
	IsOpenSource         string `json:"is_open_source"`
	TrustList            string `json:"trust_list"`
	BuyTax               string `json:"buy_tax"`
	SellTax              string `json:"sell_tax"`
	Note                 string `json:"note"`
	LPHolders            []struct {
		Address    string `json:"address"`
		IsLocked   int    `json:"is_locked"`
		Percent    string `json:"percent"`
		IsContract int    `json:"is_contract"`
	} `json:"lp_holders"`
}

// Fetch returns the security signal for (address, chain), or
// ErrUnavailable when the provider cannot answer. A response with no
// entry for the address is also unavailable: the provider has never
// indexed the token.
func (c *TokenSecurityClient) Fetch(ctx context.Context, addr string, chain chains.Config) (*TokenSecuritySignal, error) {
	if !guard(c.breaker, tokenSecurityProvider) {
		return nil, ErrUnavailable
	}
	start := time.Now()
	sig, err := c.fetch(ctx, addr, chain)
	observe(tokenSecurityProvider, start, err)
	record(c.breaker, tokenSecurityProvider, err)
	if err != nil {
		c.logger.Warn("token security signal unavailable",
			"address", addr, "chain", chain.ID, "error", err)
		return nil, ErrUnavailable
	}
	return sig, nil
}

func (c *TokenSecurityClient) fetch(ctx context.Context, addr string, chain chains.Config) (*TokenSecuritySignal, error) {
	u := fmt.Sprintf("%s/token_security/%s?contract_addresses=%s",
		c.baseURL, chain.SecurityID, url.QueryEscape(strings.ToLower(addr)))

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

	var body tokenSecurityResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	raw, ok := body.Result[strings.ToLower(addr)]
	if !ok {
		return nil, fmt.Errorf("no result for address")
	}

	sig := &TokenSecuritySignal{
		TokenName:            raw.TokenName,
		TokenSymbol:          raw.TokenSymbol,
		TotalSupply:          raw.TotalSupply,
		HolderCount:          intOr(raw.HolderCount, 0),
		IsHoneypot:           flag(raw.IsHoneypot),
		CannotSellAll:        flag(raw.CannotSellAll),
		IsAirdropScam:        flag(raw.IsAirdropScam),
		OwnerChangeBalance:   flag(raw.OwnerChangeBalance),
		HiddenOwner:          flag(raw.HiddenOwner),
		SelfDestruct:         flag(raw.SelfDestruct),
		CanTakeBackOwnership: flag(raw.CanTakeBackOwnership),
		IsMintable:           flag(raw.IsMintable),
		TransferPausable:     flag(raw.TransferPausable),
		ExternalCall:         flag(raw.ExternalCall),
		IsProxy:              flag(raw.IsProxy),
		HasBlacklist:         flag(raw.IsBlacklisted),
		HasWhitelist:         flag(raw.IsWhitelisted),
		IsOpenSource:         flag(raw.IsOpenSource),
		IsTrustListed:        flag(raw.TrustList),
		BuyTaxPct:            taxPercent(raw.BuyTax),
		SellTaxPct:           taxPercent(raw.SellTax),
		Note:                 raw.Note,
	}
	for _, h := range raw.LPHolders {
		sig.LPHolders = append(sig.LPHolders, LPHolder{
			Address:    h.Address,
			IsLocked:   h.IsLocked == 1,
			Percent:    floatOr(h.Percent, 0) * 100,
			IsContract: h.IsContract == 1,
		})
	}
	return sig, nil
}
