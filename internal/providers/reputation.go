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

const reputationProvider = "reputation"

// AddressReputation carries the malicious-address flags for one address.
// Malicious is true when any individual flag is set.
type AddressReputation struct {
	Blacklisted     bool `json:"blacklisted"`
	HoneypotRelated bool `json:"honeypotRelated"`
	Phishing        bool `json:"phishing"`
	Stealing        bool `json:"stealing"`
}

// Malicious reports whether any reputation flag marks the address.
func (r *AddressReputation) Malicious() bool {
	return r.Blacklisted || r.HoneypotRelated || r.Phishing || r.Stealing
}

// ReputationClient checks addresses against a malicious-address API.
type ReputationClient struct {
	baseURL string
	client  *http.Client
	breaker *circuitbreaker.Breaker
	logger  *slog.Logger
}

// NewReputationClient creates the client. breaker may be nil.
func NewReputationClient(baseURL string, timeout time.Duration, breaker *circuitbreaker.Breaker, logger *slog.Logger) *ReputationClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReputationClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient(timeout),
		breaker: breaker,
		logger:  logger,
	}
}

type reputationResponse struct {
	Code   int `json:"code"`
	Result struct {
		BlacklistDoubt         string `json:"blacklist_doubt"`
		HoneypotRelatedAddress string `json:"honeypot_related_address"`
		PhishingActivities     string `json:"phishing_activities"`
		StealingAttack         string `json:"stealing_attack"`
	} `json:"result"`
}

// Check returns the reputation flags for an address, or ErrUnavailable.
// Callers treat an unavailable reputation as "unknown", never as safe.
func (c *ReputationClient) Check(ctx context.Context, addr string, chain chains.Config) (*AddressReputation, error) {
	if !guard(c.breaker, reputationProvider) {
		return nil, ErrUnavailable
	}
	start := time.Now()
	rep, err := c.check(ctx, addr, chain)
	observe(reputationProvider, start, err)
	record(c.breaker, reputationProvider, err)
	if err != nil {
		c.logger.Warn("reputation signal unavailable", "address", addr, "error", err)
		return nil, ErrUnavailable
	}
	return rep, nil
}

func (c *ReputationClient) check(ctx context.Context, addr string, chain chains.Config) (*AddressReputation, error) {
	u := fmt.Sprintf("%s/address_security/%s?chain_id=%s",
		c.baseURL, url.PathEscape(strings.ToLower(addr)), chain.SecurityID)

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

	var body reputationResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &AddressReputation{
		Blacklisted:     flag(body.Result.BlacklistDoubt),
		HoneypotRelated: flag(body.Result.HoneypotRelatedAddress),
		Phishing:        flag(body.Result.PhishingActivities),
		Stealing:        flag(body.Result.StealingAttack),
	}, nil
}
