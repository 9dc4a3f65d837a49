// Package scanner implements contract risk analysis: signal collection,
// the weighted-deduction scoring model, risk factor derivation, and the
// analyze/quick-check orchestration.
package scanner

import (
	"time"

	"github.com/mbrant/tokensentinel/internal/chains"
	"github.com/mbrant/tokensentinel/internal/providers"
)

// RiskLevel is the five-point ordinal classification derived from a score.
type RiskLevel string

const (
	LevelCritical RiskLevel = "critical"
	LevelHigh     RiskLevel = "high"
	LevelMedium   RiskLevel = "medium"
	LevelLow      RiskLevel = "low"
	LevelSafe     RiskLevel = "safe"
)

// Severity grades an individual risk factor.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeveritySafe     Severity = "safe"
)

// RiskFactor is one named finding in an analysis. The set of factor ids
// is fixed; Detected marks whether this analysis triggered it.
type RiskFactor struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Detected       bool     `json:"detected"`
	Severity       Severity `json:"severity"`
	Description    string   `json:"description"`
	EducationalTip string   `json:"educationalTip"`
}

// TokenInfo carries basic token metadata when the security provider
// returned it.
type TokenInfo struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	TotalSupply string `json:"totalSupply,omitempty"`
	HolderCount int    `json:"holderCount,omitempty"`
}

// LiquidityAnalysis summarizes DEX liquidity for the token.
type LiquidityAnalysis struct {
	TotalUSD      float64                 `json:"totalUsd"`
	Locked        bool                    `json:"locked"`
	LockedPercent float64                 `json:"lockedPercent,omitempty"`
	Pairs         []providers.TradingPair `json:"pairs"`
}

// TaxAnalysis summarizes buy/sell taxes.
type TaxAnalysis struct {
	BuyTaxPct  float64 `json:"buyTaxPct"`
	SellTaxPct float64 `json:"sellTaxPct"`
	IsHighTax  bool    `json:"isHighTax"`
}

// ContractAnalysisResult is the full analysis output. Results are
// immutable: every analysis produces a fresh value.
type ContractAnalysisResult struct {
	Address       string            `json:"address"`
	Chain         chains.ChainID    `json:"chain"`
	RiskScore     int               `json:"riskScore"`
	RiskLevel     RiskLevel         `json:"riskLevel"`
	IsVerified    bool              `json:"isVerified"`
	TokenInfo     *TokenInfo        `json:"tokenInfo,omitempty"`
	RiskFactors   []RiskFactor      `json:"riskFactors"`
	Liquidity     LiquidityAnalysis `json:"liquidity"`
	Taxes         TaxAnalysis       `json:"taxes"`
	AIExplanation string            `json:"aiExplanation"`
	AnalyzedAt    time.Time         `json:"analyzedAt"`
	Cached        bool              `json:"cached"`
}

// QuickCheckResult is the reduced-latency check output.
type QuickCheckResult struct {
	Address    string         `json:"address"`
	Chain      chains.ChainID `json:"chain"`
	RiskScore  int            `json:"riskScore"`
	RiskLevel  RiskLevel      `json:"riskLevel"`
	IsHoneypot bool           `json:"isHoneypot"`
	Cached     bool           `json:"cached"`
}

// VerificationStatus is the explorer verification signal. Known is false
// when the explorer could not answer; scoring then applies no
// verification adjustment in either direction.
type VerificationStatus struct {
	Known    bool
	Verified bool
}
