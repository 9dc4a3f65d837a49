// Package guardian implements wallet approval scanning: it discovers
// active token approvals from on-chain logs, scores each one, and
// aggregates a wallet-level security grade.
package guardian

import (
	"time"

	"github.com/mbrant/tokensentinel/internal/chains"
)

// ApprovalType distinguishes ERC-20 allowances from NFT operator
// approvals.
type ApprovalType string

const (
	ApprovalERC20 ApprovalType = "erc20"
	ApprovalNFT   ApprovalType = "nft"
)

// RiskLevel classifies one approval's score.
type RiskLevel string

const (
	LevelCritical RiskLevel = "critical"
	LevelHigh     RiskLevel = "high"
	LevelMedium   RiskLevel = "medium"
	LevelLow      RiskLevel = "low"
)

// SpenderReputation classifies the approved spender.
type SpenderReputation string

const (
	ReputationTrusted    SpenderReputation = "trusted"
	ReputationUnknown    SpenderReputation = "unknown"
	ReputationSuspicious SpenderReputation = "suspicious"
	ReputationMalicious  SpenderReputation = "malicious"
)

// Recommendation is the suggested action for one approval.
type Recommendation string

const (
	RecommendRevokeNow      Recommendation = "revoke_immediately"
	RecommendConsiderRevoke Recommendation = "consider_revoking"
	RecommendMonitor        Recommendation = "monitor"
	RecommendSafe           Recommendation = "safe"
)

// TokenApproval is one active approval discovered from the chain. Amount
// is the raw allowance in token base units; Unlimited marks the
// max-uint256 sentinel.
type TokenApproval struct {
	ID           string       `json:"id"`
	Type         ApprovalType `json:"type"`
	TokenAddress string       `json:"tokenAddress"`
	TokenName    string       `json:"tokenName,omitempty"`
	TokenSymbol  string       `json:"tokenSymbol,omitempty"`
	Spender      string       `json:"spender"`
	Amount       string       `json:"amount"`
	Unlimited    bool         `json:"unlimited"`
	ApprovedAt   time.Time    `json:"approvedAt"`
	TxHash       string       `json:"txHash"`
	BlockNumber  uint64       `json:"blockNumber"`
}

// ApprovalRisk is one scored approval. ApprovalID references the
// TokenApproval it was derived from; the factor fields record what the
// scoring model saw.
type ApprovalRisk struct {
	ApprovalID       string `json:"approvalId"`
	Spender          string `json:"spender"`
	SpenderName      string `json:"spenderName,omitempty"`
	KnownScam        bool   `json:"isKnownScam"`
	Unlimited        bool   `json:"isUnlimitedApproval"`
	AgeDays          int    `json:"approvalAgeDays"`
	ContractVerified bool   `json:"isContractVerified"`
	// RecentDrains needs a drain-event feed; none of the wired providers
	// reports one, so the factor is always false.
	RecentDrains   bool              `json:"hasRecentDrains"`
	RiskScore      int               `json:"riskScore"`
	RiskLevel      RiskLevel         `json:"riskLevel"`
	Reputation     SpenderReputation `json:"spenderReputation"`
	Recommendation Recommendation    `json:"recommendation"`
}

// WalletSecurityScore is the aggregate over all scored approvals.
type WalletSecurityScore struct {
	Score    int    `json:"score"`
	Grade    string `json:"grade"`
	Total    int    `json:"total"`
	Critical int    `json:"critical"`
	High     int    `json:"high"`
	Medium   int    `json:"medium"`
	Low      int    `json:"low"`
}

// WalletScanResult is the full scan output. Approvals and Risks are
// parallel: Risks[i] scores Approvals[i].
type WalletScanResult struct {
	ScanID    string              `json:"scanId"`
	Wallet    string              `json:"wallet"`
	Chain     chains.ChainID      `json:"chain"`
	Approvals []TokenApproval     `json:"approvals"`
	Risks     []ApprovalRisk      `json:"risks"`
	Security  WalletSecurityScore `json:"securityScore"`
	Summary   string              `json:"summary"`
	ScannedAt time.Time           `json:"scannedAt"`
	Cached    bool                `json:"cached"`
}

// RevokeTx is an unsigned transaction that revokes one approval. The
// wallet owner signs and broadcasts it themselves.
type RevokeTx struct {
	To       string `json:"to"`
	Data     string `json:"data"`
	Value    string `json:"value"`
	ChainID  string `json:"chainId"`
	Function string `json:"function"`
}
