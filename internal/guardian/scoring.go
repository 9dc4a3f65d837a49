package guardian

// Approval scoring weights. Each approval starts at 100 and loses points
// per risk condition; the aggregate wallet score deducts per scored
// approval by level.
const (
	deductKnownScam         = 50
	deductUnlimited         = 20
	deductStale             = 15
	deductVeryStale         = 10
	deductUnresolvedSpender = 10

	staleAgeDays     = 180
	veryStaleAgeDays = 365

	aggregateDeductCritical = 25
	aggregateDeductHigh     = 15
	aggregateDeductMedium   = 5
)

// ApprovalInput carries the resolved facts about one approval that the
// scoring model reads.
type ApprovalInput struct {
	Unlimited bool
	AgeDays   int
	KnownScam bool
	// Resolved is true when the spender maps to a known protocol name.
	Resolved bool
	// Trusted is true when the spender is on the trusted protocol table.
	Trusted bool
}

// ScoreApproval computes the risk score for one approval.
func ScoreApproval(in ApprovalInput) int {
	score := 100
	if in.KnownScam {
		score -= deductKnownScam
	}
	if in.Unlimited {
		score -= deductUnlimited
	}
	if in.AgeDays > staleAgeDays {
		score -= deductStale
	}
	if in.AgeDays > veryStaleAgeDays {
		score -= deductVeryStale
	}
	if !in.Resolved {
		score -= deductUnresolvedSpender
	}
	if score < 0 {
		score = 0
	}
	return score
}

// LevelForApprovalScore maps an approval score onto the four-point scale.
func LevelForApprovalScore(score int) RiskLevel {
	switch {
	case score < 30:
		return LevelCritical
	case score < 50:
		return LevelHigh
	case score < 70:
		return LevelMedium
	default:
		return LevelLow
	}
}

// ReputationFor classifies the spender.
func ReputationFor(in ApprovalInput) SpenderReputation {
	switch {
	case in.KnownScam:
		return ReputationMalicious
	case in.Trusted:
		return ReputationTrusted
	case in.AgeDays > veryStaleAgeDays && !in.Resolved:
		return ReputationSuspicious
	default:
		return ReputationUnknown
	}
}

// RecommendationFor picks the suggested action. Order matters: a scam
// spender is always revoke-immediately regardless of level.
func RecommendationFor(level RiskLevel, in ApprovalInput) Recommendation {
	switch {
	case in.KnownScam:
		return RecommendRevokeNow
	case level == LevelCritical || level == LevelHigh:
		return RecommendConsiderRevoke
	case in.Trusted:
		return RecommendSafe
	default:
		return RecommendMonitor
	}
}

// AggregateWalletScore folds scored approvals into the wallet score and
// letter grade.
func AggregateWalletScore(approvals []ApprovalRisk) WalletSecurityScore {
	out := WalletSecurityScore{Score: 100, Total: len(approvals)}
	for _, a := range approvals {
		switch a.RiskLevel {
		case LevelCritical:
			out.Critical++
			out.Score -= aggregateDeductCritical
		case LevelHigh:
			out.High++
			out.Score -= aggregateDeductHigh
		case LevelMedium:
			out.Medium++
			out.Score -= aggregateDeductMedium
		default:
			out.Low++
		}
	}
	if out.Score < 0 {
		out.Score = 0
	}
	out.Grade = gradeFor(out.Score)
	return out
}

func gradeFor(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 75:
		return "B"
	case score >= 60:
		return "C"
	case score >= 40:
		return "D"
	default:
		return "F"
	}
}
