package scanner

import "github.com/mbrant/tokensentinel/internal/providers"

// Deduction and bonus weights for the full scoring model. The model
// starts at 100 and subtracts per detected condition; liquidity applies
// exactly one adjustment.
const (
	deductHoneypot      = 40
	deductAirdropScam   = 40
	deductOwnerChange   = 30
	deductHiddenOwner   = 25
	deductSelfDestruct  = 20
	deductReclaimOwner  = 15
	deductMintable      = 15
	deductPausable      = 10
	deductExternalCall  = 10
	deductProxy         = 10
	deductHighTax       = 15
	deductExtremeTax    = 15
	deductNotVerified   = 15
	bonusOpenSource     = 5
	bonusTrustList      = 10
	bonusVerified       = 5
	deductNoPairs       = 15
	deductDustLiquidity = 20
	deductThinLiquidity = 10
	bonusDeepLiquidity  = 5

	highTaxThresholdPct = 10.0
	extremeTaxThreshold = 20.0
	dustLiquidityUSD    = 1_000.0
	thinLiquidityUSD    = 10_000.0
	deepLiquidityUSD    = 100_000.0
)

// ScoreContract computes the full risk score from whatever signals are
// available. A nil signal contributes nothing: scoring degrades to the
// safe default rather than failing.
func ScoreContract(sig *providers.TokenSecuritySignal, liq *providers.LiquiditySnapshot, verified VerificationStatus) int {
	score := 100

	if sig != nil {
		if sig.IsHoneypot || sig.CannotSellAll {
			score -= deductHoneypot
		}
		if sig.IsAirdropScam {
			score -= deductAirdropScam
		}
		if sig.OwnerChangeBalance {
			score -= deductOwnerChange
		}
		if sig.HiddenOwner {
			score -= deductHiddenOwner
		}
		if sig.SelfDestruct {
			score -= deductSelfDestruct
		}
		if sig.CanTakeBackOwnership {
			score -= deductReclaimOwner
		}
		if sig.IsMintable {
			score -= deductMintable
		}
		if sig.TransferPausable {
			score -= deductPausable
		}
		if sig.ExternalCall {
			score -= deductExternalCall
		}
		if sig.IsProxy {
			score -= deductProxy
		}
		if sig.CombinedTaxPct() > highTaxThresholdPct {
			score -= deductHighTax
			if sig.BuyTaxPct > extremeTaxThreshold || sig.SellTaxPct > extremeTaxThreshold {
				score -= deductExtremeTax
			}
		}
		if sig.IsOpenSource {
			score += bonusOpenSource
		}
		if sig.IsTrustListed {
			score += bonusTrustList
		}
	}

	if verified.Known {
		if verified.Verified {
			score += bonusVerified
		} else {
			score -= deductNotVerified
		}
	}

	if liq != nil {
		switch total := liq.TotalUSD(); {
		case len(liq.Pairs) == 0:
			score -= deductNoPairs
		case total < dustLiquidityUSD:
			score -= deductDustLiquidity
		case total < thinLiquidityUSD:
			score -= deductThinLiquidity
		case total > deepLiquidityUSD:
			score += bonusDeepLiquidity
		}
	}

	return clampScore(score)
}

// QuickScore is the reduced model used by the quick-check path. It reads
// only the four cheapest security flags.
func QuickScore(sig *providers.TokenSecuritySignal) int {
	score := 100
	if sig.IsHoneypot {
		score -= 50
	}
	if sig.HiddenOwner {
		score -= 20
	}
	if sig.IsMintable {
		score -= 10
	}
	if sig.CombinedTaxPct() > highTaxThresholdPct {
		score -= 15
	}
	return clampScore(score)
}

// LevelForScore maps a clamped score onto the five-point scale.
func LevelForScore(score int) RiskLevel {
	switch {
	case score >= 80:
		return LevelSafe
	case score >= 60:
		return LevelLow
	case score >= 40:
		return LevelMedium
	case score >= 20:
		return LevelHigh
	default:
		return LevelCritical
	}
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
