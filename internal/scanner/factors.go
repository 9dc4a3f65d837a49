package scanner

import (
	"fmt"

	"github.com/mbrant/tokensentinel/internal/explain"
	"github.com/mbrant/tokensentinel/internal/providers"
)

// The factor set is fixed. Every analysis reports all seven, detected
// or not, so clients can render a stable checklist.
var factorNames = map[string]string{
	"honeypot":  "Honeypot",
	"rugPull":   "Rug Pull Risk",
	"taxes":     "High Taxes",
	"liquidity": "Low Liquidity",
	"ownership": "Hidden Ownership",
	"mintable":  "Mintable Supply",
	"proxy":     "Upgradeable Proxy",
}

var factorTips = map[string]string{
	"honeypot":  "A honeypot lets you buy a token but blocks selling. Always test-sell a small amount before committing funds.",
	"rugPull":   "Rug pulls happen when privileged functions let the deployer drain value. Check who controls the contract and what they can change.",
	"taxes":     "Transfer taxes are skimmed from every trade. Anything above 10% combined is predatory; above 20% you may be unable to exit profitably.",
	"liquidity": "Thin liquidity means large price impact and easy manipulation. Prefer tokens with deep, locked liquidity pools.",
	"ownership": "Contracts that hide or can reclaim ownership let insiders change the rules after you buy. Renounced, visible ownership is safer.",
	"mintable":  "A mintable token lets its owner create new supply at will, diluting every holder. Check whether minting is capped or renounced.",
	"proxy":     "Proxy contracts can be upgraded to entirely new code after deployment. The token you audit today may not be the token you hold tomorrow.",
}

// BuildFactors derives the seven-factor report from the collected
// signals. Detection is consistent with the scoring deductions: a factor
// is detected exactly when the corresponding deduction applied.
func BuildFactors(sig *providers.TokenSecuritySignal, liq *providers.LiquiditySnapshot) []RiskFactor {
	factors := make([]RiskFactor, 0, 7)
	add := func(id string, detected bool, severity Severity, desc string) {
		f := RiskFactor{
			ID:             id,
			Name:           factorNames[id],
			Detected:       detected,
			Severity:       SeveritySafe,
			Description:    desc,
			EducationalTip: factorTips[id],
		}
		if detected {
			f.Severity = severity
		}
		factors = append(factors, f)
	}

	var honeypot, rugPull, hiddenOwn, mintable, proxy, highTax bool
	honeyDesc := "No honeypot behavior detected; selling appears possible."
	rugDesc := "No privileged functions that enable draining value were found."
	taxDesc := "Buy and sell taxes are within normal range."
	taxSev := SeverityMedium
	ownDesc := "Contract ownership is visible and cannot be reclaimed."
	mintDesc := "Token supply cannot be inflated by the owner."
	proxyDesc := "Contract is not an upgradeable proxy."

	if sig != nil {
		honeypot = sig.IsHoneypot || sig.CannotSellAll
		if honeypot {
			honeyDesc = "This token appears to be a honeypot: buying works but selling is blocked or restricted."
		}

		rugPull = sig.OwnerChangeBalance || sig.SelfDestruct || sig.CanTakeBackOwnership
		if rugPull {
			rugDesc = "Privileged functions were found that could drain value:"
			if sig.OwnerChangeBalance {
				rugDesc += " the owner can modify holder balances;"
			}
			if sig.SelfDestruct {
				rugDesc += " the contract can self-destruct;"
			}
			if sig.CanTakeBackOwnership {
				rugDesc += " renounced ownership can be reclaimed;"
			}
			rugDesc = rugDesc[:len(rugDesc)-1] + "."
		}

		highTax = sig.CombinedTaxPct() > highTaxThresholdPct
		if highTax {
			taxDesc = fmt.Sprintf("Buy tax is %.1f%% and sell tax is %.1f%% (%.1f%% combined).",
				sig.BuyTaxPct, sig.SellTaxPct, sig.CombinedTaxPct())
			if sig.BuyTaxPct > extremeTaxThreshold || sig.SellTaxPct > extremeTaxThreshold {
				taxSev = SeverityHigh
			}
		}

		hiddenOwn = sig.HiddenOwner
		if hiddenOwn {
			ownDesc = "The real owner of this contract is obscured and may retain privileged control."
		}

		mintable = sig.IsMintable
		if mintable {
			mintDesc = "The owner can mint new tokens, diluting existing holders."
		}

		proxy = sig.IsProxy
		if proxy {
			proxyDesc = "This contract is an upgradeable proxy; its logic can be replaced after deployment."
		}
	}

	lowLiq := false
	liqSev := SeverityMedium
	liqDesc := "Liquidity depth could not be determined."
	if liq != nil {
		total := liq.TotalUSD()
		switch {
		case len(liq.Pairs) == 0:
			lowLiq = true
			liqSev = SeverityHigh
			liqDesc = "No trading pairs were found for this token."
		case total < dustLiquidityUSD:
			lowLiq = true
			liqSev = SeverityHigh
			liqDesc = fmt.Sprintf("Total liquidity is only $%.0f across %d pair(s).", total, len(liq.Pairs))
		case total < thinLiquidityUSD:
			lowLiq = true
			liqDesc = fmt.Sprintf("Total liquidity is $%.0f, thin enough for heavy price impact.", total)
		default:
			liqDesc = fmt.Sprintf("Total liquidity is $%.0f across %d pair(s).", total, len(liq.Pairs))
		}
	}

	add("honeypot", honeypot, SeverityCritical, honeyDesc)
	add("rugPull", rugPull, SeverityHigh, rugDesc)
	add("taxes", highTax, taxSev, taxDesc)
	add("liquidity", lowLiq, liqSev, liqDesc)
	add("ownership", hiddenOwn, SeverityHigh, ownDesc)
	add("mintable", mintable, SeverityMedium, mintDesc)
	add("proxy", proxy, SeverityMedium, proxyDesc)
	return factors
}

// DetectedFactors projects the detected subset into the explanation
// generator's input form.
func DetectedFactors(factors []RiskFactor) []explain.DetectedFactor {
	var out []explain.DetectedFactor
	for _, f := range factors {
		if f.Detected {
			out = append(out, explain.DetectedFactor{Name: f.Name, Description: f.Description})
		}
	}
	return out
}
