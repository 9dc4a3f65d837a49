// Package explain produces the short plain-language summary attached to
// every analysis. Generation is best-effort: the text provider gets one
// bounded attempt, and any failure falls back to a fixed template chosen
// by risk level so output stays reproducible when the provider is down.
package explain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mbrant/tokensentinel/internal/metrics"
)

// Provider generates short text from a system prompt and a user prompt.
type Provider interface {
	Generate(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// Generator builds prompts and applies the fallback policy.
type Generator struct {
	provider  Provider
	timeout   time.Duration
	maxTokens int
	logger    *slog.Logger
}

// NewGenerator creates a generator. provider may be nil, in which case
// every explanation uses the fallback template.
func NewGenerator(provider Provider, timeout time.Duration, logger *slog.Logger) *Generator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		provider:  provider,
		timeout:   timeout,
		maxTokens: 200,
		logger:    logger,
	}
}

const systemPrompt = "You explain token contract security findings to non-expert crypto users. " +
	"Answer in 2-3 plain sentences. No jargon, no investment advice, no markdown."

// contractFallbacks are the deterministic per-level explanations used
// verbatim whenever generation fails.
var contractFallbacks = map[string]string{
	"critical": "This token shows critical danger signs and is very likely a scam. Do not buy it, and if you hold it, be aware you may not be able to sell.",
	"high":     "This token has serious risk indicators. There is a real chance of losing funds, so avoid it unless you fully understand the risks.",
	"medium":   "This token has some warning signs. It is not obviously a scam, but be careful and only risk what you can afford to lose.",
	"low":      "This token looks mostly fine, with only minor concerns. As always with small tokens, stay cautious.",
	"safe":     "This token passed our security checks. No guarantees, but we found no signs of a scam.",
}

// walletFallbacks summarize a wallet scan by its security grade.
var walletFallbacks = map[string]string{
	"A": "Your wallet approvals look healthy. Keep reviewing them now and then.",
	"B": "Your wallet approvals are in decent shape, with a few worth reviewing.",
	"C": "Several of your token approvals carry risk. Consider revoking the ones you no longer use.",
	"D": "Your wallet has risky approvals that could let other contracts move your tokens. Review and revoke them soon.",
	"F": "Your wallet has dangerous approvals, possibly to malicious contracts. Revoke them immediately.",
}

// DetectedFactor is one finding fed into the prompt.
type DetectedFactor struct {
	Name        string
	Description string
}

// ExplainContract returns a short explanation for a contract analysis.
// The fallback string for the level is returned verbatim on any provider
// failure, timeout, or empty response.
func (g *Generator) ExplainContract(ctx context.Context, factors []DetectedFactor, score int, level string) string {
	fallback, ok := contractFallbacks[level]
	if !ok {
		fallback = contractFallbacks["medium"]
	}
	if g.provider == nil {
		metrics.ExplanationFallbacksTotal.Inc()
		return fallback
	}

	var b strings.Builder
	fmt.Fprintf(&b, "A token contract scored %d/100 (risk level: %s).\n", score, level)
	if len(factors) == 0 {
		b.WriteString("No risk factors were detected.\n")
	} else {
		b.WriteString("Detected risk factors:\n")
		for _, f := range factors {
			fmt.Fprintf(&b, "- %s: %s\n", f.Name, f.Description)
		}
	}
	b.WriteString("Explain what this means for a non-expert holder.")

	return g.generate(ctx, b.String(), fallback)
}

// ExplainWallet returns a short summary for a wallet approval scan.
func (g *Generator) ExplainWallet(ctx context.Context, grade string, total, critical, high int) string {
	fallback, ok := walletFallbacks[grade]
	if !ok {
		fallback = walletFallbacks["C"]
	}
	if g.provider == nil {
		metrics.ExplanationFallbacksTotal.Inc()
		return fallback
	}

	user := fmt.Sprintf(
		"A wallet scan found %d token approvals: %d critical risk, %d high risk. Security grade: %s.\n"+
			"Explain what the owner should do, briefly.",
		total, critical, high, grade)

	return g.generate(ctx, user, fallback)
}

func (g *Generator) generate(ctx context.Context, user, fallback string) string {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.provider.Generate(ctx, systemPrompt, user, g.maxTokens)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			g.logger.Warn("explanation generation failed", "error", err)
		}
		metrics.ExplanationFallbacksTotal.Inc()
		return fallback
	}
	return strings.TrimSpace(text)
}

// ContractFallback exposes the fixed template for a level.
func ContractFallback(level string) string {
	if s, ok := contractFallbacks[level]; ok {
		return s
	}
	return contractFallbacks["medium"]
}

// WalletFallback exposes the fixed template for a grade.
func WalletFallback(grade string) string {
	if s, ok := walletFallbacks[grade]; ok {
		return s
	}
	return walletFallbacks["C"]
}
