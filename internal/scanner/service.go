package scanner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mbrant/tokensentinel/internal/cache"
	"github.com/mbrant/tokensentinel/internal/chains"
	"github.com/mbrant/tokensentinel/internal/explain"
	"github.com/mbrant/tokensentinel/internal/metrics"
	"github.com/mbrant/tokensentinel/internal/providers"
	"github.com/mbrant/tokensentinel/internal/traces"
	"github.com/mbrant/tokensentinel/internal/validation"
)

var (
	// ErrInvalidAddress rejects malformed contract addresses.
	ErrInvalidAddress = errors.New("invalid contract address")
	// ErrUnsupportedChain rejects unknown chain identifiers.
	ErrUnsupportedChain = errors.New("unsupported chain")
)

// Service runs contract analyses: it fans out to the signal providers,
// scores the result, derives factors, and attaches an explanation.
type Service struct {
	registry  *chains.Registry
	cache     *cache.Gateway
	security  *providers.TokenSecurityClient
	liquidity *providers.LiquidityClient
	explorer  *providers.ExplorerClient
	explainer *explain.Generator
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithSignalTimeout bounds each individual provider call.
func WithSignalTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// NewService creates the analysis service.
func NewService(
	registry *chains.Registry,
	gw *cache.Gateway,
	security *providers.TokenSecurityClient,
	liquidity *providers.LiquidityClient,
	explorer *providers.ExplorerClient,
	explainer *explain.Generator,
	opts ...Option,
) *Service {
	s := &Service{
		registry:  registry,
		cache:     gw,
		security:  security,
		liquidity: liquidity,
		explorer:  explorer,
		explainer: explainer,
		timeout:   8 * time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// resolve validates and normalizes the (address, chain) input pair.
func (s *Service) resolve(addr, chain string) (string, chains.Config, error) {
	addr = validation.SanitizeAddress(addr)
	if !validation.IsValidEthAddress(addr) {
		return "", chains.Config{}, ErrInvalidAddress
	}
	id, err := chains.Parse(chain)
	if err != nil {
		return "", chains.Config{}, ErrUnsupportedChain
	}
	cfg, ok := s.registry.Get(id)
	if !ok {
		return "", chains.Config{}, ErrUnsupportedChain
	}
	return addr, cfg, nil
}

// AnalyzeContract runs the full analysis pipeline for a token contract.
// The three provider calls run concurrently; a failed signal degrades the
// analysis instead of failing it.
func (s *Service) AnalyzeContract(ctx context.Context, addr, chain string) (*ContractAnalysisResult, error) {
	addr, cfg, err := s.resolve(addr, chain)
	if err != nil {
		return nil, err
	}

	ctx, span := traces.StartSpan(ctx, "scanner.AnalyzeContract",
		traces.Address(addr), traces.Chain(string(cfg.ID)))
	defer span.End()

	var cached ContractAnalysisResult
	if s.cache.Get(ctx, cache.KindFullAnalysis, cfg.ID, addr, &cached) {
		cached.Cached = true
		return &cached, nil
	}

	sig, liq, verified := s.collectSignals(ctx, addr, cfg)

	score := ScoreContract(sig, liq, verified)
	level := LevelForScore(score)
	factors := BuildFactors(sig, liq)
	span.SetAttributes(traces.RiskScore(score), traces.RiskLevel(string(level)))

	result := &ContractAnalysisResult{
		Address:     addr,
		Chain:       cfg.ID,
		RiskScore:   score,
		RiskLevel:   level,
		IsVerified:  verified.Known && verified.Verified,
		RiskFactors: factors,
		Liquidity:   buildLiquidity(sig, liq),
		Taxes:       buildTaxes(sig),
		AnalyzedAt:  time.Now().UTC(),
	}
	if sig != nil && (sig.TokenName != "" || sig.TokenSymbol != "") {
		result.TokenInfo = &TokenInfo{
			Name:        sig.TokenName,
			Symbol:      sig.TokenSymbol,
			TotalSupply: sig.TotalSupply,
			HolderCount: sig.HolderCount,
		}
	}
	result.AIExplanation = s.explainer.ExplainContract(ctx,
		DetectedFactors(factors), score, string(level))

	metrics.AnalysesTotal.WithLabelValues(string(level)).Inc()
	s.cache.Put(ctx, cache.KindFullAnalysis, cfg.ID, addr, result)
	return result, nil
}

// collectSignals issues the three provider calls concurrently and joins
// them. Each failure is independent: the other signals still count.
func (s *Service) collectSignals(ctx context.Context, addr string, cfg chains.Config) (*providers.TokenSecuritySignal, *providers.LiquiditySnapshot, VerificationStatus) {
	var (
		wg       sync.WaitGroup
		sig      *providers.TokenSecuritySignal
		liq      *providers.LiquiditySnapshot
		verified VerificationStatus
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		if v, err := s.security.Fetch(callCtx, addr, cfg); err == nil {
			sig = v
		}
	}()
	go func() {
		defer wg.Done()
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		if v, err := s.liquidity.Fetch(callCtx, addr); err == nil {
			liq = v
		}
	}()
	go func() {
		defer wg.Done()
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		if v, err := s.explorer.IsVerified(callCtx, addr, cfg); err == nil {
			verified = VerificationStatus{Known: true, Verified: v}
		}
	}()
	wg.Wait()

	if sig == nil {
		s.logger.Warn("analysis degraded: token security signal missing", "address", addr)
	}
	return sig, liq, verified
}

// QuickCheck runs the reduced-latency check. When the security signal is
// unavailable the fixed neutral result is returned rather than an error.
func (s *Service) QuickCheck(ctx context.Context, addr, chain string) (*QuickCheckResult, error) {
	addr, cfg, err := s.resolve(addr, chain)
	if err != nil {
		return nil, err
	}

	ctx, span := traces.StartSpan(ctx, "scanner.QuickCheck",
		traces.Address(addr), traces.Chain(string(cfg.ID)))
	defer span.End()

	var cached QuickCheckResult
	if s.cache.Get(ctx, cache.KindQuickCheck, cfg.ID, addr, &cached) {
		cached.Cached = true
		return &cached, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	sig, err := s.security.Fetch(callCtx, addr, cfg)
	if err != nil {
		// Neutral default: the caller gets a usable answer either way.
		metrics.QuickChecksTotal.WithLabelValues(string(LevelMedium)).Inc()
		return &QuickCheckResult{
			Address:   addr,
			Chain:     cfg.ID,
			RiskScore: 50,
			RiskLevel: LevelMedium,
		}, nil
	}

	score := QuickScore(sig)
	level := LevelForScore(score)
	span.SetAttributes(traces.RiskScore(score), traces.RiskLevel(string(level)))

	result := &QuickCheckResult{
		Address:    addr,
		Chain:      cfg.ID,
		RiskScore:  score,
		RiskLevel:  level,
		IsHoneypot: sig.IsHoneypot,
	}
	metrics.QuickChecksTotal.WithLabelValues(string(level)).Inc()
	s.cache.Put(ctx, cache.KindQuickCheck, cfg.ID, addr, result)
	return result, nil
}

func buildLiquidity(sig *providers.TokenSecuritySignal, liq *providers.LiquiditySnapshot) LiquidityAnalysis {
	out := LiquidityAnalysis{Pairs: []providers.TradingPair{}}
	if liq != nil {
		out.TotalUSD = liq.TotalUSD()
		out.Pairs = liq.Pairs
	}
	if sig != nil {
		out.LockedPercent = sig.LockedLPPercent()
		out.Locked = out.LockedPercent > 50
	}
	return out
}

func buildTaxes(sig *providers.TokenSecuritySignal) TaxAnalysis {
	if sig == nil {
		return TaxAnalysis{}
	}
	return TaxAnalysis{
		BuyTaxPct:  sig.BuyTaxPct,
		SellTaxPct: sig.SellTaxPct,
		IsHighTax:  sig.CombinedTaxPct() > highTaxThresholdPct,
	}
}
