package guardian

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mbrant/tokensentinel/internal/cache"
	"github.com/mbrant/tokensentinel/internal/chains"
	"github.com/mbrant/tokensentinel/internal/explain"
	"github.com/mbrant/tokensentinel/internal/idgen"
	"github.com/mbrant/tokensentinel/internal/metrics"
	"github.com/mbrant/tokensentinel/internal/providers"
	"github.com/mbrant/tokensentinel/internal/traces"
	"github.com/mbrant/tokensentinel/internal/validation"
)

var (
	// ErrInvalidAddress rejects malformed wallet addresses.
	ErrInvalidAddress = errors.New("invalid wallet address")
	// ErrUnsupportedChain rejects unknown chain identifiers.
	ErrUnsupportedChain = errors.New("unsupported chain")
	// ErrScanUnavailable means the scan could not even start: the
	// explorer or the chain RPC is unreachable.
	ErrScanUnavailable = errors.New("wallet scan unavailable")
)

// Caps on approval discovery. A wallet's recent history bounds the token
// set so one scan cannot fan out without limit.
const (
	maxHistoryTxs      = 100
	maxCandidateTokens = 20
	reputationWorkers  = 4
)

// ReaderFactory opens a LogReader for a chain. Injected so tests can
// substitute a fake chain.
type ReaderFactory func(cfg chains.Config) (LogReader, error)

// Service scans wallets for risky token approvals.
type Service struct {
	registry   *chains.Registry
	cache      *cache.Gateway
	explorer   *providers.ExplorerClient
	reputation *providers.ReputationClient
	explainer  *explain.Generator
	readers    ReaderFactory
	timeout    time.Duration
	logger     *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithReaderFactory substitutes the log reader source.
func WithReaderFactory(f ReaderFactory) Option {
	return func(s *Service) { s.readers = f }
}

// WithSignalTimeout bounds each individual provider call.
func WithSignalTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// NewService creates the wallet scanning service.
func NewService(
	registry *chains.Registry,
	gw *cache.Gateway,
	explorer *providers.ExplorerClient,
	reputation *providers.ReputationClient,
	explainer *explain.Generator,
	opts ...Option,
) *Service {
	s := &Service{
		registry:   registry,
		cache:      gw,
		explorer:   explorer,
		reputation: reputation,
		explainer:  explainer,
		readers: func(cfg chains.Config) (LogReader, error) {
			return DialLogReader(cfg.RPCURL)
		},
		timeout: 8 * time.Second,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

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

// ScanWallet discovers and scores a wallet's active approvals. The
// explorer and the chain RPC are required; the reputation provider is
// best-effort per spender.
func (s *Service) ScanWallet(ctx context.Context, wallet, chain string) (*WalletScanResult, error) {
	wallet, cfg, err := s.resolve(wallet, chain)
	if err != nil {
		return nil, err
	}

	ctx, span := traces.StartSpan(ctx, "guardian.ScanWallet",
		traces.Wallet(wallet), traces.Chain(string(cfg.ID)))
	defer span.End()

	var cached WalletScanResult
	if s.cache.Get(ctx, cache.KindWalletScan, cfg.ID, wallet, &cached) {
		cached.Cached = true
		return &cached, nil
	}

	approvals, err := s.discoverApprovals(ctx, wallet, cfg)
	if err != nil {
		return nil, err
	}

	scored := s.scoreApprovals(ctx, approvals, cfg)
	security := AggregateWalletScore(scored)
	span.SetAttributes(traces.RiskScore(security.Score))

	result := &WalletScanResult{
		ScanID:    idgen.WithPrefix("scan_"),
		Wallet:    wallet,
		Chain:     cfg.ID,
		Approvals: approvals,
		Risks:     scored,
		Security:  security,
		ScannedAt: time.Now().UTC(),
	}
	result.Summary = s.explainer.ExplainWallet(ctx,
		security.Grade, len(scored), security.Critical, security.High)

	metrics.WalletScansTotal.WithLabelValues(security.Grade).Inc()
	s.cache.Put(ctx, cache.KindWalletScan, cfg.ID, wallet, result)
	return result, nil
}

// discoverApprovals walks the wallet's recent transfer history to find
// candidate tokens, then reads each token's approval log.
func (s *Service) discoverApprovals(ctx context.Context, wallet string, cfg chains.Config) ([]TokenApproval, error) {
	histCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	transfers, err := s.explorer.TokenTransfers(histCtx, wallet, cfg, maxHistoryTxs)
	if err != nil {
		return nil, ErrScanUnavailable
	}

	tokens := candidateTokens(transfers, maxCandidateTokens)
	if len(tokens) == 0 {
		return nil, nil
	}

	reader, err := s.readers(cfg)
	if err != nil {
		s.logger.Error("chain RPC unavailable", "chain", cfg.ID, "error", err)
		return nil, ErrScanUnavailable
	}

	owner := common.HexToAddress(wallet)
	var approvals []TokenApproval
	for _, ref := range tokens {
		events, err := reader.ApprovalEvents(ctx, ref.address, owner)
		if err != nil {
			s.logger.Warn("approval log read failed",
				"token", ref.address.Hex(), "error", err)
			continue
		}
		approvals = append(approvals, collectApprovals(events, ref)...)
	}
	return approvals, nil
}

// candidateTokens dedupes the transfer history into an ordered,
// bounded token list, newest activity first.
func candidateTokens(transfers []providers.TokenTransfer, limit int) []tokenRef {
	seen := make(map[string]bool, limit)
	var tokens []tokenRef
	for _, tr := range transfers {
		if tr.TokenAddress == "" || seen[tr.TokenAddress] {
			continue
		}
		seen[tr.TokenAddress] = true
		tokens = append(tokens, tokenRef{
			address: common.HexToAddress(tr.TokenAddress),
			name:    tr.TokenName,
			symbol:  tr.TokenSymbol,
		})
		if len(tokens) >= limit {
			break
		}
	}
	return tokens
}

// scoreApprovals resolves spender facts and scores each approval.
// Reputation checks run on a bounded worker pool; an unavailable check
// counts as unknown, never as safe and never as scam.
func (s *Service) scoreApprovals(ctx context.Context, approvals []TokenApproval, cfg chains.Config) []ApprovalRisk {
	scored := make([]ApprovalRisk, len(approvals))

	sem := make(chan struct{}, reputationWorkers)
	var wg sync.WaitGroup
	for i, approval := range approvals {
		wg.Add(1)
		go func(i int, approval TokenApproval) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			scored[i] = s.scoreOne(ctx, approval, cfg)
		}(i, approval)
	}
	wg.Wait()
	return scored
}

func (s *Service) scoreOne(ctx context.Context, approval TokenApproval, cfg chains.Config) ApprovalRisk {
	spenderName, trusted := s.registry.TrustedProtocol(approval.Spender)

	knownScam := false
	if s.reputation != nil {
		repCtx, cancel := context.WithTimeout(ctx, s.timeout)
		if rep, err := s.reputation.Check(repCtx, approval.Spender, cfg); err == nil {
			knownScam = rep.Malicious()
		}
		cancel()
	}

	// Verification status of the spender contract. Unavailable reads as
	// unverified, never as an error.
	verified := false
	if s.explorer != nil {
		verCtx, cancel := context.WithTimeout(ctx, s.timeout)
		if v, err := s.explorer.IsVerified(verCtx, approval.Spender, cfg); err == nil {
			verified = v
		}
		cancel()
	}

	ageDays := 0
	if !approval.ApprovedAt.IsZero() {
		ageDays = int(time.Since(approval.ApprovedAt).Hours() / 24)
	}

	in := ApprovalInput{
		Unlimited: approval.Unlimited,
		AgeDays:   ageDays,
		KnownScam: knownScam,
		Resolved:  trusted,
		Trusted:   trusted,
	}
	score := ScoreApproval(in)
	level := LevelForApprovalScore(score)

	return ApprovalRisk{
		ApprovalID:       approval.ID,
		Spender:          approval.Spender,
		SpenderName:      spenderName,
		KnownScam:        knownScam,
		Unlimited:        approval.Unlimited,
		AgeDays:          ageDays,
		ContractVerified: verified,
		RiskScore:        score,
		RiskLevel:        level,
		Reputation:       ReputationFor(in),
		Recommendation:   RecommendationFor(level, in),
	}
}
