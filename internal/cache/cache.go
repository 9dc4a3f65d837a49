// Package cache is the advisory response cache in front of the analysis
// pipeline. Keys are deterministic per operation kind, values are JSON
// envelopes with a TTL. A miss or a store error never blocks an
// operation; it only means the full evaluation runs.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mbrant/tokensentinel/internal/chains"
	"github.com/mbrant/tokensentinel/internal/metrics"
)

// Kind identifies the operation whose result is being cached. Each kind
// carries its own TTL: quick checks are cheap to recompute, full analyses
// are not, wallet state changes frequently.
type Kind string

const (
	KindFullAnalysis Kind = "analysis"
	KindQuickCheck   Kind = "quick"
	KindWalletScan   Kind = "wallet"
)

// TTLPolicy maps operation kinds to cache lifetimes.
type TTLPolicy struct {
	FullAnalysis time.Duration
	QuickCheck   time.Duration
	WalletScan   time.Duration
}

// DefaultTTLPolicy mirrors the config defaults.
var DefaultTTLPolicy = TTLPolicy{
	FullAnalysis: time.Hour,
	QuickCheck:   5 * time.Minute,
	WalletScan:   10 * time.Minute,
}

// TTL returns the lifetime for a kind.
func (p TTLPolicy) TTL(kind Kind) time.Duration {
	switch kind {
	case KindFullAnalysis:
		return p.FullAnalysis
	case KindQuickCheck:
		return p.QuickCheck
	case KindWalletScan:
		return p.WalletScan
	default:
		return p.QuickCheck
	}
}

// Key builds the deterministic cache key for an operation.
func Key(kind Kind, chain chains.ChainID, addr string) string {
	return fmt.Sprintf("%s:%s:%s", kind, chain, strings.ToLower(addr))
}

// Store is the underlying key/TTL byte store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// Gateway wraps a Store with JSON round-tripping and the TTL policy.
type Gateway struct {
	store  Store
	policy TTLPolicy
	logger *slog.Logger
}

// NewGateway creates a cache gateway over the given store.
func NewGateway(store Store, policy TTLPolicy, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{store: store, policy: policy, logger: logger}
}

// Get fetches and decodes a cached result into out. Returns false on miss,
// expired entry, store error, or decode error; errors are logged, never
// returned, because the cache is advisory.
func (g *Gateway) Get(ctx context.Context, kind Kind, chain chains.ChainID, addr string, out any) bool {
	key := Key(kind, chain, addr)
	raw, ok, err := g.store.Get(ctx, key)
	if err != nil {
		g.logger.Warn("cache get failed", "key", key, "error", err)
		metrics.CacheMisses.WithLabelValues(string(kind)).Inc()
		return false
	}
	if !ok {
		metrics.CacheMisses.WithLabelValues(string(kind)).Inc()
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		g.logger.Warn("cache entry corrupt", "key", key, "error", err)
		metrics.CacheMisses.WithLabelValues(string(kind)).Inc()
		return false
	}
	metrics.CacheHits.WithLabelValues(string(kind)).Inc()
	return true
}

// Put stores a result under the kind's TTL. Failures are logged and
// swallowed; the write is idempotent so a lost write only costs a
// recompute.
func (g *Gateway) Put(ctx context.Context, kind Kind, chain chains.ChainID, addr string, value any) {
	key := Key(kind, chain, addr)
	raw, err := json.Marshal(value)
	if err != nil {
		g.logger.Warn("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := g.store.Put(ctx, key, raw, g.policy.TTL(kind)); err != nil {
		g.logger.Warn("cache put failed", "key", key, "error", err)
	}
}
