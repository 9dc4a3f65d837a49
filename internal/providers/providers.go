// Package providers wraps the external signal providers behind typed
// clients. Each client enforces a bounded timeout, treats every response
// field as optional, and converts any timeout, non-2xx status, or
// malformed body into ErrUnavailable instead of propagating transport
// errors. Callers decide what a missing signal means; no client retries.
package providers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mbrant/tokensentinel/internal/circuitbreaker"
	"github.com/mbrant/tokensentinel/internal/metrics"
)

// ErrUnavailable is returned whenever a provider cannot produce a usable
// signal: timeout, non-success status, tripped circuit, or a body that
// does not decode. It is the only error the clients return.
var ErrUnavailable = errors.New("provider unavailable")

const (
	outcomeOK          = "ok"
	outcomeUnavailable = "unavailable"
)

// httpClient builds the bounded client each provider uses.
func httpClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// observe records the outcome and latency of one provider call.
func observe(provider string, start time.Time, err error) {
	metrics.ProviderRequestDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	outcome := outcomeOK
	if err != nil {
		outcome = outcomeUnavailable
	}
	metrics.ProviderRequestsTotal.WithLabelValues(provider, outcome).Inc()
}

// guard consults the circuit breaker before a call. A nil breaker always
// admits.
func guard(b *circuitbreaker.Breaker, provider string) bool {
	return b == nil || b.Allow(provider)
}

// record reports the call result to the breaker.
func record(b *circuitbreaker.Breaker, provider string, err error) {
	if b == nil {
		return
	}
	if err != nil {
		b.RecordFailure(provider)
	} else {
		b.RecordSuccess(provider)
	}
}

// flag interprets the provider's string-coded booleans ("1" = true).
// Absent or garbled values default to false.
func flag(s string) bool {
	return strings.TrimSpace(s) == "1"
}

// taxPercent parses a fractional tax string ("0.02" = 2%) into a
// percentage. Absent or garbled values default to 0.
func taxPercent(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return 0
	}
	return f * 100
}

// floatOr parses a float string with a default.
func floatOr(s string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return def
	}
	return f
}

// intOr parses an int string with a default.
func intOr(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}
