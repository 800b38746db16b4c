// Package backoff provides the delay strategies the Executor waits on
// between execution attempts of the same job. Strategies are stateless and
// safe for concurrent use.
package backoff

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry n (1-indexed). Retry 1
	// follows the first failed attempt.
	Delay(retry int) time.Duration
}

// Kind names a strategy in configuration.
type Kind string

const (
	KindNone        Kind = "none"
	KindConstant    Kind = "constant"
	KindExponential Kind = "exponential"
	KindJitter      Kind = "jitter"
)

// ──────────────────────────────────────────────────
// None
// ──────────────────────────────────────────────────

// None retries immediately.
type None struct{}

// Delay always returns zero.
func (None) Delay(int) time.Duration { return 0 }

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant waits the same interval before every retry.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(int) time.Duration {
	return c.Interval
}

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential doubles the delay each retry: min(Initial * 2^(n-1), Max).
// With Jitter set the result is drawn uniformly from [0, that bound].
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
	Jitter  bool
}

// NewExponential creates an exponential strategy without jitter.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// NewJitter creates an exponential strategy with full jitter.
func NewJitter(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay, Jitter: true}
}

// Delay returns the capped exponential delay for retry n.
func (e *Exponential) Delay(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	bound := float64(e.Initial) * math.Pow(2, float64(retry-1))
	if e.Max > 0 && bound > float64(e.Max) {
		bound = float64(e.Max)
	}
	if e.Jitter {
		bound *= rand.Float64() //nolint:gosec // jitter intentionally uses non-crypto rand
	}
	return time.Duration(bound)
}

// ──────────────────────────────────────────────────
// Construction
// ──────────────────────────────────────────────────

// Parse builds a strategy from its configured kind. initial is the first
// delay (or the constant interval) and maxDelay caps the exponential kinds.
func Parse(kind string, initial, maxDelay time.Duration) (Strategy, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(kind))) {
	case KindNone:
		return None{}, nil
	case KindConstant:
		return NewConstant(initial), nil
	case KindExponential:
		return NewExponential(initial, maxDelay), nil
	case KindJitter, "":
		return NewJitter(initial, maxDelay), nil
	default:
		return nil, fmt.Errorf("backoff: unknown strategy %q", kind)
	}
}

// DefaultStrategy returns the Executor's default backoff: jittered
// exponential starting at 100ms, capped at 5s.
func DefaultStrategy() Strategy {
	return NewJitter(100*time.Millisecond, 5*time.Second)
}
