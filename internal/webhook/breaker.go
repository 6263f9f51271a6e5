package webhook

import (
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

const (
	DefaultFailureThreshold = 5
	DefaultBaseCooldown     = time.Minute
)

// circuitState is replaced as a whole on every update, never mutated in place.
type circuitState struct {
	failures     int
	trippedUntil time.Time
}

// CircuitBreaker tracks consecutive delivery failures per target URL. Once a target
// reaches the failure threshold it is blocked for BaseCooldown x failures, so every
// further failure lengthens the next cooldown.
type CircuitBreaker struct {
	FailureThreshold int
	BaseCooldown     time.Duration
	Now              func() time.Time

	states *xsync.MapOf[string, circuitState]
}

func NewCircuitBreaker(threshold int, baseCooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if baseCooldown <= 0 {
		baseCooldown = DefaultBaseCooldown
	}
	return &CircuitBreaker{
		FailureThreshold: threshold,
		BaseCooldown:     baseCooldown,
		Now:              time.Now,
		states:           xsync.NewMapOf[string, circuitState](),
	}
}

func (b *CircuitBreaker) Allow(target string) bool {
	state, ok := b.states.Load(target)
	if !ok {
		return true
	}
	return !b.Now().Before(state.trippedUntil)
}

func (b *CircuitBreaker) RecordFailure(target string) {
	now := b.Now()
	b.states.Compute(target, func(old circuitState, _ bool) (circuitState, bool) {
		next := circuitState{failures: old.failures + 1, trippedUntil: old.trippedUntil}
		if next.failures >= b.FailureThreshold {
			next.trippedUntil = now.Add(b.BaseCooldown * time.Duration(next.failures))
		}
		return next, false
	})
}

func (b *CircuitBreaker) RecordSuccess(target string) {
	b.states.Delete(target)
}

// Cooldown reports how long target stays blocked. It is zero when the target is
// not tripped and BaseCooldown when nothing was ever recorded for it.
func (b *CircuitBreaker) Cooldown(target string) time.Duration {
	state, ok := b.states.Load(target)
	if !ok {
		return b.BaseCooldown
	}
	remaining := state.trippedUntil.Sub(b.Now())
	if state.trippedUntil.IsZero() || remaining <= 0 {
		return 0
	}
	return remaining
}

func (b *CircuitBreaker) Failures(target string) int {
	state, _ := b.states.Load(target)
	return state.failures
}
