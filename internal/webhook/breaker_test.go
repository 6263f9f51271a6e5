package webhook

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

const target = "http://merchant.test/hook"

func newBreaker(clock *fakeClock) *CircuitBreaker {
	b := NewCircuitBreaker(5, time.Minute)
	b.Now = clock.Now
	return b
}

func TestBreaker_FreshTargetAllowed(t *testing.T) {
	b := newBreaker(newFakeClock())
	assert.True(t, b.Allow(target))
	assert.Equal(t, time.Minute, b.Cooldown(target))
}

func TestBreaker_TripsAtThreshold(t *testing.T) {
	clock := newFakeClock()
	b := newBreaker(clock)

	for i := 0; i < 4; i++ {
		b.RecordFailure(target)
	}
	assert.True(t, b.Allow(target))
	assert.Equal(t, time.Duration(0), b.Cooldown(target))

	b.RecordFailure(target)
	assert.False(t, b.Allow(target))
	assert.Equal(t, 300*time.Second, b.Cooldown(target))

	clock.Advance(299 * time.Second)
	assert.False(t, b.Allow(target))
	assert.Equal(t, time.Second, b.Cooldown(target))

	clock.Advance(time.Second)
	assert.True(t, b.Allow(target))
	assert.Equal(t, time.Duration(0), b.Cooldown(target))
}

func TestBreaker_CooldownEscalates(t *testing.T) {
	b := newBreaker(newFakeClock())
	for i := 0; i < 6; i++ {
		b.RecordFailure(target)
	}
	assert.Equal(t, 360*time.Second, b.Cooldown(target))
}

func TestBreaker_SuccessClears(t *testing.T) {
	b := newBreaker(newFakeClock())
	for i := 0; i < 7; i++ {
		b.RecordFailure(target)
	}
	assert.False(t, b.Allow(target))

	b.RecordSuccess(target)
	assert.True(t, b.Allow(target))
	assert.Equal(t, 0, b.Failures(target))
	assert.Equal(t, time.Minute, b.Cooldown(target))
}

func TestBreaker_TargetsAreIndependent(t *testing.T) {
	b := newBreaker(newFakeClock())
	for i := 0; i < 5; i++ {
		b.RecordFailure(target)
	}
	assert.False(t, b.Allow(target))
	assert.True(t, b.Allow("http://other.test/hook"))
}

func TestBreaker_ConcurrentFailures(t *testing.T) {
	b := newBreaker(newFakeClock())

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.RecordFailure(target)
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, b.Failures(target))
	assert.Equal(t, 100*time.Minute, b.Cooldown(target))
}

func TestMetrics_Snapshot(t *testing.T) {
	var m Metrics
	m.IncAttempt()
	m.IncAttempt()
	m.IncSuccess()
	m.IncFailure()

	assert.Equal(t, MetricsSnapshot{Attempts: 2, Successes: 1, Failures: 1}, m.Snapshot())
}
