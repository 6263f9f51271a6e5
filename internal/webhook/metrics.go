package webhook

import "sync/atomic"

// Metrics counts delivery attempts across all targets. Counters never reset.
type Metrics struct {
	attempts  atomic.Uint64
	successes atomic.Uint64
	failures  atomic.Uint64
}

type MetricsSnapshot struct {
	Attempts  uint64 `json:"attempts"`
	Successes uint64 `json:"successes"`
	Failures  uint64 `json:"failures"`
}

func (m *Metrics) IncAttempt() { m.attempts.Add(1) }
func (m *Metrics) IncSuccess() { m.successes.Add(1) }
func (m *Metrics) IncFailure() { m.failures.Add(1) }

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Attempts:  m.attempts.Load(),
		Successes: m.successes.Load(),
		Failures:  m.failures.Load(),
	}
}
