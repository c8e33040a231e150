package market

import (
	"sync"
	"time"
)

type HealthState int

const (
	StateHealthy HealthState = iota
	StateDegraded
	StateBackoff
)

func (s HealthState) String() string {
	switch s {
	case StateHealthy:
		return "HEALTHY"
	case StateDegraded:
		return "DEGRADED"
	case StateBackoff:
		return "BACKOFF"
	default:
		return "UNKNOWN"
	}
}

// Health tracks rolling reliability and latency for one provider. It is a
// small state machine: HEALTHY -> DEGRADED -> BACKOFF -> HEALTHY. While in
// BACKOFF the provider is skipped until its deadline elapses; the first
// call after the deadline acts as a probe.
type Health struct {
	mu        sync.Mutex
	name      string
	state     HealthState
	successes float64
	failures  float64
	threshold float64

	backoff      time.Duration
	backoffBase  time.Duration
	backoffMax   time.Duration
	backoffUntil time.Time

	lastLatency time.Duration

	onStateChange func(name string, from, to HealthState)
}

func NewHealth(name string, threshold float64, backoffBase, backoffMax time.Duration) *Health {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.5
	}
	if backoffBase <= 0 {
		backoffBase = 5 * time.Second
	}
	if backoffMax < backoffBase {
		backoffMax = 5 * time.Minute
	}
	return &Health{
		name:        name,
		state:       StateHealthy,
		threshold:   threshold,
		backoffBase: backoffBase,
		backoffMax:  backoffMax,
	}
}

func (h *Health) SetStateChangeHandler(fn func(name string, from, to HealthState)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onStateChange = fn
}

// Available reports whether the provider may be called now.
func (h *Health) Available(now time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateBackoff {
		return true
	}
	return !now.Before(h.backoffUntil)
}

// RecordSuccess decays the failure counter and promotes the state.
func (h *Health) RecordSuccess(latency time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.successes++
	h.failures *= 0.5
	h.lastLatency = latency
	switch h.state {
	case StateBackoff:
		// Probe succeeded, reset backoff entirely.
		h.backoff = 0
		h.backoffUntil = time.Time{}
		h.transition(StateHealthy)
	case StateDegraded:
		if h.failureRateLocked() < h.threshold {
			h.transition(StateHealthy)
		}
	}
}

// RecordFailure bumps the failure counter and arms exponential backoff
// once the rolling failure rate crosses the threshold.
func (h *Health) RecordFailure(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures++
	switch h.state {
	case StateHealthy:
		if h.failureRateLocked() >= h.threshold {
			h.transition(StateDegraded)
		}
	case StateDegraded:
		h.armBackoffLocked(now)
		h.transition(StateBackoff)
	case StateBackoff:
		// Probe failed, double the deadline.
		h.armBackoffLocked(now)
	}
}

func (h *Health) armBackoffLocked(now time.Time) {
	if h.backoff == 0 {
		h.backoff = h.backoffBase
	} else {
		h.backoff *= 2
		if h.backoff > h.backoffMax {
			h.backoff = h.backoffMax
		}
	}
	h.backoffUntil = now.Add(h.backoff)
}

func (h *Health) failureRateLocked() float64 {
	total := h.successes + h.failures
	if total == 0 {
		return 0
	}
	return h.failures / total
}

func (h *Health) FailureRate() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.failureRateLocked()
}

func (h *Health) State() HealthState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Health) LastLatency() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastLatency
}

// rank orders providers for selection: healthy first, then degraded,
// backoff last; ties broken by last observed latency.
func (h *Health) rank() (HealthState, time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state, h.lastLatency
}

func (h *Health) transition(to HealthState) {
	from := h.state
	if from == to {
		return
	}
	h.state = to
	if h.onStateChange != nil {
		go h.onStateChange(h.name, from, to)
	}
}
