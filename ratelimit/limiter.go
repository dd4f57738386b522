package ratelimit

import (
	"sync"
	"time"

	"github.com/luxfi/agentsync/agentsyncerr"
	"github.com/luxfi/agentsync/config"
	"github.com/luxfi/agentsync/obs"
)

const component = "ratelimit"

// Stats is returned to a caller on admission decisions, for structured
// rate-limit errors and the optional HTTP sidecar's /stats endpoint.
type Stats struct {
	Resource     string       `json:"resource"`
	BreakerState BreakerState `json:"breaker_state"`
	TokensLeft   float64      `json:"-"`
}

type resourceState struct {
	bucket  *tokenBucket
	window  *slidingWindow
	breaker *circuitBreaker
}

// Limiter is the sole admission gate (spec §4.7): check(resource,
// client_id) followed by record(resource, success). Critical sections are
// per-resource, so no two resources contend (spec §5).
type Limiter struct {
	mu        sync.Mutex
	resources map[string]*resourceState
	cfg       config.RateLimit
	metrics   *obs.Metrics
	log       obs.Logger
	now       func() time.Time
}

// New builds a Limiter. metrics and log may be nil to fall back to no-op
// instrumentation.
func New(cfg config.RateLimit, metrics *obs.Metrics, log obs.Logger) *Limiter {
	if log == nil {
		log = obs.NewNoOpLogger()
	}
	return &Limiter{
		resources: map[string]*resourceState{},
		cfg:       cfg,
		metrics:   metrics,
		log:       log,
		now:       time.Now,
	}
}

func (l *Limiter) stateFor(resource string) *resourceState {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rs, ok := l.resources[resource]; ok {
		return rs
	}
	rs := &resourceState{
		bucket:  newTokenBucket(l.cfg.RequestsPerSecond, l.cfg.BurstSize, l.now),
		window:  newSlidingWindow(l.cfg.WindowLimit, l.cfg.WindowSize, l.now),
		breaker: newCircuitBreaker(l.cfg.FailureThreshold, l.cfg.SuccessThreshold, l.cfg.MaxHalfOpen, l.cfg.BreakerTimeout, l.now),
	}
	l.resources[resource] = rs
	return rs
}

// Check is the sole admission gate. clientID is accepted for parity with
// the external HTTP surface (spec §6) but this implementation applies
// limits per resource, not per client.
func (l *Limiter) Check(resource, clientID string) (bool, Stats, error) {
	rs := l.stateFor(resource)
	stats := Stats{Resource: resource, BreakerState: rs.breaker.currentState()}

	if !rs.breaker.admit() {
		l.deny(resource)
		return false, stats, agentsyncerr.New(component, agentsyncerr.RateLimited, "", "circuit breaker open for resource "+resource, nil)
	}
	if !rs.bucket.allow() {
		rs.breaker.release()
		l.deny(resource)
		return false, stats, agentsyncerr.New(component, agentsyncerr.RateLimited, "", "token bucket exhausted for resource "+resource, nil)
	}
	if !rs.window.allow() {
		rs.breaker.release()
		l.deny(resource)
		return false, stats, agentsyncerr.New(component, agentsyncerr.RateLimited, "", "sliding window limit exceeded for resource "+resource, nil)
	}
	return true, stats, nil
}

func (l *Limiter) deny(resource string) {
	if l.metrics != nil {
		l.metrics.RateLimitDenied.WithLabelValues(resource).Inc()
	}
}

// Record reports the outcome of a previously admitted request, updating
// circuit-breaker state.
func (l *Limiter) Record(resource string, success bool) {
	rs := l.stateFor(resource)
	rs.breaker.record(success)
	if l.metrics != nil {
		l.metrics.CircuitBreakerState.WithLabelValues(resource).Set(float64(rs.breaker.currentState()))
	}
}

// StatsFor returns the current breaker state for resource without
// consuming any capacity.
func (l *Limiter) StatsFor(resource string) Stats {
	rs := l.stateFor(resource)
	return Stats{Resource: resource, BreakerState: rs.breaker.currentState()}
}

// SetConfig replaces the limits applied to every resource created from
// this point forward; already-constructed per-resource state (existing
// buckets, windows, breakers) keeps running under the config it was built
// with. Backs the HTTP sidecar's POST /config (spec §6).
func (l *Limiter) SetConfig(cfg config.RateLimit) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg = cfg
}
