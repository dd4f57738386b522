package ratelimit

import (
	"sync"
	"time"
)

// BreakerState is one of closed, open, half-open (spec §4.7).
type BreakerState int

const (
	Closed BreakerState = iota
	Open
	HalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// circuitBreaker implements the state machine of spec §4.7 / scenario S6.
type circuitBreaker struct {
	mu sync.Mutex

	failureThreshold int
	successThreshold int
	timeout          time.Duration
	maxHalfOpen      int
	now              func() time.Time

	state           BreakerState
	failureCount    int
	successCount    int
	openedAt        time.Time
	halfOpenInFlight int
}

func newCircuitBreaker(failureThreshold, successThreshold, maxHalfOpen int, timeout time.Duration, now func() time.Time) *circuitBreaker {
	return &circuitBreaker{
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		timeout:          timeout,
		maxHalfOpen:      maxHalfOpen,
		now:              now,
		state:            Closed,
	}
}

// admit reports whether a new request may proceed, transitioning open ->
// half-open once timeout has elapsed.
func (b *circuitBreaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if b.now().Sub(b.openedAt) >= b.timeout {
			b.state = HalfOpen
			b.successCount = 0
			b.halfOpenInFlight = 0
		} else {
			return false
		}
		fallthrough
	case HalfOpen:
		if b.halfOpenInFlight >= b.maxHalfOpen {
			return false
		}
		b.halfOpenInFlight++
		return true
	}
	return false
}

// record updates breaker state following the outcome of an admitted
// request.
func (b *circuitBreaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.halfOpenInFlight--
		if b.halfOpenInFlight < 0 {
			b.halfOpenInFlight = 0
		}
		if success {
			b.successCount++
			if b.successCount >= b.successThreshold {
				b.state = Closed
				b.failureCount = 0
				b.successCount = 0
			}
		} else {
			b.trip()
		}
	case Closed:
		if success {
			b.failureCount = 0
			return
		}
		b.failureCount++
		if b.failureCount >= b.failureThreshold {
			b.trip()
		}
	case Open:
		// A record for a request issued before the last trip; ignore.
	}
}

func (b *circuitBreaker) trip() {
	b.state = Open
	b.openedAt = b.now()
	b.failureCount = 0
	b.successCount = 0
	b.halfOpenInFlight = 0
}

// release returns an admitted half-open slot without recording a success
// or failure, for callers that were admitted by the breaker but then
// denied by the token bucket or sliding window before ever reaching the
// network — that denial says nothing about the resource's health.
func (b *circuitBreaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == HalfOpen && b.halfOpenInFlight > 0 {
		b.halfOpenInFlight--
	}
}

func (b *circuitBreaker) currentState() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
