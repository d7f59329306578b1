package feed

import (
	"errors"
	"sync"
	"time"
)

// BreakerState is the upstream-health state of a Breaker.
type BreakerState int

const (
	BreakerClosed   BreakerState = 0 // upstream healthy, calls pass through
	BreakerOpen     BreakerState = 1 // upstream tripped, calls rejected until cool-off
	BreakerHalfOpen BreakerState = 2 // cool-off elapsed, one probe call allowed
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned while the quote source is tripped and the
// cool-off has not elapsed. Callers treat it as a degraded-but-retryable
// condition, not data corruption.
var ErrBreakerOpen = errors.New("quote source circuit open")

// Breaker guards calls to an upstream quote source. After maxFailures
// consecutive failures the breaker trips and rejects calls for coolOff,
// bounding the poll hammering a dead upstream takes. One probe is then
// allowed through; success closes the breaker, failure re-trips it.
type Breaker struct {
	mu       sync.Mutex
	state    BreakerState
	failures int
	tripped  time.Time

	maxFailures int
	coolOff     time.Duration

	// OnStateChange, when set, is invoked on every transition (under the
	// breaker lock, so keep it cheap).
	OnStateChange func(from, to BreakerState)
}

// NewBreaker creates a breaker that trips after maxFailures consecutive
// errors and probes again after coolOff.
func NewBreaker(maxFailures int, coolOff time.Duration) *Breaker {
	return &Breaker{maxFailures: maxFailures, coolOff: coolOff}
}

// Do runs fn unless the breaker is open, and feeds the outcome back into
// the breaker state.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	if b.state == BreakerOpen {
		if time.Since(b.tripped) < b.coolOff {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
		b.transition(BreakerHalfOpen)
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		b.tripped = time.Now()
		if b.state == BreakerHalfOpen || b.failures >= b.maxFailures {
			b.transition(BreakerOpen)
		}
		return err
	}

	if b.state == BreakerHalfOpen {
		b.transition(BreakerClosed)
	}
	b.failures = 0
	return nil
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) transition(to BreakerState) {
	from := b.state
	b.state = to
	if to == BreakerClosed {
		b.failures = 0
	}
	if b.OnStateChange != nil && from != to {
		b.OnStateChange(from, to)
	}
}
