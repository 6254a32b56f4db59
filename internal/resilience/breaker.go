// Package resilience guards outbound provider calls against cascading failure.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker is rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type breakerState int

const (
	closed breakerState = iota
	open
	halfOpen
)

// Breaker trips after a run of consecutive failures and rejects calls until
// the cooldown elapses, then lets a single probe through. The probe's outcome
// decides whether the circuit closes again or re-opens.
type Breaker struct {
	mu       sync.Mutex
	state    breakerState
	streak   int
	trip     int
	cooldown time.Duration
	since    time.Time
	clock    func() time.Time
}

// NewBreaker returns a breaker that opens once trip consecutive calls have
// failed and stays open for the cooldown duration.
func NewBreaker(trip int, cooldown time.Duration) *Breaker {
	return &Breaker{trip: trip, cooldown: cooldown, clock: time.Now}
}

// Execute runs fn unless the circuit is open, recording the outcome.
func (b *Breaker) Execute(fn func() error) error {
	if !b.admit() {
		return ErrCircuitOpen
	}

	err := fn()
	b.observe(err)
	return err
}

func (b *Breaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == open {
		if b.clock().Sub(b.since) < b.cooldown {
			return false
		}
		b.state = halfOpen
	}
	return true
}

func (b *Breaker) observe(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.streak = 0
		b.state = closed
		return
	}

	b.streak++
	if b.state == halfOpen || b.streak >= b.trip {
		b.state = open
		b.since = b.clock()
	}
}
