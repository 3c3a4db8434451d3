/**
 * @description
 * A per-upstream circuit breaker. The breaker gates whether an attempt may
 * reach its upstream at all, independently of the routing strategy: CLOSED
 * lets calls through, OPEN refuses them until a cooldown elapses, and
 * HALF_OPEN admits probe calls whose outcomes decide between reopening and
 * closing.
 */

package breaker

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by Do when the breaker refuses the call. No network
// attempt has occurred when this error is seen.
var ErrOpen = errors.New("breaker: circuit is open")

// State is the breaker's position in its lifecycle.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config holds the breaker thresholds.
type Config struct {
	// FailureThreshold is the number of consecutive failures that trips the
	// breaker from CLOSED to OPEN.
	FailureThreshold int
	// Cooldown is how long the breaker stays OPEN before admitting probes.
	Cooldown time.Duration
	// HalfOpenProbes is the number of consecutive probe successes in
	// HALF_OPEN required to close again.
	HalfOpenProbes int
}

// Breaker is a CLOSED/OPEN/HALF_OPEN state machine guarding one upstream.
// It is process-local: each instance forms its own view from the call
// outcomes it observes.
type Breaker struct {
	name   string
	config Config
	logger *slog.Logger

	mu            sync.Mutex
	state         State
	failureCount  int
	successCount  int
	openedAt      time.Time
	now           func() time.Time
}

// New creates a breaker in the CLOSED state.
func New(name string, config Config, logger *slog.Logger) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 10 * time.Second
	}
	if config.HalfOpenProbes <= 0 {
		config.HalfOpenProbes = 1
	}
	return &Breaker{
		name:   name,
		config: config,
		logger: logger,
		state:  StateClosed,
		now:    time.Now,
	}
}

// Do runs fn under the breaker. When the breaker is OPEN and the cooldown has
// not elapsed, fn is not invoked and ErrOpen is returned; otherwise fn runs
// and its outcome feeds the state machine. fn's error is passed through.
func (b *Breaker) Do(fn func() error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn()
	b.after(err)
	return err
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.config.Cooldown {
			return ErrOpen
		}
		b.transition(StateHalfOpen)
	}
	return nil
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failureCount++
		b.successCount = 0
		switch b.state {
		case StateClosed:
			if b.failureCount >= b.config.FailureThreshold {
				b.transition(StateOpen)
			}
		case StateHalfOpen:
			// Any probe failure reopens immediately.
			b.transition(StateOpen)
		}
		return
	}

	b.failureCount = 0
	b.successCount++
	if b.state == StateHalfOpen && b.successCount >= b.config.HalfOpenProbes {
		b.transition(StateClosed)
	}
}

func (b *Breaker) transition(next State) {
	prev := b.state
	b.state = next
	switch next {
	case StateOpen:
		b.openedAt = b.now()
	case StateClosed, StateHalfOpen:
		b.failureCount = 0
		b.successCount = 0
	}
	b.logger.Warn("circuit breaker state transition",
		"breaker", b.name, "from", prev.String(), "to", next.String())
}
