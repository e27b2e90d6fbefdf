package ai

import (
	"sync"
	"time"

	"tradesxbt/logger"
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case stateClosed:
		return "closed"
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half_open"
	}
	return "unknown"
}

// breaker stops calling a backend after repeated failures and lets a single
// trial request through once the recovery timeout has passed.
type breaker struct {
	name      string
	threshold int
	recovery  time.Duration
	now       func() time.Time
	log       *logger.Entry

	mu          sync.Mutex
	state       breakerState
	failures    int
	lastFailure time.Time
	probing     bool
}

func newBreaker(name string, threshold int, recovery time.Duration, log *logger.Entry) *breaker {
	if threshold <= 0 {
		threshold = 3
	}
	if recovery <= 0 {
		recovery = time.Minute
	}
	return &breaker{
		name:      name,
		threshold: threshold,
		recovery:  recovery,
		now:       time.Now,
		log:       log.WithField("backend", name),
	}
}

func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateOpen:
		if b.now().Sub(b.lastFailure) < b.recovery {
			return false
		}
		b.state = stateHalfOpen
		b.probing = true
		b.log.Info("circuit half-open, probing backend")
		return true
	default:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
}

func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != stateClosed {
		b.log.Info("circuit closed")
	}
	b.state = stateClosed
	b.failures = 0
	b.probing = false
}

func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastFailure = b.now()
	b.probing = false

	switch b.state {
	case stateHalfOpen:
		b.state = stateOpen
		b.log.Warn("circuit reopened, trial request failed")
	case stateClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.state = stateOpen
			b.log.WithField("failures", b.failures).Warn("circuit opened")
		}
	}
}

func (b *breaker) current() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
