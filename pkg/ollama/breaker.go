package ollama

import (
	"sync/atomic"
	"time"
)

// breaker opens after threshold consecutive failures and lets one request through
// once reset has elapsed.
type breaker struct {
	threshold int32
	reset     time.Duration

	failures  atomic.Int32
	openUntil atomic.Int64 // unix nano
}

func newBreaker(threshold int, reset time.Duration) *breaker {
	return &breaker{threshold: int32(threshold), reset: reset}
}

func (b *breaker) open() bool {
	if b.failures.Load() < b.threshold {
		return false
	}
	if time.Now().UnixNano() < b.openUntil.Load() {
		return true
	}
	// half-open
	b.failures.Store(0)
	return false
}

func (b *breaker) fail() {
	if b.failures.Add(1) >= b.threshold {
		b.openUntil.Store(time.Now().Add(b.reset).UnixNano())
	}
}

func (b *breaker) succeed() {
	b.failures.Store(0)
}
