package natsclient

import (
	"sync/atomic"
	"time"
)

// breaker tracks connection failures and decides when the client should stop
// hammering an unreachable broker. A round of failures up to the threshold
// trips it; each trip doubles the probe backoff up to a cap.
type breaker struct {
	threshold  int32
	maxBackoff time.Duration

	total       atomic.Int32 // lifetime failures, exposed for metrics
	round       atomic.Int32 // failures since the last trip or reset
	backoff     atomic.Value // time.Duration
	lastFailure atomic.Value // time.Time
}

func newBreaker(threshold int32, maxBackoff time.Duration) *breaker {
	b := &breaker{threshold: threshold, maxBackoff: maxBackoff}
	b.backoff.Store(time.Second)
	b.lastFailure.Store(time.Time{})
	return b
}

// failure records one failed attempt and returns the lifetime and round
// counts after the increment
func (b *breaker) failure() (total, round int32) {
	total = b.total.Add(1)
	b.lastFailure.Store(time.Now())
	round = b.round.Add(1)
	return total, round
}

// trip closes out the current failure round, doubles the stored backoff up
// to the cap, and returns the delay to wait before the next probe
func (b *breaker) trip() time.Duration {
	cur := b.backoff.Load().(time.Duration)
	next := cur * 2
	if next > b.maxBackoff {
		next = b.maxBackoff
	}
	b.backoff.Store(next)
	b.round.Store(0)
	return cur
}

// reset clears all failure state after a successful connection
func (b *breaker) reset() {
	b.total.Store(0)
	b.round.Store(0)
	b.backoff.Store(time.Second)
	b.lastFailure.Store(time.Time{})
}

func (b *breaker) current() time.Duration {
	return b.backoff.Load().(time.Duration)
}

func (b *breaker) failures() int32 {
	return b.total.Load()
}

func (b *breaker) lastFailureTime() time.Time {
	return b.lastFailure.Load().(time.Time)
}
