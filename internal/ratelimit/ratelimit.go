// Package ratelimit throttles how fast a retrieval is written to the local
// sink. Since the body shares the control connection, slowing the writer
// slows the reads behind it and the server sees TCP backpressure.
package ratelimit

import (
	"io"
	"time"
)

// maxWait caps a single pause so a large write never blocks for long.
const maxWait = time.Second

// Limiter is a token bucket holding up to one second worth of bytes.
//
// A Limiter serves a single transfer and is not safe for concurrent use.
// A nil *Limiter never waits.
type Limiter struct {
	rate       float64
	burst      float64
	tokens     float64
	lastUpdate time.Time

	// now and sleep are replaced in tests
	now   func() time.Time
	sleep func(time.Duration)
}

// New returns a limiter for bytesPerSecond, or nil when the value is not
// positive (unlimited).
func New(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	rate := float64(bytesPerSecond)
	l := &Limiter{
		rate:  rate,
		burst: rate,
		now:   time.Now,
		sleep: time.Sleep,
	}
	l.tokens = rate
	l.lastUpdate = l.now()
	return l
}

func (l *Limiter) refill() {
	now := l.now()
	l.tokens += now.Sub(l.lastUpdate).Seconds() * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.lastUpdate = now
}

// Wait blocks until n bytes may be written. It returns the time spent
// waiting.
func (l *Limiter) Wait(n int) time.Duration {
	if l == nil || n <= 0 {
		return 0
	}

	l.refill()
	need := float64(n)
	if l.tokens >= need {
		l.tokens -= need
		return 0
	}

	wait := min(time.Duration((need-l.tokens)/l.rate*float64(time.Second)), maxWait)
	l.sleep(wait)

	l.refill()
	// Bounded by maxWait, so a chunk larger than the bucket drains it
	l.tokens = max(l.tokens-need, 0)
	return wait
}

type writer struct {
	w       io.Writer
	limiter *Limiter
}

// chunkSize keeps each pause short relative to the one second burst.
const chunkSize = 8 * 1024

// NewWriter returns w throttled by limiter. A nil limiter returns w
// unchanged.
func NewWriter(w io.Writer, limiter *Limiter) io.Writer {
	if limiter == nil {
		return w
	}
	return &writer{w: w, limiter: limiter}
}

// Write implements io.Writer, pausing before each chunk.
func (w *writer) Write(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n := min(len(p)-total, chunkSize)
		w.limiter.Wait(n)
		written, err := w.w.Write(p[total : total+n])
		total += written
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
