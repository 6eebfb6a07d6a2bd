// Package iotime tracks how long each hardware transfer takes: a
// running total plus a start/finish pair for a single span, both safe
// to read concurrently with the transfer they measure.
package iotime

import (
	"sync"
	"sync/atomic"
	"time"
)

// / Totals accumulates elapsed nanoseconds across every transfer of a
// / given kind, plus a count so callers can derive an average.
type Totals struct {
	Nanos int64
	Count int64
	mu    sync.Mutex
}

// / Span is an in-flight measurement of a single transfer, started with
// / Start and closed with Finish; the zero value is not usable.
type Span struct {
	begin time.Time
	dst   *Totals
}

// / Start begins timing a transfer whose elapsed time will be folded into
// / dst when Finish is called.
func Start(dst *Totals) Span {
	return Span{begin: time.Now(), dst: dst}
}

// / Finish records the elapsed time since Start into the destination
// / Totals. Safe to call from any goroutine, including one that isn't the
// / one that called Start, matching the DMA path where the issuing
// / goroutine starts the span and the completion poll finishes it.
func (s Span) Finish() time.Duration {
	if s.dst == nil {
		return 0
	}
	d := time.Since(s.begin)
	atomic.AddInt64(&s.dst.Nanos, int64(d))
	atomic.AddInt64(&s.dst.Count, 1)
	return d
}

// / Mean returns the average duration recorded so far, or zero if no
// / spans have finished yet.
func (t *Totals) Mean() time.Duration {
	n := atomic.LoadInt64(&t.Count)
	if n == 0 {
		return 0
	}
	return time.Duration(atomic.LoadInt64(&t.Nanos) / n)
}

// / Merge folds another Totals into this one under lock, for combining
// / per-channel accounting into a controller-wide summary.
func (t *Totals) Merge(o *Totals) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Nanos += atomic.LoadInt64(&o.Nanos)
	t.Count += atomic.LoadInt64(&o.Count)
}

// / Latency groups the per-kind totals this driver tracks: one bucket per
// / transfer kind this driver's diagnostics distinguish.
type Latency struct {
	PIORead  Totals
	PIOWrite Totals
	DMARead  Totals
	ATAPI    Totals
}
