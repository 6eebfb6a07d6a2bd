// Package diag collects per-transfer counters for the driver and can
// render them into a pprof profile for offline inspection. It exists
// purely to be dumped and read later, never to influence any
// control-flow decision.
package diag

import (
	"io"
	"sync/atomic"

	"github.com/google/pprof/profile"
)

// / Counter_t is a statistical counter, incremented with atomic adds so
// / it can be shared across the goroutines issuing hardware transfers.
type Counter_t int64

// / Inc increments the counter by one.
func (c *Counter_t) Inc() {
	atomic.AddInt64((*int64)(c), 1)
}

// / Add adds n to the counter.
func (c *Counter_t) Add(n int64) {
	atomic.AddInt64((*int64)(c), n)
}

// / Get returns the counter's current value.
func (c *Counter_t) Get() int64 {
	return atomic.LoadInt64((*int64)(c))
}

// / Counters holds one counter per kind of completed transfer or retry
// / this driver performs. Every completed PIO read, PIO write, DMA read,
// / or ATAPI read increments its counter; nothing reads these to make a
// / decision, they exist only to be exported.
type Counters struct {
	PIOReads           Counter_t
	PIOWrites          Counter_t
	DMAReads           Counter_t
	ATAPIReads         Counter_t
	WriteVerifyRetries Counter_t
	HardwareErrors     Counter_t
}

// / names lists the counters in the fixed order Snapshot and Profile use,
// / so the two stay in lockstep without reflection.
var names = [...]string{
	"pio_reads", "pio_writes", "dma_reads", "atapi_reads",
	"write_verify_retries", "hardware_errors",
}

func (c *Counters) values() [6]int64 {
	return [6]int64{
		c.PIOReads.Get(), c.PIOWrites.Get(), c.DMAReads.Get(),
		c.ATAPIReads.Get(), c.WriteVerifyRetries.Get(), c.HardwareErrors.Get(),
	}
}

// / Snapshot returns the current counter values keyed by name.
func (c *Counters) Snapshot() map[string]int64 {
	vals := c.values()
	m := make(map[string]int64, len(names))
	for i, n := range names {
		m[n] = vals[i]
	}
	return m
}

// / Profile renders the counters into a single-sample pprof profile with
// / one sample type per counter, so `go tool pprof` can inspect a dump
// / of this driver's activity.
func (c *Counters) Profile() *profile.Profile {
	vals := c.values()
	p := &profile.Profile{
		SampleType: make([]*profile.ValueType, len(names)),
		Sample: []*profile.Sample{
			{Value: make([]int64, len(names))},
		},
	}
	for i, n := range names {
		p.SampleType[i] = &profile.ValueType{Type: n, Unit: "count"}
		p.Sample[0].Value[i] = vals[i]
	}
	return p
}

// / WriteTo serializes a Profile snapshot as a gzip-compressed protobuf,
// / the format `go tool pprof` reads directly.
func (c *Counters) WriteTo(w io.Writer) error {
	return c.Profile().Write(w)
}
