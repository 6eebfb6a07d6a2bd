// Package scratch provides the lazily-allocated single-sector buffers the
// byte-range adapter (package blkio) needs for partial-sector
// prefix/postfix handling: a buffer is lazily allocated on first use and
// always released on every exit path. It keeps that discipline but
// drops the ring-buffer indexing a streaming-socket circular buffer
// needs, since a partial-sector read or write only ever needs one whole
// sector at a time.
package scratch

import "sync"

// / Pool hands out fixed-size scratch buffers backed by a sync.Pool, so
// / per-call allocation doesn't churn the garbage collector across the
// / millions of partial-sector operations a long-running block device
// / sees.
type Pool struct {
	size int
	pool sync.Pool
}

// / NewPool builds a pool of buffers of exactly size bytes. size must be a
// / device's sector size (512 for PATA, an ATAPI device's atapi_sector_size
// / otherwise); zero or negative sizes are a caller bug.
func NewPool(size int) *Pool {
	if size <= 0 {
		panic("bad scratch buffer size")
	}
	p := &Pool{size: size}
	p.pool.New = func() interface{} {
		return make([]byte, p.size)
	}
	return p
}

// / Size returns the fixed buffer size this pool hands out.
func (p *Pool) Size() int {
	return p.size
}

// / Get returns a buffer of Size() bytes, its contents unspecified. The
// / caller must return it via Put on every exit path, including error
// / paths.
func (p *Pool) Get() []byte {
	return p.pool.Get().([]byte)
}

// / Put returns a buffer obtained from Get. Buffers of the wrong length
// / are dropped rather than pooled, since a caller that resliced what it
// / was given has broken the pool's fixed-size contract.
func (p *Pool) Put(buf []byte) {
	if len(buf) != p.size {
		return
	}
	p.pool.Put(buf)
}
