package mem_test

import (
	"testing"

	"mem"

	. "gopkg.in/check.v1"
)

func Test(t *testing.T) { TestingT(t) }

type dmaRegionSuite struct{}

var _ = Suite(&dmaRegionSuite{})

// / fakeAllocator hands out one page per call, bumping a fake physical
// / address, mirroring the shape ataemu.Emulator.Alloc uses for real
// / tests but kept local here so this suite has no dependency outside
// / the standard library and the package under test.
type fakeAllocator struct {
	next  mem.Pa_t
	fail  bool
	pages [][]byte
}

func (a *fakeAllocator) Alloc(n int) ([]byte, mem.Pa_t, bool) {
	if a.fail {
		return nil, 0, false
	}
	buf := make([]byte, n)
	phys := a.next
	a.next += mem.Pa_t(n)
	a.pages = append(a.pages, buf)
	return buf, phys, true
}

func (s *dmaRegionSuite) TestNewDMARegionWiresPRDTToBuffer(c *C) {
	alloc := &fakeAllocator{next: 0x1000}
	r, ok := mem.NewDMARegion(alloc)
	c.Assert(ok, Equals, true)
	c.Check(r.BufPhys, Equals, mem.Pa_t(0x1000+mem.PGSIZE))
	c.Check(r.PRDT[0].Phys, Equals, r.BufPhys)
	c.Check(r.PRDT[0].Bytes, Equals, uint16(mem.SECTSZ))
	c.Check(r.PRDT[0].Flags, Equals, uint16(mem.PRDEOT))
	c.Check(len(r.Buf), Equals, mem.SECTSZ)
}

func (s *dmaRegionSuite) TestNewDMARegionWritesPRDTBytesIntoPhysicalMemory(c *C) {
	alloc := &fakeAllocator{next: 0x2000}
	r, ok := mem.NewDMARegion(alloc)
	c.Assert(ok, Equals, true)

	prdtPage := alloc.pages[0]
	c.Check(prdtPage[:8], DeepEquals, r.Bytes())
}

func (s *dmaRegionSuite) TestNewDMARegionFailsClosedWhenAllocatorExhausted(c *C) {
	alloc := &fakeAllocator{fail: true}
	_, ok := mem.NewDMARegion(alloc)
	c.Check(ok, Equals, false)
}

func (s *dmaRegionSuite) TestBytesEncodesEndOfTableFlag(c *C) {
	r := &mem.DMARegion{PRDT: [1]mem.PRDEntry{{Phys: 0x12345678, Bytes: 512, Flags: mem.PRDEOT}}}
	b := r.Bytes()
	c.Assert(len(b), Equals, 8)
	c.Check(b[0], Equals, byte(0x78))
	c.Check(b[3], Equals, byte(0x12))
	c.Check(b[4], Equals, byte(0x00))
	c.Check(b[5], Equals, byte(0x02))
	c.Check(b[6], Equals, byte(0x00))
	c.Check(b[7], Equals, byte(0x80))
}
