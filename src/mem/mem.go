// Package mem defines the physical-address types and the DMA region
// (Physical Region Descriptor Table + bounce buffer) this driver needs
// from the DMA-capable physical memory allocator. That allocator itself
// is an external collaborator: this package only describes the
// shape of what it hands back and how a single-entry PRDT is built from
// it, describing the physical pages it needs without owning the
// page-frame database for every caller.
package mem

// / Pa_t is a physical address.
type Pa_t uintptr

// / PGSIZE is the size of a DMA-visible page, matching the 4KiB bounce
// / buffer this driver allocates per device.
const PGSIZE = 4096

// / SECTSZ is the hard-disk sector size this driver speaks; this driver
// / does not support other sector sizes for hard disks.
const SECTSZ = 512

// / PRDEOT marks the final (here: only) entry in a Physical Region
// / Descriptor Table.
const PRDEOT = 0x8000

// / DMAAllocator is implemented by the DMA-capable physical memory
// / allocator. Alloc must return a buffer whose backing physical address
// / is stable and DMA-visible for the lifetime of the device: DMA
// / regions are allocated once at init and never freed.
type DMAAllocator interface {
	Alloc(n int) (buf []byte, phys Pa_t, ok bool)
}

// / PRDEntry is one row of a Physical Region Descriptor Table: a physical
// / address, byte count, and end-of-table flag.
type PRDEntry struct {
	Phys  Pa_t
	Bytes uint16
	Flags uint16
}

// / DMARegion is the per-device DMA state: a one-entry PRDT and its
// / backing 4KiB buffer, both allocated once and never freed.
type DMARegion struct {
	PRDT     [1]PRDEntry
	PRDTPhys Pa_t
	Buf      []byte
	BufPhys  Pa_t
}

// / NewDMARegion allocates the PRDT and bounce buffer and wires the PRDT's
// / single entry to describe the buffer: (buffer_phys, 512, 0x8000). Both
// / allocations must yield a physical address or init fails and the
// / caller falls back to PIO.
func NewDMARegion(alloc DMAAllocator) (*DMARegion, bool) {
	prdtBuf, prdtPhys, ok := alloc.Alloc(PGSIZE)
	if !ok {
		return nil, false
	}
	buf, bufPhys, ok := alloc.Alloc(PGSIZE)
	if !ok {
		return nil, false
	}
	r := &DMARegion{
		PRDTPhys: prdtPhys,
		Buf:      buf[:SECTSZ],
		BufPhys:  bufPhys,
	}
	r.PRDT[0] = PRDEntry{Phys: bufPhys, Bytes: SECTSZ, Flags: PRDEOT}
	// The PRDT is fixed for this device's whole lifetime (one entry
	// describing the one bounce buffer), so its wire bytes are written
	// into the physical table once here rather than before every
	// transfer.
	copy(prdtBuf, r.Bytes())
	return r, true
}

// / Bytes serializes the PRDT into the little-endian wire format the
// / IDE bus-master controller reads: four bytes of physical address, two
// / bytes of byte count, and two bytes of flags with the end-of-table bit
// / in bit 15.
func (r *DMARegion) Bytes() []byte {
	e := r.PRDT[0]
	b := make([]byte, 8)
	b[0] = byte(e.Phys)
	b[1] = byte(e.Phys >> 8)
	b[2] = byte(e.Phys >> 16)
	b[3] = byte(e.Phys >> 24)
	b[4] = byte(e.Bytes)
	b[5] = byte(e.Bytes >> 8)
	b[6] = byte(e.Flags)
	b[7] = byte(e.Flags >> 8)
	return b
}
