package blkio_test

import (
	"bytes"
	"testing"

	"blkio"
	"defs"
	"scratch"
)

// / memDevice is a minimal in-memory WritableSectorDevice for exercising
// / the byte-range planner without any hardware transport.
type memDevice struct {
	sectorSize int
	data       []byte
}

func newMemDevice(sectors, sectorSize int) *memDevice {
	return &memDevice{sectorSize: sectorSize, data: make([]byte, sectors*sectorSize)}
}

func (d *memDevice) Capacity() uint64 { return uint64(len(d.data)) }
func (d *memDevice) SectorSize() int  { return d.sectorSize }

func (d *memDevice) ReadSector(sector uint64, buf []byte) defs.Err_t {
	off := int(sector) * d.sectorSize
	copy(buf, d.data[off:off+d.sectorSize])
	return 0
}

func (d *memDevice) WriteSector(sector uint64, buf []byte) defs.Err_t {
	off := int(sector) * d.sectorSize
	copy(d.data[off:off+d.sectorSize], buf)
	return 0
}

func TestReadWholeSectors(t *testing.T) {
	dev := newMemDevice(4, 512)
	for i := range dev.data {
		dev.data[i] = byte(i)
	}
	pool := scratch.NewPool(512)

	buf := make([]byte, 1024)
	n, err := blkio.Read(dev, pool, 512, 1024, buf)
	if err != 0 || n != 1024 {
		t.Fatalf("Read = (%d, %v), want (1024, 0)", n, err)
	}
	if !bytes.Equal(buf, dev.data[512:1536]) {
		t.Fatal("Read returned wrong bytes for a whole-sector-aligned range")
	}
}

func TestReadUnalignedSpansTwoSectors(t *testing.T) {
	dev := newMemDevice(4, 512)
	for i := range dev.data {
		dev.data[i] = byte(i)
	}
	pool := scratch.NewPool(512)

	buf := make([]byte, 100)
	n, err := blkio.Read(dev, pool, 500, 100, buf)
	if err != 0 || n != 100 {
		t.Fatalf("Read = (%d, %v), want (100, 0)", n, err)
	}
	if !bytes.Equal(buf, dev.data[500:600]) {
		t.Fatal("Read returned wrong bytes for an unaligned range spanning two sectors")
	}
}

func TestReadClampsAtCapacity(t *testing.T) {
	dev := newMemDevice(2, 512)
	pool := scratch.NewPool(512)

	buf := make([]byte, 200)
	n, err := blkio.Read(dev, pool, 1000, 200, buf)
	if err != 0 {
		t.Fatalf("Read err = %v, want 0", err)
	}
	if n != 24 { // capacity 1024, offset 1000 -> only 24 bytes remain
		t.Fatalf("Read n = %d, want 24", n)
	}
}

func TestReadPastCapacityReturnsZero(t *testing.T) {
	dev := newMemDevice(2, 512)
	pool := scratch.NewPool(512)

	buf := make([]byte, 10)
	n, err := blkio.Read(dev, pool, 1024, 10, buf)
	if err != 0 || n != 0 {
		t.Fatalf("Read = (%d, %v), want (0, 0)", n, err)
	}
}

func TestWriteReadModifyWritePreservesNeighbors(t *testing.T) {
	dev := newMemDevice(2, 512)
	for i := range dev.data {
		dev.data[i] = 0xFF
	}
	pool := scratch.NewPool(512)

	payload := bytes.Repeat([]byte{0x11}, 20)
	n, err := blkio.Write(dev, pool, 500, 20, payload)
	if err != 0 || n != 20 {
		t.Fatalf("Write = (%d, %v), want (20, 0)", n, err)
	}
	if !bytes.Equal(dev.data[500:520], payload) {
		t.Fatal("Write did not place payload at the requested offset")
	}
	if dev.data[499] != 0xFF || dev.data[520] != 0xFF {
		t.Fatal("Write clobbered bytes outside the requested range")
	}
}

func TestWriteWholeSectorsSkipsReadModifyWrite(t *testing.T) {
	dev := newMemDevice(2, 512)
	pool := scratch.NewPool(512)

	payload := bytes.Repeat([]byte{0x22}, 512)
	n, err := blkio.Write(dev, pool, 512, 512, payload)
	if err != 0 || n != 512 {
		t.Fatalf("Write = (%d, %v), want (512, 0)", n, err)
	}
	if !bytes.Equal(dev.data[512:1024], payload) {
		t.Fatal("Write did not place a whole-sector payload correctly")
	}
}
