// Package vfsdev defines the block-device node capability contract: the
// four operations (read/write/open/close) plus the attributes a VFS
// collaborator needs to publish a node, and the two
// concrete node kinds — PATA hard disk and ATAPI optical — that
// implement it over package blkio's byte-range planner: a small
// capability interface the VFS consumes polymorphically rather than a
// table of function pointers.
package vfsdev

import (
	"ata"
	"atapi"
	"blkio"
	"defs"
	"scratch"
	"stat"
)

// / Attrs carries the node metadata every published node exposes:
// / block-device flag, capacity, permission mask, ownership,
// / and its published name. Flags and Mask round-trip through
// / stat.EncodeMode/DecodeMode so this metadata stays bit-compatible with
// / the packed mode word a stat(2)-serving VFS eventually hands back to
// / userspace.
type Attrs struct {
	Flags  uint
	Length uint64
	Mask   uint
	UID    uint
	GID    uint
	Name   string
}

// / newAttrs packs and immediately unpacks flags/mask through
// / stat.EncodeMode/DecodeMode, the same transform the VFS layer applies
// / when it serializes this node's stat(2) mode word.
func newAttrs(flags uint, length uint64, mask uint, name string) Attrs {
	flags, mask = stat.DecodeMode(stat.EncodeMode(flags, mask))
	return Attrs{Flags: flags, Length: length, Mask: mask, Name: name}
}

// / Node is the capability contract every published block device
// / satisfies, consumed polymorphically by the VFS collaborator.
type Node interface {
	Read(offset int64, size int, buf []byte) (int, error)
	Write(offset int64, size int, buf []byte) (int, error)
	Open() error
	Close() error
	Attrs() Attrs
}

// / PATANode publishes a PATA channel as a /dev/hd<letter> block device.
type PATANode struct {
	ch   *ata.Channel
	pool *scratch.Pool
	name string
}

// / NewPATANode wraps a probed, DMA/PIO-ready channel as a Node.
func NewPATANode(ch *ata.Channel, name string) *PATANode {
	return &PATANode{ch: ch, pool: scratch.NewPool(ata.SectorSize), name: name}
}

// / Capacity implements blkio.SectorDevice.
func (n *PATANode) Capacity() uint64 { return n.ch.MaxOffset() }

// / SectorSize implements blkio.SectorDevice.
func (n *PATANode) SectorSize() int { return ata.SectorSize }

// / ReadSector implements blkio.SectorDevice.
func (n *PATANode) ReadSector(sector uint64, buf []byte) defs.Err_t {
	return n.ch.ReadSector(sector, buf)
}

// / WriteSector implements blkio.WritableSectorDevice.
func (n *PATANode) WriteSector(sector uint64, buf []byte) defs.Err_t {
	return n.ch.WriteSectorRetry(sector, buf)
}

// / Read services a VFS read call by delegating to blkio's byte-range
// / planner.
func (n *PATANode) Read(offset int64, size int, buf []byte) (int, error) {
	got, err := blkio.Read(n, n.pool, offset, size, buf)
	return got, err.ToError()
}

// / Write services a VFS write call by delegating to blkio's byte-range
// / planner.
func (n *PATANode) Write(offset int64, size int, buf []byte) (int, error) {
	got, err := blkio.Write(n, n.pool, offset, size, buf)
	return got, err.ToError()
}

// / Open is a no-op.
func (n *PATANode) Open() error { return nil }

// / Close is a no-op.
func (n *PATANode) Close() error { return nil }

// / Attrs reports this node's published metadata.
func (n *PATANode) Attrs() Attrs {
	return newAttrs(defs.BLOCK_DEVICE, n.ch.MaxOffset(), defs.DefaultMask, n.name)
}

// / ATAPINode publishes an ATAPI device as a /dev/cdrom<n> block device.
// / It never accepts writes: this driver does not support writing ATAPI media.
type ATAPINode struct {
	dev  *atapi.Device
	pool *scratch.Pool
	name string
}

// / NewATAPINode wraps a probed ATAPI device as a Node.
func NewATAPINode(dev *atapi.Device, name string) *ATAPINode {
	sectorSize := int(dev.Cap.SectorSize)
	if sectorSize == 0 {
		sectorSize = 2048
	}
	return &ATAPINode{dev: dev, pool: scratch.NewPool(sectorSize), name: name}
}

// / Capacity implements blkio.SectorDevice.
func (n *ATAPINode) Capacity() uint64 { return n.dev.Cap.MaxOffset() }

// / SectorSize implements blkio.SectorDevice.
func (n *ATAPINode) SectorSize() int { return n.pool.Size() }

// / ReadSector implements blkio.SectorDevice.
func (n *ATAPINode) ReadSector(sector uint64, buf []byte) defs.Err_t {
	return n.dev.ReadSector(sector, buf)
}

// / Read services a VFS read call. No medium (Capacity() == 0) reads
// / zero bytes.
func (n *ATAPINode) Read(offset int64, size int, buf []byte) (int, error) {
	got, err := blkio.Read(n, n.pool, offset, size, buf)
	return got, err.ToError()
}

// / Write always fails: ATAPI media is read-only in this driver.
func (n *ATAPINode) Write(offset int64, size int, buf []byte) (int, error) {
	return 0, defs.EINVAL.ToError()
}

// / Open is a no-op.
func (n *ATAPINode) Open() error { return nil }

// / Close is a no-op.
func (n *ATAPINode) Close() error { return nil }

// / Attrs reports this node's published metadata.
func (n *ATAPINode) Attrs() Attrs {
	return newAttrs(defs.BLOCK_DEVICE, n.dev.Cap.MaxOffset(), defs.DefaultMask, n.name)
}
