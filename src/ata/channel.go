package ata

import (
	"ioport"
	"mem"
	"pci"
	"sync"

	"diag"
	"iotime"
)

// / Channel is one of the four static (io_base, control, slave) endpoints
// / of a legacy IDE controller: primary-master, primary-slave,
// / secondary-master, secondary-slave. It owns the register access for
// / one drive position and, once probed, its IDENTIFY block and (for
// / PATA drives) DMA region. Lifetime is process-global: created once at
// / controller init, never destroyed.
type Channel struct {
	Bus     ioport.Bus
	IOBase  uint16
	Control uint16
	Slave   int

	IsATAPI bool
	ID      Identify

	dma      *mem.DMARegion
	bmBase   uint32
	bmOffset uint16
	haveDMA  bool

	lock    *sync.Mutex
	stats   *diag.Counters
	latency *iotime.Latency
}

// / NewChannel builds an unprobed channel descriptor for one of the four
// / canonical (io_base, control) pairs. lock is the single process-global
// / spinlock shared across every channel on the controller.
// / bmOffset is the bus-master register window offset from BAR4: 0 for the
// / primary channel, 8 for the secondary, per the PIIX/PIIX3 convention of
// / packing both channels' eight-byte bus-master windows into one BAR.
func NewChannel(bus ioport.Bus, ioBase, control uint16, slave int, bmOffset uint16, lock *sync.Mutex, stats *diag.Counters, latency *iotime.Latency) *Channel {
	return &Channel{
		Bus: bus, IOBase: ioBase, Control: control, Slave: slave, bmOffset: bmOffset,
		lock: lock, stats: stats, latency: latency,
	}
}

func (c *Channel) out8(reg int, v uint8)  { c.Bus.Out8(c.IOBase+uint16(reg), v) }
func (c *Channel) in8(reg int) uint8      { return c.Bus.In8(c.IOBase + uint16(reg)) }
func (c *Channel) out16(reg int, v uint16) { c.Bus.Out16(c.IOBase+uint16(reg), v) }
func (c *Channel) in16(reg int) uint16    { return c.Bus.In16(c.IOBase + uint16(reg)) }

// / stall performs the "400ns" settle wait by reading the alternate
// / status port four times.
func (c *Channel) stall() {
	ioport.Stall(c.Bus, c.Control+RegAltStatus)
}

// / SoftReset pulses the control port's reset bit.
func (c *Channel) SoftReset() {
	c.Bus.Out8(c.Control+RegControl, 0x04)
	c.stall()
	c.Bus.Out8(c.Control+RegControl, 0x00)
}

// / statusWait polls REG_STATUS until BSY clears or, if cap > 0, until
// / cap iterations have elapsed. It returns the final status byte and
// / whether BSY was actually observed clear.
func (c *Channel) statusWait(cap int) (status uint8, cleared bool) {
	for i := 0; cap <= 0 || i < cap; i++ {
		status = c.in8(RegStatus)
		if status&SrBSY == 0 {
			return status, true
		}
	}
	return status, false
}

// / wait polls for BSY clear and, if advanced, additionally requires
// / neither ERR nor DF be set and DRQ be set. It returns true on
// / failure.
func (c *Channel) wait(advanced bool) bool {
	c.stall()
	status, _ := c.statusWait(0)
	if !advanced {
		return false
	}
	status = c.in8(RegStatus)
	if status&SrErr != 0 || status&SrDF != 0 || status&SrDRQ == 0 {
		return true
	}
	return false
}

// / Signature classifies a probed channel by the LBA1/LBA2 bytes left
// / after a soft reset and drive select.
type Signature int

const (
	SigAbsent Signature = iota
	SigPATA
	SigATAPI
	SigUnknown
)

// / Detect runs the drive-detection sequence: soft reset, drive select,
// / a generous busy-clear poll, and signature classification. It does
// / not yet issue IDENTIFY/IDENTIFY PACKET; call IdentifyPATA or
// / IdentifyATAPI once the signature says which.
func (c *Channel) Detect() Signature {
	c.SoftReset()
	c.stall()
	c.out8(RegHDDevSel, 0xA0|uint8(c.Slave<<4))
	c.stall()
	c.statusWait(10000)

	lba1 := c.in8(RegLBA1)
	lba2 := c.in8(RegLBA2)

	switch {
	case lba1 == 0xFF && lba2 == 0xFF:
		return SigAbsent
	case (lba1 == 0x00 && lba2 == 0x00) || (lba1 == 0x3C && lba2 == 0xC3):
		return SigPATA
	case (lba1 == 0x14 && lba2 == 0xEB) || (lba1 == 0x69 && lba2 == 0x96):
		return SigATAPI
	default:
		return SigUnknown
	}
}

// / identifyCommon issues cmd (IDENTIFY or IDENTIFY PACKET), waits for
// / the response, and reads the 256-word block.
func (c *Channel) identifyCommon(cmd uint8) [IdentifyWords]uint16 {
	c.out8(RegHDDevSel, 0xA0|uint8(c.Slave<<4))
	c.stall()
	c.out8(RegCommand, cmd)
	c.stall()
	c.wait(false)

	var words [IdentifyWords]uint16
	ioport.ReadWords(c.Bus, c.IOBase+RegData, words[:])
	return words
}

// / IdentifyPATA runs the IDENTIFY DEVICE sequence for a PATA-signature
// / channel and records the resulting Identify block.
func (c *Channel) IdentifyPATA() {
	words := c.identifyCommon(CmdIdentify)
	c.ID = DecodeIdentify(words)
	c.IsATAPI = false
}

// / IdentifyATAPI runs the IDENTIFY PACKET DEVICE sequence for an
// / ATAPI-signature channel and records the resulting Identify block.
func (c *Channel) IdentifyATAPI() {
	words := c.identifyCommon(CmdIdentifyPacket)
	c.ID = DecodeIdentify(words)
	c.IsATAPI = true
}

// / InitDMA allocates the PRDT and bounce buffer and arms bus-master
// / access via BAR4. It returns false — leaving the channel PIO-only —
// / when BAR4 is not an I/O-space BAR, since arming bus-master commands
// / against a memory-mapped BAR4 would target garbage ports.
func (c *Channel) InitDMA(alloc mem.DMAAllocator, cs pci.ConfigSpace, addr pci.Addr) bool {
	region, ok := mem.NewDMARegion(alloc)
	if !ok {
		return false
	}
	pci.EnableBusMastering(cs, addr)
	base, isIO := pci.BusMasterBase(cs, addr)
	if !isIO {
		return false
	}
	c.dma = region
	c.bmBase = base + uint32(c.bmOffset)
	c.haveDMA = true
	return true
}

// / HasDMA reports whether InitDMA succeeded for this channel.
func (c *Channel) HasDMA() bool {
	return c.haveDMA
}

// / MaxOffset returns the device's capacity in bytes.
func (c *Channel) MaxOffset() uint64 {
	return c.ID.MaxOffset()
}
