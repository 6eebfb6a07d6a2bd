// Package atapi layers the SCSI-like ATAPI packet protocol on top of the
// ATA register transport: capacity probing via READ CAPACITY(10) and
// IRQ-driven single-sector reads via READ(12), both issued through the
// PACKET (0xA0) command. Grounded on the same register-protocol shape
// package ata uses, since ATAPI shares the ATA command/status registers
// and differs only in how the data phase is framed.
package atapi

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"defs"
	"diag"
	"ioport"
	"iotime"
)

// / Registers and commands ATAPI shares with the ATA transport. Kept
// / local to this package rather than importing package ata, since
// / atapi.Device only ever needs a handful of them and pulls in none of
// / ata's DMA/PIO transport.
const (
	regFeatures  = 1
	regSecCount0 = 2
	regLBA1      = 4
	regLBA2      = 5
	regHDDevSel  = 6
	regCommand   = 7
	regStatus    = 7
	regData      = 0

	srErr  = 0x01
	srDRQ  = 0x08
	srDRDY = 0x40
	srBSY  = 0x80

	cmdPacket = 0xA0
	cmdRead12 = 0xA8
)

// / Capacity holds the fields discovered after a medium-present probe:
// / the last addressable block (inclusive) and the block size. A zero
// / LBA means no medium.
type Capacity struct {
	LBA        uint32
	SectorSize uint32
}

// / MaxOffset returns the device's byte capacity, or zero if no medium
// / was present at probe time.
func (c Capacity) MaxOffset() uint64 {
	if c.LBA == 0 {
		return 0
	}
	return (uint64(c.LBA) + 1) * uint64(c.SectorSize)
}

// / Waiter is the single-slot "one caller, one wakeup" synchronization
// / primitive an ATAPI data-phase wait needs: an inProgress flag plus a
// / condition variable. Only one packet caller may sleep on it at a
// / time, matching the single global ATAPI wait queue and the fact that
// / the outer lock already serializes every transfer across all four
// / channels.
type Waiter struct {
	mu         sync.Mutex
	cond       *sync.Cond
	inProgress bool
}

// / NewWaiter builds a ready-to-use Waiter.
func NewWaiter() *Waiter {
	w := &Waiter{}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// / arm marks a packet caller about to sleep, so IRQ handlers know to
// / wake it rather than ignore a spurious interrupt.
func (w *Waiter) arm() {
	w.mu.Lock()
	w.inProgress = true
	w.mu.Unlock()
}

// / sleep blocks until Wake is called, then clears inProgress.
func (w *Waiter) sleep() {
	w.mu.Lock()
	for w.inProgress {
		w.cond.Wait()
	}
	w.mu.Unlock()
}

// / Wake is called by an IRQ handler. It only signals the waiter when a
// / packet caller is actually sleeping, so a spurious interrupt is
// / silently ignored.
func (w *Waiter) Wake() {
	w.mu.Lock()
	if w.inProgress {
		w.inProgress = false
		w.cond.Broadcast()
	}
	w.mu.Unlock()
}

// / Device is one ATAPI channel: the register endpoint plus the medium
// / capacity discovered at probe time.
type Device struct {
	Bus     ioport.Bus
	IOBase  uint16
	Control uint16
	Slave   int

	Cap Capacity

	lock    *sync.Mutex
	waiter  *Waiter
	stats   *diag.Counters
	latency *iotime.Totals

	probeOnce singleflight.Group
}

// / NewDevice builds an ATAPI device endpoint sharing the controller's
// / global lock and ATAPI wait queue.
func NewDevice(bus ioport.Bus, ioBase, control uint16, slave int, lock *sync.Mutex, waiter *Waiter, stats *diag.Counters, latency *iotime.Totals) *Device {
	return &Device{Bus: bus, IOBase: ioBase, Control: control, Slave: slave, lock: lock, waiter: waiter, stats: stats, latency: latency}
}

func (d *Device) out8(reg int, v uint8) { d.Bus.Out8(d.IOBase + uint16(reg), v) }
func (d *Device) in8(reg int) uint8     { return d.Bus.In8(d.IOBase + uint16(reg)) }
func (d *Device) stall()                { ioport.Stall(d.Bus, d.Control) }
func (d *Device) selectDrive() {
	d.out8(regHDDevSel, 0xA0|uint8(d.Slave<<4))
	d.stall()
}

// / packetCommand is the twelve bytes of a SCSI-style packet command,
// / sent to the data port as six 16-bit words.
type packetCommand [12]byte

func (p packetCommand) words() [6]uint16 {
	var w [6]uint16
	for i := range w {
		w[i] = uint16(p[2*i]) | uint16(p[2*i+1])<<8
	}
	return w
}

// / ProbeCapacity issues READ CAPACITY(10) via PACKET. A zero LBA means
// / no medium; the caller still creates the device node, it just reads
// / zero bytes from it.
// /
// / Concurrent callers (an initial probe racing a caller-triggered medium
// / rescan, say) collapse onto a single in-flight PACKET transaction via
// / singleflight, since two overlapping PACKET commands on one channel
// / would corrupt each other's data phase.
func (d *Device) ProbeCapacity() defs.Err_t {
	v, _, _ := d.probeOnce.Do("probe", func() (interface{}, error) {
		return d.probeCapacityOnce(), nil
	})
	return v.(defs.Err_t)
}

func (d *Device) probeCapacityOnce() defs.Err_t {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.selectDrive()

	d.out8(regFeatures, 0)
	d.out8(regLBA1, 0x08)
	d.out8(regLBA2, 0x08)
	d.out8(regCommand, cmdPacket)

	for {
		status := d.in8(regStatus)
		if status&srErr != 0 {
			return -defs.EIO
		}
		if status&srBSY == 0 && status&srDRDY != 0 {
			break
		}
	}

	var cmd packetCommand
	cmd[0] = 0x25 // READ CAPACITY(10)
	words := cmd.words()
	ioport.WriteWords(d.Bus, d.IOBase+regData, words[:])

	for {
		status := d.in8(regStatus)
		if status&srErr != 0 {
			return -defs.ENODEV
		}
		if status&srBSY == 0 && (status&srDRDY != 0 || status&srDRQ != 0) {
			break
		}
	}

	var data [4]uint16
	ioport.ReadWords(d.Bus, d.IOBase+regData, data[:])

	lba := uint32(data[0])<<16 | uint32(data[1])
	blocks := uint32(data[2])<<16 | uint32(data[3])
	d.Cap = Capacity{LBA: lba, SectorSize: blocks}
	if lba == 0 {
		return -defs.ENODEV
	}
	return 0
}

// / ReadSector reads one sector from disc via READ(12): issue the
// / packet, sleep on the wait queue until an IRQ handler wakes it, then
// / read the data phase.
func (d *Device) ReadSector(lba uint64, buf []byte) defs.Err_t {
	d.lock.Lock()
	span := iotime.Start(d.latency)

	d.selectDrive()

	d.out8(regFeatures, 0)
	d.out8(regLBA1, uint8(d.Cap.SectorSize))
	d.out8(regLBA2, uint8(d.Cap.SectorSize>>8))
	d.out8(regCommand, cmdPacket)

	for {
		status := d.in8(regStatus)
		if status&srErr != 0 {
			d.lock.Unlock()
			span.Finish()
			d.stats.HardwareErrors.Inc()
			return -defs.EIO
		}
		if status&srBSY == 0 && status&srDRQ != 0 {
			break
		}
	}

	var cmd packetCommand
	cmd[0] = cmdRead12
	cmd[2] = uint8(lba >> 24)
	cmd[3] = uint8(lba >> 16)
	cmd[4] = uint8(lba >> 8)
	cmd[5] = uint8(lba)
	cmd[9] = 1 // transfer length: one block

	d.waiter.arm()
	words := cmd.words()
	ioport.WriteWords(d.Bus, d.IOBase+regData, words[:])

	// The lock is released around the sleep by protocol discipline: no
	// other transaction may intervene before inProgress clears, which
	// holds because the caller only ever unlocks here and no other ATAPI
	// caller can be mid-transaction concurrently.
	d.lock.Unlock()
	d.waiter.sleep()
	d.lock.Lock()
	defer d.lock.Unlock()

	for {
		status := d.in8(regStatus)
		if status&srErr != 0 {
			span.Finish()
			d.stats.HardwareErrors.Inc()
			return -defs.EIO
		}
		if status&srBSY == 0 && status&srDRQ != 0 {
			break
		}
	}

	size := uint16(d.in8(regLBA2))<<8 | uint16(d.in8(regLBA1))
	words16 := make([]uint16, size/2)
	ioport.ReadWords(d.Bus, d.IOBase+regData, words16)
	for i, w := range words16 {
		if 2*i+1 < len(buf) {
			buf[2*i] = byte(w)
			buf[2*i+1] = byte(w >> 8)
		}
	}

	for {
		status := d.in8(regStatus)
		if status&srBSY == 0 && status&srDRDY != 0 {
			break
		}
	}

	span.Finish()
	d.stats.ATAPIReads.Inc()
	return 0
}

// / HandleIRQ is the shared body of the two per-channel IRQ handlers
// / (lines 14 and 15): reading status clears the device interrupt, and
// / the wait queue is only woken when a packet caller is actually
// / waiting.
func (d *Device) HandleIRQ() {
	d.in8(regStatus)
	d.waiter.Wake()
}
