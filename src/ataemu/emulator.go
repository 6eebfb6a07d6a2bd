// Package ataemu is an in-memory PATA/ATAPI/PCI/IRQ emulator: it
// implements ioport.Bus, pci.ConfigSpace, irq.Lines, and mem.DMAAllocator
// entirely over Go maps and slices, reproducing just enough of the real
// register protocol (soft reset and signature bytes, IDENTIFY, PIO
// read/write, bus-master DMA via a walked PRDT, and ATAPI PACKET
// commands with IRQ-driven wakeup) to drive package ata, atapi, blkio,
// and ctl against a scripted disk without real hardware. Grounded on the
// in-memory PioDevice/IOBus shape from the retrieved reference bus
// emulator, generalized here to the full ATA/ATAPI command set and wired
// to the other narrow hardware-facing interfaces this driver defines.
package ataemu

import (
	"fmt"
	"sync"

	"irq"
	"mem"
	"pci"
)

const (
	srErr  = 0x01
	srDRQ  = 0x08
	srDF   = 0x20
	srDRDY = 0x40
	srBSY  = 0x80

	cmdIdentify       = 0xEC
	cmdIdentifyPacket = 0xA1
	cmdReadPIO        = 0x20
	cmdReadDMA        = 0xC8
	cmdWritePIO       = 0x30
	cmdCacheFlush     = 0xE7
	cmdPacket         = 0xA0

	bmCmdStart  = 0x01
	bmCmdRead   = 0x08
	bmStatusIRQ = 0x04
	bmStatusErr = 0x02
)

// / slot is one drive position (master or slave) on a physical channel.
// / Exactly one of pata/atapi is set, or neither for an absent drive.
type slot struct {
	pata  *PATADisk
	atapi *ATAPIDisk
}

func (s *slot) present() bool { return s != nil && (s.pata != nil || s.atapi != nil) }

// / signature returns the LBA1/LBA2 bytes a real drive leaves after a
// / soft reset.
func (s *slot) signature() (lba1, lba2 uint8) {
	if !s.present() {
		return 0xFF, 0xFF
	}
	if s.atapi != nil {
		return 0x14, 0xEB
	}
	return 0x00, 0x00
}

// / physChannel is one of the two physical IDE channels (primary,
// / secondary), each hosting a master and slave slot sharing one register
// / block, per real IDE bus topology.
type physChannel struct {
	ioBase, control uint16
	line            irq.Line
	bmBase          uint16

	master, slave slot

	selectedSlave bool
	justReset     bool

	lbaHist [3][2]uint8 // [port index 0..2][0]=previous write,[1]=most recent

	features, seccount0 uint8
	status              uint8

	outWords []uint16
	inWords  []uint16
	awaitingPacket bool

	writePending bool
	writeLBA     uint64
	writeBuf     []byte

	bmCommand uint8
	bmStatus  uint8
	bmPRDT    [4]uint8

	atapiByteCount uint16
}

func newPhysChannel(ioBase, control uint16, line irq.Line, bmBase uint16) *physChannel {
	return &physChannel{ioBase: ioBase, control: control, line: line, bmBase: bmBase, status: srDRDY}
}

func (c *physChannel) selected() *slot {
	if c.selectedSlave {
		return &c.slave
	}
	return &c.master
}

// / currentLBA48 reconstructs the 48-bit LBA from the last two writes to
// / each of the three LBA ports: ata.WriteLBA48 always writes the high
// / triplet first, then the low triplet, to the same three ports.
func (c *physChannel) currentLBA48() uint64 {
	hi := uint64(c.lbaHist[0][0]) | uint64(c.lbaHist[1][0])<<8 | uint64(c.lbaHist[2][0])<<16
	lo := uint64(c.lbaHist[0][1]) | uint64(c.lbaHist[1][1])<<8 | uint64(c.lbaHist[2][1])<<16
	return hi<<24 | lo
}

// / Emulator is the full in-memory hardware surface this driver talks to:
// / two IDE channels, one PCI function, a legacy IRQ controller, and a
// / DMA-capable physical allocator.
type Emulator struct {
	mu sync.Mutex

	channels [2]*physChannel // 0 = primary, 1 = secondary

	lines map[irq.Line]irq.Handler

	dma      map[mem.Pa_t][]byte
	nextPhys mem.Pa_t

	pciAddr    pci.Addr
	pciPresent bool
	pciCmd     uint32
	pciBAR4    uint32

	trace []string
}

// / New builds an emulator with an Intel PIIX-shaped IDE controller
// / present at PCI address (0,1,1), its bus-master window at I/O port
// / 0xC000 (8 bytes per channel), and no drives attached.
func New() *Emulator {
	e := &Emulator{
		lines:      make(map[irq.Line]irq.Handler),
		dma:        make(map[mem.Pa_t][]byte),
		nextPhys:   0x100000,
		pciAddr:    pci.Addr{Bus: 0, Slot: 1, Func: 1},
		pciPresent: true,
		pciBAR4:    0xC000 | pci.BARSpaceIO,
	}
	e.channels[0] = newPhysChannel(0x1F0, 0x3F6, irq.Primary, 0xC000)
	e.channels[1] = newPhysChannel(0x170, 0x376, irq.Secondary, 0xC000+8)
	return e
}

// / NoControllerPresent removes the emulated PCI function, so
// / pci.FindController fails.
func (e *Emulator) NoControllerPresent() { e.pciPresent = false }

// / MemoryMappedBAR4 makes BAR4 describe a memory-mapped (not I/O-space)
// / window. DMA init must fail closed rather than arm bus-master access
// / against it.
func (e *Emulator) MemoryMappedBAR4() { e.pciBAR4 &^= pci.BARSpaceIO }

// / AttachPATA installs a PATA disk at the given physical channel (0 =
// / primary, 1 = secondary) and drive position (false = master, true =
// / slave).
func (e *Emulator) AttachPATA(channel int, isSlave bool, disk *PATADisk) {
	s := slot{pata: disk}
	if isSlave {
		e.channels[channel].slave = s
	} else {
		e.channels[channel].master = s
	}
}

// / AttachATAPI installs an ATAPI drive at the given physical channel and
// / drive position, per AttachPATA's addressing.
func (e *Emulator) AttachATAPI(channel int, isSlave bool, disk *ATAPIDisk) {
	s := slot{atapi: disk}
	if isSlave {
		e.channels[channel].slave = s
	} else {
		e.channels[channel].master = s
	}
}

// / Trace returns every high-level command this emulator has observed, in
// / issue order, for assertions like "exactly one READ DMA was issued".
func (e *Emulator) Trace() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.trace))
	copy(out, e.trace)
	return out
}

func (e *Emulator) log(format string, args ...interface{}) {
	e.trace = append(e.trace, fmt.Sprintf(format, args...))
}

// ---- ioport.Bus ----

// / chanForIO finds the physical channel and register offset a data-port
// / address belongs to.
func (e *Emulator) chanForIO(port uint16) (*physChannel, uint16, bool) {
	for _, c := range e.channels {
		if port >= c.ioBase && port < c.ioBase+8 {
			return c, port - c.ioBase, true
		}
	}
	return nil, 0, false
}

func (e *Emulator) chanForControl(port uint16) (*physChannel, bool) {
	for _, c := range e.channels {
		if port == c.control {
			return c, true
		}
	}
	return nil, false
}

func (e *Emulator) chanForBM(port uint16) (*physChannel, uint16, bool) {
	for _, c := range e.channels {
		if port >= c.bmBase && port < c.bmBase+8 {
			return c, port - c.bmBase, true
		}
	}
	return nil, 0, false
}

// / In8 implements ioport.Bus.
func (e *Emulator) In8(port uint16) uint8 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c, reg, ok := e.chanForIO(port); ok {
		return e.readReg8(c, reg)
	}
	if c, ok := e.chanForControl(port); ok {
		return c.status
	}
	if c, reg, ok := e.chanForBM(port); ok {
		return e.readBM(c, reg)
	}
	return 0xFF
}

// / Out8 implements ioport.Bus.
func (e *Emulator) Out8(port uint16, v uint8) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c, reg, ok := e.chanForIO(port); ok {
		e.writeReg8(c, reg, v)
		return
	}
	if c, ok := e.chanForControl(port); ok {
		e.writeControl(c, v)
		return
	}
	if c, reg, ok := e.chanForBM(port); ok {
		e.writeBM(c, reg, v)
	}
}

// / In16 implements ioport.Bus: reading the data register pops one
// / staged word.
func (e *Emulator) In16(port uint16) uint16 {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, reg, ok := e.chanForIO(port)
	if !ok || reg != 0 {
		return 0xFFFF
	}
	if len(c.outWords) == 0 {
		return 0
	}
	w := c.outWords[0]
	c.outWords = c.outWords[1:]
	return w
}

// / Out16 implements ioport.Bus: writing the data register either stages
// / a write-sector word or accumulates a packet-command word.
func (e *Emulator) Out16(port uint16, v uint16) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, reg, ok := e.chanForIO(port)
	if !ok || reg != 0 {
		return
	}
	if c.writePending {
		c.writeBuf = append(c.writeBuf, byte(v), byte(v>>8))
		if len(c.writeBuf) >= 512 {
			e.commitWrite(c)
		}
		return
	}
	if c.awaitingPacket {
		c.inWords = append(c.inWords, v)
		if len(c.inWords) == 6 {
			e.dispatchPacket(c)
		}
	}
}

func (e *Emulator) readReg8(c *physChannel, reg uint16) uint8 {
	switch reg {
	case 1: // features (not readable in practice; return 0)
		return 0
	case 2:
		return c.seccount0
	case 3:
		return c.lbaHist[0][1]
	case 4:
		return c.lbaHist[1][1]
	case 5:
		return c.lbaHist[2][1]
	case 6:
		sel := uint8(0)
		if c.selectedSlave {
			sel = 1
		}
		return 0xA0 | sel<<4
	case 7:
		return c.status
	default:
		return 0
	}
}

func (e *Emulator) writeReg8(c *physChannel, reg uint16, v uint8) {
	switch reg {
	case 1:
		c.features = v
	case 2:
		c.seccount0 = v
	case 3, 4, 5:
		i := reg - 3
		c.lbaHist[i][0] = c.lbaHist[i][1]
		c.lbaHist[i][1] = v
		if reg == 4 || reg == 5 {
			// LBA1/LBA2 double as the ATAPI PACKET byte-count register;
			// track the latest write in case a packet phase reads it back.
			if reg == 4 {
				c.atapiByteCount = c.atapiByteCount&0xFF00 | uint16(v)
			} else {
				c.atapiByteCount = c.atapiByteCount&0x00FF | uint16(v)<<8
			}
		}
	case 6:
		c.selectedSlave = v&0x10 != 0
		if c.justReset {
			lba1, lba2 := c.selected().signature()
			c.lbaHist[1][1] = lba1
			c.lbaHist[2][1] = lba2
		}
	case 7:
		e.dispatchCommand(c, v)
	}
}

func (e *Emulator) writeControl(c *physChannel, v uint8) {
	if v&0x04 != 0 {
		c.justReset = true
		c.status = srDRDY
	}
}

func (e *Emulator) readBM(c *physChannel, reg uint16) uint8 {
	switch {
	case reg == 0:
		return c.bmCommand
	case reg == 2:
		return c.bmStatus
	case reg >= 4 && reg <= 7:
		return c.bmPRDT[reg-4]
	default:
		return 0
	}
}

func (e *Emulator) writeBM(c *physChannel, reg uint16, v uint8) {
	switch {
	case reg == 0:
		c.bmCommand = v
		if v == (bmCmdRead | bmCmdStart) {
			e.completeDMARead(c)
		}
	case reg == 2:
		c.bmStatus &^= v
	case reg >= 4 && reg <= 7:
		c.bmPRDT[reg-4] = v
	}
}

// / dispatchCommand executes a REG_COMMAND write synchronously: this
// / emulator has no real transfer latency, so every command completes
// / (or reaches its next protocol phase) before Out8 returns.
func (e *Emulator) dispatchCommand(c *physChannel, cmd uint8) {
	c.justReset = false
	s := c.selected()

	switch cmd {
	case cmdIdentify, cmdIdentifyPacket:
		e.log("identify:%#x", cmd)
		var words [256]uint16
		if s.pata != nil {
			words = s.pata.identifyWords()
		} else if s.atapi != nil {
			words = s.atapi.identifyWords()
		}
		c.outWords = append([]uint16(nil), words[:]...)
		c.status = srDRDY | srDRQ

	case cmdReadPIO:
		e.log("read_pio:%d", c.currentLBA48())
		c.status = srDRDY
		if s.pata == nil {
			c.status |= srErr
			return
		}
		lba := c.currentLBA48()
		off := int(lba) * 512
		if off < 0 || off+512 > len(s.pata.Data) {
			c.status |= srErr
			return
		}
		words := make([]uint16, 256)
		for i := range words {
			words[i] = uint16(s.pata.Data[off+2*i]) | uint16(s.pata.Data[off+2*i+1])<<8
		}
		c.outWords = words
		c.status |= srDRQ

	case cmdReadDMA:
		e.log("read_dma:%d", c.currentLBA48())
		c.status = srDRDY // completion happens on the bus-master start write

	case cmdWritePIO:
		e.log("write_pio:%d", c.currentLBA48())
		c.writePending = true
		c.writeLBA = c.currentLBA48()
		c.writeBuf = c.writeBuf[:0]
		c.status = srDRDY

	case cmdCacheFlush:
		e.log("cache_flush")
		c.status = srDRDY

	case cmdPacket:
		e.log("packet")
		c.awaitingPacket = true
		c.inWords = c.inWords[:0]
		c.status = srDRDY | srDRQ

	default:
		c.status = srDRDY | srErr
	}
}

func (e *Emulator) commitWrite(c *physChannel) {
	c.writePending = false
	s := c.selected()
	if s.pata == nil {
		return
	}
	off := int(c.writeLBA) * 512
	if off >= 0 && off+512 <= len(s.pata.Data) {
		copy(s.pata.Data[off:off+512], c.writeBuf[:512])
	}
	c.status = srDRDY
}

// / completeDMARead walks the PRDT the driver staged into the bus-master
// / registers, exactly as real bus-master hardware would, and copies the
// / selected drive's sector into the physical buffer it describes.
func (e *Emulator) completeDMARead(c *physChannel) {
	s := c.selected()
	if s.pata == nil {
		c.status = srDRDY | srErr
		c.bmStatus |= bmStatusIRQ | bmStatusErr
		return
	}

	prdtPhys := mem.Pa_t(uint32(c.bmPRDT[0]) | uint32(c.bmPRDT[1])<<8 | uint32(c.bmPRDT[2])<<16 | uint32(c.bmPRDT[3])<<24)
	prdtMem, ok := e.dma[prdtPhys]
	if !ok || len(prdtMem) < 8 {
		c.status = srDRDY | srErr
		c.bmStatus |= bmStatusIRQ | bmStatusErr
		return
	}
	bufPhys := mem.Pa_t(uint32(prdtMem[0]) | uint32(prdtMem[1])<<8 | uint32(prdtMem[2])<<16 | uint32(prdtMem[3])<<24)
	count := int(uint16(prdtMem[4]) | uint16(prdtMem[5])<<8)
	bufMem, ok := e.dma[bufPhys]
	if !ok {
		c.status = srDRDY | srErr
		c.bmStatus |= bmStatusIRQ | bmStatusErr
		return
	}

	lba := c.currentLBA48()
	off := int(lba) * 512
	if off < 0 || off+512 > len(s.pata.Data) {
		c.status = srDRDY | srErr
		c.bmStatus |= bmStatusIRQ | bmStatusErr
		return
	}
	if count > 512 {
		count = 512
	}
	copy(bufMem[:count], s.pata.Data[off:off+count])

	c.status = srDRDY
	c.bmStatus |= bmStatusIRQ
}

// / dispatchPacket decodes a completed six-word ATAPI packet command and
// / either answers a capacity probe synchronously or, for a sector read,
// / completes the transfer on a goroutine and fires the owning IRQ line,
// / modeling the real "sleep until IRQ" data phase of an ATAPI drive.
func (e *Emulator) dispatchPacket(c *physChannel) {
	c.awaitingPacket = false
	var pkt [12]byte
	for i, w := range c.inWords {
		pkt[2*i] = byte(w)
		pkt[2*i+1] = byte(w >> 8)
	}
	opcode := pkt[0]
	s := c.selected()

	switch opcode {
	case 0x25: // READ CAPACITY(10)
		e.log("packet:read_capacity")
		if s.atapi == nil || s.atapi.LastLBA == 0 {
			c.status = srDRDY | srErr
			return
		}
		data := [4]uint16{
			uint16(s.atapi.LastLBA >> 16), uint16(s.atapi.LastLBA),
			uint16(s.atapi.SectorSize >> 16), uint16(s.atapi.SectorSize),
		}
		c.outWords = data[:]
		c.status = srDRDY | srDRQ

	case 0xA8: // READ(12)
		lba := uint32(pkt[2])<<24 | uint32(pkt[3])<<16 | uint32(pkt[4])<<8 | uint32(pkt[5])
		e.log("packet:read12:%d", lba)
		go e.completeATAPIRead(c, lba)

	default:
		c.status = srDRDY | srErr
	}
}

// / completeATAPIRead runs off the calling goroutine, mirroring real
// / hardware servicing a command asynchronously and raising an interrupt
// / when the data phase is ready.
func (e *Emulator) completeATAPIRead(c *physChannel, lba uint32) {
	e.mu.Lock()
	s := c.selected()
	if s.atapi == nil {
		c.status = srDRDY | srErr
		e.mu.Unlock()
		e.fire(c.line)
		return
	}
	off := int(lba) * int(s.atapi.SectorSize)
	size := int(s.atapi.SectorSize)
	words := make([]uint16, size/2)
	if off >= 0 && off+size <= len(s.atapi.Data) {
		for i := range words {
			words[i] = uint16(s.atapi.Data[off+2*i]) | uint16(s.atapi.Data[off+2*i+1])<<8
		}
	}
	c.outWords = words
	c.lbaHist[1][1] = uint8(size)
	c.lbaHist[2][1] = uint8(size >> 8)
	c.status = srDRDY | srDRQ
	e.mu.Unlock()

	e.fire(c.line)
}

// ---- pci.ConfigSpace ----

// / Devices implements pci.ConfigSpace.
func (e *Emulator) Devices() []pci.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.pciPresent {
		return nil
	}
	return []pci.Addr{e.pciAddr}
}

// / ReadConfig implements pci.ConfigSpace.
func (e *Emulator) ReadConfig(addr pci.Addr, offset uint8, width int) uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if addr != e.pciAddr {
		return 0xFFFFFFFF
	}
	switch offset {
	case pci.OffVendorID:
		return uint32(pci.VendorIntel)
	case pci.OffDeviceID:
		return uint32(pci.DeviceIDEPIIX3)
	case pci.OffCommand:
		return e.pciCmd
	case pci.OffBAR4:
		return e.pciBAR4
	default:
		return 0
	}
}

// / WriteConfig implements pci.ConfigSpace.
func (e *Emulator) WriteConfig(addr pci.Addr, offset uint8, width int, value uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if addr != e.pciAddr {
		return
	}
	if offset == pci.OffCommand {
		e.pciCmd = value
	}
}

// ---- irq.Lines ----

// / Install implements irq.Lines.
func (e *Emulator) Install(line irq.Line, name string, h irq.Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lines[line] = h
}

// / Ack implements irq.Lines; this emulator has nothing stateful to
// / acknowledge, so it only records the call for trace assertions.
func (e *Emulator) Ack(line irq.Line) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log("ack:%d", line)
}

// / fire invokes the installed handler for line, if any, outside the
// / emulator's own lock so the handler can freely call back into the Bus.
func (e *Emulator) fire(line irq.Line) {
	e.mu.Lock()
	h := e.lines[line]
	e.mu.Unlock()
	if h != nil {
		h()
	}
}

// ---- mem.DMAAllocator ----

// / Alloc implements mem.DMAAllocator with a bump allocator over a fake
// / physical address space; every allocation succeeds.
func (e *Emulator) Alloc(n int) (buf []byte, phys mem.Pa_t, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	buf = make([]byte, n)
	phys = e.nextPhys
	e.nextPhys += mem.Pa_t(n)
	e.dma[phys] = buf
	return buf, phys, true
}
