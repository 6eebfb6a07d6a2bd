// Package ata implements the PATA device state machine and sector
// transport: soft reset, IDENTIFY, status polling, and single-sector
// PIO/DMA read and write with write-verify retry. Every register access
// goes through an ioport.Bus (package ioport); every PCI/DMA-allocator
// access goes through the pci and mem packages' narrow interfaces, so
// the whole state machine is exercisable against the ataemu package
// without real hardware.
package ata

// / Register offsets relative to a channel's io_base. LBA3..5 do not
// / exist as separate ports: 48-bit addressing latches the upper
// / three bytes into the same RegLBA0..2 ports with a preceding write,
// / read back via the device-control HOB bit. This driver only ever
// / writes 48-bit LBA (see WriteLBA48), never reads it back, so the HOB
// / read-side latch is not modeled.
const (
	RegData      = 0
	RegFeatures  = 1
	RegSecCount0 = 2
	RegLBA0      = 3
	RegLBA1      = 4
	RegLBA2      = 5
	RegHDDevSel  = 6
	RegCommand   = 7
	RegStatus    = 7
)

// / RegControl is the device-control port, offset 0 from the channel's
// / separate "control" (alternate-status) base — not from io_base.
const RegControl = 0

// / RegAltStatus is the alternate-status port, the read side of the same
// / control-base port RegControl writes to.
const RegAltStatus = 0

// / Status register bits.
const (
	SrErr  = 0x01
	SrDRQ  = 0x08
	SrDF   = 0x20
	SrDRDY = 0x40
	SrBSY  = 0x80
)

// / Commands issued to REG_COMMAND.
const (
	CmdIdentify       = 0xEC
	CmdIdentifyPacket = 0xA1
	CmdReadPIO        = 0x20
	CmdReadDMA        = 0xC8
	CmdWritePIO       = 0x30
	CmdCacheFlush     = 0xE7
	CmdPacket         = 0xA0
)

// / SectorSize is the fixed hard-disk sector size this driver speaks;
// / this driver does not support any other size for PATA disks.
const SectorSize = 512

// / IdentifyWords is the number of 16-bit words an IDENTIFY response
// / occupies.
const IdentifyWords = 256

// / Bus-master register offsets relative to a channel's bus-master base
// / (decoded from BAR4).
const (
	BMCommand = 0x00
	BMStatus  = 0x02
	BMPRDT    = 0x04
)

const (
	bmCmdStart  = 0x01
	bmCmdRead   = 0x08
	bmStatusIRQ = 0x04
	bmStatusErr = 0x02
)

// / WriteLBA48 writes a 48-bit LBA into ports LBA0..LBA2 using the
// / standard HOB latch: the upper three bytes first, then the lower
// / three, both passes through the same three ports. Ports named LBA3,
// / LBA4, LBA5 do not exist on real IDE hardware; see DESIGN.md.
func WriteLBA48(out func(reg int, v uint8), lba uint64) {
	out(RegLBA0, uint8(lba>>24))
	out(RegLBA1, uint8(lba>>32))
	out(RegLBA2, uint8(lba>>40))
	out(RegLBA0, uint8(lba))
	out(RegLBA1, uint8(lba>>8))
	out(RegLBA2, uint8(lba>>16))
}
