// Package pci gives the ATA controller lifecycle (package ctl) just
// enough PCI config-space access to find the IDE controller and enable
// its bus-mastering DMA: scanning by vendor/device ID, reading BAR4, and
// setting the bus-master enable bit in the command register. Enumerating
// buses/slots/functions and everything else a general PCI subsystem does
// is the external bus scanner's job; this package only defines the
// narrow contract the ATA driver needs from it.
package pci

// / Standard PCI Type-0 config-space header offsets this driver reads or
// / writes.
const (
	OffVendorID       = 0x00
	OffDeviceID       = 0x02
	OffCommand        = 0x04
	OffBAR4           = 0x20
	OffInterruptLine  = 0x3C
	CommandBusMaster  = 1 << 2
	BARSpaceIO        = 1 << 0
	BARIOAddressMask  = 0xFFFFFFFC
	VendorIntel       = 0x8086
	DeviceIDEPIIX     = 0x7010
	DeviceIDEPIIX3    = 0x7111
)

// / Addr identifies one PCI function's config space by bus, device (slot)
// / and function number, the (bus, slot, func) triple every config-space
// / access is scoped to.
type Addr struct {
	Bus, Slot, Func uint8
}

// / ConfigSpace is implemented by the PCI bus scanner (an external
// / collaborator): reading and writing a function's config space, and
// / enumerating every function present so this driver can scan for its
// / controller. ataemu implements this in memory for tests.
type ConfigSpace interface {
	ReadConfig(addr Addr, offset uint8, width int) uint32
	WriteConfig(addr Addr, offset uint8, width int, value uint32)
	Devices() []Addr
}

// / FindController scans every function the bus scanner reports for the
// / Intel PIIX/PIIX3 IDE controller (vendor 0x8086, device 0x7010 or
// / 0x7111), returning its address and true on success.
func FindController(cs ConfigSpace) (Addr, bool) {
	for _, a := range cs.Devices() {
		vendor := uint16(cs.ReadConfig(a, OffVendorID, 2))
		device := uint16(cs.ReadConfig(a, OffDeviceID, 2))
		if vendor == VendorIntel && (device == DeviceIDEPIIX || device == DeviceIDEPIIX3) {
			return a, true
		}
	}
	return Addr{}, false
}

// / EnableBusMastering sets bit 2 of the PCI command register if it isn't
// / already set.
func EnableBusMastering(cs ConfigSpace, addr Addr) {
	cmd := cs.ReadConfig(addr, OffCommand, 2)
	if cmd&CommandBusMaster != 0 {
		return
	}
	cs.WriteConfig(addr, OffCommand, 2, cmd|CommandBusMaster)
}

// / BusMasterBase reads BAR4 and returns the bus-master I/O base and true
// / if BAR4 describes an I/O-space BAR. When BAR4 is memory-mapped (bit 0
// / clear) it returns false, and the caller must treat this as "no DMA
// / for this device" rather than arm the bus master against garbage
// / ports.
func BusMasterBase(cs ConfigSpace, addr Addr) (base uint32, isIO bool) {
	bar4 := cs.ReadConfig(addr, OffBAR4, 4)
	if bar4&BARSpaceIO == 0 {
		return 0, false
	}
	return bar4 & BARIOAddressMask, true
}
