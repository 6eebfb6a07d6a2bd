// Package ioport is the thin, typed layer every other component in this
// driver goes through to touch hardware: byte and word port I/O plus the
// short "400ns" stall the IDE protocol relies on after selecting a drive
// or issuing certain commands. It has no side effects beyond the actual
// port access; nothing here decodes a register's meaning.
package ioport

// / Bus abstracts the x86 port I/O space. A real implementation issues
// / IN/OUT instructions; the ataemu package implements it entirely in
// / memory so the rest of this driver can be exercised without hardware.
// / Everything else in this driver reaches hardware exclusively through a
// / Bus.
type Bus interface {
	In8(port uint16) uint8
	Out8(port uint16, v uint8)
	In16(port uint16) uint16
	Out16(port uint16, v uint16)
}

// / ReadWord reads a single 16-bit word from a data port. Named
// / separately from In16 so call sites reading the IDE data port read as
// / "pull one word off the data port" rather than a raw register access.
func ReadWord(bus Bus, dataPort uint16) uint16 {
	return bus.In16(dataPort)
}

// / WriteWord writes a single 16-bit word to a data port.
func WriteWord(bus Bus, dataPort uint16, v uint16) {
	bus.Out16(dataPort, v)
}

// / ReadWords pulls n words off the data port into buf, which must have
// / room for at least n uint16s. Used both for the 256-word IDENTIFY
// / block and for ATAPI packet payloads.
func ReadWords(bus Bus, dataPort uint16, buf []uint16) {
	for i := range buf {
		buf[i] = bus.In16(dataPort)
	}
}

// / WriteWords pushes every word of buf out the data port, in order.
// / Used to issue a 12-byte ATA/ATAPI packet command as six words and to
// / push a full sector out during a PIO write.
func WriteWords(bus Bus, dataPort uint16, buf []uint16) {
	for _, w := range buf {
		bus.Out16(dataPort, w)
	}
}

// / Stall performs the conventional "400 nanosecond" delay the IDE
// / protocol expects after a drive/head select or certain command
// / writes: four back-to-back reads of the alternate status register,
// / each of which the controller is specified to take about 100ns to
// / service. The read results are discarded; only the elapsed time and
// / the settling side effect on the controller matter.
func Stall(bus Bus, altStatusPort uint16) {
	bus.In8(altStatusPort)
	bus.In8(altStatusPort)
	bus.In8(altStatusPort)
	bus.In8(altStatusPort)
}
