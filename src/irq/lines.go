// Package irq gives the ATA controller lifecycle just enough of the IRQ
// subsystem's contract to install its two legacy-line handlers (14 and
// 15, the primary and secondary IDE channels) and acknowledge them. The
// IRQ subsystem itself — vectoring, the PIC/IOAPIC, priority — is an
// external collaborator; this package only describes the
// registration and acknowledge calls this driver makes into it. Shaped
// like an MSI vector allocator managing the same kind of small
// numbered-resource table (a handful of IDs, mutex-guarded) but for
// legacy PIC lines rather than MSI vectors; this driver never uses MSI,
// since the PIIX/PIIX3 IDE function it targets is legacy-IRQ only.
package irq

// / Line identifies a legacy IRQ line. This driver only ever registers
// / lines 14 and 15.
type Line uint

const (
	Primary   Line = 14
	Secondary Line = 15
)

// / Handler is invoked when a line fires. It returns true if it handled
// / the interrupt; false lets a shared line try the next registered
// / handler.
type Handler func() bool

// / Lines is implemented by the IRQ subsystem: registering a handler for
// / a line and acknowledging it once serviced. ataemu implements this in
// / memory, invoking the handler synchronously so tests can drive the
// / "IRQ fires while a caller sleeps" scenario deterministically. An
// / implementation is expected to reject a second Install on an
// / already-claimed line, the same double-allocation panic a numbered
// / MSI vector table would raise for the analogous conflict.
type Lines interface {
	Install(line Line, name string, h Handler)
	Ack(line Line)
}
