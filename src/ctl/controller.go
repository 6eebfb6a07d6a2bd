// Package ctl is the controller lifecycle: probing the four legacy PCI
// IDE channels, classifying each drive, and publishing the resulting
// block-device nodes to a VFS collaborator. It is the one place that
// owns every other component's shared state — the four channel
// descriptors, the PCI address, the drive-letter counters, the ATAPI
// wait queue, and the process-global lock — as a single explicit value
// rather than module-level globals.
package ctl

import (
	"fmt"
	"sync"

	"ata"
	"atapi"
	"defs"
	"diag"
	"hashtable"
	"iotime"
	"ioport"
	"irq"
	"mem"
	"pci"
	"vfsdev"
)

// / channelSpec is one of the four canonical (io_base, control, slave)
// / triples the legacy IDE controllers use.
type channelSpec struct {
	ioBase, control uint16
	slave           int
	bmOffset        uint16
}

var legacyChannels = [4]channelSpec{
	{0x1F0, 0x3F6, 0, 0}, // primary master
	{0x1F0, 0x3F6, 1, 0}, // primary slave
	{0x170, 0x376, 0, 8}, // secondary master
	{0x170, 0x376, 1, 8}, // secondary slave
}

// / Mounter is the external VFS collaborator this driver publishes nodes
// / to. The VFS node abstraction is external to this driver; this is the
// / one call it makes into it.
type Mounter interface {
	Mount(name string, node vfsdev.Node) error
}

// / Controller is the single driver-instance value: every device
// / descriptor, the PCI address, the naming counters, the ATAPI wait
// / queue, and the process-global lock, all reachable from one root
// / rather than scattered across package-level globals.
type Controller struct {
	Bus   ioport.Bus
	PCI   pci.ConfigSpace
	DMA   mem.DMAAllocator
	Lines irq.Lines

	lock   sync.Mutex
	waiter *atapi.Waiter
	stats  diag.Counters
	lat    iotime.Latency
	atapiLat iotime.Totals

	pciAddr    pci.Addr
	havePCI    bool
	driveIndex int
	cdromIndex int

	nodes *hashtable.Hashtable_t

	Channels [4]*ata.Channel
	ATAPI    [4]*atapi.Device
}

// / New builds an unprobed Controller wired to its hardware collaborators.
func New(bus ioport.Bus, cs pci.ConfigSpace, alloc mem.DMAAllocator, lines irq.Lines) *Controller {
	c := &Controller{
		Bus: bus, PCI: cs, DMA: alloc, Lines: lines,
		waiter: atapi.NewWaiter(),
		nodes:  hashtable.MkHash(8),
	}
	return c
}

// / Node looks up a published node by name ("hda", "cdrom0", ...).
func (c *Controller) Node(name string) (vfsdev.Node, bool) {
	v, ok := c.nodes.Get(name)
	if !ok {
		return nil, false
	}
	return v.(vfsdev.Node), true
}

// / Names returns every currently published node name, in no particular
// / order.
func (c *Controller) Names() []string {
	elems := c.nodes.Elems()
	names := make([]string, 0, len(elems))
	for _, e := range elems {
		names = append(names, e.Key.(string))
	}
	return names
}

// / Stats returns the controller-wide transfer counters.
func (c *Controller) Stats() *diag.Counters { return &c.stats }

// / Init scans PCI for the controller, installs the two legacy IRQ
// / handlers, and probes the four legacy device positions, mounting each
// / discovered node through mount.
func (c *Controller) Init(mount Mounter) error {
	if addr, ok := pci.FindController(c.PCI); ok {
		c.pciAddr = addr
		c.havePCI = true
	}

	c.Lines.Install(irq.Primary, "ide master", func() bool {
		c.irqHandler(0)
		return true
	})
	c.Lines.Install(irq.Secondary, "ide slave", func() bool {
		c.irqHandler(2)
		return true
	})

	for i, spec := range legacyChannels {
		if err := c.probe(i, spec, mount); err != nil {
			return err
		}
	}
	return nil
}

// / irqHandler is shared by both legacy lines: it wakes the ATAPI waiter
// / for whichever of the two devices on that line is mid-transaction.
// / base is 0 for the primary channel's pair, 2 for secondary.
func (c *Controller) irqHandler(base int) {
	for _, i := range [2]int{base, base + 1} {
		if c.ATAPI[i] != nil {
			c.ATAPI[i].HandleIRQ()
		}
	}
	line := irq.Primary
	if base == 2 {
		line = irq.Secondary
	}
	c.Lines.Ack(line)
}

// / probe dispatches one of the four legacy device positions based on its
// / signature: PATA creates /dev/hd<letter> and runs DMA init; ATAPI
// / creates /dev/cdrom<n> and runs capacity probe; absent or unknown
// / positions are skipped silently.
func (c *Controller) probe(index int, spec channelSpec, mount Mounter) error {
	ch := ata.NewChannel(c.Bus, spec.ioBase, spec.control, spec.slave, spec.bmOffset, &c.lock, &c.stats, &c.lat)

	switch ch.Detect() {
	case ata.SigPATA:
		ch.IdentifyPATA()
		c.Channels[index] = ch
		if c.havePCI {
			ch.InitDMA(c.DMA, c.PCI, c.pciAddr)
		}
		name := fmt.Sprintf("hd%c", 'a'+byte(c.driveIndex))
		c.driveIndex++
		node := vfsdev.NewPATANode(ch, name)
		c.nodes.Set(name, vfsdev.Node(node))
		return mount.Mount("/dev/"+name, node)

	case ata.SigATAPI:
		dev := atapi.NewDevice(c.Bus, spec.ioBase, spec.control, spec.slave, &c.lock, c.waiter, &c.stats, &c.atapiLat)
		c.ATAPI[index] = dev
		dev.ProbeCapacity() // ENODEV (no medium) still publishes the node
		name := fmt.Sprintf("cdrom%d", c.cdromIndex)
		c.cdromIndex++
		node := vfsdev.NewATAPINode(dev, name)
		c.nodes.Set(name, vfsdev.Node(node))
		return mount.Mount("/dev/"+name, node)

	case ata.SigAbsent:
		return nil

	default: // SigUnknown
		return nil
	}
}

// / Finalize is a no-op: this driver does not cleanly unload.
func (c *Controller) Finalize() defs.Err_t {
	return 0
}
