// Command lsata probes an IDE controller and lists the block devices it
// finds. Real port I/O requires kernel privilege this Go module does not
// have, so lsata drives package ctl against an ataemu-simulated
// controller populated from its flags; wired to a real ioport.Bus/
// pci.ConfigSpace/irq.Lines/mem.DMAAllocator, the same ctl.Controller
// runs unchanged against actual hardware.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"ataemu"
	"ctl"
	"vfsdev"
)

// nullMounter discards every published node; lsata only reports what
// would have been mounted.
type nullMounter struct{}

func (nullMounter) Mount(name string, node vfsdev.Node) error { return nil }

func main() {
	sectors := flag.Uint64("sectors", 4194304, "simulated primary-master PATA disk size, in 512-byte sectors")
	model := flag.String("model", "SIMULATED DISK", "simulated disk model string")
	withCDROM := flag.Bool("cdrom", false, "also attach a simulated ATAPI drive on the secondary channel")
	flag.Parse()

	emu := ataemu.New()
	if *sectors > 0 {
		emu.AttachPATA(0, false, ataemu.NewPATADisk(uint32(*sectors), *model))
	}
	if *withCDROM {
		emu.AttachATAPI(1, false, ataemu.NewATAPIDisk(0, 2048, "SIMULATED ROM"))
	}

	c := ctl.New(emu, emu, emu, emu)
	if err := c.Init(nullMounter{}); err != nil {
		log.Fatalf("lsata: init: %v", err)
	}

	names := c.Names()
	if len(names) == 0 {
		fmt.Println("no devices found")
		return
	}
	for _, name := range names {
		node, ok := c.Node(name)
		if !ok {
			continue
		}
		attrs := node.Attrs()
		fmt.Fprintf(os.Stdout, "%-10s %14d bytes\n", "/dev/"+name, attrs.Length)
	}

	stats := c.Stats().Snapshot()
	fmt.Println("\ncounters:")
	for _, k := range []string{"pio_reads", "pio_writes", "dma_reads", "atapi_reads", "write_verify_retries", "hardware_errors"} {
		fmt.Fprintf(os.Stdout, "  %-24s %d\n", k, stats[k])
	}
}
