package atapi_test

import (
	"bytes"
	"sync"
	"testing"

	"ataemu"
	"atapi"
	"defs"
	"diag"
	"irq"
	"iotime"
)

func TestProbeCapacityNoMedium(t *testing.T) {
	emu := ataemu.New()
	emu.AttachATAPI(0, false, ataemu.NewATAPIDisk(0, 2048, "EMPTY DRIVE"))

	var lock sync.Mutex
	var stats diag.Counters
	var lat iotime.Totals
	dev := atapi.NewDevice(emu, 0x1F0, 0x3F6, 0, &lock, atapi.NewWaiter(), &stats, &lat)

	if err := dev.ProbeCapacity(); err != -defs.ENODEV {
		t.Fatalf("ProbeCapacity() = %v, want ENODEV", err)
	}
	if dev.Cap.MaxOffset() != 0 {
		t.Fatalf("MaxOffset() = %d, want 0", dev.Cap.MaxOffset())
	}
}

func TestProbeCapacityAndReadSector(t *testing.T) {
	emu := ataemu.New()
	disk := ataemu.NewATAPIDisk(999, 2048, "TEST ROM")
	copy(disk.Data[3*2048:4*2048], bytes.Repeat([]byte{0x42}, 2048))
	emu.AttachATAPI(0, false, disk)

	var lock sync.Mutex
	var stats diag.Counters
	var lat iotime.Totals
	waiter := atapi.NewWaiter()
	dev := atapi.NewDevice(emu, 0x1F0, 0x3F6, 0, &lock, waiter, &stats, &lat)

	emu.Install(irq.Primary, "ide master", func() bool {
		dev.HandleIRQ()
		return true
	})

	if err := dev.ProbeCapacity(); err != 0 {
		t.Fatalf("ProbeCapacity: %v", err)
	}
	if dev.Cap.LBA != 999 || dev.Cap.SectorSize != 2048 {
		t.Fatalf("Cap = %+v, want {999 2048}", dev.Cap)
	}

	buf := make([]byte, 2048)
	if err := dev.ReadSector(3, buf); err != 0 {
		t.Fatalf("ReadSector: %v", err)
	}
	if !bytes.Equal(buf, bytes.Repeat([]byte{0x42}, 2048)) {
		t.Fatal("ReadSector returned wrong data")
	}
}

func TestWaiterIgnoresSpuriousWake(t *testing.T) {
	w := atapi.NewWaiter()
	// A Wake with nobody armed must not panic or leave state that blocks
	// a later legitimate sleep/wake pair.
	w.Wake()

	done := make(chan struct{})
	go func() {
		w.Wake()
		close(done)
	}()
	<-done
}
