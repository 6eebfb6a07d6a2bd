package ata_test

import (
	"bytes"
	"sync"
	"testing"

	"ata"
	"ataemu"
	"diag"
	"iotime"
	"pci"
)

func newTestChannel(t *testing.T, emu *ataemu.Emulator, ioBase, control uint16, slave int, bmOffset uint16) *ata.Channel {
	t.Helper()
	var lock sync.Mutex
	var stats diag.Counters
	var lat iotime.Latency
	return ata.NewChannel(emu, ioBase, control, slave, bmOffset, &lock, &stats, &lat)
}

func TestDetectAbsent(t *testing.T) {
	emu := ataemu.New()
	ch := newTestChannel(t, emu, 0x1F0, 0x3F6, 0, 0)
	if got := ch.Detect(); got != ata.SigAbsent {
		t.Fatalf("Detect() = %v, want SigAbsent", got)
	}
}

func TestDetectAndIdentifyPATA(t *testing.T) {
	emu := ataemu.New()
	emu.AttachPATA(0, false, ataemu.NewPATADisk(65536, "TEST DISK"))
	ch := newTestChannel(t, emu, 0x1F0, 0x3F6, 0, 0)

	if got := ch.Detect(); got != ata.SigPATA {
		t.Fatalf("Detect() = %v, want SigPATA", got)
	}
	ch.IdentifyPATA()

	if want := uint64(65536) * 512; ch.MaxOffset() != want {
		t.Fatalf("MaxOffset() = %d, want %d", ch.MaxOffset(), want)
	}
	if string(ch.ID.Model) != "TEST DISK" {
		t.Fatalf("Model = %q, want %q", ch.ID.Model, "TEST DISK")
	}
}

func TestDetectATAPI(t *testing.T) {
	emu := ataemu.New()
	emu.AttachATAPI(1, false, ataemu.NewATAPIDisk(1000, 2048, "TEST DRIVE"))
	ch := newTestChannel(t, emu, 0x170, 0x376, 0, 8)

	if got := ch.Detect(); got != ata.SigATAPI {
		t.Fatalf("Detect() = %v, want SigATAPI", got)
	}
}

func TestReadSectorPIO(t *testing.T) {
	emu := ataemu.New()
	disk := ataemu.NewPATADisk(1024, "PIO DISK")
	copy(disk.Data[512:1024], bytes.Repeat([]byte{0xAB}, 512))
	emu.AttachPATA(0, false, disk)

	ch := newTestChannel(t, emu, 0x1F0, 0x3F6, 0, 0)
	ch.Detect()
	ch.IdentifyPATA()

	buf := make([]byte, 512)
	if err := ch.ReadSectorPIO(1, buf); err != 0 {
		t.Fatalf("ReadSectorPIO: %v", err)
	}
	if !bytes.Equal(buf, bytes.Repeat([]byte{0xAB}, 512)) {
		t.Fatalf("ReadSectorPIO returned wrong data")
	}
}

func TestReadSectorDMA(t *testing.T) {
	emu := ataemu.New()
	disk := ataemu.NewPATADisk(1024, "DMA DISK")
	copy(disk.Data[2*512:3*512], bytes.Repeat([]byte{0xCD}, 512))
	emu.AttachPATA(0, false, disk)

	ch := newTestChannel(t, emu, 0x1F0, 0x3F6, 0, 0)
	ch.Detect()
	ch.IdentifyPATA()
	if !ch.InitDMA(emu, emu, mustFindController(t, emu)) {
		t.Fatal("InitDMA failed")
	}
	if !ch.HasDMA() {
		t.Fatal("HasDMA() = false after successful InitDMA")
	}

	buf := make([]byte, 512)
	if err := ch.ReadSector(2, buf); err != 0 {
		t.Fatalf("ReadSector: %v", err)
	}
	if !bytes.Equal(buf, bytes.Repeat([]byte{0xCD}, 512)) {
		t.Fatalf("ReadSector (DMA) returned wrong data")
	}

	trace := emu.Trace()
	count := 0
	for _, e := range trace {
		if e == "read_dma:2" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one read_dma:2 in trace, got %d (%v)", count, trace)
	}
}

func TestInitDMAFailsClosedOnMemoryMappedBAR4(t *testing.T) {
	emu := ataemu.New()
	emu.MemoryMappedBAR4()
	emu.AttachPATA(0, false, ataemu.NewPATADisk(1024, "MMIO DISK"))

	ch := newTestChannel(t, emu, 0x1F0, 0x3F6, 0, 0)
	ch.Detect()
	ch.IdentifyPATA()

	if ch.InitDMA(emu, emu, mustFindController(t, emu)) {
		t.Fatal("InitDMA should fail when BAR4 is memory-mapped")
	}
	if ch.HasDMA() {
		t.Fatal("HasDMA() should be false")
	}

	buf := make([]byte, 512)
	if err := ch.ReadSector(0, buf); err != 0 {
		t.Fatalf("ReadSector should fall back to PIO successfully, got %v", err)
	}
}

func TestWriteSectorRetryRoundTrip(t *testing.T) {
	emu := ataemu.New()
	emu.AttachPATA(0, false, ataemu.NewPATADisk(1024, "WRITE DISK"))

	ch := newTestChannel(t, emu, 0x1F0, 0x3F6, 0, 0)
	ch.Detect()
	ch.IdentifyPATA()

	want := bytes.Repeat([]byte{0x5A}, 512)
	if err := ch.WriteSectorRetry(5, want); err != 0 {
		t.Fatalf("WriteSectorRetry: %v", err)
	}

	got := make([]byte, 512)
	if err := ch.ReadSectorPIO(5, got); err != 0 {
		t.Fatalf("ReadSectorPIO after write: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatal("read-back after WriteSectorRetry did not match")
	}
}

func mustFindController(t *testing.T, emu *ataemu.Emulator) pci.Addr {
	t.Helper()
	addr, ok := pci.FindController(emu)
	if !ok {
		t.Fatal("pci.FindController: not found")
	}
	return addr
}
