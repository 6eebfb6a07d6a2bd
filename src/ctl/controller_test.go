package ctl_test

import (
	"sort"
	"testing"

	"ataemu"
	"ctl"
	"vfsdev"
)

// / fakeMounter records every node this driver publishes, standing in for
// / the real VFS collaborator.
type fakeMounter struct {
	mounted map[string]vfsdev.Node
}

func newFakeMounter() *fakeMounter { return &fakeMounter{mounted: map[string]vfsdev.Node{}} }

func (m *fakeMounter) Mount(name string, node vfsdev.Node) error {
	m.mounted[name] = node
	return nil
}

func TestInitProbesFourLegacyChannels(t *testing.T) {
	emu := ataemu.New()
	emu.AttachPATA(0, false, ataemu.NewPATADisk(2048, "PRIMARY MASTER"))
	emu.AttachATAPI(1, false, ataemu.NewATAPIDisk(500, 2048, "SECONDARY ROM"))

	c := ctl.New(emu, emu, emu, emu)
	mounter := newFakeMounter()
	if err := c.Init(mounter); err != nil {
		t.Fatalf("Init: %v", err)
	}

	names := c.Names()
	sort.Strings(names)
	want := []string{"cdrom0", "hda"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", names, want)
		}
	}

	if _, ok := mounter.mounted["/dev/hda"]; !ok {
		t.Fatal("expected /dev/hda to be mounted")
	}
	if _, ok := mounter.mounted["/dev/cdrom0"]; !ok {
		t.Fatal("expected /dev/cdrom0 to be mounted")
	}

	hda, ok := c.Node("hda")
	if !ok {
		t.Fatal("Node(\"hda\") not found")
	}
	if hda.Attrs().Length != 2048*512 {
		t.Fatalf("hda length = %d, want %d", hda.Attrs().Length, 2048*512)
	}
}

func TestInitWithNoDrivesPresentPublishesNothing(t *testing.T) {
	emu := ataemu.New()
	c := ctl.New(emu, emu, emu, emu)
	mounter := newFakeMounter()

	if err := c.Init(mounter); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if len(c.Names()) != 0 {
		t.Fatalf("Names() = %v, want empty", c.Names())
	}
}

func TestATAPINoMediumStillPublishesNode(t *testing.T) {
	emu := ataemu.New()
	emu.AttachATAPI(0, false, ataemu.NewATAPIDisk(0, 2048, "EMPTY DRIVE"))

	c := ctl.New(emu, emu, emu, emu)
	mounter := newFakeMounter()
	if err := c.Init(mounter); err != nil {
		t.Fatalf("Init: %v", err)
	}

	node, ok := c.Node("cdrom0")
	if !ok {
		t.Fatal("expected cdrom0 to be published even with no medium")
	}
	if node.Attrs().Length != 0 {
		t.Fatalf("Length = %d, want 0 for no medium", node.Attrs().Length)
	}

	buf := make([]byte, 10)
	n, err := node.Read(0, 10, buf)
	if err != nil || n != 0 {
		t.Fatalf("Read on empty drive = (%d, %v), want (0, nil)", n, err)
	}
}

func TestEndToEndReadThroughPublishedNode(t *testing.T) {
	emu := ataemu.New()
	disk := ataemu.NewPATADisk(64, "E2E DISK")
	for i := range disk.Data {
		disk.Data[i] = byte(i)
	}
	emu.AttachPATA(0, false, disk)

	c := ctl.New(emu, emu, emu, emu)
	mounter := newFakeMounter()
	if err := c.Init(mounter); err != nil {
		t.Fatalf("Init: %v", err)
	}

	node, ok := c.Node("hda")
	if !ok {
		t.Fatal("Node(\"hda\") not found")
	}

	buf := make([]byte, 100)
	n, err := node.Read(1000, 100, buf)
	if err != nil || n != 100 {
		t.Fatalf("Read = (%d, %v), want (100, nil)", n, err)
	}
	for i, b := range buf {
		if b != disk.Data[1000+i] {
			t.Fatalf("byte %d = %#x, want %#x", i, b, disk.Data[1000+i])
		}
	}
}
