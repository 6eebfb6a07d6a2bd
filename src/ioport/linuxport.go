//go:build linux

package ioport

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// / LinuxPortBus implements Bus over /dev/port, the legacy Linux device
// / node that exposes x86 port I/O space to a privileged process. It lets
// / this driver run against real hardware from a userspace harness
// / instead of the ataemu package's in-memory model. Opening it requires
// / CAP_SYS_RAWIO.
type LinuxPortBus struct {
	mu   sync.Mutex
	file *os.File
}

// / OpenLinuxPortBus opens /dev/port for read-write port access.
func OpenLinuxPortBus() (*LinuxPortBus, error) {
	f, err := os.OpenFile("/dev/port", os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &LinuxPortBus{file: f}, nil
}

// / Close releases the underlying /dev/port file descriptor.
func (b *LinuxPortBus) Close() error {
	return b.file.Close()
}

func (b *LinuxPortBus) fd() int { return int(b.file.Fd()) }

// / In8 implements Bus.
func (b *LinuxPortBus) In8(port uint16) uint8 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var buf [1]byte
	unix.Pread(b.fd(), buf[:], int64(port))
	return buf[0]
}

// / Out8 implements Bus.
func (b *LinuxPortBus) Out8(port uint16, v uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf := [1]byte{v}
	unix.Pwrite(b.fd(), buf[:], int64(port))
}

// / In16 implements Bus. /dev/port serves multi-byte reads as a
// / contiguous little-endian span starting at the given offset, matching
// / x86 port I/O byte ordering.
func (b *LinuxPortBus) In16(port uint16) uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var buf [2]byte
	unix.Pread(b.fd(), buf[:], int64(port))
	return uint16(buf[0]) | uint16(buf[1])<<8
}

// / Out16 implements Bus.
func (b *LinuxPortBus) Out16(port uint16, v uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf := [2]byte{byte(v), byte(v >> 8)}
	unix.Pwrite(b.fd(), buf[:], int64(port))
}
