package ata

import (
	"ioport"

	"defs"
	"iotime"
)

// / writeVerifyMaxAttempts bounds the write-then-read-back retry loop,
// / which would otherwise repeat indefinitely until the read-back
// / matches — a latent hang on a drive that never settles. This driver
// / caps it and surfaces exhaustion as defs.EIO instead of looping
// / forever.
const writeVerifyMaxAttempts = 8

// / ReadSectorPIO reads one 512-byte sector via programmed I/O. It is the
// / fallback used when a channel's BAR4 is not an I/O-space BAR and DMA
// / could not be armed, so a hard-disk node can still be created and
// / read.
func (c *Channel) ReadSectorPIO(lba uint64, buf []byte) defs.Err_t {
	if len(buf) != SectorSize {
		panic("ReadSectorPIO: bad buffer size")
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	span := iotime.Start(&c.latency.PIORead)
	defer span.Finish()

	c.out8(RegHDDevSel, 0xE0|uint8(c.Slave<<4))
	c.wait(false)
	c.out8(RegFeatures, 0)
	c.out8(RegSecCount0, 1)
	WriteLBA48(c.out8, lba)
	c.out8(RegCommand, CmdReadPIO)

	if c.wait(true) {
		c.stats.HardwareErrors.Inc()
		return -defs.EIO
	}

	words := make([]uint16, SectorSize/2)
	ioport.ReadWords(c.Bus, c.IOBase+RegData, words)
	for i, w := range words {
		buf[2*i] = byte(w)
		buf[2*i+1] = byte(w >> 8)
	}

	c.stats.PIOReads.Inc()
	return 0
}

// / ReadSector reads one sector via whichever transport this channel has
// / available: DMA when InitDMA succeeded, PIO otherwise. A failed DMA
// / init clears haveDMA rather than leaving DMA reads silently armed
// / against an unusable bus-master window.
func (c *Channel) ReadSector(lba uint64, buf []byte) defs.Err_t {
	if c.haveDMA {
		return c.ReadSectorDMA(lba, buf)
	}
	return c.ReadSectorPIO(lba, buf)
}

// / writeSectorPIO writes one 512-byte sector via programmed I/O and
// / issues CACHE FLUSH. It does not lock or retry; callers use
// / WriteSectorRetry for the write-verify contract.
func (c *Channel) writeSectorPIO(lba uint64, buf []byte) {
	c.Bus.Out8(c.Control+RegControl, 0x02)
	c.wait(false)
	c.out8(RegHDDevSel, 0xE0|uint8(c.Slave<<4))
	c.wait(false)

	c.out8(RegFeatures, 0)
	c.out8(RegSecCount0, 1)
	WriteLBA48(c.out8, lba)
	c.out8(RegCommand, CmdWritePIO)
	c.wait(false)

	words := make([]uint16, SectorSize/2)
	for i := range words {
		words[i] = uint16(buf[2*i]) | uint16(buf[2*i+1])<<8
	}
	ioport.WriteWords(c.Bus, c.IOBase+RegData, words)

	c.out8(RegCommand, CmdCacheFlush)
	c.wait(false)
}

// / bufferCompare reports whether two equal-length buffers differ,
// / requiring the length be a multiple of 4 bytes. It panics on a
// / mis-sized input rather than silently comparing a partial buffer.
func bufferCompare(a, b []byte) bool {
	if len(a) != len(b) || len(a)%4 != 0 {
		panic("bufferCompare: mis-sized buffer")
	}
	for i := range a {
		if a[i] != b[i] {
			return true
		}
	}
	return false
}

// / WriteSectorRetry writes one sector and reads it back, retrying the
// / whole write until the read-back is bitwise identical. An unbounded
// / retry here would hang forever on a drive that never settles, so this
// / caps the retry and returns defs.EIO on exhaustion instead.
func (c *Channel) WriteSectorRetry(lba uint64, buf []byte) defs.Err_t {
	if len(buf) != SectorSize {
		panic("WriteSectorRetry: bad buffer size")
	}

	c.lock.Lock()
	span := iotime.Start(&c.latency.PIOWrite)

	readBuf := make([]byte, SectorSize)
	for attempt := 0; attempt < writeVerifyMaxAttempts; attempt++ {
		c.writeSectorPIO(lba, buf)
		c.lock.Unlock()

		if err := c.ReadSector(lba, readBuf); err != 0 {
			c.lock.Lock()
			continue
		}
		if !bufferCompare(buf, readBuf) {
			c.stats.PIOWrites.Inc()
			span.Finish()
			return 0
		}
		c.stats.WriteVerifyRetries.Inc()
		c.lock.Lock()
	}
	c.lock.Unlock()
	span.Finish()
	c.stats.HardwareErrors.Inc()
	return -defs.EIO
}
