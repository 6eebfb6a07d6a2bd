package ata

import (
	"ustr"
	"util"

	"golang.org/x/text/encoding/charmap"
)

// / Identify holds the fields this driver consumes from an IDENTIFY
// / DEVICE (or IDENTIFY PACKET DEVICE) response: 28-bit and 48-bit LBA
// / sector counts and the model string. The full 256-word response is
// / not retained; only what the driver actually reads.
type Identify struct {
	Sectors28 uint32
	Sectors48 uint64
	Model     ustr.Ustr
}

// / DecodeIdentify extracts Sectors28 (words 60-61), Sectors48 (words
// / 100-103), and Model (words 27-46, byte-swapped pairwise) from a raw
// / 256-word IDENTIFY response.
func DecodeIdentify(words [IdentifyWords]uint16) Identify {
	var id Identify
	id.Sectors28 = uint32(words[60]) | uint32(words[61])<<16
	id.Sectors48 = uint64(words[100]) | uint64(words[101])<<16 |
		uint64(words[102])<<32 | uint64(words[103])<<48

	model := make([]byte, 0, 40)
	for i := 27; i <= 46; i++ {
		w := words[i]
		model = append(model, byte(w>>8), byte(w))
	}
	util.SwapPairs(model)
	id.Model = ustr.MkUstrSlice(sanitizeIdentifyString(model)).TrimSpace()
	return id
}

// / sanitizeIdentifyString runs raw IDENTIFY bytes through the ISO-8859-1
// / decoder before they're kept as a Ustr. A drive is supposed to return
// / printable ASCII here, but a flaky one can return arbitrary bytes;
// / ISO-8859-1 maps every byte 0-255 to a Unicode code point one-to-one,
// / so the round trip through it always yields valid UTF-8 instead of an
// / arbitrary byte sequence that later string handling would choke on.
func sanitizeIdentifyString(raw []byte) []byte {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return raw
	}
	return out
}

// / MaxOffset returns the device's capacity in bytes: Sectors48 takes
// / precedence over Sectors28 when nonzero.
func (id Identify) MaxOffset() uint64 {
	sectors := id.Sectors48
	if sectors == 0 {
		sectors = uint64(id.Sectors28)
	}
	return sectors * SectorSize
}
