// Package ustr implements a small immutable ASCII byte-string type used for
// the textual fields this driver extracts from hardware, notably the
// IDENTIFY DEVICE model string.
package ustr

/// Ustr is an immutable byte string.
type Ustr []uint8

/// Eq compares two Ustr values for equality.
func (us Ustr) Eq(s Ustr) bool {
	if len(us) != len(s) {
		return false
	}
	for i, v := range us {
		if v != s[i] {
			return false
		}
	}
	return true
}

/// MkUstrSlice converts a NUL-terminated byte slice to a Ustr, truncating
/// at the first NUL byte if one is present.
func MkUstrSlice(buf []uint8) Ustr {
	for i := 0; i < len(buf); i++ {
		if buf[i] == 0 {
			return buf[:i]
		}
	}
	return buf
}

/// TrimSpace trims trailing ASCII spaces, as found in the space-padded
/// model and firmware-revision fields of an IDENTIFY block.
func (us Ustr) TrimSpace() Ustr {
	end := len(us)
	for end > 0 && us[end-1] == ' ' {
		end--
	}
	return us[:end]
}

/// String converts the Ustr to a Go string.
func (us Ustr) String() string {
	return string(us)
}
