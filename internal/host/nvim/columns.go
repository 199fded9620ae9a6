package nvim

import "unicode/utf8"

// byteToRune returns the character column of byte offset b in line.
// Offsets past the end clamp to the line length.
func byteToRune(line []byte, b int) int {
	if b > len(line) {
		b = len(line)
	}
	if b < 0 {
		b = 0
	}
	return utf8.RuneCount(line[:b])
}

// runeToByte returns the byte offset of character column col in line.
// ok is false when col is beyond the end of the line.
func runeToByte(line []byte, col int) (int, bool) {
	if col < 0 {
		return 0, false
	}
	off := 0
	for i := 0; i < col; i++ {
		if off >= len(line) {
			return 0, false
		}
		_, size := utf8.DecodeRune(line[off:])
		off += size
	}
	return off, true
}
