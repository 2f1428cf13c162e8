// Package bitfield packs and unpacks named sub-fields of a 32 bit
// register word. Ranges are half open, [lo,hi), counted from bit 0.
//
// Asking for a range outside the word, or handing Set a value that does
// not fit in the range, is a programming error and panics.  Nothing here
// does I/O.
package bitfield

import "fmt"

// Width is the number of bits in a register word.
const Width = 32

// Mask returns the word with bits [lo,hi) set.
func Mask(lo, hi uint) uint32 {
	checkRange(lo, hi)
	n := hi - lo
	if n == Width {
		return ^uint32(0)
	}
	return ((uint32(1) << n) - 1) << lo
}

// Get extracts bits [lo,hi) of word, shifted down to bit 0.
func Get(word uint32, lo, hi uint) uint32 {
	return (word & Mask(lo, hi)) >> lo
}

// Set returns word with bits [lo,hi) replaced by value.  All other bits
// are untouched.
func Set(word uint32, lo, hi uint, value uint32) uint32 {
	m := Mask(lo, hi)
	if value > m>>lo {
		panic(fmt.Sprintf("bitfield: value %#x does not fit in bits [%d,%d)",
			value, lo, hi))
	}
	return (word &^ m) | (value << lo)
}

// Bit reports whether bit n of word is set.
func Bit(word uint32, n uint) bool {
	return Get(word, n, n+1) != 0
}

// SetBit returns word with bit n set to on.
func SetBit(word uint32, n uint, on bool) uint32 {
	v := uint32(0)
	if on {
		v = 1
	}
	return Set(word, n, n+1, v)
}

func checkRange(lo, hi uint) {
	if hi <= lo || hi > Width {
		panic(fmt.Sprintf("bitfield: bad range [%d,%d)", lo, hi))
	}
}
