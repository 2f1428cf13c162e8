package apic

import (
	"errors"
	"fmt"
)

// ErrInvalidDivisor is returned for a timer divisor that is not a power of
// two from 1 to 128.
var ErrInvalidDivisor = errors.New("invalid timer divisor")

// Divisor is a timer clock divisor, held as the 3 bit code
// (bit3, bit1, bit0) the divide configuration register uses.  The codes
// count up from divide by 2; the all ones code is divide by 1.
type Divisor uint8

const (
	DivideBy2   Divisor = 0b000
	DivideBy4   Divisor = 0b001
	DivideBy8   Divisor = 0b010
	DivideBy16  Divisor = 0b011
	DivideBy32  Divisor = 0b100
	DivideBy64  Divisor = 0b101
	DivideBy128 Divisor = 0b110
	DivideBy1   Divisor = 0b111
)

// Value is the number the bus clock is divided by.
func (d Divisor) Value() uint {
	if d > DivideBy1 {
		return 0
	}
	if d == DivideBy1 {
		return 1
	}
	return 2 << uint(d)
}

func (d Divisor) String() string {
	if d > DivideBy1 {
		return fmt.Sprintf("Divisor(%#b)", uint8(d))
	}
	return fmt.Sprintf("divide-by-%d", d.Value())
}

// DivisorOf returns the divisor code for dividing by n.
func DivisorOf(n uint) (Divisor, error) {
	for d := DivideBy2; d <= DivideBy1; d++ {
		if d.Value() == n {
			return d, nil
		}
	}
	return 0, fmt.Errorf("divide by %d: %w", n, ErrInvalidDivisor)
}
