package ioapic

import (
	"errors"
	"fmt"
	"strings"

	"interrupts/src/lib/bitfield"
)

// ErrInvalidDeliveryMode is returned when a delivery mode cannot be decoded.
var ErrInvalidDeliveryMode = errors.New("invalid delivery mode")

// DeliveryMode is the 3 bit delivery mode of a redirection entry.
type DeliveryMode uint8

const (
	Fixed          DeliveryMode = 0b000
	LowestPriority DeliveryMode = 0b001
	SMI            DeliveryMode = 0b010
	Reserved1      DeliveryMode = 0b011
	NMI            DeliveryMode = 0b100
	Init           DeliveryMode = 0b101
	Reserved2      DeliveryMode = 0b110
	ExtInt         DeliveryMode = 0b111
)

var deliveryModeNames = [...]string{
	Fixed:          "fixed",
	LowestPriority: "lowest-priority",
	SMI:            "smi",
	Reserved1:      "reserved1",
	NMI:            "nmi",
	Init:           "init",
	Reserved2:      "reserved2",
	ExtInt:         "extint",
}

func (m DeliveryMode) String() string {
	if int(m) < len(deliveryModeNames) {
		return deliveryModeNames[m]
	}
	return fmt.Sprintf("DeliveryMode(%d)", uint8(m))
}

// DeliveryModeFromBits decodes a raw delivery mode field.  Anything wider
// than 3 bits is an error; it is never mapped to a default mode.
func DeliveryModeFromBits(v uint32) (DeliveryMode, error) {
	if v > uint32(ExtInt) {
		return 0, fmt.Errorf("raw value %#x: %w", v, ErrInvalidDeliveryMode)
	}
	return DeliveryMode(v), nil
}

// ParseDeliveryMode accepts the names String produces, case insensitive.
func ParseDeliveryMode(s string) (DeliveryMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range deliveryModeNames {
		if s == name {
			return DeliveryMode(m), nil
		}
	}
	return 0, fmt.Errorf("%q: %w", s, ErrInvalidDeliveryMode)
}

// Version is the routing controller version register (index 0x01).
type Version uint32

func (v Version) Version() uint8 {
	return uint8(bitfield.Get(uint32(v), 0, 8))
}

// MaxRedirectionEntry is the number of redirection entries minus one.
func (v Version) MaxRedirectionEntry() uint8 {
	return uint8(bitfield.Get(uint32(v), 16, 24))
}

// Arbitration is the arbitration register (index 0x02).
type Arbitration uint32

// NewArbitration builds an arbitration word.  id is 4 bits.
func NewArbitration(id uint8) Arbitration {
	return Arbitration(bitfield.Set(0, 24, 28, uint32(id)))
}

// ArbitrationID is bits 27:24.
func (a Arbitration) ArbitrationID() uint8 {
	return uint8(bitfield.Get(uint32(a), 24, 28))
}

// RedirectionEntry is the 64 bit routing of one input line, kept as the
// two words the hardware stores it in.  It only comes from, and goes to,
// the hardware as a pair; see Base.
type RedirectionEntry struct {
	low  uint32
	high uint32
}

func entryFromRaw(low, high uint32) RedirectionEntry {
	return RedirectionEntry{low: low, high: high}
}

func (e RedirectionEntry) raw() (low, high uint32) {
	return e.low, e.high
}

// Raw is the entry as one 64 bit value, high word on top.
func (e RedirectionEntry) Raw() uint64 {
	return uint64(e.high)<<32 | uint64(e.low)
}

func (e RedirectionEntry) Vector() uint8 {
	return uint8(bitfield.Get(e.low, 0, 8))
}

func (e *RedirectionEntry) SetVector(v uint8) {
	e.low = bitfield.Set(e.low, 0, 8, uint32(v))
}

func (e RedirectionEntry) DeliveryMode() (DeliveryMode, error) {
	return DeliveryModeFromBits(bitfield.Get(e.low, 8, 11))
}

// SetDeliveryMode panics on a mode outside the 3 bit field.
func (e *RedirectionEntry) SetDeliveryMode(m DeliveryMode) {
	e.low = bitfield.Set(e.low, 8, 11, uint32(m))
}

// LogicalDestination is bit 11; clear means Destination is an APIC ID.
func (e RedirectionEntry) LogicalDestination() bool {
	return bitfield.Bit(e.low, 11)
}

func (e *RedirectionEntry) SetLogicalDestination(logical bool) {
	e.low = bitfield.SetBit(e.low, 11, logical)
}

// SendPending is the read-only delivery status, bit 12.
func (e RedirectionEntry) SendPending() bool {
	return bitfield.Bit(e.low, 12)
}

// LowActive is the input pin polarity, bit 13.
func (e RedirectionEntry) LowActive() bool {
	return bitfield.Bit(e.low, 13)
}

func (e *RedirectionEntry) SetLowActive(low bool) {
	e.low = bitfield.SetBit(e.low, 13, low)
}

// RemoteIRR is read-only, bit 14: a level triggered interrupt was accepted
// and its EOI has not arrived.
func (e RedirectionEntry) RemoteIRR() bool {
	return bitfield.Bit(e.low, 14)
}

// LevelTriggered is bit 15; clear is edge triggered.
func (e RedirectionEntry) LevelTriggered() bool {
	return bitfield.Bit(e.low, 15)
}

func (e *RedirectionEntry) SetLevelTriggered(level bool) {
	e.low = bitfield.SetBit(e.low, 15, level)
}

func (e RedirectionEntry) Masked() bool {
	return bitfield.Bit(e.low, 16)
}

func (e *RedirectionEntry) SetMasked(masked bool) {
	e.low = bitfield.SetBit(e.low, 16, masked)
}

// Destination is bits 63:56 of the entry (31:24 of the high word).
func (e RedirectionEntry) Destination() uint8 {
	return uint8(bitfield.Get(e.high, 24, 32))
}

func (e *RedirectionEntry) SetDestination(d uint8) {
	e.high = bitfield.Set(e.high, 24, 32, uint32(d))
}

func (e RedirectionEntry) String() string {
	mode := "?"
	if m, err := e.DeliveryMode(); err == nil {
		mode = m.String()
	}
	dest := "physical"
	if e.LogicalDestination() {
		dest = "logical"
	}
	trig := "edge"
	if e.LevelTriggered() {
		trig = "level"
	}
	pol := "high"
	if e.LowActive() {
		pol = "low"
	}
	return fmt.Sprintf("vec=%#02x %s dest=%s:%#02x %s/%s masked=%v pending=%v irr=%v",
		e.Vector(), mode, dest, e.Destination(), trig, pol, e.Masked(),
		e.SendPending(), e.RemoteIRR())
}
