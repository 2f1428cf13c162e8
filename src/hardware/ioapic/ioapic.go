// Package ioapic drives the I/O interrupt routing controller through its
// two registers: IOREGSEL picks an internal register by index and IOWIN
// reads or writes the picked register.
//
// The select register is shared state, so every logical operation below
// (which may be several select/window pairs) runs under the Base's lock.
// A Base must still be the only handle on its controller.
package ioapic

import (
	"fmt"
	"sync"

	"interrupts/src/hardware/mmio"
	"interrupts/src/lib/volatile"
)

// offsets from the controller base
const (
	OffsetSelect uintptr = 0x00
	OffsetWindow uintptr = 0x10

	// Size covers both registers.
	Size = 0x20
)

// Index selects an internal register through OffsetSelect.
type Index uint8

const (
	IndexID               Index = 0x00
	IndexVersion          Index = 0x01
	IndexArbitration      Index = 0x02
	IndexRedirectionTable Index = 0x10 //two words per line
)

// RedirectionEntries is the number of input lines, 0 to 23.
const RedirectionEntries = 24

// Base is the register interface of one routing controller.
type Base struct {
	mu     sync.Mutex
	sel    volatile.Register32
	window volatile.Register32
}

// New returns the interface on bus; offsets are from the bus base.
func New(bus mmio.Bus) *Base {
	return &Base{
		sel:    volatile.New(bus, OffsetSelect),
		window: volatile.New(bus, OffsetWindow),
	}
}

// Map returns the interface of the controller mapped at addr (0xFEC00000
// on most machines).
func Map(addr uintptr) *Base {
	return New(mmio.Map(addr, Size))
}

// RedirectionIndex is the index of the low word of irq's entry; the high
// word follows it.  irq must be below RedirectionEntries.
func RedirectionIndex(irq uint8) Index {
	checkIRQ(irq)
	return IndexRedirectionTable + Index(irq)*2
}

func checkIRQ(irq uint8) {
	if irq >= RedirectionEntries {
		panic(fmt.Sprintf("ioapic: irq %d out of range, only %d lines",
			irq, RedirectionEntries))
	}
}

// the caller holds b.mu for all of these
func (b *Base) read(i Index) uint32 {
	b.sel.Set(uint32(i))
	return b.window.Get()
}

func (b *Base) write(i Index, value uint32) {
	b.sel.Set(uint32(i))
	b.window.Set(value)
}

// ReadID returns the controller's 4 bit APIC ID.
func (b *Base) ReadID() uint8 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return uint8(b.read(IndexID)>>24) & 0xf
}

func (b *Base) ReadVersion() Version {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Version(b.read(IndexVersion))
}

func (b *Base) ReadArbitration() Arbitration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Arbitration(b.read(IndexArbitration))
}

func (b *Base) WriteArbitration(a Arbitration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.write(IndexArbitration, uint32(a))
}

// ReadRedirectionEntry reads both words of irq's entry, low first.  An
// out of range irq panics before the controller is touched.
func (b *Base) ReadRedirectionEntry(irq uint8) RedirectionEntry {
	idx := RedirectionIndex(irq)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readEntry(idx)
}

// WriteRedirectionEntry writes both words of irq's entry, low then high.
// The read-only status bits in e are ignored by the hardware.
func (b *Base) WriteRedirectionEntry(irq uint8, e RedirectionEntry) {
	idx := RedirectionIndex(irq)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeEntry(idx, e)
}

// UpdateRedirectionEntry reads irq's entry, lets fn change it and writes
// it back, all as one operation.
func (b *Base) UpdateRedirectionEntry(irq uint8, fn func(e *RedirectionEntry)) {
	idx := RedirectionIndex(irq)
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.readEntry(idx)
	fn(&e)
	b.writeEntry(idx, e)
}

func (b *Base) readEntry(idx Index) RedirectionEntry {
	low := b.read(idx)
	high := b.read(idx + 1)
	return entryFromRaw(low, high)
}

func (b *Base) writeEntry(idx Index, e RedirectionEntry) {
	low, high := e.raw()
	b.write(idx, low)
	b.write(idx+1, high)
}
