// Package volatile gives a single device register, a 32 bit cell at a
// fixed offset on an mmio.Bus, the Get/Set/Update access used by the
// hardware packages.  Field level work belongs to the register value
// types, which go through bitfield and panic on values too wide for a
// field.
package volatile

import "interrupts/src/hardware/mmio"

// Register32 is one 32 bit register.  The zero value is not usable; build
// it with New.
type Register32 struct {
	bus    mmio.Bus
	offset uintptr
}

// New binds the register at offset on bus.
func New(bus mmio.Bus, offset uintptr) Register32 {
	return Register32{bus: bus, offset: offset}
}

// Offset is the byte offset of the register from its device base.
func (r Register32) Offset() uintptr {
	return r.offset
}

// Get reads the register.
func (r Register32) Get() uint32 {
	return r.bus.Read32(r.offset)
}

// Set writes the register.
func (r Register32) Set(value uint32) {
	r.bus.Write32(r.offset, value)
}

// Release writes the register after every earlier memory operation of the
// caller is visible.
func (r Register32) Release(value uint32) {
	r.bus.Release32(r.offset, value)
}

// Update reads the register, passes the word to fn and writes back what
// fn returns.  One read, one write.
func (r Register32) Update(fn func(uint32) uint32) {
	r.Set(fn(r.Get()))
}
