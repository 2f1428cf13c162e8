// Package apic is the register file of the local interrupt controller:
// one typed accessor per register at its fixed offset from the base.
//
// A Base is owned by the core it belongs to.  It does no locking, so two
// goroutines must not Update the same register through it at once.
package apic

import (
	"interrupts/src/hardware/mmio"
	"interrupts/src/lib/volatile"
)

// Register is the word type every register snapshot is built on.
type Register interface {
	~uint32
}

// ReadOnly is a register that can only be read.
type ReadOnly[T Register] struct {
	reg volatile.Register32
}

// Read fetches a snapshot of the register.  One bus read.
func (r ReadOnly[T]) Read() T {
	return T(r.reg.Get())
}

func (r ReadOnly[T]) Offset() Offset {
	return Offset(r.reg.Offset())
}

// ReadWrite is a register that can be read and written.  Writes always
// store the whole word, so change registers with Update (or Read, change,
// Write) rather than building a value from zero.
type ReadWrite[T Register] struct {
	reg volatile.Register32
}

// Read fetches a snapshot of the register.  One bus read.
func (r ReadWrite[T]) Read() T {
	return T(r.reg.Get())
}

// Write stores v.  One bus write.
func (r ReadWrite[T]) Write(v T) {
	r.reg.Set(uint32(v))
}

// Update reads the register, lets fn change the snapshot and writes the
// result back.
func (r ReadWrite[T]) Update(fn func(v *T)) {
	v := r.Read()
	fn(&v)
	r.Write(v)
}

func (r ReadWrite[T]) Offset() Offset {
	return Offset(r.reg.Offset())
}

// Base is a local APIC register file bound to its register page.
type Base struct {
	bus mmio.Bus
}

// New returns the register file on bus; offsets are from the bus base.
func New(bus mmio.Bus) *Base {
	return &Base{bus: bus}
}

// Map returns the register file whose page is mapped at addr (0xFEE00000
// unless the platform moved it).
func Map(addr uintptr) *Base {
	return New(mmio.Map(addr, Size))
}

func (b *Base) reg(o Offset) volatile.Register32 {
	return volatile.New(b.bus, uintptr(o))
}

func (b *Base) ID() ReadOnly[ID] {
	return ReadOnly[ID]{b.reg(OffsetID)}
}

func (b *Base) Version() ReadOnly[Version] {
	return ReadOnly[Version]{b.reg(OffsetVersion)}
}

func (b *Base) ExtendedFeature() ReadOnly[ExtendedFeature] {
	return ReadOnly[ExtendedFeature]{b.reg(OffsetExtendedFeature)}
}

func (b *Base) ExtendedControl() ReadWrite[ExtendedControl] {
	return ReadWrite[ExtendedControl]{b.reg(OffsetExtendedControl)}
}

func (b *Base) TaskPriority() ReadWrite[TaskPriority] {
	return ReadWrite[TaskPriority]{b.reg(OffsetTaskPriority)}
}

func (b *Base) SpuriousInterruptVector() ReadWrite[SpuriousInterruptVector] {
	return ReadWrite[SpuriousInterruptVector]{b.reg(OffsetSpuriousInterruptVector)}
}

func (b *Base) TimerLVT() ReadWrite[TimerLVT] {
	return ReadWrite[TimerLVT]{b.reg(OffsetTimerLVT)}
}

func (b *Base) TimerInitialCount() ReadWrite[TimerInitialCount] {
	return ReadWrite[TimerInitialCount]{b.reg(OffsetTimerInitialCount)}
}

func (b *Base) TimerCurrentCount() ReadOnly[TimerCurrentCount] {
	return ReadOnly[TimerCurrentCount]{b.reg(OffsetTimerCurrentCount)}
}

func (b *Base) TimerDivideConfiguration() ReadWrite[TimerDivideConfiguration] {
	return ReadWrite[TimerDivideConfiguration]{b.reg(OffsetTimerDivideConfiguration)}
}

// EndOfInterrupt returns the EOI signal.  It may be kept and used from the
// interrupt path independently of the rest of the register file.
func (b *Base) EndOfInterrupt() EndOfInterrupt {
	return EndOfInterrupt{b.reg(OffsetEndOfInterrupt)}
}
