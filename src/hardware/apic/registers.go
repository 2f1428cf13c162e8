package apic

import "interrupts/src/lib/bitfield"

// Each register is a snapshot of one word.  Methods decode or re-encode
// fields of the snapshot, they never touch the device; use the accessors
// on Base to move a snapshot to or from the hardware.

// ID is the local APIC ID register (0x20).
type ID uint32

// CoreID is the APIC ID of the core that owns this local APIC, bits 31:24.
func (r ID) CoreID() uint8 {
	return uint8(bitfield.Get(uint32(r), 24, 32))
}

// Version is the local APIC version register (0x30).
type Version uint32

// Version is the implementation's version number, bits 7:0.
func (r Version) Version() uint8 {
	return uint8(bitfield.Get(uint32(r), 0, 8))
}

// MaxLVTEntry is the number of local vector table entries minus one, bits 23:16.
func (r Version) MaxLVTEntry() uint8 {
	return uint8(bitfield.Get(uint32(r), 16, 24))
}

// ExtendedSpacePresent reports the extended register space at 0x400 and
// up, bit 31.
func (r Version) ExtendedSpacePresent() bool {
	return bitfield.Bit(uint32(r), 31)
}

// ExtendedFeature is the extended APIC feature register (0x400), read only.
type ExtendedFeature uint32

// ExtendedLVTCount is the number of extended LVT registers, bits 23:16.
func (r ExtendedFeature) ExtendedLVTCount() uint8 {
	return uint8(bitfield.Get(uint32(r), 16, 24))
}

// ExtendedIDCapable reports support for an 8 bit APIC ID, bit 2.
func (r ExtendedFeature) ExtendedIDCapable() bool {
	return bitfield.Bit(uint32(r), 2)
}

// SpecificEOICapable reports the specific end of interrupt register, bit 1.
func (r ExtendedFeature) SpecificEOICapable() bool {
	return bitfield.Bit(uint32(r), 1)
}

// InterruptEnableCapable reports the interrupt enable registers, bit 0.
func (r ExtendedFeature) InterruptEnableCapable() bool {
	return bitfield.Bit(uint32(r), 0)
}

// ExtendedControl is the extended APIC control register (0x410).
type ExtendedControl uint32

func (r ExtendedControl) ExtendedIDEnabled() bool {
	return bitfield.Bit(uint32(r), 2)
}

func (r *ExtendedControl) SetExtendedIDEnabled(on bool) {
	*r = ExtendedControl(bitfield.SetBit(uint32(*r), 2, on))
}

func (r ExtendedControl) SpecificEOIEnabled() bool {
	return bitfield.Bit(uint32(r), 1)
}

func (r *ExtendedControl) SetSpecificEOIEnabled(on bool) {
	*r = ExtendedControl(bitfield.SetBit(uint32(*r), 1, on))
}

func (r ExtendedControl) InterruptEnableRegistersEnabled() bool {
	return bitfield.Bit(uint32(r), 0)
}

func (r *ExtendedControl) SetInterruptEnableRegistersEnabled(on bool) {
	*r = ExtendedControl(bitfield.SetBit(uint32(*r), 0, on))
}

// SpuriousInterruptVector is the spurious interrupt vector register (0xF0).
// Clearing the software enable bit turns the whole local APIC off.
type SpuriousInterruptVector uint32

func (r SpuriousInterruptVector) Vector() uint8 {
	return uint8(bitfield.Get(uint32(r), 0, 8))
}

func (r *SpuriousInterruptVector) SetVector(v uint8) {
	*r = SpuriousInterruptVector(bitfield.Set(uint32(*r), 0, 8, uint32(v)))
}

func (r SpuriousInterruptVector) SoftwareEnabled() bool {
	return bitfield.Bit(uint32(r), 8)
}

func (r *SpuriousInterruptVector) SetSoftwareEnabled(on bool) {
	*r = SpuriousInterruptVector(bitfield.SetBit(uint32(*r), 8, on))
}

// FocusCheckingDisabled is bit 9; set means lowest priority delivery
// ignores the focus core.
func (r SpuriousInterruptVector) FocusCheckingDisabled() bool {
	return bitfield.Bit(uint32(r), 9)
}

func (r *SpuriousInterruptVector) SetFocusCheckingDisabled(disabled bool) {
	*r = SpuriousInterruptVector(bitfield.SetBit(uint32(*r), 9, disabled))
}

// TaskPriority is the task priority register (0x80).  Interrupts with a
// priority class at or below the class in bits 7:4 are held off.
type TaskPriority uint32

func (r TaskPriority) Priority() uint8 {
	return uint8(bitfield.Get(uint32(r), 0, 8))
}

func (r *TaskPriority) SetPriority(p uint8) {
	*r = TaskPriority(bitfield.Set(uint32(*r), 0, 8, uint32(p)))
}

// TimerLVT is the timer entry of the local vector table (0x320).
type TimerLVT uint32

func (r TimerLVT) Vector() uint8 {
	return uint8(bitfield.Get(uint32(r), 0, 8))
}

func (r *TimerLVT) SetVector(v uint8) {
	*r = TimerLVT(bitfield.Set(uint32(*r), 0, 8, uint32(v)))
}

// DeliveryPending is the read-only delivery status, bit 12: the last
// timer interrupt has not been accepted by the core yet.
func (r TimerLVT) DeliveryPending() bool {
	return bitfield.Bit(uint32(r), 12)
}

func (r TimerLVT) Masked() bool {
	return bitfield.Bit(uint32(r), 16)
}

func (r *TimerLVT) SetMasked(masked bool) {
	*r = TimerLVT(bitfield.SetBit(uint32(*r), 16, masked))
}

// Periodic is bit 17; clear is one-shot.
func (r TimerLVT) Periodic() bool {
	return bitfield.Bit(uint32(r), 17)
}

func (r *TimerLVT) SetPeriodic(periodic bool) {
	*r = TimerLVT(bitfield.SetBit(uint32(*r), 17, periodic))
}

// TimerInitialCount is the count the timer starts from (0x380).  Writing
// it (re)starts the timer; zero stops it.
type TimerInitialCount uint32

func (r TimerInitialCount) Count() uint32 {
	return uint32(r)
}

func (r *TimerInitialCount) SetCount(c uint32) {
	*r = TimerInitialCount(c)
}

// TimerCurrentCount is the running count (0x390), read only.
type TimerCurrentCount uint32

func (r TimerCurrentCount) Count() uint32 {
	return uint32(r)
}

// TimerDivideConfiguration is the timer divide configuration register
// (0x3E0).  The divisor lives in bits 3, 1 and 0; see Divisor.
type TimerDivideConfiguration uint32

func (r TimerDivideConfiguration) Divisor() Divisor {
	w := uint32(r)
	return Divisor(bitfield.Get(w, 3, 4)<<2 | bitfield.Get(w, 0, 2))
}

func (r *TimerDivideConfiguration) SetDivisor(d Divisor) {
	if d > DivideBy1 {
		panic("apic: divisor code out of range")
	}
	w := bitfield.Set(uint32(*r), 0, 2, uint32(d)&3)
	*r = TimerDivideConfiguration(bitfield.Set(w, 3, 4, uint32(d)>>2))
}
