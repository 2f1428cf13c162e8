package apic

import "interrupts/src/lib/volatile"

// EndOfInterrupt is the write-only EOI register (0xB0).
type EndOfInterrupt struct {
	reg volatile.Register32
}

// Signal tells the local APIC the highest priority in-service interrupt is
// handled.  It is a single release-ordered write of zero: everything the
// handler stored before calling Signal is visible before the APIC can
// treat the interrupt as finished.
func (e EndOfInterrupt) Signal() {
	e.reg.Release(0)
}
