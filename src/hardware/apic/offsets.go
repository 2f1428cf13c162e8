package apic

// Offset is the byte offset of a register from the local APIC base.
type Offset uintptr

// Only some of these have typed accessors on Base; the rest are listed so
// the map of the page is in one place.
const (
	OffsetID                       Offset = 0x020
	OffsetVersion                  Offset = 0x030
	OffsetTaskPriority             Offset = 0x080
	OffsetArbitrationPriority      Offset = 0x090
	OffsetProcessorPriority        Offset = 0x0A0
	OffsetEndOfInterrupt           Offset = 0x0B0 //write only
	OffsetRemoteRead               Offset = 0x0C0
	OffsetLocalDestination         Offset = 0x0D0
	OffsetDestinationFormat        Offset = 0x0E0
	OffsetSpuriousInterruptVector  Offset = 0x0F0
	OffsetInService                Offset = 0x100 //8 registers
	OffsetTriggerMode              Offset = 0x180 //8 registers
	OffsetInterruptRequest         Offset = 0x200 //8 registers
	OffsetErrorStatus              Offset = 0x280
	OffsetInterruptCommand         Offset = 0x300 //low word, high at 0x310
	OffsetTimerLVT                 Offset = 0x320
	OffsetThermalLVT               Offset = 0x330
	OffsetPerformanceCounterLVT    Offset = 0x340
	OffsetLocalInterrupt0LVT       Offset = 0x350
	OffsetLocalInterrupt1LVT       Offset = 0x360
	OffsetErrorLVT                 Offset = 0x370
	OffsetTimerInitialCount        Offset = 0x380
	OffsetTimerCurrentCount        Offset = 0x390 //read only
	OffsetTimerDivideConfiguration Offset = 0x3E0
	OffsetExtendedFeature          Offset = 0x400 //read only
	OffsetExtendedControl          Offset = 0x410
	OffsetSpecificEndOfInterrupt   Offset = 0x420
	OffsetInterruptEnable          Offset = 0x480 //8 registers
	OffsetExtendedInterruptLVT     Offset = 0x500 //4 registers
)

// Size is the length of the register page.
const Size = 0x1000
