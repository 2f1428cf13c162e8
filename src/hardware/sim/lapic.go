package sim

import (
	"sync"

	"interrupts/src/lib/trust"
)

// local APIC offsets this model gives behavior to
const (
	lapicID              = 0x20
	lapicVersion         = 0x30
	lapicTaskPriority    = 0x80
	lapicEOI             = 0xB0
	lapicSpurious        = 0xF0
	lapicTimerLVT        = 0x320
	lapicTimerInitial    = 0x380
	lapicTimerCurrent    = 0x390
	lapicTimerDivide     = 0x3E0
	lapicExtendedFeature = 0x400
	lapicExtendedControl = 0x410

	lapicSize = 0x1000
)

// writable bits per register; anything not listed is read-only
var lapicWritable = map[uintptr]uint32{
	lapicID:              0xff00_0000,
	lapicTaskPriority:    0x0000_00ff,
	lapicSpurious:        0x0000_03ff,
	lapicTimerLVT:        0x0007_00ff, //delivery status (bit 12) is read-only
	lapicTimerInitial:    0xffff_ffff,
	lapicTimerDivide:     0x0000_000b,
	lapicExtendedControl: 0x0000_0007,
}

const (
	lvtMasked         = 1 << 16
	lvtPeriodic       = 1 << 17
	svrSoftwareEnable = 1 << 8
)

// LocalAPIC models the register file of one local interrupt controller:
// read-only registers ignore writes, EOI writes retire the highest
// in-service vector, and the timer counts down on Tick.
type LocalAPIC struct {
	Recorder
	mu        sync.Mutex
	regs      map[uintptr]uint32
	inService [256]bool
	eois      int
	fired     []uint8
}

// NewLocalAPIC returns a controller in its reset state with the given ID.
func NewLocalAPIC(id uint8) *LocalAPIC {
	return &LocalAPIC{regs: map[uintptr]uint32{
		lapicID:              uint32(id) << 24,
		lapicVersion:         0x8005_0010, //version 0x10, 6 LVT entries, extended space
		lapicSpurious:        0x0000_00ff,
		lapicTimerLVT:        lvtMasked,
		lapicExtendedFeature: 0x0004_0007, //4 extended LVTs, IER, SEOI, 8 bit ID
	}}
}

func (l *LocalAPIC) Read32(offset uintptr) uint32 {
	checkLocal(offset)
	l.mu.Lock()
	v := uint32(0)
	if offset != lapicEOI {
		v = l.regs[offset]
	}
	l.mu.Unlock()
	l.record(Read, offset, v)
	return v
}

func (l *LocalAPIC) Write32(offset uintptr, value uint32) {
	checkLocal(offset)
	l.store(offset, value)
	l.record(Write, offset, value)
}

func (l *LocalAPIC) Release32(offset uintptr, value uint32) {
	checkLocal(offset)
	l.store(offset, value)
	l.record(Release, offset, value)
}

func (l *LocalAPIC) store(offset uintptr, value uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if offset == lapicEOI {
		l.eois++
		for v := 255; v >= 0; v-- {
			if l.inService[v] {
				l.inService[v] = false
				break
			}
		}
		return
	}
	mask, ok := lapicWritable[offset]
	if !ok {
		if _, known := l.regs[offset]; !known && offset != lapicTimerCurrent {
			trust.Debugf("sim: local apic write to unmodelled offset %#x", offset)
		}
		return
	}
	l.regs[offset] = (l.regs[offset] &^ mask) | (value & mask)
	if offset == lapicTimerInitial {
		l.regs[lapicTimerCurrent] = value
	}
}

// Deliver accepts vector as if a routed interrupt arrived.  It is refused
// while the APIC is software disabled.
func (l *LocalAPIC) Deliver(vector uint8) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.regs[lapicSpurious]&svrSoftwareEnable == 0 {
		return false
	}
	l.inService[vector] = true
	return true
}

// InService lists the vectors accepted and not yet retired by an EOI, lowest first.
func (l *LocalAPIC) InService() []uint8 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []uint8
	for v, on := range l.inService {
		if on {
			out = append(out, uint8(v))
		}
	}
	return out
}

// EOIs is the number of end-of-interrupt writes seen.
func (l *LocalAPIC) EOIs() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.eois
}

// Tick advances the timer by n counts.  Every time the count reaches zero
// the timer vector is delivered (unless masked) and a periodic timer
// reloads from the initial count.
func (l *LocalAPIC) Tick(n uint32) {
	for n > 0 {
		l.mu.Lock()
		cur := l.regs[lapicTimerCurrent]
		if cur == 0 {
			l.mu.Unlock()
			return
		}
		step := n
		if step > cur {
			step = cur
		}
		cur -= step
		n -= step
		lvt := l.regs[lapicTimerLVT]
		if cur == 0 {
			if lvt&lvtPeriodic != 0 {
				cur = l.regs[lapicTimerInitial]
			}
			if lvt&lvtMasked == 0 {
				l.fired = append(l.fired, uint8(lvt))
				if l.regs[lapicSpurious]&svrSoftwareEnable != 0 {
					l.inService[uint8(lvt)] = true
				}
			}
		}
		l.regs[lapicTimerCurrent] = cur
		l.mu.Unlock()
	}
}

// TimerFired returns the timer vectors delivered so far.
func (l *LocalAPIC) TimerFired() []uint8 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]uint8, len(l.fired))
	copy(out, l.fired)
	return out
}

// Peek reads a register without recording an access.
func (l *LocalAPIC) Peek(offset uintptr) uint32 {
	checkLocal(offset)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.regs[offset]
}

// SetTimerDeliveryPending sets the read-only delivery status bit of the
// timer LVT, as the hardware does while a timer interrupt is being sent.
func (l *LocalAPIC) SetTimerDeliveryPending(pending bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if pending {
		l.regs[lapicTimerLVT] |= 1 << 12
	} else {
		l.regs[lapicTimerLVT] &^= 1 << 12
	}
}

func checkLocal(offset uintptr) {
	if offset&0xf != 0 || offset >= lapicSize {
		panic("sim: local apic registers are 16 byte aligned inside a 4k page")
	}
}
