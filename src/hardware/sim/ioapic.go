package sim

import (
	"fmt"
	"sync"

	"interrupts/src/lib/trust"
)

const (
	ioRegSel = 0x00
	ioWin    = 0x10

	ioIndexID          = 0x00
	ioIndexVersion     = 0x01
	ioIndexArbitration = 0x02
	ioIndexRedirection = 0x10
	ioRedirectionLines = 24
	ioVersionValue     = 0x0017_0011 //version 0x11, max redirection entry 23

	redirSendPending = 1 << 12
	redirRemoteIRR   = 1 << 14
	redirLevel       = 1 << 15
	redirMasked      = 1 << 16

	// the low word minus the read-only status bits
	redirLowWritable  = 0x0001_ffff &^ (redirSendPending | redirRemoteIRR)
	redirHighWritable = 0xff00_0000
)

// IOAPIC models a routing controller behind its select (0x00) and window
// (0x10) registers.
type IOAPIC struct {
	Recorder
	mu       sync.Mutex
	sel      uint32
	id       uint32
	arb      uint32
	redirtbl [ioRedirectionLines]uint64
}

// NewIOAPIC returns a controller in its reset state: every line masked.
func NewIOAPIC(id uint8) *IOAPIC {
	io := &IOAPIC{id: uint32(id&0xf) << 24, arb: uint32(id&0xf) << 24}
	for i := range io.redirtbl {
		io.redirtbl[i] = redirMasked
	}
	return io
}

func (io *IOAPIC) Read32(offset uintptr) uint32 {
	io.mu.Lock()
	v := uint32(0)
	switch offset {
	case ioRegSel:
		v = io.sel
	case ioWin:
		v = io.readRegister(io.sel)
	default:
		trust.Debugf("sim: ioapic read of unmodelled offset %#x", offset)
	}
	io.mu.Unlock()
	io.record(Read, offset, v)
	return v
}

func (io *IOAPIC) Write32(offset uintptr, value uint32) {
	io.store(offset, value)
	io.record(Write, offset, value)
}

func (io *IOAPIC) Release32(offset uintptr, value uint32) {
	io.store(offset, value)
	io.record(Release, offset, value)
}

func (io *IOAPIC) store(offset uintptr, value uint32) {
	io.mu.Lock()
	defer io.mu.Unlock()
	switch offset {
	case ioRegSel:
		io.sel = value & 0xff
	case ioWin:
		io.writeRegister(io.sel, value)
	default:
		trust.Debugf("sim: ioapic write of unmodelled offset %#x", offset)
	}
}

func (io *IOAPIC) readRegister(idx uint32) uint32 {
	switch idx {
	case ioIndexID:
		return io.id
	case ioIndexVersion:
		return ioVersionValue
	case ioIndexArbitration:
		return io.arb
	}
	if line, high, ok := redirectionSlot(idx); ok {
		if high {
			return uint32(io.redirtbl[line] >> 32)
		}
		return uint32(io.redirtbl[line])
	}
	return 0
}

func (io *IOAPIC) writeRegister(idx uint32, value uint32) {
	switch idx {
	case ioIndexID:
		io.id = value & 0x0f00_0000
		return
	case ioIndexArbitration:
		io.arb = value & 0x0f00_0000
		return
	case ioIndexVersion:
		return
	}
	line, high, ok := redirectionSlot(idx)
	if !ok {
		trust.Debugf("sim: ioapic write to unmodelled index %#x", idx)
		return
	}
	entry := io.redirtbl[line]
	if high {
		hi := (uint32(entry>>32) &^ redirHighWritable) | (value & redirHighWritable)
		io.redirtbl[line] = (entry & 0xffff_ffff) | uint64(hi)<<32
		return
	}
	lo := (uint32(entry) &^ redirLowWritable) | (value & redirLowWritable)
	io.redirtbl[line] = (entry &^ 0xffff_ffff) | uint64(lo)
}

func redirectionSlot(idx uint32) (line int, high bool, ok bool) {
	if idx < ioIndexRedirection || idx >= ioIndexRedirection+2*ioRedirectionLines {
		return 0, false, false
	}
	return int(idx-ioIndexRedirection) / 2, idx%2 == 1, true
}

// Raise asserts input line irq.  It reports the vector and destination
// the line is routed to, or ok == false when the line is masked or a
// level triggered line is still waiting for its EOI.
func (io *IOAPIC) Raise(irq int) (vector uint8, destination uint8, ok bool) {
	if irq < 0 || irq >= ioRedirectionLines {
		return 0, 0, false
	}
	io.mu.Lock()
	defer io.mu.Unlock()
	entry := io.redirtbl[irq]
	if entry&redirMasked != 0 {
		return 0, 0, false
	}
	if entry&redirLevel != 0 {
		if entry&redirRemoteIRR != 0 {
			return 0, 0, false
		}
		io.redirtbl[irq] |= redirRemoteIRR
	}
	return uint8(entry), uint8(entry >> 56), true
}

// EndOfInterrupt clears remote IRR on every level triggered line routed to
// vector, as the broadcast EOI from a local APIC does.
func (io *IOAPIC) EndOfInterrupt(vector uint8) {
	io.mu.Lock()
	defer io.mu.Unlock()
	for i, e := range io.redirtbl {
		if e&redirLevel != 0 && uint8(e) == vector {
			io.redirtbl[i] = e &^ redirRemoteIRR
		}
	}
}

// SetSendPending sets or clears the read-only delivery status bit of a line.
func (io *IOAPIC) SetSendPending(irq int, pending bool) {
	checkLine(irq)
	io.mu.Lock()
	defer io.mu.Unlock()
	if pending {
		io.redirtbl[irq] |= redirSendPending
	} else {
		io.redirtbl[irq] &^= redirSendPending
	}
}

// Entry returns the raw 64 bit redirection entry of irq without
// recording an access.
func (io *IOAPIC) Entry(irq int) uint64 {
	checkLine(irq)
	io.mu.Lock()
	defer io.mu.Unlock()
	return io.redirtbl[irq]
}

// Select returns the current select register without recording an access.
func (io *IOAPIC) Select() uint32 {
	io.mu.Lock()
	defer io.mu.Unlock()
	return io.sel
}

func checkLine(irq int) {
	if irq < 0 || irq >= ioRedirectionLines {
		panic(fmt.Sprintf("sim: irq %d out of range, lines are 0 to %d", irq, ioRedirectionLines-1))
	}
}
