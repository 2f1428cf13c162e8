package ioapic

import (
	"sync"
	"testing"

	"interrupts/src/hardware/sim"
)

func newSimBase(t *testing.T) (*Base, *sim.IOAPIC) {
	t.Helper()
	dev := sim.NewIOAPIC(1)
	return New(dev), dev
}

func TestReadIDVersionArbitration(t *testing.T) {
	b, dev := newSimBase(t)
	if id := b.ReadID(); id != 1 {
		t.Errorf("expected id 1 but got %d", id)
	}
	v := b.ReadVersion()
	if v.MaxRedirectionEntry() != RedirectionEntries-1 {
		t.Errorf("expected max entry 23 but got %d", v.MaxRedirectionEntry())
	}
	b.WriteArbitration(NewArbitration(7))
	if a := b.ReadArbitration().ArbitrationID(); a != 7 {
		t.Errorf("expected arbitration id 7 but got %d", a)
	}

	dev.ClearTrace()
	b.ReadVersion()
	trace := dev.Trace()
	if len(trace) != 2 {
		t.Fatalf("expected select + window, got %v", trace)
	}
	if trace[0].Op != sim.Write || trace[0].Offset != OffsetSelect || trace[0].Value != uint32(IndexVersion) {
		t.Errorf("expected select of index 1 first, got %v", trace[0])
	}
	if trace[1].Op != sim.Read || trace[1].Offset != OffsetWindow {
		t.Errorf("expected window read second, got %v", trace[1])
	}
}

func TestRedirectionSplitIntegrity(t *testing.T) {
	b, dev := newSimBase(t)
	var e RedirectionEntry
	e.SetVector(0x20)
	e.SetDeliveryMode(Fixed)
	e.SetDestination(0x01)
	e.SetMasked(false)

	dev.ClearTrace()
	b.WriteRedirectionEntry(3, e)
	expectSequence(t, dev.Trace(), []sim.Access{
		{Op: sim.Write, Offset: OffsetSelect, Value: 0x16},
		{Op: sim.Write, Offset: OffsetWindow, Value: 0x0000_0020},
		{Op: sim.Write, Offset: OffsetSelect, Value: 0x17},
		{Op: sim.Write, Offset: OffsetWindow, Value: 0x0100_0000},
	})
	if dev.Entry(3) != 0x0100_0000_0000_0020 {
		t.Errorf("device holds %#x", dev.Entry(3))
	}

	dev.ClearTrace()
	got := b.ReadRedirectionEntry(3)
	if got != e {
		t.Errorf("read back %v, wrote %v", got, e)
	}
	expectSequence(t, dev.Trace(), []sim.Access{
		{Op: sim.Write, Offset: OffsetSelect, Value: 0x16},
		{Op: sim.Read, Offset: OffsetWindow, Value: 0x0000_0020},
		{Op: sim.Write, Offset: OffsetSelect, Value: 0x17},
		{Op: sim.Read, Offset: OffsetWindow, Value: 0x0100_0000},
	})
	m, err := got.DeliveryMode()
	if err != nil || m != Fixed {
		t.Errorf("expected fixed delivery, got %v %v", m, err)
	}
}

func expectSequence(t *testing.T, got, want []sim.Access) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d accesses but got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("access %d: expected %v but got %v", i, want[i], got[i])
		}
	}
}

func TestIRQOutOfRangeTouchesNothing(t *testing.T) {
	b, dev := newSimBase(t)
	dev.ClearTrace()
	for _, irq := range []uint8{24, 25, 100, 255} {
		expectIRQPanic(t, "read", func() { b.ReadRedirectionEntry(irq) })
		expectIRQPanic(t, "write", func() { b.WriteRedirectionEntry(irq, RedirectionEntry{}) })
		expectIRQPanic(t, "update", func() {
			b.UpdateRedirectionEntry(irq, func(*RedirectionEntry) {})
		})
	}
	if n := dev.Accesses(); n != 0 {
		t.Errorf("expected no accesses but saw %d: %v", n, dev.Trace())
	}
	// the lock must not be left held by the panics
	b.ReadRedirectionEntry(23)
}

func expectIRQPanic(t *testing.T, what string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected a panic for an out of range irq", what)
		}
	}()
	fn()
}

func TestUpdateRedirectionEntry(t *testing.T) {
	b, dev := newSimBase(t)
	if !b.ReadRedirectionEntry(9).Masked() {
		t.Fatalf("lines come out of reset masked")
	}
	b.UpdateRedirectionEntry(9, func(e *RedirectionEntry) {
		e.SetVector(0x39)
		e.SetLevelTriggered(true)
		e.SetLowActive(true)
		e.SetMasked(false)
	})
	dev.ClearTrace()
	b.UpdateRedirectionEntry(9, func(e *RedirectionEntry) { e.SetDestination(2) })
	if n := dev.Accesses(); n != 8 {
		t.Errorf("expected 4 select/window pairs but saw %d accesses", n)
	}
	got := b.ReadRedirectionEntry(9)
	if got.Vector() != 0x39 || !got.LevelTriggered() || !got.LowActive() ||
		got.Masked() || got.Destination() != 2 {
		t.Errorf("unexpected entry %v", got)
	}
}

func TestReadOnlyBitsComeFromHardware(t *testing.T) {
	b, dev := newSimBase(t)
	b.UpdateRedirectionEntry(5, func(e *RedirectionEntry) {
		e.SetVector(0x25)
		e.SetLevelTriggered(true)
		e.SetMasked(false)
	})
	if _, _, ok := dev.Raise(5); !ok {
		t.Fatalf("line 5 should deliver")
	}
	dev.SetSendPending(5, true)
	e := b.ReadRedirectionEntry(5)
	if !e.RemoteIRR() || !e.SendPending() {
		t.Errorf("expected remote irr and send pending, got %v", e)
	}
	// writing it back must not disturb the status bits
	b.UpdateRedirectionEntry(5, func(e *RedirectionEntry) { e.SetDestination(3) })
	if !b.ReadRedirectionEntry(5).RemoteIRR() {
		t.Errorf("remote irr lost on write back")
	}
	dev.EndOfInterrupt(0x25)
	if b.ReadRedirectionEntry(5).RemoteIRR() {
		t.Errorf("remote irr should clear on EOI")
	}
}

// concurrent logical operations never interleave their select/window pairs
func TestConcurrentOperationsDoNotInterleave(t *testing.T) {
	b, dev := newSimBase(t)
	var wg sync.WaitGroup
	for irq := uint8(0); irq < RedirectionEntries; irq++ {
		wg.Add(1)
		go func(irq uint8) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				b.UpdateRedirectionEntry(irq, func(e *RedirectionEntry) {
					e.SetVector(0x30 + irq)
					e.SetDestination(irq)
					e.SetMasked(false)
				})
			}
		}(irq)
	}
	wg.Wait()

	// each update is 8 accesses: select/read low, select/read high,
	// select/write low, select/write high, never mixed with another's
	trace := dev.Trace()
	if len(trace) != 20*RedirectionEntries*8 {
		t.Fatalf("expected %d accesses but saw %d", 20*RedirectionEntries*8, len(trace))
	}
	for i := 0; i < len(trace); i += 8 {
		op := trace[i : i+8]
		idx := op[0].Value
		for j, a := range op {
			wantOffset := OffsetWindow
			if j%2 == 0 {
				wantOffset = OffsetSelect
			}
			if a.Offset != wantOffset {
				t.Fatalf("access %d: expected offset %#x, got %v", i+j, wantOffset, a)
			}
		}
		if op[2].Value != idx+1 || op[4].Value != idx || op[6].Value != idx+1 {
			t.Fatalf("update at %d mixed indices: %v", i, op)
		}
		if op[1].Op != sim.Read || op[3].Op != sim.Read || op[5].Op != sim.Write || op[7].Op != sim.Write {
			t.Fatalf("update at %d out of order: %v", i, op)
		}
	}

	for irq := uint8(0); irq < RedirectionEntries; irq++ {
		e := b.ReadRedirectionEntry(irq)
		if e.Vector() != 0x30+irq || e.Destination() != irq || e.Masked() {
			t.Errorf("irq %d: corrupted entry %v", irq, e)
		}
	}
}
