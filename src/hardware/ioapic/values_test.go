package ioapic

import (
	"errors"
	"testing"
	"testing/quick"
)

func TestDeliveryModeCodes(t *testing.T) {
	for raw := uint32(0); raw < 8; raw++ {
		m, err := DeliveryModeFromBits(raw)
		if err != nil {
			t.Fatalf("code %d: %v", raw, err)
		}
		if uint32(m) != raw {
			t.Errorf("code %d decoded to %d", raw, m)
		}
		back, err := ParseDeliveryMode(m.String())
		if err != nil || back != m {
			t.Errorf("%s did not parse back: %v %v", m, back, err)
		}
	}
	if NMI != 4 || ExtInt != 7 || Init != 5 {
		t.Errorf("delivery mode codes moved")
	}
}

func TestDeliveryModeDecodeFailure(t *testing.T) {
	_, err := DeliveryModeFromBits(8)
	if !errors.Is(err, ErrInvalidDeliveryMode) {
		t.Errorf("expected ErrInvalidDeliveryMode but got %v", err)
	}
	if _, err := ParseDeliveryMode("sometimes"); !errors.Is(err, ErrInvalidDeliveryMode) {
		t.Errorf("expected parse failure, got %v", err)
	}
	if m, err := ParseDeliveryMode(" Lowest-Priority "); err != nil || m != LowestPriority {
		t.Errorf("expected lowest-priority, got %v %v", m, err)
	}
}

func TestVersionAndArbitration(t *testing.T) {
	v := Version(0x0017_0011)
	if v.Version() != 0x11 || v.MaxRedirectionEntry() != 23 {
		t.Errorf("bad version decode %#x %d", v.Version(), v.MaxRedirectionEntry())
	}
	a := NewArbitration(0xa)
	if uint32(a) != 0x0a00_0000 || a.ArbitrationID() != 0xa {
		t.Errorf("unexpected arbitration %#x", uint32(a))
	}
	defer func() {
		if recover() == nil {
			t.Errorf("a 5 bit arbitration id should panic")
		}
	}()
	NewArbitration(0x10)
}

func TestRedirectionEntryLayout(t *testing.T) {
	var e RedirectionEntry
	e.SetVector(0x41)
	e.SetDeliveryMode(LowestPriority)
	e.SetLogicalDestination(true)
	e.SetLowActive(true)
	e.SetLevelTriggered(true)
	e.SetMasked(true)
	e.SetDestination(0x0f)
	low, high := e.raw()
	if low != 0x0001_a941 {
		t.Errorf("expected low word 0x1a941 but got %#x", low)
	}
	if high != 0x0f00_0000 {
		t.Errorf("expected high word 0x0f000000 but got %#x", high)
	}
	if e.Raw() != 0x0f00_0000_0001_a941 {
		t.Errorf("unexpected raw %#x", e.Raw())
	}
}

func TestRedirectionEntryReadOnlyBits(t *testing.T) {
	e := entryFromRaw(1<<12|1<<14, 0)
	if !e.SendPending() || !e.RemoteIRR() {
		t.Errorf("expected pending and remote irr")
	}
	e.SetVector(0x22)
	e.SetMasked(true)
	if !e.SendPending() || !e.RemoteIRR() {
		t.Errorf("setters cleared read-only status")
	}
}

func TestSetDeliveryModeOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected a panic for mode 8")
		}
	}()
	var e RedirectionEntry
	e.SetDeliveryMode(DeliveryMode(8))
}

type entryFields struct {
	Vector      uint8
	Mode        uint8
	Logical     bool
	LowActive   bool
	Level       bool
	Masked      bool
	Destination uint8
}

func (f entryFields) apply(e *RedirectionEntry, which int) {
	switch which {
	case 0:
		e.SetVector(f.Vector)
	case 1:
		e.SetDeliveryMode(DeliveryMode(f.Mode % 8))
	case 2:
		e.SetLogicalDestination(f.Logical)
	case 3:
		e.SetLowActive(f.LowActive)
	case 4:
		e.SetLevelTriggered(f.Level)
	case 5:
		e.SetMasked(f.Masked)
	default:
		e.SetDestination(f.Destination)
	}
}

func snapshot(e RedirectionEntry) entryFields {
	m, _ := e.DeliveryMode()
	return entryFields{
		Vector:      e.Vector(),
		Mode:        uint8(m),
		Logical:     e.LogicalDestination(),
		LowActive:   e.LowActive(),
		Level:       e.LevelTriggered(),
		Masked:      e.Masked(),
		Destination: e.Destination(),
	}
}

// setting one field never moves any other
func TestRedirectionFieldIsolation(t *testing.T) {
	f := func(low, high uint32, fields entryFields, which uint8) bool {
		before := entryFromRaw(low, high)
		after := before
		w := int(which % 7)
		fields.apply(&after, w)

		want := snapshot(before)
		fields.apply2(&want, w)
		if snapshot(after) != want {
			return false
		}
		return after.SendPending() == before.SendPending() &&
			after.RemoteIRR() == before.RemoteIRR()
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func (f entryFields) apply2(s *entryFields, which int) {
	switch which {
	case 0:
		s.Vector = f.Vector
	case 1:
		s.Mode = f.Mode % 8
	case 2:
		s.Logical = f.Logical
	case 3:
		s.LowActive = f.LowActive
	case 4:
		s.Level = f.Level
	case 5:
		s.Masked = f.Masked
	default:
		s.Destination = f.Destination
	}
}
