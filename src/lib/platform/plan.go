// Package platform reads a description of how a machine's interrupt
// controllers should be set up and programs them from it, once, at boot.
package platform

import (
	"errors"
	"fmt"
	"io"
	"os"

	yaml "gopkg.in/yaml.v2"

	"interrupts/src/hardware/apic"
	"interrupts/src/hardware/ioapic"
)

// ErrInvalidPlan wraps every validation failure.
var ErrInvalidPlan = errors.New("invalid platform plan")

// vectors below this are reserved for CPU exceptions
const firstUsableVector = 0x20

type Plan struct {
	LocalAPIC LocalAPICPlan `yaml:"lapic"`
	IOAPIC    IOAPICPlan    `yaml:"ioapic"`
}

type LocalAPICPlan struct {
	// Base is the physical address of the register page on the target.
	// Program never maps it; a kernel hands it to apic.Map and passes the
	// result in, and apicmon only reports it next to the simulated device.
	Base           uint64    `yaml:"base"`
	SpuriousVector uint8     `yaml:"spurious_vector"`
	TaskPriority   uint8     `yaml:"task_priority"`
	Timer          TimerPlan `yaml:"timer"`
}

type TimerPlan struct {
	Vector       uint8  `yaml:"vector"`
	Divisor      uint   `yaml:"divisor"`
	InitialCount uint32 `yaml:"initial_count"`
	Periodic     bool   `yaml:"periodic"`
	Masked       bool   `yaml:"masked"`
}

type IOAPICPlan struct {
	// Base is the physical address of the select register, for ioapic.Map
	// on the target.  Like the local base it is checked, not mapped.
	Base          uint64  `yaml:"base"`
	ArbitrationID uint8   `yaml:"arbitration_id"`
	Routes        []Route `yaml:"routes"`
}

// Route is the redirection entry for one input line.
type Route struct {
	IRQ         uint8  `yaml:"irq"`
	Vector      uint8  `yaml:"vector"`
	Delivery    string `yaml:"delivery"`
	Destination uint8  `yaml:"destination"`
	Logical     bool   `yaml:"logical"`
	Level       bool   `yaml:"level"`
	LowActive   bool   `yaml:"low_active"`
	Masked      bool   `yaml:"masked"`
}

// Default is the plan used when a field is left out of a file: the
// architectural base addresses, spurious vector 0xFF, timer masked.
func Default() *Plan {
	return &Plan{
		LocalAPIC: LocalAPICPlan{
			Base:           0xFEE0_0000,
			SpuriousVector: 0xFF,
			Timer: TimerPlan{
				Vector:  0x20,
				Divisor: 16,
				Masked:  true,
			},
		},
		IOAPIC: IOAPICPlan{Base: 0xFEC0_0000},
	}
}

// Load reads a YAML plan on top of Default and validates it.
func Load(r io.Reader) (*Plan, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}
	p := Default()
	if err := yaml.UnmarshalStrict(data, p); err != nil {
		return nil, fmt.Errorf("parsing plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadFile is Load on the named file.
func LoadFile(path string) (*Plan, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	p, err := Load(fp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func invalid(format string, params ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidPlan, fmt.Sprintf(format, params...))
}

// Validate checks everything Program would otherwise panic on, plus
// vectors that would collide with CPU exceptions.
func (p *Plan) Validate() error {
	l := p.LocalAPIC
	if l.Base&0xfff != 0 {
		return invalid("lapic base %#x is not page aligned", l.Base)
	}
	if l.SpuriousVector < firstUsableVector {
		return invalid("spurious vector %#x is an exception vector", l.SpuriousVector)
	}
	if l.Timer.Vector < firstUsableVector {
		return invalid("timer vector %#x is an exception vector", l.Timer.Vector)
	}
	if _, err := apic.DivisorOf(l.Timer.Divisor); err != nil {
		return invalid("timer: %v", err)
	}
	routing := p.IOAPIC
	if routing.Base&0xf != 0 {
		return invalid("ioapic base %#x is not 16 byte aligned", routing.Base)
	}
	if routing.ArbitrationID > 0xf {
		return invalid("arbitration id %d does not fit in 4 bits", routing.ArbitrationID)
	}
	seen := map[uint8]bool{}
	for _, r := range routing.Routes {
		if r.IRQ >= ioapic.RedirectionEntries {
			return invalid("irq %d: only %d lines", r.IRQ, ioapic.RedirectionEntries)
		}
		if seen[r.IRQ] {
			return invalid("irq %d routed twice", r.IRQ)
		}
		seen[r.IRQ] = true
		mode, err := r.DeliveryMode()
		if err != nil {
			return invalid("irq %d: %v", r.IRQ, err)
		}
		if (mode == ioapic.Fixed || mode == ioapic.LowestPriority) && r.Vector < firstUsableVector {
			return invalid("irq %d: vector %#x is an exception vector", r.IRQ, r.Vector)
		}
		if mode == ioapic.Reserved1 || mode == ioapic.Reserved2 {
			return invalid("irq %d: delivery mode %s is reserved", r.IRQ, mode)
		}
	}
	return nil
}

// DeliveryMode is the parsed delivery mode; an empty string is fixed.
func (r Route) DeliveryMode() (ioapic.DeliveryMode, error) {
	if r.Delivery == "" {
		return ioapic.Fixed, nil
	}
	return ioapic.ParseDeliveryMode(r.Delivery)
}

// Entry applies the route to e, leaving the read-only bits alone.
func (r Route) Entry(e *ioapic.RedirectionEntry) error {
	mode, err := r.DeliveryMode()
	if err != nil {
		return err
	}
	e.SetVector(r.Vector)
	e.SetDeliveryMode(mode)
	e.SetDestination(r.Destination)
	e.SetLogicalDestination(r.Logical)
	e.SetLevelTriggered(r.Level)
	e.SetLowActive(r.LowActive)
	e.SetMasked(r.Masked)
	return nil
}
