package platform

import (
	"interrupts/src/hardware/apic"
	"interrupts/src/hardware/ioapic"
	"interrupts/src/lib/trust"
)

// Program sets up both controllers from p.  Lines not named in p are
// masked.  The timer's initial count is written last, since that write
// starts the timer.
func Program(lapic *apic.Base, io *ioapic.Base, p *Plan, log trust.Logger) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if log == nil {
		log = trust.Default
	}
	programLocal(lapic, &p.LocalAPIC, log)
	return programRouting(io, &p.IOAPIC, log)
}

func programLocal(b *apic.Base, l *LocalAPICPlan, log trust.Logger) {
	id := b.ID().Read().CoreID()
	ver := b.Version().Read()
	log.Infof("lapic %d: version %#x, %d LVT entries", id, ver.Version(), int(ver.MaxLVTEntry())+1)

	b.SpuriousInterruptVector().Update(func(v *apic.SpuriousInterruptVector) {
		v.SetVector(l.SpuriousVector)
		v.SetSoftwareEnabled(true)
	})
	b.TaskPriority().Update(func(v *apic.TaskPriority) {
		v.SetPriority(l.TaskPriority)
	})

	div, _ := apic.DivisorOf(l.Timer.Divisor) //checked by Validate
	b.TimerDivideConfiguration().Update(func(v *apic.TimerDivideConfiguration) {
		v.SetDivisor(div)
	})
	b.TimerLVT().Update(func(v *apic.TimerLVT) {
		v.SetVector(l.Timer.Vector)
		v.SetPeriodic(l.Timer.Periodic)
		v.SetMasked(l.Timer.Masked)
	})
	b.TimerInitialCount().Write(apic.TimerInitialCount(l.Timer.InitialCount))
	log.Debugf("lapic %d: timer vector %#x %v count %d periodic=%v masked=%v",
		id, l.Timer.Vector, div, l.Timer.InitialCount, l.Timer.Periodic, l.Timer.Masked)
}

func programRouting(b *ioapic.Base, p *IOAPICPlan, log trust.Logger) error {
	ver := b.ReadVersion()
	lines := int(ver.MaxRedirectionEntry()) + 1
	if lines > ioapic.RedirectionEntries {
		lines = ioapic.RedirectionEntries
	}
	log.Infof("ioapic %d: version %#x, %d lines", b.ReadID(), ver.Version(), lines)
	b.WriteArbitration(ioapic.NewArbitration(p.ArbitrationID))

	routes := map[uint8]Route{}
	for _, r := range p.Routes {
		if int(r.IRQ) >= lines {
			log.Warnf("ioapic: irq %d is past the last line (%d), not routed", r.IRQ, lines-1)
			continue
		}
		routes[r.IRQ] = r
	}
	for irq := 0; irq < lines; irq++ {
		r, ok := routes[uint8(irq)]
		var err error
		b.UpdateRedirectionEntry(uint8(irq), func(e *ioapic.RedirectionEntry) {
			if !ok {
				e.SetMasked(true)
				return
			}
			err = r.Entry(e)
		})
		if err != nil {
			return err
		}
		if ok {
			log.Debugf("ioapic: irq %d -> vector %#x dest %#x (%s)", irq, r.Vector, r.Destination, r.Delivery)
		}
	}
	return nil
}
