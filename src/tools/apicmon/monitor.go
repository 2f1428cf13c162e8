// Package apicmon is an interactive monitor over a simulated local APIC and
// routing controller.  It programs both from a platform plan and then lets
// the user poke at them one command at a time, which is the quickest way
// to see what a plan actually does to the registers.
package apicmon

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/k0kubun/pp/v3"

	"interrupts/src/hardware/apic"
	"interrupts/src/hardware/ioapic"
	"interrupts/src/hardware/sim"
	"interrupts/src/lib/platform"
	"interrupts/src/lib/trust"
)

// ErrQuit is returned by Exec for the quit command.
var ErrQuit = errors.New("quit")

// ErrUsage wraps every malformed command.
var ErrUsage = errors.New("usage")

var heading = color.New(color.FgCyan, color.Bold)
var fired = color.New(color.FgYellow)

type command struct {
	args string
	help string
	run  func(m *Monitor, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":   {"", "list the commands", (*Monitor).help},
		"lapic":  {"", "show the local APIC registers", (*Monitor).showLocal},
		"ioapic": {"", "show the routing controller and its lines", (*Monitor).showRouting},
		"route":  {"<irq> <vector> [mode] [dest]", "route a line to a vector and unmask it", (*Monitor).route},
		"mask":   {"<irq>", "mask a line", (*Monitor).mask},
		"unmask": {"<irq>", "unmask a line", (*Monitor).unmask},
		"timer":  {"<vector> <divisor> <count> [periodic|oneshot]", "program and start the timer", (*Monitor).timer},
		"raise":  {"<irq>", "assert a line and deliver it", (*Monitor).raise},
		"eoi":    {"", "signal end of interrupt", (*Monitor).eoi},
		"tick":   {"<n>", "advance the timer n counts", (*Monitor).tick},
		"trace":  {"[clear]", "show or clear the register accesses", (*Monitor).trace},
		"dump":   {"", "dump the plan and raw entries", (*Monitor).dump},
		"quit":   {"", "leave", func(*Monitor, []string) error { return ErrQuit }},
	}
}

// Monitor owns a pair of simulated controllers and the drivers over them.
type Monitor struct {
	out      io.Writer
	log      trust.Logger
	plan     *platform.Plan
	lapicSim *sim.LocalAPIC
	ioSim    *sim.IOAPIC
	lapic    *apic.Base
	io       *ioapic.Base
	seen     int //timer firings already reported
}

// New builds the simulated controllers and programs them from p.  Output
// from commands goes to out.
func New(p *platform.Plan, out io.Writer, log trust.Logger) (*Monitor, error) {
	if log == nil {
		log = trust.Default
	}
	m := &Monitor{
		out:      out,
		log:      log,
		plan:     p,
		lapicSim: sim.NewLocalAPIC(0),
		ioSim:    sim.NewIOAPIC(0),
	}
	m.lapic = apic.New(m.lapicSim)
	m.io = ioapic.New(m.ioSim)
	if err := platform.Program(m.lapic, m.io, p, log); err != nil {
		return nil, err
	}
	return m, nil
}

// Local is the simulated local APIC, for tests.
func (m *Monitor) Local() *sim.LocalAPIC { return m.lapicSim }

// Routing is the simulated routing controller, for tests.
func (m *Monitor) Routing() *sim.IOAPIC { return m.ioSim }

// Exec runs one command line.  Blank lines and lines starting with # are
// ignored.
func (m *Monitor) Exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return nil
	}
	cmd, ok := commands[strings.ToLower(fields[0])]
	if !ok {
		return fmt.Errorf("%w: unknown command %q (try help)", ErrUsage, fields[0])
	}
	if err := cmd.run(m, fields[1:]); err != nil {
		if errors.Is(err, ErrUsage) && cmd.args != "" {
			return fmt.Errorf("%w (%s %s)", err, fields[0], cmd.args)
		}
		return err
	}
	return nil
}

func usage(format string, params ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, params...))
}

func (m *Monitor) printf(format string, params ...interface{}) {
	fmt.Fprintf(m.out, format, params...)
}

func (m *Monitor) help(_ []string) error {
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	heading.Fprintln(m.out, "commands")
	for _, n := range names {
		c := commands[n]
		m.printf("  %-40s %s\n", strings.TrimSpace(n+" "+c.args), c.help)
	}
	return nil
}

func (m *Monitor) showLocal(_ []string) error {
	ver := m.lapic.Version().Read()
	heading.Fprintf(m.out, "lapic %d at %#x\n", m.lapic.ID().Read().CoreID(), m.plan.LocalAPIC.Base)
	m.printf("  version %#02x, %d LVT entries, extended space %v\n",
		ver.Version(), int(ver.MaxLVTEntry())+1, ver.ExtendedSpacePresent())
	if ver.ExtendedSpacePresent() {
		f := m.lapic.ExtendedFeature().Read()
		m.printf("  extended: %d LVT, ext id %v, seoi %v, ier %v\n",
			f.ExtendedLVTCount(), f.ExtendedIDCapable(), f.SpecificEOICapable(), f.InterruptEnableCapable())
	}
	svr := m.lapic.SpuriousInterruptVector().Read()
	m.printf("  spurious %#02x enabled %v, task priority %d\n",
		svr.Vector(), svr.SoftwareEnabled(), m.lapic.TaskPriority().Read().Priority())
	lvt := m.lapic.TimerLVT().Read()
	m.printf("  timer vector %#02x masked %v periodic %v pending %v, %v, count %d of %d\n",
		lvt.Vector(), lvt.Masked(), lvt.Periodic(), lvt.DeliveryPending(),
		m.lapic.TimerDivideConfiguration().Read().Divisor(),
		m.lapic.TimerCurrentCount().Read().Count(), m.lapic.TimerInitialCount().Read().Count())
	if vs := m.lapicSim.InService(); len(vs) > 0 {
		m.printf("  in service %v\n", vs)
	}
	return nil
}

func (m *Monitor) showRouting(_ []string) error {
	ver := m.io.ReadVersion()
	heading.Fprintf(m.out, "ioapic %d at %#x\n", m.io.ReadID(), m.plan.IOAPIC.Base)
	m.printf("  version %#02x, arbitration %d\n", ver.Version(), m.io.ReadArbitration().ArbitrationID())
	for irq := uint8(0); irq < ioapic.RedirectionEntries; irq++ {
		e := m.io.ReadRedirectionEntry(irq)
		if e.Masked() && e.Vector() == 0 {
			continue
		}
		m.printf("  %2d: %v\n", irq, e)
	}
	return nil
}

func parseNumber(s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, usage("bad number %q", s)
	}
	return v, nil
}

func parseIRQ(args []string) (uint8, error) {
	if len(args) < 1 {
		return 0, usage("missing irq")
	}
	v, err := parseNumber(args[0], 8)
	if err != nil {
		return 0, err
	}
	if v >= ioapic.RedirectionEntries {
		return 0, usage("irq %d: only %d lines", v, ioapic.RedirectionEntries)
	}
	return uint8(v), nil
}

func (m *Monitor) route(args []string) error {
	irq, err := parseIRQ(args)
	if err != nil {
		return err
	}
	if len(args) < 2 {
		return usage("missing vector")
	}
	vector, err := parseNumber(args[1], 8)
	if err != nil {
		return err
	}
	r := platform.Route{IRQ: irq, Vector: uint8(vector)}
	if len(args) > 2 {
		r.Delivery = args[2]
	}
	if len(args) > 3 {
		d, err := parseNumber(args[3], 8)
		if err != nil {
			return err
		}
		r.Destination = uint8(d)
	}
	if _, err := r.DeliveryMode(); err != nil {
		return usage("%v", err)
	}
	var routeErr error
	m.io.UpdateRedirectionEntry(irq, func(e *ioapic.RedirectionEntry) {
		routeErr = r.Entry(e)
	})
	if routeErr != nil {
		return routeErr
	}
	m.log.Infof("irq %d -> vector %#x", irq, vector)
	return nil
}

func (m *Monitor) setMask(args []string, masked bool) error {
	irq, err := parseIRQ(args)
	if err != nil {
		return err
	}
	m.io.UpdateRedirectionEntry(irq, func(e *ioapic.RedirectionEntry) {
		e.SetMasked(masked)
	})
	return nil
}

func (m *Monitor) mask(args []string) error   { return m.setMask(args, true) }
func (m *Monitor) unmask(args []string) error { return m.setMask(args, false) }

func (m *Monitor) timer(args []string) error {
	if len(args) < 3 {
		return usage("need vector, divisor and count")
	}
	vector, err := parseNumber(args[0], 8)
	if err != nil {
		return err
	}
	n, err := parseNumber(args[1], 32)
	if err != nil {
		return err
	}
	div, err := apic.DivisorOf(uint(n))
	if err != nil {
		return usage("%v", err)
	}
	count, err := parseNumber(args[2], 32)
	if err != nil {
		return err
	}
	periodic := false
	if len(args) > 3 {
		switch args[3] {
		case "periodic":
			periodic = true
		case "oneshot", "one-shot":
		default:
			return usage("timer mode %q", args[3])
		}
	}
	m.lapic.TimerDivideConfiguration().Update(func(v *apic.TimerDivideConfiguration) {
		v.SetDivisor(div)
	})
	m.lapic.TimerLVT().Update(func(v *apic.TimerLVT) {
		v.SetVector(uint8(vector))
		v.SetPeriodic(periodic)
		v.SetMasked(false)
	})
	m.lapic.TimerInitialCount().Write(apic.TimerInitialCount(count))
	return nil
}

func (m *Monitor) raise(args []string) error {
	irq, err := parseIRQ(args)
	if err != nil {
		return err
	}
	vector, dest, ok := m.ioSim.Raise(int(irq))
	if !ok {
		m.printf("irq %d not delivered\n", irq)
		return nil
	}
	if !m.lapicSim.Deliver(vector) {
		m.log.Warnf("irq %d: vector %#x refused, lapic is disabled", irq, vector)
		return nil
	}
	fired.Fprintf(m.out, "irq %d -> vector %#02x (dest %d)\n", irq, vector, dest)
	return nil
}

func (m *Monitor) eoi(_ []string) error {
	before := m.lapicSim.InService()
	m.lapic.EndOfInterrupt().Signal()
	if len(before) == 0 {
		m.log.Warnf("eoi with nothing in service")
		return nil
	}
	vector := before[len(before)-1]
	m.ioSim.EndOfInterrupt(vector)
	m.printf("retired vector %#02x\n", vector)
	return nil
}

func (m *Monitor) tick(args []string) error {
	if len(args) < 1 {
		return usage("missing count")
	}
	n, err := parseNumber(args[0], 32)
	if err != nil {
		return err
	}
	m.lapicSim.Tick(uint32(n))
	all := m.lapicSim.TimerFired()
	for _, v := range all[m.seen:] {
		fired.Fprintf(m.out, "timer -> vector %#02x\n", v)
	}
	m.seen = len(all)
	return nil
}

func (m *Monitor) trace(args []string) error {
	if len(args) > 0 {
		if args[0] != "clear" {
			return usage("trace %q", args[0])
		}
		m.lapicSim.ClearTrace()
		m.ioSim.ClearTrace()
		return nil
	}
	heading.Fprintln(m.out, "lapic")
	for _, a := range m.lapicSim.Trace() {
		m.printf("  %v\n", a)
	}
	heading.Fprintln(m.out, "ioapic")
	for _, a := range m.ioSim.Trace() {
		m.printf("  %v\n", a)
	}
	m.log.Statsf("lapic", "%d accesses", m.lapicSim.Accesses())
	m.log.Statsf("ioapic", "%d accesses", m.ioSim.Accesses())
	return nil
}

func (m *Monitor) dump(_ []string) error {
	printer := pp.New()
	printer.SetColoringEnabled(!color.NoColor)
	raw := make(map[int]string)
	for irq := 0; irq < ioapic.RedirectionEntries; irq++ {
		raw[irq] = fmt.Sprintf("%#016x", m.ioSim.Entry(irq))
	}
	fmt.Fprintln(m.out, printer.Sprint(m.plan))
	fmt.Fprintln(m.out, printer.Sprint(raw))
	return nil
}

// LineReader is a source of command lines.  *tty.TTY satisfies it.
type LineReader interface {
	ReadString() (string, error)
}

// Run reads and executes lines until quit or the end of input.  Command
// errors are reported and the loop carries on.
func (m *Monitor) Run(lines LineReader, prompt func()) error {
	for {
		if prompt != nil {
			prompt()
		}
		line, err := lines.ReadString()
		if err == io.EOF && strings.TrimSpace(line) == "" {
			return nil
		}
		if err != nil && err != io.EOF {
			return err
		}
		if execErr := m.Exec(line); execErr != nil {
			if errors.Is(execErr, ErrQuit) {
				return nil
			}
			m.log.Errorf("%v", execErr)
		}
		if err == io.EOF {
			return nil
		}
	}
}

// Scanner adapts an io.Reader to LineReader.
type Scanner struct {
	r *bufio.Reader
}

func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReader(r)}
}

func (s *Scanner) ReadString() (string, error) {
	line, err := s.r.ReadString('\n')
	return strings.TrimRight(line, "\r\n"), err
}
