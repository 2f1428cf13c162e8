// Package sim has in-memory stand-ins for the interrupt controllers.  Each
// one is an mmio.Bus that records every access, so tests can check exactly
// which reads and writes a register layer issued, and the monitor tool can
// drive the register layers without real hardware.
package sim

import (
	"fmt"
	"sync"
)

// Op is the kind of a recorded access.
type Op int

const (
	Read Op = iota
	Write
	Release
)

func (o Op) String() string {
	switch o {
	case Read:
		return "read"
	case Write:
		return "write"
	case Release:
		return "release"
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Access is one recorded bus access.
type Access struct {
	Op     Op
	Offset uintptr
	Value  uint32
}

func (a Access) String() string {
	return fmt.Sprintf("%-7s %#05x %#010x", a.Op, a.Offset, a.Value)
}

// Recorder keeps the access trace of a simulated device.
type Recorder struct {
	mu    sync.Mutex
	trace []Access
}

func (r *Recorder) record(op Op, offset uintptr, value uint32) {
	r.mu.Lock()
	r.trace = append(r.trace, Access{Op: op, Offset: offset, Value: value})
	r.mu.Unlock()
}

// Trace returns a copy of the accesses seen since the last ClearTrace.
func (r *Recorder) Trace() []Access {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Access, len(r.trace))
	copy(out, r.trace)
	return out
}

// Accesses is the number of accesses seen since the last ClearTrace.
func (r *Recorder) Accesses() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trace)
}

// Count is the number of accesses of kind op at offset.
func (r *Recorder) Count(op Op, offset uintptr) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.trace {
		if a.Op == op && a.Offset == offset {
			n++
		}
	}
	return n
}

// ClearTrace forgets the recorded accesses.
func (r *Recorder) ClearTrace() {
	r.mu.Lock()
	r.trace = nil
	r.mu.Unlock()
}

// Memory is plain word memory: what is written is what is read back.
type Memory struct {
	Recorder
	mu    sync.Mutex
	size  uintptr
	words map[uintptr]uint32
}

// NewMemory returns size bytes of zeroed memory.
func NewMemory(size uintptr) *Memory {
	return &Memory{size: size, words: make(map[uintptr]uint32)}
}

func (m *Memory) Read32(offset uintptr) uint32 {
	v := m.Peek(offset)
	m.record(Read, offset, v)
	return v
}

func (m *Memory) Write32(offset uintptr, value uint32) {
	m.Poke(offset, value)
	m.record(Write, offset, value)
}

func (m *Memory) Release32(offset uintptr, value uint32) {
	m.Poke(offset, value)
	m.record(Release, offset, value)
}

// Peek reads a word without recording an access.
func (m *Memory) Peek(offset uintptr) uint32 {
	m.check(offset)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.words[offset]
}

// Poke writes a word without recording an access.
func (m *Memory) Poke(offset uintptr, value uint32) {
	m.check(offset)
	m.mu.Lock()
	m.words[offset] = value
	m.mu.Unlock()
}

func (m *Memory) check(offset uintptr) {
	if offset&3 != 0 || offset+4 > m.size {
		panic(fmt.Sprintf("sim: bad offset %#x for memory of %#x bytes", offset, m.size))
	}
}
