// Package mmio is the single-word volatile access primitive the register
// layers are built on.  A Bus is a window of device memory addressed by
// byte offset from its base.
package mmio

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Bus performs 32 bit accesses at byte offsets from a device base.  Every
// call is exactly one access to the device; implementations must not
// cache, merge or drop accesses.
type Bus interface {
	Read32(offset uintptr) uint32
	Write32(offset uintptr, value uint32)
	// Release32 is Write32, except the store may not become visible before
	// any memory operation the caller issued ahead of it.
	Release32(offset uintptr, value uint32)
}

// Window is a Bus over memory that is already mapped into the address
// space (identity mapped on bare metal, or mmap'd by the host).  It does
// every access with sync/atomic so the compiler can neither elide nor
// reorder it; Go atomics are sequentially consistent which covers the
// release ordering of Release32.
type Window struct {
	base unsafe.Pointer
	size uintptr
}

// Map returns a Window of size bytes at the mapped address addr.  The
// caller owns the mapping for the Window's lifetime.
func Map(addr uintptr, size uintptr) *Window {
	return FromPointer(unsafe.Pointer(addr), size)
}

// FromPointer returns a Window of size bytes starting at ptr.
func FromPointer(ptr unsafe.Pointer, size uintptr) *Window {
	if ptr == nil {
		panic("mmio: nil base")
	}
	if uintptr(ptr)&3 != 0 {
		panic(fmt.Sprintf("mmio: base %#x not word aligned", uintptr(ptr)))
	}
	return &Window{base: ptr, size: size}
}

// Size is the number of bytes covered by the window.
func (w *Window) Size() uintptr {
	return w.size
}

func (w *Window) Read32(offset uintptr) uint32 {
	return atomic.LoadUint32(w.word(offset))
}

func (w *Window) Write32(offset uintptr, value uint32) {
	atomic.StoreUint32(w.word(offset), value)
}

func (w *Window) Release32(offset uintptr, value uint32) {
	atomic.StoreUint32(w.word(offset), value)
}

func (w *Window) word(offset uintptr) *uint32 {
	if offset&3 != 0 {
		panic(fmt.Sprintf("mmio: offset %#x not word aligned", offset))
	}
	if offset+4 > w.size {
		panic(fmt.Sprintf("mmio: offset %#x outside window of %#x bytes", offset, w.size))
	}
	return (*uint32)(unsafe.Add(w.base, offset))
}
