// Package recycler implements the free-list reconstruction driver
// (component E): given a page buffer and the ascending offsets of its
// live objects, it
// initializes a pagetlsf.Allocator whose free space is exactly the union
// of inter-live-object gaps, serves subsequent relocation allocations
// from it, and tracks the statistics a GC needs to decide whether a page
// is still worth targeting.
package recycler

import (
	"time"
	"unsafe"

	"github.com/niclasgardsuu/zgc-primax/pagetlsf"
)

// ObjectSizer reports the size in bytes of the live object starting at
// addr, or 0 if addr does not begin one. It is the external collaborator
// that knows the GC's object layout, which is not this package's concern.
type ObjectSizer func(addr uintptr) int

// Page wraps a recyclable buffer together with the lazily-constructed
// allocator and statistics that drive one recycle cycle.
type Page struct {
	base uintptr
	buf  []byte

	alloc *pagetlsf.Allocator

	recycling bool

	bytesFreed           int
	bytesUsed            int
	exhausted            bool
	failedRelocationSize int
	freeListTime         time.Duration
}

// NewPage wraps buffer for recycling. The page carries no allocator until
// the first call to InitFreeList.
func NewPage(buffer []byte) *Page {
	page := &Page{buf: buffer}
	if len(buffer) > 0 {
		page.base = uintptr(unsafe.Pointer(&buffer[0]))
	}
	return page
}

func (p *Page) Exhausted() bool               { return p.exhausted }
func (p *Page) BytesFreed() int               { return p.bytesFreed }
func (p *Page) BytesUsed() int                { return p.bytesUsed }
func (p *Page) FailedRelocationSize() int     { return p.failedRelocationSize }
func (p *Page) FreeListTime() time.Duration   { return p.freeListTime }
func (p *Page) Allocator() *pagetlsf.Allocator { return p.alloc }
func (p *Page) IsRecycling() bool             { return p.recycling }
