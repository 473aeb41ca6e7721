// Package bumpptr implements the minimal stack-mode bump-pointer
// allocator that a page falls back to when it is not currently a
// recycling target. It is grounded on the stack-mode behavior of
// LinearBlockMetadata (_examples/vkngwrapper-arsenal/memutils/metadata/linear.go),
// stripped of the double-stack and ring-buffer modes that exist there to
// serve Vulkan sub-allocation patterns this domain has no use for.
package bumpptr

import "unsafe"

// Allocator hands out monotonically increasing offsets from a buffer
// until it runs out of room. It never reclaims space: the page holding it
// is expected to be reset or recycled by its owner rather than have
// individual allocations freed back to it.
type Allocator struct {
	base   unsafe.Pointer
	size   int
	cursor int
}

// New creates an Allocator over buffer.
func New(buffer []byte) *Allocator {
	if len(buffer) == 0 {
		return &Allocator{}
	}
	return &Allocator{
		base: unsafe.Pointer(&buffer[0]),
		size: len(buffer),
	}
}

// Allocate returns a pointer to size bytes at the current cursor and
// advances it, or (nil, false) if the request would overrun the buffer.
func (a *Allocator) Allocate(size int) (unsafe.Pointer, bool) {
	if size <= 0 || a.cursor+size > a.size {
		return nil, false
	}
	p := unsafe.Add(a.base, a.cursor)
	a.cursor += size
	return p, true
}

// Used returns the number of bytes handed out so far.
func (a *Allocator) Used() int { return a.cursor }

// Remaining returns the number of bytes still available.
func (a *Allocator) Remaining() int { return a.size - a.cursor }

// Reset returns the cursor to the start of the buffer, discarding all
// previous allocations.
func (a *Allocator) Reset() { a.cursor = 0 }
