package tlsf

import "unsafe"

const (
	flagFree uintptr = 1 << 0
	flagLast uintptr = 1 << 1
	flagMask         = flagFree | flagLast
)

// blockHeader is the metadata physically prefixed to every block in the
// pool (component B). Because the base variant does not defer coalescing,
// it always carries prevPhys so a free of one block can inspect its left
// physical neighbor in O(1).
type blockHeader struct {
	sizeAndFlags uintptr
	prevPhys     unsafe.Pointer // nil if this is the first physical block
}

// headerLen is the in-band header overhead charged against every block.
const headerLen = unsafe.Sizeof(blockHeader{})

// freeLinks overlays the first bytes of a free block's payload. The
// fields are only meaningful while the owning block is free; an
// allocated block's equivalent bytes belong to the caller.
type freeLinks struct {
	prevFree unsafe.Pointer
	nextFree unsafe.Pointer
}

func headerAt(p unsafe.Pointer) *blockHeader {
	return (*blockHeader)(p)
}

// payload returns the address of the first usable byte of h's block.
func payload(h *blockHeader) unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(h), headerLen)
}

// headerFromPayload recovers a block's header from a pointer previously
// returned by Allocate.
func headerFromPayload(ptr unsafe.Pointer) *blockHeader {
	return (*blockHeader)(unsafe.Add(ptr, -int(headerLen)))
}

func (h *blockHeader) size() int    { return int(h.sizeAndFlags &^ flagMask) }
func (h *blockHeader) isFree() bool { return h.sizeAndFlags&flagFree != 0 }
func (h *blockHeader) isLast() bool { return h.sizeAndFlags&flagLast != 0 }

func (h *blockHeader) setSize(size int) {
	h.sizeAndFlags = uintptr(size) | (h.sizeAndFlags & flagMask)
}

func (h *blockHeader) markFree()  { h.sizeAndFlags |= flagFree }
func (h *blockHeader) markUsed()  { h.sizeAndFlags &^= flagFree }
func (h *blockHeader) markLast()  { h.sizeAndFlags |= flagLast }
func (h *blockHeader) clearLast() { h.sizeAndFlags &^= flagLast }

// links returns the free-list linkage overlaid on h's payload. Only valid
// while h.isFree().
func (h *blockHeader) links() *freeLinks {
	return (*freeLinks)(payload(h))
}

// nextPhys returns the block immediately following h in address order, or
// nil if h is the last block in the pool.
func (h *blockHeader) nextPhys() *blockHeader {
	if h.isLast() {
		return nil
	}
	return headerAt(unsafe.Add(payload(h), h.size()))
}
