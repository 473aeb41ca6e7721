package pagetlsf

import (
	"unsafe"

	"github.com/niclasgardsuu/zgc-primax/bits"
)

const (
	flagFree uint64 = 1 << 0
	flagLast uint64 = 1 << 1
	flagMask        = flagFree | flagLast
)

// freeHeader is the metadata a block carries *only* while it is free. It
// occupies the first 16 bytes of the block's own span — there is no
// separate header region (BlockHeaderLength=0): a used block has zero
// metadata overhead anywhere, and its size must be supplied by the
// caller on Free, mirroring the page-optimized variant's reliance on an
// external object_size callback.
type freeHeader struct {
	sizeAndFlags uint64
	links        uint64 // bits.PackedOffsets: lower = next, upper = prev
}

// headerLen is zero-width in the sense that it never reserves bytes
// beyond a block's own accounted size; freeHeader simply overlays the
// first bytes of a free block's span. No size computation in this
// package refers to it; it records that this variant's header length is
// zero.
const headerLen = 0

func headerAt(p unsafe.Pointer) *freeHeader {
	return (*freeHeader)(p)
}

func (h *freeHeader) size() int    { return int(h.sizeAndFlags &^ flagMask) }
func (h *freeHeader) isFree() bool { return h.sizeAndFlags&flagFree != 0 }
func (h *freeHeader) isLast() bool { return h.sizeAndFlags&flagLast != 0 }

func (h *freeHeader) setSize(size int) {
	h.sizeAndFlags = uint64(size) | (h.sizeAndFlags & flagMask)
}

func (h *freeHeader) markFree()  { h.sizeAndFlags |= flagFree }
func (h *freeHeader) markUsed()  { h.sizeAndFlags &^= flagFree }
func (h *freeHeader) markLast()  { h.sizeAndFlags |= flagLast }
func (h *freeHeader) clearLast() { h.sizeAndFlags &^= flagLast }

func (h *freeHeader) next() uint32 { return bits.PackedOffsets(h.links).Lower() }
func (h *freeHeader) prev() uint32 { return bits.PackedOffsets(h.links).Upper() }

func (h *freeHeader) setNext(offset uint32) {
	h.links = uint64(bits.PackedOffsets(h.links).WithLower(offset))
}

func (h *freeHeader) setPrev(offset uint32) {
	h.links = uint64(bits.PackedOffsets(h.links).WithUpper(offset))
}
