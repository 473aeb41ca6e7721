package recycler

import (
	"time"
	"unsafe"

	"golang.org/x/exp/slog"

	"github.com/niclasgardsuu/zgc-primax/bits"
)

// objectAlignment is the alignment every live-object offset and every
// freed gap must respect. The GC's object layout is out of this
// package's scope; this is the one constant it must agree with.
const objectAlignment = 8

// InitFreeList transforms page's post-mark state into a usable allocator
// whose free space is exactly the union of inter-live-object gaps of at
// least minFreeBlockSize bytes. liveOffsets must be sorted in ascending
// address order; sizer resolves each offset to the live object's size.
// It returns false when there is nothing to recycle — pages with no live
// objects reduce here to an empty liveOffsets for this package's scope.
func InitFreeList(page *Page, liveOffsets []int, sizer ObjectSizer, minFreeBlockSize int) bool {
	if len(page.buf) == 0 {
		return false
	}
	if len(liveOffsets) == 0 {
		slog.Debug("recycler: no live objects, skipping free-list init")
		return false
	}

	start := time.Now()

	if page.alloc == nil {
		alloc, err := newPageAllocator(page.buf)
		if err != nil {
			slog.Warn("recycler: failed to construct page allocator", "error", err)
			return false
		}
		page.alloc = alloc
	} else {
		page.alloc.Reset()
	}

	page.bytesFreed = 0
	page.bytesUsed = 0
	page.exhausted = false
	page.failedRelocationSize = 0

	base := unsafe.Pointer(&page.buf[0])
	curr := 0
	for _, offset := range liveOffsets {
		size := sizer(page.base + uintptr(offset))
		if size <= 0 {
			continue
		}

		gap := bits.AlignDown(offset-curr, objectAlignment)
		if gap >= minFreeBlockSize {
			page.alloc.FreeRange(unsafe.Add(base, curr), gap)
			page.bytesFreed += gap
		}
		curr = offset + size
	}

	if tail := bits.AlignDown(len(page.buf)-curr, objectAlignment); tail >= minFreeBlockSize {
		page.alloc.FreeRange(unsafe.Add(base, curr), tail)
		page.bytesFreed += tail
	}

	page.recycling = true
	page.freeListTime = time.Since(start)

	slog.Debug("recycler: free-list reconstructed",
		"bytesFreed", page.bytesFreed,
		"liveObjects", len(liveOffsets),
		"elapsed", page.freeListTime)

	return true
}
