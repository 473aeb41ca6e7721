package recycler

import (
	"unsafe"

	"golang.org/x/exp/slog"

	"github.com/niclasgardsuu/zgc-primax/bits"
	"github.com/niclasgardsuu/zgc-primax/internal/bumpptr"
	"github.com/niclasgardsuu/zgc-primax/pagetlsf"
)

func newPageAllocator(buf []byte) (*pagetlsf.Allocator, error) {
	return pagetlsf.New(buf, true)
}

// AllocObjectFreeList serves one relocation allocation from page,
// falling back to the page's normal bump-pointer allocator when the page
// is not currently a recycling target or has no allocator yet. On
// exhaustion it marks the page so the caller stops targeting it and
// records the failed request's size.
func AllocObjectFreeList(page *Page, size int, normal *bumpptr.Allocator) (unsafe.Pointer, bool) {
	aligned := bits.AlignUp(size, objectAlignment)

	if !page.recycling || page.alloc == nil {
		return normal.Allocate(aligned)
	}

	ptr, ok := page.alloc.Allocate(aligned)
	if !ok {
		page.exhausted = true
		page.failedRelocationSize = aligned
		slog.Debug("recycler: page exhausted", "requested", aligned)
		return nil, false
	}

	page.bytesUsed += aligned
	return ptr, true
}
