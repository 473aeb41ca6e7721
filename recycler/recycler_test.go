package recycler

import (
	"testing"

	"github.com/niclasgardsuu/zgc-primax/internal/bumpptr"
)

// liveObject is a tiny fixed-size record used to drive the ObjectSizer
// callback in tests, standing in for the GC's real object layout.
type liveObject struct {
	offset int
	size   int
}

func sizerFor(objects []liveObject, base uintptr) ObjectSizer {
	return func(addr uintptr) int {
		for _, o := range objects {
			if base+uintptr(o.offset) == addr {
				return o.size
			}
		}
		return 0
	}
}

func TestInitFreeListReconstructionFidelity(t *testing.T) {
	const pageSize = 2 << 20 // 2 MiB
	buf := make([]byte, pageSize)
	page := NewPage(buf)

	objects := []liveObject{
		{offset: 0x0000, size: 64},
		{offset: 0x4000, size: 128},
		{offset: 0x10000, size: 64},
	}
	offsets := []int{0x0000, 0x4000, 0x10000}

	const minFree = 1024
	ok := InitFreeList(page, offsets, sizerFor(objects, page.base), minFree)
	if !ok {
		t.Fatalf("InitFreeList returned false")
	}

	gap1 := 0x4000 - 64   // between object 0 and object 1
	gap2 := 0x10000 - 0x4080 // between object 1 and object 2 (object 1 ends at 0x4000+128)
	tail := pageSize - 0x10040

	want := 0
	for _, g := range []int{gap1, gap2, tail} {
		if g >= minFree {
			want += alignDown8(g)
		}
	}

	if page.BytesFreed() != want {
		t.Fatalf("BytesFreed() = %d, want %d", page.BytesFreed(), want)
	}

	// A subsequent allocation must never land inside a live object.
	p, ok := AllocObjectFreeList(page, 256, nil)
	if !ok {
		t.Fatalf("AllocObjectFreeList failed")
	}
	off := int(uintptr(p) - page.base)
	for _, o := range objects {
		if off < o.offset+o.size && off+256 > o.offset {
			t.Fatalf("allocation at offset %d overlaps live object at %d..%d", off, o.offset, o.offset+o.size)
		}
	}
}

func alignDown8(n int) int { return n &^ 7 }

func TestInitFreeListNoLiveObjectsIsNoop(t *testing.T) {
	page := NewPage(make([]byte, 4096))
	if InitFreeList(page, nil, nil, 1024) {
		t.Fatalf("expected InitFreeList to return false with no live objects")
	}
	if page.IsRecycling() {
		t.Fatalf("page should not be marked recycling")
	}
}

func TestAllocObjectFreeListFallsBackWhenNotRecycling(t *testing.T) {
	page := NewPage(make([]byte, 4096))
	normal := bumpptr.New(make([]byte, 4096))

	p, ok := AllocObjectFreeList(page, 64, normal)
	if !ok || p == nil {
		t.Fatalf("expected fallback allocation to succeed")
	}
	if page.BytesUsed() != 0 {
		t.Fatalf("fallback allocation should not count toward recycler bytesUsed")
	}
}

func TestOversizeExhaustionMarksPage(t *testing.T) {
	const pageSize = 64 * 1024
	buf := make([]byte, pageSize)
	page := NewPage(buf)

	objects := []liveObject{{offset: 0, size: 16}}
	ok := InitFreeList(page, []int{0}, sizerFor(objects, page.base), 1024)
	if !ok {
		t.Fatalf("InitFreeList returned false")
	}

	if _, ok := AllocObjectFreeList(page, 128*1024, nil); ok {
		t.Fatalf("expected exhaustion for an over-large relocation request")
	}
	if !page.Exhausted() {
		t.Fatalf("expected page to be marked exhausted")
	}

	want := alignUp8(128 * 1024)
	if page.FailedRelocationSize() != want {
		t.Fatalf("FailedRelocationSize() = %d, want %d", page.FailedRelocationSize(), want)
	}
}

func alignUp8(n int) int { return (n + 7) &^ 7 }

func TestRegistryTracksExhaustedPages(t *testing.T) {
	reg := NewRegistry(4)

	buf := make([]byte, 4096)
	page := NewPage(buf)
	reg.Add(page)

	if got, ok := reg.Get(page.base); !ok || got != page {
		t.Fatalf("Get did not return the registered page")
	}

	objects := []liveObject{{offset: 0, size: 16}}
	InitFreeList(page, []int{0}, sizerFor(objects, page.base), 1024)
	AllocObjectFreeList(page, 1<<20, nil)

	exhausted := reg.Exhausted()
	if len(exhausted) != 1 || exhausted[0] != page {
		t.Fatalf("expected exactly the one exhausted page to be reported")
	}

	reg.Remove(page)
	if reg.Count() != 0 {
		t.Fatalf("expected registry to be empty after Remove")
	}
}
