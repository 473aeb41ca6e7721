// Package tlsf implements the base Two-Level Segregated Fit allocator
// (component C of the allocator family): segregated free lists indexed by
// (first-level, second-level) size class, bitmap-accelerated best-fit
// lookup, eager split/coalesce, and an in-band header on every block
// (component B). It is single-threaded-safe via an internal mutex and is
// intended for callers that are not contending heavily — for the
// lock-free, zero-header variant used by the page recycler, see package
// pagetlsf.
package tlsf

import (
	"sync"
	"unsafe"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pkg/errors"

	"github.com/niclasgardsuu/zgc-primax/bits"
	"github.com/niclasgardsuu/zgc-primax/internal/debugmargin"
	"github.com/niclasgardsuu/zgc-primax/internal/stats"
)

// Allocator is a single in-place segregated-fit allocator over a
// caller-owned buffer. It borrows the buffer for its lifetime; the buffer
// itself must remain alive and untouched by the caller for as long as the
// Allocator is in use.
type Allocator struct {
	mu sync.Mutex

	buf  []byte
	base unsafe.Pointer
	size int // usable pool size in bytes, aligned down from len(buf)

	flBitmap uint32
	slBitmap [FirstLevelIndex]uint32
	lists    [numLists]unsafe.Pointer // each slot is a *blockHeader, or nil

	allocatedBytes      int // bytes handed to callers and not yet freed
	lastInternalWaste   int // allocated_size - requested_size of the most recent Allocate
}

// New creates an Allocator over buffer. When startFull is true the entire
// buffer begins as a single used block and the caller must populate the
// free list via Free; otherwise the entire buffer begins as one
// free block available for immediate allocation.
func New(buffer []byte, startFull bool) (*Allocator, error) {
	if len(buffer) < int(headerLen)+MinBlockSize {
		return nil, errors.Wrapf(ErrBufferTooSmall, "buffer is %d bytes, need at least %d", len(buffer), int(headerLen)+MinBlockSize)
	}

	base := unsafe.Pointer(&buffer[0])
	if uintptr(base)%Alignment != 0 {
		return nil, ErrMisaligned
	}

	a := &Allocator{
		buf:  buffer,
		base: base,
		size: bits.AlignDown(len(buffer), Alignment),
	}

	h := headerAt(a.base)
	h.prevPhys = nil
	h.sizeAndFlags = 0
	h.setSize(a.size - int(headerLen))
	h.markLast()

	if startFull {
		h.markUsed()
	} else {
		a.insertBlock(h)
	}

	return a, nil
}

// Allocate returns a pointer to size bytes of zero-initialized-or-not
// (contents are whatever the buffer held) payload, or (nil, false) if the
// pool cannot satisfy the request.
func (a *Allocator) Allocate(size int) (unsafe.Pointer, bool) {
	if size <= 0 {
		return nil, false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	aligned := bits.AlignUp(size, Alignment)
	if aligned < MinBlockSize {
		aligned = MinBlockSize
	}
	reserve := aligned + debugmargin.Size

	h, ok := a.popSuitable(reserve)
	if !ok {
		return nil, false
	}

	a.split(h, reserve)
	h.markUsed()

	a.lastInternalWaste = h.size() - debugmargin.Size - size
	a.allocatedBytes += h.size() - debugmargin.Size

	if debugmargin.Size > 0 {
		debugmargin.WriteMagicValue(payload(h), h.size()-debugmargin.Size)
	}

	return payload(h), true
}

// popSuitable locates and removes a free block able to hold aligned
// bytes using the two-level segregated-fit search.
func (a *Allocator) popSuitable(aligned int) (*blockHeader, bool) {
	fl, sl := roundedMapping(aligned)

	if fl >= FirstLevelIndex {
		return a.popOversize(aligned)
	}

	slMap := a.slBitmap[fl] & (^uint32(0) << uint(sl))
	if slMap == 0 {
		flMap := a.flBitmap & (^uint32(0) << uint(fl+1))
		if flMap == 0 {
			return a.popOversize(aligned)
		}
		fl = bits.FFS32(flMap)
		slMap = a.slBitmap[fl]
	}
	sl = bits.FFS32(slMap)

	h := headerAt(a.lists[listIndex(fl, sl)])
	a.removeBlock(h)
	return h, true
}

// popOversize performs a linear first-fit scan of the oversize list, the
// fallback bucket for requests larger than the largest indexed class.
func (a *Allocator) popOversize(aligned int) (*blockHeader, bool) {
	for p := a.lists[oversizeList]; p != nil; {
		cand := headerAt(p)
		if cand.size() >= aligned {
			a.removeBlock(cand)
			return cand, true
		}
		p = cand.links().nextFree
	}
	return nil, false
}

// split shrinks h to exactly aligned bytes and reinserts the remainder as
// a new free block, provided the remainder is itself large enough to be a
// block. LAST propagates to whichever block ends up rightmost.
func (a *Allocator) split(h *blockHeader, aligned int) {
	remaining := h.size() - aligned
	if remaining < MinBlockSize+int(headerLen) {
		return
	}

	wasLast := h.isLast()
	h.setSize(aligned)
	h.clearLast()

	rem := headerAt(unsafe.Add(payload(h), aligned))
	rem.prevPhys = unsafe.Pointer(h)
	rem.sizeAndFlags = 0
	rem.setSize(remaining - int(headerLen))

	if wasLast {
		rem.markLast()
	} else if next := rem.nextPhys(); next != nil {
		next.prevPhys = unsafe.Pointer(rem)
	}

	a.insertBlock(rem)
}

// Free returns ptr's block to the pool, eagerly coalescing with any free
// physical neighbors. Freeing nil or a pointer outside the pool is a
// silent no-op. Freeing an already-free block is likewise a no-op in the
// default build (an asserted misuse).
func (a *Allocator) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.ptrInPool(ptr) {
		return
	}

	h := headerFromPayload(ptr)
	if h.isFree() {
		return
	}

	if debugmargin.Size > 0 && !debugmargin.ValidateMagicValue(payload(h), h.size()-debugmargin.Size) {
		panic("tlsf: corruption detected past end of allocation")
	}

	a.allocatedBytes -= h.size() - debugmargin.Size
	h.markFree()

	if h.prevPhys != nil {
		if prev := headerAt(h.prevPhys); prev.isFree() {
			a.removeBlock(prev)
			h = a.coalesce(prev, h)
		}
	}

	if next := h.nextPhys(); next != nil && next.isFree() {
		a.removeBlock(next)
		h = a.coalesce(h, next)
	}

	a.insertBlock(h)
}

// coalesce merges b2, which must immediately physically follow b1, into
// b1, returning b1 with its size enlarged by b2's size plus one header.
func (a *Allocator) coalesce(b1, b2 *blockHeader) *blockHeader {
	b1.setSize(b1.size() + int(headerLen) + b2.size())
	if b2.isLast() {
		b1.markLast()
	} else if next := b2.nextPhys(); next != nil {
		next.prevPhys = unsafe.Pointer(b1)
	}
	return b1
}

// insertBlock pushes h onto the head of its size class's free list and
// marks the corresponding bitmap bits.
func (a *Allocator) insertBlock(h *blockHeader) {
	idx := classIndex(h.size())

	links := h.links()
	links.prevFree = nil
	links.nextFree = a.lists[idx]
	if a.lists[idx] != nil {
		headerAt(a.lists[idx]).links().prevFree = unsafe.Pointer(h)
	}
	a.lists[idx] = unsafe.Pointer(h)
	h.markFree()

	if idx != oversizeList {
		fl, sl := mapping(h.size())
		a.slBitmap[fl] |= 1 << uint(sl)
		a.flBitmap |= 1 << uint(fl)
	}
}

// removeBlock unlinks h from whichever free list currently holds it,
// clearing bitmap bits if that list becomes empty, and marks h used.
func (a *Allocator) removeBlock(h *blockHeader) {
	idx := classIndex(h.size())
	links := h.links()

	if links.nextFree != nil {
		headerAt(links.nextFree).links().prevFree = links.prevFree
	}
	if links.prevFree != nil {
		headerAt(links.prevFree).links().nextFree = links.nextFree
	} else {
		a.lists[idx] = links.nextFree
		if a.lists[idx] == nil && idx != oversizeList {
			fl, sl := mapping(h.size())
			a.slBitmap[fl] &^= 1 << uint(sl)
			if a.slBitmap[fl] == 0 {
				a.flBitmap &^= 1 << uint(fl)
			}
		}
	}

	h.markUsed()
}

func (a *Allocator) ptrInPool(ptr unsafe.Pointer) bool {
	start := uintptr(a.base) + headerLen
	end := uintptr(a.base) + uintptr(a.size)
	p := uintptr(ptr)
	return p >= start && p < end
}

// GetAllocatedSize returns the usable payload size of the live allocation
// at ptr.
func (a *Allocator) GetAllocatedSize(ptr unsafe.Pointer) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return headerFromPayload(ptr).size() - debugmargin.Size
}

// InternalFragmentation reports the ratio of rounding/splitting waste
// from the most recent Allocate call to the bytes currently allocated
// from this pool (mirrors the original JSMalloc's coarse
// per-allocator fragmentation signal).
func (a *Allocator) InternalFragmentation() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.allocatedBytes == 0 {
		return 0
	}
	return float64(a.lastInternalWaste) / float64(a.allocatedBytes)
}

// Reset returns the allocator to a single, entirely-used block spanning
// the whole pool, without reallocating any metadata.
func (a *Allocator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.flBitmap = 0
	a.slBitmap = [FirstLevelIndex]uint32{}
	a.lists = [numLists]unsafe.Pointer{}
	a.allocatedBytes = 0
	a.lastInternalWaste = 0

	h := headerAt(a.base)
	h.prevPhys = nil
	h.sizeAndFlags = 0
	h.setSize(a.size - int(headerLen))
	h.markLast()
	h.markUsed()
}

// SumFreeSize returns the number of free payload bytes currently in the
// pool (excluding header overhead of free blocks).
func (a *Allocator) SumFreeSize() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sumFreeSizeLocked()
}

func (a *Allocator) sumFreeSizeLocked() int {
	total := 0
	for h := headerAt(a.base); ; {
		if h.isFree() {
			total += h.size()
		}
		next := h.nextPhys()
		if next == nil {
			break
		}
		h = next
	}
	return total
}

// Validate walks the pool's physical block chain and every free list,
// returning an error at the first internal inconsistency found. It holds
// the allocator's mutex for the whole walk, so it sees a consistent
// snapshot even when called concurrently with other operations.
func (a *Allocator) Validate() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var freeCount, sizeTotal int
	for h, prev := headerAt(a.base), (*blockHeader)(nil); ; {
		if h.prevPhys != unsafe.Pointer(prev) {
			return errors.Errorf("block at offset %d has a broken prevPhys link", a.offsetOf(h))
		}
		sizeTotal += h.size() + int(headerLen)
		if h.isFree() {
			freeCount++
			fl, sl := mapping(h.size())
			if fl < FirstLevelIndex && a.slBitmap[fl]&(1<<uint(sl)) == 0 {
				return errors.Errorf("block at offset %d is free but its size class bit is not set", a.offsetOf(h))
			}
		}
		next := h.nextPhys()
		if next == nil {
			break
		}
		prev = h
		h = next
	}

	if sizeTotal != a.size {
		return errors.Errorf("physical block chain covers %d bytes, want %d", sizeTotal, a.size)
	}

	listed := 0
	for idx := 0; idx < numLists; idx++ {
		for p := a.lists[idx]; p != nil; {
			h := headerAt(p)
			if !h.isFree() {
				return errors.Errorf("block at offset %d is in a free list but not marked free", a.offsetOf(h))
			}
			listed++
			p = h.links().nextFree
		}
	}
	if listed != freeCount {
		return errors.Errorf("free list contains %d blocks but %d physical blocks are free", listed, freeCount)
	}

	return nil
}

func (a *Allocator) offsetOf(h *blockHeader) uintptr {
	return uintptr(unsafe.Pointer(h)) - uintptr(a.base)
}

// AddStatistics folds this allocator's occupancy into stats.
func (a *Allocator) AddStatistics(s *stats.Statistics) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s.BlockCount++
	s.BlockBytes += a.size
	s.AllocationBytes += a.size - a.sumFreeSizeLocked()

	count := 0
	for h := headerAt(a.base); ; {
		if !h.isFree() {
			count++
		}
		next := h.nextPhys()
		if next == nil {
			break
		}
		h = next
	}
	s.AllocationCount += count
}

// AddDetailedStatistics folds this allocator's occupancy into s,
// additionally recording every free and used block's size so callers can
// inspect the free-region and allocation-size distributions.
func (a *Allocator) AddDetailedStatistics(s *stats.DetailedStatistics) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s.BlockCount++
	s.BlockBytes += a.size

	for h := headerAt(a.base); ; {
		if h.isFree() {
			s.AddUnusedRange(h.size())
		} else {
			s.AddAllocation(h.size())
		}
		next := h.nextPhys()
		if next == nil {
			break
		}
		h = next
	}
}

// WriteDebugJSON emits a per-size-class occupancy dump, mirroring
// PrintDetailedMap-style diagnostics.
func (a *Allocator) WriteDebugJSON(w *jwriter.Writer) {
	a.mu.Lock()
	defer a.mu.Unlock()

	obj := w.Object()
	defer obj.End()

	obj.Name("PoolBytes").Int(a.size)
	obj.Name("AllocatedBytes").Int(a.size - a.sumFreeSizeLocked())

	classes := obj.Name("FreeClasses").Array()
	for idx := 0; idx < numLists; idx++ {
		count := 0
		bytes := 0
		for p := a.lists[idx]; p != nil; {
			h := headerAt(p)
			count++
			bytes += h.size()
			p = h.links().nextFree
		}
		if count == 0 {
			continue
		}
		entry := classes.Object()
		entry.Name("ListIndex").Int(idx)
		entry.Name("BlockCount").Int(count)
		entry.Name("FreeBytes").Int(bytes)
		entry.End()
	}
	classes.End()
}
