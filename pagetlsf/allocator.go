package pagetlsf

import (
	"sort"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pkg/errors"

	"github.com/niclasgardsuu/zgc-primax/bits"
	"github.com/niclasgardsuu/zgc-primax/internal/debugmargin"
	"github.com/niclasgardsuu/zgc-primax/internal/stats"
)

// Allocator is a lock-free, deferred-coalescing segregated-fit allocator
// over a caller-owned buffer. Multiple goroutines may call Allocate and
// Free concurrently without external synchronization; Aggregate and
// Reset are quiesced operations and must not race with either.
type Allocator struct {
	buf  []byte
	base unsafe.Pointer
	size int

	flBitmap atomic.Uint32
	lists    [numLists]atomic.Uint64 // packed bits.PackedOffsets(offset, version)

	aggregateMu sync.Mutex

	// allocatedBytes, allocationCount, and lastInternalWaste are
	// deliberately plain, racy counters: the page this allocator manages
	// is owned by one recycler thread at a time outside of the
	// CAS-protected free-list operations, so exact accounting under
	// concurrent allocation is not required.
	allocatedBytes    int
	allocationCount   int
	lastInternalWaste int
}

// New creates an Allocator over buffer. When startFull is true the whole
// buffer begins used and unreachable from Allocate until Free or
// FreeRange populates the free lists; otherwise the whole buffer begins
// as one free block.
func New(buffer []byte, startFull bool) (*Allocator, error) {
	if len(buffer) < MinBlockSize {
		return nil, errors.Wrapf(ErrBufferTooSmall, "buffer is %d bytes, need at least %d", len(buffer), MinBlockSize)
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
	for i := range a.lists {
		a.lists[i].Store(uint64(bits.PackOffsets(bits.Null, 0)))
	}

	if !startFull {
		a.insertBlock(0, a.size, true)
	}

	return a, nil
}

func (a *Allocator) blockAt(offset uint32) unsafe.Pointer {
	return unsafe.Add(a.base, offset)
}

func (a *Allocator) setClassBit(idx int) {
	for {
		old := a.flBitmap.Load()
		next := old | (1 << uint(idx))
		if old == next || a.flBitmap.CompareAndSwap(old, next) {
			return
		}
	}
}

func (a *Allocator) clearClassBit(idx int) {
	for {
		old := a.flBitmap.Load()
		next := old &^ (1 << uint(idx))
		if old == next || a.flBitmap.CompareAndSwap(old, next) {
			return
		}
	}
}

// insertBlock publishes a free block spanning [offset, offset+size) into
// its size class's lock-free list. The CAS retry loop is the only
// contention point; ABA is prevented by the version counter riding along
// in the head word's upper 32 bits.
func (a *Allocator) insertBlock(offset uint32, size int, isLast bool) {
	h := headerAt(a.blockAt(offset))
	h.sizeAndFlags = 0
	h.links = 0
	h.setSize(size)
	h.markFree()
	if isLast {
		h.markLast()
	}

	idx := classIndex(size)
	list := &a.lists[idx]
	for {
		old := bits.PackedOffsets(list.Load())
		h.setNext(old.Lower())
		h.setPrev(bits.Null)
		newWord := bits.PackOffsets(offset, old.Upper()+1)
		if list.CompareAndSwap(uint64(old), uint64(newWord)) {
			break
		}
	}
	if idx != oversizeList {
		a.setClassBit(idx)
	}
}

// popHead removes and returns the head block of size class idx, or
// (0, false) if that class is currently empty. Only the head may be
// removed in this variant; mid-list removal is not supported, which is
// what makes a lock-free implementation tractable.
func (a *Allocator) popHead(idx int) (uint32, bool) {
	list := &a.lists[idx]
	for {
		old := bits.PackedOffsets(list.Load())
		headOffset := old.Lower()
		if headOffset == bits.Null {
			return 0, false
		}

		h := headerAt(a.blockAt(headOffset))
		nextOffset := h.next()
		newWord := bits.PackOffsets(nextOffset, old.Upper()+1)
		if list.CompareAndSwap(uint64(old), uint64(newWord)) {
			if nextOffset == bits.Null && idx != oversizeList {
				a.clearClassBit(idx)
			}
			h.markUsed()
			return headOffset, true
		}
	}
}

func (a *Allocator) hasOversize() bool {
	return bits.PackedOffsets(a.lists[oversizeList].Load()).Lower() != bits.Null
}

// findClass locates the smallest non-empty size class guaranteed to hold
// a request of aligned bytes. Because this variant has no second level,
// the rounding step bumps a non-power-of-two request to the next class up
// entirely (rather than a fractional sl step), which is the coarser price
// of a single-level mapping.
func (a *Allocator) findClass(aligned int) (int, bool) {
	level := fl(aligned)
	if aligned != 1<<uint(level) {
		level++
	}
	want := listIndex(level)

	if want != oversizeList {
		bitmap := a.flBitmap.Load()
		above := bitmap & (^uint32(0) << uint(want))
		if above != 0 {
			return bits.FFS32(above), true
		}
	}

	if a.hasOversize() {
		return oversizeList, true
	}
	return 0, false
}

// Allocate returns a pointer to an aligned block of at least size bytes,
// or (nil, false) on exhaustion. The caller must remember the aligned
// size it actually used, since Free on this variant takes size as an
// explicit argument rather than recovering it from a header.
func (a *Allocator) Allocate(size int) (unsafe.Pointer, bool) {
	if size <= 0 {
		return nil, false
	}

	aligned := bits.AlignUp(size, Alignment)
	if aligned < MinBlockSize {
		aligned = MinBlockSize
	}
	reserve := aligned + debugmargin.Size

	for {
		idx, ok := a.findClass(reserve)
		if !ok {
			return nil, false
		}

		offset, popped := a.popHead(idx)
		if !popped {
			// Another worker raced us to the last block in this class;
			// the bitmap may now point elsewhere. Retry the search.
			continue
		}

		h := headerAt(a.blockAt(offset))
		blockSize := h.size()
		wasLast := h.isLast()

		if blockSize < reserve {
			// Oversize-list removal only ever takes the head, so a
			// request can pop a block too small to serve. Publish it
			// back and report exhaustion for this request rather than
			// spinning indefinitely against a list that cannot grow on
			// its own.
			a.insertBlock(offset, blockSize, wasLast)
			return nil, false
		}

		if remainder := blockSize - reserve; remainder >= MinBlockSize {
			h.setSize(reserve)
			if wasLast {
				h.clearLast()
			}
			a.insertBlock(offset+uint32(reserve), remainder, wasLast)
		}

		h.markUsed()
		a.lastInternalWaste = h.size() - debugmargin.Size - size
		a.allocatedBytes += h.size() - debugmargin.Size
		a.allocationCount++
		if debugmargin.Size > 0 {
			debugmargin.WriteMagicValue(a.blockAt(offset), h.size()-debugmargin.Size)
		}
		return a.blockAt(offset), true
	}
}

// Free returns the size-byte block at ptr to the pool. size must be the
// same aligned size the corresponding Allocate call used; this variant
// stores no header on used blocks, so it has no other way to recover it.
func (a *Allocator) Free(ptr unsafe.Pointer, size int) {
	if ptr == nil || size <= 0 {
		return
	}
	if debugmargin.Size > 0 {
		aligned := bits.AlignUp(size, Alignment)
		if aligned < MinBlockSize {
			aligned = MinBlockSize
		}
		if !debugmargin.ValidateMagicValue(ptr, aligned) {
			panic("pagetlsf: corruption detected past end of allocation")
		}
	}
	a.allocationCount--
	a.free(ptr, size+debugmargin.Size)
}

// FreeRange marks [start, start+size) as a single fresh free block. It is
// used by the reconstruction driver to register inter-object gaps that
// were never previously tracked by this allocator at all, and is
// otherwise identical to Free. Partial-range-aware handling of a gap that
// straddles an already-tracked block is not implemented here — see
// DESIGN.md.
func (a *Allocator) FreeRange(start unsafe.Pointer, size int) {
	if start == nil || size < MinBlockSize {
		return
	}
	a.free(start, size)
}

func (a *Allocator) free(ptr unsafe.Pointer, size int) {
	offset := bits.ToOffset(uintptr(a.base), uintptr(ptr))
	if offset == bits.Null || int(offset) >= a.size {
		return
	}

	aligned := bits.AlignUp(size, Alignment)
	if aligned < MinBlockSize {
		aligned = MinBlockSize
	}

	isLast := int(offset)+aligned == a.size
	a.allocatedBytes -= aligned
	a.insertBlock(offset, aligned, isLast)
}

// Aggregate performs the only coalescing pass this variant has: it drains
// every size class, sorts the resulting free blocks by address, merges
// any that are physically adjacent, and republishes the merged set. It
// must not run concurrently with Allocate or Free — callers quiesce
// relocation workers before invoking it between GC phases.
func (a *Allocator) Aggregate() {
	a.aggregateMu.Lock()
	defer a.aggregateMu.Unlock()

	type freeBlock struct {
		offset uint32
		size   int
		isLast bool
	}

	var free []freeBlock
	for idx := 0; idx < numLists; idx++ {
		for {
			offset, ok := a.popHead(idx)
			if !ok {
				break
			}
			h := headerAt(a.blockAt(offset))
			free = append(free, freeBlock{offset: offset, size: h.size(), isLast: h.isLast()})
		}
	}

	sort.Slice(free, func(i, j int) bool { return free[i].offset < free[j].offset })

	merged := free[:0]
	for _, b := range free {
		if n := len(merged); n > 0 && merged[n-1].offset+uint32(merged[n-1].size) == b.offset {
			merged[n-1].size += b.size
			merged[n-1].isLast = b.isLast
		} else {
			merged = append(merged, b)
		}
	}

	for _, b := range merged {
		a.insertBlock(b.offset, b.size, b.isLast)
	}
}

// Reset returns the allocator to an entirely-used state without
// reallocating any metadata, ready to be refilled by FreeRange.
func (a *Allocator) Reset() {
	a.aggregateMu.Lock()
	defer a.aggregateMu.Unlock()

	a.flBitmap.Store(0)
	for i := range a.lists {
		a.lists[i].Store(uint64(bits.PackOffsets(bits.Null, 0)))
	}
	a.allocatedBytes = 0
	a.allocationCount = 0
	a.lastInternalWaste = 0
}

// InternalFragmentation reports the ratio of rounding/splitting waste
// from the most recent Allocate call to allocatedBytes: the bytes handed
// out by Allocate minus the bytes returned through Free or FreeRange.
func (a *Allocator) InternalFragmentation() float64 {
	if a.allocatedBytes == 0 {
		return 0
	}
	return float64(a.lastInternalWaste) / float64(a.allocatedBytes)
}

// SumFreeSize walks every size class and totals the free bytes found,
// draining and republishing each list. Intended for tests and
// diagnostics, not the hot path.
func (a *Allocator) SumFreeSize() int {
	a.aggregateMu.Lock()
	defer a.aggregateMu.Unlock()

	total := 0
	type freeBlock struct {
		offset uint32
		size   int
		isLast bool
	}
	var free []freeBlock
	for idx := 0; idx < numLists; idx++ {
		for {
			offset, ok := a.popHead(idx)
			if !ok {
				break
			}
			h := headerAt(a.blockAt(offset))
			total += h.size()
			free = append(free, freeBlock{offset: offset, size: h.size(), isLast: h.isLast()})
		}
	}
	for _, b := range free {
		a.insertBlock(b.offset, b.size, b.isLast)
	}
	return total
}

// AddStatistics folds this allocator's occupancy into s, the pagetlsf
// counterpart to tlsf.Allocator's AddStatistics.
func (a *Allocator) AddStatistics(s *stats.Statistics) {
	s.BlockCount++
	s.AllocationCount += a.allocationCount
	s.BlockBytes += a.size
	s.AllocationBytes += a.size - a.SumFreeSize()
}

// WriteDebugJSON emits a per-size-class free occupancy dump. Used-block
// accounting cannot be reported here, since this variant carries no
// header for used blocks to introspect.
func (a *Allocator) WriteDebugJSON(w *jwriter.Writer) {
	obj := w.Object()
	defer obj.End()

	obj.Name("PoolBytes").Int(a.size)
	obj.Name("AllocatedBytes").Int(a.allocatedBytes)

	classes := obj.Name("FreeClasses").Array()
	for idx := 0; idx < numLists; idx++ {
		count := 0
		bytes := 0
		offset := bits.PackedOffsets(a.lists[idx].Load()).Lower()
		for offset != bits.Null {
			h := headerAt(a.blockAt(offset))
			count++
			bytes += h.size()
			offset = h.next()
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
