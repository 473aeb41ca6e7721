package tlsf

import "github.com/niclasgardsuu/zgc-primax/bits"

// mapping computes the exact (fl, sl) size class a block of the given
// size belongs to: fl = ilog2(s), sl = (s >> (fl-SLI)) XOR (1 << SLI).
// This is used when inserting/removing a specific block, so
// it must be the inverse of however that block was sized, not a
// worst-case rounding.
func mapping(size int) (fl, sl int) {
	fl = bits.ILog2(uint64(size))
	sl = int(uint64(size)>>uint(fl-SecondLevelIndexLog2)) ^ (1 << SecondLevelIndexLog2)
	return fl, sl
}

// roundedMapping computes the size class to search from when looking for
// a block that can satisfy a request of the given (already
// aligned/minimum-enforced) size. Rounding up within the class guarantees
// that any block found in the resulting class is large enough, so the
// caller never needs to inspect more than the list head.
func roundedMapping(size int) (fl, sl int) {
	fl0 := bits.ILog2(uint64(size))
	if fl0 >= SecondLevelIndexLog2 {
		size += (1 << uint(fl0-SecondLevelIndexLog2)) - 1
	}
	return mapping(size)
}

// listIndex flattens a two-level (fl, sl) index into a single slice
// index into Allocator.lists.
func listIndex(fl, sl int) int {
	return fl*SecondLevelIndex + sl
}

// classIndex returns the list index a block of the given exact size would
// be stored under, including the oversize fallback.
func classIndex(size int) int {
	fl, sl := mapping(size)
	if fl >= FirstLevelIndex {
		return oversizeList
	}
	return listIndex(fl, sl)
}
