package pagetlsf

import "github.com/niclasgardsuu/zgc-primax/bits"

// fl computes the first-level index of a block size. There is no second
// level in this variant (UseSecondLevels=false), so this alone determines
// a block's size class.
func fl(size int) int {
	return bits.ILog2(uint64(size))
}

// listIndex flattens a first-level index into this allocator's lists
// array, folding anything below the smallest real class into it and
// anything at or above FirstLevelIndex into the oversize list.
func listIndex(level int) int {
	if level < minAllocLog2 {
		level = minAllocLog2
	}
	idx := level - minAllocLog2
	if idx >= oversizeList {
		return oversizeList
	}
	return idx
}

// classIndex returns the list index a block of the given exact size
// belongs to.
func classIndex(size int) int {
	return listIndex(fl(size))
}
