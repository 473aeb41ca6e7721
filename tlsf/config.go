package tlsf

// Compile-time configuration for the base TLSF allocator (component C of
// the allocator family). These mirror the BaseConfig/JSMallocBase
// constants (_examples/original_source/JSMalloc.hpp).
const (
	// FirstLevelIndex is the number of first-level (fl) size buckets.
	FirstLevelIndex = 32
	// SecondLevelIndexLog2 is log2 of the number of second-level (sl)
	// buckets per first-level bucket.
	SecondLevelIndexLog2 = 5
	// SecondLevelIndex is the number of second-level buckets per
	// first-level bucket.
	SecondLevelIndex = 1 << SecondLevelIndexLog2

	// MinBlockSize is the smallest payload size a block may have. It must
	// be large enough to hold the free-list linkage that is overlaid onto
	// a free block's payload.
	MinBlockSize = 32

	// Alignment is the byte alignment guaranteed for every returned
	// allocation and maintained for every block boundary.
	Alignment = 8

	// numLists is the flattened size of the (fl, sl) list matrix, plus one
	// slot at the end for the oversize list.
	numLists = FirstLevelIndex*SecondLevelIndex + 1
	oversizeList = numLists - 1
)
