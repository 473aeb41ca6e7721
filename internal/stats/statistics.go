// Package stats provides the allocation statistics structures shared by
// the tlsf and pagetlsf allocators, grounded on memutils's own
// Statistics/DetailedStatistics pair.
package stats

import "math"

// Statistics is a coarse summary of one allocator's occupancy.
type Statistics struct {
	BlockCount      int
	AllocationCount int
	BlockBytes      int
	AllocationBytes int
}

// Clear resets all counters to zero.
func (s *Statistics) Clear() {
	*s = Statistics{}
}

// Add sums other into s.
func (s *Statistics) Add(other *Statistics) {
	s.BlockCount += other.BlockCount
	s.AllocationCount += other.AllocationCount
	s.BlockBytes += other.BlockBytes
	s.AllocationBytes += other.AllocationBytes
}

// DetailedStatistics additionally tracks the distribution of free-region
// and allocation sizes, used by diagnostic dumps.
type DetailedStatistics struct {
	Statistics
	UnusedRangeCount   int
	AllocationSizeMin  int
	AllocationSizeMax  int
	UnusedRangeSizeMin int
	UnusedRangeSizeMax int
}

// Clear resets all counters, including the min/max watermarks.
func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.UnusedRangeCount = 0
	s.AllocationSizeMin = math.MaxInt
	s.AllocationSizeMax = 0
	s.UnusedRangeSizeMin = math.MaxInt
	s.UnusedRangeSizeMax = 0
}

// AddUnusedRange folds one free region's size into the watermarks.
func (s *DetailedStatistics) AddUnusedRange(size int) {
	s.UnusedRangeCount++
	if size < s.UnusedRangeSizeMin {
		s.UnusedRangeSizeMin = size
	}
	if size > s.UnusedRangeSizeMax {
		s.UnusedRangeSizeMax = size
	}
}

// AddAllocation folds one allocation's size into the watermarks.
func (s *DetailedStatistics) AddAllocation(size int) {
	s.AllocationCount++
	s.AllocationBytes += size
	if size < s.AllocationSizeMin {
		s.AllocationSizeMin = size
	}
	if size > s.AllocationSizeMax {
		s.AllocationSizeMax = size
	}
}
