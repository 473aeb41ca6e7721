package stats

import "testing"

func TestDetailedStatisticsClearResetsWatermarks(t *testing.T) {
	var s DetailedStatistics
	s.Clear()

	s.AddAllocation(100)
	s.AddAllocation(50)
	s.AddUnusedRange(10)
	s.AddUnusedRange(40)

	if s.AllocationSizeMin != 50 || s.AllocationSizeMax != 100 {
		t.Fatalf("allocation watermarks = [%d,%d], want [50,100]", s.AllocationSizeMin, s.AllocationSizeMax)
	}
	if s.UnusedRangeSizeMin != 10 || s.UnusedRangeSizeMax != 40 {
		t.Fatalf("unused range watermarks = [%d,%d], want [10,40]", s.UnusedRangeSizeMin, s.UnusedRangeSizeMax)
	}

	s.Clear()
	if s.AllocationCount != 0 || s.UnusedRangeCount != 0 {
		t.Fatalf("expected counts to reset to zero")
	}
}

func TestStatisticsAdd(t *testing.T) {
	a := Statistics{BlockCount: 1, AllocationCount: 2, BlockBytes: 100, AllocationBytes: 80}
	b := Statistics{BlockCount: 1, AllocationCount: 3, BlockBytes: 200, AllocationBytes: 150}

	a.Add(&b)

	if a.BlockCount != 2 || a.AllocationCount != 5 || a.BlockBytes != 300 || a.AllocationBytes != 230 {
		t.Fatalf("unexpected summed statistics: %+v", a)
	}
}
