package bits

import "testing"

func TestFFS(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		x    uint64
		want int
	}{
		{"1", 1, 0},
		{"2", 2, 1},
		{"12", 0b1100, 2},
		{"1<<40", 1 << 40, 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FFS(tt.x); got != tt.want {
				t.Errorf("FFS(%d) = %v, want %v", tt.x, got, tt.want)
			}
		})
	}
}

func TestFLS(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		x    uint64
		want int
	}{
		{"1", 1, 1},
		{"2", 2, 2},
		{"3", 3, 2},
		{"1023", 1023, 10},
		{"1024", 1024, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FLS(tt.x); got != tt.want {
				t.Errorf("FLS(%d) = %v, want %v", tt.x, got, tt.want)
			}
		})
	}
}

func TestILog2(t *testing.T) {
	t.Parallel()
	tests := []struct {
		x    uint64
		want int
	}{
		{1, 0},
		{2, 1},
		{3, 1},
		{4, 2},
		{1023, 9},
		{1024, 10},
	}
	for _, tt := range tests {
		if got := ILog2(tt.x); got != tt.want {
			t.Errorf("ILog2(%d) = %v, want %v", tt.x, got, tt.want)
		}
	}
}

func TestAlignUpDown(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		n, a int
		up   int
		down int
	}{
		{"0/16", 0, 16, 0, 0},
		{"1/16", 1, 16, 16, 0},
		{"15/16", 15, 16, 16, 0},
		{"16/16", 16, 16, 16, 16},
		{"17/16", 17, 16, 32, 16},
		{"100/8", 100, 8, 104, 96},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AlignUp(tt.n, tt.a); got != tt.up {
				t.Errorf("AlignUp(%d, %d) = %v, want %v", tt.n, tt.a, got, tt.up)
			}
			if got := AlignDown(tt.n, tt.a); got != tt.down {
				t.Errorf("AlignDown(%d, %d) = %v, want %v", tt.n, tt.a, got, tt.down)
			}
		})
	}
}

func TestCheckPow2(t *testing.T) {
	t.Parallel()
	for _, n := range []int{1, 2, 4, 1024, 1 << 20} {
		if err := CheckPow2(n, "size"); err != nil {
			t.Errorf("CheckPow2(%d) = %v, want nil", n, err)
		}
	}
	for _, n := range []int{0, -1, 3, 5, 100} {
		if err := CheckPow2(n, "size"); err == nil {
			t.Errorf("CheckPow2(%d) = nil, want error", n)
		}
	}
}

func TestPackedOffsets(t *testing.T) {
	t.Parallel()
	p := PackOffsets(0x1234, 0x5678)
	if p.Lower() != 0x1234 {
		t.Errorf("Lower() = %x, want %x", p.Lower(), 0x1234)
	}
	if p.Upper() != 0x5678 {
		t.Errorf("Upper() = %x, want %x", p.Upper(), 0x5678)
	}

	p2 := p.WithLower(0xAAAA)
	if p2.Lower() != 0xAAAA || p2.Upper() != 0x5678 {
		t.Errorf("WithLower altered the wrong half: %x/%x", p2.Lower(), p2.Upper())
	}

	p3 := p.WithUpper(0xBBBB)
	if p3.Upper() != 0xBBBB || p3.Lower() != 0x1234 {
		t.Errorf("WithUpper altered the wrong half: %x/%x", p3.Lower(), p3.Upper())
	}
}

func TestFromOffsetToOffset(t *testing.T) {
	t.Parallel()
	const base uintptr = 0x1000

	if _, ok := FromOffset(base, Null); ok {
		t.Error("FromOffset(base, Null) should not resolve")
	}

	addr, ok := FromOffset(base, 0x40)
	if !ok || addr != base+0x40 {
		t.Errorf("FromOffset(base, 0x40) = (%x, %v), want (%x, true)", addr, ok, base+0x40)
	}

	if got := ToOffset(base, 0); got != Null {
		t.Errorf("ToOffset(base, 0) = %x, want Null", got)
	}
	if got := ToOffset(base, base+0x40); got != 0x40 {
		t.Errorf("ToOffset(base, base+0x40) = %x, want 0x40", got)
	}
}
