// Package bits provides the bit-twiddling primitives shared by the tlsf
// and pagetlsf allocators: find-first/last-set, integer log2, alignment,
// and the half-word offset packing used by the page-optimized allocator's
// offset-relative (rather than pointer-relative) free-list linkage.
package bits

import (
	"math/bits"

	cerrors "github.com/cockroachdb/errors"
)

// Null is the sentinel value representing "no offset" when packed into a
// 32-bit half-word slot. A page is assumed to be well under 4GiB, so a
// real offset never collides with it.
const Null uint32 = 0xFFFFFFFF

// FFS returns the index of the lowest set bit in x. x must be non-zero;
// the result is undefined otherwise.
func FFS(x uint64) int {
	return bits.TrailingZeros64(x)
}

// FFS32 is the uint32 form of FFS, used against the single-word bitmaps.
func FFS32(x uint32) int {
	return bits.TrailingZeros32(x)
}

// FLS returns one plus the index of the highest set bit in x. x must be
// non-zero; the result is undefined otherwise.
func FLS(x uint64) int {
	return 64 - bits.LeadingZeros64(x)
}

// ILog2 returns the integer log2 of x, i.e. FLS(x)-1. x must be non-zero.
func ILog2(x uint64) int {
	return FLS(x) - 1
}

// AlignUp rounds n up to the nearest multiple of the power-of-two a.
func AlignUp(n int, a int) int {
	return (n + a - 1) &^ (a - 1)
}

// AlignDown rounds n down to the nearest multiple of the power-of-two a.
func AlignDown(n int, a int) int {
	return n &^ (a - 1)
}

// CheckPow2 returns an error if n is not a positive power of two.
func CheckPow2(n int, name string) error {
	if n <= 0 || n&(n-1) != 0 {
		return cerrors.Newf("%s must be a power of two, got %d", name, n)
	}
	return nil
}

// PackedOffsets is a 64-bit word holding two independent 32-bit
// base-relative offsets: a "lower" half and an "upper" half. The
// page-optimized allocator overlays this onto the 8 bytes that follow a
// free block's size word to store next/prev free-list links, and onto the atomic
// size-class head slot to store a (version, offset) pair.
type PackedOffsets uint64

// Lower returns the low 32 bits.
func (p PackedOffsets) Lower() uint32 { return uint32(p) }

// Upper returns the high 32 bits.
func (p PackedOffsets) Upper() uint32 { return uint32(p >> 32) }

// PackOffsets combines a lower and upper half-word into one packed word.
func PackOffsets(lower, upper uint32) PackedOffsets {
	return PackedOffsets(uint64(upper)<<32 | uint64(lower))
}

// WithLower returns a copy of p with its lower half replaced, leaving the
// upper half intact.
func (p PackedOffsets) WithLower(lower uint32) PackedOffsets {
	return PackOffsets(lower, p.Upper())
}

// WithUpper returns a copy of p with its upper half replaced, leaving the
// lower half intact.
func (p PackedOffsets) WithUpper(upper uint32) PackedOffsets {
	return PackOffsets(p.Lower(), upper)
}

// FromOffset resolves a half-word offset relative to base. It returns
// (0, false) if offset is the Null sentinel.
func FromOffset(base uintptr, offset uint32) (addr uintptr, ok bool) {
	if offset == Null {
		return 0, false
	}
	return base + uintptr(offset), true
}

// ToOffset converts an address back to a base-relative offset. It returns
// Null if addr is the zero value (treated as "no address").
func ToOffset(base, addr uintptr) uint32 {
	if addr == 0 {
		return Null
	}
	return uint32(addr - base)
}
