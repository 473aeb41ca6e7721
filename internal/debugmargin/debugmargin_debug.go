//go:build zgcdebug

package debugmargin

import "unsafe"

// Size is the number of extra bytes reserved past every allocation for
// the magic-value margin, grounded on the checked-build margin used by
// _examples/vkngwrapper-arsenal/memory/internal/utils/validate_debug.go.
// It must be a multiple of 4.
const Size = 16

const magicValue uint32 = 0x7F84E666

// WriteMagicValue stamps Size bytes of the corruption-detection pattern
// starting at offset bytes into data.
func WriteMagicValue(data unsafe.Pointer, offset int) {
	dest := unsafe.Add(data, offset)
	for i := 0; i < Size/4; i++ {
		*(*uint32)(dest) = magicValue
		dest = unsafe.Add(dest, 4)
	}
}

// ValidateMagicValue reports whether the margin written by WriteMagicValue
// at the same offset is still intact.
func ValidateMagicValue(data unsafe.Pointer, offset int) bool {
	src := unsafe.Add(data, offset)
	for i := 0; i < Size/4; i++ {
		if *(*uint32)(src) != magicValue {
			return false
		}
		src = unsafe.Add(src, 4)
	}
	return true
}
