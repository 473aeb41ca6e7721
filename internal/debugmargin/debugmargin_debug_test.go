//go:build zgcdebug

package debugmargin

import (
	"testing"
	"unsafe"
)

func TestMagicValueRoundTrip(t *testing.T) {
	buf := make([]byte, 64)
	p := unsafe.Pointer(&buf[0])

	WriteMagicValue(p, 32)
	if !ValidateMagicValue(p, 32) {
		t.Fatalf("expected freshly written margin to validate")
	}

	buf[40] ^= 0xFF
	if ValidateMagicValue(p, 32) {
		t.Fatalf("expected corrupted margin to fail validation")
	}
}
