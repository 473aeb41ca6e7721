package tlsf

import "github.com/pkg/errors"

// ErrBufferTooSmall is returned by New when the supplied buffer cannot
// hold even a single minimum-sized block.
var ErrBufferTooSmall = errors.New("tlsf: buffer too small for minimum block size")

// ErrMisaligned is returned by New when the supplied buffer's start
// address does not meet the allocator's alignment requirement.
var ErrMisaligned = errors.New("tlsf: buffer is not 8-byte aligned")
