package jit

import "unsafe"

// unsafeSliceAddr returns the address of a byte slice's backing array.
// Isolated in its own tiny function so the one unsafe.Pointer conversion
// the JIT needs (turning a code-buffer offset into something the host
// CPU can jump to) is easy to audit.
func unsafeSliceAddr(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
