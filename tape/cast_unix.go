//go:build !windows

package tape

import "unsafe"

// castBytes reinterprets a byte mapping as a uint64 slice. The mapping is
// always allocated 8-byte aligned by mmap, and cells are always accessed
// through this single view, so aliasing is safe.
func castBytes(b []byte) []uint64 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(&b[0])), len(b)/8)
}
