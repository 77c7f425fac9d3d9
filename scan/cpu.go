package scan

import (
	"github.com/klauspost/cpuid/v2"
	"github.com/mkot2/goof2/tape"
)

// vectorBits returns the nominal SIMD register width, in bits, for the
// widest integer-compare-capable feature set this CPU supports. It is the
// only call site of cpuid in the repo: detection gates how many cells the
// word-packed path below treats as one chunk, never correctness.
func vectorBits() int {
	switch {
	case cpuid.CPU.Supports(cpuid.AVX512F):
		return 512
	case cpuid.CPU.Supports(cpuid.AVX2):
		return 256
	case cpuid.CPU.Supports(cpuid.SSE2):
		return 128
	default:
		return 64
	}
}

// lanesForPath returns how many cells of the given width the word-packed
// fast path processes per chunk: the detected vector register width
// divided by the cell width, capped at maxChunk. A wider detected register
// directly means more packed-word has-zero-lane tests retire per chunk, so
// this selection changes real work done, not just a tuning knob around an
// otherwise-identical scalar loop.
func lanesForPath(width tape.Width) int {
	w := int(width)
	if w <= 0 {
		w = 8
	}
	lanes := vectorBits() / w
	if lanes < 1 {
		lanes = 1
	}
	if lanes > maxChunk {
		lanes = maxChunk
	}
	return lanes
}
