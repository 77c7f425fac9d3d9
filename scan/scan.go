// Package scan implements the zero-scan kernels backing SCN_RGT, SCN_LFT,
// SCN_CLR_RGT and SCN_CLR_LFT: a stride-aware nearest-zero search over the
// tape's cell buffer.
//
// Pure Go has no portable SIMD intrinsics without assembly, so the "SIMD
// realization" here is the classic SWAR substitute: packWidth(width) cells
// are packed into a single 64-bit machine word (8-per-word for 8-bit
// cells, 4-per-word for 16-bit, and so on down to one bare cell per word at
// 64-bit), and the whole word is tested for zero lanes with one
// AND/add/OR/NOT sequence instead of a branch per cell — the generalization of the
// textbook "does this word have a zero byte" trick to arbitrary lane
// widths. The packed-word mask is then intersected with a precomputed
// stride mask and the first surviving lane located with math/bits. The
// scalar loop below is always correct and is the only path for strides
// that aren't 1, 2, 4 or 8.
package scan

import (
	"math/bits"

	"github.com/mkot2/goof2/tape"
)

// baseLanes is the chunk size used before any CPU-feature scaling.
const baseLanes = 8

// cpuPath returns the chunk size to use for the word-packed fast path on
// this CPU, for the given stride and cell width. Returns 0 if the scalar
// fallback should be used instead (a stride other than 1, 2, 4 or 8); a
// detected chunk smaller than the stride is widened to the stride.
func cpuPath(stride int, width tape.Width) int {
	if !isFastStride(stride) {
		return 0
	}
	lanes := lanesForPath(width)
	if lanes < stride {
		return stride
	}
	return lanes
}

// Forward returns the smallest index i >= from, i < limit, with i-from a
// multiple of stride, such that cells[i] == 0. Returns -1 if none is found
// before limit, in which case the caller must grow the tape and retry.
func Forward(cells []uint64, width tape.Width, from, limit, stride int) int {
	if stride <= 0 {
		stride = 1
	}
	lanes := cpuPath(stride, width)
	if lanes == 0 {
		return scanForwardScalar(cells, from, limit, stride)
	}
	return scanForwardFast(cells, from, limit, stride, lanes, width)
}

// Backward returns the largest index i <= from, i >= limit, with from-i a
// multiple of stride, such that cells[i] == 0. Returns -1 if none is found
// at or above limit.
func Backward(cells []uint64, width tape.Width, from, limit, stride int) int {
	if stride <= 0 {
		stride = 1
	}
	lanes := cpuPath(stride, width)
	if lanes == 0 {
		return scanBackwardScalar(cells, from, limit, stride)
	}
	return scanBackwardFast(cells, from, limit, stride, lanes, width)
}

// ClearForward behaves like Forward but zeroes every non-zero cell visited
// along the way (not the terminating zero cell itself, which is already
// zero). Backs SCN_CLR_RGT.
func ClearForward(cells []uint64, width tape.Width, from, limit, stride int) int {
	if stride <= 0 {
		stride = 1
	}
	i := from
	for ; i < limit; i += stride {
		if cells[i] == 0 {
			return i
		}
		cells[i] = 0
	}
	return -1
}

// ClearBackward is the mirror of ClearForward. Backs SCN_CLR_LFT.
func ClearBackward(cells []uint64, width tape.Width, from, limit, stride int) int {
	if stride <= 0 {
		stride = 1
	}
	i := from
	for ; i >= limit; i -= stride {
		if cells[i] == 0 {
			return i
		}
		cells[i] = 0
	}
	return -1
}

func scanForwardScalar(cells []uint64, from, limit, stride int) int {
	for i := from; i < limit; i += stride {
		if cells[i] == 0 {
			return i
		}
	}
	return -1
}

func scanBackwardScalar(cells []uint64, from, limit, stride int) int {
	for i := from; i >= limit; i -= stride {
		if cells[i] == 0 {
			return i
		}
	}
	return -1
}

// scanForwardFast walks `lanes`-cell chunks starting at from, building a
// zero bitmask per chunk and masking it by the stride/phase table before
// looking for the lowest surviving lane.
func scanForwardFast(cells []uint64, from, limit, stride, lanes int, width tape.Width) int {
	i := from
	for i < limit {
		chunk := lanes
		if i+chunk > limit {
			chunk = limit - i
		}
		mask, ok := strideMask(lanes, stride, (i-from)%stride)
		if !ok {
			break
		}
		zm := zeroBitmask(cells, i, chunk, width)
		zm &= mask
		zm &= (uint32(1) << uint(chunk)) - 1
		if zm != 0 {
			return i + bits.TrailingZeros32(zm)
		}
		i += chunk
	}
	if i >= limit {
		return -1
	}
	return scanForwardScalar(cells, i, limit, stride)
}

func scanBackwardFast(cells []uint64, from, limit, stride, lanes int, width tape.Width) int {
	i := from
	for i >= limit {
		chunk := lanes
		if i-chunk+1 < limit {
			chunk = i - limit + 1
		}
		start := i - chunk + 1
		mask, ok := strideMask(lanes, stride, (from-i)%stride)
		if !ok {
			break
		}
		zm := zeroBitmask(cells, start, chunk, width)
		// Reverse the mask so bit (chunk-1) corresponds to `start`, matching
		// the high-to-low scan direction, then hunt from the top down.
		zm &= reverseStrideForBackward(mask, lanes, chunk, from-i, stride)
		if zm != 0 {
			highest := 31 - bits.LeadingZeros32(zm)
			return start + highest
		}
		i -= chunk
	}
	if i < limit {
		return -1
	}
	return scanBackwardScalar(cells, i, limit, stride)
}

// reverseStrideForBackward rebuilds the stride mask directly in "backward
// lane order" (lane 0 == highest index in the chunk) rather than reusing the
// forward table with a reflection, since stride masks aren't generally
// palindromic.
func reverseStrideForBackward(_ uint32, lanes, chunk, phase, stride int) uint32 {
	var m uint32
	for i := 0; i < chunk; i++ {
		if (i+phase)%stride == 0 {
			m |= 1 << uint(chunk-1-i)
		}
	}
	return m
}

// packWidth returns how many cells of the given width pack into one 64-bit
// machine word for the branchless zero-lane test: 8 for an 8-bit cell, 4
// for 16-bit, 2 for 32-bit, 1 for 64-bit (a single cell already fills the
// word).
func packWidth(width tape.Width) int {
	w := int(width)
	if w <= 0 {
		w = 8
	}
	return 64 / w
}

// laneValueMask returns the bitmask for a single lane of bitsPerLane bits.
func laneValueMask(bitsPerLane uint) uint64 {
	if bitsPerLane >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << bitsPerLane) - 1
}

// laneMasks returns the "low bit of every lane" and "high bit of every
// lane" masks for bitsPerLane-wide lanes packed into a 64-bit word — the
// two constants the branchless has-zero-lane trick needs, the direct
// generalization of the textbook 0x0101010101010101 / 0x8080808080808080
// byte masks to an arbitrary lane width.
func laneMasks(bitsPerLane uint) (lo, hi uint64) {
	for k := uint(0); k < 64/bitsPerLane; k++ {
		lo |= 1 << (k * bitsPerLane)
		hi |= 1 << (k*bitsPerLane + bitsPerLane - 1)
	}
	return lo, hi
}

// hasZeroLane implements the branchless SWAR "which lanes equal zero" test,
// generalized from the classic zero-byte trick to bitsPerLane-wide lanes via
// lo/hi (see laneMasks). Adding the all-low-bits value to each lane's low
// bits carries into the lane's high bit iff those bits are non-zero, and no
// carry crosses a lane boundary, so a set bit in the result is exactly the
// high bit of a lane that is zero.
func hasZeroLane(w, lo, hi uint64) uint64 {
	low := hi - lo // every lane's bits below its high bit
	return ^(((w & low) + low) | w | low)
}

// packWord packs up to n cells starting at cells[start] into a single
// 64-bit word, bitsPerLane bits each. Lanes beyond the available cells (at
// a chunk's trailing edge) are padded with an all-ones value so they never
// look like a zero lane.
func packWord(cells []uint64, start, n int, bitsPerLane uint) uint64 {
	mask := laneValueMask(bitsPerLane)
	var w uint64
	for i := 0; i < n; i++ {
		v := mask
		if start+i < len(cells) {
			v = cells[start+i] & mask
		}
		w |= v << (uint(i) * bitsPerLane)
	}
	return w
}

// zeroBitmask builds a bitmask over cells[start:start+n] with bit i set iff
// cells[start+i] == 0, using packWidth(width) cells per 64-bit word and the
// branchless has-zero-lane test instead of comparing cell by cell.
func zeroBitmask(cells []uint64, start, n int, width tape.Width) uint32 {
	perWord := packWidth(width)
	bitsPerLane := uint(64 / perWord)
	lo, hi := laneMasks(bitsPerLane)
	var m uint32
	for base := 0; base < n; base += perWord {
		count := perWord
		if base+count > n {
			count = n - base
		}
		w := packWord(cells, start+base, count, bitsPerLane)
		zm := hasZeroLane(w, lo, hi)
		for zm != 0 {
			bitpos := bits.TrailingZeros64(zm)
			lane := bitpos / int(bitsPerLane)
			if lane < count {
				m |= 1 << uint(base+lane)
			}
			zm &^= uint64(1) << uint(bitpos)
		}
	}
	return m
}
