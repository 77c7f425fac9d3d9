package scan

// maxChunk is the largest lane count the word-packed path ever uses.
const maxChunk = 32

// fastStrides are the strides realized with full stride-mask tables: the
// "fast paths" of spec.md §4.5. Any other stride uses the scalar loop.
var fastStrides = [...]int{1, 2, 4, 8}

// strideMasks[lanes][stride][phase] is a bitmask over a chunk of `lanes`
// cells with bit i set iff (i+phase) mod stride == 0 — the algebraic
// definition of spec.md §4.5, computed once at package init.
var strideMasks = buildStrideMasks()

func buildStrideMasks() map[int]map[int][]uint32 {
	lanesSet := []int{1, 2, 4, 8, 16, 32}
	out := make(map[int]map[int][]uint32, len(lanesSet))
	for _, lanes := range lanesSet {
		byStride := make(map[int][]uint32, len(fastStrides))
		for _, stride := range fastStrides {
			phases := make([]uint32, stride)
			for phase := 0; phase < stride; phase++ {
				var m uint32
				for i := 0; i < lanes; i++ {
					if (i+phase)%stride == 0 {
						m |= 1 << uint(i)
					}
				}
				phases[phase] = m
			}
			byStride[stride] = phases
		}
		out[lanes] = byStride
	}
	return out
}

// strideMask returns the precomputed mask for the given chunk size, stride
// and phase, and whether a fast-path table exists for that stride.
func strideMask(lanes, stride, phase int) (uint32, bool) {
	byStride, ok := strideMasks[lanes]
	if !ok {
		return 0, false
	}
	phases, ok := byStride[stride]
	if !ok {
		return 0, false
	}
	return phases[((phase%stride)+stride)%stride], true
}

func isFastStride(stride int) bool {
	for _, s := range fastStrides {
		if s == stride {
			return true
		}
	}
	return false
}
