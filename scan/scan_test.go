package scan_test

import (
	"testing"

	"github.com/mkot2/goof2/scan"
	"github.com/mkot2/goof2/tape"
)

func mkcells(vals ...uint64) []uint64 { return vals }

func TestForwardStride1(t *testing.T) {
	cells := mkcells(1, 1, 1, 0, 1, 1)
	if got := scan.Forward(cells, tape.Width8, 0, len(cells), 1); got != 3 {
		t.Fatalf("want 3, got %d", got)
	}
}

func TestForwardNotFound(t *testing.T) {
	cells := mkcells(1, 1, 1, 1)
	if got := scan.Forward(cells, tape.Width8, 0, len(cells), 1); got != -1 {
		t.Fatalf("want -1, got %d", got)
	}
}

func TestBackwardStride1(t *testing.T) {
	cells := mkcells(1, 0, 1, 1, 1, 1)
	if got := scan.Backward(cells, tape.Width8, 5, 0, 1); got != 1 {
		t.Fatalf("want 1, got %d", got)
	}
}

func TestForwardStride2(t *testing.T) {
	// zeros at even indices only land on the stride-2 path starting at 0.
	cells := mkcells(1, 1, 1, 1, 0, 1, 1, 1)
	if got := scan.Forward(cells, tape.Width8, 0, len(cells), 2); got != 4 {
		t.Fatalf("want 4, got %d", got)
	}
}

func TestBackwardStride2(t *testing.T) {
	// The stride-2 path from 7 visits 7, 5, 3, 1, all non-zero; the zeros at
	// 0 and 6 are off that path and must be skipped.
	cells := mkcells(0, 1, 1, 1, 1, 1, 0, 1)
	if got := scan.Backward(cells, tape.Width8, 7, 0, 2); got != -1 {
		t.Fatalf("want -1, got %d", got)
	}
}

func TestForwardNonPowerOfTwoStride(t *testing.T) {
	cells := make([]uint64, 20)
	for i := range cells {
		cells[i] = 1
	}
	cells[9] = 0
	if got := scan.Forward(cells, tape.Width8, 0, len(cells), 3); got != 9 {
		t.Fatalf("want 9, got %d", got)
	}
}

func TestForwardLargeBuffer(t *testing.T) {
	cells := make([]uint64, 100)
	for i := range cells {
		cells[i] = 1
	}
	cells[47] = 0
	if got := scan.Forward(cells, tape.Width8, 0, len(cells), 1); got != 47 {
		t.Fatalf("want 47, got %d", got)
	}
}

func TestBackwardLargeBuffer(t *testing.T) {
	cells := make([]uint64, 100)
	for i := range cells {
		cells[i] = 1
	}
	cells[63] = 0
	if got := scan.Backward(cells, tape.Width8, 99, 0, 1); got != 63 {
		t.Fatalf("want 63, got %d", got)
	}
}

func TestClearForwardZeroesVisitedCells(t *testing.T) {
	cells := mkcells(5, 7, 9, 0, 2)
	got := scan.ClearForward(cells, tape.Width8, 0, len(cells), 1)
	if got != 3 {
		t.Fatalf("want 3, got %d", got)
	}
	for i := 0; i < 3; i++ {
		if cells[i] != 0 {
			t.Fatalf("cell %d not cleared: %d", i, cells[i])
		}
	}
	if cells[4] != 2 {
		t.Fatalf("cell beyond the stop should be untouched, got %d", cells[4])
	}
}

func TestClearBackwardZeroesVisitedCells(t *testing.T) {
	cells := mkcells(2, 0, 9, 7, 5)
	got := scan.ClearBackward(cells, tape.Width8, 4, 0, 1)
	if got != 1 {
		t.Fatalf("want 1, got %d", got)
	}
	for i := 2; i <= 4; i++ {
		if cells[i] != 0 {
			t.Fatalf("cell %d not cleared: %d", i, cells[i])
		}
	}
	if cells[0] != 2 {
		t.Fatalf("cell before the stop should be untouched, got %d", cells[0])
	}
}

func TestForwardStrideAgreesWithScalarAcrossSizes(t *testing.T) {
	for _, n := range []int{1, 7, 8, 9, 16, 17, 32, 33, 64, 65, 130} {
		for _, stride := range []int{1, 2, 3, 4, 5, 8} {
			cells := make([]uint64, n)
			for i := range cells {
				cells[i] = 1
			}
			zeroAt := n / 2
			// Snap to a reachable index on this stride so there's a hit to find.
			zeroAt -= zeroAt % stride
			cells[zeroAt] = 0

			fast := scan.Forward(cells, tape.Width8, 0, n, stride)

			var want int = -1
			for i := 0; i < n; i += stride {
				if cells[i] == 0 {
					want = i
					break
				}
			}
			if fast != want {
				t.Fatalf("n=%d stride=%d: want %d, got %d", n, stride, want, fast)
			}
		}
	}
}

func TestForwardStrideAgreesWithScalarAcrossCellWidths(t *testing.T) {
	widths := []tape.Width{tape.Width8, tape.Width16, tape.Width32, tape.Width64}
	for _, width := range widths {
		for _, n := range []int{1, 7, 8, 9, 16, 17, 32, 33, 64, 65, 130} {
			for _, stride := range []int{1, 2, 4, 8} {
				cells := make([]uint64, n)
				for i := range cells {
					cells[i] = 1
				}
				zeroAt := n / 2
				zeroAt -= zeroAt % stride
				cells[zeroAt] = 0

				fast := scan.Forward(cells, width, 0, n, stride)

				want := -1
				for i := 0; i < n; i += stride {
					if cells[i] == 0 {
						want = i
						break
					}
				}
				if fast != want {
					t.Fatalf("width=%d n=%d stride=%d: want %d, got %d", width, n, stride, want, fast)
				}
			}
		}
	}
}

// TestZeroBitmaskPackingHonorsCellWidth pins the word-packing chunk size
// itself: a word holding, say, eight 8-bit lanes must not mistake a non-zero
// 16-bit (or wider) cell for zero just because its low byte happens to be
// zero, which a byte-granularity pack would miss.
func TestZeroBitmaskPackingHonorsCellWidth(t *testing.T) {
	cells := mkcells(0x100, 0x100, 0x100, 0x100)
	if got := scan.Forward(cells, tape.Width16, 0, len(cells), 1); got != -1 {
		t.Fatalf("want -1 (no 16-bit-wide zero cell, even though every low byte is zero), got %d", got)
	}
	cells[2] = 0
	if got := scan.Forward(cells, tape.Width16, 0, len(cells), 1); got != 2 {
		t.Fatalf("want 2, got %d", got)
	}
}

func TestBackwardStrideAgreesWithScalarAcrossSizes(t *testing.T) {
	for _, n := range []int{1, 7, 8, 9, 16, 17, 32, 33, 64, 65, 130} {
		for _, stride := range []int{1, 2, 3, 4, 5, 8} {
			cells := make([]uint64, n)
			for i := range cells {
				cells[i] = 1
			}
			from := n - 1
			from -= (from) % stride
			zeroAt := from / 2
			zeroAt -= (from - zeroAt) % stride
			if zeroAt < 0 {
				zeroAt = from
			}
			cells[zeroAt] = 0

			fast := scan.Backward(cells, tape.Width8, from, 0, stride)

			want := -1
			for i := from; i >= 0; i -= stride {
				if cells[i] == 0 {
					want = i
					break
				}
			}
			if fast != want {
				t.Fatalf("n=%d stride=%d from=%d: want %d, got %d", n, stride, from, want, fast)
			}
		}
	}
}
