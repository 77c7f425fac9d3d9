// Package tape implements the VM's cell buffer: bounds checking, the four
// growth policies (Contiguous, Fibonacci, Paged, OSBacked), the Auto model
// selector, the hard allocation cap, and the sparse-tape escape hatch.
package tape

import (
	"fmt"
	"io"

	"github.com/mkot2/goof2/internal/bfi"
	"github.com/pkg/errors"
)

// Width is the cell width in bits.
type Width int

const (
	Width8  Width = 8
	Width16 Width = 16
	Width32 Width = 32
	Width64 Width = 64
)

// Mask returns the width's truncation mask.
func (w Width) Mask() uint64 {
	if w == Width64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(w)) - 1
}

// Model names a memory-growth strategy.
type Model int

const (
	Auto Model = iota
	Contiguous
	Fibonacci
	Paged
	OSBacked
)

func (m Model) String() string {
	switch m {
	case Auto:
		return "auto"
	case Contiguous:
		return "contiguous"
	case Fibonacci:
		return "fibonacci"
	case Paged:
		return "paged"
	case OSBacked:
		return "osbacked"
	default:
		return "unknown"
	}
}

// ErrOutOfBounds is returned when the cell pointer would move below zero, or
// past the end of the tape with growth disabled.
var ErrOutOfBounds = errors.New("tape: out of bounds")

// ErrAllocFailure is returned when an OSBacked reservation fails and no
// fallback is possible (the fallback to Contiguous happens transparently
// once; a second failure is surfaced as this error).
var ErrAllocFailure = errors.New("tape: allocation failure")

// ErrCapExceeded is returned when a requested tape size exceeds HardCapBytes.
var ErrCapExceeded = errors.New("tape: hard cap exceeded")

// HardCapBytes is the default build-time byte cap rejecting tape requests
// larger than this before any allocation (spec default: 2 GiB).
var HardCapBytes int64 = 2 << 30

// SparseThreshold is the span, in cells, above which Select may recommend the
// sparse representation instead of a dense buffer. Exposed as a tunable per
// the "sparse tape threshold" open question rather than hard-coded.
var SparseThreshold = 100000

// Diagnostics receives non-fatal warnings, e.g. an OSBacked fallback.
// The zero value is a no-op sink.
type Diagnostics interface {
	Warnf(format string, args ...interface{})
}

type nopDiagnostics struct{}

func (nopDiagnostics) Warnf(string, ...interface{}) {}

// Tape is the VM's addressable cell buffer.
type Tape struct {
	cells  []uint64
	sparse map[int]uint64
	p      int
	width  Width
	model  Model
	grow   bool
	cap    int64
	diag   Diagnostics
	backer backer
	hwm    int // highest index ever observed (invariant (b))

	sparseThreshold int
}

// backer abstracts the growth policy; Contiguous/Fibonacci/Paged share a plain
// slice and differ only in how much they grow by, while OSBacked additionally
// owns a raw mapping that must be released on Close.
type backer interface {
	grow(t *Tape, needed int) error
	close() error
}

// Option configures a new Tape.
type Option func(*Tape)

// WithWidth sets the cell width. Default Width8.
func WithWidth(w Width) Option { return func(t *Tape) { t.width = w } }

// WithModel forces a memory model instead of Auto-selecting one.
func WithModel(m Model) Option { return func(t *Tape) { t.model = m } }

// WithGrowth enables or disables dynamic growth (the `-dts` flag in §6).
func WithGrowth(enabled bool) Option { return func(t *Tape) { t.grow = enabled } }

// WithHardCap overrides HardCapBytes for this tape.
func WithHardCap(bytes int64) Option { return func(t *Tape) { t.cap = bytes } }

// WithSparseThreshold overrides SparseThreshold for this tape.
func WithSparseThreshold(n int) Option { return func(t *Tape) { t.sparseThreshold = n } }

// WithDiagnostics sets the warning sink.
func WithDiagnostics(d Diagnostics) Option { return func(t *Tape) { t.diag = d } }

// New creates a Tape of the given initial size (in cells), selecting a growth
// policy per span if model is Auto. span is the static pointer-excursion
// bound computed by the caller (typically the Builder); it is used only for
// Auto selection and the sparse escape hatch, never for bounds checking. The
// sparse escape hatch applies only under Auto; a model forced with WithModel
// always gets a dense buffer.
func New(size int, span int, opts ...Option) (*Tape, error) {
	t := &Tape{
		width: Width8,
		model: Auto,
		grow:  false,
		cap:   HardCapBytes,
		diag:  nopDiagnostics{},
	}
	for _, o := range opts {
		o(t)
	}
	if err := t.checkCap(size); err != nil {
		return nil, err
	}

	model := t.model
	auto := model == Auto
	if auto {
		model = Select(span, true)
	}
	t.model = model

	threshold := t.sparseThreshold
	if threshold == 0 {
		threshold = SparseThreshold
	}
	if auto && span > threshold && size < span {
		t.sparse = make(map[int]uint64)
		t.backer = &contigBacker{}
		return t, nil
	}

	switch model {
	case Fibonacci:
		t.cells = make([]uint64, size)
		t.backer = &fibBacker{prev: size}
	case Paged:
		t.cells = make([]uint64, size)
		t.backer = &pagedBacker{}
	case OSBacked:
		b, err := newOSBackedBacker(size)
		if err != nil {
			t.diag.Warnf("osbacked reservation failed, falling back to contiguous: %v", err)
			t.cells = make([]uint64, size)
			t.backer = &contigBacker{}
			t.model = Contiguous
		} else {
			t.cells = b.view(size)
			t.backer = b
		}
	default:
		t.cells = make([]uint64, size)
		t.backer = &contigBacker{}
	}
	return t, nil
}

func (t *Tape) checkCap(cells int) error {
	bytes := int64(cells) * 8
	cap := t.cap
	if cap == 0 {
		cap = HardCapBytes
	}
	if bytes > cap {
		return errors.Wrapf(ErrCapExceeded, "requested %d cells (%d bytes) exceeds cap %d bytes", cells, bytes, cap)
	}
	return nil
}

// Select implements the Auto model-selection thresholds of spec.md §4.6.
func Select(span int, osBackedAvailable bool) Model {
	switch {
	case span <= 1<<16:
		return Contiguous
	case span <= 1<<24:
		return Fibonacci
	case span <= 1<<28:
		return Paged
	case osBackedAvailable:
		return OSBacked
	default:
		return Paged
	}
}

// Width reports the cell width.
func (t *Tape) Width() Width { return t.width }

// Model reports the active memory model (post Auto-selection).
func (t *Tape) Model() Model { return t.model }

// Len returns the current tape length in cells.
func (t *Tape) Len() int {
	if t.sparse != nil {
		return t.hwm + 1
	}
	return len(t.cells)
}

// Pointer returns the current cell pointer.
func (t *Tape) Pointer() int { return t.p }

// SetPointer moves the pointer, failing with ErrOutOfBounds if it would move
// below zero or, with growth disabled, past the end of the tape.
func (t *Tape) SetPointer(p int) error {
	if p < 0 {
		return errors.Wrapf(ErrOutOfBounds, "pointer moved to %d", p)
	}
	if err := t.EnsureCapacity(p + 1); err != nil {
		return err
	}
	t.p = p
	return nil
}

// Move adjusts the pointer by delta.
func (t *Tape) Move(delta int) error { return t.SetPointer(t.p + delta) }

// EnsureCapacity grows the tape, if needed and permitted, so that index
// needed-1 is addressable. It is the "growth hook" of spec.md §4.4: callers
// must re-fetch any cached base slice after calling this, since growth may
// reallocate.
func (t *Tape) EnsureCapacity(needed int) error {
	if needed > t.hwm+1 {
		t.hwm = needed - 1
	}
	if t.sparse != nil {
		return nil
	}
	if needed <= len(t.cells) {
		return nil
	}
	if !t.grow {
		return errors.Wrapf(ErrOutOfBounds, "index %d beyond tape length %d, growth disabled", needed-1, len(t.cells))
	}
	if err := t.checkCap(needed); err != nil {
		return err
	}
	return t.backer.grow(t, needed)
}

// At reads the cell at offset from the current pointer (spec's tape[p+offset]).
func (t *Tape) At(offset int) (uint64, error) {
	idx := t.p + offset
	if idx < 0 {
		return 0, errors.Wrapf(ErrOutOfBounds, "read at %d", idx)
	}
	if err := t.EnsureCapacity(idx + 1); err != nil {
		return 0, err
	}
	if t.sparse != nil {
		return t.sparse[idx], nil
	}
	return t.cells[idx], nil
}

// Set writes v (already masked by the caller to the tape width) to the cell
// at offset from the current pointer.
func (t *Tape) Set(offset int, v uint64) error {
	idx := t.p + offset
	if idx < 0 {
		return errors.Wrapf(ErrOutOfBounds, "write at %d", idx)
	}
	if err := t.EnsureCapacity(idx + 1); err != nil {
		return err
	}
	v &= t.width.Mask()
	if t.sparse != nil {
		if v == 0 {
			delete(t.sparse, idx)
		} else {
			t.sparse[idx] = v
		}
		return nil
	}
	t.cells[idx] = v
	return nil
}

// AtIndex/SetIndex operate on an absolute cell index rather than pointer+offset;
// used by scan kernels walking across a range.
func (t *Tape) AtIndex(idx int) uint64 {
	if t.sparse != nil {
		return t.sparse[idx]
	}
	if idx < 0 || idx >= len(t.cells) {
		return 0
	}
	return t.cells[idx]
}

func (t *Tape) SetIndex(idx int, v uint64) {
	v &= t.width.Mask()
	if t.sparse != nil {
		if v == 0 {
			delete(t.sparse, idx)
		} else {
			t.sparse[idx] = v
		}
		return
	}
	t.cells[idx] = v
}

// Dense returns the backing dense slice for direct, already-bounds-checked
// access, and whether the tape is currently sparse (in which case the slice
// is nil and callers must use AtIndex/SetIndex instead).
func (t *Tape) Dense() ([]uint64, bool) {
	if t.sparse != nil {
		return nil, true
	}
	return t.cells, false
}

// Materialize converts a sparse tape into a dense one, per spec.md §4.6's
// "On END, the dense tape is materialized for the caller." It is a no-op if
// the tape is already dense.
func (t *Tape) Materialize() {
	if t.sparse == nil {
		return
	}
	dense := make([]uint64, t.hwm+1)
	for idx, v := range t.sparse {
		if idx >= 0 && idx < len(dense) {
			dense[idx] = v
		}
	}
	t.cells = dense
	t.sparse = nil
}

// Dump writes the tape's current pointer and every cell up to Len()-1 (the
// whole dense buffer, or for a sparse tape the highest index ever observed)
// to w, space-separated, grounded on the teacher's
// (*Instance).Dump. It returns the number of bytes that actually reached w
// before any error, so a caller can tell a truncated dump from a complete
// one.
func (t *Tape) Dump(w io.Writer) (int64, error) {
	ew := bfi.NewErrWriter(w)
	fmt.Fprintf(ew, "p=%d\n", t.p)
	last := t.Len() - 1
	for idx := 0; idx <= last; idx++ {
		if idx > 0 {
			ew.Write([]byte{' '})
		}
		fmt.Fprintf(ew, "%d", t.AtIndex(idx))
	}
	ew.Write([]byte{'\n'})
	return ew.Written, ew.Err
}

// Close releases any OS-level resources held by the tape (OSBacked model).
func (t *Tape) Close() error {
	if t.backer == nil {
		return nil
	}
	return t.backer.close()
}
