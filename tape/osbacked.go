//go:build !windows

package tape

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// osBackedBacker reserves a large virtual range up front with the host's
// page-mapping primitive and commits it incrementally by growing the slice
// view into the mapping. Released explicitly via Munmap on Close.
type osBackedBacker struct {
	mapping []byte
}

// reserveCells is the virtual range reserved at construction time (256 MiB of
// cells); committing more than this falls back to a fresh, larger mapping.
const reserveCells = 256 * 1024 * 1024 / 8

func newOSBackedBacker(initial int) (*osBackedBacker, error) {
	size := reserveCells
	if initial > size {
		size = initial
	}
	m, err := unix.Mmap(-1, 0, size*8, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrap(err, "mmap failed")
	}
	return &osBackedBacker{mapping: m}, nil
}

// view returns the first n cells of the current mapping as a uint64 slice.
func (b *osBackedBacker) view(n int) []uint64 {
	return castBytes(b.mapping)[:n]
}

func (b *osBackedBacker) grow(t *Tape, needed int) error {
	available := len(b.mapping) / 8
	if needed <= available {
		t.cells = castBytes(b.mapping)[:needed]
		return nil
	}
	// Reserved range exhausted: remap a larger region. This is the rare
	// path; OSBacked is chosen precisely so it is rarely taken.
	newSize := available * 2
	for newSize < needed {
		newSize *= 2
	}
	m, err := unix.Mmap(-1, 0, newSize*8, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return errors.Wrapf(ErrAllocFailure, "mmap grow failed: %v", err)
	}
	copy(m, b.mapping)
	unix.Munmap(b.mapping)
	b.mapping = m
	t.cells = castBytes(b.mapping)[:needed]
	return nil
}

func (b *osBackedBacker) close() error {
	if b.mapping == nil {
		return nil
	}
	err := unix.Munmap(b.mapping)
	b.mapping = nil
	if err != nil {
		return errors.Wrap(err, "munmap failed")
	}
	return nil
}
