//go:build windows

package tape

import "github.com/pkg/errors"

// osBackedBacker has no host page-mapping primitive wired on windows in this
// module; New falls back to Contiguous and logs via Diagnostics, matching
// the AllocFailure→Contiguous recovery path of spec.md §7.
type osBackedBacker struct{}

func newOSBackedBacker(initial int) (*osBackedBacker, error) {
	return nil, errors.New("osbacked model unavailable on this platform")
}

func (b *osBackedBacker) grow(t *Tape, needed int) error { return nil }
func (b *osBackedBacker) close() error                   { return nil }
func (b *osBackedBacker) view(n int) []uint64            { return make([]uint64, n) }
