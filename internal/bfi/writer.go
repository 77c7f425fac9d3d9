// Package bfi holds small helpers shared by the goof2 packages.
package bfi

import (
	"io"

	"github.com/pkg/errors"
)

// ErrWriter is a simple wrapper to track io errors. Write will keep returning
// the last error over and over. Written accumulates the byte count of every
// write that actually reached the underlying writer, so a caller dumping a
// large structure through one (a tape, a disassembly) can report how much
// of it made it out before a failure truncated the rest.
type ErrWriter struct {
	w       io.Writer
	Err     error
	Written int64
}

func (w *ErrWriter) Write(p []byte) (n int, err error) {
	if w.Err != nil {
		return 0, w.Err
	}
	n, err = w.w.Write(p)
	w.Written += int64(n)
	if err != nil {
		w.Err = errors.Wrap(err, "write failed")
	}
	return n, w.Err
}

// NewErrWriter returns a new ErrWriter.
func NewErrWriter(w io.Writer) *ErrWriter {
	return &ErrWriter{w: w}
}
