package ir

import (
	"fmt"
	"io"

	"github.com/mkot2/goof2/internal/bfi"
)

// Disassemble writes one instruction's textual form to w, returning the
// number of bytes written.
func Disassemble(w io.Writer, idx int, instr Instruction) (int64, error) {
	ew := bfi.NewErrWriter(w)
	fmt.Fprintf(ew, "%5d  %-12s offset=%-4d data=%-8d aux=%d\n", idx, instr.Op, instr.Offset, instr.Data, instr.Aux)
	return ew.Written, ew.Err
}

// DisassembleAll writes every instruction in p, in order, through a single
// ErrWriter so the first write failure halts the whole dump, returning the
// number of bytes that made it out before any error.
func DisassembleAll(w io.Writer, p Program) (int64, error) {
	ew := bfi.NewErrWriter(w)
	for i, instr := range p {
		fmt.Fprintf(ew, "%5d  %-12s offset=%-4d data=%-8d aux=%d\n", i, instr.Op, instr.Offset, instr.Data, instr.Aux)
		if ew.Err != nil {
			return ew.Written, ew.Err
		}
	}
	return ew.Written, nil
}
