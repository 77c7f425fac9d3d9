package vm

import (
	"io"

	"github.com/mkot2/goof2/ir"
	"github.com/mkot2/goof2/scan"
	"github.com/mkot2/goof2/tape"
	"github.com/pkg/errors"
)

// Run executes the Instance's Program from its current pc until END, an
// error, or an abort. It is a single switch-dispatch loop over
// Instruction.Op — the teacher's computed-dispatch loop generalized from a
// flat []Cell program to a []ir.Instruction program, per the "tight switch"
// threaded-dispatch substitute.
func (in *Instance) Run() (status Status, err error) {
	if in.state == Ended || in.state == AbortedState {
		return Ok, errors.New("vm: session already finished")
	}
	in.state = Running
	in.profile.begin()

	defer func() {
		if e := recover(); e != nil {
			err = errors.Wrapf(errorize(e), "recovered error @pc=%d/%d, tape len=%d", in.pc, len(in.program), in.tape.Len())
			status = OutOfBounds
			in.state = AbortedState
		}
		in.output.Flush()
		in.profile.finish()
	}()

	prog := in.program
	for in.pc < len(prog) {
		instr := prog[in.pc]
		switch instr.Op {
		case ir.End:
			in.state = Ended
			in.tape.Materialize()
			return Ok, nil

		case ir.AddSub:
			v, e := in.tape.At(int(instr.Offset))
			if e != nil {
				return in.fail(e)
			}
			if e := in.tape.Set(int(instr.Offset), v+uint64(int64(instr.Data))); e != nil {
				return in.fail(e)
			}
			in.pc++

		case ir.Set:
			if e := in.tape.Set(int(instr.Offset), uint64(int64(instr.Data))); e != nil {
				return in.fail(e)
			}
			in.pc++

		case ir.Clr:
			if e := in.tape.Set(int(instr.Offset), 0); e != nil {
				return in.fail(e)
			}
			in.pc++

		case ir.ClrRng:
			for k := 0; k < int(instr.Data); k++ {
				if e := in.tape.Set(int(instr.Offset)+k, 0); e != nil {
					return in.fail(e)
				}
			}
			in.pc++

		case ir.MulCpy:
			src, e := in.tape.At(int(instr.Offset))
			if e != nil {
				return in.fail(e)
			}
			targetOff := int(instr.Offset) + int(instr.Data)
			dst, e := in.tape.At(targetOff)
			if e != nil {
				return in.fail(e)
			}
			if e := in.tape.Set(targetOff, dst+src*uint64(int64(instr.Aux))); e != nil {
				return in.fail(e)
			}
			in.pc++

		case ir.PtrMov:
			if e := in.tape.Move(int(instr.Data)); e != nil {
				return in.fail(e)
			}
			in.pc++

		case ir.PutChr:
			v, e := in.tape.At(int(instr.Offset))
			if e != nil {
				return in.fail(e)
			}
			b := byte(v)
			for k := int32(0); k < instr.Data; k++ {
				if e := in.output.WriteByte(b); e != nil {
					return in.fail(errors.Wrap(e, "output write"))
				}
			}
			in.pc++

		case ir.RadChr:
			if e := in.output.Flush(); e != nil {
				return in.fail(errors.Wrap(e, "output flush"))
			}
			b, e := in.input.ReadByte()
			var v uint64
			switch {
			case e == io.EOF:
				switch in.eofPolicy {
				case EOFZero:
					v = 0
				case EOFMax:
					v = in.tape.Width().Mask()
				default:
					cur, e2 := in.tape.At(int(instr.Offset))
					if e2 != nil {
						return in.fail(e2)
					}
					v = cur
				}
			case e != nil:
				return in.fail(errors.Wrap(e, "input read"))
			default:
				v = uint64(b)
			}
			if e := in.tape.Set(int(instr.Offset), v); e != nil {
				return in.fail(e)
			}
			in.pc++

		case ir.JmpZer:
			v, e := in.tape.At(0)
			if e != nil {
				return in.fail(e)
			}
			if v == 0 {
				in.pc += int(instr.Data)
			} else {
				in.pc++
			}

		case ir.JmpNotZer:
			v, e := in.tape.At(0)
			if e != nil {
				return in.fail(e)
			}
			if v != 0 {
				if in.abort != nil && in.abort.Load() {
					in.state = AbortedState
					return Aborted, ErrAborted
				}
				in.profile.loop(instr.Aux)
				in.pc += int(instr.Data)
			} else {
				in.pc++
			}

		case ir.ScnRgt, ir.ScnClrRgt:
			if e := in.scanForward(instr); e != nil {
				return in.fail(e)
			}
			in.pc++

		case ir.ScnLft, ir.ScnClrLft:
			if e := in.scanBackward(instr); e != nil {
				return in.fail(e)
			}
			in.pc++

		default:
			in.pc++
		}
		in.insCount++
		in.profile.retire()
	}
	in.state = Ended
	in.tape.Materialize()
	return Ok, nil
}

func (in *Instance) fail(err error) (Status, error) {
	in.state = AbortedState
	if errors.Is(err, tape.ErrOutOfBounds) {
		return OutOfBounds, err
	}
	if errors.Is(err, tape.ErrAllocFailure) || errors.Is(err, tape.ErrCapExceeded) {
		return AllocFailure, err
	}
	return OutOfBounds, err
}

func errorize(e interface{}) error {
	if err, ok := e.(error); ok {
		return err
	}
	return errors.Errorf("%v", e)
}

// scanForward grows the tape as needed and advances the pointer to the
// nearest zero cell found by the stride-aware forward kernel, clearing
// visited cells along the way for the SCN_CLR_RGT variant.
func (in *Instance) scanForward(instr ir.Instruction) error {
	stride := int(instr.Data)
	if stride <= 0 {
		stride = 1
	}
	clearing := instr.Op == ir.ScnClrRgt
	for {
		dense, sparse := in.tape.Dense()
		limit := in.tape.Len()
		p := in.tape.Pointer()
		var found int
		if sparse {
			found = in.scanForwardSparse(p, limit, stride, clearing)
		} else if clearing {
			found = scan.ClearForward(dense, in.tape.Width(), p, limit, stride)
		} else {
			found = scan.Forward(dense, in.tape.Width(), p, limit, stride)
		}
		if found >= 0 {
			return in.tape.SetPointer(found)
		}
		// No zero cell within the current tape: grow and keep searching, or
		// surface the out-of-bounds error EnsureCapacity produces when
		// growth is disabled.
		if e := in.tape.EnsureCapacity(limit + stride); e != nil {
			return e
		}
	}
}

func (in *Instance) scanBackward(instr ir.Instruction) error {
	stride := int(instr.Data)
	if stride <= 0 {
		stride = 1
	}
	clearing := instr.Op == ir.ScnClrLft
	p := in.tape.Pointer()
	dense, sparse := in.tape.Dense()
	var found int
	if sparse {
		found = in.scanBackwardSparse(p, stride, clearing)
	} else if clearing {
		found = scan.ClearBackward(dense, in.tape.Width(), p, 0, stride)
	} else {
		found = scan.Backward(dense, in.tape.Width(), p, 0, stride)
	}
	if found < 0 {
		return errors.Wrapf(tape.ErrOutOfBounds, "backward scan moved below zero from pointer %d", p)
	}
	return in.tape.SetPointer(found)
}

func (in *Instance) scanForwardSparse(from, limit, stride int, clearing bool) int {
	for i := from; i < limit; i += stride {
		v := in.tape.AtIndex(i)
		if v == 0 {
			return i
		}
		if clearing {
			in.tape.SetIndex(i, 0)
		}
	}
	return -1
}

func (in *Instance) scanBackwardSparse(from, stride int, clearing bool) int {
	for i := from; i >= 0; i -= stride {
		v := in.tape.AtIndex(i)
		if v == 0 {
			return i
		}
		if clearing {
			in.tape.SetIndex(i, 0)
		}
	}
	return -1
}
