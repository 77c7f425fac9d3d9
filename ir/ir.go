// Package ir implements the Instruction Builder: it consumes the rewritten
// source produced by the rewrite package, matches brackets, coalesces
// pointer offsets, runs peephole fusion, and emits the fixed-size
// Instruction array the vm package's interpreter core executes.
package ir

import (
	"github.com/pkg/errors"
)

// Op tags an Instruction's operation.
type Op uint8

const (
	AddSub Op = iota
	Set
	PtrMov
	JmpZer
	JmpNotZer
	PutChr
	RadChr
	Clr
	ClrRng
	MulCpy
	ScnRgt
	ScnLft
	ScnClrRgt
	ScnClrLft
	End
)

func (op Op) String() string {
	switch op {
	case AddSub:
		return "ADD_SUB"
	case Set:
		return "SET"
	case PtrMov:
		return "PTR_MOV"
	case JmpZer:
		return "JMP_ZER"
	case JmpNotZer:
		return "JMP_NOT_ZER"
	case PutChr:
		return "PUT_CHR"
	case RadChr:
		return "RAD_CHR"
	case Clr:
		return "CLR"
	case ClrRng:
		return "CLR_RNG"
	case MulCpy:
		return "MUL_CPY"
	case ScnRgt:
		return "SCN_RGT"
	case ScnLft:
		return "SCN_LFT"
	case ScnClrRgt:
		return "SCN_CLR_RGT"
	case ScnClrLft:
		return "SCN_CLR_LFT"
	case End:
		return "END"
	default:
		return "UNKNOWN"
	}
}

// Instruction is the fixed-size record spec.md §3 describes. Data is
// deliberately untruncated by cell width — width only matters at
// vm.Instance.Run time, so the same Program runs correctly under any
// tape.Width.
type Instruction struct {
	Op     Op
	Data   int32
	Aux    int16
	Offset int16
}

// Program is an ordered sequence of Instructions, always ending in End.
type Program []Instruction

// ErrUnmatchedOpen is returned when a '[' has no matching ']'.
var ErrUnmatchedOpen = errors.New("ir: unmatched '['")

// ErrUnmatchedClose is returned when a ']' has no matching '['.
var ErrUnmatchedClose = errors.New("ir: unmatched ']'")

type builder struct {
	prog    Program
	offset  int64 // pending accumulator, flushed explicitly before loop-affecting tokens
	stack   []int // open JMP_ZER indices
	loopID  int16
	src     string
}

// Build consumes rewritten source (the output of rewrite.Rewrite) and
// produces a Program. terminal is accepted for symmetry with the rest of
// the pipeline; the Builder itself has no terminal-mode-specific behavior
// — the rewrite package already decided whether the leading-set marker
// exists in the string it hands us.
func Build(rewritten string, terminal bool) (Program, error) {
	b := &builder{src: rewritten}
	if err := b.run(); err != nil {
		return nil, err
	}
	b.flush()
	b.append(Instruction{Op: End})
	if len(b.stack) != 0 {
		return nil, errors.Wrapf(ErrUnmatchedOpen, "at rewritten-source position %d", b.stack[len(b.stack)-1])
	}
	return b.prog, nil
}

func (b *builder) run() error {
	s := b.src
	i := 0
	for i < len(s) {
		c := s[i]
		switch c {
		case '>':
			i = b.consumeMoveOrScan(s, i, 1, '>', ScnRgt)
		case '<':
			i = b.consumeMoveOrScan(s, i, -1, '<', ScnLft)
		case '+', '-':
			i = b.consumeAddSub(s, i)
		case '.':
			b.emit(Instruction{Op: PutChr, Offset: b.off(), Data: 1})
			i++
		case ',':
			b.emit(Instruction{Op: RadChr, Offset: b.off()})
			i++
		case 'C':
			i = b.consumeClearOrScanClear(s, i)
		case 'S':
			// Consumed as part of consumeAddSub/consumeClearOrScanClear
			// lookahead; reaching here means it followed something other
			// than a C, which rewrite.Rewrite never produces.
			i++
		case 'P':
			b.foldCopyTarget(s, i)
			i++
		case '[':
			b.flush()
			b.stack = append(b.stack, len(b.prog))
			b.append(Instruction{Op: JmpZer})
			i++
		case ']':
			if len(b.stack) == 0 {
				return errors.Wrapf(ErrUnmatchedClose, "at rewritten-source position %d", i)
			}
			b.flush()
			openIdx := b.stack[len(b.stack)-1]
			b.stack = b.stack[:len(b.stack)-1]
			closeIdx := len(b.prog)
			b.loopID++
			b.prog[openIdx].Data = int32(closeIdx - openIdx)
			b.prog[openIdx].Aux = b.loopID
			b.append(Instruction{Op: JmpNotZer, Data: int32(openIdx - closeIdx), Aux: b.loopID})
			i++
		default:
			i++
		}
	}
	return nil
}

func (b *builder) off() int16 { return int16(b.offset) }

// flush emits a PTR_MOV for any pending offset and resets the accumulator,
// as required before loop-affecting tokens.
func (b *builder) flush() {
	if b.offset != 0 {
		b.append(Instruction{Op: PtrMov, Data: int32(b.offset)})
	}
	b.offset = 0
}

// consumeMoveOrScan handles a run of '>' or '<'. If the run is immediately
// followed by the matching scan marker (R for '>', L for '<'), optionally
// preceded there by nothing else, it is a scan-loop collapse: the run
// becomes the stride and is NOT folded into the pending offset, since the
// real pointer genuinely moves by a data-dependent amount at runtime.
func (b *builder) consumeMoveOrScan(s string, i int, dir int64, ch byte, scanOp Op) int {
	j := i
	for j < len(s) && s[j] == ch {
		j++
	}
	stride := j - i
	marker := byte('R')
	if ch == '<' {
		marker = 'L'
	}
	if j < len(s) && s[j] == marker {
		b.flush()
		b.append(Instruction{Op: scanOp, Data: int32(stride)})
		return j + 1
	}
	b.offset += dir * int64(stride)
	return j
}

func (b *builder) consumeAddSub(s string, i int) int {
	j := i
	net := int32(0)
	for j < len(s) && (s[j] == '+' || s[j] == '-') {
		if s[j] == '+' {
			net++
		} else {
			net--
		}
		j++
	}
	instr := Instruction{Op: AddSub, Offset: b.off(), Data: net}
	if j < len(s) && s[j] == 'P' {
		// A copy-loop target becomes its own MUL_CPY: never fuse it into a
		// preceding write.
		b.append(instr)
		return j
	}
	b.emit(instr)
	return j
}

// consumeClearOrScanClear handles a 'C'. Depending on what follows it is
// one of: a clearing scan (C + pure move run + R/L), a leading SET (C + S +
// a +/- run), or a plain CLR.
func (b *builder) consumeClearOrScanClear(s string, i int) int {
	rest := i + 1
	if rest < len(s) && (s[rest] == '>' || s[rest] == '<') {
		dir := s[rest]
		j := rest
		for j < len(s) && s[j] == dir {
			j++
		}
		marker := byte('R')
		if dir == '<' {
			marker = 'L'
		}
		if j < len(s) && s[j] == marker {
			b.flush()
			op := ScnClrRgt
			if dir == '<' {
				op = ScnClrLft
			}
			b.append(Instruction{Op: op, Data: int32(j - rest)})
			return j + 1
		}
	}
	if rest < len(s) && s[rest] == 'S' {
		addStart := rest + 1
		j := addStart
		net := int32(0)
		for j < len(s) && (s[j] == '+' || s[j] == '-') {
			if s[j] == '+' {
				net++
			} else {
				net--
			}
			j++
		}
		b.emit(Instruction{Op: Set, Offset: b.off(), Data: net})
		return j
	}
	b.emit(Instruction{Op: Clr, Offset: b.off()})
	return i + 1
}

// foldCopyTarget converts the most recently emitted ADD_SUB — produced by
// the move+add run a copy-loop target always leaves just before its 'P'
// marker at s[i] — into a MUL_CPY accumulating into that offset from the
// loop's own cell. The copy body has zero net pointer motion, so the loop's
// own cell is where the pending offset lands at the trailing C.
func (b *builder) foldCopyTarget(s string, i int) {
	if len(b.prog) == 0 {
		return
	}
	last := &b.prog[len(b.prog)-1]
	if last.Op != AddSub {
		return
	}
	base := b.offset
	for j := i + 1; j < len(s) && s[j] != 'C'; j++ {
		switch s[j] {
		case '>':
			base++
		case '<':
			base--
		}
	}
	last.Op = MulCpy
	last.Aux = int16(last.Data)
	last.Data = int32(last.Offset) - int32(base)
	last.Offset = int16(base)
}

// append adds an instruction with no fusion considered; emit is append
// plus the peephole table.
func (b *builder) append(instr Instruction) {
	b.prog = append(b.prog, instr)
}

func (b *builder) emit(instr Instruction) {
	if len(b.prog) > 0 {
		prev := &b.prog[len(b.prog)-1]
		if fused, ok := fuseSameOffset(*prev, instr); ok {
			*prev = fused
			return
		}
		if fused, ok := fuseAdjacentClear(*prev, instr); ok {
			*prev = fused
			return
		}
		if prev.Op == PutChr && instr.Op == PutChr && prev.Offset == instr.Offset {
			prev.Data += instr.Data
			return
		}
	}
	b.append(instr)
}
