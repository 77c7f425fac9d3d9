// Package vm implements the Interpreter Core: a switch-dispatch loop that
// executes an ir.Program against a tape.Tape, plus the Execute entry point
// that wires the Rewriter, Builder and optional Cache together into the
// single-call session contract of spec.md §6.
package vm

import (
	"bufio"
	"io"
	"sync/atomic"

	"github.com/mkot2/goof2/cache"
	"github.com/mkot2/goof2/ir"
	"github.com/mkot2/goof2/rewrite"
	"github.com/mkot2/goof2/tape"
	"github.com/pkg/errors"
)

// DefaultTapeSize is used when a Config supplies neither Cells nor TapeSize.
const DefaultTapeSize = 30000

// EOFPolicy selects RAD_CHR's behavior on end-of-input.
type EOFPolicy int

const (
	EOFUnchanged EOFPolicy = 0
	EOFZero      EOFPolicy = 1
	EOFMax       EOFPolicy = 2
)

// Diagnostics receives non-fatal warnings (an OSBacked fallback). The zero
// value is a no-op sink.
type Diagnostics = tape.Diagnostics

type sessionState int

const (
	Fresh sessionState = iota
	Loaded
	Built
	Running
	Ended
	AbortedState
)

func (s sessionState) String() string {
	switch s {
	case Fresh:
		return "Fresh"
	case Loaded:
		return "Loaded"
	case Built:
		return "Built"
	case Running:
		return "Running"
	case Ended:
		return "Ended"
	case AbortedState:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// Instance is a single execution session: one tape, one program, one pass
// through Run.
type Instance struct {
	tape    *tape.Tape
	program ir.Program
	pc      int
	state   sessionState

	eofPolicy EOFPolicy
	input     *bufio.Reader
	output    *bufio.Writer
	diag      Diagnostics
	profile   *Profile
	abort     *atomic.Bool

	insCount int64
}

// Option configures an Instance, mirroring the teacher's functional-option
// pattern (vm.Option func(*Instance) error in db47h-ngaro).
type Option func(*Instance) error

// WithEOFPolicy sets the RAD_CHR end-of-input behavior. Default EOFUnchanged.
func WithEOFPolicy(p EOFPolicy) Option {
	return func(i *Instance) error {
		if p != EOFUnchanged && p != EOFZero && p != EOFMax {
			return errors.Wrapf(ErrBadArgument, "unknown eof policy %d", p)
		}
		i.eofPolicy = p
		return nil
	}
}

// WithInput sets the RAD_CHR source. Default is an always-EOF reader.
func WithInput(r io.Reader) Option {
	return func(i *Instance) error {
		if r != nil {
			i.input = bufio.NewReader(r)
		}
		return nil
	}
}

// WithOutput sets the PUT_CHR sink. Default is io.Discard.
func WithOutput(w io.Writer) Option {
	return func(i *Instance) error {
		if w != nil {
			i.output = bufio.NewWriter(w)
		}
		return nil
	}
}

// WithDiagnostics sets the Instance's warning sink. It does not reach an
// already-built Tape, whose sink is fixed by tape.WithDiagnostics at
// construction; Execute passes Config.Diagnostics there.
func WithDiagnostics(d Diagnostics) Option {
	return func(i *Instance) error {
		if d != nil {
			i.diag = d
		}
		return nil
	}
}

// WithProfileOut attaches a Profile record that Run populates as it
// executes (instruction count, wall-clock, per-loop iteration counts, peak
// heap bytes).
func WithProfileOut(p *Profile) Option {
	return func(i *Instance) error {
		i.profile = p
		return nil
	}
}

// WithAbort binds a cancellation flag checked at every JMP_NOT_ZER
// back-edge. On trip, Run returns ErrAborted with tape state left as
// observed.
func WithAbort(flag *atomic.Bool) Option {
	return func(i *Instance) error {
		i.abort = flag
		return nil
	}
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }

// New creates an Instance over an existing tape, directly mirroring
// vm.New(image, imageFile, opts...) in the teacher: the tape is the
// caller-owned memory image, options configure behavior, and the returned
// Instance is in the Fresh state until Load/Build populate a program.
func New(t *tape.Tape, opts ...Option) (*Instance, error) {
	i := &Instance{
		tape:      t,
		state:     Fresh,
		eofPolicy: EOFUnchanged,
		input:     bufio.NewReader(eofReader{}),
		output:    bufio.NewWriter(io.Discard),
		diag:      nopDiagnostics{},
	}
	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, err
		}
	}
	return i, nil
}

type nopDiagnostics struct{}

func (nopDiagnostics) Warnf(string, ...interface{}) {}

// Load assigns the program this Instance will Run, advancing Fresh/Loaded
// state to Built. It is exposed for callers that already have a Program
// (e.g. from a Cache hit) and want to skip Execute's own Rewrite/Build.
func (i *Instance) Load(p ir.Program) {
	i.program = p
	i.pc = 0
	i.state = Built
}

// State reports the session's current lifecycle state.
func (i *Instance) State() string { return i.state.String() }

// Tape exposes the underlying tape for callers that need to inspect or
// persist it after Run returns (dump, reuse across a terminal-mode
// session).
func (i *Instance) Tape() *tape.Tape { return i.tape }

// InstructionCount returns the number of instructions retired so far.
func (i *Instance) InstructionCount() int64 { return i.insCount }

// Config is the session entry point's argument bundle — spec.md §6's
// `execute(cells, cell_ptr, source, optimize, eof_policy, dynamic_size,
// terminal_mode, memory_model, [profile], [cache])`.
type Config struct {
	Cells   []uint64
	CellPtr int

	Source    string
	Optimize  bool
	TerminalMode bool

	EOFPolicy   EOFPolicy
	DynamicSize bool
	CellWidth   tape.Width
	MemoryModel tape.Model
	TapeSize    int
	HardCap     int64

	Input  io.Reader
	Output io.Writer

	RuleTable rewrite.RuleTable
	Profile   *Profile
	Cache     *cache.Cache

	Diagnostics Diagnostics
	Abort       *atomic.Bool
}

// Execute is the single session-entry operation of spec.md §6. It rewrites
// and builds (or reuses a Cache hit for) Source, constructs a Tape per the
// Config's memory parameters, seeds it from Cells/CellPtr when supplied,
// runs the program, and returns the resulting Instance alongside the
// session's terminal Status.
func Execute(cfg Config) (*Instance, Status, error) {
	if cfg.EOFPolicy != EOFUnchanged && cfg.EOFPolicy != EOFZero && cfg.EOFPolicy != EOFMax {
		return nil, BadArgument, errors.Wrapf(ErrBadArgument, "unknown eof policy %d", cfg.EOFPolicy)
	}
	if cfg.CellPtr < 0 {
		return nil, BadArgument, errors.Wrapf(ErrBadArgument, "negative cell pointer %d", cfg.CellPtr)
	}

	width := cfg.CellWidth
	if width == 0 {
		width = tape.Width8
	}

	prog, span, status, err := buildProgram(cfg)
	if err != nil {
		return nil, status, err
	}

	size := len(cfg.Cells)
	if size == 0 {
		size = cfg.TapeSize
	}
	if size == 0 {
		size = DefaultTapeSize
	}

	topts := []tape.Option{tape.WithWidth(width), tape.WithGrowth(cfg.DynamicSize)}
	if cfg.MemoryModel != tape.Auto {
		topts = append(topts, tape.WithModel(cfg.MemoryModel))
	}
	if cfg.HardCap > 0 {
		topts = append(topts, tape.WithHardCap(cfg.HardCap))
	}
	if cfg.Diagnostics != nil {
		topts = append(topts, tape.WithDiagnostics(cfg.Diagnostics))
	}

	t, err := tape.New(size, span, topts...)
	if err != nil {
		if errors.Is(err, tape.ErrCapExceeded) || errors.Is(err, tape.ErrAllocFailure) {
			return nil, AllocFailure, err
		}
		return nil, AllocFailure, err
	}
	if len(cfg.Cells) > 0 {
		if dense, sparse := t.Dense(); !sparse {
			copy(dense, cfg.Cells)
		} else {
			for idx, v := range cfg.Cells {
				t.SetIndex(idx, v)
			}
		}
	}
	if cfg.CellPtr != 0 {
		if err := t.SetPointer(cfg.CellPtr); err != nil {
			return nil, OutOfBounds, err
		}
	}

	inst, err := New(t,
		WithEOFPolicy(cfg.EOFPolicy),
		WithInput(cfg.Input),
		WithOutput(cfg.Output),
		WithDiagnostics(cfg.Diagnostics),
		WithProfileOut(cfg.Profile),
		WithAbort(cfg.Abort),
	)
	if err != nil {
		return nil, BadArgument, err
	}
	inst.Load(prog)

	status, err = inst.Run()
	return inst, status, err
}

// buildProgram rewrites cfg.Source and builds its Program, consulting
// cfg.Cache first when present. It also returns the Builder's static span
// (ir.Span) for the rewritten source, feeding the Memory-Model Selector —
// a cache hit reuses the span stored alongside its Program rather than
// re-walking the source.
func buildProgram(cfg Config) (ir.Program, int, Status, error) {
	if cfg.Cache != nil {
		fp := cache.Compute(cfg.Source, cfg.Optimize, cfg.TerminalMode)
		if entry, ok := cfg.Cache.Get(fp, cfg.Source); ok {
			return entry.Program, entry.Span, Ok, nil
		}
		prog, span, status, err := rewriteAndBuild(cfg)
		if err != nil {
			return nil, 0, status, err
		}
		cfg.Cache.Put(fp, cfg.Source, prog, span)
		return prog, span, Ok, nil
	}
	return rewriteAndBuild(cfg)
}

func rewriteAndBuild(cfg Config) (ir.Program, int, Status, error) {
	rewritten := rewrite.Rewrite(cfg.Source, cfg.Optimize, cfg.TerminalMode, cfg.RuleTable)
	span := ir.Span(rewritten)
	prog, err := ir.Build(rewritten, cfg.TerminalMode)
	if err != nil {
		switch {
		case errors.Is(err, ir.ErrUnmatchedOpen):
			return nil, 0, UnmatchedOpen, err
		case errors.Is(err, ir.ErrUnmatchedClose):
			return nil, 0, UnmatchedClose, err
		default:
			return nil, 0, BadArgument, err
		}
	}
	return prog, span, Ok, nil
}
