package vm

import "github.com/pkg/errors"

// Status is the outcome of a session, the enum of spec.md §6.
type Status int

const (
	Ok Status = iota
	UnmatchedOpen
	UnmatchedClose
	OutOfBounds
	AllocFailure
	Aborted
	BadArgument
	IOError
)

func (s Status) String() string {
	switch s {
	case Ok:
		return "Ok"
	case UnmatchedOpen:
		return "UnmatchedOpen"
	case UnmatchedClose:
		return "UnmatchedClose"
	case OutOfBounds:
		return "OutOfBounds"
	case AllocFailure:
		return "AllocFailure"
	case Aborted:
		return "Aborted"
	case BadArgument:
		return "BadArgument"
	case IOError:
		return "IOError"
	default:
		return "Unknown"
	}
}

// ErrBadArgument is returned when a Config value is invalid (spec.md §7's
// BadArgument kind: rejected at the call, never reaches the interpreter).
var ErrBadArgument = errors.New("vm: bad argument")

// ErrAborted is returned by Run when the abort flag tripped at a
// JMP_NOT_ZER back-edge.
var ErrAborted = errors.New("vm: aborted")
