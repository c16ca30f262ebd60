package splitscript

import (
	"fmt"

	"github.com/go-errors/errors"
)

// ErrorKind classifies the failures a settlement construction can surface to
// its caller.
type ErrorKind uint8

const (
	// ErrKindSetup is used for invalid or degenerate public key input to
	// the MuSig2 key aggregation, e.g. duplicate or malformed keys.
	ErrKindSetup ErrorKind = iota + 1

	// ErrKindValidation is used for malformed commitment hashes, key
	// material or parameters handed to the script builders.
	ErrKindValidation

	// ErrKindTreeBuild is used when the tapscript tree can't be assembled
	// from the given leaves, e.g. because a leaf script is too large.
	ErrKindTreeBuild
)

// String returns a human readable name of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrKindSetup:
		return "setup"

	case ErrKindValidation:
		return "validation"

	case ErrKindTreeBuild:
		return "tree build"

	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

var (
	// ErrSetup matches any setup error through errors.Is.
	ErrSetup = &Error{Kind: ErrKindSetup}

	// ErrValidation matches any validation error through errors.Is.
	ErrValidation = &Error{Kind: ErrKindValidation}

	// ErrTreeBuild matches any tree build error through errors.Is.
	ErrTreeBuild = &Error{Kind: ErrKindTreeBuild}

	// ErrInvariantViolation is the cause of every panic raised when the
	// construction detects that one of its own guarantees was broken. It
	// is never returned as an ordinary error.
	ErrInvariantViolation = fmt.Errorf("settlement invariant violated")
)

// Error is the single protocol error type all aggregation, script validation
// and tree build failures are converted into.
type Error struct {
	// Kind is the class of the failure.
	Kind ErrorKind

	err *errors.Error
}

// Error returns the error string, prefixed with the kind of the failure.
//
// NOTE: Part of the error interface.
func (e *Error) Error() string {
	if e.err == nil {
		return fmt.Sprintf("%v error", e.Kind)
	}

	return fmt.Sprintf("%v error: %v", e.Kind, e.err.Error())
}

// Unwrap returns the underlying cause so errors.Is and errors.As can inspect
// it.
func (e *Error) Unwrap() error {
	if e.err == nil {
		return nil
	}

	return e.err
}

// Is reports whether the target is the sentinel of the same error kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.err == nil && t.Kind == e.Kind
}

// Stack returns the stack trace captured when the error was created.
func (e *Error) Stack() string {
	if e.err == nil {
		return ""
	}

	return string(e.err.Stack())
}

// newErrorf creates a new protocol error of the given kind. The format
// supports %w to keep the original cause reachable.
func newErrorf(kind ErrorKind, format string, a ...interface{}) *Error {
	return &Error{
		Kind: kind,
		err:  errors.Wrap(fmt.Errorf(format, a...), 2),
	}
}

func setupErrorf(format string, a ...interface{}) error {
	return newErrorf(ErrKindSetup, format, a...)
}

func validationErrorf(format string, a ...interface{}) error {
	return newErrorf(ErrKindValidation, format, a...)
}

func treeBuildErrorf(format string, a ...interface{}) error {
	return newErrorf(ErrKindTreeBuild, format, a...)
}

// invariantViolation aborts the current construction. It is used for steps
// that are fallible in general but can't fail for the fixed three leaf shape
// of a settlement output, so a failure always points at a defect.
func invariantViolation(format string, a ...interface{}) {
	err := errors.Wrap(fmt.Errorf("%w: "+format, append(
		[]interface{}{ErrInvariantViolation}, a...,
	)...), 1)

	log.Criticalf("%v\n%s", err, err.ErrorStack())

	panic(err)
}
