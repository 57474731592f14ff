package codegen

import (
	"errors"
	"fmt"
)

// Kind classifies code generation errors.
type Kind int

const (
	UnknownOperator Kind = iota
	UnknownFunction
	ArityMismatch
	SignatureConflict
	UndefinedVariable
	InvalidAssignment
)

var (
	ErrUnknownOperator   = errors.New("unknown operator")
	ErrUnknownFunction   = errors.New("unknown function")
	ErrArityMismatch     = errors.New("arity mismatch")
	ErrSignatureConflict = errors.New("signature conflict")
	ErrUndefinedVariable = errors.New("undefined variable")
	ErrInvalidAssignment = errors.New("invalid assignment")
)

var sentinels = [...]error{
	UnknownOperator:   ErrUnknownOperator,
	UnknownFunction:   ErrUnknownFunction,
	ArityMismatch:     ErrArityMismatch,
	SignatureConflict: ErrSignatureConflict,
	UndefinedVariable: ErrUndefinedVariable,
	InvalidAssignment: ErrInvalidAssignment,
}

func (k Kind) String() string {
	if int(k) < len(sentinels) {
		return sentinels[k].Error()
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a code generation error. It unwraps to the sentinel for its
// Kind, so callers can test it with errors.Is.
type Error struct {
	Kind Kind
	// Name is the offending function, operator or variable.
	Name string
	Msg  string
}

func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.Msg
}

func (e *Error) Unwrap() error {
	if int(e.Kind) < len(sentinels) {
		return sentinels[e.Kind]
	}
	return nil
}

func newError(kind Kind, name, format string, args ...any) *Error {
	return &Error{Kind: kind, Name: name, Msg: fmt.Sprintf(format, args...)}
}
