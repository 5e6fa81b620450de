package rpn

import "errors"

var (
	// ErrBadToken marks a token that is neither a literal, a variable
	// reference nor a known operator. The whole expression is rejected.
	ErrBadToken = errors.New("unknown token")

	// ErrStackUnderflow marks an operator invoked with fewer operands
	// than its arity requires. The run is aborted with no result.
	ErrStackUnderflow = errors.New("stack underflow")
)
