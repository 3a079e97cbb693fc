package engine

import (
	"errors"
	"fmt"
)

// All engine failures are local, synchronous, and deterministic. An operation
// either returns a fully consistent tree or leaves the caller's snapshot
// untouched; the engine never retries and never logs.
var (
	ErrNotFound      = errors.New("not found")
	ErrNotRecurring  = errors.New("not recurring")
	ErrDepthLimit    = errors.New("nesting depth limit exceeded")
	ErrMalformedDate = errors.New("malformed date")
	ErrInvalid       = errors.New("invalid")
)

// DepthError reports where a document or mutation exceeded MaxDepth.
// It still satisfies errors.Is(err, ErrDepthLimit).
type DepthError struct {
	Line  int // 1-indexed source line, 0 when the overflow came from a mutation
	Depth int // 0-indexed depth of the offending item
}

func (e *DepthError) Error() string {
	if e == nil {
		return ErrDepthLimit.Error()
	}
	if e.Line > 0 {
		return fmt.Sprintf("nesting depth limit exceeded: depth %d at line %d (max %d levels)", e.Depth, e.Line, MaxDepth)
	}
	return fmt.Sprintf("nesting depth limit exceeded: depth %d (max %d levels)", e.Depth, MaxDepth)
}

func (e *DepthError) Is(target error) bool {
	return target == ErrDepthLimit
}
