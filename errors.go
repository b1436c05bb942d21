package mockfn

import (
	"errors"
	"fmt"
)

// ErrInvalidTarget is matched by every InvalidTargetError.
var ErrInvalidTarget = errors.New("mockfn: invalid target")

// InvalidTargetError is returned when a slot cannot be replaced.
type InvalidTargetError struct {
	// Type is the type of the slot, e.g. "*func(int) int".
	Type   string
	Reason string
}

func (e *InvalidTargetError) Error() string {
	return fmt.Sprintf("mockfn: cannot replace %s: %s", e.Type, e.Reason)
}

func (e *InvalidTargetError) Is(target error) bool {
	return target == ErrInvalidTarget
}

// UnmatchedRestoreWarning is logged when a slot that is not replaced is
// restored.
type UnmatchedRestoreWarning struct {
	Type string
}

func (w UnmatchedRestoreWarning) Error() string {
	return fmt.Sprintf("mockfn: restore of %s which is not replaced", w.Type)
}

// StaleOneShotWarning is logged when a one-shot implementation is scheduled
// for a call that has already happened.
type StaleOneShotWarning struct {
	Mock      string
	Index     CallIndex
	CallCount int
}

func (w StaleOneShotWarning) Error() string {
	return fmt.Sprintf("mockfn: %s: one-shot implementation for call %d can never run, %d calls already made", w.Mock, w.Index, w.CallCount)
}
