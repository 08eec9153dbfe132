package capture

import (
	"errors"
	"fmt"
)

// Sentinel errors for capture session failures.
var (
	// ErrBindFailed matches any failure to acquire the camera and install the
	// analysis consumer. Test with errors.Is.
	ErrBindFailed = errors.New("capture: bind failed")

	// ErrLifecycleNotStarted is returned when Activate is called while the
	// lifecycle is not in the STARTED phase.
	ErrLifecycleNotStarted = errors.New("capture: lifecycle not started")

	// ErrSessionClosed is returned by Activate after Close.
	ErrSessionClosed = errors.New("capture: session closed")
)

// Operations reported in CaptureError.
const (
	OpBind   = "bind"
	OpUnbind = "unbind"
)

// CaptureError describes a failed capture operation.
type CaptureError struct {
	// Op is the failed operation (OpBind, OpUnbind).
	Op string

	// Source is the name of the frame source involved.
	Source string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture [%s]: %s: %v", e.Source, e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *CaptureError) Unwrap() error {
	return e.Err
}

// Is reports bind failures as ErrBindFailed regardless of the cause.
func (e *CaptureError) Is(target error) bool {
	return target == ErrBindFailed && e.Op == OpBind
}

func bindError(source string, err error) error {
	return &CaptureError{Op: OpBind, Source: source, Err: err}
}
