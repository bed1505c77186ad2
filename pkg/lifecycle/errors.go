package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/olrunner/pkg/types"
)

var (
	// ErrInvalidState is returned when an operation is not allowed in the current state
	ErrInvalidState = errors.New("invalid lifecycle state")

	// ErrProcessExited is returned when the launch process exits before the server is stopped
	ErrProcessExited = errors.New("launch process exited")

	// ErrNotReady is returned by operations that need a ready server
	ErrNotReady = errors.New("server not ready")
)

// ReadinessTimeoutError reports a server that did not become ready within
// the grace period plus the readiness window
type ReadinessTimeoutError struct {
	Grace  time.Duration
	Window time.Duration
	Err    error
}

func (e *ReadinessTimeoutError) Error() string {
	msg := fmt.Sprintf("server did not become ready within %s (grace %s, window %s)", e.Grace+e.Window, e.Grace, e.Window)
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *ReadinessTimeoutError) Unwrap() error {
	return e.Err
}

func invalidState(op string, state types.LifecycleState) error {
	return fmt.Errorf("%s: %w: %s", op, ErrInvalidState, state)
}
