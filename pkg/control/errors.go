package control

import (
	"errors"
	"fmt"
)

// ErrTimeout is the cause of a ScriptError for a command that did not finish in time
var ErrTimeout = errors.New("command timed out")

// ScriptError reports a command that failed to run to a zero exit status
type ScriptError struct {
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *ScriptError) Error() string {
	switch {
	case e.Err != nil && e.Output != "":
		return fmt.Sprintf("%s: %v: %s", e.Command, e.Err, e.Output)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	default:
		return fmt.Sprintf("%s: exit code %d: %s", e.Command, e.ExitCode, e.Output)
	}
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}
