package health

import (
	"context"
	"time"
)

// StatusReporter is implemented by the server control script
type StatusReporter interface {
	IsRunning(ctx context.Context) (bool, error)
}

// ScriptChecker asks the server control script whether the server is running
type ScriptChecker struct {
	Script StatusReporter

	// Timeout bounds a single status invocation (default: 30 seconds)
	Timeout time.Duration
}

// NewScriptChecker creates a probe over script
func NewScriptChecker(script StatusReporter) *ScriptChecker {
	return &ScriptChecker{
		Script:  script,
		Timeout: 30 * time.Second,
	}
}

// Check reports alive when the script says the server is running. A script
// failure is reported as not alive with the error as message.
func (s *ScriptChecker) Check(ctx context.Context) Result {
	start := time.Now()

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	running, err := s.Script.IsRunning(ctx)
	if err != nil {
		return result(start, false, "status failed: %v", err)
	}
	if running {
		return result(start, true, "server is running")
	}
	return result(start, false, "server is not running")
}

// Type returns the probe type
func (s *ScriptChecker) Type() CheckType {
	return CheckTypeScript
}

// WithTimeout sets the status invocation timeout
func (s *ScriptChecker) WithTimeout(timeout time.Duration) *ScriptChecker {
	s.Timeout = timeout
	return s
}
