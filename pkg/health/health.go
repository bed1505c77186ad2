package health

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CheckType identifies what a probe talks to
type CheckType string

const (
	CheckTypeManagement CheckType = "management"
	CheckTypeScript     CheckType = "script"
	CheckTypeTCP        CheckType = "tcp"
	CheckTypeHTTP       CheckType = "http"
	CheckTypeAny        CheckType = "any"
)

// Result represents the outcome of a liveness probe
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is the interface that all liveness probes implement
type Checker interface {
	// Check probes the server and reports whether it is alive
	Check(ctx context.Context) Result

	// Type returns the type of probe
	Type() CheckType
}

func result(start time.Time, healthy bool, format string, args ...interface{}) Result {
	return Result{
		Healthy:   healthy,
		Message:   fmt.Sprintf(format, args...),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// anyChecker reports alive as soon as one of its probes does
type anyChecker struct {
	checkers []Checker
}

// Any combines probes so that the server counts as alive if any probe
// says so. Probes run in order and stop at the first alive result. With no
// probes the result is never alive.
func Any(checkers ...Checker) Checker {
	return &anyChecker{checkers: checkers}
}

func (a *anyChecker) Check(ctx context.Context) Result {
	start := time.Now()

	var messages []string
	for _, c := range a.checkers {
		r := c.Check(ctx)
		if r.Healthy {
			return result(start, true, "%s: %s", c.Type(), r.Message)
		}
		messages = append(messages, fmt.Sprintf("%s: %s", c.Type(), r.Message))
	}

	if len(messages) == 0 {
		return result(start, false, "no probes configured")
	}
	return result(start, false, "%s", strings.Join(messages, "; "))
}

func (a *anyChecker) Type() CheckType {
	return CheckTypeAny
}
