package readiness

import (
	"context"
	"strings"
	"time"

	"github.com/cuemby/olrunner/pkg/log"
	"github.com/cuemby/olrunner/pkg/metrics"
	"github.com/rs/zerolog"
)

const (
	// AuditTag prefixes audit-level server messages
	AuditTag = "[AUDIT   ]"

	// DefaultAuditCode is the message code of the server-ready message
	DefaultAuditCode = "CWWKF0011I:"

	// DefaultReadyMessage is the text of the server-ready message
	DefaultReadyMessage = "ready to run a smarter planet"

	// DefaultPollInterval is the delay between log reads
	DefaultPollInterval = time.Second
)

// Predicate reports whether a log line signals readiness
type Predicate func(line string) bool

// MarkerPredicate matches an audit line carrying both code and message
func MarkerPredicate(code, message string) Predicate {
	tagged := AuditTag + " " + code
	return func(line string) bool {
		return strings.Contains(line, tagged) && strings.Contains(line, message)
	}
}

// DefaultPredicate matches the server-ready audit message
var DefaultPredicate = MarkerPredicate(DefaultAuditCode, DefaultReadyMessage)

// Outcome is the result of waiting for readiness
type Outcome int

const (
	OutcomeTimedOut Outcome = iota
	OutcomeReady
)

func (o Outcome) String() string {
	if o == OutcomeReady {
		return "ready"
	}
	return "timed_out"
}

// Monitor tails a log source looking for a readiness line. Its cursor only
// moves forward, so lines are inspected at most once.
type Monitor struct {
	source       Source
	predicate    Predicate
	pollInterval time.Duration
	offset       int64
	logger       zerolog.Logger
}

// NewMonitor creates a monitor starting at the beginning of source
func NewMonitor(source Source, predicate Predicate, pollInterval time.Duration) *Monitor {
	if predicate == nil {
		predicate = DefaultPredicate
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Monitor{
		source:       source,
		predicate:    predicate,
		pollInterval: pollInterval,
		logger:       log.WithComponent("readiness"),
	}
}

// Offset returns the byte position up to which lines have been inspected
func (m *Monitor) Offset() int64 {
	return m.offset
}

// Scan runs one poll cycle. It stops at the first matching line and leaves
// the cursor just past it.
func (m *Monitor) Scan() (bool, error) {
	metrics.ReadinessPolls.Inc()

	lines, err := m.source.ReadLines(m.offset)
	for _, line := range lines {
		if line.End <= m.offset {
			continue
		}
		m.offset = line.End
		if m.predicate(line.Text) {
			m.logger.Debug().Int64("offset", m.offset).Str("line", line.Text).Msg("Readiness line found")
			return true, nil
		}
	}
	return false, err
}

// AwaitReady polls until a readiness line appears or timeout elapses. A
// timeout <= 0 waits until ctx is done. OutcomeTimedOut is never returned
// before the full timeout has passed. Cancellation returns ctx.Err().
func (m *Monitor) AwaitReady(ctx context.Context, timeout time.Duration) (Outcome, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	timer := time.NewTimer(m.pollInterval)
	defer timer.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return OutcomeTimedOut, err
		}

		ready, err := m.Scan()
		if err != nil {
			m.logger.Warn().Err(err).Msg("Failed to read log")
		}
		if ready {
			return OutcomeReady, nil
		}

		wait := m.pollInterval
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return OutcomeTimedOut, nil
			}
			if remaining < wait {
				wait = remaining
			}
		}

		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return OutcomeTimedOut, ctx.Err()
		case <-timer.C:
		}
	}
}

// AwaitReady waits for predicate to match a line of source
func AwaitReady(ctx context.Context, source Source, predicate Predicate, pollInterval, timeout time.Duration) (Outcome, error) {
	return NewMonitor(source, predicate, pollInterval).AwaitReady(ctx, timeout)
}
