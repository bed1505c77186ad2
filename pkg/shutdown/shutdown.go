package shutdown

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/olrunner/pkg/health"
	"github.com/cuemby/olrunner/pkg/log"
	"github.com/cuemby/olrunner/pkg/metrics"
	"github.com/rs/zerolog"
)

const (
	TierPrimary  = "primary"
	TierFallback = "fallback"

	// DefaultConfirmTimeout bounds how long a tier's effect is awaited
	DefaultConfirmTimeout = 30 * time.Second

	// DefaultProbeInterval is the delay between liveness probes while confirming
	DefaultProbeInterval = time.Second
)

// ErrStillRunning is the cause recorded when a tier completed but the
// server kept running
var ErrStillRunning = errors.New("server still running")

// Tier is one way of asking the server to stop
type Tier interface {
	Name() string
	Stop(ctx context.Context) error
}

type tierFunc struct {
	name string
	fn   func(ctx context.Context) error
}

// NewTier wraps fn as a named tier
func NewTier(name string, fn func(ctx context.Context) error) Tier {
	return &tierFunc{name: name, fn: fn}
}

func (t *tierFunc) Name() string                   { return t.name }
func (t *tierFunc) Stop(ctx context.Context) error { return t.fn(ctx) }

// Attempt records one tier execution
type Attempt struct {
	Level        string // primary or fallback
	Tier         string
	Err          error
	StillRunning bool
	Duration     time.Duration
}

// Outcome is a successful shutdown
type Outcome struct {
	Attempts []Attempt
}

// StoppedBy returns the name of the tier after which the server was confirmed down
func (o *Outcome) StoppedBy() string {
	if len(o.Attempts) == 0 {
		return ""
	}
	return o.Attempts[len(o.Attempts)-1].Tier
}

// ShutdownFailedError reports that every tier ran and the server is still running
type ShutdownFailedError struct {
	Attempts []Attempt
	Err      error
}

func (e *ShutdownFailedError) Error() string {
	return fmt.Sprintf("server still running after %d shutdown attempt(s): %v", len(e.Attempts), e.Err)
}

func (e *ShutdownFailedError) Unwrap() error {
	return e.Err
}

// Strategy runs the primary tier, confirms with the probe, then runs the
// fallback tier if the server is still up or the primary tier failed
type Strategy struct {
	Primary  Tier
	Fallback Tier

	// Probe reports whether the server is still alive
	Probe health.Checker

	// ConfirmTimeout is how long to wait for the probe to report the server
	// down after a tier returns. Zero means a single probe.
	ConfirmTimeout time.Duration
	ProbeInterval  time.Duration

	// OnTier is called before each tier runs
	OnTier func(level string)
}

// NewStrategy creates a strategy with default confirmation timings
func NewStrategy(primary, fallback Tier, probe health.Checker) *Strategy {
	return &Strategy{
		Primary:        primary,
		Fallback:       fallback,
		Probe:          probe,
		ConfirmTimeout: DefaultConfirmTimeout,
		ProbeInterval:  DefaultProbeInterval,
	}
}

// Shutdown runs the tiers in order, probing the server after each one. A
// tier returning an error never aborts the sequence: the next tier still
// runs, and only a server alive after the last tier is a failure.
func (s *Strategy) Shutdown(ctx context.Context) (*Outcome, error) {
	if s.Probe == nil {
		return nil, fmt.Errorf("shutdown strategy has no probe")
	}

	logger := log.WithComponent("shutdown")

	var attempts []Attempt
	var lastErr error

	type step struct {
		level string
		tier  Tier
	}
	var steps []step
	for _, st := range []step{{TierPrimary, s.Primary}, {TierFallback, s.Fallback}} {
		if st.tier != nil {
			steps = append(steps, st)
		}
	}

	for i, st := range steps {
		if err := ctx.Err(); err != nil {
			return nil, &ShutdownFailedError{Attempts: attempts, Err: err}
		}

		attempt := s.run(ctx, logger, st.level, st.tier)
		attempts = append(attempts, attempt)

		// A failing tier hands over to the next one even if the server looks down
		last := i == len(steps)-1
		if !attempt.StillRunning && (attempt.Err == nil || last) {
			return &Outcome{Attempts: attempts}, nil
		}
		lastErr = attempt.Err
		if lastErr == nil {
			lastErr = fmt.Errorf("%w after %s tier %s", ErrStillRunning, st.level, st.tier.Name())
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no shutdown tiers configured")
	}
	logger.Error().Err(lastErr).Int("attempts", len(attempts)).Msg("Shutdown failed")
	return nil, &ShutdownFailedError{Attempts: attempts, Err: lastErr}
}

func (s *Strategy) run(ctx context.Context, parent zerolog.Logger, level string, tier Tier) Attempt {
	logger := parent.With().Str("tier_level", level).Str("tier", tier.Name()).Logger()
	if s.OnTier != nil {
		s.OnTier(level)
	}

	start := time.Now()
	attempt := Attempt{Level: level, Tier: tier.Name()}

	logger.Info().Msg("Running shutdown tier")
	if err := tier.Stop(ctx); err != nil {
		logger.Warn().Err(err).Msg("Shutdown tier failed")
		attempt.Err = err
		attempt.StillRunning = s.Probe.Check(ctx).Healthy
	} else {
		attempt.StillRunning = s.confirm(ctx, logger)
	}
	attempt.Duration = time.Since(start)

	outcome := "stopped"
	switch {
	case attempt.Err != nil:
		outcome = "error"
	case attempt.StillRunning:
		outcome = "still_running"
	}
	metrics.ShutdownAttempts.WithLabelValues(level, outcome).Inc()
	logger.Info().Str("outcome", outcome).Dur("duration", attempt.Duration).Msg("Shutdown tier finished")

	return attempt
}

// confirm polls the probe until it reports the server down or the confirm
// timeout elapses. It returns true if the server is still running.
func (s *Strategy) confirm(ctx context.Context, logger zerolog.Logger) bool {
	deadline := time.Now().Add(s.ConfirmTimeout)
	interval := s.ProbeInterval
	if interval <= 0 {
		interval = DefaultProbeInterval
	}

	for {
		r := s.Probe.Check(ctx)
		if !r.Healthy {
			return false
		}
		logger.Debug().Str("probe", r.Message).Msg("Server still alive")

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		if remaining < interval {
			interval = remaining
		}

		select {
		case <-ctx.Done():
			return true
		case <-time.After(interval):
		}
	}
}
