package lifecycle

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cuemby/olrunner/pkg/events"
	"github.com/cuemby/olrunner/pkg/health"
	"github.com/cuemby/olrunner/pkg/log"
	"github.com/cuemby/olrunner/pkg/manager"
	"github.com/cuemby/olrunner/pkg/metrics"
	"github.com/cuemby/olrunner/pkg/mgmt"
	"github.com/cuemby/olrunner/pkg/readiness"
	"github.com/cuemby/olrunner/pkg/shutdown"
	"github.com/cuemby/olrunner/pkg/storage"
	"github.com/cuemby/olrunner/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultGracePeriod     = 30 * time.Second
	DefaultReadinessWindow = 60 * time.Second
	DefaultExitGrace       = 10 * time.Second
)

// Config holds the settings of one orchestrated run
type Config struct {
	ServerName string

	// SourceDir is the server project directory. When set, a running marker
	// file is kept next to it while the server is ready.
	SourceDir string

	// EndpointFile is where the server publishes its management address
	EndpointFile string

	// Management configures the client built once the server is ready.
	// Its Endpoint is taken from EndpointFile.
	Management mgmt.Config

	// GracePeriod is waited after launch before the log is polled at all
	GracePeriod time.Duration

	// ReadinessWindow bounds log polling after the grace period (default: 60s)
	ReadinessWindow time.Duration
	PollInterval    time.Duration
	Predicate       readiness.Predicate

	// ExitGrace is how long the launch process gets to exit after a stop
	// before it is killed (default: 10s)
	ExitGrace time.Duration

	PrimaryStop    shutdown.Tier
	FallbackStop   shutdown.Tier
	ConfirmTimeout time.Duration
	ProbeInterval  time.Duration

	// Probes are extra liveness probes combined with the management probe
	Probes []health.Checker
}

// Option configures optional collaborators of an Orchestrator
type Option func(*Orchestrator)

// WithEvents publishes lifecycle events to broker
func WithEvents(broker *events.Broker) Option {
	return func(o *Orchestrator) { o.broker = broker }
}

// WithStore records the session in store on every transition
func WithStore(store storage.Store) Option {
	return func(o *Orchestrator) { o.store = store }
}

// Orchestrator drives one server run through its lifecycle states. It is
// the only writer of the state.
type Orchestrator struct {
	cfg      Config
	launcher Launcher
	broker   *events.Broker
	store    storage.Store
	logger   zerolog.Logger

	mu      sync.Mutex
	state   types.LifecycleState
	session *types.Session
	launch  *Launch
	client  *mgmt.Client
	manager *manager.Manager
	marker  string
}

// New validates cfg and creates an orchestrator in NotStarted
func New(cfg Config, launcher Launcher, opts ...Option) (*Orchestrator, error) {
	if launcher == nil {
		return nil, fmt.Errorf("launcher is required")
	}
	if cfg.EndpointFile == "" {
		return nil, fmt.Errorf("endpoint file is required")
	}
	if cfg.PrimaryStop == nil {
		return nil, fmt.Errorf("primary stop tier is required")
	}
	if cfg.GracePeriod < 0 {
		return nil, fmt.Errorf("grace period must not be negative")
	}
	if cfg.ReadinessWindow <= 0 {
		cfg.ReadinessWindow = DefaultReadinessWindow
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = readiness.DefaultPollInterval
	}
	if cfg.Predicate == nil {
		cfg.Predicate = readiness.DefaultPredicate
	}
	if cfg.ExitGrace <= 0 {
		cfg.ExitGrace = DefaultExitGrace
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = shutdown.DefaultConfirmTimeout
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = shutdown.DefaultProbeInterval
	}

	id := uuid.New().String()
	o := &Orchestrator{
		cfg:      cfg,
		launcher: launcher,
		logger:   log.WithSessionID(id).With().Str("component", "lifecycle").Logger(),
		state:    types.StateNotStarted,
		session: &types.Session{
			ID:         id,
			ServerName: cfg.ServerName,
			SourceDir:  cfg.SourceDir,
			State:      types.StateNotStarted,
		},
	}
	if cfg.SourceDir != "" {
		o.marker = RunningMarkerPath(cfg.SourceDir)
	}
	for _, opt := range opts {
		opt(o)
	}

	metrics.SetLifecycleState(types.StateNotStarted)
	return o, nil
}

// SessionID returns the ID of this run
func (o *Orchestrator) SessionID() string {
	return o.session.ID
}

// State returns the current lifecycle state
func (o *Orchestrator) State() types.LifecycleState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Session returns a copy of the session record
func (o *Orchestrator) Session() types.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := *o.session
	s.Transitions = append([]types.Transition(nil), o.session.Transitions...)
	return s
}

// Manager returns the server manager. It is only available once Ready.
func (o *Orchestrator) Manager() (*manager.Manager, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != types.StateReady || o.manager == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotReady, o.state)
	}
	return o.manager, nil
}

// Start launches the server and blocks until it is Ready or Failed. The
// grace period is waited without polling; the log is then polled for at most
// the readiness window. Any failure leaves the orchestrator in Failed with
// the launch process killed.
func (o *Orchestrator) Start(ctx context.Context) error {
	started := time.Now()

	o.mu.Lock()
	if o.state != types.StateNotStarted {
		state := o.state
		o.mu.Unlock()
		return invalidState("start", state)
	}
	o.session.StartedAt = started
	o.transitionLocked(types.StateLaunching)
	o.mu.Unlock()

	launch, err := o.launcher.Launch(ctx)
	if err != nil {
		return o.failStartup(started, fmt.Errorf("failed to launch server: %w", err))
	}

	o.mu.Lock()
	o.launch = launch
	o.session.Pid = launch.Process.Pid()
	o.session.LogFile = launch.LogFile
	o.transitionLocked(types.StateAwaitingReadiness)
	o.mu.Unlock()

	o.logger.Info().Int("pid", launch.Process.Pid()).Str("log_file", launch.LogFile).Msg("Server launched")
	o.publish(events.NewEvent(events.EventServerLaunched, o.session.ID, "server launched").
		With("pid", strconv.Itoa(launch.Process.Pid())))

	if err := o.awaitReadiness(ctx, started, launch); err != nil {
		return o.failStartup(started, err)
	}

	if err := o.connect(ctx, started); err != nil {
		return o.failStartup(started, err)
	}

	o.mu.Lock()
	if o.state != types.StateAwaitingReadiness {
		state := o.state
		o.mu.Unlock()
		return invalidState("start", state)
	}
	now := time.Now()
	o.session.ReadyAt = &now
	o.transitionLocked(types.StateReady)
	marker := o.marker
	o.mu.Unlock()

	if marker != "" {
		if err := writeRunningMarker(marker, o.session.ID, launch.Process.Pid()); err != nil {
			o.logger.Warn().Err(err).Msg("Running marker not written")
		}
	}

	elapsed := time.Since(started)
	metrics.StartupDuration.WithLabelValues("ready").Observe(elapsed.Seconds())
	metrics.UpdateComponent(metrics.ComponentServer, true, "ready")
	metrics.UpdateComponent(metrics.ComponentManagement, true, o.client.BaseURL().String())
	o.logger.Info().Dur("startup", elapsed).Msg("Server ready")
	o.publish(events.NewEvent(events.EventServerReady, o.session.ID, "server ready").
		With("startup", elapsed.String()))

	go o.watch(launch.Process)
	return nil
}

type readinessResult struct {
	outcome readiness.Outcome
	err     error
}

// awaitReadiness waits out the grace period and then hands polling to a
// background monitor. The result comes back through a channel written at
// most once; the overall deadline is enforced here as well.
func (o *Orchestrator) awaitReadiness(ctx context.Context, started time.Time, launch *Launch) error {
	grace := o.cfg.GracePeriod
	window := o.cfg.ReadinessWindow

	if grace > 0 {
		o.logger.Info().Dur("grace", grace).Msg("Waiting grace period before polling")
		timer := time.NewTimer(grace)
		select {
		case <-timer.C:
		case <-launch.Process.Done():
			timer.Stop()
			return ErrProcessExited
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	monitorCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan readinessResult, 1)
	go func() {
		outcome, err := readiness.AwaitReady(monitorCtx, launch.Log, o.cfg.Predicate, o.cfg.PollInterval, window)
		results <- readinessResult{outcome: outcome, err: err}
	}()

	deadline := time.NewTimer(time.Until(started.Add(grace + window)))
	defer deadline.Stop()

	o.logger.Info().Dur("window", window).Msg("Polling log for readiness")
	select {
	case r := <-results:
		if r.err != nil {
			return r.err
		}
		if r.outcome != readiness.OutcomeReady {
			return &ReadinessTimeoutError{Grace: grace, Window: window}
		}
		return nil
	case <-launch.Process.Done():
		return ErrProcessExited
	case <-deadline.C:
		return &ReadinessTimeoutError{Grace: grace, Window: window}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// connect builds the management client from the endpoint file. The file is
// retried until the startup deadline since it can lag the ready message.
func (o *Orchestrator) connect(ctx context.Context, started time.Time) error {
	deadline := started.Add(o.cfg.GracePeriod + o.cfg.ReadinessWindow)
	for {
		endpoint, err := mgmt.ReadEndpointFile(o.cfg.EndpointFile)
		if err == nil {
			cfg := o.cfg.Management
			cfg.Endpoint = endpoint.String()
			client, err := mgmt.NewClient(cfg)
			if err != nil {
				return err
			}

			o.mu.Lock()
			o.client = client
			o.manager = manager.NewManager(client)
			o.mu.Unlock()
			o.logger.Info().Str("endpoint", client.BaseURL().String()).Msg("Management client connected")
			return nil
		}

		if time.Now().After(deadline) {
			return &ReadinessTimeoutError{
				Grace:  o.cfg.GracePeriod,
				Window: o.cfg.ReadinessWindow,
				Err:    err,
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.cfg.PollInterval):
		}
	}
}

func (o *Orchestrator) failStartup(started time.Time, cause error) error {
	metrics.StartupDuration.WithLabelValues("failed").Observe(time.Since(started).Seconds())
	o.logger.Error().Err(cause).Msg("Server startup failed")
	o.publish(events.NewEvent(events.EventStartupFailed, o.session.ID, cause.Error()))
	o.fail(cause)
	return cause
}

// fail enters Failed and kills the launch process if it is still alive
func (o *Orchestrator) fail(cause error) {
	o.mu.Lock()
	if !o.state.CanTransitionTo(types.StateFailed) {
		o.mu.Unlock()
		return
	}
	o.session.LastError = cause.Error()
	o.transitionLocked(types.StateFailed)
	launch := o.launch
	marker := o.marker
	o.mu.Unlock()

	metrics.UpdateComponent(metrics.ComponentServer, false, cause.Error())
	metrics.UpdateComponent(metrics.ComponentManagement, false, "server failed")

	if launch != nil {
		o.kill(launch.Process)
	}
	if marker != "" {
		if err := removeRunningMarker(marker); err != nil {
			o.logger.Warn().Err(err).Msg("Running marker not removed")
		}
	}
}

func (o *Orchestrator) kill(proc Process) {
	if !proc.Alive() {
		return
	}
	o.logger.Warn().Int("pid", proc.Pid()).Msg("Killing launch process")
	if err := proc.Kill(); err != nil {
		o.logger.Error().Err(err).Int("pid", proc.Pid()).Msg("Failed to kill launch process")
		return
	}
	metrics.ProcessKills.Inc()
	o.publish(events.NewEvent(events.EventProcessKilled, o.session.ID, "launch process killed").
		With("pid", strconv.Itoa(proc.Pid())))
}

// watch fails a ready server whose launch process exits on its own
func (o *Orchestrator) watch(proc Process) {
	<-proc.Done()

	o.mu.Lock()
	ready := o.state == types.StateReady
	o.mu.Unlock()
	if !ready {
		return
	}

	event := o.logger.Error().Int("pid", proc.Pid())
	if e, ok := proc.(interface{ ExitErr() error }); ok && e.ExitErr() != nil {
		event = event.Err(e.ExitErr())
	}
	event.Msg("Launch process exited while server was ready")
	o.publish(events.NewEvent(events.EventProcessExited, o.session.ID, "launch process exited"))
	o.fail(ErrProcessExited)
}

// Stop shuts a ready server down through the configured tiers. The launch
// process is terminated afterwards: gracefully when the server stopped,
// immediately when every tier failed.
func (o *Orchestrator) Stop(ctx context.Context) (*shutdown.Outcome, error) {
	o.mu.Lock()
	if o.state != types.StateReady {
		state := o.state
		o.mu.Unlock()
		return nil, invalidState("stop", state)
	}
	// Leaving Ready first keeps the exit watcher from failing an intended stop
	o.transitionLocked(types.StateStoppingPrimary)
	probes := append([]health.Checker{health.NewManagementChecker(o.client)}, o.cfg.Probes...)
	launch := o.launch
	marker := o.marker
	o.mu.Unlock()

	strategy := shutdown.NewStrategy(o.cfg.PrimaryStop, o.cfg.FallbackStop, health.Any(probes...))
	strategy.ConfirmTimeout = o.cfg.ConfirmTimeout
	strategy.ProbeInterval = o.cfg.ProbeInterval
	strategy.OnTier = func(level string) {
		if level == shutdown.TierFallback {
			o.mu.Lock()
			o.transitionLocked(types.StateStoppingFallback)
			o.mu.Unlock()
		}
		o.publish(events.NewEvent(events.EventShutdownTier, o.session.ID, "running "+level+" shutdown tier").
			With("level", level))
	}

	outcome, err := strategy.Shutdown(ctx)
	if err != nil {
		o.publish(events.NewEvent(events.EventShutdownFailed, o.session.ID, err.Error()))
		o.fail(err)
		return nil, err
	}

	o.mu.Lock()
	o.transitionLocked(types.StateStopped)
	o.mu.Unlock()

	if err := launch.Process.Terminate(o.cfg.ExitGrace); err != nil {
		o.logger.Warn().Err(err).Msg("Failed to terminate launch process")
	}
	if marker != "" {
		if err := removeRunningMarker(marker); err != nil {
			o.logger.Warn().Err(err).Msg("Running marker not removed")
		}
	}

	metrics.UpdateComponent(metrics.ComponentServer, false, "stopped")
	metrics.UpdateComponent(metrics.ComponentManagement, false, "stopped")
	o.logger.Info().Str("stopped_by", outcome.StoppedBy()).Msg("Server stopped")
	o.publish(events.NewEvent(events.EventServerStopped, o.session.ID, "server stopped").
		With("stopped_by", outcome.StoppedBy()))
	return outcome, nil
}

// StatusReport describes a ready server
type StatusReport struct {
	State        types.LifecycleState
	Session      types.Session
	Server       types.ServerInfo
	Applications []types.ApplicationStatus
}

// Status queries the ready server for its information and application states
func (o *Orchestrator) Status(ctx context.Context) (*StatusReport, error) {
	m, err := o.Manager()
	if err != nil {
		return nil, err
	}

	info, err := m.ServerInfo(ctx)
	if err != nil {
		return nil, err
	}
	apps, err := m.ApplicationStatuses(ctx)
	if err != nil {
		return nil, err
	}

	return &StatusReport{
		State:        o.State(),
		Session:      o.Session(),
		Server:       info,
		Applications: apps,
	}, nil
}

// RestartApplications restarts every application of the ready server
func (o *Orchestrator) RestartApplications(ctx context.Context) (int, error) {
	m, err := o.Manager()
	if err != nil {
		return 0, err
	}

	restarted, err := m.RestartAllApplications(ctx)
	o.publish(events.NewEvent(events.EventApplicationsReset, o.session.ID, "applications restarted").
		With("count", strconv.Itoa(restarted)))
	return restarted, err
}

// transitionLocked moves to next if allowed. Callers hold o.mu.
func (o *Orchestrator) transitionLocked(next types.LifecycleState) {
	prev := o.state
	if prev == next {
		return
	}
	if !prev.CanTransitionTo(next) {
		o.logger.Error().Str("from", string(prev)).Str("to", string(next)).Msg("Illegal transition ignored")
		return
	}

	now := time.Now()
	o.state = next
	o.session.State = next
	o.session.Transitions = append(o.session.Transitions, types.Transition{From: prev, To: next, At: now})
	if next.IsTerminal() {
		o.session.EndedAt = &now
	}

	metrics.SetLifecycleState(next)
	o.logger.Info().Str("from", string(prev)).Str("to", string(next)).Msg("Lifecycle transition")

	if o.store != nil {
		if err := o.store.SaveSession(o.session); err != nil {
			o.logger.Warn().Err(err).Msg("Failed to record session")
		}
	}
	o.publish(events.NewEvent(events.EventStateChanged, o.session.ID, string(prev)+" -> "+string(next)).
		With("from", string(prev)).
		With("to", string(next)))
}

func (o *Orchestrator) publish(event *events.Event) {
	if o.broker != nil {
		o.broker.Publish(event)
	}
}
