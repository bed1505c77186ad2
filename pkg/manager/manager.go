package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuemby/olrunner/pkg/log"
	"github.com/cuemby/olrunner/pkg/mgmt"
	"github.com/cuemby/olrunner/pkg/types"
	"github.com/rs/zerolog"
)

// Well-known resource queries
const (
	ServerInfoQuery  = "WebSphere:feature=kernel,name=ServerInfo"
	ApplicationQuery = "WebSphere:service=com.ibm.websphere.application.ApplicationMBean,name=*"
	FrameworkQuery   = "osgi.core:type=framework,version=*,framework=org.eclipse.osgi,uuid=*"

	OperationRestart           = "restart"
	OperationShutdownFramework = "shutdownFramework"
)

var (
	// ErrUnexpectedResourceCount is returned when a singleton resource query
	// does not match exactly one resource
	ErrUnexpectedResourceCount = errors.New("unexpected resource count")

	// ErrOperationNotFound is returned when a resource does not declare a required operation
	ErrOperationNotFound = errors.New("operation not found")

	// ErrNotConnectable is returned when the management endpoint does not answer
	ErrNotConnectable = errors.New("management endpoint not connectable")
)

// Client is the subset of the management client used by the Manager
type Client interface {
	Discover(ctx context.Context, objectQuery, classQuery string) ([]types.ManagedResourceRef, error)
	FetchAttributes(ctx context.Context, ref types.ManagedResourceRef) ([]types.TypedAttribute, error)
	Invoke(ctx context.Context, ref types.ManagedResourceRef, operation string) (bool, error)
	IsReachable(ctx context.Context) bool
}

// Manager exposes server-level queries and commands over the management API
type Manager struct {
	client Client
	logger zerolog.Logger
}

// NewManager creates a Manager backed by client
func NewManager(client Client) *Manager {
	return &Manager{
		client: client,
		logger: log.WithComponent("server-manager"),
	}
}

// NewFromEndpointFile reads the connector address the server published in
// endpointFile and connects a management client to it. cfg.Endpoint is ignored.
func NewFromEndpointFile(endpointFile string, cfg mgmt.Config) (*Manager, error) {
	endpoint, err := mgmt.ReadEndpointFile(endpointFile)
	if err != nil {
		return nil, err
	}
	cfg.Endpoint = endpoint.String()

	client, err := mgmt.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewManager(client), nil
}

// IsConnectable reports whether the management endpoint answers
func (m *Manager) IsConnectable(ctx context.Context) bool {
	reachable := m.client.IsReachable(ctx)
	m.logger.Debug().Bool("reachable", reachable).Msg("Checked management endpoint")
	return reachable
}

// ServerInfo reads the kernel ServerInfo resource
func (m *Manager) ServerInfo(ctx context.Context) (types.ServerInfo, error) {
	ref, err := m.single(ctx, ServerInfoQuery)
	if err != nil {
		return types.ServerInfo{}, err
	}

	attrs, err := m.client.FetchAttributes(ctx, ref)
	if err != nil {
		return types.ServerInfo{}, fmt.Errorf("failed to read server info: %w", err)
	}
	return types.ServerInfoFromAttributes(attrs), nil
}

// ApplicationStatuses returns the state of every deployed application in
// discovery order
func (m *Manager) ApplicationStatuses(ctx context.Context) ([]types.ApplicationStatus, error) {
	refs, err := m.client.Discover(ctx, ApplicationQuery, "")
	if err != nil {
		return nil, fmt.Errorf("failed to discover applications: %w", err)
	}

	statuses := make([]types.ApplicationStatus, 0, len(refs))
	for _, ref := range refs {
		name, err := types.ResourceName(ref.ResourceID)
		if err != nil {
			return nil, err
		}

		attrs, err := m.client.FetchAttributes(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("failed to read state of application %s: %w", name, err)
		}

		status := types.ApplicationStatus{ApplicationName: name}
		for _, attr := range attrs {
			if attr.Name == types.AttrState {
				status.State = attr.Value
				break
			}
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// RestartAllApplications invokes restart on every application. A failure on
// one application does not prevent the others from being restarted; all
// failures are returned joined together with the number of restarts issued.
func (m *Manager) RestartAllApplications(ctx context.Context) (int, error) {
	refs, err := m.client.Discover(ctx, ApplicationQuery, "")
	if err != nil {
		return 0, fmt.Errorf("failed to discover applications: %w", err)
	}

	var (
		restarted int
		errs      []error
	)
	for _, ref := range refs {
		logger := log.WithResource(ref.ResourceID)
		found, err := m.client.Invoke(ctx, ref, OperationRestart)
		switch {
		case err != nil:
			logger.Error().Err(err).Msg("Failed to restart application")
			errs = append(errs, fmt.Errorf("restart %s: %w", ref.ResourceID, err))
		case !found:
			logger.Warn().Msg("Application has no restart operation")
			errs = append(errs, fmt.Errorf("restart %s: %w", ref.ResourceID, ErrOperationNotFound))
		default:
			logger.Info().Msg("Application restart requested")
			restarted++
		}
	}
	return restarted, errors.Join(errs...)
}

// ShutdownFramework invokes shutdownFramework on the single OSGi framework resource
func (m *Manager) ShutdownFramework(ctx context.Context) error {
	ref, err := m.single(ctx, FrameworkQuery)
	if err != nil {
		return err
	}

	found, err := m.client.Invoke(ctx, ref, OperationShutdownFramework)
	if err != nil {
		return fmt.Errorf("failed to shut down framework: %w", err)
	}
	if !found {
		return fmt.Errorf("%s on %s: %w", OperationShutdownFramework, ref.ResourceID, ErrOperationNotFound)
	}

	m.logger.Info().Msg("Framework shutdown requested")
	return nil
}

// StopServer asks a connectable server to shut its framework down. The
// request is asynchronous; callers confirm the stop separately.
func (m *Manager) StopServer(ctx context.Context) error {
	if !m.IsConnectable(ctx) {
		return ErrNotConnectable
	}
	return m.ShutdownFramework(ctx)
}

func (m *Manager) single(ctx context.Context, query string) (types.ManagedResourceRef, error) {
	refs, err := m.client.Discover(ctx, query, "")
	if err != nil {
		return types.ManagedResourceRef{}, fmt.Errorf("failed to discover %s: %w", query, err)
	}
	if len(refs) != 1 {
		m.logger.Error().Str("query", query).Int("count", len(refs)).Msg("Expected exactly one resource")
		return types.ManagedResourceRef{}, fmt.Errorf("%w: %s matched %d resources", ErrUnexpectedResourceCount, query, len(refs))
	}
	return refs[0], nil
}
