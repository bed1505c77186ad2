package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ManagedResourceRef identifies a remote management resource returned by discovery
type ManagedResourceRef struct {
	ResourceID   string // Opaque identifier, e.g. "WebSphere:feature=kernel,name=ServerInfo"
	ResourceType string // Implementation class reported by the server
	DetailURL    string // Link to the resource detail document
}

// TypedAttribute is a single attribute value read from a managed resource.
// Value is always textual; callers parse it according to DeclaredType.
type TypedAttribute struct {
	Name         string
	Value        string
	DeclaredType string
}

// OperationDescriptor describes an invocable operation of a managed resource
type OperationDescriptor struct {
	Name      string
	InvokeURL string
	Signature []string
}

// ServerInfo is a projection over the attributes of the kernel ServerInfo resource
type ServerInfo struct {
	ServerName         string
	DefaultHostname    string
	UserDirectory      string
	InstallDirectory   string
	PlatformVersion    string
	JavaSpecVersion    string
	JavaRuntimeVersion string
}

// Attribute names mapped onto ServerInfo
const (
	AttrName               = "Name"
	AttrDefaultHostname    = "DefaultHostname"
	AttrUserDirectory      = "UserDirectory"
	AttrInstallDirectory   = "InstallDirectory"
	AttrLibertyVersion     = "LibertyVersion"
	AttrJavaSpecVersion    = "JavaSpecVersion"
	AttrJavaRuntimeVersion = "JavaRuntimeVersion"

	// AttrState is the attribute holding an application's state
	AttrState = "State"
)

// ServerInfoFromAttributes maps attributes onto a ServerInfo.
// Unknown attribute names are ignored.
func ServerInfoFromAttributes(attrs []TypedAttribute) ServerInfo {
	var info ServerInfo
	for _, attr := range attrs {
		switch attr.Name {
		case AttrName:
			info.ServerName = attr.Value
		case AttrDefaultHostname:
			info.DefaultHostname = attr.Value
		case AttrUserDirectory:
			info.UserDirectory = attr.Value
		case AttrInstallDirectory:
			info.InstallDirectory = attr.Value
		case AttrLibertyVersion:
			info.PlatformVersion = attr.Value
		case AttrJavaSpecVersion:
			info.JavaSpecVersion = attr.Value
		case AttrJavaRuntimeVersion:
			info.JavaRuntimeVersion = attr.Value
		}
	}
	return info
}

// ApplicationStatus reports the state of one deployed application
type ApplicationStatus struct {
	ApplicationName string
	State           string
}

// ErrMalformedResourceID is returned when a resource ID has no usable name= component
var ErrMalformedResourceID = errors.New("malformed resource id")

// ResourceName extracts the value of the name= key from a resource ID such as
// "WebSphere:service=com.ibm.websphere.application.ApplicationMBean,name=sample".
func ResourceName(resourceID string) (string, error) {
	_, props, found := strings.Cut(resourceID, ":")
	if !found {
		return "", fmt.Errorf("%w: %q has no domain separator", ErrMalformedResourceID, resourceID)
	}

	for _, prop := range strings.Split(props, ",") {
		key, value, ok := strings.Cut(prop, "=")
		if !ok {
			return "", fmt.Errorf("%w: %q has property without value", ErrMalformedResourceID, resourceID)
		}
		if strings.TrimSpace(key) == "name" {
			if value == "" {
				return "", fmt.Errorf("%w: %q has empty name", ErrMalformedResourceID, resourceID)
			}
			return value, nil
		}
	}

	return "", fmt.Errorf("%w: %q has no name property", ErrMalformedResourceID, resourceID)
}

// LifecycleState is the orchestrator-owned state of a managed server run
type LifecycleState string

const (
	StateNotStarted        LifecycleState = "not_started"
	StateLaunching         LifecycleState = "launching"
	StateAwaitingReadiness LifecycleState = "awaiting_readiness"
	StateReady             LifecycleState = "ready"
	StateStoppingPrimary   LifecycleState = "stopping_primary"
	StateStoppingFallback  LifecycleState = "stopping_fallback"
	StateStopped           LifecycleState = "stopped"
	StateFailed            LifecycleState = "failed"
)

// AllStates lists every lifecycle state in transition order
var AllStates = []LifecycleState{
	StateNotStarted,
	StateLaunching,
	StateAwaitingReadiness,
	StateReady,
	StateStoppingPrimary,
	StateStoppingFallback,
	StateStopped,
	StateFailed,
}

// IsTerminal reports whether no further transitions are allowed in this run
func (s LifecycleState) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}

var transitions = map[LifecycleState][]LifecycleState{
	StateNotStarted:        {StateLaunching},
	StateLaunching:         {StateAwaitingReadiness, StateFailed},
	StateAwaitingReadiness: {StateReady, StateFailed},
	StateReady:             {StateStoppingPrimary, StateFailed},
	StateStoppingPrimary:   {StateStoppingFallback, StateStopped, StateFailed},
	StateStoppingFallback:  {StateStopped, StateFailed},
}

// CanTransitionTo reports whether next is a legal successor of s
func (s LifecycleState) CanTransitionTo(next LifecycleState) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition records one lifecycle state change
type Transition struct {
	From LifecycleState `json:"from"`
	To   LifecycleState `json:"to"`
	At   time.Time      `json:"at"`
}

// Session is the persisted record of one orchestrated server run
type Session struct {
	ID          string         `json:"id"`
	ServerName  string         `json:"server_name"`
	SourceDir   string         `json:"source_dir,omitempty"`
	LogFile     string         `json:"log_file,omitempty"`
	Pid         int            `json:"pid,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	ReadyAt     *time.Time     `json:"ready_at,omitempty"`
	EndedAt     *time.Time     `json:"ended_at,omitempty"`
	State       LifecycleState `json:"state"`
	Transitions []Transition   `json:"transitions"`
	LastError   string         `json:"last_error,omitempty"`
}
