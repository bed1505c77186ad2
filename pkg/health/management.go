package health

import (
	"context"
	"time"
)

// Reachability is implemented by the management client
type Reachability interface {
	IsReachable(ctx context.Context) bool
}

// ManagementChecker probes the server's management endpoint
type ManagementChecker struct {
	Client Reachability
}

// NewManagementChecker creates a probe over client
func NewManagementChecker(client Reachability) *ManagementChecker {
	return &ManagementChecker{Client: client}
}

// Check reports alive when the management endpoint answers
func (m *ManagementChecker) Check(ctx context.Context) Result {
	start := time.Now()
	if m.Client == nil {
		return result(start, false, "no management client")
	}
	if m.Client.IsReachable(ctx) {
		return result(start, true, "management endpoint reachable")
	}
	return result(start, false, "management endpoint unreachable")
}

// Type returns the probe type
func (m *ManagementChecker) Type() CheckType {
	return CheckTypeManagement
}
