package replication

import (
	"errors"
	"fmt"
)

// Phase names the replication step an outcome or error belongs to
type Phase string

const (
	PhaseTarget    Phase = "target"
	PhaseSite      Phase = "site"
	PhaseWorkspace Phase = "workspace"
	PhaseAsset     Phase = "asset"
	PhaseNode      Phase = "node"
)

var (
	// ErrUnknownTarget is wrapped when a configuration names a target that is not defined
	ErrUnknownTarget = errors.New("unknown target")

	// ErrCycle is wrapped when base workspaces or node ancestors form a cycle
	ErrCycle = errors.New("dependency cycle")

	// ErrMissingSite is wrapped when a node does not belong to a site
	ErrMissingSite = errors.New("node has no site")
)

// SyncError is raised when a target answers a synchronization step with an unexpected status
type SyncError struct {
	Phase  Phase
	Action string
	// Resource is the request path below the API prefix, e.g. nodes/{id}
	Resource   string
	Target     string
	StatusCode int
	// StatusLine is the literal status line returned by the target
	StatusLine string
	// Message is the error reported in the response body, if any
	Message string
}

func (e *SyncError) Error() string {
	msg := fmt.Sprintf("%s %s on target %q: unexpected response %s", e.Action, e.Resource, e.Target, e.StatusLine)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// DependencyError reports a configuration or dependency problem that prevents
// replicating to a target
type DependencyError struct {
	Phase   Phase
	Target  string
	Message string
	Err     error
}

func (e *DependencyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}
