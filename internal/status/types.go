package status

import "time"

// Phase represents the outcome of the latest replication attempt to a target
type Phase string

const (
	// PhaseReplicating means a replication to the target is in progress
	PhaseReplicating Phase = "Replicating"

	// PhaseComplete means the latest replication to the target succeeded
	PhaseComplete Phase = "Complete"

	// PhaseFailed means the latest replication to the target did not complete
	PhaseFailed Phase = "Failed"
)

// TargetStatus represents the replication state of one target
type TargetStatus struct {
	// Phase represents the outcome of the latest attempt
	Phase Phase `json:"phase"`

	// Message describes the latest failure, empty after a success
	Message string `json:"message,omitempty"`

	// FailedPhase names the replication step that failed (site, workspace, asset, node)
	FailedPhase string `json:"failedPhase,omitempty"`

	// LastAttempt is the timestamp of the latest attempt
	LastAttempt *time.Time `json:"lastAttempt,omitempty"`

	// LastSuccess is the timestamp of the latest successful attempt
	LastSuccess *time.Time `json:"lastSuccess,omitempty"`

	// FailureCount is the number of consecutive failed attempts
	FailureCount int `json:"failureCount,omitempty"`

	// Attempts is the total number of attempts recorded
	Attempts int `json:"attempts,omitempty"`

	// LastNode is the node of the latest attempt
	LastNode string `json:"lastNode,omitempty"`

	// LastWorkspace is the workspace of the latest attempt
	LastWorkspace string `json:"lastWorkspace,omitempty"`

	// LastConfiguration is the replication configuration of the latest attempt
	LastConfiguration string `json:"lastConfiguration,omitempty"`
}

// Attempt describes one replication of a published node to a target
type Attempt struct {
	Configuration string
	Node          string
	Workspace     string
	Succeeded     bool
	// Phase is the step that failed, empty on success
	Phase   string
	Message string
	At      time.Time
}
