package replication

import "time"

// Status is the result of replicating a node to one target
type Status string

const (
	// StatusSucceeded means site, workspace and node were synchronized
	StatusSucceeded Status = "succeeded"

	// StatusSkipped means a site or workspace step failed and the node was not sent
	StatusSkipped Status = "skipped"

	// StatusFailed means the node step failed or the target could not be resolved
	StatusFailed Status = "failed"
)

// Outcome describes one configuration and target pair of a replication run
type Outcome struct {
	Configuration string
	Target        string
	Status        Status
	// Phase is the step that stopped the run, empty on success
	Phase    Phase
	Err      error
	Duration time.Duration
}

// Report collects the outcomes of replicating one published node
type Report struct {
	Node      string
	Workspace string
	Trigger   string
	Outcomes  []Outcome
}

// Matched reports whether at least one configuration applied
func (r *Report) Matched() bool {
	return len(r.Outcomes) > 0
}

// Succeeded reports whether every target received the node
func (r *Report) Succeeded() bool {
	for _, outcome := range r.Outcomes {
		if outcome.Status != StatusSucceeded {
			return false
		}
	}
	return true
}

// Failures returns the outcomes that did not succeed
func (r *Report) Failures() []Outcome {
	var failures []Outcome
	for _, outcome := range r.Outcomes {
		if outcome.Status != StatusSucceeded {
			failures = append(failures, outcome)
		}
	}
	return failures
}
