package app

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/stacklok/content-replicator/internal/replication"
)

// outcomeView is the printed form of one target run
type outcomeView struct {
	Node          string `json:"node"`
	Workspace     string `json:"workspace"`
	Trigger       string `json:"trigger"`
	Configuration string `json:"configuration"`
	Target        string `json:"target"`
	Status        string `json:"status"`
	Phase         string `json:"phase,omitempty"`
	Error         string `json:"error,omitempty"`
	DurationMS    int64  `json:"durationMs"`
}

func outcomeViews(reports []*replication.Report) []outcomeView {
	var views []outcomeView
	for _, report := range reports {
		for _, outcome := range report.Outcomes {
			view := outcomeView{
				Node:          report.Node,
				Workspace:     report.Workspace,
				Trigger:       report.Trigger,
				Configuration: outcome.Configuration,
				Target:        outcome.Target,
				Status:        string(outcome.Status),
				Phase:         string(outcome.Phase),
				DurationMS:    outcome.Duration.Milliseconds(),
			}
			if outcome.Err != nil {
				view.Error = outcome.Err.Error()
			}
			views = append(views, view)
		}
	}
	return views
}

// writeReports prints every outcome of reports as a table or as JSON
func writeReports(w io.Writer, format string, reports []*replication.Report) error {
	views := outcomeViews(reports)
	if views == nil {
		views = []outcomeView{}
	}

	switch format {
	case formatJSON:
		return writeJSON(w, views)
	case formatText, "":
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}

	table := tablewriter.NewWriter(w)
	table.Header("Node", "Workspace", "Configuration", "Target", "Status", "Phase", "Duration", "Error")
	for _, view := range views {
		if err := table.Append([]string{
			view.Node,
			view.Workspace,
			view.Configuration,
			view.Target,
			view.Status,
			view.Phase,
			strconv.FormatInt(view.DurationMS, 10) + "ms",
			view.Error,
		}); err != nil {
			return fmt.Errorf("failed to render report: %w", err)
		}
	}
	return table.Render()
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// unsuccessful counts the outcomes that did not succeed
func unsuccessful(reports []*replication.Report) (failed, total int) {
	for _, report := range reports {
		total += len(report.Outcomes)
		failed += len(report.Failures())
	}
	return failed, total
}
