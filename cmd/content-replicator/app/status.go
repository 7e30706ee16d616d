package app

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/stacklok/content-replicator/internal/app"
	"github.com/stacklok/content-replicator/internal/config"
	"github.com/stacklok/content-replicator/internal/httpclient"
	"github.com/stacklok/content-replicator/internal/replication"
	"github.com/stacklok/content-replicator/internal/status"
	"github.com/stacklok/content-replicator/internal/versions"
)

// targetView is the printed status of one target
type targetView struct {
	Target       string               `json:"target"`
	BaseURL      string               `json:"baseUrl"`
	Status       *status.TargetStatus `json:"status,omitempty"`
	APIVersion   string               `json:"apiVersion,omitempty"`
	Version      string               `json:"version,omitempty"`
	Reachable    *bool                `json:"reachable,omitempty"`
	ProbeMessage string               `json:"probeMessage,omitempty"`
}

// remoteVersion is the body of GET /replicator/version on a target
type remoteVersion struct {
	APIVersion string `json:"apiVersion"`
	Version    string `json:"version"`
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the replication status of every target",
		Long: `Show the outcome of the latest replication to each configured target as
recorded in the data directory. With --probe every target is asked for its
API version, which is checked for compatibility with this build.`,
		RunE: runStatus,
	}
	addConfigFlag(cmd, false)
	cmd.Flags().Bool("probe", false, "Query each target's API version")
	cmd.Flags().String("format", formatText, "Output format (text or json)")
	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	probe, _ := cmd.Flags().GetBool("probe")
	format, _ := cmd.Flags().GetString("format")

	views, err := collectStatus(cmd.Context(), cfg, probe, httpclient.NewDefaultClient(
		httpclient.WithTimeout(cfg.Client.GetTimeout())))
	if err != nil {
		return err
	}
	return writeStatus(cmd, format, views)
}

func collectStatus(
	ctx context.Context, cfg *config.Config, probe bool, client httpclient.Client,
) ([]targetView, error) {
	targets, err := replication.TargetsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	tracker := status.NewTracker(status.NewFileStatusPersistence(app.StatusDirectory(cfg)))
	statuses, err := tracker.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load replication status: %w", err)
	}

	views := make([]targetView, 0, len(targets))
	for _, identifier := range cfg.TargetIdentifiers() {
		target := targets[identifier]
		view := targetView{
			Target:  target.DisplayName(),
			BaseURL: target.BaseURL,
			Status:  statuses[identifier],
		}
		if probe {
			probeTarget(ctx, client, target, &view)
		}
		views = append(views, view)
	}
	return views, nil
}

func probeTarget(ctx context.Context, client httpclient.Client, target *replication.Target, view *targetView) {
	reachable := false
	view.Reachable = &reachable

	resp, err := client.Do(ctx, target.Endpoint(), http.MethodGet, "version", nil)
	if err != nil {
		view.ProbeMessage = err.Error()
		return
	}
	if !resp.IsSuccess(http.StatusOK) {
		view.ProbeMessage = resp.ErrorMessage()
		return
	}
	reachable = true

	var remote remoteVersion
	if err := resp.Decode(&remote); err != nil {
		view.ProbeMessage = err.Error()
		return
	}
	view.APIVersion = remote.APIVersion
	view.Version = remote.Version

	if err := versions.CheckAPICompatibility(remote.APIVersion); err != nil {
		view.ProbeMessage = err.Error()
		return
	}
	if versions.IsNewerVersion(remote.APIVersion, versions.APIVersion) {
		view.ProbeMessage = fmt.Sprintf("target speaks a newer API (%s)", remote.APIVersion)
	}
}

func writeStatus(cmd *cobra.Command, format string, views []targetView) error {
	out := cmd.OutOrStdout()
	switch format {
	case formatJSON:
		return writeJSON(out, views)
	case formatText, "":
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}

	table := tablewriter.NewWriter(out)
	table.Header("Target", "Phase", "Last attempt", "Last success", "Failures", "Node", "API", "Message")
	for _, view := range views {
		row := []string{view.Target, "-", "-", "-", "0", "-", view.APIVersion, view.ProbeMessage}
		if s := view.Status; s != nil {
			row[1] = string(s.Phase)
			row[2] = formatTime(s.LastAttempt)
			row[3] = formatTime(s.LastSuccess)
			row[4] = strconv.Itoa(s.FailureCount)
			row[5] = s.LastNode
			if row[7] == "" {
				row[7] = s.Message
			}
		}
		if view.Reachable != nil && !*view.Reachable {
			row[6] = "unreachable"
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}
