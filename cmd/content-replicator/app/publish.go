package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/stacklok/content-replicator/internal/app"
	"github.com/stacklok/content-replicator/internal/content"
	contentmemory "github.com/stacklok/content-replicator/internal/content/memory"
	"github.com/stacklok/content-replicator/internal/events"
	"github.com/stacklok/content-replicator/internal/replication"
	"github.com/stacklok/content-replicator/internal/telemetry"
)

func newPublishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish nodes of a content export and replicate them",
		Long: `Load a content export and emit a node published event for each selected node.
Replications with the publish trigger that match the workspace push the nodes
to their targets.

Examples:
  # Publish one node into the live workspace
  content-replicator publish --config config.yaml --content content.yaml --node /sites/site-a/home

  # Publish every node of the export into a user workspace
  content-replicator publish --config config.yaml --content content.yaml --workspace user-admin

  # Publish from an export kept in a Git repository
  content-replicator publish --config config.yaml --git-url https://git.example.com/content.git \
    --git-branch main --content exports/content.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReplication(cmd, publishAll)
		},
	}
	addRunFlags(cmd)
	return cmd
}

func newReplicateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replicate",
		Short: "Replicate nodes of a content export through manual replications",
		Long: `Load a content export and replicate each selected node through the replications
with the manual trigger. Publish-triggered replications are not run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReplication(cmd, replicateAll)
		},
	}
	addRunFlags(cmd)
	return cmd
}

func addRunFlags(cmd *cobra.Command) {
	addConfigFlag(cmd, false)
	addContentFlags(cmd)
	cmd.Flags().StringP("workspace", "w", content.LiveWorkspace, "Workspace the nodes are published into")
	cmd.Flags().StringSliceP("node", "n", nil, "Identifier or path of a node to replicate (repeatable, default all)")
	cmd.Flags().String("format", formatText, "Output format (text or json)")
	if err := cmd.MarkFlagRequired("content"); err != nil {
		panic(err)
	}
}

// runner replicates the selected nodes and returns one report per node
type runner func(
	ctx context.Context, orchestrator *replication.Orchestrator, nodes []content.Node, workspace *content.Workspace,
) []*replication.Report

func publishAll(
	ctx context.Context, orchestrator *replication.Orchestrator, nodes []content.Node, workspace *content.Workspace,
) []*replication.Report {
	var (
		mu      sync.Mutex
		reports []*replication.Report
	)
	bus := events.NewBus()
	unsubscribe := orchestrator.Subscribe(bus, func(report *replication.Report) {
		mu.Lock()
		defer mu.Unlock()
		reports = append(reports, report)
	})
	defer unsubscribe()

	for _, node := range nodes {
		if bus.Publish(ctx, events.NewNodePublished(node, workspace)) == 0 {
			slog.Warn("Publication was not handled", "node", node.String())
		}
	}
	return reports
}

func replicateAll(
	ctx context.Context, orchestrator *replication.Orchestrator, nodes []content.Node, workspace *content.Workspace,
) []*replication.Report {
	reports := make([]*replication.Report, 0, len(nodes))
	for _, node := range nodes {
		reports = append(reports, orchestrator.Replicate(ctx, node, workspace))
	}
	return reports
}

func runReplication(cmd *cobra.Command, run runner) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	workspaceName, _ := flags.GetString("workspace")
	selectors, _ := flags.GetStringSlice("node")
	format, _ := flags.GetString("format")

	repo, err := loadContent(cmd)
	if err != nil {
		return err
	}
	workspace, err := repo.Workspace(workspaceName)
	if err != nil {
		return err
	}
	nodes, err := selectNodes(repo, selectors)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	tel, err := telemetry.New(ctx, telemetry.WithTelemetryConfig(cfg.Telemetry), telemetry.WithRole(telemetry.RoleReplicator))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown telemetry", "error", err)
		}
	}()

	orchestrator, err := app.NewOrchestrator(cfg,
		app.WithReplicationTelemetry(tel.MeterProvider(), tel.TracerProvider()))
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	reports := run(ctx, orchestrator, nodes, workspace)
	if err := writeReports(cmd.OutOrStdout(), format, reports); err != nil {
		return err
	}

	if failed, total := unsuccessful(reports); failed > 0 {
		return fmt.Errorf("%d of %d target runs did not succeed", failed, total)
	}
	return nil
}

// selectNodes resolves identifiers and paths, an empty selection yields every node
func selectNodes(repo *contentmemory.Repository, selectors []string) ([]content.Node, error) {
	if len(selectors) == 0 {
		all := repo.Nodes()
		nodes := make([]content.Node, 0, len(all))
		for _, node := range all {
			nodes = append(nodes, node)
		}
		return nodes, nil
	}

	nodes := make([]content.Node, 0, len(selectors))
	for _, selector := range selectors {
		var (
			node *contentmemory.Node
			err  error
		)
		if strings.HasPrefix(selector, "/") {
			node, err = repo.NodeByPath(selector)
		} else {
			node, err = repo.Node(selector)
		}
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}
