package app

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/stacklok/content-replicator/internal/config"
	"github.com/stacklok/content-replicator/internal/nodetype"
	"github.com/stacklok/content-replicator/internal/replication"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file and optionally a content export",
		Long: `Validate the configuration, resolve every target API key and compile the node
type declarations of the server section. With --content the content export is
loaded as well.`,
		RunE: runValidate,
	}
	addConfigFlag(cmd, false)
	addContentFlags(cmd)
	return cmd
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cfg, configPath, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	targets, err := replication.TargetsFromConfig(cfg)
	if err != nil {
		return err
	}

	var declarations map[string]config.NodeTypeConfig
	if cfg.Server != nil {
		declarations = cfg.Server.NodeTypes
	}
	if _, err := nodetype.NewRegistry(declarations); err != nil {
		return fmt.Errorf("invalid node types: %w", err)
	}

	repo, err := loadContent(cmd)
	if err != nil {
		return err
	}
	if repo != nil {
		contentPath, _ := cmd.Flags().GetString("content")
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Content export %s is valid (%d nodes)\n", contentPath, len(repo.Nodes()))
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration %s is valid\n", configPath)

	table := tablewriter.NewWriter(out)
	table.Header("Replication", "Trigger", "Types", "Workspaces", "Sites", "Targets")
	for _, configuration := range replication.ConfigurationsFromConfig(cfg) {
		names := make([]string, 0, len(configuration.Targets))
		for _, id := range configuration.Targets {
			names = append(names, targets[id].DisplayName())
		}
		if err := table.Append([]string{
			configuration.DisplayName(),
			configuration.Trigger,
			strings.Join(configuration.ContentTypes, ","),
			strings.Join(configuration.WorkspaceFilter, ","),
			orAll(configuration.SiteFilter),
			strings.Join(names, ","),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

func orAll(values []string) string {
	if len(values) == 0 {
		return "*"
	}
	return strings.Join(values, ",")
}
