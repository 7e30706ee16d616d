// Package app provides the command line of the content replicator.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/content-replicator/internal/config"
	"github.com/stacklok/content-replicator/internal/logging"
	"github.com/stacklok/content-replicator/internal/versions"
)

const (
	formatText = "text"
	formatJSON = "json"
)

// NewRootCmd creates the root command. logConfig is the logger setup of the
// process, --debug re-installs it at debug level.
func NewRootCmd(logConfig logging.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "content-replicator",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Replicate published content to remote instances",
		Long: `content-replicator pushes published nodes, their sites, workspaces and assets
to remote instances over a small REST API, and serves that API on the receiving side.`,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if !viper.GetBool("debug") {
				return nil
			}
			logConfig.Level = "debug"
			_, err := logging.Setup(logConfig)
			return err
		},
		Run: func(cmd *cobra.Command, _ []string) {
			// If no subcommand is provided, print help
			if err := cmd.Help(); err != nil {
				slog.Error("Error displaying help", "error", err)
			}
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		slog.Error("Error binding debug flag", "error", err)
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newPublishCmd(),
		newReplicateCmd(),
		newValidateCmd(),
		newStatusCmd(),
		newMigrateCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.GetVersionInfo()
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("failed to get format flag: %w", err)
			}

			if format == formatJSON {
				output, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to format version info: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(output))
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "content-replicator %s (commit %s, built %s, %s, %s, API %s)\n",
				info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform, versions.APIVersion)
			return err
		},
	}
	cmd.Flags().String("format", formatText, "Output format (text or json)")
	return cmd
}

// addConfigFlag registers the required --config flag
func addConfigFlag(cmd *cobra.Command, persistent bool) {
	flags := cmd.Flags()
	if persistent {
		flags = cmd.PersistentFlags()
	}
	flags.String("config", "", "Path to configuration file (YAML format, required)")

	var err error
	if persistent {
		err = cmd.MarkPersistentFlagRequired("config")
	} else {
		err = cmd.MarkFlagRequired("config")
	}
	if err != nil {
		panic(err)
	}
}

// loadConfig loads the file named by the --config flag
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, "", fmt.Errorf("failed to get config flag: %w", err)
	}
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return nil, configPath, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, configPath, nil
}
