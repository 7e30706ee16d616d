// Package main is the entry point for the content replicator.
package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/stacklok/content-replicator/cmd/content-replicator/app"
	"github.com/stacklok/content-replicator/internal/config"
	"github.com/stacklok/content-replicator/internal/logging"
	"github.com/stacklok/content-replicator/internal/versions"
)

// getLogConfig reads REPLICATOR_LOG_LEVEL and REPLICATOR_LOG_FORMAT.
// LOG_LEVEL is honored when the prefixed variable is unset.
func getLogConfig() logging.Config {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	level := v.GetString("LOG_LEVEL")
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}

	return logging.Config{
		Level:       level,
		Format:      v.GetString("LOG_FORMAT"),
		ServiceName: "content-replicator",
		Version:     versions.Version,
	}
}

func main() {
	logConfig := getLogConfig()
	flush, err := logging.Setup(logConfig)
	if err != nil {
		// Fall back to the defaults rather than refusing to start over a typo.
		logConfig.Level, logConfig.Format = "", ""
		flush, _ = logging.Setup(logConfig)
		slog.Warn("Invalid logging settings, using defaults", "error", err)
	}

	cmd := app.NewRootCmd(logConfig)
	err = cmd.Execute()
	flush()
	if err != nil {
		os.Exit(1)
	}
}
