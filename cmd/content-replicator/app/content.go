package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/content-replicator/internal/config"
	contentmemory "github.com/stacklok/content-replicator/internal/content/memory"
	"github.com/stacklok/content-replicator/internal/git"
)

// gitPasswordEnv holds the password or token for --git-username
const gitPasswordEnv = "GIT_PASSWORD"

func addContentFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("content", "", "Path to the content export (YAML or JSON), relative to the repository with --git-url")
	flags.String("git-url", "", "Read the content export from this Git repository")
	flags.String("git-branch", "", "Branch to read the content export from")
	flags.String("git-tag", "", "Tag to read the content export from")
	flags.String("git-commit", "", "Commit to read the content export from")
	flags.String("git-username", "", "Username for HTTP basic authentication, the password is read from "+
		config.EnvPrefix+"_"+gitPasswordEnv)
	cmd.MarkFlagsMutuallyExclusive("git-branch", "git-tag", "git-commit")
}

// loadContent reads the export named by --content, from disk or from --git-url.
// It returns nil when --content is not set.
func loadContent(cmd *cobra.Command) (*contentmemory.Repository, error) {
	flags := cmd.Flags()
	contentPath, _ := flags.GetString("content")
	if contentPath == "" {
		return nil, nil
	}

	gitURL, _ := flags.GetString("git-url")
	if gitURL == "" {
		return contentmemory.Load(contentPath)
	}

	cloneConfig := &git.CloneConfig{URL: gitURL}
	cloneConfig.Branch, _ = flags.GetString("git-branch")
	cloneConfig.Tag, _ = flags.GetString("git-tag")
	cloneConfig.Commit, _ = flags.GetString("git-commit")
	if username, _ := flags.GetString("git-username"); username != "" {
		env := viper.New()
		env.SetEnvPrefix(config.EnvPrefix)
		env.AutomaticEnv()
		cloneConfig.Auth = &git.Auth{Username: username, Password: env.GetString(gitPasswordEnv)}
	}

	data, err := git.ReadFile(cmd.Context(), git.NewDefaultGitClient(), cloneConfig, strings.TrimPrefix(contentPath, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to read content export from %s: %w", gitURL, err)
	}
	return contentmemory.Parse(data)
}
