package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// commitExport creates a repository holding the export at exports/content.yaml
func commitExport(t *testing.T) string {
	t.Helper()
	repoDir := t.TempDir()
	repo, err := git.PlainInit(repoDir, false)
	require.NoError(t, err)
	workTree, err := repo.Worktree()
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(repoDir, "exports"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "exports", "content.yaml"), []byte(exportFixture), 0600))
	_, err = workTree.Add("exports/content.yaml")
	require.NoError(t, err)
	_, err = workTree.Commit("Export content", &git.CommitOptions{
		Author: &object.Signature{Name: "Editor", Email: "editor@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return repoDir
}

func TestPublishCmd_FromGit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	target, targetStore := newTarget(t)
	f := newFixture(t, "publish", target.URL)
	repoDir := commitExport(t)

	_, err := execute(t, newPublishCmd(),
		"--config", f.configPath,
		"--git-url", repoDir,
		"--content", "exports/content.yaml",
		"--workspace", "review",
		"--node", "home")
	require.NoError(t, err)

	_, err = targetStore.GetNode(ctx, "home", "review", nil)
	assert.NoError(t, err)
}

func TestValidateCmd_FromGit(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "publish", "https://edge.example.com")
	repoDir := commitExport(t)

	out, err := execute(t, newValidateCmd(),
		"--config", f.configPath, "--git-url", repoDir, "--content", "/exports/content.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "is valid (3 nodes)")

	_, err = execute(t, newValidateCmd(),
		"--config", f.configPath, "--git-url", repoDir, "--content", "missing.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read content export")

	_, err = execute(t, newValidateCmd(),
		"--config", f.configPath, "--git-url", repoDir, "--content", "x", "--git-tag", "v1", "--git-branch", "main")
	assert.Error(t, err)
}
