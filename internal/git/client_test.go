package git

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exportV1 = "nodes:\n  - path: /sites\n"

// createTestRepo initializes a repository on disk and commits each file set in order.
// It returns the repository path and the commit hashes.
func createTestRepo(t *testing.T, commits ...map[string]string) (string, []plumbing.Hash) {
	t.Helper()

	repoDir := t.TempDir()
	repo, err := git.PlainInit(repoDir, false)
	require.NoError(t, err)
	workTree, err := repo.Worktree()
	require.NoError(t, err)

	var hashes []plumbing.Hash
	for i, files := range commits {
		for name, data := range files {
			filePath := filepath.Join(repoDir, name)
			require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0755))
			require.NoError(t, os.WriteFile(filePath, []byte(data), 0600))
			_, err := workTree.Add(name)
			require.NoError(t, err)
		}
		hash, err := workTree.Commit("commit", &git.CommitOptions{
			Author: &object.Signature{
				Name:  "Test Author",
				Email: "test@example.com",
				When:  time.Now().Add(time.Duration(i) * time.Second),
			},
		})
		require.NoError(t, err)
		hashes = append(hashes, hash)
	}
	return repoDir, hashes
}

func TestDefaultGitClient_FullWorkflow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repoDir, hashes := createTestRepo(t, map[string]string{"exports/content.yaml": exportV1})
	client := NewDefaultGitClient()

	repoInfo, err := client.Clone(ctx, &CloneConfig{URL: repoDir})
	require.NoError(t, err)
	assert.NotNil(t, repoInfo.Repository)
	assert.Equal(t, repoDir, repoInfo.RemoteURL)
	assert.Equal(t, hashes[0].String(), repoInfo.Commit)

	data, err := client.GetFileContent(repoInfo, "exports/content.yaml")
	require.NoError(t, err)
	assert.Equal(t, exportV1, string(data))

	_, err = client.GetFileContent(repoInfo, "missing.yaml")
	assert.Error(t, err)

	require.NoError(t, client.Cleanup(ctx, repoInfo))
	assert.Nil(t, repoInfo.Repository)

	_, err = client.GetFileContent(repoInfo, "exports/content.yaml")
	assert.Error(t, err)
}

func TestDefaultGitClient_CloneWithCommit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repoDir, hashes := createTestRepo(t,
		map[string]string{"content.yaml": "version: 1\n"},
		map[string]string{"content.yaml": "version: 2\n"},
	)
	client := NewDefaultGitClient()

	latest, err := ReadFile(ctx, client, &CloneConfig{URL: repoDir}, "content.yaml")
	require.NoError(t, err)
	assert.Equal(t, "version: 2\n", string(latest))

	first, err := ReadFile(ctx, client, &CloneConfig{URL: repoDir, Commit: hashes[0].String()}, "content.yaml")
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(first))
}

func TestDefaultGitClient_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := NewDefaultGitClient()

	tests := []struct {
		name   string
		config *CloneConfig
	}{
		{name: "nil config", config: nil},
		{name: "empty URL", config: &CloneConfig{}},
		{name: "missing path", config: &CloneConfig{URL: filepath.Join(t.TempDir(), "missing")}},
		{name: "unknown branch", config: &CloneConfig{URL: func() string {
			dir, _ := createTestRepo(t, map[string]string{"a": "b"})
			return dir
		}(), Branch: "does-not-exist"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repoInfo, err := client.Clone(ctx, tt.config)
			assert.Error(t, err)
			assert.Nil(t, repoInfo)
		})
	}

	assert.Error(t, client.Cleanup(ctx, nil))
	assert.Error(t, client.Cleanup(ctx, &RepositoryInfo{}))
	_, err := client.GetFileContent(nil, "x")
	assert.Error(t, err)
}
