// Package git reads content exports from Git repositories.
//
// Repositories are cloned into memory, read and discarded. Shallow clones
// are used unless a specific commit is requested.
package git

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// MaxFileSize bounds the size of a file read from a repository
const MaxFileSize = 256 << 20

// Client defines the interface for Git operations
type Client interface {
	// Clone clones a repository with the given configuration
	Clone(ctx context.Context, config *CloneConfig) (*RepositoryInfo, error)

	// GetFileContent retrieves the content of a file at HEAD
	GetFileContent(repoInfo *RepositoryInfo, path string) ([]byte, error)

	// Cleanup releases the in-memory repository
	Cleanup(ctx context.Context, repoInfo *RepositoryInfo) error
}

type defaultGitClient struct{}

// NewDefaultGitClient creates a client backed by go-git
func NewDefaultGitClient() Client {
	return &defaultGitClient{}
}

// Clone implements Client
func (c *defaultGitClient) Clone(ctx context.Context, config *CloneConfig) (*RepositoryInfo, error) {
	if config == nil || config.URL == "" {
		return nil, fmt.Errorf("repository URL is required")
	}
	cloneOptions := &git.CloneOptions{URL: config.URL}

	if config.Auth != nil && config.Auth.Username != "" {
		cloneOptions.Auth = &githttp.BasicAuth{
			Username: config.Auth.Username,
			Password: config.Auth.Password,
		}
		slog.Debug("Using Git HTTP Basic authentication", "username", config.Auth.Username)
	}

	// A commit may be anywhere in history, so only branch and tag clones are shallow.
	if config.Commit == "" {
		cloneOptions.Depth = 1
		switch {
		case config.Branch != "":
			cloneOptions.ReferenceName = plumbing.NewBranchReferenceName(config.Branch)
			cloneOptions.SingleBranch = true
		case config.Tag != "":
			cloneOptions.ReferenceName = plumbing.NewTagReferenceName(config.Tag)
			cloneOptions.SingleBranch = true
		}
	}

	worktreeFs := memfs.New()
	storerFs := memfs.New()
	storerCache := cache.NewObjectLRUDefault()
	storer := filesystem.NewStorage(storerFs, storerCache)

	repo, err := git.CloneContext(ctx, storer, worktreeFs, cloneOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to clone repository %s: %w", config.URL, err)
	}

	repoInfo := &RepositoryInfo{
		Repository:       repo,
		RemoteURL:        config.URL,
		storerFilesystem: storerFs,
		objectCache:      storerCache,
	}

	if config.Commit != "" {
		workTree, err := repo.Worktree()
		if err != nil {
			return nil, fmt.Errorf("failed to get worktree: %w", err)
		}
		if err := workTree.Checkout(&git.CheckoutOptions{Hash: plumbing.NewHash(config.Commit)}); err != nil {
			return nil, fmt.Errorf("failed to checkout commit %s: %w", config.Commit, err)
		}
	}

	if err := c.updateRepositoryInfo(repoInfo); err != nil {
		return nil, fmt.Errorf("failed to update repository info: %w", err)
	}

	slog.Debug("Cloned content repository",
		"url", config.URL, "branch", repoInfo.Branch, "commit", repoInfo.Commit)
	return repoInfo, nil
}

// GetFileContent implements Client
func (*defaultGitClient) GetFileContent(repoInfo *RepositoryInfo, path string) ([]byte, error) {
	if repoInfo == nil || repoInfo.Repository == nil {
		return nil, fmt.Errorf("repository is nil")
	}

	ref, err := repoInfo.Repository.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD reference: %w", err)
	}
	commit, err := repoInfo.Repository.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get commit object: %w", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}
	file, err := tree.File(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get file %s: %w", path, err)
	}
	if file.Size > MaxFileSize {
		return nil, fmt.Errorf("file %s exceeds maximum size of %d bytes", path, MaxFileSize)
	}

	contents, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("failed to read file contents: %w", err)
	}
	return []byte(contents), nil
}

// Cleanup implements Client
func (*defaultGitClient) Cleanup(_ context.Context, repoInfo *RepositoryInfo) error {
	if repoInfo == nil || repoInfo.Repository == nil {
		return fmt.Errorf("repository is nil")
	}

	if repoInfo.objectCache != nil {
		repoInfo.objectCache.Clear()
	}
	if worktree, err := repoInfo.Repository.Worktree(); err == nil && worktree.Filesystem != nil {
		_ = util.RemoveAll(worktree.Filesystem, "/")
	}
	if repoInfo.storerFilesystem != nil {
		_ = util.RemoveAll(repoInfo.storerFilesystem, "/")
	}

	repoInfo.objectCache = nil
	repoInfo.storerFilesystem = nil
	repoInfo.Repository = nil
	return nil
}

func (*defaultGitClient) updateRepositoryInfo(repoInfo *RepositoryInfo) error {
	ref, err := repoInfo.Repository.Head()
	if err != nil {
		return fmt.Errorf("failed to get HEAD reference: %w", err)
	}
	if ref.Name().IsBranch() {
		repoInfo.Branch = ref.Name().Short()
	}
	repoInfo.Commit = ref.Hash().String()
	return nil
}

// ReadFile clones the repository, reads one file and releases the clone
func ReadFile(ctx context.Context, client Client, config *CloneConfig, path string) ([]byte, error) {
	repoInfo, err := client.Clone(ctx, config)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := client.Cleanup(ctx, repoInfo); err != nil {
			slog.Warn("Failed to release repository", "url", config.URL, "error", err)
		}
	}()
	return client.GetFileContent(repoInfo, path)
}
