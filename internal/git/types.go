package git

import (
	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/cache"
)

// CloneConfig addresses the content export repository
type CloneConfig struct {
	// URL is the repository URL, a local path is accepted as well
	URL string

	// Branch is the specific branch to clone (optional)
	Branch string

	// Tag is the specific tag to clone (optional)
	Tag string

	// Commit is the specific commit to check out (optional)
	Commit string

	// Auth holds HTTP basic credentials (optional)
	Auth *Auth
}

// Auth holds HTTP basic credentials for private repositories
type Auth struct {
	Username string
	Password string
}

// RepositoryInfo describes a cloned repository
type RepositoryInfo struct {
	// Repository is the go-git repository instance
	Repository *git.Repository

	// Branch is the current branch name, empty for detached checkouts
	Branch string

	// Commit is the hash HEAD points at
	Commit string

	// RemoteURL is the remote repository URL
	RemoteURL string

	// storerFilesystem holds the in-memory object database. go-git does not
	// release it on its own, Cleanup clears it.
	storerFilesystem billy.Filesystem

	// objectCache holds decompressed objects, Cleanup clears it.
	objectCache cache.Object
}
