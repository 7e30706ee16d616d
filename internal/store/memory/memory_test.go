package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/content-replicator/internal/store"
)

var english = map[string][]string{"language": {"en"}}

func seeded(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateWorkspace(ctx, &store.Workspace{Name: "live"}))
	require.NoError(t, s.CreateWorkspace(ctx, &store.Workspace{Name: "review", BaseWorkspaceName: "live"}))
	for _, node := range []*store.Node{
		{Identifier: "sites", Workspace: "live", Path: "/sites", NodeType: "unstructured", Dimensions: english},
		{Identifier: "site-a", Workspace: "live", Path: "/sites/site-a", NodeType: "unstructured", Dimensions: english},
		{Identifier: "home", Workspace: "live", Path: "/sites/site-a/home", NodeType: "unstructured", Dimensions: english},
		{Identifier: "other", Workspace: "live", Path: "/sites/site-ab", NodeType: "unstructured", Dimensions: english},
	} {
		require.NoError(t, s.CreateNode(ctx, node))
	}
	return s
}

func TestSites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	require.NoError(t, s.CreateSite(ctx, &store.Site{Name: "B", NodeName: "site-b"}))
	site := &store.Site{Name: "A", NodeName: "site-a", ResourcesPackageKey: "Acme.SiteA", State: 1}
	require.NoError(t, s.CreateSite(ctx, site))
	assert.False(t, site.CreatedAt.IsZero())

	assert.ErrorIs(t, s.CreateSite(ctx, &store.Site{NodeName: "site-a"}), store.ErrAlreadyExists)

	got, err := s.GetSite(ctx, "site-a")
	require.NoError(t, err)
	assert.Equal(t, "Acme.SiteA", got.ResourcesPackageKey)

	_, err = s.GetSite(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	sites, err := s.ListSites(ctx)
	require.NoError(t, err)
	require.Len(t, sites, 2)
	assert.Equal(t, "site-a", sites[0].NodeName)
}

func TestWorkspaces(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	assert.ErrorIs(t, s.CreateWorkspace(ctx, &store.Workspace{Name: "review", BaseWorkspaceName: "live"}), store.ErrNotFound)
	require.NoError(t, s.CreateWorkspace(ctx, &store.Workspace{Name: "live"}))
	require.NoError(t, s.CreateWorkspace(ctx, &store.Workspace{Name: "review", BaseWorkspaceName: "live"}))
	assert.ErrorIs(t, s.CreateWorkspace(ctx, &store.Workspace{Name: "live"}), store.ErrAlreadyExists)

	chain, err := store.WorkspaceChain(ctx, s, "review")
	require.NoError(t, err)
	assert.Equal(t, []string{"review", "live"}, chain)
}

func TestNodes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := seeded(t)

	node, err := s.GetNode(ctx, "home", "live", map[string][]string{"language": {"en"}})
	require.NoError(t, err)
	assert.Equal(t, "home", node.Name())
	assert.Equal(t, "/sites/site-a", node.ParentPath())

	_, err = s.GetNode(ctx, "home", "live", map[string][]string{"language": {"de"}})
	assert.ErrorIs(t, err, store.ErrNotFound)

	byPath, err := s.GetNodeByPath(ctx, "/sites/site-a/home", "live", english)
	require.NoError(t, err)
	assert.Equal(t, "home", byPath.Identifier)

	duplicate := &store.Node{Identifier: "home", Workspace: "live", Path: "/elsewhere", Dimensions: english}
	assert.ErrorIs(t, s.CreateNode(ctx, duplicate), store.ErrAlreadyExists)

	node.Path = "/sites/site-a/start"
	node.Properties["title"] = "Start"
	require.NoError(t, s.UpdateNode(ctx, node))
	_, err = s.GetNodeByPath(ctx, "/sites/site-a/home", "live", english)
	assert.ErrorIs(t, err, store.ErrNotFound)
	moved, err := s.GetNodeByPath(ctx, "/sites/site-a/start", "live", english)
	require.NoError(t, err)
	assert.Equal(t, "Start", moved.Properties["title"])

	assert.ErrorIs(t, s.UpdateNode(ctx, &store.Node{Identifier: "nope", Workspace: "live"}), store.ErrNotFound)
}

func TestNodes_ReturnedCopiesAreIndependent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := seeded(t)

	node, err := s.GetNode(ctx, "home", "live", english)
	require.NoError(t, err)
	node.Properties["title"] = "changed"

	again, err := s.GetNode(ctx, "home", "live", english)
	require.NoError(t, err)
	assert.NotContains(t, again.Properties, "title")
}

func TestDeleteNode_RemovesDescendants(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := seeded(t)

	require.NoError(t, s.DeleteNode(ctx, "site-a", "live", english))

	for _, identifier := range []string{"site-a", "home"} {
		_, err := s.GetNode(ctx, identifier, "live", english)
		assert.ErrorIs(t, err, store.ErrNotFound, identifier)
	}
	for _, identifier := range []string{"sites", "other"} {
		_, err := s.GetNode(ctx, identifier, "live", english)
		assert.NoError(t, err, identifier)
	}

	assert.ErrorIs(t, s.DeleteNode(ctx, "site-a", "live", english), store.ErrNotFound)
}

func TestFindNode_FallsBackToBaseWorkspaces(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := seeded(t)

	node, workspace, err := store.FindNode(ctx, s, "home", "review", english)
	require.NoError(t, err)
	assert.Equal(t, "live", workspace)
	assert.Equal(t, "home", node.Identifier)

	parent, err := store.FindNodeByPath(ctx, s, "/sites/site-a", "review", english)
	require.NoError(t, err)
	assert.Equal(t, "site-a", parent.Identifier)

	_, _, err = store.FindNode(ctx, s, "home", "unknown", english)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAssets(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	variant := &store.Asset{Identifier: "variant-1", Type: "imageVariant", OriginalAsset: "image-1"}
	assert.ErrorIs(t, s.CreateAsset(ctx, variant), store.ErrNotFound)

	require.NoError(t, s.CreateAsset(ctx, &store.Asset{
		Identifier: "image-1",
		Type:       "image",
		Resource:   &store.Resource{Filename: "logo.png", Content: []byte("hello")},
	}))
	require.NoError(t, s.CreateAsset(ctx, variant))
	assert.ErrorIs(t, s.CreateAsset(ctx, &store.Asset{Identifier: "image-1"}), store.ErrAlreadyExists)

	got, err := s.GetAsset(ctx, "variant-1")
	require.NoError(t, err)
	assert.Equal(t, "image-1", got.OriginalAsset)
}
