package replicator

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/content-replicator/internal/config"
	"github.com/stacklok/content-replicator/internal/nodetype"
	"github.com/stacklok/content-replicator/internal/store"
	"github.com/stacklok/content-replicator/internal/store/memory"
	"github.com/stacklok/content-replicator/internal/store/mocks"
)

var english = map[string][]string{"language": {"en"}}

func newTestServer(t *testing.T, s store.Store, opts ...Option) *httptest.Server {
	t.Helper()
	server := httptest.NewUnstartedServer(Router(s, opts...))
	server.Config.SetKeepAlivesEnabled(false)
	server.Start()
	t.Cleanup(server.Close)
	return server
}

func call(t *testing.T, server *httptest.Server, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, server.URL+path, reader)
	require.NoError(t, err)

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	decoded := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp.StatusCode, decoded
}

// seededStore holds the live workspace with a site node and a page below it
func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.CreateWorkspace(ctx, &store.Workspace{Name: "live"}))
	require.NoError(t, s.CreateWorkspace(ctx, &store.Workspace{Name: "review", BaseWorkspaceName: "live"}))
	require.NoError(t, s.CreateNode(ctx, &store.Node{
		Identifier: "sites", Workspace: "live", Dimensions: english, Path: "/sites", NodeType: "unstructured",
	}))
	require.NoError(t, s.CreateNode(ctx, &store.Node{
		Identifier: "home", Workspace: "live", Dimensions: english, Path: "/sites/home", NodeType: "unstructured",
		Properties: map[string]any{"title": "Home"},
	}))
	return s
}

func TestSites(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, memory.New(), WithAvailablePackages("Acme.SiteA"))

	status, body := call(t, server, http.MethodGet, "/sites", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["sites"])

	status, _ = call(t, server, http.MethodGet, "/sites/site-a", nil)
	assert.Equal(t, http.StatusNotFound, status)

	site := map[string]any{"name": "Site A", "nodeName": "site-a", "state": 1, "resourcesPackageKey": "Acme.SiteA"}
	status, body = call(t, server, http.MethodPost, "/sites", site)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "site-a", body["nodeName"])

	status, _ = call(t, server, http.MethodPost, "/sites", site)
	assert.Equal(t, http.StatusConflict, status)

	status, body = call(t, server, http.MethodPost, "/sites",
		map[string]any{"name": "Site B", "nodeName": "site-b", "siteResourcesPackageKey": "Acme.Other"})
	assert.Equal(t, http.StatusFailedDependency, status)
	assert.Contains(t, body["error"], "Acme.Other")

	status, _ = call(t, server, http.MethodPost, "/sites", map[string]any{"name": "No node name"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = call(t, server, http.MethodPost, "/sites",
		map[string]any{"name": "Bad", "nodeName": ".bad", "resourcesPackageKey": "Acme.SiteA"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = call(t, server, http.MethodGet, "/sites/site-a", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Acme.SiteA", body["resourcesPackageKey"])
}

func TestWorkspaces(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, memory.New())

	status, _ := call(t, server, http.MethodGet, "/workspaces/live", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = call(t, server, http.MethodPost, "/workspaces/review", map[string]any{"baseWorkspaceName": "live"})
	assert.Equal(t, http.StatusFailedDependency, status)

	status, _ = call(t, server, http.MethodPost, "/workspaces/user.admin", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = call(t, server, http.MethodPost, "/workspaces/live", nil)
	require.Equal(t, http.StatusCreated, status)
	status, _ = call(t, server, http.MethodPost, "/workspaces/live", nil)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = call(t, server, http.MethodPost, "/workspaces/review", map[string]any{"baseWorkspaceName": "live"})
	require.Equal(t, http.StatusCreated, status)

	status, body := call(t, server, http.MethodGet, "/workspaces/review", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "live", body["baseWorkspaceName"])
}

func TestCreateNode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
	}{
		{
			name: "creates the child",
			body: map[string]any{"mode": "new", "identifier": "about", "workspaceName": "live", "dimensions": english,
				"properties": map[string]any{"_name": "about", "__parentPath": "/sites/home", "title": "About", "_index": 2}},
			wantStatus: http.StatusCreated,
		},
		{
			name: "parent inherited from base workspace",
			body: map[string]any{"mode": "new", "identifier": "about", "workspace": "review", "dimensions": english,
				"properties": map[string]any{"_name": "about", "__parentPath": "/sites/home"}},
			wantStatus: http.StatusCreated,
		},
		{
			name: "existing child is updated",
			body: map[string]any{"mode": "new", "identifier": "home", "workspaceName": "live", "dimensions": english,
				"properties": map[string]any{"_name": "home", "__parentPath": "/sites", "title": "Start"}},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "unsupported mode",
			body:       map[string]any{"mode": "copy", "workspaceName": "live"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "unknown workspace",
			body: map[string]any{"mode": "new", "workspaceName": "draft",
				"properties": map[string]any{"__parentPath": "/sites"}},
			wantStatus: http.StatusFailedDependency,
		},
		{
			name:       "missing parent path",
			body:       map[string]any{"mode": "new", "workspaceName": "live", "properties": map[string]any{}},
			wantStatus: http.StatusFailedDependency,
		},
		{
			name: "missing parent",
			body: map[string]any{"mode": "new", "workspaceName": "live", "dimensions": english,
				"properties": map[string]any{"_name": "x", "__parentPath": "/sites/missing"}},
			wantStatus: http.StatusFailedDependency,
		},
		{
			name: "property failure",
			body: map[string]any{"mode": "new", "identifier": "bad", "workspaceName": "live", "dimensions": english,
				"properties": map[string]any{"_name": "bad", "__parentPath": "/sites", "_unknown": true}},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := seededStore(t)
			server := newTestServer(t, s)

			status, body := call(t, server, http.MethodPost, "/nodes", tt.body)
			require.Equal(t, tt.wantStatus, status, body)
		})
	}
}

func TestCreateNode_Stored(t *testing.T) {
	t.Parallel()

	s := seededStore(t)
	server := newTestServer(t, s)

	status, body := call(t, server, http.MethodPost, "/nodes", map[string]any{
		"mode": "new", "workspaceName": "live", "dimensions": english,
		"properties": map[string]any{"__parentPath": "/sites/home", "_name": "news", "_hidden": true, "_index": 4},
	})
	require.Equal(t, http.StatusCreated, status)
	identifier, ok := body["identifier"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, identifier)

	node, err := s.GetNodeByPath(context.Background(), "/sites/home/news", "live", english)
	require.NoError(t, err)
	assert.Equal(t, identifier, node.Identifier)
	assert.True(t, node.Hidden)
	assert.Equal(t, 4, node.Index)
	assert.Equal(t, "unstructured", node.NodeType)
}

func TestGetNode(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, seededStore(t))

	status, body := call(t, server, http.MethodGet, "/nodes/home",
		map[string]any{"workspaceName": "review", "dimensions": english})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "live", body["workspaceName"])

	status, _ = call(t, server, http.MethodGet, "/nodes/home?"+url.Values{
		"workspaceName": {"live"},
		"dimensions":    {`{"language":["en"]}`},
	}.Encode(), nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = call(t, server, http.MethodGet, "/nodes/home",
		map[string]any{"workspaceName": "live", "dimensions": map[string][]string{"language": {"de"}}})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = call(t, server, http.MethodGet, "/nodes/home?dimensions=%7B", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestUpdateNode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := seededStore(t)
	server := newTestServer(t, s)

	status, _ := call(t, server, http.MethodPut, "/nodes/missing",
		map[string]any{"workspaceName": "live", "dimensions": english})
	assert.Equal(t, http.StatusNotFound, status)

	status, body := call(t, server, http.MethodPut, "/nodes/home", map[string]any{
		"workspaceName": "review", "dimensions": english, "properties": map[string]any{"title": "Draft"},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "review", body["workspaceName"])

	inReview, err := s.GetNode(ctx, "home", "review", english)
	require.NoError(t, err)
	assert.Equal(t, "Draft", inReview.Properties["title"])
	inLive, err := s.GetNode(ctx, "home", "live", english)
	require.NoError(t, err)
	assert.Equal(t, "Home", inLive.Properties["title"])

	status, _ = call(t, server, http.MethodPut, "/nodes/home", map[string]any{
		"workspaceName": "live", "dimensions": english, "properties": map[string]any{"_index": "x"},
	})
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestUpdateNode_TypedProperties(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	registry, err := nodetype.NewRegistry(map[string]config.NodeTypeConfig{
		"Acme:Page": {Properties: map[string]config.PropertyConfig{
			"related": {Type: "references"},
			"teaser":  {Type: "image"},
		}},
	})
	require.NoError(t, err)

	s := seededStore(t)
	require.NoError(t, s.CreateAsset(ctx, &store.Asset{Identifier: "image-1", Type: "image"}))
	server := newTestServer(t, s, WithNodeTypes(registry))

	status, body := call(t, server, http.MethodPut, "/nodes/home", map[string]any{
		"workspaceName": "live", "dimensions": english,
		"properties": map[string]any{
			"_nodeType": "Acme:Page",
			"related":   []string{"sites", "missing"},
			"teaser":    `{"__identity":"image-1","__type":"image"}`,
		},
	})
	require.Equal(t, http.StatusOK, status, body)

	node, err := s.GetNode(ctx, "home", "live", english)
	require.NoError(t, err)
	assert.Equal(t, "Acme:Page", node.NodeType)
	assert.Equal(t, []string{"sites"}, node.Properties["related"])
	assert.Equal(t, "image-1", node.Properties["teaser"])
}

func TestDeleteNode(t *testing.T) {
	t.Parallel()

	s := seededStore(t)
	server := newTestServer(t, s)

	status, _ := call(t, server, http.MethodDelete, "/nodes/sites",
		map[string]any{"workspace": "live", "dimensions": english})
	assert.Equal(t, http.StatusNoContent, status)

	_, err := s.GetNode(context.Background(), "home", "live", english)
	assert.ErrorIs(t, err, store.ErrNotFound)

	status, _ = call(t, server, http.MethodDelete, "/nodes/sites",
		map[string]any{"workspace": "live", "dimensions": english})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAssets(t *testing.T) {
	t.Parallel()

	s := memory.New()
	server := newTestServer(t, s)

	status, _ := call(t, server, http.MethodGet, "/assets/image-1", nil)
	assert.Equal(t, http.StatusNotFound, status)

	variant := map[string]any{"asset": map[string]any{
		"__identity": "variant-1", "__type": "imageVariant",
		"originalAsset": map[string]any{"__identity": "image-1", "__type": "image"},
		"adjustments":   map[string]any{"width": 200},
	}}
	status, _ = call(t, server, http.MethodPost, "/assets", variant)
	assert.Equal(t, http.StatusFailedDependency, status)

	original := map[string]any{"asset": map[string]any{
		"__identity": "image-1", "__type": "image", "title": "Logo",
		"resource": map[string]any{
			"filename": "logo.png", "mediaType": "image/png",
			"sha1": "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d", "content": "aGVsbG8=",
		},
	}}
	status, body := call(t, server, http.MethodPost, "/assets", original)
	require.Equal(t, http.StatusCreated, status, body)
	resource, ok := body["resource"].(map[string]any)
	require.True(t, ok)
	assert.Nil(t, resource["content"])

	status, _ = call(t, server, http.MethodPost, "/assets", original)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = call(t, server, http.MethodPost, "/assets", variant)
	assert.Equal(t, http.StatusCreated, status)

	stored, err := s.GetAsset(context.Background(), "image-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), stored.Resource.Content)

	status, body = call(t, server, http.MethodGet, "/assets/variant-1", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "image-1", body["originalAsset"])

	tampered := map[string]any{"asset": map[string]any{
		"__identity": "image-2", "__type": "image",
		"resource": map[string]any{"filename": "x.png", "sha1": "0000", "content": "aGVsbG8="},
	}}
	status, _ = call(t, server, http.MethodPost, "/assets", tampered)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestStoreFailure(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	mockStore := mocks.NewMockStore(ctrl)
	mockStore.EXPECT().ListSites(gomock.Any()).Return(nil, assert.AnError)
	server := newTestServer(t, mockStore)

	status, body := call(t, server, http.MethodGet, "/sites", nil)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "failed to list sites", body["error"])
}

func TestVersion(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, memory.New())
	status, body := call(t, server, http.MethodGet, "/version", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "1.0.0", body["apiVersion"])
}
