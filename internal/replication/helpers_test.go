package replication

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stacklok/content-replicator/internal/content/memory"
	"github.com/stacklok/content-replicator/internal/httpclient"
)

const testContent = `
nodeTypes:
  Acme:Page:
    properties:
      title: {type: string}
      teaser: {type: image}
      tags: {type: array}
      author: {type: reference}
sites:
  - name: Site A
    nodeName: site-a
    resourcesPackageKey: Acme.SiteA
    state: 1
workspaces:
  - name: user-admin
    base: review
  - name: review
    base: live
  - name: live
assets:
  - identifier: image-1
    type: image
    title: Logo
    filename: logo.png
    mediaType: image/png
    content: aGVsbG8=
  - identifier: variant-1
    type: imageVariant
    original: image-1
    adjustments:
      width: 200
nodes:
  - identifier: n1
    path: /n1
    site: site-a
    dimensions:
      language: [en]
  - identifier: p2
    path: /p2
    site: site-a
  - identifier: p1
    path: /p2/p1
    site: site-a
  - identifier: n
    path: /p2/p1/n
    nodeType: Acme:Page
    site: site-a
    index: 3
    properties:
      title: Hello
      teaser: variant-1
      tags: [a, b]
      author: n1
  - identifier: gone
    path: /gone
    site: site-a
    removed: true
  - identifier: homeless
    path: /homeless
`

func newTestRepository(t *testing.T) *memory.Repository {
	t.Helper()
	repo, err := memory.Parse([]byte(testContent))
	require.NoError(t, err)
	return repo
}

// fakeTarget is a stateful stand-in for a target API
type fakeTarget struct {
	mu        sync.Mutex
	server    *httptest.Server
	calls     []string
	created   []string
	bodies    map[string]map[string]any
	exists    map[string]bool
	overrides map[string]int
}

func newFakeTarget(t *testing.T) *fakeTarget {
	t.Helper()
	f := &fakeTarget{
		bodies:    make(map[string]map[string]any),
		exists:    make(map[string]bool),
		overrides: make(map[string]int),
	}
	f.server = httptest.NewUnstartedServer(http.HandlerFunc(f.handle))
	f.server.Config.SetKeepAlivesEnabled(false)
	f.server.Start()
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeTarget) target(identifier string) *Target {
	return &Target{Identifier: identifier, Name: strings.ToUpper(identifier), BaseURL: f.server.URL, APIKey: "secret"}
}

// override makes the target answer "METHOD path" with status
func (f *fakeTarget) override(call string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overrides[call] = status
}

func (f *fakeTarget) seed(resource string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exists[resource] = true
}

func (f *fakeTarget) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeTarget) createdResources() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.created...)
}

func (f *fakeTarget) body(call string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[call]
}

func (f *fakeTarget) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	resource := strings.TrimPrefix(r.URL.Path, "/"+httpclient.APIPrefix+"/")
	call := r.Method + " " + resource
	f.calls = append(f.calls, call)

	var body map[string]any
	data, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(data, &body)

	if status, ok := f.overrides[call]; ok {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":"target failure"}`))
		return
	}

	switch r.Method {
	case http.MethodGet:
		if f.exists[resource] {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	case http.MethodPost:
		created := resource
		switch resource {
		case "sites":
			created = "sites/" + body["nodeName"].(string)
		case "nodes":
			created = "nodes/" + body["identifier"].(string)
		case "assets":
			created = "assets/" + body["asset"].(map[string]any)["__identity"].(string)
		}
		f.exists[created] = true
		f.created = append(f.created, created)
		f.bodies[r.Method+" "+created] = body
		w.WriteHeader(http.StatusCreated)
	case http.MethodPut:
		f.bodies[call] = body
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		f.bodies[call] = body
		if !f.exists[resource] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(f.exists, resource)
		w.WriteHeader(http.StatusNoContent)
	}
}

func publishConfiguration(targets ...string) *Configuration {
	return &Configuration{
		Identifier:      "live-to-edge",
		Trigger:         TriggerPublish,
		WorkspaceFilter: []string{"live", "user-admin"},
		Targets:         targets,
	}
}

func filterCalls(calls []string, prefix string) []string {
	var filtered []string
	for _, call := range calls {
		if strings.HasPrefix(call, prefix) {
			filtered = append(filtered, call)
		}
	}
	return filtered
}
