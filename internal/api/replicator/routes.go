// Package replicator provides the REST handlers that receive replicated content.
package replicator

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/content-replicator/internal/api/common"
	"github.com/stacklok/content-replicator/internal/nodetype"
	"github.com/stacklok/content-replicator/internal/store"
	"github.com/stacklok/content-replicator/internal/telemetry"
	"github.com/stacklok/content-replicator/internal/versions"
)

// Resource names used in metrics
const (
	resourceSite      = "site"
	resourceWorkspace = "workspace"
	resourceNode      = "node"
	resourceAsset     = "asset"
)

// Routes holds the dependencies of the replicator handlers
type Routes struct {
	store             store.Store
	nodeTypes         *nodetype.Registry
	availablePackages []string
	metrics           *telemetry.ReceiverMetrics
}

// Option configures Routes
type Option func(*Routes)

// WithAvailablePackages restricts the resources packages sites may be created for.
// No packages accepts any package.
func WithAvailablePackages(packages ...string) Option {
	return func(r *Routes) {
		r.availablePackages = packages
	}
}

// WithNodeTypes sets the node type schemas properties are applied with
func WithNodeTypes(registry *nodetype.Registry) Option {
	return func(r *Routes) {
		r.nodeTypes = registry
	}
}

// WithMetrics sets the receiver metrics
func WithMetrics(metrics *telemetry.ReceiverMetrics) Option {
	return func(r *Routes) {
		r.metrics = metrics
	}
}

// NewRoutes creates the handlers over the given store
func NewRoutes(s store.Store, opts ...Option) *Routes {
	routes := &Routes{store: s}
	for _, opt := range opts {
		opt(routes)
	}
	if routes.nodeTypes == nil {
		// an empty registry accepts every node type unstructured and cannot fail
		routes.nodeTypes, _ = nodetype.NewRegistry(nil)
	}
	return routes
}

// Router creates the router of the replicator API
func Router(s store.Store, opts ...Option) http.Handler {
	routes := NewRoutes(s, opts...)

	r := chi.NewRouter()

	r.Get("/version", getVersion)

	r.Get("/sites", routes.listSites)
	r.Post("/sites", routes.createSite)
	r.Get("/sites/{nodeName}", routes.getSite)

	r.Get("/workspaces/{name}", routes.getWorkspace)
	r.Post("/workspaces/{name}", routes.createWorkspace)

	r.Post("/nodes", routes.createNode)
	r.Get("/nodes/{identifier}", routes.getNode)
	r.Put("/nodes/{identifier}", routes.updateNode)
	r.Delete("/nodes/{identifier}", routes.deleteNode)

	r.Post("/assets", routes.createAsset)
	r.Get("/assets/{identifier}", routes.getAsset)

	return r
}

// VersionResponse is the body of GET /replicator/version
type VersionResponse struct {
	APIVersion string `json:"apiVersion"`
	Version    string `json:"version"`
}

// getVersion lets replicators check API compatibility with the shared secret they hold
func getVersion(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, VersionResponse{
		APIVersion: versions.APIVersion,
		Version:    versions.Version,
	}, http.StatusOK)
}

func (rr *Routes) packageAvailable(packageKey string) bool {
	return len(rr.availablePackages) == 0 || slices.Contains(rr.availablePackages, packageKey)
}

// writeStoreError maps store errors onto response codes, anything unexpected is a 500
func writeStoreError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		common.WriteErrorResponse(w, message+": not found", http.StatusNotFound)
	case errors.Is(err, store.ErrAlreadyExists):
		common.WriteErrorResponse(w, message+": already exists", http.StatusConflict)
	default:
		slog.Error("Store operation failed", "operation", message, "error", err)
		common.WriteErrorResponse(w, message, http.StatusInternalServerError)
	}
}

func (rr *Routes) record(ctx context.Context, resource, operation string, err error) {
	rr.metrics.RecordOperation(ctx, resource, operation, err == nil)
}
