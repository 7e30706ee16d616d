package replicator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"

	"github.com/google/uuid"

	"github.com/stacklok/content-replicator/internal/api/common"
	"github.com/stacklok/content-replicator/internal/content"
	"github.com/stacklok/content-replicator/internal/store"
)

// modeNew is the only supported node creation mode
const modeNew = "new"

// NodeRequest is the body of the node endpoints
type NodeRequest struct {
	Mode          string              `json:"mode,omitempty"`
	Identifier    string              `json:"identifier,omitempty"`
	WorkspaceName string              `json:"workspaceName,omitempty"`
	Workspace     string              `json:"workspace,omitempty"`
	Dimensions    map[string][]string `json:"dimensions,omitempty"`
	Properties    map[string]any      `json:"properties,omitempty"`
}

// workspaceName returns the addressed workspace, live when none is given
func (n *NodeRequest) workspaceName() string {
	switch {
	case n.WorkspaceName != "":
		return n.WorkspaceName
	case n.Workspace != "":
		return n.Workspace
	}
	return store.LiveWorkspace
}

func decodeNodeRequest(r *http.Request) (*NodeRequest, error) {
	req := &NodeRequest{}
	if err := common.DecodeJSONBody(r, req); err != nil {
		return nil, err
	}

	query := r.URL.Query()
	if req.WorkspaceName == "" && req.Workspace == "" {
		req.WorkspaceName = query.Get("workspaceName")
	}
	if req.Dimensions == nil && query.Get("dimensions") != "" {
		if err := json.Unmarshal([]byte(query.Get("dimensions")), &req.Dimensions); err != nil {
			return nil, fmt.Errorf("invalid dimensions: %w", err)
		}
	}
	return req, nil
}

// resolver checks references as seen from one workspace and dimension combination
type resolver struct {
	store      store.Store
	workspace  string
	dimensions map[string][]string
}

func (r *resolver) NodeExists(ctx context.Context, identifier string) (bool, error) {
	_, _, err := store.FindNode(ctx, r.store, identifier, r.workspace, r.dimensions)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *resolver) AssetExists(ctx context.Context, identifier string) (bool, error) {
	_, err := r.store.GetAsset(ctx, identifier)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (rr *Routes) getNode(w http.ResponseWriter, r *http.Request) {
	identifier, err := common.GetAndValidateURLParam(r, "identifier")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	req, err := decodeNodeRequest(r)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	node, _, err := store.FindNode(r.Context(), rr.store, identifier, req.workspaceName(), req.Dimensions)
	if err != nil {
		writeStoreError(w, err, "node "+identifier)
		return
	}
	common.WriteJSONResponse(w, node, http.StatusOK)
}

func (rr *Routes) createNode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := decodeNodeRequest(r)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Mode != modeNew {
		common.WriteErrorResponse(w, fmt.Sprintf("unsupported mode %q", req.Mode), http.StatusBadRequest)
		return
	}
	workspace := req.workspaceName()

	if _, err := rr.store.GetWorkspace(ctx, workspace); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.WriteErrorResponse(w, "workspace "+workspace+" does not exist", http.StatusFailedDependency)
			return
		}
		writeStoreError(w, err, "failed to look up workspace")
		return
	}

	parentPath, _ := req.Properties[content.PropertyParentPath].(string)
	if parentPath == "" {
		common.WriteErrorResponse(w, "parent path is missing", http.StatusFailedDependency)
		return
	}
	if parentPath != "/" {
		if _, err := store.FindNodeByPath(ctx, rr.store, parentPath, workspace, req.Dimensions); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				common.WriteErrorResponse(w, "parent node "+parentPath+" does not exist", http.StatusFailedDependency)
				return
			}
			writeStoreError(w, err, "failed to look up parent node")
			return
		}
	}

	identifier := req.Identifier
	if identifier == "" {
		identifier = uuid.NewString()
	}
	name, _ := req.Properties[content.PropertyName].(string)
	if name == "" {
		name = "node-" + identifier
	}

	node, exists, err := rr.existingNode(ctx, identifier, path.Join(parentPath, name), workspace, req.Dimensions)
	if err != nil {
		writeStoreError(w, err, "failed to look up node")
		return
	}
	if !exists {
		node = &store.Node{
			Identifier: identifier,
			Workspace:  workspace,
			Dimensions: req.Dimensions,
			Path:       path.Join(parentPath, name),
			Properties: map[string]any{},
		}
	}

	if err := rr.nodeTypes.Apply(ctx, node, req.Properties, rr.resolver(workspace, req.Dimensions)); err != nil {
		slog.Error("Failed to apply node properties", "node", identifier, "workspace", workspace, "error", err)
		common.WriteErrorResponse(w, "failed to apply properties: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if exists {
		err = rr.store.UpdateNode(ctx, node)
		rr.record(ctx, resourceNode, "update", err)
	} else {
		err = rr.store.CreateNode(ctx, node)
		rr.record(ctx, resourceNode, "create", err)
	}
	if err != nil {
		writeStoreError(w, err, "node "+identifier)
		return
	}

	slog.Debug("Created node", "node", node.Identifier, "path", node.Path, "workspace", workspace)
	common.WriteJSONResponse(w, node, http.StatusCreated)
}

// existingNode returns the node stored in exactly this workspace by identifier or path
func (rr *Routes) existingNode(
	ctx context.Context, identifier, nodePath, workspace string, dimensions map[string][]string,
) (*store.Node, bool, error) {
	node, err := rr.store.GetNode(ctx, identifier, workspace, dimensions)
	if err == nil {
		return node, true, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}
	node, err = rr.store.GetNodeByPath(ctx, nodePath, workspace, dimensions)
	if err == nil {
		return node, true, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}
	return nil, false, nil
}

func (rr *Routes) updateNode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identifier, err := common.GetAndValidateURLParam(r, "identifier")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	req, err := decodeNodeRequest(r)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	workspace := req.workspaceName()

	node, foundIn, err := store.FindNode(ctx, rr.store, identifier, workspace, req.Dimensions)
	if err != nil {
		writeStoreError(w, err, "node "+identifier)
		return
	}
	// a node inherited from a base workspace is materialized in the addressed one
	materialize := foundIn != workspace
	if materialize {
		node = node.Clone()
		node.Workspace = workspace
	}

	if err := rr.nodeTypes.Apply(ctx, node, req.Properties, rr.resolver(workspace, req.Dimensions)); err != nil {
		slog.Error("Failed to apply node properties", "node", identifier, "workspace", workspace, "error", err)
		common.WriteErrorResponse(w, "failed to apply properties: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if materialize {
		err = rr.store.CreateNode(ctx, node)
	} else {
		err = rr.store.UpdateNode(ctx, node)
	}
	rr.record(ctx, resourceNode, "update", err)
	if err != nil {
		writeStoreError(w, err, "node "+identifier)
		return
	}

	slog.Debug("Updated node", "node", node.Identifier, "path", node.Path, "workspace", workspace)
	common.WriteJSONResponse(w, node, http.StatusOK)
}

func (rr *Routes) deleteNode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identifier, err := common.GetAndValidateURLParam(r, "identifier")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	req, err := decodeNodeRequest(r)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	workspace := req.workspaceName()

	err = rr.store.DeleteNode(ctx, identifier, workspace, req.Dimensions)
	rr.record(ctx, resourceNode, "delete", err)
	if err != nil {
		writeStoreError(w, err, "node "+identifier)
		return
	}

	slog.Info("Removed node", "node", identifier, "workspace", workspace)
	w.WriteHeader(http.StatusNoContent)
}

func (rr *Routes) resolver(workspace string, dimensions map[string][]string) *resolver {
	return &resolver{store: rr.store, workspace: workspace, dimensions: dimensions}
}
