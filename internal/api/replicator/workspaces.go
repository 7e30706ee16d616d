package replicator

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/stacklok/content-replicator/internal/api/common"
	"github.com/stacklok/content-replicator/internal/store"
	"github.com/stacklok/content-replicator/internal/validators"
)

// CreateWorkspaceRequest is the optional body of POST /replicator/workspaces/{name}
type CreateWorkspaceRequest struct {
	BaseWorkspaceName string `json:"baseWorkspaceName,omitempty"`
}

func (rr *Routes) getWorkspace(w http.ResponseWriter, r *http.Request) {
	name, err := common.GetAndValidateURLParam(r, "name")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	workspace, err := rr.store.GetWorkspace(r.Context(), name)
	if err != nil {
		writeStoreError(w, err, "workspace "+name)
		return
	}
	common.WriteJSONResponse(w, workspace, http.StatusOK)
}

func (rr *Routes) createWorkspace(w http.ResponseWriter, r *http.Request) {
	name, err := common.GetAndValidateURLParam(r, "name")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := validators.ValidateWorkspaceName(name); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req CreateWorkspaceRequest
	if err := common.DecodeJSONBody(r, &req); err != nil {
		common.WriteErrorResponse(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if _, err := rr.store.GetWorkspace(r.Context(), name); err == nil {
		common.WriteErrorResponse(w, "workspace "+name+" already exists", http.StatusConflict)
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		writeStoreError(w, err, "failed to look up workspace")
		return
	}

	if req.BaseWorkspaceName != "" {
		if _, err := rr.store.GetWorkspace(r.Context(), req.BaseWorkspaceName); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				common.WriteErrorResponse(w, "base workspace "+req.BaseWorkspaceName+" does not exist",
					http.StatusFailedDependency)
				return
			}
			writeStoreError(w, err, "failed to look up base workspace")
			return
		}
	}

	workspace := &store.Workspace{Name: name, BaseWorkspaceName: req.BaseWorkspaceName}
	err = rr.store.CreateWorkspace(r.Context(), workspace)
	rr.record(r.Context(), resourceWorkspace, "create", err)
	if err != nil {
		writeStoreError(w, err, "workspace "+name)
		return
	}

	slog.Info("Created workspace", "workspace", name, "base", req.BaseWorkspaceName)
	common.WriteJSONResponse(w, workspace, http.StatusCreated)
}
