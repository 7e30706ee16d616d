package replicator

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/stacklok/content-replicator/internal/api/common"
	"github.com/stacklok/content-replicator/internal/store"
	"github.com/stacklok/content-replicator/internal/validators"
)

// CreateSiteRequest is the body of POST /replicator/sites
type CreateSiteRequest struct {
	Name                string `json:"name"`
	NodeName            string `json:"nodeName"`
	State               int    `json:"state"`
	ResourcesPackageKey string `json:"resourcesPackageKey"`
	// SiteResourcesPackageKey is accepted as an alias of ResourcesPackageKey
	SiteResourcesPackageKey string `json:"siteResourcesPackageKey,omitempty"`
}

// ListSitesResponse is the body of GET /replicator/sites
type ListSitesResponse struct {
	Sites []*store.Site `json:"sites"`
}

func (rr *Routes) listSites(w http.ResponseWriter, r *http.Request) {
	sites, err := rr.store.ListSites(r.Context())
	if err != nil {
		writeStoreError(w, err, "failed to list sites")
		return
	}
	if sites == nil {
		sites = []*store.Site{}
	}
	common.WriteJSONResponse(w, ListSitesResponse{Sites: sites}, http.StatusOK)
}

func (rr *Routes) getSite(w http.ResponseWriter, r *http.Request) {
	nodeName, err := common.GetAndValidateURLParam(r, "nodeName")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	site, err := rr.store.GetSite(r.Context(), nodeName)
	if err != nil {
		writeStoreError(w, err, "site "+nodeName)
		return
	}
	common.WriteJSONResponse(w, site, http.StatusOK)
}

func (rr *Routes) createSite(w http.ResponseWriter, r *http.Request) {
	var req CreateSiteRequest
	if err := common.DecodeJSONBody(r, &req); err != nil {
		common.WriteErrorResponse(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.NodeName == "" {
		common.WriteErrorResponse(w, "nodeName is required", http.StatusBadRequest)
		return
	}
	if _, err := validators.ValidateNodeName(req.NodeName); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	packageKey := req.ResourcesPackageKey
	if packageKey == "" {
		packageKey = req.SiteResourcesPackageKey
	}

	if _, err := rr.store.GetSite(r.Context(), req.NodeName); err == nil {
		common.WriteErrorResponse(w, "site "+req.NodeName+" already exists", http.StatusConflict)
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		writeStoreError(w, err, "failed to look up site")
		return
	}

	if !rr.packageAvailable(packageKey) {
		common.WriteErrorResponse(w, "resources package "+packageKey+" is not available", http.StatusFailedDependency)
		return
	}

	site := &store.Site{
		Name:                req.Name,
		NodeName:            req.NodeName,
		ResourcesPackageKey: packageKey,
		State:               req.State,
	}
	err := rr.store.CreateSite(r.Context(), site)
	rr.record(r.Context(), resourceSite, "create", err)
	if err != nil {
		writeStoreError(w, err, "site "+req.NodeName)
		return
	}

	slog.Info("Created site", "site", site.NodeName, "package", site.ResourcesPackageKey)
	common.WriteJSONResponse(w, site, http.StatusCreated)
}
