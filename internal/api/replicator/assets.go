package replicator

import (
	"crypto/sha1" //nolint:gosec // content addressing, not security
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"

	"github.com/stacklok/content-replicator/internal/api/common"
	"github.com/stacklok/content-replicator/internal/store"
)

// AssetReference identifies an asset inside a payload
type AssetReference struct {
	Identity string `json:"__identity"`
	Type     string `json:"__type,omitempty"`
}

// ResourcePayload carries the binary of an original asset, content is base64 encoded
type ResourcePayload struct {
	Filename       string `json:"filename"`
	MediaType      string `json:"mediaType"`
	CollectionName string `json:"collectionName,omitempty"`
	SHA1           string `json:"sha1"`
	Content        []byte `json:"content"`
}

// AssetPayload is a transferred asset
type AssetPayload struct {
	AssetReference
	Title         string           `json:"title,omitempty"`
	Caption       string           `json:"caption,omitempty"`
	OriginalAsset *AssetReference  `json:"originalAsset,omitempty"`
	Adjustments   map[string]any   `json:"adjustments,omitempty"`
	Resource      *ResourcePayload `json:"resource,omitempty"`
}

// CreateAssetRequest is the body of POST /replicator/assets
type CreateAssetRequest struct {
	Asset AssetPayload `json:"asset"`
}

func (rr *Routes) getAsset(w http.ResponseWriter, r *http.Request) {
	identifier, err := common.GetAndValidateURLParam(r, "identifier")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	asset, err := rr.store.GetAsset(r.Context(), identifier)
	if err != nil {
		writeStoreError(w, err, "asset "+identifier)
		return
	}
	common.WriteJSONResponse(w, withoutContent(asset), http.StatusOK)
}

func (rr *Routes) createAsset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req CreateAssetRequest
	if err := common.DecodeJSONBody(r, &req); err != nil {
		common.WriteErrorResponse(w, "invalid request body", http.StatusBadRequest)
		return
	}
	payload := req.Asset
	if payload.Identity == "" {
		common.WriteErrorResponse(w, "asset identity is required", http.StatusBadRequest)
		return
	}

	if _, err := rr.store.GetAsset(ctx, payload.Identity); err == nil {
		common.WriteErrorResponse(w, "asset "+payload.Identity+" already exists", http.StatusConflict)
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		writeStoreError(w, err, "failed to look up asset")
		return
	}

	asset := &store.Asset{
		Identifier:  payload.Identity,
		Type:        payload.Type,
		Title:       payload.Title,
		Caption:     payload.Caption,
		Adjustments: payload.Adjustments,
	}

	if payload.OriginalAsset != nil && payload.OriginalAsset.Identity != "" {
		if _, err := rr.store.GetAsset(ctx, payload.OriginalAsset.Identity); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				common.WriteErrorResponse(w, "original asset "+payload.OriginalAsset.Identity+" does not exist",
					http.StatusFailedDependency)
				return
			}
			writeStoreError(w, err, "failed to look up original asset")
			return
		}
		asset.OriginalAsset = payload.OriginalAsset.Identity
	}

	if resource := payload.Resource; resource != nil {
		digest := sha1.Sum(resource.Content) //nolint:gosec // content addressing, not security
		sum := hex.EncodeToString(digest[:])
		if resource.SHA1 != "" && resource.SHA1 != sum {
			common.WriteErrorResponse(w, "resource content does not match its sha1", http.StatusBadRequest)
			return
		}
		asset.Resource = &store.Resource{
			Filename:       resource.Filename,
			MediaType:      resource.MediaType,
			CollectionName: resource.CollectionName,
			SHA1:           sum,
			Content:        resource.Content,
		}
	}

	err := rr.store.CreateAsset(ctx, asset)
	rr.record(ctx, resourceAsset, "create", err)
	if err != nil {
		writeStoreError(w, err, "asset "+asset.Identifier)
		return
	}

	slog.Debug("Created asset", "asset", asset.Identifier, "type", asset.Type)
	common.WriteJSONResponse(w, withoutContent(asset), http.StatusCreated)
}

// withoutContent returns a copy of the asset without the resource binary
func withoutContent(asset *store.Asset) *store.Asset {
	if asset.Resource == nil {
		return asset
	}
	copied := *asset
	resource := *asset.Resource
	resource.Content = nil
	copied.Resource = &resource
	return &copied
}
