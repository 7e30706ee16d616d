package content

// AssetType classifies managed assets
type AssetType string

const (
	// AssetTypeDocument is a generic binary asset
	AssetTypeDocument AssetType = "document"
	// AssetTypeImage is an original image
	AssetTypeImage AssetType = "image"
	// AssetTypeImageVariant is an image derived from an original image
	AssetTypeImageVariant AssetType = "imageVariant"
)

// Resource is the binary payload behind an asset
type Resource struct {
	Filename       string
	MediaType      string
	CollectionName string
	SHA1           string
	Content        []byte
}

// Asset is a managed binary resource referenceable from node properties
type Asset struct {
	Identifier string
	Type       AssetType
	Title      string
	Caption    string
	Resource   *Resource

	// OriginalAsset is set for image variants only
	OriginalAsset *Asset
	// Adjustments describes how a variant is derived from its original
	Adjustments map[string]any
}

// IsVariant reports whether the asset is derived from an original asset
func (a *Asset) IsVariant() bool {
	return a.OriginalAsset != nil
}
