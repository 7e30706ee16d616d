package memory

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/stacklok/content-replicator/internal/content"
)

// Export is the on-disk representation of a content repository.
// JSON exports are accepted as well since YAML is a superset of JSON.
type Export struct {
	NodeTypes  map[string]ExportNodeType `yaml:"nodeTypes"`
	Sites      []*content.Site           `yaml:"sites"`
	Workspaces []ExportWorkspace         `yaml:"workspaces"`
	Assets     []ExportAsset             `yaml:"assets"`
	Nodes      []ExportNode              `yaml:"nodes"`
}

// ExportNodeType declares a node type
type ExportNodeType struct {
	Properties map[string]content.PropertyDefinition `yaml:"properties"`
}

// ExportWorkspace declares a workspace and its nearest base
type ExportWorkspace struct {
	Name string `yaml:"name"`
	Base string `yaml:"base,omitempty"`
}

// ExportAsset declares an asset. Content is base64 encoded.
type ExportAsset struct {
	Identifier     string         `yaml:"identifier"`
	Type           string         `yaml:"type"`
	Title          string         `yaml:"title,omitempty"`
	Caption        string         `yaml:"caption,omitempty"`
	Filename       string         `yaml:"filename,omitempty"`
	MediaType      string         `yaml:"mediaType,omitempty"`
	CollectionName string         `yaml:"collectionName,omitempty"`
	Content        string         `yaml:"content,omitempty"`
	Original       string         `yaml:"original,omitempty"`
	Adjustments    map[string]any `yaml:"adjustments,omitempty"`
}

// ExportNode declares a node. Reference and asset properties hold identifiers.
type ExportNode struct {
	Identifier string              `yaml:"identifier,omitempty"`
	Path       string              `yaml:"path"`
	NodeType   string              `yaml:"nodeType,omitempty"`
	Site       string              `yaml:"site,omitempty"`
	Dimensions map[string][]string `yaml:"dimensions,omitempty"`
	Properties map[string]any      `yaml:"properties,omitempty"`
	Index      int                 `yaml:"index,omitempty"`
	Hidden     bool                `yaml:"hidden,omitempty"`
	Removed    bool                `yaml:"removed,omitempty"`
}

// Load reads an export file into a new repository
func Load(exportPath string) (*Repository, error) {
	data, err := os.ReadFile(filepath.Clean(exportPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read content export: %w", err)
	}
	return Parse(data)
}

// Parse builds a repository from export file content
func Parse(data []byte) (*Repository, error) {
	var export Export
	if err := yaml.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("failed to parse content export: %w", err)
	}
	return export.Build()
}

// Build creates a repository holding everything the export declares
func (e *Export) Build() (*Repository, error) {
	repo := NewRepository()

	for name, declaration := range e.NodeTypes {
		if err := repo.AddNodeType(content.NewNodeType(name, declaration.Properties)); err != nil {
			return nil, err
		}
	}
	for _, site := range e.Sites {
		if err := repo.AddSite(site); err != nil {
			return nil, err
		}
	}
	if err := e.addWorkspaces(repo); err != nil {
		return nil, err
	}
	if err := e.addAssets(repo); err != nil {
		return nil, err
	}

	// Parents must exist before their children.
	nodes := make([]ExportNode, len(e.Nodes))
	copy(nodes, e.Nodes)
	sort.SliceStable(nodes, func(i, j int) bool {
		return strings.Count(strings.TrimSuffix(nodes[i].Path, "/"), "/") <
			strings.Count(strings.TrimSuffix(nodes[j].Path, "/"), "/")
	})
	for _, node := range nodes {
		_, err := repo.AddNode(NodeSpec{
			Identifier: node.Identifier,
			Path:       node.Path,
			NodeType:   node.NodeType,
			Site:       node.Site,
			Dimensions: node.Dimensions,
			Properties: normalizeProperties(node.Properties),
			Index:      node.Index,
			Hidden:     node.Hidden,
			Removed:    node.Removed,
		})
		if err != nil {
			return nil, err
		}
	}
	return repo, nil
}

func (e *Export) addWorkspaces(repo *Repository) error {
	pending := make([]ExportWorkspace, len(e.Workspaces))
	copy(pending, e.Workspaces)

	// Workspaces may be listed in any order, add them once their base exists.
	for len(pending) > 0 {
		var deferred []ExportWorkspace
		for _, workspace := range pending {
			if workspace.Base != "" {
				if _, err := repo.Workspace(workspace.Base); err != nil {
					deferred = append(deferred, workspace)
					continue
				}
			}
			if _, err := repo.AddWorkspace(workspace.Name, workspace.Base); err != nil {
				return err
			}
		}
		if len(deferred) == len(pending) {
			return fmt.Errorf("workspace %q has an unknown or cyclic base %q", deferred[0].Name, deferred[0].Base)
		}
		pending = deferred
	}
	return nil
}

func (e *Export) addAssets(repo *Repository) error {
	// Originals first so that variants can point at them.
	assets := make([]ExportAsset, len(e.Assets))
	copy(assets, e.Assets)
	sort.SliceStable(assets, func(i, j int) bool {
		return assets[i].Original == "" && assets[j].Original != ""
	})

	for _, declaration := range assets {
		asset := &content.Asset{
			Identifier:  declaration.Identifier,
			Type:        content.AssetType(declaration.Type),
			Title:       declaration.Title,
			Caption:     declaration.Caption,
			Adjustments: declaration.Adjustments,
		}
		if asset.Type == "" {
			asset.Type = content.AssetTypeDocument
		}
		if declaration.Original != "" {
			original, err := repo.Asset(declaration.Original)
			if err != nil {
				return err
			}
			asset.OriginalAsset = original
			asset.Type = content.AssetTypeImageVariant
		} else if declaration.Filename != "" {
			data, err := base64.StdEncoding.DecodeString(declaration.Content)
			if err != nil {
				return fmt.Errorf("asset %q: invalid content encoding: %w", declaration.Identifier, err)
			}
			asset.Resource = &content.Resource{
				Filename:       declaration.Filename,
				MediaType:      declaration.MediaType,
				CollectionName: declaration.CollectionName,
				Content:        data,
			}
		}
		if err := repo.AddAsset(asset); err != nil {
			return err
		}
	}
	return nil
}

// normalizeProperties turns reference lists decoded as []any into []string
func normalizeProperties(properties map[string]any) map[string]any {
	for name, value := range properties {
		list, ok := value.([]any)
		if !ok {
			continue
		}
		identifiers := make([]string, 0, len(list))
		for _, item := range list {
			identifier, ok := item.(string)
			if !ok {
				identifiers = nil
				break
			}
			identifiers = append(identifiers, identifier)
		}
		if identifiers != nil {
			properties[name] = identifiers
		}
	}
	return properties
}
