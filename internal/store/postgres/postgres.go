// Package postgres provides a PostgreSQL-backed Store
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/content-replicator/internal/store"
)

// pgUniqueViolation is the SQLSTATE of a unique constraint violation
const pgUniqueViolation = "23505"

// pgForeignKeyViolation is the SQLSTATE of a foreign key violation
const pgForeignKeyViolation = "23503"

// options holds configuration options for the postgres store
type options struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

// Option is a functional option for configuring the postgres store
type Option func(*options) error

// WithConnectionPool sets the pgx pool. The store closes it on Close.
func WithConnectionPool(pool *pgxpool.Pool) Option {
	return func(o *options) error {
		if pool == nil {
			return fmt.Errorf("pgx pool is required")
		}
		o.pool = pool
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer for the store.
// If not set, tracing will be disabled (no-op).
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		o.tracer = tracer
		return nil
	}
}

// Store persists replicated content in PostgreSQL
type Store struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

var _ store.Store = (*Store)(nil)

// New creates a postgres store
func New(opts ...Option) (*Store, error) {
	o := &options{}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.pool == nil {
		return nil, fmt.Errorf("pgx pool is required")
	}
	return &Store{pool: o.pool, tracer: o.tracer}, nil
}

// Ping implements store.Store
func (s *Store) Ping(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "store.Ping")
	defer span.End()

	err := s.pool.Ping(ctx)
	recordError(span, err)
	return err
}

// Close implements store.Store
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// ListSites implements store.Store
func (s *Store) ListSites(ctx context.Context) ([]*store.Site, error) {
	ctx, span := s.startSpan(ctx, "store.ListSites")
	defer span.End()

	rows, err := s.pool.Query(ctx, `
		SELECT node_name, name, resources_package_key, state, created_at
		FROM replicator_site ORDER BY node_name`)
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	sites, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*store.Site, error) {
		site := &store.Site{}
		err := row.Scan(&site.NodeName, &site.Name, &site.ResourcesPackageKey, &site.State, &site.CreatedAt)
		return site, err
	})
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("failed to read sites: %w", err)
	}
	return sites, nil
}

// GetSite implements store.Store
func (s *Store) GetSite(ctx context.Context, nodeName string) (*store.Site, error) {
	ctx, span := s.startSpan(ctx, "store.GetSite", trace.WithAttributes(attrSite.String(nodeName)))
	defer span.End()

	site := &store.Site{}
	err := s.pool.QueryRow(ctx, `
		SELECT node_name, name, resources_package_key, state, created_at
		FROM replicator_site WHERE node_name = $1`, nodeName).
		Scan(&site.NodeName, &site.Name, &site.ResourcesPackageKey, &site.State, &site.CreatedAt)
	if err != nil {
		return nil, s.translate(span, err, "site "+nodeName)
	}
	return site, nil
}

// CreateSite implements store.Store
func (s *Store) CreateSite(ctx context.Context, site *store.Site) error {
	ctx, span := s.startSpan(ctx, "store.CreateSite", trace.WithAttributes(attrSite.String(site.NodeName)))
	defer span.End()

	err := s.pool.QueryRow(ctx, `
		INSERT INTO replicator_site (node_name, name, resources_package_key, state)
		VALUES ($1, $2, $3, $4) RETURNING created_at`,
		site.NodeName, site.Name, site.ResourcesPackageKey, site.State).Scan(&site.CreatedAt)
	if err != nil {
		return s.translate(span, err, "site "+site.NodeName)
	}
	return nil
}

// GetWorkspace implements store.Store
func (s *Store) GetWorkspace(ctx context.Context, name string) (*store.Workspace, error) {
	ctx, span := s.startSpan(ctx, "store.GetWorkspace", trace.WithAttributes(attrWorkspace.String(name)))
	defer span.End()

	workspace := &store.Workspace{}
	var base *string
	err := s.pool.QueryRow(ctx, `
		SELECT name, base_workspace, created_at FROM replicator_workspace WHERE name = $1`, name).
		Scan(&workspace.Name, &base, &workspace.CreatedAt)
	if err != nil {
		return nil, s.translate(span, err, "workspace "+name)
	}
	if base != nil {
		workspace.BaseWorkspaceName = *base
	}
	return workspace, nil
}

// CreateWorkspace implements store.Store
func (s *Store) CreateWorkspace(ctx context.Context, workspace *store.Workspace) error {
	ctx, span := s.startSpan(ctx, "store.CreateWorkspace", trace.WithAttributes(attrWorkspace.String(workspace.Name)))
	defer span.End()

	var base *string
	if workspace.BaseWorkspaceName != "" {
		base = &workspace.BaseWorkspaceName
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO replicator_workspace (name, base_workspace) VALUES ($1, $2) RETURNING created_at`,
		workspace.Name, base).Scan(&workspace.CreatedAt)
	if err != nil {
		return s.translate(span, err, "workspace "+workspace.Name)
	}
	return nil
}

const nodeColumns = `identifier, workspace, dimensions, path, node_type, hidden, sort_index, properties, updated_at`

func scanNode(row pgx.Row) (*store.Node, error) {
	node := &store.Node{}
	err := row.Scan(
		&node.Identifier, &node.Workspace, &node.Dimensions, &node.Path, &node.NodeType,
		&node.Hidden, &node.Index, &node.Properties, &node.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if node.Properties == nil {
		node.Properties = map[string]any{}
	}
	return node, nil
}

// GetNode implements store.Store
func (s *Store) GetNode(
	ctx context.Context, identifier, workspace string, dimensions map[string][]string,
) (*store.Node, error) {
	ctx, span := s.startSpan(ctx, "store.GetNode",
		trace.WithAttributes(attrNode.String(identifier), attrWorkspace.String(workspace)))
	defer span.End()

	node, err := scanNode(s.pool.QueryRow(ctx, `
		SELECT `+nodeColumns+` FROM replicator_node
		WHERE identifier = $1 AND workspace = $2 AND dimensions_hash = $3`,
		identifier, workspace, store.DimensionsHash(dimensions)))
	if err != nil {
		return nil, s.translate(span, err, "node "+identifier)
	}
	return node, nil
}

// GetNodeByPath implements store.Store
func (s *Store) GetNodeByPath(
	ctx context.Context, nodePath, workspace string, dimensions map[string][]string,
) (*store.Node, error) {
	ctx, span := s.startSpan(ctx, "store.GetNodeByPath", trace.WithAttributes(attrWorkspace.String(workspace)))
	defer span.End()

	node, err := scanNode(s.pool.QueryRow(ctx, `
		SELECT `+nodeColumns+` FROM replicator_node
		WHERE path = $1 AND workspace = $2 AND dimensions_hash = $3`,
		nodePath, workspace, store.DimensionsHash(dimensions)))
	if err != nil {
		return nil, s.translate(span, err, "node at "+nodePath)
	}
	return node, nil
}

// CreateNode implements store.Store
func (s *Store) CreateNode(ctx context.Context, node *store.Node) error {
	ctx, span := s.startSpan(ctx, "store.CreateNode",
		trace.WithAttributes(attrNode.String(node.Identifier), attrWorkspace.String(node.Workspace)))
	defer span.End()

	err := s.pool.QueryRow(ctx, `
		INSERT INTO replicator_node
			(identifier, workspace, dimensions_hash, dimensions, path, node_type, hidden, sort_index, properties)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING updated_at`,
		node.Identifier, node.Workspace, store.DimensionsHash(node.Dimensions), dimensionsValue(node.Dimensions),
		node.Path, node.NodeType, node.Hidden, node.Index, propertiesValue(node.Properties),
	).Scan(&node.UpdatedAt)
	if err != nil {
		return s.translate(span, err, "node "+node.Identifier)
	}
	return nil
}

// UpdateNode implements store.Store
func (s *Store) UpdateNode(ctx context.Context, node *store.Node) error {
	ctx, span := s.startSpan(ctx, "store.UpdateNode",
		trace.WithAttributes(attrNode.String(node.Identifier), attrWorkspace.String(node.Workspace)))
	defer span.End()

	err := s.pool.QueryRow(ctx, `
		UPDATE replicator_node
		SET path = $4, node_type = $5, hidden = $6, sort_index = $7, properties = $8, updated_at = now()
		WHERE identifier = $1 AND workspace = $2 AND dimensions_hash = $3
		RETURNING updated_at`,
		node.Identifier, node.Workspace, store.DimensionsHash(node.Dimensions),
		node.Path, node.NodeType, node.Hidden, node.Index, propertiesValue(node.Properties),
	).Scan(&node.UpdatedAt)
	if err != nil {
		return s.translate(span, err, "node "+node.Identifier)
	}
	return nil
}

// DeleteNode implements store.Store
func (s *Store) DeleteNode(
	ctx context.Context, identifier, workspace string, dimensions map[string][]string,
) error {
	ctx, span := s.startSpan(ctx, "store.DeleteNode",
		trace.WithAttributes(attrNode.String(identifier), attrWorkspace.String(workspace)))
	defer span.End()

	hash := store.DimensionsHash(dimensions)
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		recordError(span, err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var nodePath string
	err = tx.QueryRow(ctx, `
		DELETE FROM replicator_node
		WHERE identifier = $1 AND workspace = $2 AND dimensions_hash = $3
		RETURNING path`, identifier, workspace, hash).Scan(&nodePath)
	if err != nil {
		return s.translate(span, err, "node "+identifier)
	}

	_, err = tx.Exec(ctx, `
		DELETE FROM replicator_node
		WHERE workspace = $1 AND dimensions_hash = $2 AND path LIKE $3 ESCAPE '\'`,
		workspace, hash, escapeLike(nodePath)+"/%")
	if err != nil {
		recordError(span, err)
		return fmt.Errorf("failed to delete descendants of %s: %w", nodePath, err)
	}

	if err := tx.Commit(ctx); err != nil {
		recordError(span, err)
		return fmt.Errorf("failed to commit node deletion: %w", err)
	}
	return nil
}

// GetAsset implements store.Store
func (s *Store) GetAsset(ctx context.Context, identifier string) (*store.Asset, error) {
	ctx, span := s.startSpan(ctx, "store.GetAsset", trace.WithAttributes(attrAsset.String(identifier)))
	defer span.End()

	asset := &store.Asset{}
	var (
		original                                 *string
		filename, mediaType, collection, sha1sum *string
		content                                  []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT identifier, asset_type, title, caption, original_asset, adjustments,
			filename, media_type, collection_name, sha1, content, created_at
		FROM replicator_asset WHERE identifier = $1`, identifier).
		Scan(&asset.Identifier, &asset.Type, &asset.Title, &asset.Caption, &original, &asset.Adjustments,
			&filename, &mediaType, &collection, &sha1sum, &content, &asset.CreatedAt)
	if err != nil {
		return nil, s.translate(span, err, "asset "+identifier)
	}
	if original != nil {
		asset.OriginalAsset = *original
	}
	if filename != nil {
		asset.Resource = &store.Resource{
			Filename:       *filename,
			MediaType:      deref(mediaType),
			CollectionName: deref(collection),
			SHA1:           deref(sha1sum),
			Content:        content,
		}
	}
	return asset, nil
}

// CreateAsset implements store.Store
func (s *Store) CreateAsset(ctx context.Context, asset *store.Asset) error {
	ctx, span := s.startSpan(ctx, "store.CreateAsset", trace.WithAttributes(attrAsset.String(asset.Identifier)))
	defer span.End()

	var original *string
	if asset.OriginalAsset != "" {
		original = &asset.OriginalAsset
	}
	var filename, mediaType, collection, sha1sum *string
	var content []byte
	if r := asset.Resource; r != nil {
		filename, mediaType, collection, sha1sum = &r.Filename, &r.MediaType, &r.CollectionName, &r.SHA1
		content = r.Content
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO replicator_asset
			(identifier, asset_type, title, caption, original_asset, adjustments,
			 filename, media_type, collection_name, sha1, content)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`,
		asset.Identifier, asset.Type, asset.Title, asset.Caption, original, asset.Adjustments,
		filename, mediaType, collection, sha1sum, content,
	).Scan(&asset.CreatedAt)
	if err != nil {
		return s.translate(span, err, "asset "+asset.Identifier)
	}
	return nil
}

// translate maps pgx errors onto the store sentinel errors
func (*Store) translate(span trace.Span, err error, subject string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", subject, store.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w", subject, store.ErrAlreadyExists)
		case pgForeignKeyViolation:
			return fmt.Errorf("%s references a missing record: %w", subject, store.ErrNotFound)
		}
	}
	recordError(span, err)
	return fmt.Errorf("%s: %w", subject, err)
}

func dimensionsValue(dimensions map[string][]string) map[string][]string {
	if dimensions == nil {
		return map[string][]string{}
	}
	return dimensions
}

func propertiesValue(properties map[string]any) map[string]any {
	if properties == nil {
		return map[string]any{}
	}
	return properties
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
