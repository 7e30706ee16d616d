package app

import (
	"github.com/stacklok/content-replicator/internal/nodetype"
	"github.com/stacklok/content-replicator/internal/store"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Store holds the replicated content
	Store store.Store

	// NodeTypes are the compiled node type schemas
	NodeTypes *nodetype.Registry
}
