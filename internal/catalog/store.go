package catalog

import (
	"context"
	"errors"
)

// ErrNotFound is returned by point lookups when no row matches the key.
var ErrNotFound = errors.New("catalog: not found")

// Store persists the mirrored catalog. Workspace, Item, and SqlEndpoint rows
// use upsert-by-key so ids absent from one crawl are not silently dropped;
// Schema/Table/Column rows use replace-on-refresh, each Replace* call
// committing atomically so readers never observe a half-truncated scope.
type Store interface {
	// Init creates tables/collections and indexes if they do not exist.
	Init(ctx context.Context) error

	UpsertWorkspaces(ctx context.Context, rows []Workspace) error
	UpsertItems(ctx context.Context, rows []Item) error
	UpsertEndpoints(ctx context.Context, rows []SqlEndpoint) error

	// DeleteEndpoints purges all SqlEndpoint rows of a workspace ahead of a
	// full endpoint re-resolution, so stale ids do not linger.
	DeleteEndpoints(ctx context.Context, workspaceID string) error

	ReplaceSchemas(ctx context.Context, workspaceID, databaseID string, rows []Schema) error
	ReplaceTables(ctx context.Context, workspaceID, databaseID, schemaName string, rows []Table) error
	ReplaceColumns(ctx context.Context, workspaceID, databaseID, schemaName, tableName string, rows []Column) error
	// ReplaceIntrospection swaps the full schema/table/column tree of one
	// database in a single atomic unit.
	ReplaceIntrospection(ctx context.Context, workspaceID, databaseID string, schemas []Schema, tables []Table, columns []Column) error

	GetWorkspace(ctx context.Context, id string) (*Workspace, error)
	ListWorkspaces(ctx context.Context) ([]Workspace, error)
	ListItems(ctx context.Context, workspaceID string) ([]Item, error)
	GetEndpoint(ctx context.Context, databaseID string) (*SqlEndpoint, error)
	// ListEndpoints returns a workspace's endpoints, or every endpoint when
	// workspaceID is empty.
	ListEndpoints(ctx context.Context, workspaceID string) ([]SqlEndpoint, error)
	// ListSchemas/ListTables/ListColumns scope by the non-empty key parts;
	// an empty schemaName (or tableName) widens the scope to the database.
	ListSchemas(ctx context.Context, workspaceID, databaseID string) ([]Schema, error)
	ListTables(ctx context.Context, workspaceID, databaseID, schemaName string) ([]Table, error)
	ListColumns(ctx context.Context, workspaceID, databaseID, schemaName, tableName string) ([]Column, error)

	Stats(ctx context.Context) (*Stats, error)
	Close(ctx context.Context) error
}
