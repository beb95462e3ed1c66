// Package catalog owns the durable mirror of the remote resource hierarchy:
// workspaces, items, SQL endpoints, and the introspected schema/table/column
// rows beneath them.
package catalog

import "time"

// Workspace states recomputed by the availability prober.
const (
	StateActive   = "active"
	StateInactive = "inactive"
	StateUnknown  = "unknown"
)

// Workspace is a top-level tenant-owned container of items.
type Workspace struct {
	ID             string
	Name           string
	State          string
	CreatedBy      *string
	CreatedAt      *string
	LastActivityAt *string
	Region         *string
	LastSyncedAt   *time.Time
}

// Item is any resource inside a workspace.
type Item struct {
	ID           string
	WorkspaceID  string
	Type         string
	Name         *string
	UpdatedAt    *string
	LastSyncedAt *time.Time
}

// SqlEndpoint is a SQL-capable item's connection surface. Server and
// Database may be nil: the endpoint exists but is unreachable.
type SqlEndpoint struct {
	DatabaseID       string
	WorkspaceID      string
	Kind             string
	Name             string
	Server           *string
	Database         *string
	Port             int
	ConnectionString *string
	LastSyncedAt     *time.Time
}

// Schema is one schema sampled from a live SQL endpoint.
type Schema struct {
	WorkspaceID string
	DatabaseID  string
	SchemaName  string
	SampledAt   time.Time
}

// Table is one base table sampled from a live SQL endpoint.
type Table struct {
	WorkspaceID  string
	DatabaseID   string
	SchemaName   string
	TableName    string
	RowCount     *int64
	LastModified *string
	SampledAt    time.Time
}

// Column is one table column; Ordinal preserves INFORMATION_SCHEMA order.
type Column struct {
	WorkspaceID      string
	DatabaseID       string
	SchemaName       string
	TableName        string
	ColumnName       string
	Ordinal          int
	DataType         string
	IsNullable       bool
	MaxLength        *int
	NumericPrecision *int
	NumericScale     *int
	SampledAt        time.Time
}

// Stats summarizes catalog row counts per table.
type Stats struct {
	Workspaces int64
	Items      int64
	Endpoints  int64
	Schemas    int64
	Tables     int64
	Columns    int64
}
