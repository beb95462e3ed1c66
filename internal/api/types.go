package api

// WorkspaceResponse is one workspace row.
type WorkspaceResponse struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	State          string  `json:"state"`
	CreatedBy      *string `json:"created_by,omitempty"`
	CreatedAt      *string `json:"created_at,omitempty"`
	LastActivityAt *string `json:"last_activity_at,omitempty"`
	Region         *string `json:"region,omitempty"`
	LastSyncedAt   string  `json:"last_synced_at,omitempty"`
}

// ItemResponse is one item row.
type ItemResponse struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Name      *string `json:"name,omitempty"`
	UpdatedAt *string `json:"updated_at,omitempty"`
}

// EndpointResponse is one SQL endpoint row.
type EndpointResponse struct {
	DatabaseID       string  `json:"database_id"`
	WorkspaceID      string  `json:"workspace_id"`
	Kind             string  `json:"kind"`
	Name             string  `json:"name"`
	Server           *string `json:"server,omitempty"`
	Database         *string `json:"database,omitempty"`
	Port             int     `json:"port"`
	ConnectionString *string `json:"connection_string,omitempty"`
}

// TableResponse is one table row.
type TableResponse struct {
	Schema string `json:"schema"`
	Table  string `json:"table"`
}

// ColumnResponse is one column row.
type ColumnResponse struct {
	Name             string `json:"name"`
	Ordinal          int    `json:"ordinal"`
	DataType         string `json:"data_type"`
	IsNullable       bool   `json:"is_nullable"`
	MaxLength        *int   `json:"max_length,omitempty"`
	NumericPrecision *int   `json:"numeric_precision,omitempty"`
	NumericScale     *int   `json:"numeric_scale,omitempty"`
}

// QueryRequest is the body of the read-only passthrough endpoint.
type QueryRequest struct {
	SQL     string `json:"sql"`
	Params  []any  `json:"params,omitempty"`
	MaxRows int    `json:"maxRows,omitempty"`
}

// QueryResponse carries a materialized result set.
type QueryResponse struct {
	Columns  []string `json:"columns"`
	Rows     [][]any  `json:"rows"`
	RowCount int      `json:"rowCount"`
}

// RefreshResponse acknowledges a refresh operation.
type RefreshResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Count   int    `json:"count,omitempty"`
}

// StatsResponse summarizes catalog row counts.
type StatsResponse struct {
	Workspaces int64 `json:"workspaces"`
	Items      int64 `json:"items"`
	Endpoints  int64 `json:"endpoints"`
	Schemas    int64 `json:"schemas"`
	Tables     int64 `json:"tables"`
	Columns    int64 `json:"columns"`
}

// CatalogTree is the nested full-structure view.
type CatalogTree struct {
	Workspaces []CatalogWorkspace `json:"workspaces"`
}

type CatalogWorkspace struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	State     string            `json:"state"`
	Databases []CatalogDatabase `json:"databases"`
}

type CatalogDatabase struct {
	DatabaseID string          `json:"database_id"`
	Kind       string          `json:"kind"`
	Name       string          `json:"name"`
	Schemas    []CatalogSchema `json:"schemas"`
}

type CatalogSchema struct {
	Name   string         `json:"name"`
	Tables []CatalogTable `json:"tables"`
}

type CatalogTable struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

// ResolveWorkspaceResponse is a resolved workspace reference.
type ResolveWorkspaceResponse struct {
	WorkspaceID   string `json:"workspace_id"`
	WorkspaceName string `json:"workspace_name"`
}

// ResolveDatabaseResponse is a resolved database reference.
type ResolveDatabaseResponse struct {
	WorkspaceID   string `json:"workspace_id"`
	WorkspaceName string `json:"workspace_name"`
	DatabaseID    string `json:"database_id"`
	DatabaseName  string `json:"database_name"`
}
