package catalog

import "time"

// bson decode shapes, kept separate from the domain models so the driver's
// tags do not leak into the rest of the codebase.

type workspaceDoc struct {
	ID             string     `bson:"_id"`
	Name           string     `bson:"name"`
	State          string     `bson:"state"`
	CreatedBy      *string    `bson:"created_by"`
	CreatedAt      *string    `bson:"created_at"`
	LastActivityAt *string    `bson:"last_activity_at"`
	Region         *string    `bson:"region"`
	LastSyncedAt   *time.Time `bson:"last_synced_at"`
}

func (d workspaceDoc) model() Workspace {
	return Workspace{
		ID:             d.ID,
		Name:           d.Name,
		State:          d.State,
		CreatedBy:      d.CreatedBy,
		CreatedAt:      d.CreatedAt,
		LastActivityAt: d.LastActivityAt,
		Region:         d.Region,
		LastSyncedAt:   d.LastSyncedAt,
	}
}

type itemDoc struct {
	ID           string     `bson:"_id"`
	WorkspaceID  string     `bson:"workspace_id"`
	Type         string     `bson:"type"`
	Name         *string    `bson:"name"`
	UpdatedAt    *string    `bson:"updated_at"`
	LastSyncedAt *time.Time `bson:"last_synced_at"`
}

func (d itemDoc) model() Item {
	return Item{
		ID:           d.ID,
		WorkspaceID:  d.WorkspaceID,
		Type:         d.Type,
		Name:         d.Name,
		UpdatedAt:    d.UpdatedAt,
		LastSyncedAt: d.LastSyncedAt,
	}
}

type endpointDoc struct {
	DatabaseID       string     `bson:"_id"`
	WorkspaceID      string     `bson:"workspace_id"`
	Kind             string     `bson:"kind"`
	Name             string     `bson:"name"`
	Server           *string    `bson:"server"`
	Database         *string    `bson:"database"`
	Port             int        `bson:"port"`
	ConnectionString *string    `bson:"connection_string"`
	LastSyncedAt     *time.Time `bson:"last_synced_at"`
}

func (d endpointDoc) model() SqlEndpoint {
	return SqlEndpoint{
		DatabaseID:       d.DatabaseID,
		WorkspaceID:      d.WorkspaceID,
		Kind:             d.Kind,
		Name:             d.Name,
		Server:           d.Server,
		Database:         d.Database,
		Port:             d.Port,
		ConnectionString: d.ConnectionString,
		LastSyncedAt:     d.LastSyncedAt,
	}
}

type schemaDoc struct {
	WorkspaceID string    `bson:"workspace_id"`
	DatabaseID  string    `bson:"database_id"`
	SchemaName  string    `bson:"schema_name"`
	SampledAt   time.Time `bson:"sampled_at"`
}

func (d schemaDoc) model() Schema {
	return Schema{
		WorkspaceID: d.WorkspaceID,
		DatabaseID:  d.DatabaseID,
		SchemaName:  d.SchemaName,
		SampledAt:   d.SampledAt,
	}
}

type tableDoc struct {
	WorkspaceID  string    `bson:"workspace_id"`
	DatabaseID   string    `bson:"database_id"`
	SchemaName   string    `bson:"schema_name"`
	TableName    string    `bson:"table_name"`
	RowCount     *int64    `bson:"row_count"`
	LastModified *string   `bson:"last_modified"`
	SampledAt    time.Time `bson:"sampled_at"`
}

func (d tableDoc) model() Table {
	return Table{
		WorkspaceID:  d.WorkspaceID,
		DatabaseID:   d.DatabaseID,
		SchemaName:   d.SchemaName,
		TableName:    d.TableName,
		RowCount:     d.RowCount,
		LastModified: d.LastModified,
		SampledAt:    d.SampledAt,
	}
}

type columnDoc struct {
	WorkspaceID      string    `bson:"workspace_id"`
	DatabaseID       string    `bson:"database_id"`
	SchemaName       string    `bson:"schema_name"`
	TableName        string    `bson:"table_name"`
	ColumnName       string    `bson:"column_name"`
	Ordinal          int       `bson:"ordinal"`
	DataType         string    `bson:"data_type"`
	IsNullable       bool      `bson:"is_nullable"`
	MaxLength        *int      `bson:"max_length"`
	NumericPrecision *int      `bson:"numeric_precision"`
	NumericScale     *int      `bson:"numeric_scale"`
	SampledAt        time.Time `bson:"sampled_at"`
}

func (d columnDoc) model() Column {
	return Column{
		WorkspaceID:      d.WorkspaceID,
		DatabaseID:       d.DatabaseID,
		SchemaName:       d.SchemaName,
		TableName:        d.TableName,
		ColumnName:       d.ColumnName,
		Ordinal:          d.Ordinal,
		DataType:         d.DataType,
		IsNullable:       d.IsNullable,
		MaxLength:        d.MaxLength,
		NumericPrecision: d.NumericPrecision,
		NumericScale:     d.NumericScale,
		SampledAt:        d.SampledAt,
	}
}
