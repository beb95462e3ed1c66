package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Mongo implements Store on MongoDB. One collection per entity; composite
// keys are stored as the _id document so upserts and scope deletes stay
// index-backed. Replace* operations run inside a transaction, so the mongodb
// backend needs a replica set (Atlas or local rs0) for atomic refreshes.
type Mongo struct {
	client   *mongo.Client
	database string
}

// NewMongo connects to the catalog MongoDB deployment.
func NewMongo(ctx context.Context, connectionString, database string) (*Mongo, error) {
	opts := options.Client().ApplyURI(connectionString)
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	return &Mongo{client: client, database: database}, nil
}

const (
	colWorkspaces = "workspaces"
	colItems      = "items"
	colEndpoints  = "sql_endpoints"
	colSchemas    = "schemas"
	colTables     = "tables"
	colColumns    = "columns"
)

func (m *Mongo) col(name string) *mongo.Collection {
	return m.client.Database(m.database).Collection(name)
}

func (m *Mongo) Init(ctx context.Context) error {
	// _id covers every lookup path except workspace-scoped scans.
	scoped := []string{colItems, colEndpoints, colSchemas, colTables, colColumns}
	for _, name := range scoped {
		_, err := m.col(name).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: "workspace_id", Value: 1}},
		})
		if err != nil {
			return fmt.Errorf("creating workspace index on %s: %w", name, err)
		}
	}
	return nil
}

func (m *Mongo) UpsertWorkspaces(ctx context.Context, rows []Workspace) error {
	for _, r := range rows {
		doc := bson.M{
			"name":             r.Name,
			"state":            r.State,
			"created_by":       r.CreatedBy,
			"created_at":       r.CreatedAt,
			"last_activity_at": r.LastActivityAt,
			"region":           r.Region,
			"last_synced_at":   r.LastSyncedAt,
		}
		if err := m.upsertByID(ctx, colWorkspaces, r.ID, doc); err != nil {
			return fmt.Errorf("upserting workspace %s: %w", r.ID, err)
		}
	}
	return nil
}

func (m *Mongo) UpsertItems(ctx context.Context, rows []Item) error {
	for _, r := range rows {
		doc := bson.M{
			"workspace_id":   r.WorkspaceID,
			"type":           r.Type,
			"name":           r.Name,
			"updated_at":     r.UpdatedAt,
			"last_synced_at": r.LastSyncedAt,
		}
		if err := m.upsertByID(ctx, colItems, r.ID, doc); err != nil {
			return fmt.Errorf("upserting item %s: %w", r.ID, err)
		}
	}
	return nil
}

func (m *Mongo) UpsertEndpoints(ctx context.Context, rows []SqlEndpoint) error {
	for _, r := range rows {
		doc := bson.M{
			"workspace_id":      r.WorkspaceID,
			"kind":              r.Kind,
			"name":              r.Name,
			"server":            r.Server,
			"database":          r.Database,
			"port":              r.Port,
			"connection_string": r.ConnectionString,
			"last_synced_at":    r.LastSyncedAt,
		}
		if err := m.upsertByID(ctx, colEndpoints, r.DatabaseID, doc); err != nil {
			return fmt.Errorf("upserting sql endpoint %s: %w", r.DatabaseID, err)
		}
	}
	return nil
}

func (m *Mongo) upsertByID(ctx context.Context, col string, id any, doc bson.M) error {
	_, err := m.col(col).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": doc},
		options.UpdateOne().SetUpsert(true))
	return err
}

func (m *Mongo) DeleteEndpoints(ctx context.Context, workspaceID string) error {
	_, err := m.col(colEndpoints).DeleteMany(ctx, bson.M{"workspace_id": workspaceID})
	if err != nil {
		return fmt.Errorf("deleting sql endpoints for workspace %s: %w", workspaceID, err)
	}
	return nil
}

func schemaID(r Schema) bson.D {
	return bson.D{
		{Key: "workspace_id", Value: r.WorkspaceID},
		{Key: "database_id", Value: r.DatabaseID},
		{Key: "schema_name", Value: r.SchemaName},
	}
}

func tableID(r Table) bson.D {
	return bson.D{
		{Key: "workspace_id", Value: r.WorkspaceID},
		{Key: "database_id", Value: r.DatabaseID},
		{Key: "schema_name", Value: r.SchemaName},
		{Key: "table_name", Value: r.TableName},
	}
}

func columnID(r Column) bson.D {
	return bson.D{
		{Key: "workspace_id", Value: r.WorkspaceID},
		{Key: "database_id", Value: r.DatabaseID},
		{Key: "schema_name", Value: r.SchemaName},
		{Key: "table_name", Value: r.TableName},
		{Key: "column_name", Value: r.ColumnName},
	}
}

func (m *Mongo) ReplaceSchemas(ctx context.Context, workspaceID, databaseID string, rows []Schema) error {
	return m.inTx(ctx, func(ctx context.Context) error {
		scope := bson.M{"workspace_id": workspaceID, "database_id": databaseID}
		if _, err := m.col(colSchemas).DeleteMany(ctx, scope); err != nil {
			return err
		}
		for _, r := range rows {
			doc := bson.M{"_id": schemaID(r), "workspace_id": r.WorkspaceID, "database_id": r.DatabaseID,
				"schema_name": r.SchemaName, "sampled_at": r.SampledAt}
			if _, err := m.col(colSchemas).InsertOne(ctx, doc); err != nil {
				return err
			}
		}
		return nil
	})
}

func (m *Mongo) ReplaceTables(ctx context.Context, workspaceID, databaseID, schemaName string, rows []Table) error {
	return m.inTx(ctx, func(ctx context.Context) error {
		scope := bson.M{"workspace_id": workspaceID, "database_id": databaseID, "schema_name": schemaName}
		if _, err := m.col(colTables).DeleteMany(ctx, scope); err != nil {
			return err
		}
		for _, r := range rows {
			if _, err := m.col(colTables).InsertOne(ctx, tableInsertDoc(r)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (m *Mongo) ReplaceColumns(ctx context.Context, workspaceID, databaseID, schemaName, tableName string, rows []Column) error {
	return m.inTx(ctx, func(ctx context.Context) error {
		scope := bson.M{"workspace_id": workspaceID, "database_id": databaseID,
			"schema_name": schemaName, "table_name": tableName}
		if _, err := m.col(colColumns).DeleteMany(ctx, scope); err != nil {
			return err
		}
		for _, r := range rows {
			if _, err := m.col(colColumns).InsertOne(ctx, columnInsertDoc(r)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (m *Mongo) ReplaceIntrospection(ctx context.Context, workspaceID, databaseID string, schemas []Schema, tables []Table, columns []Column) error {
	return m.inTx(ctx, func(ctx context.Context) error {
		scope := bson.M{"workspace_id": workspaceID, "database_id": databaseID}
		for _, name := range []string{colColumns, colTables, colSchemas} {
			if _, err := m.col(name).DeleteMany(ctx, scope); err != nil {
				return err
			}
		}
		for _, r := range schemas {
			doc := bson.M{"_id": schemaID(r), "workspace_id": r.WorkspaceID, "database_id": r.DatabaseID,
				"schema_name": r.SchemaName, "sampled_at": r.SampledAt}
			if _, err := m.col(colSchemas).InsertOne(ctx, doc); err != nil {
				return err
			}
		}
		for _, r := range tables {
			if _, err := m.col(colTables).InsertOne(ctx, tableInsertDoc(r)); err != nil {
				return err
			}
		}
		for _, r := range columns {
			if _, err := m.col(colColumns).InsertOne(ctx, columnInsertDoc(r)); err != nil {
				return err
			}
		}
		return nil
	})
}

func tableInsertDoc(r Table) bson.M {
	return bson.M{
		"_id":           tableID(r),
		"workspace_id":  r.WorkspaceID,
		"database_id":   r.DatabaseID,
		"schema_name":   r.SchemaName,
		"table_name":    r.TableName,
		"row_count":     r.RowCount,
		"last_modified": r.LastModified,
		"sampled_at":    r.SampledAt,
	}
}

func columnInsertDoc(r Column) bson.M {
	return bson.M{
		"_id":               columnID(r),
		"workspace_id":      r.WorkspaceID,
		"database_id":       r.DatabaseID,
		"schema_name":       r.SchemaName,
		"table_name":        r.TableName,
		"column_name":       r.ColumnName,
		"ordinal":           r.Ordinal,
		"data_type":         r.DataType,
		"is_nullable":       r.IsNullable,
		"max_length":        r.MaxLength,
		"numeric_precision": r.NumericPrecision,
		"numeric_scale":     r.NumericScale,
		"sampled_at":        r.SampledAt,
	}
}

func (m *Mongo) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

func (m *Mongo) GetWorkspace(ctx context.Context, id string) (*Workspace, error) {
	var doc workspaceDoc
	err := m.col(colWorkspaces).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	w := doc.model()
	return &w, nil
}

func (m *Mongo) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	cur, err := m.col(colWorkspaces).Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []workspaceDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]Workspace, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

func (m *Mongo) ListItems(ctx context.Context, workspaceID string) ([]Item, error) {
	cur, err := m.col(colItems).Find(ctx, bson.M{"workspace_id": workspaceID},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []itemDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]Item, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

func (m *Mongo) GetEndpoint(ctx context.Context, databaseID string) (*SqlEndpoint, error) {
	var doc endpointDoc
	err := m.col(colEndpoints).FindOne(ctx, bson.M{"_id": databaseID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ep := doc.model()
	return &ep, nil
}

func (m *Mongo) ListEndpoints(ctx context.Context, workspaceID string) ([]SqlEndpoint, error) {
	filter := bson.M{}
	if workspaceID != "" {
		filter["workspace_id"] = workspaceID
	}
	cur, err := m.col(colEndpoints).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []endpointDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]SqlEndpoint, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

func (m *Mongo) ListSchemas(ctx context.Context, workspaceID, databaseID string) ([]Schema, error) {
	cur, err := m.col(colSchemas).Find(ctx,
		bson.M{"workspace_id": workspaceID, "database_id": databaseID},
		options.Find().SetSort(bson.D{{Key: "schema_name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []schemaDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]Schema, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

func (m *Mongo) ListTables(ctx context.Context, workspaceID, databaseID, schemaName string) ([]Table, error) {
	filter := bson.M{"workspace_id": workspaceID, "database_id": databaseID}
	if schemaName != "" {
		filter["schema_name"] = schemaName
	}
	cur, err := m.col(colTables).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "schema_name", Value: 1}, {Key: "table_name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []tableDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]Table, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

func (m *Mongo) ListColumns(ctx context.Context, workspaceID, databaseID, schemaName, tableName string) ([]Column, error) {
	filter := bson.M{"workspace_id": workspaceID, "database_id": databaseID}
	if schemaName != "" {
		filter["schema_name"] = schemaName
	}
	if tableName != "" {
		filter["table_name"] = tableName
	}
	cur, err := m.col(colColumns).Find(ctx, filter,
		options.Find().SetSort(bson.D{
			{Key: "schema_name", Value: 1}, {Key: "table_name", Value: 1}, {Key: "ordinal", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []columnDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]Column, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

func (m *Mongo) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	counts := []struct {
		col  string
		dest *int64
	}{
		{colWorkspaces, &st.Workspaces},
		{colItems, &st.Items},
		{colEndpoints, &st.Endpoints},
		{colSchemas, &st.Schemas},
		{colTables, &st.Tables},
		{colColumns, &st.Columns},
	}
	for _, c := range counts {
		n, err := m.col(c.col).CountDocuments(ctx, bson.M{})
		if err != nil {
			return nil, fmt.Errorf("counting %s: %w", c.col, err)
		}
		*c.dest = n
	}
	return &st, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// compile-time interface check
var _ Store = (*Mongo)(nil)
