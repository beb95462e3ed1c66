package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres implements Store on PostgreSQL via pgx.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to the catalog database with the given DSN.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing catalog DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to catalog database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging catalog database: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

var pgDDL = []string{
	`CREATE TABLE IF NOT EXISTS workspaces (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		state TEXT,
		created_by TEXT,
		created_at TEXT,
		last_activity_at TEXT,
		region TEXT,
		last_synced_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		type TEXT NOT NULL,
		name TEXT,
		updated_at TEXT,
		last_synced_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_items_workspace ON items(workspace_id)`,
	`CREATE TABLE IF NOT EXISTS sql_endpoints (
		database_id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		name TEXT,
		server TEXT,
		database TEXT,
		port INTEGER,
		connection_string TEXT,
		last_synced_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sql_endpoints_workspace ON sql_endpoints(workspace_id)`,
	`CREATE TABLE IF NOT EXISTS schemas (
		workspace_id TEXT NOT NULL,
		database_id TEXT NOT NULL,
		schema_name TEXT NOT NULL,
		sampled_at TIMESTAMPTZ,
		PRIMARY KEY (workspace_id, database_id, schema_name)
	)`,
	`CREATE TABLE IF NOT EXISTS tables (
		workspace_id TEXT NOT NULL,
		database_id TEXT NOT NULL,
		schema_name TEXT NOT NULL,
		table_name TEXT NOT NULL,
		row_count BIGINT,
		last_modified TEXT,
		sampled_at TIMESTAMPTZ,
		PRIMARY KEY (workspace_id, database_id, schema_name, table_name)
	)`,
	`CREATE TABLE IF NOT EXISTS columns (
		workspace_id TEXT NOT NULL,
		database_id TEXT NOT NULL,
		schema_name TEXT NOT NULL,
		table_name TEXT NOT NULL,
		column_name TEXT NOT NULL,
		ordinal INTEGER,
		data_type TEXT,
		is_nullable BOOLEAN,
		max_length INTEGER,
		numeric_precision INTEGER,
		numeric_scale INTEGER,
		sampled_at TIMESTAMPTZ,
		PRIMARY KEY (workspace_id, database_id, schema_name, table_name, column_name)
	)`,
}

func (p *Postgres) Init(ctx context.Context) error {
	for _, ddl := range pgDDL {
		if _, err := p.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("creating catalog tables: %w", err)
		}
	}
	return nil
}

func (p *Postgres) UpsertWorkspaces(ctx context.Context, rows []Workspace) error {
	const q = `
		INSERT INTO workspaces (id, name, state, created_by, created_at, last_activity_at, region, last_synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			state = EXCLUDED.state,
			created_by = EXCLUDED.created_by,
			created_at = EXCLUDED.created_at,
			last_activity_at = EXCLUDED.last_activity_at,
			region = EXCLUDED.region,
			last_synced_at = EXCLUDED.last_synced_at`
	for _, r := range rows {
		if _, err := p.pool.Exec(ctx, q,
			r.ID, r.Name, r.State, r.CreatedBy, r.CreatedAt, r.LastActivityAt, r.Region, r.LastSyncedAt); err != nil {
			return fmt.Errorf("upserting workspace %s: %w", r.ID, err)
		}
	}
	return nil
}

func (p *Postgres) UpsertItems(ctx context.Context, rows []Item) error {
	const q = `
		INSERT INTO items (id, workspace_id, type, name, updated_at, last_synced_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			workspace_id = EXCLUDED.workspace_id,
			type = EXCLUDED.type,
			name = EXCLUDED.name,
			updated_at = EXCLUDED.updated_at,
			last_synced_at = EXCLUDED.last_synced_at`
	for _, r := range rows {
		if _, err := p.pool.Exec(ctx, q,
			r.ID, r.WorkspaceID, r.Type, r.Name, r.UpdatedAt, r.LastSyncedAt); err != nil {
			return fmt.Errorf("upserting item %s: %w", r.ID, err)
		}
	}
	return nil
}

func (p *Postgres) UpsertEndpoints(ctx context.Context, rows []SqlEndpoint) error {
	const q = `
		INSERT INTO sql_endpoints (database_id, workspace_id, kind, name, server, database, port, connection_string, last_synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (database_id) DO UPDATE SET
			workspace_id = EXCLUDED.workspace_id,
			kind = EXCLUDED.kind,
			name = EXCLUDED.name,
			server = EXCLUDED.server,
			database = EXCLUDED.database,
			port = EXCLUDED.port,
			connection_string = EXCLUDED.connection_string,
			last_synced_at = EXCLUDED.last_synced_at`
	for _, r := range rows {
		if _, err := p.pool.Exec(ctx, q,
			r.DatabaseID, r.WorkspaceID, r.Kind, r.Name, r.Server, r.Database, r.Port, r.ConnectionString, r.LastSyncedAt); err != nil {
			return fmt.Errorf("upserting sql endpoint %s: %w", r.DatabaseID, err)
		}
	}
	return nil
}

func (p *Postgres) DeleteEndpoints(ctx context.Context, workspaceID string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM sql_endpoints WHERE workspace_id = $1`, workspaceID); err != nil {
		return fmt.Errorf("deleting sql endpoints for workspace %s: %w", workspaceID, err)
	}
	return nil
}

func (p *Postgres) ReplaceSchemas(ctx context.Context, workspaceID, databaseID string, rows []Schema) error {
	return p.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM schemas WHERE workspace_id = $1 AND database_id = $2`,
			workspaceID, databaseID); err != nil {
			return err
		}
		for _, r := range rows {
			if _, err := tx.Exec(ctx,
				`INSERT INTO schemas (workspace_id, database_id, schema_name, sampled_at) VALUES ($1, $2, $3, $4)`,
				r.WorkspaceID, r.DatabaseID, r.SchemaName, r.SampledAt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *Postgres) ReplaceTables(ctx context.Context, workspaceID, databaseID, schemaName string, rows []Table) error {
	return p.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM tables WHERE workspace_id = $1 AND database_id = $2 AND schema_name = $3`,
			workspaceID, databaseID, schemaName); err != nil {
			return err
		}
		for _, r := range rows {
			if err := insertTable(ctx, tx, r); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *Postgres) ReplaceColumns(ctx context.Context, workspaceID, databaseID, schemaName, tableName string, rows []Column) error {
	return p.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM columns WHERE workspace_id = $1 AND database_id = $2 AND schema_name = $3 AND table_name = $4`,
			workspaceID, databaseID, schemaName, tableName); err != nil {
			return err
		}
		for _, r := range rows {
			if err := insertColumn(ctx, tx, r); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *Postgres) ReplaceIntrospection(ctx context.Context, workspaceID, databaseID string, schemas []Schema, tables []Table, columns []Column) error {
	return p.inTx(ctx, func(tx pgx.Tx) error {
		for _, table := range []string{"columns", "tables", "schemas"} {
			q := fmt.Sprintf(`DELETE FROM %s WHERE workspace_id = $1 AND database_id = $2`, table)
			if _, err := tx.Exec(ctx, q, workspaceID, databaseID); err != nil {
				return err
			}
		}
		for _, r := range schemas {
			if _, err := tx.Exec(ctx,
				`INSERT INTO schemas (workspace_id, database_id, schema_name, sampled_at) VALUES ($1, $2, $3, $4)`,
				r.WorkspaceID, r.DatabaseID, r.SchemaName, r.SampledAt); err != nil {
				return err
			}
		}
		for _, r := range tables {
			if err := insertTable(ctx, tx, r); err != nil {
				return err
			}
		}
		for _, r := range columns {
			if err := insertColumn(ctx, tx, r); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertTable(ctx context.Context, tx pgx.Tx, r Table) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO tables (workspace_id, database_id, schema_name, table_name, row_count, last_modified, sampled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.WorkspaceID, r.DatabaseID, r.SchemaName, r.TableName, r.RowCount, r.LastModified, r.SampledAt)
	return err
}

func insertColumn(ctx context.Context, tx pgx.Tx, r Column) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO columns (workspace_id, database_id, schema_name, table_name, column_name,
			ordinal, data_type, is_nullable, max_length, numeric_precision, numeric_scale, sampled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		r.WorkspaceID, r.DatabaseID, r.SchemaName, r.TableName, r.ColumnName,
		r.Ordinal, r.DataType, r.IsNullable, r.MaxLength, r.NumericPrecision, r.NumericScale, r.SampledAt)
	return err
}

func (p *Postgres) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *Postgres) GetWorkspace(ctx context.Context, id string) (*Workspace, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, name, state, created_by, created_at, last_activity_at, region, last_synced_at
		FROM workspaces WHERE id = $1`, id)
	var w Workspace
	var state *string
	err := row.Scan(&w.ID, &w.Name, &state, &w.CreatedBy, &w.CreatedAt, &w.LastActivityAt, &w.Region, &w.LastSyncedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if state != nil {
		w.State = *state
	}
	return &w, nil
}

func (p *Postgres) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, name, state, created_by, created_at, last_activity_at, region, last_synced_at
		FROM workspaces ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Workspace
	for rows.Next() {
		var w Workspace
		var state *string
		if err := rows.Scan(&w.ID, &w.Name, &state, &w.CreatedBy, &w.CreatedAt, &w.LastActivityAt, &w.Region, &w.LastSyncedAt); err != nil {
			return nil, err
		}
		if state != nil {
			w.State = *state
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (p *Postgres) ListItems(ctx context.Context, workspaceID string) ([]Item, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, workspace_id, type, name, updated_at, last_synced_at
		FROM items WHERE workspace_id = $1 ORDER BY name`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.WorkspaceID, &it.Type, &it.Name, &it.UpdatedAt, &it.LastSyncedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (p *Postgres) GetEndpoint(ctx context.Context, databaseID string) (*SqlEndpoint, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT database_id, workspace_id, kind, name, server, database, port, connection_string, last_synced_at
		FROM sql_endpoints WHERE database_id = $1`, databaseID)
	var ep SqlEndpoint
	err := row.Scan(&ep.DatabaseID, &ep.WorkspaceID, &ep.Kind, &ep.Name, &ep.Server, &ep.Database, &ep.Port, &ep.ConnectionString, &ep.LastSyncedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ep, nil
}

func (p *Postgres) ListEndpoints(ctx context.Context, workspaceID string) ([]SqlEndpoint, error) {
	q := `SELECT database_id, workspace_id, kind, name, server, database, port, connection_string, last_synced_at
		FROM sql_endpoints`
	args := []any{}
	if workspaceID != "" {
		q += ` WHERE workspace_id = $1`
		args = append(args, workspaceID)
	}
	q += ` ORDER BY name`

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SqlEndpoint
	for rows.Next() {
		var ep SqlEndpoint
		if err := rows.Scan(&ep.DatabaseID, &ep.WorkspaceID, &ep.Kind, &ep.Name, &ep.Server, &ep.Database, &ep.Port, &ep.ConnectionString, &ep.LastSyncedAt); err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}

func (p *Postgres) ListSchemas(ctx context.Context, workspaceID, databaseID string) ([]Schema, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT workspace_id, database_id, schema_name, sampled_at
		FROM schemas WHERE workspace_id = $1 AND database_id = $2 ORDER BY schema_name`,
		workspaceID, databaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Schema
	for rows.Next() {
		var s Schema
		if err := rows.Scan(&s.WorkspaceID, &s.DatabaseID, &s.SchemaName, &s.SampledAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) ListTables(ctx context.Context, workspaceID, databaseID, schemaName string) ([]Table, error) {
	q := `SELECT workspace_id, database_id, schema_name, table_name, row_count, last_modified, sampled_at
		FROM tables WHERE workspace_id = $1 AND database_id = $2`
	args := []any{workspaceID, databaseID}
	if schemaName != "" {
		q += ` AND schema_name = $3`
		args = append(args, schemaName)
	}
	q += ` ORDER BY schema_name, table_name`

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Table
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.WorkspaceID, &t.DatabaseID, &t.SchemaName, &t.TableName, &t.RowCount, &t.LastModified, &t.SampledAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *Postgres) ListColumns(ctx context.Context, workspaceID, databaseID, schemaName, tableName string) ([]Column, error) {
	q := `SELECT workspace_id, database_id, schema_name, table_name, column_name,
			ordinal, data_type, is_nullable, max_length, numeric_precision, numeric_scale, sampled_at
		FROM columns WHERE workspace_id = $1 AND database_id = $2`
	args := []any{workspaceID, databaseID}
	if schemaName != "" {
		args = append(args, schemaName)
		q += fmt.Sprintf(` AND schema_name = $%d`, len(args))
	}
	if tableName != "" {
		args = append(args, tableName)
		q += fmt.Sprintf(` AND table_name = $%d`, len(args))
	}
	q += ` ORDER BY schema_name, table_name, ordinal`

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.WorkspaceID, &c.DatabaseID, &c.SchemaName, &c.TableName, &c.ColumnName,
			&c.Ordinal, &c.DataType, &c.IsNullable, &c.MaxLength, &c.NumericPrecision, &c.NumericScale, &c.SampledAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	counts := []struct {
		table string
		dest  *int64
	}{
		{"workspaces", &st.Workspaces},
		{"items", &st.Items},
		{"sql_endpoints", &st.Endpoints},
		{"schemas", &st.Schemas},
		{"tables", &st.Tables},
		{"columns", &st.Columns},
	}
	for _, c := range counts {
		q := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, c.table)
		if err := p.pool.QueryRow(ctx, q).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", c.table, err)
		}
	}
	return &st, nil
}

func (p *Postgres) Close(_ context.Context) error {
	p.pool.Close()
	return nil
}

// compile-time interface check
var _ Store = (*Postgres)(nil)
