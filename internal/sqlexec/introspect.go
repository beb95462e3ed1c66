package sqlexec

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fabmirror/fabmirror/internal/catalog"
)

const (
	schemataQuery = "SELECT schema_name FROM INFORMATION_SCHEMA.SCHEMATA ORDER BY schema_name;"

	tablesQuery = `SELECT TABLE_SCHEMA, TABLE_NAME
FROM INFORMATION_SCHEMA.TABLES
WHERE TABLE_TYPE='BASE TABLE' AND TABLE_SCHEMA = @p1
ORDER BY TABLE_NAME;`

	columnsQuery = `SELECT COLUMN_NAME, ORDINAL_POSITION, DATA_TYPE, IS_NULLABLE,
       CHARACTER_MAXIMUM_LENGTH, NUMERIC_PRECISION, NUMERIC_SCALE
FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
ORDER BY ORDINAL_POSITION;`
)

// FetchSchemata lists the schemas of a live endpoint.
func FetchSchemata(ctx context.Context, exec Executor, t Target) ([]string, error) {
	_, rows, err := exec.Query(ctx, t, schemataQuery)
	if err != nil {
		return nil, fmt.Errorf("fetching schemata: %w", err)
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, asString(r[0]))
	}
	return out, nil
}

// FetchTables lists the base tables of one schema.
func FetchTables(ctx context.Context, exec Executor, t Target, schema string) ([]string, error) {
	_, rows, err := exec.Query(ctx, t, tablesQuery, schema)
	if err != nil {
		return nil, fmt.Errorf("fetching tables of %s: %w", schema, err)
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, asString(r[1]))
	}
	return out, nil
}

// FetchColumns lists the columns of one table in ordinal order, already
// shaped as catalog rows.
func FetchColumns(ctx context.Context, exec Executor, t Target, workspaceID, databaseID, schema, table string) ([]catalog.Column, error) {
	_, rows, err := exec.Query(ctx, t, columnsQuery, schema, table)
	if err != nil {
		return nil, fmt.Errorf("fetching columns of %s.%s: %w", schema, table, err)
	}
	now := time.Now().UTC()
	out := make([]catalog.Column, 0, len(rows))
	for _, r := range rows {
		out = append(out, catalog.Column{
			WorkspaceID:      workspaceID,
			DatabaseID:       databaseID,
			SchemaName:       schema,
			TableName:        table,
			ColumnName:       asString(r[0]),
			Ordinal:          asInt(r[1]),
			DataType:         asString(r[2]),
			IsNullable:       asString(r[3]) == "YES",
			MaxLength:        asIntPtr(r[4]),
			NumericPrecision: asIntPtr(r[5]),
			NumericScale:     asIntPtr(r[6]),
			SampledAt:        now,
		})
	}
	return out, nil
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

func asInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case string:
		i, _ := strconv.Atoi(n)
		return i
	default:
		return 0
	}
}

func asIntPtr(v any) *int {
	if v == nil {
		return nil
	}
	n := asInt(v)
	return &n
}
