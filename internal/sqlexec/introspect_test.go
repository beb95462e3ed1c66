package sqlexec

import (
	"context"
	"errors"
	"testing"
)

// scriptExec returns a fixed result set and records the received params.
type scriptExec struct {
	cols   []string
	rows   [][]any
	err    error
	params []any
}

func (e *scriptExec) Query(_ context.Context, _ Target, _ string, params ...any) ([]string, [][]any, error) {
	e.params = params
	return e.cols, e.rows, e.err
}

func TestFetchSchemata(t *testing.T) {
	exec := &scriptExec{cols: []string{"schema_name"}, rows: [][]any{{"dbo"}, {[]byte("sales")}}}
	got, err := FetchSchemata(context.Background(), exec, Target{})
	if err != nil {
		t.Fatalf("FetchSchemata: %v", err)
	}
	if len(got) != 2 || got[0] != "dbo" || got[1] != "sales" {
		t.Errorf("schemas = %v", got)
	}
}

func TestFetchTables(t *testing.T) {
	exec := &scriptExec{
		cols: []string{"TABLE_SCHEMA", "TABLE_NAME"},
		rows: [][]any{{"dbo", "orders"}, {"dbo", "customers"}},
	}
	got, err := FetchTables(context.Background(), exec, Target{}, "dbo")
	if err != nil {
		t.Fatalf("FetchTables: %v", err)
	}
	if len(got) != 2 || got[0] != "orders" || got[1] != "customers" {
		t.Errorf("tables = %v", got)
	}
	if len(exec.params) != 1 || exec.params[0] != "dbo" {
		t.Errorf("schema should pass as a bound parameter, got %v", exec.params)
	}
}

func TestFetchColumns(t *testing.T) {
	exec := &scriptExec{
		rows: [][]any{
			{"id", int64(1), "int", "NO", nil, int64(10), int64(0)},
			{"name", int64(2), "nvarchar", "YES", int64(200), nil, nil},
		},
	}
	got, err := FetchColumns(context.Background(), exec, Target{}, "ws-1", "db-1", "dbo", "orders")
	if err != nil {
		t.Fatalf("FetchColumns: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("columns = %+v", got)
	}

	id := got[0]
	if id.ColumnName != "id" || id.Ordinal != 1 || id.DataType != "int" || id.IsNullable {
		t.Errorf("id column = %+v", id)
	}
	if id.MaxLength != nil || id.NumericPrecision == nil || *id.NumericPrecision != 10 {
		t.Errorf("id column numeric fields = %+v", id)
	}

	name := got[1]
	if !name.IsNullable || name.MaxLength == nil || *name.MaxLength != 200 {
		t.Errorf("name column = %+v", name)
	}
	if name.WorkspaceID != "ws-1" || name.DatabaseID != "db-1" ||
		name.SchemaName != "dbo" || name.TableName != "orders" {
		t.Errorf("scope fields = %+v", name)
	}
	if name.SampledAt.IsZero() {
		t.Error("SampledAt not stamped")
	}
}

func TestFetchColumns_Error(t *testing.T) {
	boom := errors.New("boom")
	if _, err := FetchColumns(context.Background(), &scriptExec{err: boom}, Target{}, "w", "d", "s", "t"); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped boom", err)
	}
}
