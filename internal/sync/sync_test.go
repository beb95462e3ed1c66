package sync

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fabmirror/fabmirror/internal/catalog"
	"github.com/fabmirror/fabmirror/internal/fabric"
	"github.com/fabmirror/fabmirror/internal/sqlexec"
	"github.com/fabmirror/fabmirror/internal/state"
)

func strPtr(s string) *string { return &s }

type fakeCrawler struct {
	workspaces []fabric.WorkspaceRaw
	items      map[string][]fabric.ItemRaw
	endpoints  map[string][]catalog.SqlEndpoint

	itemCalls    []string
	resolveCalls []string
}

func (f *fakeCrawler) ListWorkspaces(context.Context) ([]fabric.WorkspaceRaw, error) {
	return f.workspaces, nil
}

func (f *fakeCrawler) GetWorkspace(_ context.Context, workspaceID string) (*fabric.WorkspaceRaw, error) {
	return nil, nil
}

func (f *fakeCrawler) ListItems(_ context.Context, workspaceID, _ string) ([]fabric.ItemRaw, error) {
	f.itemCalls = append(f.itemCalls, workspaceID)
	return f.items[workspaceID], nil
}

func (f *fakeCrawler) ResolveEndpoints(_ context.Context, workspaceID string) ([]catalog.SqlEndpoint, error) {
	f.resolveCalls = append(f.resolveCalls, workspaceID)
	return f.endpoints[workspaceID], nil
}

type fakeProber struct {
	states map[string]string
}

func (f *fakeProber) WorkspaceState(_ context.Context, workspaceID string) string {
	if st, ok := f.states[workspaceID]; ok {
		return st
	}
	return catalog.StateActive
}

// introExec answers the introspection queries and the passthrough query by
// dispatching on the statement text.
type introExec struct {
	schemas [][]any
	tables  [][]any
	columns [][]any
	rows    [][]any
	err     error

	queries []string
}

func (e *introExec) Query(_ context.Context, _ sqlexec.Target, query string, _ ...any) ([]string, [][]any, error) {
	e.queries = append(e.queries, query)
	if e.err != nil {
		return nil, nil, e.err
	}
	switch {
	case strings.Contains(query, "INFORMATION_SCHEMA.SCHEMATA"):
		return []string{"schema_name"}, e.schemas, nil
	case strings.Contains(query, "INFORMATION_SCHEMA.TABLES"):
		return []string{"TABLE_SCHEMA", "TABLE_NAME"}, e.tables, nil
	case strings.Contains(query, "INFORMATION_SCHEMA.COLUMNS"):
		return []string{"COLUMN_NAME", "ORDINAL_POSITION", "DATA_TYPE", "IS_NULLABLE",
			"CHARACTER_MAXIMUM_LENGTH", "NUMERIC_PRECISION", "NUMERIC_SCALE"}, e.columns, nil
	}
	return []string{"c1"}, e.rows, nil
}

func newTestSyncer(t *testing.T, crawler *fakeCrawler, store catalog.Store, prober StateProber, exec sqlexec.Executor) *Syncer {
	t.Helper()
	statePath := filepath.Join(t.TempDir(), "state.yaml")
	return New(crawler, store, prober, exec, statePath, nil)
}

func TestRefreshCatalog_SkipsInactiveWorkspaces(t *testing.T) {
	crawler := &fakeCrawler{
		workspaces: []fabric.WorkspaceRaw{
			{ID: "ws-up", DisplayName: "Up"},
			{ID: "ws-down", DisplayName: "Down"},
		},
		items: map[string][]fabric.ItemRaw{
			"ws-up": {{ID: "wh-1", Type: "Warehouse", DisplayName: "WH"}},
		},
		endpoints: map[string][]catalog.SqlEndpoint{
			"ws-up": {{WorkspaceID: "ws-up", DatabaseID: "wh-1", Name: "WH", Kind: "warehouse"}},
		},
	}
	store := catalog.NewMemory()
	prober := &fakeProber{states: map[string]string{"ws-down": catalog.StateInactive}}
	s := newTestSyncer(t, crawler, store, prober, &introExec{})

	if err := s.RefreshCatalog(context.Background()); err != nil {
		t.Fatalf("RefreshCatalog: %v", err)
	}

	// Both workspaces recorded, with the probed state.
	down, err := store.GetWorkspace(context.Background(), "ws-down")
	if err != nil {
		t.Fatalf("inactive workspace missing from store: %v", err)
	}
	if down.State != catalog.StateInactive {
		t.Errorf("state = %q, want inactive", down.State)
	}

	// Only the active workspace was crawled deeper.
	if len(crawler.itemCalls) != 1 || crawler.itemCalls[0] != "ws-up" {
		t.Errorf("item crawls = %v, want [ws-up]", crawler.itemCalls)
	}
	if len(crawler.resolveCalls) != 1 || crawler.resolveCalls[0] != "ws-up" {
		t.Errorf("endpoint crawls = %v, want [ws-up]", crawler.resolveCalls)
	}

	eps, _ := store.ListEndpoints(context.Background(), "ws-up")
	if len(eps) != 1 || eps[0].DatabaseID != "wh-1" {
		t.Errorf("endpoints = %+v", eps)
	}
}

func TestRefreshCatalog_RecordsLedger(t *testing.T) {
	crawler := &fakeCrawler{workspaces: []fabric.WorkspaceRaw{{ID: "ws-1", DisplayName: "W"}}}
	s := newTestSyncer(t, crawler, catalog.NewMemory(), nil, &introExec{})

	if err := s.RefreshCatalog(context.Background()); err != nil {
		t.Fatalf("RefreshCatalog: %v", err)
	}

	st, err := state.Load(s.statePath)
	if err != nil {
		t.Fatalf("loading ledger: %v", err)
	}
	if _, ok := st.LastRefreshed("catalog"); !ok {
		t.Errorf("catalog scope not recorded as success: %+v", st.Scopes)
	}
}

func TestRefreshEndpoints_PurgesStaleRows(t *testing.T) {
	store := catalog.NewMemory()
	store.UpsertEndpoints(context.Background(), []catalog.SqlEndpoint{
		{WorkspaceID: "ws-1", DatabaseID: "stale", Name: "Old"},
	})
	crawler := &fakeCrawler{
		endpoints: map[string][]catalog.SqlEndpoint{
			"ws-1": {{WorkspaceID: "ws-1", DatabaseID: "fresh", Name: "New"}},
		},
	}
	s := newTestSyncer(t, crawler, store, nil, &introExec{})

	if err := s.RefreshEndpoints(context.Background(), "ws-1"); err != nil {
		t.Fatalf("RefreshEndpoints: %v", err)
	}

	eps, _ := store.ListEndpoints(context.Background(), "ws-1")
	if len(eps) != 1 || eps[0].DatabaseID != "fresh" {
		t.Errorf("stale endpoint survived the swap: %+v", eps)
	}
}

func seedEndpoint(t *testing.T, store *catalog.Memory) {
	t.Helper()
	err := store.UpsertEndpoints(context.Background(), []catalog.SqlEndpoint{{
		WorkspaceID: "ws-1",
		DatabaseID:  "db-1",
		Name:        "WH",
		Kind:        "warehouse",
		Server:      strPtr("wh.datawarehouse.fabric.microsoft.com"),
		Database:    strPtr("WH"),
		Port:        1433,
	}})
	if err != nil {
		t.Fatalf("seeding endpoint: %v", err)
	}
}

func TestQuery_RejectsMutatingStatements(t *testing.T) {
	store := catalog.NewMemory()
	seedEndpoint(t, store)
	exec := &introExec{}
	s := newTestSyncer(t, &fakeCrawler{}, store, nil, exec)

	_, _, err := s.Query(context.Background(), "ws-1", "db-1", "DELETE FROM t", 0)
	if !errors.Is(err, sqlexec.ErrMutatingStatement) {
		t.Fatalf("err = %v, want ErrMutatingStatement", err)
	}
	if len(exec.queries) != 0 {
		t.Errorf("executor should never see a rejected statement, got %v", exec.queries)
	}
}

func TestQuery_CapsRows(t *testing.T) {
	store := catalog.NewMemory()
	seedEndpoint(t, store)

	rows := make([][]any, 15)
	for i := range rows {
		rows[i] = []any{i}
	}
	s := newTestSyncer(t, &fakeCrawler{}, store, nil, &introExec{rows: rows})

	_, got, err := s.Query(context.Background(), "ws-1", "db-1", "SELECT n FROM t", 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 10 {
		t.Errorf("rows = %d, want 10", len(got))
	}

	_, got, err = s.Query(context.Background(), "ws-1", "db-1", "SELECT n FROM t", 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 15 {
		t.Errorf("default cap should not trim 15 rows, got %d", len(got))
	}
}

func TestQuery_HydratesEndpointOnMiss(t *testing.T) {
	store := catalog.NewMemory()
	crawler := &fakeCrawler{
		endpoints: map[string][]catalog.SqlEndpoint{
			"ws-1": {{
				WorkspaceID: "ws-1", DatabaseID: "db-1", Name: "WH", Kind: "warehouse",
				Server: strPtr("wh.example.com"), Database: strPtr("WH"), Port: 1433,
			}},
		},
	}
	s := newTestSyncer(t, crawler, store, nil, &introExec{rows: [][]any{{1}}})

	_, rows, err := s.Query(context.Background(), "ws-1", "db-1", "SELECT 1", 0)
	if err != nil {
		t.Fatalf("Query after hydration: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("rows = %d, want 1", len(rows))
	}
	if len(crawler.resolveCalls) != 1 {
		t.Errorf("expected one hydration crawl, got %v", crawler.resolveCalls)
	}
}

func TestQuery_UnreachableEndpoint(t *testing.T) {
	store := catalog.NewMemory()
	store.UpsertEndpoints(context.Background(), []catalog.SqlEndpoint{{
		WorkspaceID: "ws-1", DatabaseID: "db-1", Name: "Orphan", Kind: "warehouse",
	}})
	s := newTestSyncer(t, &fakeCrawler{}, store, nil, &introExec{})

	_, _, err := s.Query(context.Background(), "ws-1", "db-1", "SELECT 1", 0)
	if !errors.Is(err, ErrEndpointUnreachable) {
		t.Errorf("err = %v, want ErrEndpointUnreachable", err)
	}
}

func TestQuery_ForeignWorkspaceEndpoint(t *testing.T) {
	store := catalog.NewMemory()
	store.UpsertEndpoints(context.Background(), []catalog.SqlEndpoint{{
		WorkspaceID: "ws-other", DatabaseID: "db-1", Name: "WH", Kind: "warehouse",
		Server: strPtr("h"), Database: strPtr("d"),
	}})
	s := newTestSyncer(t, &fakeCrawler{}, store, nil, &introExec{})

	_, _, err := s.Query(context.Background(), "ws-1", "db-1", "SELECT 1", 0)
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound for foreign endpoint", err)
	}
}

func TestRefreshDatabase_SwapsTree(t *testing.T) {
	store := catalog.NewMemory()
	seedEndpoint(t, store)

	// Pre-existing rows from an earlier scan of a schema that is now gone.
	store.ReplaceSchemas(context.Background(), "ws-1", "db-1", []catalog.Schema{
		{WorkspaceID: "ws-1", DatabaseID: "db-1", SchemaName: "legacy"},
	})

	exec := &introExec{
		schemas: [][]any{{"dbo"}},
		tables:  [][]any{{"dbo", "orders"}},
		columns: [][]any{
			{"id", int64(1), "int", "NO", nil, int64(10), int64(0)},
			{"note", int64(2), "nvarchar", "YES", int64(400), nil, nil},
		},
	}
	s := newTestSyncer(t, &fakeCrawler{}, store, nil, exec)

	if err := s.RefreshDatabase(context.Background(), "ws-1", "db-1"); err != nil {
		t.Fatalf("RefreshDatabase: %v", err)
	}

	schemas, _ := store.ListSchemas(context.Background(), "ws-1", "db-1")
	if len(schemas) != 1 || schemas[0].SchemaName != "dbo" {
		t.Errorf("schema swap incomplete: %+v", schemas)
	}

	tables, _ := store.ListTables(context.Background(), "ws-1", "db-1", "dbo")
	if len(tables) != 1 || tables[0].TableName != "orders" {
		t.Errorf("tables = %+v", tables)
	}

	cols, _ := store.ListColumns(context.Background(), "ws-1", "db-1", "dbo", "orders")
	if len(cols) != 2 {
		t.Fatalf("columns = %+v", cols)
	}
	if cols[0].ColumnName != "id" || cols[0].IsNullable {
		t.Errorf("first column = %+v", cols[0])
	}
	if cols[1].MaxLength == nil || *cols[1].MaxLength != 400 || !cols[1].IsNullable {
		t.Errorf("second column = %+v", cols[1])
	}
}

func TestRefreshTables_RejectsUnsafeSchema(t *testing.T) {
	store := catalog.NewMemory()
	seedEndpoint(t, store)
	exec := &introExec{}
	s := newTestSyncer(t, &fakeCrawler{}, store, nil, exec)

	err := s.RefreshTables(context.Background(), "ws-1", "db-1", "dbo; DROP TABLE x")
	if !errors.Is(err, sqlexec.ErrUnsafeIdent) {
		t.Fatalf("err = %v, want ErrUnsafeIdent", err)
	}
	if len(exec.queries) != 0 {
		t.Errorf("unsafe identifier must not reach the executor, got %v", exec.queries)
	}
}

func TestProbeWorkspace_PersistsState(t *testing.T) {
	store := catalog.NewMemory()
	store.UpsertWorkspaces(context.Background(), []catalog.Workspace{
		{ID: "ws-1", Name: "W", State: catalog.StateActive},
	})
	prober := &fakeProber{states: map[string]string{"ws-1": catalog.StateInactive}}
	s := newTestSyncer(t, &fakeCrawler{}, store, prober, &introExec{})

	got, err := s.ProbeWorkspace(context.Background(), "ws-1")
	if err != nil {
		t.Fatalf("ProbeWorkspace: %v", err)
	}
	if got != catalog.StateInactive {
		t.Errorf("state = %q, want inactive", got)
	}
	w, _ := store.GetWorkspace(context.Background(), "ws-1")
	if w.State != catalog.StateInactive {
		t.Errorf("probed state not persisted: %+v", w)
	}
}
