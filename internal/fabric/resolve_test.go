package fabric

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/fabmirror/fabmirror/internal/catalog"
)

func strPtr(s string) *string { return &s }

func TestResolveEndpoints_KindStrategies(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/workspaces/ws-1/items", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"value": []map[string]string{
			{"id": "wh-1", "type": "Warehouse", "displayName": "Main WH"},
			{"id": "lh-1", "type": "Lakehouse", "displayName": "Lake"},
			{"id": "nb-1", "type": "Notebook", "displayName": "Ignored"},
		}})
	})
	// First warehouse endpoint shape misses, second hits.
	mux.HandleFunc("/v1/workspaces/ws-1/warehouses/wh-1/connectionString", http.NotFound)
	mux.HandleFunc("/v1/workspaces/ws-1/warehouses/wh-1/getConnectionString", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"connectionString": "wh.datawarehouse.fabric.microsoft.com",
		})
	})
	mux.HandleFunc("/v1/workspaces/ws-1/lakehouses/lh-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"properties": map[string]any{
				"sqlEndpointProperties": map[string]string{
					"connectionString": "lake.datawarehouse.fabric.microsoft.com,1500",
				},
			},
		})
	})

	c, _ := testClient(t, mux)
	rows, err := c.ResolveEndpoints(context.Background(), "ws-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2 (notebook skipped): %+v", len(rows), rows)
	}

	wh := rows[0]
	if wh.Kind != KindWarehouse || wh.DatabaseID != "wh-1" {
		t.Errorf("warehouse row = %+v", wh)
	}
	if wh.Server == nil || *wh.Server != "wh.datawarehouse.fabric.microsoft.com" {
		t.Errorf("warehouse server = %v", wh.Server)
	}
	// Host-only string carries no database; item name fills in.
	if wh.Database == nil || *wh.Database != "Main WH" {
		t.Errorf("warehouse database fallback = %v", wh.Database)
	}

	lh := rows[1]
	if lh.Kind != KindLakehouseSqlEndpoint || lh.Port != 1500 {
		t.Errorf("lakehouse row = %+v", lh)
	}
}

func TestResolveEndpoints_UnresolvedStillRecorded(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/workspaces/ws-1/items", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"value": []map[string]string{
			{"id": "wh-1", "type": "Warehouse", "displayName": "Orphan"},
		}})
	})
	// Both connection endpoints deny; the row must still exist.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	})

	c, _ := testClient(t, mux)
	rows, err := c.ResolveEndpoints(context.Background(), "ws-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].Server != nil || rows[0].ConnectionString != nil {
		t.Errorf("expected null connection info, got %+v", rows[0])
	}
	if rows[0].Database == nil || *rows[0].Database != "Orphan" {
		t.Errorf("name fallback missing: %+v", rows[0])
	}
}

func TestSqlDatabaseConnection_FallbackChain(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/workspaces/ws-1/sqlDatabases/db-1", func(w http.ResponseWriter, r *http.Request) {
		// Detail exists but carries no connection fields.
		json.NewEncoder(w).Encode(map[string]any{"properties": map[string]any{}})
	})
	mux.HandleFunc("/v1/workspaces/ws-1/sqlDatabases/db-1/connectionString", http.NotFound)
	mux.HandleFunc("/v1/workspaces/ws-1/sqlDatabases/db-1/getConnectionString", http.NotFound)
	mux.HandleFunc("/v1/workspaces/ws-1/items/db-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"sqlEndpointProperties": map[string]string{
				"connectionString": "Server=db.example.com;Database=AppDB;",
			},
		})
	})

	c, _ := testClient(t, mux)
	props, err := c.SqlDatabaseConnection(context.Background(), "ws-1", "db-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if props.ConnectionString == nil || *props.ConnectionString != "Server=db.example.com;Database=AppDB;" {
		t.Errorf("props = %+v", props)
	}
}

func TestDedupeEndpoints(t *testing.T) {
	rows := []catalog.SqlEndpoint{
		{DatabaseID: "a", Kind: KindWarehouse, Name: "WH"},
		{DatabaseID: "b", Kind: KindWarehouse, Name: "WH", Server: strPtr("host"), ConnectionString: strPtr("host")},
		{DatabaseID: "c", Kind: KindWarehouse, Name: "Other"},
	}
	out := DedupeEndpoints(rows)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].DatabaseID != "b" {
		t.Errorf("connected variant should win, got %s", out[0].DatabaseID)
	}
	if out[1].DatabaseID != "c" {
		t.Errorf("order of first appearance lost: %+v", out)
	}
}

func TestDedupeEndpoints_FirstSeenOnTie(t *testing.T) {
	rows := []catalog.SqlEndpoint{
		{DatabaseID: "a", Kind: KindSqlDatabase, Name: "DB", Server: strPtr("h1")},
		{DatabaseID: "b", Kind: KindSqlDatabase, Name: "DB", Server: strPtr("h2")},
	}
	out := DedupeEndpoints(rows)
	if len(out) != 1 || out[0].DatabaseID != "a" {
		t.Errorf("tie should keep first-seen, got %+v", out)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		in   string
		kind string
		ok   bool
	}{
		{"Warehouse", KindWarehouse, true},
		{"warehouse", KindWarehouse, true},
		{"SQLEndpoint", KindSQLEndpoint, true},
		{"Lakehouse", KindLakehouseSqlEndpoint, true},
		{"SqlDatabase", KindSqlDatabase, true},
		{"sqldatabasepreview", KindSqlDatabase, true},
		{"Notebook", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		kind, ok := KindOf(tt.in)
		if kind != tt.kind || ok != tt.ok {
			t.Errorf("KindOf(%q) = %q, %v; want %q, %v", tt.in, kind, ok, tt.kind, tt.ok)
		}
	}
}

func TestMapWorkspace(t *testing.T) {
	w := MapWorkspace(WorkspaceRaw{
		ID:          "ws-1",
		DisplayName: "Sales",
		CreatedBy:   json.RawMessage(`{"email":"alex@example.com"}`),
	})
	if w.Name != "Sales" {
		t.Errorf("name = %q", w.Name)
	}
	if w.State != catalog.StateActive {
		t.Errorf("missing state should default active, got %q", w.State)
	}
	if w.CreatedBy == nil || *w.CreatedBy != "alex@example.com" {
		t.Errorf("createdBy = %v", w.CreatedBy)
	}

	w2 := MapWorkspace(WorkspaceRaw{ID: "ws-2", Name: "plain", CreatedBy: json.RawMessage(`"someone"`)})
	if w2.Name != "plain" || w2.CreatedBy == nil || *w2.CreatedBy != "someone" {
		t.Errorf("string createdBy handling: %+v", w2)
	}
}
