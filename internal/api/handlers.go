package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fabmirror/fabmirror/internal/catalog"
	"github.com/fabmirror/fabmirror/internal/resolver"
	"github.com/fabmirror/fabmirror/internal/sqlexec"
	catsync "github.com/fabmirror/fabmirror/internal/sync"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats(r.Context())
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, StatsResponse{
		Workspaces: st.Workspaces,
		Items:      st.Items,
		Endpoints:  st.Endpoints,
		Schemas:    st.Schemas,
		Tables:     st.Tables,
		Columns:    st.Columns,
	})
}

func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.URL.Query().Get("fresh") == "1" {
		if err := s.syncer.RefreshWorkspaces(ctx); err != nil {
			errorResponse(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	ws, err := s.store.ListWorkspaces(ctx)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]WorkspaceResponse, 0, len(ws))
	for _, x := range ws {
		resp := WorkspaceResponse{
			ID:             x.ID,
			Name:           x.Name,
			State:          x.State,
			CreatedBy:      x.CreatedBy,
			CreatedAt:      x.CreatedAt,
			LastActivityAt: x.LastActivityAt,
			Region:         x.Region,
		}
		if x.LastSyncedAt != nil {
			resp.LastSyncedAt = x.LastSyncedAt.Format(time.RFC3339)
		}
		out = append(out, resp)
	}
	jsonResponse(w, http.StatusOK, map[string]any{"value": out})
}

func (s *Server) handleRefreshCatalog(w http.ResponseWriter, r *http.Request) {
	if err := s.syncer.RefreshCatalog(r.Context()); err != nil {
		errorResponse(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, RefreshResponse{Status: "success", Message: "catalog refreshed"})
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListItems(r.Context(), r.PathValue("workspaceID"))
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]ItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, ItemResponse{ID: it.ID, Type: it.Type, Name: it.Name, UpdatedAt: it.UpdatedAt})
	}
	jsonResponse(w, http.StatusOK, map[string]any{"value": out})
}

func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("workspaceID")
	st, err := s.syncer.ProbeWorkspace(r.Context(), workspaceID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, catalog.ErrNotFound) {
			status = http.StatusNotFound
		}
		errorResponse(w, status, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"workspace_id": workspaceID, "state": st})
}

func (s *Server) handleListEndpoints(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	workspaceID := r.PathValue("workspaceID")
	if r.URL.Query().Get("fresh") == "1" {
		if err := s.syncer.RefreshEndpoints(ctx, workspaceID); err != nil {
			errorResponse(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	eps, err := s.store.ListEndpoints(ctx, workspaceID)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]EndpointResponse, 0, len(eps))
	for _, ep := range eps {
		out = append(out, EndpointResponse{
			DatabaseID:       ep.DatabaseID,
			WorkspaceID:      ep.WorkspaceID,
			Kind:             ep.Kind,
			Name:             ep.Name,
			Server:           ep.Server,
			Database:         ep.Database,
			Port:             ep.Port,
			ConnectionString: ep.ConnectionString,
		})
	}
	jsonResponse(w, http.StatusOK, map[string]any{"value": out})
}

func (s *Server) handleReloadEndpoints(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("workspaceID")
	if err := s.syncer.RefreshEndpoints(r.Context(), workspaceID); err != nil {
		errorResponse(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, RefreshResponse{
		Status:  "success",
		Message: fmt.Sprintf("endpoints reloaded for workspace %s", workspaceID),
	})
}

func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	workspaceID, databaseID := r.PathValue("workspaceID"), r.PathValue("databaseID")
	rows, err := s.store.ListSchemas(r.Context(), workspaceID, databaseID)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(rows) == 0 {
		errorResponse(w, http.StatusNotFound, "no schemas in cache; POST .../schema/refresh to rescan")
		return
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, row.SchemaName)
	}
	jsonResponse(w, http.StatusOK, map[string]any{"schemas": names, "source": "catalog"})
}

// refreshStatus maps a refresh error to an HTTP status.
func refreshStatus(err error) int {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, catsync.ErrEndpointUnreachable):
		return http.StatusServiceUnavailable
	case errors.Is(err, sqlexec.ErrUnsafeIdent):
		return http.StatusBadRequest
	default:
		return http.StatusServiceUnavailable
	}
}

func (s *Server) handleRefreshSchemas(w http.ResponseWriter, r *http.Request) {
	workspaceID, databaseID := r.PathValue("workspaceID"), r.PathValue("databaseID")
	if err := s.syncer.RefreshSchemas(r.Context(), workspaceID, databaseID); err != nil {
		errorResponse(w, refreshStatus(err), err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, RefreshResponse{
		Status:  "success",
		Message: fmt.Sprintf("schemas refreshed for database %s", databaseID),
	})
}

func (s *Server) handleRefreshDatabase(w http.ResponseWriter, r *http.Request) {
	workspaceID, databaseID := r.PathValue("workspaceID"), r.PathValue("databaseID")
	if err := s.syncer.RefreshDatabase(r.Context(), workspaceID, databaseID); err != nil {
		errorResponse(w, refreshStatus(err), err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, RefreshResponse{
		Status:  "success",
		Message: fmt.Sprintf("introspection refreshed for database %s", databaseID),
	})
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	workspaceID, databaseID := r.PathValue("workspaceID"), r.PathValue("databaseID")
	schema := r.PathValue("schema")
	rows, err := s.store.ListTables(r.Context(), workspaceID, databaseID, schema)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(rows) == 0 {
		errorResponse(w, http.StatusNotFound,
			fmt.Sprintf("no tables in cache for schema %s; POST .../tables/refresh to rescan", schema))
		return
	}
	out := make([]TableResponse, 0, len(rows))
	for _, t := range rows {
		out = append(out, TableResponse{Schema: t.SchemaName, Table: t.TableName})
	}
	jsonResponse(w, http.StatusOK, map[string]any{"tables": out, "source": "catalog"})
}

func (s *Server) handleRefreshTables(w http.ResponseWriter, r *http.Request) {
	workspaceID, databaseID := r.PathValue("workspaceID"), r.PathValue("databaseID")
	schema := r.PathValue("schema")
	if err := s.syncer.RefreshTables(r.Context(), workspaceID, databaseID, schema); err != nil {
		errorResponse(w, refreshStatus(err), err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, RefreshResponse{
		Status:  "success",
		Message: fmt.Sprintf("tables refreshed for schema %s", schema),
	})
}

func (s *Server) handleListColumns(w http.ResponseWriter, r *http.Request) {
	workspaceID, databaseID := r.PathValue("workspaceID"), r.PathValue("databaseID")
	schema, table := r.PathValue("schema"), r.PathValue("table")
	rows, err := s.store.ListColumns(r.Context(), workspaceID, databaseID, schema, table)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(rows) == 0 {
		errorResponse(w, http.StatusNotFound,
			fmt.Sprintf("no columns in cache for table %s.%s; POST .../columns/refresh to rescan", schema, table))
		return
	}
	out := make([]ColumnResponse, 0, len(rows))
	for _, c := range rows {
		out = append(out, ColumnResponse{
			Name:             c.ColumnName,
			Ordinal:          c.Ordinal,
			DataType:         c.DataType,
			IsNullable:       c.IsNullable,
			MaxLength:        c.MaxLength,
			NumericPrecision: c.NumericPrecision,
			NumericScale:     c.NumericScale,
		})
	}
	jsonResponse(w, http.StatusOK, map[string]any{"columns": out, "source": "catalog"})
}

func (s *Server) handleRefreshColumns(w http.ResponseWriter, r *http.Request) {
	workspaceID, databaseID := r.PathValue("workspaceID"), r.PathValue("databaseID")
	schema, table := r.PathValue("schema"), r.PathValue("table")
	if err := s.syncer.RefreshColumns(r.Context(), workspaceID, databaseID, schema, table); err != nil {
		errorResponse(w, refreshStatus(err), err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, RefreshResponse{
		Status:  "success",
		Message: fmt.Sprintf("columns refreshed for table %s.%s", schema, table),
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	workspaceID, databaseID := r.PathValue("workspaceID"), r.PathValue("databaseID")

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cols, rows, err := s.syncer.Query(r.Context(), workspaceID, databaseID, req.SQL, req.MaxRows, req.Params...)
	if err != nil {
		switch {
		case errors.Is(err, sqlexec.ErrMutatingStatement):
			errorResponse(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, catalog.ErrNotFound):
			errorResponse(w, http.StatusNotFound, "SQL endpoint not found; try /sqldb?fresh=1")
		case errors.Is(err, catsync.ErrEndpointUnreachable):
			errorResponse(w, http.StatusServiceUnavailable, err.Error())
		default:
			errorResponse(w, http.StatusServiceUnavailable, err.Error())
		}
		return
	}
	if rows == nil {
		rows = [][]any{}
	}
	jsonResponse(w, http.StatusOK, QueryResponse{Columns: cols, Rows: rows, RowCount: len(rows)})
}

func (s *Server) handleCatalogTree(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws, err := s.store.ListWorkspaces(ctx)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	tree := CatalogTree{Workspaces: []CatalogWorkspace{}}
	for _, w0 := range ws {
		cw := CatalogWorkspace{ID: w0.ID, Name: w0.Name, State: w0.State, Databases: []CatalogDatabase{}}
		eps, err := s.store.ListEndpoints(ctx, w0.ID)
		if err != nil {
			errorResponse(w, http.StatusInternalServerError, err.Error())
			return
		}
		for _, ep := range eps {
			cdb := CatalogDatabase{DatabaseID: ep.DatabaseID, Kind: ep.Kind, Name: ep.Name, Schemas: []CatalogSchema{}}
			schemas, err := s.store.ListSchemas(ctx, w0.ID, ep.DatabaseID)
			if err != nil {
				errorResponse(w, http.StatusInternalServerError, err.Error())
				return
			}
			for _, sc := range schemas {
				cs := CatalogSchema{Name: sc.SchemaName, Tables: []CatalogTable{}}
				tables, err := s.store.ListTables(ctx, w0.ID, ep.DatabaseID, sc.SchemaName)
				if err != nil {
					errorResponse(w, http.StatusInternalServerError, err.Error())
					return
				}
				for _, t := range tables {
					cols, err := s.store.ListColumns(ctx, w0.ID, ep.DatabaseID, sc.SchemaName, t.TableName)
					if err != nil {
						errorResponse(w, http.StatusInternalServerError, err.Error())
						return
					}
					ct := CatalogTable{Name: t.TableName, Columns: make([]string, 0, len(cols))}
					for _, c := range cols {
						ct.Columns = append(ct.Columns, c.ColumnName)
					}
					cs.Tables = append(cs.Tables, ct)
				}
				cdb.Schemas = append(cdb.Schemas, cs)
			}
			cw.Databases = append(cw.Databases, cdb)
		}
		tree.Workspaces = append(tree.Workspaces, cw)
	}
	jsonResponse(w, http.StatusOK, tree)
}

func (s *Server) handleResolveWorkspace(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		errorResponse(w, http.StatusBadRequest, "missing q parameter")
		return
	}
	ref, err := s.resolver.ResolveWorkspace(r.Context(), q)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ref == nil {
		errorResponse(w, http.StatusNotFound, fmt.Sprintf("no workspace matches %q", q))
		return
	}
	jsonResponse(w, http.StatusOK, ResolveWorkspaceResponse{WorkspaceID: ref.ID, WorkspaceName: ref.Name})
}

func (s *Server) handleResolveDatabase(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		errorResponse(w, http.StatusBadRequest, "missing q parameter")
		return
	}
	workspace := r.URL.Query().Get("workspace")

	var (
		ref *resolver.DatabaseRef
		err error
	)
	if workspace != "" {
		ref, err = s.resolver.ResolveDatabase(r.Context(), workspace, q)
	} else {
		ref, err = s.resolver.ResolveDatabaseGlobal(r.Context(), q)
	}
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ref == nil {
		errorResponse(w, http.StatusNotFound, fmt.Sprintf("no database matches %q", q))
		return
	}
	jsonResponse(w, http.StatusOK, ResolveDatabaseResponse{
		WorkspaceID:   ref.WorkspaceID,
		WorkspaceName: ref.WorkspaceName,
		DatabaseID:    ref.DatabaseID,
		DatabaseName:  ref.DatabaseName,
	})
}
