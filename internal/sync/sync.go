// Package sync orchestrates catalog refreshes: crawling the remote API,
// probing availability, introspecting live endpoints, and committing the
// results through the store's upsert/replace contract. Concurrent refreshes
// of the same scope are collapsed through singleflight, so two callers
// asking for the same workspace share one crawl.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fabmirror/fabmirror/internal/catalog"
	"github.com/fabmirror/fabmirror/internal/fabric"
	"github.com/fabmirror/fabmirror/internal/sqlexec"
	"github.com/fabmirror/fabmirror/internal/state"
)

// ErrEndpointUnreachable is returned when introspection is asked of an
// endpoint whose connection info never resolved.
var ErrEndpointUnreachable = errors.New("sql endpoint has no active connection info")

// Crawler is the slice of the Fabric client the syncer drives.
type Crawler interface {
	ListWorkspaces(ctx context.Context) ([]fabric.WorkspaceRaw, error)
	GetWorkspace(ctx context.Context, workspaceID string) (*fabric.WorkspaceRaw, error)
	ListItems(ctx context.Context, workspaceID, typeFilter string) ([]fabric.ItemRaw, error)
	ResolveEndpoints(ctx context.Context, workspaceID string) ([]catalog.SqlEndpoint, error)
}

// StateProber classifies workspace availability. Nil disables probing;
// crawled workspaces then keep the state the API reported.
type StateProber interface {
	WorkspaceState(ctx context.Context, workspaceID string) string
}

// Syncer coordinates refresh operations against one store.
type Syncer struct {
	crawler Crawler
	store   catalog.Store
	prober  StateProber
	exec    sqlexec.Executor
	log     *slog.Logger

	flight    singleflight.Group
	statePath string
}

func New(crawler Crawler, store catalog.Store, prober StateProber, exec sqlexec.Executor, statePath string, log *slog.Logger) *Syncer {
	if log == nil {
		log = slog.Default()
	}
	return &Syncer{
		crawler:   crawler,
		store:     store,
		prober:    prober,
		exec:      exec,
		statePath: statePath,
		log:       log,
	}
}

// scoped funnels a refresh through singleflight and records the outcome in
// the state ledger.
func (s *Syncer) scoped(ctx context.Context, scope string, fn func(context.Context) error) error {
	_, err, shared := s.flight.Do(scope, func() (any, error) {
		err := fn(ctx)
		s.record(scope, err)
		return nil, err
	})
	if shared {
		s.log.Debug("refresh shared with concurrent caller", "scope", scope)
	}
	return err
}

func (s *Syncer) record(scope string, refreshErr error) {
	st, err := state.Load(s.statePath)
	if err != nil {
		s.log.Warn("loading refresh state failed", "error", err)
		return
	}
	if refreshErr != nil {
		st.RecordFailure(scope, refreshErr)
	} else {
		st.RecordSuccess(scope)
	}
	if err := st.Save(s.statePath); err != nil {
		s.log.Warn("saving refresh state failed", "error", err)
	}
}

// RefreshCatalog performs a full crawl: every workspace is upserted with a
// freshly probed state, then items and endpoints are re-resolved for each
// active workspace. Inactive workspaces keep their top-level row but are
// not crawled further; their capacity is paused and every sub-call would
// only burn the retry budget.
func (s *Syncer) RefreshCatalog(ctx context.Context) error {
	return s.scoped(ctx, "catalog", func(ctx context.Context) error {
		raws, err := s.crawler.ListWorkspaces(ctx)
		if err != nil {
			return fmt.Errorf("crawling workspaces: %w", err)
		}

		now := time.Now().UTC()
		workspaces := make([]catalog.Workspace, 0, len(raws))
		for _, raw := range raws {
			if detail, err := s.crawler.GetWorkspace(ctx, raw.ID); err == nil && detail != nil {
				raw = mergeDetail(raw, *detail)
			}
			w := fabric.MapWorkspace(raw)
			if s.prober != nil {
				w.State = s.prober.WorkspaceState(ctx, w.ID)
			}
			w.LastSyncedAt = &now
			workspaces = append(workspaces, w)
		}
		if err := s.store.UpsertWorkspaces(ctx, workspaces); err != nil {
			return fmt.Errorf("upserting workspaces: %w", err)
		}

		for _, w := range workspaces {
			if w.State == catalog.StateInactive {
				s.log.Info("skipping inactive workspace", "workspace", w.ID, "name", w.Name)
				continue
			}
			if err := s.refreshWorkspaceContents(ctx, w.ID); err != nil {
				return fmt.Errorf("refreshing workspace %s: %w", w.ID, err)
			}
		}
		return nil
	})
}

// mergeDetail overlays non-empty detail fields on the listing row.
func mergeDetail(base, detail fabric.WorkspaceRaw) fabric.WorkspaceRaw {
	if detail.DisplayName != "" {
		base.DisplayName = detail.DisplayName
	}
	if detail.Name != "" {
		base.Name = detail.Name
	}
	if detail.State != "" {
		base.State = detail.State
	}
	if len(detail.CreatedBy) > 0 {
		base.CreatedBy = detail.CreatedBy
	}
	if detail.CreatedDateTime != nil {
		base.CreatedDateTime = detail.CreatedDateTime
	}
	if detail.LastActionDateTime != nil {
		base.LastActionDateTime = detail.LastActionDateTime
	}
	if detail.Region != nil {
		base.Region = detail.Region
	}
	return base
}

// RefreshWorkspaces crawls and upserts the workspace list only, without
// probing. This is the cheap hydration path for cold caches.
func (s *Syncer) RefreshWorkspaces(ctx context.Context) error {
	return s.scoped(ctx, "workspaces", func(ctx context.Context) error {
		raws, err := s.crawler.ListWorkspaces(ctx)
		if err != nil {
			return fmt.Errorf("crawling workspaces: %w", err)
		}
		now := time.Now().UTC()
		rows := make([]catalog.Workspace, 0, len(raws))
		for _, raw := range raws {
			w := fabric.MapWorkspace(raw)
			w.LastSyncedAt = &now
			rows = append(rows, w)
		}
		return s.store.UpsertWorkspaces(ctx, rows)
	})
}

// RefreshWorkspace re-crawls one workspace's items and endpoints.
func (s *Syncer) RefreshWorkspace(ctx context.Context, workspaceID string) error {
	return s.scoped(ctx, "ws:"+workspaceID, func(ctx context.Context) error {
		return s.refreshWorkspaceContents(ctx, workspaceID)
	})
}

func (s *Syncer) refreshWorkspaceContents(ctx context.Context, workspaceID string) error {
	raws, err := s.crawler.ListItems(ctx, workspaceID, "")
	if err != nil {
		return fmt.Errorf("crawling items: %w", err)
	}
	now := time.Now().UTC()
	items := make([]catalog.Item, 0, len(raws))
	for _, raw := range raws {
		it := fabric.MapItem(workspaceID, raw)
		it.LastSyncedAt = &now
		items = append(items, it)
	}
	if err := s.store.UpsertItems(ctx, items); err != nil {
		return fmt.Errorf("upserting items: %w", err)
	}
	return s.replaceEndpoints(ctx, workspaceID)
}

// RefreshEndpoints re-resolves the SQL endpoints of one workspace.
func (s *Syncer) RefreshEndpoints(ctx context.Context, workspaceID string) error {
	return s.scoped(ctx, "ws:"+workspaceID+":endpoints", func(ctx context.Context) error {
		return s.replaceEndpoints(ctx, workspaceID)
	})
}

func (s *Syncer) replaceEndpoints(ctx context.Context, workspaceID string) error {
	rows, err := s.crawler.ResolveEndpoints(ctx, workspaceID)
	if err != nil {
		return fmt.Errorf("resolving endpoints: %w", err)
	}
	// Purge first so ids dropped by the remote side do not linger.
	if err := s.store.DeleteEndpoints(ctx, workspaceID); err != nil {
		return fmt.Errorf("purging endpoints: %w", err)
	}
	if err := s.store.UpsertEndpoints(ctx, rows); err != nil {
		return fmt.Errorf("upserting endpoints: %w", err)
	}
	return nil
}

// endpointTarget loads an endpoint and shapes it into an executor target,
// hydrating the workspace's endpoints on a cache miss.
func (s *Syncer) endpointTarget(ctx context.Context, workspaceID, databaseID string) (*catalog.SqlEndpoint, sqlexec.Target, error) {
	ep, err := s.store.GetEndpoint(ctx, databaseID)
	if errors.Is(err, catalog.ErrNotFound) {
		if hErr := s.RefreshEndpoints(ctx, workspaceID); hErr != nil {
			return nil, sqlexec.Target{}, fmt.Errorf("hydrating endpoints: %w", hErr)
		}
		ep, err = s.store.GetEndpoint(ctx, databaseID)
	}
	if err != nil {
		return nil, sqlexec.Target{}, err
	}
	if ep.WorkspaceID != workspaceID {
		return nil, sqlexec.Target{}, fmt.Errorf("endpoint %s belongs to workspace %s: %w",
			databaseID, ep.WorkspaceID, catalog.ErrNotFound)
	}
	if ep.Server == nil || ep.Database == nil {
		return nil, sqlexec.Target{}, ErrEndpointUnreachable
	}
	return ep, sqlexec.Target{Server: *ep.Server, Database: *ep.Database, Port: ep.Port}, nil
}

// RefreshDatabase rescans the full schema/table/column tree of one
// database and swaps it in atomically.
func (s *Syncer) RefreshDatabase(ctx context.Context, workspaceID, databaseID string) error {
	return s.scoped(ctx, "db:"+workspaceID+"/"+databaseID, func(ctx context.Context) error {
		_, target, err := s.endpointTarget(ctx, workspaceID, databaseID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		names, err := sqlexec.FetchSchemata(ctx, s.exec, target)
		if err != nil {
			return err
		}

		var (
			schemas []catalog.Schema
			tables  []catalog.Table
			columns []catalog.Column
		)
		for _, schema := range names {
			schemas = append(schemas, catalog.Schema{
				WorkspaceID: workspaceID, DatabaseID: databaseID,
				SchemaName: schema, SampledAt: now,
			})
			tableNames, err := sqlexec.FetchTables(ctx, s.exec, target, schema)
			if err != nil {
				return err
			}
			for _, table := range tableNames {
				tables = append(tables, catalog.Table{
					WorkspaceID: workspaceID, DatabaseID: databaseID,
					SchemaName: schema, TableName: table, SampledAt: now,
				})
				cols, err := sqlexec.FetchColumns(ctx, s.exec, target, workspaceID, databaseID, schema, table)
				if err != nil {
					return err
				}
				columns = append(columns, cols...)
			}
		}
		return s.store.ReplaceIntrospection(ctx, workspaceID, databaseID, schemas, tables, columns)
	})
}

// RefreshSchemas rescans the schema list of one database.
func (s *Syncer) RefreshSchemas(ctx context.Context, workspaceID, databaseID string) error {
	return s.scoped(ctx, "db:"+workspaceID+"/"+databaseID+":schemas", func(ctx context.Context) error {
		_, target, err := s.endpointTarget(ctx, workspaceID, databaseID)
		if err != nil {
			return err
		}
		names, err := sqlexec.FetchSchemata(ctx, s.exec, target)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		rows := make([]catalog.Schema, 0, len(names))
		for _, schema := range names {
			rows = append(rows, catalog.Schema{
				WorkspaceID: workspaceID, DatabaseID: databaseID,
				SchemaName: schema, SampledAt: now,
			})
		}
		return s.store.ReplaceSchemas(ctx, workspaceID, databaseID, rows)
	})
}

// RefreshTables rescans the base tables of one schema.
func (s *Syncer) RefreshTables(ctx context.Context, workspaceID, databaseID, schema string) error {
	safeSchema, err := sqlexec.SafeIdent(schema)
	if err != nil {
		return err
	}
	scope := "schema:" + workspaceID + "/" + databaseID + "/" + safeSchema
	return s.scoped(ctx, scope, func(ctx context.Context) error {
		_, target, err := s.endpointTarget(ctx, workspaceID, databaseID)
		if err != nil {
			return err
		}
		names, err := sqlexec.FetchTables(ctx, s.exec, target, safeSchema)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		rows := make([]catalog.Table, 0, len(names))
		for _, table := range names {
			rows = append(rows, catalog.Table{
				WorkspaceID: workspaceID, DatabaseID: databaseID,
				SchemaName: safeSchema, TableName: table, SampledAt: now,
			})
		}
		return s.store.ReplaceTables(ctx, workspaceID, databaseID, safeSchema, rows)
	})
}

// RefreshColumns rescans the columns of one table.
func (s *Syncer) RefreshColumns(ctx context.Context, workspaceID, databaseID, schema, table string) error {
	safeSchema, err := sqlexec.SafeIdent(schema)
	if err != nil {
		return err
	}
	safeTable, err := sqlexec.SafeIdent(table)
	if err != nil {
		return err
	}
	scope := "table:" + workspaceID + "/" + databaseID + "/" + safeSchema + "/" + safeTable
	return s.scoped(ctx, scope, func(ctx context.Context) error {
		_, target, err := s.endpointTarget(ctx, workspaceID, databaseID)
		if err != nil {
			return err
		}
		rows, err := sqlexec.FetchColumns(ctx, s.exec, target, workspaceID, databaseID, safeSchema, safeTable)
		if err != nil {
			return err
		}
		return s.store.ReplaceColumns(ctx, workspaceID, databaseID, safeSchema, safeTable, rows)
	})
}

// Query runs a read-only passthrough query against one endpoint, capped at
// maxRows. Zero maxRows applies the default cap of 10000.
func (s *Syncer) Query(ctx context.Context, workspaceID, databaseID, query string, maxRows int, params ...any) ([]string, [][]any, error) {
	if err := sqlexec.CheckReadOnly(query); err != nil {
		return nil, nil, err
	}
	_, target, err := s.endpointTarget(ctx, workspaceID, databaseID)
	if err != nil {
		return nil, nil, err
	}
	cols, rows, err := s.exec.Query(ctx, target, query, params...)
	if err != nil {
		return nil, nil, err
	}
	if maxRows <= 0 {
		maxRows = 10000
	}
	if len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	return cols, rows, nil
}

// HydrateWorkspaces implements resolver.Hydrator.
func (s *Syncer) HydrateWorkspaces(ctx context.Context) error {
	return s.RefreshWorkspaces(ctx)
}

// HydrateEndpoints implements resolver.Hydrator.
func (s *Syncer) HydrateEndpoints(ctx context.Context, workspaceID string) error {
	return s.RefreshEndpoints(ctx, workspaceID)
}

// ProbeWorkspace re-probes one workspace and persists the new state.
func (s *Syncer) ProbeWorkspace(ctx context.Context, workspaceID string) (string, error) {
	if s.prober == nil {
		return "", errors.New("no prober configured")
	}
	w, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return "", err
	}
	w.State = s.prober.WorkspaceState(ctx, workspaceID)
	if err := s.store.UpsertWorkspaces(ctx, []catalog.Workspace{*w}); err != nil {
		return "", err
	}
	return w.State, nil
}
