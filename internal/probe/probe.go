// Package probe classifies a workspace's operational state by walking a
// layered, best-effort ladder: list its SQL-capable items, resolve a
// connection string, and finally run a trial query. The ladder is heuristic
// on purpose; when a step cannot decide, the workspace stays active rather
// than blocking legitimate access on a false inactive.
package probe

import (
	"context"
	"log/slog"
	"strings"

	"github.com/fabmirror/fabmirror/internal/catalog"
	"github.com/fabmirror/fabmirror/internal/conninfo"
	"github.com/fabmirror/fabmirror/internal/fabric"
	"github.com/fabmirror/fabmirror/internal/sqlexec"
)

// OutageKeywords mark an error as a capacity outage wherever they appear in
// the message. Kept exported so operators can see exactly what flips a
// workspace to inactive.
var OutageKeywords = []string{"capacity", "paused", "suspended", "inactive", "unavailable"}

// trialKeywords extend the outage set for trial-query failures, where
// transport-level symptoms also indicate a paused capacity.
var trialKeywords = append([]string{"timeout", "connection", "login", "authentication"}, OutageKeywords...)

// fabricManagedDomains are hosts Fabric operates itself. Trial queries
// against them probe the master database.
var fabricManagedDomains = []string{
	"datawarehouse.fabric.microsoft.com",
	"onelake.dfs.fabric.microsoft.com",
}

func matchesAny(err error, keywords []string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, kw := range keywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

func isFabricManaged(host string) bool {
	h := strings.ToLower(host)
	for _, d := range fabricManagedDomains {
		if strings.Contains(h, d) {
			return true
		}
	}
	return false
}

// API is the slice of the Fabric client the prober needs. Narrowed to an
// interface so probe logic is testable without HTTP.
type API interface {
	ListItems(ctx context.Context, workspaceID, typeFilter string) ([]fabric.ItemRaw, error)
	WarehouseConnectionString(ctx context.Context, workspaceID, warehouseID string) (*string, error)
	SQLEndpointConnectionString(ctx context.Context, workspaceID, endpointID string) (*string, error)
	LakehouseConnectionString(ctx context.Context, workspaceID, lakehouseID string) (*string, error)
	SqlDatabaseConnection(ctx context.Context, workspaceID, databaseID string) (fabric.SqlDatabaseProperties, error)
}

var _ API = (*fabric.Client)(nil)

// Prober runs the availability ladder.
type Prober struct {
	client API
	exec   sqlexec.Executor
	log    *slog.Logger
}

func New(client API, exec sqlexec.Executor, log *slog.Logger) *Prober {
	if log == nil {
		log = slog.Default()
	}
	return &Prober{client: client, exec: exec, log: log}
}

// WorkspaceState classifies one workspace as active or inactive. It never
// returns an error: every failure mode resolves to a state.
func (p *Prober) WorkspaceState(ctx context.Context, workspaceID string) string {
	items, err := p.client.ListItems(ctx, workspaceID, "")
	if err != nil {
		if matchesAny(err, OutageKeywords) {
			return catalog.StateInactive
		}
		p.log.Warn("item listing failed during probe, assuming active",
			"workspace", workspaceID, "error", err)
		return catalog.StateActive
	}

	first, found := firstSQLCapable(items)
	if !found {
		// Reachable workspace with nothing SQL-capable in it.
		return catalog.StateActive
	}

	cs, err := p.connectionString(ctx, workspaceID, first)
	if err != nil {
		if matchesAny(err, OutageKeywords) {
			return catalog.StateInactive
		}
		p.log.Warn("connection resolution failed during probe, assuming active",
			"workspace", workspaceID, "item", first.ID, "error", err)
		return catalog.StateActive
	}
	if cs == nil || strings.TrimSpace(*cs) == "" {
		return catalog.StateInactive
	}

	return p.trial(ctx, workspaceID, *cs)
}

// trial runs SELECT 1 against the endpoint the connection string describes.
func (p *Prober) trial(ctx context.Context, workspaceID, cs string) string {
	info := conninfo.Normalize(&cs)
	if info.Server == nil {
		// Nothing to probe; assume healthy.
		return catalog.StateActive
	}

	target := sqlexec.Target{Server: *info.Server, Port: info.Port}
	switch {
	case isFabricManaged(*info.Server):
		target.Database = "master"
	case info.Database != nil:
		target.Database = *info.Database
	default:
		// Conventional host without a parsable database; cannot probe.
		return catalog.StateActive
	}

	if _, _, err := p.exec.Query(ctx, target, "SELECT 1"); err != nil {
		if matchesAny(err, trialKeywords) {
			return catalog.StateInactive
		}
		p.log.Debug("trial query failed for non-outage reason, assuming active",
			"workspace", workspaceID, "server", target.Server, "error", err)
	}
	return catalog.StateActive
}

func firstSQLCapable(items []fabric.ItemRaw) (fabric.ItemRaw, bool) {
	for _, it := range items {
		if _, ok := fabric.KindOf(it.Type); ok {
			return it, true
		}
	}
	return fabric.ItemRaw{}, false
}

func (p *Prober) connectionString(ctx context.Context, workspaceID string, it fabric.ItemRaw) (*string, error) {
	kind, _ := fabric.KindOf(it.Type)
	switch kind {
	case fabric.KindWarehouse:
		return p.client.WarehouseConnectionString(ctx, workspaceID, it.ID)
	case fabric.KindSQLEndpoint:
		return p.client.SQLEndpointConnectionString(ctx, workspaceID, it.ID)
	case fabric.KindLakehouseSqlEndpoint:
		return p.client.LakehouseConnectionString(ctx, workspaceID, it.ID)
	case fabric.KindSqlDatabase:
		props, err := p.client.SqlDatabaseConnection(ctx, workspaceID, it.ID)
		if err != nil {
			return nil, err
		}
		return props.ConnectionString, nil
	}
	return nil, nil
}
