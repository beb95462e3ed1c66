// Package resolver maps user-supplied names or ids to canonical catalog
// entities. Lookups are cache-first against the catalog store, with an
// optional hydrator to fill cold caches from the live API.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/fabmirror/fabmirror/internal/catalog"
	"github.com/fabmirror/fabmirror/internal/match"
)

// WorkspaceRef is a resolved workspace.
type WorkspaceRef struct {
	ID   string
	Name string
}

// DatabaseRef is a resolved SQL endpoint with its owning workspace.
type DatabaseRef struct {
	WorkspaceID   string
	WorkspaceName string
	DatabaseID    string
	DatabaseName  string
}

// Hydrator refreshes catalog scopes on a cache miss. Nil disables live
// fallback; resolution then answers purely from the cache.
type Hydrator interface {
	HydrateWorkspaces(ctx context.Context) error
	HydrateEndpoints(ctx context.Context, workspaceID string) error
}

// Resolver answers name/id lookups.
type Resolver struct {
	store   catalog.Store
	hydrate Hydrator
	log     *slog.Logger
}

func New(store catalog.Store, hydrate Hydrator, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{store: store, hydrate: hydrate, log: log}
}

// isGUID reports whether s is a canonical hyphenated GUID.
func isGUID(s string) bool {
	return len(s) == 36 && uuid.Validate(s) == nil
}

func (r *Resolver) workspaces(ctx context.Context) ([]catalog.Workspace, error) {
	ws, err := r.store.ListWorkspaces(ctx)
	if err != nil {
		return nil, err
	}
	if len(ws) == 0 && r.hydrate != nil {
		if err := r.hydrate.HydrateWorkspaces(ctx); err != nil {
			r.log.Warn("workspace hydration failed, resolving against empty cache", "error", err)
		} else if ws, err = r.store.ListWorkspaces(ctx); err != nil {
			return nil, err
		}
	}
	return ws, nil
}

func (r *Resolver) endpoints(ctx context.Context, workspaceID string) ([]catalog.SqlEndpoint, error) {
	eps, err := r.store.ListEndpoints(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if len(eps) == 0 && r.hydrate != nil && workspaceID != "" {
		if err := r.hydrate.HydrateEndpoints(ctx, workspaceID); err != nil {
			r.log.Warn("endpoint hydration failed, resolving against empty cache",
				"workspace", workspaceID, "error", err)
		} else if eps, err = r.store.ListEndpoints(ctx, workspaceID); err != nil {
			return nil, err
		}
	}
	return eps, nil
}

// ResolveWorkspace accepts a workspace name, a workspace id, or a database
// id whose owning workspace is wanted. No acceptable match returns nil
// without error.
func (r *Resolver) ResolveWorkspace(ctx context.Context, text string) (*WorkspaceRef, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil, nil
	}

	ws, err := r.workspaces(ctx)
	if err != nil {
		return nil, err
	}
	idToName := make(map[string]string, len(ws))
	names := make([]string, 0, len(ws))
	for _, w := range ws {
		idToName[w.ID] = w.Name
		if w.Name != "" {
			names = append(names, w.Name)
		}
	}

	if name, ok := idToName[s]; ok {
		return &WorkspaceRef{ID: s, Name: name}, nil
	}

	if best, ok := match.BestMatch(s, names, match.DefaultCutoff); ok {
		for id, name := range idToName {
			if match.Normalize(name) == match.Normalize(best) {
				return &WorkspaceRef{ID: id, Name: name}, nil
			}
		}
	}

	// GUID that is not a workspace id: maybe a database id sitting in the
	// workspace slot.
	if isGUID(s) {
		ep, err := r.store.GetEndpoint(ctx, s)
		if err != nil && !errors.Is(err, catalog.ErrNotFound) {
			return nil, err
		}
		if ep != nil {
			return &WorkspaceRef{ID: ep.WorkspaceID, Name: idToName[ep.WorkspaceID]}, nil
		}
	}

	return nil, nil
}

// ResolveDatabase accepts a workspace name/id and a database name/id and
// resolves the endpoint inside that workspace.
func (r *Resolver) ResolveDatabase(ctx context.Context, workspace, database string) (*DatabaseRef, error) {
	ws, err := r.ResolveWorkspace(ctx, workspace)
	if err != nil || ws == nil {
		return nil, err
	}

	eps, err := r.endpoints(ctx, ws.ID)
	if err != nil {
		return nil, err
	}

	db := strings.TrimSpace(database)
	for _, ep := range eps {
		if ep.DatabaseID == db {
			return refFor(ws, ep), nil
		}
	}

	candidates, byNorm := endpointCandidates(eps)
	best, ok := match.BestMatch(db, candidates, match.DefaultCutoff)
	if !ok {
		return nil, nil
	}
	if ep, found := byNorm[match.Normalize(best)]; found {
		return refFor(ws, ep), nil
	}
	return nil, nil
}

// ResolveDatabaseGlobal resolves a database GUID or name across every
// workspace.
func (r *Resolver) ResolveDatabaseGlobal(ctx context.Context, text string) (*DatabaseRef, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil, nil
	}

	if isGUID(s) {
		ep, err := r.store.GetEndpoint(ctx, s)
		if err != nil && !errors.Is(err, catalog.ErrNotFound) {
			return nil, err
		}
		if ep != nil {
			ws, err := r.ResolveWorkspace(ctx, ep.WorkspaceID)
			if err != nil {
				return nil, err
			}
			if ws != nil {
				return refFor(ws, *ep), nil
			}
		}
		// Cache miss on the GUID; fall through to the name scan.
	}

	ws, err := r.workspaces(ctx)
	if err != nil {
		return nil, err
	}
	wsName := make(map[string]string, len(ws))
	for _, w := range ws {
		wsName[w.ID] = w.Name
	}

	eps, err := r.store.ListEndpoints(ctx, "")
	if err != nil {
		return nil, err
	}
	candidates, byNorm := endpointCandidates(eps)
	best, ok := match.BestMatch(s, candidates, match.DefaultCutoff)
	if !ok {
		return nil, nil
	}
	if ep, found := byNorm[match.Normalize(best)]; found {
		return &DatabaseRef{
			WorkspaceID:   ep.WorkspaceID,
			WorkspaceName: wsName[ep.WorkspaceID],
			DatabaseID:    ep.DatabaseID,
			DatabaseName:  displayName(ep),
		}, nil
	}
	return nil, nil
}

// endpointCandidates collects both the endpoint display name and the parsed
// database name as match candidates, indexed by normalized form. First-seen
// wins on normalized collisions, keeping resolution deterministic.
func endpointCandidates(eps []catalog.SqlEndpoint) ([]string, map[string]catalog.SqlEndpoint) {
	var candidates []string
	byNorm := map[string]catalog.SqlEndpoint{}
	add := func(name string, ep catalog.SqlEndpoint) {
		name = strings.TrimSpace(strings.Trim(name, `"`))
		if name == "" {
			return
		}
		key := match.Normalize(name)
		if _, seen := byNorm[key]; !seen {
			byNorm[key] = ep
			candidates = append(candidates, name)
		}
	}
	for _, ep := range eps {
		add(ep.Name, ep)
		if ep.Database != nil {
			add(*ep.Database, ep)
		}
	}
	return candidates, byNorm
}

func displayName(ep catalog.SqlEndpoint) string {
	if ep.Name != "" {
		return ep.Name
	}
	if ep.Database != nil {
		return *ep.Database
	}
	return ""
}

func refFor(ws *WorkspaceRef, ep catalog.SqlEndpoint) *DatabaseRef {
	return &DatabaseRef{
		WorkspaceID:   ws.ID,
		WorkspaceName: ws.Name,
		DatabaseID:    ep.DatabaseID,
		DatabaseName:  displayName(ep),
	}
}
