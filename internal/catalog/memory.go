package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Store used as a test double by the sync, resolver,
// and API tests. It honors the same upsert and replace semantics as the real
// backends, and can be primed with errors to exercise failure paths.
type Memory struct {
	mu sync.Mutex

	workspaces map[string]Workspace
	items      map[string]Item
	endpoints  map[string]SqlEndpoint
	schemas    []Schema
	tables     []Table
	columns    []Column

	// FailNext, when set, is returned (and cleared) by the next mutating call.
	FailNext error
}

func NewMemory() *Memory {
	return &Memory{
		workspaces: map[string]Workspace{},
		items:      map[string]Item{},
		endpoints:  map[string]SqlEndpoint{},
	}
}

func (m *Memory) takeErr() error {
	err := m.FailNext
	m.FailNext = nil
	return err
}

func (m *Memory) Init(context.Context) error { return nil }

func (m *Memory) UpsertWorkspaces(_ context.Context, rows []Workspace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	for _, r := range rows {
		m.workspaces[r.ID] = r
	}
	return nil
}

func (m *Memory) UpsertItems(_ context.Context, rows []Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	for _, r := range rows {
		m.items[r.ID] = r
	}
	return nil
}

func (m *Memory) UpsertEndpoints(_ context.Context, rows []SqlEndpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	for _, r := range rows {
		m.endpoints[r.DatabaseID] = r
	}
	return nil
}

func (m *Memory) DeleteEndpoints(_ context.Context, workspaceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	for id, ep := range m.endpoints {
		if ep.WorkspaceID == workspaceID {
			delete(m.endpoints, id)
		}
	}
	return nil
}

// Duplicate keys inside one batch fail the whole replace before anything is
// written, matching the unique constraints the real backends enforce.
func dupSchemaKey(rows []Schema) error {
	seen := map[string]struct{}{}
	for _, r := range rows {
		k := r.WorkspaceID + "\x00" + r.DatabaseID + "\x00" + r.SchemaName
		if _, ok := seen[k]; ok {
			return fmt.Errorf("duplicate schema row %s/%s", r.DatabaseID, r.SchemaName)
		}
		seen[k] = struct{}{}
	}
	return nil
}

func dupTableKey(rows []Table) error {
	seen := map[string]struct{}{}
	for _, r := range rows {
		k := r.WorkspaceID + "\x00" + r.DatabaseID + "\x00" + r.SchemaName + "\x00" + r.TableName
		if _, ok := seen[k]; ok {
			return fmt.Errorf("duplicate table row %s.%s", r.SchemaName, r.TableName)
		}
		seen[k] = struct{}{}
	}
	return nil
}

func dupColumnKey(rows []Column) error {
	seen := map[string]struct{}{}
	for _, r := range rows {
		k := r.WorkspaceID + "\x00" + r.DatabaseID + "\x00" + r.SchemaName + "\x00" + r.TableName + "\x00" + r.ColumnName
		if _, ok := seen[k]; ok {
			return fmt.Errorf("duplicate column row %s.%s.%s", r.SchemaName, r.TableName, r.ColumnName)
		}
		seen[k] = struct{}{}
	}
	return nil
}

func (m *Memory) ReplaceSchemas(_ context.Context, workspaceID, databaseID string, rows []Schema) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	if err := dupSchemaKey(rows); err != nil {
		return err
	}
	kept := m.schemas[:0]
	for _, s := range m.schemas {
		if !(s.WorkspaceID == workspaceID && s.DatabaseID == databaseID) {
			kept = append(kept, s)
		}
	}
	m.schemas = append(kept, rows...)
	return nil
}

func (m *Memory) ReplaceTables(_ context.Context, workspaceID, databaseID, schemaName string, rows []Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	if err := dupTableKey(rows); err != nil {
		return err
	}
	kept := m.tables[:0]
	for _, t := range m.tables {
		if !(t.WorkspaceID == workspaceID && t.DatabaseID == databaseID && t.SchemaName == schemaName) {
			kept = append(kept, t)
		}
	}
	m.tables = append(kept, rows...)
	return nil
}

func (m *Memory) ReplaceColumns(_ context.Context, workspaceID, databaseID, schemaName, tableName string, rows []Column) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	if err := dupColumnKey(rows); err != nil {
		return err
	}
	kept := m.columns[:0]
	for _, c := range m.columns {
		if !(c.WorkspaceID == workspaceID && c.DatabaseID == databaseID &&
			c.SchemaName == schemaName && c.TableName == tableName) {
			kept = append(kept, c)
		}
	}
	m.columns = append(kept, rows...)
	return nil
}

func (m *Memory) ReplaceIntrospection(_ context.Context, workspaceID, databaseID string, schemas []Schema, tables []Table, columns []Column) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	if err := dupSchemaKey(schemas); err != nil {
		return err
	}
	if err := dupTableKey(tables); err != nil {
		return err
	}
	if err := dupColumnKey(columns); err != nil {
		return err
	}
	inScope := func(ws, db string) bool { return ws == workspaceID && db == databaseID }

	keptS := m.schemas[:0]
	for _, s := range m.schemas {
		if !inScope(s.WorkspaceID, s.DatabaseID) {
			keptS = append(keptS, s)
		}
	}
	m.schemas = append(keptS, schemas...)

	keptT := m.tables[:0]
	for _, t := range m.tables {
		if !inScope(t.WorkspaceID, t.DatabaseID) {
			keptT = append(keptT, t)
		}
	}
	m.tables = append(keptT, tables...)

	keptC := m.columns[:0]
	for _, c := range m.columns {
		if !inScope(c.WorkspaceID, c.DatabaseID) {
			keptC = append(keptC, c)
		}
	}
	m.columns = append(keptC, columns...)
	return nil
}

func (m *Memory) GetWorkspace(_ context.Context, id string) (*Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workspaces[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &w, nil
}

func (m *Memory) ListWorkspaces(context.Context) ([]Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Workspace, 0, len(m.workspaces))
	for _, w := range m.workspaces {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

func (m *Memory) ListItems(_ context.Context, workspaceID string) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Item
	for _, it := range m.items {
		if it.WorkspaceID == workspaceID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetEndpoint(_ context.Context, databaseID string) (*SqlEndpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ep, ok := m.endpoints[databaseID]
	if !ok {
		return nil, ErrNotFound
	}
	return &ep, nil
}

func (m *Memory) ListEndpoints(_ context.Context, workspaceID string) ([]SqlEndpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SqlEndpoint
	for _, ep := range m.endpoints {
		if workspaceID == "" || ep.WorkspaceID == workspaceID {
			out = append(out, ep)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) ListSchemas(_ context.Context, workspaceID, databaseID string) ([]Schema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Schema
	for _, s := range m.schemas {
		if s.WorkspaceID == workspaceID && s.DatabaseID == databaseID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SchemaName < out[j].SchemaName })
	return out, nil
}

func (m *Memory) ListTables(_ context.Context, workspaceID, databaseID, schemaName string) ([]Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Table
	for _, t := range m.tables {
		if t.WorkspaceID == workspaceID && t.DatabaseID == databaseID &&
			(schemaName == "" || t.SchemaName == schemaName) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SchemaName != out[j].SchemaName {
			return out[i].SchemaName < out[j].SchemaName
		}
		return out[i].TableName < out[j].TableName
	})
	return out, nil
}

func (m *Memory) ListColumns(_ context.Context, workspaceID, databaseID, schemaName, tableName string) ([]Column, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Column
	for _, c := range m.columns {
		if c.WorkspaceID == workspaceID && c.DatabaseID == databaseID &&
			(schemaName == "" || c.SchemaName == schemaName) &&
			(tableName == "" || c.TableName == tableName) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SchemaName != out[j].SchemaName {
			return out[i].SchemaName < out[j].SchemaName
		}
		if out[i].TableName != out[j].TableName {
			return out[i].TableName < out[j].TableName
		}
		return out[i].Ordinal < out[j].Ordinal
	})
	return out, nil
}

func (m *Memory) Stats(context.Context) (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &Stats{
		Workspaces: int64(len(m.workspaces)),
		Items:      int64(len(m.items)),
		Endpoints:  int64(len(m.endpoints)),
		Schemas:    int64(len(m.schemas)),
		Tables:     int64(len(m.tables)),
		Columns:    int64(len(m.columns)),
	}, nil
}

func (m *Memory) Close(context.Context) error { return nil }

var _ Store = (*Memory)(nil)
