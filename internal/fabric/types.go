// Package fabric crawls the remote Fabric REST catalog: workspaces, the
// items inside them, and the SQL connection surface each SQL-capable item
// exposes. The API is uneven across item kinds, so connection resolution is
// a set of kind-specific strategies rather than one code path.
package fabric

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/fabmirror/fabmirror/internal/catalog"
)

// Endpoint kinds as stored in the catalog.
const (
	KindWarehouse            = "Warehouse"
	KindSQLEndpoint          = "SQLEndpoint"
	KindLakehouseSqlEndpoint = "LakehouseSqlEndpoint"
	KindSqlDatabase          = "SqlDatabase"
)

// KindOf maps a raw item type to an endpoint kind. The second return is
// false for non-SQL items, which the resolver skips.
func KindOf(itemType string) (string, bool) {
	switch strings.ToLower(itemType) {
	case "warehouse":
		return KindWarehouse, true
	case "sqlendpoint":
		return KindSQLEndpoint, true
	case "lakehouse", "sqlep", "lakehousesqlendpoint":
		return KindLakehouseSqlEndpoint, true
	case "sqldatabase", "sql database", "sqldatabasepreview":
		return KindSqlDatabase, true
	default:
		return "", false
	}
}

// WorkspaceRaw is a workspace as returned by the API. CreatedBy may be a
// plain string or an object carrying an email, so it stays raw until mapped.
type WorkspaceRaw struct {
	ID                 string          `json:"id"`
	DisplayName        string          `json:"displayName"`
	Name               string          `json:"name"`
	State              string          `json:"state"`
	CreatedBy          json.RawMessage `json:"createdBy"`
	CreatedDateTime    *string         `json:"createdDateTime"`
	LastActionDateTime *string         `json:"lastActionDateTime"`
	Region             *string         `json:"region"`
}

// ItemRaw is an item as returned by the API.
type ItemRaw struct {
	ID               string  `json:"id"`
	Type             string  `json:"type"`
	DisplayName      string  `json:"displayName"`
	Name             string  `json:"name"`
	ModifiedDateTime *string `json:"modifiedDateTime"`
	CreatedDateTime  *string `json:"createdDateTime"`
}

func (it ItemRaw) displayOrID() string {
	if it.DisplayName != "" {
		return it.DisplayName
	}
	if it.Name != "" {
		return it.Name
	}
	return it.ID
}

// MapWorkspace converts an API workspace to the catalog model. Workspaces
// default to active; the prober downgrades them later if probing says
// otherwise.
func MapWorkspace(w WorkspaceRaw) catalog.Workspace {
	name := w.DisplayName
	if name == "" {
		name = w.Name
	}
	state := strings.ToLower(w.State)
	if state == "" {
		state = catalog.StateActive
	}
	return catalog.Workspace{
		ID:             w.ID,
		Name:           name,
		State:          state,
		CreatedBy:      createdByEmail(w.CreatedBy),
		CreatedAt:      w.CreatedDateTime,
		LastActivityAt: w.LastActionDateTime,
		Region:         w.Region,
	}
}

func createdByEmail(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	var obj struct {
		Email *string `json:"email"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Email != nil {
		return obj.Email
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return &s
	}
	return nil
}

// MapItem converts an API item to the catalog model.
func MapItem(workspaceID string, it ItemRaw) catalog.Item {
	var name *string
	if it.DisplayName != "" {
		name = &it.DisplayName
	} else if it.Name != "" {
		name = &it.Name
	}
	updated := it.ModifiedDateTime
	if updated == nil {
		updated = it.CreatedDateTime
	}
	return catalog.Item{
		ID:          it.ID,
		WorkspaceID: workspaceID,
		Type:        it.Type,
		Name:        name,
		UpdatedAt:   updated,
	}
}

func logUnknownKind(log *slog.Logger, it ItemRaw) {
	log.Debug("skipping non-SQL item", "type", it.Type, "id", it.ID)
}
