package fabric

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fabmirror/fabmirror/internal/catalog"
	"github.com/fabmirror/fabmirror/internal/conninfo"
)

type connStringBody struct {
	ConnectionString *string `json:"connectionString"`
}

// WarehouseConnectionString tries both endpoint spellings the API has
// shipped for warehouses. The result is often host-only, no Database= part.
func (c *Client) WarehouseConnectionString(ctx context.Context, workspaceID, warehouseID string) (*string, error) {
	base := "workspaces/" + workspaceID + "/warehouses/" + warehouseID
	for _, suffix := range []string{"/connectionString", "/getConnectionString"} {
		var body connStringBody
		ok, err := c.get2xx(ctx, base+suffix, &body)
		if err != nil {
			return nil, err
		}
		if ok && body.ConnectionString != nil {
			return body.ConnectionString, nil
		}
	}
	return nil, nil
}

// SQLEndpointConnectionString resolves a dedicated SQLEndpoint item.
func (c *Client) SQLEndpointConnectionString(ctx context.Context, workspaceID, endpointID string) (*string, error) {
	var body connStringBody
	ok, err := c.get2xx(ctx, "workspaces/"+workspaceID+"/sqlEndpoints/"+endpointID+"/connectionString", &body)
	if err != nil || !ok {
		return nil, err
	}
	return body.ConnectionString, nil
}

// LakehouseConnectionString reads the SQL endpoint embedded in a lakehouse's
// properties. Host-only when present.
func (c *Client) LakehouseConnectionString(ctx context.Context, workspaceID, lakehouseID string) (*string, error) {
	var body struct {
		Properties struct {
			SqlEndpointProperties struct {
				ConnectionString *string `json:"connectionString"`
			} `json:"sqlEndpointProperties"`
		} `json:"properties"`
	}
	ok, err := c.get2xx(ctx, "workspaces/"+workspaceID+"/lakehouses/"+lakehouseID, &body)
	if err != nil || !ok {
		return nil, err
	}
	return body.Properties.SqlEndpointProperties.ConnectionString, nil
}

// SqlDatabaseProperties is the best-effort connection surface of a preview
// SQL database item.
type SqlDatabaseProperties struct {
	ConnectionString *string
	ServerFqdn       *string
	DatabaseName     *string
}

// SqlDatabaseConnection works through the shapes the preview API has been
// seen to return, in order:
//
//  1. GET /sqlDatabases/{id} with connection fields under properties
//  2. the explicit connectionString / getConnectionString endpoints
//  3. a generic item lookup, scanning the nested nodes that sometimes
//     carry a connectionString
func (c *Client) SqlDatabaseConnection(ctx context.Context, workspaceID, databaseID string) (SqlDatabaseProperties, error) {
	base := "workspaces/" + workspaceID + "/sqlDatabases/" + databaseID

	var detail struct {
		Properties struct {
			ConnectionString *string `json:"connectionString"`
			ServerFqdn       *string `json:"serverFqdn"`
			DatabaseName     *string `json:"databaseName"`
		} `json:"properties"`
	}
	ok, err := c.get2xx(ctx, base, &detail)
	if err != nil {
		return SqlDatabaseProperties{}, err
	}
	p := detail.Properties
	if ok && (p.ConnectionString != nil || p.ServerFqdn != nil || p.DatabaseName != nil) {
		return SqlDatabaseProperties{
			ConnectionString: p.ConnectionString,
			ServerFqdn:       p.ServerFqdn,
			DatabaseName:     p.DatabaseName,
		}, nil
	}

	for _, suffix := range []string{"/connectionString", "/getConnectionString"} {
		var body connStringBody
		ok, err := c.get2xx(ctx, base+suffix, &body)
		if err != nil {
			return SqlDatabaseProperties{}, err
		}
		if ok && body.ConnectionString != nil {
			return SqlDatabaseProperties{ConnectionString: body.ConnectionString}, nil
		}
	}

	var item map[string]json.RawMessage
	ok, err = c.get2xx(ctx, "workspaces/"+workspaceID+"/items/"+databaseID, &item)
	if err != nil {
		return SqlDatabaseProperties{}, err
	}
	if ok {
		if cs := rawConnString(item["connectionString"]); cs != nil {
			return SqlDatabaseProperties{ConnectionString: cs}, nil
		}
		for _, key := range []string{"properties", "sqlEndpointProperties", "connection"} {
			var node struct {
				ConnectionString *string `json:"connectionString"`
			}
			if raw, found := item[key]; found && json.Unmarshal(raw, &node) == nil && node.ConnectionString != nil {
				return SqlDatabaseProperties{ConnectionString: node.ConnectionString}, nil
			}
		}
	}
	return SqlDatabaseProperties{}, nil
}

func rawConnString(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return nil
	}
	return &s
}

// ResolveEndpoints lists a workspace's items and resolves the connection
// surface of every SQL-capable one. Items whose connection cannot be
// resolved still yield a row: the endpoint exists, only its server is
// unknown.
func (c *Client) ResolveEndpoints(ctx context.Context, workspaceID string) ([]catalog.SqlEndpoint, error) {
	items, err := c.ListItems(ctx, workspaceID, "")
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var rows []catalog.SqlEndpoint
	for _, it := range items {
		kind, ok := KindOf(it.Type)
		if !ok {
			logUnknownKind(c.log, it)
			continue
		}

		name := it.displayOrID()
		row := catalog.SqlEndpoint{
			DatabaseID:   it.ID,
			WorkspaceID:  workspaceID,
			Kind:         kind,
			Name:         name,
			Port:         conninfo.DefaultPort,
			LastSyncedAt: &now,
		}

		switch kind {
		case KindSqlDatabase:
			props, err := c.SqlDatabaseConnection(ctx, workspaceID, it.ID)
			if err != nil {
				return nil, fmt.Errorf("resolving sql database %s: %w", it.ID, err)
			}
			if props.ConnectionString != nil {
				info := conninfo.Normalize(props.ConnectionString)
				row.Server, row.Database, row.Port = info.Server, info.Database, info.Port
				row.ConnectionString = props.ConnectionString
			} else {
				row.Server = props.ServerFqdn
				row.Database = props.DatabaseName
			}
		default:
			var cs *string
			switch kind {
			case KindWarehouse:
				cs, err = c.WarehouseConnectionString(ctx, workspaceID, it.ID)
			case KindSQLEndpoint:
				cs, err = c.SQLEndpointConnectionString(ctx, workspaceID, it.ID)
			case KindLakehouseSqlEndpoint:
				cs, err = c.LakehouseConnectionString(ctx, workspaceID, it.ID)
			}
			if err != nil {
				return nil, fmt.Errorf("resolving %s %s: %w", kind, it.ID, err)
			}
			info := conninfo.Normalize(cs)
			row.Server, row.Database, row.Port = info.Server, info.Database, info.Port
			row.ConnectionString = cs
		}

		row.Database = conninfo.FallbackDatabase(row.Database, name)
		rows = append(rows, row)
	}
	return DedupeEndpoints(rows), nil
}

// DedupeEndpoints collapses rows sharing (kind, name), keeping the one with
// the most connection detail. Ties keep the first-seen row, so resolution
// order is stable across crawls.
func DedupeEndpoints(rows []catalog.SqlEndpoint) []catalog.SqlEndpoint {
	type key struct{ kind, name string }
	score := func(r catalog.SqlEndpoint) int {
		s := 0
		if r.Server != nil {
			s += 2
		}
		if r.ConnectionString != nil {
			s++
		}
		return s
	}

	best := map[key]int{}
	var order []key
	kept := map[key]catalog.SqlEndpoint{}
	for _, r := range rows {
		k := key{r.Kind, r.Name}
		if _, seen := kept[k]; !seen {
			order = append(order, k)
			kept[k] = r
			best[k] = score(r)
			continue
		}
		if score(r) > best[k] {
			kept[k] = r
			best[k] = score(r)
		}
	}

	out := make([]catalog.SqlEndpoint, 0, len(order))
	for _, k := range order {
		out = append(out, kept[k])
	}
	return out
}
