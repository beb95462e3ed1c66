// Package conninfo parses the inconsistent connection representations the
// Fabric API returns for SQL-capable items. Warehouses usually come back
// host-only, SQL databases as full key=value strings, and some endpoints
// return nothing at all.
package conninfo

import (
	"strconv"
	"strings"
)

// DefaultPort is the SQL Server default used whenever a connection string
// carries no usable port.
const DefaultPort = 1433

// Info is the normalized connection target of one SQL-capable item.
// Server and Database stay nil when the endpoint exists but exposes no
// connection surface.
type Info struct {
	Server   *string
	Database *string
	Port     int
}

// Normalize converts a raw connection string into an Info. Accepted shapes:
//
//   - host-only: "xyz.datawarehouse.fabric.microsoft.com" or "host,1500"
//   - key=value: "Data Source=tcp:host,1433;Initial Catalog=DB;..."
//     (keys are case-insensitive; server/database aliases recognized)
//
// Empty input yields {nil, nil, 1433}.
func Normalize(raw *string) Info {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return Info{Port: DefaultPort}
	}
	cs := strings.TrimSpace(*raw)

	// Host-only form: no '=' anywhere.
	if !strings.Contains(cs, "=") {
		server, port := splitHostPort(cs)
		return Info{Server: &server, Port: port}
	}

	parts := map[string]string{}
	for _, kv := range strings.Split(cs, ";") {
		if k, v, ok := strings.Cut(kv, "="); ok {
			parts[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
		}
	}

	info := Info{Port: DefaultPort}
	server := parts["data source"]
	if server == "" {
		server = parts["server"]
	}
	if server != "" {
		host, port := splitHostPort(server)
		info.Server = &host
		info.Port = port
	}
	if db := firstNonEmpty(parts["initial catalog"], parts["database"]); db != "" {
		info.Database = &db
	}
	return info
}

// splitHostPort splits "host,port" into host and a numeric port, keeping the
// default when the port segment is missing or non-numeric. The ADO-style
// "tcp:" protocol prefix is not part of the hostname and is dropped.
func splitHostPort(s string) (string, int) {
	if len(s) >= 4 && strings.EqualFold(s[:4], "tcp:") {
		s = s[4:]
	}
	host, portStr, found := strings.Cut(s, ",")
	if !found {
		return s, DefaultPort
	}
	port, err := strconv.Atoi(strings.TrimSpace(portStr))
	if err != nil {
		return host, DefaultPort
	}
	return host, port
}

// FallbackDatabase substitutes the item's display name when the connection
// descriptor carries no database name. Fabric often omits Initial Catalog.
func FallbackDatabase(parsed *string, itemName string) *string {
	if parsed != nil && *parsed != "" {
		return parsed
	}
	if itemName == "" {
		return nil
	}
	return &itemName
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
