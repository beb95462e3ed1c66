package conninfo

import "testing"

func strPtr(s string) *string { return &s }

func TestNormalize_Empty(t *testing.T) {
	for _, raw := range []*string{nil, strPtr(""), strPtr("   ")} {
		info := Normalize(raw)
		if info.Server != nil || info.Database != nil {
			t.Errorf("Normalize(%v): expected nil server/database, got %+v", raw, info)
		}
		if info.Port != DefaultPort {
			t.Errorf("Normalize(%v): port = %d, want %d", raw, info.Port, DefaultPort)
		}
	}
}

func TestNormalize_HostOnly(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		server   string
		port     int
		database *string
	}{
		{"bare host", "xyz.datawarehouse.fabric.microsoft.com", "xyz.datawarehouse.fabric.microsoft.com", 1433, nil},
		{"tcp prefix stripped", "tcp:xyz.datawarehouse.fabric.microsoft.com,1433", "xyz.datawarehouse.fabric.microsoft.com", 1433, nil},
		{"host with port", "myhost.example.com,1500", "myhost.example.com", 1500, nil},
		{"host with bad port", "myhost.example.com,abc", "myhost.example.com", 1433, nil},
		{"whitespace trimmed", "  host.example.com  ", "host.example.com", 1433, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := Normalize(&tt.raw)
			if info.Server == nil || *info.Server != tt.server {
				t.Errorf("server = %v, want %q", info.Server, tt.server)
			}
			if info.Port != tt.port {
				t.Errorf("port = %d, want %d", info.Port, tt.port)
			}
			if info.Database != nil {
				t.Errorf("database = %q, want nil", *info.Database)
			}
		})
	}
}

func TestNormalize_KeyValue(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		server   string
		database string
		port     int
	}{
		{
			"data source with tcp prefix and embedded port",
			"Data Source=tcp:h,1433;Initial Catalog=DB;Encrypt=yes;",
			"h", "DB", 1433,
		},
		{
			"uppercase tcp prefix",
			"Server=TCP:myhost.example.com,1500;Database=Sales;",
			"myhost.example.com", "Sales", 1500,
		},
		{
			"server and database aliases",
			"Server=myserver.example.com;Database=Analytics;",
			"myserver.example.com", "Analytics", 1433,
		},
		{
			"case-insensitive keys",
			"DATA SOURCE=host.example.com,1500;INITIAL CATALOG=Sales;",
			"host.example.com", "Sales", 1500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := Normalize(&tt.raw)
			if info.Server == nil || *info.Server != tt.server {
				t.Errorf("server = %v, want %q", info.Server, tt.server)
			}
			if info.Database == nil || *info.Database != tt.database {
				t.Errorf("database = %v, want %q", info.Database, tt.database)
			}
			if info.Port != tt.port {
				t.Errorf("port = %d, want %d", info.Port, tt.port)
			}
		})
	}
}

func TestNormalize_KeyValueWithoutServer(t *testing.T) {
	raw := "Encrypt=yes;Connection Timeout=30;"
	info := Normalize(&raw)
	if info.Server != nil {
		t.Errorf("server = %q, want nil", *info.Server)
	}
	if info.Port != DefaultPort {
		t.Errorf("port = %d, want %d", info.Port, DefaultPort)
	}
}

func TestFallbackDatabase(t *testing.T) {
	if got := FallbackDatabase(strPtr("RealDB"), "ItemName"); got == nil || *got != "RealDB" {
		t.Errorf("parsed database should win, got %v", got)
	}
	if got := FallbackDatabase(nil, "ItemName"); got == nil || *got != "ItemName" {
		t.Errorf("item name fallback failed, got %v", got)
	}
	if got := FallbackDatabase(strPtr(""), "ItemName"); got == nil || *got != "ItemName" {
		t.Errorf("empty parsed database should fall back, got %v", got)
	}
	if got := FallbackDatabase(nil, ""); got != nil {
		t.Errorf("expected nil when nothing available, got %q", *got)
	}
}
