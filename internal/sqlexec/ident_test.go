package sqlexec

import (
	"errors"
	"testing"
)

func TestSafeIdent(t *testing.T) {
	valid := []string{"dbo", "Sales_2024", "T1", "  dbo  ", "_hidden"}
	for _, in := range valid {
		got, err := SafeIdent(in)
		if err != nil {
			t.Errorf("SafeIdent(%q) rejected a valid identifier: %v", in, err)
			continue
		}
		if got == "" {
			t.Errorf("SafeIdent(%q) returned empty", in)
		}
	}

	invalid := []string{"", "   ", "dbo; DROP TABLE x", "sales-2024", "a.b", `a"b`, "sch ema", "名前"}
	for _, in := range invalid {
		if _, err := SafeIdent(in); !errors.Is(err, ErrUnsafeIdent) {
			t.Errorf("SafeIdent(%q) = %v, want ErrUnsafeIdent", in, err)
		}
	}
}

func TestSafeIdent_TrimsWhitespace(t *testing.T) {
	got, err := SafeIdent("  orders  ")
	if err != nil || got != "orders" {
		t.Errorf("SafeIdent trim = %q, %v", got, err)
	}
}

func TestCheckReadOnly(t *testing.T) {
	allowed := []string{
		"SELECT * FROM dbo.orders",
		"select top 10 name from sys.tables",
		"WITH cte AS (SELECT 1 AS n) SELECT n FROM cte",
	}
	for _, q := range allowed {
		if err := CheckReadOnly(q); err != nil {
			t.Errorf("CheckReadOnly(%q) = %v, want nil", q, err)
		}
	}

	blocked := []string{
		"DELETE FROM t",
		"insert into t values (1)",
		"SELECT 1;\nDROP TABLE t",
		"TRUNCATE TABLE t",
		"GRANT SELECT ON t TO someone",
		// Coarse on purpose: the token appears inside an identifier.
		"SELECT * FROM update_log",
	}
	for _, q := range blocked {
		if err := CheckReadOnly(q); !errors.Is(err, ErrMutatingStatement) {
			t.Errorf("CheckReadOnly(%q) = %v, want ErrMutatingStatement", q, err)
		}
	}
}

func TestConnString(t *testing.T) {
	e := NewMSSQL(nil, 0, false)

	got := e.connString(Target{Server: "tcp:host.example.com", Database: "DB", Port: 1500})
	want := "server=host.example.com;port=1500;database=DB;encrypt=true;trustservercertificate=false;dial timeout=30"
	if got != want {
		t.Errorf("connString = %q, want %q", got, want)
	}

	got = e.connString(Target{Server: "host", Database: "DB"})
	want = "server=host;port=1433;database=DB;encrypt=true;trustservercertificate=false;dial timeout=30"
	if got != want {
		t.Errorf("default port connString = %q, want %q", got, want)
	}

	trusting := NewMSSQL(nil, 0, true)
	got = trusting.connString(Target{Server: "host", Database: "DB"})
	want = "server=host;port=1433;database=DB;encrypt=true;trustservercertificate=true;dial timeout=30"
	if got != want {
		t.Errorf("trusting connString = %q, want %q", got, want)
	}
}
