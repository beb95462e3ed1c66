// Package sqlexec runs queries against mirrored SQL endpoints, authenticated
// with AAD access tokens rather than passwords.
package sqlexec

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/fabmirror/fabmirror/internal/auth"
)

// Target identifies one reachable SQL endpoint.
type Target struct {
	Server   string
	Database string
	Port     int
}

// Executor runs a query and returns column names plus row values.
type Executor interface {
	Query(ctx context.Context, target Target, query string, params ...any) ([]string, [][]any, error)
}

// MSSQL is the production Executor on go-mssqldb. Connections are opened
// per query: targets come and go with every refresh, so pooling per target
// buys little.
type MSSQL struct {
	tokens          auth.TokenProvider
	timeout         time.Duration
	trustServerCert bool
}

// NewMSSQL builds the executor. timeout bounds each query end to end;
// zero means 60s.
func NewMSSQL(tokens auth.TokenProvider, timeout time.Duration, trustServerCert bool) *MSSQL {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &MSSQL{tokens: tokens, timeout: timeout, trustServerCert: trustServerCert}
}

func (e *MSSQL) connString(t Target) string {
	host := strings.TrimPrefix(t.Server, "tcp:")
	port := t.Port
	if port == 0 {
		port = 1433
	}
	var b strings.Builder
	fmt.Fprintf(&b, "server=%s;port=%d;database=%s;encrypt=true", host, port, t.Database)
	if e.trustServerCert {
		b.WriteString(";trustservercertificate=true")
	} else {
		b.WriteString(";trustservercertificate=false")
	}
	b.WriteString(";dial timeout=30")
	return b.String()
}

func (e *MSSQL) open(ctx context.Context, t Target) (*sql.DB, error) {
	connector, err := mssql.NewAccessTokenConnector(e.connString(t), func() (string, error) {
		return e.tokens.Token(ctx, []string{auth.SQLScope})
	})
	if err != nil {
		return nil, fmt.Errorf("building connector for %s: %w", t.Server, err)
	}
	return sql.OpenDB(connector), nil
}

// Query executes one statement and materializes the full result set.
func (e *MSSQL) Query(ctx context.Context, t Target, query string, params ...any) ([]string, [][]any, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	db, err := e.open(ctx, t)
	if err != nil {
		return nil, nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, nil, fmt.Errorf("querying %s/%s: %w", t.Server, t.Database, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		out = append(out, vals)
	}
	return cols, out, rows.Err()
}

var _ Executor = (*MSSQL)(nil)
