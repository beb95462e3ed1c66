package sqlexec

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnsafeIdent is returned for identifiers that cannot be embedded in SQL.
var ErrUnsafeIdent = errors.New("identifier contains characters outside [A-Za-z0-9_]")

var safeIdentPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// SafeIdent validates a schema or table identifier against a strict
// allow-list before it is interpolated into a statement. There is no
// escaping path: anything outside the allow-list is rejected outright.
func SafeIdent(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !safeIdentPattern.MatchString(s) {
		return "", fmt.Errorf("%q: %w", s, ErrUnsafeIdent)
	}
	return s, nil
}

// readBlocklist are statement tokens that mark a query as mutating. The
// check is substring containment over the lowercased text, deliberately
// coarse: false positives are acceptable, false negatives are not.
var readBlocklist = []string{
	"insert", "update", "delete", "merge", "alter",
	"drop", "truncate", "create", "grant", "revoke",
}

// ErrMutatingStatement is returned when a passthrough query trips the
// read-only blocklist.
var ErrMutatingStatement = errors.New("only read-only queries are allowed")

// CheckReadOnly rejects queries containing any blocklisted token.
func CheckReadOnly(query string) error {
	lower := strings.ToLower(strings.ReplaceAll(query, "\n", " "))
	for _, tok := range readBlocklist {
		if strings.Contains(lower, tok) {
			return fmt.Errorf("%w (detected %q)", ErrMutatingStatement, tok)
		}
	}
	return nil
}
